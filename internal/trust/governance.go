package trust

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
)

// Governance parameter names accepted by UpdateGovernanceParameter.
const (
	ParamMaxDailyBurn        = "maxDailyBurn"
	ParamMinimumThreshold    = "minimumThreshold"
	ParamRecoveryWindowHours = "recoveryWindowHours"
	ParamDecayRate           = "decayRate"
	ParamRecoveryMultiplier  = "recoveryMultiplier"
	ParamPropagationEnabled  = "propagationEnabled"
	ParamDecayEnabled        = "decayEnabled"
)

// maxDailyBurnCeiling is the hard safety bound on the daily burn cap.
const maxDailyBurnCeiling = 100

// Parameters is a point-in-time copy of the governance table.
type Parameters struct {
	MaxDailyBurn        float64 `json:"maxDailyBurn" yaml:"maxDailyBurn"`
	MinimumThreshold    float64 `json:"minimumThreshold" yaml:"minimumThreshold"`
	RecoveryWindowHours float64 `json:"recoveryWindowHours" yaml:"recoveryWindowHours"`
	DecayRate           float64 `json:"decayRate" yaml:"decayRate"`
	RecoveryMultiplier  float64 `json:"recoveryMultiplier" yaml:"recoveryMultiplier"`
	PropagationEnabled  bool    `json:"propagationEnabled" yaml:"propagationEnabled"`
	DecayEnabled        bool    `json:"decayEnabled" yaml:"decayEnabled"`
}

// DefaultParameters returns the launch values of the governance table.
func DefaultParameters() Parameters {
	return Parameters{
		MaxDailyBurn:        50,
		MinimumThreshold:    10,
		RecoveryWindowHours: 24,
		DecayRate:           0.01, // 1% of the current score per idle day
		RecoveryMultiplier:  1,
		PropagationEnabled:  true,
		DecayEnabled:        true,
	}
}

// UpdateResult is the outcome of a governance update.
type UpdateResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// VoteValidator authorizes a parameter change from an out-of-band vote.
type VoteValidator interface {
	ValidateVote(parameterName string, newValue float64, proof VoteProof) bool
}

// VoteProof is the evidence a governance vote passed.
type VoteProof struct {
	Signature string  `json:"signature"`
	Quorum    float64 `json:"quorum"`
}

// MinimumQuorum is the share of votes QuorumValidator requires.
const MinimumQuorum = 0.6

// QuorumValidator accepts any signed proof whose quorum reaches MinimumQuorum.
type QuorumValidator struct{}

func (QuorumValidator) ValidateVote(_ string, _ float64, proof VoteProof) bool {
	return proof.Signature != "" && proof.Quorum >= MinimumQuorum
}

// governanceTable guards the live parameters.
type governanceTable struct {
	mu           sync.RWMutex
	params       Parameters
	initialScore float64
}

func newGovernanceTable(p Parameters, initialScore float64) *governanceTable {
	return &governanceTable{params: p, initialScore: initialScore}
}

func (g *governanceTable) snapshot() Parameters {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.params
}

// ParameterNames lists the allow-list in stable order.
func ParameterNames() []string {
	names := []string{
		ParamMaxDailyBurn,
		ParamMinimumThreshold,
		ParamRecoveryWindowHours,
		ParamDecayRate,
		ParamRecoveryMultiplier,
		ParamPropagationEnabled,
		ParamDecayEnabled,
	}
	sort.Strings(names)
	return names
}

// set validates and applies a single named value, returning the previous one.
func (g *governanceTable) set(name string, value float64) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkBounds(name, value); err != nil {
		return 0, err
	}

	p := &g.params
	var old float64
	switch name {
	case ParamMaxDailyBurn:
		old, p.MaxDailyBurn = p.MaxDailyBurn, value
	case ParamMinimumThreshold:
		old, p.MinimumThreshold = p.MinimumThreshold, value
	case ParamRecoveryWindowHours:
		old, p.RecoveryWindowHours = p.RecoveryWindowHours, value
	case ParamDecayRate:
		old, p.DecayRate = p.DecayRate, value
	case ParamRecoveryMultiplier:
		old, p.RecoveryMultiplier = p.RecoveryMultiplier, value
	case ParamPropagationEnabled:
		old, p.PropagationEnabled = boolValue(p.PropagationEnabled), value == 1
	case ParamDecayEnabled:
		old, p.DecayEnabled = boolValue(p.DecayEnabled), value == 1
	}
	return old, nil
}

func (g *governanceTable) checkBounds(name string, v float64) error {
	// NaN fails every comparison below, so it would pass as in bounds.
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return newError(CodeInvalidArgument,
			fmt.Sprintf("%s must be a finite number", name),
			"parameter", name, "value", formatFloat(v))
	}

	outOfBounds := func(rule string) error {
		return newError(CodeGovernanceViolation,
			fmt.Sprintf("%s %s", name, rule),
			"parameter", name, "value", formatFloat(v))
	}

	switch name {
	case ParamMaxDailyBurn:
		if v <= 0 {
			return outOfBounds("must be positive")
		}
		if v > maxDailyBurnCeiling {
			return outOfBounds(fmt.Sprintf("exceeds safety bound of %d", maxDailyBurnCeiling))
		}
	case ParamMinimumThreshold:
		if v < 0 {
			return outOfBounds("must not be negative")
		}
		if v >= g.initialScore {
			return outOfBounds(fmt.Sprintf("must be below the initial trust score %s", formatFloat(g.initialScore)))
		}
	case ParamRecoveryWindowHours:
		if v < 0 || v > 8760 {
			return outOfBounds("must be between 0 and 8760 hours")
		}
	case ParamDecayRate:
		if v < 0 || v > 1 {
			return outOfBounds("must be between 0 and 1")
		}
	case ParamRecoveryMultiplier:
		if v <= 0 || v > 10 {
			return outOfBounds("must be in (0, 10]")
		}
	case ParamPropagationEnabled, ParamDecayEnabled:
		if v != 0 && v != 1 {
			return outOfBounds("must be 0 or 1")
		}
	default:
		return newError(CodeGovernanceViolation,
			fmt.Sprintf("unknown governance parameter %q", name),
			"parameter", name)
	}
	return nil
}

// asMap flattens parameters to their allow-list names.
func (p Parameters) asMap() map[string]float64 {
	return map[string]float64{
		ParamMaxDailyBurn:        p.MaxDailyBurn,
		ParamMinimumThreshold:    p.MinimumThreshold,
		ParamRecoveryWindowHours: p.RecoveryWindowHours,
		ParamDecayRate:           p.DecayRate,
		ParamRecoveryMultiplier:  p.RecoveryMultiplier,
		ParamPropagationEnabled:  boolValue(p.PropagationEnabled),
		ParamDecayEnabled:        boolValue(p.DecayEnabled),
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
