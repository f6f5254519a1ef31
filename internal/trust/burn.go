package trust

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// burnWindow is the rolling window the daily burn cap applies to.
const burnWindow = 24 * time.Hour

// minPropagationRate bounds attenuation for deep invitees.
const minPropagationRate = 0.1

// PropagationRate is the share of a burn passed to the inviter of a user at depth.
func PropagationRate(depth int) float64 {
	return math.Max(minPropagationRate, 1/float64(depth+1))
}

// PropagatedBurn is the whole amount an inviter absorbs when its invitee at
// depth loses actual. Zero means propagation stops.
func PropagatedBurn(actual float64, depth int) float64 {
	// Divide rather than multiply by the rate: 30/3 must floor to 10, not 9.
	divisor := float64(depth + 1)
	if divisor > 1/minPropagationRate {
		divisor = 1 / minPropagationRate
	}
	return math.Floor(actual / divisor)
}

// BurnTrust penalizes a user. Unapproved burns are held to the daily cap and
// may not cross the minimum threshold; approved burns are only clamped at it.
// The committed burn is then propagated to the user's inviter, best effort.
func (l *Ledger) BurnTrust(userID string, amount float64, reason string, governanceApproved bool) (*Profile, error) {
	return l.burn(userID, amount, reason, governanceApproved, "")
}

func (l *Ledger) burn(userID string, amount float64, reason string, approved bool, source string) (*Profile, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	if !(amount > 0) || math.IsInf(amount, 0) {
		return nil, newError(CodeInvalidArgument, "burn amount must be a positive number", "amount", formatFloat(amount))
	}
	e, ok := l.store.get(userID)
	if !ok {
		return nil, notFound(userID)
	}

	now := l.now()

	e.mu.Lock()
	if l.closed.Load() {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	p := e.profile
	l.applyDecayLocked(p, now)
	params := l.gov.snapshot()

	if !approved {
		if err := validateBurn(p, amount, params, now); err != nil {
			e.mu.Unlock()
			return nil, err
		}
	}

	actual := math.Min(amount, p.TrustScore-params.MinimumThreshold)
	if actual <= 0 {
		e.mu.Unlock()
		return nil, newError(CodeInsufficientHeadroom, "already at minimum threshold",
			"user", userID, "trust_score", formatFloat(p.TrustScore))
	}

	prev := p.TrustScore
	p.TrustScore -= actual
	p.LastActivityTime = now
	p.BurnEvents = append(p.BurnEvents, BurnEvent{
		Timestamp:          now,
		Amount:             actual,
		PreviousScore:      prev,
		NewScore:           p.TrustScore,
		Reason:             reason,
		GovernanceApproved: approved,
	})

	// Copy what propagation needs; the inviter is locked only after release.
	inviterID := p.InviterUserID
	depth := p.InviteDepth
	out := p.clone()
	e.mu.Unlock()

	data := map[string]any{
		"requested":           amount,
		"governance_approved": approved,
	}
	if source != "" {
		data["propagated_from"] = source
	}
	l.events.emit(Event{
		Type:          EventBurn,
		UserID:        userID,
		Timestamp:     now,
		Amount:        actual,
		PreviousScore: prev,
		NewScore:      out.TrustScore,
		Reason:        reason,
		Data:          data,
	})

	if params.PropagationEnabled && inviterID != "" {
		l.propagate(userID, inviterID, depth, actual, reason)
	}
	return out, nil
}

func validateBurn(p *Profile, amount float64, params Parameters, now time.Time) error {
	spent := p.unapprovedBurnSince(now.Add(-burnWindow))
	if spent+amount > params.MaxDailyBurn {
		return newError(CodeGovernanceViolation, "daily burn limit exceeded",
			"user", p.UserID,
			"burned_today", formatFloat(spent),
			"requested", formatFloat(amount),
			"max_daily_burn", formatFloat(params.MaxDailyBurn))
	}
	if p.TrustScore-amount < params.MinimumThreshold {
		return newError(CodeInsufficientHeadroom, "burn would drop trust score below minimum threshold",
			"user", p.UserID,
			"trust_score", formatFloat(p.TrustScore),
			"minimum_threshold", formatFloat(params.MinimumThreshold))
	}
	return nil
}

// propagate burns the inviter with governance approval. Failures stay here:
// the invitee's burn is already committed and is never rolled back.
func (l *Ledger) propagate(childID, inviterID string, childDepth int, actual float64, reason string) {
	amount := PropagatedBurn(actual, childDepth)
	if amount < 1 {
		return
	}

	why := fmt.Sprintf("propagated from %s: %s", childID, reason)
	if _, err := l.burn(inviterID, amount, why, true, childID); err != nil {
		l.log.Warn("burn: propagation to inviter failed",
			zap.String("user", childID),
			zap.String("inviter", inviterID),
			zap.Float64("amount", amount),
			zap.Error(err))
	}
}
