// Package trust implements the trust ledger: registration into the invite
// forest, governed burns with attenuated propagation to inviters, recovery,
// and inactivity decay.
//
// All state is owned by a Ledger. Every mutation holds exactly one profile
// lock; burns that propagate release the invitee's lock before taking the
// inviter's, so long invite chains cannot deadlock.
package trust

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultInitialTrustScore = 100.0
	DefaultMaxInviteDepth    = 10
	DefaultEventBuffer       = 1024
)

// Ledger owns the profile store, invite index and governance table.
type Ledger struct {
	store   *profileStore
	invites *inviteIndex
	gov     *governanceTable
	events  *dispatcher

	now            func() time.Time
	log            *zap.Logger
	validator      VoteValidator
	initialScore   float64
	maxInviteDepth int

	closed   atomic.Bool
	stopCh   chan struct{}
	sweepWG  sync.WaitGroup
	shutdown sync.Once
}

type options struct {
	now            func() time.Time
	log            *zap.Logger
	sinks          []Sink
	validator      VoteValidator
	params         Parameters
	initialScore   float64
	maxInviteDepth int
	eventBuffer    int
}

// Option configures a Ledger.
type Option func(*options)

// WithClock replaces time.Now; tests use it to move time forward.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithSinks registers event consumers.
func WithSinks(sinks ...Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sinks...) }
}

func WithVoteValidator(v VoteValidator) Option {
	return func(o *options) { o.validator = v }
}

// WithParameters seeds the governance table. Values are bound-checked by New.
func WithParameters(p Parameters) Option {
	return func(o *options) { o.params = p }
}

func WithInitialTrustScore(score float64) Option {
	return func(o *options) { o.initialScore = score }
}

func WithMaxInviteDepth(depth int) Option {
	return func(o *options) { o.maxInviteDepth = depth }
}

// WithEventBuffer sets how many events may queue before new ones are dropped.
func WithEventBuffer(n int) Option {
	return func(o *options) { o.eventBuffer = n }
}

// New creates a Ledger. Call Shutdown to release it.
func New(opts ...Option) (*Ledger, error) {
	o := options{
		now:            time.Now,
		log:            zap.NewNop(),
		validator:      QuorumValidator{},
		params:         DefaultParameters(),
		initialScore:   DefaultInitialTrustScore,
		maxInviteDepth: DefaultMaxInviteDepth,
		eventBuffer:    DefaultEventBuffer,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if !(o.initialScore > 0) {
		return nil, fmt.Errorf("initial trust score must be positive, got %v", o.initialScore)
	}
	if o.maxInviteDepth < 1 {
		return nil, fmt.Errorf("max invite depth must be at least 1, got %d", o.maxInviteDepth)
	}
	if o.eventBuffer < 1 {
		o.eventBuffer = DefaultEventBuffer
	}

	gov := newGovernanceTable(DefaultParameters(), o.initialScore)
	for name, v := range o.params.asMap() {
		if err := gov.checkBounds(name, v); err != nil {
			return nil, fmt.Errorf("seed governance: %w", err)
		}
	}
	gov.params = o.params

	return &Ledger{
		store:          newProfileStore(),
		invites:        newInviteIndex(),
		gov:            gov,
		events:         newDispatcher(o.eventBuffer, o.sinks, o.log),
		now:            o.now,
		log:            o.log,
		validator:      o.validator,
		initialScore:   o.initialScore,
		maxInviteDepth: o.maxInviteDepth,
		stopCh:         make(chan struct{}),
	}, nil
}

// InitialTrustScore is the score every new profile starts with.
func (l *Ledger) InitialTrustScore() float64 { return l.initialScore }

// MaxInviteDepth is the cap applied to InviteDepth.
func (l *Ledger) MaxInviteDepth() int { return l.maxInviteDepth }

// UserCount returns the number of registered users.
func (l *Ledger) UserCount() int { return l.store.len() }

// DroppedEvents counts events discarded because the buffer was full.
func (l *Ledger) DroppedEvents() int64 { return l.events.dropped.Load() }

// RegisterUser creates a profile, linking it under inviterID when given.
func (l *Ledger) RegisterUser(userID, inviterID string, metadata map[string]any) (*Profile, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	if userID == "" {
		return nil, newError(CodeInvalidArgument, "user id is required")
	}
	if inviterID == userID {
		return nil, newError(CodeInvalidArgument, "user cannot invite themselves", "user", userID)
	}

	now := l.now()

	l.store.mu.Lock()
	defer l.store.mu.Unlock()

	// Shutdown may have cleared the store while we waited for the lock.
	if l.closed.Load() {
		return nil, ErrClosed
	}
	if _, exists := l.store.entries[userID]; exists {
		return nil, newError(CodeAlreadyRegistered,
			fmt.Sprintf("user %q already registered", userID), "user", userID)
	}

	p := &Profile{
		UserID:           userID,
		TrustScore:       l.initialScore,
		InviterUserID:    inviterID,
		RegistrationTime: now,
		LastActivityTime: now,
		Metadata:         copyMetadata(metadata),
	}

	var rec *InviteRecord
	if inviterID != "" {
		inv, ok := l.store.entries[inviterID]
		if !ok {
			return nil, newError(CodeNotFound,
				fmt.Sprintf("inviter %q not registered", inviterID), "inviter", inviterID)
		}
		inv.mu.Lock()
		l.applyDecayLocked(inv.profile, now)
		p.InviteDepth = min(inv.profile.InviteDepth+1, l.maxInviteDepth)
		inv.profile.TotalInvites++
		rec = &InviteRecord{
			InviterUserID:           inviterID,
			InviteeUserID:           userID,
			Timestamp:               now,
			InviteDepthAtTime:       p.InviteDepth,
			InviterTrustScoreAtTime: inv.profile.TrustScore,
		}
		inv.mu.Unlock()
	}

	l.store.insertLocked(p)
	if rec != nil {
		l.invites.add(*rec)
	}

	l.events.emit(Event{
		Type:      EventRegistration,
		UserID:    userID,
		Timestamp: now,
		NewScore:  p.TrustScore,
		Data: map[string]any{
			"inviter_user_id": inviterID,
			"invite_depth":    p.InviteDepth,
		},
	})
	l.log.Debug("ledger: registered user",
		zap.String("user", userID),
		zap.String("inviter", inviterID),
		zap.Int("depth", p.InviteDepth))

	return p.clone(), nil
}

// GetTrustScore returns the user's score after applying pending decay.
func (l *Ledger) GetTrustScore(userID string) (float64, error) {
	e, ok := l.store.get(userID)
	if !ok {
		return 0, notFound(userID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	l.applyDecayLocked(e.profile, l.now())
	return e.profile.TrustScore, nil
}

// GetTrustProfile returns a copy of the profile, or false if unknown.
func (l *Ledger) GetTrustProfile(userID string) (*Profile, bool) {
	e, ok := l.store.get(userID)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	l.applyDecayLocked(e.profile, l.now())
	return e.profile.clone(), true
}

// GetInviteHistory returns the bounded history log of an inviter.
func (l *Ledger) GetInviteHistory(inviterID string) ([]InviteRecord, error) {
	if _, ok := l.store.get(inviterID); !ok {
		return nil, notFound(inviterID)
	}
	return l.invites.historyOf(inviterID), nil
}

// GovernanceParameters returns the current governance table.
func (l *Ledger) GovernanceParameters() Parameters {
	return l.gov.snapshot()
}

// UpdateGovernanceParameter changes one allow-listed parameter. The result
// mirrors the error so callers that only report outcomes can ignore err.
func (l *Ledger) UpdateGovernanceParameter(name string, value float64, governanceApproved bool) (UpdateResult, error) {
	return l.updateParameter(name, value, governanceApproved, "direct")
}

// ProposeGovernanceParameter authorizes a change through the vote validator.
func (l *Ledger) ProposeGovernanceParameter(name string, value float64, proof VoteProof) (UpdateResult, error) {
	approved := l.validator.ValidateVote(name, value, proof)
	if !approved {
		l.log.Info("governance: vote rejected",
			zap.String("parameter", name),
			zap.Float64("quorum", proof.Quorum))
	}
	return l.updateParameter(name, value, approved, "vote")
}

func (l *Ledger) updateParameter(name string, value float64, approved bool, source string) (UpdateResult, error) {
	if l.closed.Load() {
		return UpdateResult{Reason: ErrClosed.Message}, ErrClosed
	}
	if !approved {
		err := newError(CodeGovernanceViolation, "governance approval required", "parameter", name)
		return UpdateResult{Reason: err.Message}, err
	}
	old, err := l.gov.set(name, value)
	if err != nil {
		return UpdateResult{Reason: err.Error()}, err
	}

	l.events.emit(Event{
		Type:      EventGovernanceAudit,
		Timestamp: l.now(),
		Reason:    fmt.Sprintf("%s changed", name),
		Data: map[string]any{
			"parameter": name,
			"old_value": old,
			"new_value": value,
			"source":    source,
		},
	})
	l.log.Info("governance: parameter updated",
		zap.String("parameter", name),
		zap.Float64("old", old),
		zap.Float64("new", value),
		zap.String("source", source))

	return UpdateResult{Success: true}, nil
}

// Shutdown stops the decay sweep, flushes queued events and clears all state.
// Safe to call more than once.
func (l *Ledger) Shutdown() {
	l.shutdown.Do(func() {
		l.closed.Store(true)
		close(l.stopCh)
		l.sweepWG.Wait()
		l.events.close()
		l.store.clear()
		l.invites.clear()
		l.log.Info("ledger: shut down")
	})
}

func notFound(userID string) *Error {
	return newError(CodeNotFound, fmt.Sprintf("user %q not found", userID), "user", userID)
}

func copyMetadata(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
