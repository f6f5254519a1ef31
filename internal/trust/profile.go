package trust

import (
	"sync"
	"time"
)

// BurnEvent records one applied penalty. Never modified after append.
type BurnEvent struct {
	Timestamp          time.Time `json:"timestamp"`
	Amount             float64   `json:"amount"`
	PreviousScore      float64   `json:"previous_score"`
	NewScore           float64   `json:"new_score"`
	Reason             string    `json:"reason"`
	GovernanceApproved bool      `json:"governance_approved"`
}

// RecoveryEvent records one applied restoration. Never modified after append.
type RecoveryEvent struct {
	Timestamp       time.Time `json:"timestamp"`
	Amount          float64   `json:"amount"`
	PreviousScore   float64   `json:"previous_score"`
	NewScore        float64   `json:"new_score"`
	Reason          string    `json:"reason"`
	ValidationProof string    `json:"validation_proof,omitempty"`
}

// Profile is a participant's trust record.
type Profile struct {
	UserID           string          `json:"user_id"`
	TrustScore       float64         `json:"trust_score"`
	InviterUserID    string          `json:"inviter_user_id,omitempty"`
	RegistrationTime time.Time       `json:"registration_time"`
	LastActivityTime time.Time       `json:"last_activity_time"`
	LastDecayTime    time.Time       `json:"last_decay_time"`
	InviteDepth      int             `json:"invite_depth"`
	TotalInvites     int             `json:"total_invites"`
	BurnEvents       []BurnEvent     `json:"burn_events"`
	RecoveryEvents   []RecoveryEvent `json:"recovery_events"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
}

// HasInviter reports whether the profile was registered through an invite.
func (p *Profile) HasInviter() bool {
	return p.InviterUserID != ""
}

// clone returns a deep copy safe to hand to callers.
func (p *Profile) clone() *Profile {
	c := *p
	c.BurnEvents = append([]BurnEvent(nil), p.BurnEvents...)
	c.RecoveryEvents = append([]RecoveryEvent(nil), p.RecoveryEvents...)
	if p.Metadata != nil {
		c.Metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// lastBurn returns the most recent burn event, if any.
func (p *Profile) lastBurn() (BurnEvent, bool) {
	if len(p.BurnEvents) == 0 {
		return BurnEvent{}, false
	}
	return p.BurnEvents[len(p.BurnEvents)-1], true
}

// unapprovedBurnSince sums non-approved burns at or after since.
func (p *Profile) unapprovedBurnSince(since time.Time) float64 {
	total := 0.0
	for i := len(p.BurnEvents) - 1; i >= 0; i-- {
		ev := p.BurnEvents[i]
		if ev.Timestamp.Before(since) {
			break
		}
		if !ev.GovernanceApproved {
			total += ev.Amount
		}
	}
	return total
}

// profileEntry pairs a profile with the lock that serializes its mutations.
type profileEntry struct {
	mu      sync.Mutex
	profile *Profile
}

// profileStore holds one entry per user. Lock order: store.mu before entry.mu,
// never the reverse.
type profileStore struct {
	mu      sync.RWMutex
	entries map[string]*profileEntry
	order   []string // registration order, for stable iteration
}

func newProfileStore() *profileStore {
	return &profileStore{entries: make(map[string]*profileEntry)}
}

func (s *profileStore) get(userID string) (*profileEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[userID]
	return e, ok
}

// insertLocked adds a profile; caller holds s.mu for writing.
func (s *profileStore) insertLocked(p *Profile) {
	s.entries[p.UserID] = &profileEntry{profile: p}
	s.order = append(s.order, p.UserID)
}

// snapshot returns the entries in registration order.
func (s *profileStore) snapshot() []*profileEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*profileEntry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id])
	}
	return out
}

func (s *profileStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// clear drops every entry. It takes each entry lock in turn so a mutation
// already in progress finishes before its profile is released.
func (s *profileStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		e.mu.Lock()
		e.mu.Unlock()
	}
	s.entries = make(map[string]*profileEntry)
	s.order = nil
}
