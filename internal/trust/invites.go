package trust

import (
	"sync"
	"time"
)

const (
	// Once a per-inviter history log grows past maxInviteHistory it is cut
	// back to the newest keptInviteHistory records.
	maxInviteHistory  = 1000
	keptInviteHistory = 500
)

// InviteRecord is one entry of an inviter's history log.
type InviteRecord struct {
	InviterUserID           string    `json:"inviter_user_id"`
	InviteeUserID           string    `json:"invitee_user_id"`
	Timestamp               time.Time `json:"timestamp"`
	InviteDepthAtTime       int       `json:"invite_depth_at_time"`
	InviterTrustScoreAtTime float64   `json:"inviter_trust_score_at_time"`
}

// inviteIndex maps inviter to invitees (insertion ordered) and keeps the
// bounded history log.
type inviteIndex struct {
	mu       sync.RWMutex
	children map[string][]string
	edges    map[string]map[string]struct{}
	history  map[string][]InviteRecord
}

func newInviteIndex() *inviteIndex {
	return &inviteIndex{
		children: make(map[string][]string),
		edges:    make(map[string]map[string]struct{}),
		history:  make(map[string][]InviteRecord),
	}
}

// add records the edge and appends to the inviter's history.
func (x *inviteIndex) add(rec InviteRecord) {
	x.mu.Lock()
	defer x.mu.Unlock()

	set, ok := x.edges[rec.InviterUserID]
	if !ok {
		set = make(map[string]struct{})
		x.edges[rec.InviterUserID] = set
	}
	if _, dup := set[rec.InviteeUserID]; !dup {
		set[rec.InviteeUserID] = struct{}{}
		x.children[rec.InviterUserID] = append(x.children[rec.InviterUserID], rec.InviteeUserID)
	}

	h := append(x.history[rec.InviterUserID], rec)
	if len(h) > maxInviteHistory {
		h = append([]InviteRecord(nil), h[len(h)-keptInviteHistory:]...)
	}
	x.history[rec.InviterUserID] = h
}

func (x *inviteIndex) invitees(inviterID string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]string(nil), x.children[inviterID]...)
}

func (x *inviteIndex) historyOf(inviterID string) []InviteRecord {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]InviteRecord(nil), x.history[inviterID]...)
}

func (x *inviteIndex) clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.children = make(map[string][]string)
	x.edges = make(map[string]map[string]struct{})
	x.history = make(map[string][]InviteRecord)
}
