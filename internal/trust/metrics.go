package trust

import (
	"fmt"
	"time"
)

// Trust distribution bucket lower bounds.
const (
	highTrustFloor   = 80
	mediumTrustFloor = 40
	lowTrustFloor    = 10
)

// InviteTreeNode is one node of a bounded invite tree view.
type InviteTreeNode struct {
	UserID           string            `json:"user_id"`
	TrustScore       float64           `json:"trust_score"`
	RegistrationTime time.Time         `json:"registration_time"`
	Children         []*InviteTreeNode `json:"children"`
}

// GetInviteTree returns userID's invitees down to maxDepth levels.
// maxDepth 0 returns the root alone.
func (l *Ledger) GetInviteTree(userID string, maxDepth int) (*InviteTreeNode, error) {
	if maxDepth < 0 {
		return nil, newError(CodeInvalidArgument, fmt.Sprintf("depth must not be negative, got %d", maxDepth))
	}
	node, ok := l.treeNode(userID, 0, maxDepth, l.now())
	if !ok {
		return nil, notFound(userID)
	}
	return node, nil
}

func (l *Ledger) treeNode(userID string, level, maxDepth int, now time.Time) (*InviteTreeNode, bool) {
	e, ok := l.store.get(userID)
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	l.applyDecayLocked(e.profile, now)
	node := &InviteTreeNode{
		UserID:           e.profile.UserID,
		TrustScore:       e.profile.TrustScore,
		RegistrationTime: e.profile.RegistrationTime,
		Children:         []*InviteTreeNode{},
	}
	e.mu.Unlock()

	if level >= maxDepth {
		return node, true
	}
	for _, child := range l.invites.invitees(userID) {
		if c, ok := l.treeNode(child, level+1, maxDepth, now); ok {
			node.Children = append(node.Children, c)
		}
	}
	return node, true
}

// Distribution counts users per trust bucket.
type Distribution struct {
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Critical int `json:"critical"`
}

// TreeStats summarizes the shape of the invite forest.
type TreeStats struct {
	MaxDepth          int         `json:"max_depth"`
	AverageDepth      float64     `json:"average_depth"`
	DepthDistribution map[int]int `json:"depth_distribution"`
}

// Metrics is a point-in-time aggregate of the ledger.
type Metrics struct {
	GeneratedAt       time.Time    `json:"generated_at"`
	TotalUsers        int          `json:"total_users"`
	AverageTrustScore float64      `json:"average_trust_score"`
	TotalInvites      int          `json:"total_invites"`
	TotalBurns        int          `json:"total_burns"`
	TotalRecoveries   int          `json:"total_recoveries"`
	TrustDistribution Distribution `json:"trust_distribution"`
	InviteTree        TreeStats    `json:"invite_tree"`
}

// Bucket classifies a score into its distribution bucket name.
func Bucket(score float64) string {
	switch {
	case score >= highTrustFloor:
		return "high"
	case score >= mediumTrustFloor:
		return "medium"
	case score >= lowTrustFloor:
		return "low"
	default:
		return "critical"
	}
}

// GenerateTrustMetrics aggregates every profile. Each profile is read under
// its own lock, so the snapshot is per-user consistent only.
func (l *Ledger) GenerateTrustMetrics() Metrics {
	now := l.now()
	m := Metrics{
		GeneratedAt: now,
		InviteTree:  TreeStats{DepthDistribution: map[int]int{}},
	}

	var scoreSum float64
	var depthSum int
	for _, e := range l.store.snapshot() {
		e.mu.Lock()
		l.applyDecayLocked(e.profile, now)
		p := e.profile
		score, depth := p.TrustScore, p.InviteDepth
		m.TotalInvites += p.TotalInvites
		m.TotalBurns += len(p.BurnEvents)
		m.TotalRecoveries += len(p.RecoveryEvents)
		e.mu.Unlock()

		m.TotalUsers++
		scoreSum += score
		depthSum += depth
		m.InviteTree.DepthDistribution[depth]++
		if depth > m.InviteTree.MaxDepth {
			m.InviteTree.MaxDepth = depth
		}

		switch Bucket(score) {
		case "high":
			m.TrustDistribution.High++
		case "medium":
			m.TrustDistribution.Medium++
		case "low":
			m.TrustDistribution.Low++
		default:
			m.TrustDistribution.Critical++
		}
	}

	if m.TotalUsers > 0 {
		m.AverageTrustScore = scoreSum / float64(m.TotalUsers)
		m.InviteTree.AverageDepth = float64(depthSum) / float64(m.TotalUsers)
	}
	return m
}
