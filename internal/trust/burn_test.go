package trust

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBurnPropagatesUpInviteChain(t *testing.T) {
	l, _ := testLedger(t)
	registerChain(t, l, "F", "A", "B")

	b, err := l.BurnTrust("B", 40, "abuse", false)
	require.NoError(t, err)
	assert.Equal(t, 60.0, b.TrustScore)

	// depth(B)=2 → floor(40/3)=13 onto A; depth(A)=1 → floor(13/2)=6 onto F
	assert.Equal(t, 87.0, score(t, l, "A"))
	assert.Equal(t, 94.0, score(t, l, "F"))

	a, _ := l.GetTrustProfile("A")
	require.Len(t, a.BurnEvents, 1)
	assert.True(t, a.BurnEvents[0].GovernanceApproved)
	assert.Equal(t, "propagated from B: abuse", a.BurnEvents[0].Reason)

	f, _ := l.GetTrustProfile("F")
	require.Len(t, f.BurnEvents, 1)
	assert.Equal(t, "propagated from A: propagated from B: abuse", f.BurnEvents[0].Reason)
}

func TestPropagatedBurn(t *testing.T) {
	tests := []struct {
		actual float64
		depth  int
		want   float64
	}{
		{40, 2, 13},
		{13, 1, 6},
		{30, 2, 10},
		{5, 1, 2},
		{1, 1, 0},
		{100, 9, 10},
		{100, 20, 10}, // rate floors at 0.1
		{9, 30, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PropagatedBurn(tt.actual, tt.depth), "actual=%v depth=%d", tt.actual, tt.depth)
	}

	assert.Equal(t, 0.5, PropagationRate(1))
	assert.Equal(t, 0.1, PropagationRate(9))
	assert.Equal(t, 0.1, PropagationRate(50))
}

func TestBurnNotIdempotent(t *testing.T) {
	l, _ := testLedger(t)
	registerChain(t, l, "F")

	for i := 0; i < 3; i++ {
		_, err := l.BurnTrust("F", 5, "spam", false)
		require.NoError(t, err)
	}

	f, _ := l.GetTrustProfile("F")
	assert.Equal(t, 85.0, f.TrustScore)
	assert.Len(t, f.BurnEvents, 3)
}

func TestPropagationStopsWhenRoundedToZero(t *testing.T) {
	l, _ := testLedger(t)
	registerChain(t, l, "F", "A")

	_, err := l.BurnTrust("A", 1, "minor", false)
	require.NoError(t, err)
	assert.Equal(t, 99.0, score(t, l, "A"))
	assert.Equal(t, 100.0, score(t, l, "F"))

	f, _ := l.GetTrustProfile("F")
	assert.Empty(t, f.BurnEvents)
}

func TestPropagationDisabled(t *testing.T) {
	p := DefaultParameters()
	p.PropagationEnabled = false
	l, _ := testLedger(t, WithParameters(p))
	registerChain(t, l, "F", "A")

	_, err := l.BurnTrust("A", 40, "abuse", false)
	require.NoError(t, err)
	assert.Equal(t, 100.0, score(t, l, "F"))
}

func TestAncestorFailureDoesNotUndoBurn(t *testing.T) {
	l, _ := testLedger(t)
	registerChain(t, l, "F", "A")

	// drive F to the floor so the propagated burn has no headroom
	_, err := l.BurnTrust("F", 95, "sanction", true)
	require.NoError(t, err)
	require.Equal(t, 10.0, score(t, l, "F"))

	a, err := l.BurnTrust("A", 20, "abuse", false)
	require.NoError(t, err)
	assert.Equal(t, 80.0, a.TrustScore)
	assert.Equal(t, 10.0, score(t, l, "F"))
}

func TestBurnDailyCap(t *testing.T) {
	l, clock := testLedger(t, withoutDecay())
	registerChain(t, l, "F")

	_, err := l.BurnTrust("F", 30, "spam", false)
	require.NoError(t, err)

	_, err = l.BurnTrust("F", 30, "spam", false)
	require.ErrorIs(t, err, ErrGovernanceViolation)
	assert.Contains(t, err.Error(), "daily burn limit")
	assert.Equal(t, 70.0, score(t, l, "F"))

	// approved burns neither count against nor are held to the cap
	_, err = l.BurnTrust("F", 30, "sanction", true)
	require.NoError(t, err)
	_, err = l.BurnTrust("F", 20, "spam", false)
	require.NoError(t, err)
	assert.Equal(t, 20.0, score(t, l, "F"))

	clock.Advance(23 * time.Hour)
	_, err = l.BurnTrust("F", 1, "spam", false)
	assert.ErrorIs(t, err, ErrGovernanceViolation)

	clock.Advance(2 * time.Hour)
	_, err = l.BurnTrust("F", 5, "spam", false)
	require.NoError(t, err)
	assert.Equal(t, 15.0, score(t, l, "F"))
}

func TestBurnThreshold(t *testing.T) {
	p := DefaultParameters()
	p.MaxDailyBurn = 100
	l, _ := testLedger(t, WithParameters(p))
	registerChain(t, l, "F")

	_, err := l.BurnTrust("F", 95, "abuse", false)
	require.ErrorIs(t, err, ErrInsufficientHeadroom)
	assert.Contains(t, err.Error(), "below minimum threshold")
	assert.Equal(t, 100.0, score(t, l, "F"))

	f, err := l.BurnTrust("F", 95, "sanction", true)
	require.NoError(t, err)
	assert.Equal(t, 10.0, f.TrustScore)
	assert.Equal(t, 90.0, f.BurnEvents[0].Amount)

	_, err = l.BurnTrust("F", 5, "sanction", true)
	require.ErrorIs(t, err, ErrInsufficientHeadroom)
	assert.Equal(t, "already at minimum threshold", err.Error())
}

func TestBurnInvalidInput(t *testing.T) {
	l, _ := testLedger(t)
	registerChain(t, l, "F")

	_, err := l.BurnTrust("F", 0, "zero", false)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = l.BurnTrust("F", -3, "negative", false)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = l.BurnTrust("ghost", 3, "unknown", false)
	assert.ErrorIs(t, err, ErrNotFound)

	f, _ := l.GetTrustProfile("F")
	assert.Empty(t, f.BurnEvents)
}

func TestBurnUpdatesLastActivity(t *testing.T) {
	l, clock := testLedger(t)
	registerChain(t, l, "F")

	clock.Advance(3 * time.Hour)
	f, err := l.BurnTrust("F", 1, "spam", false)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), f.LastActivityTime)
}
