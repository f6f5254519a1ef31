package audit

import (
	"testing"
	"time"

	"github.com/lazypower/trustledger/internal/trust"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndList(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []trust.Event{
		{ID: "e1", Type: trust.EventRegistration, UserID: "alice", Timestamp: base, NewScore: 100},
		{ID: "e2", Type: trust.EventBurn, UserID: "alice", Timestamp: base.Add(time.Minute),
			Amount: 10, PreviousScore: 100, NewScore: 90, Reason: "spam",
			Data: map[string]any{"governance_approved": false}},
		{ID: "e3", Type: trust.EventBurn, UserID: "bob", Timestamp: base.Add(2 * time.Minute), Amount: 5},
		{ID: "e4", Type: trust.EventGovernanceAudit, Timestamp: base.Add(3 * time.Minute),
			Data: map[string]any{"parameter": "maxDailyBurn"}},
	}
	for _, ev := range events {
		require.NoError(t, db.Record(ev), "record %s", ev.ID)
	}

	got, err := db.ListByUser("alice", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e2", got[0].EventID, "newest first")
	assert.Equal(t, "spam", got[0].Reason)
	assert.Equal(t, 90.0, got[0].NewScore)
	assert.Equal(t, false, got[0].Data["governance_approved"])
	assert.True(t, got[0].Time().Equal(base.Add(time.Minute)), "time = %v", got[0].Time())

	burns, err := db.ListByType(trust.EventBurn, 0)
	require.NoError(t, err)
	assert.Len(t, burns, 2)

	audits, err := db.ListByType(trust.EventGovernanceAudit, 1)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Empty(t, audits[0].UserID)
}

func TestRecordDuplicateIgnored(t *testing.T) {
	db := testDB(t)
	ev := trust.Event{ID: "dup", Type: trust.EventDecay, UserID: "alice", Timestamp: time.Now()}

	require.NoError(t, db.Record(ev))
	require.NoError(t, db.Record(ev))

	n, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLedgerFeedsAuditLog(t *testing.T) {
	db := testDB(t)

	ledger, err := trust.New(trust.WithSinks(db))
	require.NoError(t, err)
	for _, u := range []struct{ id, inviter string }{{"F", ""}, {"A", "F"}, {"B", "A"}} {
		_, err := ledger.RegisterUser(u.id, u.inviter, nil)
		require.NoError(t, err, "register %s", u.id)
	}
	_, err = ledger.BurnTrust("B", 40, "abuse", false)
	require.NoError(t, err)
	// Shutdown drains the event queue into the sink.
	ledger.Shutdown()

	n, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, 6, n, "3 registrations, 3 burns")

	fEvents, err := db.ListByUser("F", 0)
	require.NoError(t, err)
	require.Len(t, fEvents, 2)
	assert.Equal(t, string(trust.EventBurn), fEvents[0].Type)
	assert.Equal(t, 6.0, fEvents[0].Amount)
}
