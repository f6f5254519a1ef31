package metrics

import (
	"strings"
	"testing"

	"github.com/lazypower/trustledger/internal/trust"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporterCountsEvents(t *testing.T) {
	exp := NewExporter()

	exp.HandleEvent(trust.Event{Type: trust.EventBurn, Amount: 40})
	exp.HandleEvent(trust.Event{Type: trust.EventBurn, Amount: 13, Data: map[string]any{"propagated_from": "B"}})
	exp.HandleEvent(trust.Event{Type: trust.EventRecovery, Amount: 5})
	exp.HandleEvent(trust.Event{Type: trust.EventDecay, PreviousScore: 100, NewScore: 98})

	assert.Equal(t, 2.0, testutil.ToFloat64(exp.events.WithLabelValues("burn")))
	assert.Equal(t, 40.0, testutil.ToFloat64(exp.burned.WithLabelValues("direct")))
	assert.Equal(t, 13.0, testutil.ToFloat64(exp.burned.WithLabelValues("propagated")))
	assert.Equal(t, 5.0, testutil.ToFloat64(exp.recovered))
	assert.Equal(t, 2.0, testutil.ToFloat64(exp.decayed))
}

func TestExporterSnapshotGauges(t *testing.T) {
	exp := NewExporter()
	ledger, err := trust.New(trust.WithSinks(exp))
	require.NoError(t, err)
	t.Cleanup(ledger.Shutdown)
	exp.Bind(ledger)

	_, err = ledger.RegisterUser("F", "", nil)
	require.NoError(t, err)
	_, err = ledger.RegisterUser("A", "F", nil)
	require.NoError(t, err)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(exp))

	expected := `
# HELP trustledger_users Registered users.
# TYPE trustledger_users gauge
trustledger_users 2
# HELP trustledger_invite_tree_max_depth Deepest invite depth in the forest.
# TYPE trustledger_invite_tree_max_depth gauge
trustledger_invite_tree_max_depth 1
# HELP trustledger_users_by_trust_bucket Users per trust bucket.
# TYPE trustledger_users_by_trust_bucket gauge
trustledger_users_by_trust_bucket{bucket="critical"} 0
trustledger_users_by_trust_bucket{bucket="high"} 2
trustledger_users_by_trust_bucket{bucket="low"} 0
trustledger_users_by_trust_bucket{bucket="medium"} 0
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"trustledger_users", "trustledger_invite_tree_max_depth", "trustledger_users_by_trust_bucket")
	assert.NoError(t, err)
}

func TestExporterUnbound(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewExporter()))

	n, err := testutil.GatherAndCount(reg, "trustledger_users")
	require.NoError(t, err)
	assert.Zero(t, n)
}
