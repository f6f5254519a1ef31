// Package metrics exposes the trust ledger to Prometheus: event counters fed
// by the ledger's event stream, and gauges computed from a metrics snapshot
// at scrape time.
package metrics

import (
	"strconv"
	"sync"

	"github.com/lazypower/trustledger/internal/trust"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trustledger"

// Source produces ledger snapshots. *trust.Ledger satisfies it.
type Source interface {
	GenerateTrustMetrics() trust.Metrics
	DroppedEvents() int64
}

// Exporter is both a trust.Sink and a prometheus.Collector.
type Exporter struct {
	mu     sync.RWMutex
	source Source

	events    *prometheus.CounterVec
	burned    *prometheus.CounterVec
	recovered prometheus.Counter
	decayed   prometheus.Counter

	usersDesc        *prometheus.Desc
	averageDesc      *prometheus.Desc
	bucketDesc       *prometheus.Desc
	depthDesc        *prometheus.Desc
	maxDepthDesc     *prometheus.Desc
	droppedDesc      *prometheus.Desc
	totalInvitesDesc *prometheus.Desc
}

// NewExporter creates an unbound exporter. Pass it to trust.WithSinks, then
// call Bind once the ledger exists.
func NewExporter() *Exporter {
	return &Exporter{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Ledger events emitted, by type.",
		}, []string{"type"}),
		burned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trust_burned_total",
			Help:      "Trust removed by burns, split by direct and propagated.",
		}, []string{"origin"}),
		recovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trust_recovered_total",
			Help:      "Trust restored by recoveries.",
		}),
		decayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trust_decayed_total",
			Help:      "Trust removed by inactivity decay.",
		}),
		usersDesc: prometheus.NewDesc(namespace+"_users",
			"Registered users.", nil, nil),
		averageDesc: prometheus.NewDesc(namespace+"_average_trust_score",
			"Mean trust score across users.", nil, nil),
		bucketDesc: prometheus.NewDesc(namespace+"_users_by_trust_bucket",
			"Users per trust bucket.", []string{"bucket"}, nil),
		depthDesc: prometheus.NewDesc(namespace+"_users_by_invite_depth",
			"Users per invite depth.", []string{"depth"}, nil),
		maxDepthDesc: prometheus.NewDesc(namespace+"_invite_tree_max_depth",
			"Deepest invite depth in the forest.", nil, nil),
		totalInvitesDesc: prometheus.NewDesc(namespace+"_invites",
			"Invite edges in the forest.", nil, nil),
		droppedDesc: prometheus.NewDesc(namespace+"_events_dropped",
			"Events dropped because the dispatch buffer was full.", nil, nil),
	}
}

// Bind attaches the ledger the snapshot gauges read from.
func (e *Exporter) Bind(src Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.source = src
}

// HandleEvent implements trust.Sink.
func (e *Exporter) HandleEvent(ev trust.Event) {
	e.events.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case trust.EventBurn:
		origin := "direct"
		if _, ok := ev.Data["propagated_from"]; ok {
			origin = "propagated"
		}
		e.burned.WithLabelValues(origin).Add(ev.Amount)
	case trust.EventRecovery:
		e.recovered.Add(ev.Amount)
	case trust.EventDecay:
		e.decayed.Add(ev.PreviousScore - ev.NewScore)
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	e.events.Describe(ch)
	e.burned.Describe(ch)
	e.recovered.Describe(ch)
	e.decayed.Describe(ch)
	ch <- e.usersDesc
	ch <- e.averageDesc
	ch <- e.bucketDesc
	ch <- e.depthDesc
	ch <- e.maxDepthDesc
	ch <- e.totalInvitesDesc
	ch <- e.droppedDesc
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.events.Collect(ch)
	e.burned.Collect(ch)
	e.recovered.Collect(ch)
	e.decayed.Collect(ch)

	e.mu.RLock()
	src := e.source
	e.mu.RUnlock()
	if src == nil {
		return
	}

	m := src.GenerateTrustMetrics()
	ch <- prometheus.MustNewConstMetric(e.usersDesc, prometheus.GaugeValue, float64(m.TotalUsers))
	ch <- prometheus.MustNewConstMetric(e.averageDesc, prometheus.GaugeValue, m.AverageTrustScore)
	ch <- prometheus.MustNewConstMetric(e.maxDepthDesc, prometheus.GaugeValue, float64(m.InviteTree.MaxDepth))
	ch <- prometheus.MustNewConstMetric(e.totalInvitesDesc, prometheus.GaugeValue, float64(m.TotalInvites))
	ch <- prometheus.MustNewConstMetric(e.droppedDesc, prometheus.GaugeValue, float64(src.DroppedEvents()))

	buckets := map[string]int{
		"high":     m.TrustDistribution.High,
		"medium":   m.TrustDistribution.Medium,
		"low":      m.TrustDistribution.Low,
		"critical": m.TrustDistribution.Critical,
	}
	for name, n := range buckets {
		ch <- prometheus.MustNewConstMetric(e.bucketDesc, prometheus.GaugeValue, float64(n), name)
	}
	for depth, n := range m.InviteTree.DepthDistribution {
		ch <- prometheus.MustNewConstMetric(e.depthDesc, prometheus.GaugeValue, float64(n), strconv.Itoa(depth))
	}
}
