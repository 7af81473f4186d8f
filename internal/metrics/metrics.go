// Package metrics exposes the retry/rollback counters spec §9 asks for
// ("Emit a counter/metric per retry"), implemented as Prometheus
// collectors the way kube-nexus-kubenexus-scheduler's pkg/scheduler
// registers its scheduling metrics: collectors built in a constructor and
// held in a struct (not a package init + global MustRegister), so more than one
// Sessions instance — e.g. one per test — can use its own registry without
// colliding on collector names.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Session bundles the counters a single session.Sessions instance emits.
type Session struct {
	TxRetries    prometheus.Counter
	TxRollbacks  prometheus.Counter
	TxDuration   prometheus.Histogram
}

// NewSession builds a fresh set of collectors and registers them with reg.
// Pass prometheus.NewRegistry() in tests to avoid collisions with the
// default global registry; pass prometheus.DefaultRegisterer in production.
func NewSession(reg prometheus.Registerer) *Session {
	s := &Session{
		TxRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservations_tx_retries_total",
			Help: "Number of serializable write-transaction retries due to serialization failures.",
		}),
		TxRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservations_tx_rollback_total",
			Help: "Number of write transactions that exhausted their retry budget and rolled back.",
		}),
		TxDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reservations_tx_duration_seconds",
			Help:    "Wall-clock duration of a scheduler write transaction, including retries.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(s.TxRetries, s.TxRollbacks, s.TxDuration)
	}
	return s
}
