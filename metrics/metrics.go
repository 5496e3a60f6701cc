// Package metrics exposes the engine's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "syncrollups"

// Metrics groups the counters and gauges updated by the engine.
type Metrics struct {
	TransitionsLoaded  prometheus.Counter
	TransitionsMatched prometheus.Counter
	TransitionsMissed  prometheus.Counter
	TransitionsEvicted prometheus.Counter
	BatchesCommitted   prometheus.Counter
	ProofsRejected     *prometheus.CounterVec
	ScopeReverts       prometheus.Counter
	CallsExecuted      *prometheus.CounterVec
	LastUpdateTick     prometheus.Gauge
}

// New creates the instruments and registers them with reg. A nil reg
// leaves them unregistered, which is what tests and embedded engines use.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransitionsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "transitions_loaded_total",
			Help:      "Transitions admitted into the execution cache.",
		}),
		TransitionsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "transitions_matched_total",
			Help:      "Transitions matched against live state and applied.",
		}),
		TransitionsMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "transitions_missed_total",
			Help:      "Lookups that found no transition matching live state.",
		}),
		TransitionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "transitions_evicted_total",
			Help:      "Expired transitions removed from the execution cache.",
		}),
		BatchesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "batches_committed_total",
			Help:      "Batch state commitments applied.",
		}),
		ProofsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "proofs_rejected_total",
			Help:      "Proofs rejected by the oracle, by ingestion path.",
		}, []string{"path"}),
		ScopeReverts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "navigator",
			Name:      "scope_reverts_total",
			Help:      "Scopes rolled back through a revert continuation.",
		}),
		CallsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "navigator",
			Name:      "calls_executed_total",
			Help:      "Settlement-layer calls performed by the navigator, by outcome.",
		}, []string{"outcome"}),
		LastUpdateTick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_update_tick",
			Help:      "Tick of the latest registry mutation.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.TransitionsLoaded,
			m.TransitionsMatched,
			m.TransitionsMissed,
			m.TransitionsEvicted,
			m.BatchesCommitted,
			m.ProofsRejected,
			m.ScopeReverts,
			m.CallsExecuted,
			m.LastUpdateTick,
		)
	}
	return m
}
