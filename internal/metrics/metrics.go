// Package metrics holds the Prometheus collectors for URI lookups and
// reference selection.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Lookup outcomes
const (
	ResultFound    = "found"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Metrics groups the collectors
type Metrics struct {
	Lookups          *prometheus.CounterVec
	SelectionOffered prometheus.Counter
	SelectionPruned  prometheus.Counter
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "termuri",
			Name:      "lookups_total",
			Help:      "URI lookups by operation and result.",
		}, []string{"operation", "result"}),
		SelectionOffered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "termuri",
			Subsystem: "selection",
			Name:      "candidates_total",
			Help:      "Terms offered by the base selection before filtering.",
		}),
		SelectionPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "termuri",
			Subsystem: "selection",
			Name:      "pruned_total",
			Help:      "Terms removed from a selection for lacking an external URI.",
		}),
	}
	reg.MustRegister(m.Lookups, m.SelectionOffered, m.SelectionPruned)
	return m
}

// ObserveLookup counts one lookup. Safe on a nil receiver.
func (m *Metrics) ObserveLookup(operation string, found bool, err error) {
	if m == nil {
		return
	}
	result := ResultFound
	switch {
	case err != nil:
		result = ResultError
	case !found:
		result = ResultNotFound
	}
	m.Lookups.WithLabelValues(operation, result).Inc()
}

// ObserveSelection counts candidates and pruned terms. Safe on a nil receiver.
func (m *Metrics) ObserveSelection(candidates, kept int) {
	if m == nil {
		return
	}
	m.SelectionOffered.Add(float64(candidates))
	m.SelectionPruned.Add(float64(candidates - kept))
}
