package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveLookup(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveLookup("term_for_uri", true, nil)
	m.ObserveLookup("term_for_uri", false, nil)
	m.ObserveLookup("term_for_uri", false, nil)
	m.ObserveLookup("term_for_uri", false, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lookups.WithLabelValues("term_for_uri", ResultFound)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Lookups.WithLabelValues("term_for_uri", ResultNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lookups.WithLabelValues("term_for_uri", ResultError)))
}

func TestObserveSelection(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveSelection(5, 2)
	m.ObserveSelection(3, 3)

	assert.Equal(t, 8.0, testutil.ToFloat64(m.SelectionOffered))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SelectionPruned))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveLookup("parent_node", true, nil)
		m.ObserveSelection(1, 0)
	})
}
