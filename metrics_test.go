package nbadet

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	return testutil.ToFloat64(c)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	args := DefaultArgs()
	args.UseSmartSuccessor = true
	conf, err := NewConfig(sccTestBuchi(t), args, WithMetrics(m))
	require.NoError(t, err)
	c := NewSuccessorCache(NewEngine(conf))

	edges := 0
	exploreCache(c, func(*DetState, Valuation, *DetState, int) { edges++ })
	stats := c.Stats()
	assert.Equal(t, edges, stats.Lookups)

	assert.Equal(t, float64(stats.Lookups), counterValue(t, m.lookups))
	assert.Equal(t, float64(stats.MemoHits), counterValue(t, m.memoHits))
	assert.Equal(t, float64(stats.Redirects), counterValue(t, m.redirects))
	assert.Equal(t, float64(stats.Constructed), counterValue(t, m.constructed))

	// the reference engine of the cache shares the step counters
	steps := counterValue(t, m.steps.WithLabelValues(Regular)) +
		counterValue(t, m.steps.WithLabelValues(EmptySink)) +
		counterValue(t, m.steps.WithLabelValues(AcceptSink))
	assert.GreaterOrEqual(t, steps, float64(stats.Constructed))

	n, err := testutil.GatherAndCount(reg, "nbadet_cache_lookups_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)

	// unregistered counters are fine
	_, err = NewMetrics(nil)
	assert.NoError(t, err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeStep(Regular)
		m.observeLookup(true)
		m.observeResolved(false)
		m.observeComponent()
	})

	dpa, err := Determinize(context.Background(), sccTestBuchi(t), SuggestedArgs())
	require.NoError(t, err)
	_, err = Explore(context.Background(), dpa)
	assert.NoError(t, err)
}
