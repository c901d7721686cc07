package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Pass(3)
	m.Pass(0)
	m.RuleEvaluations(ModeParallel, 5)
	m.RuleEvaluations(ModeSequential, 2)
	m.Fallback()
	m.Reason(OutcomeQuiescent, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PassesTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DerivationsTotal))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.RuleEvaluationsTotal.WithLabelValues(ModeParallel)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RuleEvaluationsTotal.WithLabelValues(ModeSequential)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbacksTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReasonTotal.WithLabelValues(OutcomeQuiescent)))

	count, err := testutil.GatherAndCount(reg, "chronolog_engine_reason_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewSharesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(reg)
	require.NoError(t, err)
	b, err := New(reg)
	require.NoError(t, err, "second engine on the same registry reuses collectors")

	a.Fallback()
	b.Fallback()
	assert.Equal(t, 2.0, testutil.ToFloat64(a.FallbacksTotal))

	expected := `
# HELP chronolog_engine_sequential_fallbacks_total Total number of timesteps re-run sequentially after a worker pool failure
# TYPE chronolog_engine_sequential_fallbacks_total counter
chronolog_engine_sequential_fallbacks_total 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "chronolog_engine_sequential_fallbacks_total"))
}

func TestNewWithoutRegistry(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)
	m.Pass(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PassesTotal))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Pass(1)
		m.RuleEvaluations(ModeParallel, 1)
		m.Fallback()
		m.Reason(OutcomeError, time.Second)
	})
}
