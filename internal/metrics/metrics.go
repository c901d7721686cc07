// Package metrics provides Prometheus instrumentation for the reasoning engine.
//
// Metrics include:
//   - Fixpoint passes and derived (fact, timestep) pairs
//   - Rule evaluations by dispatch mode (sequential, parallel)
//   - Sequential fallbacks after a worker-pool failure
//   - Reason call duration and outcome
//
// Collectors are registered on a caller-supplied prometheus.Registerer, so
// independent engines can report to separate registries. Engines sharing a
// registry share collectors.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chronolog"

const subsystem = "engine"

// Dispatch modes used as the "mode" label of rule_evaluations_total.
const (
	ModeSequential = "sequential"
	ModeParallel   = "parallel"
)

// Reason outcomes used as the "outcome" label of reason_total.
const (
	OutcomeQuiescent = "quiescent"
	OutcomeCeiling   = "pass_ceiling"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// Metrics holds the engine collectors.
type Metrics struct {
	// PassesTotal counts fixpoint passes, including the quiescent one.
	PassesTotal prometheus.Counter

	// DerivationsTotal counts (fact, timestep) pairs committed by rules.
	DerivationsTotal prometheus.Counter

	// RuleEvaluationsTotal counts (rule, timestep) evaluations.
	// Labels: mode (sequential, parallel)
	RuleEvaluationsTotal *prometheus.CounterVec

	// FallbacksTotal counts timesteps re-run sequentially after a pool failure.
	FallbacksTotal prometheus.Counter

	// ReasonTotal counts Reason calls by outcome.
	// Labels: outcome (quiescent, pass_ceiling, cancelled, error)
	ReasonTotal *prometheus.CounterVec

	// ReasonDurationSeconds measures Reason wall time.
	ReasonDurationSeconds prometheus.Histogram
}

// New creates the collectors and registers them on reg.
// A collector that is already registered on reg is reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		PassesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "passes_total",
			Help:      "Total number of fixpoint passes",
		}),
		DerivationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "derivations_total",
			Help:      "Total number of derived (fact, timestep) pairs",
		}),
		RuleEvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rule_evaluations_total",
				Help:      "Total number of rule evaluations by dispatch mode",
			},
			[]string{"mode"},
		),
		FallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sequential_fallbacks_total",
			Help:      "Total number of timesteps re-run sequentially after a worker pool failure",
		}),
		ReasonTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reason_total",
				Help:      "Total number of reason calls by outcome",
			},
			[]string{"outcome"},
		),
		ReasonDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reason_duration_seconds",
			Help:      "Duration of reason calls in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
	}

	if reg == nil {
		return m, nil
	}

	var err error
	m.PassesTotal, err = register(reg, m.PassesTotal)
	if err != nil {
		return nil, err
	}
	m.DerivationsTotal, err = register(reg, m.DerivationsTotal)
	if err != nil {
		return nil, err
	}
	m.RuleEvaluationsTotal, err = register(reg, m.RuleEvaluationsTotal)
	if err != nil {
		return nil, err
	}
	m.FallbacksTotal, err = register(reg, m.FallbacksTotal)
	if err != nil {
		return nil, err
	}
	m.ReasonTotal, err = register(reg, m.ReasonTotal)
	if err != nil {
		return nil, err
	}
	m.ReasonDurationSeconds, err = register(reg, m.ReasonDurationSeconds)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, returning the existing collector if an identical
// one is already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Pass records one fixpoint pass and the pairs it committed.
func (m *Metrics) Pass(committed int) {
	if m == nil {
		return
	}
	m.PassesTotal.Inc()
	m.DerivationsTotal.Add(float64(committed))
}

// RuleEvaluations records n rule evaluations in the given mode.
func (m *Metrics) RuleEvaluations(mode string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.RuleEvaluationsTotal.WithLabelValues(mode).Add(float64(n))
}

// Fallback records a sequential re-run of one timestep.
func (m *Metrics) Fallback() {
	if m == nil {
		return
	}
	m.FallbacksTotal.Inc()
}

// Reason records a finished Reason call.
func (m *Metrics) Reason(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ReasonTotal.WithLabelValues(outcome).Inc()
	m.ReasonDurationSeconds.Observe(elapsed.Seconds())
}
