package engine

import (
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/chronolog/internal/metrics"
)

// DefaultParallelThreshold is the smallest number of triggered rules at one
// timestep that is dispatched to the worker pool.
const DefaultParallelThreshold = 4

// dispatcher runs the triggered rules of one timestep.
//
// Rules are evaluated on a bounded errgroup pool when there are enough of
// them, and in declaration order otherwise. Evaluation results do not depend
// on the mode: every evaluation reads the same pass snapshot and pending
// insertion is insert-if-absent.
type dispatcher struct {
	workers   int
	threshold int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// run evaluates rules at t. A failure on the pool is logged and the whole
// timestep is re-run sequentially, which is safe because re-deriving a
// pending fact is a no-op. Only a sequential failure is returned.
func (d *dispatcher) run(ev *evaluator, rules []*compiledRule, t int, runID string) (int, error) {
	if d.workers <= 1 || len(rules) < d.threshold {
		return d.sequential(ev, rules, t, runID)
	}

	var (
		inserted atomic.Int64
		failed   atomic.Bool
		g        errgroup.Group
	)
	g.SetLimit(d.workers)
	for _, cr := range rules {
		g.Go(func() error {
			if failed.Load() {
				return nil
			}
			n, err := ev.safeEvaluate(cr, t)
			inserted.Add(int64(n))
			if err != nil {
				failed.Store(true)
				return NewDispatchError(runID, cr.rule.Name, t, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		d.logger.Warn("worker pool failed, re-running timestep sequentially",
			"run_id", runID,
			"timestep", t,
			"rules", len(rules),
			"error", err,
		)
		d.metrics.Fallback()
		n, err := d.sequential(ev, rules, t, runID)
		return int(inserted.Load()) + n, err
	}

	d.metrics.RuleEvaluations(metrics.ModeParallel, len(rules))
	return int(inserted.Load()), nil
}

// sequential evaluates rules one by one in declaration order.
func (d *dispatcher) sequential(ev *evaluator, rules []*compiledRule, t int, runID string) (int, error) {
	inserted := 0
	for i, cr := range rules {
		n, err := ev.safeEvaluate(cr, t)
		inserted += n
		if err != nil {
			d.metrics.RuleEvaluations(metrics.ModeSequential, i+1)
			return inserted, NewDispatchError(runID, cr.rule.Name, t, err)
		}
	}
	d.metrics.RuleEvaluations(metrics.ModeSequential, len(rules))
	return inserted, nil
}
