package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/roach88/chronolog/internal/compiler"
	"github.com/roach88/chronolog/internal/ir"
	"github.com/roach88/chronolog/internal/metrics"
)

// Reasoner is the reasoning contract. Alternate evaluators (distributed,
// GPU) implement it and must reproduce the reference evaluator's
// Interpretation exactly; Interpretation.Digest makes that checkable.
type Reasoner interface {
	Reason(ctx context.Context, maxTimesteps int) (*Interpretation, error)
}

// Engine is a temporal forward-chaining reasoner.
//
// An Engine owns its rule set and base facts. Several engines may coexist in
// one process; nothing is global.
//
// Thread-safety model:
//   - AddFact/AddRule/Reason: safe from any goroutine, serialized by the
//     engine lock
//   - Reason never mutates the base facts, so calling it again with the same
//     input yields an identical Interpretation
//
// INVARIANTS:
//   - rules slice order NEVER changes (declaration order breaks provenance ties)
//   - rule names are unique
//   - every stored rule and fact passed validation
type Engine struct {
	mu sync.Mutex

	rules     []ir.Rule
	ruleNames map[string]bool
	base      map[string]*baseFact

	workers           int
	parallelThreshold int
	maxPasses         int
	ceilingFactor     int
	logger            *slog.Logger
	metrics           *metrics.Metrics
	ids               IDGenerator
	passHook          func(PassStats)
	evalHook          func(rule string, t int)
}

// baseFact is a caller-added fact after merging.
type baseFact struct {
	atom      ir.Atom
	id        string
	intervals ir.IntervalSet
	static    bool
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithWorkers sets the worker pool size. Values <= 1 evaluate sequentially.
//
// Default: runtime.GOMAXPROCS(0)
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithParallelThreshold sets the smallest number of triggered rules at a
// timestep that is dispatched to the pool.
//
// Default: 4 (DefaultParallelThreshold)
func WithParallelThreshold(n int) EngineOption {
	return func(e *Engine) {
		e.parallelThreshold = n
	}
}

// WithMaxPasses sets an explicit pass ceiling, replacing the derived one.
func WithMaxPasses(n int) EngineOption {
	return func(e *Engine) {
		e.maxPasses = n
	}
}

// WithPassCeilingFactor scales the derived pass ceiling
// (maxTimesteps+1) * (rules+1) * factor.
//
// Default: 64 (DefaultPassCeilingFactor)
func WithPassCeilingFactor(n int) EngineOption {
	return func(e *Engine) {
		e.ceilingFactor = n
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics sets the Prometheus collectors. Default: none.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithIDGenerator sets the run ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithPassHook registers a function called after every fixpoint pass.
// It runs on the Reason goroutine and must not call back into the engine.
func WithPassHook(fn func(PassStats)) EngineOption {
	return func(e *Engine) {
		e.passHook = fn
	}
}

// New creates an empty Engine.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		ruleNames:         make(map[string]bool),
		base:              make(map[string]*baseFact),
		workers:           runtime.GOMAXPROCS(0),
		parallelThreshold: DefaultParallelThreshold,
		ceilingFactor:     DefaultPassCeilingFactor,
		logger:            slog.Default(),
		ids:               UUIDv7Generator{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// AddRule parses and adds a rule. An empty name is replaced by "ruleN".
func (e *Engine) AddRule(ruleText, name string) error {
	rule, err := compiler.ParseRule(ruleText, name)
	if err != nil {
		return err
	}
	return e.AddRuleIR(rule)
}

// AddRuleIR validates and adds a typed rule.
func (e *Engine) AddRuleIR(rule ir.Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rule.Name == "" {
		rule.Name = fmt.Sprintf("rule%d", len(e.rules)+1)
	}
	if errs := compiler.ValidateRule(rule); len(errs) > 0 {
		return compiler.ValidationErrors(errs)
	}
	if e.ruleNames[rule.Name] {
		return compiler.ValidationError{
			Field:   "rule " + rule.Name,
			Message: "duplicate rule name",
			Code:    compiler.ErrDuplicateRule,
		}
	}

	e.ruleNames[rule.Name] = true
	e.rules = append(e.rules, rule)
	e.logger.Debug("rule added", "rule", rule.Name, "text", rule.String())
	return nil
}

// AddFact adds a ground fact. With no intervals the fact is static and
// holds at every timestep. id is an opaque provenance tag; facts with equal
// atoms are merged whatever their ids.
func (e *Engine) AddFact(atom ir.Atom, id string, intervals ...ir.Interval) error {
	field := "fact " + atom.Key()
	if errs := compiler.ValidateIntervals(field, intervals); len(errs) > 0 {
		return compiler.ValidationErrors(errs)
	}
	set, err := ir.NewIntervalSet(intervals...)
	if err != nil {
		return compiler.ValidationError{Field: field, Message: err.Error(), Code: compiler.ErrMalformedInterval}
	}
	return e.AddTimedFact(ir.TimedFact{Atom: atom, ID: id, Intervals: set})
}

// AddFactText parses and adds a fact, e.g. "disrupted(s1) : [0,3]".
func (e *Engine) AddFactText(text, id string) error {
	fact, err := compiler.ParseFact(text)
	if err != nil {
		return err
	}
	fact.ID = id
	return e.AddTimedFact(fact)
}

// AddTimedFact validates and merges a typed fact.
//
// Merging unions the intervals of dynamic facts. A static fact subsumes any
// dynamic fact with the same atom, so adding a dynamic fact that is already
// static is a no-op. The first non-empty id is kept.
func (e *Engine) AddTimedFact(fact ir.TimedFact) error {
	if errs := compiler.ValidateFact(fact); len(errs) > 0 {
		return compiler.ValidationErrors(errs)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := fact.Atom.Key()
	cur, ok := e.base[key]
	if !ok {
		e.base[key] = &baseFact{
			atom:      fact.Atom,
			id:        fact.ID,
			intervals: fact.Intervals,
			static:    fact.Static(),
		}
		return nil
	}

	if cur.id == "" {
		cur.id = fact.ID
	}
	switch {
	case cur.static:
		e.logger.Debug("fact subsumed by static fact", "fact", key)
	case fact.Static():
		cur.static = true
		cur.intervals = ir.IntervalSet{}
	default:
		cur.intervals = cur.intervals.Union(fact.Intervals)
	}
	return nil
}

// Rules returns a copy of the rules in declaration order.
func (e *Engine) Rules() []ir.Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.rules)
}

// FactCount returns the number of distinct base facts.
func (e *Engine) FactCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.base)
}

// Reason runs the fixpoint over timesteps 0..maxTimesteps and returns the
// frozen Interpretation.
//
// The result is a pure function of the rules, the base facts and
// maxTimesteps; the worker count does not affect it. The context is checked
// between passes. Exceeding the pass ceiling returns a RuntimeError with
// code PASS_CEILING_EXCEEDED.
func (e *Engine) Reason(ctx context.Context, maxTimesteps int) (*Interpretation, error) {
	if maxTimesteps < 0 {
		return nil, compiler.ValidationError{
			Field:   "maxTimesteps",
			Message: fmt.Sprintf("must be non-negative, got %d", maxTimesteps),
			Code:    compiler.ErrNegativeHorizon,
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	runID := e.ids.Generate()
	logger := e.logger.With("run_id", runID)

	for _, w := range compiler.AnalyzeDependencies(e.rules) {
		if w.Level == "warning" {
			logger.Warn(w.Message, "rules", w.Rules)
		} else {
			logger.Debug(w.Message, "rules", w.Rules)
		}
	}

	store, base := e.loadStore(maxTimesteps)
	ceiling := passCeiling(maxTimesteps, len(e.rules), e.ceilingFactor, e.maxPasses)

	fp := newFixpoint(runID, store, compileRules(e.rules))
	fp.eval.hook = e.evalHook
	fp.disp = &dispatcher{
		workers:   e.workers,
		threshold: e.parallelThreshold,
		logger:    logger,
		metrics:   e.metrics,
	}
	fp.quota = newPassQuota(ceiling)
	fp.logger = logger
	fp.metrics = e.metrics
	fp.hook = e.passHook

	logger.Info("reasoning started",
		"rules", len(e.rules),
		"facts", len(e.base),
		"max_timesteps", maxTimesteps,
		"workers", e.workers,
		"pass_ceiling", ceiling,
	)

	passes, err := fp.run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		outcome := metrics.OutcomeError
		switch {
		case IsPassCeilingError(err):
			outcome = metrics.OutcomeCeiling
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			outcome = metrics.OutcomeCancelled
		}
		e.metrics.Reason(outcome, elapsed)
		logger.Error("reasoning failed", "passes", passes, "error", err)
		return nil, err
	}

	e.metrics.Reason(metrics.OutcomeQuiescent, elapsed)
	logger.Info("reasoning complete",
		"passes", passes,
		"derived", fp.prov.Len(),
		"duration", elapsed,
	)

	return newInterpretation(runID, maxTimesteps, passes, store, fp.prov, base), nil
}

// loadStore builds a fresh fact store for one run: static facts first, then
// each dynamic fact at every timestep of its intervals within the horizon.
func (e *Engine) loadStore(maxTimesteps int) (*FactStore, []ir.BaseFact) {
	store := newFactStore(maxTimesteps)
	base := make([]ir.BaseFact, 0, len(e.base))
	for _, f := range e.base {
		base = append(base, ir.BaseFact{Atom: f.atom, ID: f.id})
		if f.static {
			store.addStatic(f.atom)
		}
	}
	for _, f := range e.base {
		if f.static {
			continue
		}
		for _, t := range f.intervals.Timesteps(maxTimesteps) {
			store.addDynamic(f.atom, t)
		}
	}
	sortBase(base)
	return store, base
}
