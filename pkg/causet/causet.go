// Package causet is a causal-inference engine over discrete Bayesian
// networks: observational and interventional probability queries,
// backdoor-path analysis, and symbolic do-calculus identification.
package causet

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/cognicore/causet/pkg/causet/config"
	"github.com/cognicore/causet/pkg/causet/do"
	"github.com/cognicore/causet/pkg/causet/eval"
	"github.com/cognicore/causet/pkg/causet/graph"
	"github.com/cognicore/causet/pkg/causet/internalerr"
	"github.com/cognicore/causet/pkg/causet/model"
	"github.com/cognicore/causet/pkg/causet/store"
)

// deconfounding tolerance mirrors the original cross-check threshold.
const allSetsTolerance = 1e-7

// Chooser picks one deconfounding set out of several; wired to a prompt
// by interactive callers under the "ask" policy.
type Chooser func(sets [][]string) (int, error)

// Options configures an Engine.
type Options struct {
	Model  *model.Model
	Config config.Config
	// Store is an optional persistent result/derivation cache.
	Store store.Store
	// Chooser is required under the "ask" deconfounding policy.
	Chooser Chooser
}

// Engine answers queries against one immutable model. An Engine is not
// safe for concurrent use; instantiate one per goroutine.
type Engine struct {
	m       *model.Model
	cfg     config.Config
	g       *graph.Graph
	ev      *eval.Evaluator
	rng     *rand.Rand
	st      store.Store
	chooser Chooser

	lastDerivation *do.Derivation
}

// New validates the options and builds an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("%w: nil model", internalerr.ErrMalformedModel)
	}
	cfg := opts.Config
	if cfg == (config.Config{}) {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var cache eval.Cache
	if cfg.CacheResults {
		size := cfg.CacheSize
		if size <= 0 {
			size = config.Default().CacheSize
		}
		var err error
		cache, err = eval.NewLRUCache(size)
		if err != nil {
			return nil, err
		}
	}

	g := graph.New(opts.Model)
	return &Engine{
		m:   opts.Model,
		cfg: cfg,
		g:   g,
		ev: eval.New(eval.Options{
			Model:        opts.Model,
			Graph:        g,
			Cache:        cache,
			Store:        opts.Store,
			DriftEpsilon: cfg.DriftEpsilon,
		}),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		st:      opts.Store,
		chooser: opts.Chooser,
	}, nil
}

// Close releases the engine's store, if any.
func (e *Engine) Close() error {
	if e.st != nil {
		return e.st.Close()
	}
	return nil
}

// Model returns the engine's model.
func (e *Engine) Model() *model.Model { return e.m }

// TopologicalOrder returns the model's canonical variable order.
func (e *Engine) TopologicalOrder() []string {
	return e.m.TopologicalOrder()
}

// P computes P(head | body). The body may mix observations and
// interventions; the head takes observations only.
func (e *Engine) P(ctx context.Context, head, body []model.Assertion) (float64, error) {
	e.lastDerivation = nil

	if err := e.validateQuery(head, body); err != nil {
		return 0, err
	}
	if len(head) == 0 {
		return 1.0, nil
	}

	var interventions, observations []model.Assertion
	for _, a := range body {
		if a.Do {
			interventions = append(interventions, a)
		} else {
			observations = append(observations, a)
		}
	}

	if len(interventions) == 0 {
		return e.ev.Probability(ctx, head, body)
	}

	src := model.Names(interventions)
	dst := model.Names(head)
	dcf := model.Names(observations)

	// With every backdoor path already blocked by the observations,
	// severing the interventions' incoming edges suffices.
	if len(e.g.BackdoorPaths(src, dst, dcf)) == 0 {
		return e.surgeredEvaluator(src).Probability(ctx, head, body)
	}

	// Backdoor adjustment with a deconfounding set, when one exists.
	if len(src) == 1 {
		exclude := append([]string(nil), e.m.Latents()...)
		exclude = append(exclude, model.Names(body)...)
		exclude = append(exclude, model.Names(head)...)
		sets := e.g.DeconfoundingSets(src, dst, exclude, e.cfg.MinimalSets)
		sets = nonEmptySets(sets)
		if len(sets) > 0 {
			return e.adjustWithSets(ctx, head, body, interventions, sets)
		}
	}

	// No direct route: search the do-calculus for an equivalent
	// do-free expression and evaluate it.
	return e.identifyAndEvaluate(ctx, head, body)
}

// Identify runs the do-calculus search alone, returning the symbolic
// result without evaluating it.
func (e *Engine) Identify(ctx context.Context, head, body []model.Assertion) (*do.Result, error) {
	if err := e.validateQuery(head, body); err != nil {
		return nil, err
	}
	searcher := do.NewSearcher(do.Options{
		Model:      e.m,
		Graph:      e.g,
		DepthBound: e.cfg.DepthBound,
		StepBudget: e.cfg.StepBudget,
		RNG:        e.rng,
	})
	return searcher.Identify(ctx, head, body)
}

// LastDerivation reports the derivation of the most recent P call that
// went through the do-calculus engine.
func (e *Engine) LastDerivation() (do.Derivation, bool) {
	if e.lastDerivation == nil {
		return do.Derivation{}, false
	}
	return *e.lastDerivation, true
}

func (e *Engine) identifyAndEvaluate(ctx context.Context, head, body []model.Assertion) (float64, error) {
	result, err := e.Identify(ctx, head, body)
	if err != nil {
		return 0, err
	}
	e.lastDerivation = &result.Derivation

	if e.st != nil {
		_ = e.st.PutDerivation(ctx, e.m.Fingerprint(), result.Derivation.Query, store.Derivation{
			ID:         result.Derivation.ID,
			Steps:      result.Derivation.Steps,
			Expression: result.Expr.String(),
		})
	}

	return do.Evaluate(ctx, result.Expr, e.m, e.ev.Probability)
}

// adjustWithSets computes the query through one or more deconfounding
// sets according to the configured policy.
func (e *Engine) adjustWithSets(ctx context.Context, head, body, interventions []model.Assertion, sets [][]string) (float64, error) {
	switch e.cfg.DeconfoundingPolicy {
	case config.PolicyAsk:
		if e.chooser == nil {
			return 0, fmt.Errorf("%w: ask policy without a chooser", internalerr.ErrInvalidConfig)
		}
		idx, err := e.chooser(sets)
		if err != nil {
			return 0, err
		}
		if idx < 0 || idx >= len(sets) {
			return 0, fmt.Errorf("%w: chosen set %d out of range", internalerr.ErrQueryShape, idx)
		}
		return e.adjust(ctx, head, body, interventions, sets[idx])

	case config.PolicyRandom:
		return e.adjust(ctx, head, body, interventions, sets[e.rng.Intn(len(sets))])

	default: // all: every set must agree
		first := math.NaN()
		for _, set := range sets {
			p, err := e.adjust(ctx, head, body, interventions, set)
			if err != nil {
				return 0, err
			}
			if math.IsNaN(first) {
				first = p
			} else if math.Abs(p-first) > allSetsTolerance {
				return 0, fmt.Errorf("%w: %v vs %v", internalerr.ErrInconsistentDeconfounding, first, p)
			}
		}
		return first, nil
	}
}

// adjust sums P(head | body, Z=z) * P(Z=z | body) over every joint
// outcome of the deconfounding set, on the intervention-severed graph.
func (e *Engine) adjust(ctx context.Context, head, body, interventions []model.Assertion, set []string) (float64, error) {
	ev := e.surgeredEvaluator(model.Names(interventions))

	total := 0.0
	for _, z := range e.outcomeAssignments(set) {
		weight, err := ev.Probability(ctx, z, body)
		if err != nil {
			return 0, err
		}
		if weight == 0 {
			continue
		}
		conditional, err := ev.Probability(ctx, head, append(append([]model.Assertion(nil), body...), z...))
		if err != nil {
			return 0, err
		}
		total += conditional * weight
	}
	return total, nil
}

// surgeredEvaluator evaluates on a copy of the graph with the given
// vertices' incoming edges severed. It uses neither the engine's cache
// nor its store.
func (e *Engine) surgeredEvaluator(roots []string) *eval.Evaluator {
	g := e.g.Copy()
	g.DisableIncoming(roots...)
	return eval.New(eval.Options{
		Model:        e.m,
		Graph:        g,
		Cache:        nil, // surgery-specific sub-queries stay uncached
		Store:        nil,
		DriftEpsilon: e.cfg.DriftEpsilon,
	})
}

// outcomeAssignments enumerates every joint observation of the given
// variables, each variable's outcomes in the order the model declares them.
func (e *Engine) outcomeAssignments(vars []string) [][]model.Assertion {
	result := [][]model.Assertion{{}}
	for _, name := range vars {
		var next [][]model.Assertion
		for _, prefix := range result {
			for _, outcome := range e.m.Outcomes(name) {
				combo := make([]model.Assertion, len(prefix)+1)
				copy(combo, prefix)
				combo[len(prefix)] = model.Observe(name, outcome)
				next = append(next, combo)
			}
		}
		result = next
	}
	return result
}

// BackdoorPaths returns every unblocked backdoor path between the two
// vertex sets.
func (e *Engine) BackdoorPaths(src, dst, blockers []string) ([][]string, error) {
	for _, v := range append(append(append([]string(nil), src...), dst...), blockers...) {
		if !e.g.Has(v) {
			return nil, fmt.Errorf("%w: unknown variable %s", internalerr.ErrQueryShape, v)
		}
	}
	return e.g.BackdoorPaths(src, dst, blockers), nil
}

// DeconfoundingSets returns the observable sets blocking every backdoor
// path from src to dst, honoring the minimal-sets setting.
func (e *Engine) DeconfoundingSets(src, dst []string) ([][]string, error) {
	if !graph.Disjoint(src, dst) {
		return nil, fmt.Errorf("%w: source and destination sets overlap", internalerr.ErrQueryShape)
	}
	for _, v := range append(append([]string(nil), src...), dst...) {
		if !e.g.Has(v) {
			return nil, fmt.Errorf("%w: unknown variable %s", internalerr.ErrQueryShape, v)
		}
	}
	return e.g.DeconfoundingSets(src, dst, e.m.Latents(), e.cfg.MinimalSets), nil
}

// JointRow is one line of the joint distribution table.
type JointRow struct {
	Assignment []model.Assertion
	P          float64
}

// JointDistributionTable enumerates the joint distribution over every
// non-latent variable.
func (e *Engine) JointDistributionTable(ctx context.Context) ([]JointRow, error) {
	var observables []string
	for _, name := range e.m.TopologicalOrder() {
		if !e.m.IsLatent(name) {
			observables = append(observables, name)
		}
	}

	var rows []JointRow
	for _, assignment := range e.outcomeAssignments(observables) {
		p, err := e.ev.Probability(ctx, assignment, nil)
		if err != nil {
			return nil, err
		}
		rows = append(rows, JointRow{Assignment: assignment, P: p})
	}
	return rows, nil
}

// validateQuery enforces the query shape: known variables and outcomes,
// observations only in the head, and no intervened variable asserted a
// second time. A variable may be observed more than once; the evaluator
// answers such a query as a contradiction (0) or a redundancy (1).
func (e *Engine) validateQuery(head, body []model.Assertion) error {
	seen := make(map[string]bool, len(head)+len(body))
	for _, a := range head {
		if a.Do {
			return fmt.Errorf("%w: intervention %s in head", internalerr.ErrQueryShape, a)
		}
	}
	for _, a := range append(append([]model.Assertion(nil), head...), body...) {
		v, ok := e.m.Var(a.Variable)
		if !ok {
			return fmt.Errorf("%w: unknown variable %s", internalerr.ErrQueryShape, a.Variable)
		}
		valid := false
		for _, o := range v.Outcomes {
			if o == a.Value {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("%w: %s is not an outcome of %s", internalerr.ErrQueryShape, a.Value, a.Variable)
		}
		base := model.BaseName(a.Variable)
		if wasDo, ok := seen[base]; ok && (wasDo || a.Do) {
			return fmt.Errorf("%w: %s is intervened on and asserted more than once", internalerr.ErrQueryShape, base)
		}
		seen[base] = a.Do
	}
	return nil
}

// nonEmptySets filters out the empty deconfounding set; an empty
// blocking set means the backdoor-free shortcut already applied.
func nonEmptySets(sets [][]string) [][]string {
	var out [][]string
	for _, s := range sets {
		if len(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}
