// Package eval computes observational probabilities by recursive
// reformulation: product-rule decomposition, direct table lookup, Bayes
// inversion, marginalization over missing parents, and non-parent
// dropping, with memoization over canonical query forms.
package eval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cognicore/causet/pkg/causet/graph"
	"github.com/cognicore/causet/pkg/causet/internalerr"
	"github.com/cognicore/causet/pkg/causet/model"
	"github.com/cognicore/causet/pkg/causet/store"
)

// DefaultDriftEpsilon bounds how far outside [0, 1] an evaluated
// probability may fall before the engine refuses it.
const DefaultDriftEpsilon = 1e-6

// Options configures an Evaluator.
type Options struct {
	Model *model.Model
	// Graph defaults to the model's graph; the do-calculus layer passes
	// surgered copies here.
	Graph *graph.Graph
	// Cache is optional; without one every query recomputes.
	Cache Cache
	// Store is an optional persistent read/write-through result cache.
	Store        store.Store
	DriftEpsilon float64
}

// Evaluator answers interventionless queries against one model.
type Evaluator struct {
	m       *model.Model
	g       *graph.Graph
	cache   Cache
	store   store.Store
	modelID string
	epsilon float64
}

// New creates an Evaluator for the given model.
func New(opts Options) *Evaluator {
	g := opts.Graph
	if g == nil {
		g = graph.New(opts.Model)
	}
	eps := opts.DriftEpsilon
	if eps <= 0 {
		eps = DefaultDriftEpsilon
	}
	return &Evaluator{
		m:       opts.Model,
		g:       g,
		cache:   opts.Cache,
		store:   opts.Store,
		modelID: opts.Model.Fingerprint(),
		epsilon: eps,
	}
}

// Probability computes P(head | body). Interventions may appear in the
// body only when the evaluator's graph has already been surgered to
// make them roots; the do-calculus layer owns that arrangement.
func (e *Evaluator) Probability(ctx context.Context, head, body []model.Assertion) (float64, error) {
	for _, a := range head {
		if _, ok := e.m.Var(a.Variable); !ok {
			return 0, fmt.Errorf("%w: unknown variable %s", internalerr.ErrQueryShape, a.Variable)
		}
	}
	for _, a := range body {
		if _, ok := e.m.Var(a.Variable); !ok {
			return 0, fmt.Errorf("%w: unknown variable %s", internalerr.ErrQueryShape, a.Variable)
		}
	}

	p, err := e.evaluate(ctx, head, body, make(map[string]bool))
	if err != nil {
		return 0, err
	}
	if p < -e.epsilon || p > 1+e.epsilon {
		return 0, fmt.Errorf("%w: %s = %v", internalerr.ErrNumericDrift, model.QueryKey(head, body), p)
	}
	return p, nil
}

func (e *Evaluator) evaluate(ctx context.Context, head, body []model.Assertion, inProgress map[string]bool) (float64, error) {
	key := model.QueryKey(head, body)

	// A repeated sub-query on the active stack cannot resolve.
	if inProgress[key] {
		return 0, fmt.Errorf("%w: recursive sub-query %s", internalerr.ErrIndeterminable, key)
	}

	if e.cache != nil {
		if p, ok := e.cache.Get(key); ok {
			return p, nil
		}
	}
	if e.store != nil {
		if p, ok, err := e.store.GetResult(ctx, e.modelID, key); err == nil && ok {
			return p, nil
		}
	}

	if len(head) == 0 {
		return 1.0, nil
	}
	if model.Contradictory(append(append([]model.Assertion(nil), head...), body...)) {
		return 0.0, nil
	}
	if containsAll(body, head) {
		return 1.0, nil
	}

	inProgress[key] = true
	defer delete(inProgress, key)

	p, err := e.resolve(ctx, head, body, inProgress)
	if err != nil {
		return 0, err
	}

	if e.cache != nil {
		e.cache.Add(key, p)
	}
	if e.store != nil {
		// Persist failures never fail the query.
		_ = e.store.PutResult(ctx, e.modelID, key, p)
	}
	return p, nil
}

func (e *Evaluator) resolve(ctx context.Context, head, body []model.Assertion, inProgress map[string]bool) (float64, error) {
	if len(head) > 1 {
		p, err := e.productRule(ctx, head, body, inProgress)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, internalerr.ErrIndeterminable) {
			return 0, err
		}
		// Fall back to marginalizing a missing parent of some head
		// variable.
		return e.marginalize(ctx, head, body, inProgress)
	}

	h := head[0]

	// A do-assigned variable holds its forced value with certainty.
	if h.Do {
		return 1.0, nil
	}

	v, _ := e.m.Var(h.Variable)
	if v.Table == nil {
		return 0, fmt.Errorf("%w: %s has no table", internalerr.ErrIndeterminable, h.Variable)
	}

	if matchesTable(v.Table.Given, body) {
		return v.Table.Probability(h.Value, assignment(body))
	}

	pivot, hasDescendant := e.descendantInBody(h.Variable, body)
	if hasDescendant {
		p, err := e.bayes(ctx, head, body, pivot, inProgress)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, internalerr.ErrIndeterminable) {
			return 0, err
		}
	}

	if len(missingParents(v.Table.Given, head, body)) > 0 {
		return e.marginalize(ctx, head, body, inProgress)
	}

	// Dropping a non-parent is only sound when the body holds no
	// descendant of the head.
	if !hasDescendant {
		if p, err := e.dropNonParents(ctx, head, body, v.Table.Given, inProgress); err == nil {
			return p, nil
		} else if !errors.Is(err, internalerr.ErrIndeterminable) {
			return 0, err
		}
	}

	return 0, fmt.Errorf("%w: %s", internalerr.ErrIndeterminable, model.QueryKey(head, body))
}

// productRule rewrites P(H1, Hrest | B) as P(H1 | Hrest, B) * P(Hrest | B),
// choosing H1 deepest-first so marginalizations stay small.
func (e *Evaluator) productRule(ctx context.Context, head, body []model.Assertion, inProgress map[string]bool) (float64, error) {
	ordered := e.descendantFirst(head)
	h1 := ordered[0]
	rest := ordered[1:]

	first, err := e.evaluate(ctx, []model.Assertion{h1}, append(append([]model.Assertion(nil), rest...), body...), inProgress)
	if err != nil {
		return 0, err
	}
	second, err := e.evaluate(ctx, rest, body, inProgress)
	if err != nil {
		return 0, err
	}
	return first * second, nil
}

// bayes inverts on one asserted descendant c of the head variable:
// P(X | c, B) = P(c | X, B) * P(X | B) / P(c | B).
func (e *Evaluator) bayes(ctx context.Context, head, body []model.Assertion, pivot model.Assertion, inProgress map[string]bool) (float64, error) {
	rest := without(body, pivot)

	numerator1, err := e.evaluate(ctx, []model.Assertion{pivot}, append(append([]model.Assertion(nil), head...), rest...), inProgress)
	if err != nil {
		return 0, err
	}
	numerator2, err := e.evaluate(ctx, head, rest, inProgress)
	if err != nil {
		return 0, err
	}
	denominator, err := e.evaluate(ctx, []model.Assertion{pivot}, rest, inProgress)
	if err != nil {
		return 0, err
	}
	if denominator == 0 {
		return 0, fmt.Errorf("%w: conditioning on %s", internalerr.ErrZeroProbability, pivot)
	}
	return numerator1 * numerator2 / denominator, nil
}

// marginalize sums one missing parent back in:
// P(H | B) = sum over outcomes o of M: P(H | M=o, B) * P(M=o | B).
func (e *Evaluator) marginalize(ctx context.Context, head, body []model.Assertion, inProgress map[string]bool) (float64, error) {
	var missing []string
	for _, h := range head {
		if h.Do {
			continue
		}
		if given := e.m.TableParents(h.Variable); given != nil {
			missing = append(missing, missingParents(given, head, body)...)
		}
	}
	missing = dedupe(missing)
	if len(missing) == 0 {
		return 0, fmt.Errorf("%w: no parent to marginalize in %s", internalerr.ErrIndeterminable, model.QueryKey(head, body))
	}

	var lastErr error
	for _, parent := range missing {
		total := 0.0
		failed := false
		for _, outcome := range e.m.Outcomes(parent) {
			extended := model.Observe(parent, outcome)

			weight, err := e.evaluate(ctx, []model.Assertion{extended}, body, inProgress)
			if err != nil {
				lastErr = err
				failed = true
				break
			}
			if weight == 0 {
				continue
			}

			conditional, err := e.evaluate(ctx, head, append([]model.Assertion{extended}, body...), inProgress)
			if err != nil {
				lastErr = err
				failed = true
				break
			}
			total += conditional * weight
		}
		if !failed {
			return total, nil
		}
		if !errors.Is(lastErr, internalerr.ErrIndeterminable) {
			return 0, lastErr
		}
	}
	return 0, lastErr
}

// dropNonParents discards body assertions outside the head variable's
// conditioning parents. Only sound once Bayes and marginalization have
// been ruled out.
func (e *Evaluator) dropNonParents(ctx context.Context, head, body []model.Assertion, given []string, inProgress map[string]bool) (float64, error) {
	givenSet := make(map[string]bool, len(given))
	for _, name := range given {
		givenSet[name] = true
	}
	var kept []model.Assertion
	for _, a := range body {
		if givenSet[model.BaseName(a.Variable)] {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(body) {
		return 0, fmt.Errorf("%w: nothing to drop in %s", internalerr.ErrIndeterminable, model.QueryKey(head, body))
	}
	return e.evaluate(ctx, head, kept, inProgress)
}

// descendantInBody returns the lexicographically smallest body assertion
// whose variable descends from name.
func (e *Evaluator) descendantInBody(name string, body []model.Assertion) (model.Assertion, bool) {
	descendants := e.g.Descendants(model.BaseName(name))
	var found []model.Assertion
	for _, a := range body {
		if descendants[model.BaseName(a.Variable)] {
			found = append(found, a)
		}
	}
	if len(found) == 0 {
		return model.Assertion{}, false
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Variable < found[j].Variable })
	return found[0], true
}

// descendantFirst orders assertions so that no variable precedes one of
// its descendants; ties break lexicographically.
func (e *Evaluator) descendantFirst(assertions []model.Assertion) []model.Assertion {
	depth := make(map[string]int, len(assertions))
	for i, name := range e.m.TopologicalOrder() {
		depth[name] = i
	}
	ordered := make([]model.Assertion, len(assertions))
	copy(ordered, assertions)
	sort.Slice(ordered, func(i, j int) bool {
		di := depth[model.BaseName(ordered[i].Variable)]
		dj := depth[model.BaseName(ordered[j].Variable)]
		if di != dj {
			return di > dj
		}
		return ordered[i].Variable < ordered[j].Variable
	})
	return ordered
}

func matchesTable(given []string, body []model.Assertion) bool {
	if len(given) != len(model.Names(body)) {
		return false
	}
	names := make(map[string]bool, len(body))
	for _, a := range body {
		names[model.BaseName(a.Variable)] = true
	}
	for _, name := range given {
		if !names[name] {
			return false
		}
	}
	return true
}

func assignment(assertions []model.Assertion) map[string]string {
	values := make(map[string]string, len(assertions))
	for _, a := range assertions {
		values[model.BaseName(a.Variable)] = a.Value
	}
	return values
}

func missingParents(given []string, head, body []model.Assertion) []string {
	asserted := make(map[string]bool, len(head)+len(body))
	for _, a := range head {
		asserted[model.BaseName(a.Variable)] = true
	}
	for _, a := range body {
		asserted[model.BaseName(a.Variable)] = true
	}
	var missing []string
	for _, name := range given {
		if !asserted[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func containsAll(body, head []model.Assertion) bool {
	present := make(map[string]string, len(body))
	for _, a := range body {
		present[a.Variable] = a.Value
	}
	for _, a := range head {
		if value, ok := present[a.Variable]; !ok || value != a.Value {
			return false
		}
	}
	return true
}

func without(assertions []model.Assertion, drop model.Assertion) []model.Assertion {
	var out []model.Assertion
	for _, a := range assertions {
		if a.Variable == drop.Variable && a.Value == drop.Value && a.Do == drop.Do {
			continue
		}
		out = append(out, a)
	}
	return out
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
