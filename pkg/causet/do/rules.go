package do

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cognicore/causet/pkg/causet/model"
)

// nameCounter hands out globally fresh primed names within one search.
type nameCounter struct {
	counts map[string]int
}

func newNameCounter() *nameCounter {
	return &nameCounter{counts: make(map[string]int)}
}

func (c *nameCounter) fresh(base string) string {
	c.counts[base]++
	return base + strings.Repeat("'", c.counts[base])
}

// candidate is one legal rewrite of a probability term.
type candidate struct {
	expr *Expr
	note string
}

// probRewrites returns every rule application available at one
// probability term, in a fixed order: rule 1 (observation deletion,
// then insertion from scope), rule 2 (both exchange directions),
// rule 3 (intervention deletion), then marginalization expansion.
func (s *Searcher) probRewrites(p *Expr, scope []model.Assertion) []candidate {
	var out []candidate

	var observations, interventions []model.Assertion
	for _, a := range p.Body {
		if a.Do {
			interventions = append(interventions, a)
		} else {
			observations = append(observations, a)
		}
	}

	y := model.Names(p.Head)

	// Rule 1: P(Y | do(X), Z, W) = P(Y | do(X), Z) when Y ⊥ W | X, Z
	// in the graph with X's incoming edges severed.
	for _, w := range nonEmptySubsets(observations) {
		rest := subtract(observations, w)
		g := s.graph.Copy()
		g.DisableIncoming(model.Names(interventions)...)
		cond := union(model.Names(interventions), model.Names(rest))
		if g.DSeparated(y, model.Names(w), cond) {
			out = append(out, candidate{
				expr: Prob(p.Head, concat(interventions, rest)),
				note: fmt.Sprintf("rule 1: delete %s from %s", describe(w), p.String()),
			})
		}
	}
	for _, a := range insertable(scope, p) {
		g := s.graph.Copy()
		g.DisableIncoming(model.Names(interventions)...)
		cond := union(model.Names(interventions), model.Names(observations))
		if g.DSeparated(y, []string{model.BaseName(a.Variable)}, cond) {
			out = append(out, candidate{
				expr: Prob(p.Head, append(concat(interventions, observations), a)),
				note: fmt.Sprintf("rule 1: insert %s into %s", a, p.String()),
			})
		}
	}

	// Rule 2: P(Y | do(X), do(W), Z) = P(Y | do(X), W, Z) when
	// Y ⊥ W | X, Z in the graph with X's incoming and W's outgoing
	// edges severed. The exchange runs in both directions.
	for _, w := range nonEmptySubsets(interventions) {
		x := subtract(interventions, w)
		g := s.graph.Copy()
		g.DisableIncoming(model.Names(x)...)
		g.DisableOutgoing(model.Names(w)...)
		cond := union(model.Names(x), model.Names(observations))
		if g.DSeparated(y, model.Names(w), cond) {
			out = append(out, candidate{
				expr: Prob(p.Head, concat(x, concat(observations, asObservations(w)))),
				note: fmt.Sprintf("rule 2: observe %s in %s", describe(w), p.String()),
			})
		}
	}
	for _, w := range nonEmptySubsets(observations) {
		rest := subtract(observations, w)
		g := s.graph.Copy()
		g.DisableIncoming(model.Names(interventions)...)
		g.DisableOutgoing(model.Names(w)...)
		cond := union(model.Names(interventions), model.Names(rest))
		if g.DSeparated(y, model.Names(w), cond) {
			out = append(out, candidate{
				expr: Prob(p.Head, concat(interventions, concat(rest, asInterventions(w)))),
				note: fmt.Sprintf("rule 2: intervene %s in %s", describe(w), p.String()),
			})
		}
	}

	// Rule 3: P(Y | do(X), do(W), Z) = P(Y | do(X), Z) when
	// Y ⊥ W | X, Z in the graph with X's incoming edges severed and,
	// additionally, the incoming edges of W \ An(Z) severed — An(Z)
	// taken in the X-severed graph, never the unrestricted one.
	for _, w := range nonEmptySubsets(interventions) {
		x := subtract(interventions, w)
		severed := s.graph.Copy()
		severed.DisableIncoming(model.Names(x)...)
		ancestorsOfZ := severed.AncestorsOfSet(model.Names(observations))
		var wRestricted []string
		for _, name := range model.Names(w) {
			if !ancestorsOfZ[name] {
				wRestricted = append(wRestricted, name)
			}
		}
		severed.DisableIncoming(wRestricted...)
		cond := union(model.Names(x), model.Names(observations))
		if severed.DSeparated(y, model.Names(w), cond) {
			out = append(out, candidate{
				expr: Prob(p.Head, concat(x, observations)),
				note: fmt.Sprintf("rule 3: delete %s from %s", describe(w), p.String()),
			})
		}
	}

	// Marginalization: P(Y | B) = Σ_V P(Y | V, B) * P(V | B), V drawn
	// from the unasserted observable ancestor closure of the term.
	for _, v := range s.expansionCandidates(p) {
		bound := s.names.fresh(v)
		symbolic := model.Assertion{Variable: bound, Value: SymbolValue(bound)}
		out = append(out, candidate{
			expr: Sum(bound, Product(
				Prob(p.Head, append(append([]model.Assertion(nil), p.Body...), symbolic)),
				Prob([]model.Assertion{symbolic}, p.Body),
			)),
			note: fmt.Sprintf("expand: sum %s out of %s", bound, p.String()),
		})
	}

	return out
}

// expansionCandidates lists the observable variables in the ancestor
// closure of the term's variables that the term does not yet assert.
func (s *Searcher) expansionCandidates(p *Expr) []string {
	asserted := make(map[string]bool)
	for _, a := range p.Head {
		asserted[model.BaseName(a.Variable)] = true
	}
	for _, a := range p.Body {
		asserted[model.BaseName(a.Variable)] = true
	}

	closure := make(map[string]bool)
	for name := range asserted {
		closure[name] = true
		for ancestor := range s.graph.Ancestors(name) {
			closure[ancestor] = true
		}
	}

	var out []string
	for name := range closure {
		if asserted[name] || s.model.IsLatent(name) {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// insertable lists scope assertions whose base variable the term does
// not assert.
func insertable(scope []model.Assertion, p *Expr) []model.Assertion {
	asserted := make(map[string]bool)
	for _, a := range p.Head {
		asserted[model.BaseName(a.Variable)] = true
	}
	for _, a := range p.Body {
		asserted[model.BaseName(a.Variable)] = true
	}
	var out []model.Assertion
	seen := make(map[string]bool)
	for _, a := range model.SortAssertions(scope) {
		base := model.BaseName(a.Variable)
		if asserted[base] || seen[base] {
			continue
		}
		seen[base] = true
		out = append(out, a)
	}
	return out
}

// nonEmptySubsets enumerates the non-empty subsets of a sorted
// assertion list, singletons first, in a fixed order.
func nonEmptySubsets(assertions []model.Assertion) [][]model.Assertion {
	sorted := model.SortAssertions(assertions)
	n := len(sorted)
	var out [][]model.Assertion
	for size := 1; size <= n; size++ {
		var build func(start int, current []model.Assertion)
		build = func(start int, current []model.Assertion) {
			if len(current) == size {
				out = append(out, append([]model.Assertion(nil), current...))
				return
			}
			for i := start; i <= n-(size-len(current)); i++ {
				build(i+1, append(current, sorted[i]))
			}
		}
		build(0, nil)
	}
	return out
}

func subtract(assertions, remove []model.Assertion) []model.Assertion {
	drop := make(map[string]bool, len(remove))
	for _, a := range remove {
		drop[a.Variable] = true
	}
	var out []model.Assertion
	for _, a := range assertions {
		if !drop[a.Variable] {
			out = append(out, a)
		}
	}
	return out
}

func concat(a, b []model.Assertion) []model.Assertion {
	out := make([]model.Assertion, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, v := range append(append([]string(nil), a...), b...) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func asObservations(assertions []model.Assertion) []model.Assertion {
	out := make([]model.Assertion, len(assertions))
	for i, a := range assertions {
		out[i] = model.Assertion{Variable: a.Variable, Value: a.Value}
	}
	return out
}

func asInterventions(assertions []model.Assertion) []model.Assertion {
	out := make([]model.Assertion, len(assertions))
	for i, a := range assertions {
		out[i] = model.Assertion{Variable: a.Variable, Value: a.Value, Do: true}
	}
	return out
}

func describe(assertions []model.Assertion) string {
	parts := make([]string, len(assertions))
	for i, a := range model.SortAssertions(assertions) {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}
