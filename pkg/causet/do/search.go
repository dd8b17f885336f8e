package do

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/causet/pkg/causet/graph"
	"github.com/cognicore/causet/pkg/causet/internalerr"
	"github.com/cognicore/causet/pkg/causet/model"
)

// Default search limits.
const (
	DefaultDepthBound = 10
	DefaultStepBudget = 250000
)

// Options configures a Searcher.
type Options struct {
	Model *model.Model
	// Graph defaults to the model's graph.
	Graph      *graph.Graph
	DepthBound int
	StepBudget int
	// RNG feeds the random part of derivation IDs (seed 0 when nil);
	// the time part of each ID comes from the clock.
	RNG *rand.Rand
}

// Searcher rewrites an interventional query into a do-free expression
// by iterative-deepening search over rule applications. A Searcher
// carries per-search state and is not safe for concurrent use.
type Searcher struct {
	model      *model.Model
	graph      *graph.Graph
	depthBound int
	stepBudget int
	entropy    *ulid.MonotonicEntropy

	names *nameCounter
	scope []model.Assertion
	steps int
}

// NewSearcher creates a Searcher over one model.
func NewSearcher(opts Options) *Searcher {
	g := opts.Graph
	if g == nil {
		g = graph.New(opts.Model)
	}
	depth := opts.DepthBound
	if depth <= 0 {
		depth = DefaultDepthBound
	}
	budget := opts.StepBudget
	if budget <= 0 {
		budget = DefaultStepBudget
	}
	rng := opts.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(0))
	}
	return &Searcher{
		model:      opts.Model,
		graph:      g,
		depthBound: depth,
		stepBudget: budget,
		entropy:    ulid.Monotonic(rng, 0),
	}
}

// Derivation records how a search arrived at its expression.
type Derivation struct {
	ID    string
	Query string
	Steps []string
}

// Result is a successful identification: the do-free expression and the
// derivation that produced it.
type Result struct {
	Expr       *Expr
	Derivation Derivation
}

// rewrite pairs a successor expression with the rule note that made it.
type rewrite struct {
	expr *Expr
	note string
}

type found struct {
	expr  *Expr
	trail []string
}

// Identify searches for a do-free expression equivalent to
// P(head | body). On exhaustion it returns ErrDoCalculusFailed along
// with the best partial expression seen.
func (s *Searcher) Identify(ctx context.Context, head, body []model.Assertion) (*Result, error) {
	root := Prob(head, body)
	query := root.String()

	s.names = newNameCounter()
	s.steps = 0
	s.scope = nil
	for _, a := range body {
		if !a.Do {
			s.scope = append(s.scope, a)
		}
	}

	if !root.HasInterventions() {
		return s.result(query, root, nil), nil
	}

	var bestPartial *Expr
	exhausted := false

	for depth := 1; depth <= s.depthBound && !exhausted; depth++ {
		// Fresh names restart with each deepening; every expression
		// tree is rebuilt from the root, so no stale binding survives.
		s.names = newNameCounter()
		visited := make(map[string]int)
		var successes []found

		var dfs func(e *Expr, d int, trail []string)
		dfs = func(e *Expr, d int, trail []string) {
			if exhausted {
				return
			}
			if ctx.Err() != nil {
				exhausted = true
				return
			}
			key := e.Canonical()
			if prev, ok := visited[key]; ok && prev <= d {
				return
			}
			visited[key] = d

			if !e.HasInterventions() {
				successes = append(successes, found{expr: e, trail: append([]string(nil), trail...)})
				return
			}
			if bestPartial == nil || countInterventions(e) < countInterventions(bestPartial) {
				bestPartial = e
			}
			if d == depth {
				return
			}
			for _, next := range s.successors(e) {
				s.steps++
				if s.steps > s.stepBudget {
					exhausted = true
					return
				}
				dfs(next.expr, d+1, append(trail, next.note))
			}
		}

		dfs(root, 0, nil)

		if len(successes) > 0 {
			best := successes[0]
			for _, other := range successes[1:] {
				if better(other.expr, best.expr) {
					best = other
				}
			}
			return s.result(query, best.expr, best.trail), nil
		}
	}

	err := fmt.Errorf("%w: %s within depth %d and %d steps",
		internalerr.ErrDoCalculusFailed, query, s.depthBound, s.stepBudget)
	if bestPartial != nil {
		return &Result{Expr: bestPartial, Derivation: s.derivation(query, nil)}, err
	}
	return nil, err
}

// better orders success candidates by size, then canonical form.
func better(a, b *Expr) bool {
	if a.Size() != b.Size() {
		return a.Size() < b.Size()
	}
	return a.Canonical() < b.Canonical()
}

func countInterventions(e *Expr) int {
	switch e.Kind {
	case KindProb:
		n := 0
		for _, a := range e.Body {
			if a.Do {
				n++
			}
		}
		return n
	case KindProduct:
		n := 0
		for _, f := range e.Factors {
			n += countInterventions(f)
		}
		return n
	case KindSum:
		return countInterventions(e.Inner)
	}
	return 0
}

func (s *Searcher) result(query string, expr *Expr, trail []string) *Result {
	return &Result{Expr: expr.Normalize(), Derivation: s.derivation(query, trail)}
}

func (s *Searcher) derivation(query string, trail []string) Derivation {
	return Derivation{
		ID:    ulid.MustNew(ulid.Now(), s.entropy).String(),
		Query: query,
		Steps: trail,
	}
}

// successors generates every legal one-rule rewrite of the expression,
// rewriting each intervention-bearing probability term in place.
func (s *Searcher) successors(root *Expr) []rewrite {
	var out []rewrite

	var walk func(node *Expr, scope []model.Assertion, rebuild func(*Expr) *Expr)
	walk = func(node *Expr, scope []model.Assertion, rebuild func(*Expr) *Expr) {
		switch node.Kind {
		case KindProb:
			if !node.HasInterventions() {
				return
			}
			for _, c := range s.probRewrites(node, scope) {
				out = append(out, rewrite{expr: rebuild(c.expr).Normalize(), note: c.note})
			}
		case KindProduct:
			for i := range node.Factors {
				i := i
				walk(node.Factors[i], scope, func(r *Expr) *Expr {
					factors := make([]*Expr, len(node.Factors))
					copy(factors, node.Factors)
					factors[i] = r
					return rebuild(Product(factors...))
				})
			}
		case KindSum:
			symbolic := model.Assertion{Variable: node.Bound, Value: SymbolValue(node.Bound)}
			inner := append(append([]model.Assertion(nil), scope...), symbolic)
			walk(node.Inner, inner, func(r *Expr) *Expr {
				return rebuild(Sum(node.Bound, r))
			})
		}
	}

	walk(root, s.scope, func(r *Expr) *Expr { return r })
	return out
}
