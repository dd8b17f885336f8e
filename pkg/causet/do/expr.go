// Package do holds the symbolic side of the engine: an expression
// algebra over probability terms and the three-rule rewrite search that
// turns interventional queries into do-free expressions.
package do

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cognicore/causet/pkg/causet/model"
)

// Kind tags the expression variants.
type Kind int

const (
	KindProb Kind = iota
	KindProduct
	KindSum
	KindLiteral
)

// Expr is a symbolic expression: a conditional probability term, a
// product of factors, a sum over the outcomes of one bound variable, or
// a numeric literal. Exactly the fields of the tagged Kind are set.
type Expr struct {
	Kind Kind

	Head []model.Assertion
	Body []model.Assertion

	Factors []*Expr

	Bound string
	Inner *Expr

	Value float64
}

// Prob builds an atomic conditional probability term.
func Prob(head, body []model.Assertion) *Expr {
	return &Expr{
		Kind: KindProb,
		Head: model.SortAssertions(head),
		Body: model.SortAssertions(body),
	}
}

// Product builds a product of factors.
func Product(factors ...*Expr) *Expr {
	return &Expr{Kind: KindProduct, Factors: factors}
}

// Sum builds a summation of inner over every outcome of the bound
// variable's base variable.
func Sum(bound string, inner *Expr) *Expr {
	return &Expr{Kind: KindSum, Bound: bound, Inner: inner}
}

// Literal builds a fixed numeric factor.
func Literal(value float64) *Expr {
	return &Expr{Kind: KindLiteral, Value: value}
}

// SymbolValue is the placeholder outcome a bound variable carries until
// substitution: the lowercased base name with the same prime marks.
func SymbolValue(bound string) string {
	base := model.BaseName(bound)
	return strings.ToLower(base) + bound[len(base):]
}

// String renders the expression.
func (e *Expr) String() string {
	switch e.Kind {
	case KindProb:
		var b strings.Builder
		b.WriteString("P(")
		writeJoined(&b, e.Head)
		if len(e.Body) > 0 {
			b.WriteString(" | ")
			writeJoined(&b, e.Body)
		}
		b.WriteString(")")
		return b.String()
	case KindProduct:
		parts := make([]string, len(e.Factors))
		for i, f := range e.Factors {
			if f.Kind == KindSum {
				parts[i] = "(" + f.String() + ")"
			} else {
				parts[i] = f.String()
			}
		}
		return strings.Join(parts, " * ")
	case KindSum:
		return fmt.Sprintf("Σ_%s %s", e.Bound, e.Inner.String())
	case KindLiteral:
		return fmt.Sprintf("%g", e.Value)
	}
	return ""
}

func writeJoined(b *strings.Builder, assertions []model.Assertion) {
	for i, a := range assertions {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
}

// Canonical is the deduplication form: like String, but product factors
// are ordered by their own canonical forms so commuted products collide.
func (e *Expr) Canonical() string {
	switch e.Kind {
	case KindProduct:
		parts := make([]string, len(e.Factors))
		for i, f := range e.Factors {
			parts[i] = f.Canonical()
		}
		sort.Strings(parts)
		return "(" + strings.Join(parts, " * ") + ")"
	case KindSum:
		return fmt.Sprintf("Σ_%s (%s)", e.Bound, e.Inner.Canonical())
	default:
		return e.String()
	}
}

// Equal is structural equality modulo product commutation.
func (e *Expr) Equal(other *Expr) bool {
	return e.Canonical() == other.Canonical()
}

// Size counts expression nodes; the search breaks ties on it.
func (e *Expr) Size() int {
	switch e.Kind {
	case KindProduct:
		total := 1
		for _, f := range e.Factors {
			total += f.Size()
		}
		return total
	case KindSum:
		return 1 + e.Inner.Size()
	default:
		return 1
	}
}

// HasInterventions reports whether any probability term still carries a
// do-assertion.
func (e *Expr) HasInterventions() bool {
	switch e.Kind {
	case KindProb:
		for _, a := range e.Body {
			if a.Do {
				return true
			}
		}
		for _, a := range e.Head {
			if a.Do {
				return true
			}
		}
		return false
	case KindProduct:
		for _, f := range e.Factors {
			if f.HasInterventions() {
				return true
			}
		}
		return false
	case KindSum:
		return e.Inner.HasInterventions()
	}
	return false
}

// Substitute replaces every assertion on the bound variable with a
// concrete outcome of its base variable.
func (e *Expr) Substitute(bound, outcome string) *Expr {
	switch e.Kind {
	case KindProb:
		return Prob(substituteAssertions(e.Head, bound, outcome), substituteAssertions(e.Body, bound, outcome))
	case KindProduct:
		factors := make([]*Expr, len(e.Factors))
		for i, f := range e.Factors {
			factors[i] = f.Substitute(bound, outcome)
		}
		return Product(factors...)
	case KindSum:
		if e.Bound == bound {
			return e
		}
		return Sum(e.Bound, e.Inner.Substitute(bound, outcome))
	default:
		return e
	}
}

func substituteAssertions(assertions []model.Assertion, bound, outcome string) []model.Assertion {
	out := make([]model.Assertion, len(assertions))
	for i, a := range assertions {
		if a.Variable == bound {
			out[i] = model.Assertion{Variable: model.BaseName(bound), Value: outcome, Do: a.Do}
		} else {
			out[i] = a
		}
	}
	return out
}

// Normalize flattens nested products, folds literal factors, and
// collapses sums over a literal zero. No other simplification happens;
// semantic rewrites belong to the search.
func (e *Expr) Normalize() *Expr {
	switch e.Kind {
	case KindProduct:
		var factors []*Expr
		literal := 1.0
		sawLiteral := false
		for _, f := range e.Factors {
			n := f.Normalize()
			switch n.Kind {
			case KindProduct:
				factors = append(factors, n.Factors...)
			case KindLiteral:
				literal *= n.Value
				sawLiteral = true
			default:
				factors = append(factors, n)
			}
		}
		if sawLiteral && (literal != 1.0 || len(factors) == 0) {
			factors = append([]*Expr{Literal(literal)}, factors...)
		}
		if len(factors) == 1 {
			return factors[0]
		}
		return Product(factors...)
	case KindSum:
		inner := e.Inner.Normalize()
		if inner.Kind == KindLiteral && inner.Value == 0 {
			return Literal(0)
		}
		return Sum(e.Bound, inner)
	default:
		return e
	}
}

// ProbFunc evaluates one do-free probability term.
type ProbFunc func(ctx context.Context, head, body []model.Assertion) (float64, error)

// Evaluate computes the numeric value of a do-free expression by
// expanding sums over outcomes and handing each probability term to
// prob.
func Evaluate(ctx context.Context, e *Expr, m *model.Model, prob ProbFunc) (float64, error) {
	switch e.Kind {
	case KindLiteral:
		return e.Value, nil
	case KindProb:
		return prob(ctx, e.Head, e.Body)
	case KindProduct:
		result := 1.0
		for _, f := range e.Factors {
			v, err := Evaluate(ctx, f, m, prob)
			if err != nil {
				return 0, err
			}
			result *= v
		}
		return result, nil
	case KindSum:
		total := 0.0
		for _, outcome := range m.Outcomes(e.Bound) {
			v, err := Evaluate(ctx, e.Inner.Substitute(e.Bound, outcome), m, prob)
			if err != nil {
				return 0, err
			}
			total += v
		}
		return total, nil
	}
	return 0, fmt.Errorf("unknown expression kind %d", e.Kind)
}
