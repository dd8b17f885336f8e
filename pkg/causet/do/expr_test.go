package do

import (
	"context"
	"math"
	"testing"

	"github.com/cognicore/causet/pkg/causet/model"
)

func obs(v, o string) model.Assertion                { return model.Observe(v, o) }
func act(v, o string) model.Assertion                { return model.Intervene(v, o) }
func asserts(a ...model.Assertion) []model.Assertion { return a }

func TestStringRendering(t *testing.T) {
	e := Prob(asserts(obs("Y", "y")), asserts(act("X", "x"), obs("Z", "z")))
	if got := e.String(); got != "P(Y = y | do(X = x), Z = z)" {
		t.Errorf("String() = %q", got)
	}

	s := Sum("Z'", Product(Prob(asserts(obs("Y", "y")), asserts(obs("Z'", "z'"))), Literal(0.5)))
	if got := s.String(); got != "Σ_Z' P(Y = y | Z' = z') * 0.5" {
		t.Errorf("String() = %q", got)
	}
}

func TestCanonicalCommutesProducts(t *testing.T) {
	a := Product(Literal(0.5), Prob(asserts(obs("Y", "y")), nil))
	b := Product(Prob(asserts(obs("Y", "y")), nil), Literal(0.5))
	if !a.Equal(b) {
		t.Errorf("commuted products should be equal: %q vs %q", a.Canonical(), b.Canonical())
	}
}

func TestNormalizeFlattensProducts(t *testing.T) {
	inner := Product(Prob(asserts(obs("A", "a")), nil), Prob(asserts(obs("B", "b")), nil))
	outer := Product(inner, Prob(asserts(obs("C", "c")), nil))

	n := outer.Normalize()
	if n.Kind != KindProduct || len(n.Factors) != 3 {
		t.Fatalf("Normalize() = %q", n.String())
	}
	for _, f := range n.Factors {
		if f.Kind != KindProb {
			t.Errorf("nested product survived: %q", n.String())
		}
	}
}

func TestNormalizeFoldsLiterals(t *testing.T) {
	e := Product(Literal(0.5), Literal(0.25), Prob(asserts(obs("A", "a")), nil))
	n := e.Normalize()
	if n.Kind != KindProduct || len(n.Factors) != 2 {
		t.Fatalf("Normalize() = %q", n.String())
	}
	if n.Factors[0].Kind != KindLiteral || n.Factors[0].Value != 0.125 {
		t.Errorf("literals not folded: %q", n.String())
	}

	// A lone factor of one disappears into the remaining expression.
	one := Product(Literal(1.0), Prob(asserts(obs("A", "a")), nil))
	if got := one.Normalize(); got.Kind != KindProb {
		t.Errorf("unit literal survived: %q", got.String())
	}
}

func TestNormalizeCollapsesZeroSum(t *testing.T) {
	e := Sum("X'", Literal(0))
	if got := e.Normalize(); got.Kind != KindLiteral || got.Value != 0 {
		t.Errorf("Normalize() = %q", got.String())
	}
}

func TestSubstituteRewritesToBase(t *testing.T) {
	e := Sum("X'", Product(
		Prob(asserts(obs("Y", "y")), asserts(obs("X'", "x'"), obs("Z", "z"))),
		Prob(asserts(obs("X'", "x'")), nil),
	))

	sub := e.Inner.Substitute("X'", "x")
	first := sub.Factors[0]
	if got := first.String(); got != "P(Y = y | X = x, Z = z)" {
		t.Errorf("Substitute() = %q", got)
	}
	second := sub.Factors[1]
	if got := second.String(); got != "P(X = x)" {
		t.Errorf("Substitute() = %q", got)
	}
}

func TestSubstituteRespectsShadowing(t *testing.T) {
	inner := Sum("X'", Prob(asserts(obs("X'", "x'")), nil))
	if got := inner.Substitute("X'", "x"); got.Inner.String() != "P(X' = x')" {
		t.Errorf("shadowed binding rewritten: %q", got.String())
	}
}

func TestHasInterventions(t *testing.T) {
	free := Sum("Z'", Prob(asserts(obs("Y", "y")), asserts(obs("Z'", "z'"))))
	if free.HasInterventions() {
		t.Error("observation-only expression flagged")
	}
	bound := Product(free, Prob(asserts(obs("Y", "y")), asserts(act("X", "x"))))
	if !bound.HasInterventions() {
		t.Error("do-term missed")
	}
}

func TestSymbolValue(t *testing.T) {
	if got := SymbolValue("X''"); got != "x''" {
		t.Errorf("SymbolValue(X'') = %q", got)
	}
}

func TestEvaluateExpandsSums(t *testing.T) {
	m, err := model.FromSpec(model.Spec{
		Model: map[string]model.VarSpec{
			"Z": {
				Outcomes: []string{"z", "~z"},
				Table:    [][]interface{}{{"z", 0.6}, {"~z", 0.4}},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	// Σ_z 0.5 * P(Z = z) over both outcomes is 0.5.
	e := Sum("Z'", Product(Literal(0.5), Prob(asserts(obs("Z'", "z'")), nil)))

	calls := 0
	prob := func(ctx context.Context, head, body []model.Assertion) (float64, error) {
		calls++
		if head[0].Variable != "Z" {
			t.Errorf("substitution left %q", head[0].Variable)
		}
		if head[0].Value == "z" {
			return 0.6, nil
		}
		return 0.4, nil
	}

	got, err := Evaluate(context.Background(), e, m, prob)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-0.5) > 1e-12 {
		t.Errorf("Evaluate = %v, want 0.5", got)
	}
	if calls != 2 {
		t.Errorf("probability term evaluated %d times, want 2", calls)
	}
}
