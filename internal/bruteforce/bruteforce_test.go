package bruteforce

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cognicore/causet/pkg/causet/eval"
	"github.com/cognicore/causet/pkg/causet/internalerr"
	"github.com/cognicore/causet/pkg/causet/model"
)

func chainModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.FromSpec(model.Spec{
		Model: map[string]model.VarSpec{
			"Y": {
				Outcomes: []string{"y", "~y"},
				Table:    [][]interface{}{{"y", 0.7}, {"~y", 0.3}},
			},
			"X": {
				Outcomes: []string{"x", "~x"},
				Parents:  []string{"Y"},
				Table: [][]interface{}{
					{"x", "y", 0.9}, {"~x", "y", 0.1},
					{"x", "~y", 0.75}, {"~x", "~y", 0.25},
				},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestObservationalParity(t *testing.T) {
	m := chainModel(t)
	ev := eval.New(eval.Options{Model: m})
	ctx := context.Background()

	cases := []struct {
		head, body []model.Assertion
	}{
		{[]model.Assertion{model.Observe("X", "x")}, nil},
		{[]model.Assertion{model.Observe("X", "x")}, []model.Assertion{model.Observe("Y", "y")}},
		{[]model.Assertion{model.Observe("Y", "y")}, []model.Assertion{model.Observe("X", "x")}},
		{[]model.Assertion{model.Observe("X", "x"), model.Observe("Y", "y")}, nil},
	}
	for _, tc := range cases {
		exact, err := Query(m, tc.head, tc.body)
		if err != nil {
			t.Fatal(err)
		}
		engine, err := ev.Probability(ctx, tc.head, tc.body)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(exact-engine) > 1e-9 {
			t.Errorf("%s: brute force %v, evaluator %v",
				model.QueryKey(tc.head, tc.body), exact, engine)
		}
	}
}

func TestInterventionSeversParent(t *testing.T) {
	m := chainModel(t)

	// Forcing X says nothing about its former parent:
	// P(Y = y | do(X = x)) stays the prior 0.7.
	p, err := Query(m,
		[]model.Assertion{model.Observe("Y", "y")},
		[]model.Assertion{model.Intervene("X", "x")})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(p-0.7) > 1e-12 {
		t.Errorf("P(y | do(x)) = %v, want 0.7", p)
	}

	// Observing X does move Y.
	q, err := Query(m,
		[]model.Assertion{model.Observe("Y", "y")},
		[]model.Assertion{model.Observe("X", "x")})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(q-0.9*0.7/0.855) > 1e-9 {
		t.Errorf("P(y | x) = %v", q)
	}
}

func TestZeroMassConditioning(t *testing.T) {
	m := chainModel(t)
	_, err := Query(m,
		[]model.Assertion{model.Observe("Y", "y")},
		[]model.Assertion{model.Observe("X", "x"), model.Observe("X", "~x")})
	if err == nil {
		t.Fatal("contradictory conditioning must fail")
	}
	if !errors.Is(err, internalerr.ErrZeroProbability) {
		t.Errorf("want ErrZeroProbability, got %v", err)
	}
}

func TestStructuralLatentUnsupported(t *testing.T) {
	m, err := model.FromSpec(model.Spec{
		Model: map[string]model.VarSpec{
			"U": {Outcomes: []string{"u", "~u"}},
			"X": {
				Outcomes: []string{"x", "~x"},
				Parents:  []string{"U"},
				Table:    [][]interface{}{{"x", 0.6}, {"~x", 0.4}},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = Query(m, []model.Assertion{model.Observe("X", "x")}, nil)
	if err == nil {
		t.Fatal("unparameterized latent must fail brute force")
	}
}
