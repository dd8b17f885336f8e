package model

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/cognicore/causet/pkg/causet/internalerr"
)

func binary(name string, parents []string, rows [][]interface{}) *Variable {
	v := &Variable{
		Name:     name,
		Outcomes: []string{lower(name), "~" + lower(name)},
		Parents:  parents,
	}
	if rows != nil {
		spec := VarSpec{Outcomes: v.Outcomes, Parents: parents, Table: rows}
		table, err := parseTable(name, spec)
		if err != nil {
			panic(err)
		}
		v.Table = table
	}
	return v
}

func lower(name string) string {
	return map[string]string{
		"A": "a", "B": "b", "C": "c", "D": "d",
		"X": "x", "Y": "y", "Z": "z", "U": "u",
	}[name]
}

func chainModel(t *testing.T) *Model {
	t.Helper()
	m, err := New("chain", []*Variable{
		binary("Y", nil, [][]interface{}{{"y", 0.7}, {"~y", 0.3}}),
		binary("X", []string{"Y"}, [][]interface{}{
			{"x", "y", 0.9}, {"~x", "y", 0.1},
			{"x", "~y", 0.75}, {"~x", "~y", 0.25},
		}),
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestTopologicalOrderLexicographic(t *testing.T) {
	// Several valid orders exist; the smallest one must come back.
	m, err := New("", []*Variable{
		binary("D", []string{"A", "B"}, [][]interface{}{
			{"d", "a", "b", 0.5}, {"~d", "a", "b", 0.5},
			{"d", "a", "~b", 0.5}, {"~d", "a", "~b", 0.5},
			{"d", "~a", "b", 0.5}, {"~d", "~a", "b", 0.5},
			{"d", "~a", "~b", 0.5}, {"~d", "~a", "~b", 0.5},
		}),
		binary("C", []string{"A"}, [][]interface{}{
			{"c", "a", 0.2}, {"~c", "a", 0.8},
			{"c", "~a", 0.6}, {"~c", "~a", 0.4},
		}),
		binary("B", nil, [][]interface{}{{"b", 0.5}, {"~b", 0.5}}),
		binary("A", nil, [][]interface{}{{"a", 0.5}, {"~a", 0.5}}),
	}, 0)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"A", "B", "C", "D"}
	if got := m.TopologicalOrder(); !reflect.DeepEqual(got, want) {
		t.Errorf("TopologicalOrder() = %v, want %v", got, want)
	}
}

func TestCyclicGraphRejected(t *testing.T) {
	_, err := New("", []*Variable{
		binary("A", []string{"B"}, [][]interface{}{
			{"a", "b", 0.5}, {"~a", "b", 0.5},
			{"a", "~b", 0.5}, {"~a", "~b", 0.5},
		}),
		binary("B", []string{"A"}, [][]interface{}{
			{"b", "a", 0.5}, {"~b", "a", 0.5},
			{"b", "~a", 0.5}, {"~b", "~a", 0.5},
		}),
	}, 0)
	if !errors.Is(err, internalerr.ErrCyclicGraph) {
		t.Errorf("want ErrCyclicGraph, got %v", err)
	}
}

func TestUnknownParentRejected(t *testing.T) {
	_, err := New("", []*Variable{
		binary("A", []string{"Nope"}, nil),
	}, 0)
	if !errors.Is(err, internalerr.ErrMalformedModel) {
		t.Errorf("want ErrMalformedModel, got %v", err)
	}
}

func TestDuplicateVariableRejected(t *testing.T) {
	_, err := New("", []*Variable{
		binary("A", nil, [][]interface{}{{"a", 0.5}, {"~a", 0.5}}),
		binary("A", nil, [][]interface{}{{"a", 0.5}, {"~a", 0.5}}),
	}, 0)
	if !errors.Is(err, internalerr.ErrMalformedModel) {
		t.Errorf("want ErrMalformedModel, got %v", err)
	}
}

func TestDuplicateOutcomeRejected(t *testing.T) {
	_, err := New("", []*Variable{
		{Name: "A", Outcomes: []string{"a", "a"}},
	}, 0)
	if !errors.Is(err, internalerr.ErrMalformedModel) {
		t.Errorf("want ErrMalformedModel, got %v", err)
	}
}

func TestLatentParentOrderingRejected(t *testing.T) {
	// U is latent and must not precede the observable parent B.
	_, err := New("", []*Variable{
		{Name: "U", Outcomes: []string{"u", "~u"}},
		binary("B", nil, [][]interface{}{{"b", 0.5}, {"~b", 0.5}}),
		{Name: "A", Outcomes: []string{"a", "~a"}, Parents: []string{"U", "B"}},
	}, 0)
	if !errors.Is(err, internalerr.ErrMalformedModel) {
		t.Errorf("want ErrMalformedModel, got %v", err)
	}
}

func TestTableMissingRowRejected(t *testing.T) {
	_, err := New("", []*Variable{
		binary("Y", nil, [][]interface{}{{"y", 0.7}, {"~y", 0.3}}),
		binary("X", []string{"Y"}, [][]interface{}{
			{"x", "y", 0.9}, {"~x", "y", 0.1},
			{"x", "~y", 0.75},
		}),
	}, 0)
	if !errors.Is(err, internalerr.ErrMalformedTable) {
		t.Errorf("want ErrMalformedTable, got %v", err)
	}
}

func TestTableNormalizationRejected(t *testing.T) {
	_, err := New("", []*Variable{
		binary("Y", nil, [][]interface{}{{"y", 0.7}, {"~y", 0.2}}),
	}, 0)
	if !errors.Is(err, internalerr.ErrMalformedTable) {
		t.Errorf("want ErrMalformedTable, got %v", err)
	}
}

func TestTableToleranceAccepted(t *testing.T) {
	// 1e-7 drift sits inside the default 1e-5 tolerance.
	_, err := New("", []*Variable{
		binary("Y", nil, [][]interface{}{{"y", 0.7000001}, {"~y", 0.3}}),
	}, 0)
	if err != nil {
		t.Errorf("drift within tolerance rejected: %v", err)
	}
}

func TestProbabilityLookup(t *testing.T) {
	m := chainModel(t)

	p, err := m.Probability("X", "x", map[string]string{"Y": "~y"})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(p-0.75) > 1e-12 {
		t.Errorf("P(x | ~y) = %v, want 0.75", p)
	}

	if _, err := m.Probability("X", "x", map[string]string{}); err == nil {
		t.Error("lookup without parent value should fail")
	}
}

func TestLatentDerivation(t *testing.T) {
	m, err := New("", []*Variable{
		{Name: "U", Outcomes: []string{"u", "~u"}},
		binary("A", nil, [][]interface{}{{"a", 0.5}, {"~a", 0.5}}),
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsLatent("U") {
		t.Error("table-less variable should be latent")
	}
	if m.IsLatent("A") {
		t.Error("parameterized variable should not be latent")
	}
	if got := m.Latents(); !reflect.DeepEqual(got, []string{"U"}) {
		t.Errorf("Latents() = %v", got)
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	a := chainModel(t)
	b := chainModel(t)
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical models must share a fingerprint")
	}

	c, err := New("chain", []*Variable{
		binary("Y", nil, [][]interface{}{{"y", 0.6}, {"~y", 0.4}}),
		binary("X", []string{"Y"}, [][]interface{}{
			{"x", "y", 0.9}, {"~x", "y", 0.1},
			{"x", "~y", 0.75}, {"~x", "~y", 0.25},
		}),
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different tables must change the fingerprint")
	}
}

func TestQueryKeyCanonical(t *testing.T) {
	a := QueryKey(
		[]Assertion{Observe("B", "b"), Observe("A", "a")},
		[]Assertion{Intervene("C", "c")},
	)
	b := QueryKey(
		[]Assertion{Observe("A", "a"), Observe("B", "b")},
		[]Assertion{Intervene("C", "c")},
	)
	if a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}
	if a != "P(A = a, B = b | do(C = c))" {
		t.Errorf("unexpected key %q", a)
	}
}

func TestContradictory(t *testing.T) {
	if Contradictory([]Assertion{Observe("A", "a"), Observe("B", "b")}) {
		t.Error("distinct variables cannot contradict")
	}
	if !Contradictory([]Assertion{Observe("A", "a"), Observe("A", "~a")}) {
		t.Error("two outcomes of one variable must contradict")
	}
	if Contradictory([]Assertion{Observe("A", "a"), Intervene("A", "a")}) {
		t.Error("matching outcomes never contradict")
	}
}

func TestBaseName(t *testing.T) {
	if got := BaseName("X''"); got != "X" {
		t.Errorf("BaseName(X'') = %q", got)
	}
	if got := BaseName("X"); got != "X" {
		t.Errorf("BaseName(X) = %q", got)
	}
}

func TestCPTString(t *testing.T) {
	m := chainModel(t)
	v, _ := m.Var("X")
	s := v.Table.String()
	if s == "" {
		t.Fatal("empty rendering")
	}
	for _, want := range []string{"X", "Y", "P()", "0.90"} {
		if !strings.Contains(s, want) {
			t.Errorf("rendering missing %q:\n%s", want, s)
		}
	}
}
