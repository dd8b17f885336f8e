package sqlite

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cognicore/causet/pkg/causet/store"
)

func open(t *testing.T) store.Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestResultRoundTrip(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	if _, ok, err := s.GetResult(ctx, "m1", "P(X = x)"); err != nil || ok {
		t.Fatalf("empty store returned a result: ok=%v err=%v", ok, err)
	}

	if err := s.PutResult(ctx, "m1", "P(X = x)", 0.855); err != nil {
		t.Fatal(err)
	}
	p, ok, err := s.GetResult(ctx, "m1", "P(X = x)")
	if err != nil || !ok {
		t.Fatalf("lookup failed: ok=%v err=%v", ok, err)
	}
	if p != 0.855 {
		t.Errorf("got %v", p)
	}
}

func TestResultUpsert(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	if err := s.PutResult(ctx, "m1", "P(X = x)", 0.5); err != nil {
		t.Fatal(err)
	}
	if err := s.PutResult(ctx, "m1", "P(X = x)", 0.6); err != nil {
		t.Fatal(err)
	}
	p, _, err := s.GetResult(ctx, "m1", "P(X = x)")
	if err != nil {
		t.Fatal(err)
	}
	if p != 0.6 {
		t.Errorf("upsert kept %v", p)
	}
}

func TestDerivationRoundTrip(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	d := store.Derivation{
		ID:         "01J0000000000000000000000",
		Steps:      []string{"expand: sum Z' out of P(Y = y | do(X = x))", "rule 2"},
		Expression: "Σ_Z' P(Y = y | Z' = z') * P(Z' = z' | X = x)",
	}
	if err := s.PutDerivation(ctx, "m1", "P(Y = y | do(X = x))", d); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.GetDerivation(ctx, "m1", "P(Y = y | do(X = x))")
	if err != nil || !ok {
		t.Fatalf("lookup failed: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, d) {
		t.Errorf("got %+v, want %+v", got, d)
	}
}

func TestReopenPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PutResult(ctx, "m1", "P(X = x)", 0.855); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	p, ok, err := reopened.GetResult(ctx, "m1", "P(X = x)")
	if err != nil || !ok {
		t.Fatalf("lookup failed after reopen: ok=%v err=%v", ok, err)
	}
	if p != 0.855 {
		t.Errorf("got %v", p)
	}
}
