package graph

import (
	"reflect"
	"testing"
)

// confounded is the Z -> X, Z -> Y, X -> Y triangle.
func confounded() *Graph {
	return FromEdges([]string{"X", "Y", "Z"}, [][2]string{
		{"Z", "X"}, {"Z", "Y"}, {"X", "Y"},
	})
}

// frontdoor is X -> Z -> Y with latent U -> X, U -> Y.
func frontdoor() *Graph {
	return FromEdges([]string{"U", "X", "Y", "Z"}, [][2]string{
		{"U", "X"}, {"U", "Y"}, {"X", "Z"}, {"Z", "Y"},
	})
}

func TestParentsChildren(t *testing.T) {
	g := confounded()
	if got := g.Parents("Y"); !reflect.DeepEqual(got, []string{"X", "Z"}) {
		t.Errorf("Parents(Y) = %v", got)
	}
	if got := g.Children("Z"); !reflect.DeepEqual(got, []string{"X", "Y"}) {
		t.Errorf("Children(Z) = %v", got)
	}
}

func TestAncestorsDescendants(t *testing.T) {
	g := frontdoor()
	if anc := g.Ancestors("Y"); !anc["U"] || !anc["X"] || !anc["Z"] {
		t.Errorf("Ancestors(Y) = %v", anc)
	}
	if desc := g.Descendants("X"); !desc["Z"] || !desc["Y"] || desc["U"] {
		t.Errorf("Descendants(X) = %v", desc)
	}
}

func TestEdgeDisabling(t *testing.T) {
	g := confounded()

	g.DisableIncoming("X")
	if got := g.Parents("X"); len(got) != 0 {
		t.Errorf("Parents(X) after severing = %v", got)
	}
	// Z's child edge into X is gone from Z's side too.
	if got := g.Children("Z"); !reflect.DeepEqual(got, []string{"Y"}) {
		t.Errorf("Children(Z) after severing = %v", got)
	}

	g.ResetDisabled()
	if got := g.Parents("X"); !reflect.DeepEqual(got, []string{"Z"}) {
		t.Errorf("Parents(X) after reset = %v", got)
	}
}

func TestCopyIsolatesDisabling(t *testing.T) {
	g := confounded()
	c := g.Copy()
	c.DisableIncoming("Y")
	if got := g.Parents("Y"); len(got) != 2 {
		t.Errorf("copy leaked into original: Parents(Y) = %v", got)
	}
}

func TestDSeparationChain(t *testing.T) {
	g := FromEdges([]string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"B", "C"}})
	if g.DSeparated([]string{"A"}, []string{"C"}, nil) {
		t.Error("chain ends are dependent unconditionally")
	}
	if !g.DSeparated([]string{"A"}, []string{"C"}, []string{"B"}) {
		t.Error("conditioning on the middle blocks a chain")
	}
}

func TestDSeparationFork(t *testing.T) {
	g := FromEdges([]string{"A", "B", "C"}, [][2]string{{"B", "A"}, {"B", "C"}})
	if g.DSeparated([]string{"A"}, []string{"C"}, nil) {
		t.Error("fork leaves are dependent unconditionally")
	}
	if !g.DSeparated([]string{"A"}, []string{"C"}, []string{"B"}) {
		t.Error("conditioning on the fork blocks it")
	}
}

func TestDSeparationCollider(t *testing.T) {
	g := FromEdges([]string{"A", "B", "C", "D"}, [][2]string{
		{"A", "B"}, {"C", "B"}, {"B", "D"},
	})
	if !g.DSeparated([]string{"A"}, []string{"C"}, nil) {
		t.Error("collider blocks without conditioning")
	}
	if g.DSeparated([]string{"A"}, []string{"C"}, []string{"B"}) {
		t.Error("conditioning on the collider opens the path")
	}
	if g.DSeparated([]string{"A"}, []string{"C"}, []string{"D"}) {
		t.Error("conditioning on a collider descendant opens the path")
	}
}

func TestDSeparationUnderSurgery(t *testing.T) {
	g := frontdoor()
	// Y and X are connected through U.
	if g.DSeparated([]string{"Y"}, []string{"X"}, []string{"Z"}) {
		t.Error("latent confounding keeps X and Y dependent")
	}
	// Severing X's outgoing edges removes X -> Z; the remaining path
	// Z -> Y <- U -> X meets an unconditioned collider at Y, so Z and X
	// are separated.
	c := g.Copy()
	c.DisableOutgoing("X")
	if c.DSeparated([]string{"Z"}, []string{"X"}, nil) == false {
		t.Error("Z and X separate once X's outgoing edges are severed")
	}
}
