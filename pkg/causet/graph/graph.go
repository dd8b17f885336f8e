// Package graph holds the pure graph algorithms of the engine:
// reachability, edge disabling for causal surgery, d-separation and
// backdoor analysis. All functions are deterministic; neighbor sets are
// walked in sorted order.
package graph

import (
	"sort"

	"github.com/cognicore/causet/pkg/causet/model"
)

// Graph is a directed acyclic graph with per-vertex edge disabling.
// Disabling a vertex's incoming or outgoing edges models the do-calculus
// graph surgeries without mutating the underlying model.
type Graph struct {
	vertices []string
	incoming map[string]map[string]bool
	outgoing map[string]map[string]bool

	incomingDisabled map[string]bool
	outgoingDisabled map[string]bool
}

// New builds a Graph from a model's parent lists, latents included.
func New(m *model.Model) *Graph {
	vertices := m.Variables()
	var edges [][2]string
	for _, name := range vertices {
		for _, parent := range m.Parents(name) {
			edges = append(edges, [2]string{parent, name})
		}
	}
	return FromEdges(vertices, edges)
}

// FromEdges builds a Graph from explicit vertices and (source, target)
// edges.
func FromEdges(vertices []string, edges [][2]string) *Graph {
	g := &Graph{
		vertices:         append([]string(nil), vertices...),
		incoming:         make(map[string]map[string]bool, len(vertices)),
		outgoing:         make(map[string]map[string]bool, len(vertices)),
		incomingDisabled: make(map[string]bool),
		outgoingDisabled: make(map[string]bool),
	}
	sort.Strings(g.vertices)
	for _, v := range g.vertices {
		g.incoming[v] = make(map[string]bool)
		g.outgoing[v] = make(map[string]bool)
	}
	for _, e := range edges {
		g.outgoing[e[0]][e[1]] = true
		g.incoming[e[1]][e[0]] = true
	}
	return g
}

// Copy returns a graph sharing no mutable state with the receiver.
func (g *Graph) Copy() *Graph {
	c := &Graph{
		vertices:         append([]string(nil), g.vertices...),
		incoming:         g.incoming,
		outgoing:         g.outgoing,
		incomingDisabled: make(map[string]bool, len(g.incomingDisabled)),
		outgoingDisabled: make(map[string]bool, len(g.outgoingDisabled)),
	}
	for v := range g.incomingDisabled {
		c.incomingDisabled[v] = true
	}
	for v := range g.outgoingDisabled {
		c.outgoingDisabled[v] = true
	}
	return c
}

// Vertices returns the sorted vertex names.
func (g *Graph) Vertices() []string {
	return g.vertices
}

// Has reports whether the vertex exists.
func (g *Graph) Has(v string) bool {
	_, ok := g.incoming[v]
	return ok
}

// DisableIncoming severs the incoming edges of the given vertices.
func (g *Graph) DisableIncoming(vertices ...string) {
	for _, v := range vertices {
		g.incomingDisabled[v] = true
	}
}

// DisableOutgoing severs the outgoing edges of the given vertices.
func (g *Graph) DisableOutgoing(vertices ...string) {
	for _, v := range vertices {
		g.outgoingDisabled[v] = true
	}
}

// ResetDisabled restores every severed edge.
func (g *Graph) ResetDisabled() {
	g.incomingDisabled = make(map[string]bool)
	g.outgoingDisabled = make(map[string]bool)
}

// Parents returns the sorted parents of v reachable under the current
// edge disabling.
func (g *Graph) Parents(v string) []string {
	if g.incomingDisabled[v] {
		return nil
	}
	var out []string
	for p := range g.incoming[v] {
		if !g.outgoingDisabled[p] {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Children returns the sorted children of v reachable under the current
// edge disabling.
func (g *Graph) Children(v string) []string {
	if g.outgoingDisabled[v] {
		return nil
	}
	var out []string
	for c := range g.outgoing[v] {
		if !g.incomingDisabled[c] {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Ancestors returns every vertex with a directed path to v.
func (g *Graph) Ancestors(v string) map[string]bool {
	return g.walk(v, g.Parents)
}

// Descendants returns every vertex with a directed path from v.
func (g *Graph) Descendants(v string) map[string]bool {
	return g.walk(v, g.Children)
}

func (g *Graph) walk(v string, next func(string) []string) map[string]bool {
	reached := make(map[string]bool)
	queue := append([]string(nil), next(v)...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if reached[current] {
			continue
		}
		reached[current] = true
		queue = append(queue, next(current)...)
	}
	return reached
}

// AncestorsOfSet returns the union of ancestors of the given vertices,
// the vertices themselves excluded unless reachable from another.
func (g *Graph) AncestorsOfSet(vertices []string) map[string]bool {
	all := make(map[string]bool)
	for _, v := range vertices {
		for a := range g.Ancestors(v) {
			all[a] = true
		}
	}
	return all
}

// DescendantsOfSet returns the union of descendants of the given
// vertices.
func (g *Graph) DescendantsOfSet(vertices []string) map[string]bool {
	all := make(map[string]bool)
	for _, v := range vertices {
		for d := range g.Descendants(v) {
			all[d] = true
		}
	}
	return all
}

// Disjoint reports whether two vertex sets share no element.
func Disjoint(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if set[v] {
			return false
		}
	}
	return true
}

func toSet(vertices []string) map[string]bool {
	set := make(map[string]bool, len(vertices))
	for _, v := range vertices {
		set[v] = true
	}
	return set
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
