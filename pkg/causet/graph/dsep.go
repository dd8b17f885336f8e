package graph

// step is one hop of an undirected walk: the vertex arrived at and
// whether the traversed edge pointed forward (into that vertex).
type step struct {
	vertex  string
	forward bool
}

// undirectedPaths enumerates every simple undirected path from s to t.
// When intoFirst is set, the first hop must traverse an edge into s
// (the backdoor shape). Paths are produced in a fixed DFS order.
func (g *Graph) undirectedPaths(s, t string, intoFirst bool) [][]step {
	var paths [][]step

	var visit func(v string, trail []step, seen map[string]bool)
	visit = func(v string, trail []step, seen map[string]bool) {
		if v == t {
			path := make([]step, len(trail))
			copy(path, trail)
			paths = append(paths, path)
			return
		}
		for _, next := range g.moves(v, len(trail) == 1 && intoFirst) {
			if seen[next.vertex] {
				continue
			}
			seen[next.vertex] = true
			visit(next.vertex, append(trail, next), seen)
			delete(seen, next.vertex)
		}
	}

	visit(s, []step{{vertex: s}}, map[string]bool{s: true})
	return paths
}

// moves lists the hops available from v in sorted vertex order. When
// parentsOnly is set, only reverse hops (along an edge into v, to one of
// v's parents) are offered.
func (g *Graph) moves(v string, parentsOnly bool) []step {
	var out []step
	for _, p := range g.Parents(v) {
		out = append(out, step{vertex: p, forward: false})
	}
	if !parentsOnly {
		for _, c := range g.Children(v) {
			out = append(out, step{vertex: c, forward: true})
		}
	}
	// Parents and children of a DAG vertex are disjoint, so sorting by
	// name alone is total.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].vertex < out[j-1].vertex; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// blocked reports whether the path is blocked by the conditioning set z:
// a chain or fork vertex in z blocks, a collider blocks unless it or one
// of its descendants is in z.
func (g *Graph) blocked(path []step, z map[string]bool) bool {
	for i := 1; i < len(path)-1; i++ {
		v := path[i].vertex
		collider := path[i].forward && !path[i+1].forward
		if collider {
			if z[v] {
				continue
			}
			opened := false
			for d := range g.Descendants(v) {
				if z[d] {
					opened = true
					break
				}
			}
			if !opened {
				return true
			}
		} else if z[v] {
			return true
		}
	}
	return false
}

// DSeparated reports whether every undirected path between the x and y
// sets is blocked given z.
func (g *Graph) DSeparated(x, y, z []string) bool {
	zSet := toSet(z)
	for _, s := range x {
		for _, t := range y {
			if s == t {
				return false
			}
			for _, path := range g.undirectedPaths(s, t, false) {
				if !g.blocked(path, zSet) {
					return false
				}
			}
		}
	}
	return true
}
