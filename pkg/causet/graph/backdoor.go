package graph

import "sort"

// BackdoorPaths returns every backdoor path from a vertex in src to a
// vertex in dst that the blockers set fails to block. A backdoor path
// leaves its source through an incoming edge. Each path is the ordered
// vertex sequence, endpoints inclusive; an empty result means every
// backdoor path is blocked.
func (g *Graph) BackdoorPaths(src, dst, blockers []string) [][]string {
	zSet := toSet(blockers)
	var out [][]string

	sorted := func(vs []string) []string {
		c := append([]string(nil), vs...)
		sort.Strings(c)
		return c
	}

	for _, s := range sorted(src) {
		for _, t := range sorted(dst) {
			for _, path := range g.undirectedPaths(s, t, true) {
				if g.blocked(path, zSet) {
					continue
				}
				vertices := make([]string, len(path))
				for i, st := range path {
					vertices[i] = st.vertex
				}
				out = append(out, vertices)
			}
		}
	}
	return out
}

// DeconfoundingSets returns the subsets of the candidate pool that block
// every backdoor path from src to dst. The pool is every vertex outside
// src, dst, the descendants of src, and the exclude set (the caller
// passes latent and already-asserted variables there). Subsets are
// enumerated in nondecreasing size, lexicographic within a size; under
// minimal, supersets of a blocking set are withheld.
func (g *Graph) DeconfoundingSets(src, dst []string, exclude []string, minimal bool) [][]string {
	banned := toSet(src)
	for _, v := range dst {
		banned[v] = true
	}
	for v := range g.DescendantsOfSet(src) {
		banned[v] = true
	}
	for _, v := range exclude {
		banned[v] = true
	}

	var pool []string
	for _, v := range g.vertices {
		if !banned[v] {
			pool = append(pool, v)
		}
	}

	var blocking [][]string
	for size := 0; size <= len(pool); size++ {
		for _, candidate := range subsetsOfSize(pool, size) {
			if minimal && hasBlockingSubset(blocking, candidate) {
				continue
			}
			if len(g.BackdoorPaths(src, dst, candidate)) == 0 {
				blocking = append(blocking, candidate)
			}
		}
	}
	return blocking
}

// subsetsOfSize yields the size-k subsets of a sorted pool in
// lexicographic order.
func subsetsOfSize(pool []string, k int) [][]string {
	if k == 0 {
		return [][]string{{}}
	}
	var out [][]string
	var build func(start int, current []string)
	build = func(start int, current []string) {
		if len(current) == k {
			out = append(out, append([]string(nil), current...))
			return
		}
		for i := start; i <= len(pool)-(k-len(current)); i++ {
			build(i+1, append(current, pool[i]))
		}
	}
	build(0, nil)
	return out
}

func hasBlockingSubset(blocking [][]string, candidate []string) bool {
	set := toSet(candidate)
	for _, b := range blocking {
		contained := true
		for _, v := range b {
			if !set[v] {
				contained = false
				break
			}
		}
		if contained {
			return true
		}
	}
	return false
}
