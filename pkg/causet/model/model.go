package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cognicore/causet/pkg/causet/internalerr"
)

// DefaultTableTolerance is the allowed normalization drift per CPT
// parent assignment.
const DefaultTableTolerance = 1e-5

// Variable is one discrete random variable in a model. Parents lists
// observable parents first and latent parents last; Table is nil for a
// purely structural latent.
type Variable struct {
	Name     string
	Outcomes []string
	Parents  []string
	Table    *CPT
	Latent   bool
}

// IsLatent reports whether the variable is unobservable, either by
// explicit marking or by carrying no table.
func (v *Variable) IsLatent() bool {
	return v.Latent || v.Table == nil
}

// Model is an immutable collection of variables forming a DAG. Derived
// artifacts (children, roots, latents, topological order) are computed
// lazily and cached.
type Model struct {
	Name string

	vars map[string]*Variable

	once        sync.Once
	topo        []string
	children    map[string][]string
	roots       []string
	latents     []string
	fingerprint string
}

// New validates the variables and assembles a Model. Validation covers
// duplicate names, unresolved parents, latent parent ordering,
// acyclicity and table completeness/normalization.
func New(name string, variables []*Variable, tableTolerance float64) (*Model, error) {
	if tableTolerance <= 0 {
		tableTolerance = DefaultTableTolerance
	}

	vars := make(map[string]*Variable, len(variables))
	for _, v := range variables {
		if v.Name == "" {
			return nil, fmt.Errorf("%w: variable with empty name", internalerr.ErrMalformedModel)
		}
		if _, ok := vars[v.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate variable %s", internalerr.ErrMalformedModel, v.Name)
		}
		if len(v.Outcomes) == 0 {
			return nil, fmt.Errorf("%w: variable %s has no outcomes", internalerr.ErrMalformedModel, v.Name)
		}
		seen := make(map[string]struct{}, len(v.Outcomes))
		for _, o := range v.Outcomes {
			if _, ok := seen[o]; ok {
				return nil, fmt.Errorf("%w: variable %s: duplicate outcome %s", internalerr.ErrMalformedModel, v.Name, o)
			}
			seen[o] = struct{}{}
		}
		vars[v.Name] = v
	}

	m := &Model{Name: name, vars: vars}

	for _, v := range variables {
		sawLatent := false
		for _, parent := range v.Parents {
			p, ok := vars[parent]
			if !ok {
				return nil, fmt.Errorf("%w: variable %s: unknown parent %s", internalerr.ErrMalformedModel, v.Name, parent)
			}
			if p.IsLatent() {
				sawLatent = true
			} else if sawLatent {
				return nil, fmt.Errorf("%w: variable %s: latent parents must trail observable parents", internalerr.ErrMalformedModel, v.Name)
			}
		}
	}

	if _, err := m.sortTopologically(); err != nil {
		return nil, err
	}

	for _, v := range variables {
		if v.Table == nil {
			continue
		}
		if v.Table.Variable == "" {
			v.Table.Variable = v.Name
		}
		if len(v.Table.Given) > len(v.Parents) {
			return nil, fmt.Errorf("%w: variable %s: table conditions on %d parents, only %d listed",
				internalerr.ErrMalformedTable, v.Name, len(v.Table.Given), len(v.Parents))
		}
		parentOutcomes := make([][]string, len(v.Table.Given))
		for i, name := range v.Table.Given {
			if name != v.Parents[i] {
				return nil, fmt.Errorf("%w: variable %s: table parent order %v does not match parent list %v",
					internalerr.ErrMalformedTable, v.Name, v.Table.Given, v.Parents)
			}
			parentOutcomes[i] = vars[name].Outcomes
		}
		if err := v.Table.validate(v.Outcomes, parentOutcomes, tableTolerance); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Variables returns the sorted names of every variable in the model.
func (m *Model) Variables() []string {
	names := make([]string, 0, len(m.vars))
	for name := range m.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Var resolves a (possibly primed) variable name.
func (m *Model) Var(name string) (*Variable, bool) {
	v, ok := m.vars[BaseName(name)]
	return v, ok
}

// Outcomes returns the outcome labels of a variable, nil if unknown.
func (m *Model) Outcomes(name string) []string {
	if v, ok := m.Var(name); ok {
		return v.Outcomes
	}
	return nil
}

// Parents returns the full parent list of a variable, latents included.
func (m *Model) Parents(name string) []string {
	if v, ok := m.Var(name); ok {
		return v.Parents
	}
	return nil
}

// TableParents returns the parents a variable's CPT conditions on.
func (m *Model) TableParents(name string) []string {
	v, ok := m.Var(name)
	if !ok || v.Table == nil {
		return nil
	}
	return v.Table.Given
}

// IsLatent reports whether a variable is unobservable.
func (m *Model) IsLatent(name string) bool {
	v, ok := m.Var(name)
	return ok && v.IsLatent()
}

// Probability reads P(name = outcome | parent assignment) from the
// variable's table.
func (m *Model) Probability(name, outcome string, parents map[string]string) (float64, error) {
	v, ok := m.Var(name)
	if !ok {
		return 0, fmt.Errorf("%w: unknown variable %s", internalerr.ErrQueryShape, name)
	}
	if v.Table == nil {
		return 0, fmt.Errorf("%w: variable %s has no table", internalerr.ErrIndeterminable, name)
	}
	return v.Table.Probability(outcome, parents)
}

// Children returns the sorted child names of a variable.
func (m *Model) Children(name string) []string {
	m.derive()
	return m.children[BaseName(name)]
}

// Roots returns the sorted names of parentless variables.
func (m *Model) Roots() []string {
	m.derive()
	return m.roots
}

// Latents returns the sorted names of unobservable variables.
func (m *Model) Latents() []string {
	m.derive()
	return m.latents
}

// TopologicalOrder returns the lexicographically smallest topological
// order of the model's variables.
func (m *Model) TopologicalOrder() []string {
	m.derive()
	return m.topo
}

// Fingerprint is a stable content hash of the model, used to key
// persisted results.
func (m *Model) Fingerprint() string {
	m.derive()
	return m.fingerprint
}

func (m *Model) derive() {
	m.once.Do(func() {
		m.children = make(map[string][]string, len(m.vars))
		for _, name := range m.Variables() {
			v := m.vars[name]
			for _, parent := range v.Parents {
				m.children[parent] = append(m.children[parent], name)
			}
			if len(v.Parents) == 0 {
				m.roots = append(m.roots, name)
			}
			if v.IsLatent() {
				m.latents = append(m.latents, name)
			}
		}
		for _, kids := range m.children {
			sort.Strings(kids)
		}
		// New already proved the graph acyclic.
		m.topo, _ = m.sortTopologically()
		m.fingerprint = m.computeFingerprint()
	})
}

// sortTopologically runs Kahn's algorithm, always removing the
// lexicographically smallest ready vertex so the order is canonical.
func (m *Model) sortTopologically() ([]string, error) {
	indegree := make(map[string]int, len(m.vars))
	children := make(map[string][]string, len(m.vars))
	for name, v := range m.vars {
		indegree[name] += 0
		for _, parent := range v.Parents {
			indegree[name]++
			children[parent] = append(children[parent], name)
		}
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(m.vars))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		changed := false
		for _, child := range children[next] {
			indegree[child]--
			if indegree[child] == 0 {
				ready = append(ready, child)
				changed = true
			}
		}
		if changed {
			sort.Strings(ready)
		}
	}

	if len(order) != len(m.vars) {
		return nil, fmt.Errorf("%w: no topological order exists", internalerr.ErrCyclicGraph)
	}
	return order, nil
}

func (m *Model) computeFingerprint() string {
	var b strings.Builder
	b.WriteString(m.Name)
	for _, name := range m.Variables() {
		v := m.vars[name]
		b.WriteString("\x00")
		b.WriteString(name)
		b.WriteString("|")
		b.WriteString(strings.Join(v.Outcomes, ","))
		b.WriteString("|")
		b.WriteString(strings.Join(v.Parents, ","))
		if v.IsLatent() {
			b.WriteString("|latent")
		}
		if v.Table != nil {
			for _, row := range v.Table.Rows {
				fmt.Fprintf(&b, "|%s:%s=%.12f", row.Outcome, strings.Join(row.Given, ","), row.P)
			}
		}
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
