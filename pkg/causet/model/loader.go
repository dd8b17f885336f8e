package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/causet/pkg/causet/internalerr"
)

// VarSpec is the on-disk description of one variable. A missing table
// marks the variable latent; `latent: true` marks a parameterized
// variable unobservable without discarding its numbers.
type VarSpec struct {
	Outcomes []string        `yaml:"outcomes" json:"outcomes"`
	Parents  []string        `yaml:"parents,omitempty" json:"parents,omitempty"`
	Latent   bool            `yaml:"latent,omitempty" json:"latent,omitempty"`
	Table    [][]interface{} `yaml:"table,omitempty" json:"table,omitempty"`
}

// Spec is the root of a model file.
type Spec struct {
	Name  string             `yaml:"name,omitempty" json:"name,omitempty"`
	Model map[string]VarSpec `yaml:"model" json:"model"`
}

// Load reads a model from a .json, .yml or .yaml file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var spec Spec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", internalerr.ErrMalformedModel, path, err)
		}
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", internalerr.ErrMalformedModel, path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s: unsupported extension", internalerr.ErrMalformedModel, path)
	}

	return FromSpec(spec)
}

// FromSpec assembles and validates a Model from a parsed description.
func FromSpec(spec Spec) (*Model, error) {
	if len(spec.Model) == 0 {
		return nil, fmt.Errorf("%w: no variables", internalerr.ErrMalformedModel)
	}

	names := make([]string, 0, len(spec.Model))
	for name := range spec.Model {
		names = append(names, name)
	}
	sort.Strings(names)

	variables := make([]*Variable, 0, len(names))
	for _, name := range names {
		vs := spec.Model[name]
		v := &Variable{
			Name:     name,
			Outcomes: vs.Outcomes,
			Parents:  vs.Parents,
			Latent:   vs.Latent,
		}
		if vs.Table != nil {
			table, err := parseTable(name, vs)
			if err != nil {
				return nil, err
			}
			v.Table = table
		}
		variables = append(variables, v)
	}

	return New(spec.Name, variables, DefaultTableTolerance)
}

// parseTable converts raw rows [outcome, parent outcomes..., probability]
// into a CPT. The parent columns bind to the leading parents, in order.
func parseTable(name string, vs VarSpec) (*CPT, error) {
	if len(vs.Table) == 0 {
		return nil, fmt.Errorf("%w: variable %s: empty table", internalerr.ErrMalformedTable, name)
	}

	width := len(vs.Table[0])
	if width < 2 {
		return nil, fmt.Errorf("%w: variable %s: rows need an outcome and a probability", internalerr.ErrMalformedTable, name)
	}
	givenCount := width - 2
	if givenCount > len(vs.Parents) {
		return nil, fmt.Errorf("%w: variable %s: rows condition on %d parents, only %d listed",
			internalerr.ErrMalformedTable, name, givenCount, len(vs.Parents))
	}

	cpt := &CPT{
		Variable: name,
		Given:    append([]string(nil), vs.Parents[:givenCount]...),
	}

	for _, raw := range vs.Table {
		if len(raw) != width {
			return nil, fmt.Errorf("%w: variable %s: ragged table rows", internalerr.ErrMalformedTable, name)
		}
		outcome, ok := raw[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: variable %s: row outcome is not a string", internalerr.ErrMalformedTable, name)
		}
		given := make([]string, givenCount)
		for i := 0; i < givenCount; i++ {
			s, ok := raw[i+1].(string)
			if !ok {
				return nil, fmt.Errorf("%w: variable %s: parent outcome is not a string", internalerr.ErrMalformedTable, name)
			}
			given[i] = s
		}
		p, err := asFloat(raw[width-1])
		if err != nil {
			return nil, fmt.Errorf("%w: variable %s: %v", internalerr.ErrMalformedTable, name, err)
		}
		cpt.Rows = append(cpt.Rows, Row{Outcome: outcome, Given: given, P: p})
	}

	return cpt, nil
}

// asFloat accepts the numeric types the yaml and json decoders produce.
func asFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("probability %v is not a number", v)
	}
}
