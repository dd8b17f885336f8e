package model

import (
	"fmt"
	"math"
	"strings"

	"github.com/cognicore/causet/pkg/causet/internalerr"
)

// Row is one line of a conditional probability table: the variable's own
// outcome, the outcome of each conditioned parent (in the table's Given
// order), and the probability.
type Row struct {
	Outcome string
	Given   []string
	P       float64
}

// CPT is the conditional probability table of one variable given the
// parents it conditions on. Given is a prefix of the variable's parent
// list; a structural latent at the tail of the parent list carries no
// table column.
type CPT struct {
	Variable string
	Given    []string
	Rows     []Row

	index map[string]float64
}

func rowKey(outcome string, given []string) string {
	return outcome + "\x00" + strings.Join(given, "\x00")
}

// buildIndex populates the lookup index, rejecting duplicate rows.
func (t *CPT) buildIndex() error {
	t.index = make(map[string]float64, len(t.Rows))
	for _, row := range t.Rows {
		if len(row.Given) != len(t.Given) {
			return fmt.Errorf("%w: variable %s: row for outcome %s has %d parent outcomes, want %d",
				internalerr.ErrMalformedTable, t.Variable, row.Outcome, len(row.Given), len(t.Given))
		}
		key := rowKey(row.Outcome, row.Given)
		if _, ok := t.index[key]; ok {
			return fmt.Errorf("%w: variable %s: duplicate row for outcome %s given %v",
				internalerr.ErrMalformedTable, t.Variable, row.Outcome, row.Given)
		}
		t.index[key] = row.P
	}
	return nil
}

// Probability looks up the row for the variable's outcome under the
// given parent assignment. The assignment must cover every conditioned
// parent.
func (t *CPT) Probability(outcome string, parents map[string]string) (float64, error) {
	given := make([]string, len(t.Given))
	for i, name := range t.Given {
		value, ok := parents[name]
		if !ok {
			return 0, fmt.Errorf("%w: variable %s: no value for parent %s",
				internalerr.ErrQueryShape, t.Variable, name)
		}
		given[i] = value
	}
	p, ok := t.index[rowKey(outcome, given)]
	if !ok {
		return 0, fmt.Errorf("%w: variable %s: no row for outcome %s given %v",
			internalerr.ErrMalformedTable, t.Variable, outcome, given)
	}
	return p, nil
}

// validate checks completeness (exactly one row per outcome x parent
// cross product) and per-assignment normalization within tolerance.
func (t *CPT) validate(outcomes []string, parentOutcomes [][]string, tolerance float64) error {
	if err := t.buildIndex(); err != nil {
		return err
	}

	expected := len(outcomes)
	for _, po := range parentOutcomes {
		expected *= len(po)
	}
	if len(t.Rows) != expected {
		return fmt.Errorf("%w: variable %s: %d rows, want %d",
			internalerr.ErrMalformedTable, t.Variable, len(t.Rows), expected)
	}

	// Walk the full cross product of parent assignments; each must carry
	// every outcome and sum to 1 within tolerance.
	for _, given := range crossProduct(parentOutcomes) {
		sum := 0.0
		for _, outcome := range outcomes {
			p, ok := t.index[rowKey(outcome, given)]
			if !ok {
				return fmt.Errorf("%w: variable %s: missing row for outcome %s given %v",
					internalerr.ErrMalformedTable, t.Variable, outcome, given)
			}
			if p < 0 || p > 1 {
				return fmt.Errorf("%w: variable %s: probability %v outside [0, 1]",
					internalerr.ErrMalformedTable, t.Variable, p)
			}
			sum += p
		}
		if math.Abs(sum-1.0) > tolerance {
			return fmt.Errorf("%w: variable %s: rows for given %v sum to %v",
				internalerr.ErrMalformedTable, t.Variable, given, sum)
		}
	}
	return nil
}

// crossProduct enumerates every combination of one element per slice, in
// lexicographic order of the input positions.
func crossProduct(sets [][]string) [][]string {
	result := [][]string{{}}
	for _, set := range sets {
		var next [][]string
		for _, prefix := range result {
			for _, value := range set {
				combo := make([]string, len(prefix)+1)
				copy(combo, prefix)
				combo[len(prefix)] = value
				next = append(next, combo)
			}
		}
		result = next
	}
	return result
}

// String renders the table with aligned columns.
func (t *CPT) String() string {
	header := make([]string, 0, len(t.Given)+2)
	header = append(header, t.Variable)
	header = append(header, t.Given...)
	header = append(header, "P()")

	rows := [][]string{header}
	for _, row := range t.Rows {
		cells := make([]string, 0, len(row.Given)+2)
		cells = append(cells, row.Outcome)
		cells = append(cells, row.Given...)
		cells = append(cells, fmt.Sprintf("%.2f", row.P))
		rows = append(rows, cells)
	}

	widths := make([]int, len(header))
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for i, row := range rows {
		b.WriteString("|")
		for j, cell := range row {
			b.WriteString(" ")
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[j]-len(cell)))
			b.WriteString(" |")
		}
		b.WriteString("\n")
		if i == 0 {
			total := 1
			for _, w := range widths {
				total += w + 3
			}
			b.WriteString(strings.Repeat("-", total))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
