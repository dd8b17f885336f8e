// Package bruteforce evaluates queries by full-joint enumeration with
// truncated factorization: intervened variables contribute an indicator
// factor instead of their table row. It exists to cross-check the
// engine in tests and requires every variable, latents included, to be
// parameterized.
package bruteforce

import (
	"fmt"

	"github.com/cognicore/causet/pkg/causet/internalerr"
	"github.com/cognicore/causet/pkg/causet/model"
)

// Query computes P(head | body) on the model, body interventions
// applied by truncated factorization.
func Query(m *model.Model, head, body []model.Assertion) (float64, error) {
	var observations []model.Assertion
	interventions := make(map[string]string)
	for _, a := range body {
		if a.Do {
			interventions[model.BaseName(a.Variable)] = a.Value
		} else {
			observations = append(observations, a)
		}
	}

	numeratorFixed := append(append([]model.Assertion(nil), head...), observations...)

	numerator, err := mass(m, numeratorFixed, interventions)
	if err != nil {
		return 0, err
	}
	denominator, err := mass(m, observations, interventions)
	if err != nil {
		return 0, err
	}
	if denominator == 0 {
		return 0, fmt.Errorf("%w: conditioning event has zero mass", internalerr.ErrZeroProbability)
	}
	return numerator / denominator, nil
}

// mass sums the truncated joint over every assignment consistent with
// the fixed assertions.
func mass(m *model.Model, fixed []model.Assertion, interventions map[string]string) (float64, error) {
	values := make(map[string]string)
	for _, a := range fixed {
		base := model.BaseName(a.Variable)
		if prev, ok := values[base]; ok && prev != a.Value {
			return 0, nil
		}
		values[base] = a.Value
	}

	var free []string
	for _, name := range m.TopologicalOrder() {
		if _, ok := values[name]; !ok {
			free = append(free, name)
		}
	}

	total := 0.0
	var enumerate func(i int) error
	enumerate = func(i int) error {
		if i == len(free) {
			p, err := jointProbability(m, values, interventions)
			if err != nil {
				return err
			}
			total += p
			return nil
		}
		name := free[i]
		for _, outcome := range m.Outcomes(name) {
			values[name] = outcome
			if err := enumerate(i + 1); err != nil {
				return err
			}
		}
		delete(values, name)
		return nil
	}
	if err := enumerate(0); err != nil {
		return 0, err
	}
	return total, nil
}

// jointProbability multiplies one factor per variable under the given
// full assignment.
func jointProbability(m *model.Model, values map[string]string, interventions map[string]string) (float64, error) {
	p := 1.0
	for _, name := range m.TopologicalOrder() {
		if forced, ok := interventions[name]; ok {
			if values[name] != forced {
				return 0, nil
			}
			continue
		}
		factor, err := m.Probability(name, values[name], values)
		if err != nil {
			return 0, err
		}
		p *= factor
		if p == 0 {
			return 0, nil
		}
	}
	return p, nil
}
