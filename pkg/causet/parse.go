package causet

import (
	"fmt"
	"strings"

	"github.com/cognicore/causet/pkg/causet/internalerr"
	"github.com/cognicore/causet/pkg/causet/model"
)

// ParseQuery parses "Y = y | X = x, do(Z = z)" into head and body
// assertion lists. The bar and the body are optional.
func ParseQuery(input string) (head, body []model.Assertion, err error) {
	parts := strings.SplitN(input, "|", 2)

	head, err = ParseAssertions(parts[0])
	if err != nil {
		return nil, nil, err
	}
	if len(parts) == 2 {
		body, err = ParseAssertions(parts[1])
		if err != nil {
			return nil, nil, err
		}
	}
	return head, body, nil
}

// ParseAssertions parses a comma-separated assertion list such as
// "X = x, do(Z = z)". Whitespace is insignificant.
func ParseAssertions(input string) ([]model.Assertion, error) {
	var out []model.Assertion
	for _, field := range splitTopLevel(input) {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		if strings.HasPrefix(field, "do(") {
			if !strings.HasSuffix(field, ")") {
				return nil, fmt.Errorf("%w: unclosed do() in %q", internalerr.ErrQueryShape, field)
			}
			// do(...) may wrap several comma-separated assertions.
			inner := field[len("do(") : len(field)-1]
			for _, binding := range strings.Split(inner, ",") {
				a, err := parseBinding(binding, true)
				if err != nil {
					return nil, err
				}
				out = append(out, a)
			}
			continue
		}

		a, err := parseBinding(field, false)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func parseBinding(field string, intervened bool) (model.Assertion, error) {
	name, value, found := strings.Cut(field, "=")
	if !found {
		return model.Assertion{}, fmt.Errorf("%w: expected <variable> = <outcome>, got %q", internalerr.ErrQueryShape, strings.TrimSpace(field))
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if name == "" || value == "" {
		return model.Assertion{}, fmt.Errorf("%w: expected <variable> = <outcome>, got %q", internalerr.ErrQueryShape, strings.TrimSpace(field))
	}
	return model.Assertion{Variable: name, Value: value, Do: intervened}, nil
}

// splitTopLevel splits on commas outside parentheses.
func splitTopLevel(input string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range input {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out = append(out, input[start:i])
				start = i + 1
			}
		}
	}
	return append(out, input[start:])
}
