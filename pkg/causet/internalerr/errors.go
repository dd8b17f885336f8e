package internalerr

import "errors"

// Sentinel errors for the engine's failure kinds
var (
	ErrMalformedModel            = errors.New("malformed model")
	ErrCyclicGraph               = errors.New("cyclic graph")
	ErrMalformedTable            = errors.New("malformed table")
	ErrQueryShape                = errors.New("malformed query")
	ErrZeroProbability           = errors.New("division by zero probability")
	ErrNumericDrift              = errors.New("probability outside valid range")
	ErrDoCalculusFailed          = errors.New("do-calculus search exhausted")
	ErrInconsistentDeconfounding = errors.New("deconfounding sets disagree")
	ErrIndeterminable            = errors.New("query indeterminable")
	ErrInvalidConfig             = errors.New("invalid configuration")
)
