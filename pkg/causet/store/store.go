// Package store defines the persistence surface for computed results.
// Results are keyed by a model fingerprint and the canonical query
// form, so a store outlives any single engine instance safely.
package store

import "context"

// Store persists query results and do-calculus derivations.
type Store interface {
	Close() error

	GetResult(ctx context.Context, modelID, query string) (float64, bool, error)
	PutResult(ctx context.Context, modelID, query string, p float64) error

	GetDerivation(ctx context.Context, modelID, query string) (Derivation, bool, error)
	PutDerivation(ctx context.Context, modelID, query string, d Derivation) error
}

// Derivation is a stored do-calculus derivation: the rewrite steps and
// the final do-free expression.
type Derivation struct {
	ID         string
	Steps      []string
	Expression string
}
