// Package memstore is an in-memory store.Store, used by tests and by
// engines that want cross-query persistence without a database file.
package memstore

import (
	"context"
	"sync"

	"github.com/cognicore/causet/pkg/causet/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu          sync.RWMutex
	results     map[string]float64
	derivations map[string]store.Derivation
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		results:     make(map[string]float64),
		derivations: make(map[string]store.Derivation),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

func key(modelID, query string) string {
	return modelID + "\x00" + query
}

// GetResult returns a cached probability.
func (s *Store) GetResult(ctx context.Context, modelID, query string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.results[key(modelID, query)]
	return p, ok, nil
}

// PutResult stores a probability, overwriting any previous value.
func (s *Store) PutResult(ctx context.Context, modelID, query string, p float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[key(modelID, query)] = p
	return nil
}

// GetDerivation returns a stored derivation.
func (s *Store) GetDerivation(ctx context.Context, modelID, query string) (store.Derivation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.derivations[key(modelID, query)]
	return d, ok, nil
}

// PutDerivation stores a derivation, overwriting any previous value.
func (s *Store) PutDerivation(ctx context.Context, modelID, query string, d store.Derivation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.derivations[key(modelID, query)] = d
	return nil
}
