// Package sqlite persists computed results in a SQLite database, so
// repeated runs against the same model skip re-derivation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/causet/pkg/causet/store"
)

// sqliteStore implements store.Store using SQLite.
type sqliteStore struct {
	db *sql.DB
}

// Open opens (and if needed initializes) a SQLite result store with WAL
// mode enabled.
func Open(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS results (
	model TEXT NOT NULL,
	query TEXT NOT NULL,
	probability REAL NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (model, query)
);

CREATE TABLE IF NOT EXISTS derivations (
	model TEXT NOT NULL,
	query TEXT NOT NULL,
	id TEXT NOT NULL,
	steps TEXT NOT NULL,
	expression TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (model, query)
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// GetResult returns a cached probability.
func (s *sqliteStore) GetResult(ctx context.Context, modelID, query string) (float64, bool, error) {
	var p float64
	err := s.db.QueryRowContext(ctx,
		"SELECT probability FROM results WHERE model = ? AND query = ?",
		modelID, query).Scan(&p)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return p, true, nil
}

// PutResult upserts a probability.
func (s *sqliteStore) PutResult(ctx context.Context, modelID, query string, p float64) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO results (model, query, probability, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (model, query) DO UPDATE SET probability = excluded.probability`,
		modelID, query, p, time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetDerivation returns a stored derivation.
func (s *sqliteStore) GetDerivation(ctx context.Context, modelID, query string) (store.Derivation, bool, error) {
	var d store.Derivation
	var steps string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, steps, expression FROM derivations WHERE model = ? AND query = ?",
		modelID, query).Scan(&d.ID, &steps, &d.Expression)
	if err == sql.ErrNoRows {
		return store.Derivation{}, false, nil
	}
	if err != nil {
		return store.Derivation{}, false, err
	}
	if err := json.Unmarshal([]byte(steps), &d.Steps); err != nil {
		return store.Derivation{}, false, err
	}
	return d, true, nil
}

// PutDerivation upserts a derivation.
func (s *sqliteStore) PutDerivation(ctx context.Context, modelID, query string, d store.Derivation) error {
	steps, err := json.Marshal(d.Steps)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO derivations (model, query, id, steps, expression, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (model, query) DO UPDATE SET
	id = excluded.id,
	steps = excluded.steps,
	expression = excluded.expression`,
		modelID, query, d.ID, string(steps), d.Expression, time.Now().UTC().Format(time.RFC3339))
	return err
}
