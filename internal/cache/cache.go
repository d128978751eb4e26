// Package cache persists raw analysis replies between runs so unchanged
// documents are not re-billed against the API.
package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Store is a sqlite-backed response cache keyed by document hash and model.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at the given path and applies
// the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS responses (
	doc_sha    TEXT NOT NULL,
	model      TEXT NOT NULL,
	raw        TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (doc_sha, model)
);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(migration)
	return eris.Wrap(err, "cache: migrate")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached raw reply for a document hash and model. The second
// return is false on a miss.
func (s *Store) Get(ctx context.Context, docSHA, model string) (string, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT raw FROM responses WHERE doc_sha = ? AND model = ?`,
		docSHA, model,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "cache: get")
	}
	return raw, true, nil
}

// Put stores a raw reply, replacing any previous entry for the same key.
func (s *Store) Put(ctx context.Context, docSHA, model, raw string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO responses (doc_sha, model, raw, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (doc_sha, model) DO UPDATE SET raw = excluded.raw, created_at = excluded.created_at`,
		docSHA, model, raw, time.Now().UTC(),
	)
	return eris.Wrap(err, "cache: put")
}

// Prune deletes entries older than the given age and returns the number
// removed.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM responses WHERE created_at < ?`,
		time.Now().UTC().Add(-maxAge),
	)
	if err != nil {
		return 0, eris.Wrap(err, "cache: prune")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "cache: prune rows affected")
	}
	return n, nil
}
