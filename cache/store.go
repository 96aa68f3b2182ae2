// Package cache keeps analysis payloads by video id, in memory and optionally
// in a SQLite database so results survive restarts.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"github.com/RyanBlaney/sonido-chords/logging"
)

// DefaultSize is the number of payloads held in memory
const DefaultSize = 256

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
`

// Store is a two tier cache: an LRU in front of an optional SQLite table
type Store struct {
	db     *sql.DB
	mem    *lru.Cache[string, []byte]
	logger logging.Logger
}

// Open creates a store. An empty path keeps payloads in memory only.
func Open(path string, size int, logger logging.Logger) (*Store, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	mem, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	s := &Store{
		mem:    mem,
		logger: logger.WithFields(logging.Fields{"component": "cache"}),
	}
	if path == "" {
		return s, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}

	s.db = db
	s.logger.Debug("Cache database opened", logging.Fields{"path": path, "size": size})
	return s, nil
}

// Get returns the payload stored for id. A miss is not an error.
func (s *Store) Get(ctx context.Context, id string) ([]byte, bool, error) {
	if payload, ok := s.mem.Get(id); ok {
		return payload, true, nil
	}
	if s.db == nil {
		return nil, false, nil
	}

	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM analyses WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup %s: %w", id, err)
	}

	data := []byte(payload)
	s.mem.Add(id, data)
	return data, true, nil
}

// Put stores payload for id, replacing any previous value
func (s *Store) Put(ctx context.Context, id string, payload []byte) error {
	s.mem.Add(id, payload)
	if s.db == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		id, string(payload), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("cache store %s: %w", id, err)
	}
	return nil
}

// Delete removes id from both tiers
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mem.Remove(id)
	if s.db == nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("cache delete %s: %w", id, err)
	}
	return nil
}

// Prune deletes persisted entries older than maxAge and returns how many went
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache prune: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		// the memory tier may still hold pruned ids
		s.mem.Purge()
	}
	return n, nil
}

// Persistent reports whether the store is backed by a database
func (s *Store) Persistent() bool {
	return s.db != nil
}

// Close closes the database, if any
func (s *Store) Close() error {
	s.mem.Purge()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
