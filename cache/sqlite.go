package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// DefaultOpTimeout bounds every I/O operation of the SQLite and Redis stores.
const DefaultOpTimeout = 5 * time.Second

var sqliteInit = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	`CREATE TABLE IF NOT EXISTS cache_entries (
		namespace  TEXT    NOT NULL,
		key        TEXT    NOT NULL,
		value      BLOB    NOT NULL,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY (namespace, key)
	)`,
	"CREATE INDEX IF NOT EXISTS cache_entries_expiry ON cache_entries (expires_at)",
}

// SQLiteStore persists entries in a single SQLite file. Expired rows are
// skipped on read and removed by Purge.
type SQLiteStore struct {
	db        *sql.DB
	namespace string
	timeout   time.Duration
	clock     clockwork.Clock
}

// SQLiteOptions configures NewSQLiteStore.
type SQLiteOptions struct {
	// Namespace scopes Clear. Default: "marketcache"
	Namespace string

	// OpTimeout bounds each query. Default: DefaultOpTimeout
	OpTimeout time.Duration

	// Clock drives expiry. Default: real clock
	Clock clockwork.Clock
}

// NewSQLiteStore opens (creating if needed) the database at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(ctx context.Context, path string, opts SQLiteOptions) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is empty", ErrInvalidConfig)
	}
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create sqlite directory: %v", ErrBackendUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", ErrBackendUnavailable, err)
	}
	// One writer; SQLite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, namespace: opts.Namespace, timeout: opts.OpTimeout, clock: opts.Clock}

	ctx, cancel := s.opContext(ctx)
	defer cancel()
	for _, stmt := range sqliteInit {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: init sqlite: %v", ErrBackendUnavailable, err)
		}
	}
	return s, nil
}

func (s *SQLiteStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Get returns the value if present and unexpired.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM cache_entries WHERE namespace = ? AND key = ? AND expires_at > ?`,
		s.namespace, key, s.clock.Now().UnixNano(),
	).Scan(&value)
	if err != nil {
		return nil, false
	}
	return value, true
}

// Set upserts value with the given TTL. TTL<=0 stores nothing.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (namespace, key, value, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		s.namespace, key, value, s.clock.Now().Add(ttl).UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("%w: sqlite set: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Delete removes key. Idempotent.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE namespace = ? AND key = ?`, s.namespace, key); err != nil {
		return fmt.Errorf("%w: sqlite delete: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Clear removes every row in the store's namespace.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE namespace = ?`, s.namespace); err != nil {
		return fmt.Errorf("%w: sqlite clear: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Purge deletes expired rows across all namespaces.
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`, s.clock.Now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("%w: sqlite purge: %v", ErrBackendUnavailable, err)
	}
	return res.RowsAffected()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
