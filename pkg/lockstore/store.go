// Package lockstore implements the convergence lock store (C7): per-
// fingerprint locks with ifelapsed/expireafter arbitration, plus the
// general-purpose namespaced key/value contract that persistent classes
// (pkg/classes) use, all backed by sqlite.
// Grounded on the teacher's pkg/stores/sqlite_store.go (WAL pragma,
// busy_timeout, golang-migrate + embed schema migration, connection-pool
// defaults).
package lockstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Outcome is the result of a try-acquire attempt.
type Outcome string

const (
	Acquired Outcome = "acquired"
	TooSoon  Outcome = "too-soon"
	Stale    Outcome = "stale"
	Conflict Outcome = "conflict"
)

// Handle identifies a held lock for Release.
type Handle struct {
	Namespace   string
	Fingerprint string
	OwnerIdent  string
}

// Store is the sqlite-backed convergence lock store.
type Store struct {
	db   *sql.DB
	path string
}

type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("lockstore: database path is required")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	return &Store{path: cfg.Path}, nil
}

// Init opens the database, enables WAL + a busy timeout so multiple agent
// processes on the same host can share the store safely (§4.7 "must be
// safe under concurrent access by multiple agent processes"), and applies
// schema migrations.
func (s *Store) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("lockstore: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("lockstore: ping: %w", err)
	}
	s.db = db
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return err
	}
	return nil
}

func (s *Store) migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("lockstore: migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("lockstore: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("lockstore: migration init: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("lockstore: migration up: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// TryAcquire implements try_acquire(fingerprint, owner, now) from §4.7.
// ifelapsed and expireafter are durations; a zero ifelapsed means "always
// eligible to reacquire".
func (s *Store) TryAcquire(ctx context.Context, namespace, fingerprint, owner string, ifelapsed, expireafter time.Duration, now time.Time) (Outcome, *Handle, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, fmt.Errorf("lockstore: begin: %w", err)
	}
	defer tx.Rollback()

	var existingOwner string
	var acquiredAt, expiresAt int64
	row := tx.QueryRowContext(ctx,
		`SELECT owner_ident, acquired_at, expires_at FROM locks WHERE namespace = ? AND fingerprint = ?`,
		namespace, fingerprint)
	err = row.Scan(&existingOwner, &acquiredAt, &expiresAt)

	switch {
	case err == sql.ErrNoRows:
		if err := s.insertLock(ctx, tx, namespace, fingerprint, owner, now, expireafter); err != nil {
			return "", nil, err
		}
		if err := tx.Commit(); err != nil {
			return "", nil, err
		}
		return Acquired, &Handle{Namespace: namespace, Fingerprint: fingerprint, OwnerIdent: owner}, nil
	case err != nil:
		return "", nil, fmt.Errorf("lockstore: query: %w", err)
	}

	held := time.Unix(acquiredAt, 0)
	elapsed := now.Sub(held)

	if expiresAt > 0 && now.After(time.Unix(expiresAt, 0)) {
		// stale: prior holder exceeded expireafter, steal the lock and
		// return Stale; pkg/evaluator logs the likely prior-run crash.
		if err := s.insertLock(ctx, tx, namespace, fingerprint, owner, now, expireafter); err != nil {
			return "", nil, err
		}
		if err := tx.Commit(); err != nil {
			return "", nil, err
		}
		return Stale, &Handle{Namespace: namespace, Fingerprint: fingerprint, OwnerIdent: owner}, nil
	}

	if existingOwner != owner {
		return Conflict, nil, nil
	}

	if elapsed < ifelapsed {
		return TooSoon, nil, nil
	}

	if err := s.insertLock(ctx, tx, namespace, fingerprint, owner, now, expireafter); err != nil {
		return "", nil, err
	}
	if err := tx.Commit(); err != nil {
		return "", nil, err
	}
	return Acquired, &Handle{Namespace: namespace, Fingerprint: fingerprint, OwnerIdent: owner}, nil
}

func (s *Store) insertLock(ctx context.Context, tx *sql.Tx, namespace, fingerprint, owner string, now time.Time, expireafter time.Duration) error {
	var expiresAt int64
	if expireafter > 0 {
		expiresAt = now.Add(expireafter).Unix()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO locks (namespace, fingerprint, owner_ident, acquired_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(namespace, fingerprint) DO UPDATE SET
		   owner_ident = excluded.owner_ident,
		   acquired_at = excluded.acquired_at,
		   expires_at = excluded.expires_at`,
		namespace, fingerprint, owner, now.Unix(), expiresAt)
	return err
}

// Release drops a held lock. pkg/evaluator skips this call for a clone
// whose thislock constraint is set, leaving the lock held for the
// long-duration hold that promise declared.
func (s *Store) Release(ctx context.Context, h *Handle) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM locks WHERE namespace = ? AND fingerprint = ? AND owner_ident = ?`,
		h.Namespace, h.Fingerprint, h.OwnerIdent)
	return err
}

// Heartbeat records owner liveness, used by HasLiveOwner to decide whether
// --no-lock may safely proceed (Open Question c).
func (s *Store) Heartbeat(ctx context.Context, owner string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO owner_liveness (owner_ident, heartbeat_at) VALUES (?, ?)
		 ON CONFLICT(owner_ident) DO UPDATE SET heartbeat_at = excluded.heartbeat_at`,
		owner, now.Unix())
	return err
}

// HasLiveOwner reports whether any owner (other than self) has heartbeat
// more recently than staleAfter. --no-lock callers must refuse to run if
// this is true, per Open Question (c).
func (s *Store) HasLiveOwner(ctx context.Context, self string, staleAfter time.Duration, now time.Time) (bool, error) {
	cutoff := now.Add(-staleAfter).Unix()
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM owner_liveness WHERE owner_ident != ? AND heartbeat_at >= ?`,
		self, cutoff)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- generic namespaced KV, satisfying classes.PersistentStore ---

func (s *Store) Put(namespace, key string, value []byte, expiresAt time.Time) error {
	var exp int64
	if !expiresAt.IsZero() {
		exp = expiresAt.Unix()
	}
	_, err := s.db.Exec(
		`INSERT INTO kv (namespace, key, value, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		namespace, key, value, exp)
	return err
}

func (s *Store) Get(namespace, key string) ([]byte, time.Time, bool, error) {
	row := s.db.QueryRow(`SELECT value, expires_at FROM kv WHERE namespace = ? AND key = ?`, namespace, key)
	var value []byte
	var exp int64
	if err := row.Scan(&value, &exp); err != nil {
		if err == sql.ErrNoRows {
			return nil, time.Time{}, false, nil
		}
		return nil, time.Time{}, false, err
	}
	var expiresAt time.Time
	if exp > 0 {
		expiresAt = time.Unix(exp, 0)
	}
	return value, expiresAt, true, nil
}

func (s *Store) Delete(namespace, key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE namespace = ? AND key = ?`, namespace, key)
	return err
}
