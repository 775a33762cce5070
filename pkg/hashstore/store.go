// Package hashstore implements the hash-indexed content store (C10): a
// persistent map of (hash-kind, key) -> digest used to detect drift, plus
// the first-seen/changed/purge tri-state logic of §4.10. Grounded on the
// teacher's pkg/stores/sqlite_store.go connection/migration pattern and the
// checksum handling in pkg/micro_runner/handlers/file.go.
package hashstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// CompareResult is the outcome of a read-compare operation.
type CompareResult string

const (
	FirstSeen CompareResult = "first-seen"
	Unchanged CompareResult = "unchanged"
	Changed   CompareResult = "changed"
)

type Store struct {
	db   *sql.DB
	path string
}

type Config struct {
	Path string
}

func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("hashstore: database path is required")
	}
	return &Store{path: cfg.Path}, nil
}

func (s *Store) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", s.path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("hashstore: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("hashstore: ping: %w", err)
	}
	s.db = db
	return s.migrate()
}

func (s *Store) migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("hashstore: migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("hashstore: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("hashstore: migration init: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("hashstore: migration up: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Read returns the stored digest for (kind, key), or found=false if no
// entry exists.
func (s *Store) Read(kind, key string) (digest string, found bool, err error) {
	row := s.db.QueryRow(`SELECT digest FROM digests WHERE kind = ? AND key = ?`, kind, key)
	if err := row.Scan(&digest); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return digest, true, nil
}

func (s *Store) Write(kind, key, digest string) error {
	_, err := s.db.Exec(
		`INSERT INTO digests (kind, key, digest) VALUES (?, ?, ?)
		 ON CONFLICT(kind, key) DO UPDATE SET digest = excluded.digest`,
		kind, key, digest)
	return err
}

func (s *Store) Delete(kind, key string) error {
	_, err := s.db.Exec(`DELETE FROM digests WHERE kind = ? AND key = ?`, kind, key)
	return err
}

// Compare implements the read-compare tri-state of §4.10: a missing entry
// is first-seen and the store is populated; a mismatch is changed, and if
// updatePromised is true the stored digest is replaced, otherwise the old
// digest is preserved (caller reports not-kept).
func (s *Store) Compare(kind, key, currentDigest string, updatePromised bool) (CompareResult, error) {
	stored, found, err := s.Read(kind, key)
	if err != nil {
		return "", err
	}
	if !found {
		if err := s.Write(kind, key, currentDigest); err != nil {
			return "", err
		}
		return FirstSeen, nil
	}
	if stored == currentDigest {
		return Unchanged, nil
	}
	if updatePromised {
		if err := s.Write(kind, key, currentDigest); err != nil {
			return "", err
		}
	}
	return Changed, nil
}

// ExistsChecker reports whether a key's underlying path still exists, used
// by PurgeWalk to find stale entries.
type ExistsChecker func(kind, key string) bool

// PurgeWalk removes entries whose key refers to a no-longer-existing path.
// Returns the keys actually removed, subject to the same update/warn
// distinction as Compare: when updatePromised is false, matching entries
// are reported but left in place.
func (s *Store) PurgeWalk(kind string, exists ExistsChecker, updatePromised bool) ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM digests WHERE kind = ?`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		if !exists(kind, key) {
			stale = append(stale, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !updatePromised {
		return stale, nil
	}
	for _, key := range stale {
		if err := s.Delete(kind, key); err != nil {
			return nil, err
		}
	}
	return stale, nil
}
