// Package sqlite implements the kvstore.Store interface on top of a CGO free
// SQLite database.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ardanlabs/blockfeed/foundation/kvstore"
	_ "modernc.org/sqlite"
)

// SQLite represents a key/value table in a SQLite database. Reads and
// writes use separate pools so a slow writer never blocks readers.
// This implements the kvstore.Store interface.
type SQLite struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

// Open opens or creates the database file at dbPath.
func Open(dbPath string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	// WAL + busy timeout to avoid "database is locked".
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	writeDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	s := SQLite{writeDB: writeDB}
	if err := s.init(); err != nil {
		writeDB.Close()
		return nil, err
	}

	readDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}
	s.readDB = readDB

	return &s, nil
}

func (s *SQLite) init() error {
	_, err := s.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

// Close releases both connection pools.
func (s *SQLite) Close() error {
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	return errors.Join(errs...)
}

// Get returns the value stored under the key.
func (s *SQLite) Get(key string) ([]byte, error) {
	var value []byte
	err := s.readDB.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, kvstore.ErrNotFound
		}
		return nil, fmt.Errorf("reading key %s: %w", key, err)
	}

	return value, nil
}

// Set upserts the value under the key.
func (s *SQLite) Set(key string, value []byte) error {
	if err := kvstore.ValidateKey(key); err != nil {
		return err
	}

	const q = `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`

	if _, err := s.writeDB.Exec(q, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("writing key %s: %w", key, err)
	}

	return nil
}

// Delete removes the key. Deleting a missing key is not an error.
func (s *SQLite) Delete(key string) error {
	if _, err := s.writeDB.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting key %s: %w", key, err)
	}

	return nil
}

// Keys returns every stored key with the time it was last written.
func (s *SQLite) Keys() (map[string]time.Time, error) {
	rows, err := s.readDB.Query(`SELECT key, updated_at FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]time.Time)
	for rows.Next() {
		var key string
		var updated time.Time
		if err := rows.Scan(&key, &updated); err != nil {
			return nil, err
		}
		keys[key] = updated
	}

	return keys, rows.Err()
}
