package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists entries in a single-table SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent compiles writing at once
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS scripts (
		key BLOB PRIMARY KEY,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	log.Infof("opened sqlite cache %s", path)
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

// Get returns the entry for k.
func (s *SQLiteStore) Get(k Key) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM scripts WHERE key = ?", k[:]).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("querying script: %w", err)
	}
	return data, true, nil
}

// Put stores data under k, replacing any previous entry.
func (s *SQLiteStore) Put(k Key, data []byte) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO scripts (key, data, created_at) VALUES (?, ?, ?)",
		k[:], data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving script: %w", err)
	}
	return nil
}

// Len returns the number of entries.
func (s *SQLiteStore) Len() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM scripts").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting scripts: %w", err)
	}
	return n, nil
}

// Prune deletes entries created before t and returns how many went.
func (s *SQLiteStore) Prune(before time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM scripts WHERE created_at < ?", before.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning scripts: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
