package proc

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"
	_ "modernc.org/sqlite" // registers "sqlite" driver
)

// SQLite store, one row per key
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and creates) sqlite cache database at path
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	_, err = db.Exec("CREATE TABLE IF NOT EXISTS entries (key TEXT PRIMARY KEY, data BLOB NOT NULL, cached_at INTEGER NOT NULL)")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create entries table: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Get entry by key
func (s *SQLite) Get(key string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM entries WHERE key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read sqlite entry %s: %w", key, err)
	}
	log.Printf("[DEBUG] sqlite hit %s, %d bytes", key, len(data))
	return data, true, nil
}

// Put entry, replacing previous row for the key
func (s *SQLite) Put(key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.Exec("INSERT OR REPLACE INTO entries (key, data, cached_at) VALUES (?, ?, ?)",
		key, data, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("write sqlite entry %s: %w", key, err)
	}
	log.Printf("[DEBUG] sqlite put %s, %d bytes", key, len(data))
	return nil
}

// Close database
func (s *SQLite) Close() error {
	return s.db.Close()
}
