// Package store owns the embedded SQLite connection: schema migrations,
// transactional upserts for every entity in the conversation-memory model,
// FTS5/vector shadow-index maintenance, and project-path resolution
// (spec §4.3). Uses ncruces/go-sqlite3/driver, a database/sql driver with
// no cgo dependency, and asg017/sqlite-vec-go-bindings to register the
// vec0 loadable extension the teacher's own store already depended on.
package store

import (
	"database/sql"
	"sync"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/kittclouds/memctl/internal/errs"
)

// SQLiteStore is the sole Storer implementation. mu serialises every store
// operation, reads included, per spec §5 ("only one writer to the database
// at any instant"), and db is limited to a single open connection.
type SQLiteStore struct {
	mu   sync.Mutex
	db   *sql.DB
	mmap int64

	cacheMu    sync.RWMutex
	aliasCache map[string]int64 // canonical/alias path -> project id
}

// NewSQLiteStore opens an in-memory database, chiefly for tests.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:", 0)
}

// NewSQLiteStoreWithDSN opens dsn (a file path, or ":memory:"), applies the
// connection pragmas of spec §4.3 step 1, and runs the migration chain.
// mmapSize is in bytes; 0 leaves SQLite's compiled-in default.
func NewSQLiteStoreWithDSN(dsn string, mmapSize int64) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "NewSQLiteStoreWithDSN", "opening database", err)
	}
	db.SetMaxOpenConns(1) // one connection shared by every read and write

	if _, err := db.Exec(pragmas(mmapSize)); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.Storage, "NewSQLiteStoreWithDSN", "applying pragmas", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, mmap: mmapSize, aliasCache: make(map[string]int64)}, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ClearCache invalidates the in-process project-path lookup cache (spec
// §4.3's clear_cache, also called by the deletion service after a commit).
func (s *SQLiteStore) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.aliasCache = make(map[string]int64)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullIf64 renders a zero int64 as SQL NULL, for optional foreign-key-ish
// columns (ToolUse.ID for an orphaned ToolResult, Message.ParentID, ...).
func nullIf64(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

// nullIfEmpty renders an empty string as SQL NULL for optional text columns.
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
