package store

import (
	"database/sql"

	"github.com/kittclouds/memctl/internal/errs"
)

// SetWorkingMemory upserts one (project_path, key) working-memory entry with
// a TTL of ttlMS from now, keeping its FTS shadow row in step. A replaced
// entry keeps its created_at.
func (s *SQLiteStore) SetWorkingMemory(projectPath, key, value string, ttlMS int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowMS()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Storage, "SetWorkingMemory", "begin transaction", err)
	}
	defer tx.Rollback()

	var rowid int64
	err = tx.QueryRow(
		`INSERT INTO working_memory (project_path, key, value, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(project_path, key) DO UPDATE SET
		   value = excluded.value, expires_at = excluded.expires_at
		 RETURNING rowid`,
		projectPath, key, value, now, now+ttlMS,
	).Scan(&rowid)
	if err != nil {
		return errs.Wrap(errs.Storage, "SetWorkingMemory", "upserting entry", err)
	}

	if _, err := tx.Exec(`DELETE FROM working_memory_fts WHERE rowid = ?`, rowid); err != nil {
		return errs.Wrap(errs.Storage, "SetWorkingMemory", "clearing fts row", err)
	}
	if _, err := tx.Exec(`INSERT INTO working_memory_fts (rowid, value) VALUES (?, ?)`, rowid, value); err != nil {
		return errs.Wrap(errs.Storage, "SetWorkingMemory", "inserting fts row", err)
	}

	return tx.Commit()
}

// GetWorkingMemory returns every live (unexpired) entry for projectPath.
// Expired rows are swept as a side effect, keeping reads and the FTS shadow
// table consistent without a background janitor.
func (s *SQLiteStore) GetWorkingMemory(projectPath string) ([]*WorkingMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowMS()
	if err := s.sweepExpired(now); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT project_path, key, value, created_at, expires_at
		 FROM working_memory WHERE project_path = ? AND expires_at > ?
		 ORDER BY key`,
		projectPath, now,
	)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "GetWorkingMemory", "querying entries", err)
	}
	defer rows.Close()

	var out []*WorkingMemory
	for rows.Next() {
		wm := &WorkingMemory{}
		if err := rows.Scan(&wm.ProjectPath, &wm.Key, &wm.Value, &wm.CreatedAt, &wm.ExpiresAt); err != nil {
			return nil, errs.Wrap(errs.Storage, "GetWorkingMemory", "scanning entry", err)
		}
		out = append(out, wm)
	}
	return out, rows.Err()
}

// DeleteWorkingMemory removes one (project_path, key) entry and its FTS
// shadow row. Deleting an absent key is a no-op.
func (s *SQLiteStore) DeleteWorkingMemory(projectPath, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Storage, "DeleteWorkingMemory", "begin transaction", err)
	}
	defer tx.Rollback()

	var rowid int64
	err = tx.QueryRow(`SELECT rowid FROM working_memory WHERE project_path = ? AND key = ?`, projectPath, key).Scan(&rowid)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return errs.Wrap(errs.Storage, "DeleteWorkingMemory", "looking up entry", err)
	}

	if _, err := tx.Exec(`DELETE FROM working_memory_fts WHERE rowid = ?`, rowid); err != nil {
		return errs.Wrap(errs.Storage, "DeleteWorkingMemory", "clearing fts row", err)
	}
	if _, err := tx.Exec(`DELETE FROM working_memory WHERE rowid = ?`, rowid); err != nil {
		return errs.Wrap(errs.Storage, "DeleteWorkingMemory", "deleting entry", err)
	}
	return tx.Commit()
}

// sweepExpired deletes expired working_memory and session_handoff rows,
// clearing working-memory FTS rows first. Caller holds s.mu.
func (s *SQLiteStore) sweepExpired(now int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Storage, "sweepExpired", "begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM working_memory_fts WHERE rowid IN (SELECT rowid FROM working_memory WHERE expires_at <= ?)`, now,
	); err != nil {
		return errs.Wrap(errs.Storage, "sweepExpired", "clearing fts rows", err)
	}
	if _, err := tx.Exec(`DELETE FROM working_memory WHERE expires_at <= ?`, now); err != nil {
		return errs.Wrap(errs.Storage, "sweepExpired", "deleting working memory", err)
	}
	if _, err := tx.Exec(`DELETE FROM session_handoffs WHERE expires_at <= ?`, now); err != nil {
		return errs.Wrap(errs.Storage, "sweepExpired", "deleting session handoffs", err)
	}
	return tx.Commit()
}

// SetSessionHandoff records handoff content for projectPath with a TTL of
// ttlMS from now. Multiple handoffs may coexist; GetSessionHandoff returns
// the most recent live one.
func (s *SQLiteStore) SetSessionHandoff(projectPath, content string, ttlMS int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowMS()
	_, err := s.db.Exec(
		`INSERT INTO session_handoffs (project_path, content, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		projectPath, content, now, now+ttlMS,
	)
	if err != nil {
		return errs.Wrap(errs.Storage, "SetSessionHandoff", "inserting handoff", err)
	}
	return nil
}

// GetSessionHandoff returns the most recent live handoff for projectPath,
// or ok=false if none exists.
func (s *SQLiteStore) GetSessionHandoff(projectPath string) (*SessionHandoff, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowMS()
	if err := s.sweepExpired(now); err != nil {
		return nil, false, err
	}

	h := &SessionHandoff{}
	err := s.db.QueryRow(
		`SELECT project_path, content, created_at, expires_at
		 FROM session_handoffs WHERE project_path = ? AND expires_at > ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		projectPath, now,
	).Scan(&h.ProjectPath, &h.Content, &h.CreatedAt, &h.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(errs.Storage, "GetSessionHandoff", "querying handoff", err)
	}
	return h, true, nil
}
