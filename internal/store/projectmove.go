package store

import (
	"database/sql"

	"github.com/kittclouds/memctl/internal/errs"
)

// ProjectPathStats summarizes what a candidate folder's stored path owns,
// for project-folder migration's discovery ranking (spec §4.8).
type ProjectPathStats struct {
	Conversations int
	Messages      int
	LastActivity  int64
}

// StatsForProjectPath reports conversation/message counts and the most
// recent message timestamp for everything stored under path, independent of
// whether a Project row exists yet for it.
func (s *SQLiteStore) StatsForProjectPath(path string) (ProjectPathStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out ProjectPathStats
	var lastActivity sql.NullInt64
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(message_count), 0), MAX(last_message_at)
		 FROM conversations WHERE project_path = ?`, path,
	).Scan(&out.Conversations, &out.Messages, &lastActivity)
	if err != nil {
		return out, errs.Wrap(errs.Storage, "StatsForProjectPath", "querying conversations", err)
	}
	out.LastActivity = lastActivity.Int64
	return out, nil
}

// MigrateProjectPath retargets every row stored under oldPath to newPath in
// a single transaction (spec §4.8 step 6): the Project's canonical_path
// (if a row exists), every Conversation.project_path, and any
// ProjectAlias rows already covering newPath are resolved onto the same
// project, so a lookup of newPath lands on one row whether it matches the
// canonical path or an alias. No alias is kept for oldPath.
func (s *SQLiteStore) MigrateProjectPath(oldPath, newPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Storage, "MigrateProjectPath", "begin transaction", err)
	}
	defer tx.Rollback()

	var projectID int64
	err = tx.QueryRow(`SELECT id FROM projects WHERE canonical_path = ?`, oldPath).Scan(&projectID)
	if err != nil && err != sql.ErrNoRows {
		return errs.Wrap(errs.Storage, "MigrateProjectPath", "looking up project", err)
	}

	if projectID != 0 {
		if _, err := tx.Exec(
			`UPDATE projects SET canonical_path = ?, updated_at = ? WHERE id = ?`,
			newPath, nowMS(), projectID,
		); err != nil {
			return errs.Wrap(errs.Storage, "MigrateProjectPath", "updating canonical path", err)
		}
		// An alias already covering newPath that points at another
		// project is repointed here, so newPath resolves to this row
		// through its alias as well as its canonical path.
		if _, err := tx.Exec(
			`UPDATE project_aliases SET project_id = ? WHERE alias_path = ? AND project_id != ?`,
			projectID, newPath, projectID,
		); err != nil {
			return errs.Wrap(errs.Storage, "MigrateProjectPath", "updating aliases", err)
		}
	}

	if _, err := tx.Exec(
		`UPDATE conversations SET project_path = ? WHERE project_path = ?`,
		newPath, oldPath,
	); err != nil {
		return errs.Wrap(errs.Storage, "MigrateProjectPath", "updating conversation paths", err)
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Storage, "MigrateProjectPath", "commit", err)
	}
	s.cacheMu.Lock()
	delete(s.aliasCache, oldPath)
	s.cacheMu.Unlock()
	return nil
}
