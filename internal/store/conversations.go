package store

import (
	"database/sql"

	"github.com/kittclouds/memctl/internal/errs"
)

// ResolveProjectID returns canonicalPath's project id, creating a new
// Project row if neither Project.canonical_path nor ProjectAlias.alias_path
// matches (spec §3, §4.3). Results are cached in-process; ClearCache
// invalidates the cache.
func (s *SQLiteStore) ResolveProjectID(canonicalPath, displayPath string) (int64, error) {
	s.cacheMu.RLock()
	if id, ok := s.aliasCache[canonicalPath]; ok {
		s.cacheMu.RUnlock()
		return id, nil
	}
	s.cacheMu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.lookupProjectID(canonicalPath)
	if err != nil {
		return 0, err
	}
	if id != 0 {
		s.cacheProjectID(canonicalPath, id)
		return id, nil
	}

	now := nowMS()
	var newID int64
	err = s.db.QueryRow(
		`INSERT INTO projects (canonical_path, display_path, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(canonical_path) DO UPDATE SET
		   display_path = excluded.display_path, updated_at = excluded.updated_at
		 RETURNING id`,
		canonicalPath, displayPath, now, now,
	).Scan(&newID)
	if err != nil {
		return 0, errs.Wrap(errs.Storage, "ResolveProjectID", "inserting project", err)
	}
	s.cacheProjectID(canonicalPath, newID)
	return newID, nil
}

// lookupProjectID checks projects.canonical_path then project_aliases
// .alias_path, per spec §3's resolution order. Returns 0, nil if not found.
func (s *SQLiteStore) lookupProjectID(path string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM projects WHERE canonical_path = ?`, path).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, errs.Wrap(errs.Storage, "lookupProjectID", "querying projects", err)
	}

	err = s.db.QueryRow(`SELECT project_id FROM project_aliases WHERE alias_path = ?`, path).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, errs.Wrap(errs.Storage, "lookupProjectID", "querying project_aliases", err)
	}
	return 0, nil
}

func (s *SQLiteStore) cacheProjectID(path string, id int64) {
	s.cacheMu.Lock()
	s.aliasCache[path] = id
	s.cacheMu.Unlock()
}

// AddProjectAlias redirects aliasPath to projectID without creating a
// duplicate Project row (spec §3).
func (s *SQLiteStore) AddProjectAlias(aliasPath string, projectID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO project_aliases (alias_path, project_id) VALUES (?, ?)
		 ON CONFLICT(alias_path) DO UPDATE SET project_id = excluded.project_id`,
		aliasPath, projectID,
	)
	if err != nil {
		return errs.Wrap(errs.Storage, "AddProjectAlias", "upserting alias", err)
	}
	s.cacheProjectID(aliasPath, projectID)
	return nil
}

// StoreConversations upserts batch on (source_type, external_id), returning
// a map from external_id to assigned internal id (spec §4.3). Re-applying
// identical input is idempotent: first/last-message-at widen to the MIN/MAX
// of the stored and incoming values, and every other field, message_count
// included, is overwritten with the caller's value, matching spec §8's
// idempotence invariant for a re-ingested, unchanged transcript.
func (s *SQLiteStore) StoreConversations(batch []*Conversation) (map[string]int64, error) {
	if len(batch) == 0 {
		return map[string]int64{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "StoreConversations", "begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO conversations
		   (project_id, project_path, source_type, external_id, first_message_at,
		    last_message_at, message_count, git_branch, client_version, metadata_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_type, external_id) DO UPDATE SET
		   project_id = excluded.project_id,
		   project_path = excluded.project_path,
		   first_message_at = MIN(conversations.first_message_at, excluded.first_message_at),
		   last_message_at = MAX(conversations.last_message_at, excluded.last_message_at),
		   message_count = excluded.message_count,
		   git_branch = excluded.git_branch,
		   client_version = excluded.client_version,
		   metadata_json = excluded.metadata_json
		 RETURNING id`,
	)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "StoreConversations", "preparing upsert", err)
	}
	defer stmt.Close()

	out := make(map[string]int64, len(batch))
	for _, c := range batch {
		var id int64
		err := stmt.QueryRow(
			c.ProjectID, c.ProjectPath, string(c.SourceType), c.ExternalID,
			c.FirstMessageAt, c.LastMessageAt, c.MessageCount,
			nullIfEmpty(c.GitBranch), nullIfEmpty(c.ClientVersion), nullIfEmpty(c.MetadataJSON),
		).Scan(&id)
		if err != nil {
			return nil, errs.Wrap(errs.Storage, "StoreConversations", "upserting conversation "+c.ExternalID, err)
		}
		c.ID = id
		out[c.ExternalID] = id
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.Wrap(errs.Storage, "StoreConversations", "commit", err)
	}
	return out, nil
}
