package store

import (
	"database/sql"

	"github.com/kittclouds/memctl/internal/errs"
	"github.com/kittclouds/memctl/internal/sanitize"
)

// StoreDecisions inserts batch and maintains decisions_fts incrementally.
func (s *SQLiteStore) StoreDecisions(batch []*Decision) error {
	if len(batch) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Storage, "StoreDecisions", "begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO decisions
		   (conversation_id, message_id, decision_text, rationale, alternatives_json,
		    rejected_reasons_json, related_files_json, related_commits_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
	)
	if err != nil {
		return errs.Wrap(errs.Storage, "StoreDecisions", "preparing insert", err)
	}
	defer stmt.Close()

	for _, d := range batch {
		if d.CreatedAt == 0 {
			d.CreatedAt = nowMS()
		}
		var id int64
		err := stmt.QueryRow(
			d.ConversationID, d.MessageID, d.DecisionText, nullIfEmpty(d.Rationale),
			nullIfEmpty(d.AlternativesJSON), nullIfEmpty(d.RejectedReasonsJSON),
			nullIfEmpty(d.RelatedFilesJSON), nullIfEmpty(d.RelatedCommitsJSON), d.CreatedAt,
		).Scan(&id)
		if err != nil {
			return errs.Wrap(errs.Storage, "StoreDecisions", "inserting decision", err)
		}
		d.ID = id
		if err := ftsUpsertDecision(tx, id, d.DecisionText, d.Rationale); err != nil {
			return errs.Wrap(errs.Storage, "StoreDecisions", "updating fts row", err)
		}
	}

	return tx.Commit()
}

// StoreMistakes inserts batch and maintains mistakes_fts incrementally.
func (s *SQLiteStore) StoreMistakes(batch []*Mistake) error {
	if len(batch) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Storage, "StoreMistakes", "begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO mistakes
		   (conversation_id, message_id, correction_text, preceding_action_text,
		    related_files_json, related_commits_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
	)
	if err != nil {
		return errs.Wrap(errs.Storage, "StoreMistakes", "preparing insert", err)
	}
	defer stmt.Close()

	for _, m := range batch {
		if m.CreatedAt == 0 {
			m.CreatedAt = nowMS()
		}
		var id int64
		err := stmt.QueryRow(
			m.ConversationID, m.MessageID, m.CorrectionText, nullIfEmpty(m.PrecedingActionText),
			nullIfEmpty(m.RelatedFilesJSON), nullIfEmpty(m.RelatedCommitsJSON), m.CreatedAt,
		).Scan(&id)
		if err != nil {
			return errs.Wrap(errs.Storage, "StoreMistakes", "inserting mistake", err)
		}
		m.ID = id
		if err := ftsUpsertMistake(tx, id, m.CorrectionText); err != nil {
			return errs.Wrap(errs.Storage, "StoreMistakes", "updating fts row", err)
		}
	}

	return tx.Commit()
}

// StoreRequirements inserts batch.
func (s *SQLiteStore) StoreRequirements(batch []*Requirement) error {
	if len(batch) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Storage, "StoreRequirements", "begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO requirements (conversation_id, message_id, requirement_text, related_files_json, created_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
	)
	if err != nil {
		return errs.Wrap(errs.Storage, "StoreRequirements", "preparing insert", err)
	}
	defer stmt.Close()

	for _, r := range batch {
		if r.CreatedAt == 0 {
			r.CreatedAt = nowMS()
		}
		var id int64
		if err := stmt.QueryRow(r.ConversationID, r.MessageID, r.RequirementText, nullIfEmpty(r.RelatedFilesJSON), r.CreatedAt).Scan(&id); err != nil {
			return errs.Wrap(errs.Storage, "StoreRequirements", "inserting requirement", err)
		}
		r.ID = id
	}

	return tx.Commit()
}

// StoreMethodologies inserts batch.
func (s *SQLiteStore) StoreMethodologies(batch []*Methodology) error {
	if len(batch) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Storage, "StoreMethodologies", "begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO methodologies
		   (conversation_id, start_message_id, end_message_id, approach, problem_text,
		    steps_json, outcome, related_files_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
	)
	if err != nil {
		return errs.Wrap(errs.Storage, "StoreMethodologies", "preparing insert", err)
	}
	defer stmt.Close()

	for _, m := range batch {
		if m.CreatedAt == 0 {
			m.CreatedAt = nowMS()
		}
		var id int64
		err := stmt.QueryRow(
			m.ConversationID, m.StartMessageID, m.EndMessageID, string(m.Approach), m.ProblemText,
			nullIfEmpty(m.StepsJSON), nullIfEmpty(m.Outcome), nullIfEmpty(m.RelatedFilesJSON), m.CreatedAt,
		).Scan(&id)
		if err != nil {
			return errs.Wrap(errs.Storage, "StoreMethodologies", "inserting methodology", err)
		}
		m.ID = id
	}

	return tx.Commit()
}

// StoreFileEdits inserts batch, one row per file-modifying tool call
// observed during ingestion (spec §3).
func (s *SQLiteStore) StoreFileEdits(batch []*FileEdit) error {
	if len(batch) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Storage, "StoreFileEdits", "begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO file_edits (conversation_id, file_path, edit_type, snapshot_timestamp)
		 VALUES (?, ?, ?, ?) RETURNING id`,
	)
	if err != nil {
		return errs.Wrap(errs.Storage, "StoreFileEdits", "preparing insert", err)
	}
	defer stmt.Close()

	for _, f := range batch {
		var id int64
		if err := stmt.QueryRow(f.ConversationID, f.FilePath, f.EditType, f.SnapshotTimestamp).Scan(&id); err != nil {
			return errs.Wrap(errs.Storage, "StoreFileEdits", "inserting file edit", err)
		}
		f.ID = id
	}

	return tx.Commit()
}

// StoreGitCommits upserts batch on (project_id, hash), per spec §3's
// invariant that the pair is unique.
func (s *SQLiteStore) StoreGitCommits(batch []*GitCommit) error {
	if len(batch) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Storage, "StoreGitCommits", "begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO git_commits
		   (project_id, conversation_id, hash, message, author, timestamp, branch, files_changed_json, metadata_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, hash) DO UPDATE SET
		   conversation_id = excluded.conversation_id,
		   message = excluded.message,
		   author = excluded.author,
		   timestamp = excluded.timestamp,
		   branch = excluded.branch,
		   files_changed_json = excluded.files_changed_json,
		   metadata_json = excluded.metadata_json`,
	)
	if err != nil {
		return errs.Wrap(errs.Storage, "StoreGitCommits", "preparing upsert", err)
	}
	defer stmt.Close()

	for _, c := range batch {
		if _, err := stmt.Exec(
			c.ProjectID, nullIf64(c.ConversationID), c.Hash, nullIfEmpty(c.Message), nullIfEmpty(c.Author),
			c.Timestamp, nullIfEmpty(c.Branch), nullIfEmpty(c.FilesChangedJSON), nullIfEmpty(c.MetadataJSON),
		); err != nil {
			return errs.Wrap(errs.Storage, "StoreGitCommits", "upserting commit "+c.Hash, err)
		}
	}

	return tx.Commit()
}

// ClearDerivedForConversations removes every re-derivable row owned by ids:
// tool results, thinking blocks, decisions (plus their FTS and vector rows),
// mistakes (plus FTS), requirements, methodologies, and file edits. Called by
// the ingestion batch before re-inserting extractor output so a re-ingested
// transcript replaces its derived rows instead of duplicating them — these
// tables carry no external id of their own to upsert on.
func (s *SQLiteStore) ClearDerivedForConversations(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders, args := inClause(ids)

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Storage, "ClearDerivedForConversations", "begin transaction", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM tool_results WHERE message_id IN (SELECT id FROM messages WHERE conversation_id IN (` + placeholders + `))`,
		`DELETE FROM thinking_blocks WHERE message_id IN (SELECT id FROM messages WHERE conversation_id IN (` + placeholders + `))`,
		`DELETE FROM decisions_fts WHERE rowid IN (SELECT id FROM decisions WHERE conversation_id IN (` + placeholders + `))`,
		`DELETE FROM decisions_vectors WHERE base_rowid IN (SELECT id FROM decisions WHERE conversation_id IN (` + placeholders + `))`,
		`DELETE FROM decisions WHERE conversation_id IN (` + placeholders + `)`,
		`DELETE FROM mistakes_fts WHERE rowid IN (SELECT id FROM mistakes WHERE conversation_id IN (` + placeholders + `))`,
		`DELETE FROM mistakes WHERE conversation_id IN (` + placeholders + `)`,
		`DELETE FROM requirements WHERE conversation_id IN (` + placeholders + `)`,
		`DELETE FROM methodologies WHERE conversation_id IN (` + placeholders + `)`,
		`DELETE FROM file_edits WHERE conversation_id IN (` + placeholders + `)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, args...); err != nil {
			return errs.Wrap(errs.Storage, "ClearDerivedForConversations", "clearing derived rows", err)
		}
	}
	return tx.Commit()
}

// GetDecisionsForFile returns decisions whose related_files JSON array
// contains path. path is escaped via sanitize.ForLike before reaching the
// LIKE expression so wildcard characters in it never match a broader set
// of files than the literal path (spec §4.3).
func (s *SQLiteStore) GetDecisionsForFile(path string) ([]*Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pattern := `%"` + sanitize.ForLike(path) + `"%`
	rows, err := s.db.Query(
		`SELECT id, conversation_id, message_id, decision_text, rationale, alternatives_json,
		        rejected_reasons_json, related_files_json, related_commits_json, created_at
		 FROM decisions WHERE related_files_json LIKE ? ESCAPE '\'`,
		pattern,
	)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "GetDecisionsForFile", "querying decisions", err)
	}
	defer rows.Close()

	var out []*Decision
	for rows.Next() {
		d := &Decision{}
		var rationale, alt, rejected, files, commits sql.NullString
		if err := rows.Scan(&d.ID, &d.ConversationID, &d.MessageID, &d.DecisionText, &rationale,
			&alt, &rejected, &files, &commits, &d.CreatedAt); err != nil {
			return nil, errs.Wrap(errs.Storage, "GetDecisionsForFile", "scanning decision", err)
		}
		d.Rationale = rationale.String
		d.AlternativesJSON = alt.String
		d.RejectedReasonsJSON = rejected.String
		d.RelatedFilesJSON = files.String
		d.RelatedCommitsJSON = commits.String
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetMistakesForFile returns mistakes whose related_files JSON array
// contains path, escaped identically to GetDecisionsForFile.
func (s *SQLiteStore) GetMistakesForFile(path string) ([]*Mistake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pattern := `%"` + sanitize.ForLike(path) + `"%`
	rows, err := s.db.Query(
		`SELECT id, conversation_id, message_id, correction_text, preceding_action_text,
		        related_files_json, related_commits_json, created_at
		 FROM mistakes WHERE related_files_json LIKE ? ESCAPE '\'`,
		pattern,
	)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "GetMistakesForFile", "querying mistakes", err)
	}
	defer rows.Close()

	var out []*Mistake
	for rows.Next() {
		m := &Mistake{}
		var preceding, files, commits sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.MessageID, &m.CorrectionText, &preceding,
			&files, &commits, &m.CreatedAt); err != nil {
			return nil, errs.Wrap(errs.Storage, "GetMistakesForFile", "scanning mistake", err)
		}
		m.PrecedingActionText = preceding.String
		m.RelatedFilesJSON = files.String
		m.RelatedCommitsJSON = commits.String
		out = append(out, m)
	}
	return out, rows.Err()
}
