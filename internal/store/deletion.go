package store

import (
	"database/sql"
	"encoding/json"

	"github.com/kittclouds/memctl/internal/errs"
)

// backupDump is the subtree serialized by ExportConversations before a
// destructive delete, per spec §4.7. It carries the conversations and every
// row the foreign-key cascade is about to remove; the messages_vectors and
// decisions_vectors rows that DeleteConversations also removes are not
// included.
type backupDump struct {
	Conversations  []*Conversation  `json:"conversations"`
	Messages       []*Message       `json:"messages"`
	ToolUses       []*ToolUse       `json:"toolUses"`
	ToolResults    []*ToolResult    `json:"toolResults"`
	ThinkingBlocks []*ThinkingBlock `json:"thinkingBlocks"`
	Decisions      []*Decision      `json:"decisions"`
	Mistakes       []*Mistake       `json:"mistakes"`
	Requirements   []*Requirement   `json:"requirements"`
	Methodologies  []*Methodology   `json:"methodologies"`
	FileEdits      []*FileEdit      `json:"fileEdits"`
}

// ExportConversations serializes every row owned by ids (the conversations
// themselves plus their full cascade) to JSON, for the deletion service to
// write out as a timestamped, mode-0600 backup file before it deletes
// anything (spec §4.7). An empty ids slice yields an empty dump, never an
// error.
func (s *SQLiteStore) ExportConversations(ids []int64) ([]byte, error) {
	if len(ids) == 0 {
		return json.Marshal(backupDump{})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders, args := inClause(ids)
	dump := backupDump{}

	if err := queryInto(s.db, `SELECT id, project_id, project_path, source_type, external_id, first_message_at, last_message_at, message_count, git_branch, client_version, metadata_json FROM conversations WHERE id IN (`+placeholders+`)`, args, func(rows *sql.Rows) error {
		c := &Conversation{}
		var gitBranch, clientVersion, metadataJSON sql.NullString
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.ProjectPath, &c.SourceType, &c.ExternalID, &c.FirstMessageAt, &c.LastMessageAt, &c.MessageCount, &gitBranch, &clientVersion, &metadataJSON); err != nil {
			return err
		}
		c.GitBranch = gitBranch.String
		c.ClientVersion = clientVersion.String
		c.MetadataJSON = metadataJSON.String
		dump.Conversations = append(dump.Conversations, c)
		return nil
	}); err != nil {
		return nil, errs.Wrap(errs.Storage, "ExportConversations", "dumping conversations", err)
	}

	if err := queryInto(s.db, `SELECT id, conversation_id, external_id, parent_id, message_type, role, content, timestamp, is_sidechain, metadata_json FROM messages WHERE conversation_id IN (`+placeholders+`)`, args, func(rows *sql.Rows) error {
		m := &Message{}
		var parentID sql.NullInt64
		var isSidechain int
		var metadataJSON sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.ExternalID, &parentID, &m.MessageType, &m.Role, &m.Content, &m.Timestamp, &isSidechain, &metadataJSON); err != nil {
			return err
		}
		m.ParentID = parentID.Int64
		m.IsSidechain = isSidechain != 0
		m.MetadataJSON = metadataJSON.String
		dump.Messages = append(dump.Messages, m)
		return nil
	}); err != nil {
		return nil, errs.Wrap(errs.Storage, "ExportConversations", "dumping messages", err)
	}

	if err := queryInto(s.db, `SELECT tu.id, tu.message_id, tu.external_id, tu.tool_name, tu.tool_input_json, tu.timestamp
	                           FROM tool_uses tu JOIN messages m ON m.id = tu.message_id WHERE m.conversation_id IN (`+placeholders+`)`, args, func(rows *sql.Rows) error {
		tu := &ToolUse{}
		var inputJSON sql.NullString
		if err := rows.Scan(&tu.ID, &tu.MessageID, &tu.ExternalID, &tu.ToolName, &inputJSON, &tu.Timestamp); err != nil {
			return err
		}
		tu.ToolInputJSON = inputJSON.String
		dump.ToolUses = append(dump.ToolUses, tu)
		return nil
	}); err != nil {
		return nil, errs.Wrap(errs.Storage, "ExportConversations", "dumping tool uses", err)
	}

	if err := queryInto(s.db, `SELECT tr.id, tr.tool_use_id, tr.message_id, tr.content, tr.is_error, tr.stdout, tr.stderr, tr.is_image, tr.timestamp
	                           FROM tool_results tr JOIN messages m ON m.id = tr.message_id WHERE m.conversation_id IN (`+placeholders+`)`, args, func(rows *sql.Rows) error {
		tr := &ToolResult{}
		var toolUseID sql.NullInt64
		var content, stdout, stderr sql.NullString
		var isError, isImage int
		if err := rows.Scan(&tr.ID, &toolUseID, &tr.MessageID, &content, &isError, &stdout, &stderr, &isImage, &tr.Timestamp); err != nil {
			return err
		}
		tr.ToolUseID = toolUseID.Int64
		tr.Content = content.String
		tr.IsError = isError != 0
		tr.Stdout = stdout.String
		tr.Stderr = stderr.String
		tr.IsImage = isImage != 0
		dump.ToolResults = append(dump.ToolResults, tr)
		return nil
	}); err != nil {
		return nil, errs.Wrap(errs.Storage, "ExportConversations", "dumping tool results", err)
	}

	if err := queryInto(s.db, `SELECT tb.id, tb.message_id, tb.thinking_content, tb.signature, tb.timestamp
	                           FROM thinking_blocks tb JOIN messages m ON m.id = tb.message_id WHERE m.conversation_id IN (`+placeholders+`)`, args, func(rows *sql.Rows) error {
		tb := &ThinkingBlock{}
		var signature sql.NullString
		if err := rows.Scan(&tb.ID, &tb.MessageID, &tb.ThinkingContent, &signature, &tb.Timestamp); err != nil {
			return err
		}
		tb.Signature = signature.String
		dump.ThinkingBlocks = append(dump.ThinkingBlocks, tb)
		return nil
	}); err != nil {
		return nil, errs.Wrap(errs.Storage, "ExportConversations", "dumping thinking blocks", err)
	}

	if err := queryInto(s.db, `SELECT id, conversation_id, message_id, decision_text, rationale, alternatives_json, rejected_reasons_json, related_files_json, related_commits_json, created_at
	                           FROM decisions WHERE conversation_id IN (`+placeholders+`)`, args, func(rows *sql.Rows) error {
		d := &Decision{}
		var rationale, alternatives, rejected, relFiles, relCommits sql.NullString
		if err := rows.Scan(&d.ID, &d.ConversationID, &d.MessageID, &d.DecisionText, &rationale, &alternatives, &rejected, &relFiles, &relCommits, &d.CreatedAt); err != nil {
			return err
		}
		d.Rationale, d.AlternativesJSON, d.RejectedReasonsJSON = rationale.String, alternatives.String, rejected.String
		d.RelatedFilesJSON, d.RelatedCommitsJSON = relFiles.String, relCommits.String
		dump.Decisions = append(dump.Decisions, d)
		return nil
	}); err != nil {
		return nil, errs.Wrap(errs.Storage, "ExportConversations", "dumping decisions", err)
	}

	if err := queryInto(s.db, `SELECT id, conversation_id, message_id, correction_text, preceding_action_text, related_files_json, related_commits_json, created_at
	                           FROM mistakes WHERE conversation_id IN (`+placeholders+`)`, args, func(rows *sql.Rows) error {
		mi := &Mistake{}
		var preceding, relFiles, relCommits sql.NullString
		if err := rows.Scan(&mi.ID, &mi.ConversationID, &mi.MessageID, &mi.CorrectionText, &preceding, &relFiles, &relCommits, &mi.CreatedAt); err != nil {
			return err
		}
		mi.PrecedingActionText, mi.RelatedFilesJSON, mi.RelatedCommitsJSON = preceding.String, relFiles.String, relCommits.String
		dump.Mistakes = append(dump.Mistakes, mi)
		return nil
	}); err != nil {
		return nil, errs.Wrap(errs.Storage, "ExportConversations", "dumping mistakes", err)
	}

	if err := queryInto(s.db, `SELECT id, conversation_id, message_id, requirement_text, related_files_json, created_at
	                           FROM requirements WHERE conversation_id IN (`+placeholders+`)`, args, func(rows *sql.Rows) error {
		r := &Requirement{}
		var relFiles sql.NullString
		if err := rows.Scan(&r.ID, &r.ConversationID, &r.MessageID, &r.RequirementText, &relFiles, &r.CreatedAt); err != nil {
			return err
		}
		r.RelatedFilesJSON = relFiles.String
		dump.Requirements = append(dump.Requirements, r)
		return nil
	}); err != nil {
		return nil, errs.Wrap(errs.Storage, "ExportConversations", "dumping requirements", err)
	}

	if err := queryInto(s.db, `SELECT id, conversation_id, start_message_id, end_message_id, approach, problem_text, steps_json, outcome, related_files_json, created_at
	                           FROM methodologies WHERE conversation_id IN (`+placeholders+`)`, args, func(rows *sql.Rows) error {
		me := &Methodology{}
		var steps, outcome, relFiles sql.NullString
		if err := rows.Scan(&me.ID, &me.ConversationID, &me.StartMessageID, &me.EndMessageID, &me.Approach, &me.ProblemText, &steps, &outcome, &relFiles, &me.CreatedAt); err != nil {
			return err
		}
		me.StepsJSON, me.Outcome, me.RelatedFilesJSON = steps.String, outcome.String, relFiles.String
		dump.Methodologies = append(dump.Methodologies, me)
		return nil
	}); err != nil {
		return nil, errs.Wrap(errs.Storage, "ExportConversations", "dumping methodologies", err)
	}

	if err := queryInto(s.db, `SELECT id, conversation_id, file_path, edit_type, snapshot_timestamp FROM file_edits WHERE conversation_id IN (`+placeholders+`)`, args, func(rows *sql.Rows) error {
		fe := &FileEdit{}
		if err := rows.Scan(&fe.ID, &fe.ConversationID, &fe.FilePath, &fe.EditType, &fe.SnapshotTimestamp); err != nil {
			return err
		}
		dump.FileEdits = append(dump.FileEdits, fe)
		return nil
	}); err != nil {
		return nil, errs.Wrap(errs.Storage, "ExportConversations", "dumping file edits", err)
	}

	out, err := json.Marshal(dump)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "ExportConversations", "marshaling dump", err)
	}
	return out, nil
}

// DeleteConversations removes ids and their full cascade inside a single
// transaction. FTS shadow rows are deleted by rowid first (plain DELETE
// cascades never reach an external-content FTS5 table), then the
// conversations themselves, letting ON DELETE CASCADE take care of
// messages, tool_uses, tool_results, thinking_blocks, decisions, mistakes,
// requirements, file_edits and methodologies (spec §4.7). Vector rows are
// cleaned up by base_rowid since they carry no foreign key of their own.
// After a successful commit it clears the project-path cache itself.
func (s *SQLiteStore) DeleteConversations(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders, args := inClause(ids)

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Storage, "DeleteConversations", "begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages_fts WHERE rowid IN (SELECT id FROM messages WHERE conversation_id IN (`+placeholders+`))`, args...); err != nil {
		return errs.Wrap(errs.Storage, "DeleteConversations", "clearing messages_fts", err)
	}
	if _, err := tx.Exec(`DELETE FROM decisions_fts WHERE rowid IN (SELECT id FROM decisions WHERE conversation_id IN (`+placeholders+`))`, args...); err != nil {
		return errs.Wrap(errs.Storage, "DeleteConversations", "clearing decisions_fts", err)
	}
	if _, err := tx.Exec(`DELETE FROM mistakes_fts WHERE rowid IN (SELECT id FROM mistakes WHERE conversation_id IN (`+placeholders+`))`, args...); err != nil {
		return errs.Wrap(errs.Storage, "DeleteConversations", "clearing mistakes_fts", err)
	}

	if _, err := tx.Exec(`DELETE FROM messages_vectors WHERE base_rowid IN (SELECT id FROM messages WHERE conversation_id IN (`+placeholders+`))`, args...); err != nil {
		return errs.Wrap(errs.Storage, "DeleteConversations", "clearing messages_vectors", err)
	}
	if _, err := tx.Exec(`DELETE FROM decisions_vectors WHERE base_rowid IN (SELECT id FROM decisions WHERE conversation_id IN (`+placeholders+`))`, args...); err != nil {
		return errs.Wrap(errs.Storage, "DeleteConversations", "clearing decisions_vectors", err)
	}

	if _, err := tx.Exec(`DELETE FROM conversations WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return errs.Wrap(errs.Storage, "DeleteConversations", "deleting conversations", err)
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Storage, "DeleteConversations", "commit", err)
	}

	s.ClearCache()
	return nil
}

// inClause builds a "?, ?, ?" placeholder string and the matching
// interface{} arg slice for an IN (...) clause over ids.
func inClause(ids []int64) (string, []interface{}) {
	placeholders := ""
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args[i] = id
	}
	return placeholders, args
}

// queryInto runs query with args and feeds each resulting row to scan,
// closing the rows when done.
func queryInto(db *sql.DB, query string, args []interface{}, scan func(*sql.Rows) error) error {
	rows, err := db.Query(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
