package store

import (
	"github.com/kittclouds/memctl/internal/errs"
)

// StoreMessages upserts batch on (conversation_id, external_id), resolving
// each Message's ConversationExternalID through conversationIDMap.
// Messages whose conversation has no mapping are silently dropped (spec
// §4.3) rather than erroring the whole batch. FTS shadow rows are rebuilt
// per inserted row unless skipFTSRebuild is set, in which case the caller
// is responsible for a single RebuildFTS("messages") call at the end of the
// ingestion batch.
func (s *SQLiteStore) StoreMessages(batch []*Message, conversationIDMap map[string]int64, skipFTSRebuild bool) (map[string]int64, error) {
	out := make(map[string]int64, len(batch))
	if len(batch) == 0 {
		return out, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "StoreMessages", "begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO messages
		   (conversation_id, external_id, parent_id, message_type, role, content,
		    timestamp, is_sidechain, metadata_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(conversation_id, external_id) DO UPDATE SET
		   parent_id = excluded.parent_id,
		   message_type = excluded.message_type,
		   role = excluded.role,
		   content = excluded.content,
		   timestamp = excluded.timestamp,
		   is_sidechain = excluded.is_sidechain,
		   metadata_json = excluded.metadata_json
		 RETURNING id`,
	)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "StoreMessages", "preparing upsert", err)
	}
	defer stmt.Close()

	for _, m := range batch {
		convID, ok := conversationIDMap[m.ConversationExternalID]
		if !ok {
			continue
		}
		var id int64
		err := stmt.QueryRow(
			convID, m.ExternalID, nullIf64(m.ParentID), string(m.MessageType), m.Role, m.Content,
			m.Timestamp, boolToInt(m.IsSidechain), nullIfEmpty(m.MetadataJSON),
		).Scan(&id)
		if err != nil {
			return nil, errs.Wrap(errs.Storage, "StoreMessages", "upserting message "+m.ExternalID, err)
		}
		m.ID = id
		m.ConversationID = convID
		out[m.ExternalID] = id

		if !skipFTSRebuild {
			if err := ftsUpsertMessage(tx, id, m.Content); err != nil {
				return nil, errs.Wrap(errs.Storage, "StoreMessages", "rebuilding fts row", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.Wrap(errs.Storage, "StoreMessages", "commit", err)
	}
	return out, nil
}

// StoreToolUses upserts batch on (message_id, external_id), returning a map
// from external_id to assigned internal id so the caller can resolve
// ToolResult.ToolUseID before calling StoreToolResults.
func (s *SQLiteStore) StoreToolUses(batch []*ToolUse) (map[string]int64, error) {
	out := make(map[string]int64, len(batch))
	if len(batch) == 0 {
		return out, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "StoreToolUses", "begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO tool_uses (message_id, external_id, tool_name, tool_input_json, timestamp)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(message_id, external_id) DO UPDATE SET
		   tool_name = excluded.tool_name,
		   tool_input_json = excluded.tool_input_json,
		   timestamp = excluded.timestamp
		 RETURNING id`,
	)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "StoreToolUses", "preparing upsert", err)
	}
	defer stmt.Close()

	for _, tu := range batch {
		var id int64
		if err := stmt.QueryRow(tu.MessageID, tu.ExternalID, tu.ToolName, nullIfEmpty(tu.ToolInputJSON), tu.Timestamp).Scan(&id); err != nil {
			return nil, errs.Wrap(errs.Storage, "StoreToolUses", "upserting tool use "+tu.ExternalID, err)
		}
		tu.ID = id
		out[tu.ExternalID] = id
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.Wrap(errs.Storage, "StoreToolUses", "commit", err)
	}
	return out, nil
}

// SetMessageParents fills messages.parent_id for the given child -> parent
// internal-id pairs. Parent ids arrive as transcript-external strings and
// only become resolvable after the whole batch is stored, so linking is a
// second pass rather than part of the upsert (spec §9's resolve step for
// cyclic references).
func (s *SQLiteStore) SetMessageParents(links map[int64]int64) error {
	if len(links) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Storage, "SetMessageParents", "begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE messages SET parent_id = ? WHERE id = ?`)
	if err != nil {
		return errs.Wrap(errs.Storage, "SetMessageParents", "preparing update", err)
	}
	defer stmt.Close()

	for child, parent := range links {
		if _, err := stmt.Exec(parent, child); err != nil {
			return errs.Wrap(errs.Storage, "SetMessageParents", "linking message parent", err)
		}
	}
	return tx.Commit()
}

// StoreToolResults inserts batch, preserving orphaned results (ToolUseID ==
// 0, meaning no matching ToolUse was found during parsing) rather than
// dropping them, per spec §3.
func (s *SQLiteStore) StoreToolResults(batch []*ToolResult) error {
	if len(batch) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Storage, "StoreToolResults", "begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO tool_results
		   (tool_use_id, message_id, content, is_error, stdout, stderr, is_image, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return errs.Wrap(errs.Storage, "StoreToolResults", "preparing insert", err)
	}
	defer stmt.Close()

	for _, tr := range batch {
		if _, err := stmt.Exec(
			nullIf64(tr.ToolUseID), tr.MessageID, nullIfEmpty(tr.Content), boolToInt(tr.IsError),
			nullIfEmpty(tr.Stdout), nullIfEmpty(tr.Stderr), boolToInt(tr.IsImage), tr.Timestamp,
		); err != nil {
			return errs.Wrap(errs.Storage, "StoreToolResults", "inserting tool result", err)
		}
	}

	return tx.Commit()
}

// StoreThinkingBlocks inserts batch. Retrieval redacts these by default
// (spec §3); storage itself keeps every block unconditionally.
func (s *SQLiteStore) StoreThinkingBlocks(batch []*ThinkingBlock) error {
	if len(batch) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Storage, "StoreThinkingBlocks", "begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO thinking_blocks (message_id, thinking_content, signature, timestamp)
		 VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return errs.Wrap(errs.Storage, "StoreThinkingBlocks", "preparing insert", err)
	}
	defer stmt.Close()

	for _, tb := range batch {
		if _, err := stmt.Exec(tb.MessageID, tb.ThinkingContent, nullIfEmpty(tb.Signature), tb.Timestamp); err != nil {
			return errs.Wrap(errs.Storage, "StoreThinkingBlocks", "inserting thinking block", err)
		}
	}

	return tx.Commit()
}
