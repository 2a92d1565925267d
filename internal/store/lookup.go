package store

import (
	"database/sql"

	"github.com/kittclouds/memctl/internal/errs"
)

// ConversationIDForMessage resolves a message row id to its owning
// conversation id, for callers (the deletion service's discovery pass) that
// receive message ids from search and need the conversation to act on.
func (s *SQLiteStore) ConversationIDForMessage(messageID int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var convID int64
	err := s.db.QueryRow(`SELECT conversation_id FROM messages WHERE id = ?`, messageID).Scan(&convID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errs.Wrap(errs.Storage, "ConversationIDForMessage", "looking up message", err)
	}
	return convID, true, nil
}

// ThinkingBlocksForMessage returns messageID's thinking blocks. Callers are
// responsible for the opt-in: retrieval surfaces must not call this unless
// include_thinking is explicitly true (spec §6).
func (s *SQLiteStore) ThinkingBlocksForMessage(messageID int64) ([]*ThinkingBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, message_id, thinking_content, signature, timestamp
		 FROM thinking_blocks WHERE message_id = ? ORDER BY timestamp, id`,
		messageID,
	)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "ThinkingBlocksForMessage", "querying thinking blocks", err)
	}
	defer rows.Close()

	var out []*ThinkingBlock
	for rows.Next() {
		tb := &ThinkingBlock{}
		var signature sql.NullString
		if err := rows.Scan(&tb.ID, &tb.MessageID, &tb.ThinkingContent, &signature, &tb.Timestamp); err != nil {
			return nil, errs.Wrap(errs.Storage, "ThinkingBlocksForMessage", "scanning thinking block", err)
		}
		tb.Signature = signature.String
		out = append(out, tb)
	}
	return out, rows.Err()
}

// ConversationIDForDecision resolves a decision row id to its owning
// conversation id, the decisions-table analog of ConversationIDForMessage.
func (s *SQLiteStore) ConversationIDForDecision(decisionID int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var convID int64
	err := s.db.QueryRow(`SELECT conversation_id FROM decisions WHERE id = ?`, decisionID).Scan(&convID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errs.Wrap(errs.Storage, "ConversationIDForDecision", "looking up decision", err)
	}
	return convID, true, nil
}
