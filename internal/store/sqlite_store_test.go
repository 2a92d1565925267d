package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestResolveProjectID_CreatesOnce(t *testing.T) {
	s := newTestStore(t)

	id1, err := s.ResolveProjectID("/repo/a", "/repo/a")
	require.NoError(t, err)
	assert.NotZero(t, id1)

	id2, err := s.ResolveProjectID("/repo/a", "/repo/a")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestAddProjectAlias_ResolvesToSameProject(t *testing.T) {
	s := newTestStore(t)

	id, err := s.ResolveProjectID("/repo/a", "/repo/a")
	require.NoError(t, err)

	require.NoError(t, s.AddProjectAlias("/repo/a-renamed", id))

	aliasID, err := s.ResolveProjectID("/repo/a-renamed", "/repo/a-renamed")
	require.NoError(t, err)
	assert.Equal(t, id, aliasID)
}

func TestClearCache_ForcesFreshLookup(t *testing.T) {
	s := newTestStore(t)

	id, err := s.ResolveProjectID("/repo/a", "/repo/a")
	require.NoError(t, err)

	s.ClearCache()

	id2, err := s.ResolveProjectID("/repo/a", "/repo/a")
	require.NoError(t, err)
	assert.Equal(t, id, id2)
}

func TestStoreConversations_UpsertIdempotent(t *testing.T) {
	s := newTestStore(t)
	projectID, err := s.ResolveProjectID("/repo/a", "/repo/a")
	require.NoError(t, err)

	conv := &Conversation{
		ProjectID:      projectID,
		ProjectPath:    "/repo/a",
		SourceType:     SourceClaudeCode,
		ExternalID:     "session-1",
		FirstMessageAt: 1000,
		LastMessageAt:  2000,
		MessageCount:   2,
	}
	ids, err := s.StoreConversations([]*Conversation{conv})
	require.NoError(t, err)
	require.Contains(t, ids, "session-1")
	firstID := ids["session-1"]

	conv.LastMessageAt = 3000
	conv.MessageCount = 3
	ids2, err := s.StoreConversations([]*Conversation{conv})
	require.NoError(t, err)
	assert.Equal(t, firstID, ids2["session-1"])

	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Conversations)
}

func seedConversationWithMessages(t *testing.T, s *SQLiteStore) (convID int64, msgIDs map[string]int64) {
	t.Helper()
	projectID, err := s.ResolveProjectID("/repo/a", "/repo/a")
	require.NoError(t, err)

	conv := &Conversation{
		ProjectID:      projectID,
		ProjectPath:    "/repo/a",
		SourceType:     SourceClaudeCode,
		ExternalID:     "session-1",
		FirstMessageAt: 1000,
		LastMessageAt:  2000,
		MessageCount:   2,
	}
	convIDs, err := s.StoreConversations([]*Conversation{conv})
	require.NoError(t, err)

	messages := []*Message{
		{ConversationExternalID: "session-1", ExternalID: "m1", MessageType: MessageUser, Role: "user", Content: "please add postgres support", Timestamp: 1000},
		{ConversationExternalID: "session-1", ExternalID: "m2", MessageType: MessageAssistant, Role: "assistant", Content: "added the redis client instead", Timestamp: 1500},
	}
	msgIDs, err = s.StoreMessages(messages, convIDs, false)
	require.NoError(t, err)
	return convIDs["session-1"], msgIDs
}

func TestStoreMessages_DropsUnmappedConversation(t *testing.T) {
	s := newTestStore(t)

	messages := []*Message{
		{ConversationExternalID: "missing", ExternalID: "m1", MessageType: MessageUser, Role: "user", Content: "hello", Timestamp: 1},
	}
	out, err := s.StoreMessages(messages, map[string]int64{}, false)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestStoreMessages_MaintainsFTSRowsInStep(t *testing.T) {
	s := newTestStore(t)
	seedConversationWithMessages(t, s)

	hits, err := s.FTSSearchIndex(context.Background(), "messages", "postgres", 10, SearchFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)

	text, err := s.FetchText(context.Background(), "messages", hits[0].ID)
	require.NoError(t, err)
	assert.Contains(t, text, "postgres")
}

func TestStoreToolUsesAndResults_OrphanResultKept(t *testing.T) {
	s := newTestStore(t)
	_, msgIDs := seedConversationWithMessages(t, s)

	toolUses := []*ToolUse{
		{MessageID: msgIDs["m2"], ExternalID: "tu1", ToolName: "Edit", ToolInputJSON: `{"path":"a.go"}`, Timestamp: 1600},
	}
	toolUseIDs, err := s.StoreToolUses(toolUses)
	require.NoError(t, err)
	require.Contains(t, toolUseIDs, "tu1")

	results := []*ToolResult{
		{ToolUseID: toolUseIDs["tu1"], MessageID: msgIDs["m2"], Content: "ok", Timestamp: 1601},
		{ToolUseID: 0, MessageID: msgIDs["m2"], Content: "orphaned result", Timestamp: 1602},
	}
	require.NoError(t, s.StoreToolResults(results))

	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ToolUses)
	assert.Equal(t, 2, stats.ToolResults)
}

func TestVectorIndex_StampAndSearch(t *testing.T) {
	s := newTestStore(t)
	convID, msgIDs := seedConversationWithMessages(t, s)
	_ = convID

	_, _, exists, err := s.IndexStamp(context.Background(), "messages")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.WriteVector(context.Background(), "messages", msgIDs["m1"], 0, []float32{1, 0, 0}, "local-hash", 3))
	require.NoError(t, s.WriteVector(context.Background(), "messages", msgIDs["m2"], 0, []float32{0, 1, 0}, "local-hash", 3))

	model, dims, exists, err := s.IndexStamp(context.Background(), "messages")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "local-hash", model)
	assert.Equal(t, 3, dims)

	hits, err := s.VectorSearchIndex(context.Background(), "messages", []float32{1, 0, 0}, 5, SearchFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, msgIDs["m1"], hits[0].ID)
}

func TestRebuildIndex_ClearsAllVectors(t *testing.T) {
	s := newTestStore(t)
	_, msgIDs := seedConversationWithMessages(t, s)
	require.NoError(t, s.WriteVector(context.Background(), "messages", msgIDs["m1"], 0, []float32{1, 0, 0}, "local-hash", 3))

	require.NoError(t, s.RebuildIndex(context.Background(), "messages"))

	_, _, exists, err := s.IndexStamp(context.Background(), "messages")
	require.NoError(t, err)
	assert.False(t, exists)

	hits, err := s.VectorSearchIndex(context.Background(), "messages", []float32{1, 0, 0}, 5, SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDeleteConversations_CascadesAndClearsFTS(t *testing.T) {
	s := newTestStore(t)
	convID, msgIDs := seedConversationWithMessages(t, s)

	decisions := []*Decision{
		{ConversationID: convID, MessageID: msgIDs["m2"], DecisionText: "use redis instead of postgres"},
	}
	require.NoError(t, s.StoreDecisions(decisions))

	dump, err := s.ExportConversations([]int64{convID})
	require.NoError(t, err)
	assert.NotEmpty(t, dump)

	require.NoError(t, s.DeleteConversations([]int64{convID}))

	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.Zero(t, stats.Conversations)
	assert.Zero(t, stats.Messages)
	assert.Zero(t, stats.Decisions)

	hits, err := s.FTSSearchIndex(context.Background(), "messages", "postgres", 10, SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDeleteConversations_EmptyIsNoop(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.DeleteConversations(nil))
}

func TestGetDecisionsAndMistakesForFile(t *testing.T) {
	s := newTestStore(t)
	convID, msgIDs := seedConversationWithMessages(t, s)

	require.NoError(t, s.StoreDecisions([]*Decision{
		{ConversationID: convID, MessageID: msgIDs["m2"], DecisionText: "use redis", RelatedFilesJSON: `["internal/cache/redis.go"]`},
	}))
	require.NoError(t, s.StoreMistakes([]*Mistake{
		{ConversationID: convID, MessageID: msgIDs["m2"], CorrectionText: "forgot to close the connection", RelatedFilesJSON: `["internal/cache/redis.go"]`},
	}))

	decisions, err := s.GetDecisionsForFile("internal/cache/redis.go")
	require.NoError(t, err)
	assert.Len(t, decisions, 1)

	mistakes, err := s.GetMistakesForFile("internal/cache/redis.go")
	require.NoError(t, err)
	assert.Len(t, mistakes, 1)

	none, err := s.GetDecisionsForFile("internal/cache/other.go")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRebuildFTS_RepopulatesFromBaseRows(t *testing.T) {
	s := newTestStore(t)
	seedConversationWithMessages(t, s)

	require.NoError(t, s.RebuildFTS("messages"))

	hits, err := s.FTSSearchIndex(context.Background(), "messages", "redis", 10, SearchFilter{})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}
