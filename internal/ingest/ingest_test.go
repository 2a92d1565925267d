package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kittclouds/memctl/internal/ingest"
	"github.com/kittclouds/memctl/internal/parser"
	"github.com/kittclouds/memctl/internal/store"
)

// TestBatch_MinimalClaudeCodeSession mirrors spec §8 end-to-end scenario 1:
// a one-file Claude-Code session with a user message and an assistant reply
// produces one conversation, two messages, two FTS rows, and a project row.
func TestBatch_MinimalClaudeCodeSession(t *testing.T) {
	dir := t.TempDir()
	folder := "-tmp-demo"
	require.NoError(t, os.MkdirAll(filepath.Join(dir, folder), 0o755))

	session := `{"type":"user","uuid":"m1","sessionId":"S1","timestamp":"1970-01-01T00:00:01.000Z","message":{"role":"user","content":"hello"}}
{"type":"assistant","uuid":"m2","parentUuid":"m1","sessionId":"S1","timestamp":"1970-01-01T00:00:01.100Z","message":{"role":"assistant","content":"hi"}}
`
	sessionFile := filepath.Join(dir, folder, "S1.jsonl")
	require.NoError(t, os.WriteFile(sessionFile, []byte(session), 0o644))

	files, err := parser.DiscoverClaudeCodeSessions(dir, folder, 0)
	require.NoError(t, err)
	require.Len(t, files, 1)

	pr := parser.ParseClaudeCodeFile(files[0], "/tmp/demo")
	require.Zero(t, pr.ParseErrors)
	require.Len(t, pr.Conversations, 1)
	require.Len(t, pr.Messages, 2)

	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := zap.NewNop()
	res, err := ingest.Batch(context.Background(), st, nil, "/tmp/demo", "/tmp/demo", pr, ingest.Options{SkipEmbedding: true}, logger)
	require.NoError(t, err)

	assert.Equal(t, 1, res.ConversationsIn)
	assert.Equal(t, 2, res.MessagesIn)
	assert.Zero(t, res.ParseErrors)

	stats, err := st.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Projects)
	assert.Equal(t, 1, stats.Conversations)
	assert.Equal(t, 2, stats.Messages)

	hitsHello, err := st.FTSSearchIndex(context.Background(), "messages", "hello", 10, store.SearchFilter{})
	require.NoError(t, err)
	assert.Len(t, hitsHello, 1)

	hitsHi, err := st.FTSSearchIndex(context.Background(), "messages", "hi", 10, store.SearchFilter{})
	require.NoError(t, err)
	assert.Len(t, hitsHi, 1)
}

// TestBatch_ReingestDoesNotDuplicate re-runs the same parse result through
// Batch and expects identical row counts: conversations and messages upsert
// on external ids, and derived rows (tool results, decisions, file edits)
// are replaced rather than appended.
func TestBatch_ReingestDoesNotDuplicate(t *testing.T) {
	dir := t.TempDir()
	folder := "-tmp-demo"
	require.NoError(t, os.MkdirAll(filepath.Join(dir, folder), 0o755))

	session := `{"type":"user","uuid":"m1","sessionId":"S2","timestamp":"1970-01-01T00:00:01.000Z","message":{"role":"user","content":"please fix the login bug"}}
{"type":"assistant","uuid":"m2","parentUuid":"m1","sessionId":"S2","timestamp":"1970-01-01T00:00:02.000Z","message":{"role":"assistant","content":[{"type":"text","text":"I'll use bcrypt because it is battle tested."},{"type":"tool_use","id":"t1","name":"Edit","input":{"file_path":"/tmp/demo/auth.go"}}]}}
{"type":"user","uuid":"m3","parentUuid":"m2","sessionId":"S2","timestamp":"1970-01-01T00:00:03.000Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"ok"}]}}
`
	sessionFile := filepath.Join(dir, folder, "S2.jsonl")
	require.NoError(t, os.WriteFile(sessionFile, []byte(session), 0o644))

	pr := parser.ParseClaudeCodeFile(sessionFile, "/tmp/demo")
	require.Zero(t, pr.ParseErrors)

	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := zap.NewNop()
	opts := ingest.Options{SkipEmbedding: true}

	_, err = ingest.Batch(context.Background(), st, nil, "/tmp/demo", "/tmp/demo", pr, opts, logger)
	require.NoError(t, err)
	first, err := st.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, first.Decisions)
	assert.Equal(t, 1, first.ToolUses)
	assert.Equal(t, 1, first.ToolResults)
	assert.Equal(t, 1, first.FileEdits)

	pr2 := parser.ParseClaudeCodeFile(sessionFile, "/tmp/demo")
	_, err = ingest.Batch(context.Background(), st, nil, "/tmp/demo", "/tmp/demo", pr2, opts, logger)
	require.NoError(t, err)

	second, err := st.GetStats()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// TestBatch_EmptyAndMalformedFiles exercises the two boundary behaviours of
// spec §8: an empty session file yields zero conversations and zero errors,
// and a file of only malformed lines yields zero conversations with
// parse_errors equal to the line count.
func TestBatch_EmptyAndMalformedFiles(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.jsonl")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	pr := parser.ParseClaudeCodeFile(empty, "/tmp/demo")
	assert.Empty(t, pr.Conversations)
	assert.Zero(t, pr.ParseErrors)
	assert.Contains(t, pr.SkippedFiles, empty)

	malformed := filepath.Join(dir, "malformed.jsonl")
	require.NoError(t, os.WriteFile(malformed, []byte("not json\nalso not json\n"), 0o644))
	pr2 := parser.ParseClaudeCodeFile(malformed, "/tmp/demo")
	assert.Empty(t, pr2.Conversations)
	assert.Equal(t, 2, pr2.ParseErrors)
}
