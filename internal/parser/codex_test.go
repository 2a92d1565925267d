package parser_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memctl/internal/parser"
)

// TestParseCodexFile_FullRollout covers a session_meta + turn_context +
// event_msg pair + a correlated function_call/function_call_output rollout,
// mirroring a minimal Codex CLI session.
func TestParseCodexFile_FullRollout(t *testing.T) {
	dir := t.TempDir()
	rollout := `{"timestamp":"2024-01-01T00:00:00.000Z","type":"session_meta","payload":{"id":"R1","timestamp":"2024-01-01T00:00:00.000Z","cwd":"/tmp/demo","git_branch":"main"}}
{"timestamp":"2024-01-01T00:00:00.100Z","type":"turn_context","payload":{"model":"gpt-test"}}
{"timestamp":"2024-01-01T00:00:01.000Z","type":"event_msg","payload":{"type":"user_message","message":"add a readme"}}
{"timestamp":"2024-01-01T00:00:02.000Z","type":"response_item","payload":{"type":"function_call","call_id":"c1","name":"write_file","arguments":"{\"path\":\"README.md\"}"}}
{"timestamp":"2024-01-01T00:00:03.000Z","type":"response_item","payload":{"type":"function_call_output","call_id":"c1","output":"ok"}}
{"timestamp":"2024-01-01T00:00:04.000Z","type":"event_msg","payload":{"type":"agent_message","message":"done"}}
`
	path := filepath.Join(dir, "rollout-2024-01-01-R1.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(rollout), 0o644))

	res := parser.ParseCodexFile(path)
	require.Zero(t, res.ParseErrors)
	require.Len(t, res.Conversations, 1)

	conv := res.Conversations[0]
	assert.Equal(t, "R1", conv.ExternalID)
	assert.Equal(t, "/tmp/demo", conv.ProjectPath)
	assert.Equal(t, "main", conv.GitBranch)
	assert.Equal(t, parser.SourceCodex, conv.SourceType)

	// user_message, function_call, function_call_output, agent_message
	require.Len(t, res.Messages, 4)
	assert.Equal(t, "user", res.Messages[0].Role)
	assert.Equal(t, parser.ContentToolUse, res.Messages[1].Content[0].Kind)
	assert.Equal(t, parser.ContentToolResult, res.Messages[2].Content[0].Kind)
	assert.Equal(t, "c1", res.Messages[2].Content[0].ToolResultForID)
}

// TestFilterByProjectPath keeps only the conversations (and their messages)
// belonging to the requested project, since Codex rollouts are discovered
// date-sharded across every project at once.
func TestFilterByProjectPath(t *testing.T) {
	pr := parser.ParseResult{
		Conversations: []parser.ConversationMeta{
			{ExternalID: "R1", ProjectPath: "/tmp/demo"},
			{ExternalID: "R2", ProjectPath: "/tmp/other"},
		},
		Messages: []parser.RawMessage{
			{ExternalID: "R1-0", SessionID: "R1"},
			{ExternalID: "R2-0", SessionID: "R2"},
		},
		FileEdits: []parser.FileEditRecord{
			{ConversationExternalID: "R2", FilePath: "/tmp/other/x.go"},
		},
		ParseErrors: 3,
	}

	got := pr.FilterByProjectPath("/tmp/demo")
	require.Len(t, got.Conversations, 1)
	assert.Equal(t, "R1", got.Conversations[0].ExternalID)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "R1-0", got.Messages[0].ExternalID)
	assert.Empty(t, got.FileEdits)
	assert.Equal(t, 3, got.ParseErrors)
}

// TestParseCodexFile_EmptyMetaIsSkipped covers the boundary behaviour where
// a rollout with no session_meta (so no ExternalID) is treated as skipped
// rather than producing a conversation with an empty identity.
func TestParseCodexFile_EmptyMetaIsSkipped(t *testing.T) {
	dir := t.TempDir()
	rollout := `{"timestamp":"2024-01-01T00:00:01.000Z","type":"event_msg","payload":{"type":"user_message","message":"hi"}}
`
	path := filepath.Join(dir, "rollout-no-meta.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(rollout), 0o644))

	res := parser.ParseCodexFile(path)
	assert.Empty(t, res.Conversations)
	assert.Contains(t, res.SkippedFiles, path)
}

// TestParseCodexFile_MalformedJSONCountsAsParseError ensures an
// unparseable line increments ParseErrors instead of aborting the file.
func TestParseCodexFile_MalformedJSONCountsAsParseError(t *testing.T) {
	dir := t.TempDir()
	rollout := `{"timestamp":"2024-01-01T00:00:00.000Z","type":"session_meta","payload":{"id":"R2","cwd":"/tmp/demo"}}
not json at all
{"timestamp":"2024-01-01T00:00:01.000Z","type":"event_msg","payload":{"type":"user_message","message":"hi"}}
`
	path := filepath.Join(dir, "rollout-malformed.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(rollout), 0o644))

	res := parser.ParseCodexFile(path)
	assert.Equal(t, 1, res.ParseErrors)
	require.Len(t, res.Conversations, 1)
	assert.Equal(t, "R2", res.Conversations[0].ExternalID)
}
