package deletion_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kittclouds/memctl/internal/deletion"
	"github.com/kittclouds/memctl/internal/retrieval"
	"github.com/kittclouds/memctl/internal/search"
	"github.com/kittclouds/memctl/internal/store"
)

// unavailableEmbedder always fails, exercising the "lexical search paths
// continue to work" half of spec §4.5/§4.7 without standing up a real
// embedding provider.
type unavailableEmbedder struct{}

func (unavailableEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, assertErr
}

var assertErr = assertError("embedding provider unavailable")

type assertError string

func (e assertError) Error() string { return string(e) }

func seed(t *testing.T, st *store.SQLiteStore) (projectPath string, convA, convB int64) {
	t.Helper()
	projectPath = "/repo/demo"
	projectID, err := st.ResolveProjectID(projectPath, projectPath)
	require.NoError(t, err)

	convs := []*store.Conversation{
		{ProjectID: projectID, ProjectPath: projectPath, SourceType: store.SourceClaudeCode, ExternalID: "A", FirstMessageAt: 1, LastMessageAt: 2, MessageCount: 1},
		{ProjectID: projectID, ProjectPath: projectPath, SourceType: store.SourceClaudeCode, ExternalID: "B", FirstMessageAt: 1, LastMessageAt: 2, MessageCount: 1},
	}
	ids, err := st.StoreConversations(convs)
	require.NoError(t, err)

	messages := []*store.Message{
		{ConversationExternalID: "A", ExternalID: "a1", MessageType: store.MessageUser, Role: "user", Content: "please add postgres support", Timestamp: 1},
		{ConversationExternalID: "B", ExternalID: "b1", MessageType: store.MessageUser, Role: "user", Content: "please add redis caching", Timestamp: 1},
	}
	_, err = st.StoreMessages(messages, ids, false)
	require.NoError(t, err)

	return projectPath, ids["A"], ids["B"]
}

func newService(t *testing.T, st *store.SQLiteStore, backupDir string) *deletion.Service {
	t.Helper()
	backend := retrieval.NewBackend(st, "messages")
	engine := search.NewEngine(backend, unavailableEmbedder{}, zap.NewNop())
	return deletion.NewService(st, engine, backend, st, backupDir, zap.NewNop())
}

// TestForgetByTopic_BacksUpAndDeletesOnlyMatching mirrors spec §8 end-to-end
// scenario 3: forgetting "postgres" removes conversation A and leaves B
// untouched, writing a 0o600 backup file.
func TestForgetByTopic_BacksUpAndDeletesOnlyMatching(t *testing.T) {
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	projectPath, convA, convB := seed(t, st)
	backupDir := t.TempDir()
	svc := newService(t, st, backupDir)

	summary, err := svc.Forget(context.Background(), []string{"postgres"}, projectPath)
	require.NoError(t, err)

	require.Contains(t, summary.ConversationIDs, convA)
	require.NotContains(t, summary.ConversationIDs, convB)
	require.NotEmpty(t, summary.BackupPath)

	info, err := os.Stat(summary.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	stats, err := st.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Conversations)
	assert.Equal(t, 1, stats.Messages)
}

// TestForgetByTopic_NoMatchesIsNoop covers the boundary behaviour in spec §8:
// zero matches produces no backup, no deletion, and an explanatory summary.
func TestForgetByTopic_NoMatchesIsNoop(t *testing.T) {
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	projectPath, _, _ := seed(t, st)
	backupDir := t.TempDir()
	svc := newService(t, st, backupDir)

	summary, err := svc.Forget(context.Background(), []string{"kubernetes"}, projectPath)
	require.NoError(t, err)

	assert.Empty(t, summary.ConversationIDs)
	assert.Empty(t, summary.BackupPath)
	assert.Equal(t, "no conversations found", summary.Explanation)

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	stats, err := st.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Conversations)
}

// TestForgetByTopic_IdempotentOnAlreadyCleanedStore reruns the same keywords
// after a successful forget and expects a second no-op (spec §8).
func TestForgetByTopic_IdempotentOnAlreadyCleanedStore(t *testing.T) {
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	projectPath, _, _ := seed(t, st)
	backupDir := t.TempDir()
	svc := newService(t, st, backupDir)

	_, err = svc.Forget(context.Background(), []string{"postgres"}, projectPath)
	require.NoError(t, err)

	summary, err := svc.Forget(context.Background(), []string{"postgres"}, projectPath)
	require.NoError(t, err)
	assert.Empty(t, summary.ConversationIDs)
	assert.Equal(t, "no conversations found", summary.Explanation)
}
