package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkingMemory_SetGetDelete(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetWorkingMemory("/repo/a", "focus", "auth refactor", 60_000))
	require.NoError(t, s.SetWorkingMemory("/repo/a", "branch", "feature/login", 60_000))
	require.NoError(t, s.SetWorkingMemory("/repo/b", "focus", "unrelated", 60_000))

	entries, err := s.GetWorkingMemory("/repo/a")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "branch", entries[0].Key)
	assert.Equal(t, "focus", entries[1].Key)
	assert.Equal(t, "auth refactor", entries[1].Value)

	// Upsert on the same key replaces the value, no duplicate row.
	require.NoError(t, s.SetWorkingMemory("/repo/a", "focus", "search rollout", 60_000))
	entries, err = s.GetWorkingMemory("/repo/a")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "search rollout", entries[1].Value)

	require.NoError(t, s.DeleteWorkingMemory("/repo/a", "focus"))
	entries, err = s.GetWorkingMemory("/repo/a")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "branch", entries[0].Key)
}

func TestWorkingMemory_ExpiredEntriesAreSwept(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetWorkingMemory("/repo/a", "stale", "old context", -1))
	require.NoError(t, s.SetWorkingMemory("/repo/a", "live", "current context", 60_000))

	entries, err := s.GetWorkingMemory("/repo/a")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "live", entries[0].Key)

	// The sweep must have taken the FTS shadow row with it.
	var ftsCount, baseCount int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM working_memory_fts`).Scan(&ftsCount))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM working_memory`).Scan(&baseCount))
	assert.Equal(t, baseCount, ftsCount)
}

func TestSessionHandoff_MostRecentLiveWins(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.GetSessionHandoff("/repo/a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetSessionHandoff("/repo/a", "finished ingest work", 60_000))
	require.NoError(t, s.SetSessionHandoff("/repo/a", "started on search", 60_000))

	h, ok, err := s.GetSessionHandoff("/repo/a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "started on search", h.Content)

	require.NoError(t, s.SetSessionHandoff("/repo/a", "expired note", -1))
	h, ok, err = s.GetSessionHandoff("/repo/a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "started on search", h.Content)
}
