package migrate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memctl/internal/migrate"
	"github.com/kittclouds/memctl/internal/sanitize"
	"github.com/kittclouds/memctl/internal/store"
)

// TestExecuteMigration_CopiesFilesAndRetargetsRows mirrors spec §8 end-to-end
// scenario 4: renaming a project folder copies every session file and
// repoints the stored rows onto the new path, leaving the source untouched.
func TestExecuteMigration_CopiesFilesAndRetargetsRows(t *testing.T) {
	root := t.TempDir()
	oldFolder := sanitize.PathToFolderName("/repo/old-name")
	newFolder := sanitize.PathToFolderName("/repo/new-name")
	require.NoError(t, os.MkdirAll(filepath.Join(root, oldFolder), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, oldFolder, "S1.jsonl"), []byte("{}\n"), 0o644))

	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	_, err = st.ResolveProjectID("/repo/old-name", "/repo/old-name")
	require.NoError(t, err)

	svc := migrate.NewService(st, root, "")

	valid, err := svc.ValidateMigration(oldFolder, newFolder)
	require.NoError(t, err)
	assert.True(t, valid.Valid)

	res, err := svc.ExecuteMigration(oldFolder, newFolder, "/repo/old-name", "/repo/new-name", false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesCopied)

	_, err = os.Stat(filepath.Join(root, oldFolder, "S1.jsonl"))
	assert.NoError(t, err, "source file must survive the migration")

	_, err = os.Stat(filepath.Join(root, newFolder, "S1.jsonl"))
	assert.NoError(t, err, "target file must exist after the migration")
}

// TestExecuteMigration_DryRunTouchesNothing covers the dry-run branch:
// counts are reported but no file or row is modified.
func TestExecuteMigration_DryRunTouchesNothing(t *testing.T) {
	root := t.TempDir()
	oldFolder := sanitize.PathToFolderName("/repo/old-name")
	newFolder := sanitize.PathToFolderName("/repo/new-name")
	require.NoError(t, os.MkdirAll(filepath.Join(root, oldFolder), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, oldFolder, "S1.jsonl"), []byte("{}\n"), 0o644))

	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc := migrate.NewService(st, root, "")

	res, err := svc.ExecuteMigration(oldFolder, newFolder, "/repo/old-name", "/repo/new-name", true)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 1, res.FilesCopied)

	_, err = os.Stat(filepath.Join(root, newFolder))
	assert.Error(t, err, "dry run must not create the target folder")
}

// TestValidateMigration_RejectsConflictingTarget covers spec §8 end-to-end
// scenario 6: a target folder that already holds session files is a
// migration conflict, not silently overwritten.
func TestValidateMigration_RejectsConflictingTarget(t *testing.T) {
	root := t.TempDir()
	oldFolder := "old-folder"
	newFolder := "new-folder"
	require.NoError(t, os.MkdirAll(filepath.Join(root, oldFolder), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, newFolder), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, newFolder, "existing.jsonl"), []byte("{}\n"), 0o644))

	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc := migrate.NewService(st, root, "")

	result, err := svc.ValidateMigration(oldFolder, newFolder)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "contains session files")

	_, err = svc.ExecuteMigration(oldFolder, newFolder, "/repo/old", "/repo/new", false)
	assert.Error(t, err)
}

// TestValidateMigration_RejectsMissingSource ensures a nonexistent source
// folder is reported as invalid rather than attempted.
func TestValidateMigration_RejectsMissingSource(t *testing.T) {
	root := t.TempDir()

	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc := migrate.NewService(st, root, "")
	result, err := svc.ValidateMigration("does-not-exist", "also-missing")
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

// TestDiscoverOldFolders_RanksBySimilarity seeds two candidate folders, one
// a close rename of the current path and one unrelated, and expects only
// the close match to surface, ranked first.
func TestDiscoverOldFolders_RanksBySimilarity(t *testing.T) {
	root := t.TempDir()
	// Segment names deliberately avoid internal dashes, since
	// FolderNameToPath cannot distinguish a literal dash from an encoded
	// path separator when reversing PathToFolderName.
	closeFolder := sanitize.PathToFolderName("/repo/myprojectold")
	farFolder := sanitize.PathToFolderName("/var/completely/unrelated")
	require.NoError(t, os.MkdirAll(filepath.Join(root, closeFolder), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, farFolder), 0o755))

	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	_, err = st.ResolveProjectID("/repo/myprojectold", "/repo/myprojectold")
	require.NoError(t, err)
	_, err = st.ResolveProjectID("/var/completely/unrelated", "/var/completely/unrelated")
	require.NoError(t, err)

	svc := migrate.NewService(st, root, "")
	candidates, err := svc.DiscoverOldFolders("/repo/myprojectnew")
	require.NoError(t, err)

	require.NotEmpty(t, candidates)
	assert.Len(t, candidates, 1)
	assert.Equal(t, closeFolder, candidates[0].FolderName)
}
