package dag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwitch_RebuildsWorkingTree(t *testing.T) {
	repo := openTestRepo(t)
	commitFiles(t, repo, "first", map[string]string{"a.txt": "hello", "dir/shared.txt": "s"})

	require.NoError(t, repo.Checkout("feature", true, ""))
	commitFiles(t, repo, "feature", map[string]string{"a.txt": "world", "feature/only.txt": "f"})

	require.NoError(t, repo.Switch("main"))
	assert.Equal(t, "hello", readFile(t, repo, "a.txt"))
	assert.Equal(t, "s", readFile(t, repo, "dir/shared.txt"))
	assert.False(t, fileExists(repo, "feature/only.txt"))
	assert.False(t, fileExists(repo, "feature"), "emptied directories are pruned")

	name, err := repo.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", name)

	require.NoError(t, repo.Switch("feature"))
	assert.Equal(t, "world", readFile(t, repo, "a.txt"))
	assert.Equal(t, "f", readFile(t, repo, "feature/only.txt"))
}

func TestSwitch_UntrackedFilesSurvive(t *testing.T) {
	repo := openTestRepo(t)
	commitFiles(t, repo, "first", map[string]string{"a.txt": "a"})
	require.NoError(t, repo.Checkout("other", true, EmptyCommit))

	writeFile(t, repo, "notes/scratch.txt", "mine")
	require.NoError(t, repo.Switch("main"))
	assert.Equal(t, "mine", readFile(t, repo, "notes/scratch.txt"))
	assert.Equal(t, "a", readFile(t, repo, "a.txt"))
}

func TestSwitch_StagedChangesBlock(t *testing.T) {
	repo := openTestRepo(t)
	_, err := repo.CreateBranch("feature", "")
	require.NoError(t, err)
	writeFile(t, repo, "a.txt", "pending")
	_, err = repo.Add("a.txt")
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Switch("feature"), ErrStagedChangesPresent)
	// Regardless of whether the target exists.
	assert.ErrorIs(t, repo.Switch("does-not-exist"), ErrStagedChangesPresent)
	assert.ErrorIs(t, repo.Checkout("x", true, ""), ErrStagedChangesPresent)
	_, err = repo.Merge("does-not-exist")
	assert.ErrorIs(t, err, ErrStagedChangesPresent)

	name, err := repo.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", name)
	assert.False(t, repo.Refs.HasBranch("x"))
}

func TestSwitch_UnknownBranch(t *testing.T) {
	repo := openTestRepo(t)
	assert.ErrorIs(t, repo.Switch("nope"), ErrBranchNotFound)
}

func TestCheckout_CommitDetachesHead(t *testing.T) {
	repo := openTestRepo(t)
	first := commitFiles(t, repo, "first", map[string]string{"a.txt": "one"})
	commitFiles(t, repo, "second", map[string]string{"a.txt": "two"})

	require.NoError(t, repo.Checkout(first, false, ""))
	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, DetachedHead(first), head)
	assert.Equal(t, "one", readFile(t, repo, "a.txt"))

	name, err := repo.CurrentBranch()
	require.NoError(t, err)
	assert.Empty(t, name)

	assert.ErrorIs(t, repo.Checkout("nonexistent", false, ""), ErrRefNotFound)
}

func TestCheckout_CreateAtStartPoint(t *testing.T) {
	repo := openTestRepo(t)
	first := commitFiles(t, repo, "first", map[string]string{"a.txt": "one"})
	commitFiles(t, repo, "second", map[string]string{"a.txt": "two", "b.txt": "b"})

	require.NoError(t, repo.Checkout("old", true, first))
	assert.Equal(t, "one", readFile(t, repo, "a.txt"))
	assert.False(t, fileExists(repo, "b.txt"))

	id, err := repo.ResolveCurrentCommit()
	require.NoError(t, err)
	assert.Equal(t, first, id)
}

func TestMaterialize_LeavesNoScratch(t *testing.T) {
	repo := openTestRepo(t)
	commitFiles(t, repo, "first", map[string]string{"a/b/c.txt": "deep"})
	require.NoError(t, repo.Checkout("empty", true, EmptyCommit))

	_, err := os.Stat(repo.checkoutScratchDir())
	assert.True(t, os.IsNotExist(err))
	assert.False(t, fileExists(repo, "a"))
}

func TestWorktreePath_RejectsEscapes(t *testing.T) {
	base := t.TempDir()
	_, err := worktreePath(base, "../outside.txt")
	assert.ErrorIs(t, err, ErrInvalidRecord)
	_, err = worktreePath(base, "/abs.txt")
	assert.ErrorIs(t, err, ErrInvalidRecord)

	got, err := worktreePath(base, "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "a", "b.txt"), got)
}

func TestRebuildWorkingTree_ClearsFilesOfPreviousHead(t *testing.T) {
	repo := openTestRepo(t)
	old := commitFiles(t, repo, "ledger work", map[string]string{"old.txt": "old", "dir/old.txt": "o"})

	moved, err := repo.Ingest(ForeignCommit{
		Message:   "imported",
		Author:    "ada",
		Timestamp: 1,
		Files:     []ForeignFile{foreign("new.txt", "new")},
	})
	require.NoError(t, err)
	require.NoError(t, repo.Refs.UpdateBranch("main", moved))

	require.NoError(t, repo.RebuildWorkingTree(old))
	assert.False(t, fileExists(repo, "old.txt"))
	assert.False(t, fileExists(repo, "dir"))
	assert.Equal(t, "new", readFile(t, repo, "new.txt"))

	assert.ErrorIs(t, repo.RebuildWorkingTree("missing"), ErrCommitNotFound)
}
