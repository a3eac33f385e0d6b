package dag

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// divergedRepo commits base on main, feature on a new branch and current on
// main again, leaving main checked out.
func divergedRepo(t *testing.T, base, feature, current map[string]string) *Repository {
	t.Helper()
	repo := openTestRepo(t)
	commitFiles(t, repo, "base", base)
	require.NoError(t, repo.Checkout("feature", true, ""))
	commitFiles(t, repo, "feature work", feature)
	require.NoError(t, repo.Switch("main"))
	commitFiles(t, repo, "main work", current)
	return repo
}

func TestMerge_ConflictScenario(t *testing.T) {
	repo := divergedRepo(t,
		map[string]string{"a.txt": "hello"},
		map[string]string{"a.txt": "world"},
		map[string]string{"a.txt": "there"})
	before := headCommit(t, repo).ID

	_, err := repo.Merge("feature")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMergeConflict)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "a.txt", conflict.Path)
	assert.Equal(t, filepath.Join(repo.MergeDir(), "a.txt"), conflict.ScratchPath)

	data, err := os.ReadFile(conflict.ScratchPath)
	require.NoError(t, err)
	assert.Equal(t, "<<<<<<< HEAD\nthere\n=======\nworld\n>>>>>>> feature\n", string(data))

	// An aborted merge changes nothing.
	assert.Equal(t, before, headCommit(t, repo).ID)
	assert.Equal(t, "there", readFile(t, repo, "a.txt"))

	require.NoError(t, os.WriteFile(conflict.ScratchPath, []byte("there world\n"), 0644))
	res, err := repo.Merge("feature")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, res.Resolved)
	assert.Empty(t, res.AutoMerged)
	assert.Equal(t, MergeMaterialized, res.State)

	featureID, err := repo.Refs.Branch("feature")
	require.NoError(t, err)
	merged := headCommit(t, repo)
	assert.Equal(t, res.CommitID, merged.ID)
	assert.Equal(t, []string{before, featureID}, merged.Parents)
	assert.Equal(t, "Merge feature into main", merged.Message)
	assert.Equal(t, "there world\n", readFile(t, repo, "a.txt"))

	_, err = os.Stat(repo.MergeDir())
	assert.True(t, os.IsNotExist(err), "merge scratch is discarded on success")
}

func TestMerge_ResolutionsSurviveLaterConflicts(t *testing.T) {
	repo := divergedRepo(t,
		map[string]string{"a.txt": "a", "b.txt": "b"},
		map[string]string{"a.txt": "a-feature", "b.txt": "b-feature"},
		map[string]string{"a.txt": "a-main", "b.txt": "b-main"})

	_, err := repo.Merge("feature")
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "a.txt", conflict.Path)
	require.NoError(t, os.WriteFile(conflict.ScratchPath, []byte("a-resolved\n"), 0644))

	_, err = repo.Merge("feature")
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "b.txt", conflict.Path)
	assert.Equal(t, "a-resolved\n", readFileAbs(t, filepath.Join(repo.MergeDir(), "a.txt")))
	require.NoError(t, os.WriteFile(conflict.ScratchPath, []byte("b-resolved\n"), 0644))

	res, err := repo.Merge("feature")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, res.Resolved)
	assert.Equal(t, "a-resolved\n", readFile(t, repo, "a.txt"))
	assert.Equal(t, "b-resolved\n", readFile(t, repo, "b.txt"))
}

func TestMerge_Classification(t *testing.T) {
	repo := divergedRepo(t,
		map[string]string{"same.txt": "s", "ours.txt": "o", "theirs.txt": "t"},
		map[string]string{"theirs.txt": "t2", "new-feature.txt": "nf"},
		map[string]string{"ours.txt": "o2", "new-main.txt": "nm"})

	res, err := repo.Merge("feature")
	require.NoError(t, err)
	assert.Empty(t, res.AutoMerged)
	assert.Empty(t, res.Resolved)

	c := headCommit(t, repo)
	assert.Equal(t, []string{"new-feature.txt", "new-main.txt", "ours.txt", "same.txt", "theirs.txt"}, c.Files.Paths())
	for path, want := range map[string]string{
		"same.txt":        "s",
		"ours.txt":        "o2",
		"theirs.txt":      "t2",
		"new-feature.txt": "nf",
		"new-main.txt":    "nm",
	} {
		assert.Equal(t, want, readFile(t, repo, path), path)
		assert.Equal(t, HashBytes([]byte(want)), c.Files[path].Hash, path)
	}
}

func TestMerge_AutoMergesDisjointLineEdits(t *testing.T) {
	repo := divergedRepo(t,
		map[string]string{"doc.txt": "one\ntwo\nthree\nfour\nfive\n"},
		map[string]string{"doc.txt": "one\ntwo\nthree\nfour\nFIVE\n"},
		map[string]string{"doc.txt": "ONE\ntwo\nthree\nfour\nfive\n"})

	res, err := repo.Merge("feature")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc.txt"}, res.AutoMerged)
	assert.Equal(t, "ONE\ntwo\nthree\nfour\nFIVE\n", readFile(t, repo, "doc.txt"))
	assert.False(t, fileExists(repo, filepath.Join(MetaDirName, "merge", "doc.txt")))
}

func TestMerge_ConvergedEditsKeepNewestTimestamp(t *testing.T) {
	tick := testEpoch
	repo, err := Init(t.TempDir(), Options{Author: "tester", Now: func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}})
	require.NoError(t, err)

	commitFiles(t, repo, "base", map[string]string{"a.txt": "old"})
	require.NoError(t, repo.Checkout("feature", true, ""))
	commitFiles(t, repo, "feature", map[string]string{"a.txt": "new"})
	featureEntry := headCommit(t, repo).Files["a.txt"]
	require.NoError(t, repo.Switch("main"))
	commitFiles(t, repo, "main", map[string]string{"a.txt": "new"})
	mainEntry := headCommit(t, repo).Files["a.txt"]
	require.Greater(t, mainEntry.LastEdited, featureEntry.LastEdited)

	_, err = repo.Merge("feature")
	require.NoError(t, err)
	got := headCommit(t, repo).Files["a.txt"]
	assert.Equal(t, HashBytes([]byte("new")), got.Hash)
	assert.Equal(t, mainEntry.LastEdited, got.LastEdited)
}

func TestMerge_BinaryConflictLeavesCurrentSide(t *testing.T) {
	repo := divergedRepo(t,
		map[string]string{"img.bin": "\xff\x00base"},
		map[string]string{"img.bin": "\xff\x00feature"},
		map[string]string{"img.bin": "\xff\x00main"})

	_, err := repo.Merge("feature")
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "img.bin", conflict.Path)
	assert.Equal(t, "\xff\x00main", readFileAbs(t, conflict.ScratchPath))
}

func TestMerge_AlreadyContainedStillRecordsMerge(t *testing.T) {
	repo := openTestRepo(t)
	commitFiles(t, repo, "base", map[string]string{"a.txt": "a"})
	_, err := repo.CreateBranch("feature", "")
	require.NoError(t, err)
	head := commitFiles(t, repo, "ahead", map[string]string{"a.txt": "b"})
	featureID, err := repo.Refs.Branch("feature")
	require.NoError(t, err)

	res, err := repo.Merge("feature")
	require.NoError(t, err)
	assert.Equal(t, featureID, res.Base)
	c := headCommit(t, repo)
	assert.Equal(t, []string{head, featureID}, c.Parents)
	assert.Equal(t, "b", readFile(t, repo, "a.txt"))
}

func TestMerge_ByCommitIDWhileDetached(t *testing.T) {
	repo := divergedRepo(t,
		map[string]string{"a.txt": "a"},
		map[string]string{"f.txt": "f"},
		map[string]string{"m.txt": "m"})
	featureID, err := repo.Refs.Branch("feature")
	require.NoError(t, err)
	mainID := headCommit(t, repo).ID
	require.NoError(t, repo.Checkout(mainID, false, ""))

	res, err := repo.Merge(featureID)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, DetachedHead(res.CommitID), head)
	assert.Equal(t, "Merge "+featureID+" into "+mainID, headCommit(t, repo).Message)

	main, err := repo.Refs.Branch("main")
	require.NoError(t, err)
	assert.Equal(t, mainID, main)
}

func TestMerge_UnknownTarget(t *testing.T) {
	repo := openTestRepo(t)
	_, err := repo.Merge("nowhere")
	assert.ErrorIs(t, err, ErrRefNotFound)
}

func TestMerge_IntoItselfIsRejected(t *testing.T) {
	repo := openTestRepo(t)
	head := commitFiles(t, repo, "base", map[string]string{"a.txt": "a"})
	_, err := repo.CreateBranch("twin", "")
	require.NoError(t, err)

	for _, target := range []string{"main", "twin", head} {
		_, err := repo.Merge(target)
		assert.ErrorIs(t, err, ErrNothingToMerge, target)
	}
	c := headCommit(t, repo)
	assert.Equal(t, head, c.ID)
	assert.Len(t, c.Parents, 1)
}

func TestPendingResolutions_FlagsMarkers(t *testing.T) {
	repo := divergedRepo(t,
		map[string]string{"a.txt": "hello"},
		map[string]string{"a.txt": "world"},
		map[string]string{"a.txt": "there"})

	pending, err := repo.PendingResolutions()
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = repo.Merge("feature")
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	pending, err = repo.PendingResolutions()
	require.NoError(t, err)
	assert.Equal(t, []Resolution{{Path: "a.txt", HasMarkers: true}}, pending)

	require.NoError(t, os.WriteFile(conflict.ScratchPath, []byte("there world\n"), 0644))
	report, err := repo.Status()
	require.NoError(t, err)
	assert.Equal(t, []Resolution{{Path: "a.txt", HasMarkers: false}}, report.Pending)

	_, err = repo.Merge("feature")
	require.NoError(t, err)
	pending, err = repo.PendingResolutions()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func readFileAbs(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
