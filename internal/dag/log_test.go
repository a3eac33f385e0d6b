package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryIDs(entries []LogEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func TestLog_FirstParentChain(t *testing.T) {
	repo := openTestRepo(t)
	c1 := commitFiles(t, repo, "one", map[string]string{"a.txt": "1"})
	c2 := commitFiles(t, repo, "two", map[string]string{"a.txt": "2", "b.txt": "b"})

	entries, err := repo.Log(0)
	require.NoError(t, err)
	assert.Equal(t, []string{c2, c1, EmptyCommit}, entryIDs(entries))
	assert.Equal(t, "two", entries[0].Message)
	assert.Equal(t, "tester", entries[0].Author)
	assert.Equal(t, []string{c1}, entries[0].Parents)
	assert.Equal(t, 2, entries[0].Files)

	entries, err = repo.Log(2)
	require.NoError(t, err)
	assert.Equal(t, []string{c2, c1}, entryIDs(entries))
}

func TestLog_SkipsSecondParents(t *testing.T) {
	repo := divergedRepo(t,
		map[string]string{"a.txt": "a"},
		map[string]string{"f.txt": "f"},
		map[string]string{"m.txt": "m"})
	mainID := headCommit(t, repo).ID
	res, err := repo.Merge("feature")
	require.NoError(t, err)

	entries, err := repo.Log(2)
	require.NoError(t, err)
	assert.Equal(t, []string{res.CommitID, mainID}, entryIDs(entries))
	assert.True(t, entries[0].IsMerge())
	assert.False(t, entries[1].IsMerge())
}

func TestGraph_TopologicalOrder(t *testing.T) {
	repo := divergedRepo(t,
		map[string]string{"a.txt": "a"},
		map[string]string{"f.txt": "f"},
		map[string]string{"m.txt": "m"})
	featureID, err := repo.Refs.Branch("feature")
	require.NoError(t, err)
	mainID := headCommit(t, repo).ID
	base := headCommit(t, repo).FirstParent()
	res, err := repo.Merge("feature")
	require.NoError(t, err)

	entries, err := repo.Graph(100)
	require.NoError(t, err)
	ids := entryIDs(entries)
	require.Len(t, ids, 5)
	assert.Equal(t, res.CommitID, ids[0])
	assert.ElementsMatch(t, []string{mainID, featureID}, ids[1:3])
	assert.Equal(t, []string{base, EmptyCommit}, ids[3:])

	pos := map[string]int{}
	for i, id := range ids {
		pos[id] = i
	}
	for _, e := range entries {
		for _, p := range e.Parents {
			assert.Less(t, pos[e.ID], pos[p], "%s listed before its parent", e.ID)
		}
	}

	entries, err = repo.Graph(2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestGraph_InvalidLimit(t *testing.T) {
	repo := openTestRepo(t)
	_, err := repo.Graph(0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
	_, err = repo.Graph(-3)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}
