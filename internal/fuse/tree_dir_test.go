package fuse

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systemshift/ledger/internal/dag"
)

func TestListTree(t *testing.T) {
	files := dag.FileTable{
		"README":         {},
		"docs/a.md":      {},
		"docs/b.md":      {},
		"docs/img/x.png": {},
		"src/main.go":    {},
	}

	dirs, names := listTree(files, "")
	assert.Equal(t, []string{"docs", "src"}, dirs)
	assert.Equal(t, []string{"README"}, names)

	dirs, names = listTree(files, "docs")
	assert.Equal(t, []string{"img"}, dirs)
	assert.Equal(t, []string{"a.md", "b.md"}, names)

	dirs, names = listTree(files, "doc")
	assert.Empty(t, dirs)
	assert.Empty(t, names)
}

func TestSliceAt(t *testing.T) {
	data := []byte("hello")
	assert.Equal(t, []byte("hel"), sliceAt(data, make([]byte, 3), 0))
	assert.Equal(t, []byte("lo"), sliceAt(data, make([]byte, 8), 3))
	assert.Nil(t, sliceAt(data, make([]byte, 8), 5))
}

func TestInodesDependOnCommit(t *testing.T) {
	assert.Equal(t, treeIno("c1", "docs"), treeIno("c1", "docs"))
	assert.NotEqual(t, treeIno("c1", "docs"), treeIno("c2", "docs"))
	assert.NotEqual(t, treeIno("c1", "a"), blobIno("c1", "a"))
}

func TestHeadBytes(t *testing.T) {
	repo, err := dag.Init(t.TempDir(), dag.Options{})
	require.NoError(t, err)
	root := &RootNode{repo: repo}

	data, err := root.headBytes()
	require.NoError(t, err)
	assert.Equal(t, "branch: main\n"+dag.EmptyCommit+"\n", string(data))

	require.NoError(t, repo.Checkout(dag.EmptyCommit, false, ""))
	data, err = root.headBytes()
	require.NoError(t, err)
	assert.Equal(t, "commit: "+dag.EmptyCommit+"\n", string(data))
}

func TestLogEntryBytes(t *testing.T) {
	data, err := logEntryBytes(dag.LogEntry{ID: "abc", Message: "first", Parents: []string{dag.EmptyCommit}, Files: 1})
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "abc", got["id"])
	assert.Equal(t, "first", got["message"])
	assert.Equal(t, []any{dag.EmptyCommit}, got["parents"])
}
