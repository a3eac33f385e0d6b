package dag

import (
	"fmt"
	"io"
)

// ForeignFile is one changed path supplied by an importer. Open is called
// once; the content is streamed into the object store.
type ForeignFile struct {
	Path string
	Open func() (io.ReadCloser, error)
}

// ForeignCommit describes a commit converted from another VCS. Parents are
// ids of already-ingested commits; none means the sentinel root. Files and
// Deleted are relative to the first parent's file table.
type ForeignCommit struct {
	Message   string
	Author    string
	Timestamp int64 // unix seconds
	Parents   []string
	Files     []ForeignFile
	Deleted   []string
}

// Ingest stores a foreign commit using the same primitives as native commits.
// Callers must ingest ancestors before descendants. No ref is moved.
func (r *Repository) Ingest(fc ForeignCommit) (string, error) {
	parents := fc.Parents
	if len(parents) == 0 {
		parents = []string{EmptyCommit}
	}
	first, err := r.Commits.Get(parents[0])
	if err != nil {
		return "", fmt.Errorf("ingest %q: %w", fc.Message, err)
	}
	for _, p := range parents[1:] {
		if !r.Commits.Has(p) {
			return "", fmt.Errorf("ingest %q: %w: %s", fc.Message, ErrCommitNotFound, p)
		}
	}

	files := first.Files.Clone()
	for _, path := range fc.Deleted {
		delete(files, path)
	}
	for _, f := range fc.Files {
		if _, err := worktreePath(r.root, f.Path); err != nil {
			return "", err
		}
		hash, err := r.putForeign(f)
		if err != nil {
			return "", fmt.Errorf("ingest %s: %w", f.Path, err)
		}
		files[f.Path] = FileEntry{Hash: hash, LastEdited: fc.Timestamp}
	}

	id, err := r.Commits.Create(parents, fc.Message, fc.Author, fc.Timestamp, files)
	if err != nil {
		return "", err
	}
	r.logger.Debug("ingested commit", "commit", id, "parents", len(parents), "changed", len(fc.Files), "deleted", len(fc.Deleted))
	return id, nil
}

func (r *Repository) putForeign(f ForeignFile) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return r.Store.PutReader(rc)
}
