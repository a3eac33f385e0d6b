package dag

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// compilePattern compiles a path glob with '/' as the separator.
func compilePattern(pattern string) (glob.Glob, error) {
	g, err := glob.Compile(filepath.ToSlash(pattern), '/')
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return g, nil
}

// matchPath reports whether rel, or any suffix of it starting at a path
// component, matches g. "a.txt" therefore matches "docs/a.txt" as well.
func matchPath(g glob.Glob, rel string) bool {
	for {
		if g.Match(rel) {
			return true
		}
		i := strings.IndexByte(rel, '/')
		if i < 0 {
			return false
		}
		rel = rel[i+1:]
	}
}

// walkWorkingTree visits every regular file under the root, skipping the
// metadata directory. Paths are passed as repo-relative POSIX paths.
func (r *Repository) walkWorkingTree(fn func(rel, abs string) error) error {
	return filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return ioError("walk working tree", err)
		}
		if d.IsDir() {
			if d.Name() == MetaDirName && filepath.Dir(path) == r.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(r.root, path)
		if err != nil {
			return ioError("relative path", err)
		}
		return fn(filepath.ToSlash(rel), path)
	})
}

func (r *Repository) currentFiles() (string, FileTable, error) {
	id, err := r.ResolveCurrentCommit()
	if err != nil {
		return "", nil, err
	}
	c, err := r.Commits.Get(id)
	if err != nil {
		return "", nil, err
	}
	return id, c.Files, nil
}

// Add stages every working-tree file matching pattern. Each matched file's
// content goes into the object store immediately, so the commit records
// exactly what was staged. An empty result means nothing matched.
func (r *Repository) Add(pattern string) ([]StagingEntry, error) {
	g, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	_, tracked, err := r.currentFiles()
	if err != nil {
		return nil, err
	}
	index, err := r.Staging.Load()
	if err != nil {
		return nil, err
	}

	var added []StagingEntry
	now := r.now().Unix()
	err = r.walkWorkingTree(func(rel, abs string) error {
		if !matchPath(g, rel) {
			return nil
		}
		hash, err := r.Store.PutFile(abs)
		if err != nil {
			return fmt.Errorf("stage %s: %w", rel, err)
		}
		status := StatusAdded
		if _, ok := tracked[rel]; ok {
			status = StatusModified
		}
		e := StagingEntry{Path: rel, Hash: hash, LastEdited: now, Status: status}
		index[rel] = e
		added = append(added, e)
		r.logger.Debug("staged", "path", rel, "hash", hash, "status", status)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(added) == 0 {
		r.logger.Warn("no files matched the given pattern", "pattern", pattern)
		return nil, nil
	}
	if err := r.Staging.Save(index); err != nil {
		return nil, err
	}
	return added, nil
}

// Remove stages the deletion of every tracked path matching pattern and
// removes the file from the working tree. Matching paths that were only
// staged for addition are unstaged instead.
func (r *Repository) Remove(pattern string) ([]StagingEntry, error) {
	g, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	_, tracked, err := r.currentFiles()
	if err != nil {
		return nil, err
	}
	index, err := r.Staging.Load()
	if err != nil {
		return nil, err
	}

	var removed []StagingEntry
	now := r.now().Unix()
	for _, rel := range tracked.Paths() {
		if !matchPath(g, rel) {
			continue
		}
		e := StagingEntry{Path: rel, LastEdited: now, Status: StatusDeleted}
		index[rel] = e
		removed = append(removed, e)
		abs := filepath.Join(r.root, filepath.FromSlash(rel))
		if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, ioError("remove "+rel, err)
		}
	}
	for rel, e := range index {
		if _, ok := tracked[rel]; !ok && e.Status == StatusAdded && matchPath(g, rel) {
			delete(index, rel)
			removed = append(removed, StagingEntry{Path: rel, LastEdited: now, Status: StatusDeleted})
		}
	}
	if len(removed) == 0 {
		r.logger.Warn("no tracked files matched the given pattern", "pattern", pattern)
		return nil, nil
	}
	if err := r.Staging.Save(index); err != nil {
		return nil, err
	}
	return removed, nil
}

// StatusReport describes HEAD, the staged changes, working-tree edits not
// yet staged and any pending merge resolutions.
type StatusReport struct {
	Head     Head
	Commit   string
	Staged   []StagingEntry
	Unstaged []StagingEntry
	Pending  []Resolution
}

// Status reports the current position and the state of the working tree.
func (r *Repository) Status() (*StatusReport, error) {
	head, err := r.Refs.Head()
	if err != nil {
		return nil, err
	}
	id, tracked, err := r.currentFiles()
	if err != nil {
		return nil, err
	}
	staged, err := r.Staging.Entries()
	if err != nil {
		return nil, err
	}
	unstaged, err := r.unstagedChanges(tracked, staged)
	if err != nil {
		return nil, err
	}
	pending, err := r.PendingResolutions()
	if err != nil {
		return nil, err
	}
	return &StatusReport{Head: head, Commit: id, Staged: staged, Unstaged: unstaged, Pending: pending}, nil
}

// unstagedChanges compares each tracked or staged file on disk against the
// hash it would be committed with. Paths staged for deletion are skipped.
func (r *Repository) unstagedChanges(tracked FileTable, staged []StagingEntry) ([]StagingEntry, error) {
	want := make(map[string]string, len(tracked))
	for p, e := range tracked {
		want[p] = e.Hash
	}
	for _, e := range staged {
		if e.Status == StatusDeleted {
			delete(want, e.Path)
			continue
		}
		want[e.Path] = e.Hash
	}

	var changes []StagingEntry
	for _, rel := range slices.Sorted(maps.Keys(want)) {
		hash, err := HashFile(filepath.Join(r.root, filepath.FromSlash(rel)))
		switch {
		case errors.Is(err, os.ErrNotExist):
			changes = append(changes, StagingEntry{Path: rel, Status: StatusDeleted})
		case err != nil:
			return nil, err
		case hash != want[rel]:
			changes = append(changes, StagingEntry{Path: rel, Hash: hash, Status: StatusModified})
		}
	}
	return changes, nil
}

// Commit records the staged changes as a new commit on top of the current
// one. Staged files whose hash matches the current commit are skipped
// silently; if that leaves nothing, ErrNoEffectiveChanges is returned and no
// commit is created.
func (r *Repository) Commit(message string) (string, error) {
	entries, err := r.Staging.Entries()
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", ErrNothingStaged
	}
	parent, base, err := r.currentFiles()
	if err != nil {
		return "", err
	}

	files := base.Clone()
	changed := 0
	for _, e := range entries {
		if e.Status == StatusDeleted {
			if _, ok := files[e.Path]; ok {
				delete(files, e.Path)
				changed++
			}
			continue
		}
		if prev, ok := files[e.Path]; ok && prev.Hash == e.Hash {
			continue // no real change
		}
		if err := r.ensureBlob(e); err != nil {
			return "", err
		}
		files[e.Path] = FileEntry{Hash: e.Hash, LastEdited: e.LastEdited}
		changed++
	}
	if changed == 0 {
		return "", ErrNoEffectiveChanges
	}

	id, err := r.CommitTransaction([]string{parent}, message, files)
	if err != nil {
		return "", err
	}
	if err := r.Staging.Clear(); err != nil {
		return id, err
	}
	r.logger.Info("committed", "commit", id, "parent", parent, "changed", changed)
	return id, nil
}

// ensureBlob makes sure the staged content is in the object store, storing
// it from the working tree if an older index recorded only its hash.
func (r *Repository) ensureBlob(e StagingEntry) error {
	if r.Store.Has(e.Hash) {
		return nil
	}
	abs := filepath.Join(r.root, filepath.FromSlash(e.Path))
	hash, err := r.Store.PutFile(abs)
	if err != nil {
		return fmt.Errorf("store %s: %w", e.Path, err)
	}
	if hash != e.Hash {
		return fmt.Errorf("%w: staged content of %s changed on disk; add it again", ErrNotFound, e.Path)
	}
	return nil
}
