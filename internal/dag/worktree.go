package dag

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// worktreePath maps a repo-relative POSIX path under base, rejecting paths
// that would escape it.
func worktreePath(base, rel string) (string, error) {
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: path %q escapes the working tree", ErrInvalidRecord, rel)
	}
	return filepath.Join(base, local), nil
}

// materialize rebuilds the working tree from commit id, replacing the files
// tracked by the current commit. HEAD is not touched.
func (r *Repository) materialize(id string) error {
	_, current, err := r.currentFiles()
	if err != nil {
		return err
	}
	return r.materializeOver(current, id)
}

// RebuildWorkingTree rewrites the working tree from the commit HEAD resolves
// to, clearing the files tracked by from. Callers that move the active ref
// themselves, such as an importer, pass the commit the tree was built from.
func (r *Repository) RebuildWorkingTree(from string) error {
	prev, err := r.Commits.Get(from)
	if err != nil {
		return err
	}
	id, err := r.ResolveCurrentCommit()
	if err != nil {
		return err
	}
	if err := r.materializeOver(prev.Files, id); err != nil {
		return err
	}
	r.logger.Info("rebuilt working tree", "from", from, "commit", id)
	return nil
}

// materializeOver writes commit id to a scratch directory, removes every
// path in tracked from the working tree and moves the scratch contents into
// place. The staging area must be empty. Untracked files are left alone.
func (r *Repository) materializeOver(tracked FileTable, id string) error {
	if err := r.Staging.requireEmpty("checking out"); err != nil {
		return err
	}
	target, err := r.Commits.Get(id)
	if err != nil {
		return err
	}

	scratch := r.checkoutScratchDir()
	if err := os.RemoveAll(scratch); err != nil {
		return ioError("clear checkout scratch", err)
	}
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return ioError("create checkout scratch", err)
	}
	for _, rel := range target.Files.Paths() {
		dest, err := worktreePath(scratch, rel)
		if err != nil {
			return err
		}
		if err := r.Store.CopyTo(target.Files[rel].Hash, dest); err != nil {
			return fmt.Errorf("materialize %s: %w", rel, err)
		}
	}

	if err := r.clearTracked(tracked); err != nil {
		return err
	}
	if err := r.moveIntoRoot(scratch); err != nil {
		return err
	}
	if err := os.RemoveAll(scratch); err != nil {
		return ioError("remove checkout scratch", err)
	}
	r.logger.Debug("materialized", "commit", id, "files", len(target.Files))
	return nil
}

// clearTracked deletes every file in files from the working tree and prunes
// directories left empty.
func (r *Repository) clearTracked(files FileTable) error {
	for _, rel := range files.Paths() {
		abs, err := worktreePath(r.root, rel)
		if err != nil {
			return err
		}
		if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
			return ioError("remove "+rel, err)
		}
		r.pruneEmptyDirs(filepath.Dir(abs))
	}
	return nil
}

func (r *Repository) pruneEmptyDirs(dir string) {
	for dir != r.root && len(dir) > len(r.root) {
		if err := os.Remove(dir); err != nil {
			return // not empty, or already gone
		}
		dir = filepath.Dir(dir)
	}
}

func (r *Repository) moveIntoRoot(scratch string) error {
	return filepath.WalkDir(scratch, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return ioError("walk checkout scratch", err)
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(scratch, path)
		if err != nil {
			return ioError("relative path", err)
		}
		dest := filepath.Join(r.root, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return ioError("create parent dir", err)
		}
		if err := os.Rename(path, dest); err != nil {
			return ioError("move "+filepath.ToSlash(rel), err)
		}
		return nil
	})
}

// Switch checks out an existing branch and attaches HEAD to it.
func (r *Repository) Switch(name string) error {
	if err := r.Staging.requireEmpty("switching branches"); err != nil {
		return err
	}
	id, err := r.Refs.Branch(name)
	if err != nil {
		return err
	}
	if err := r.materialize(id); err != nil {
		return err
	}
	if err := r.Refs.SetHead(BranchHead(name)); err != nil {
		return err
	}
	r.logger.Info("switched branch", "branch", name, "commit", id)
	return nil
}

// Checkout switches to a branch, optionally creating it first at startPoint
// (a branch or commit id; empty means the current commit). Without create, a
// name that is not a branch but a commit id detaches HEAD at that commit.
func (r *Repository) Checkout(name string, create bool, startPoint string) error {
	if err := r.Staging.requireEmpty("checking out"); err != nil {
		return err
	}
	if create {
		if _, err := r.CreateBranch(name, startPoint); err != nil {
			return err
		}
		return r.Switch(name)
	}
	if r.Refs.HasBranch(name) {
		return r.Switch(name)
	}
	if !r.Commits.Has(name) {
		return fmt.Errorf("%w: %s", ErrRefNotFound, name)
	}
	if err := r.materialize(name); err != nil {
		return err
	}
	if err := r.Refs.SetHead(DetachedHead(name)); err != nil {
		return err
	}
	r.logger.Info("detached HEAD", "commit", name)
	return nil
}
