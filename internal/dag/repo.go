package dag

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// MetaDirName is the repository metadata directory at the working-tree root.
const MetaDirName = ".ledger"

// DefaultBranch is the branch HEAD points at after Init.
const DefaultBranch = "main"

const rootCommitMessage = "Initial empty commit"

// Options configures a Repository handle. The zero value is usable.
type Options struct {
	// Author is stamped on commits created through this handle.
	Author string
	// Logger receives diagnostics. Optional, discards output if nil.
	Logger *slog.Logger
	// Now is the clock used for timestamps and commit ids. Defaults to time.Now.
	Now func() time.Time
	// CommitCacheSize bounds the commit-record LRU. Defaults to 256.
	CommitCacheSize int
}

// Repository is an explicit handle on one repository. Every operation goes
// through a handle, so several repositories can be open in one process.
type Repository struct {
	root    string
	author  string
	logger  *slog.Logger
	now     func() time.Time
	Store   *ObjectStore
	Commits *CommitGraph
	Refs    *RefStore
	Staging *StagingArea
}

// Init creates a new repository at root. It fails with ErrAlreadyInRepository
// if root or one of its parents already holds one.
func Init(root string, opts Options) (*Repository, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, ioError("resolve root", err)
	}
	if existing, err := findRoot(abs); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInRepository, existing)
	}

	metaDir := filepath.Join(abs, MetaDirName)
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return nil, ioError("create "+MetaDirName, err)
	}

	repo, err := open(abs, opts)
	if err != nil {
		return nil, err
	}

	meta := map[string]any{
		"version": 1,
		"created": repo.now().UTC().Format(time.RFC3339),
	}
	data, _ := json.MarshalIndent(meta, "", "  ")
	if err := SafeWrite(filepath.Join(metaDir, "meta.json"), data, 0644); err != nil {
		return nil, ioError("write meta.json", err)
	}
	if err := repo.Commits.writeRoot(rootCommitMessage, repo.author, repo.now().Unix()); err != nil {
		return nil, fmt.Errorf("write root commit: %w", err)
	}
	if err := repo.Staging.Clear(); err != nil {
		return nil, err
	}
	if err := repo.Refs.UpdateBranch(DefaultBranch, EmptyCommit); err != nil {
		return nil, err
	}
	if err := repo.Refs.SetHead(BranchHead(DefaultBranch)); err != nil {
		return nil, err
	}
	repo.logger.Info("initialized repository", "root", abs)
	return repo, nil
}

// Open opens the repository whose working-tree root is exactly root.
func Open(root string, opts Options) (*Repository, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, ioError("resolve root", err)
	}
	if !isRepoRoot(abs) {
		return nil, fmt.Errorf("%w: %s", ErrNotInRepository, abs)
	}
	return open(abs, opts)
}

// Find opens the repository containing start, searching upward. The search
// does not go past the user's home directory.
func Find(start string, opts Options) (*Repository, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return nil, ioError("resolve start", err)
	}
	root, err := findRoot(abs)
	if err != nil {
		return nil, err
	}
	return open(root, opts)
}

func isRepoRoot(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, MetaDirName))
	return err == nil && info.IsDir()
}

func findRoot(start string) (string, error) {
	home, _ := os.UserHomeDir()
	dir := start
	for {
		if isRepoRoot(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if dir == home || parent == dir {
			return "", fmt.Errorf("%w: %s", ErrNotInRepository, start)
		}
		dir = parent
	}
}

func open(root string, opts Options) (*Repository, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	metaDir := filepath.Join(root, MetaDirName)

	store, err := NewObjectStore(filepath.Join(metaDir, "objects"))
	if err != nil {
		return nil, err
	}
	commits, err := NewCommitGraph(filepath.Join(metaDir, "commits"), opts.CommitCacheSize, now)
	if err != nil {
		return nil, err
	}

	return &Repository{
		root:    root,
		author:  opts.Author,
		logger:  logger,
		now:     now,
		Store:   store,
		Commits: commits,
		Refs:    NewRefStore(filepath.Join(metaDir, "branches.json"), filepath.Join(metaDir, "HEAD")),
		Staging: NewStagingArea(filepath.Join(metaDir, "staging.json")),
	}, nil
}

// Root returns the working-tree root.
func (r *Repository) Root() string { return r.root }

// MetaDir returns the path to the metadata directory.
func (r *Repository) MetaDir() string {
	return filepath.Join(r.root, MetaDirName)
}

// MergeDir returns the scratch directory holding pending merge resolutions.
func (r *Repository) MergeDir() string {
	return filepath.Join(r.MetaDir(), "merge")
}

func (r *Repository) checkoutScratchDir() string {
	return filepath.Join(r.MetaDir(), "checkout-tmp")
}

// Author returns the author stamped on new commits.
func (r *Repository) Author() string { return r.author }

// Head returns the HEAD pointer.
func (r *Repository) Head() (Head, error) { return r.Refs.Head() }

// CurrentBranch returns the checked-out branch, or "" when HEAD is detached.
func (r *Repository) CurrentBranch() (string, error) {
	head, err := r.Refs.Head()
	if err != nil {
		return "", err
	}
	name, _ := head.Branch()
	return name, nil
}

// ResolveCurrentCommit returns the commit HEAD designates.
func (r *Repository) ResolveCurrentCommit() (string, error) {
	head, err := r.Refs.Head()
	if err != nil {
		return "", err
	}
	if id, ok := head.Commit(); ok {
		return id, nil
	}
	name, _ := head.Branch()
	return r.Refs.Branch(name)
}

// ResolveRef accepts a branch name or a literal commit id. Branches win.
func (r *Repository) ResolveRef(nameOrID string) (string, error) {
	id, err := r.Refs.Branch(nameOrID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrBranchNotFound) {
		return "", err
	}
	if r.Commits.Has(nameOrID) {
		return nameOrID, nil
	}
	return "", fmt.Errorf("%w: %s", ErrRefNotFound, nameOrID)
}

// CreateBranch creates name at start, which may be a branch or commit id.
// An empty start means the current commit.
func (r *Repository) CreateBranch(name, start string) (string, error) {
	var (
		id  string
		err error
	)
	if start == "" {
		id, err = r.ResolveCurrentCommit()
	} else {
		id, err = r.ResolveRef(start)
	}
	if err != nil {
		return "", err
	}
	if err := r.Refs.CreateBranch(name, id); err != nil {
		return "", err
	}
	r.logger.Info("created branch", "branch", name, "commit", id)
	return id, nil
}

// DeleteBranch removes a branch other than the checked-out one.
func (r *Repository) DeleteBranch(name string) error {
	if err := r.Refs.DeleteBranch(name); err != nil {
		return err
	}
	r.logger.Info("deleted branch", "branch", name)
	return nil
}

// BranchInfo describes one branch for listing.
type BranchInfo struct {
	Name    string
	Commit  string
	Current bool
}

// ListBranches returns all branches sorted by name.
func (r *Repository) ListBranches() ([]BranchInfo, error) {
	table, err := r.Refs.Branches()
	if err != nil {
		return nil, err
	}
	current, err := r.CurrentBranch()
	if err != nil {
		return nil, err
	}
	names, err := r.Refs.BranchNames()
	if err != nil {
		return nil, err
	}
	infos := make([]BranchInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, BranchInfo{Name: name, Commit: table[name], Current: name == current})
	}
	return infos, nil
}

// CommitTransaction writes a commit and then advances the active ref to it:
// the checked-out branch, or HEAD itself when detached. The two writes are
// ordered. A crash between them leaves a durable but unreferenced commit,
// and re-running the ref update recovers.
func (r *Repository) CommitTransaction(parents []string, message string, files FileTable) (string, error) {
	id, err := r.Commits.Create(parents, message, r.author, r.now().Unix(), files)
	if err != nil {
		return "", err
	}
	if err := r.advanceHead(id); err != nil {
		return id, fmt.Errorf("commit %s written but ref not advanced: %w", id, err)
	}
	return id, nil
}

func (r *Repository) advanceHead(id string) error {
	head, err := r.Refs.Head()
	if err != nil {
		return err
	}
	if name, ok := head.Branch(); ok {
		return r.Refs.UpdateBranch(name, id)
	}
	return r.Refs.SetHead(DetachedHead(id))
}
