// Package gitimport converts the history of a git repository into a ledger
// repository. Every local branch is walked with go-git; commits are ingested
// ancestors first and each ledger branch is pointed at its converted head.
package gitimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"github.com/systemshift/ledger/internal/dag"
)

// ErrNotGitRepo is returned when gitDir cannot be opened as a git repository.
var ErrNotGitRepo = errors.New("not a git repository")

// Stats summarizes an import.
type Stats struct {
	Branches int
	Commits  int
	// Reused counts links that reached an already converted commit.
	Reused int
}

// Options configures Import.
type Options struct {
	Logger *slog.Logger // Optional
	// Force moves branches that already have history of their own.
	Force bool
}

type importer struct {
	git       *gogit.Repository
	repo      *dag.Repository
	logger    *slog.Logger
	converted map[plumbing.Hash]string
	stats     Stats
}

// Import reads every local branch of the git repository at gitDir and
// recreates its history in repo. Ledger branches with the same names are
// created, or moved if they are still at the sentinel root; a branch with
// commits of its own fails the import before anything is converted unless
// opts.Force is set. The working tree is not touched.
func Import(ctx context.Context, gitDir string, repo *dag.Repository, opts Options) (Stats, error) {
	g, err := gogit.PlainOpen(gitDir)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %s: %w", ErrNotGitRepo, gitDir, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	im := &importer{
		git:       g,
		repo:      repo,
		logger:    logger,
		converted: map[plumbing.Hash]string{},
	}

	iter, err := g.Branches()
	if err != nil {
		return Stats{}, fmt.Errorf("list branches: %w", err)
	}
	heads := map[string]plumbing.Hash{}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		heads[name] = ref.Hash()
		names = append(names, name)
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("list branches: %w", err)
	}

	var valid []string
	for _, name := range names {
		if err := dag.ValidateBranchName(name); err != nil {
			logger.Warn("skipping branch", "branch", name, "error", err)
			continue
		}
		if !opts.Force {
			if err := checkUnused(repo, name); err != nil {
				return Stats{}, err
			}
		}
		valid = append(valid, name)
	}

	for _, name := range valid {
		id, err := im.convert(ctx, heads[name])
		if err != nil {
			return im.stats, fmt.Errorf("branch %s: %w", name, err)
		}
		if err := repo.Refs.UpdateBranch(name, id); err != nil {
			return im.stats, err
		}
		im.stats.Branches++
		logger.Info("imported branch", "branch", name, "git", heads[name].String(), "commit", id)
	}
	return im.stats, nil
}

// checkUnused fails with ErrBranchAlreadyExists unless branch name is absent
// or still at the sentinel root.
func checkUnused(repo *dag.Repository, name string) error {
	id, err := repo.Refs.Branch(name)
	if errors.Is(err, dag.ErrBranchNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if id != dag.EmptyCommit {
		return fmt.Errorf("%w: %s has its own history at %s", dag.ErrBranchAlreadyExists, name, id)
	}
	return nil
}

// convert ingests head and all of its unconverted ancestors, parents before
// children, and returns the ledger id of head.
func (im *importer) convert(ctx context.Context, head plumbing.Hash) (string, error) {
	if id, ok := im.converted[head]; ok {
		im.stats.Reused++
		return id, nil
	}
	type frame struct {
		commit   *object.Commit
		expanded bool
	}
	c, err := im.git.CommitObject(head)
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", head, err)
	}
	stack := []frame{{commit: c}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		top := &stack[len(stack)-1]
		if _, ok := im.converted[top.commit.Hash]; ok {
			stack = stack[:len(stack)-1]
			continue
		}
		if !top.expanded {
			top.expanded = true
			parents := top.commit.ParentHashes
			for i := len(parents) - 1; i >= 0; i-- {
				if _, ok := im.converted[parents[i]]; ok {
					im.stats.Reused++
					continue
				}
				p, err := im.git.CommitObject(parents[i])
				if err != nil {
					return "", fmt.Errorf("read commit %s: %w", parents[i], err)
				}
				stack = append(stack, frame{commit: p})
			}
			continue
		}
		commit := top.commit
		stack = stack[:len(stack)-1]
		id, err := im.ingest(ctx, commit)
		if err != nil {
			return "", fmt.Errorf("commit %s: %w", commit.Hash, err)
		}
		im.converted[commit.Hash] = id
		im.stats.Commits++
	}
	return im.converted[head], nil
}

// ingest converts one commit whose parents are all converted. Its file delta
// is taken against the first parent's tree, which is also the table the
// ledger commit starts from.
func (im *importer) ingest(ctx context.Context, c *object.Commit) (string, error) {
	tree, err := c.Tree()
	if err != nil {
		return "", err
	}
	fc := dag.ForeignCommit{
		Message:   strings.TrimRight(c.Message, "\n"),
		Author:    c.Author.Name,
		Timestamp: c.Author.When.Unix(),
	}
	for _, p := range c.ParentHashes {
		fc.Parents = append(fc.Parents, im.converted[p])
	}

	if len(c.ParentHashes) == 0 {
		err = tree.Files().ForEach(func(f *object.File) error {
			fc.Files = append(fc.Files, foreignFile(f))
			return nil
		})
		if err != nil {
			return "", err
		}
		return im.repo.Ingest(fc)
	}

	parent, err := im.git.CommitObject(c.ParentHashes[0])
	if err != nil {
		return "", err
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return "", err
	}
	changes, err := object.DiffTreeWithOptions(ctx, parentTree, tree, &object.DiffTreeOptions{})
	if err != nil {
		return "", fmt.Errorf("diff trees: %w", err)
	}
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			return "", err
		}
		switch action {
		case merkletrie.Delete:
			fc.Deleted = append(fc.Deleted, change.From.Name)
		case merkletrie.Insert, merkletrie.Modify:
			_, to, err := change.Files()
			if err != nil {
				return "", err
			}
			if to == nil {
				// Submodules and other non-file entries.
				im.logger.Debug("skipping non-file entry", "path", change.To.Name)
				continue
			}
			fc.Files = append(fc.Files, foreignFile(to))
		}
	}
	return im.repo.Ingest(fc)
}

func foreignFile(f *object.File) dag.ForeignFile {
	return dag.ForeignFile{Path: f.Name, Open: f.Reader}
}
