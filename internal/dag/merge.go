package dag

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"

	"github.com/systemshift/ledger/internal/merge"
)

// MergeState tracks one merge invocation:
// Start -> AncestorFound -> FilesClassified -> Clean|Conflicted, and
// Clean -> CommitCreated -> Materialized.
type MergeState string

const (
	MergeStart           MergeState = "start"
	MergeAncestorFound   MergeState = "ancestor-found"
	MergeFilesClassified MergeState = "files-classified"
	MergeClean           MergeState = "clean"
	MergeConflicted      MergeState = "conflicted"
	MergeCommitCreated   MergeState = "commit-created"
	MergeMaterialized    MergeState = "materialized"
)

// MergeResult summarizes a successful merge.
type MergeResult struct {
	CommitID string
	Base     string
	Current  string
	Target   string
	// AutoMerged lists paths combined line by line.
	AutoMerged []string
	// Resolved lists paths taken from pending resolution files.
	Resolved []string
	State    MergeState
}

// Merge merges the branch or commit nameOrID into the current commit. The
// first conflicted path aborts the whole merge with a *ConflictError; the
// merged text with markers is left in the scratch merge directory, and a
// later Merge consumes it as that path's resolution.
func (r *Repository) Merge(nameOrID string) (*MergeResult, error) {
	if err := r.Staging.requireEmpty("merging"); err != nil {
		return nil, err
	}
	targetID, err := r.ResolveRef(nameOrID)
	if err != nil {
		return nil, err
	}
	currentID, err := r.ResolveCurrentCommit()
	if err != nil {
		return nil, err
	}
	if targetID == currentID {
		return nil, fmt.Errorf("%w: %s is already the current commit", ErrNothingToMerge, nameOrID)
	}
	res := &MergeResult{Current: currentID, Target: targetID, State: MergeStart}

	baseID, err := r.FindCommonAncestor(currentID, targetID)
	if err != nil {
		return nil, err
	}
	res.Base = baseID
	r.mergeTransition(res, MergeAncestorFound)

	current, err := r.Commits.Get(currentID)
	if err != nil {
		return nil, err
	}
	target, err := r.Commits.Get(targetID)
	if err != nil {
		return nil, err
	}
	base, err := r.Commits.Get(baseID)
	if err != nil {
		return nil, err
	}

	union := current.Files.Clone()
	maps.Copy(union, target.Files)
	paths := union.Paths()
	r.mergeTransition(res, MergeFilesClassified)

	labels := merge.Labels{Current: "HEAD", Target: nameOrID}
	merged := make(FileTable, len(paths))
	for _, p := range paths {
		cur, inCur := current.Files[p]
		tgt, inTgt := target.Files[p]
		baseEntry, inBase := base.Files[p]
		switch {
		case !inTgt:
			merged[p] = cur
		case !inCur:
			merged[p] = tgt
		case cur.Hash == tgt.Hash:
			merged[p] = FileEntry{Hash: cur.Hash, LastEdited: max(cur.LastEdited, tgt.LastEdited)}
		case inBase && cur.Hash == baseEntry.Hash:
			merged[p] = tgt
		case inBase && tgt.Hash == baseEntry.Hash:
			merged[p] = cur
		default:
			var basePtr *FileEntry
			if inBase {
				basePtr = &baseEntry
			}
			entry, fromPending, err := r.mergeFile(p, cur, tgt, basePtr, labels)
			if err != nil {
				var conflict *ConflictError
				if errors.As(err, &conflict) {
					r.mergeTransition(res, MergeConflicted)
				}
				return nil, err
			}
			merged[p] = entry
			if fromPending {
				res.Resolved = append(res.Resolved, p)
			} else {
				res.AutoMerged = append(res.AutoMerged, p)
			}
		}
	}
	r.mergeTransition(res, MergeClean)

	currentLabel := currentID
	if name, err := r.CurrentBranch(); err == nil && name != "" {
		currentLabel = name
	}
	message := fmt.Sprintf("Merge %s into %s", nameOrID, currentLabel)
	id, err := r.Commits.Create([]string{currentID, targetID}, message, r.author, r.now().Unix(), merged)
	if err != nil {
		return nil, err
	}
	res.CommitID = id
	r.mergeTransition(res, MergeCommitCreated)

	// The working tree still reflects currentID here, so materialize before
	// the ref moves.
	if err := r.materialize(id); err != nil {
		return nil, err
	}
	if err := r.advanceHead(id); err != nil {
		return nil, fmt.Errorf("merge commit %s written but ref not advanced: %w", id, err)
	}
	if err := os.RemoveAll(r.MergeDir()); err != nil {
		return nil, ioError("discard merge scratch", err)
	}
	r.mergeTransition(res, MergeMaterialized)
	r.logger.Info("merged", "commit", id, "base", baseID, "target", targetID,
		"auto_merged", len(res.AutoMerged), "resolved", len(res.Resolved))
	return res, nil
}

// Resolution is a file waiting in the merge scratch directory. The next
// Merge takes it verbatim as that path's content.
type Resolution struct {
	Path string
	// HasMarkers is set while the file still contains a conflict marker.
	HasMarkers bool
}

// PendingResolutions lists the files left in the merge scratch directory by
// an aborted merge.
func (r *Repository) PendingResolutions() ([]Resolution, error) {
	dir := r.MergeDir()
	var pending []Resolution
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && path == dir {
				return filepath.SkipAll
			}
			return ioError("walk merge scratch", err)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return ioError("read resolution", err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return ioError("relative path", err)
		}
		pending = append(pending, Resolution{Path: filepath.ToSlash(rel), HasMarkers: merge.HasMarkers(string(data))})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

func (r *Repository) mergeTransition(res *MergeResult, next MergeState) {
	r.logger.Debug("merge state", "from", res.State, "to", next)
	res.State = next
}

// mergeFile merges one path changed on both sides. A pending resolution file
// from an earlier attempt wins over recomputation.
func (r *Repository) mergeFile(path string, cur, tgt FileEntry, base *FileEntry, labels merge.Labels) (FileEntry, bool, error) {
	scratch, err := worktreePath(r.MergeDir(), path)
	if err != nil {
		return FileEntry{}, false, err
	}
	lastEdited := max(cur.LastEdited, tgt.LastEdited)

	if info, err := os.Stat(scratch); err == nil && info.Mode().IsRegular() {
		hash, err := r.Store.PutFile(scratch)
		if err != nil {
			return FileEntry{}, false, err
		}
		r.logger.Info("using pending resolution", "path", path, "file", scratch)
		return FileEntry{Hash: hash, LastEdited: lastEdited}, true, nil
	}

	var baseLines []string
	if base != nil {
		baseLines, err = r.Store.GetLines(base.Hash)
	}
	var curLines, tgtLines []string
	if err == nil {
		curLines, err = r.Store.GetLines(cur.Hash)
	}
	if err == nil {
		tgtLines, err = r.Store.GetLines(tgt.Hash)
	}
	if errors.Is(err, ErrNotText) {
		// No line merge for binary content: leave the current side for the
		// user to resolve.
		if err := r.writeScratch(scratch, cur.Hash); err != nil {
			return FileEntry{}, false, err
		}
		return FileEntry{}, false, &ConflictError{Path: path, ScratchPath: scratch}
	}
	if err != nil {
		return FileEntry{}, false, err
	}

	result := merge.Lines(baseLines, curLines, tgtLines, labels)
	text := []byte(result.Text())
	if err := os.MkdirAll(filepath.Dir(scratch), 0755); err != nil {
		return FileEntry{}, false, ioError("create merge scratch", err)
	}
	if err := SafeWrite(scratch, text, 0644); err != nil {
		return FileEntry{}, false, ioError("write merge scratch", err)
	}
	if result.Conflicted() {
		r.logger.Warn("merge conflict", "path", path, "regions", result.Conflicts, "file", scratch)
		return FileEntry{}, false, &ConflictError{Path: path, ScratchPath: scratch}
	}

	hash, err := r.Store.Put(text)
	if err != nil {
		return FileEntry{}, false, err
	}
	if err := os.Remove(scratch); err != nil {
		return FileEntry{}, false, ioError("remove merge scratch", err)
	}
	return FileEntry{Hash: hash, LastEdited: lastEdited}, false, nil
}

func (r *Repository) writeScratch(scratch, hash string) error {
	return r.Store.CopyTo(hash, scratch)
}
