package dag

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by repository operations. All of them are terminal
// for the command that produced them; callers match with errors.Is.
var (
	ErrNotInRepository      = errors.New("not in a ledger repository")
	ErrAlreadyInRepository  = errors.New("already in a ledger repository")
	ErrBranchNotFound       = errors.New("branch not found")
	ErrBranchAlreadyExists  = errors.New("branch already exists")
	ErrBranchIsCheckedOut   = errors.New("branch is checked out")
	ErrInvalidBranchName    = errors.New("invalid branch name")
	ErrCommitNotFound       = errors.New("commit not found")
	ErrRefNotFound          = errors.New("branch or commit not found")
	ErrNoCommonAncestor     = errors.New("no common ancestor")
	ErrStagedChangesPresent = errors.New("staged changes present")
	ErrNothingStaged        = errors.New("nothing staged")
	ErrNoEffectiveChanges   = errors.New("no effective changes")
	ErrMergeConflict        = errors.New("merge conflict")
	ErrNothingToMerge       = errors.New("nothing to merge")
	ErrInvalidHeadFormat    = errors.New("invalid HEAD format")
	ErrInvalidRecord        = errors.New("invalid record")
	ErrIOFailure            = errors.New("I/O failure")

	// Object store errors.
	ErrNotFound = errors.New("object not found")
	ErrNotText  = errors.New("object is not valid text")
)

// ConflictError reports the first conflicted path of an aborted merge.
// The merged content, with conflict markers, is left at ScratchPath.
type ConflictError struct {
	Path        string
	ScratchPath string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("merge conflict in %s: resolve it in %s and merge again", e.Path, e.ScratchPath)
}

// Is makes errors.Is(err, ErrMergeConflict) true for a *ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == ErrMergeConflict
}

// ioError tags a filesystem failure with ErrIOFailure while keeping the
// underlying error reachable.
func ioError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrIOFailure, err)
}
