package dag

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"unicode"
)

const (
	headBranchPrefix = "branch: "
	headCommitPrefix = "commit: "
)

// Head is the repository's current position: either a branch name or a
// detached commit id. The zero value is invalid.
type Head struct {
	branch string
	commit string
}

// BranchHead points HEAD at a branch.
func BranchHead(name string) Head { return Head{branch: name} }

// DetachedHead points HEAD directly at a commit.
func DetachedHead(id string) Head { return Head{commit: id} }

// Branch returns the branch name if HEAD is attached.
func (h Head) Branch() (string, bool) { return h.branch, h.branch != "" }

// Commit returns the commit id if HEAD is detached.
func (h Head) Commit() (string, bool) { return h.commit, h.commit != "" }

// IsDetached reports whether HEAD names a commit rather than a branch.
func (h Head) IsDetached() bool { return h.commit != "" }

func (h Head) String() string {
	if h.branch != "" {
		return headBranchPrefix + h.branch
	}
	return headCommitPrefix + h.commit
}

// ParseHead parses the single-line HEAD record.
func ParseHead(s string) (Head, error) {
	s = strings.TrimRight(s, "\r\n")
	switch {
	case strings.HasPrefix(s, headBranchPrefix):
		name := s[len(headBranchPrefix):]
		if ValidateBranchName(name) != nil {
			return Head{}, fmt.Errorf("%w: bad branch %q", ErrInvalidHeadFormat, name)
		}
		return BranchHead(name), nil
	case strings.HasPrefix(s, headCommitPrefix):
		id := s[len(headCommitPrefix):]
		if id == "" || strings.ContainsFunc(id, unicode.IsSpace) {
			return Head{}, fmt.Errorf("%w: bad commit id %q", ErrInvalidHeadFormat, id)
		}
		return DetachedHead(id), nil
	default:
		return Head{}, fmt.Errorf("%w: %q", ErrInvalidHeadFormat, s)
	}
}

// ValidateBranchName rejects names that cannot round-trip through the
// branch table and HEAD record.
func ValidateBranchName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidBranchName)
	case strings.HasPrefix(name, "-"):
		return fmt.Errorf("%w: %q starts with '-'", ErrInvalidBranchName, name)
	case strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q contains '..'", ErrInvalidBranchName, name)
	case strings.ContainsFunc(name, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }):
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidBranchName, name)
	}
	return nil
}

// RefStore manages the branch table (branches.json) and the HEAD pointer.
// Both are read and rewritten wholesale on every mutation.
type RefStore struct {
	branchesPath string
	headPath     string
}

// NewRefStore creates a RefStore over the given files.
func NewRefStore(branchesPath, headPath string) *RefStore {
	return &RefStore{branchesPath: branchesPath, headPath: headPath}
}

// Head reads the HEAD pointer.
func (r *RefStore) Head() (Head, error) {
	data, err := os.ReadFile(r.headPath)
	if errors.Is(err, os.ErrNotExist) {
		return Head{}, fmt.Errorf("%w: HEAD missing", ErrInvalidHeadFormat)
	}
	if err != nil {
		return Head{}, ioError("read HEAD", err)
	}
	return ParseHead(string(data))
}

// SetHead rewrites the HEAD pointer.
func (r *RefStore) SetHead(h Head) error {
	if h.branch == "" && h.commit == "" {
		return fmt.Errorf("%w: empty pointer", ErrInvalidHeadFormat)
	}
	return ioError("write HEAD", SafeWrite(r.headPath, []byte(h.String()+"\n"), 0644))
}

// Branches returns a copy of the whole branch table.
func (r *RefStore) Branches() (map[string]string, error) {
	data, err := os.ReadFile(r.branchesPath)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, ioError("read branch table", err)
	}
	table := map[string]string{}
	if err := decodeStrict(data, &table, "branch table"); err != nil {
		return nil, err
	}
	for name, id := range table {
		if ValidateBranchName(name) != nil || id == "" {
			return nil, fmt.Errorf("%w: branch table entry %q", ErrInvalidRecord, name)
		}
	}
	return table, nil
}

func (r *RefStore) writeBranches(table map[string]string) error {
	data, err := CanonicalJSON(table)
	if err != nil {
		return fmt.Errorf("serialize branch table: %w", err)
	}
	return ioError("write branch table", SafeWrite(r.branchesPath, data, 0644))
}

// BranchNames returns all branch names, sorted.
func (r *RefStore) BranchNames() ([]string, error) {
	table, err := r.Branches()
	if err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(table)), nil
}

// Branch resolves a branch name to its head commit.
func (r *RefStore) Branch(name string) (string, error) {
	table, err := r.Branches()
	if err != nil {
		return "", err
	}
	id, ok := table[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrBranchNotFound, name)
	}
	return id, nil
}

// HasBranch checks if a branch exists.
func (r *RefStore) HasBranch(name string) bool {
	_, err := r.Branch(name)
	return err == nil
}

// CreateBranch adds a new branch pointing at start.
func (r *RefStore) CreateBranch(name, start string) error {
	if err := ValidateBranchName(name); err != nil {
		return err
	}
	table, err := r.Branches()
	if err != nil {
		return err
	}
	if _, ok := table[name]; ok {
		return fmt.Errorf("%w: %s", ErrBranchAlreadyExists, name)
	}
	table[name] = start
	return r.writeBranches(table)
}

// UpdateBranch points name at id, creating the branch if needed.
func (r *RefStore) UpdateBranch(name, id string) error {
	if err := ValidateBranchName(name); err != nil {
		return err
	}
	table, err := r.Branches()
	if err != nil {
		return err
	}
	table[name] = id
	return r.writeBranches(table)
}

// DeleteBranch removes a branch. The checked-out branch cannot be deleted.
func (r *RefStore) DeleteBranch(name string) error {
	table, err := r.Branches()
	if err != nil {
		return err
	}
	if _, ok := table[name]; !ok {
		return fmt.Errorf("%w: %s", ErrBranchNotFound, name)
	}
	head, err := r.Head()
	if err != nil {
		return err
	}
	if current, ok := head.Branch(); ok && current == name {
		return fmt.Errorf("%w: %s", ErrBranchIsCheckedOut, name)
	}
	delete(table, name)
	return r.writeBranches(table)
}
