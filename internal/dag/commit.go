package dag

import (
	"fmt"
	"maps"
	"slices"
)

// EmptyCommit is the id of the sentinel root commit every repository starts
// with. It has no parents and an empty file table.
const EmptyCommit = "EMPTY-COMMIT"

// FileEntry is one tracked path in a commit's file table. The path itself is
// the key of the table.
type FileEntry struct {
	Hash       string `json:"hash"`
	LastEdited int64  `json:"lastEdited"` // unix seconds
}

// FileTable maps repo-relative POSIX paths to their entries.
type FileTable map[string]FileEntry

// Clone returns an independent copy of the table.
func (t FileTable) Clone() FileTable {
	if t == nil {
		return FileTable{}
	}
	return maps.Clone(t)
}

// Paths returns the table's paths in sorted order.
func (t FileTable) Paths() []string {
	return slices.Sorted(maps.Keys(t))
}

// Commit is an immutable snapshot: full file table, metadata and parent links.
// Serialized via CanonicalJSON to commits/<id>.json.
type Commit struct {
	ID        string    `json:"-"`
	Message   string    `json:"commitMessage"`
	Author    string    `json:"author"`
	Timestamp int64     `json:"timestamp"` // unix seconds, UTC
	Parents   []string  `json:"parentCommits"`
	Files     FileTable `json:"files"`
}

// FirstParent returns the first recorded parent, or "" for the root.
func (c *Commit) FirstParent() string {
	if len(c.Parents) == 0 {
		return ""
	}
	return c.Parents[0]
}

// Clone returns a deep copy so callers cannot mutate cached records.
func (c *Commit) Clone() *Commit {
	cp := *c
	cp.Parents = slices.Clone(c.Parents)
	if cp.Parents == nil {
		cp.Parents = []string{}
	}
	cp.Files = c.Files.Clone()
	return &cp
}

// validate enforces the fixed shape of a decoded commit record.
func (c *Commit) validate() error {
	if c.Parents == nil {
		return fmt.Errorf("%w: commit %s: missing parentCommits", ErrInvalidRecord, c.ID)
	}
	if c.Files == nil {
		return fmt.Errorf("%w: commit %s: missing files", ErrInvalidRecord, c.ID)
	}
	if c.ID != EmptyCommit && len(c.Parents) == 0 {
		return fmt.Errorf("%w: commit %s: non-root commit without parents", ErrInvalidRecord, c.ID)
	}
	for _, p := range c.Parents {
		if p == "" {
			return fmt.Errorf("%w: commit %s: empty parent id", ErrInvalidRecord, c.ID)
		}
	}
	for path, e := range c.Files {
		if path == "" || !ValidHash(e.Hash) {
			return fmt.Errorf("%w: commit %s: bad file entry %q", ErrInvalidRecord, c.ID, path)
		}
	}
	return nil
}
