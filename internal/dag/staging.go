package dag

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
)

// StagingStatus classifies a pending change.
type StagingStatus string

const (
	StatusAdded    StagingStatus = "added"
	StatusModified StagingStatus = "modified"
	StatusDeleted  StagingStatus = "deleted"
)

func (s StagingStatus) valid() bool {
	switch s {
	case StatusAdded, StatusModified, StatusDeleted:
		return true
	}
	return false
}

// StagingEntry is one pending change. Hash is empty for deletions.
type StagingEntry struct {
	Path       string        `json:"-"`
	Hash       string        `json:"hash"`
	LastEdited int64         `json:"lastEdited"`
	Status     StagingStatus `json:"status"`
}

// StagingArea is the pending-change index (staging.json), keyed by
// repo-relative path. It is read and rewritten wholesale.
type StagingArea struct {
	path string
}

// NewStagingArea creates a StagingArea backed by the file at path.
func NewStagingArea(path string) *StagingArea {
	return &StagingArea{path: path}
}

// Load reads the full index.
func (s *StagingArea) Load() (map[string]StagingEntry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]StagingEntry{}, nil
	}
	if err != nil {
		return nil, ioError("read staging index", err)
	}
	index := map[string]StagingEntry{}
	if err := decodeStrict(data, &index, "staging index"); err != nil {
		return nil, err
	}
	for path, e := range index {
		if path == "" || !e.Status.valid() {
			return nil, fmt.Errorf("%w: staging entry %q", ErrInvalidRecord, path)
		}
		if e.Status != StatusDeleted && !ValidHash(e.Hash) {
			return nil, fmt.Errorf("%w: staging entry %q: bad hash", ErrInvalidRecord, path)
		}
		e.Path = path
		index[path] = e
	}
	return index, nil
}

// Save rewrites the full index.
func (s *StagingArea) Save(index map[string]StagingEntry) error {
	if index == nil {
		index = map[string]StagingEntry{}
	}
	data, err := CanonicalJSON(index)
	if err != nil {
		return fmt.Errorf("serialize staging index: %w", err)
	}
	return ioError("write staging index", SafeWrite(s.path, data, 0644))
}

// Clear empties the index.
func (s *StagingArea) Clear() error {
	return s.Save(nil)
}

// Entries returns the staged entries sorted by path.
func (s *StagingArea) Entries() ([]StagingEntry, error) {
	index, err := s.Load()
	if err != nil {
		return nil, err
	}
	entries := make([]StagingEntry, 0, len(index))
	for _, p := range slices.Sorted(maps.Keys(index)) {
		entries = append(entries, index[p])
	}
	return entries, nil
}

// IsEmpty reports whether nothing is staged.
func (s *StagingArea) IsEmpty() (bool, error) {
	index, err := s.Load()
	if err != nil {
		return false, err
	}
	return len(index) == 0, nil
}

// requireEmpty fails with ErrStagedChangesPresent unless the index is empty.
func (s *StagingArea) requireEmpty(action string) error {
	empty, err := s.IsEmpty()
	if err != nil {
		return err
	}
	if !empty {
		return fmt.Errorf("%w: commit or unstage them before %s", ErrStagedChangesPresent, action)
	}
	return nil
}
