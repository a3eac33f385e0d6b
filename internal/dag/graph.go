package dag

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	commitExt        = ".json"
	defaultCacheSize = 256
	maxIDAttempts    = 8
)

// CommitGraph stores immutable commit records, one file per id under
// commits/. Records are cached after the first read.
type CommitGraph struct {
	dir   string
	cache *lru.Cache[string, *Commit]
	now   func() time.Time
}

// NewCommitGraph creates a CommitGraph over dir. cacheSize <= 0 selects the
// default size.
func NewCommitGraph(dir string, cacheSize int, now func() time.Time) (*CommitGraph, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, ioError("create commits dir", err)
	}
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, *Commit](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create commit cache: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &CommitGraph{dir: dir, cache: cache, now: now}, nil
}

// newCommitID derives a fresh id from the clock and a random nonce. Ids are
// deliberately not content-addressed.
func (g *CommitGraph) newCommitID() string {
	seed := fmt.Sprintf("%d-%s", g.now().UnixNano(), uuid.NewString())
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

func (g *CommitGraph) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("%w: %q", ErrCommitNotFound, id)
	}
	return filepath.Join(g.dir, id+commitExt), nil
}

// Create allocates a new id and persists the commit record. An existing
// record is never overwritten.
func (g *CommitGraph) Create(parents []string, message, author string, timestamp int64, files FileTable) (string, error) {
	c := &Commit{
		Message:   message,
		Author:    author,
		Timestamp: timestamp,
		Parents:   slices.Clone(parents),
		Files:     files.Clone(),
	}
	if c.Parents == nil {
		c.Parents = []string{}
	}
	for range maxIDAttempts {
		c.ID = g.newCommitID()
		err := g.write(c)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		return c.ID, nil
	}
	return "", fmt.Errorf("allocate commit id: %d collisions", maxIDAttempts)
}

// writeRoot persists the sentinel root commit.
func (g *CommitGraph) writeRoot(message, author string, timestamp int64) error {
	root := &Commit{
		ID:        EmptyCommit,
		Message:   message,
		Author:    author,
		Timestamp: timestamp,
		Parents:   []string{},
		Files:     FileTable{},
	}
	return g.write(root)
}

func (g *CommitGraph) write(c *Commit) error {
	if err := c.validate(); err != nil {
		return err
	}
	path, err := g.path(c.ID)
	if err != nil {
		return err
	}
	data, err := CanonicalJSON(c)
	if err != nil {
		return fmt.Errorf("serialize commit: %w", err)
	}
	if err := SafeCreate(path, data, 0444); err != nil {
		if errors.Is(err, os.ErrExist) {
			return err
		}
		return ioError("write commit "+c.ID, err)
	}
	g.cache.Add(c.ID, c.Clone())
	return nil
}

// Get reads a commit by id. The returned value is a private copy.
func (g *CommitGraph) Get(id string) (*Commit, error) {
	if c, ok := g.cache.Get(id); ok {
		return c.Clone(), nil
	}
	path, err := g.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrCommitNotFound, id)
	}
	if err != nil {
		return nil, ioError("read commit "+id, err)
	}
	var c Commit
	if err := decodeStrict(data, &c, "commit "+id); err != nil {
		return nil, err
	}
	c.ID = id
	if err := c.validate(); err != nil {
		return nil, err
	}
	g.cache.Add(id, c.Clone())
	return &c, nil
}

// Has reports whether a commit record exists.
func (g *CommitGraph) Has(id string) bool {
	if g.cache.Contains(id) {
		return true
	}
	path, err := g.path(id)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// List returns every commit id, sorted.
func (g *CommitGraph) List() ([]string, error) {
	entries, err := os.ReadDir(g.dir)
	if err != nil {
		return nil, ioError("list commits", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, commitExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, commitExt))
	}
	slices.Sort(ids)
	return ids, nil
}
