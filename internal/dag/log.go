package dag

import (
	"errors"
	"fmt"
	"slices"
)

// LogEntry is one commit as shown by log and graph traversal.
type LogEntry struct {
	ID        string   `json:"id"`
	Message   string   `json:"message"`
	Author    string   `json:"author"`
	Timestamp int64    `json:"timestamp"`
	Parents   []string `json:"parents"`
	Files     int      `json:"files"`
}

// IsMerge reports whether the commit has more than one parent.
func (e LogEntry) IsMerge() bool {
	return len(e.Parents) > 1
}

func newLogEntry(c *Commit) LogEntry {
	return LogEntry{
		ID:        c.ID,
		Message:   c.Message,
		Author:    c.Author,
		Timestamp: c.Timestamp,
		Parents:   slices.Clone(c.Parents),
		Files:     len(c.Files),
	}
}

// Log returns up to n commits following the first-parent chain from HEAD,
// newest first. n <= 0 returns the whole chain.
func (r *Repository) Log(n int) ([]LogEntry, error) {
	id, err := r.ResolveCurrentCommit()
	if err != nil {
		return nil, err
	}
	return r.LogFrom(id, n)
}

// LogFrom is Log starting at an arbitrary commit.
func (r *Repository) LogFrom(id string, n int) ([]LogEntry, error) {
	var entries []LogEntry
	for id != "" && (n <= 0 || len(entries) < n) {
		c, err := r.Commits.Get(id)
		if err != nil {
			return entries, err
		}
		entries = append(entries, newLogEntry(c))
		id = c.FirstParent()
	}
	return entries, nil
}

// ErrInvalidLimit is returned by Graph for a non-positive count.
var ErrInvalidLimit = errors.New("limit must be positive")

// Graph returns up to n commits reachable from HEAD in topological order: a
// commit is listed only after every reachable commit naming it as a parent.
func (r *Repository) Graph(n int) ([]LogEntry, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	head, err := r.ResolveCurrentCommit()
	if err != nil {
		return nil, err
	}

	// Full reachability scan, recording every commit.
	commits := map[string]*Commit{}
	stack := []string{head}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := commits[id]; ok {
			continue
		}
		c, err := r.Commits.Get(id)
		if err != nil {
			return nil, err
		}
		commits[id] = c
		for _, p := range c.Parents {
			if _, ok := commits[p]; !ok {
				stack = append(stack, p)
			}
		}
	}

	indegree := make(map[string]int, len(commits))
	for _, c := range commits {
		for _, p := range c.Parents {
			indegree[p]++
		}
	}

	var out []LogEntry
	seen := map[string]bool{head: true}
	queue := []string{head}
	for len(queue) > 0 && len(out) < n {
		id := queue[0]
		queue = queue[1:]
		c := commits[id]
		out = append(out, newLogEntry(c))
		for _, p := range c.Parents {
			indegree[p]--
			if indegree[p] == 0 && !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return out, nil
}
