package dag

import "fmt"

// frontier is one side of the interleaved ancestor search.
type frontier struct {
	seen  map[string]bool
	queue []string
}

func newFrontier(start string) *frontier {
	return &frontier{seen: map[string]bool{start: true}, queue: []string{start}}
}

// step expands the oldest queued commit along all of its parent links and
// returns the first newly discovered parent that the other side has seen.
func (f *frontier) step(g *CommitGraph, other *frontier) (string, error) {
	id := f.queue[0]
	f.queue = f.queue[1:]
	c, err := g.Get(id)
	if err != nil {
		return "", err
	}
	for _, p := range c.Parents {
		if f.seen[p] {
			continue
		}
		f.seen[p] = true
		if other.seen[p] {
			return p, nil
		}
		f.queue = append(f.queue, p)
	}
	return "", nil
}

// FindCommonAncestor returns the first commit discovered to be reachable from
// both a and b. Both sides expand breadth-first over every parent link,
// alternating one commit at a time, so merge commits are handled.
func (r *Repository) FindCommonAncestor(a, b string) (string, error) {
	if a == b {
		return a, nil
	}
	fa, fb := newFrontier(a), newFrontier(b)
	for len(fa.queue) > 0 || len(fb.queue) > 0 {
		if len(fa.queue) > 0 {
			found, err := fa.step(r.Commits, fb)
			if err != nil {
				return "", err
			}
			if found != "" {
				return found, nil
			}
		}
		if len(fb.queue) > 0 {
			found, err := fb.step(r.Commits, fa)
			if err != nil {
				return "", err
			}
			if found != "" {
				return found, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s and %s", ErrNoCommonAncestor, a, b)
}
