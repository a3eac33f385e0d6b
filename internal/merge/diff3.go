// Package merge implements a line-oriented three-way merge. Both sides are
// diffed against the common base with a SequenceMatcher; the resulting edit
// regions are anchored to base line positions and combined region by region.
package merge

import (
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Conflict markers. The end marker is followed by the target label.
const (
	MarkerStart = "<<<<<<< "
	MarkerSep   = "======="
	MarkerEnd   = ">>>>>>> "
)

// Labels name the two sides in conflict markers.
type Labels struct {
	Current string
	Target  string
}

// DefaultLabels is used when a label is left empty.
var DefaultLabels = Labels{Current: "HEAD", Target: "merge"}

// Result is the outcome of merging one file.
type Result struct {
	Lines     []string
	Conflicts int
}

// Conflicted reports whether any region could not be merged.
func (r Result) Conflicted() bool { return r.Conflicts > 0 }

// Text joins the merged lines.
func (r Result) Text() string { return strings.Join(r.Lines, "") }

// hunk is one non-equal region of an edit script: base[i1:i2] was replaced by
// side[j1:j2].
type hunk struct {
	i1, i2, j1, j2 int
}

// editHunks returns the edit regions turning base into side.
func editHunks(base, side []string) []hunk {
	m := difflib.NewMatcher(base, side)
	var hs []hunk
	for _, op := range m.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		hs = append(hs, hunk{i1: op.I1, i2: op.I2, j1: op.J1, j2: op.J2})
	}
	return hs
}

// Lines merges current and target against base. Lines are expected to keep
// their terminators, as produced by splitting after each newline.
func Lines(base, current, target []string, labels Labels) Result {
	if labels.Current == "" {
		labels.Current = DefaultLabels.Current
	}
	if labels.Target == "" {
		labels.Target = DefaultLabels.Target
	}

	ours := editHunks(base, current)
	theirs := editHunks(base, target)

	var res Result
	pos := 0
	a, b := 0, 0
	for a < len(ours) || b < len(theirs) {
		// Start the region at the earliest pending edit.
		var start int
		switch {
		case b >= len(theirs) || (a < len(ours) && ours[a].i1 <= theirs[b].i1):
			start = ours[a].i1
		default:
			start = theirs[b].i1
		}
		res.Lines = append(res.Lines, base[pos:start]...)

		// Grow the region while the next edit from either side overlaps it.
		// Edits that share a start position always overlap, so two insertions
		// at the same point end up in one region.
		end := start
		var ga, gb []hunk
		for {
			if a < len(ours) && (ours[a].i1 < end || ours[a].i1 == start) {
				ga = append(ga, ours[a])
				end = max(end, ours[a].i2)
				a++
				continue
			}
			if b < len(theirs) && (theirs[b].i1 < end || theirs[b].i1 == start) {
				gb = append(gb, theirs[b])
				end = max(end, theirs[b].i2)
				b++
				continue
			}
			break
		}

		switch {
		case len(gb) == 0:
			res.Lines = append(res.Lines, apply(base, current, ga, start, end)...)
		case len(ga) == 0:
			res.Lines = append(res.Lines, apply(base, target, gb, start, end)...)
		default:
			mine := apply(base, current, ga, start, end)
			yours := apply(base, target, gb, start, end)
			if slices.Equal(mine, yours) {
				res.Lines = append(res.Lines, mine...)
			} else {
				res.Lines = appendConflict(res.Lines, mine, yours, labels)
				res.Conflicts++
			}
		}
		pos = end
	}
	res.Lines = append(res.Lines, base[pos:]...)
	return res
}

// apply renders one side's version of base[start:end] given that side's
// edits inside the region.
func apply(base, side []string, hs []hunk, start, end int) []string {
	var out []string
	pos := start
	for _, h := range hs {
		out = append(out, base[pos:h.i1]...)
		out = append(out, side[h.j1:h.j2]...)
		pos = h.i2
	}
	return append(out, base[pos:end]...)
}

func appendConflict(out, mine, yours []string, labels Labels) []string {
	out = append(out, MarkerStart+labels.Current+"\n")
	out = appendTerminated(out, mine)
	out = append(out, MarkerSep+"\n")
	out = appendTerminated(out, yours)
	return append(out, MarkerEnd+labels.Target+"\n")
}

// appendTerminated appends lines, giving the last one a newline so the
// following marker starts on its own line.
func appendTerminated(out, lines []string) []string {
	for i, l := range lines {
		if i == len(lines)-1 && !strings.HasSuffix(l, "\n") {
			l += "\n"
		}
		out = append(out, l)
	}
	return out
}

// HasMarkers reports whether text still contains a conflict start marker at
// the beginning of a line.
func HasMarkers(text string) bool {
	return strings.HasPrefix(text, MarkerStart) || strings.Contains(text, "\n"+MarkerStart)
}
