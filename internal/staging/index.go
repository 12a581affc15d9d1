package staging

import (
	"bytes"
	"fmt"

	"github.com/sprite-ai/glim/internal/model"
)

// IndexEntry is the state one path should have in the git index.
type IndexEntry struct {
	Path        string
	Mode        string // octal git mode, e.g. "100644"
	Content     []byte
	Remove      bool // drop the path from the index
	IntentToAdd bool // after removal, keep the path as an intent-to-add entry
}

// walk calls fn for every line of hunks with the pre-version line it sits on:
// its own line for context and removals, the line it is inserted before for
// additions.
func walk(hunks []model.Hunk, fn func(at Line, old int, l model.LineEdit)) {
	for hi, h := range hunks {
		old := h.OldStart
		if h.OldLen == 0 {
			old++
		}
		for li, l := range h.Lines {
			fn(Line{hi, li}, old, l)
			if l.Op != model.OpAdded {
				old++
			}
		}
	}
}

// change is one changed line of a diff, positioned in the pre-version.
type change struct {
	at   Line
	text string
	op   model.LineOp
	// A removal sits on pre-version line from. An addition may sit in any gap
	// from..to (gap n is before line n): diffs order the removals and additions
	// of one run of changes freely.
	from, to int
}

// changes lists the changed lines of hunks.
func changes(hunks []model.Hunk) []change {
	var out []change
	for hi, h := range hunks {
		old := h.OldStart
		if h.OldLen == 0 {
			old++
		}
		for li := 0; li < len(h.Lines); {
			if h.Lines[li].Op == model.OpContext {
				old++
				li++
				continue
			}
			start, end := old, li
			for end < len(h.Lines) && h.Lines[end].Op != model.OpContext {
				if h.Lines[end].Op == model.OpRemoved {
					old++
				}
				end++
			}
			next := start
			for ; li < end; li++ {
				l := h.Lines[li]
				c := change{at: Line{hi, li}, text: l.Text, op: l.Op, from: start, to: old}
				if l.Op == model.OpRemoved {
					c.from, c.to = next, next
					next++
				}
				out = append(out, c)
			}
		}
	}
	return out
}

// seed stages the lines of fd the index already holds. Both fd.Cached and
// fd.Hunks are relative to HEAD, so removals match by pre-version line and
// additions by text and overlapping position, in order.
func (m *Model) seed(fd model.FileDiff) {
	if len(fd.Cached) == 0 {
		return
	}
	removed := make(map[int]bool)
	added := make(map[string][]change)
	for _, c := range changes(fd.Cached) {
		if c.op == model.OpRemoved {
			removed[c.from] = true
		} else {
			added[c.text] = append(added[c.text], c)
		}
	}

	set := make(map[Line]struct{})
	for _, c := range changes(fd.Hunks) {
		if c.op == model.OpRemoved {
			if removed[c.from] {
				set[c.at] = struct{}{}
			}
			continue
		}
		cands := added[c.text]
		for i, a := range cands {
			if a.from <= c.to && c.from <= a.to {
				set[c.at] = struct{}{}
				added[c.text] = append(cands[:i:i], cands[i+1:]...)
				break
			}
		}
	}
	if len(set) == 0 {
		return
	}
	m.staged[fd.Path] = set
	m.versions[fd.Path] = 1
	m.base[fd.Path] = 1
}

// IndexEntries returns the index updates that make the index hold HEAD plus
// exactly the staged lines, for every file whose staged set changed since New.
func (m *Model) IndexEntries() ([]IndexEntry, error) {
	var out []IndexEntry
	for _, path := range m.Dirty() {
		fd := m.files[path]
		staged := len(m.staged[path]) > 0
		switch {
		case fd.IsNew && !staged:
			out = append(out, IndexEntry{Path: path, Remove: true, IntentToAdd: true})
			continue
		case fd.IsDeleted && m.stagesAll(path):
			out = append(out, IndexEntry{Path: path, Remove: true})
			continue
		}

		content, err := m.content(fd)
		if err != nil {
			return nil, err
		}
		mode := fd.Mode
		if mode == "" {
			mode = "100644"
		}
		renamed := fd.IsRenamed && fd.OldPath != "" && fd.OldPath != path
		switch {
		case renamed && !staged:
			out = append(out,
				IndexEntry{Path: fd.OldPath, Mode: mode, Content: content},
				IndexEntry{Path: path, Remove: true, IntentToAdd: true})
		case renamed:
			out = append(out,
				IndexEntry{Path: path, Mode: mode, Content: content},
				IndexEntry{Path: fd.OldPath, Remove: true})
		default:
			out = append(out, IndexEntry{Path: path, Mode: mode, Content: content})
		}
	}
	return out, nil
}

// stagesAll reports whether every changed line of the file is staged.
func (m *Model) stagesAll(path string) bool {
	total := 0
	for _, h := range m.hunks[path] {
		a, r := h.Counts()
		total += a + r
	}
	return total > 0 && len(m.staged[path]) == total
}

// content builds the file as the index should hold it: the HEAD version with
// the staged lines applied. Unchanged lines keep their bytes as read.
func (m *Model) content(fd model.FileDiff) ([]byte, error) {
	if fd.Pre == nil && !fd.IsNew {
		return nil, fmt.Errorf("%s: HEAD content unavailable", fd.Path)
	}
	pre := fd.Pre.RawLines()
	set := m.staged[fd.Path]

	var b bytes.Buffer
	put := func(s string) {
		// A line written after one that ended the old file needs its own break.
		if n := b.Len(); n > 0 && b.Bytes()[n-1] != '\n' {
			b.WriteByte('\n')
		}
		b.WriteString(s)
	}
	next := 1
	copyTo := func(end int) {
		for ; next < end && next <= len(pre); next++ {
			put(pre[next-1])
		}
	}
	walk(fd.Hunks, func(at Line, old int, l model.LineEdit) {
		copyTo(old)
		_, staged := set[at]
		switch {
		case l.Op == model.OpAdded:
			if staged {
				put(l.Raw())
			}
		case l.Op == model.OpContext || !staged:
			if old >= 1 && old <= len(pre) {
				put(pre[old-1])
			} else {
				put(l.Raw())
			}
			next = old + 1
		default:
			next = old + 1
		}
	})
	copyTo(len(pre) + 1)
	return b.Bytes(), nil
}
