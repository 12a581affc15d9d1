// Package staging tracks which diff lines the reviewer has staged.
package staging

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sprite-ai/glim/internal/model"
)

// ErrInvalidRange is returned when a stage request falls outside every hunk.
var ErrInvalidRange = errors.New("invalid range")

// Line identifies one hunk line by hunk index and 0-based line index within the hunk.
type Line struct {
	Hunk int
	Line int
}

// Model is the staged set of a review session. It is single-writer: only the UI
// goroutine calls Stage and Unstage, so it carries no locking.
type Model struct {
	files    map[string]model.FileDiff
	hunks    map[string][]model.Hunk
	staged   map[string]map[Line]struct{}
	versions map[string]uint64
	base     map[string]uint64 // versions as seeded, to find files changed since
}

// New creates the staged set over the given files. Lines the index already
// holds (FileDiff.Cached) start out staged.
func New(files []model.FileDiff) *Model {
	m := &Model{
		files:    make(map[string]model.FileDiff, len(files)),
		hunks:    make(map[string][]model.Hunk, len(files)),
		staged:   make(map[string]map[Line]struct{}),
		versions: make(map[string]uint64),
		base:     make(map[string]uint64),
	}
	for _, fd := range files {
		m.files[fd.Path] = fd
		m.hunks[fd.Path] = fd.Hunks
		m.seed(fd)
	}
	return m
}

// validate checks that lines [r.Start, r.End] exist in hunk hunkIdx of path.
func (m *Model) validate(path string, hunkIdx int, r model.LineRange) (model.Hunk, error) {
	hunks, ok := m.hunks[path]
	if !ok {
		return model.Hunk{}, fmt.Errorf("%w: unknown file %s", ErrInvalidRange, path)
	}
	if hunkIdx < 0 || hunkIdx >= len(hunks) {
		return model.Hunk{}, fmt.Errorf("%w: %s has no hunk %d", ErrInvalidRange, path, hunkIdx)
	}
	h := hunks[hunkIdx]
	if r.Start < 0 || r.End < r.Start || r.End >= len(h.Lines) {
		return model.Hunk{}, fmt.Errorf("%w: lines %d-%d outside hunk %d of %s (%d lines)",
			ErrInvalidRange, r.Start, r.End, hunkIdx, path, len(h.Lines))
	}
	return h, nil
}

// Stage marks the changed lines in [r.Start, r.End] of a hunk as staged. Context
// lines in the range are ignored. Staging staged lines is a no-op.
func (m *Model) Stage(path string, hunkIdx int, r model.LineRange) error {
	h, err := m.validate(path, hunkIdx, r)
	if err != nil {
		return err
	}
	set := m.staged[path]
	if set == nil {
		set = make(map[Line]struct{})
		m.staged[path] = set
	}
	changed := false
	for i := r.Start; i <= r.End; i++ {
		if h.Lines[i].Op == model.OpContext {
			continue
		}
		k := Line{hunkIdx, i}
		if _, ok := set[k]; !ok {
			set[k] = struct{}{}
			changed = true
		}
	}
	if changed {
		m.versions[path]++
	}
	return nil
}

// Unstage removes lines in [r.Start, r.End] of a hunk from the staged set.
// Unstaging unstaged lines is a no-op.
func (m *Model) Unstage(path string, hunkIdx int, r model.LineRange) error {
	if _, err := m.validate(path, hunkIdx, r); err != nil {
		return err
	}
	set := m.staged[path]
	changed := false
	for i := r.Start; i <= r.End; i++ {
		k := Line{hunkIdx, i}
		if _, ok := set[k]; ok {
			delete(set, k)
			changed = true
		}
	}
	if changed {
		m.versions[path]++
	}
	return nil
}

// StageLines stages a set of individual lines, e.g. every changed line of a symbol.
func (m *Model) StageLines(path string, lines []Line) error {
	return m.apply(path, lines, m.Stage)
}

// UnstageLines unstages a set of individual lines.
func (m *Model) UnstageLines(path string, lines []Line) error {
	return m.apply(path, lines, m.Unstage)
}

// apply validates every line before mutating so a bad line leaves the set untouched.
func (m *Model) apply(path string, lines []Line, op func(string, int, model.LineRange) error) error {
	for _, l := range lines {
		if _, err := m.validate(path, l.Hunk, model.LineRange{Start: l.Line, End: l.Line}); err != nil {
			return err
		}
	}
	for _, l := range lines {
		if err := op(path, l.Hunk, model.LineRange{Start: l.Line, End: l.Line}); err != nil {
			return err
		}
	}
	return nil
}

// IsStaged reports whether a hunk line is staged.
func (m *Model) IsStaged(path string, hunkIdx, line int) bool {
	_, ok := m.staged[path][Line{hunkIdx, line}]
	return ok
}

// Version returns a counter bumped whenever the file's staged set changes.
func (m *Model) Version(path string) uint64 {
	return m.versions[path]
}

// Snapshot copies the staged lines of a file for use off the UI goroutine.
func (m *Model) Snapshot(path string) map[Line]struct{} {
	src := m.staged[path]
	out := make(map[Line]struct{}, len(src))
	for k := range src {
		out[k] = struct{}{}
	}
	return out
}

// StagedLines returns the staged lines of a file in hunk order.
func (m *Model) StagedLines(path string) []Line {
	var out []Line
	for k := range m.staged[path] {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hunk != out[j].Hunk {
			return out[i].Hunk < out[j].Hunk
		}
		return out[i].Line < out[j].Line
	})
	return out
}

// Dirty returns the paths whose staged set changed since New, sorted.
func (m *Model) Dirty() []string {
	var out []string
	for p, v := range m.versions {
		if v != m.base[p] {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Files returns the paths with at least one staged line, sorted.
func (m *Model) Files() []string {
	var out []string
	for p, set := range m.staged {
		if len(set) > 0 {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// EffectiveDiff returns the file's diff as it would look with only staged lines
// applied: unstaged removals become context, unstaged additions disappear, and
// hunks left without changes are dropped. Positions are recomputed.
func (m *Model) EffectiveDiff(path string) []model.Hunk {
	set := m.staged[path]
	var out []model.Hunk
	delta := 0
	for hi, h := range m.hunks[path] {
		eh := model.Hunk{OldStart: h.OldStart}
		changes := 0
		for li, l := range h.Lines {
			_, staged := set[Line{hi, li}]
			switch {
			case l.Op == model.OpContext:
				eh.Lines = append(eh.Lines, l)
				eh.OldLen++
				eh.NewLen++
			case l.Op == model.OpRemoved && staged:
				eh.Lines = append(eh.Lines, l)
				eh.OldLen++
				changes++
			case l.Op == model.OpRemoved:
				kept := l
				kept.Op = model.OpContext
				eh.Lines = append(eh.Lines, kept)
				eh.OldLen++
				eh.NewLen++
			case staged:
				eh.Lines = append(eh.Lines, l)
				eh.NewLen++
				changes++
			}
		}
		if changes == 0 {
			continue
		}
		eh.NewStart = newStart(eh, delta)
		delta += eh.NewLen - eh.OldLen
		out = append(out, eh)
	}
	return out
}

// newStart derives the post-side start of a hunk from its old start and the net
// line delta of the hunks before it, following unified diff conventions for empty sides.
func newStart(h model.Hunk, delta int) int {
	start := h.OldStart + delta
	switch {
	case h.OldLen == 0 && h.NewLen > 0:
		start++
	case h.NewLen == 0 && h.OldLen > 0:
		start--
	}
	return start
}
