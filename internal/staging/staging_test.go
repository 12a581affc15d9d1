package staging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/glim/internal/model"
)

func lines(op model.LineOp, prefix string, n int) []model.LineEdit {
	out := make([]model.LineEdit, n)
	for i := range out {
		out[i] = model.LineEdit{Op: op, Text: fmt.Sprintf("%s%d", prefix, i+1)}
	}
	return out
}

func TestEffectiveDiffStagedAdditions(t *testing.T) {
	fd := model.FileDiff{Path: "a.go", Hunks: []model.Hunk{{
		OldStart: 5, OldLen: 0, NewStart: 6, NewLen: 20, Lines: lines(model.OpAdded, "n", 20),
	}}}
	m := New([]model.FileDiff{fd})
	require.NoError(t, m.Stage("a.go", 0, model.LineRange{Start: 9, End: 11}))

	eff := m.EffectiveDiff("a.go")
	require.Len(t, eff, 1)
	h := eff[0]
	assert.Equal(t, 5, h.OldStart)
	assert.Equal(t, 0, h.OldLen)
	assert.Equal(t, 6, h.NewStart)
	assert.Equal(t, 3, h.NewLen)
	assert.Equal(t, []model.LineEdit{
		{Op: model.OpAdded, Text: "n10"},
		{Op: model.OpAdded, Text: "n11"},
		{Op: model.OpAdded, Text: "n12"},
	}, h.Lines)
}

func TestEffectiveDiffRevertsUnstagedRemovals(t *testing.T) {
	fd := model.FileDiff{Path: "a.go", Hunks: []model.Hunk{{
		OldStart: 1, OldLen: 20, NewStart: 0, NewLen: 0, Lines: lines(model.OpRemoved, "o", 20),
	}}}
	m := New([]model.FileDiff{fd})
	require.NoError(t, m.Stage("a.go", 0, model.LineRange{Start: 9, End: 11}))

	eff := m.EffectiveDiff("a.go")
	require.Len(t, eff, 1)
	h := eff[0]
	assert.Equal(t, 20, h.OldLen)
	assert.Equal(t, 17, h.NewLen)
	assert.Equal(t, 1, h.NewStart)
	for i, l := range h.Lines {
		want := model.OpContext
		if i >= 9 && i <= 11 {
			want = model.OpRemoved
		}
		assert.Equal(t, want, l.Op, "line %d", i)
		assert.Equal(t, fmt.Sprintf("o%d", i+1), l.Text)
	}
	added, removed := h.Counts()
	assert.Equal(t, 0, added)
	assert.Equal(t, 3, removed)
}

func TestEffectiveDiffShiftsLaterHunks(t *testing.T) {
	fd := model.FileDiff{Path: "a.go", Hunks: []model.Hunk{
		{OldStart: 3, OldLen: 0, NewStart: 4, NewLen: 5, Lines: lines(model.OpAdded, "x", 5)},
		{OldStart: 20, OldLen: 2, NewStart: 25, NewLen: 3, Lines: []model.LineEdit{
			{Op: model.OpContext, Text: "a"},
			{Op: model.OpAdded, Text: "b"},
			{Op: model.OpContext, Text: "c"},
		}},
	}}
	m := New([]model.FileDiff{fd})
	require.NoError(t, m.Stage("a.go", 1, model.LineRange{Start: 0, End: 2}))

	eff := m.EffectiveDiff("a.go")
	require.Len(t, eff, 1, "unstaged first hunk is dropped")
	assert.Equal(t, 20, eff[0].OldStart)
	assert.Equal(t, 20, eff[0].NewStart)
	assert.Equal(t, 3, eff[0].NewLen)
}

func TestStageIsIdempotent(t *testing.T) {
	fd := model.FileDiff{Path: "a.go", Hunks: []model.Hunk{{
		OldStart: 1, OldLen: 4, NewStart: 1, NewLen: 4,
		Lines: append(lines(model.OpRemoved, "o", 4), lines(model.OpAdded, "n", 4)...),
	}}}
	once := New([]model.FileDiff{fd})
	twice := New([]model.FileDiff{fd})
	r := model.LineRange{Start: 1, End: 5}

	require.NoError(t, once.Stage("a.go", 0, r))
	require.NoError(t, twice.Stage("a.go", 0, r))
	require.NoError(t, twice.Stage("a.go", 0, r))

	assert.Equal(t, once.EffectiveDiff("a.go"), twice.EffectiveDiff("a.go"))
	assert.Equal(t, uint64(1), twice.Version("a.go"))

	require.NoError(t, twice.Unstage("a.go", 0, r))
	require.NoError(t, twice.Unstage("a.go", 0, r))
	assert.Equal(t, uint64(2), twice.Version("a.go"))
	assert.Empty(t, twice.EffectiveDiff("a.go"))
	assert.Empty(t, twice.Files())
}

func TestStageIgnoresContextLines(t *testing.T) {
	fd := model.FileDiff{Path: "a.go", Hunks: []model.Hunk{{
		OldStart: 1, OldLen: 2, NewStart: 1, NewLen: 3,
		Lines: []model.LineEdit{{Op: model.OpContext, Text: "a"}, {Op: model.OpAdded, Text: "b"}, {Op: model.OpContext, Text: "c"}},
	}}}
	m := New([]model.FileDiff{fd})
	require.NoError(t, m.Stage("a.go", 0, model.LineRange{Start: 0, End: 0}))
	assert.Equal(t, uint64(0), m.Version("a.go"), "context-only range changes nothing")

	require.NoError(t, m.Stage("a.go", 0, model.LineRange{Start: 0, End: 2}))
	assert.False(t, m.IsStaged("a.go", 0, 0))
	assert.True(t, m.IsStaged("a.go", 0, 1))
	assert.Equal(t, []Line{{Hunk: 0, Line: 1}}, m.StagedLines("a.go"))
}

func TestStageRejectsInvalidRange(t *testing.T) {
	fd := model.FileDiff{Path: "a.go", Hunks: []model.Hunk{{
		OldStart: 1, OldLen: 0, NewStart: 1, NewLen: 2, Lines: lines(model.OpAdded, "n", 2),
	}}}
	m := New([]model.FileDiff{fd})

	cases := []struct {
		name string
		path string
		hunk int
		r    model.LineRange
	}{
		{"unknown file", "b.go", 0, model.LineRange{}},
		{"negative hunk", "a.go", -1, model.LineRange{}},
		{"missing hunk", "a.go", 1, model.LineRange{}},
		{"past end", "a.go", 0, model.LineRange{Start: 1, End: 2}},
		{"reversed", "a.go", 0, model.LineRange{Start: 1, End: 0}},
		{"negative start", "a.go", 0, model.LineRange{Start: -1, End: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, m.Stage(tc.path, tc.hunk, tc.r), ErrInvalidRange)
			require.ErrorIs(t, m.Unstage(tc.path, tc.hunk, tc.r), ErrInvalidRange)
		})
	}
	assert.Empty(t, m.Files())
}

func TestStageLinesIsAtomic(t *testing.T) {
	fd := model.FileDiff{Path: "a.go", Hunks: []model.Hunk{{
		OldStart: 1, OldLen: 0, NewStart: 1, NewLen: 2, Lines: lines(model.OpAdded, "n", 2),
	}}}
	m := New([]model.FileDiff{fd})
	err := m.StageLines("a.go", []Line{{0, 0}, {0, 7}})
	require.ErrorIs(t, err, ErrInvalidRange)
	assert.False(t, m.IsStaged("a.go", 0, 0))

	require.NoError(t, m.StageLines("a.go", []Line{{0, 0}, {0, 1}}))
	snap := m.Snapshot("a.go")
	assert.Len(t, snap, 2)
	require.NoError(t, m.UnstageLines("a.go", []Line{{0, 0}}))
	assert.Len(t, snap, 2, "snapshot is a copy")
	assert.Len(t, m.Snapshot("a.go"), 1)
}

func TestPatch(t *testing.T) {
	fd := model.FileDiff{Path: "x.go", Hunks: []model.Hunk{{
		OldStart: 1, OldLen: 2, NewStart: 1, NewLen: 4,
		Lines: []model.LineEdit{
			{Op: model.OpContext, Text: "a"},
			{Op: model.OpAdded, Text: "b"},
			{Op: model.OpAdded, Text: "skip"},
			{Op: model.OpContext, Text: "c"},
		},
	}}}
	m := New([]model.FileDiff{fd})

	empty, err := m.Patch()
	require.NoError(t, err)
	assert.Nil(t, empty)

	require.NoError(t, m.Stage("x.go", 0, model.LineRange{Start: 1, End: 1}))
	patch, err := m.Patch()
	require.NoError(t, err)
	s := string(patch)
	assert.Contains(t, s, "diff --git a/x.go b/x.go")
	assert.Contains(t, s, "--- a/x.go")
	assert.Contains(t, s, "+++ b/x.go")
	assert.Contains(t, s, "@@ -1,2 +1,3 @@")
	assert.Contains(t, s, " a\n+b\n c\n")
	assert.NotContains(t, s, "skip")
}

func TestPatchNewFile(t *testing.T) {
	fd := model.FileDiff{Path: "new.go", IsNew: true, Hunks: []model.Hunk{{
		OldStart: 0, OldLen: 0, NewStart: 1, NewLen: 2, Lines: lines(model.OpAdded, "n", 2),
	}}}
	m := New([]model.FileDiff{fd})
	require.NoError(t, m.Stage("new.go", 0, model.LineRange{Start: 0, End: 1}))
	patch, err := m.Patch()
	require.NoError(t, err)
	assert.Contains(t, string(patch), "--- /dev/null")
	assert.Contains(t, string(patch), "new file mode 100644")
	assert.Contains(t, string(patch), "@@ -0,0 +1,2 @@")
}
