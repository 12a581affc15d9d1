package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/glim/internal/model"
	"github.com/sprite-ai/glim/internal/parse"
	"github.com/sprite-ai/glim/internal/staging"
	"github.com/sprite-ai/glim/internal/symbols"
	"github.com/sprite-ai/glim/internal/zoom"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Workers = 4
	return opts
}

// version builds a file version that carries its own symbols.
func version(path string, lines []string, syms ...model.SymbolRange) *model.FileVersion {
	v := model.NewFileVersion(path, []byte(strings.Join(lines, "\n")+"\n"))
	v.Symbols = append([]model.SymbolRange{}, syms...)
	return v
}

func fn(id, name string, start, end int) model.SymbolRange {
	return model.SymbolRange{ID: id, Name: name, Kind: model.KindFunction, Start: start, End: end}
}

func replace(oldStart int, removed, added []string) model.Hunk {
	h := model.Hunk{OldStart: oldStart, OldLen: len(removed), NewStart: oldStart, NewLen: len(added)}
	for _, l := range removed {
		h.Lines = append(h.Lines, model.LineEdit{Op: model.OpRemoved, Text: l})
	}
	for _, l := range added {
		h.Lines = append(h.Lines, model.LineEdit{Op: model.OpAdded, Text: l})
	}
	return h
}

var (
	preBody = []string{"func f() {", "if a {", "x()", "}", "y()", "z()", "}"}
	indent  = []string{"\tif a {", "\t\tx()", "\t}", "\ty()", "\tz()"}
	rewrite = []string{"for {", "w()", "break", "v()", "u()"}
)

// reformatted returns a file whose f body changed on lines 2-6.
func reformatted(path string, body []string) model.FileDiff {
	post := append(append([]string{preBody[0]}, body...), preBody[6])
	return model.FileDiff{
		Path:     path,
		Language: "go",
		Pre:      version(path, preBody, fn("f", "f", 1, 7)),
		Post:     version(path, post, fn("f", "f", 1, 7)),
		Hunks:    []model.Hunk{replace(2, preBody[1:6], body)},
	}
}

// grownFoo is a.py where foo gains three lines.
func grownFoo() model.FileDiff {
	pre := "def foo():\n    return 1\n\ndef keep():\n    pass\n"
	post := "def foo():\n    x = 1\n    y = 2\n    z = 3\n    return 1\n\ndef keep():\n    pass\n"
	return model.FileDiff{
		Path:     "a.py",
		Language: "python",
		Pre:      model.NewFileVersion("a.py", []byte(pre)),
		Post:     model.NewFileVersion("a.py", []byte(post)),
		Hunks: []model.Hunk{{
			OldStart: 1, OldLen: 2, NewStart: 1, NewLen: 5,
			Lines: []model.LineEdit{
				{Op: model.OpContext, Text: "def foo():"},
				{Op: model.OpAdded, Text: "    x = 1"},
				{Op: model.OpAdded, Text: "    y = 2"},
				{Op: model.OpAdded, Text: "    z = 3"},
				{Op: model.OpContext, Text: "    return 1"},
			},
		}},
	}
}

func build(t *testing.T, files ...model.FileDiff) *Engine {
	t.Helper()
	e := New(parse.New(), testOptions(), nil)
	require.NoError(t, e.Build(context.Background(), files))
	return e
}

func TestModifiedSymbolGainsLines(t *testing.T) {
	e := build(t, grownFoo())

	g := e.Galaxy()
	require.Len(t, g, 1)
	assert.Greater(t, g[0].Impact.ChurnScore, 0.0)
	assert.False(t, g[0].Impact.HasCosmeticOnly)

	nodes, err := e.Structure("a.py", false)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "foo", nodes[0].Name)
	assert.Equal(t, model.RelationModified, nodes[0].Relation)
	assert.Equal(t, 3, nodes[0].Added)
	assert.Equal(t, 0, nodes[0].Removed)

	view, err := e.Logic("a.py", nodes[0].Key)
	require.NoError(t, err)
	require.Len(t, view.Hunks, 1)
	assert.Equal(t, "foo", view.Hunks[0].Context)

	all, err := e.Structure("a.py", true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "keep", all[1].Name)
	assert.Equal(t, model.RelationUnchanged, all[1].Relation)
}

func TestReindentedFileIsCosmeticOnly(t *testing.T) {
	e := build(t, reformatted("cos.go", indent), reformatted("sem.go", rewrite))

	cos, err := e.Result("cos.go")
	require.NoError(t, err)
	sem, err := e.Result("sem.go")
	require.NoError(t, err)

	for _, l := range cos.Labels[0] {
		assert.Equal(t, model.LabelCosmetic, l)
	}
	assert.True(t, cos.Impact.HasCosmeticOnly)
	assert.False(t, sem.Impact.HasCosmeticOnly)
	assert.InDelta(t, sem.Impact.ChurnScore*0.1, cos.Impact.ChurnScore, 1e-9)

	g := e.Galaxy()
	assert.Equal(t, "sem.go", g[0].Impact.Path)
	assert.Equal(t, "cos.go", g[1].Impact.Path)

	nodes, err := e.Structure("cos.go", false)
	require.NoError(t, err)
	require.Len(t, nodes, 1, "cosmetic-only symbols stay visible")
	assert.True(t, nodes[0].CosmeticOnly())

	view, err := e.Logic("cos.go", nodes[0].Key)
	require.NoError(t, err)
	require.Len(t, view.Hunks, 1)
	require.Len(t, view.Hunks[0].Blocks, 1)
	assert.True(t, view.Hunks[0].Blocks[0].Cosmetic)
	assert.Len(t, view.Lines(), 10, "cosmetic lines are folded, not dropped")
}

func TestLogicMixedBlocks(t *testing.T) {
	fd := reformatted("m.go", []string{"\tif a {", "w()", "}", "y()", "z()"})
	e := build(t, fd)
	view, err := e.Logic("m.go", "+f")
	require.NoError(t, err)

	var cosmetic, semantic int
	for _, h := range view.Hunks {
		for _, b := range h.Blocks {
			for _, l := range b.Lines {
				assert.Equal(t, b.Cosmetic, l.Label == model.LabelCosmetic)
			}
			if b.Cosmetic {
				cosmetic += len(b.Lines)
			} else {
				semantic += len(b.Lines)
			}
		}
	}
	assert.Equal(t, 8, cosmetic)
	assert.Equal(t, 2, semantic)
}

func TestDeterminism(t *testing.T) {
	files := []model.FileDiff{grownFoo(), reformatted("b.go", indent), reformatted("c.go", rewrite), reformatted("d.go", rewrite)}
	a := build(t, files...)
	b := build(t, files...)
	assert.Equal(t, a.Galaxy(), b.Galaxy())
	assert.Equal(t, a.Directories(), b.Directories())
	for _, fd := range files {
		ra, _ := a.Result(fd.Path)
		rb, _ := b.Result(fd.Path)
		assert.Equal(t, ra.Impact.SymbolMatches, rb.Impact.SymbolMatches)
	}

	g := a.Galaxy()
	assert.Equal(t, "c.go", g[0].Impact.Path, "equal churn breaks ties by path")
	assert.Equal(t, "d.go", g[1].Impact.Path)
}

func TestStaleGenerationIsDropped(t *testing.T) {
	e := New(nil, testOptions(), nil)
	e.Load([]model.FileDiff{reformatted("x.go", rewrite)})
	old := e.Start(context.Background())

	gen := e.Load([]model.FileDiff{reformatted("x.go", indent)})
	for r := range old {
		assert.False(t, e.Merge(r))
	}
	assert.True(t, e.Pending("x.go"))
	_, err := e.Structure("x.go", false)
	require.ErrorIs(t, err, ErrPending)

	g := e.Galaxy()
	require.Len(t, g, 1)
	assert.True(t, g[0].Pending)

	for r := range e.Start(context.Background()) {
		assert.Equal(t, gen, r.Gen)
		assert.True(t, e.Merge(r))
	}
	assert.True(t, e.Ready())
	r, err := e.Result("x.go")
	require.NoError(t, err)
	assert.True(t, r.Impact.HasCosmeticOnly)
}

func TestMalformedIndexKeepsLineChurn(t *testing.T) {
	fd := reformatted("bad.go", rewrite)
	fd.Post.Symbols = []model.SymbolRange{fn("a", "a", 1, 4), fn("b", "b", 3, 7)}
	e := build(t, fd)

	g := e.Galaxy()
	require.Len(t, g, 1)
	assert.Greater(t, g[0].Impact.ChurnScore, 0.0)
	require.ErrorIs(t, g[0].Impact.Err, symbols.ErrMalformedSymbolIndex)

	_, err := e.Structure("bad.go", false)
	require.ErrorIs(t, err, symbols.ErrMalformedSymbolIndex)
	_, err = e.Logic("bad.go", "+a")
	require.ErrorIs(t, err, symbols.ErrMalformedSymbolIndex)
}

func TestUnsupportedLanguageFallsBackToFileLevel(t *testing.T) {
	fd := model.FileDiff{
		Path:  "notes.txt",
		Pre:   model.NewFileVersion("notes.txt", []byte("a\nb\n")),
		Post:  model.NewFileVersion("notes.txt", []byte("a\nc\n")),
		Hunks: []model.Hunk{replace(2, []string{"b"}, []string{"c"})},
	}
	fd.Language = "cobol"
	e := build(t, fd)
	nodes, err := e.Structure("notes.txt", false)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, model.FileLevelID, nodes[0].PostID)
	assert.Equal(t, model.LineRange{Start: 1, End: 2}, nodes[0].Span)

	view, err := e.Logic("notes.txt", nodes[0].Key)
	require.NoError(t, err)
	assert.Len(t, view.Lines(), 2)
}

func TestRenameHintSkipsMatching(t *testing.T) {
	v := version("new.go", preBody, fn("f", "f", 1, 7))
	e := build(t, model.FileDiff{Path: "new.go", OldPath: "old.go", IsRenamed: true, Pre: v, Post: v})
	r, err := e.Result("new.go")
	require.NoError(t, err)
	require.Len(t, r.Impact.SymbolMatches, 1)
	assert.Equal(t, model.RelationUnchanged, r.Impact.SymbolMatches[0].Relation)
	assert.Zero(t, r.Impact.ChurnScore)
}

func TestIncrementalRecompute(t *testing.T) {
	files := []model.FileDiff{grownFoo(), reformatted("b.go", rewrite)}
	e := build(t, files...)
	st := staging.New(e.Files())
	e.SetStaging(st)

	before, err := e.Result("a.py")
	require.NoError(t, err)
	matches := append([]model.SymbolMatch(nil), before.Impact.SymbolMatches...)

	rebuilt, err := e.Recompute(context.Background(), []string{"a.py", "b.go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py", "b.go"}, rebuilt)

	require.NoError(t, st.Stage("a.py", 0, model.LineRange{Start: 1, End: 2}))
	rebuilt, err = e.Recompute(context.Background(), []string{"a.py", "b.go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py"}, rebuilt, "unchanged files are reused")

	rebuilt, err = e.Recompute(context.Background(), []string{"a.py", "b.go"})
	require.NoError(t, err)
	assert.Empty(t, rebuilt)

	nodes, err := e.Structure("a.py", false)
	require.NoError(t, err)
	assert.Equal(t, StagedCounts{Added: 2}, nodes[0].Staged)
	assert.Equal(t, model.StagePartial, nodes[0].Stage())

	var galaxyA model.FileImpact
	for _, g := range e.Galaxy() {
		if g.Impact.Path == "a.py" {
			galaxyA = g.Impact
		}
	}
	assert.Equal(t, 2, galaxyA.StagedAdded)
	assert.Equal(t, model.StagePartial, galaxyA.Stage())

	after, err := e.Result("a.py")
	require.NoError(t, err)
	assert.Equal(t, matches, after.Impact.SymbolMatches, "staging never changes identity")

	view, err := e.Logic("a.py", nodes[0].Key)
	require.NoError(t, err)
	var staged int
	for _, l := range view.Lines() {
		if l.Staged {
			staged++
		}
	}
	assert.Equal(t, 2, staged)
}

func TestSymbolLines(t *testing.T) {
	e := build(t, grownFoo())
	nodes, err := e.Structure("a.py", false)
	require.NoError(t, err)
	lines, err := e.SymbolLines("a.py", nodes[0].Key)
	require.NoError(t, err)
	assert.Equal(t, []staging.Line{{Hunk: 0, Line: 1}, {Hunk: 0, Line: 2}, {Hunk: 0, Line: 3}}, lines)

	_, err = e.SymbolLines("a.py", "+nope")
	require.ErrorIs(t, err, ErrUnknownSymbol)
	_, err = e.SymbolLines("zzz.py", "+nope")
	require.ErrorIs(t, err, ErrUnknownFile)
}

func TestCommentAnchoring(t *testing.T) {
	e := build(t, grownFoo())
	e.SetComments([]model.Comment{
		{Path: "a.py", Line: 3, Author: "rev", Body: "why y?"},
		{Path: "a.py", Line: 8, Author: "rev", Body: "ok"},
		{Path: "a.py", Line: 6, Author: "rev", Body: "blank"},
	})

	nodes, err := e.Structure("a.py", true)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "(file level)", nodes[0].Name)
	assert.Equal(t, 1, nodes[0].Comments, "the blank line between functions")
	assert.Equal(t, 1, nodes[1].Comments)
	assert.Equal(t, 1, nodes[2].Comments)

	key, err := e.Anchor(model.Comment{Path: "a.py", Line: 3})
	require.NoError(t, err)
	assert.Equal(t, nodes[1].Key, key)
	key, err = e.Anchor(model.Comment{Path: "a.py", Line: 6})
	require.NoError(t, err)
	assert.Equal(t, "+"+model.FileLevelID, key)
	assert.Equal(t, nodes[0].Key, key)

	// Only changed symbols are listed by default, plus the commented file level.
	changed, err := e.Structure("a.py", false)
	require.NoError(t, err)
	require.Len(t, changed, 3, "keep has a comment")
	assert.Equal(t, model.RelationUnchanged, changed[0].Relation)
	view, err := e.Logic("a.py", key)
	require.NoError(t, err)
	assert.Empty(t, view.Hunks)

	assert.Equal(t, 3, e.Galaxy()[0].Comments)
	assert.Equal(t, 6, e.Comments("a.py")[1].Line)
}

func TestEngineIsZoomCatalog(t *testing.T) {
	e := build(t, grownFoo())
	nav := zoom.New(e)
	require.NoError(t, nav.ZoomIn(zoom.Selection{File: "a.py"}))
	nodes, err := e.Structure("a.py", false)
	require.NoError(t, err)
	require.NoError(t, nav.ZoomIn(zoom.Selection{Symbol: nodes[0].Key}))
	assert.Equal(t, model.LineRange{Start: 1, End: 5}, nav.Current().Selection.Lines)
	assert.True(t, nav.Valid())

	require.ErrorIs(t, nav.Jump(model.Logic, zoom.Selection{File: "a.py", Symbol: "+missing"}), zoom.ErrInvalidSelection)
	assert.Equal(t, model.Logic, nav.Level())
}

func TestDirectories(t *testing.T) {
	var files []model.FileDiff
	for i, p := range []string{"pkg/a.go", "pkg/b.go", "cmd/c.go"} {
		body := rewrite
		if i == 2 {
			body = indent
		}
		files = append(files, reformatted(p, body))
	}
	e := build(t, files...)
	dirs := e.Directories()
	require.Len(t, dirs, 2)
	assert.Equal(t, "pkg", dirs[0].Dir)
	assert.Equal(t, 2, dirs[0].Files)
	assert.Equal(t, "cmd", dirs[1].Dir)

	n, added, removed := e.Stats()
	assert.Equal(t, 3, n)
	assert.Equal(t, 15, added)
	assert.Equal(t, 15, removed)
}

func TestManyFilesOnPool(t *testing.T) {
	var files []model.FileDiff
	for i := 0; i < 50; i++ {
		files = append(files, reformatted(fmt.Sprintf("f%02d.go", i), rewrite))
	}
	e := build(t, files...)
	assert.True(t, e.Ready())
	assert.Len(t, e.Galaxy(), 50)
}

func TestRustImplNeverPairsWithItsStruct(t *testing.T) {
	pre := "struct Point { x: i32 }\n\nimpl Point {\n    fn norm(&self) -> i32 {\n        self.x\n    }\n}\n"
	post := "impl Point {\n    fn norm(&self) -> i32 {\n        self.x\n    }\n}\n"
	e := build(t, model.FileDiff{
		Path:     "lib.rs",
		Language: "rust",
		Pre:      model.NewFileVersion("lib.rs", []byte(pre)),
		Post:     model.NewFileVersion("lib.rs", []byte(post)),
		Hunks:    []model.Hunk{replace(1, []string{"struct Point { x: i32 }", ""}, nil)},
	})

	nodes, err := e.Structure("lib.rs", true)
	require.NoError(t, err)
	byName := map[string]Node{}
	for _, n := range nodes {
		byName[n.Name] = n
	}
	require.Contains(t, byName, "Point")
	require.Contains(t, byName, "impl Point")
	assert.Equal(t, model.RelationDeleted, byName["Point"].Relation)
	assert.Empty(t, byName["Point"].PostID)
	assert.NotEmpty(t, byName["impl Point"].PreID)
	assert.NotEmpty(t, byName["impl Point"].PostID)
}
