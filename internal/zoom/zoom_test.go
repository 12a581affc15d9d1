package zoom

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/glim/internal/model"
)

type fakeCatalog map[string]map[string]model.LineRange

func (c fakeCatalog) HasFile(path string) bool {
	_, ok := c[path]
	return ok
}

func (c fakeCatalog) HasSymbol(path, id string) bool {
	_, ok := c[path][id]
	return ok
}

func (c fakeCatalog) SymbolSpan(path, id string) (model.LineRange, bool) {
	r, ok := c[path][id]
	return r, ok
}

var catalog = fakeCatalog{
	"a.go": {"foo": {Start: 3, End: 10}, "bar": {Start: 12, End: 20}},
	"b.py": {model.FileLevelID: {Start: 1, End: 40}},
}

func TestZoomInOut(t *testing.T) {
	n := New(catalog)
	assert.Equal(t, model.Galaxy, n.Level())
	require.ErrorIs(t, n.ZoomOut(), ErrAtRoot)

	require.NoError(t, n.ZoomIn(Selection{File: "a.go"}))
	assert.Equal(t, model.Structure, n.Level())

	require.NoError(t, n.ZoomIn(Selection{Symbol: "foo"}))
	cur := n.Current()
	assert.Equal(t, model.Logic, cur.Level)
	assert.Equal(t, Selection{File: "a.go", Symbol: "foo", Lines: model.LineRange{Start: 3, End: 10}}, cur.Selection)

	require.ErrorIs(t, n.ZoomIn(Selection{Symbol: "bar"}), ErrNoDeeperView)
	assert.Len(t, n.Stack(), 3)

	require.NoError(t, n.ZoomOut())
	require.NoError(t, n.ZoomOut())
	require.ErrorIs(t, n.ZoomOut(), ErrAtRoot)
	assert.True(t, n.Valid())
}

func TestZoomInRejectsNonDescendants(t *testing.T) {
	n := New(catalog)
	require.ErrorIs(t, n.ZoomIn(Selection{}), ErrInvalidSelection)
	require.ErrorIs(t, n.ZoomIn(Selection{File: "missing.go"}), ErrInvalidSelection)

	require.NoError(t, n.ZoomIn(Selection{File: "a.go"}))
	require.ErrorIs(t, n.ZoomIn(Selection{}), ErrInvalidSelection)
	require.ErrorIs(t, n.ZoomIn(Selection{Symbol: model.FileLevelID}), ErrInvalidSelection)
	require.ErrorIs(t, n.ZoomIn(Selection{File: "b.py", Symbol: model.FileLevelID}), ErrInvalidSelection)
	require.ErrorIs(t, n.ZoomIn(Selection{Symbol: "foo", Lines: model.LineRange{Start: 9, End: 11}}), ErrInvalidSelection)
	assert.Equal(t, model.Structure, n.Level())

	require.NoError(t, n.ZoomIn(Selection{Symbol: "foo", Lines: model.LineRange{Start: 4, End: 5}}))
	assert.Equal(t, model.LineRange{Start: 4, End: 5}, n.Current().Selection.Lines)
}

func TestJumpIsAtomic(t *testing.T) {
	n := New(catalog)
	require.NoError(t, n.ZoomIn(Selection{File: "a.go"}))
	before := n.Stack()

	require.ErrorIs(t, n.Jump(model.Logic, Selection{File: "a.go", Symbol: "nope"}), ErrInvalidSelection)
	assert.Equal(t, before, n.Stack())
	require.ErrorIs(t, n.Jump(model.Logic, Selection{File: "gone.go", Symbol: "foo"}), ErrInvalidSelection)
	assert.Equal(t, before, n.Stack())
	require.ErrorIs(t, n.Jump(model.ZoomLevel(7), Selection{}), ErrInvalidSelection)
	assert.Equal(t, before, n.Stack())

	require.NoError(t, n.Jump(model.Logic, Selection{File: "b.py", Symbol: model.FileLevelID, Lines: model.LineRange{Start: 7, End: 7}}))
	stack := n.Stack()
	require.Len(t, stack, 3)
	assert.Equal(t, "b.py", stack[1].Selection.File)
	assert.Equal(t, model.LineRange{Start: 7, End: 7}, stack[2].Selection.Lines)

	require.NoError(t, n.Jump(model.Galaxy, Selection{}))
	assert.Len(t, n.Stack(), 1)
}

func TestRandomOperationsKeepInvariant(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	files := []string{"a.go", "b.py", "missing.go", ""}
	symbols := []string{"foo", "bar", model.FileLevelID, "nope", ""}
	n := New(catalog)

	for i := 0; i < 2000; i++ {
		sel := Selection{File: files[r.IntN(len(files))], Symbol: symbols[r.IntN(len(symbols))]}
		if r.IntN(3) == 0 {
			start := r.IntN(25)
			sel.Lines = model.LineRange{Start: start, End: start + r.IntN(5)}
		}
		before := n.Stack()
		var err error
		switch r.IntN(3) {
		case 0:
			err = n.ZoomIn(sel)
		case 1:
			err = n.ZoomOut()
		default:
			err = n.Jump(model.ZoomLevel(r.IntN(3)), sel)
		}
		if err != nil {
			require.Equal(t, before, n.Stack(), "failed op %d mutated the stack", i)
		}
		require.True(t, n.Valid(), "invariant broken after op %d: %+v", i, n.Stack())
	}
}

func TestReset(t *testing.T) {
	n := New(catalog)
	require.NoError(t, n.Jump(model.Structure, Selection{File: "a.go"}))
	n.Reset(fakeCatalog{})
	assert.Equal(t, model.Galaxy, n.Level())
	require.ErrorIs(t, n.ZoomIn(Selection{File: "a.go"}), ErrInvalidSelection)
}
