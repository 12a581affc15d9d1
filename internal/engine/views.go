package engine

import (
	"fmt"
	"strings"

	"github.com/sprite-ai/glim/internal/hunkmap"
	"github.com/sprite-ai/glim/internal/model"
	"github.com/sprite-ai/glim/internal/staging"
)

// Node is one symbol of the Structure view.
type Node struct {
	Key        string // match key, stable for the session
	PreID      string
	PostID     string
	Name       string
	Kind       model.SymbolKind
	Depth      int
	Relation   model.Relation
	Confidence float64
	Span       model.LineRange // post span, pre span for deleted symbols

	Added    int
	Removed  int
	Cosmetic int
	Staged   StagedCounts
	Comments int
}

// Changed returns added plus removed lines.
func (n Node) Changed() int {
	return n.Added + n.Removed
}

// CosmeticOnly reports whether every changed line of the node is cosmetic.
func (n Node) CosmeticOnly() bool {
	return n.Changed() > 0 && n.Cosmetic == n.Changed()
}

// Stage returns how much of the node is staged.
func (n Node) Stage() model.StageState {
	return model.StageStateOf(n.Staged.Added+n.Staged.Removed, n.Changed())
}

// symbol resolves a match key in an analyzed file.
func (e *Engine) symbol(path, key string) (*FileResult, model.SymbolMatch, error) {
	r, err := e.Result(path)
	if err != nil {
		return nil, model.SymbolMatch{}, err
	}
	if r.Impact.Err != nil {
		return nil, model.SymbolMatch{}, fmt.Errorf("%s: %w", path, r.Impact.Err)
	}
	m, ok := r.Match(key)
	if !ok {
		return nil, model.SymbolMatch{}, fmt.Errorf("%w: %s in %s", ErrUnknownSymbol, key, path)
	}
	return r, m, nil
}

func (e *Engine) node(r *FileResult, m model.SymbolMatch, ov *overlay, comments map[string]int) Node {
	n := Node{
		Key:        m.Key(),
		PreID:      m.PreID,
		PostID:     m.PostID,
		Relation:   m.Relation,
		Confidence: m.Confidence,
		Staged:     ov.bySymbol[m.Key()],
		Comments:   comments[m.Key()],
	}
	pre, post := r.Attr.PreAttribution(m.PreID), r.Attr.PostAttribution(m.PostID)
	if m.PreID != "" {
		n.Removed = pre.RemovedLines
		n.Cosmetic += pre.CosmeticLines
	}
	if m.PostID != "" {
		n.Added = post.AddedLines
		n.Cosmetic += post.CosmeticLines
	}

	if m.PostID == model.FileLevelID {
		n.Name = "(file level)"
		n.Span = model.LineRange{Start: 1, End: max(1, totalLines(r.Diff))}
		return n
	}
	idx, id := r.Post, m.PostID
	if id == "" {
		idx, id = r.Pre, m.PreID
	}
	if s, ok := idx.Get(id); ok {
		n.Name = s.Name
		n.Kind = s.Kind
		n.Depth = idx.Depth(id)
		n.Span = model.LineRange{Start: s.Start, End: s.End}
	}
	return n
}

// Structure returns the symbol tree of a file in source order. Symbols without
// changes are omitted unless all is set.
func (e *Engine) Structure(path string, all bool) ([]Node, error) {
	r, err := e.Result(path)
	if err != nil {
		return nil, err
	}
	if r.Impact.Err != nil {
		return nil, fmt.Errorf("%s: %w", path, r.Impact.Err)
	}
	ov := e.overlay(r)
	comments := e.commentCounts(r)
	var out []Node
	hasFile := false
	for _, m := range r.Impact.SymbolMatches {
		hasFile = hasFile || m.PostID == model.FileLevelID
		n := e.node(r, m, ov, comments)
		if !all && n.Changed() == 0 && n.Comments == 0 {
			continue
		}
		out = append(out, n)
	}
	// Comments outside every symbol of an unchanged file level still get a row.
	if !hasFile && comments[fileLevel.Key()] > 0 {
		out = append([]Node{e.node(r, fileLevel, ov, comments)}, out...)
	}
	return out, nil
}

// LogicLine is one diff line of the Logic view.
type LogicLine struct {
	Hunk    int // index into the file's hunks
	Index   int // index into the hunk's lines
	Op      model.LineOp
	Text    string
	OldLine int
	NewLine int
	Label   model.LineLabel
	Staged  bool
}

// LogicBlock is a run of lines. Cosmetic blocks contain only cosmetic changes and
// are shown folded until expanded.
type LogicBlock struct {
	Cosmetic bool
	Lines    []LogicLine
}

// LogicHunk is the part of one hunk owned by the selected symbol.
type LogicHunk struct {
	Index   int
	Header  string
	Context string // names of the symbols the whole hunk touches, outermost first
	Blocks  []LogicBlock
}

// LogicView is the line diff of one symbol.
type LogicView struct {
	Path  string
	Node  Node
	Hunks []LogicHunk
}

// Lines flattens the view.
func (v *LogicView) Lines() []LogicLine {
	var out []LogicLine
	for _, h := range v.Hunks {
		for _, b := range h.Blocks {
			out = append(out, b.Lines...)
		}
	}
	return out
}

// Logic returns the hunks of a symbol restricted to the lines it owns on either
// side. Cosmetic runs are kept, grouped into foldable blocks.
func (e *Engine) Logic(path, key string) (*LogicView, error) {
	r, m, err := e.symbol(path, key)
	if err != nil {
		return nil, err
	}
	ov := e.overlay(r)
	view := &LogicView{Path: path, Node: e.node(r, m, ov, e.commentCounts(r))}

	owns := func(p hunkmap.Placement) bool {
		return (m.PreID != "" && p.PreID == m.PreID) || (m.PostID != "" && p.PostID == m.PostID)
	}
	for hi, h := range r.Diff.Hunks {
		var lines []LogicLine
		changed := false
		for li, l := range h.Lines {
			p := r.Attr.Placements[hi][li]
			if !owns(p) {
				continue
			}
			_, staged := ov.stagedSet[staging.Line{Hunk: hi, Line: li}]
			lines = append(lines, LogicLine{
				Hunk: hi, Index: li, Op: l.Op, Text: l.Text,
				OldLine: p.OldLine, NewLine: p.NewLine, Label: p.Label, Staged: staged,
			})
			if l.Op != model.OpContext {
				changed = true
			}
		}
		if !changed {
			continue
		}
		view.Hunks = append(view.Hunks, LogicHunk{
			Index:   hi,
			Header:  h.Header(),
			Context: touched(r, h),
			Blocks:  fold(lines),
		})
	}
	return view, nil
}

// touched names the symbols overlapping a hunk's post-version lines (pre-version
// for pure removals), like the function name git appends to hunk headers.
func touched(r *FileResult, h model.Hunk) string {
	idx, start, n := r.Post, h.NewStart, h.NewLen
	if n == 0 {
		idx, start, n = r.Pre, h.OldStart, h.OldLen
	}
	if n == 0 || idx == nil {
		return ""
	}
	var names []string
	for _, id := range idx.Overlapping(start, start+n-1) {
		if s, ok := idx.Get(id); ok {
			names = append(names, s.Name)
		}
	}
	return strings.Join(names, ", ")
}

// fold splits lines into blocks, separating runs of cosmetic changes.
func fold(lines []LogicLine) []LogicBlock {
	var blocks []LogicBlock
	for _, l := range lines {
		cosmetic := l.Label == model.LabelCosmetic
		if n := len(blocks); n > 0 && blocks[n-1].Cosmetic == cosmetic {
			blocks[n-1].Lines = append(blocks[n-1].Lines, l)
			continue
		}
		blocks = append(blocks, LogicBlock{Cosmetic: cosmetic, Lines: []LogicLine{l}})
	}
	return blocks
}

// HasFile implements zoom.Catalog.
func (e *Engine) HasFile(path string) bool {
	_, ok := e.byPath[path]
	return ok
}

// HasSymbol implements zoom.Catalog.
func (e *Engine) HasSymbol(path, key string) bool {
	_, _, err := e.symbol(path, key)
	return err == nil
}

// SymbolSpan implements zoom.Catalog.
func (e *Engine) SymbolSpan(path, key string) (model.LineRange, bool) {
	r, m, err := e.symbol(path, key)
	if err != nil {
		return model.LineRange{}, false
	}
	return e.node(r, m, emptyOverlay, nil).Span, true
}
