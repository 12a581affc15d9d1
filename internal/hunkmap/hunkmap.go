// Package hunkmap attributes diff lines to the symbols that own them.
package hunkmap

import (
	"github.com/sprite-ai/glim/internal/model"
	"github.com/sprite-ai/glim/internal/symbols"
)

// Placement records where one hunk line lives in both versions and which symbol
// owns it on each side. Old/New are 0 when the line has no position on that side.
type Placement struct {
	OldLine int
	NewLine int
	PreID   string // owner in the pre version; empty for added lines
	PostID  string // owner in the post version; empty for removed lines
	Label   model.LineLabel
}

// Result is the attribution of a file's hunks.
type Result struct {
	Pre        map[string]*model.SymbolAttribution
	Post       map[string]*model.SymbolAttribution
	Placements [][]Placement // indexed like hunks[i].Lines[j]
}

// PreAttribution returns the attribution of a pre-version symbol (zero when untouched).
func (r *Result) PreAttribution(id string) model.SymbolAttribution {
	if a, ok := r.Pre[id]; ok {
		return *a
	}
	return model.SymbolAttribution{SymbolID: id}
}

// PostAttribution returns the attribution of a post-version symbol (zero when untouched).
func (r *Result) PostAttribution(id string) model.SymbolAttribution {
	if a, ok := r.Post[id]; ok {
		return *a
	}
	return model.SymbolAttribution{SymbolID: id}
}

// Totals sums added, removed and cosmetic lines over both sides.
func (r *Result) Totals() (added, removed, cosmetic int) {
	for _, a := range r.Pre {
		removed += a.RemovedLines
		cosmetic += a.CosmeticLines
	}
	for _, a := range r.Post {
		added += a.AddedLines
		cosmetic += a.CosmeticLines
	}
	return
}

// Attribute walks every hunk line and assigns each removed line to the innermost
// pre-version symbol containing its old line number and each added line to the
// innermost post-version symbol containing its new line number. Lines outside
// every symbol go to model.FileLevelID. labels may be nil; when present it must be
// indexed like hunks and marks which changed lines count as cosmetic.
func Attribute(hunks []model.Hunk, pre, post *symbols.Index, labels [][]model.LineLabel) *Result {
	if pre == nil {
		pre = symbols.Empty
	}
	if post == nil {
		post = symbols.Empty
	}
	res := &Result{
		Pre:        make(map[string]*model.SymbolAttribution),
		Post:       make(map[string]*model.SymbolAttribution),
		Placements: make([][]Placement, len(hunks)),
	}

	for hi, h := range hunks {
		oldLine, newLine := h.OldStart, h.NewStart
		// Unified diff positions for empty sides name the line before the hunk.
		if h.OldLen == 0 {
			oldLine++
		}
		if h.NewLen == 0 {
			newLine++
		}

		placements := make([]Placement, len(h.Lines))
		for li, l := range h.Lines {
			label := model.LabelContext
			if labels != nil && hi < len(labels) && li < len(labels[hi]) {
				label = labels[hi][li]
			}
			if label == model.LabelContext && l.Op != model.OpContext {
				label = model.LabelSemantic
			}
			p := Placement{Label: label}

			switch l.Op {
			case model.OpContext:
				p.OldLine, p.NewLine = oldLine, newLine
				p.PreID, p.PostID = pre.Lookup(oldLine), post.Lookup(newLine)
				oldLine++
				newLine++
			case model.OpRemoved:
				p.OldLine = oldLine
				p.PreID = pre.Lookup(oldLine)
				a := entry(res.Pre, p.PreID)
				a.RemovedLines++
				if label == model.LabelCosmetic {
					a.CosmeticLines++
				}
				oldLine++
			case model.OpAdded:
				p.NewLine = newLine
				p.PostID = post.Lookup(newLine)
				a := entry(res.Post, p.PostID)
				a.AddedLines++
				if label == model.LabelCosmetic {
					a.CosmeticLines++
				}
				newLine++
			}
			placements[li] = p
		}
		res.Placements[hi] = placements
	}

	return res
}

func entry(m map[string]*model.SymbolAttribution, id string) *model.SymbolAttribution {
	a, ok := m[id]
	if !ok {
		a = &model.SymbolAttribution{SymbolID: id}
		m[id] = a
	}
	return a
}

// SymbolOf resolves a post-version line to its owning symbol, for anchoring review
// comments. Lines inside a hunk use the hunk's placement; other lines fall back to
// the post index.
func (r *Result) SymbolOf(post *symbols.Index, line int) string {
	for _, hp := range r.Placements {
		for _, p := range hp {
			if p.NewLine == line && p.PostID != "" {
				return p.PostID
			}
		}
	}
	if post == nil {
		return model.FileLevelID
	}
	return post.Lookup(line)
}
