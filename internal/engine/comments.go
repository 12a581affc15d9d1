package engine

import (
	"fmt"
	"sort"

	"github.com/sprite-ai/glim/internal/model"
)

// SetComments replaces the review comments of the session. Comments on files not
// in the session are kept but never shown.
func (e *Engine) SetComments(comments []model.Comment) {
	e.comments = make(map[string][]model.Comment)
	for _, c := range comments {
		e.comments[c.Path] = append(e.comments[c.Path], c)
	}
	for _, cs := range e.comments {
		sort.SliceStable(cs, func(i, j int) bool { return cs[i].Line < cs[j].Line })
	}
}

// Comments returns the comments on a file ordered by line.
func (e *Engine) Comments(path string) []model.Comment {
	return e.comments[path]
}

// Anchor resolves a comment to the Structure symbol that owns its line. Lines
// outside every symbol anchor to the file-level pseudo-symbol.
func (e *Engine) Anchor(c model.Comment) (string, error) {
	r, err := e.Result(c.Path)
	if err != nil {
		return "", err
	}
	if r.Impact.Err != nil {
		return "", fmt.Errorf("%s: %w", c.Path, r.Impact.Err)
	}
	return anchorKey(r, c.Line), nil
}

func anchorKey(r *FileResult, line int) string {
	id := r.Attr.SymbolOf(r.Post, line)
	if key, ok := r.postKey[id]; ok {
		return key
	}
	return model.SymbolMatch{PostID: id}.Key()
}

// commentCounts counts comments per match key.
func (e *Engine) commentCounts(r *FileResult) map[string]int {
	cs := e.comments[r.Impact.Path]
	if len(cs) == 0 {
		return nil
	}
	out := make(map[string]int)
	for _, c := range cs {
		out[anchorKey(r, c.Line)]++
	}
	return out
}
