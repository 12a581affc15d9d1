// Package symbols wraps a file version's symbol ranges into a queryable index.
package symbols

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sprite-ai/glim/internal/model"
)

// ErrMalformedSymbolIndex is returned when symbol ranges overlap without nesting,
// are inverted, or reference unknown parents.
var ErrMalformedSymbolIndex = errors.New("malformed symbol index")

// Index is an immutable, position-ordered view over a version's symbols.
type Index struct {
	ranges []model.SymbolRange // sorted by Start asc, End desc
	parent []int               // structural parent position, -1 for top level
	byID   map[string]int
}

// Empty is an index with no symbols; every line resolves to the file-level pseudo-symbol.
var Empty = &Index{byID: map[string]int{}}

// New validates ranges and builds an index. Ranges may arrive in any order.
func New(ranges []model.SymbolRange) (*Index, error) {
	idx := &Index{
		ranges: make([]model.SymbolRange, len(ranges)),
		parent: make([]int, len(ranges)),
		byID:   make(map[string]int, len(ranges)),
	}
	copy(idx.ranges, ranges)
	sort.SliceStable(idx.ranges, func(i, j int) bool {
		a, b := idx.ranges[i], idx.ranges[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End > b.End
	})

	var stack []int
	for i, r := range idx.ranges {
		if r.ID == "" || r.ID == model.FileLevelID {
			return nil, fmt.Errorf("%w: symbol %q has reserved or empty id", ErrMalformedSymbolIndex, r.Name)
		}
		if r.Start < 1 || r.End < r.Start {
			return nil, fmt.Errorf("%w: symbol %s has invalid range %d-%d", ErrMalformedSymbolIndex, r.ID, r.Start, r.End)
		}
		if _, dup := idx.byID[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate symbol id %s", ErrMalformedSymbolIndex, r.ID)
		}
		idx.byID[r.ID] = i

		for len(stack) > 0 && idx.ranges[stack[len(stack)-1]].End < r.Start {
			stack = stack[:len(stack)-1]
		}
		idx.parent[i] = -1
		if len(stack) > 0 {
			top := idx.ranges[stack[len(stack)-1]]
			if top.End < r.End {
				return nil, fmt.Errorf("%w: %s (%d-%d) overlaps %s (%d-%d)",
					ErrMalformedSymbolIndex, r.ID, r.Start, r.End, top.ID, top.Start, top.End)
			}
			idx.parent[i] = stack[len(stack)-1]
		}
		stack = append(stack, i)
	}

	// Declared parents must agree with containment.
	for i, r := range idx.ranges {
		if r.Parent == "" {
			continue
		}
		p, ok := idx.byID[r.Parent]
		if !ok {
			return nil, fmt.Errorf("%w: %s names unknown parent %s", ErrMalformedSymbolIndex, r.ID, r.Parent)
		}
		if !idx.isAncestor(p, i) {
			return nil, fmt.Errorf("%w: %s is not contained in declared parent %s", ErrMalformedSymbolIndex, r.ID, r.Parent)
		}
	}

	return idx, nil
}

func (x *Index) isAncestor(anc, i int) bool {
	for p := x.parent[i]; p >= 0; p = x.parent[p] {
		if p == anc {
			return true
		}
	}
	return false
}

// Len returns the number of symbols.
func (x *Index) Len() int {
	return len(x.ranges)
}

// Ranges returns the symbols ordered by source position.
func (x *Index) Ranges() []model.SymbolRange {
	return x.ranges
}

// Get returns the symbol with the given id.
func (x *Index) Get(id string) (model.SymbolRange, bool) {
	i, ok := x.byID[id]
	if !ok {
		return model.SymbolRange{}, false
	}
	return x.ranges[i], true
}

// Position returns the source-order position of a symbol, or -1.
func (x *Index) Position(id string) int {
	if i, ok := x.byID[id]; ok {
		return i
	}
	return -1
}

// Parent returns the structural parent of a symbol.
func (x *Index) Parent(id string) (model.SymbolRange, bool) {
	i, ok := x.byID[id]
	if !ok || x.parent[i] < 0 {
		return model.SymbolRange{}, false
	}
	return x.ranges[x.parent[i]], true
}

// Depth returns the nesting depth of a symbol; top-level symbols have depth 0.
func (x *Index) Depth(id string) int {
	i, ok := x.byID[id]
	if !ok {
		return 0
	}
	d := 0
	for p := x.parent[i]; p >= 0; p = x.parent[p] {
		d++
	}
	return d
}

// Lookup returns the id of the innermost symbol containing line, or
// model.FileLevelID when the line lies outside every symbol.
func (x *Index) Lookup(line int) string {
	// last range starting at or before line
	i := sort.Search(len(x.ranges), func(i int) bool { return x.ranges[i].Start > line }) - 1
	for i >= 0 {
		if x.ranges[i].End >= line {
			return x.ranges[i].ID
		}
		i = x.parent[i]
	}
	return model.FileLevelID
}

// Overlapping returns the ids of symbols whose range intersects [start, end], in
// source order. Symbols starting before start overlap only if they contain it,
// so they are the ancestors of the innermost symbol at start; the rest start
// inside the range and form one contiguous run.
func (x *Index) Overlapping(start, end int) []string {
	if end < start {
		return nil
	}
	lo := sort.Search(len(x.ranges), func(i int) bool { return x.ranges[i].Start >= start })
	hi := sort.Search(len(x.ranges), func(i int) bool { return x.ranges[i].Start > end })

	var enclosing []string
	for i := lo - 1; i >= 0; {
		if x.ranges[i].End >= start {
			enclosing = append(enclosing, x.ranges[i].ID)
		}
		i = x.parent[i]
	}
	ids := make([]string, 0, len(enclosing)+hi-lo)
	for i := len(enclosing) - 1; i >= 0; i-- {
		ids = append(ids, enclosing[i])
	}
	for i := lo; i < hi; i++ {
		ids = append(ids, x.ranges[i].ID)
	}
	return ids
}

// QualifiedName returns the kind/name path from the outermost ancestor to the symbol,
// e.g. "type:Server/function:Start". It identifies a symbol's nesting context across versions.
func (x *Index) QualifiedName(id string) string {
	i, ok := x.byID[id]
	if !ok {
		return ""
	}
	var parts []string
	for ; i >= 0; i = x.parent[i] {
		r := x.ranges[i]
		parts = append(parts, r.Kind.String()+":"+r.Name)
	}
	for l, r := 0, len(parts)-1; l < r; l, r = l+1, r-1 {
		parts[l], parts[r] = parts[r], parts[l]
	}
	return strings.Join(parts, "/")
}

// ParentContext returns the qualified name of a symbol's parent, or "" at top level.
func (x *Index) ParentContext(id string) string {
	p, ok := x.Parent(id)
	if !ok {
		return ""
	}
	return x.QualifiedName(p.ID)
}
