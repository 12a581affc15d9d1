// Package zoom implements the Galaxy → Structure → Logic navigation stack.
package zoom

import (
	"errors"
	"fmt"

	"github.com/sprite-ai/glim/internal/model"
)

var (
	// ErrNoDeeperView is returned by ZoomIn at the Logic level.
	ErrNoDeeperView = errors.New("no deeper view")
	// ErrAtRoot is returned by ZoomOut at the Galaxy level.
	ErrAtRoot = errors.New("already at root")
	// ErrInvalidSelection is returned when a selection is not a descendant of the current one.
	ErrInvalidSelection = errors.New("invalid selection")
)

// Catalog answers whether selections exist. The engine implements it.
type Catalog interface {
	HasFile(path string) bool
	HasSymbol(path, id string) bool
	// SymbolSpan returns the post-version line span of a symbol (pre-version for deleted symbols).
	SymbolSpan(path, id string) (model.LineRange, bool)
}

// Selection names what a stack entry is looking at. Which fields are set depends on the level.
type Selection struct {
	File   string
	Symbol string
	Lines  model.LineRange
}

// Entry is one frame of the navigation stack.
type Entry struct {
	Level     model.ZoomLevel
	Selection Selection
}

// Navigator is the navigation stack. The bottom entry is always the Galaxy root.
type Navigator struct {
	cat   Catalog
	stack []Entry
}

// New returns a navigator positioned at the Galaxy root.
func New(cat Catalog) *Navigator {
	return &Navigator{cat: cat, stack: []Entry{{Level: model.Galaxy}}}
}

// Reset swaps the catalog and returns to the root, as on reload.
func (n *Navigator) Reset(cat Catalog) {
	n.cat = cat
	n.stack = []Entry{{Level: model.Galaxy}}
}

// Current returns the top of the stack.
func (n *Navigator) Current() Entry {
	return n.stack[len(n.stack)-1]
}

// Level returns the current zoom level.
func (n *Navigator) Level() model.ZoomLevel {
	return n.Current().Level
}

// Stack returns a copy of the stack, root first.
func (n *Navigator) Stack() []Entry {
	return append([]Entry(nil), n.stack...)
}

// ZoomIn pushes one level deeper. From Galaxy the selection must name a file;
// from Structure it must name a symbol of the current file. A zero Lines range
// selects the whole symbol.
func (n *Navigator) ZoomIn(sel Selection) error {
	top := n.Current()
	next, err := n.child(top, sel)
	if err != nil {
		return err
	}
	n.stack = append(n.stack, next)
	return nil
}

// ZoomOut pops one level.
func (n *Navigator) ZoomOut() error {
	if len(n.stack) == 1 {
		return ErrAtRoot
	}
	n.stack = n.stack[:len(n.stack)-1]
	return nil
}

// Jump replaces the stack with the path from the root to the given level and
// selection. The whole path is validated first; on error the stack is unchanged.
func (n *Navigator) Jump(level model.ZoomLevel, sel Selection) error {
	stack := []Entry{{Level: model.Galaxy}}
	if level > model.Logic || level < model.Galaxy {
		return fmt.Errorf("%w: unknown level %d", ErrInvalidSelection, level)
	}
	if level >= model.Structure {
		e, err := n.child(stack[0], Selection{File: sel.File})
		if err != nil {
			return err
		}
		stack = append(stack, e)
	}
	if level == model.Logic {
		e, err := n.child(stack[1], sel)
		if err != nil {
			return err
		}
		stack = append(stack, e)
	}
	n.stack = stack
	return nil
}

// child validates sel as a descendant of parent and returns the new entry.
func (n *Navigator) child(parent Entry, sel Selection) (Entry, error) {
	switch parent.Level {
	case model.Galaxy:
		if sel.File == "" || !n.cat.HasFile(sel.File) {
			return Entry{}, fmt.Errorf("%w: no file %q", ErrInvalidSelection, sel.File)
		}
		return Entry{Level: model.Structure, Selection: Selection{File: sel.File}}, nil
	case model.Structure:
		file := parent.Selection.File
		if sel.File != "" && sel.File != file {
			return Entry{}, fmt.Errorf("%w: %s is not inside %s", ErrInvalidSelection, sel.File, file)
		}
		if sel.Symbol == "" || !n.cat.HasSymbol(file, sel.Symbol) {
			return Entry{}, fmt.Errorf("%w: no symbol %q in %s", ErrInvalidSelection, sel.Symbol, file)
		}
		span, _ := n.cat.SymbolSpan(file, sel.Symbol)
		lines := sel.Lines
		if lines.IsZero() {
			lines = span
		} else if !span.Contains(lines) {
			return Entry{}, fmt.Errorf("%w: lines %d-%d outside %s", ErrInvalidSelection, lines.Start, lines.End, sel.Symbol)
		}
		return Entry{Level: model.Logic, Selection: Selection{File: file, Symbol: sel.Symbol, Lines: lines}}, nil
	default:
		return Entry{}, ErrNoDeeperView
	}
}

// Valid reports whether every adjacent pair of entries is strictly finer and a
// descendant of the one below it.
func (n *Navigator) Valid() bool {
	if len(n.stack) == 0 || n.stack[0].Level != model.Galaxy {
		return false
	}
	for i := 1; i < len(n.stack); i++ {
		below, e := n.stack[i-1], n.stack[i]
		if e.Level != below.Level+1 {
			return false
		}
		switch e.Level {
		case model.Structure:
			if !n.cat.HasFile(e.Selection.File) {
				return false
			}
		case model.Logic:
			if e.Selection.File != below.Selection.File || !n.cat.HasSymbol(e.Selection.File, e.Selection.Symbol) {
				return false
			}
			span, _ := n.cat.SymbolSpan(e.Selection.File, e.Selection.Symbol)
			if !span.Contains(e.Selection.Lines) {
				return false
			}
		}
	}
	return true
}
