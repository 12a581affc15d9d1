package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/glim/internal/diff"
	"github.com/sprite-ai/glim/internal/engine"
	"github.com/sprite-ai/glim/internal/model"
)

// logicRow is a single row of Logic view output ready for display.
type logicRow struct {
	Header string // hunk header row when non-empty
	Line   *engine.LogicLine

	// Fold is the id of a cosmetic run; -1 when the row is not part of one.
	Fold   int
	Folded int // lines hidden behind this row, zero unless folded

	// Syntax highlighting tokens (nil = no highlighting)
	Tokens []diff.Token
}

func (r logicRow) isHunk() bool { return r.Header != "" }

// logicRows flattens a Logic view. Context lines further than ctxLines from a
// changed line of the same hunk are hidden, and cosmetic runs collapse to one
// row unless their id is expanded.
func logicRows(v *engine.LogicView, ctxLines int, expanded map[int]bool, hl *diff.Highlighter) []logicRow {
	var rows []logicRow
	fold := 0
	for _, h := range v.Hunks {
		header := h.Header
		if h.Context != "" {
			header += " " + h.Context
		}
		rows = append(rows, logicRow{Header: header, Fold: -1})

		var changed []int
		for _, b := range h.Blocks {
			for _, l := range b.Lines {
				if l.Op != model.OpContext {
					changed = append(changed, l.Index)
				}
			}
		}

		for _, b := range h.Blocks {
			if b.Cosmetic {
				id := fold
				fold++
				if !expanded[id] {
					rows = append(rows, logicRow{Fold: id, Folded: len(b.Lines)})
					continue
				}
				for i := range b.Lines {
					rows = append(rows, logicRow{Line: &b.Lines[i], Fold: id})
				}
				continue
			}
			for i := range b.Lines {
				l := &b.Lines[i]
				if l.Op == model.OpContext && !near(l.Index, changed, ctxLines) {
					continue
				}
				rows = append(rows, logicRow{Line: l, Fold: -1})
			}
		}
	}

	// Highlight all visible content lines at once
	var texts []string
	for _, r := range rows {
		if r.Line != nil {
			texts = append(texts, r.Line.Text)
		}
	}
	highlighted := hl.Lines(v.Path, texts)
	hlIdx := 0
	for i := range rows {
		if rows[i].Line == nil {
			continue
		}
		if hlIdx < len(highlighted) {
			rows[i].Tokens = highlighted[hlIdx].Tokens
			hlIdx++
		}
	}
	return rows
}

func near(idx int, changed []int, dist int) bool {
	for _, c := range changed {
		if d := idx - c; d <= dist && d >= -dist {
			return true
		}
	}
	return false
}

// renderHighlightedContent renders line content with syntax tokens and diff coloring.
func renderHighlightedContent(rl logicRow, prefix string) string {
	if len(rl.Tokens) == 0 {
		return prefix + rl.Line.Text
	}

	var b strings.Builder
	b.WriteString(prefix)

	for _, tok := range rl.Tokens {
		if tok.Color != "" {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(tok.Color)).Render(tok.Text))
		} else {
			b.WriteString(tok.Text)
		}
	}

	return b.String()
}

func stageMark(staged bool) string {
	if staged {
		return stagedMarkStyle.Render("●")
	}
	return " "
}

// styleLine applies styling to a Logic row for unified view.
func styleLine(rl logicRow, width int) string {
	if rl.isHunk() {
		return hunkHeaderStyle.Width(width).Render(rl.Header)
	}
	if rl.Line == nil {
		return foldStyle.Render(fmt.Sprintf("          ··· %d cosmetic lines (f to expand)", rl.Folded))
	}

	l := rl.Line
	oldNum, newNum := "    ", "    "
	if l.OldLine > 0 {
		oldNum = fmt.Sprintf("%4d", l.OldLine)
	}
	if l.NewLine > 0 {
		newNum = fmt.Sprintf("%4d", l.NewLine)
	}

	lineNums := lineNumberStyle.Render(oldNum) + " " + lineNumberStyle.Render(newNum)

	prefix := l.Op.Prefix()
	var style func(string) string

	switch {
	case l.Label == model.LabelCosmetic:
		style = func(s string) string { return cosmeticLineStyle.Render(s) }
	case l.Op == model.OpAdded:
		style = func(s string) string { return addedLineStyle.Render(s) }
	case l.Op == model.OpRemoved:
		style = func(s string) string { return deletedLineStyle.Render(s) }
	default:
		style = nil // context lines get syntax highlighting instead
	}

	var content string
	if style == nil {
		content = renderHighlightedContent(rl, prefix)
	} else {
		content = style(prefix + l.Text)
	}

	// Truncate long lines
	maxContent := width - 13
	if maxContent > 0 && lipgloss.Width(content) > maxContent {
		content = truncate(prefix+l.Text, maxContent)
		if style != nil {
			content = style(content)
		}
	}

	return lineNums + " " + stageMark(l.Staged) + content
}

// styleLineSplit renders a Logic row for split (side-by-side) view.
func styleLineSplit(rl logicRow, halfWidth int) (left, right string) {
	if rl.isHunk() {
		return hunkHeaderStyle.Width(halfWidth).Render(rl.Header), ""
	}
	if rl.Line == nil {
		return foldStyle.Render(fmt.Sprintf("··· %d cosmetic lines", rl.Folded)), ""
	}

	l := rl.Line
	maxContent := halfWidth - 8
	lineStyle := contextLineStyle
	switch {
	case l.Label == model.LabelCosmetic:
		lineStyle = cosmeticLineStyle
	case l.Op == model.OpAdded:
		lineStyle = addedLineStyle
	case l.Op == model.OpRemoved:
		lineStyle = deletedLineStyle
	}

	switch l.Op {
	case model.OpRemoved:
		num := fmt.Sprintf("%4d", l.OldLine)
		left = lineNumberStyle.Render(num) + " " + stageMark(l.Staged) + lineStyle.Render("-"+truncate(l.Text, maxContent))
		right = strings.Repeat(" ", halfWidth)
	case model.OpAdded:
		left = strings.Repeat(" ", halfWidth)
		num := fmt.Sprintf("%4d", l.NewLine)
		right = lineNumberStyle.Render(num) + " " + stageMark(l.Staged) + lineStyle.Render("+"+truncate(l.Text, maxContent))
	default:
		content := truncate(l.Text, maxContent)
		left = lineNumberStyle.Render(fmt.Sprintf("%4d", l.OldLine)) + "  " + lineStyle.Render(" "+content)
		right = lineNumberStyle.Render(fmt.Sprintf("%4d", l.NewLine)) + "  " + lineStyle.Render(" "+content)
	}

	return left, right
}

// heatBar draws heat relative to the hottest entry.
func heatBar(heat, hottest float64, width int) string {
	if hottest <= 0 || width <= 0 {
		return strings.Repeat(" ", max(width, 0))
	}
	n := min(int(heat/hottest*float64(width)), width)
	if heat > 0 && n == 0 {
		n = 1
	}
	return strings.Repeat("█", n) + strings.Repeat("░", width-n)
}

func stageBox(s model.StageState) string {
	switch s {
	case model.StageFull:
		return "[x]"
	case model.StagePartial:
		return "[~]"
	default:
		return "[ ]"
	}
}

func badge(comments int) string {
	if comments == 0 {
		return ""
	}
	return fmt.Sprintf(" ◆%d", comments)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) > max {
		return s[:max-1] + "…"
	}
	return s
}
