// Package noise separates semantic changes from cosmetic ones (whitespace,
// comments, reformatting) by comparing layout-independent token streams.
package noise

import (
	"github.com/sprite-ai/glim/internal/model"
)

// Classify labels every line of a hunk. Context lines get model.LabelContext.
//
// Changed lines are grouped into change blocks (maximal runs of non-context lines).
// A block whose removed and added sides normalize to the same token stream is
// entirely cosmetic; otherwise the i-th removed line is paired with the i-th added
// line and each pair is cosmetic when its token streams match. Unpaired lines are
// semantic.
func Classify(h model.Hunk, n Normalizer) []model.LineLabel {
	labels := make([]model.LineLabel, len(h.Lines))
	for i := 0; i < len(h.Lines); {
		if h.Lines[i].Op == model.OpContext {
			labels[i] = model.LabelContext
			i++
			continue
		}
		j := i
		for j < len(h.Lines) && h.Lines[j].Op != model.OpContext {
			j++
		}
		classifyBlock(h.Lines[i:j], labels[i:j], n)
		i = j
	}
	return labels
}

func classifyBlock(lines []model.LineEdit, labels []model.LineLabel, n Normalizer) {
	var removed, added []int
	for i, l := range lines {
		labels[i] = model.LabelSemantic
		if l.Op == model.OpRemoved {
			removed = append(removed, i)
		} else {
			added = append(added, i)
		}
	}
	if len(removed) == 0 || len(added) == 0 {
		return
	}

	oldToks := make([][]string, len(removed))
	newToks := make([][]string, len(added))
	var oldAll, newAll []string
	for k, i := range removed {
		oldToks[k] = n.Normalize(lines[i].Text)
		oldAll = append(oldAll, oldToks[k]...)
	}
	for k, i := range added {
		newToks[k] = n.Normalize(lines[i].Text)
		newAll = append(newAll, newToks[k]...)
	}

	if Equal(oldAll, newAll) {
		for i := range labels {
			labels[i] = model.LabelCosmetic
		}
		return
	}

	pairs := min(len(removed), len(added))
	for k := 0; k < pairs; k++ {
		if Equal(oldToks[k], newToks[k]) {
			labels[removed[k]] = model.LabelCosmetic
			labels[added[k]] = model.LabelCosmetic
		}
	}
}

// ClassifyAll labels every hunk of a file.
func ClassifyAll(hunks []model.Hunk, n Normalizer) [][]model.LineLabel {
	out := make([][]model.LineLabel, len(hunks))
	for i, h := range hunks {
		out[i] = Classify(h, n)
	}
	return out
}

// CosmeticOnly reports whether every changed line is cosmetic. A file without
// changed lines is not cosmetic-only.
func CosmeticOnly(labels [][]model.LineLabel) bool {
	changed := false
	for _, hl := range labels {
		for _, l := range hl {
			switch l {
			case model.LabelSemantic:
				return false
			case model.LabelCosmetic:
				changed = true
			}
		}
	}
	return changed
}
