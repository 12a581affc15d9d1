// Package identity matches symbols across the pre and post versions of a file.
package identity

import (
	"sort"

	"github.com/sprite-ai/glim/internal/hunkmap"
	"github.com/sprite-ai/glim/internal/model"
	"github.com/sprite-ai/glim/internal/symbols"
)

// Options tune move/rename detection.
type Options struct {
	// Threshold is the minimum pairing score for an inexact match.
	Threshold float64
	// NameWeight is the share of name similarity in the score; the body gets the rest.
	NameWeight float64
	// MaxBodyTokens caps the tokens compared per symbol body (0 = unlimited).
	MaxBodyTokens int
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{Threshold: 0.6, NameWeight: 0.25, MaxBodyTokens: 4000}
}

// Side is one version of a file: its symbol index and source lines.
type Side struct {
	Index *symbols.Index
	Lines []string
}

func (s Side) index() *symbols.Index {
	if s.Index == nil {
		return symbols.Empty
	}
	return s.Index
}

type candidate struct {
	pre, post int // positions in the unmatched slices
	score     float64
}

// Match pairs pre-version symbols with post-version symbols. The result is a
// partial bijection ordered by source position; every symbol appears exactly once.
//
// Symbols are first paired by equal kind, name and parent context, in source
// order. The remainder is scored pairwise by body-token and name similarity and
// paired greedily from the highest score down while the score reaches
// opts.Threshold. Equal scores resolve to the pair earliest in file order.
func Match(pre, post Side, attr *hunkmap.Result, opts Options) []model.SymbolMatch {
	preIdx, postIdx := pre.index(), post.index()
	if attr == nil {
		attr = &hunkmap.Result{}
	}

	type key struct {
		kind   model.SymbolKind
		name   string
		parent string
	}
	queues := make(map[key][]string)
	for _, r := range preIdx.Ranges() {
		k := key{r.Kind, r.Name, preIdx.ParentContext(r.ID)}
		queues[k] = append(queues[k], r.ID)
	}

	var matches []model.SymbolMatch
	paired := make(map[string]bool)
	var unmatchedPost []model.SymbolRange
	for _, r := range postIdx.Ranges() {
		k := key{r.Kind, r.Name, postIdx.ParentContext(r.ID)}
		if q := queues[k]; len(q) > 0 {
			queues[k] = q[1:]
			paired[q[0]] = true
			matches = append(matches, classify(q[0], r.ID, 1, preIdx, postIdx, attr))
			continue
		}
		unmatchedPost = append(unmatchedPost, r)
	}
	var unmatchedPre []model.SymbolRange
	for _, r := range preIdx.Ranges() {
		if !paired[r.ID] {
			unmatchedPre = append(unmatchedPre, r)
		}
	}

	cands := score(pre, post, unmatchedPre, unmatchedPost, opts)
	usedPre := make([]bool, len(unmatchedPre))
	usedPost := make([]bool, len(unmatchedPost))
	for _, c := range cands {
		if usedPre[c.pre] || usedPost[c.post] {
			continue
		}
		usedPre[c.pre], usedPost[c.post] = true, true
		matches = append(matches, classify(unmatchedPre[c.pre].ID, unmatchedPost[c.post].ID, c.score, preIdx, postIdx, attr))
	}
	for i, r := range unmatchedPre {
		if !usedPre[i] {
			matches = append(matches, model.SymbolMatch{PreID: r.ID, Relation: model.RelationDeleted, Confidence: 1})
		}
	}
	for j, r := range unmatchedPost {
		if !usedPost[j] {
			matches = append(matches, model.SymbolMatch{PostID: r.ID, Relation: model.RelationAdded, Confidence: 1})
		}
	}

	if attr.PreAttribution(model.FileLevelID).Changed()+attr.PostAttribution(model.FileLevelID).Changed() > 0 {
		matches = append(matches, model.SymbolMatch{
			PreID:      model.FileLevelID,
			PostID:     model.FileLevelID,
			Relation:   model.RelationModified,
			Confidence: 1,
		})
	}

	SortMatches(matches, preIdx, postIdx)
	return matches
}

// score computes every inexact candidate pair at or above the threshold, sorted
// by descending score with file-order tie-breaks.
func score(pre, post Side, unPre, unPost []model.SymbolRange, opts Options) []candidate {
	if len(unPre) == 0 || len(unPost) == 0 {
		return nil
	}
	preToks := make([][]string, len(unPre))
	for i, r := range unPre {
		preToks[i] = bodyTokens(pre.Lines, r, opts.MaxBodyTokens)
	}
	postToks := make([][]string, len(unPost))
	for j, r := range unPost {
		postToks[j] = bodyTokens(post.Lines, r, opts.MaxBodyTokens)
	}

	bodyWeight := 1 - opts.NameWeight
	var cands []candidate
	for i, a := range unPre {
		for j, b := range unPost {
			if a.Kind != b.Kind {
				continue
			}
			// Length ratio bounds body similarity from above; skip hopeless pairs.
			la, lb := len(preToks[i]), len(postToks[j])
			if la > 0 || lb > 0 {
				bound := bodyWeight*float64(min(la, lb))/float64(max(la, lb)) + opts.NameWeight
				if bound < opts.Threshold {
					continue
				}
			}
			s := bodyWeight*tokenSimilarity(preToks[i], postToks[j]) + opts.NameWeight*nameSimilarity(a.Name, b.Name)
			if s >= opts.Threshold {
				cands = append(cands, candidate{pre: i, post: j, score: s})
			}
		}
	}

	sort.SliceStable(cands, func(x, y int) bool {
		cx, cy := cands[x], cands[y]
		if cx.score != cy.score {
			return cx.score > cy.score
		}
		if unPre[cx.pre].Start != unPre[cy.pre].Start {
			return unPre[cx.pre].Start < unPre[cy.pre].Start
		}
		return unPost[cx.post].Start < unPost[cy.post].Start
	})
	return cands
}

// classify assigns the relation of a matched pair from its attribution and context.
func classify(preID, postID string, confidence float64, pre, post *symbols.Index, attr *hunkmap.Result) model.SymbolMatch {
	m := model.SymbolMatch{PreID: preID, PostID: postID, Confidence: confidence}
	a, _ := pre.Get(preID)
	b, _ := post.Get(postID)
	changed := attr.PreAttribution(preID).Changed() + attr.PostAttribution(postID).Changed()
	switch {
	case changed == 0:
		m.Relation = model.RelationUnchanged
	case pre.ParentContext(preID) != post.ParentContext(postID):
		m.Relation = model.RelationMoved
	case a.Name != b.Name:
		m.Relation = model.RelationRenamed
	default:
		m.Relation = model.RelationModified
	}
	return m
}

// SortMatches orders matches by source position: post-version start when the
// symbol survives, pre-version start otherwise. The file-level pseudo-symbol
// sorts first.
func SortMatches(matches []model.SymbolMatch, pre, post *symbols.Index) {
	pos := func(m model.SymbolMatch) (int, int) {
		if m.PostID == model.FileLevelID || m.PreID == model.FileLevelID {
			return 0, 0
		}
		if r, ok := post.Get(m.PostID); ok {
			return r.Start, 0
		}
		r, _ := pre.Get(m.PreID)
		return r.Start, 1
	}
	sort.SliceStable(matches, func(i, j int) bool {
		pi, si := pos(matches[i])
		pj, sj := pos(matches[j])
		if pi != pj {
			return pi < pj
		}
		if si != sj {
			return si < sj
		}
		return matches[i].Key() < matches[j].Key()
	})
}

// Unchanged pairs every symbol of a version with itself, for files whose content
// did not change (a pure rename).
func Unchanged(idx *symbols.Index) []model.SymbolMatch {
	if idx == nil {
		return nil
	}
	matches := make([]model.SymbolMatch, 0, idx.Len())
	for _, r := range idx.Ranges() {
		matches = append(matches, model.SymbolMatch{PreID: r.ID, PostID: r.ID, Relation: model.RelationUnchanged, Confidence: 1})
	}
	return matches
}
