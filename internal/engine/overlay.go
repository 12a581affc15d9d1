package engine

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/sprite-ai/glim/internal/model"
	"github.com/sprite-ai/glim/internal/staging"
)

// StageReader is the engine's read-only view of the staged set.
type StageReader interface {
	Version(path string) uint64
	Snapshot(path string) map[staging.Line]struct{}
}

// StagedCounts are the staged changed lines of one symbol.
type StagedCounts struct {
	Added   int
	Removed int
}

// overlay is the staging view of one file, valid for one stage version.
type overlay struct {
	version   uint64
	added     int
	removed   int
	bySymbol  map[string]StagedCounts // keyed by match key
	stagedSet map[staging.Line]struct{}
}

// SetStaging attaches the staged set the views report against.
func (e *Engine) SetStaging(s StageReader) {
	e.stage = s
	e.overlays = make(map[string]*overlay)
}

var emptyOverlay = &overlay{}

// overlay returns the cached staging overlay of a file, building it when the
// file's stage version has moved on.
func (e *Engine) overlay(r *FileResult) *overlay {
	if e.stage == nil {
		return emptyOverlay
	}
	v := e.stage.Version(r.Impact.Path)
	if ov, ok := e.overlays[r.Impact.Path]; ok && ov.version == v {
		return ov
	}
	ov := buildOverlay(r, v, e.stage.Snapshot(r.Impact.Path))
	e.overlays[r.Impact.Path] = ov
	return ov
}

// buildOverlay counts staged lines per symbol. Identity is untouched: staged lines
// are attributed through the placements computed from the full diff.
func buildOverlay(r *FileResult, version uint64, set map[staging.Line]struct{}) *overlay {
	ov := &overlay{version: version, bySymbol: map[string]StagedCounts{}, stagedSet: set}
	hunks := r.Diff.Hunks
	for l := range set {
		if l.Hunk < 0 || l.Hunk >= len(hunks) || l.Line < 0 || l.Line >= len(hunks[l.Hunk].Lines) {
			continue
		}
		p := r.Attr.Placements[l.Hunk][l.Line]
		switch hunks[l.Hunk].Lines[l.Line].Op {
		case model.OpAdded:
			ov.added++
			if key, ok := r.postKey[p.PostID]; ok {
				c := ov.bySymbol[key]
				c.Added++
				ov.bySymbol[key] = c
			}
		case model.OpRemoved:
			ov.removed++
			if key, ok := r.preKey[p.PreID]; ok {
				c := ov.bySymbol[key]
				c.Removed++
				ov.bySymbol[key] = c
			}
		}
	}
	return ov
}

// Recompute rebuilds the staging overlays of the given files whose stage version
// changed, on the worker pool, and returns once all are merged. Files with a
// current overlay are reused untouched. It returns the rebuilt paths in order.
func (e *Engine) Recompute(ctx context.Context, paths []string) ([]string, error) {
	if e.stage == nil {
		return nil, nil
	}
	type job struct {
		r       *FileResult
		version uint64
		set     map[staging.Line]struct{}
	}
	var jobs []job
	for _, p := range paths {
		r, ok := e.results[p]
		if !ok {
			continue
		}
		v := e.stage.Version(p)
		if ov, ok := e.overlays[p]; ok && ov.version == v {
			continue
		}
		// Snapshots are taken here, on the owning goroutine.
		jobs = append(jobs, job{r: r, version: v, set: e.stage.Snapshot(p)})
	}

	built := make([]*overlay, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.opts.Workers))
	for i, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			built[i] = buildOverlay(j.r, j.version, j.set)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rebuilt := make([]string, 0, len(jobs))
	for i, j := range jobs {
		e.overlays[j.r.Impact.Path] = built[i]
		rebuilt = append(rebuilt, j.r.Impact.Path)
	}
	sort.Strings(rebuilt)
	return rebuilt, nil
}

// SymbolLines returns every changed line owned by a symbol, for staging it whole.
func (e *Engine) SymbolLines(path, key string) ([]staging.Line, error) {
	r, m, err := e.symbol(path, key)
	if err != nil {
		return nil, err
	}
	var out []staging.Line
	for hi, hp := range r.Attr.Placements {
		for li, p := range hp {
			switch r.Diff.Hunks[hi].Lines[li].Op {
			case model.OpAdded:
				if m.PostID != "" && p.PostID == m.PostID {
					out = append(out, staging.Line{Hunk: hi, Line: li})
				}
			case model.OpRemoved:
				if m.PreID != "" && p.PreID == m.PreID {
					out = append(out, staging.Line{Hunk: hi, Line: li})
				}
			}
		}
	}
	return out, nil
}
