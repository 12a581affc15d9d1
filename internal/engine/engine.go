// Package engine aggregates per-file hunk, symbol, identity and noise analysis
// into the Galaxy, Structure and Logic views of a review session.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"runtime"
	"sort"

	"github.com/sprite-ai/glim/internal/identity"
	"github.com/sprite-ai/glim/internal/model"
)

var (
	ErrUnknownFile   = errors.New("unknown file")
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrPending is returned by views of a file whose analysis has not arrived yet.
	ErrPending = errors.New("analysis pending")
)

// Options are the engine's policy constants.
type Options struct {
	CosmeticDiscount float64
	Identity         identity.Options
	Workers          int
	Normalizer       string // "table" or "lexer"
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		CosmeticDiscount: 0.1,
		Identity:         identity.DefaultOptions(),
		Workers:          runtime.GOMAXPROCS(0),
		Normalizer:       "table",
	}
}

// Engine owns the results of one review session. It is not safe for concurrent
// use: workers hand results back through channels and the owning goroutine
// merges them.
type Engine struct {
	opts   Options
	parser Parser
	log    *slog.Logger

	gen     uint64
	files   []model.FileDiff
	byPath  map[string]int
	results map[string]*FileResult

	stage    StageReader
	overlays map[string]*overlay
	comments map[string][]model.Comment
}

// New creates an engine. parser may be nil, in which case files are analyzed
// with their own FileVersion.Symbols only.
func New(parser Parser, opts Options, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		opts:     opts,
		parser:   parser,
		log:      log,
		byPath:   map[string]int{},
		results:  map[string]*FileResult{},
		overlays: map[string]*overlay{},
		comments: map[string][]model.Comment{},
	}
}

// Options returns the engine's options.
func (e *Engine) Options() Options {
	return e.opts
}

// Load replaces the session's files and starts a new generation. Results of
// earlier generations are dropped by Merge.
func (e *Engine) Load(files []model.FileDiff) uint64 {
	e.gen++
	e.files = files
	e.byPath = make(map[string]int, len(files))
	for i, fd := range files {
		e.byPath[fd.Path] = i
	}
	e.results = make(map[string]*FileResult, len(files))
	e.overlays = make(map[string]*overlay)
	e.comments = make(map[string][]model.Comment)
	return e.gen
}

// Generation returns the current session generation.
func (e *Engine) Generation() uint64 {
	return e.gen
}

// Files returns the loaded diffs in load order.
func (e *Engine) Files() []model.FileDiff {
	return e.files
}

// File returns the diff of one file.
func (e *Engine) File(path string) (*model.FileDiff, bool) {
	i, ok := e.byPath[path]
	if !ok {
		return nil, false
	}
	return &e.files[i], true
}

// Start analyzes the loaded files on the worker pool. Feed every received result
// to Merge on the owning goroutine.
func (e *Engine) Start(ctx context.Context) <-chan *FileResult {
	files := append([]model.FileDiff(nil), e.files...)
	return Analyze(ctx, e.parser, e.opts, files, e.gen, e.log)
}

// Merge stores a worker result. It reports false, and drops the result, when the
// result belongs to an older generation.
func (e *Engine) Merge(r *FileResult) bool {
	if r == nil || r.Gen != e.gen {
		return false
	}
	if _, ok := e.byPath[r.Impact.Path]; !ok {
		return false
	}
	e.results[r.Impact.Path] = r
	delete(e.overlays, r.Impact.Path)
	return true
}

// Build loads files and analyzes them synchronously.
func (e *Engine) Build(ctx context.Context, files []model.FileDiff) error {
	e.Load(files)
	for r := range e.Start(ctx) {
		e.Merge(r)
	}
	return ctx.Err()
}

// Pending reports whether a file's analysis is still outstanding.
func (e *Engine) Pending(path string) bool {
	_, known := e.byPath[path]
	_, done := e.results[path]
	return known && !done
}

// Ready reports whether every file has been analyzed.
func (e *Engine) Ready() bool {
	return len(e.results) == len(e.files)
}

// Result returns the analysis of a file.
func (e *Engine) Result(path string) (*FileResult, error) {
	if _, ok := e.byPath[path]; !ok {
		return nil, ErrUnknownFile
	}
	r, ok := e.results[path]
	if !ok {
		return nil, ErrPending
	}
	return r, nil
}

// GalaxyEntry is one row of the Galaxy view.
type GalaxyEntry struct {
	Impact   model.FileImpact
	Pending  bool
	Comments int
}

// Galaxy returns every file ordered by churn descending, then path. Pending files
// follow the analyzed ones in path order.
func (e *Engine) Galaxy() []GalaxyEntry {
	out := make([]GalaxyEntry, 0, len(e.files))
	for _, fd := range e.files {
		g := GalaxyEntry{Comments: len(e.comments[fd.Path])}
		r, ok := e.results[fd.Path]
		if !ok {
			g.Pending = true
			g.Impact = model.FileImpact{Path: fd.Path}
			g.Impact.Added, g.Impact.Removed = fd.Counts()
		} else {
			g.Impact = r.Impact
			ov := e.overlay(r)
			g.Impact.StagedAdded, g.Impact.StagedRemoved = ov.added, ov.removed
		}
		out = append(out, g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Pending != b.Pending {
			return !a.Pending
		}
		if a.Impact.ChurnScore != b.Impact.ChurnScore {
			return a.Impact.ChurnScore > b.Impact.ChurnScore
		}
		return a.Impact.Path < b.Impact.Path
	})
	return out
}

// DirHeat is the churn rollup of one directory.
type DirHeat struct {
	Dir   string
	Heat  float64
	Files int
}

// Directories rolls analyzed file churn up to each file's directory, ordered by
// heat descending, then name.
func (e *Engine) Directories() []DirHeat {
	byDir := map[string]*DirHeat{}
	for _, fd := range e.files {
		dir := path.Dir(fd.Path)
		d, ok := byDir[dir]
		if !ok {
			d = &DirHeat{Dir: dir}
			byDir[dir] = d
		}
		d.Files++
	}
	// Sum in load order so float addition is reproducible.
	for _, fd := range e.files {
		if r, ok := e.results[fd.Path]; ok {
			byDir[path.Dir(fd.Path)].Heat += r.Impact.ChurnScore
		}
	}
	out := make([]DirHeat, 0, len(byDir))
	for _, d := range byDir {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Heat != out[j].Heat {
			return out[i].Heat > out[j].Heat
		}
		return out[i].Dir < out[j].Dir
	})
	return out
}

// Stats returns file, added and removed totals for the session.
func (e *Engine) Stats() (files, added, removed int) {
	for _, fd := range e.files {
		a, r := fd.Counts()
		added += a
		removed += r
	}
	return len(e.files), added, removed
}
