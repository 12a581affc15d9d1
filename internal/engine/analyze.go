package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sprite-ai/glim/internal/hunkmap"
	"github.com/sprite-ai/glim/internal/identity"
	"github.com/sprite-ai/glim/internal/model"
	"github.com/sprite-ai/glim/internal/noise"
	"github.com/sprite-ai/glim/internal/parse"
	"github.com/sprite-ai/glim/internal/symbols"
)

// Parser is the parsing collaborator.
type Parser interface {
	Symbols(ctx context.Context, lang string, src []byte) ([]model.SymbolRange, error)
}

// FileResult is the immutable analysis of one file. Workers produce it; only the
// coordinating goroutine stores it.
type FileResult struct {
	Gen    uint64
	Diff   *model.FileDiff
	Pre    *symbols.Index
	Post   *symbols.Index
	Labels [][]model.LineLabel
	Attr   *hunkmap.Result
	Impact model.FileImpact

	preKey  map[string]string // pre symbol id -> match key
	postKey map[string]string // post symbol id -> match key
}

// Match returns the symbol match with the given key.
func (r *FileResult) Match(key string) (model.SymbolMatch, bool) {
	for _, m := range r.Impact.SymbolMatches {
		if m.Key() == key {
			return m, true
		}
	}
	// The file level always exists, changed or not, so comments on it have a node.
	if key == fileLevel.Key() {
		return fileLevel, true
	}
	return model.SymbolMatch{}, false
}

// fileLevel is the match of a file-level pseudo-symbol without changes.
var fileLevel = model.SymbolMatch{
	PreID:      model.FileLevelID,
	PostID:     model.FileLevelID,
	Relation:   model.RelationUnchanged,
	Confidence: 1,
}

// Analyze runs AnalyzeFile for every file on a pool of opts.Workers goroutines and
// streams the results, tagged with gen, in completion order. The channel is closed
// when every file is done or ctx is cancelled.
func Analyze(ctx context.Context, p Parser, opts Options, files []model.FileDiff, gen uint64, log *slog.Logger) <-chan *FileResult {
	if log == nil {
		log = slog.Default()
	}
	out := make(chan *FileResult, len(files))
	go func() {
		defer close(out)
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(max(1, opts.Workers))
		for i := range files {
			fd := &files[i]
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				r := AnalyzeFile(ctx, p, opts, fd, log)
				r.Gen = gen
				out <- r
				return nil
			})
		}
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("analysis stopped", "gen", gen, "err", err)
		}
	}()
	return out
}

// AnalyzeFile indexes both versions, classifies noise, attributes lines to symbols,
// matches identities and scores churn. It never fails: problems are recorded on
// Impact.Err and degrade the file to line-only churn.
func AnalyzeFile(ctx context.Context, p Parser, opts Options, fd *model.FileDiff, log *slog.Logger) *FileResult {
	if log == nil {
		log = slog.Default()
	}
	r := &FileResult{Diff: fd, Pre: symbols.Empty, Post: symbols.Empty}
	r.Impact.Path = fd.Path
	r.Impact.Added, r.Impact.Removed = fd.Counts()

	var indexErr error
	if !fd.IsBinary {
		pre, err := buildIndex(ctx, p, fd.Language, fd.Pre)
		if err != nil {
			indexErr = fmt.Errorf("pre version: %w", err)
		}
		post, err := buildIndex(ctx, p, fd.Language, fd.Post)
		if err != nil && indexErr == nil {
			indexErr = fmt.Errorf("post version: %w", err)
		}
		if indexErr == nil {
			r.Pre, r.Post = pre, post
		} else {
			log.Warn("symbol index unavailable, using line-only churn", "path", fd.Path, "err", indexErr)
		}
	}

	r.Labels = noise.ClassifyAll(fd.Hunks, noise.ForPath(opts.Normalizer, fd.Path))
	r.Attr = hunkmap.Attribute(fd.Hunks, r.Pre, r.Post, r.Labels)
	r.Impact.HasCosmeticOnly = noise.CosmeticOnly(r.Labels)
	r.Impact.ChurnScore = churn(r.Attr, opts.CosmeticDiscount, totalLines(fd))

	if indexErr != nil {
		r.Impact.Err = indexErr
		return r
	}

	if fd.IsRenamed && len(fd.Hunks) == 0 {
		r.Impact.SymbolMatches = identity.Unchanged(r.Post)
	} else {
		r.Impact.SymbolMatches = identity.Match(
			identity.Side{Index: r.Pre, Lines: versionLines(fd.Pre)},
			identity.Side{Index: r.Post, Lines: versionLines(fd.Post)},
			r.Attr, opts.Identity,
		)
	}
	r.preKey = make(map[string]string)
	r.postKey = make(map[string]string)
	for _, m := range r.Impact.SymbolMatches {
		if m.PreID != "" {
			r.preKey[m.PreID] = m.Key()
		}
		if m.PostID != "" {
			r.postKey[m.PostID] = m.Key()
		}
	}
	return r
}

// buildIndex parses a version unless it already carries symbols. Unsupported
// languages and missing versions give the empty index; malformed ranges are errors.
func buildIndex(ctx context.Context, p Parser, lang string, v *model.FileVersion) (*symbols.Index, error) {
	if v == nil {
		return symbols.Empty, nil
	}
	ranges := v.Symbols
	if ranges == nil {
		if p == nil || !parse.Supported(lang) {
			return symbols.Empty, nil
		}
		var err error
		ranges, err = p.Symbols(ctx, lang, []byte(joinLines(v.Lines)))
		if errors.Is(err, parse.ErrUnsupportedLanguage) {
			return symbols.Empty, nil
		}
		if err != nil {
			return nil, err
		}
	}
	return symbols.New(ranges)
}

// churn is the cosmetic-discounted changed line count over the file length.
func churn(attr *hunkmap.Result, discount float64, total int) float64 {
	added, removed, cosmetic := attr.Totals()
	semantic := added + removed - cosmetic
	return (float64(semantic) + discount*float64(cosmetic)) / float64(max(1, total))
}

// totalLines is the post length (pre for deletions). Without content it falls
// back to the furthest line the hunks reach.
func totalLines(fd *model.FileDiff) int {
	if n := fd.TotalLines(); n > 0 {
		return n
	}
	n := 0
	for _, h := range fd.Hunks {
		n = max(n, h.NewStart+h.NewLen-1, h.OldStart+h.OldLen-1)
	}
	return n
}

func versionLines(v *model.FileVersion) []string {
	if v == nil {
		return nil
	}
	return v.Lines
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
