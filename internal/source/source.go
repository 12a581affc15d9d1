// Package source loads review sessions from version control: the local working
// tree of a git repository, or a GitHub pull request through the gh CLI.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sprite-ai/glim/internal/diff"
	"github.com/sprite-ai/glim/internal/model"
)

var (
	ErrNotRepository = errors.New("not a git repository")
	ErrBadPRRef      = errors.New("bad pull request reference")
)

// Info describes a session for the dashboard header.
type Info struct {
	Repo        string
	Branch      string // empty for pull requests
	PR          int    // zero for local sessions
	Description string
	Author      string
	State       string
	Files       int
	Added       int
	Removed     int
}

// Title is the branch name, or "#<number>" for a pull request.
func (i Info) Title() string {
	if i.PR > 0 {
		return fmt.Sprintf("#%d", i.PR)
	}
	return i.Branch
}

// StatsLine renders "+A -D (N files)".
func (i Info) StatsLine() string {
	noun := "files"
	if i.Files == 1 {
		noun = "file"
	}
	return fmt.Sprintf("+%d -%d (%d %s)", i.Added, i.Removed, i.Files, noun)
}

// Session is everything the engine needs to start a review.
type Session struct {
	Info     Info
	Files    []model.FileDiff
	Comments []model.Comment
}

// Source loads a session. Load may be called again to reload.
type Source interface {
	Load(ctx context.Context) (*Session, error)
}

// Options are shared by all sources.
type Options struct {
	Context int               // context lines requested from git
	Ignored func(string) bool // paths dropped from the session; nil keeps all
	Log     *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Log == nil {
		return slog.Default()
	}
	return o.Log
}

// filter drops ignored files and fills Info's totals.
func (o Options) filter(set *diff.Set, info *Info) []model.FileDiff {
	kept := &diff.Set{Raw: set.Raw, Files: make([]model.FileDiff, 0, len(set.Files))}
	for _, fd := range set.Files {
		if o.Ignored != nil && (o.Ignored(fd.Path) || (fd.OldPath != "" && o.Ignored(fd.OldPath))) {
			continue
		}
		kept.Files = append(kept.Files, fd)
	}
	info.Files, info.Added, info.Removed = kept.Stats()
	return kept.Files
}
