// Package cli implements the glim command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/glim/internal/config"
	"github.com/sprite-ai/glim/internal/source"
)

var rootCmd = &cobra.Command{
	Use:   "glim [path | owner/repo#N | pull request URL]",
	Short: "Review changes by zooming from files to symbols to lines",
	Long: `glim opens an interactive review of a change set. It starts at a heatmap of
changed files, zooms into the symbols each file touches, and then into the
line diff of a single symbol, with cosmetic edits folded away.

Examples:
  glim                                  # working tree vs HEAD
  glim ~/src/project                    # another repository
  glim cli/cli#8123                     # a GitHub pull request
  glim https://github.com/cli/cli/pull/8123`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runReview,
}

// flagKeys maps config keys to the persistent flags that override them.
var flagKeys = map[string]string{
	"diff.context":     "context",
	"engine.workers":   "workers",
	"noise.normalizer": "normalizer",
	"log.level":        "log-level",
	"log.file":         "log-file",
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("config", "", "config file (default .glim.yaml in the repository)")
	f.IntP("context", "C", 3, "lines of context around changes")
	f.Int("workers", 0, "analysis workers (default: number of CPUs)")
	f.String("normalizer", "table", "comment normalizer: table or lexer")
	f.String("log-level", "warn", "log level: debug, info, warn, error")
	f.String("log-file", "", "write logs to this file")

	rootCmd.AddCommand(statCmd, serveCmd, versionCmd)
}

// Execute runs the root command until it returns or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// env is what every command builds before doing work.
type env struct {
	cfg   *config.Config
	log   *slog.Logger
	close func() error
}

// setup loads the configuration for repoRoot with flag overrides and builds the
// logger. Logs go to w unless log.file is set.
func setup(cmd *cobra.Command, repoRoot string, w io.Writer) (*env, error) {
	v := config.New()
	for key, name := range flagKeys {
		if fl := cmd.Flags().Lookup(name); fl != nil {
			if err := v.BindPFlag(key, fl); err != nil {
				return nil, fmt.Errorf("binding --%s: %w", name, err)
			}
		}
	}
	explicit, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, explicit, repoRoot)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, close: func() error { return nil }}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		w, e.close = f, f.Close
	}
	e.log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	if cfg.File != "" {
		e.log.Debug("loaded config", "file", cfg.File)
	}
	return e, nil
}

func (e *env) sourceOptions() source.Options {
	return source.Options{Context: e.cfg.Diff.Context, Ignored: e.cfg.Ignored, Log: e.log}
}

// target is what a review runs on: a pull request, or the repository rooted at root.
type target struct {
	pr   *source.PRRef
	root string // for pull requests, the enclosing repository if any; used for config only
}

func resolveTarget(args []string) (target, error) {
	arg := "."
	if len(args) == 1 {
		arg = args[0]
	}
	if source.LooksLikePR(arg) {
		ref, err := source.ParsePRRef(arg)
		if err != nil {
			return target{}, err
		}
		root, _ := source.RepoRoot(".")
		return target{pr: &ref, root: root}, nil
	}
	root, err := source.RepoRoot(arg)
	if err != nil {
		return target{}, err
	}
	return target{root: root}, nil
}

// open returns the source for t. A pull request needs a logged-in gh; without
// one there is nothing to review, so the failure is returned up front.
func (t target) open(ctx context.Context, e *env) (source.Source, error) {
	if t.pr == nil {
		l, err := source.NewLocal(t.root, e.sourceOptions())
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	pr := source.NewPullRequest(*t.pr, e.sourceOptions(), source.GH)
	if err := pr.CheckAuth(ctx); err != nil {
		return nil, err
	}
	return pr, nil
}
