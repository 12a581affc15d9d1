package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/glim/internal/engine"
	"github.com/sprite-ai/glim/internal/parse"
	"github.com/sprite-ai/glim/internal/source"
	"github.com/sprite-ai/glim/internal/tui"
)

func runReview(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget(args)
	if err != nil {
		return err
	}
	// The TUI owns the terminal, so logs only go to log.file.
	e, err := setup(cmd, t.root, io.Discard)
	if err != nil {
		return err
	}
	defer e.close()

	src, err := t.open(cmd.Context(), e)
	if err != nil {
		return err
	}

	eng := engine.New(parse.New(), e.cfg.EngineOptions(), e.log)
	return tui.Run(cmd.Context(), tui.Options{
		Source:  src,
		Engine:  eng,
		Index:   indexOf(src),
		Context: e.cfg.Diff.Context,
		Style:   "dracula",
	})
}

// indexOf returns where `w` writes the staged set: the index of a local
// repository. Pull requests have none.
func indexOf(src source.Source) tui.IndexWriter {
	if l, ok := src.(*source.Local); ok {
		return l
	}
	return nil
}
