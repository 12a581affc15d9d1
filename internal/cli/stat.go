package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/glim/internal/engine"
	"github.com/sprite-ai/glim/internal/parse"
	"github.com/sprite-ai/glim/internal/source"
)

var statCmd = &cobra.Command{
	Use:   "stat [path | owner/repo#N | pull request URL]",
	Short: "Print the file heatmap and exit (non-interactive)",
	Long: `Analyze the change set and print one line per file, hottest first:
path, churn score, line counts and a summary of how its symbols changed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStat,
}

func init() {
	statCmd.Flags().Bool("json", false, "print JSON instead of text")
}

type statFile struct {
	Path         string         `json:"path"`
	Churn        float64        `json:"churn"`
	Added        int            `json:"added"`
	Removed      int            `json:"removed"`
	Relations    map[string]int `json:"relations,omitempty"`
	CosmeticOnly bool           `json:"cosmetic_only,omitempty"`
	Comments     int            `json:"comments,omitempty"`
	Error        string         `json:"error,omitempty"`
}

type statReport struct {
	Repo    string     `json:"repo"`
	Title   string     `json:"title"`
	Files   int        `json:"files"`
	Added   int        `json:"added"`
	Removed int        `json:"removed"`
	Changes []statFile `json:"changes"`
}

func runStat(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget(args)
	if err != nil {
		return err
	}
	e, err := setup(cmd, t.root, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.close()

	ctx := cmd.Context()
	src, err := t.open(ctx, e)
	if err != nil {
		return err
	}
	session, err := src.Load(ctx)
	if err != nil {
		return err
	}

	eng := engine.New(parse.New(), e.cfg.EngineOptions(), e.log)
	if err := eng.Build(ctx, session.Files); err != nil {
		return err
	}
	eng.SetComments(session.Comments)

	report := buildReport(session.Info, eng)
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printStat(cmd.OutOrStdout(), report)
	return nil
}

func buildReport(info source.Info, eng *engine.Engine) statReport {
	files, added, removed := eng.Stats()
	r := statReport{Repo: info.Repo, Title: info.Title(), Files: files, Added: added, Removed: removed, Changes: []statFile{}}
	for _, g := range eng.Galaxy() {
		f := statFile{
			Path:         g.Impact.Path,
			Churn:        g.Impact.ChurnScore,
			Added:        g.Impact.Added,
			Removed:      g.Impact.Removed,
			CosmeticOnly: g.Impact.HasCosmeticOnly,
			Comments:     g.Comments,
		}
		nodes, err := eng.Structure(g.Impact.Path, false)
		if err != nil {
			f.Error = err.Error()
		}
		for _, n := range nodes {
			if f.Relations == nil {
				f.Relations = make(map[string]int)
			}
			f.Relations[n.Relation.String()]++
		}
		r.Changes = append(r.Changes, f)
	}
	return r
}

func printStat(w io.Writer, r statReport) {
	fmt.Fprintf(w, "%s %s\n", r.Repo, r.Title)
	fmt.Fprintf(w, "%d file(s) changed, %d insertions(+), %d deletions(-)\n\n", r.Files, r.Added, r.Removed)
	for _, f := range r.Changes {
		summary := relationSummary(f.Relations)
		switch {
		case f.Error != "":
			summary = "error: " + f.Error
		case f.CosmeticOnly:
			summary += " (cosmetic only)"
		}
		fmt.Fprintf(w, "  %-50s %5.2f +%-4d -%-4d %s\n", f.Path, f.Churn, f.Added, f.Removed, strings.TrimSpace(summary))
	}
}

// relationSummary renders counts like "2 modified, 1 added", largest first.
func relationSummary(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%d %s", counts[name], name)
	}
	return strings.Join(parts, ", ")
}
