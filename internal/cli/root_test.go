package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/sprite-ai/glim/internal/source"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, want := range []string{"stat", "serve", "version"} {
		if !names[want] {
			t.Errorf("root command missing subcommand %q", want)
		}
	}
}

func TestVersionOutput(t *testing.T) {
	// version vars are set via ldflags; in tests they have their defaults
	if version != "dev" {
		t.Errorf("expected default version %q, got %q", "dev", version)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetOut(nil)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "glim dev") {
		t.Errorf("unexpected version output %q", out.String())
	}
}

func TestResolveTarget(t *testing.T) {
	tgt, err := resolveTarget([]string{"cli/cli#42"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tgt.pr == nil || tgt.pr.Number != 42 {
		t.Fatalf("expected pull request 42, got %+v", tgt)
	}

	if _, err := resolveTarget([]string{t.TempDir()}); err == nil {
		t.Error("expected an error outside a repository")
	}
}

func TestIndexOf(t *testing.T) {
	pr := source.NewPullRequest(source.PRRef{Owner: "cli", Repo: "cli", Number: 42}, source.Options{}, source.GH)
	if indexOf(pr) != nil {
		t.Error("pull requests have no index to write")
	}
	if indexOf(&source.Local{}) == nil {
		t.Error("expected a local repository to take index writes")
	}
}

func TestRelationSummary(t *testing.T) {
	got := relationSummary(map[string]int{"added": 1, "modified": 2, "deleted": 1})
	if got != "2 modified, 1 added, 1 deleted" {
		t.Errorf("got %q", got)
	}
	if relationSummary(nil) != "" {
		t.Error("expected empty summary")
	}
}

func TestStatJSON(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	write := func(content string) {
		if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("package a\n\nfunc A() int {\n\treturn 1\n}\n")
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("a.go"); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Commit("init", &git.CommitOptions{
		Author: &object.Signature{Name: "glim", Email: "glim@example.com", When: time.Unix(0, 0)},
	}); err != nil {
		t.Fatal(err)
	}
	write("package a\n\nfunc A() int {\n\treturn 2\n}\n\nfunc B() int {\n\treturn 3\n}\n")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"stat", "--json", dir})
	defer rootCmd.SetOut(nil)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("stat: %v", err)
	}

	var report statReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if report.Files != 1 || len(report.Changes) != 1 {
		t.Fatalf("expected one file, got %+v", report)
	}
	f := report.Changes[0]
	if f.Path != "a.go" || f.Added != 5 || f.Removed != 1 {
		t.Errorf("unexpected change %+v", f)
	}
	if f.Relations["modified"] < 1 || f.Relations["added"] < 1 {
		t.Errorf("expected A modified and B added, got %v", f.Relations)
	}
	if f.Error != "" {
		t.Errorf("unexpected error %q", f.Error)
	}
}
