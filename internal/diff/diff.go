// Package diff parses unified git diffs into model.FileDiff values.
package diff

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/sprite-ai/glim/internal/model"
	"github.com/sprite-ai/glim/internal/parse"
)

// Set holds the parsed diff for all files.
type Set struct {
	Files []model.FileDiff
	Raw   string // the raw unified diff text
}

// Stats returns aggregate statistics.
func (s *Set) Stats() (files, added, deleted int) {
	files = len(s.Files)
	for i := range s.Files {
		a, d := s.Files[i].Counts()
		added += a
		deleted += d
	}
	return
}

// DisplayName returns the name shown for a file.
func DisplayName(fd *model.FileDiff) string {
	if fd.IsRenamed && fd.OldPath != "" && fd.OldPath != fd.Path {
		return fmt.Sprintf("%s → %s", fd.OldPath, fd.Path)
	}
	return fd.Path
}

// Parse reads a unified diff string. File contents are not attached; the
// caller fills Pre and Post when it has them.
func Parse(raw string) (*Set, error) {
	parsed, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	s := &Set{Raw: raw}
	for _, f := range parsed {
		fd := model.FileDiff{
			Path:      f.NewName,
			OldPath:   f.OldName,
			IsNew:     f.IsNew,
			IsDeleted: f.IsDelete,
			IsRenamed: f.IsRename,
			IsBinary:  f.IsBinary,
		}
		if f.IsDelete || fd.Path == "" {
			fd.Path = f.OldName
		}
		fd.Language = parse.LanguageForPath(fd.Path)
		fd.Mode = mode(f)

		for _, frag := range f.TextFragments {
			fd.Hunks = append(fd.Hunks, hunk(frag))
		}
		s.Files = append(s.Files, fd)
	}
	return s, nil
}

func hunk(frag *gitdiff.TextFragment) model.Hunk {
	h := model.Hunk{
		OldStart: int(frag.OldPosition),
		OldLen:   int(frag.OldLines),
		NewStart: int(frag.NewPosition),
		NewLen:   int(frag.NewLines),
		Lines:    make([]model.LineEdit, 0, len(frag.Lines)),
	}
	for _, line := range frag.Lines {
		// go-gitdiff drops the newline of a line followed by the
		// "\ No newline at end of file" marker.
		text, lf := strings.CutSuffix(line.Line, "\n")
		var crlf bool
		if lf {
			text, crlf = strings.CutSuffix(text, "\r")
		}
		var op model.LineOp
		switch line.Op {
		case gitdiff.OpAdd:
			op = model.OpAdded
		case gitdiff.OpDelete:
			op = model.OpRemoved
		default:
			op = model.OpContext
		}
		h.Lines = append(h.Lines, model.LineEdit{Op: op, Text: text, CRLF: crlf, NoNewline: !lf})
	}
	return h
}

// mode returns the file's git mode in octal, defaulting to a regular file.
func mode(f *gitdiff.File) string {
	m := f.NewMode
	if m == 0 {
		m = f.OldMode
	}
	if m == 0 {
		return "100644"
	}
	return fmt.Sprintf("%o", uint32(m))
}

// GitDiff runs `git diff` with the given arguments and returns the raw output.
func GitDiff(ctx context.Context, repoDir string, args ...string) (string, error) {
	cmdArgs := append([]string{"diff", "--no-color", "--no-ext-diff"}, args...)
	cmd := exec.CommandContext(ctx, "git", cmdArgs...)
	cmd.Dir = repoDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git diff: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return string(out), nil
}

// GitDiffWorkingTree returns the diff of the working tree and index against base
// (HEAD, or the empty tree in a repository without commits), with renames detected.
func GitDiffWorkingTree(ctx context.Context, repoDir, base string, contextLines int) (string, error) {
	return GitDiff(ctx, repoDir, "-M", fmt.Sprintf("-U%d", contextLines), base)
}
