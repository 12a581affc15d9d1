package staging

import (
	"bytes"
	"fmt"

	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/sprite-ai/glim/internal/model"
)

// Patch renders the effective diff of every file with staged lines as a unified
// patch against HEAD. It returns nil when nothing is staged.
func (m *Model) Patch() ([]byte, error) {
	var fds []*godiff.FileDiff
	for _, path := range m.Files() {
		hunks := m.EffectiveDiff(path)
		if len(hunks) == 0 {
			continue
		}
		fds = append(fds, fileDiff(m.files[path], hunks))
	}
	if len(fds) == 0 {
		return nil, nil
	}
	out, err := godiff.PrintMultiFileDiff(fds)
	if err != nil {
		return nil, fmt.Errorf("printing patch: %w", err)
	}
	return out, nil
}

func fileDiff(fd model.FileDiff, hunks []model.Hunk) *godiff.FileDiff {
	oldPath := fd.OldPath
	if oldPath == "" {
		oldPath = fd.Path
	}
	out := &godiff.FileDiff{
		OrigName: "a/" + oldPath,
		NewName:  "b/" + fd.Path,
		Extended: []string{fmt.Sprintf("diff --git a/%s b/%s", oldPath, fd.Path)},
	}
	mode := fd.Mode
	if mode == "" {
		mode = "100644"
	}
	if fd.IsNew {
		out.OrigName = "/dev/null"
		out.Extended = append(out.Extended, "new file mode "+mode)
	}
	if fd.IsDeleted && removesEverything(hunks, fd.Pre.LineCount()) {
		out.NewName = "/dev/null"
		out.Extended = append(out.Extended, "deleted file mode "+mode)
	}
	for _, h := range hunks {
		gh := &godiff.Hunk{
			OrigStartLine: int32(h.OldStart),
			OrigLines:     int32(h.OldLen),
			NewStartLine:  int32(h.NewStart),
			NewLines:      int32(h.NewLen),
		}
		var body bytes.Buffer
		for i, l := range h.Lines {
			body.WriteString(l.Op.Prefix())
			body.WriteString(l.Text)
			switch {
			case !l.NoNewline:
				body.WriteString(l.EOL())
			case i < len(h.Lines)-1:
				// The old side ends here; the marker follows this line.
				body.WriteByte('\n')
				gh.OrigNoNewlineAt = int32(body.Len())
			}
		}
		gh.Body = body.Bytes()
		out.Hunks = append(out.Hunks, gh)
	}
	return out
}

func removesEverything(hunks []model.Hunk, lines int) bool {
	removed := 0
	for _, h := range hunks {
		if h.NewLen != 0 {
			return false
		}
		removed += h.OldLen
	}
	return removed == lines
}
