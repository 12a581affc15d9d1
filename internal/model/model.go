// Package model defines the core data types shared across glim.
package model

import (
	"encoding/hex"
	"fmt"
	"strings"

	"lukechampine.com/blake3"
)

// SymbolKind categorizes a named syntactic unit.
type SymbolKind int

const (
	KindOther SymbolKind = iota
	KindFunction
	KindType
)

func (k SymbolKind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindType:
		return "type"
	default:
		return "other"
	}
}

// FileLevelID is the pseudo-symbol that owns lines outside every symbol range.
const FileLevelID = "@file"

// SymbolRange is a named line range in one file version. Lines are 1-indexed and inclusive.
type SymbolRange struct {
	ID     string
	Kind   SymbolKind
	Name   string
	Start  int
	End    int
	Parent string // empty for top-level symbols
}

// Contains reports whether line falls inside the range.
func (s SymbolRange) Contains(line int) bool {
	return line >= s.Start && line <= s.End
}

// FileVersion is one side (pre or post) of a reviewed file. Lines hold the
// text without terminators; Content keeps the bytes as read.
type FileVersion struct {
	Path    string
	Hash    string
	Content []byte
	Lines   []string
	Symbols []SymbolRange
}

// NewFileVersion splits content into lines and hashes it.
func NewFileVersion(path string, content []byte) *FileVersion {
	return &FileVersion{
		Path:    path,
		Hash:    ContentHash(content),
		Content: content,
		Lines:   SplitLines(string(content)),
	}
}

// RawLines returns the version's lines with their terminators attached.
func (v *FileVersion) RawLines() []string {
	if v == nil {
		return nil
	}
	return SplitRawLines(string(v.Content))
}

// LineCount returns the number of lines in the version.
func (v *FileVersion) LineCount() int {
	if v == nil {
		return 0
	}
	return len(v.Lines)
}

// Line returns the text of a 1-indexed line, or "" when out of range.
func (v *FileVersion) Line(n int) string {
	if v == nil || n < 1 || n > len(v.Lines) {
		return ""
	}
	return v.Lines[n-1]
}

// ContentHash returns a short blake3 digest identifying file content.
func ContentHash(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:8])
}

// SplitLines splits text on newlines without producing a trailing empty line.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			line := s[start:i]
			if n := len(line); n > 0 && line[n-1] == '\r' {
				line = line[:n-1]
			}
			lines = append(lines, line)
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// SplitRawLines splits text after each newline, keeping the terminators. The
// last element has none when the text does not end in a newline.
func SplitRawLines(s string) []string {
	var lines []string
	for len(s) > 0 {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
	}
	return lines
}

// LineOp is the kind of a line edit inside a hunk.
type LineOp int

const (
	OpContext LineOp = iota
	OpAdded
	OpRemoved
)

func (o LineOp) String() string {
	switch o {
	case OpAdded:
		return "added"
	case OpRemoved:
		return "removed"
	default:
		return "context"
	}
}

// Prefix returns the unified diff marker for the op.
func (o LineOp) Prefix() string {
	switch o {
	case OpAdded:
		return "+"
	case OpRemoved:
		return "-"
	default:
		return " "
	}
}

// LineEdit is one line of a hunk. Text carries no terminator; CRLF and NoNewline
// record the one the line had in its file.
type LineEdit struct {
	Op        LineOp
	Text      string
	CRLF      bool
	NoNewline bool // last line of a file without a final newline
}

// EOL returns the line's terminator.
func (l LineEdit) EOL() string {
	switch {
	case l.NoNewline:
		return ""
	case l.CRLF:
		return "\r\n"
	default:
		return "\n"
	}
}

// Raw returns the line as it appears in its file.
func (l LineEdit) Raw() string {
	return l.Text + l.EOL()
}

// Hunk is a contiguous block of a line diff.
type Hunk struct {
	OldStart int
	OldLen   int
	NewStart int
	NewLen   int
	Lines    []LineEdit
}

// Counts returns the number of added and removed lines in the hunk.
func (h Hunk) Counts() (added, removed int) {
	for _, l := range h.Lines {
		switch l.Op {
		case OpAdded:
			added++
		case OpRemoved:
			removed++
		}
	}
	return
}

// Header formats the hunk's unified diff header.
func (h Hunk) Header() string {
	old := fmt.Sprintf("-%d", h.OldStart)
	if h.OldLen != 1 {
		old += fmt.Sprintf(",%d", h.OldLen)
	}
	nw := fmt.Sprintf("+%d", h.NewStart)
	if h.NewLen != 1 {
		nw += fmt.Sprintf(",%d", h.NewLen)
	}
	return fmt.Sprintf("@@ %s %s @@", old, nw)
}

// FileDiff is everything the engine needs to review one file.
type FileDiff struct {
	Path      string // post-version path (pre-version path when deleted)
	OldPath   string
	Language  string // parser language id, empty when unknown
	IsNew     bool
	IsDeleted bool
	IsRenamed bool
	IsBinary  bool
	Mode      string       // git file mode in octal, e.g. "100644"
	Pre       *FileVersion // nil for new files
	Post      *FileVersion // nil for deleted files
	Hunks     []Hunk

	// Cached holds the hunks already in the index (HEAD to index) for local
	// sessions. The staged set is seeded from them.
	Cached []Hunk
}

// Counts returns total added and removed lines across all hunks.
func (fd *FileDiff) Counts() (added, removed int) {
	for _, h := range fd.Hunks {
		a, r := h.Counts()
		added += a
		removed += r
	}
	return
}

// TotalLines returns the line count used to normalize churn.
func (fd *FileDiff) TotalLines() int {
	if fd.Post != nil {
		return fd.Post.LineCount()
	}
	return fd.Pre.LineCount()
}

// LineLabel marks a hunk line as semantic or cosmetic.
type LineLabel int

const (
	LabelContext LineLabel = iota
	LabelSemantic
	LabelCosmetic
)

func (l LineLabel) String() string {
	switch l {
	case LabelSemantic:
		return "semantic"
	case LabelCosmetic:
		return "cosmetic"
	default:
		return "context"
	}
}

// SymbolAttribution counts the changed lines owned by one symbol on one side.
type SymbolAttribution struct {
	SymbolID      string
	AddedLines    int
	RemovedLines  int
	CosmeticLines int
}

// Changed returns the number of added plus removed lines.
func (a SymbolAttribution) Changed() int {
	return a.AddedLines + a.RemovedLines
}

// Relation describes how a symbol changed between versions.
type Relation int

const (
	RelationUnchanged Relation = iota
	RelationModified
	RelationAdded
	RelationDeleted
	RelationMoved
	RelationRenamed
)

func (r Relation) String() string {
	switch r {
	case RelationUnchanged:
		return "unchanged"
	case RelationModified:
		return "modified"
	case RelationAdded:
		return "added"
	case RelationDeleted:
		return "deleted"
	case RelationMoved:
		return "moved"
	case RelationRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// SymbolMatch pairs a pre-version symbol with a post-version symbol.
// PreID is empty for added symbols, PostID for deleted ones.
type SymbolMatch struct {
	PreID      string
	PostID     string
	Relation   Relation
	Confidence float64
}

// Key identifies the match within its file; it is stable across staging changes.
func (m SymbolMatch) Key() string {
	if m.PostID != "" {
		return "+" + m.PostID
	}
	return "-" + m.PreID
}

// FileImpact is the Galaxy-level summary of one file.
type FileImpact struct {
	Path            string
	ChurnScore      float64
	SymbolMatches   []SymbolMatch
	HasCosmeticOnly bool

	Added   int
	Removed int

	// Staging overlay, rebuilt when the file's staged set changes.
	StagedAdded   int
	StagedRemoved int

	// Err is set when the file's Structure and Logic views are unavailable.
	Err error
}

// StageState summarizes how much of a file or symbol is staged.
type StageState int

const (
	StageNone StageState = iota
	StagePartial
	StageFull
)

func (s StageState) String() string {
	switch s {
	case StagePartial:
		return "partial"
	case StageFull:
		return "full"
	default:
		return "none"
	}
}

// StageStateOf derives the stage state from staged and total changed line counts.
func StageStateOf(staged, total int) StageState {
	switch {
	case staged == 0 || total == 0:
		return StageNone
	case staged >= total:
		return StageFull
	default:
		return StagePartial
	}
}

// Stage returns the file-level stage state.
func (fi FileImpact) Stage() StageState {
	return StageStateOf(fi.StagedAdded+fi.StagedRemoved, fi.Added+fi.Removed)
}

// ZoomLevel is one of the three review views.
type ZoomLevel int

const (
	Galaxy ZoomLevel = iota
	Structure
	Logic
)

func (z ZoomLevel) String() string {
	switch z {
	case Galaxy:
		return "galaxy"
	case Structure:
		return "structure"
	case Logic:
		return "logic"
	default:
		return "unknown"
	}
}

// LineRange identifies an inclusive range of lines.
type LineRange struct {
	Start int
	End   int
}

// Contains reports whether other lies entirely inside r.
func (r LineRange) Contains(other LineRange) bool {
	return other.Start >= r.Start && other.End <= r.End
}

// IsZero reports whether the range is unset.
func (r LineRange) IsZero() bool {
	return r.Start == 0 && r.End == 0
}

// Comment is a review comment anchored to a post-version line.
type Comment struct {
	Path   string
	Line   int
	Author string
	Body   string
}
