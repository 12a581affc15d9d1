package noise

import (
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
)

// Normalizer reduces one source line to the tokens that carry meaning.
type Normalizer interface {
	Normalize(line string) []string
}

// CommentSyntax describes how a language spells comments.
type CommentSyntax struct {
	Line       []string // line comment openers, e.g. "//"
	BlockOpen  string
	BlockClose string
}

var (
	cStyle    = CommentSyntax{Line: []string{"//"}, BlockOpen: "/*", BlockClose: "*/"}
	hashStyle = CommentSyntax{Line: []string{"#"}}
	sqlStyle  = CommentSyntax{Line: []string{"--"}, BlockOpen: "/*", BlockClose: "*/"}
)

// CommentTable maps a file extension (with dot) to its comment syntax.
var CommentTable = map[string]CommentSyntax{
	".go":    cStyle,
	".c":     cStyle,
	".h":     cStyle,
	".cc":    cStyle,
	".cpp":   cStyle,
	".hpp":   cStyle,
	".java":  cStyle,
	".kt":    cStyle,
	".scala": cStyle,
	".cs":    cStyle,
	".js":    cStyle,
	".jsx":   cStyle,
	".ts":    cStyle,
	".tsx":   cStyle,
	".rs":    cStyle,
	".swift": cStyle,
	".css":   {BlockOpen: "/*", BlockClose: "*/"},
	".py":    hashStyle,
	".rb":    hashStyle,
	".sh":    hashStyle,
	".bash":  hashStyle,
	".yaml":  hashStyle,
	".yml":   hashStyle,
	".toml":  hashStyle,
	".ex":    hashStyle,
	".exs":   hashStyle,
	".sql":   sqlStyle,
	".lua":   {Line: []string{"--"}},
	".hs":    {Line: []string{"--"}, BlockOpen: "{-", BlockClose: "-}"},
}

// TableNormalizer strips comments using a CommentSyntax and tokenizes the rest.
type TableNormalizer struct {
	Syntax CommentSyntax
}

// NewTableNormalizer picks the comment syntax for a path; unknown extensions strip nothing.
func NewTableNormalizer(path string) TableNormalizer {
	return TableNormalizer{Syntax: CommentTable[strings.ToLower(filepath.Ext(path))]}
}

// Normalize implements Normalizer.
func (n TableNormalizer) Normalize(line string) []string {
	return Tokens(n.strip(line))
}

// strip removes comment text outside string literals. Block comments are only
// recognized when they open and close on the same line; a dangling opener removes
// the rest of the line.
func (n TableNormalizer) strip(line string) string {
	var b strings.Builder
	for i := 0; i < len(line); {
		c := line[i]
		if c == '"' || c == '\'' || c == '`' {
			j := scanString(line, i+1, c)
			b.WriteString(line[i:j])
			i = j
			continue
		}
		if op := n.Syntax.BlockOpen; op != "" && strings.HasPrefix(line[i:], op) {
			end := strings.Index(line[i+len(op):], n.Syntax.BlockClose)
			if end < 0 {
				break
			}
			b.WriteByte(' ')
			i += len(op) + end + len(n.Syntax.BlockClose)
			continue
		}
		if n.lineComment(line[i:]) {
			break
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

func (n TableNormalizer) lineComment(rest string) bool {
	for _, op := range n.Syntax.Line {
		if strings.HasPrefix(rest, op) {
			return true
		}
	}
	return false
}

// LexerNormalizer uses a chroma lexer to drop comment and whitespace tokens.
// It falls back to plain tokenization when no lexer matches the file.
type LexerNormalizer struct {
	lexer chroma.Lexer
}

// NewLexerNormalizer finds a chroma lexer for the path.
func NewLexerNormalizer(path string) LexerNormalizer {
	lexer := lexers.Match(filepath.Base(path))
	if lexer != nil {
		lexer = chroma.Coalesce(lexer)
	}
	return LexerNormalizer{lexer: lexer}
}

// Normalize implements Normalizer.
func (n LexerNormalizer) Normalize(line string) []string {
	if n.lexer == nil {
		return Tokens(line)
	}
	it, err := n.lexer.Tokenise(nil, line)
	if err != nil {
		return Tokens(line)
	}
	var b strings.Builder
	for _, tok := range it.Tokens() {
		if isComment(tok.Type) {
			b.WriteByte(' ')
			continue
		}
		b.WriteString(tok.Value)
	}
	return Tokens(b.String())
}

// isComment excludes preprocessor tokens, which chroma files under comments.
func isComment(tt chroma.TokenType) bool {
	if tt == chroma.CommentPreproc || tt == chroma.CommentPreprocFile {
		return false
	}
	return tt.InCategory(chroma.Comment)
}

// ForPath returns the normalizer selected by kind ("table" or "lexer") for a path.
func ForPath(kind, path string) Normalizer {
	if kind == "lexer" {
		return NewLexerNormalizer(path)
	}
	return NewTableNormalizer(path)
}
