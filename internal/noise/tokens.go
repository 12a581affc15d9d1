package noise

import (
	"unicode"
	"unicode/utf8"
)

// Tokens splits source text into layout-independent tokens: identifier and number
// runs, quoted string literals kept whole, and single punctuation runes. Whitespace
// separates tokens but is never part of one.
func Tokens(s string) []string {
	var out []string
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case isWord(r):
			j := i + size
			for j < len(s) {
				r2, s2 := utf8.DecodeRuneInString(s[j:])
				if !isWord(r2) {
					break
				}
				j += s2
			}
			out = append(out, s[i:j])
			i = j
		case r == '"' || r == '\'' || r == '`':
			j := scanString(s, i+size, byte(r))
			out = append(out, s[i:j])
			i = j
		default:
			out = append(out, s[i:i+size])
			i += size
		}
	}
	return out
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// scanString returns the index just past the closing quote, or len(s) when unterminated.
func scanString(s string, i int, quote byte) int {
	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
			continue
		case quote:
			return i + 1
		}
		i++
	}
	return len(s)
}

// Equal reports whether two token streams are identical.
func Equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
