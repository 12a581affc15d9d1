package identity

import (
	"strings"

	"github.com/sprite-ai/glim/internal/model"
	"github.com/sprite-ai/glim/internal/noise"
)

// selfToken stands in for a symbol's own name inside its body so that a renamed
// symbol with an unchanged body scores as identical.
const selfToken = "\x00self"

// bodyTokens tokenizes the source lines of a symbol, ignoring layout.
func bodyTokens(lines []string, r model.SymbolRange, limit int) []string {
	var toks []string
	for n := r.Start; n <= r.End && n <= len(lines); n++ {
		for _, tok := range noise.Tokens(lines[n-1]) {
			if tok == r.Name {
				tok = selfToken
			}
			toks = append(toks, tok)
		}
		if limit > 0 && len(toks) >= limit {
			return toks[:limit]
		}
	}
	return toks
}

// tokenSimilarity is 1 - levenshtein(a, b) / max(len(a), len(b)).
func tokenSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	d := levenshtein(len(a), len(b), func(i, j int) bool { return a[i] == b[j] })
	return 1 - float64(d)/float64(max(len(a), len(b)))
}

// nameSimilarity compares names case-insensitively by rune edit distance.
func nameSimilarity(a, b string) float64 {
	ra, rb := []rune(strings.ToLower(a)), []rune(strings.ToLower(b))
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	d := levenshtein(len(ra), len(rb), func(i, j int) bool { return ra[i] == rb[j] })
	return 1 - float64(d)/float64(max(len(ra), len(rb)))
}

// levenshtein computes edit distance with two rolling rows.
func levenshtein(n, m int, eq func(i, j int) bool) int {
	prev := make([]int, m+1)
	cur := make([]int, m+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= n; i++ {
		cur[0] = i
		for j := 1; j <= m; j++ {
			cost := 1
			if eq(i-1, j-1) {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[m]
}
