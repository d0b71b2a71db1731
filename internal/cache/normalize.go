// Package cache stores previously computed answers in two scopes, per-user
// and global, keyed by a normalized form of the query.
package cache

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a raw query into its cache key: diacritics are
// folded, case is lowered, punctuation is dropped, and whitespace collapses
// to single spaces. The function is pure and deterministic; two raw queries
// with the same normalized form always share a cache entry.
//
//	"Qual é a PAUTA??" -> "qual e a pauta"
func Normalize(query string) string {
	decomposed := norm.NFD.String(query)

	var b strings.Builder
	b.Grow(len(decomposed))
	lastSpace := true
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark from the NFD decomposition, dropped
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}
