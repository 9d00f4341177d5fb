// Package normalize folds free text into the comparable form used by intent
// matching and medication extraction.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Text lower-cases s, strips diacritics, turns every rune that is not a
// letter, digit, underscore or space into a space, collapses whitespace runs
// and trims. "Informação?" and "informacao" both become "informacao".
func Text(s string) string {
	if s == "" {
		return ""
	}

	folded, _, err := transform.String(foldMarks(), strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		if !isWordRune(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Tokens splits the normalized form of s on single spaces. Empty input
// yields nil.
func Tokens(s string) []string {
	n := Text(s)
	if n == "" {
		return nil
	}
	return strings.Split(n, " ")
}

// foldMarks is rebuilt per call: transform.Transformer chains keep state and
// are not safe for concurrent use.
func foldMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
