package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases text and strips diacritics, keeping punctuation intact.
// Command parsing runs on folded text so decimal separators and signs survive.
func Fold(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Normalize produces the canonical form used by every matcher: lower case,
// no diacritics, punctuation replaced by spaces, single spaces between words.
func Normalize(text string) string {
	folded := Fold(text)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens splits normalized text into words
func Tokens(text string) []string {
	return strings.Fields(Normalize(text))
}
