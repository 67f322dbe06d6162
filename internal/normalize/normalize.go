// Package normalize turns free text into the folded form used for matching
// and composes user input into its stored form.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Placeholder stands in for a user-fillable blank ("___" in input).
const Placeholder = "▯"

var (
	nonWord  = regexp.MustCompile(`[^0-9A-Za-z_-]+`)
	newlines = regexp.MustCompile(`[\n\r]+`)

	// Only the first block of combining diacritics is dropped; any other mark
	// survives decomposition and is then blanked out as a non-word character.
	stripMarks = runes.Remove(runes.Predicate(func(r rune) bool {
		return r >= 0x0300 && r <= 0x030f
	}))
	dotless = runes.Map(func(r rune) rune {
		if r == 'ı' {
			return 'i'
		}
		return r
	})
)

// Fold lowercases s, strips diacritics and collapses every run of
// non-word characters into a single space. Leading and trailing runs are
// kept as spaces, so Fold(" a ") == " a ".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, dotless, stripMarks)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(nonWord.ReplaceAllString(out, " "))
}

// Blank reports whether a folded string carries no searchable characters.
func Blank(folded string) bool {
	return strings.TrimSpace(folded) == ""
}

// Compose converts raw user input into its stored form: "___" becomes the
// placeholder marker, line breaks are dropped and the text is NFC-composed.
func Compose(s string) string {
	s = strings.ReplaceAll(s, "___", Placeholder)
	s = newlines.ReplaceAllString(s, "")
	return norm.NFC.String(s)
}
