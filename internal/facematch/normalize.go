package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeLabelName folds a label name for loose comparison (lowercase, no
// diacritics, spaces for dashes and underscores).
func NormalizeLabelName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// SuggestLabels returns the existing labels that loosely match name, used to
// hint at typos when a label is not found. Labels are case-sensitive, so
// "alice" does not find "Alice" but gets it suggested.
func SuggestLabels(name string, labels []string) []string {
	want := NormalizeLabelName(name)
	var out []string
	for _, l := range labels {
		if l != name && NormalizeLabelName(l) == want {
			out = append(out, l)
		}
	}
	return out
}
