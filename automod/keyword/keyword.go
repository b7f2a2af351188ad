package keyword

import (
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Lower-cases text and strips combining marks, so that "PÖRN" and "porn" compare equal.
func Fold(text string) string {
	// this function needs to be re-defined in every function call to prevent a race condition
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	lower := strings.ToLower(text)
	out, _, err := transform.String(normFunc, lower)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		return lower
	}
	return out
}

// Returns the first entry of "set" which appears as a substring of the folded text.
//
// Entries are expected to already be folded. Matching is by substring, not by token, so "nsfw" matches "#nsfwcontent".
func ContainsAny(text string, set []string) (string, bool) {
	folded := Fold(text)
	for _, kw := range set {
		if kw != "" && strings.Contains(folded, kw) {
			return kw, true
		}
	}
	return "", false
}

