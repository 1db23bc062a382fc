package notify

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DisplayName prepares a matcher-supplied name for display: NFC-normalized,
// control and format characters removed, inner whitespace collapsed.
func DisplayName(s string) string {
	t := transform.Chain(norm.NFC, runes.Remove(runes.Predicate(isHidden)))
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	return strings.Join(strings.Fields(result), " ")
}

func isHidden(r rune) bool {
	return (unicode.IsControl(r) && !unicode.IsSpace(r)) || unicode.Is(unicode.Cf, r)
}
