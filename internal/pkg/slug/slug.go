// Package slug generates URL slugs from titles in any script.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	invalidChars    = regexp.MustCompile(`[^a-z0-9-]+`)
	multipleHyphens = regexp.MustCompile(`-{2,}`)
	validSlug       = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// maxLength caps generated slugs; trailing hyphens left by the cut are trimmed.
const maxLength = 100

// Make converts s to a lowercase ASCII slug. Accents are stripped and
// non-latin scripts are transliterated, so "Технології" yields a latin slug.
func Make(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}

	result = strings.ToLower(unidecode.Unidecode(result))
	result = strings.Join(strings.Fields(result), "-")
	result = invalidChars.ReplaceAllString(result, "")
	result = multipleHyphens.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")

	if len(result) > maxLength {
		result = strings.TrimRight(result[:maxLength], "-")
	}
	return result
}

// IsValid reports whether s is already a well-formed slug.
func IsValid(s string) bool {
	return len(s) <= maxLength && validSlug.MatchString(s)
}
