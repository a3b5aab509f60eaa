package profile

import (
	"strings"
	"unicode/utf8"

	"github.com/ericfitz/whiteboard/internal/unicodecheck"
	"github.com/microcosm-cc/bluemonday"
)

// MaxDisplayNameRunes caps the length of a display name
const MaxDisplayNameRunes = 64

var (
	namePolicy    = bluemonday.StrictPolicy()
	nameUnescaper = strings.NewReplacer("&amp;", "&", "&#39;", "'", "&#34;", `"`)
)

var genericNames = map[string]struct{}{
	"":          {},
	"anonymous": {},
	"user":      {},
	"unknown":   {},
	"guest":     {},
}

// SanitizeDisplayName strips markup and unsafe Unicode from a client
// supplied name, trims it and caps its length.
func SanitizeDisplayName(name string) string {
	cleaned := namePolicy.Sanitize(name)
	// StrictPolicy escapes what it keeps. Angle brackets stay escaped so an
	// entity-encoded tag never comes back as markup.
	cleaned = nameUnescaper.Replace(cleaned)
	cleaned = strings.TrimSpace(unicodecheck.Clean(cleaned))

	if utf8.RuneCountInString(cleaned) > MaxDisplayNameRunes {
		runes := []rune(cleaned)
		cleaned = strings.TrimSpace(string(runes[:MaxDisplayNameRunes]))
	}
	return cleaned
}

// IsGeneric reports whether name is empty or a placeholder that should be
// replaced with a directory lookup
func IsGeneric(name string) bool {
	_, ok := genericNames[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
