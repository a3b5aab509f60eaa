// Package unicodecheck removes Unicode that can be used to spoof or garble
// short user-visible strings such as display names.
package unicodecheck

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var invisibleChars = []rune{
	'\u200B', // Zero Width Space
	'\u200C', // Zero Width Non-Joiner
	'\u200D', // Zero Width Joiner
	'\u200E', // Left-to-Right Mark
	'\u200F', // Right-to-Left Mark
	'\uFEFF', // Byte Order Mark
	'\u202A', // Left-to-Right Embedding
	'\u202B', // Right-to-Left Embedding
	'\u202C', // Pop Directional Formatting
	'\u202D', // Left-to-Right Override
	'\u202E', // Right-to-Left Override
	'\u2066', // Left-to-Right Isolate
	'\u2067', // Right-to-Left Isolate
	'\u2068', // First Strong Isolate
	'\u2069', // Pop Directional Isolate
	'\u3164', // Hangul Filler
	'\uFFA0', // Halfwidth Hangul Filler
}

// MaxCombiningRun is the longest run of combining marks Clean keeps
const MaxCombiningRun = 2

// IsInvisible reports whether r is a zero-width, bidi control or filler rune
func IsInvisible(r rune) bool {
	return slices.Contains(invisibleChars, r)
}

// isProblematic covers private use, surrogates and non-characters
func isProblematic(r rune) bool {
	return unicode.Is(unicode.Co, r) ||
		unicode.Is(unicode.Cs, r) ||
		(r >= 0xFDD0 && r <= 0xFDEF) ||
		r&0xFFFF == 0xFFFE || r&0xFFFF == 0xFFFF
}

// Clean returns s in NFC form with control characters, invisible runes and
// problematic code points removed, and runs of combining marks (Zalgo text)
// truncated to MaxCombiningRun.
func Clean(s string) string {
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	combining := 0
	for _, r := range s {
		switch {
		case r == unicode.ReplacementChar:
			continue
		case unicode.IsControl(r), IsInvisible(r), isProblematic(r):
			continue
		case unicode.Is(unicode.Mn, r):
			combining++
			if combining > MaxCombiningRun {
				continue
			}
		default:
			combining = 0
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsClean reports whether Clean would leave s unchanged
func IsClean(s string) bool {
	return Clean(s) == s
}
