package unicodecheck

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain ascii", "Alice", "Alice"},
		{"cjk untouched", "山田太郎", "山田太郎"},
		{"zero width space", "Al\u200Bice", "Alice"},
		{"bidi override", "\u202Eecila", "ecila"},
		{"hangul filler", "\u3164", ""},
		{"control chars", "Ali\x00ce\x07", "Alice"},
		{"newline removed", "Alice\nBob", "AliceBob"},
		{"private use", "A\uE000B", "AB"},
		{"decomposed becomes composed", "Jose\u0301", "Jos\u00E9"},
		{"zalgo truncated", "a\u0300\u0301\u0302\u0303b", "\u00E0\u0301\u0302b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.input))
		})
	}
}

func TestIsClean(t *testing.T) {
	assert.True(t, IsClean("Bob"))
	assert.False(t, IsClean("B\u200Dob"))
	assert.False(t, IsClean(strings.Repeat("\u0301", 5)))
}

func TestIsInvisible(t *testing.T) {
	assert.True(t, IsInvisible('\uFEFF'))
	assert.False(t, IsInvisible('a'))
}
