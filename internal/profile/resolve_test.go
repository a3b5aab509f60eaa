package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	dir := &countingDirectory{names: map[string]string{"alice": "Alice Liddell", "bob": "guest"}}
	ctx := context.Background()

	tests := []struct {
		name      string
		dir       Directory
		userID    string
		candidate string
		want      string
		wantOK    bool
	}{
		{"real candidate wins", dir, "alice", "Al", "Al", true},
		{"empty candidate uses directory", dir, "alice", "", "Alice Liddell", true},
		{"generic candidate uses directory", dir, "alice", "Anonymous", "Alice Liddell", true},
		{"generic directory entry falls back", dir, "bob", "user", "bob", false},
		{"unknown user falls back", dir, "carol", "", "carol", false},
		{"nil directory falls back", nil, "dave", "", "dave", false},
		{"candidate is sanitized", nil, "eve", "<b>Eve</b>", "Eve", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(ctx, tt.dir, tt.userID, tt.candidate)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
