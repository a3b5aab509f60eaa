package uuidgen

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		kind    Kind
		version uuid.Version
	}{
		{KindEvent, 7},
		{KindConnection, 4},
		{KindRequest, 4},
		{Kind("other"), 4},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			id, err := New(tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.version, id.Version())
		})
	}
}

func TestNewString_EventIDsSort(t *testing.T) {
	prev := NewString(KindEvent)
	for i := 0; i < 50; i++ {
		next := NewString(KindEvent)
		_, err := uuid.Parse(next)
		require.NoError(t, err)
		assert.LessOrEqual(t, prev[:13], next[:13], "v7 ids share a time-ordered prefix")
		prev = next
	}
}
