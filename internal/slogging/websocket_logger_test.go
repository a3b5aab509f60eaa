package slogging

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactWebSocketMessage(t *testing.T) {
	t.Run("redacts nested token fields", func(t *testing.T) {
		in := `{"type":"join_room","roomId":"r1","auth":{"token":"abcdefghijklmnopqrstuvwxyz"},"password":"x"}`

		var out map[string]any
		require.NoError(t, json.Unmarshal([]byte(RedactWebSocketMessage(in)), &out))

		assert.Equal(t, "join_room", out["type"])
		assert.Equal(t, "r1", out["roomId"])
		assert.NotContains(t, out, "password")
		auth := out["auth"].(map[string]any)
		assert.Contains(t, auth["token"], "REDACTED")
	})

	t.Run("redacts inside arrays", func(t *testing.T) {
		in := `{"items":[{"jwt":"abcdefghijklmnopqrstuvwxyz"}]}`
		assert.NotContains(t, RedactWebSocketMessage(in), "klmnopq")
	})

	t.Run("leaves non-json untouched when harmless", func(t *testing.T) {
		assert.Equal(t, "not json", RedactWebSocketMessage("not json"))
	})

	t.Run("empty stays empty", func(t *testing.T) {
		assert.Equal(t, "", RedactWebSocketMessage(""))
	})
}

func TestLogWebSocketMessage_DisabledIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		LogWebSocketMessage(WSMessageInbound, "c1", "u1", "draw", []byte(`{}`), WebSocketLoggingConfig{})
	})
}
