package slogging

import (
	"context"
	"encoding/json"
	"log/slog"
)

// WebSocketLoggingConfig holds configuration for WebSocket message logging
type WebSocketLoggingConfig struct {
	Enabled        bool
	RedactTokens   bool
	MaxMessageSize int64 // Max message size to log (in bytes)
}

// WSMessageDirection indicates the direction of the WebSocket message
type WSMessageDirection string

const (
	WSMessageInbound  WSMessageDirection = "INBOUND"
	WSMessageOutbound WSMessageDirection = "OUTBOUND"
)

// LogWebSocketMessage logs a frame at debug level with optional token redaction
func LogWebSocketMessage(direction WSMessageDirection, connID, userID, messageType string, data []byte, config WebSocketLoggingConfig) {
	if !config.Enabled {
		return
	}

	logger := Get()
	if logger.level > LogLevelDebug {
		return
	}

	attrs := []slog.Attr{
		slog.String("direction", string(direction)),
		slog.String("conn_id", connID),
		slog.String("user_id", userID),
		slog.String("message_type", messageType),
		slog.Int("size_bytes", len(data)),
	}

	if config.MaxMessageSize > 0 && int64(len(data)) > config.MaxMessageSize {
		attrs = append(attrs, slog.Bool("truncated", true))
		logger.slogger.LogAttrs(context.Background(), slog.LevelDebug, "WebSocket message", attrs...)
		return
	}

	content := string(data)
	if config.RedactTokens {
		content = RedactWebSocketMessage(content)
	}

	var parsed any
	if json.Unmarshal([]byte(content), &parsed) == nil {
		attrs = append(attrs, slog.Any("message_data", parsed))
	} else {
		attrs = append(attrs, slog.String("message_content", content))
	}
	logger.slogger.LogAttrs(context.Background(), slog.LevelDebug, "WebSocket message", attrs...)
}

// RedactWebSocketMessage applies redaction rules to WebSocket message content
func RedactWebSocketMessage(message string) string {
	if message == "" {
		return message
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(message), &data); err == nil {
		config := DefaultRedactionConfig()
		if err := config.CompileRules(); err != nil {
			return redactedMarker
		}
		if out, err := json.Marshal(redactJSONObject(&config, data)); err == nil {
			return string(out)
		}
	}

	return RedactSensitiveInfo(message)
}

func redactJSONObject(config *RedactionConfig, data map[string]any) map[string]any {
	result := make(map[string]any, len(data))
	for key, value := range data {
		if rule, ok := config.match(key); ok {
			switch rule.Action {
			case RedactionOmit:
				continue
			case RedactionPartial:
				if s, ok := value.(string); ok {
					result[key] = partialRedactValue(s)
					continue
				}
			}
			result[key] = redactedMarker
			continue
		}
		result[key] = redactJSONValue(config, value)
	}
	return result
}

func redactJSONValue(config *RedactionConfig, value any) any {
	switch v := value.(type) {
	case map[string]any:
		return redactJSONObject(config, v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redactJSONValue(config, item)
		}
		return out
	default:
		return value
	}
}

// LogWebSocketConnection logs connection lifecycle events (handshake, close, rejection)
func LogWebSocketConnection(event, connID, userID, remoteAddr string) {
	Get().slogger.LogAttrs(context.Background(), slog.LevelInfo, "WebSocket connection event",
		slog.String("event", event),
		slog.String("conn_id", connID),
		slog.String("user_id", userID),
		slog.String("remote_addr", remoteAddr),
	)
}
