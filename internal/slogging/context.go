package slogging

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request correlation id
	RequestIDHeader = "X-Request-ID"
	// ContextKeyLogger is the gin context key the request logger is stored under
	ContextKeyLogger = "logger"
	// ContextKeyUserID is the gin context key the authenticated user id is stored under
	ContextKeyUserID = "userID"
)

// GinContextLike defines a minimal interface for contexts that can be used with the logger
type GinContextLike interface {
	Get(key any) (any, bool)
	GetHeader(key string) string
	ClientIP() string
}

// GetContextLogger retrieves the request logger from the context or falls back to the global one
func GetContextLogger(c GinContextLike) SimpleLogger {
	if value, exists := c.Get(ContextKeyLogger); exists {
		if logger, ok := value.(SimpleLogger); ok {
			return logger
		}
	}
	return Get()
}

// WithContext returns a logger that tags every record with request id, client ip and user
func (l *Logger) WithContext(c GinContextLike) *Logger {
	requestID := c.GetHeader(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.New().String()
		if setter, ok := c.(interface{ Header(string, string) }); ok {
			setter.Header(RequestIDHeader, requestID)
		}
	}

	userID := ""
	if value, exists := c.Get(ContextKeyUserID); exists {
		userID = fmt.Sprintf("%v", value)
	}

	return l.With(
		slog.String("request_id", requestID),
		slog.String("client_ip", c.ClientIP()),
		slog.String("user_id", userID),
	)
}
