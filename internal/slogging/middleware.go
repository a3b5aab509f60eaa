package slogging

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggerMiddleware returns a Gin middleware for logging requests using slog
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := Get().WithContext(c)
		c.Set(ContextKeyLogger, logger)

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status_code", status),
			slog.Duration("duration", latency),
			slog.Int("response_size", c.Writer.Size()),
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			logger.ErrorCtx(ctx, "Request completed with server error", attrs...)
		case status >= 400:
			logger.WarnCtx(ctx, "Request completed with client error", attrs...)
		default:
			logger.DebugCtx(ctx, "Request completed", attrs...)
		}
	}
}

// Recoverer creates middleware for recovering from panics using slog
func Recoverer() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger := Get().WithContext(c)

				buf := make([]byte, 2048)
				n := runtime.Stack(buf, false)

				logger.ErrorCtx(c.Request.Context(), "Panic recovered",
					slog.Any("panic_value", err),
					slog.String("stack_trace", string(buf[:n])),
					slog.String("method", c.Request.Method),
					slog.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatus(500)
			}
		}()
		c.Next()
	}
}
