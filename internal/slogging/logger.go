package slogging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents logging verbosity
type LogLevel int

const (
	// LogLevelDebug adds frame-level detail
	LogLevelDebug LogLevel = iota
	// LogLevelInfo covers connection and room lifecycle
	LogLevelInfo
	// LogLevelWarn covers dropped frames and degraded dependencies
	LogLevelWarn
	// LogLevelError covers failures only
	LogLevelError
)

const logFileName = "whiteboard.log"

var (
	globalLogger *Logger
	globalMu     sync.Mutex
	// where rotated files go when Config.LogDir is empty
	defaultLogDir = "logs"
)

// SimpleLogger defines the basic printf-style logging interface used across the app
type SimpleLogger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Logger wraps a slog.Logger with printf helpers and file rotation
type Logger struct {
	slogger    *slog.Logger
	level      LogLevel
	isDev      bool
	fileLogger *lumberjack.Logger
}

// Config holds configuration options for the logger
type Config struct {
	// Level is the threshold below which records are discarded
	Level LogLevel
	// IsDev selects the text handler and adds file/line info
	IsDev bool
	// LogDir holds whiteboard.log and its rotated siblings
	LogDir string
	// MaxAgeDays bounds how long rotated files are kept
	MaxAgeDays int
	// MaxSizeMB triggers rotation
	MaxSizeMB int
	// MaxBackups bounds the number of rotated files
	MaxBackups int
	// AlsoLogToConsole controls if logs also go to stdout
	AlsoLogToConsole bool
	// ConsoleOnly skips the rotating file entirely (tests, containers)
	ConsoleOnly bool
	// RedactionConfig overrides DefaultRedactionConfig when set
	RedactionConfig *RedactionConfig
}

// ParseLogLevel maps a config string to a LogLevel, defaulting to info
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// String is the lower-case level name
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) toSlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// sourceHandler adds a short source attribute in dev mode
type sourceHandler struct {
	handler slog.Handler
}

func (h *sourceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *sourceHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
		record.AddAttrs(slog.String("source", fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)))
	}
	return h.handler.Handle(ctx, record)
}

func (h *sourceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sourceHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *sourceHandler) WithGroup(name string) slog.Handler {
	return &sourceHandler{handler: h.handler.WithGroup(name)}
}

// NewLogger builds a logger writing to a rotated file, the console, or both
func NewLogger(config Config) (*Logger, error) {
	if config.LogDir == "" {
		config.LogDir = defaultLogDir
	}
	if config.MaxAgeDays <= 0 {
		config.MaxAgeDays = 7
	}
	if config.MaxSizeMB <= 0 {
		config.MaxSizeMB = 100
	}
	if config.MaxBackups <= 0 {
		config.MaxBackups = 10
	}

	var writer io.Writer
	var fileLogger *lumberjack.Logger
	if config.ConsoleOnly {
		writer = os.Stdout
	} else {
		if err := os.MkdirAll(config.LogDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		fileLogger = &lumberjack.Logger{
			Filename:   filepath.Join(config.LogDir, logFileName),
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAgeDays,
			Compress:   true,
		}
		if config.AlsoLogToConsole {
			writer = io.MultiWriter(os.Stdout, fileLogger)
		} else {
			writer = fileLogger
		}
	}

	handlerOpts := &slog.HandlerOptions{
		Level: config.Level.toSlogLevel(),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.UTC().Format(time.RFC3339Nano))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if config.IsDev {
		handler = slog.NewTextHandler(writer, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(writer, handlerOpts)
	}

	redactionConfig := DefaultRedactionConfig()
	if config.RedactionConfig != nil {
		redactionConfig = *config.RedactionConfig
	}
	handler, err := NewRedactionHandler(handler, redactionConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create redaction handler: %w", err)
	}
	if config.IsDev {
		handler = &sourceHandler{handler: handler}
	}

	return &Logger{
		slogger:    slog.New(handler),
		level:      config.Level,
		isDev:      config.IsDev,
		fileLogger: fileLogger,
	}, nil
}

// Initialize replaces the process-wide logger and slog default
func Initialize(config Config) error {
	logger, err := NewLogger(config)
	if err != nil {
		return err
	}

	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()

	slog.SetDefault(logger.slogger)
	return nil
}

// Get returns the global logger instance, initializing a console logger if needed
func Get() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger == nil {
		level := LogLevelInfo
		if env := os.Getenv("WHITEBOARD_LOG_LEVEL"); env != "" {
			level = ParseLogLevel(env)
		}
		logger, err := NewLogger(Config{Level: level, ConsoleOnly: true})
		if err != nil {
			handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
			logger = &Logger{slogger: slog.New(handler), level: LogLevelInfo}
		}
		globalLogger = logger
	}
	return globalLogger
}

// Close flushes and closes the rotating file, if any
func (l *Logger) Close() error {
	if l.fileLogger == nil {
		return nil
	}
	if err := l.fileLogger.Close(); err != nil {
		return fmt.Errorf("file logger close: %w", err)
	}
	return nil
}

// Level returns the minimum level this logger emits
func (l *Logger) Level() LogLevel {
	return l.level
}

// logf formats, sanitizes (CWE-117) and emits a printf-style message
func (l *Logger) logf(level LogLevel, format string, args []any) {
	if l.level > level {
		return
	}

	message := format
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	}
	l.slogger.Log(context.Background(), level.toSlogLevel(), SanitizeLogMessage(message))
}

// Debug logs a debug-level message
func (l *Logger) Debug(format string, args ...any) { l.logf(LogLevelDebug, format, args) }

// Info logs an info-level message
func (l *Logger) Info(format string, args ...any) { l.logf(LogLevelInfo, format, args) }

// Warn logs a warning-level message
func (l *Logger) Warn(format string, args ...any) { l.logf(LogLevelWarn, format, args) }

// Error logs an error-level message
func (l *Logger) Error(format string, args ...any) { l.logf(LogLevelError, format, args) }

// DebugCtx logs msg at debug with attrs
func (l *Logger) DebugCtx(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.slogger.LogAttrs(ctx, slog.LevelDebug, SanitizeLogMessage(msg), attrs...)
}

// InfoCtx logs msg at info with attrs
func (l *Logger) InfoCtx(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.slogger.LogAttrs(ctx, slog.LevelInfo, SanitizeLogMessage(msg), attrs...)
}

// WarnCtx logs msg at warn with attrs
func (l *Logger) WarnCtx(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.slogger.LogAttrs(ctx, slog.LevelWarn, SanitizeLogMessage(msg), attrs...)
}

// ErrorCtx logs msg at error with attrs
func (l *Logger) ErrorCtx(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.slogger.LogAttrs(ctx, slog.LevelError, SanitizeLogMessage(msg), attrs...)
}

// With returns a component logger carrying the given attributes on every record
func (l *Logger) With(attrs ...slog.Attr) *Logger {
	args := make([]any, 0, len(attrs))
	for _, a := range attrs {
		args = append(args, a)
	}
	return &Logger{
		slogger:    l.slogger.With(args...),
		level:      l.level,
		isDev:      l.isDev,
		fileLogger: l.fileLogger,
	}
}

// GetSlogger exposes the wrapped slog.Logger for key/value logging
func (l *Logger) GetSlogger() *slog.Logger {
	return l.slogger
}
