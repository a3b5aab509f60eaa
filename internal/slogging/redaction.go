package slogging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// RedactionAction defines how sensitive data should be handled
type RedactionAction string

const (
	// RedactionOmit removes the field entirely from logs
	RedactionOmit RedactionAction = "omit"
	// RedactionObfuscate replaces the value with [REDACTED]
	RedactionObfuscate RedactionAction = "obfuscate"
	// RedactionPartial shows first and last few characters with middle redacted
	RedactionPartial RedactionAction = "partial"
)

const redactedMarker = "[REDACTED]"

// RedactionRule defines a single redaction rule
type RedactionRule struct {
	// FieldPattern is a regex pattern to match attribute keys
	FieldPattern string `yaml:"field_pattern" json:"field_pattern"`
	// Action specifies what to do with matching fields
	Action RedactionAction `yaml:"action" json:"action"`

	compiledPattern *regexp.Regexp
}

// RedactionConfig holds all redaction rules
type RedactionConfig struct {
	Enabled bool            `yaml:"enabled" json:"enabled"`
	Rules   []RedactionRule `yaml:"rules" json:"rules"`
}

// DefaultRedactionConfig masks credentials that may show up in handshake and auth logs
func DefaultRedactionConfig() RedactionConfig {
	return RedactionConfig{
		Enabled: true,
		Rules: []RedactionRule{
			{FieldPattern: "(?i)(authorization|bearer|token|jwt)", Action: RedactionPartial},
			{FieldPattern: "(?i)(password|secret|api_key|private_key)", Action: RedactionOmit},
			{FieldPattern: "(?i)(cookie)", Action: RedactionPartial},
		},
	}
}

// CompileRules compiles regex patterns for all rules
func (rc *RedactionConfig) CompileRules() error {
	for i := range rc.Rules {
		pattern, err := regexp.Compile(rc.Rules[i].FieldPattern)
		if err != nil {
			return fmt.Errorf("failed to compile redaction pattern '%s': %w", rc.Rules[i].FieldPattern, err)
		}
		rc.Rules[i].compiledPattern = pattern
	}
	return nil
}

// match returns the first rule whose pattern matches the key
func (rc *RedactionConfig) match(key string) (RedactionRule, bool) {
	for _, rule := range rc.Rules {
		if rule.compiledPattern != nil && rule.compiledPattern.MatchString(key) {
			return rule, true
		}
	}
	return RedactionRule{}, false
}

// partialRedactValue keeps a recognizable prefix/suffix of a credential
func partialRedactValue(value string) string {
	if len(value) <= 12 {
		return redactedMarker
	}

	if strings.HasPrefix(strings.ToLower(value), "bearer ") {
		return value[:7] + partialRedactValue(value[7:])
	}

	// JWTs: keep the start of the header and the tail of the signature
	if strings.Count(value, ".") == 2 && strings.HasPrefix(value, "eyJ") {
		parts := strings.Split(value, ".")
		header, signature := parts[0], parts[2]
		if len(header) > 8 {
			header = header[:8] + "...REDACTED..."
		}
		if len(signature) > 4 {
			signature = "...REDACTED..." + signature[len(signature)-4:]
		}
		return header + ".REDACTED." + signature
	}

	visibleStart, visibleEnd := 6, 4
	if len(value) < visibleStart+visibleEnd+10 {
		visibleStart, visibleEnd = 3, 2
	}
	return value[:visibleStart] + "...REDACTED..." + value[len(value)-visibleEnd:]
}

// redactionHandler wraps another slog.Handler to apply redaction rules
type redactionHandler struct {
	handler slog.Handler
	config  RedactionConfig
}

// NewRedactionHandler creates a new redaction handler
func NewRedactionHandler(handler slog.Handler, config RedactionConfig) (slog.Handler, error) {
	if err := config.CompileRules(); err != nil {
		return nil, err
	}
	return &redactionHandler{handler: handler, config: config}, nil
}

func (h *redactionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *redactionHandler) Handle(ctx context.Context, record slog.Record) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, record)
	}

	redacted := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		if a, keep := h.redactAttribute(attr); keep {
			redacted.AddAttrs(a)
		}
		return true
	})
	return h.handler.Handle(ctx, redacted)
}

func (h *redactionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	kept := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		if a, keep := h.redactAttribute(attr); keep {
			kept = append(kept, a)
		}
	}
	return &redactionHandler{handler: h.handler.WithAttrs(kept), config: h.config}
}

func (h *redactionHandler) WithGroup(name string) slog.Handler {
	return &redactionHandler{handler: h.handler.WithGroup(name), config: h.config}
}

// redactAttribute returns the attribute to log and whether to keep it at all
func (h *redactionHandler) redactAttribute(attr slog.Attr) (slog.Attr, bool) {
	if !h.config.Enabled {
		return attr, true
	}

	rule, ok := h.config.match(attr.Key)
	if !ok {
		return attr, true
	}

	switch rule.Action {
	case RedactionOmit:
		return slog.Attr{}, false
	case RedactionObfuscate:
		return slog.String(attr.Key, redactedMarker), true
	case RedactionPartial:
		return slog.String(attr.Key, partialRedactValue(attr.Value.String())), true
	default:
		return attr, true
	}
}

// SanitizeLogMessage removes newlines and other control whitespace from log messages
func SanitizeLogMessage(message string) string {
	message = strings.ReplaceAll(message, "\n", " ")
	message = strings.ReplaceAll(message, "\r", " ")
	message = strings.ReplaceAll(message, "\t", " ")
	return strings.TrimSpace(strings.Join(strings.Fields(message), " "))
}

// RedactSensitiveInfo masks a free-form string if it looks like it carries a credential
func RedactSensitiveInfo(input string) string {
	if input == "" {
		return input
	}

	config := DefaultRedactionConfig()
	if err := config.CompileRules(); err != nil {
		return redactedMarker
	}

	rule, ok := config.match(input)
	if !ok {
		return input
	}
	if rule.Action == RedactionPartial {
		return partialRedactValue(input)
	}
	return redactedMarker
}
