// Package logging builds the process-wide structured logger.
//
// Every component receives a named child of the root logger
// (logger.Named("orchestrator"), logger.Named("recovery"), …) so log lines
// carry their origin without per-call boilerplate. Sensitive fields are
// redacted before emission; see Redact.
package logging

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Redacted replaces the value of a sensitive field.
const Redacted = "[FILTERED]"

// sensitiveKeys are matched case-insensitively as substrings of field keys.
var sensitiveKeys = []string{
	"password",
	"token",
	"authorization",
	"apikey",
	"secret",
	"accesstoken",
	"refreshtoken",
}

// New builds the root logger. Development mode switches to console encoding
// with human-readable timestamps; production emits JSON.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return cfg.Build()
}

// NewNop returns a no-op logger for tests.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// IsSensitiveKey reports whether a field key must be redacted.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// String returns a zap string field, redacting the value when the key is
// sensitive. Use this helper for any field whose key comes from external
// input (config dumps, request headers, provider metadata).
func String(key, value string) zap.Field {
	if IsSensitiveKey(key) {
		return zap.String(key, Redacted)
	}
	return zap.String(key, value)
}

// Redact applies redaction to a whole key/value map, e.g. before logging
// provider metadata.
func Redact(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if IsSensitiveKey(k) {
			out[k] = Redacted
		} else {
			out[k] = v
		}
	}
	return out
}

// Timed logs the duration of an operation at debug level. Use with defer:
//
//	defer logging.Timed(log, "build_graph")()
func Timed(log *zap.Logger, op string) func() {
	start := time.Now()
	return func() {
		log.Debug("operation completed",
			zap.String("op", op),
			zap.Duration("took", time.Since(start)),
		)
	}
}
