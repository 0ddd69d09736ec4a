// Package logger defines the structured logging contract used across ssoguard.
// The production implementation is backed by zap (see internal/infrastructure/monitoring).
//
// 日志接口与字段构造器；具体实现位于 monitoring 包。
package logger

import (
	"context"
	"strings"
	"time"

	"github.com/turtacn/ssoguard/pkg/constants"
)

// Logger is the structured logger handed to every component.
type Logger interface {
	Debug(ctx context.Context, message string, fields ...Field)
	Info(ctx context.Context, message string, fields ...Field)
	Warn(ctx context.Context, message string, fields ...Field)
	// Error records err under the "error" key in addition to fields.
	Error(ctx context.Context, message string, err error, fields ...Field)
	// Fatal logs and exits the process.
	Fatal(ctx context.Context, message string, err error, fields ...Field)

	WithFields(fields ...Field) Logger
	// WithComponent tags every entry with component=<name>.
	WithComponent(component string) Logger

	// SetLevel changes the level at runtime; config hot-reload goes through here.
	SetLevel(level constants.LogLevel)
	GetLevel() constants.LogLevel
}

// Field is one key/value pair of a log entry. Values under sensitive keys are masked
// by the backend before they are written.
type Field struct {
	Key   string
	Value interface{}
}

func String(key string, value string) Field    { return Field{Key: key, Value: value} }
func Strings(key string, value []string) Field { return Field{Key: key, Value: value} }
func Int(key string, value int) Field          { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field      { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field        { return Field{Key: key, Value: value} }
func Any(key string, value interface{}) Field  { return Field{Key: key, Value: value} }

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Time renders value as RFC 3339 in UTC.
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value.UTC().Format(time.RFC3339)}
}

// Error creates the "error" field; a nil error yields a nil value.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Subject names the principal a log entry is about.
func Subject(subject string) Field { return Field{Key: "subject", Value: subject} }

// Fingerprint carries a revocation identifier. Raw bearer tokens are never logged;
// log their fingerprint instead.
func Fingerprint(fp string) Field { return Field{Key: "token_fingerprint", Value: fp} }

var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"private_key",
	"client_secret",
}

// SanitizeValue masks the value of fields whose key looks sensitive.
// Keys ending in "_fingerprint" or "_id" are identifiers and pass through.
func SanitizeValue(key string, value interface{}) interface{} {
	k := strings.ToLower(key)
	if strings.HasSuffix(k, "_fingerprint") || strings.HasSuffix(k, "_id") {
		return value
	}
	for _, s := range sensitiveKeys {
		if !strings.Contains(k, s) {
			continue
		}
		if str, ok := value.(string); ok && str != "" {
			return maskString(str)
		}
		return "***REDACTED***"
	}
	return value
}

// maskString keeps four characters at each end of values longer than eight.
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***" + s[len(s)-4:]
}

var globalLogger Logger = NewNoopLogger()

// SetGlobalLogger replaces the process-wide fallback logger. nil is ignored.
func SetGlobalLogger(l Logger) {
	if l != nil {
		globalLogger = l
	}
}

// GetGlobalLogger returns the logger used by components constructed without one.
func GetGlobalLogger() Logger {
	return globalLogger
}
