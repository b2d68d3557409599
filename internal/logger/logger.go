package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging surface used across the scraper.
type Logger interface {
	DebugObj(msg, key string, obj map[string]any)
	InfoObj(msg, key string, obj map[string]any)
	WarnObj(msg, key string, obj map[string]any)
	ErrorObj(msg, key string, obj map[string]any)
	Debugf(format string, args ...any)
	Sync() error
}

type zapLogger struct {
	l *zap.Logger
	s *zap.SugaredLogger
}

// New builds a zap-backed Logger. format is "json" or "console".
func New(level, format string) (Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return FromZap(l), nil
}

// FromZap wraps an existing zap logger.
func FromZap(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &zapLogger{l: l, s: l.Sugar()}
}

func (z *zapLogger) DebugObj(msg, key string, obj map[string]any) {
	z.l.Debug(msg, zap.Any(key, obj))
}

func (z *zapLogger) InfoObj(msg, key string, obj map[string]any) {
	z.l.Info(msg, zap.Any(key, obj))
}

func (z *zapLogger) WarnObj(msg, key string, obj map[string]any) {
	z.l.Warn(msg, zap.Any(key, obj))
}

func (z *zapLogger) ErrorObj(msg, key string, obj map[string]any) {
	z.l.Error(msg, zap.Any(key, obj))
}

func (z *zapLogger) Debugf(format string, args ...any) {
	z.s.Debugf(format, args...)
}

func (z *zapLogger) Sync() error {
	return z.l.Sync()
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) DebugObj(string, string, map[string]any) {}
func (NopLogger) InfoObj(string, string, map[string]any)  {}
func (NopLogger) WarnObj(string, string, map[string]any)  {}
func (NopLogger) ErrorObj(string, string, map[string]any) {}
func (NopLogger) Debugf(string, ...any)                   {}
func (NopLogger) Sync() error                             { return nil }

// Ensure returns log, or a NopLogger when log is nil.
func Ensure(log Logger) Logger {
	if log == nil {
		return NopLogger{}
	}
	return log
}
