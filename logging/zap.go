// Package logging adapts zap to the printf style Logger used by the recovery
// flows, the remote client and the stub service.
package logging

import (
	"strings"

	recovery "github.com/goliatone/go-auth-recovery"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger forwards to a zap SugaredLogger.
type Logger struct {
	sugar *zap.SugaredLogger
}

var _ recovery.Logger = (*Logger)(nil)

// New wraps sugar. A nil sugar discards everything.
func New(sugar *zap.SugaredLogger) *Logger {
	if sugar == nil {
		sugar = zap.NewNop().Sugar()
	}
	return &Logger{sugar: sugar}
}

// NewDevelopment builds a console logger at the named level ("debug",
// "info", "warn", "error"). Unknown levels fall back to info.
func NewDevelopment(level string) (*Logger, func(), error) {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	config.DisableStacktrace = true

	logger, err := config.Build()
	if err != nil {
		return nil, func() {}, err
	}
	return New(logger.Sugar()), func() { _ = logger.Sync() }, nil
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(level string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Named returns a child logger scoped to name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{sugar: l.sugar.Named(name)}
}

func (l *Logger) Debug(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...any) { l.sugar.Errorf(format, args...) }
