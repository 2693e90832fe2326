// Package logger builds the process-wide zap logger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production zap logger at the given level ("debug", "info", "warn", "error")
// and installs it as the zap global so background helpers can use zap.L().
// An unknown level falls back to info.
func New(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	zap.ReplaceGlobals(l)
	return l
}

// MaskEmail hides the local part of an email for logs ("j***@khwopa.edu.np").
func MaskEmail(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			if i == 0 {
				return email
			}
			return email[:1] + "***" + email[i:]
		}
	}
	return "***"
}
