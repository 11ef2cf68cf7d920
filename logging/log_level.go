package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// ParseLogLevelString maps a LOG_LEVEL value to a zap level, falling back to
// defaultLevel for empty or unknown input. Case-insensitive.
func ParseLogLevelString(levelStr string, defaultLevel zapcore.Level) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return defaultLevel
	}
}
