package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger and scrubs secrets and identifier-shaped values
// from every field before it is written.
//
// Document text must never be passed to the logger. Callers log sizes,
// counts and durations instead; the field filter is a second line of
// protection, not the first.
//
// Example:
//
//	logger, err := NewLogger(Options{Development: true, FilePath: "medextract.log"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("document extracted", zap.Int("pages", 3))
type Logger struct {
	zap      *zap.Logger
	filePath string
}

// Options controls how NewLogger builds its cores.
type Options struct {
	// Development selects colored console output and debug level.
	Development bool

	// FilePath enables a rotating JSON log file. Empty disables file output.
	FilePath string

	// Level overrides the mode's default level ("debug", "info", ...).
	Level string

	// File tunes rotation. Zero fields fall back to defaults.
	File FileWriterConfig

	// Console receives console output. Defaults to os.Stdout.
	Console io.Writer
}

// NewLogger creates a Logger from opts.
//
// The file is opened eagerly so a bad path is reported at startup rather
// than at the first write.
func NewLogger(opts Options) (*Logger, error) {
	level := zapcore.InfoLevel
	if opts.Development {
		level = zapcore.DebugLevel
	}
	if opts.Level != "" {
		level = ParseLogLevelString(opts.Level, level)
	}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	consoleWriter := zapcore.AddSync(console)

	var core zapcore.Core
	if opts.FilePath == "" {
		core = NewConsoleCore(level, consoleWriter, opts.Development)
	} else {
		if err := ensureWritable(opts.FilePath); err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		fileWriter := NewFileWriterWithConfig(opts.FilePath, opts.File)
		core = NewMultiCoreWithWriters(level, consoleWriter, fileWriter, opts.Development)
	}

	return &Logger{
		zap:      zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)),
		filePath: opts.FilePath,
	}, nil
}

// NewNop returns a Logger that discards everything. Used by tests and by
// components constructed without a logger.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// FromZap wraps an existing zap logger, e.g. one built on zaptest/observer.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{zap: z}
}

func ensureWritable(path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// Sync flushes buffered entries. Call before exit.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	return l.zap.Sync()
}

func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, redactFields(fields)...)
}

func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, redactFields(fields)...)
}

func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, redactFields(fields)...)
}

func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, redactFields(fields)...)
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{
		zap:      l.zap.With(redactFields(fields)...),
		filePath: l.filePath,
	}
}

// Named returns a child logger with a sub-name, e.g. "redaction".
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		zap:      l.zap.Named(name),
		filePath: l.filePath,
	}
}

// ForRequest returns a child logger tagged with a request id.
func (l *Logger) ForRequest(requestID string) *Logger {
	return l.With(zap.String(FieldRequestID, requestID))
}

func (l *Logger) FilePath() string {
	return l.filePath
}

func redactFields(fields []zap.Field) []zap.Field {
	if len(fields) == 0 {
		return fields
	}
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = redactField(f)
	}
	return out
}

func redactField(field zap.Field) zap.Field {
	if IsSensitiveField(field.Key) {
		return zap.String(field.Key, RedactedPlaceholder)
	}
	switch field.Type {
	case zapcore.StringType:
		if redacted := RedactSensitiveData(field.String); redacted != field.String {
			return zap.String(field.Key, redacted)
		}
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok && err != nil {
			msg := err.Error()
			if redacted := RedactSensitiveData(msg); redacted != msg {
				return zap.String(field.Key, redacted)
			}
		}
	}
	return field
}
