package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// LoggerConfig configures the JSONLogger.
type LoggerConfig struct {
	// OutputPath is the log file. Empty means stdout.
	OutputPath string
	Level      LogLevel

	// Verbose lowers Level to LevelDebug.
	Verbose bool

	// Fields are attached to every entry.
	Fields []Field
}

// lockedFile serializes writes from a JSONLogger and its
// children and stops writing once closed.
type lockedFile struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

func (f *lockedFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return len(p), nil
	}
	return f.w.Write(p)
}

func (f *lockedFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if c, ok := f.w.(io.Closer); ok && f.w != os.Stdout {
		return c.Close()
	}
	return nil
}

// JSONLogger writes one JSON object per line through a
// slog.JSONHandler. Entries carry "time", "level", "msg" and one
// key per field.
type JSONLogger struct {
	out    *lockedFile
	logger *slog.Logger
}

// NewJSONLogger creates a JSON logger. The log file and its
// directory are created when missing.
func NewJSONLogger(config LoggerConfig) (*JSONLogger, error) {
	out := &lockedFile{w: os.Stdout}
	if config.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(config.OutputPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(
			config.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out.w = file
	}

	level := config.Level
	if config.Verbose {
		level = LevelDebug
	}
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level.slogLevel(),
	})
	return &JSONLogger{
		out:    out,
		logger: slog.New(handler).With(attrs(config.Fields)...),
	}, nil
}

func attrs(fields []Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

func (l *JSONLogger) log(level LogLevel, msg string, fields []Field) {
	l.logger.Log(context.Background(), level.slogLevel(), msg, attrs(fields)...)
}

// Info logs an informational message.
func (l *JSONLogger) Info(msg string, fields ...Field) { l.log(LevelInfo, msg, fields) }

// Warn logs a warning message.
func (l *JSONLogger) Warn(msg string, fields ...Field) { l.log(LevelWarn, msg, fields) }

// Error logs an error message.
func (l *JSONLogger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }

// Debug logs a debug message.
func (l *JSONLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }

// WithFields returns a child writing to the same file. Closing
// either closes the file.
func (l *JSONLogger) WithFields(fields ...Field) Logger {
	return &JSONLogger{out: l.out, logger: l.logger.With(attrs(fields)...)}
}

// Close closes the log file. Stdout is never closed.
func (l *JSONLogger) Close() error {
	return l.out.Close()
}
