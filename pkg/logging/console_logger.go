package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

var levelColors = map[LogLevel]string{
	LevelDebug: colorGray,
	LevelInfo:  colorBlue,
	LevelWarn:  colorYellow,
	LevelError: colorRed,
}

// ConsoleLogger writes colored single-line entries for humans:
//
//	15:04:05 [INFO ] list rotated list=daily visible=3
type ConsoleLogger struct {
	mu      *sync.Mutex
	output  io.Writer
	verbose bool
	fields  []Field
}

// NewConsoleLogger creates a console logger writing to stdout.
// Debug entries are written only when verbose is set.
func NewConsoleLogger(verbose bool) *ConsoleLogger {
	return NewConsoleLoggerTo(os.Stdout, verbose)
}

// NewConsoleLoggerTo creates a console logger writing to w.
func NewConsoleLoggerTo(w io.Writer, verbose bool) *ConsoleLogger {
	return &ConsoleLogger{mu: &sync.Mutex{}, output: w, verbose: verbose}
}

func (c *ConsoleLogger) log(level LogLevel, msg string, fields []Field) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s%s [%s%-5s%s] %s",
		colorGray, time.Now().Format("15:04:05"), colorReset,
		levelColors[level], level, colorReset, msg,
	)
	if len(c.fields)+len(fields) > 0 {
		b.WriteString(colorGray)
		for _, set := range [][]Field{c.fields, fields} {
			for _, f := range set {
				fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
			}
		}
		b.WriteString(colorReset)
	}
	b.WriteByte('\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.output, b.String())
}

func (c *ConsoleLogger) Info(msg string, fields ...Field)  { c.log(LevelInfo, msg, fields) }
func (c *ConsoleLogger) Warn(msg string, fields ...Field)  { c.log(LevelWarn, msg, fields) }
func (c *ConsoleLogger) Error(msg string, fields ...Field) { c.log(LevelError, msg, fields) }

// Debug writes only in verbose mode.
func (c *ConsoleLogger) Debug(msg string, fields ...Field) {
	if c.verbose {
		c.log(LevelDebug, msg, fields)
	}
}

// WithFields returns a child that prefixes fields to every
// entry and shares the parent's output.
func (c *ConsoleLogger) WithFields(fields ...Field) Logger {
	merged := make([]Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &ConsoleLogger{
		mu: c.mu, output: c.output, verbose: c.verbose, fields: merged,
	}
}

// Close does nothing; the console stays open.
func (c *ConsoleLogger) Close() error { return nil }
