package logging

import "errors"

// MultiLogger sends every entry to each of its loggers in order.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger combines loggers. Nil loggers are dropped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	kept := make([]Logger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			kept = append(kept, l)
		}
	}
	return &MultiLogger{loggers: kept}
}

func (m *MultiLogger) each(fn func(Logger)) {
	for _, l := range m.loggers {
		fn(l)
	}
}

func (m *MultiLogger) Info(msg string, fields ...Field) {
	m.each(func(l Logger) { l.Info(msg, fields...) })
}

func (m *MultiLogger) Warn(msg string, fields ...Field) {
	m.each(func(l Logger) { l.Warn(msg, fields...) })
}

func (m *MultiLogger) Error(msg string, fields ...Field) {
	m.each(func(l Logger) { l.Error(msg, fields...) })
}

func (m *MultiLogger) Debug(msg string, fields ...Field) {
	m.each(func(l Logger) { l.Debug(msg, fields...) })
}

// WithFields derives a child from every logger.
func (m *MultiLogger) WithFields(fields ...Field) Logger {
	children := make([]Logger, 0, len(m.loggers))
	m.each(func(l Logger) { children = append(children, l.WithFields(fields...)) })
	return &MultiLogger{loggers: children}
}

// Close closes every logger and joins their errors.
func (m *MultiLogger) Close() error {
	var errs []error
	m.each(func(l Logger) {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}
