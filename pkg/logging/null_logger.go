package logging

// NullLogger drops every entry. Components use it until a logger
// option replaces it.
type NullLogger struct{}

func (NullLogger) Info(string, ...Field)      {}
func (NullLogger) Warn(string, ...Field)      {}
func (NullLogger) Error(string, ...Field)     {}
func (NullLogger) Debug(string, ...Field)     {}
func (NullLogger) WithFields(...Field) Logger { return NullLogger{} }
func (NullLogger) Close() error               { return nil }
