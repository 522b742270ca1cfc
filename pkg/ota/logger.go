package ota

import (
	"fmt"
	"log"
)

// Logger is the leveled logging seam the Updater writes through, typically
// a *log.Logger wrapped by NewStdLogger, called through leveled methods.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// stdLogger adapts a standard library *log.Logger into Logger by prefixing
// each line with its level.
type stdLogger struct {
	l *log.Logger
}

// NewStdLogger wraps l, a line-prefixed logger constructed via
// log.New(w, prefix, log.LstdFlags) over any writer (the CLI uses stderr).
func NewStdLogger(l *log.Logger) Logger {
	return &stdLogger{l: l}
}

func (s *stdLogger) Debugf(format string, args ...any) { s.logf("DEBUG", format, args...) }
func (s *stdLogger) Infof(format string, args ...any)  { s.logf("INFO", format, args...) }
func (s *stdLogger) Warnf(format string, args ...any)  { s.logf("WARN", format, args...) }
func (s *stdLogger) Errorf(format string, args ...any) { s.logf("ERROR", format, args...) }

func (s *stdLogger) logf(level, format string, args ...any) {
	s.l.Printf("%s %s", level, fmt.Sprintf(format, args...))
}

// noopLogger discards everything; the zero-value Updater default.
type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}
