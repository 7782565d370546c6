package process

import (
	"bufio"
	"io"
)

// Logger defines the logging interface for subprocess management.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// captureOutput logs each line read from r until EOF.
func captureOutput(logger Logger, name, stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Debug("process output",
			"name", name,
			"stream", stream,
			"output", scanner.Text(),
		)
	}
}
