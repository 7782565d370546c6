package process

import "errors"

var (
	// ErrEmptyCommand is returned when argv has no executable.
	ErrEmptyCommand = errors.New("process: empty command")

	// ErrAlreadyRunning is returned when Start is called on a running session.
	ErrAlreadyRunning = errors.New("process: session already running")

	// ErrTimeout is returned when a one-shot command exceeds its timeout.
	ErrTimeout = errors.New("process: command timed out")
)
