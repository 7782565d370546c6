package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// defaultRunTimeout bounds one-shot commands when no timeout is configured.
const defaultRunTimeout = 10 * time.Second

// maxErrorOutput caps how much stderr is folded into an error message.
const maxErrorOutput = 512

// Runner executes one-shot commands.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Runner struct {
	timeout time.Duration
	logger  Logger
}

// NewRunner creates a Runner whose Run calls are bounded by timeout.
// A zero timeout selects the default of 10 seconds.
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	return &Runner{
		timeout: timeout,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	r.logger = logger
}

// Run executes argv and waits for it to exit. A non-zero exit status is
// returned as an error that includes the tail of stderr.
func (r *Runner) Run(ctx context.Context, name string, argv []string) error {
	if len(argv) == 0 || argv[0] == "" {
		return ErrEmptyCommand
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // argv comes from the operator's config
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.logger.Debug("running command", "name", name, "argv", argv)

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: %s after %v", ErrTimeout, name, r.timeout)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxErrorOutput {
			msg = msg[len(msg)-maxErrorOutput:]
		}
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Start launches argv without waiting for it. The process is reaped in the
// background and a non-zero exit is logged.
func (r *Runner) Start(name string, argv []string) error {
	if len(argv) == 0 || argv[0] == "" {
		return ErrEmptyCommand
	}

	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // argv comes from the operator's config
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}

	go func() {
		captureOutput(r.logger, name, "stderr", stderr)
		if err := cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				r.logger.Warn("command exited with error", "name", name, "exit_code", exitErr.ExitCode())
				return
			}
			r.logger.Warn("command failed", "name", name, "error", err)
		}
	}()

	return nil
}

// LookPath resolves the executable of argv the way Run and Start would.
func LookPath(argv []string) (string, error) {
	if len(argv) == 0 || argv[0] == "" {
		return "", ErrEmptyCommand
	}
	return exec.LookPath(argv[0])
}
