package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status represents the current state of a session.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
)

// defaultGracefulTimeout is how long Stop waits after SIGTERM before SIGKILL.
const defaultGracefulTimeout = 2 * time.Second

// SessionConfig holds configuration for a time-boxed subprocess.
type SessionConfig struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Argv is the command line; Argv[0] is the executable.
	Argv []string

	// GracefulTimeout is how long to wait for exit after SIGTERM.
	GracefulTimeout time.Duration
}

// Session runs one long-lived subprocess until Stop is called or it exits.
// A Session is single-use: after it has run, create a new one.
type Session struct {
	config SessionConfig
	logger Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	status    Status
	startTime time.Time
	exitErr   error
	done      chan struct{}
}

// NewSession creates a session with the given configuration.
func NewSession(cfg SessionConfig) *Session {
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaultGracefulTimeout
	}
	return &Session{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the session.
func (s *Session) SetLogger(logger Logger) {
	s.logger = logger
}

// Start launches the subprocess in its own process group.
func (s *Session) Start(ctx context.Context) error {
	if len(s.config.Argv) == 0 || s.config.Argv[0] == "" {
		return ErrEmptyCommand
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, s.config.Name)
	}

	cmd := exec.CommandContext(ctx, s.config.Argv[0], s.config.Argv[1:]...) //nolint:gosec // argv comes from the operator's config

	// New process group so Stop reaches every child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", s.config.Name, err)
	}

	s.cmd = cmd
	s.status = StatusRunning
	s.startTime = time.Now()
	s.done = make(chan struct{})

	go captureOutput(s.logger, s.config.Name, "stdout", stdout)
	go captureOutput(s.logger, s.config.Name, "stderr", stderr)
	go s.wait(cmd, s.done)

	s.logger.Debug("session started", "name", s.config.Name, "pid", cmd.Process.Pid)
	return nil
}

// wait reaps the subprocess and records its exit.
func (s *Session) wait(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()

	s.mu.Lock()
	s.status = StatusExited
	s.exitErr = err
	s.mu.Unlock()

	close(done)
}

// Stop terminates the subprocess group: SIGTERM, then SIGKILL after the
// graceful timeout. Safe to call more than once and before Start.
func (s *Session) Stop() error {
	s.mu.Lock()
	cmd := s.cmd
	done := s.done
	running := s.status == StatusRunning
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil || done == nil {
		return nil
	}
	if !running {
		<-done
		return nil
	}

	pid := cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.logger.Warn("failed to send SIGTERM to process group", "name", s.config.Name, "error", err)
	}

	select {
	case <-done:
		s.logger.Debug("session stopped", "name", s.config.Name)
		return nil
	case <-time.After(s.config.GracefulTimeout):
		s.logger.Warn("graceful stop timeout, sending SIGKILL",
			"name", s.config.Name,
			"timeout", s.config.GracefulTimeout,
		)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing process group %s: %w", s.config.Name, err)
	}
	<-done
	return nil
}

// Done returns a channel closed when the subprocess has exited, or nil
// before Start.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Status returns the current status of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Uptime returns how long the subprocess has been running, or 0.
func (s *Session) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRunning {
		return 0
	}
	return time.Since(s.startTime)
}

// ExitError returns the error from the subprocess exit, if any.
func (s *Session) ExitError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}
