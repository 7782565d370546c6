package display

import (
	"context"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nerrad567/mqttwaker/internal/infrastructure/config"
	"github.com/nerrad567/mqttwaker/internal/process"
)

// lockTimeout bounds the lock command when no timeout is configured.
const lockTimeout = 10 * time.Second

// Locker locks the desktop session with an external command.
type Locker struct {
	runner     CommandRunner
	lock       []string
	permission []string
	timeout    time.Duration
	logger     Logger

	// lookPath is replaceable in tests.
	lookPath func(argv []string) (string, error)
}

// NewLocker creates a Locker from the display configuration.
func NewLocker(cfg config.DisplayConfig, runner CommandRunner) *Locker {
	timeout := cfg.GetCommandTimeout()
	if timeout <= 0 {
		timeout = lockTimeout
	}
	return &Locker{
		runner:     runner,
		lock:       cfg.LockCommand,
		permission: cfg.LockPermissionCommand,
		timeout:    timeout,
		logger:     noopLogger{},
		lookPath:   process.LookPath,
	}
}

// SetLogger sets the logger for the locker.
func (l *Locker) SetLogger(logger Logger) {
	l.logger = logger
}

// HasLockCapability implements action.Locker. The capability is held when
// the lock command resolves to a file this process may execute.
func (l *Locker) HasLockCapability() bool {
	path, err := l.lookPath(l.lock)
	if err != nil {
		return false
	}
	return unix.Access(path, unix.X_OK) == nil
}

// LockNow implements action.Locker.
func (l *Locker) LockNow() error {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	if err := l.runner.Run(ctx, "lock", l.lock); err != nil {
		return err
	}
	l.logger.Info("device locked")
	return nil
}

// RequestLockCapability implements action.Locker. It starts the configured
// permission command, or logs what is missing when none is configured.
func (l *Locker) RequestLockCapability() {
	if len(l.permission) == 0 {
		l.logger.Warn("lock command unavailable; install it or configure display.lock_permission_command",
			"lock_command", l.lock,
		)
		return
	}
	if err := l.runner.Start("lock-permission", l.permission); err != nil {
		l.logger.Error("failed to start permission request", "error", err)
	}
}
