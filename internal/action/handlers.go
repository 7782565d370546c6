package action

import (
	"fmt"

	"github.com/nerrad567/mqttwaker/internal/status"
)

// Overlay wakes the display. Wake must return promptly; the implementation
// owns the wake duration and any auto-dismiss timer.
type Overlay interface {
	Wake(url string)
}

// Locker controls the device-lock capability.
type Locker interface {
	HasLockCapability() bool
	LockNow() error
	// RequestLockCapability hands off to an out-of-process permission flow.
	RequestLockCapability()
}

// Handler executes one action.
type Handler interface {
	Execute() Outcome
}

// Logger is the logging interface used by the handlers.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// WakeDisplay wakes the display and optionally opens a configured URL.
type WakeDisplay struct {
	overlay  Overlay
	url      string
	reporter status.Reporter
	logger   Logger
}

// NewWakeDisplay creates a WakeDisplay handler. url may be blank.
func NewWakeDisplay(overlay Overlay, url string, reporter status.Reporter) *WakeDisplay {
	return &WakeDisplay{
		overlay:  overlay,
		url:      url,
		reporter: reporter,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the handler.
func (w *WakeDisplay) SetLogger(logger Logger) {
	w.logger = logger
}

// Execute implements Handler. Concurrent calls are independent.
func (w *WakeDisplay) Execute() Outcome {
	w.logger.Debug("wake screen command received", "url", w.url)
	w.reporter.Report("Waking screen")
	w.overlay.Wake(w.url)
	return Succeeded()
}

// LockDisplay locks the session, or requests the lock capability when the
// process does not hold it. A lock requested without the capability is not
// queued; a new command must be sent after permission is granted.
type LockDisplay struct {
	locker   Locker
	reporter status.Reporter
	logger   Logger
}

// NewLockDisplay creates a LockDisplay handler.
func NewLockDisplay(locker Locker, reporter status.Reporter) *LockDisplay {
	return &LockDisplay{
		locker:   locker,
		reporter: reporter,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the handler.
func (l *LockDisplay) SetLogger(logger Logger) {
	l.logger = logger
}

// Execute implements Handler.
func (l *LockDisplay) Execute() Outcome {
	l.logger.Debug("lock screen command received")

	if !l.locker.HasLockCapability() {
		l.reporter.Report("Lock permission needed for screen locking")
		l.locker.RequestLockCapability()
		return NeedsPermission()
	}

	if err := l.locker.LockNow(); err != nil {
		l.logger.Warn("failed to lock screen", "error", err)
		l.reporter.Report(fmt.Sprintf("Failed to lock screen: %v", err))
		return FailedWith(err)
	}

	l.reporter.Report("Device locked")
	return Succeeded()
}
