package display

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/mqttwaker/internal/infrastructure/config"
	"github.com/nerrad567/mqttwaker/internal/process"
)

// Logger is the logging interface used by the display collaborators.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// CommandRunner runs one-shot commands; satisfied by *process.Runner.
type CommandRunner interface {
	Run(ctx context.Context, name string, argv []string) error
	Start(name string, argv []string) error
}

// Overlay wakes the display.
//
// Thread Safety:
//   - Wake may be called concurrently; every call gets its own goroutine and
//     keep-awake session.
type Overlay struct {
	runner    CommandRunner
	wake      []string
	keepAwake []string
	hold      time.Duration
	browser   []string
	logger    Logger

	// newSession is replaceable in tests.
	newSession func(cfg process.SessionConfig) keepAwakeSession

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// keepAwakeSession is the subset of *process.Session used by Overlay.
type keepAwakeSession interface {
	Start(ctx context.Context) error
	Stop() error
}

// NewOverlay creates an Overlay from the display configuration.
func NewOverlay(cfg config.DisplayConfig, runner CommandRunner) *Overlay {
	o := &Overlay{
		runner:    runner,
		wake:      cfg.WakeCommand,
		keepAwake: cfg.KeepAwakeCommand,
		hold:      cfg.GetKeepAwake(),
		browser:   cfg.BrowserCommand,
		logger:    noopLogger{},
	}
	o.newSession = func(sc process.SessionConfig) keepAwakeSession {
		s := process.NewSession(sc)
		s.SetLogger(o.logger)
		return s
	}
	return o
}

// SetLogger sets the logger for the overlay.
func (o *Overlay) SetLogger(logger Logger) {
	o.logger = logger
}

// Wake implements action.Overlay. It returns immediately. Wakes requested
// after Wait has been called are dropped.
func (o *Overlay) Wake(url string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		o.logger.Debug("overlay closed, ignoring wake")
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.wakeOnce(url)
	}()
}

// Wait blocks until every in-flight wake has finished, including its
// keep-awake hold. Used on shutdown and in tests. The overlay accepts no
// further wakes once Wait has been called.
func (o *Overlay) Wait() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.wg.Wait()
}

// wakeOnce performs one wake sequence.
func (o *Overlay) wakeOnce(url string) {
	ctx := context.Background()

	if len(o.wake) > 0 {
		if err := o.runner.Run(ctx, "wake", o.wake); err != nil {
			o.logger.Warn("wake command failed", "error", err)
		}
	}

	var session keepAwakeSession
	if len(o.keepAwake) > 0 && o.hold > 0 {
		session = o.newSession(process.SessionConfig{
			Name: "keep-awake",
			Argv: o.keepAwake,
		})
		if err := session.Start(ctx); err != nil {
			o.logger.Warn("keep-awake command failed", "error", err)
			session = nil
		}
	}

	if url != "" && len(o.browser) > 0 {
		argv := append(append([]string(nil), o.browser...), url)
		if err := o.runner.Start("browser", argv); err != nil {
			o.logger.Warn("failed to open URL", "url", url, "error", err)
		} else {
			o.logger.Debug("browser started", "url", url)
		}
	} else if url == "" {
		o.logger.Debug("no browser URL configured")
	}

	if session != nil {
		time.Sleep(o.hold)
		if err := session.Stop(); err != nil {
			o.logger.Warn("failed to stop keep-awake command", "error", err)
		}
	}
}
