package command

import (
	"context"
	"time"

	"github.com/nerrad567/mqttwaker/internal/action"
)

// recordTimeout bounds a single recorder call.
const recordTimeout = 2 * time.Second

// Record describes one dispatched message.
type Record struct {
	Topic   string
	Payload string
	Command Command
	// Handled is false for Unknown commands; Outcome is then meaningless.
	Handled  bool
	Outcome  action.Outcome
	Received time.Time
}

// OutcomeName returns the outcome name, or "ignored" for unhandled commands.
func (r Record) OutcomeName() string {
	if !r.Handled {
		return "ignored"
	}
	return r.Outcome.Result.String()
}

// Recorder persists or exports dispatch records. Errors are logged by the
// dispatcher and never affect dispatch.
type Recorder interface {
	RecordCommand(ctx context.Context, rec Record) error
}

// Logger is the logging interface used by the dispatcher.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Dispatcher resolves payloads and invokes the matching handler.
//
// Thread Safety:
//   - OnMessage holds no cross-message state and may be called concurrently.
//   - SetLogger and AddRecorder must be called before the first message.
type Dispatcher struct {
	wake      action.Handler
	lock      action.Handler
	recorders []Recorder
	logger    Logger
	now       func() time.Time
}

// NewDispatcher creates a Dispatcher routing Wake and Lock to the given handlers.
func NewDispatcher(wake, lock action.Handler) *Dispatcher {
	return &Dispatcher{
		wake:   wake,
		lock:   lock,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// AddRecorder registers a recorder for dispatch records.
func (d *Dispatcher) AddRecorder(r Recorder) {
	d.recorders = append(d.recorders, r)
}

// OnMessage handles one inbound message. It is the message sink registered
// with the connection manager.
func (d *Dispatcher) OnMessage(topic string, payload []byte) {
	cmd := Resolve(payload)
	rec := Record{
		Topic:    topic,
		Payload:  string(payload),
		Command:  cmd,
		Received: d.now(),
	}

	switch cmd {
	case Wake:
		rec.Handled = true
		rec.Outcome = d.wake.Execute()
	case Lock:
		rec.Handled = true
		rec.Outcome = d.lock.Execute()
	default:
		d.logger.Info("unknown command", "topic", topic, "payload", string(payload))
		d.record(rec)
		return
	}

	d.logger.Info("command dispatched",
		"topic", topic,
		"command", cmd.String(),
		"outcome", rec.Outcome.Result.String(),
		"reason", rec.Outcome.Reason,
	)
	d.record(rec)
}

// record hands rec to every recorder.
func (d *Dispatcher) record(rec Record) {
	for _, r := range d.recorders {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := r.RecordCommand(ctx, rec); err != nil {
			d.logger.Warn("recording command failed", "command", rec.Command.String(), "error", err)
		}
		cancel()
	}
}
