package status

import (
	"encoding/json"
	"sync"
	"time"
)

// Reporter accepts a human-readable status message.
type Reporter interface {
	Report(message string)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(message string)

// Report implements Reporter.
func (f ReporterFunc) Report(message string) { f(message) }

// Discard is a Reporter that drops every message.
var Discard Reporter = ReporterFunc(func(string) {})

// Logger is the logging interface used by the reporters in this package.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Multi fans a message out to several reporters in order.
type Multi []Reporter

// Report implements Reporter.
func (m Multi) Report(message string) {
	for _, r := range m {
		if r != nil {
			r.Report(message)
		}
	}
}

// LogReporter writes status messages to a structured logger.
type LogReporter struct {
	logger Logger
}

// NewLogReporter creates a reporter that logs at info level.
func NewLogReporter(logger Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report implements Reporter.
func (r *LogReporter) Report(message string) {
	r.logger.Info("status", "message", message)
}

// Runner runs an external command; satisfied by process.Runner.
type Runner interface {
	Start(name string, argv []string) error
}

// Notifier shows status messages as desktop notifications by appending the
// message to a command such as notify-send. Consecutive duplicates are
// suppressed so a flapping link does not flood the desktop.
type Notifier struct {
	runner  Runner
	command []string
	logger  Logger

	mu   sync.Mutex
	last string
}

// NewNotifier creates a Notifier. command must not be empty.
func NewNotifier(runner Runner, command []string, logger Logger) *Notifier {
	return &Notifier{
		runner:  runner,
		command: append([]string(nil), command...),
		logger:  logger,
	}
}

// Report implements Reporter. The command is started without waiting for it.
func (n *Notifier) Report(message string) {
	n.mu.Lock()
	if message == n.last {
		n.mu.Unlock()
		return
	}
	n.last = message
	n.mu.Unlock()

	argv := append(append([]string(nil), n.command...), message)
	if err := n.runner.Start("notify", argv); err != nil {
		n.logger.Warn("desktop notification failed", "error", err)
	}
}

// Publisher is the outbound side of the connection manager.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
}

// TopicReporter publishes each status message as JSON to an MQTT topic.
// While the broker link is down the publisher buffers or rejects the
// message; rejections are logged and otherwise ignored.
type TopicReporter struct {
	publisher Publisher
	topic     string
	logger    Logger
	now       func() time.Time
}

// NewTopicReporter creates a reporter that publishes to topic.
func NewTopicReporter(publisher Publisher, topic string, logger Logger) *TopicReporter {
	return &TopicReporter{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
		now:       time.Now,
	}
}

// statusMessage is the JSON body published by TopicReporter.
type statusMessage struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Report implements Reporter.
func (r *TopicReporter) Report(message string) {
	payload, err := json.Marshal(statusMessage{
		Message:   message,
		Timestamp: r.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := r.publisher.Publish(r.topic, payload, false); err != nil {
		r.logger.Warn("status publish dropped", "topic", r.topic, "error", err)
	}
}
