package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/mqttwaker/internal/infrastructure/config"
	"github.com/nerrad567/mqttwaker/internal/status"
	"github.com/nerrad567/mqttwaker/internal/trust"
)

// MessageHandler receives every message on the command topic.
//
// With ordered delivery, paho invokes it on its delivery goroutine, one
// message at a time. It should return promptly.
type MessageHandler func(topic string, payload []byte)

// ClientFactory creates the underlying paho client. Replaceable in tests.
type ClientFactory func(opts *pahomqtt.ClientOptions) pahomqtt.Client

// TrustBuilder builds TLS configuration; satisfied by *trust.Builder.
type TrustBuilder interface {
	Build(spec trust.Spec) (*tls.Config, error)
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
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

// session is one activation's paho client and its bookkeeping. A session is
// current from Start until Stop or Failed; callbacks from any other session
// are ignored.
type session struct {
	cfg    config.MQTTConfig
	client pahomqtt.Client
	buffer *offlineBuffer // nil when buffering is disabled

	// Guarded by Manager.mu.
	connects          int
	reconnectAttempts int

	done      chan struct{}
	closeOnce sync.Once

	// handlers tracks connect handling in flight. Add is only called while
	// the session is current, under Manager.mu.
	handlers sync.WaitGroup
	// callbacks counts owner callbacks currently running from connect
	// handling. Stop skips waiting on handlers when one of them calls it.
	callbacks atomic.Int32

	// flushMu serializes buffer flushes.
	flushMu sync.Mutex
}

func (s *session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// live reports whether the session has not been torn down.
func (s *session) live() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Manager owns the broker connection.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Start and Stop are serialized; only one transition is in flight.
//   - Callbacks and reports are invoked without internal locks held, so they
//     may call back into the Manager (Publish, State).
type Manager struct {
	handler MessageHandler

	// opMu serializes Start and Stop.
	opMu sync.Mutex

	mu      sync.RWMutex
	state   State
	reason  string
	current *session

	subscribes atomic.Int64

	newClient ClientFactory
	trust     TrustBuilder
	reporter  status.Reporter
	logger    Logger

	onConnected      func(sessionID string)
	onConnectionLost func(cause error)
	onConnectFailed  func(cause error)
	onStateChange    func(state State)
	callbackMu       sync.RWMutex
}

// NewManager creates a Manager delivering command messages to handler.
func NewManager(handler MessageHandler) *Manager {
	return &Manager{
		handler:   handler,
		state:     Disconnected,
		newClient: pahomqtt.NewClient,
		trust:     trust.NewBuilder(trust.FileSource{}),
		reporter:  status.Discard,
		logger:    noopLogger{},
	}
}

// SetHandler replaces the message handler. It must be called before Start.
func (m *Manager) SetHandler(handler MessageHandler) {
	m.handler = handler
}

// SetClientFactory replaces the paho client constructor.
func (m *Manager) SetClientFactory(f ClientFactory) {
	m.newClient = f
}

// SetTrustBuilder replaces the TLS trust builder.
func (m *Manager) SetTrustBuilder(b TrustBuilder) {
	m.trust = b
}

// SetReporter sets the sink for human-readable status.
func (m *Manager) SetReporter(r status.Reporter) {
	m.reporter = r
}

// SetLogger sets the logger.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetOnConnected sets a callback invoked on every successful (re)connect.
func (m *Manager) SetOnConnected(fn func(sessionID string)) {
	m.callbackMu.Lock()
	m.onConnected = fn
	m.callbackMu.Unlock()
}

// SetOnConnectionLost sets a callback invoked when an established session drops.
func (m *Manager) SetOnConnectionLost(fn func(cause error)) {
	m.callbackMu.Lock()
	m.onConnectionLost = fn
	m.callbackMu.Unlock()
}

// SetOnConnectFailed sets a callback invoked when the manager enters Failed.
func (m *Manager) SetOnConnectFailed(fn func(cause error)) {
	m.callbackMu.Lock()
	m.onConnectFailed = fn
	m.callbackMu.Unlock()
}

// SetOnStateChange sets a callback invoked after every state transition.
func (m *Manager) SetOnStateChange(fn func(state State)) {
	m.callbackMu.Lock()
	m.onStateChange = fn
	m.callbackMu.Unlock()
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// FailureReason returns the reason for the Failed state, or "".
func (m *Manager) FailureReason() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reason
}

// SubscribeCount returns how many command subscriptions have been acknowledged
// across all sessions.
func (m *Manager) SubscribeCount() int {
	return int(m.subscribes.Load())
}

// Buffered returns the number of publishes waiting in the offline buffer.
func (m *Manager) Buffered() int {
	m.mu.RLock()
	s := m.current
	m.mu.RUnlock()
	if s == nil || s.buffer == nil {
		return 0
	}
	return s.buffer.len()
}

// Start begins connecting with cfg. It returns immediately; the outcome is
// delivered through callbacks and reports.
//
// Start is a no-op while Connecting, Connected or ReconnectPending. A blank
// broker URI or topic is reported and returns ErrInvalidConfig; nothing else
// is returned as an error.
func (m *Manager) Start(cfg config.MQTTConfig) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	st := m.state
	m.mu.RUnlock()
	if st.active() {
		m.logger.Debug("start ignored", "state", st.String())
		return nil
	}

	if err := checkConfig(cfg); err != nil {
		m.logger.Error("MQTT server or topic not configured", "error", err)
		m.report("Error: MQTT server or topic not configured")
		return err
	}

	if err := checkScheme(cfg.BrokerURI); err != nil {
		m.failBeforeConnect(cfg, err)
		return nil
	}

	m.logger.Info("settings loaded",
		"broker", cfg.BrokerURI,
		"topic", cfg.Topic,
		"client_id", cfg.ClientID,
		"username_set", cfg.Auth.Username != "",
		"custom_cert", cfg.TLS.CustomCert,
	)

	var tlsConfig *tls.Config
	if cfg.IsSecureScheme() {
		tlsConfig = m.buildTLS(cfg)
	}

	s := &session{
		cfg:  cfg,
		done: make(chan struct{}),
	}
	if cfg.Buffer.Enabled {
		s.buffer = newOfflineBuffer(cfg.Buffer.Capacity)
	}

	opts := buildClientOptions(cfg, tlsConfig)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { m.handleConnect(s) })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { m.handleConnectionLost(s, err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) { m.handleReconnecting(s) })
	s.client = m.newClient(opts)

	m.mu.Lock()
	m.current = s
	m.state = Connecting
	m.reason = ""
	m.mu.Unlock()
	m.notifyState(Connecting)

	token := s.client.Connect()
	go m.awaitConnect(s, token)

	return nil
}

// Stop tears down the session from any state and leaves the manager
// Disconnected. It is safe before any Start. Teardown errors are logged.
func (m *Manager) Stop() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	s := m.current
	prev := m.state
	m.current = nil
	m.state = Disconnected
	m.reason = ""
	m.mu.Unlock()

	if s != nil {
		s.close()
		if prev == Connected && s.cfg.StatusTopic != "" {
			msg := pendingMessage{
				topic:    s.cfg.StatusTopic,
				payload:  presencePayload(s.cfg.ClientID, "offline", "graceful_shutdown"),
				retained: true,
			}
			if err := publishNow(s, msg); err != nil {
				m.logger.Warn("publishing offline status failed", "error", err)
			}
		}
		s.client.Disconnect(defaultDisconnectQuiesce)

		// A Stop issued from a connect callback runs on the handler itself.
		if s.callbacks.Load() == 0 {
			s.handlers.Wait()
		}
	}

	if prev != Disconnected {
		m.logger.Info("disconnected from MQTT broker", "previous_state", prev.String())
		m.notifyState(Disconnected)
		m.report("Disconnected from MQTT broker")
	}
}

// HealthCheck verifies the connection is up.
func (m *Manager) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	m.mu.RLock()
	s := m.current
	st := m.state
	m.mu.RUnlock()

	if st != Connected || s == nil || !s.client.IsConnectionOpen() {
		return fmt.Errorf("%w: state %s", ErrNotConnected, st)
	}
	return nil
}

// checkConfig enforces the connect-attempt preconditions.
func checkConfig(cfg config.MQTTConfig) error {
	if strings.TrimSpace(cfg.BrokerURI) == "" {
		return fmt.Errorf("%w: broker URI is blank", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return fmt.Errorf("%w: topic is blank", ErrInvalidConfig)
	}
	if err := validateFilter(cfg.Topic); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.StatusTopic != "" {
		if err := validatePublishTopic(cfg.StatusTopic); err != nil {
			return fmt.Errorf("%w: status topic: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// buildTLS returns the trust configuration for a secure scheme. Failures to
// use a custom certificate degrade to system roots and are reported before
// the connect attempt.
func (m *Manager) buildTLS(cfg config.MQTTConfig) *tls.Config {
	spec := trust.SystemDefault()
	if cfg.TLS.CustomCert {
		spec = trust.CustomCertificate(cfg.TLS.CertPath)
	}

	tlsConfig, err := m.trust.Build(spec)
	if err == nil {
		m.logger.Debug("TLS configured", "trust", spec.Kind.String())
		return tlsConfig
	}

	switch {
	case errors.Is(err, trust.ErrPermissionDenied):
		m.logger.Warn("cannot access certificate, using system certificates", "path", cfg.TLS.CertPath, "error", err)
		m.report("Cannot access certificate: permission denied; using system certificates")
	default:
		m.logger.Warn("certificate error, using system certificates", "path", cfg.TLS.CertPath, "error", err)
		m.report(fmt.Sprintf("Certificate error: %v; using system certificates", err))
	}

	tlsConfig, err = m.trust.Build(trust.SystemDefault())
	if err != nil || tlsConfig == nil {
		return &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return tlsConfig
}

// failBeforeConnect moves the manager to Failed for a configuration paho
// cannot dial. No client is created.
func (m *Manager) failBeforeConnect(cfg config.MQTTConfig, err error) {
	m.mu.Lock()
	m.current = nil
	m.state = Failed
	m.reason = err.Error()
	m.mu.Unlock()

	m.notifyState(Failed)
	m.logger.Error("failed to connect to MQTT broker", "broker", cfg.BrokerURI, "error", err)
	m.report("Failed to connect to MQTT broker")
	m.callConnectFailed(fmt.Errorf("%w: %w", ErrConnectionFailed, err))
}

// awaitConnect waits for the initial connect token. Success is handled by
// the OnConnect callback; failure moves the session to Failed.
func (m *Manager) awaitConnect(s *session, token pahomqtt.Token) {
	select {
	case <-token.Done():
	case <-s.done:
		return
	}

	err := token.Error()
	if err == nil {
		return
	}
	cause := fmt.Errorf("%w: %w", ErrConnectionFailed, err)

	if !m.fail(s, err.Error()) {
		return
	}
	m.logger.Error("failed to connect to MQTT broker", "broker", s.cfg.BrokerURI, "error", err)
	m.report("Failed to connect to MQTT broker")
	m.callConnectFailed(cause)
}

// fail moves the current session s to Failed. It reports false when s is no
// longer current.
func (m *Manager) fail(s *session, reason string) bool {
	m.mu.Lock()
	if m.current != s {
		m.mu.Unlock()
		return false
	}
	m.current = nil
	m.state = Failed
	m.reason = reason
	m.mu.Unlock()

	s.close()
	m.notifyState(Failed)
	return true
}

// handleConnect runs on paho's OnConnect, for the first connect and every
// reconnect. Each step is skipped once the session is torn down, so nothing
// reaches the owner after Stop returns.
func (m *Manager) handleConnect(s *session) {
	m.mu.Lock()
	if m.current != s {
		m.mu.Unlock()
		return
	}
	s.handlers.Add(1)
	defer s.handlers.Done()
	s.connects++
	s.reconnectAttempts = 0
	sessionID := fmt.Sprintf("%s#%d", s.cfg.ClientID, s.connects)
	m.state = Connected
	m.reason = ""
	m.mu.Unlock()

	if s.buffer != nil {
		s.buffer.enable()
	}

	m.logger.Info("connected to MQTT broker", "broker", s.cfg.BrokerURI, "session", sessionID)
	if !m.callout(s, func() { m.notifyState(Connected) }) {
		return
	}
	if !m.callout(s, func() { m.report("Connected to MQTT broker") }) {
		return
	}

	m.subscribe(s)
	if !s.live() {
		return
	}
	m.flush(s)
	if !s.live() {
		return
	}

	if s.cfg.StatusTopic != "" {
		msg := pendingMessage{
			topic:    s.cfg.StatusTopic,
			payload:  presencePayload(s.cfg.ClientID, "online", ""),
			retained: true,
		}
		if err := publishNow(s, msg); err != nil {
			m.logger.Warn("publishing online status failed", "error", err)
		}
	}

	m.callbackMu.RLock()
	fn := m.onConnected
	m.callbackMu.RUnlock()
	if fn != nil {
		m.callout(s, func() { fn(sessionID) })
	}
}

// callout runs fn for s unless s is gone, and reports whether s is still
// live afterwards.
func (m *Manager) callout(s *session, fn func()) bool {
	if !s.live() {
		return false
	}
	s.callbacks.Add(1)
	func() {
		defer s.callbacks.Add(-1)
		fn()
	}()
	return s.live()
}

// handleConnectionLost runs on paho's OnConnectionLost.
func (m *Manager) handleConnectionLost(s *session, err error) {
	m.mu.Lock()
	if m.current != s {
		m.mu.Unlock()
		return
	}
	m.state = ReconnectPending
	m.mu.Unlock()

	m.logger.Warn("connection lost to MQTT broker", "error", err)
	m.notifyState(ReconnectPending)
	m.report("Connection lost to MQTT broker")

	m.callbackMu.RLock()
	fn := m.onConnectionLost
	m.callbackMu.RUnlock()
	if fn != nil {
		fn(fmt.Errorf("%w: %w", ErrConnectionLost, err))
	}
}

// handleReconnecting runs before each paho reconnect attempt and enforces
// reconnect.max_attempts.
func (m *Manager) handleReconnecting(s *session) {
	m.mu.Lock()
	if m.current != s {
		m.mu.Unlock()
		return
	}
	s.reconnectAttempts++
	attempt := s.reconnectAttempts
	limit := s.cfg.Reconnect.MaxAttempts
	m.mu.Unlock()

	if limit <= 0 || attempt <= limit {
		m.logger.Info("reconnecting to MQTT broker", "attempt", attempt)
		return
	}

	if !m.fail(s, ErrReconnectExhausted.Error()) {
		return
	}
	m.logger.Error("giving up on MQTT broker", "attempts", attempt-1)
	m.report("Reconnect attempts exhausted; giving up on MQTT broker")

	// Disconnect must not run on paho's reconnect goroutine.
	go s.client.Disconnect(0)

	m.callConnectFailed(ErrReconnectExhausted)
}

func (m *Manager) callConnectFailed(cause error) {
	m.callbackMu.RLock()
	fn := m.onConnectFailed
	m.callbackMu.RUnlock()
	if fn != nil {
		fn(cause)
	}
}

func (m *Manager) notifyState(st State) {
	m.callbackMu.RLock()
	fn := m.onStateChange
	m.callbackMu.RUnlock()
	if fn != nil {
		fn(st)
	}
}

func (m *Manager) report(message string) {
	m.reporter.Report(message)
}
