package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/mqttwaker/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is used when the config leaves it unset.
	defaultConnectTimeout = 10 * time.Second

	// defaultKeepAlive is used when the config leaves it unset.
	defaultKeepAlive = 60 * time.Second

	// defaultPublishTimeout bounds waiting for a publish token.
	defaultPublishTimeout = 5 * time.Second

	// defaultSubscribeTimeout bounds waiting for a SUBACK.
	defaultSubscribeTimeout = 10 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// commandQoS is the subscription QoS: at most once.
	commandQoS = 0

	// publishQoS is the QoS of every outbound publish.
	publishQoS = 0
)

// buildClientOptions creates paho options from the connection config.
//
// This configures:
//   - Broker URI as given (the scheme selects the transport)
//   - Client ID fixed for the activation
//   - Credentials (if a username is set)
//   - Persistent session: the broker keeps subscriptions across reconnects
//   - Auto-reconnect with backoff; the initial connect is not retried
//   - TLS configuration (nil for plain schemes)
//   - Last Will on the status topic (if configured)
func buildClientOptions(cfg config.MQTTConfig, tlsConfig *tls.Config) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(cfg.BrokerURI)
	opts.SetClientID(cfg.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(false)
	opts.SetOrderMatters(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	if d := cfg.Reconnect.InitialDelay; d > 0 {
		opts.SetConnectRetryInterval(time.Duration(d) * time.Second)
	}
	if d := cfg.Reconnect.MaxDelay; d > 0 {
		opts.SetMaxReconnectInterval(time.Duration(d) * time.Second)
	}

	connectTimeout := cfg.GetConnectTimeout()
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	opts.SetConnectTimeout(connectTimeout)

	keepAlive := cfg.GetKeepAlive()
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	opts.SetKeepAlive(keepAlive)

	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}

	if cfg.StatusTopic != "" {
		configureLWT(opts, cfg)
	}

	return opts
}

// checkScheme rejects broker URIs whose scheme paho cannot dial.
func checkScheme(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid broker URI: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss":
		return nil
	default:
		return fmt.Errorf("unsupported broker URI scheme %q", u.Scheme)
	}
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// The broker publishes it if the client disappears without a clean
// disconnect. It is retained so new subscribers see the last presence.
func configureLWT(opts *pahomqtt.ClientOptions, cfg config.MQTTConfig) {
	opts.SetWill(cfg.StatusTopic, string(presencePayload(cfg.ClientID, "offline", "unexpected_disconnect")), publishQoS, true)
}

// presence is the retained status topic document.
type presence struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// presencePayload encodes a presence document.
func presencePayload(clientID, status, reason string) []byte {
	payload, err := json.Marshal(presence{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return []byte(status)
	}
	return payload
}
