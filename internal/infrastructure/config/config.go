package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// clientIDPrefix is prepended to generated MQTT client identifiers.
const clientIDPrefix = "MQTTWaker_"

// Config is the root configuration structure for mqttwaker.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Display  DisplayConfig  `yaml:"display"`
	Notify   NotifyConfig   `yaml:"notify"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
//
// BrokerURI and Topic may be blank at load time. The connection manager refuses
// to connect and reports a configuration error in that case.
type MQTTConfig struct {
	BrokerURI string `yaml:"broker_uri"`
	ClientID  string `yaml:"client_id"`
	Topic     string `yaml:"topic"`

	Auth      MQTTAuthConfig      `yaml:"auth"`
	TLS       MQTTTLSConfig       `yaml:"tls"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Buffer    MQTTBufferConfig    `yaml:"buffer"`

	// ConnectTimeout is the connect handshake timeout in seconds.
	ConnectTimeout int `yaml:"connect_timeout"`

	// KeepAlive is the keepalive interval in seconds.
	KeepAlive int `yaml:"keep_alive"`

	// StatusTopic, when set, receives retained online/offline markers and
	// every status report as JSON.
	StatusTopic string `yaml:"status_topic"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTTLSConfig selects the trust anchors for secure broker URIs.
type MQTTTLSConfig struct {
	// CustomCert pins the connection to the certificate at CertPath instead
	// of the system trust store.
	CustomCert bool   `yaml:"custom_cert"`
	CertPath   string `yaml:"cert_path"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	// MaxAttempts is the number of reconnect attempts after a lost connection
	// before the manager gives up. 0 means unlimited.
	MaxAttempts int `yaml:"max_attempts"`
}

// MQTTBufferConfig configures the offline publish buffer.
type MQTTBufferConfig struct {
	Enabled  bool `yaml:"enabled"`
	Capacity int  `yaml:"capacity"`
}

// DisplayConfig contains the external commands used to wake and lock the display.
// Each command is an argv list; the first element is the executable.
type DisplayConfig struct {
	// BrowserURL is opened after a wake when non-blank.
	BrowserURL string `yaml:"browser_url"`

	WakeCommand      []string `yaml:"wake_command"`
	KeepAwakeCommand []string `yaml:"keep_awake_command"`
	KeepAwakeSeconds int      `yaml:"keep_awake_seconds"`
	BrowserCommand   []string `yaml:"browser_command"`

	LockCommand           []string `yaml:"lock_command"`
	LockPermissionCommand []string `yaml:"lock_permission_command"`

	// CommandTimeout bounds one-shot commands, in seconds.
	CommandTimeout int `yaml:"command_timeout"`
}

// NotifyConfig contains desktop notification settings.
type NotifyConfig struct {
	Enabled bool     `yaml:"enabled"`
	Command []string `yaml:"command"`
}

// DatabaseConfig contains SQLite command history settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MQTTWAKER_SECTION_KEY
// For example: MQTTWAKER_MQTT_BROKER_URI, MQTTWAKER_DATABASE_PATH
//
// A blank client ID is replaced by a generated one so the identifier stays
// fixed for the lifetime of the returned Config.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if strings.TrimSpace(cfg.MQTT.ClientID) == "" {
		cfg.MQTT.ClientID = GenerateClientID()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// GenerateClientID returns a fresh client identifier of the form MQTTWaker_<uuid>.
func GenerateClientID() string {
	return clientIDPrefix + uuid.NewString()
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			Buffer: MQTTBufferConfig{
				Enabled:  true,
				Capacity: 100,
			},
			ConnectTimeout: 10,
			KeepAlive:      60,
		},
		Display: DisplayConfig{
			WakeCommand:      []string{"xset", "dpms", "force", "on"},
			KeepAwakeCommand: []string{"systemd-inhibit", "--what=idle", "--why=mqttwaker wake", "sleep", "infinity"},
			KeepAwakeSeconds: 3,
			BrowserCommand:   []string{"xdg-open"},
			LockCommand:      []string{"loginctl", "lock-session"},
			CommandTimeout:   10,
		},
		Notify: NotifyConfig{
			Enabled: false,
			Command: []string{"notify-send", "--app-name=MQTT Waker", "MQTT Waker"},
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/mqttwaker.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("MQTTWAKER_MQTT_BROKER_URI"); v != "" {
		cfg.MQTT.BrokerURI = v
	}
	if v := os.Getenv("MQTTWAKER_MQTT_TOPIC"); v != "" {
		cfg.MQTT.Topic = v
	}
	if v := os.Getenv("MQTTWAKER_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.ClientID = v
	}
	if v := os.Getenv("MQTTWAKER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MQTTWAKER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Display
	if v := os.Getenv("MQTTWAKER_BROWSER_URL"); v != "" {
		cfg.Display.BrowserURL = v
	}

	// Database
	if v := os.Getenv("MQTTWAKER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("MQTTWAKER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for structural errors.
//
// Broker problems (blank or unsupported URI, blank topic, unreadable
// certificate) are not errors here: the service keeps running and the
// connection manager reports them when a connect is attempted.
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Buffer.Capacity < 0 {
		errs = append(errs, "mqtt.buffer.capacity must not be negative")
	}
	if c.MQTT.ConnectTimeout < 0 || c.MQTT.KeepAlive < 0 {
		errs = append(errs, "mqtt.connect_timeout and mqtt.keep_alive must not be negative")
	}
	if c.MQTT.Reconnect.MaxAttempts < 0 {
		errs = append(errs, "mqtt.reconnect.max_attempts must not be negative")
	}

	// Display validation
	if len(c.Display.LockCommand) == 0 {
		errs = append(errs, "display.lock_command is required")
	}
	if c.Display.KeepAwakeSeconds < 0 || c.Display.CommandTimeout < 0 {
		errs = append(errs, "display.keep_awake_seconds and display.command_timeout must not be negative")
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database.enabled is true")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb.enabled is true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsSecureScheme reports whether the broker URI requests a TLS transport.
func (m MQTTConfig) IsSecureScheme() bool {
	u, err := url.Parse(m.BrokerURI)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "ssl", "tls", "mqtts", "wss":
		return true
	default:
		return false
	}
}

// GetConnectTimeout returns the connect timeout as a Duration.
func (m MQTTConfig) GetConnectTimeout() time.Duration {
	return time.Duration(m.ConnectTimeout) * time.Second
}

// GetKeepAlive returns the keepalive interval as a Duration.
func (m MQTTConfig) GetKeepAlive() time.Duration {
	return time.Duration(m.KeepAlive) * time.Second
}

// GetKeepAwake returns how long a wake holds the display awake.
func (d DisplayConfig) GetKeepAwake() time.Duration {
	return time.Duration(d.KeepAwakeSeconds) * time.Second
}

// GetCommandTimeout returns the one-shot command timeout as a Duration.
func (d DisplayConfig) GetCommandTimeout() time.Duration {
	return time.Duration(d.CommandTimeout) * time.Second
}
