// Package mqtt owns the broker connection for mqttwaker.
//
// This package manages:
//   - Connecting to the broker, with custom trust anchors for TLS schemes
//   - Observing paho's automatic reconnection and republishing state changes
//   - Subscribing to the command topic on every (re)connect at QoS 0
//   - A bounded offline buffer for outbound publishes while the link is down
//   - Retained online/offline presence with a Last Will on the status topic
//
// # State Machine
//
//	Disconnected --Start--> Connecting
//	Connecting --connect ok--> Connected
//	Connecting --connect fail--> Failed
//	Connected --connection lost--> ReconnectPending
//	ReconnectPending --reconnect ok--> Connected
//	ReconnectPending --attempts exhausted--> Failed
//	(any) --Stop--> Disconnected
//
// Failed is left only by a fresh Start. Each Start creates a new session; paho
// callbacks carry their session and are dropped once it has been torn down, so
// no completion is observed after Stop.
//
// # Security Considerations
//
//   - A custom certificate replaces the system roots (pinning)
//   - If the certificate cannot be used, the connection falls back to system
//     roots and the degraded mode is reported before connecting
//   - Credentials are sent only when a username is configured
//
// # Usage
//
//	m := mqtt.NewManager(dispatcher.OnMessage)
//	m.SetReporter(reporter)
//	m.SetLogger(log.Component("mqtt"))
//	if err := m.Start(cfg.MQTT); err != nil {
//	    // configuration error; already reported
//	}
//	defer m.Stop()
package mqtt
