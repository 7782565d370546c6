package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// subscribe subscribes the session to the command topic at QoS 0.
//
// It runs on every (re)connect. paho keeps one route per topic, so a repeat
// subscribe replaces the handler rather than adding a second one. A failure
// is reported and not retried; the next reconnect subscribes again.
func (m *Manager) subscribe(s *session) {
	topic := s.cfg.Topic
	token := s.client.Subscribe(topic, commandQoS, m.wrapHandler(s))

	timer := time.NewTimer(defaultSubscribeTimeout)
	defer timer.Stop()

	var err error
	select {
	case <-token.Done():
		err = token.Error()
	case <-timer.C:
		err = fmt.Errorf("timeout after %v", defaultSubscribeTimeout)
	case <-s.done:
		return
	}

	if err != nil {
		cause := fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
		m.logger.Error("failed to subscribe to topic", "topic", topic, "error", cause)
		m.callout(s, func() { m.report(fmt.Sprintf("Failed to subscribe to topic: %v", err)) })
		return
	}

	m.subscribes.Add(1)
	m.logger.Info("subscribed to topic", "topic", topic)
	m.callout(s, func() { m.report("Subscribed to topic: " + topic) })
}

// wrapHandler adapts the MessageHandler for paho with panic recovery. Messages
// arriving for a session that has been torn down are dropped.
func (m *Manager) wrapHandler(s *session) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		select {
		case <-s.done:
			return
		default:
		}

		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("MQTT handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}()

		m.logger.Debug("message received", "topic", msg.Topic(), "bytes", len(msg.Payload()))
		if m.handler != nil {
			m.handler(msg.Topic(), msg.Payload())
		}
	}
}
