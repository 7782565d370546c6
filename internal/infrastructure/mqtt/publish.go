package mqtt

import (
	"fmt"
	"time"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends payload to topic at QoS 0.
//
// While Connected it publishes immediately. While the link is down after a
// first connect, the message is queued in the offline buffer and flushed in
// order on reconnect.
//
// Returns:
//   - ErrInvalidTopic for an empty or wildcard topic
//   - ErrNotConnected with no session, or before the first connect
//   - ErrBufferFull when offline and the buffer is at capacity
//   - ErrPublishFailed when the client rejects the publish
func (m *Manager) Publish(topic string, payload []byte, retained bool) error {
	if err := validatePublishTopic(topic); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	m.mu.RLock()
	s := m.current
	st := m.state
	m.mu.RUnlock()

	if s == nil {
		return ErrNotConnected
	}

	msg := pendingMessage{topic: topic, payload: payload, retained: retained}

	// Messages queue behind anything still waiting to be flushed. A backlog
	// left by a failed flush is retried first.
	if st == Connected && s.client.IsConnectionOpen() {
		if s.buffer != nil && s.buffer.len() > 0 {
			m.flush(s)
		}
		if s.buffer == nil || s.buffer.len() == 0 {
			return publishNow(s, msg)
		}
	}

	if s.buffer == nil {
		return ErrNotConnected
	}
	if err := s.buffer.add(msg); err != nil {
		return err
	}
	m.logger.Debug("publish buffered", "topic", topic, "buffered", s.buffer.len())
	return nil
}

// flush publishes buffered messages in order. A failed publish is put back
// at the head of the buffer and flushing stops until the next connect or the
// next Publish while connected.
func (m *Manager) flush(s *session) {
	if s.buffer == nil {
		return
	}
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	sent := 0
	for s.live() {
		msg, ok := s.buffer.pop()
		if !ok {
			break
		}
		if err := publishNow(s, msg); err != nil {
			s.buffer.pushFront(msg)
			m.logger.Warn("flushing offline buffer failed", "remaining", s.buffer.len(), "error", err)
			return
		}
		sent++
	}
	if sent > 0 {
		m.logger.Info("offline buffer flushed", "messages", sent)
	}
}

// publishNow publishes msg on the session's client and waits for the token.
func publishNow(s *session, msg pendingMessage) error {
	token := s.client.Publish(msg.topic, publishQoS, msg.retained, msg.payload)

	timer := time.NewTimer(defaultPublishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
