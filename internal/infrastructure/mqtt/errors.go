package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidConfig is returned by Start when the broker URI or topic is blank.
	ErrInvalidConfig = errors.New("mqtt: broker or topic not configured")

	// ErrNotConnected is returned when publishing with no session, or while
	// offline before the buffer has been enabled by a first connect.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed wraps the cause of a failed initial connect.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrConnectionLost wraps the cause of a lost session.
	ErrConnectionLost = errors.New("mqtt: connection lost")

	// ErrReconnectExhausted is reported when reconnect.max_attempts is exceeded.
	ErrReconnectExhausted = errors.New("mqtt: reconnect attempts exhausted")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is reported when the command subscription fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrBufferFull is returned when the offline buffer is at capacity.
	ErrBufferFull = errors.New("mqtt: offline buffer full")

	// ErrInvalidTopic is returned when an empty or invalid topic is provided.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")
)
