package mqtt

// State is the connection state owned by Manager.
type State int

const (
	// Disconnected means no session exists.
	Disconnected State = iota
	// Connecting means the initial connect is in flight.
	Connecting
	// Connected means the session is up and the topic is subscribed.
	Connected
	// ReconnectPending means the session was lost and paho is reconnecting.
	ReconnectPending
	// Failed means the session ended with an error; see FailureReason.
	Failed
)

// String returns the state name used in logs and metrics.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case ReconnectPending:
		return "reconnect_pending"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// active reports whether Start is a no-op in this state.
func (s State) active() bool {
	return s == Connecting || s == Connected || s == ReconnectPending
}
