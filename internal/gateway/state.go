package gateway

// State is the gateway lifecycle state.
type State int

// Lifecycle states. Listening and Publishing alternate once connected;
// ShuttingDown is entered only on cancellation.
const (
	StateIdle State = iota
	StateConnected
	StateListening
	StatePublishing
	StateShuttingDown
	StateStopped
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateListening:
		return "listening"
	case StatePublishing:
		return "publishing"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
