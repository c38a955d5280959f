package adapter

// ConnState tracks the gateway connection through its life. The machine
// moves strictly forward: Disconnected → Connecting → Connected →
// Terminated, with Connecting → Terminated when the handshake fails.
// Terminated is terminal; there is no reconnect, a supervisor restarts
// the process instead.
type ConnState int32

const (
	// StateDisconnected is the initial state before Start.
	StateDisconnected ConnState = iota
	// StateConnecting covers the dial and handshake.
	StateConnecting
	// StateConnected means the read loop owns a live connection.
	StateConnected
	// StateTerminated is final, reached on clean stop, handshake failure,
	// or connection loss.
	StateTerminated
)

// String returns the state label used in logs
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
