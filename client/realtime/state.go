package realtime

// State is the connection lifecycle state. The only terminal states are
// StateClosed (reached exclusively through Close or a normal server
// closure) and StateFailed (retry bound exhausted); every other closure
// routes back through StateConnecting after a backoff delay.
type State int

const (
	// StateIdle means Open has not been called yet.
	StateIdle State = iota

	// StateConnecting means a transport dial is in flight or scheduled.
	StateConnecting

	// StateAuthenticating means the transport is open and the auth
	// handshake frame has been sent.
	StateAuthenticating

	// StateReady means frames flow and Send is permitted.
	StateReady

	// StateClosing means Close was called and shutdown is in progress.
	StateClosing

	// StateClosed means the connection is down and will not reconnect.
	StateClosed

	// StateFailed means the retry bound was exhausted. Err holds the
	// reason; only a fresh Open recovers.
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
