package realtime

import "errors"

var (
	// ErrMissingCredential means Open was called without a usable bearer
	// token or user identity. No transport connection is attempted.
	ErrMissingCredential = errors.New("realtime: missing credential or identity")

	// ErrAlreadyOpen means Open was called on a handle whose connect
	// loop is still running.
	ErrAlreadyOpen = errors.New("realtime: connection already open")

	// ErrNotReady means Send was called while the connection was not in
	// the Ready state. The frame is not queued.
	ErrNotReady = errors.New("realtime: connection not ready")

	// ErrMaxRetries means the retry bound was exhausted without reaching
	// Ready. The handle is dead; a fresh Open starts over with a zeroed
	// retry counter.
	ErrMaxRetries = errors.New("realtime: max reconnect attempts exceeded")

	// ErrHandshakeTimeout means the connection did not become Ready
	// within the handshake window. Recoverable through the retry path.
	ErrHandshakeTimeout = errors.New("realtime: handshake timed out")

	// ErrDecode means an incoming frame could not be parsed into an
	// envelope. The frame is dropped; the connection is unaffected.
	ErrDecode = errors.New("realtime: malformed frame")
)
