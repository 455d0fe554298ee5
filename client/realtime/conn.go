package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	craftlink "github.com/craftlink/craftlink-go/client"
)

const (
	defaultBaseRetryDelay   = 5 * time.Second
	defaultMaxRetries       = 5
	defaultHandshakeTimeout = 10 * time.Second
	defaultPingInterval     = 30 * time.Second
	defaultWriteTimeout     = 10 * time.Second

	// backoffCeilingFactor caps the exponential delay at base * 10.
	backoffCeilingFactor = 10
)

// Options tunes a connection. The zero value gives production defaults;
// tests shrink the timing knobs to milliseconds.
type Options struct {
	// BaseRetryDelay is the first reconnect delay; the Nth retry waits
	// base * 2^N, capped at base * 10. Default 5s.
	BaseRetryDelay time.Duration
	// MaxRetries bounds consecutive failed attempts before the handle
	// goes to StateFailed. Default 5.
	MaxRetries int
	// HandshakeTimeout bounds both the transport dial and the wait for
	// the first authenticated frame. Default 10s.
	HandshakeTimeout time.Duration
	// PingInterval spaces outbound ping frames while Ready. Zero means
	// the 30s default; negative disables pings.
	PingInterval time.Duration
	// WriteTimeout bounds a single frame write. Default 10s.
	WriteTimeout time.Duration
	// Logger receives connection lifecycle logs. Nil discards.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.BaseRetryDelay <= 0 {
		o.BaseRetryDelay = defaultBaseRetryDelay
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.PingInterval == 0 {
		o.PingInterval = defaultPingInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// GlobalStream returns the endpoint for the account-wide notification
// stream. wsBase is a ws:// or wss:// base URL (craftlink.Config
// derives it from the REST base).
func GlobalStream(wsBase string) string {
	return wsBase + "/api/chat/updates"
}

// RoomStream returns the endpoint for one chat room's stream.
func RoomStream(wsBase string, roomID int64) string {
	return fmt.Sprintf("%s/api/chat/%d/ws", wsBase, roomID)
}

// Conn owns at most one live transport to a given endpoint and identity,
// recovering transparently from unexpected drops. All failure modes are
// state transitions, never panics: transport errors re-enter
// StateConnecting after a backoff delay until the retry bound, and only
// Close or a normal server closure reaches StateClosed.
//
// A Conn is a single logical handle. The global notification stream and
// a per-room stream are two independent Conn values with independent
// retry counters and timers; they share state only through whatever
// feed or transcript their dispatchers are attached to.
type Conn struct {
	endpoint   string
	creds      craftlink.CredentialProvider
	dispatcher *Dispatcher
	opts       Options
	logger     *slog.Logger

	mu      sync.Mutex
	state   State
	lastErr error
	ws      *websocket.Conn
	cancel  context.CancelFunc
	done    chan struct{}
	retries int

	// writeMu serializes frame writes; the ping loop and callers of
	// Send would otherwise interleave on the transport.
	writeMu sync.Mutex

	listenerMu sync.Mutex
	listeners  []func(State, error)
}

// NewConn creates a handle for one stream endpoint. The dispatcher
// receives every decoded frame; nil panics early rather than on the
// first frame.
func NewConn(endpoint string, creds craftlink.CredentialProvider, dispatcher *Dispatcher, opts Options) *Conn {
	if dispatcher == nil {
		panic("realtime: NewConn requires a dispatcher")
	}
	opts.defaults()
	logger := opts.Logger.With("session", uuid.NewString(), "endpoint", endpoint)
	return &Conn{
		endpoint:   endpoint,
		creds:      creds,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger,
		state:      StateIdle,
	}
}

// OnStateChange registers a listener invoked synchronously on every
// state transition. Register before Open to observe the first
// Connecting transition.
func (c *Conn) OnStateChange(fn func(State, error)) {
	c.listenerMu.Lock()
	c.listeners = append(c.listeners, fn)
	c.listenerMu.Unlock()
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that put the handle in StateFailed, or nil.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Open validates the credential and starts the connect loop. It returns
// once the loop is running; callers observe progress through
// OnStateChange, never by blocking. A missing token or identity fails
// synchronously with ErrMissingCredential and no transport attempt.
//
// Cancelling ctx closes the connection the same way Close does. A handle
// in StateClosed or StateFailed may be reopened; the retry counter
// starts fresh.
func (c *Conn) Open(ctx context.Context) error {
	token, err := c.creds.Token()
	if err != nil || token == "" {
		return fmt.Errorf("%w: token: %v", ErrMissingCredential, err)
	}
	ident, err := c.creds.Identity()
	if err != nil || ident.Zero() {
		return fmt.Errorf("%w: identity: %v", ErrMissingCredential, err)
	}

	c.mu.Lock()
	switch c.state {
	case StateIdle, StateClosed, StateFailed:
		// fresh start
	default:
		c.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrAlreadyOpen, c.state)
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.retries = 0
	c.lastErr = nil
	c.mu.Unlock()

	c.logger.Info("opening connection", "user", ident.ID)
	go c.run(runCtx, token)
	return nil
}

// Close shuts the connection down deterministically: any pending
// reconnect timer is cancelled before Close returns, so no attempt can
// fire afterwards. Safe to call from any state, idempotent, and the only
// path (besides a normal server closure) into StateClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.state == StateIdle || c.state == StateClosed || c.state == StateClosing {
		c.mu.Unlock()
		return nil
	}
	changed := c.transitionLocked(StateClosing, nil)
	cancel := c.cancel
	done := c.done
	ws := c.ws
	c.mu.Unlock()
	if changed {
		c.notify(StateClosing, nil)
	}

	// Cancelling the run context invalidates a pending backoff timer
	// synchronously: the timer wait selects on ctx.Done.
	if cancel != nil {
		cancel()
	}
	if ws != nil {
		c.writeMu.Lock()
		ws.SetWriteDeadline(time.Now().Add(time.Second))
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		_ = ws.Close()
	}

	if done != nil {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			c.logger.Warn("connect loop did not exit in time")
		}
	}

	c.setState(StateClosed, nil)
	c.logger.Info("connection closed")
	return nil
}

// Send writes one envelope. Only permitted in StateReady: anywhere else
// the frame is dropped with ErrNotReady and a warning, with no side
// effects, and the caller decides whether to queue or discard.
func (c *Conn) Send(env Envelope) error {
	c.mu.Lock()
	ws := c.ws
	state := c.state
	c.mu.Unlock()

	if state != StateReady || ws == nil {
		c.logger.Warn("dropping outbound frame, connection not ready",
			"type", env.Type,
			"state", state.String())
		return fmt.Errorf("%w: state %s", ErrNotReady, state)
	}
	return c.writeFrame(ws, env)
}

func (c *Conn) writeFrame(ws *websocket.Conn, env Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, Encode(env)); err != nil {
		return fmt.Errorf("write %s frame: %w", env.Type, err)
	}
	return nil
}

// run is the connect loop: dial, authenticate, read until failure, then
// back off and try again up to the retry bound. One goroutine per Open.
func (c *Conn) run(ctx context.Context, token string) {
	defer close(c.done)

	for {
		c.setState(StateConnecting, nil)

		err := c.connectOnce(ctx, token)

		if ctx.Err() != nil {
			// Manual close or caller context cancellation.
			c.setState(StateClosed, nil)
			return
		}

		if errors.Is(err, errServerClosed) {
			c.logger.Info("server closed the connection normally")
			c.setState(StateClosed, nil)
			return
		}

		c.mu.Lock()
		c.retries++
		attempt := c.retries
		bound := c.opts.MaxRetries
		c.mu.Unlock()

		if attempt >= bound {
			failure := fmt.Errorf("%w after %d attempts: %v", ErrMaxRetries, attempt, err)
			c.logger.Error("giving up on connection", "attempts", attempt, "error", err)
			c.setState(StateFailed, failure)
			return
		}

		delay := c.backoff(attempt)
		c.logger.Warn("connection attempt failed, retrying",
			"attempt", attempt,
			"max", bound,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			c.setState(StateClosed, nil)
			return
		case <-time.After(delay):
		}
	}
}

// errServerClosed marks a close frame with code 1000: a deliberate
// server-side shutdown that must not trigger a reconnect.
var errServerClosed = errors.New("realtime: server closed connection")

// connectOnce performs one full dial-auth-read cycle and returns the
// reason the transport ended.
func (c *Conn) connectOnce(ctx context.Context, token string) error {
	ws, err := c.dial(ctx, token)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.ws = ws
	changed := c.transitionLocked(StateAuthenticating, nil)
	c.mu.Unlock()
	if changed {
		c.notify(StateAuthenticating, nil)
	}

	defer func() {
		c.mu.Lock()
		if c.ws == ws {
			c.ws = nil
		}
		c.mu.Unlock()
		ws.Close()
	}()

	if err := c.writeFrame(ws, Auth(token)); err != nil {
		return fmt.Errorf("auth handshake: %w", err)
	}

	return c.readLoop(ctx, ws)
}

func (c *Conn) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.opts.HandshakeTimeout,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialURL := c.endpoint + "?token=" + url.QueryEscape(token)
	ws, resp, err := dialer.DialContext(ctx, dialURL, header)
	if err != nil {
		if resp != nil {
			c.logger.Warn("websocket handshake rejected", "status", resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", c.endpoint, err)
	}
	return ws, nil
}

// readLoop consumes frames until the transport ends. The first decoded
// frame (the auth acknowledgement in practice, but any valid frame
// counts) promotes the connection to Ready and resets the retry
// counter; malformed frames are dropped without touching the state.
func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) error {
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()

	ready := false
	for {
		if !ready {
			ws.SetReadDeadline(time.Now().Add(c.opts.HandshakeTimeout))
		} else if c.opts.PingInterval > 0 {
			// Expect traffic (at minimum our own ping echoes the TCP
			// path) within two intervals; a silent peer is dead.
			ws.SetReadDeadline(time.Now().Add(3 * c.opts.PingInterval))
		} else {
			ws.SetReadDeadline(time.Time{})
		}

		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errServerClosed
			}
			var netErr net.Error
			if !ready && errors.As(err, &netErr) && netErr.Timeout() {
				return fmt.Errorf("%w: no frame within %s", ErrHandshakeTimeout, c.opts.HandshakeTimeout)
			}
			return fmt.Errorf("read frame: %w", err)
		}

		env, derr := Decode(data)
		if derr != nil {
			c.logger.Warn("dropping malformed frame", "error", derr, "size", len(data))
			continue
		}

		if !ready {
			ready = true
			c.mu.Lock()
			c.retries = 0
			changed := c.transitionLocked(StateReady, nil)
			c.mu.Unlock()
			if changed {
				c.notify(StateReady, nil)
			}
			c.logger.Info("connection ready", "first_frame", env.Type)
			if c.opts.PingInterval > 0 {
				go c.pingLoop(pingCtx)
			}
		}

		c.dispatcher.Dispatch(env)
	}
}

// pingLoop sends liveness probes while the connection is Ready. Send
// failures are left to the read loop, which sees the transport error
// first-hand and drives the retry path.
func (c *Conn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Send(Ping()); err != nil {
				c.logger.Debug("ping not sent", "error", err)
				return
			}
		}
	}
}

// backoff returns the delay before the given (1-based) retry attempt:
// base * 2^(attempt-1), capped at base * 10.
func (c *Conn) backoff(attempt int) time.Duration {
	delay := c.opts.BaseRetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.opts.BaseRetryDelay*backoffCeilingFactor {
			return c.opts.BaseRetryDelay * backoffCeilingFactor
		}
	}
	return delay
}

func (c *Conn) setState(s State, err error) {
	c.mu.Lock()
	changed := c.transitionLocked(s, err)
	c.mu.Unlock()
	if changed {
		c.notify(s, err)
	}
}

// transitionLocked applies a state change under c.mu and reports whether
// it took effect. Listeners are notified by the caller after the lock is
// released so they may call back into the Conn.
func (c *Conn) transitionLocked(s State, err error) bool {
	if c.state == s && err == nil {
		return false
	}
	// Closing is sticky until Close finishes: the run loop's concurrent
	// Closed/Connecting transitions must not resurrect the state.
	if c.state == StateClosing && s != StateClosed {
		return false
	}
	c.state = s
	if err != nil {
		c.lastErr = err
	}
	return true
}

// notify invokes state listeners synchronously and in registration
// order, so observers see transitions in the order they happened.
func (c *Conn) notify(s State, err error) {
	c.listenerMu.Lock()
	listeners := make([]func(State, error), len(c.listeners))
	copy(listeners, c.listeners)
	c.listenerMu.Unlock()
	for _, fn := range listeners {
		fn(s, err)
	}
}
