package realtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	craftlink "github.com/craftlink/craftlink-go/client"
	"github.com/craftlink/craftlink-go/client/realtime"
	"github.com/craftlink/craftlink-go/client/realtime/mocktesting"
)

var testCreds = craftlink.StaticCredentials{
	BearerToken: "test-token",
	User:        craftlink.UserRef{ID: 1, Username: "ada"},
}

// fastOptions keeps the retry machinery in the millisecond range so the
// timing-sensitive tests finish quickly.
func fastOptions() realtime.Options {
	return realtime.Options{
		BaseRetryDelay:   10 * time.Millisecond,
		HandshakeTimeout: 500 * time.Millisecond,
		PingInterval:     -1,
	}
}

// stateRecorder captures every transition a Conn reports.
type stateRecorder struct {
	mu     sync.Mutex
	states []realtime.State
	errs   []error
}

func (r *stateRecorder) record(s realtime.State, err error) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *stateRecorder) list() []realtime.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]realtime.State, len(r.states))
	copy(out, r.states)
	return out
}

func (r *stateRecorder) count(want realtime.State) int {
	n := 0
	for _, s := range r.list() {
		if s == want {
			n++
		}
	}
	return n
}

func waitState(t *testing.T, c *realtime.Conn, want realtime.State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want },
		2*time.Second, 5*time.Millisecond, "waiting for state %s, at %s", want, c.State())
}

func newTestConn(t *testing.T, srv *mocktesting.Server, creds craftlink.CredentialProvider, opts realtime.Options) (*realtime.Conn, *stateRecorder) {
	t.Helper()
	conn := realtime.NewConn(realtime.GlobalStream(srv.WSBase()), creds, realtime.NewDispatcher(nil), opts)
	rec := &stateRecorder{}
	conn.OnStateChange(rec.record)
	t.Cleanup(func() { conn.Close() })
	return conn, rec
}

func TestOpenMissingCredential(t *testing.T) {
	srv := mocktesting.NewServer()
	t.Cleanup(srv.Close)
	conn, _ := newTestConn(t, srv, craftlink.StaticCredentials{}, fastOptions())

	err := conn.Open(context.Background())
	require.ErrorIs(t, err, realtime.ErrMissingCredential)

	// The failure is synchronous: no goroutine, no transport attempt.
	assert.Equal(t, realtime.StateIdle, conn.State())
	assert.Zero(t, srv.UpgradeAttempts())
}

func TestOpenReachesReady(t *testing.T) {
	srv := mocktesting.NewServer()
	t.Cleanup(srv.Close)
	conn, rec := newTestConn(t, srv, testCreds, fastOptions())

	require.NoError(t, conn.Open(context.Background()))
	waitState(t, conn, realtime.StateReady)

	assert.Equal(t, []realtime.State{
		realtime.StateConnecting,
		realtime.StateAuthenticating,
		realtime.StateReady,
	}, rec.list())
	assert.Contains(t, srv.ReceivedTypes(), "auth")

	require.NoError(t, conn.Close())
	assert.Equal(t, realtime.StateClosed, conn.State())
}

func TestOpenWhileActive(t *testing.T) {
	srv := mocktesting.NewServer()
	t.Cleanup(srv.Close)
	conn, _ := newTestConn(t, srv, testCreds, fastOptions())

	require.NoError(t, conn.Open(context.Background()))
	waitState(t, conn, realtime.StateReady)

	err := conn.Open(context.Background())
	assert.ErrorIs(t, err, realtime.ErrAlreadyOpen)
}

func TestSendOnlyWhenReady(t *testing.T) {
	srv := mocktesting.NewServer()
	t.Cleanup(srv.Close)
	conn, _ := newTestConn(t, srv, testCreds, fastOptions())

	err := conn.Send(realtime.SendMessage("too early"))
	assert.ErrorIs(t, err, realtime.ErrNotReady)

	require.NoError(t, conn.Open(context.Background()))
	waitState(t, conn, realtime.StateReady)

	require.NoError(t, conn.Send(realtime.MarkAsRead(41)))
	require.Eventually(t, func() bool {
		for _, typ := range srv.ReceivedTypes() {
			if typ == "mark_as_read" {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	err = conn.Send(realtime.SendMessage("too late"))
	assert.ErrorIs(t, err, realtime.ErrNotReady)
}

func TestManualCloseStopsReconnect(t *testing.T) {
	srv := mocktesting.NewServer()
	t.Cleanup(srv.Close)
	conn, _ := newTestConn(t, srv, testCreds, fastOptions())

	require.NoError(t, conn.Open(context.Background()))
	waitState(t, conn, realtime.StateReady)
	require.NoError(t, conn.Close())

	// Several backoff windows pass without a new transport attempt.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, srv.UpgradeAttempts())
	assert.Equal(t, realtime.StateClosed, conn.State())
}

func TestServerNormalCloseDoesNotReconnect(t *testing.T) {
	srv := mocktesting.NewServer()
	t.Cleanup(srv.Close)
	conn, _ := newTestConn(t, srv, testCreds, fastOptions())

	require.NoError(t, conn.Open(context.Background()))
	waitState(t, conn, realtime.StateReady)

	srv.CloseClients(1000)
	waitState(t, conn, realtime.StateClosed)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, srv.UpgradeAttempts())
}

func TestAbnormalCloseReconnects(t *testing.T) {
	srv := mocktesting.NewServer()
	t.Cleanup(srv.Close)
	conn, rec := newTestConn(t, srv, testCreds, fastOptions())

	require.NoError(t, conn.Open(context.Background()))
	waitState(t, conn, realtime.StateReady)

	srv.CloseClients(1011)

	require.Eventually(t, func() bool { return srv.UpgradeAttempts() == 2 },
		2*time.Second, 5*time.Millisecond)
	waitState(t, conn, realtime.StateReady)
	assert.Equal(t, 2, rec.count(realtime.StateReady))
}

func TestRetryBoundThenFailed(t *testing.T) {
	srv := mocktesting.NewServer()
	t.Cleanup(srv.Close)
	// The server never acknowledges auth, so every attempt dies on the
	// handshake window.
	srv.SetSilent(true)

	opts := fastOptions()
	opts.BaseRetryDelay = 2 * time.Millisecond
	opts.HandshakeTimeout = 25 * time.Millisecond
	opts.MaxRetries = 5
	conn, rec := newTestConn(t, srv, testCreds, opts)

	require.NoError(t, conn.Open(context.Background()))
	waitState(t, conn, realtime.StateFailed)

	require.ErrorIs(t, conn.Err(), realtime.ErrMaxRetries)
	assert.Equal(t, 5, srv.UpgradeAttempts())
	assert.Equal(t, 5, rec.count(realtime.StateConnecting))

	// Failed is terminal: no further attempt fires on its own.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 5, srv.UpgradeAttempts())

	// An explicit reopen starts over with a fresh retry budget.
	srv.SetSilent(false)
	require.NoError(t, conn.Open(context.Background()))
	waitState(t, conn, realtime.StateReady)
	assert.NoError(t, conn.Close())
}

func TestContextCancelClosesConnection(t *testing.T) {
	srv := mocktesting.NewServer()
	t.Cleanup(srv.Close)
	opts := fastOptions()
	opts.PingInterval = 20 * time.Millisecond
	conn, _ := newTestConn(t, srv, testCreds, opts)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, conn.Open(ctx))
	waitState(t, conn, realtime.StateReady)

	cancel()
	waitState(t, conn, realtime.StateClosed)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, srv.UpgradeAttempts())
}

func TestStreamSurvivesMalformedFrames(t *testing.T) {
	srv := mocktesting.NewServer()
	t.Cleanup(srv.Close)

	dispatcher := realtime.NewDispatcher(nil)
	feed := craftlink.NewNotificationFeed()
	realtime.AttachFeed(dispatcher, feed)

	conn := realtime.NewConn(realtime.GlobalStream(srv.WSBase()), testCreds, dispatcher, fastOptions())
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.Open(context.Background()))
	waitState(t, conn, realtime.StateReady)

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, srv.PushInitialNotifications([]craftlink.Notification{
		{ID: 1, Title: "first", CreatedAt: at},
		{ID: 2, Title: "second", CreatedAt: at.Add(time.Minute)},
	}))
	require.NoError(t, srv.PushRaw([]byte("{{{ not json")))
	require.NoError(t, srv.PushRaw([]byte(`{"type":"mystery","x":1}`)))
	require.NoError(t, srv.PushNotification(craftlink.Notification{
		ID: 3, Title: "third", CreatedAt: at.Add(2 * time.Minute),
	}))

	require.Eventually(t, func() bool { return feed.Len() == 3 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, realtime.StateReady, conn.State())
	assert.Equal(t, 1, srv.UpgradeAttempts())
}

func TestRoomStreamEndpoint(t *testing.T) {
	assert.Equal(t, "ws://api/api/chat/12/ws", realtime.RoomStream("ws://api", 12))
	assert.Equal(t, "ws://api/api/chat/updates", realtime.GlobalStream("ws://api"))
}
