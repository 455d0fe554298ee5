package craftlink_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	craftlink "github.com/craftlink/craftlink-go/client"
	"github.com/craftlink/craftlink-go/client/realtime/mocktesting"
)

func testClient(t *testing.T) (*craftlink.Client, *mocktesting.Server) {
	t.Helper()
	srv := mocktesting.NewServer()
	t.Cleanup(srv.Close)

	client := craftlink.NewClient(
		craftlink.Config{APIBaseURL: srv.URL()},
		craftlink.StaticCredentials{BearerToken: "test-token", User: craftlink.UserRef{ID: 1}},
		nil, nil)
	return client, srv
}

func TestClientNotifications(t *testing.T) {
	client, srv := testClient(t)
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	srv.SetSnapshot([]craftlink.Notification{
		{ID: 1, Title: "New interest", CreatedAt: at},
		{ID: 2, Title: "Payment proposed", IsRead: true, CreatedAt: at.Add(time.Minute)},
	})

	got, err := client.Notifications(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "New interest", got[0].Title)
	assert.True(t, got[1].IsRead)
}

func TestClientMarkNotificationRead(t *testing.T) {
	client, srv := testClient(t)

	require.NoError(t, client.MarkNotificationRead(context.Background(), 7))
	require.NoError(t, client.MarkNotificationRead(context.Background(), 9))
	assert.Equal(t, []int64{7, 9}, srv.ReadAcks())
}

func TestClientChatRooms(t *testing.T) {
	client, srv := testClient(t)
	srv.SetChatRooms([]craftlink.ChatRoom{{ID: 12, Title: "Kitchen reno"}})

	rooms, err := client.ChatRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, int64(12), rooms[0].ID)
}

func TestClientAPIError(t *testing.T) {
	client, _ := testClient(t)

	// The mock server has no handler for this room path.
	_, err := client.ChatMessages(context.Background(), 99)
	require.Error(t, err)
	var apiErr *craftlink.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
}

func TestClientMissingCredential(t *testing.T) {
	srv := mocktesting.NewServer()
	t.Cleanup(srv.Close)
	client := craftlink.NewClient(
		craftlink.Config{APIBaseURL: srv.URL()},
		craftlink.StaticCredentials{}, nil, nil)

	_, err := client.Notifications(context.Background())
	assert.ErrorIs(t, err, craftlink.ErrNoCredential)
}
