package craftlink_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	craftlink "github.com/craftlink/craftlink-go/client"
)

func msg(id int64, content string, at time.Time) craftlink.ChatMessage {
	return craftlink.ChatMessage{ID: id, Content: content, SenderID: 1, CreatedAt: at}
}

func TestTranscriptMergesHistoryAndPush(t *testing.T) {
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	tr := craftlink.NewTranscript(12)

	tr.Load([]craftlink.ChatMessage{
		msg(1, "hey", base),
		msg(2, "quote attached", base.Add(time.Minute)),
	})
	// The newest history entry also arrives as a push.
	tr.Append(msg(2, "quote attached", base.Add(time.Minute)))
	tr.Append(msg(3, "sounds good", base.Add(2*time.Minute)))

	got := tr.Messages()
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(3), got[2].ID)
}

func TestTranscriptReadReceipt(t *testing.T) {
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	tr := craftlink.NewTranscript(12)
	tr.Append(msg(5, "ping", base))

	tr.MarkMessageRead(5)
	tr.MarkMessageRead(999) // receipt for a message we never saw

	got := tr.Messages()
	require.Len(t, got, 1)
	assert.True(t, got[0].Read)

	// A late duplicate of the message must not clear the flag.
	tr.Append(msg(5, "ping", base))
	assert.True(t, tr.Messages()[0].Read)
}

func TestTranscriptAgreementSystemMessage(t *testing.T) {
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	tr := craftlink.NewTranscript(12)
	tr.Append(msg(1, "deal?", base))

	tr.ApplyAgreement(craftlink.PaymentAgreement{
		ID:         40,
		ChatRoomID: 12,
		Amount:     1500,
		Currency:   "NOK",
		Status:     "proposed",
		CreatedAt:  base.Add(time.Minute),
	})
	tr.ApplyAgreement(craftlink.PaymentAgreement{
		ID:         40,
		ChatRoomID: 12,
		Amount:     1500,
		Currency:   "NOK",
		Status:     "accepted",
		CreatedAt:  base.Add(2 * time.Minute),
	})

	got := tr.Messages()
	require.Len(t, got, 3)
	assert.True(t, got[1].System)
	assert.Contains(t, got[1].Content, "proposed")
	assert.Contains(t, got[2].Content, "accepted")
	assert.Contains(t, got[2].Content, "1500.00 NOK")
	// Synthetic IDs stay clear of backend-assigned ones.
	assert.Negative(t, got[1].ID)
	assert.NotEqual(t, got[1].ID, got[2].ID)
}

func TestTranscriptOrdering(t *testing.T) {
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	tr := craftlink.NewTranscript(12)
	tr.Append(msg(3, "c", base.Add(2*time.Minute)))
	tr.Append(msg(1, "a", base))
	tr.Append(msg(2, "b", base.Add(time.Minute)))

	got := tr.Messages()
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].CreatedAt.Before(got[i].CreatedAt))
	}
}
