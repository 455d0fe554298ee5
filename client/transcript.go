package craftlink

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Transcript holds one chat room's message history merged with live
// pushes. Messages are append-only; Read is the only field mutated in
// place, when a read receipt arrives for a matching ID.
type Transcript struct {
	mu       sync.Mutex
	roomID   int64
	byID     map[int64]ChatMessage
	systemID int64
}

// NewTranscript creates an empty transcript for a room.
func NewTranscript(roomID int64) *Transcript {
	return &Transcript{roomID: roomID, byID: make(map[int64]ChatMessage)}
}

// RoomID returns the room this transcript belongs to.
func (t *Transcript) RoomID() int64 { return t.roomID }

// Load seeds the transcript from REST-fetched history.
func (t *Transcript) Load(history []ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range history {
		t.byID[m.ID] = m
	}
}

// Append adds a pushed message. A repeated ID (history overlapping with a
// push for the same message) updates the stored entry without losing a
// read flag already set.
func (t *Transcript) Append(m ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.byID[m.ID]; ok && cur.Read {
		m.Read = true
	}
	t.byID[m.ID] = m
}

// MarkMessageRead marks one message read in place. Unknown IDs are
// ignored: a receipt can race ahead of its message on a second stream.
func (t *Transcript) MarkMessageRead(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m, ok := t.byID[id]; ok {
		m.Read = true
		t.byID[id] = m
	}
}

// ApplyAgreement records a payment agreement update by synthesizing a
// system message in the transcript, mirroring how the backend surfaces
// agreement events inside the conversation.
func (t *Transcript) ApplyAgreement(a PaymentAgreement) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.systemID--
	msg := ChatMessage{
		// Synthetic messages get negative IDs so they can never collide
		// with backend-assigned ones.
		ID:        t.systemID,
		Content:   fmt.Sprintf("Payment agreement %s: %.2f %s", a.Status, a.Amount, a.Currency),
		System:    true,
		CreatedAt: time.Now(),
	}
	if !a.CreatedAt.IsZero() {
		msg.CreatedAt = a.CreatedAt
	}
	t.byID[msg.ID] = msg
}

// Messages returns the transcript ordered by CreatedAt ascending, ties
// broken by ID ascending.
func (t *Transcript) Messages() []ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ChatMessage, 0, len(t.byID))
	for _, m := range t.byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
