package craftlink

import "time"

// Notification is a single in-app notification as served by
// GET /api/notifications and pushed over the realtime stream.
// ID is the stable identity key: the feed never holds two entries
// with the same ID regardless of which source delivered them.
type Notification struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatMessage is one message inside a chat room transcript.
type ChatMessage struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	SenderID  int64     `json:"senderId"`
	Read      bool      `json:"read"`
	System    bool      `json:"system,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatRoom describes a conversation between a client and a provider/seller.
type ChatRoom struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	ClientID     int64        `json:"clientId"`
	ProviderID   int64        `json:"providerId"`
	LastMessage  *ChatMessage `json:"lastMessage,omitempty"`
	UnreadCount  int          `json:"unreadCount"`
	LastActivity time.Time    `json:"lastActivity"`
}

// PaymentAgreement is a payment proposal negotiated inside a chat room.
// Status is one of "proposed", "accepted", "declined", "cancelled".
type PaymentAgreement struct {
	ID         int64     `json:"id"`
	ChatRoomID int64     `json:"chatRoomId"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	Status     string    `json:"status"`
	ProposerID int64     `json:"proposerId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UserRef identifies the authenticated user on whose behalf a
// connection or API call is made.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

// Zero reports whether the reference carries no identity.
func (u UserRef) Zero() bool {
	return u.ID == 0 && u.Username == ""
}
