package realtime

import (
	"encoding/json"

	craftlink "github.com/craftlink/craftlink-go/client"
)

// MessageType is the envelope's type tag. The vocabulary is fixed by the
// backend protocol; unknown tags are logged and dropped so the connection
// survives a backend protocol change.
type MessageType string

const (
	TypeAuth                 MessageType = "auth"
	TypeAuthSuccess          MessageType = "auth_success"
	TypePing                 MessageType = "ping"
	TypeNewMessage           MessageType = "new_message"
	TypeMessageRead          MessageType = "message_read"
	TypePaymentAgreement     MessageType = "payment_agreement"
	TypeNotification         MessageType = "notification"
	TypeNewNotification      MessageType = "new_notification"
	TypeInitialNotifications MessageType = "initial_notifications"
	TypeMarkAsRead           MessageType = "mark_as_read"
	TypeMarkAllRead          MessageType = "mark_all_read"
	TypeInterestAccepted     MessageType = "interest_accepted"
	TypeChatRoomCreated      MessageType = "chat_room_created"
	TypeSendMessage          MessageType = "send_message"
)

// Envelope is one wire message. Raw holds the full frame, type tag
// included; payload fields sit beside the tag at the top level, so typed
// payload structs unmarshal directly from Raw.
type Envelope struct {
	Type MessageType
	Raw  json.RawMessage
}

// Inbound payload shapes, one struct per type.

type newMessagePayload struct {
	Message craftlink.ChatMessage `json:"message"`
}

type messageReadPayload struct {
	MessageID int64 `json:"messageId"`
}

type paymentAgreementPayload struct {
	Agreement craftlink.PaymentAgreement `json:"agreement"`
}

type notificationPayload struct {
	Data craftlink.Notification `json:"data"`
}

type initialNotificationsPayload struct {
	Data []craftlink.Notification `json:"data"`
}

type interestAcceptedPayload struct {
	RequestID int64 `json:"requestId"`
}

type chatRoomCreatedPayload struct {
	ChatRoom craftlink.ChatRoom `json:"chatRoom"`
}

// Outbound frame shapes.

type authFrame struct {
	Type  MessageType `json:"type"`
	Token string      `json:"token"`
}

type pingFrame struct {
	Type MessageType `json:"type"`
}

type sendMessageFrame struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
}

type markAsReadFrame struct {
	Type           MessageType `json:"type"`
	NotificationID int64       `json:"notificationId"`
}

type markAllReadFrame struct {
	Type MessageType `json:"type"`
}
