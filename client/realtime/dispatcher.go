package realtime

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	craftlink "github.com/craftlink/craftlink-go/client"
)

// Dispatcher routes decoded envelopes by type to registered handlers,
// decoupling the transport from application state. Dispatch runs on the
// connection's receive path, so handlers must return quickly; a handler
// that needs I/O hands off to a goroutine of its own.
//
// Registration is expected before the connection opens; it is safe
// afterwards but handlers only see frames that arrive after they are
// registered.
type Dispatcher struct {
	mu     sync.RWMutex
	logger *slog.Logger

	onAuthSuccess     []func()
	onNewMessage      []func(craftlink.ChatMessage)
	onMessageRead     []func(int64)
	onAgreement       []func(craftlink.PaymentAgreement)
	onNotification    []func(craftlink.Notification)
	onInitialBatch    []func([]craftlink.Notification)
	onInterestAccept  []func(int64)
	onChatRoomCreated []func(craftlink.ChatRoom)
	generic           map[MessageType][]func(Envelope)
}

// NewDispatcher creates a dispatcher. A nil logger discards.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		logger:  logger,
		generic: make(map[MessageType][]func(Envelope)),
	}
}

// OnAuthSuccess registers a handler for the auth acknowledgement.
func (d *Dispatcher) OnAuthSuccess(h func()) {
	d.mu.Lock()
	d.onAuthSuccess = append(d.onAuthSuccess, h)
	d.mu.Unlock()
}

// OnNewMessage registers a handler for pushed chat messages.
func (d *Dispatcher) OnNewMessage(h func(craftlink.ChatMessage)) {
	d.mu.Lock()
	d.onNewMessage = append(d.onNewMessage, h)
	d.mu.Unlock()
}

// OnMessageRead registers a handler for read receipts.
func (d *Dispatcher) OnMessageRead(h func(messageID int64)) {
	d.mu.Lock()
	d.onMessageRead = append(d.onMessageRead, h)
	d.mu.Unlock()
}

// OnPaymentAgreement registers a handler for agreement events.
func (d *Dispatcher) OnPaymentAgreement(h func(craftlink.PaymentAgreement)) {
	d.mu.Lock()
	d.onAgreement = append(d.onAgreement, h)
	d.mu.Unlock()
}

// OnNotification registers a handler for pushed notifications. Both the
// "notification" and "new_notification" tags route here; the backend
// uses the two interchangeably.
func (d *Dispatcher) OnNotification(h func(craftlink.Notification)) {
	d.mu.Lock()
	d.onNotification = append(d.onNotification, h)
	d.mu.Unlock()
}

// OnInitialNotifications registers a handler for the server-pushed
// notification batch sent right after authentication.
func (d *Dispatcher) OnInitialNotifications(h func([]craftlink.Notification)) {
	d.mu.Lock()
	d.onInitialBatch = append(d.onInitialBatch, h)
	d.mu.Unlock()
}

// OnInterestAccepted registers a handler for accepted service requests.
func (d *Dispatcher) OnInterestAccepted(h func(requestID int64)) {
	d.mu.Lock()
	d.onInterestAccept = append(d.onInterestAccept, h)
	d.mu.Unlock()
}

// OnChatRoomCreated registers a handler for new chat room events.
func (d *Dispatcher) OnChatRoomCreated(h func(craftlink.ChatRoom)) {
	d.mu.Lock()
	d.onChatRoomCreated = append(d.onChatRoomCreated, h)
	d.mu.Unlock()
}

// OnAny registers a raw handler for one type, typed or not. Useful for
// forward-compatibility with tags this package does not model.
func (d *Dispatcher) OnAny(t MessageType, h func(Envelope)) {
	d.mu.Lock()
	d.generic[t] = append(d.generic[t], h)
	d.mu.Unlock()
}

// Dispatch routes one envelope. It is total: unknown types and malformed
// payloads are logged at warning level and dropped, never surfaced as an
// error to the transport.
func (d *Dispatcher) Dispatch(env Envelope) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	known := true
	switch env.Type {
	case TypeAuthSuccess:
		for _, h := range d.onAuthSuccess {
			h()
		}

	case TypeNewMessage:
		var p newMessagePayload
		if !d.decodePayload(env, &p) {
			return
		}
		for _, h := range d.onNewMessage {
			h(p.Message)
		}

	case TypeMessageRead:
		var p messageReadPayload
		if !d.decodePayload(env, &p) {
			return
		}
		for _, h := range d.onMessageRead {
			h(p.MessageID)
		}

	case TypePaymentAgreement:
		var p paymentAgreementPayload
		if !d.decodePayload(env, &p) {
			return
		}
		for _, h := range d.onAgreement {
			h(p.Agreement)
		}

	case TypeNotification, TypeNewNotification:
		var p notificationPayload
		if !d.decodePayload(env, &p) {
			return
		}
		for _, h := range d.onNotification {
			h(p.Data)
		}

	case TypeInitialNotifications:
		var p initialNotificationsPayload
		if !d.decodePayload(env, &p) {
			return
		}
		for _, h := range d.onInitialBatch {
			h(p.Data)
		}

	case TypeInterestAccepted:
		var p interestAcceptedPayload
		if !d.decodePayload(env, &p) {
			return
		}
		for _, h := range d.onInterestAccept {
			h(p.RequestID)
		}

	case TypeChatRoomCreated:
		var p chatRoomCreatedPayload
		if !d.decodePayload(env, &p) {
			return
		}
		for _, h := range d.onChatRoomCreated {
			h(p.ChatRoom)
		}

	default:
		known = false
	}

	if handlers, ok := d.generic[env.Type]; ok {
		known = true
		for _, h := range handlers {
			h(env)
		}
	}

	if !known {
		d.logger.Warn("dropping message of unknown type", "type", env.Type)
	}
}

func (d *Dispatcher) decodePayload(env Envelope, out any) bool {
	if err := json.Unmarshal(env.Raw, out); err != nil {
		d.logger.Warn("dropping message with malformed payload",
			"type", env.Type,
			"error", err)
		return false
	}
	return true
}

// AttachFeed binds a notification feed to the dispatcher: pushed
// notifications land in the feed and the server's initial batch loads as
// a snapshot. Feed operations are atomic, so attaching the same feed to
// the global stream and a room stream is safe.
func AttachFeed(d *Dispatcher, feed *craftlink.NotificationFeed) {
	d.OnNotification(feed.ApplyPush)
	d.OnInitialNotifications(feed.LoadSnapshot)
}

// AttachTranscript binds a room transcript: new messages append, read
// receipts mutate in place, agreement events synthesize system messages.
func AttachTranscript(d *Dispatcher, t *craftlink.Transcript) {
	d.OnNewMessage(t.Append)
	d.OnMessageRead(t.MarkMessageRead)
	d.OnPaymentAgreement(t.ApplyAgreement)
}
