package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode serializes an envelope to its wire form. Encode is total:
// envelopes built by the constructors below always carry a valid Raw
// frame, and a bare envelope degrades to just its type tag.
func Encode(env Envelope) []byte {
	if len(env.Raw) > 0 {
		return env.Raw
	}
	raw, _ := json.Marshal(pingFrame{Type: env.Type})
	return raw
}

// Decode parses an incoming frame into an envelope. It tolerates plain
// JSON objects and string-encoded JSON (the backend double-encodes some
// frames); anything else is an ErrDecode. Decode never panics and the
// caller drops the frame on error, so a malformed frame cannot tear down
// the connection.
func Decode(data []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty frame", ErrDecode)
	}

	// Double-encoded frame: a JSON string whose content is the object.
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return Envelope{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		trimmed = bytes.TrimSpace([]byte(inner))
	}

	var probe struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if probe.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type tag", ErrDecode)
	}

	raw := make([]byte, len(trimmed))
	copy(raw, trimmed)
	return Envelope{Type: probe.Type, Raw: raw}, nil
}

func mustEnvelope(t MessageType, frame any) Envelope {
	raw, err := json.Marshal(frame)
	if err != nil {
		// Frames are fixed structs of strings and integers; this cannot
		// fail at runtime.
		panic(fmt.Sprintf("realtime: marshal %s frame: %v", t, err))
	}
	return Envelope{Type: t, Raw: raw}
}

// Auth builds the authentication handshake frame.
func Auth(token string) Envelope {
	return mustEnvelope(TypeAuth, authFrame{Type: TypeAuth, Token: token})
}

// Ping builds the liveness probe frame.
func Ping() Envelope {
	return mustEnvelope(TypePing, pingFrame{Type: TypePing})
}

// SendMessage builds the outbound chat message intent.
func SendMessage(content string) Envelope {
	return mustEnvelope(TypeSendMessage, sendMessageFrame{Type: TypeSendMessage, Content: content})
}

// MarkAsRead builds the single-notification acknowledgement intent.
func MarkAsRead(notificationID int64) Envelope {
	return mustEnvelope(TypeMarkAsRead, markAsReadFrame{Type: TypeMarkAsRead, NotificationID: notificationID})
}

// MarkAllRead builds the acknowledge-everything intent.
func MarkAllRead() Envelope {
	return mustEnvelope(TypeMarkAllRead, markAllReadFrame{Type: TypeMarkAllRead})
}
