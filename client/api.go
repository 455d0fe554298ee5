package craftlink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("craftlink api: status %d: %s", e.StatusCode, e.Body)
}

// Client is the REST client for the CraftLink backend. It covers the
// endpoints the realtime layer collaborates with: the notification
// snapshot, chat history, and payment agreements.
type Client struct {
	baseURL string
	creds   CredentialProvider
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a REST client. A nil httpClient falls back to a
// client with a 30s timeout; a nil logger discards.
func NewClient(cfg Config, creds CredentialProvider, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL: cfg.APIBaseURL,
		creds:   creds,
		http:    httpClient,
		logger:  logger,
	}
}

// Notifications fetches the point-in-time notification snapshot.
// The result is ordered by the backend; callers feeding a
// NotificationFeed do not rely on that order.
func (c *Client) Notifications(ctx context.Context) ([]Notification, error) {
	var out []Notification
	if err := c.do(ctx, http.MethodGet, "/api/notifications", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch notifications: %w", err)
	}
	return out, nil
}

// MarkNotificationRead acknowledges a single notification on the backend.
// Callers mutate the feed optimistically first; this call is the
// fire-and-forget confirmation.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/api/notifications/%d/read", id)
	if err := c.do(ctx, http.MethodPatch, path, nil, nil); err != nil {
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	return nil
}

// ChatRooms lists the chat rooms visible to the authenticated user.
func (c *Client) ChatRooms(ctx context.Context) ([]ChatRoom, error) {
	var out []ChatRoom
	if err := c.do(ctx, http.MethodGet, "/api/chat", nil, &out); err != nil {
		return nil, fmt.Errorf("list chat rooms: %w", err)
	}
	return out, nil
}

// ChatRoom fetches a single chat room by ID.
func (c *Client) ChatRoom(ctx context.Context, roomID int64) (*ChatRoom, error) {
	var out ChatRoom
	path := fmt.Sprintf("/api/chat/chats/%d", roomID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch chat room %d: %w", roomID, err)
	}
	return &out, nil
}

// ChatMessages fetches the message history for a room, oldest first.
func (c *Client) ChatMessages(ctx context.Context, roomID int64) ([]ChatMessage, error) {
	var out []ChatMessage
	path := fmt.Sprintf("/api/chat/%d/messages", roomID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch messages for room %d: %w", roomID, err)
	}
	return out, nil
}

// ProposeAgreement creates a payment agreement inside a chat room.
func (c *Client) ProposeAgreement(ctx context.Context, roomID int64, amount float64, currency string) (*PaymentAgreement, error) {
	body := map[string]any{"amount": amount, "currency": currency}
	var out PaymentAgreement
	path := fmt.Sprintf("/api/chat/%d/agreements", roomID)
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, fmt.Errorf("propose agreement in room %d: %w", roomID, err)
	}
	return &out, nil
}

// AcceptAgreement accepts a previously proposed payment agreement.
func (c *Client) AcceptAgreement(ctx context.Context, roomID, agreementID int64) (*PaymentAgreement, error) {
	var out PaymentAgreement
	path := fmt.Sprintf("/api/chat/%d/agreements/%d/accept", roomID, agreementID)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, fmt.Errorf("accept agreement %d in room %d: %w", agreementID, roomID, err)
	}
	return &out, nil
}

// do executes one authenticated JSON request. out may be nil for calls
// whose response body is irrelevant.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.creds.Token()
	if err != nil {
		return fmt.Errorf("credential: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("api request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode)
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
