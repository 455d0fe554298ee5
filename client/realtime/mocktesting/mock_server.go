// Package mocktesting provides an in-process CraftLink backend double:
// the WebSocket stream endpoints plus the small REST surface the client
// collaborates with. Tests drive it to push frames, drop clients with
// chosen close codes, and count transport attempts.
package mocktesting

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	craftlink "github.com/craftlink/craftlink-go/client"
)

// Server is a mock CraftLink backend.
type Server struct {
	httpServer *httptest.Server
	upgrader   websocket.Upgrader

	mu           sync.Mutex
	conns        map[*websocket.Conn]bool
	upgradeCount int
	received     []json.RawMessage
	snapshot     []craftlink.Notification
	readAcks     []int64
	rooms        []craftlink.ChatRoom
	silent       bool
}

// NewServer starts the mock backend. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat/updates", s.handleStream)
	mux.HandleFunc("/api/chat/{room}/ws", s.handleStream)
	mux.HandleFunc("GET /api/notifications", s.handleNotifications)
	mux.HandleFunc("PATCH /api/notifications/{id}/read", s.handleMarkRead)
	mux.HandleFunc("GET /api/chat", s.handleChatRooms)

	s.httpServer = httptest.NewServer(mux)
	return s
}

// URL returns the REST base (http://127.0.0.1:port).
func (s *Server) URL() string {
	return s.httpServer.URL
}

// WSBase returns the WebSocket base (ws://127.0.0.1:port).
func (s *Server) WSBase() string {
	return strings.Replace(s.httpServer.URL, "http://", "ws://", 1)
}

// Close drops every client and stops the server.
func (s *Server) Close() {
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = make(map[*websocket.Conn]bool)
	s.mu.Unlock()
	s.httpServer.Close()
}

// UpgradeAttempts counts every WebSocket upgrade request received,
// accepted or not.
func (s *Server) UpgradeAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upgradeCount
}

// ClientCount returns the number of currently connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// SetSilent stops the server from acknowledging auth frames, so clients
// sit in the authenticating phase until their handshake window expires.
func (s *Server) SetSilent(v bool) {
	s.mu.Lock()
	s.silent = v
	s.mu.Unlock()
}

// SetSnapshot configures the GET /api/notifications response.
func (s *Server) SetSnapshot(items []craftlink.Notification) {
	s.mu.Lock()
	s.snapshot = items
	s.mu.Unlock()
}

// SetChatRooms configures the GET /api/chat response.
func (s *Server) SetChatRooms(rooms []craftlink.ChatRoom) {
	s.mu.Lock()
	s.rooms = rooms
	s.mu.Unlock()
}

// ReadAcks returns the notification IDs acknowledged over REST.
func (s *Server) ReadAcks() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.readAcks))
	copy(out, s.readAcks)
	return out
}

// ReceivedTypes returns the type tags of every frame clients sent,
// in arrival order.
func (s *Server) ReceivedTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.received))
	for _, raw := range s.received {
		var probe struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(raw, &probe) == nil {
			out = append(out, probe.Type)
		}
	}
	return out
}

// PushNotification broadcasts a new_notification frame.
func (s *Server) PushNotification(n craftlink.Notification) error {
	return s.broadcast(map[string]any{"type": "new_notification", "data": n})
}

// PushInitialNotifications broadcasts the initial_notifications batch.
func (s *Server) PushInitialNotifications(items []craftlink.Notification) error {
	return s.broadcast(map[string]any{"type": "initial_notifications", "data": items})
}

// PushMessage broadcasts a new_message frame.
func (s *Server) PushMessage(m craftlink.ChatMessage) error {
	return s.broadcast(map[string]any{"type": "new_message", "message": m})
}

// PushMessageRead broadcasts a read receipt.
func (s *Server) PushMessageRead(messageID int64) error {
	return s.broadcast(map[string]any{"type": "message_read", "messageId": messageID})
}

// PushAgreement broadcasts a payment_agreement frame.
func (s *Server) PushAgreement(a craftlink.PaymentAgreement) error {
	return s.broadcast(map[string]any{"type": "payment_agreement", "agreement": a})
}

// PushRaw broadcasts an arbitrary text frame, malformed ones included.
func (s *Server) PushRaw(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return err
		}
	}
	return nil
}

// CloseClients sends a close frame with the given code to every client
// and drops the connections. Code 1000 simulates a deliberate server
// shutdown; any other code simulates an abnormal drop.
func (s *Server) CloseClients(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, ""), time.Now().Add(time.Second))
		conn.Close()
		delete(s.conns, conn)
	}
}

func (s *Server) broadcast(frame map[string]any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return s.PushRaw(data)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.upgradeCount++
	s.mu.Unlock()

	if r.URL.Query().Get("token") == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns[conn] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.received = append(s.received, json.RawMessage(data))
		silent := s.silent
		s.mu.Unlock()

		var probe struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &probe) != nil {
			continue
		}
		if probe.Type == "auth" && !silent {
			ack, _ := json.Marshal(map[string]any{"type": "auth_success"})
			conn.WriteMessage(websocket.TextMessage, ack)
		}
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if !bearerOK(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s.mu.Lock()
	items := s.snapshot
	s.mu.Unlock()
	if items == nil {
		items = []craftlink.Notification{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if !bearerOK(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.readAcks = append(s.readAcks, id)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChatRooms(w http.ResponseWriter, r *http.Request) {
	if !bearerOK(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s.mu.Lock()
	rooms := s.rooms
	s.mu.Unlock()
	if rooms == nil {
		rooms = []craftlink.ChatRoom{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rooms)
}

func bearerOK(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ")
}
