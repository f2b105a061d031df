package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"garbageapi/internal/dto"
	"garbageapi/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// WriteWait is the time allowed to write a message to the peer.
	WriteWait = 10 * time.Second
	// PongWait is the time allowed to read the next message or pong from the peer.
	PongWait = 60 * time.Second
	// PingPeriod must stay below PongWait.
	PingPeriod = (PongWait * 9) / 10
)

// Session is one connected stream client. Writes are serialized; reads belong to
// the goroutine serving the connection.
type Session struct {
	ID   string
	conn *websocket.Conn
	mu   sync.Mutex
}

// Emit sends an event envelope to the client.
func (s *Session) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(dto.StreamMessage{Event: event, Data: data})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(WriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}

// Ping sends a keepalive ping.
func (s *Session) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(WriteWait))
}

func (s *Session) closeGoingAway() {
	s.mu.Lock()
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(WriteWait))
	s.mu.Unlock()
	s.conn.Close()
}

// HubService tracks connected stream sessions.
type HubService struct {
	sessions   map[string]*Session
	register   chan *Session
	unregister chan *Session
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

// NewHubService creates a hub. Run must be started before sessions are registered.
func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		sessions:   make(map[string]*Session),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations until ctx ends, then closes every remaining session.
func (h *HubService) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case session := <-h.register:
			h.mutex.Lock()
			h.sessions[session.ID] = session
			count := len(h.sessions)
			h.mutex.Unlock()
			h.logger.Info("Client connected: %s. Total: %d", session.ID, count)

		case session := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.sessions[session.ID]; ok {
				delete(h.sessions, session.ID)
				session.conn.Close()
			}
			count := len(h.sessions)
			h.mutex.Unlock()
			h.logger.Info("Client disconnected: %s. Total: %d", session.ID, count)

		case <-ctx.Done():
			h.mutex.Lock()
			for id, session := range h.sessions {
				session.closeGoingAway()
				delete(h.sessions, id)
			}
			h.mutex.Unlock()
			return nil
		}
	}
}

// Register wraps conn in a new session and adds it to the hub. It returns false
// when the hub is no longer running.
func (h *HubService) Register(conn *websocket.Conn) (*Session, bool) {
	session := &Session{ID: uuid.NewString(), conn: conn}
	select {
	case h.register <- session:
		return session, true
	case <-h.done:
		return nil, false
	}
}

// Unregister removes the session and closes its connection.
func (h *HubService) Unregister(session *Session) {
	select {
	case h.unregister <- session:
	case <-h.done:
		session.conn.Close()
	}
}

// GetClientCount returns the number of connected sessions.
func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.sessions)
}
