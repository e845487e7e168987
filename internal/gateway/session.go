package gateway

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// outboundBuffer bounds the per-session send queue. A session that cannot
// drain fast enough loses frames rather than blocking the NATS callback.
const outboundBuffer = 64

// Conn is the subset of *websocket.Conn the gateway touches.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Session is one websocket connection. It stays unauthenticated until a
// successful player:authenticate; until then its id keys nothing.
type Session struct {
	ID   string
	conn Conn

	msgs chan []byte

	// done is closed to evict the session: the write pump exits and closes
	// the connection, which unblocks the read loop.
	done     chan struct{}
	kickOnce sync.Once

	authenticated bool
	unsub         func()
}

func newSession(conn Conn) *Session {
	return &Session{
		ID:   uuid.New().String(),
		conn: conn,
		msgs: make(chan []byte, outboundBuffer),
		done: make(chan struct{}),
	}
}

// enqueue queues a frame for the write pump without blocking.
func (s *Session) enqueue(data []byte) {
	select {
	case s.msgs <- data:
	default:
		slog.Warn("session send buffer full, dropping frame", "sessionId", s.ID)
	}
}

// Kick signals the session to shut down. Safe to call multiple times.
func (s *Session) Kick() {
	s.kickOnce.Do(func() {
		close(s.done)
	})
}

// writePump drains the send queue onto the connection until the session is
// kicked or a write fails. It owns closing the connection.
func (s *Session) writePump() {
	defer s.conn.Close()
	for {
		select {
		case data := <-s.msgs:
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
