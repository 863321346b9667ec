package handler

import (
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"whiteboard-backend/internal/model"
)

// Session wraps one client's websocket connection: identity declared on join,
// room membership (set once) and the chat rate counter. Outbound frames go
// through a bounded queue so a slow reader never stalls the router.
type Session struct {
	ID     string
	User   model.User
	RoomID string

	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	rateMu      sync.Mutex
	chatCount   int
	windowStart time.Time
}

func newSession(conn *websocket.Conn, queueSize int) *Session {
	return &Session{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, queueSize),
		done: make(chan struct{}),
	}
}

// enqueue pushes a frame onto the outbound queue without blocking. Frames to
// a full queue or a torn-down session are dropped; the client resyncs with a
// fresh join. The queue channel is never closed, so a broadcast racing a
// disconnect at worst parks a frame for the collector.
func (s *Session) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.once.Do(func() { close(s.done) })
}

// writePump drains the outbound queue onto the websocket. Runs in its own
// goroutine per connection; a write failure closes the connection, which
// unblocks the read loop.
func (s *Session) writePump() {
	defer s.conn.Close()

	for {
		select {
		case <-s.done:
			return
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("[Session %s] Write failed: %v", s.ID, err)
				return
			}
		}
	}
}

// allowChat applies the chat rate limit: a per-connection counter that resets
// once the window elapses, not a true rolling window.
func (s *Session) allowChat(max int, window time.Duration) bool {
	s.rateMu.Lock()
	defer s.rateMu.Unlock()

	now := time.Now()
	if s.windowStart.IsZero() || now.Sub(s.windowStart) >= window {
		s.windowStart = now
		s.chatCount = 0
	}
	s.chatCount++
	return s.chatCount <= max
}
