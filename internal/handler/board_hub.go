package handler

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"whiteboard-backend/internal/board"
	"whiteboard-backend/internal/config"
	"whiteboard-backend/internal/model"
)

// BoardHub tracks which sessions are joined to which room and fans events out
// to them. Room state itself lives in the registry; the hub only owns
// membership and delivery.
type BoardHub struct {
	registry *board.Registry
	ws       config.WebSocketConfig
	board    config.BoardConfig

	mu    sync.RWMutex
	rooms map[string]map[*Session]struct{}

	// OnRoomEmpty runs in its own goroutine when the last connection leaves a
	// room. The recording merge pipeline hangs off this hook; its failures
	// never reach the live protocol.
	OnRoomEmpty func(roomID string)
}

func NewBoardHub(registry *board.Registry, wsCfg config.WebSocketConfig, boardCfg config.BoardConfig) *BoardHub {
	return &BoardHub{
		registry: registry,
		ws:       wsCfg,
		board:    boardCfg,
		rooms:    make(map[string]map[*Session]struct{}),
	}
}

// HandleWebSocket is the read loop for one connection. Malformed frames are
// dropped without a diagnostic; everything else goes through Dispatch.
func (h *BoardHub) HandleWebSocket(c *websocket.Conn) {
	sess := newSession(c, h.ws.SendQueueSize)
	c.SetReadLimit(h.ws.MaxMessageSize)

	go sess.writePump()
	defer h.Disconnect(sess)

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			break
		}

		var env model.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		h.Dispatch(sess, env)
	}
}

// Disconnect tears a session down: membership removal, teacher slot release
// and a room_users update for whoever stays. No stroke or chat rollback.
func (h *BoardHub) Disconnect(sess *Session) {
	defer sess.close()

	if sess.RoomID == "" {
		return
	}

	remaining := h.removeSession(sess)
	room := h.registry.GetOrCreate(sess.RoomID)
	room.ReleaseTeacher(sess.ID)

	h.broadcastRoom(sess.RoomID, h.encode(model.EventRoomUsers, sess.RoomID,
		model.RoomUsersPayload{Count: remaining}))

	log.Printf("[BoardHub] Session %s left room %s (remaining: %d)", sess.ID, sess.RoomID, remaining)

	if remaining == 0 && h.OnRoomEmpty != nil {
		go h.OnRoomEmpty(sess.RoomID)
	}
}

func (h *BoardHub) addSession(roomID string, sess *Session) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Session]struct{})
	}
	h.rooms[roomID][sess] = struct{}{}
	return len(h.rooms[roomID])
}

func (h *BoardHub) removeSession(sess *Session) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.rooms[sess.RoomID]
	if !ok {
		return 0
	}
	delete(sessions, sess)
	if len(sessions) == 0 {
		delete(h.rooms, sess.RoomID)
		return 0
	}
	return len(sessions)
}

// encode builds a wire frame. A nil payload yields an envelope without one.
func (h *BoardHub) encode(t model.EventType, roomID string, payload any) []byte {
	env := model.Envelope{Type: t, RoomID: roomID}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("[BoardHub] Failed to marshal %s payload: %v", t, err)
			return nil
		}
		env.Payload = data
	}

	frame, err := json.Marshal(env)
	if err != nil {
		log.Printf("[BoardHub] Failed to marshal %s envelope: %v", t, err)
		return nil
	}
	return frame
}

// broadcastRoom delivers a frame to every session joined to the room.
func (h *BoardHub) broadcastRoom(roomID string, frame []byte) {
	if frame == nil {
		return
	}
	for _, sess := range h.roomSessions(roomID) {
		h.sendFrame(sess, frame)
	}
}

// broadcastExcept delivers a frame to the room minus the sender.
func (h *BoardHub) broadcastExcept(roomID string, except *Session, frame []byte) {
	if frame == nil {
		return
	}
	for _, sess := range h.roomSessions(roomID) {
		if sess != except {
			h.sendFrame(sess, frame)
		}
	}
}

// sendTo delivers a frame to a single session.
func (h *BoardHub) sendTo(sess *Session, frame []byte) {
	if frame == nil {
		return
	}
	h.sendFrame(sess, frame)
}

func (h *BoardHub) sendFrame(sess *Session, frame []byte) {
	if !sess.enqueue(frame) {
		log.Printf("[BoardHub] Send queue full for session %s, frame dropped", sess.ID)
	}
}

func (h *BoardHub) roomSessions(roomID string) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sessions := make([]*Session, 0, len(h.rooms[roomID]))
	for sess := range h.rooms[roomID] {
		sessions = append(sessions, sess)
	}
	return sessions
}
