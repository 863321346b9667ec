package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"whiteboard-backend/internal/board"
	"whiteboard-backend/internal/model"
)

// Dispatch routes one inbound event: precondition checks, room-state
// mutation, fan-out. Anything teacher-gated coming from a non-teacher is
// dropped without a reply, same as the silent drop for malformed payloads.
func (h *BoardHub) Dispatch(sess *Session, env model.Envelope) {
	if env.Type == model.EventJoin {
		h.handleJoin(sess, env)
		return
	}

	// Everything below requires membership.
	if sess.RoomID == "" {
		return
	}
	room := h.registry.GetOrCreate(sess.RoomID)

	switch env.Type {
	case model.EventStrokeChunk:
		h.handleStrokeChunk(sess, room, env.Payload)
	case model.EventStrokeEnd, model.EventStroke:
		h.handleStroke(sess, room, env.Payload)
	case model.EventTyping:
		h.handleTyping(sess, room, env.Payload)
	case model.EventCursor:
		h.relayExcept(sess, model.EventCursor, env.Payload)
	case model.EventLayoutChange:
		h.relayExcept(sess, model.EventLayoutChange, env.Payload)
	case model.EventViewportChange:
		h.handleViewport(sess, room, env.Payload)
	case model.EventBackgroundChange:
		h.handleBackground(sess, room, env.Payload)
	case model.EventObjectModified:
		h.handleObjectModified(sess, room, env.Payload)
	case model.EventPageAdd:
		h.handlePageAdd(sess, room)
	case model.EventPageSet:
		h.handlePageSet(sess, room, env.Payload)
	case model.EventChat:
		h.handleChat(sess, room, env.Payload)
	case model.EventChatDelete:
		h.handleChatDelete(sess, room, env.Payload)
	case model.EventChatClear:
		h.handleChatClear(sess, room)
	case model.EventChatToggle:
		h.handleChatToggle(sess, room, env.Payload)
	case model.EventClear:
		h.handleClear(sess, room, env.Payload)
	case model.EventSnapshot:
		h.handleSnapshotImport(sess, room, env.Payload)
	default:
		// Unknown or server-only type from a client.
	}
}

// decode unmarshals an event payload. An absent payload is fine (zero
// value); a malformed one drops the event.
func decode(raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		return true
	}
	return json.Unmarshal(raw, v) == nil
}

func (h *BoardHub) handleJoin(sess *Session, env model.Envelope) {
	if env.RoomID == "" || sess.RoomID != "" {
		// Room membership is set once per connection.
		return
	}

	var p model.JoinPayload
	if !decode(env.Payload, &p) {
		return
	}

	room := h.registry.GetOrCreate(env.RoomID)
	sess.RoomID = env.RoomID
	sess.User = p.User
	if sess.User.ID == "" {
		sess.User.ID = sess.ID
	}

	if sess.User.IsTeacher {
		if !room.ClaimTeacher(sess.ID) {
			// First teacher wins; a second teacher joins as a student until
			// the slot frees on disconnect.
			sess.User.IsTeacher = false
			log.Printf("[BoardHub] Room %s already has a teacher, demoting %s", room.ID, sess.User.Name)
		}
	}

	count := h.addSession(room.ID, sess)
	log.Printf("[BoardHub] User %q joined room %s (teacher: %v, total: %d)",
		sess.User.Name, room.ID, sess.User.IsTeacher, count)

	h.broadcastExcept(room.ID, sess, h.encode(model.EventUserJoin, room.ID,
		model.UserJoinPayload{User: sess.User}))
	h.broadcastRoom(room.ID, h.encode(model.EventRoomUsers, room.ID,
		model.RoomUsersPayload{Count: count}))

	h.syncState(sess, room)
}

// syncState is the late-join transfer, sent to the joining session only. The
// order is fixed: the client needs the page list before the snapshot, and the
// snapshot before live strokes start landing on it.
func (h *BoardHub) syncState(sess *Session, room *board.Room) {
	pages, snap, chat, enabled := room.SyncState()

	h.sendTo(sess, h.encode(model.EventPageState, room.ID, pages))
	h.sendTo(sess, h.encode(model.EventSnapshot, room.ID, snap))
	if len(chat) > 0 {
		h.sendTo(sess, h.encode(model.EventChatHistory, room.ID, chat))
	}
	h.sendTo(sess, h.encode(model.EventChatState, room.ID,
		model.ChatStatePayload{Enabled: enabled}))
}

// relayExcept rebroadcasts an opaque payload to the room minus the sender.
func (h *BoardHub) relayExcept(sess *Session, t model.EventType, raw json.RawMessage) {
	var payload any
	if len(raw) > 0 {
		payload = raw
	}
	h.broadcastExcept(sess.RoomID, sess, h.encode(t, sess.RoomID, payload))
}

// handleStrokeChunk relays in-progress stroke points. Nothing persists; the
// page id is filled in so receivers can target their preview layer.
func (h *BoardHub) handleStrokeChunk(sess *Session, room *board.Room, raw json.RawMessage) {
	chunk := make(map[string]any)
	if !decode(raw, &chunk) {
		return
	}
	if id, _ := chunk["pageId"].(string); id == "" {
		chunk["pageId"] = room.PageState().CurrentPageID
	}
	h.broadcastExcept(room.ID, sess, h.encode(model.EventStrokeChunk, room.ID, chunk))
}

// handleStroke appends a finished stroke (stroke_end, or the legacy
// single-message stroke) and rebroadcasts it as a stroke event.
func (h *BoardHub) handleStroke(sess *Session, room *board.Room, raw json.RawMessage) {
	var p model.StrokePayload
	if !decode(raw, &p) || len(p.Stroke.Raw) == 0 {
		return
	}

	pageID := room.AppendStroke(p.PageID, p.Stroke)
	h.broadcastExcept(room.ID, sess, h.encode(model.EventStroke, room.ID,
		model.StrokePayload{Stroke: p.Stroke, PageID: pageID}))
}

func (h *BoardHub) handleTyping(sess *Session, room *board.Room, raw json.RawMessage) {
	var p model.TypingPayload
	if !decode(raw, &p) {
		return
	}
	p.User = sess.User
	h.broadcastExcept(room.ID, sess, h.encode(model.EventTyping, room.ID, p))
}

func (h *BoardHub) handleViewport(sess *Session, room *board.Room, raw json.RawMessage) {
	if !room.IsTeacher(sess.ID) {
		return
	}
	var p model.ViewportPayload
	if !decode(raw, &p) {
		return
	}
	p.User = sess.User
	h.broadcastExcept(room.ID, sess, h.encode(model.EventViewportChange, room.ID, p))
}

func (h *BoardHub) handleBackground(sess *Session, room *board.Room, raw json.RawMessage) {
	var p model.BackgroundPayload
	if !decode(raw, &p) {
		return
	}
	p.PageID = room.SetBackground(p.PageID, p.Background)
	h.broadcastExcept(room.ID, sess, h.encode(model.EventBackgroundChange, room.ID, p))
}

// handleObjectModified replaces a stroke in place (move/resize/restyle). A
// miss on the id means the stroke was cleared meanwhile; nothing to relay.
func (h *BoardHub) handleObjectModified(sess *Session, room *board.Room, raw json.RawMessage) {
	var p model.StrokePayload
	if !decode(raw, &p) || len(p.Stroke.Raw) == 0 {
		return
	}

	pageID, ok := room.ReplaceStroke(p.PageID, p.Stroke)
	if !ok {
		return
	}
	h.broadcastExcept(room.ID, sess, h.encode(model.EventObjectModified, room.ID,
		model.StrokePayload{Stroke: p.Stroke, PageID: pageID}))
}

func (h *BoardHub) handlePageAdd(sess *Session, room *board.Room) {
	if !room.IsTeacher(sess.ID) {
		return
	}

	pageID := room.AddPage()
	h.broadcastPage(room, pageID)
}

func (h *BoardHub) handlePageSet(sess *Session, room *board.Room, raw json.RawMessage) {
	if !room.IsTeacher(sess.ID) {
		return
	}
	var p model.PagePayload
	if !decode(raw, &p) || p.PageID == "" {
		return
	}

	pageID := room.SetCurrentPage(p.PageID)
	h.broadcastPage(room, pageID)
}

// broadcastPage announces a page switch to the whole room: the updated page
// list followed by the now-current page's snapshot.
func (h *BoardHub) broadcastPage(room *board.Room, pageID string) {
	h.broadcastRoom(room.ID, h.encode(model.EventPageState, room.ID, room.PageState()))
	h.broadcastRoom(room.ID, h.encode(model.EventSnapshot, room.ID, room.Snapshot(pageID)))
}

func (h *BoardHub) handleChat(sess *Session, room *board.Room, raw json.RawMessage) {
	if !room.ChatEnabled() {
		return
	}
	if !sess.allowChat(h.board.ChatPerWindow, h.board.ChatRateWindow) {
		h.sendTo(sess, h.encode(model.EventError, room.ID,
			model.ErrorPayload{Message: "Message limit exceeded. Please wait a minute."}))
		return
	}

	var p model.ChatPayload
	if !decode(raw, &p) || p.Message == "" {
		return
	}

	msg := model.ChatMessage{
		ID:        p.ID,
		User:      sess.User,
		Message:   p.Message,
		Timestamp: time.Now().UnixMilli(),
	}
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("msg_%d_%s", msg.Timestamp, uuid.NewString()[:5])
	}

	room.AppendChat(msg)

	// Sender included: the echo confirms delivery for optimistic UIs.
	h.broadcastRoom(room.ID, h.encode(model.EventChat, room.ID, msg))
}

func (h *BoardHub) handleChatDelete(sess *Session, room *board.Room, raw json.RawMessage) {
	if !room.IsTeacher(sess.ID) {
		return
	}
	var p model.ChatDeletePayload
	if !decode(raw, &p) || p.ID == "" {
		return
	}

	room.DeleteChat(p.ID)
	h.broadcastRoom(room.ID, h.encode(model.EventChatDelete, room.ID, p))
}

func (h *BoardHub) handleChatClear(sess *Session, room *board.Room) {
	if !room.IsTeacher(sess.ID) {
		return
	}

	room.ClearChat()
	h.broadcastRoom(room.ID, h.encode(model.EventChatClear, room.ID, struct{}{}))
}

func (h *BoardHub) handleChatToggle(sess *Session, room *board.Room, raw json.RawMessage) {
	if !room.IsTeacher(sess.ID) {
		return
	}
	var p model.ChatTogglePayload
	if !decode(raw, &p) {
		return
	}

	room.SetChatEnabled(p.Enabled)
	h.broadcastRoom(room.ID, h.encode(model.EventChatState, room.ID,
		model.ChatStatePayload{Enabled: p.Enabled}))
}

func (h *BoardHub) handleClear(sess *Session, room *board.Room, raw json.RawMessage) {
	if !room.IsTeacher(sess.ID) {
		return
	}
	var p model.PagePayload
	if !decode(raw, &p) {
		return
	}

	pageID := room.ClearPage(p.PageID)
	h.broadcastRoom(room.ID, h.encode(model.EventClear, room.ID,
		model.PagePayload{PageID: pageID}))
}

// handleSnapshotImport replaces a page's stroke log wholesale (JSON import).
func (h *BoardHub) handleSnapshotImport(sess *Session, room *board.Room, raw json.RawMessage) {
	if !room.IsTeacher(sess.ID) {
		return
	}
	var p model.SnapshotPayload
	if !decode(raw, &p) {
		return
	}

	pageID := room.SetSnapshot(p.PageID, p.Strokes)
	h.broadcastExcept(room.ID, sess, h.encode(model.EventSnapshot, room.ID, room.Snapshot(pageID)))
}
