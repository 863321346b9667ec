package model

import "encoding/json"

// EventType identifies one message kind on the board websocket. The set is
// closed: the router switches over every constant below and drops anything
// else.
type EventType string

// Client -> server events.
const (
	EventJoin             EventType = "join"
	EventStrokeChunk      EventType = "stroke_chunk"
	EventStrokeEnd        EventType = "stroke_end"
	EventStroke           EventType = "stroke"
	EventTyping           EventType = "typing"
	EventViewportChange   EventType = "viewport_change"
	EventLayoutChange     EventType = "layout_change"
	EventBackgroundChange EventType = "background_change"
	EventCursor           EventType = "cursor"
	EventObjectModified   EventType = "object_modified"
	EventPageAdd          EventType = "page_add"
	EventPageSet          EventType = "page_set"
	EventChat             EventType = "chat"
	EventChatDelete       EventType = "chat_delete"
	EventChatClear        EventType = "chat_clear"
	EventChatToggle       EventType = "chat_toggle"
	EventClear            EventType = "clear"
	EventSnapshot         EventType = "snapshot"
)

// Server -> client only events.
const (
	EventUserJoin    EventType = "user_join"
	EventRoomUsers   EventType = "room_users"
	EventError       EventType = "error"
	EventPageState   EventType = "page_state"
	EventChatHistory EventType = "chat_history"
	EventChatState   EventType = "chat_state"
)

// Envelope is the wire frame shared by both directions.
type Envelope struct {
	Type    EventType       `json:"type"`
	RoomID  string          `json:"roomId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// User is the self-declared identity a client sends on join. It is trusted
// as-is; there is no account system behind it.
type User struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	IsTeacher bool   `json:"isTeacher,omitempty"`
}

// Stroke is one atomic drawing action. The geometry and style come from the
// client's drawing tool and are relayed untouched; the server only reads the
// id, which later events (object_modified, de-duplication) reference.
type Stroke struct {
	ID  string
	Raw json.RawMessage
}

func (s Stroke) MarshalJSON() ([]byte, error) {
	if len(s.Raw) == 0 {
		return []byte("null"), nil
	}
	return s.Raw, nil
}

func (s *Stroke) UnmarshalJSON(data []byte) error {
	s.Raw = append(s.Raw[:0], data...)
	var head struct {
		ID string `json:"id"`
	}
	// Non-object strokes simply have no id.
	if err := json.Unmarshal(data, &head); err == nil {
		s.ID = head.ID
	}
	return nil
}

// ChatMessage is one entry in a room's bounded chat history.
type ChatMessage struct {
	ID        string `json:"id"`
	User      User   `json:"user"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// PageInfo is the id-only page view sent in page_state.
type PageInfo struct {
	ID string `json:"id"`
}
