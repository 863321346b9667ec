package model

// Payload shapes for the events that carry structured data. Relay-only events
// (stroke_chunk, cursor, layout_change) keep their payload opaque and are not
// listed here.

// JoinPayload is sent by a client entering a room.
type JoinPayload struct {
	User User `json:"user"`
}

// UserJoinPayload announces a new participant to the rest of the room.
type UserJoinPayload struct {
	User User `json:"user"`
}

// RoomUsersPayload carries the live connection count of a room.
type RoomUsersPayload struct {
	Count int `json:"count"`
}

// StrokePayload carries a finished stroke and the page it lands on. Used by
// stroke, stroke_end and object_modified in both directions.
type StrokePayload struct {
	Stroke Stroke `json:"stroke"`
	PageID string `json:"pageId,omitempty"`
}

// TypingPayload relays a typing indicator; the server attaches the sender.
type TypingPayload struct {
	User     User `json:"user,omitempty"`
	IsTyping bool `json:"isTyping"`
}

// ViewportPayload is the teacher's scroll position, relayed to students.
type ViewportPayload struct {
	User       User    `json:"user,omitempty"`
	ScrollTop  float64 `json:"scrollTop"`
	ScrollLeft float64 `json:"scrollLeft"`
}

// BackgroundPayload sets a page background (grid, ruled, image url, ...). The
// value is opaque to the server.
type BackgroundPayload struct {
	PageID     string `json:"pageId,omitempty"`
	Background string `json:"background"`
}

// PagePayload targets a page by id (page_set, clear).
type PagePayload struct {
	PageID string `json:"pageId,omitempty"`
}

// PageStatePayload lists the room's pages and the active one.
type PageStatePayload struct {
	Pages         []PageInfo `json:"pages"`
	CurrentPageID string     `json:"currentPageId"`
}

// SnapshotPayload is a full stroke log for one page. Background rides along
// when set so late joiners recover it with the strokes.
type SnapshotPayload struct {
	PageID     string   `json:"pageId"`
	Strokes    []Stroke `json:"strokes"`
	Background string   `json:"background,omitempty"`
}

// ChatPayload is an inbound chat message; the id is optional and generated
// server-side when missing.
type ChatPayload struct {
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// ChatDeletePayload removes one message from the history by id.
type ChatDeletePayload struct {
	ID string `json:"id"`
}

// ChatTogglePayload flips the room-wide chat switch.
type ChatTogglePayload struct {
	Enabled bool `json:"enabled"`
}

// ChatStatePayload reports the chat switch to clients.
type ChatStatePayload struct {
	Enabled bool `json:"enabled"`
}

// ErrorPayload is the only server-surfaced failure (rate limit).
type ErrorPayload struct {
	Message string `json:"message"`
}
