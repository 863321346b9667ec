package board

import (
	"fmt"
	"sync"

	"whiteboard-backend/internal/model"
)

// MaxChatHistory bounds a room's chat buffer; the oldest entry is evicted
// when a new message overflows it.
const MaxChatHistory = 10

// page is one drawing surface. Strokes are append-only between clears; the
// background value is opaque client data.
type page struct {
	id         string
	strokes    []model.Stroke
	background string
}

// Room is the authoritative state of one collaboration session. Every
// accessor takes the room mutex, so concurrent events against the same room
// serialize while different rooms stay independent. Internal slices never
// leak: callers get copies.
type Room struct {
	ID string

	mu            sync.Mutex
	teacherConnID string
	pages         []*page
	pageSeq       int
	currentPageID string
	chat          []model.ChatMessage
	chatEnabled   bool
}

func newRoom(id string) *Room {
	r := &Room{
		ID:          id,
		chatEnabled: true,
	}
	r.mu.Lock()
	r.ensurePageLocked("")
	r.mu.Unlock()
	return r
}

// ensurePageLocked resolves pageID to an existing page, creating it when
// absent. An empty id falls back to the current page; when the room has no
// pages at all the first one is created as page-1. Must hold r.mu.
func (r *Room) ensurePageLocked(pageID string) *page {
	if len(r.pages) == 0 {
		p := &page{id: r.nextPageIDLocked()}
		r.pages = append(r.pages, p)
		r.currentPageID = p.id
	}
	if pageID == "" {
		pageID = r.currentPageID
	}
	for _, p := range r.pages {
		if p.id == pageID {
			return p
		}
	}
	p := &page{id: pageID}
	r.pages = append(r.pages, p)
	return p
}

// nextPageIDLocked assigns page-N from a running counter of pages ever
// created, skipping ids a client already claimed via page_set.
func (r *Room) nextPageIDLocked() string {
	for {
		r.pageSeq++
		id := fmt.Sprintf("page-%d", r.pageSeq)
		taken := false
		for _, p := range r.pages {
			if p.id == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
	}
}

// ClaimTeacher grants teacher authority to connID unless another live
// connection already holds it. First teacher wins; the slot frees on that
// connection's disconnect via ReleaseTeacher.
func (r *Room) ClaimTeacher(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.teacherConnID != "" && r.teacherConnID != connID {
		return false
	}
	r.teacherConnID = connID
	return true
}

// ReleaseTeacher frees the teacher slot if connID holds it.
func (r *Room) ReleaseTeacher(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.teacherConnID == connID {
		r.teacherConnID = ""
	}
}

// IsTeacher reports whether connID is the room's current teacher connection.
func (r *Room) IsTeacher(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return connID != "" && r.teacherConnID == connID
}

// AppendStroke pushes a stroke onto the target page's log and returns the
// resolved page id.
func (r *Room) AppendStroke(pageID string, s model.Stroke) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.ensurePageLocked(pageID)
	p.strokes = append(p.strokes, s)
	return p.id
}

// ReplaceStroke swaps the stroke with a matching id on the target page.
// Unknown ids are ignored; reports whether a replacement happened.
func (r *Room) ReplaceStroke(pageID string, s model.Stroke) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.ensurePageLocked(pageID)
	if s.ID == "" {
		return p.id, false
	}
	for i := range p.strokes {
		if p.strokes[i].ID == s.ID {
			p.strokes[i] = s
			return p.id, true
		}
	}
	return p.id, false
}

// ClearPage empties the target page's stroke log and returns the resolved
// page id. Other pages are untouched.
func (r *Room) ClearPage(pageID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.ensurePageLocked(pageID)
	p.strokes = nil
	return p.id
}

// SetSnapshot replaces the target page's stroke log wholesale (import).
func (r *Room) SetSnapshot(pageID string, strokes []model.Stroke) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.ensurePageLocked(pageID)
	p.strokes = append([]model.Stroke(nil), strokes...)
	return p.id
}

// RestoreSnapshot is SetSnapshot plus making the page current. Used by the
// out-of-band save endpoint.
func (r *Room) RestoreSnapshot(pageID string, strokes []model.Stroke) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.ensurePageLocked(pageID)
	p.strokes = append([]model.Stroke(nil), strokes...)
	r.currentPageID = p.id
	return p.id
}

// SetBackground stores a page background and returns the resolved page id.
func (r *Room) SetBackground(pageID, background string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.ensurePageLocked(pageID)
	p.background = background
	return p.id
}

// AddPage appends a fresh server-named page and makes it current.
func (r *Room) AddPage() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensurePageLocked("")
	p := &page{id: r.nextPageIDLocked()}
	r.pages = append(r.pages, p)
	r.currentPageID = p.id
	return p.id
}

// SetCurrentPage switches the active page, creating it when absent.
func (r *Room) SetCurrentPage(pageID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.ensurePageLocked(pageID)
	r.currentPageID = p.id
	return p.id
}

// PageState returns the ordered page list and the current page id.
func (r *Room) PageState() model.PageStatePayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pageStateLocked()
}

func (r *Room) pageStateLocked() model.PageStatePayload {
	r.ensurePageLocked("")
	infos := make([]model.PageInfo, 0, len(r.pages))
	for _, p := range r.pages {
		infos = append(infos, model.PageInfo{ID: p.id})
	}
	return model.PageStatePayload{Pages: infos, CurrentPageID: r.currentPageID}
}

// Snapshot returns a copy of the target page's stroke log.
func (r *Room) Snapshot(pageID string) model.SnapshotPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(pageID)
}

func (r *Room) snapshotLocked(pageID string) model.SnapshotPayload {
	p := r.ensurePageLocked(pageID)
	return model.SnapshotPayload{
		PageID:     p.id,
		Strokes:    append([]model.Stroke{}, p.strokes...),
		Background: p.background,
	}
}

// AppendChat stores a message, evicting the oldest beyond MaxChatHistory.
func (r *Room) AppendChat(msg model.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat = append(r.chat, msg)
	if len(r.chat) > MaxChatHistory {
		r.chat = r.chat[len(r.chat)-MaxChatHistory:]
	}
}

// DeleteChat removes a message by id. Already-delivered broadcasts are not
// retracted; this only affects what late joiners see.
func (r *Room) DeleteChat(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.chat[:0]
	for _, m := range r.chat {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	r.chat = kept
}

// ClearChat empties the history.
func (r *Room) ClearChat() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat = nil
}

// ChatHistory returns a copy of the retained messages, oldest first.
func (r *Room) ChatHistory() []model.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ChatMessage{}, r.chat...)
}

// SetChatEnabled flips the room chat switch.
func (r *Room) SetChatEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chatEnabled = enabled
}

// ChatEnabled reports the room chat switch.
func (r *Room) ChatEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chatEnabled
}

// SyncState captures everything a late joiner needs in one consistent read:
// page list, current-page snapshot, chat history and chat switch.
func (r *Room) SyncState() (model.PageStatePayload, model.SnapshotPayload, []model.ChatMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pages := r.pageStateLocked()
	snap := r.snapshotLocked(r.currentPageID)
	chat := append([]model.ChatMessage{}, r.chat...)
	return pages, snap, chat, r.chatEnabled
}
