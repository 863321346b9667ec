package board

import (
	"log"
	"sync"
)

// Registry is the process-wide room map. Rooms are created lazily on first
// reference and never deleted; memory growth is accepted and bounded per room
// by the chat cap, not by total room count.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room for roomID, creating it with its first page
// on first reference. Idempotent.
func (g *Registry) GetOrCreate(roomID string) *Room {
	g.mu.RLock()
	room, ok := g.rooms[roomID]
	g.mu.RUnlock()
	if ok {
		return room
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if room, ok := g.rooms[roomID]; ok {
		return room
	}
	room = newRoom(roomID)
	g.rooms[roomID] = room
	log.Printf("[Registry] Created room: %s", roomID)
	return room
}

// Peek returns the room only if it already exists. The load endpoint uses
// this so an unknown room id stays a 404 instead of materializing state.
func (g *Registry) Peek(roomID string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[roomID]
	return room, ok
}
