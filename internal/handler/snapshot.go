package handler

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"whiteboard-backend/internal/board"
	"whiteboard-backend/internal/cache"
	"whiteboard-backend/internal/model"
)

// SnapshotHandler is the REST side-channel for out-of-band state dump and
// restore. It is decoupled from the live protocol: saving writes straight
// into room state (and a Redis backup when configured), loading reads the
// current page back out.
type SnapshotHandler struct {
	registry *board.Registry
	store    *cache.SnapshotStore
}

// NewSnapshotHandler creates the handler; store may be nil.
func NewSnapshotHandler(registry *board.Registry, store *cache.SnapshotStore) *SnapshotHandler {
	return &SnapshotHandler{registry: registry, store: store}
}

type saveRequest struct {
	PageID   string         `json:"pageId"`
	Strokes  []model.Stroke `json:"strokes"`
	Snapshot *struct {
		Strokes []model.Stroke `json:"strokes"`
	} `json:"snapshot"`
}

// SaveSnapshot handles POST /api/rooms/:roomId/save.
func (h *SnapshotHandler) SaveSnapshot(c *fiber.Ctx) error {
	roomID := c.Params("roomId")
	if roomID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "message": "Room id is required"})
	}

	var req saveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "message": "Invalid request body"})
	}

	strokes := req.Strokes
	if strokes == nil && req.Snapshot != nil {
		strokes = req.Snapshot.Strokes
	}

	room := h.registry.GetOrCreate(roomID)
	pageID := room.RestoreSnapshot(req.PageID, strokes)

	if h.store != nil {
		go func(snap cache.PageSnapshot) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := h.store.Save(ctx, &snap); err != nil {
				log.Printf("[Snapshot] Failed to back up room %s: %v", snap.RoomID, err)
			}
		}(cache.PageSnapshot{RoomID: roomID, PageID: pageID, Strokes: strokes})
	}

	return c.JSON(fiber.Map{"ok": true, "pageId": pageID})
}

// LoadSnapshot handles GET /api/rooms/:roomId/load. Live state wins; the
// Redis backup only answers for rooms this process has never seen.
func (h *SnapshotHandler) LoadSnapshot(c *fiber.Ctx) error {
	roomID := c.Params("roomId")
	if roomID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "message": "Room id is required"})
	}

	if room, ok := h.registry.Peek(roomID); ok {
		return c.JSON(fiber.Map{"ok": true, "snapshot": room.Snapshot("")})
	}

	if h.store != nil {
		snap, err := h.store.Load(c.Context(), roomID)
		if err == nil {
			return c.JSON(fiber.Map{"ok": true, "snapshot": model.SnapshotPayload{
				PageID:  snap.PageID,
				Strokes: snap.Strokes,
			}})
		}
		if err != cache.ErrNoSnapshot {
			log.Printf("[Snapshot] Backup load failed for room %s: %v", roomID, err)
		}
	}

	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"ok": false, "message": "No snapshot"})
}
