package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"whiteboard-backend/internal/board"
	"whiteboard-backend/internal/model"
)

func newSnapshotApp() (*fiber.App, *board.Registry) {
	registry := board.NewRegistry()
	h := NewSnapshotHandler(registry, nil)

	app := fiber.New()
	app.Post("/api/rooms/:roomId/save", h.SaveSnapshot)
	app.Get("/api/rooms/:roomId/load", h.LoadSnapshot)
	return app, registry
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	app, registry := newSnapshotApp()

	req := httptest.NewRequest("POST", "/api/rooms/r1/save",
		strings.NewReader(`{"pageId":"page-1","strokes":[{"id":"s1"},{"id":"s2"}]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Save returned %d", resp.StatusCode)
	}

	room, ok := registry.Peek("r1")
	if !ok {
		t.Fatal("Save did not create the room")
	}
	if got := len(room.Snapshot("page-1").Strokes); got != 2 {
		t.Errorf("Expected 2 strokes in room state, got %d", got)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/api/rooms/r1/load", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Load returned %d", resp.StatusCode)
	}

	var body struct {
		OK       bool                  `json:"ok"`
		Snapshot model.SnapshotPayload `json:"snapshot"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.OK || body.Snapshot.PageID != "page-1" || len(body.Snapshot.Strokes) != 2 {
		t.Errorf("Unexpected load response: %+v", body)
	}
}

func TestSaveAcceptsNestedSnapshotBody(t *testing.T) {
	app, registry := newSnapshotApp()

	req := httptest.NewRequest("POST", "/api/rooms/r2/save",
		strings.NewReader(`{"snapshot":{"strokes":[{"id":"s1"}]}}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Save returned %d", resp.StatusCode)
	}

	room, _ := registry.Peek("r2")
	if got := len(room.Snapshot("").Strokes); got != 1 {
		t.Errorf("Expected 1 stroke on the current page, got %d", got)
	}
}

func TestLoadUnknownRoomIs404(t *testing.T) {
	app, registry := newSnapshotApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/api/rooms/ghost/load", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
	if _, ok := registry.Peek("ghost"); ok {
		t.Error("Load materialized a room")
	}
}

func TestSaveRejectsBadBody(t *testing.T) {
	app, _ := newSnapshotApp()

	req := httptest.NewRequest("POST", "/api/rooms/r3/save", strings.NewReader(`{"strokes":`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}
