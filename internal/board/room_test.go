package board

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"whiteboard-backend/internal/model"
)

func mkStroke(id string) model.Stroke {
	return model.Stroke{ID: id, Raw: json.RawMessage(fmt.Sprintf(`{"id":%q}`, id))}
}

func TestRegistryIdempotentCreate(t *testing.T) {
	reg := NewRegistry()

	r1 := reg.GetOrCreate("room-a")
	r2 := reg.GetOrCreate("room-a")
	if r1 != r2 {
		t.Fatal("GetOrCreate returned different rooms for the same id")
	}

	state := r1.PageState()
	if len(state.Pages) != 1 || state.Pages[0].ID != "page-1" {
		t.Errorf("Expected a single page-1, got %+v", state.Pages)
	}
	if state.CurrentPageID != "page-1" {
		t.Errorf("Expected currentPageId page-1, got %s", state.CurrentPageID)
	}
}

func TestRegistryPeek(t *testing.T) {
	reg := NewRegistry()

	if _, ok := reg.Peek("ghost"); ok {
		t.Error("Peek materialized a room")
	}
	reg.GetOrCreate("real")
	if _, ok := reg.Peek("real"); !ok {
		t.Error("Peek missed an existing room")
	}
}

func TestStrokeOrdering(t *testing.T) {
	r := newRoom("r")

	for i := 0; i < 5; i++ {
		r.AppendStroke("", mkStroke(fmt.Sprintf("s%d", i)))
	}

	snap := r.Snapshot("")
	if len(snap.Strokes) != 5 {
		t.Fatalf("Expected 5 strokes, got %d", len(snap.Strokes))
	}
	for i, s := range snap.Strokes {
		if want := fmt.Sprintf("s%d", i); s.ID != want {
			t.Errorf("Stroke %d: expected id %s, got %s", i, want, s.ID)
		}
	}
}

func TestAppendStrokeConcurrent(t *testing.T) {
	r := newRoom("r")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.AppendStroke("", mkStroke(fmt.Sprintf("s%d", i)))
		}(i)
	}
	wg.Wait()

	if got := len(r.Snapshot("").Strokes); got != 100 {
		t.Errorf("Expected 100 strokes, got %d", got)
	}
}

func TestChatCap(t *testing.T) {
	r := newRoom("r")

	for i := 0; i < 15; i++ {
		r.AppendChat(model.ChatMessage{ID: fmt.Sprintf("m%d", i), Message: "hi"})
	}

	history := r.ChatHistory()
	if len(history) != MaxChatHistory {
		t.Fatalf("Expected %d retained messages, got %d", MaxChatHistory, len(history))
	}
	// The 10 most recent survive, oldest first.
	for i, m := range history {
		if want := fmt.Sprintf("m%d", i+5); m.ID != want {
			t.Errorf("History %d: expected %s, got %s", i, want, m.ID)
		}
	}
}

func TestChatDeleteAndClear(t *testing.T) {
	r := newRoom("r")
	r.AppendChat(model.ChatMessage{ID: "a"})
	r.AppendChat(model.ChatMessage{ID: "b"})

	r.DeleteChat("a")
	if history := r.ChatHistory(); len(history) != 1 || history[0].ID != "b" {
		t.Errorf("Expected only message b, got %+v", history)
	}

	r.ClearChat()
	if history := r.ChatHistory(); len(history) != 0 {
		t.Errorf("Expected empty history, got %d entries", len(history))
	}
}

func TestClearScopedToPage(t *testing.T) {
	r := newRoom("r")
	r.AppendStroke("page-1", mkStroke("a"))
	r.SetCurrentPage("page-2")
	r.AppendStroke("page-2", mkStroke("b"))

	r.ClearPage("page-1")

	if got := len(r.Snapshot("page-1").Strokes); got != 0 {
		t.Errorf("page-1 should be empty, has %d strokes", got)
	}
	if got := len(r.Snapshot("page-2").Strokes); got != 1 {
		t.Errorf("page-2 should be untouched, has %d strokes", got)
	}
}

func TestPageIDAllocation(t *testing.T) {
	r := newRoom("r")

	if id := r.AddPage(); id != "page-2" {
		t.Errorf("Expected page-2, got %s", id)
	}

	// A client-claimed id must not be reissued.
	r.SetCurrentPage("page-3")
	if id := r.AddPage(); id != "page-4" {
		t.Errorf("Expected page-4 after client claimed page-3, got %s", id)
	}

	state := r.PageState()
	if state.CurrentPageID != "page-4" {
		t.Errorf("AddPage should make the new page current, got %s", state.CurrentPageID)
	}
}

func TestSetCurrentPageCreatesMissing(t *testing.T) {
	r := newRoom("r")

	r.SetCurrentPage("page-9")

	state := r.PageState()
	if state.CurrentPageID != "page-9" {
		t.Errorf("Expected currentPageId page-9, got %s", state.CurrentPageID)
	}
	if len(state.Pages) != 2 {
		t.Errorf("Expected 2 pages, got %d", len(state.Pages))
	}
}

func TestTeacherFirstWins(t *testing.T) {
	r := newRoom("r")

	if !r.ClaimTeacher("conn-1") {
		t.Fatal("First claim should succeed")
	}
	if r.ClaimTeacher("conn-2") {
		t.Error("Second claim should fail while conn-1 is live")
	}
	if !r.IsTeacher("conn-1") || r.IsTeacher("conn-2") {
		t.Error("Teacher authority should stay with conn-1")
	}

	r.ReleaseTeacher("conn-1")
	if !r.ClaimTeacher("conn-2") {
		t.Error("Claim should succeed after the slot frees")
	}
}

func TestReleaseTeacherIgnoresOthers(t *testing.T) {
	r := newRoom("r")
	r.ClaimTeacher("conn-1")

	r.ReleaseTeacher("conn-2")
	if !r.IsTeacher("conn-1") {
		t.Error("Release by a non-teacher connection must not free the slot")
	}
}

func TestReplaceStroke(t *testing.T) {
	r := newRoom("r")
	r.AppendStroke("", mkStroke("s1"))
	r.AppendStroke("", mkStroke("s2"))

	updated := model.Stroke{ID: "s1", Raw: json.RawMessage(`{"id":"s1","color":"red"}`)}
	if _, ok := r.ReplaceStroke("", updated); !ok {
		t.Fatal("ReplaceStroke missed an existing id")
	}

	snap := r.Snapshot("")
	if string(snap.Strokes[0].Raw) != `{"id":"s1","color":"red"}` {
		t.Errorf("Stroke s1 not replaced: %s", snap.Strokes[0].Raw)
	}

	if _, ok := r.ReplaceStroke("", mkStroke("ghost")); ok {
		t.Error("ReplaceStroke matched an unknown id")
	}
}

func TestSnapshotReplacesWholesale(t *testing.T) {
	r := newRoom("r")
	r.AppendStroke("", mkStroke("old"))

	r.SetSnapshot("", []model.Stroke{mkStroke("n1"), mkStroke("n2")})

	snap := r.Snapshot("")
	if len(snap.Strokes) != 2 || snap.Strokes[0].ID != "n1" {
		t.Errorf("Snapshot import did not replace the log: %+v", snap.Strokes)
	}
}

func TestSnapshotReturnsCopy(t *testing.T) {
	r := newRoom("r")
	r.AppendStroke("", mkStroke("a"))

	snap := r.Snapshot("")
	snap.Strokes[0] = mkStroke("tampered")

	if r.Snapshot("").Strokes[0].ID != "a" {
		t.Error("Snapshot leaked the internal stroke slice")
	}
}

func TestSyncState(t *testing.T) {
	r := newRoom("r")
	r.AddPage()
	r.AppendStroke("page-2", mkStroke("s1"))
	r.AppendChat(model.ChatMessage{ID: "m1"})
	r.SetChatEnabled(false)

	pages, snap, chat, enabled := r.SyncState()
	if len(pages.Pages) != 2 || pages.CurrentPageID != "page-2" {
		t.Errorf("Unexpected page state: %+v", pages)
	}
	if snap.PageID != "page-2" || len(snap.Strokes) != 1 {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}
	if len(chat) != 1 || chat[0].ID != "m1" {
		t.Errorf("Unexpected chat: %+v", chat)
	}
	if enabled {
		t.Error("Chat should be disabled")
	}
}

func TestBackgroundPersistsOnPage(t *testing.T) {
	r := newRoom("r")

	if got := r.SetBackground("", "grid"); got != "page-1" {
		t.Errorf("Expected page-1, got %s", got)
	}
	if snap := r.Snapshot(""); snap.Background != "grid" {
		t.Errorf("Expected background grid, got %q", snap.Background)
	}
}
