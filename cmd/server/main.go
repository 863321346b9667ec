package main

import (
	"log"

	"whiteboard-backend/internal/cache"
	"whiteboard-backend/internal/config"
	"whiteboard-backend/internal/server"
)

func main() {
	cfg := config.Load()

	// The snapshot backup store is optional; without it save/load still works
	// against in-process room state.
	var store *cache.SnapshotStore
	if cfg.Redis.Enabled {
		var err error
		store, err = cache.NewSnapshotStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("Snapshot backup store unavailable: %v (backups disabled)", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	srv := server.New(cfg, store)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	// Room-empty is where the recording merge job would hook in; the relay
	// itself only notes it.
	srv.Hub().OnRoomEmpty = func(roomID string) {
		log.Printf("[Rooms] Room %s is now empty", roomID)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
