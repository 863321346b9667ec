package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"whiteboard-backend/internal/model"
)

// PageSnapshot is the out-of-band backup of one page's stroke log, written by
// the save endpoint. It is decoupled from live sync: the relay never reads it
// while a room is active.
type PageSnapshot struct {
	RoomID  string         `json:"roomId"`
	PageID  string         `json:"pageId"`
	Strokes []model.Stroke `json:"strokes"`
	SavedAt time.Time      `json:"savedAt"`
}

// ErrNoSnapshot is returned by Load when no backup exists for the room.
var ErrNoSnapshot = errors.New("no snapshot")

// SnapshotStore keeps page snapshots in Redis with a TTL. Optional: callers
// are expected to tolerate a nil store.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotStore connects and pings Redis.
func NewSnapshotStore(addr, password string, db int) (*SnapshotStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Printf("[Redis] Connected to %s", addr)
	return &SnapshotStore{client: client, ttl: 24 * time.Hour}, nil
}

func snapshotKey(roomID string) string {
	return "room:" + roomID + ":snapshot"
}

// Save overwrites the room's snapshot backup.
func (s *SnapshotStore) Save(ctx context.Context, snap *PageSnapshot) error {
	snap.SavedAt = time.Now()

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, snapshotKey(snap.RoomID), data, s.ttl).Err(); err != nil {
		log.Printf("[Redis] Failed to save snapshot for room %s: %v", snap.RoomID, err)
		return err
	}
	return nil
}

// Load fetches the room's snapshot backup, ErrNoSnapshot when absent.
func (s *SnapshotStore) Load(ctx context.Context, roomID string) (*PageSnapshot, error) {
	data, err := s.client.Get(ctx, snapshotKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}

	var snap PageSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Close releases the connection pool.
func (s *SnapshotStore) Close() error {
	return s.client.Close()
}
