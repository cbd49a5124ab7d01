package datacache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Graph snapshot keys. graph:<version> holds a summary of a published graph,
// graph:current points at the live version.
const (
	graphKeyPrefix  = "graph:"
	graphCurrentKey = "graph:current"
)

// GraphSnapshot is the persisted summary of one published graph.
type GraphSnapshot struct {
	Version     string    `json:"version"`
	Nodes       int       `json:"nodes"`
	Edges       int       `json:"edges"`
	DatasetMode string    `json:"dataset_mode"`
	PublishedAt time.Time `json:"published_at"`
}

// SnapshotStore records published graph versions in Redis, best-effort.
type SnapshotStore struct {
	client    *redis.Client
	log       *zap.Logger
	enabled   bool
	opTimeout time.Duration
}

// NewSnapshotStore creates the store. A nil client disables it.
func NewSnapshotStore(client *redis.Client, log *zap.Logger, opTimeout time.Duration) *SnapshotStore {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &SnapshotStore{
		client:    client,
		log:       log.Named("snapshots"),
		enabled:   client != nil,
		opTimeout: opTimeout,
	}
}

// Publish stores the snapshot under graph:<version> and moves graph:current.
// Failures are logged and swallowed; snapshot history is informational.
func (s *SnapshotStore) Publish(ctx context.Context, snap GraphSnapshot) {
	if !s.enabled {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		s.log.Warn("snapshot marshal failed", zap.Error(err))
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	key := graphKeyPrefix + snap.Version
	if err := s.client.Set(opCtx, key, raw, 0).Err(); err != nil {
		s.log.Warn("snapshot publish failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.client.Set(opCtx, graphCurrentKey, snap.Version, 0).Err(); err != nil {
		s.log.Warn("snapshot pointer update failed", zap.Error(err))
	}
}

// Current returns the live snapshot, or nil when none is recorded.
func (s *SnapshotStore) Current(ctx context.Context) *GraphSnapshot {
	if !s.enabled {
		return nil
	}
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	version, err := s.client.Get(opCtx, graphCurrentKey).Result()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn("snapshot pointer read failed", zap.Error(err))
		}
		return nil
	}
	raw, err := s.client.Get(opCtx, graphKeyPrefix+version).Bytes()
	if err != nil {
		return nil
	}
	var snap GraphSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.log.Warn("snapshot unreadable", zap.String("version", version), zap.Error(err))
		return nil
	}
	return &snap
}

// NewVersion derives a monotonic version label.
func NewVersion(t time.Time) string {
	return fmt.Sprintf("v%d", t.UnixNano())
}
