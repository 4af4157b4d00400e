package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"decision-engine/internal/database/redis"
	"decision-engine/internal/models"
)

// RedisSnapshotCache caches snapshots keyed by (location, hazard set,
// sweep bucket). Write-once-per-key-per-TTL; losing a populate race just
// means one extra upstream call.
type RedisSnapshotCache struct {
	client *redis.Client
}

func NewRedisSnapshotCache(client *redis.Client) *RedisSnapshotCache {
	return &RedisSnapshotCache{client: client}
}

func (c *RedisSnapshotCache) Get(ctx context.Context, key string) (*models.EnvironmentalSnapshot, bool) {
	raw, err := c.client.GetClient().Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var snapshot models.EnvironmentalSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		slog.Warn("discarding malformed cached snapshot", "key", key, "error", err)
		return nil, false
	}

	return &snapshot, true
}

func (c *RedisSnapshotCache) Set(ctx context.Context, key string, snapshot *models.EnvironmentalSnapshot, ttl time.Duration) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("failed to marshal snapshot for cache", "key", key, "error", err)
		return
	}

	if err := c.client.GetClient().Set(ctx, key, raw, ttl).Err(); err != nil {
		slog.Warn("failed to cache snapshot", "key", key, "error", err)
	}
}

// CacheKey builds the (location, hazard set, sweep bucket) cache key.
// Coordinates are rounded to ~11m so nearby re-fetches share an entry.
func CacheKey(lat, lon float64, hazards []models.HazardType, bucket int64) string {
	names := make([]string, 0, len(hazards))
	for _, h := range hazards {
		names = append(names, string(h))
	}
	sort.Strings(names)
	return fmt.Sprintf("snapshot:%.4f:%.4f:%s:%d", lat, lon, strings.Join(names, "+"), bucket)
}
