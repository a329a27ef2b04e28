package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shepherdhq/shepherd-backend/internal/logger"
	"github.com/shepherdhq/shepherd-backend/internal/utils"
)

// NetworkCache memoizes computed network membership per root user.
// Invalidation is deliberately blunt: any edge write drops the whole cache
// (a change anywhere in a chain can alter ancestor/descendant sets
// transitively), correctness over hit-rate.
type NetworkCache interface {
	GetUserIDs(ctx context.Context, rootID uuid.UUID) ([]uuid.UUID, bool)
	SetUserIDs(ctx context.Context, rootID uuid.UUID, ids []uuid.UUID)
	InvalidateAll(ctx context.Context)
}

const networkCacheTTL = 10 * time.Minute

type redisNetworkCache struct {
	log *logger.Logger
	rdb *redis.Client
}

// NewRedisNetworkCache connects to REDIS_ADDR. Entries are keyed by a
// generation counter plus root id; InvalidateAll bumps the generation and
// lets stale entries age out through their TTL.
func NewRedisNetworkCache(log *logger.Logger) (NetworkCache, error) {
	addr := strings.TrimSpace(utils.GetEnv("REDIS_ADDR", "", log))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisNetworkCache{
		log: log.With("service", "RedisNetworkCache"),
		rdb: rdb,
	}, nil
}

const networkGenerationKey = "network:generation"

func (c *redisNetworkCache) generation(ctx context.Context) string {
	gen, err := c.rdb.Get(ctx, networkGenerationKey).Result()
	if err != nil {
		return "0"
	}
	return gen
}

func (c *redisNetworkCache) key(gen string, rootID uuid.UUID) string {
	return fmt.Sprintf("network:%s:%s", gen, rootID.String())
}

func (c *redisNetworkCache) GetUserIDs(ctx context.Context, rootID uuid.UUID) ([]uuid.UUID, bool) {
	raw, err := c.rdb.Get(ctx, c.key(c.generation(ctx), rootID)).Bytes()
	if err != nil {
		return nil, false
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(raw, &ids); err != nil {
		c.log.Warn("Dropping undecodable network cache entry", "root_id", rootID, "error", err)
		return nil, false
	}
	return ids, true
}

func (c *redisNetworkCache) SetUserIDs(ctx context.Context, rootID uuid.UUID, ids []uuid.UUID) {
	raw, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(c.generation(ctx), rootID), raw, networkCacheTTL).Err(); err != nil {
		c.log.Warn("Failed to write network cache entry", "root_id", rootID, "error", err)
	}
}

func (c *redisNetworkCache) InvalidateAll(ctx context.Context) {
	if err := c.rdb.Incr(ctx, networkGenerationKey).Err(); err != nil {
		c.log.Warn("Failed to bump network cache generation", "error", err)
	}
}

// memoryNetworkCache backs deployments without Redis and the test suite.
type memoryNetworkCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID][]uuid.UUID
}

func NewMemoryNetworkCache() NetworkCache {
	return &memoryNetworkCache{entries: map[uuid.UUID][]uuid.UUID{}}
}

func (c *memoryNetworkCache) GetUserIDs(_ context.Context, rootID uuid.UUID) ([]uuid.UUID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids, ok := c.entries[rootID]
	if !ok {
		return nil, false
	}
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	return out, true
}

func (c *memoryNetworkCache) SetUserIDs(_ context.Context, rootID uuid.UUID, ids []uuid.UUID) {
	stored := make([]uuid.UUID, len(ids))
	copy(stored, ids)
	c.mu.Lock()
	c.entries[rootID] = stored
	c.mu.Unlock()
}

func (c *memoryNetworkCache) InvalidateAll(_ context.Context) {
	c.mu.Lock()
	c.entries = map[uuid.UUID][]uuid.UUID{}
	c.mu.Unlock()
}
