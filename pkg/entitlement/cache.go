package entitlement

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cacheTTL = 60 * time.Second

// Cache is the entitlement resolution cache. Keyed by tenant_id per
// spec.md 4.1. Invariants: invalidation is synchronous and atomic, a
// cached value is never returned past its TTL, and a cache read failure is
// non-fatal — the caller recomputes.
type Cache interface {
	Get(ctx context.Context, tenantID uuid.UUID) (ResolvedEntitlement, bool)
	Set(ctx context.Context, tenantID uuid.UUID, e ResolvedEntitlement)
	Invalidate(ctx context.Context, tenantID uuid.UUID, reason string)
}

// RedisCache is the primary cache backend, with an in-process map as a
// fallback when Redis itself is unavailable — a cache-read failure must
// never become an entitlement-eval failure.
type RedisCache struct {
	client   *redis.Client
	logger   *slog.Logger
	fallback *inProcessCache
}

// NewRedisCache constructs a RedisCache. client may be nil, in which case
// the cache operates purely on its in-process fallback (useful for tests
// and single-process deployments).
func NewRedisCache(client *redis.Client, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger, fallback: newInProcessCache()}
}

func cacheKey(tenantID uuid.UUID) string {
	return "entitlement:" + tenantID.String()
}

func (c *RedisCache) Get(ctx context.Context, tenantID uuid.UUID) (ResolvedEntitlement, bool) {
	if c.client == nil {
		return c.fallback.get(tenantID)
	}

	raw, err := c.client.Get(ctx, cacheKey(tenantID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ResolvedEntitlement{}, false
		}
		c.logger.Warn("entitlement cache read failed, recomputing", "error", err, "tenant_id", tenantID)
		return c.fallback.get(tenantID)
	}

	var e ResolvedEntitlement
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn("entitlement cache decode failed, recomputing", "error", err, "tenant_id", tenantID)
		return ResolvedEntitlement{}, false
	}
	return e, true
}

func (c *RedisCache) Set(ctx context.Context, tenantID uuid.UUID, e ResolvedEntitlement) {
	c.fallback.set(tenantID, e)

	if c.client == nil {
		return
	}

	raw, err := json.Marshal(e)
	if err != nil {
		c.logger.Warn("entitlement cache encode failed", "error", err, "tenant_id", tenantID)
		return
	}
	if err := c.client.Set(ctx, cacheKey(tenantID), raw, cacheTTL).Err(); err != nil {
		c.logger.Warn("entitlement cache write failed", "error", err, "tenant_id", tenantID)
	}
}

// Invalidate purges both layers synchronously. Must be called after
// override writes and billing webhooks (spec.md 4.1).
func (c *RedisCache) Invalidate(ctx context.Context, tenantID uuid.UUID, reason string) {
	c.fallback.delete(tenantID)
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, cacheKey(tenantID)).Err(); err != nil {
		c.logger.Warn("entitlement cache invalidation failed", "error", err, "tenant_id", tenantID, "reason", reason)
	}
}

// inProcessCache is a TTL-bounded in-memory fallback, never the primary
// source of truth when Redis is reachable.
type inProcessCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]cacheEntry
}

type cacheEntry struct {
	value     ResolvedEntitlement
	expiresAt time.Time
}

func newInProcessCache() *inProcessCache {
	return &inProcessCache{entries: map[uuid.UUID]cacheEntry{}}
}

func (c *inProcessCache) get(tenantID uuid.UUID) (ResolvedEntitlement, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[tenantID]
	if !ok || time.Now().After(e.expiresAt) {
		delete(c.entries, tenantID)
		return ResolvedEntitlement{}, false
	}
	return e.value, true
}

func (c *inProcessCache) set(tenantID uuid.UUID, v ResolvedEntitlement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tenantID] = cacheEntry{value: v, expiresAt: time.Now().Add(cacheTTL)}
}

func (c *inProcessCache) delete(tenantID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tenantID)
}
