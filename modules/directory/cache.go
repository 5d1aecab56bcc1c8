package directory

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	domain "github.com/example/chat-relay/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Cache holds users by username and by ID. Users are immutable, so entries
// never need invalidation. Implementations swallow their own errors: a cache
// failure is a miss.
type Cache interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, bool)
	GetByID(ctx context.Context, id string) (*domain.User, bool)
	Set(ctx context.Context, user domain.User)
}

type noopCache struct{}

func (noopCache) GetByUsername(context.Context, string) (*domain.User, bool) { return nil, false }
func (noopCache) GetByID(context.Context, string) (*domain.User, bool)       { return nil, false }
func (noopCache) Set(context.Context, domain.User)                           {}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Errors uint64 `json:"errors"`
}

// RedisCache is a cache-aside user cache backed by Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger types.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
	errors atomic.Uint64
}

// NewRedisCache creates a Redis user cache. Keys are namespaced by prefix.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration, logger types.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *RedisCache) usernameKey(username string) string {
	return c.prefix + "user:name:" + username
}

func (c *RedisCache) idKey(id string) string {
	return c.prefix + "user:id:" + id
}

// GetByUsername returns the cached user for username.
func (c *RedisCache) GetByUsername(ctx context.Context, username string) (*domain.User, bool) {
	return c.get(ctx, c.usernameKey(username))
}

// GetByID returns the cached user with id.
func (c *RedisCache) GetByID(ctx context.Context, id string) (*domain.User, bool) {
	return c.get(ctx, c.idKey(id))
}

func (c *RedisCache) get(ctx context.Context, key string) (*domain.User, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			c.misses.Add(1)
			return nil, false
		}
		c.errors.Add(1)
		c.logger.Warn("Cache get failed", "key", key, "error", err)
		return nil, false
	}

	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		c.errors.Add(1)
		c.logger.Warn("Cache entry corrupt", "key", key, "error", err)
		return nil, false
	}

	c.hits.Add(1)
	return &user, true
}

// Set stores user under both its username and its ID.
func (c *RedisCache) Set(ctx context.Context, user domain.User) {
	data, err := json.Marshal(user)
	if err != nil {
		c.errors.Add(1)
		return
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, c.usernameKey(user.Username), data, c.ttl)
	pipe.Set(ctx, c.idKey(user.ID), data, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.errors.Add(1)
		c.logger.Warn("Cache set failed", "username", user.Username, "error", err)
	}
}

// Stats returns the current counters.
func (c *RedisCache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.errors.Load(),
	}
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
