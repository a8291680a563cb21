package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps entries as JSON values whose Redis TTL follows ExpiresAt.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisOption configures a RedisCache.
type RedisOption func(*RedisCache)

// WithPrefix sets the key prefix. Default is "voxa:audio".
func WithPrefix(prefix string) RedisOption {
	return func(c *RedisCache) {
		c.prefix = prefix
	}
}

func NewRedisCache(client redis.UniversalClient, opts ...RedisOption) *RedisCache {
	c := &RedisCache{client: client, prefix: "voxa:audio", now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) key(hash string) string {
	return c.prefix + ":" + hash
}

func (c *RedisCache) Get(ctx context.Context, hash string) (Entry, bool, error) {
	data, err := c.client.Get(ctx, c.key(hash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("redis get failed: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return e, true, nil
}

// Put stores e until its ExpiresAt. Entries already expired are not written.
func (c *RedisCache) Put(ctx context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	var ttl time.Duration
	if !e.ExpiresAt.IsZero() {
		ttl = e.ExpiresAt.Sub(c.now())
		if ttl <= 0 {
			return nil
		}
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	if err := c.client.Set(ctx, c.key(e.Hash), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ AudioCache = (*RedisCache)(nil)
