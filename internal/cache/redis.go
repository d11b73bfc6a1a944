package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// setManyChunk caps the number of commands queued in a single pipeline so
// a large reload doesn't buffer the whole list in one request.
const setManyChunk = 1000

// redisCache implements TTLCache on a go-redis client.
type redisCache struct {
	rdb *redis.Client
}

// NewRedisCache wraps the shared Redis client.
func NewRedisCache(rdb *redis.Client) TTLCache {
	return &redisCache{rdb: rdb}
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("setting %q in redis: %w", key, err)
	}
	return nil
}

func (c *redisCache) SetMany(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	pipe := c.rdb.Pipeline()
	queued := 0

	for key, value := range entries {
		pipe.Set(ctx, key, value, ttl)
		queued++
		if queued == setManyChunk {
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("executing redis pipeline: %w", err)
			}
			queued = 0
		}
	}

	if queued > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("executing redis pipeline: %w", err)
		}
	}
	return nil
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %q from redis: %w", key, err)
	}
	return data, true, nil
}

func (c *redisCache) GetDel(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rdb.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("taking %q from redis: %w", key, err)
	}
	return data, true, nil
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("deleting %q from redis: %w", key, err)
	}
	return nil
}
