package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"iam/internal/config"
	"iam/internal/storage"
)

const consumedCodePrefix = "authcode:"

// Cache using redis remembers consumed authorization codes across instances
type Cache struct {
	rdb *redis.Client
}

// NewCache creates new instance of redis client and checks the connection
func NewCache(ctx context.Context, conf *config.RedisConfig) (*Cache, error) {
	const op = "storage.redis.NewCache"

	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Host + ":" + strconv.Itoa(conf.Port),
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Cache{rdb: rdb}, nil
}

// Consume marks the code fingerprint as used for ttl.
// Returns storage.ErrCodeConsumed when the fingerprint is already marked.
func (c *Cache) Consume(ctx context.Context, fingerprint string, ttl time.Duration) error {
	const op = "storage.redis.Consume"

	ok, err := c.rdb.SetNX(ctx, consumedCodePrefix+fingerprint, 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return storage.ErrCodeConsumed
	}
	return nil
}

// Close closes redis client
func (c *Cache) Close() error {
	return c.rdb.Close()
}
