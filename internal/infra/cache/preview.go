package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// PreviewCache stores rendered QR bytes under a caller-built key.
type PreviewCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewPreviewCache(rdb *redis.Client, ttl time.Duration) *PreviewCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PreviewCache{rdb: rdb, prefix: "qr:render:", ttl: ttl}
}

// Get reports a miss as (nil, false, nil).
func (c *PreviewCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *PreviewCache) Set(ctx context.Context, key string, data []byte) error {
	return c.rdb.Set(ctx, c.prefix+key, data, c.ttl).Err()
}
