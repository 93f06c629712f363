package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/rent-market/internal/port"
)

const (
	soldKeyPrefix        = "sold:"
	idempotencyKeyPrefix = "idem:"
	idempotencyKeyTTL    = 24 * time.Hour
	soldHintTTL          = 7 * 24 * time.Hour
)

// RedisAdapter keeps the sold hint and idempotency keys. Both are advisory;
// the database decides every outcome.
type RedisAdapter struct {
	client *redis.Client
}

var _ port.CacheRepository = (*RedisAdapter)(nil)

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) MarkSold(ctx context.Context, productID string) error {
	return r.client.Set(ctx, soldKeyPrefix+productID, 1, soldHintTTL).Err()
}

func (r *RedisAdapter) IsSold(ctx context.Context, productID string) (bool, error) {
	err := r.client.Get(ctx, soldKeyPrefix+productID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
