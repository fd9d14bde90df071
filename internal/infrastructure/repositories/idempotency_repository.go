package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/tipstream/tip_service/internal/infrastructure/cache"
	"github.com/tipstream/tip_service/pkg/idempotency"
)

// IdempotencyRepository stores replayable responses in Redis with a TTL
type IdempotencyRepository struct {
	client cache.RedisClient
	prefix string
}

var _ idempotency.Store = (*IdempotencyRepository)(nil)

// NewIdempotencyRepository creates a new idempotency repository
func NewIdempotencyRepository(client cache.RedisClient, prefix string) *IdempotencyRepository {
	if prefix == "" {
		prefix = "tips"
	}
	return &IdempotencyRepository{client: client, prefix: prefix}
}

// Get retrieves a stored response; unknown or expired keys return nil
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	var record idempotency.Record
	if err := r.client.Get(ctx, r.key(key), &record); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// Put stores record until ttl elapses
func (r *IdempotencyRepository) Put(ctx context.Context, record *idempotency.Record, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(record.Key), record, ttl)
}

func (r *IdempotencyRepository) key(k string) string {
	return r.prefix + ":idempotency:" + k
}
