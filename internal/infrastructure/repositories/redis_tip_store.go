package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/internal/domain/services/ledger"
	"github.com/tipstream/tip_service/internal/infrastructure/cache"
)

// RedisTipStore keeps ledger records as JSON documents with a set of ids as index
type RedisTipStore struct {
	client cache.RedisClient
	prefix string
}

var _ ledger.Store = (*RedisTipStore)(nil)

// NewRedisTipStore creates a Redis ledger store. prefix namespaces every key.
func NewRedisTipStore(client cache.RedisClient, prefix string) *RedisTipStore {
	if prefix == "" {
		prefix = "tips"
	}
	return &RedisTipStore{client: client, prefix: prefix}
}

func (s *RedisTipStore) recordKey(id string) string {
	return fmt.Sprintf("%s:tx:%s", s.prefix, id)
}

func (s *RedisTipStore) indexKey() string {
	return s.prefix + ":tx:index"
}

// Save writes the record then indexes it
func (s *RedisTipStore) Save(ctx context.Context, tx *entities.TipTransaction) error {
	id := tx.ID.String()
	if err := s.client.Set(ctx, s.recordKey(id), tx, 0); err != nil {
		return fmt.Errorf("failed to save tip transaction: %w", err)
	}
	if err := s.client.SAdd(ctx, s.indexKey(), id); err != nil {
		return fmt.Errorf("failed to index tip transaction: %w", err)
	}
	return nil
}

// Delete unindexes then removes the record
func (s *RedisTipStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.SRem(ctx, s.indexKey(), id.String()); err != nil {
		return fmt.Errorf("failed to unindex tip transaction: %w", err)
	}
	if err := s.client.Del(ctx, s.recordKey(id.String())); err != nil {
		return fmt.Errorf("failed to delete tip transaction: %w", err)
	}
	return nil
}

// LoadAll reads every indexed record. Index entries without a document are skipped.
func (s *RedisTipStore) LoadAll(ctx context.Context) ([]*entities.TipTransaction, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey())
	if err != nil {
		return nil, fmt.Errorf("failed to read tip index: %w", err)
	}

	records := make([]*entities.TipTransaction, 0, len(ids))
	for _, id := range ids {
		var tx entities.TipTransaction
		if err := s.client.Get(ctx, s.recordKey(id), &tx); err != nil {
			if errors.Is(err, cache.ErrCacheMiss) {
				continue
			}
			return nil, fmt.Errorf("failed to load tip transaction %s: %w", id, err)
		}
		records = append(records, &tx)
	}
	return records, nil
}

// DeleteAll removes every indexed record and the index
func (s *RedisTipStore) DeleteAll(ctx context.Context) error {
	ids, err := s.client.SMembers(ctx, s.indexKey())
	if err != nil {
		return fmt.Errorf("failed to read tip index: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.recordKey(id))
	}
	keys = append(keys, s.indexKey())

	if err := s.client.Del(ctx, keys...); err != nil {
		return fmt.Errorf("failed to clear tip transactions: %w", err)
	}
	return nil
}
