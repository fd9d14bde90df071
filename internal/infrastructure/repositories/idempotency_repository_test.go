package repositories

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tipstream/tip_service/internal/infrastructure/cache"
	"github.com/tipstream/tip_service/pkg/idempotency"
)

func TestIdempotencyRepository_PutUsesTTL(t *testing.T) {
	client := new(MockRedisClient)
	repo := NewIdempotencyRepository(client, "test")
	record := &idempotency.Record{Key: "tip-1", ResponseStatus: 202}

	client.On("Set", mock.Anything, "test:idempotency:tip-1", record, time.Hour).Return(nil)

	require.NoError(t, repo.Put(context.Background(), record, time.Hour))
	client.AssertExpectations(t)
}

func TestIdempotencyRepository_Get(t *testing.T) {
	client := new(MockRedisClient)
	repo := NewIdempotencyRepository(client, "test")

	client.On("Get", mock.Anything, "test:idempotency:hit", mock.Anything).
		Return(`{"key":"hit","requestHash":"h1","responseStatus":202,"responseBody":{"txHash":"0xabc"}}`, nil)
	client.On("Get", mock.Anything, "test:idempotency:miss", mock.Anything).
		Return("", fmt.Errorf("key 'miss': %w", cache.ErrCacheMiss))
	client.On("Get", mock.Anything, "test:idempotency:down", mock.Anything).
		Return("", errors.New("connection refused"))

	record, err := repo.Get(context.Background(), "hit")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 202, record.ResponseStatus)
	assert.Equal(t, "h1", record.RequestHash)
	assert.JSONEq(t, `{"txHash":"0xabc"}`, string(record.ResponseBody))

	record, err = repo.Get(context.Background(), "miss")
	require.NoError(t, err)
	assert.Nil(t, record)

	_, err = repo.Get(context.Background(), "down")
	assert.Error(t, err)
}
