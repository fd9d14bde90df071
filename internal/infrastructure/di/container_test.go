package di

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tipstream/tip_service/internal/infrastructure/cache"
	"github.com/tipstream/tip_service/internal/infrastructure/config"
	"github.com/tipstream/tip_service/internal/infrastructure/repositories"
	"github.com/tipstream/tip_service/pkg/idempotency"
	"github.com/tipstream/tip_service/pkg/logger"
)

type stubRedis struct{}

func (stubRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}
func (stubRedis) Get(ctx context.Context, key string, dest interface{}) error {
	return cache.ErrCacheMiss
}
func (stubRedis) Del(ctx context.Context, keys ...string) error { return nil }
func (stubRedis) SAdd(ctx context.Context, key string, members ...string) error {
	return nil
}
func (stubRedis) SRem(ctx context.Context, key string, members ...string) error {
	return nil
}
func (stubRedis) SMembers(ctx context.Context, key string) ([]string, error) { return nil, nil }
func (stubRedis) Ping(ctx context.Context) error                             { return nil }
func (stubRedis) Close() error                                               { return nil }

func testConfig(backend string, redisEnabled bool) *config.Config {
	return &config.Config{
		Environment: "test",
		Blockchain: config.BlockchainConfig{
			Networks: map[string]config.NetworkConfig{
				"mantle": {
					Name:            "Mantle",
					ChainID:         5000,
					Family:          "evm",
					SettlementToken: "usdc",
					Tokens: map[string]config.TokenConfig{
						"usdc": {Address: "0x09Bc4E0D864854c6aFB6eB9A9cdF58aC190D0dF9", Symbol: "USDC", Decimals: 6},
					},
				},
			},
		},
		Redis:      config.RedisConfig{Enabled: redisEnabled, Host: "localhost", Port: 6379, KeyPrefix: "tips"},
		Ledger:     config.LedgerConfig{Backend: backend},
		Settlement: config.SettlementConfig{CurrentChain: 5000, PollInterval: time.Second},
	}
}

func stubConnect(t *testing.T, client cache.RedisClient, err error) *int {
	t.Helper()
	calls := 0
	original := newRedisClient
	newRedisClient = func(*config.RedisConfig, *zap.Logger) (cache.RedisClient, error) {
		calls++
		return client, err
	}
	t.Cleanup(func() { newRedisClient = original })
	return &calls
}

func TestNewContainer_PostgresLedgerKeepsIdempotencyOnRedis(t *testing.T) {
	calls := stubConnect(t, stubRedis{}, nil)
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	c, err := NewContainer(testConfig("postgres", true), sqlx.NewDb(sqlDB, "postgres"), logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 1, *calls)
	assert.NotNil(t, c.RedisClient)
	assert.IsType(t, &repositories.IdempotencyRepository{}, c.Idempotency)
	assert.Contains(t, c.HealthChecks(), "redis")
	assert.Contains(t, c.HealthChecks(), "database")
}

func TestNewContainer_UnreachableRedisFallsBackForIdempotency(t *testing.T) {
	stubConnect(t, nil, errors.New("connection refused"))

	c, err := NewContainer(testConfig("memory", true), nil, logger.NewNop())
	require.NoError(t, err)

	assert.Nil(t, c.RedisClient)
	assert.IsType(t, &idempotency.MemoryStore{}, c.Idempotency)
	assert.NotContains(t, c.HealthChecks(), "redis")
}

func TestNewContainer_RedisLedgerRequiresRedis(t *testing.T) {
	stubConnect(t, nil, errors.New("connection refused"))

	_, err := NewContainer(testConfig("redis", false), nil, logger.NewNop())
	assert.Error(t, err)
}

func TestNewContainer_RedisDisabled(t *testing.T) {
	calls := stubConnect(t, stubRedis{}, nil)

	c, err := NewContainer(testConfig("memory", false), nil, logger.NewNop())
	require.NoError(t, err)

	assert.Zero(t, *calls)
	assert.IsType(t, &idempotency.MemoryStore{}, c.Idempotency)
}
