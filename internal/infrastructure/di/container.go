package di

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tipstream/tip_service/internal/api/handlers"
	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/internal/domain/services/ledger"
	"github.com/tipstream/tip_service/internal/domain/services/settlement"
	"github.com/tipstream/tip_service/internal/infrastructure/adapters/routing"
	"github.com/tipstream/tip_service/internal/infrastructure/adapters/signer"
	"github.com/tipstream/tip_service/internal/infrastructure/cache"
	"github.com/tipstream/tip_service/internal/infrastructure/chains"
	"github.com/tipstream/tip_service/internal/infrastructure/config"
	"github.com/tipstream/tip_service/internal/infrastructure/database"
	"github.com/tipstream/tip_service/internal/infrastructure/events"
	"github.com/tipstream/tip_service/internal/infrastructure/metrics"
	"github.com/tipstream/tip_service/internal/infrastructure/repositories"
	"github.com/tipstream/tip_service/internal/workers/pending_reconciler"
	"github.com/tipstream/tip_service/pkg/graceful"
	"github.com/tipstream/tip_service/pkg/idempotency"
	"github.com/tipstream/tip_service/pkg/logger"
	"github.com/tipstream/tip_service/pkg/tracing"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

var newRedisClient = cache.NewRedisClient

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	DB     *sqlx.DB
	Logger *logger.Logger
	ZapLog *zap.Logger

	// Infrastructure
	RedisClient   cache.RedisClient
	NATSConn      *nats.Conn
	Chains        *chains.Registry
	RoutingClient *routing.Client
	Executor      *routing.StepExecutor
	SignerClient  *signer.Client
	Metrics       *metrics.Collector
	Tracer        trace.Tracer

	// Idempotency keeps POST responses replayable for client retries
	Idempotency idempotency.Store

	// Domain
	Ledger            *ledger.Ledger
	Monitor           *settlement.Monitor
	QuoteResolver     *settlement.QuoteResolver
	SettlementService *settlement.Service

	// Workers
	Reconciler *pending_reconciler.Worker
}

// NewContainer wires the settlement engine. db may be nil unless the ledger
// backend is postgres.
func NewContainer(cfg *config.Config, db *sqlx.DB, log *logger.Logger) (*Container, error) {
	zapLog := log.Zap()

	c := &Container{
		Config:  cfg,
		DB:      db,
		Logger:  log,
		ZapLog:  zapLog,
		Metrics: metrics.NewCollector("tips"),
		Tracer:  tracing.GetTracer("tip-service"),
	}

	registry, err := chains.NewRegistry(cfg.Blockchain)
	if err != nil {
		return nil, fmt.Errorf("failed to build chain registry: %w", err)
	}
	c.Chains = registry

	if err := c.connectRedis(); err != nil {
		return nil, err
	}

	store, err := c.ledgerStore()
	if err != nil {
		return nil, err
	}
	c.Ledger = ledger.NewLedger(store, log.With("component", "ledger"))

	if c.RedisClient != nil {
		c.Idempotency = repositories.NewIdempotencyRepository(c.RedisClient, cfg.Redis.KeyPrefix)
	} else {
		log.Warn("Idempotency keys are kept in process memory")
		c.Idempotency = idempotency.NewMemoryStore()
	}

	c.RoutingClient = routing.NewClient(routing.Config{
		BaseURL:           cfg.Routing.BaseURL,
		APIKey:            cfg.Routing.APIKey,
		Integrator:        cfg.Routing.Integrator,
		Timeout:           time.Duration(cfg.Routing.Timeout) * time.Second,
		RequestsPerSecond: cfg.Routing.RequestsPerSecond,
		Slippage:          cfg.Routing.Slippage,
		Order:             cfg.Routing.Order,
		AllowedBridges:    cfg.Routing.AllowedBridges,
	}, zapLog)
	c.Executor = routing.NewStepExecutor(c.RoutingClient, zapLog)

	c.SignerClient = signer.NewClient(signer.Config{
		BaseURL: cfg.Signer.BaseURL,
		APIKey:  cfg.Signer.APIKey,
		Timeout: time.Duration(cfg.Signer.Timeout) * time.Second,
	}, zapLog)

	publisher, err := c.publisher()
	if err != nil {
		return nil, err
	}

	c.QuoteResolver = settlement.NewQuoteResolver(c.Chains, c.RoutingClient, c.Metrics, c.Tracer, zapLog)
	c.Monitor = settlement.NewMonitor(c.RoutingClient, c.Ledger, c.Metrics, settlement.MonitorConfig{
		Interval:         cfg.Settlement.PollInterval,
		Jitter:           cfg.Settlement.PollJitter,
		MaxInterval:      cfg.Settlement.MaxPollInterval,
		BackoffThreshold: cfg.Settlement.BackoffThreshold,
		PollTimeout:      cfg.Settlement.PollTimeout,
	}, zapLog)

	c.SettlementService = settlement.NewService(settlement.Config{
		CurrentChain:  entities.ChainID(cfg.Settlement.CurrentChain),
		LedgerRetries: cfg.Settlement.LedgerRetries,
	}, settlement.Dependencies{
		Chains:          c.Chains,
		Quotes:          c.QuoteResolver,
		Executor:        c.Executor,
		Signer:          c.SignerClient,
		Ledger:          c.Ledger,
		Monitor:         c.Monitor,
		DirectTips:      publisher,
		StatusPublisher: publisher,
		Metrics:         c.Metrics,
		Tracer:          c.Tracer,
	}, zapLog)

	if cfg.Reconciliation.Enabled {
		c.Reconciler = pending_reconciler.NewWorker(c.SettlementService, cfg.Reconciliation.Schedule, zapLog)
	}

	log.Info("Container initialized",
		"ledger_backend", cfg.Ledger.Backend,
		"current_chain", cfg.Settlement.CurrentChain,
		"nats_enabled", cfg.NATS.Enabled)
	return c, nil
}

// Start loads the ledger, re-attaches monitors to pending tips and starts workers
func (c *Container) Start(ctx context.Context) error {
	if err := c.Ledger.Load(ctx); err != nil {
		return err
	}

	resumed, err := c.SettlementService.ResumePending(ctx)
	if err != nil {
		c.Logger.Warn("Some pending tips could not be resumed", "error", err)
	}
	c.Logger.Info("Pending tips resumed", "count", resumed)

	if c.Reconciler != nil {
		if err := c.Reconciler.Start(); err != nil {
			return err
		}
	}
	return nil
}

// RegisterShutdown hands every stoppable component to the shutdown manager
func (c *Container) RegisterShutdown(sm *graceful.ShutdownManager) {
	if c.Reconciler != nil {
		sm.Register(c.Reconciler)
	}
	sm.Register(c.Monitor)

	if c.NATSConn != nil {
		sm.RegisterCloser(closerFunc(func() error {
			return c.NATSConn.Drain()
		}))
	}
	if c.RedisClient != nil {
		sm.RegisterCloser(c.RedisClient)
	}
	if c.DB != nil {
		sm.RegisterCloser(c.DB)
	}
}

// HealthChecks returns a health check per external dependency in use
func (c *Container) HealthChecks() map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{}
	if c.DB != nil {
		checks["database"] = func(ctx context.Context) error {
			return database.HealthCheck(ctx, c.DB)
		}
	}
	if c.RedisClient != nil {
		checks["redis"] = c.RedisClient.Ping
	}
	if c.NATSConn != nil {
		checks["nats"] = func(context.Context) error {
			if !c.NATSConn.IsConnected() {
				return fmt.Errorf("nats status %s", c.NATSConn.Status())
			}
			return nil
		}
	}
	return checks
}

func (c *Container) ledgerStore() (ledger.Store, error) {
	switch c.Config.Ledger.Backend {
	case "postgres":
		if c.DB == nil {
			return nil, fmt.Errorf("postgres ledger backend requires a database connection")
		}
		return repositories.NewTipTransactionRepository(c.DB), nil
	case "redis":
		return repositories.NewRedisTipStore(c.RedisClient, c.Config.Redis.KeyPrefix), nil
	default:
		c.Logger.Warn("Using in-memory ledger, records are lost on restart")
		return ledger.NewMemoryStore(), nil
	}
}

// connectRedis opens Redis when it is enabled or the ledger lives there. Only
// the redis ledger backend treats an unreachable Redis as fatal.
func (c *Container) connectRedis() error {
	ledgerOnRedis := c.Config.Ledger.Backend == "redis"
	if !c.Config.Redis.Enabled && !ledgerOnRedis {
		return nil
	}

	client, err := newRedisClient(&c.Config.Redis, c.ZapLog)
	if err != nil {
		if ledgerOnRedis {
			return err
		}
		c.Logger.Warn("Redis unavailable, idempotency falls back to memory", "error", err)
		return nil
	}
	c.RedisClient = client
	return nil
}

type tipPublisher interface {
	settlement.DirectTipPublisher
	settlement.StatusPublisher
}

func (c *Container) publisher() (tipPublisher, error) {
	if !c.Config.NATS.Enabled {
		return events.NewNoopPublisher(c.ZapLog), nil
	}
	conn, err := events.Connect(c.Config.NATS, c.ZapLog)
	if err != nil {
		return nil, err
	}
	c.NATSConn = conn
	return events.NewPublisher(conn, c.Config.NATS.SubjectPrefix, c.ZapLog), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var _ io.Closer = closerFunc(nil)
