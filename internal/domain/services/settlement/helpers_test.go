package settlement

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/internal/domain/services/ledger"
	"github.com/tipstream/tip_service/internal/infrastructure/adapters/signer"
	"github.com/tipstream/tip_service/internal/infrastructure/chains"
	"github.com/tipstream/tip_service/internal/infrastructure/metrics"
	"github.com/tipstream/tip_service/pkg/logger"
)

const (
	ethereum entities.ChainID = 1
	mantle   entities.ChainID = 5000
	solana   entities.ChainID = 1151111081099710

	recipient = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	sender    = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

func testChains() *chains.Registry {
	return chains.NewStaticRegistry(
		entities.ChainInfo{
			ID:     ethereum,
			Name:   "Ethereum",
			Family: entities.ChainFamilyEVM,
			SettlementToken: &entities.SettlementToken{
				Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Decimals: 6,
			},
		},
		entities.ChainInfo{
			ID:     mantle,
			Name:   "Mantle",
			Family: entities.ChainFamilyEVM,
			SettlementToken: &entities.SettlementToken{
				Address: "0x09Bc4E0D864854c6aFB6eB9A9cdF58aC190D0dF9", Symbol: "USDC", Decimals: 6,
			},
		},
		entities.ChainInfo{
			ID:     solana,
			Name:   "Solana",
			Family: entities.ChainFamilySolana,
		},
	)
}

func twoStepRoute() entities.Route {
	return entities.Route{
		ID:         "route-1",
		FromChain:  ethereum,
		ToChain:    mantle,
		FromAmount: big.NewInt(10_000_000),
		ToAmount:   big.NewInt(9_950_000),
		Steps: []entities.RouteStep{
			{
				ID: "step-1", Kind: entities.StepKindSwap, Tool: "uniswap",
				FromChain: ethereum, ToChain: ethereum, FromAmount: big.NewInt(10_000_000),
				GasCostUSD: decimal.RequireFromString("1.50"), FeeCostUSD: decimal.Zero, ExecutionDuration: 30,
			},
			{
				ID: "step-2", Kind: entities.StepKindCross, Tool: "stargate",
				FromChain: ethereum, ToChain: mantle, FromAmount: big.NewInt(10_000_000),
				GasCostUSD: decimal.RequireFromString("2.25"), FeeCostUSD: decimal.RequireFromString("0.05"), ExecutionDuration: 180,
			},
		},
	}
}

type MockRouteFinder struct {
	mock.Mock
}

func (m *MockRouteFinder) GetRoutes(ctx context.Context, req *entities.RouteRequest) ([]entities.Route, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Route), args.Error(1)
}

type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) ExecuteStep(ctx context.Context, step *entities.RouteStep, s signer.Signer, opts entities.ExecuteOptions) (string, error) {
	args := m.Called(ctx, step, opts)
	return args.String(0), args.Error(1)
}

type MockSigner struct {
	mock.Mock
}

func (m *MockSigner) Address(ctx context.Context, chainID entities.ChainID) (string, error) {
	args := m.Called(ctx, chainID)
	return args.String(0), args.Error(1)
}

func (m *MockSigner) Allowance(ctx context.Context, chainID entities.ChainID, token, owner, spender string) (*big.Int, error) {
	args := m.Called(ctx, chainID, token, owner, spender)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockSigner) Approve(ctx context.Context, chainID entities.ChainID, token, spender string, amount *big.Int) (string, error) {
	args := m.Called(ctx, chainID, token, spender, amount)
	return args.String(0), args.Error(1)
}

func (m *MockSigner) SendTransaction(ctx context.Context, tx *entities.TransactionRequest) (string, error) {
	args := m.Called(ctx, tx)
	return args.String(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishDirectTip(ctx context.Context, req *entities.DirectTipRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockPublisher) PublishStatus(ctx context.Context, update entities.TipStatusUpdate) error {
	return nil
}

// scriptedStatus replays one response per poll per transfer; the last entry repeats
type scriptedStatus struct {
	mu     sync.Mutex
	script []statusStep
	polls  map[string]int
	byHash map[string][]statusStep
}

type statusStep struct {
	status *entities.BridgeTransferStatus
	err    error
}

func newScriptedStatus(steps ...statusStep) *scriptedStatus {
	return &scriptedStatus{script: steps, polls: make(map[string]int), byHash: make(map[string][]statusStep)}
}

// forHash gives one transfer its own script
func (s *scriptedStatus) forHash(hash string, steps ...statusStep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[hash] = steps
}

func (s *scriptedStatus) GetStatus(ctx context.Context, req *entities.StatusRequest) (*entities.BridgeTransferStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	script := s.script
	if own, ok := s.byHash[req.TxHash]; ok {
		script = own
	}
	n := s.polls[req.TxHash]
	s.polls[req.TxHash] = n + 1
	if len(script) == 0 {
		return &entities.BridgeTransferStatus{Status: entities.BridgeStatusNotFound}, nil
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	step := script[n]
	if step.err != nil {
		return nil, step.err
	}
	copied := *step.status
	return &copied, nil
}

func (s *scriptedStatus) pollCount(hash string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls[hash]
}

func pending(done, total int) statusStep {
	return statusStep{status: &entities.BridgeTransferStatus{
		Status: entities.BridgeStatusPending, CompletedSteps: done, TotalSteps: total,
	}}
}

func done(total int) statusStep {
	return statusStep{status: &entities.BridgeTransferStatus{
		Status: entities.BridgeStatusDone, CompletedSteps: total, TotalSteps: total,
	}}
}

func failed(message string) statusStep {
	return statusStep{status: &entities.BridgeTransferStatus{
		Status: entities.BridgeStatusFailed, Message: message,
	}}
}

func notFound() statusStep {
	return statusStep{status: &entities.BridgeTransferStatus{Status: entities.BridgeStatusNotFound}}
}

// recorder collects observer updates
type recorder struct {
	mu       sync.Mutex
	updates  []entities.TipStatusUpdate
	terminal chan struct{}
	once     sync.Once
}

func newRecorder() *recorder {
	return &recorder{terminal: make(chan struct{})}
}

func (r *recorder) observe(update entities.TipStatusUpdate) {
	r.mu.Lock()
	r.updates = append(r.updates, update)
	r.mu.Unlock()
	if update.IsTerminal() {
		r.once.Do(func() { close(r.terminal) })
	}
}

func (r *recorder) all() []entities.TipStatusUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entities.TipStatusUpdate(nil), r.updates...)
}

func (r *recorder) waitTerminal(t *testing.T) entities.TipStatusUpdate {
	t.Helper()
	select {
	case <-r.terminal:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for terminal status")
	}
	updates := r.all()
	return updates[len(updates)-1]
}

type harness struct {
	service   *Service
	ledger    *ledger.Ledger
	store     *ledger.MemoryStore
	monitor   *Monitor
	routes    *MockRouteFinder
	executor  *MockExecutor
	signer    *MockSigner
	publisher *MockPublisher
	status    *scriptedStatus
	metrics   *metrics.Collector
}

func newHarness(t *testing.T, status *scriptedStatus) *harness {
	t.Helper()

	store := ledger.NewMemoryStore()
	l := ledger.NewLedger(store, logger.NewNop())
	collector := metrics.NewCollector("test")
	tracer := noop.NewTracerProvider().Tracer("test")
	registry := testChains()

	h := &harness{
		ledger:    l,
		store:     store,
		routes:    new(MockRouteFinder),
		executor:  new(MockExecutor),
		signer:    new(MockSigner),
		publisher: new(MockPublisher),
		status:    status,
		metrics:   collector,
	}
	h.monitor = NewMonitor(status, l, collector, MonitorConfig{
		Interval:    5 * time.Millisecond,
		MaxInterval: 20 * time.Millisecond,
		PollTimeout: time.Second,
	}, zap.NewNop())
	t.Cleanup(func() { require.NoError(t, h.monitor.Shutdown(5*time.Second)) })

	h.service = NewService(Config{CurrentChain: mantle, LedgerRetries: 2, LedgerRetryDelay: time.Millisecond}, Dependencies{
		Chains:          registry,
		Quotes:          NewQuoteResolver(registry, h.routes, collector, tracer, zap.NewNop()),
		Executor:        h.executor,
		Signer:          h.signer,
		Ledger:          l,
		Monitor:         h.monitor,
		DirectTips:      h.publisher,
		StatusPublisher: h.publisher,
		Metrics:         collector,
		Tracer:          tracer,
	}, zap.NewNop())
	return h
}

func tipRequest() *entities.TipRequest {
	return &entities.TipRequest{
		SourceChain:      ethereum,
		RecipientAddress: recipient,
		Amount:           "10.00",
		EventID:          "evt-1",
		SpeakerID:        "spk-1",
	}
}

// flakyStore fails the first saves, then behaves like the wrapped memory store
type flakyStore struct {
	*ledger.MemoryStore

	mu       sync.Mutex
	failures int
	saves    map[uuid.UUID]int
}

func (s *flakyStore) Save(ctx context.Context, tx *entities.TipTransaction) error {
	s.mu.Lock()
	s.saves[tx.ID]++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()

	if fail {
		return errors.New("connection reset by peer")
	}
	return s.MemoryStore.Save(ctx, tx)
}

func (s *flakyStore) attempts(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[id]
}

type countingStatusPublisher struct {
	mu      sync.Mutex
	updates []entities.TipStatusUpdate
}

func (p *countingStatusPublisher) PublishStatus(ctx context.Context, update entities.TipStatusUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, update)
	return nil
}

func (p *countingStatusPublisher) statuses() []entities.TipStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]entities.TipStatus, 0, len(p.updates))
	for _, u := range p.updates {
		result = append(result, u.Status)
	}
	return result
}
