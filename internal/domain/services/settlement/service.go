package settlement

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/internal/domain/errors"
	"github.com/tipstream/tip_service/internal/domain/services/ledger"
	"github.com/tipstream/tip_service/internal/infrastructure/adapters/signer"
	"github.com/tipstream/tip_service/internal/infrastructure/metrics"
	"github.com/tipstream/tip_service/pkg/retry"
)

// Config holds orchestrator settings
type Config struct {
	// CurrentChain is where tips settle; tips already on it take the direct path
	CurrentChain entities.ChainID
	// LedgerRetries bounds how often a failed ledger write is retried after submission
	LedgerRetries int
	// LedgerRetryDelay is the first backoff between ledger write attempts
	LedgerRetryDelay time.Duration
}

// Dependencies wires the orchestrator's collaborators
type Dependencies struct {
	Chains          ChainProvider
	Quotes          *QuoteResolver
	Executor        StepExecutor
	Signer          signer.Signer
	Ledger          *ledger.Ledger
	Monitor         *Monitor
	DirectTips      DirectTipPublisher
	StatusPublisher StatusPublisher
	Metrics         *metrics.Collector
	Tracer          trace.Tracer
}

// Service turns tip requests into tracked settlements
type Service struct {
	config          Config
	validator       *Validator
	quotes          *QuoteResolver
	executor        StepExecutor
	signer          signer.Signer
	ledger          *ledger.Ledger
	monitor         *Monitor
	directTips      DirectTipPublisher
	statusPublisher StatusPublisher
	metrics         *metrics.Collector
	tracer          trace.Tracer
	logger          *zap.Logger

	retryMu  sync.Mutex
	retrying map[uuid.UUID]struct{}

	// submitting holds ids between the ledger write and monitor hand-off
	submitMu   sync.Mutex
	submitting map[uuid.UUID]struct{}
}

// NewService creates the settlement orchestrator
func NewService(config Config, deps Dependencies, logger *zap.Logger) *Service {
	if config.LedgerRetries < 0 {
		config.LedgerRetries = 0
	}
	if config.LedgerRetryDelay <= 0 {
		config.LedgerRetryDelay = 200 * time.Millisecond
	}
	return &Service{
		config:          config,
		validator:       NewValidator(deps.Chains, config.CurrentChain),
		quotes:          deps.Quotes,
		executor:        deps.Executor,
		signer:          deps.Signer,
		ledger:          deps.Ledger,
		monitor:         deps.Monitor,
		directTips:      deps.DirectTips,
		statusPublisher: deps.StatusPublisher,
		metrics:         deps.Metrics,
		tracer:          deps.Tracer,
		logger:          logger,
		retrying:        make(map[uuid.UUID]struct{}),
		submitting:      make(map[uuid.UUID]struct{}),
	}
}

// SendCrossChainTip validates and submits a tip. It returns once the source
// transaction is submitted; completion is reported through observer.
func (s *Service) SendCrossChainTip(ctx context.Context, req *entities.TipRequest, observer entities.StatusObserver) (*entities.SendResult, error) {
	return s.send(ctx, req, nil, observer)
}

func (s *Service) send(ctx context.Context, req *entities.TipRequest, retryOf *uuid.UUID, observer entities.StatusObserver) (result *entities.SendResult, err error) {
	ctx, span := s.tracer.Start(ctx, "settlement.SendCrossChainTip")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	amount, err := s.validator.Validate(req)
	if err != nil {
		s.metrics.RecordSendFailure("validation")
		return nil, err
	}

	id := uuid.New()
	span.SetAttributes(
		attribute.String("transaction_id", id.String()),
		attribute.Int64("source_chain", int64(req.SourceChain)),
		attribute.Int64("destination_chain", int64(s.config.CurrentChain)),
		attribute.String("amount", amount.String()),
	)

	log := s.logger.With(
		zap.String("transaction_id", id.String()),
		zap.Int64("source_chain", int64(req.SourceChain)),
		zap.Int64("destination_chain", int64(s.config.CurrentChain)))

	n := newNotifier(id, s.fanOut(observer), s.logger)
	n.notify(entities.TipStatusUpdate{Status: entities.TipStatusPending, Progress: entities.TipProgressStart})

	if req.SourceChain == s.config.CurrentChain {
		return s.sendSameChain(ctx, id, req, amount, n, log)
	}

	fail := func(stage string, cause error) (*entities.SendResult, error) {
		s.metrics.RecordSendFailure(stage)
		n.notify(entities.TipStatusUpdate{
			Status: entities.TipStatusFailed,
			Error:  cause.Error(),
		})
		log.Warn("Tip send failed", zap.String("stage", stage), zap.Error(cause))
		return nil, errors.SendError(cause)
	}

	fromAddress, err := s.signer.Address(ctx, req.SourceChain)
	if err != nil {
		return fail("signer", errors.SigningError(err))
	}

	quote, err := s.quotes.GetQuote(ctx, &entities.QuoteRequest{
		SourceChain:      req.SourceChain,
		DestinationChain: s.config.CurrentChain,
		Amount:           amount,
		FromAddress:      fromAddress,
		ToAddress:        req.RecipientAddress,
	})
	if err != nil {
		return fail("quote", err)
	}
	if len(quote.Steps) == 0 {
		return fail("quote", errors.NoRouteFoundError(int64(req.SourceChain), int64(s.config.CurrentChain)))
	}

	n.notify(entities.TipStatusUpdate{
		Status:     entities.TipStatusBridging,
		Progress:   entities.TipProgressBridgingStart,
		BridgeUsed: quote.Tool,
	})

	txHash, err := s.executeFirstStep(ctx, quote)
	if err != nil {
		return fail("execution", errors.SigningError(err))
	}
	log = log.With(zap.String("tx_hash", txHash), zap.String("bridge", quote.Tool))

	record := &entities.TipTransaction{
		ID:               id,
		SourceChain:      req.SourceChain,
		DestinationChain: s.config.CurrentChain,
		Amount:           amount,
		RecipientAddress: req.RecipientAddress,
		Status:           entities.TipStatusBridging,
		TxHash:           txHash,
		BridgeUsed:       quote.Tool,
		RouteID:          quote.RouteID,
		StepCount:        len(quote.Steps),
		Message:          req.Message,
		EventID:          req.EventID,
		SpeakerID:        req.SpeakerID,
		Progress:         entities.TipProgressSubmitted,
		RetryOf:          retryOf,
	}

	s.beginSubmit(id)
	defer s.endSubmit(id)

	if err := s.addRecord(ctx, record); err != nil {
		// The source transaction is on chain but unrecorded; the hash is the only trace
		log.Error("Submitted tip could not be recorded", zap.Error(err))
		return fail("ledger", err)
	}

	n.notify(entities.TipStatusUpdate{
		Status:     entities.TipStatusBridging,
		Progress:   entities.TipProgressSubmitted,
		TxHash:     txHash,
		BridgeUsed: quote.Tool,
	})

	err = s.monitor.track(record, n)
	if errors.IsConflict(err) {
		// Another poll task owns the record; the transfer is still live
		log.Warn("Status monitor already attached", zap.Error(err))
		err = nil
	}
	if err != nil {
		log.Error("Failed to start status monitor", zap.Error(err))
		reason := fmt.Sprintf("status monitor unavailable: %v", err)
		failed := entities.TipStatusFailed
		if updated, uerr := s.ledger.Update(context.WithoutCancel(ctx), id, entities.TipTransactionUpdate{
			Status: &failed,
			Error:  &reason,
		}); uerr == nil {
			n.notify(statusUpdateOf(updated))
		} else {
			log.Error("Failed to mark untracked tip as failed", zap.Error(uerr))
		}
		s.metrics.RecordSendFailure("monitor")
		return nil, errors.SendError(err)
	}

	s.metrics.RecordTipSubmitted(metrics.PathCrossChain)
	log.Info("Cross-chain tip submitted", zap.String("route_id", quote.RouteID))

	return &entities.SendResult{
		TransactionID: id,
		TxHash:        txHash,
		RouteID:       quote.RouteID,
	}, nil
}

func (s *Service) sendSameChain(ctx context.Context, id uuid.UUID, req *entities.TipRequest, amount decimal.Decimal, n *notifier, log *zap.Logger) (*entities.SendResult, error) {
	direct := &entities.DirectTipRequest{
		TransactionID:    id,
		ChainID:          req.SourceChain,
		RecipientAddress: req.RecipientAddress,
		Amount:           amount,
		Message:          req.Message,
		EventID:          req.EventID,
		SpeakerID:        req.SpeakerID,
		RequestedAt:      time.Now().UTC(),
	}

	if err := s.directTips.PublishDirectTip(ctx, direct); err != nil {
		s.metrics.RecordSendFailure("direct")
		n.notify(entities.TipStatusUpdate{Status: entities.TipStatusFailed, Error: err.Error()})
		log.Warn("Direct tip signal failed", zap.Error(err))
		return nil, errors.SendError(err)
	}

	n.notify(entities.TipStatusUpdate{
		Status:   entities.TipStatusPending,
		Progress: entities.TipProgressSameChain,
		Message:  entities.TipSameChainStatusMessage,
	})
	s.metrics.RecordTipSubmitted(metrics.PathSameChain)
	log.Info("Same-chain tip handed to direct path")

	return &entities.SendResult{TransactionID: id, SameChain: true}, nil
}

func (s *Service) executeFirstStep(ctx context.Context, quote *entities.Quote) (txHash string, err error) {
	step := quote.Steps[0]
	ctx, span := s.tracer.Start(ctx, "settlement.ExecuteStep", trace.WithAttributes(
		attribute.String("route_id", quote.RouteID),
		attribute.String("step_id", step.ID),
		attribute.String("step_kind", string(step.Kind)),
		attribute.String("tool", step.Tool),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("tx_hash", txHash))
		}
		span.End()
	}()

	return s.executor.ExecuteStep(ctx, &step, s.signer, entities.ExecuteOptions{InfiniteApproval: false})
}

// addRecord persists a submitted tip, retrying store failures only
func (s *Service) addRecord(ctx context.Context, record *entities.TipTransaction) error {
	policy := retry.Policy{
		MaxRetries:   s.config.LedgerRetries,
		InitialDelay: s.config.LedgerRetryDelay,
		MaxDelay:     5 * s.config.LedgerRetryDelay,
		Multiplier:   2,
		Jitter:       0.1,
		RetryableFunc: func(err error) bool {
			return stderrors.Is(err, errors.ErrLedgerWrite)
		},
	}
	// The transfer is already on chain, so a cancelled request must not drop the record
	ctx = context.WithoutCancel(ctx)
	return retry.Do(ctx, policy, s.logger, func() error {
		return s.ledger.Add(ctx, record)
	})
}

// fanOut wraps observer so every update is also published to status subscribers
func (s *Service) fanOut(observer entities.StatusObserver) entities.StatusObserver {
	if s.statusPublisher == nil {
		return observer
	}
	return func(update entities.TipStatusUpdate) {
		if err := s.statusPublisher.PublishStatus(context.Background(), update); err != nil {
			s.logger.Warn("Failed to publish status update",
				zap.String("transaction_id", update.TransactionID.String()),
				zap.Error(err))
		}
		if observer != nil {
			observer(update)
		}
	}
}

func (s *Service) beginSubmit(id uuid.UUID) {
	s.submitMu.Lock()
	s.submitting[id] = struct{}{}
	s.submitMu.Unlock()
}

func (s *Service) endSubmit(id uuid.UUID) {
	s.submitMu.Lock()
	delete(s.submitting, id)
	s.submitMu.Unlock()
}

func (s *Service) isSubmitting(id uuid.UUID) bool {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	_, ok := s.submitting[id]
	return ok
}

// GetTransaction returns a ledger record
func (s *Service) GetTransaction(id uuid.UUID) (*entities.TipTransaction, error) {
	return s.ledger.Get(id)
}

// ListPending returns the records still being settled, newest first
func (s *Service) ListPending() []*entities.TipTransaction {
	return s.ledger.ListPending()
}

// ListTransactions returns the full history, newest first
func (s *Service) ListTransactions() []*entities.TipTransaction {
	return s.ledger.List()
}

// ClearLedger stops every monitor and deletes all records
func (s *Service) ClearLedger(ctx context.Context) error {
	for _, tx := range s.ledger.List() {
		s.monitor.Cancel(tx.ID)
	}
	return s.ledger.Clear(ctx)
}

// ResumePending re-attaches a monitor to every non-terminal record that lacks one.
// Records that never reached submission are failed. It returns how many were attached.
func (s *Service) ResumePending(ctx context.Context) (int, error) {
	attached := 0
	var errs []error
	for _, tx := range s.ledger.ListPending() {
		if s.monitor.IsTracking(tx.ID) || s.isSubmitting(tx.ID) {
			continue
		}

		if tx.TxHash == "" {
			reason := "interrupted before the source transaction was submitted"
			failed := entities.TipStatusFailed
			if _, err := s.ledger.Update(ctx, tx.ID, entities.TipTransactionUpdate{Status: &failed, Error: &reason}); err != nil {
				errs = append(errs, fmt.Errorf("fail %s: %w", tx.ID, err))
			}
			continue
		}

		if err := s.monitor.Track(tx, s.fanOut(nil)); err != nil {
			if errors.IsConflict(err) {
				continue
			}
			errs = append(errs, fmt.Errorf("track %s: %w", tx.ID, err))
			continue
		}
		attached++
	}

	if attached > 0 {
		s.logger.Info("Re-attached status monitors", zap.Int("count", attached))
	}
	return attached, stderrors.Join(errs...)
}

func statusUpdateOf(tx *entities.TipTransaction) entities.TipStatusUpdate {
	return entities.TipStatusUpdate{
		TransactionID: tx.ID,
		Status:        tx.Status,
		Progress:      tx.Progress,
		TxHash:        tx.TxHash,
		BridgeUsed:    tx.BridgeUsed,
		Error:         tx.Error,
		Timestamp:     tx.UpdatedAt,
	}
}
