package settlement

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/internal/domain/errors"
	"github.com/tipstream/tip_service/internal/domain/services/ledger"
	"github.com/tipstream/tip_service/internal/infrastructure/metrics"
)

// MonitorConfig tunes status polling
type MonitorConfig struct {
	Interval time.Duration
	// Jitter is the upper bound of a random delay added to every tick
	Jitter time.Duration
	// MaxInterval caps the backoff applied after BackoffThreshold polls without progress
	MaxInterval      time.Duration
	BackoffThreshold int
	PollTimeout      time.Duration
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.Interval <= 0 {
		c.Interval = 15 * time.Second
	}
	if c.MaxInterval < c.Interval {
		c.MaxInterval = c.Interval
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 10 * time.Second
	}
	return c
}

type pollTask struct {
	id       uuid.UUID
	cancel   context.CancelFunc
	once     sync.Once
	notifier *notifier
}

func (t *pollTask) stop() {
	t.once.Do(t.cancel)
}

// Monitor drives every submitted cross-chain transaction to a terminal status.
// Each transaction has exactly one poll task, indexed by id.
type Monitor struct {
	status  StatusSource
	ledger  *ledger.Ledger
	metrics *metrics.Collector
	logger  *zap.Logger
	config  MonitorConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	tasks  map[uuid.UUID]*pollTask
	closed bool
}

// NewMonitor creates a status monitor
func NewMonitor(status StatusSource, l *ledger.Ledger, collector *metrics.Collector, config MonitorConfig, logger *zap.Logger) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		status:  status,
		ledger:  l,
		metrics: collector,
		logger:  logger,
		config:  config.withDefaults(),
		ctx:     ctx,
		cancel:  cancel,
		tasks:   make(map[uuid.UUID]*pollTask),
	}
}

// Track starts polling tx, reporting progress to observer. It fails if tx is
// already tracked or the monitor is stopped.
func (m *Monitor) Track(tx *entities.TipTransaction, observer entities.StatusObserver) error {
	return m.track(tx, resumeNotifier(tx.ID, tx.Progress, observer, m.logger))
}

func (m *Monitor) track(tx *entities.TipTransaction, n *notifier) error {
	if tx.Status.IsTerminal() {
		return errors.ValidationError("status", fmt.Sprintf("transaction %s is already %s", tx.ID, tx.Status))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.ServiceUnavailableError("status monitor", nil)
	}
	if _, exists := m.tasks[tx.ID]; exists {
		return errors.ConflictError("status monitor", fmt.Sprintf("transaction %s is already tracked", tx.ID))
	}

	ctx, cancel := context.WithCancel(m.ctx)
	task := &pollTask{
		id:       tx.ID,
		cancel:   cancel,
		notifier: n,
	}
	m.tasks[tx.ID] = task
	m.wg.Add(1)
	m.metrics.MonitorStarted()

	go m.run(ctx, task)

	m.logger.Info("Tracking tip settlement",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("tx_hash", tx.TxHash),
		zap.String("bridge", tx.BridgeUsed))
	return nil
}

// Cancel stops polling id. Safe to call any number of times.
func (m *Monitor) Cancel(id uuid.UUID) bool {
	m.mu.Lock()
	task, ok := m.tasks[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	task.stop()
	return true
}

// IsTracking reports whether id has a live poll task
func (m *Monitor) IsTracking(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[id]
	return ok
}

// Active returns how many transactions are being polled
func (m *Monitor) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Shutdown stops every poll task and waits up to timeout for them to exit
func (m *Monitor) Shutdown(timeout time.Duration) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("status monitor: %d poll tasks still running after %s", m.Active(), timeout)
	}
}

func (m *Monitor) run(ctx context.Context, task *pollTask) {
	defer m.finish(task)

	idle := 0
	for {
		timer := time.NewTimer(m.nextDelay(idle))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		progressed, terminal := m.poll(ctx, task)
		if terminal {
			task.stop()
			return
		}
		if progressed {
			idle = 0
		} else {
			idle++
		}
	}
}

func (m *Monitor) finish(task *pollTask) {
	m.mu.Lock()
	if m.tasks[task.id] == task {
		delete(m.tasks, task.id)
	}
	m.mu.Unlock()

	task.stop()
	m.metrics.MonitorStopped()
	m.wg.Done()
}

// nextDelay grows the interval exponentially once idle polls pass the threshold
func (m *Monitor) nextDelay(idle int) time.Duration {
	delay := m.config.Interval
	if m.config.BackoffThreshold > 0 && idle > m.config.BackoffThreshold {
		for i := m.config.BackoffThreshold; i < idle && delay < m.config.MaxInterval; i++ {
			delay *= 2
		}
		if delay > m.config.MaxInterval {
			delay = m.config.MaxInterval
		}
	}
	if m.config.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(m.config.Jitter + 1)))
	}
	return delay
}

// poll runs one tick. It reports whether the record moved and whether it is terminal.
func (m *Monitor) poll(ctx context.Context, task *pollTask) (progressed, terminal bool) {
	record, err := m.ledger.Get(task.id)
	if err != nil {
		if errors.IsNotFound(err) {
			m.logger.Warn("Tracked transaction left the ledger, stopping",
				zap.String("transaction_id", task.id.String()))
			return false, true
		}
		m.logger.Error("Failed to read tracked transaction", zap.String("transaction_id", task.id.String()), zap.Error(err))
		return false, false
	}
	if record.Status.IsTerminal() {
		task.notifier.notify(statusUpdateOf(record))
		return false, true
	}

	pollCtx, cancel := context.WithTimeout(ctx, m.config.PollTimeout)
	defer cancel()

	status, err := m.status.GetStatus(pollCtx, &entities.StatusRequest{
		TxHash:    record.TxHash,
		Bridge:    record.BridgeUsed,
		FromChain: record.SourceChain,
		ToChain:   record.DestinationChain,
		StepCount: record.StepCount,
	})
	if err != nil {
		if ctx.Err() != nil {
			return false, false
		}
		m.metrics.RecordPollError()
		m.logger.Warn("Status poll failed, will retry next tick",
			zap.String("transaction_id", task.id.String()),
			zap.Error(errors.PollError(err)))
		return false, false
	}
	m.metrics.RecordPoll(string(status.Status))

	switch status.Status {
	case entities.BridgeStatusDone:
		return m.finalize(ctx, task, record, entities.TipStatusCompleted, "")

	case entities.BridgeStatusFailed:
		reason := status.Message
		if reason == "" {
			reason = status.Substatus
		}
		if reason == "" {
			reason = "bridge transfer failed"
		}
		return m.finalize(ctx, task, record, entities.TipStatusFailed, reason)

	case entities.BridgeStatusPending:
		if status.CompletedSteps < 1 {
			return false, false
		}
		progress := confirmingProgress(status.CompletedSteps, status.TotalSteps, record.StepCount)
		if record.Status == entities.TipStatusConfirming && progress <= record.Progress {
			return false, false
		}
		confirming := entities.TipStatusConfirming
		updated, err := m.ledger.Update(ctx, task.id, entities.TipTransactionUpdate{
			Status:   &confirming,
			Progress: &progress,
		})
		if err != nil {
			m.logger.Error("Failed to persist confirmation progress",
				zap.String("transaction_id", task.id.String()),
				zap.Error(err))
			return false, false
		}
		task.notifier.notify(statusUpdateOf(updated))
		return true, false

	default:
		// NOT_FOUND and INVALID mean the transfer is not indexed yet
		return false, false
	}
}

func (m *Monitor) finalize(ctx context.Context, task *pollTask, record *entities.TipTransaction, status entities.TipStatus, reason string) (bool, bool) {
	update := entities.TipTransactionUpdate{Status: &status}
	if status == entities.TipStatusCompleted {
		complete := entities.TipProgressComplete
		update.Progress = &complete
	} else {
		update.Error = &reason
	}

	updated, err := m.ledger.Update(ctx, task.id, update)
	if err != nil {
		// Keep polling so the next tick applies the terminal status again
		m.logger.Error("Failed to persist terminal status",
			zap.String("transaction_id", task.id.String()),
			zap.String("status", string(status)),
			zap.Error(err))
		return false, false
	}

	m.metrics.RecordTerminal(string(status), time.Since(record.StartTime))
	task.notifier.notify(statusUpdateOf(updated))

	m.logger.Info("Tip settlement finished",
		zap.String("transaction_id", task.id.String()),
		zap.String("status", string(status)),
		zap.String("error", updated.Error))
	return true, true
}

// confirmingProgress maps completed steps into the 30..99 band
func confirmingProgress(completed, total, stepCount int) int {
	if total <= 0 {
		total = stepCount
	}
	if total <= 0 {
		total = 1
	}
	if completed > total {
		completed = total
	}
	span := entities.TipProgressComplete - entities.TipProgressSubmitted
	progress := entities.TipProgressSubmitted + span*completed/total
	if progress > entities.TipProgressConfirmingCap {
		progress = entities.TipProgressConfirmingCap
	}
	return progress
}
