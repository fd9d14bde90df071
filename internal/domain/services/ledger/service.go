package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/internal/domain/errors"
	"github.com/tipstream/tip_service/pkg/logger"
)

// Store persists ledger records. Save is an upsert keyed by ID.
type Store interface {
	Save(ctx context.Context, tx *entities.TipTransaction) error
	Delete(ctx context.Context, id uuid.UUID) error
	LoadAll(ctx context.Context) ([]*entities.TipTransaction, error)
	DeleteAll(ctx context.Context) error
}

type entry struct {
	mu      sync.Mutex
	tx      *entities.TipTransaction
	removed bool
}

// Ledger is the single shared record of cross-chain tips. The index lock is
// only held for lookups; writes to one record serialize on that record's lock.
// Lock order is entry before index.
type Ledger struct {
	store  Store
	logger *logger.Logger
	now    func() time.Time

	// clearMu excludes record writers while Clear runs
	clearMu sync.RWMutex
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
}

// NewLedger creates a ledger backed by store
func NewLedger(store Store, logger *logger.Logger) *Ledger {
	return &Ledger{
		store:   store,
		logger:  logger,
		now:     time.Now,
		entries: make(map[uuid.UUID]*entry),
	}
}

// Load hydrates the index from the store, replacing anything held in memory
func (l *Ledger) Load(ctx context.Context) error {
	records, err := l.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	entries := make(map[uuid.UUID]*entry, len(records))
	for _, record := range records {
		entries[record.ID] = &entry{tx: record.Clone()}
	}

	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()

	l.logger.Info("Ledger loaded", "records", len(records))
	return nil
}

// Add records a new transaction. The record is persisted before it becomes visible.
func (l *Ledger) Add(ctx context.Context, tx *entities.TipTransaction) error {
	if tx == nil || tx.ID == uuid.Nil {
		return errors.ValidationError("id", "transaction id is required")
	}
	if !tx.Status.IsValid() {
		return errors.ValidationError("status", fmt.Sprintf("invalid tip status: %s", tx.Status))
	}
	if tx.Status.RequiresTxHash() && tx.TxHash == "" {
		return errors.ValidationError("txHash", fmt.Sprintf("tx hash is required at status %s", tx.Status))
	}
	if tx.Progress < entities.TipProgressStart || tx.Progress > entities.TipProgressComplete {
		return errors.ValidationError("progress", "progress must be between 0 and 100")
	}

	record := tx.Clone()
	now := l.now()
	if record.StartTime.IsZero() {
		record.StartTime = now
	}
	record.UpdatedAt = now
	if record.Status.IsTerminal() {
		if record.EndTime == nil {
			record.EndTime = &now
		}
		if record.Status == entities.TipStatusCompleted {
			record.Progress = entities.TipProgressComplete
		}
	} else {
		record.EndTime = nil
	}

	l.clearMu.RLock()
	defer l.clearMu.RUnlock()

	e := &entry{tx: record}
	// Hold the entry lock while persisting so an Update racing with Add waits
	e.mu.Lock()
	defer e.mu.Unlock()

	l.mu.Lock()
	if _, exists := l.entries[record.ID]; exists {
		l.mu.Unlock()
		return errors.AlreadyExistsError("TIP_TRANSACTION").WithDetails(map[string]interface{}{
			"transaction_id": record.ID.String(),
		})
	}
	l.entries[record.ID] = e
	l.mu.Unlock()

	if err := l.store.Save(ctx, record); err != nil {
		e.removed = true
		l.mu.Lock()
		delete(l.entries, record.ID)
		l.mu.Unlock()
		return fmt.Errorf("%w: %w", errors.ErrLedgerWrite, err)
	}

	l.logger.Debug("Ledger record added",
		"transaction_id", record.ID,
		"status", record.Status,
		"tx_hash", record.TxHash)
	return nil
}

// Update applies a partial update atomically and returns the new record.
// Terminal records are immutable and progress never moves backwards.
func (l *Ledger) Update(ctx context.Context, id uuid.UUID, update entities.TipTransactionUpdate) (*entities.TipTransaction, error) {
	l.clearMu.RLock()
	defer l.clearMu.RUnlock()

	e, err := l.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, errors.NotFoundError("TIP_TRANSACTION")
	}

	current := e.tx
	if current.Status.IsTerminal() {
		return nil, &errors.DomainError{
			Err:     errors.ErrTransactionFinal,
			Code:    "TRANSACTION_FINAL",
			Message: fmt.Sprintf("transaction %s is %s and can no longer change", id, current.Status),
		}
	}

	next := current.Clone()
	if update.Status != nil {
		if err := current.Status.ValidateTransition(*update.Status); err != nil {
			return nil, errors.ValidationError("status", err.Error())
		}
		next.Status = *update.Status
	}
	if update.TxHash != nil {
		next.TxHash = *update.TxHash
	}
	if update.BridgeUsed != nil {
		next.BridgeUsed = *update.BridgeUsed
	}
	if update.Error != nil {
		next.Error = *update.Error
	}
	if update.Progress != nil {
		p := *update.Progress
		if p > entities.TipProgressComplete {
			p = entities.TipProgressComplete
		}
		if p > next.Progress {
			next.Progress = p
		}
	}

	if next.Status.RequiresTxHash() && next.TxHash == "" {
		return nil, errors.ValidationError("txHash", fmt.Sprintf("tx hash is required at status %s", next.Status))
	}

	now := l.now()
	next.UpdatedAt = now
	if next.Status.IsTerminal() {
		next.EndTime = &now
		if next.Status == entities.TipStatusCompleted {
			next.Progress = entities.TipProgressComplete
		}
	} else if next.Progress >= entities.TipProgressComplete {
		next.Progress = entities.TipProgressConfirmingCap
	}

	if err := l.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrLedgerWrite, err)
	}
	e.tx = next

	return next.Clone(), nil
}

// Remove deletes a record from the store and the index
func (l *Ledger) Remove(ctx context.Context, id uuid.UUID) error {
	l.clearMu.RLock()
	defer l.clearMu.RUnlock()

	e, err := l.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return errors.NotFoundError("TIP_TRANSACTION")
	}

	if err := l.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrLedgerWrite, err)
	}
	e.removed = true

	l.mu.Lock()
	delete(l.entries, id)
	l.mu.Unlock()
	return nil
}

// Get returns a copy of the record
func (l *Ledger) Get(id uuid.UUID) (*entities.TipTransaction, error) {
	e, err := l.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, errors.NotFoundError("TIP_TRANSACTION")
	}
	return e.tx.Clone(), nil
}

// List returns every record, newest first
func (l *Ledger) List() []*entities.TipTransaction {
	return l.collect(func(*entities.TipTransaction) bool { return true })
}

// ListPending returns the records still in PENDING, BRIDGING or CONFIRMING
func (l *Ledger) ListPending() []*entities.TipTransaction {
	return l.collect(func(tx *entities.TipTransaction) bool { return tx.Status.IsPending() })
}

// Clear deletes every record
func (l *Ledger) Clear(ctx context.Context) error {
	l.clearMu.Lock()
	defer l.clearMu.Unlock()

	if err := l.store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrLedgerWrite, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		e.mu.Lock()
		e.removed = true
		e.mu.Unlock()
	}
	l.entries = make(map[uuid.UUID]*entry)

	l.logger.Info("Ledger cleared")
	return nil
}

func (l *Ledger) lookup(id uuid.UUID) (*entry, error) {
	l.mu.RLock()
	e, ok := l.entries[id]
	l.mu.RUnlock()
	if !ok {
		return nil, errors.NotFoundError("TIP_TRANSACTION").WithDetails(map[string]interface{}{
			"transaction_id": id.String(),
		})
	}
	return e, nil
}

func (l *Ledger) collect(keep func(*entities.TipTransaction) bool) []*entities.TipTransaction {
	l.mu.RLock()
	entries := make([]*entry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	result := make([]*entities.TipTransaction, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed && keep(e.tx) {
			result = append(result, e.tx.Clone())
		}
		e.mu.Unlock()
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].StartTime.After(result[j].StartTime)
	})
	return result
}
