package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tipstream/tip_service/internal/domain/entities"
	apperrors "github.com/tipstream/tip_service/internal/domain/errors"
	"github.com/tipstream/tip_service/pkg/logger"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Save(ctx context.Context, tx *entities.TipTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) LoadAll(ctx context.Context) ([]*entities.TipTransaction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.TipTransaction), args.Error(1)
}

func (m *MockStore) DeleteAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func bridgingTx() *entities.TipTransaction {
	return &entities.TipTransaction{
		ID:               uuid.New(),
		SourceChain:      1,
		DestinationChain: 5000,
		Amount:           decimal.RequireFromString("10.00"),
		RecipientAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		Status:           entities.TipStatusBridging,
		TxHash:           "0xabc",
		BridgeUsed:       "stargate",
		Progress:         entities.TipProgressSubmitted,
	}
}

func statusPtr(s entities.TipStatus) *entities.TipStatus { return &s }
func intPtr(i int) *int                                  { return &i }
func strPtr(s string) *string                            { return &s }

func newTestLedger() (*Ledger, *MemoryStore) {
	store := NewMemoryStore()
	return NewLedger(store, logger.NewNop()), store
}

func TestLedger_AddAndGet(t *testing.T) {
	l, store := newTestLedger()
	tx := bridgingTx()

	require.NoError(t, l.Add(context.Background(), tx))

	got, err := l.Get(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TipStatusBridging, got.Status)
	assert.Equal(t, "0xabc", got.TxHash)
	assert.False(t, got.StartTime.IsZero())
	assert.Nil(t, got.EndTime)
	assert.Equal(t, 1, store.Len())

	// returned records are copies
	got.Status = entities.TipStatusFailed
	again, _ := l.Get(tx.ID)
	assert.Equal(t, entities.TipStatusBridging, again.Status)
}

func TestLedger_AddRejectsDuplicateAndMissingHash(t *testing.T) {
	l, _ := newTestLedger()
	tx := bridgingTx()
	require.NoError(t, l.Add(context.Background(), tx))

	err := l.Add(context.Background(), tx)
	assert.True(t, apperrors.IsAlreadyExists(err))

	noHash := bridgingTx()
	noHash.TxHash = ""
	err = l.Add(context.Background(), noHash)
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestLedger_AddStoreFailureLeavesNoRecord(t *testing.T) {
	store := new(MockStore)
	store.On("Save", mock.Anything, mock.Anything).Return(errors.New("db down"))
	l := NewLedger(store, logger.NewNop())
	tx := bridgingTx()

	err := l.Add(context.Background(), tx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrLedgerWrite)

	_, err = l.Get(tx.ID)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, l.ListPending())
	store.AssertExpectations(t)
}

func TestLedger_UpdateProgressIsMonotone(t *testing.T) {
	l, _ := newTestLedger()
	tx := bridgingTx()
	require.NoError(t, l.Add(context.Background(), tx))

	updated, err := l.Update(context.Background(), tx.ID, entities.TipTransactionUpdate{
		Status:   statusPtr(entities.TipStatusConfirming),
		Progress: intPtr(65),
	})
	require.NoError(t, err)
	assert.Equal(t, 65, updated.Progress)

	updated, err = l.Update(context.Background(), tx.ID, entities.TipTransactionUpdate{Progress: intPtr(40)})
	require.NoError(t, err)
	assert.Equal(t, 65, updated.Progress)

	updated, err = l.Update(context.Background(), tx.ID, entities.TipTransactionUpdate{Progress: intPtr(100)})
	require.NoError(t, err)
	assert.Equal(t, entities.TipProgressConfirmingCap, updated.Progress)
	assert.Nil(t, updated.EndTime)
}

func TestLedger_TerminalRecordsAreImmutable(t *testing.T) {
	l, _ := newTestLedger()
	tx := bridgingTx()
	require.NoError(t, l.Add(context.Background(), tx))

	completed, err := l.Update(context.Background(), tx.ID, entities.TipTransactionUpdate{
		Status: statusPtr(entities.TipStatusCompleted),
	})
	require.NoError(t, err)
	assert.Equal(t, entities.TipProgressComplete, completed.Progress)
	require.NotNil(t, completed.EndTime)

	for _, status := range []entities.TipStatus{
		entities.TipStatusFailed,
		entities.TipStatusConfirming,
		entities.TipStatusCompleted,
	} {
		_, err := l.Update(context.Background(), tx.ID, entities.TipTransactionUpdate{Status: statusPtr(status)})
		assert.ErrorIs(t, err, apperrors.ErrTransactionFinal)
	}

	got, _ := l.Get(tx.ID)
	assert.Equal(t, entities.TipStatusCompleted, got.Status)
}

func TestLedger_UpdateRejectsBackwardTransition(t *testing.T) {
	l, _ := newTestLedger()
	tx := bridgingTx()
	require.NoError(t, l.Add(context.Background(), tx))

	_, err := l.Update(context.Background(), tx.ID, entities.TipTransactionUpdate{
		Status: statusPtr(entities.TipStatusPending),
	})
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestLedger_UpdateFailedKeepsError(t *testing.T) {
	l, _ := newTestLedger()
	tx := bridgingTx()
	require.NoError(t, l.Add(context.Background(), tx))

	failed, err := l.Update(context.Background(), tx.ID, entities.TipTransactionUpdate{
		Status: statusPtr(entities.TipStatusFailed),
		Error:  strPtr("bridge refunded"),
	})
	require.NoError(t, err)
	assert.Equal(t, "bridge refunded", failed.Error)
	assert.NotNil(t, failed.EndTime)
	assert.Equal(t, entities.TipProgressSubmitted, failed.Progress)
}

func TestLedger_UpdateStoreFailureKeepsPreviousState(t *testing.T) {
	store := new(MockStore)
	l := NewLedger(store, logger.NewNop())
	tx := bridgingTx()

	store.On("Save", mock.Anything, mock.Anything).Return(nil).Once()
	require.NoError(t, l.Add(context.Background(), tx))

	store.On("Save", mock.Anything, mock.Anything).Return(errors.New("timeout")).Once()
	_, err := l.Update(context.Background(), tx.ID, entities.TipTransactionUpdate{
		Status: statusPtr(entities.TipStatusCompleted),
	})
	assert.ErrorIs(t, err, apperrors.ErrLedgerWrite)

	got, _ := l.Get(tx.ID)
	assert.Equal(t, entities.TipStatusBridging, got.Status)
	store.AssertExpectations(t)
}

func TestLedger_ListPendingAndRemove(t *testing.T) {
	l, _ := newTestLedger()
	a, b := bridgingTx(), bridgingTx()
	require.NoError(t, l.Add(context.Background(), a))
	require.NoError(t, l.Add(context.Background(), b))

	assert.Len(t, l.ListPending(), 2)

	_, err := l.Update(context.Background(), a.ID, entities.TipTransactionUpdate{Status: statusPtr(entities.TipStatusCompleted)})
	require.NoError(t, err)
	assert.Len(t, l.ListPending(), 1)
	assert.Len(t, l.List(), 2)

	require.NoError(t, l.Remove(context.Background(), b.ID))
	assert.Empty(t, l.ListPending())
	assert.True(t, apperrors.IsNotFound(l.Remove(context.Background(), b.ID)))
}

func TestLedger_ClearAndLoad(t *testing.T) {
	l, store := newTestLedger()
	require.NoError(t, l.Add(context.Background(), bridgingTx()))
	require.NoError(t, l.Add(context.Background(), bridgingTx()))

	reloaded := NewLedger(store, logger.NewNop())
	require.NoError(t, reloaded.Load(context.Background()))
	assert.Len(t, reloaded.ListPending(), 2)

	require.NoError(t, l.Clear(context.Background()))
	assert.Empty(t, l.List())
	assert.Equal(t, 0, store.Len())
}

func TestLedger_ConcurrentUpdatesSerializePerRecord(t *testing.T) {
	l, _ := newTestLedger()
	txs := []*entities.TipTransaction{bridgingTx(), bridgingTx(), bridgingTx()}
	for _, tx := range txs {
		require.NoError(t, l.Add(context.Background(), tx))
	}

	var wg sync.WaitGroup
	for _, tx := range txs {
		for p := 31; p <= 99; p++ {
			wg.Add(1)
			go func(id uuid.UUID, progress int) {
				defer wg.Done()
				_, err := l.Update(context.Background(), id, entities.TipTransactionUpdate{
					Status:   statusPtr(entities.TipStatusConfirming),
					Progress: intPtr(progress),
				})
				assert.NoError(t, err)
			}(tx.ID, p)
		}
	}
	wg.Wait()

	for _, tx := range txs {
		got, err := l.Get(tx.ID)
		require.NoError(t, err)
		assert.Equal(t, 99, got.Progress)
		assert.Equal(t, entities.TipStatusConfirming, got.Status)
	}
}
