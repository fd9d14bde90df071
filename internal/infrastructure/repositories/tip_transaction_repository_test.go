package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tipstream/tip_service/internal/domain/entities"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

var tipColumns = []string{
	"id", "source_chain", "destination_chain", "amount", "recipient_address", "status",
	"tx_hash", "bridge_used", "route_id", "step_count", "message", "event_id",
	"speaker_id", "progress", "error_message", "retry_of", "start_time", "end_time", "updated_at",
}

func TestTipTransactionRepository_SaveUpserts(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTipTransactionRepository(db)

	now := time.Now().UTC()
	tx := &entities.TipTransaction{
		ID:               uuid.New(),
		SourceChain:      1,
		DestinationChain: 5000,
		Amount:           decimal.RequireFromString("10"),
		RecipientAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		Status:           entities.TipStatusBridging,
		TxHash:           "0xabc",
		BridgeUsed:       "stargate",
		RouteID:          "route-1",
		StepCount:        2,
		Progress:         30,
		StartTime:        now,
		UpdatedAt:        now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tip_transactions")).
		WithArgs(tx.ID, int64(1), int64(5000), tx.Amount, tx.RecipientAddress, "BRIDGING",
			"0xabc", "stargate", "route-1", 2, "", "", "", 30, "", sqlmock.AnyArg(), now, sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Save(context.Background(), tx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTipTransactionRepository_SaveError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTipTransactionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tip_transactions")).WillReturnError(assert.AnError)

	err := repo.Save(context.Background(), &entities.TipTransaction{ID: uuid.New()})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestTipTransactionRepository_LoadAll(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTipTransactionRepository(db)

	id, parent := uuid.New(), uuid.New()
	start := time.Now().UTC().Add(-time.Minute)
	end := time.Now().UTC()
	rows := sqlmock.NewRows(tipColumns).
		AddRow(id.String(), int64(1), int64(5000), "10.5", "0xrecipient", "COMPLETED",
			"0xabc", "stargate", "route-1", int64(2), "", "evt", "spk", int64(100), "", parent.String(), start, end, end).
		AddRow(uuid.NewString(), int64(137), int64(5000), "1", "0xother", "BRIDGING",
			"0xdef", "across", "", int64(1), "", "", "", int64(30), "", nil, start, nil, start)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tip_transactions ORDER BY start_time ASC")).WillReturnRows(rows)

	records, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, id, records[0].ID)
	assert.Equal(t, entities.TipStatusCompleted, records[0].Status)
	assert.Equal(t, "10.5", records[0].Amount.String())
	require.NotNil(t, records[0].RetryOf)
	assert.Equal(t, parent, *records[0].RetryOf)
	require.NotNil(t, records[0].EndTime)

	assert.Equal(t, entities.ChainID(137), records[1].SourceChain)
	assert.Nil(t, records[1].RetryOf)
	assert.Nil(t, records[1].EndTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTipTransactionRepository_DeleteAndClear(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTipTransactionRepository(db)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tip_transactions WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tip_transactions")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.Delete(context.Background(), id))
	require.NoError(t, repo.DeleteAll(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
