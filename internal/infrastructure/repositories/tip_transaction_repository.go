package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/internal/domain/services/ledger"
)

const tipTransactionColumns = `
	id, source_chain, destination_chain, amount, recipient_address, status,
	COALESCE(tx_hash, '') AS tx_hash, COALESCE(bridge_used, '') AS bridge_used,
	COALESCE(route_id, '') AS route_id, step_count,
	COALESCE(message, '') AS message, COALESCE(event_id, '') AS event_id,
	COALESCE(speaker_id, '') AS speaker_id, progress,
	COALESCE(error_message, '') AS error_message, retry_of,
	start_time, end_time, updated_at`

// TipTransactionRepository is the Postgres ledger store
type TipTransactionRepository struct {
	db *sqlx.DB
}

var _ ledger.Store = (*TipTransactionRepository)(nil)

// NewTipTransactionRepository creates a new tip transaction repository
func NewTipTransactionRepository(db *sqlx.DB) *TipTransactionRepository {
	return &TipTransactionRepository{db: db}
}

// Save inserts the record or overwrites the stored copy
func (r *TipTransactionRepository) Save(ctx context.Context, tx *entities.TipTransaction) error {
	query := `
		INSERT INTO tip_transactions (
			id, source_chain, destination_chain, amount, recipient_address, status,
			tx_hash, bridge_used, route_id, step_count, message, event_id, speaker_id,
			progress, error_message, retry_of, start_time, end_time, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			tx_hash = EXCLUDED.tx_hash,
			bridge_used = EXCLUDED.bridge_used,
			route_id = EXCLUDED.route_id,
			step_count = EXCLUDED.step_count,
			progress = EXCLUDED.progress,
			error_message = EXCLUDED.error_message,
			end_time = EXCLUDED.end_time,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		tx.ID,
		int64(tx.SourceChain),
		int64(tx.DestinationChain),
		tx.Amount,
		tx.RecipientAddress,
		string(tx.Status),
		tx.TxHash,
		tx.BridgeUsed,
		tx.RouteID,
		tx.StepCount,
		tx.Message,
		tx.EventID,
		tx.SpeakerID,
		tx.Progress,
		tx.Error,
		tx.RetryOf,
		tx.StartTime,
		tx.EndTime,
		tx.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save tip transaction: %w", err)
	}
	return nil
}

// Delete removes one record
func (r *TipTransactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tip_transactions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete tip transaction: %w", err)
	}
	return nil
}

// LoadAll returns every stored record, oldest first
func (r *TipTransactionRepository) LoadAll(ctx context.Context) ([]*entities.TipTransaction, error) {
	query := `SELECT ` + tipTransactionColumns + ` FROM tip_transactions ORDER BY start_time ASC`

	var records []*entities.TipTransaction
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("failed to load tip transactions: %w", err)
	}
	return records, nil
}

// DeleteAll removes every record
func (r *TipTransactionRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tip_transactions`); err != nil {
		return fmt.Errorf("failed to clear tip transactions: %w", err)
	}
	return nil
}
