package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChainID is a numeric chain identifier as used by the routing service
type ChainID int64

// TipTransaction is the ledger record of a tip that needed cross-chain settlement
type TipTransaction struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	SourceChain      ChainID         `json:"sourceChain" db:"source_chain"`
	DestinationChain ChainID         `json:"destinationChain" db:"destination_chain"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	RecipientAddress string          `json:"recipientAddress" db:"recipient_address"`
	Status           TipStatus       `json:"status" db:"status"`
	TxHash           string          `json:"txHash,omitempty" db:"tx_hash"`
	BridgeUsed       string          `json:"bridgeUsed,omitempty" db:"bridge_used"`
	RouteID          string          `json:"routeId,omitempty" db:"route_id"`
	StepCount        int             `json:"stepCount" db:"step_count"`
	Message          string          `json:"message,omitempty" db:"message"`
	EventID          string          `json:"eventId,omitempty" db:"event_id"`
	SpeakerID        string          `json:"speakerId,omitempty" db:"speaker_id"`
	Progress         int             `json:"progress" db:"progress"`
	Error            string          `json:"error,omitempty" db:"error_message"`
	RetryOf          *uuid.UUID      `json:"retryOf,omitempty" db:"retry_of"`
	StartTime        time.Time       `json:"startTime" db:"start_time"`
	EndTime          *time.Time      `json:"endTime,omitempty" db:"end_time"`
	UpdatedAt        time.Time       `json:"updatedAt" db:"updated_at"`
}

// Clone returns a deep copy safe to hand out of the ledger
func (t *TipTransaction) Clone() *TipTransaction {
	if t == nil {
		return nil
	}
	c := *t
	if t.EndTime != nil {
		end := *t.EndTime
		c.EndTime = &end
	}
	if t.RetryOf != nil {
		id := *t.RetryOf
		c.RetryOf = &id
	}
	return &c
}

// Request rebuilds the caller request that produced this transaction
func (t *TipTransaction) Request() *TipRequest {
	return &TipRequest{
		SourceChain:      t.SourceChain,
		RecipientAddress: t.RecipientAddress,
		Amount:           t.Amount.String(),
		Message:          t.Message,
		EventID:          t.EventID,
		SpeakerID:        t.SpeakerID,
	}
}

// TipTransactionUpdate is a partial update applied atomically to one ledger record.
// Nil fields are left untouched.
type TipTransactionUpdate struct {
	Status     *TipStatus
	TxHash     *string
	BridgeUsed *string
	Progress   *int
	Error      *string
}

// TipRequest is what a caller submits to send a tip
type TipRequest struct {
	SourceChain      ChainID `json:"sourceChain"`
	RecipientAddress string  `json:"recipientAddress"`
	Amount           string  `json:"amount"`
	Message          string  `json:"message,omitempty"`
	EventID          string  `json:"eventId,omitempty"`
	SpeakerID        string  `json:"speakerId,omitempty"`
}

// SendResult acknowledges an accepted tip. Completion is observed separately.
type SendResult struct {
	TransactionID uuid.UUID `json:"transactionId"`
	TxHash        string    `json:"txHash,omitempty"`
	RouteID       string    `json:"routeId,omitempty"`
	SameChain     bool      `json:"sameChain"`
}

// TipStatusUpdate is delivered to status observers
type TipStatusUpdate struct {
	TransactionID uuid.UUID `json:"transactionId"`
	Status        TipStatus `json:"status"`
	Progress      int       `json:"progress"`
	TxHash        string    `json:"txHash,omitempty"`
	BridgeUsed    string    `json:"bridgeUsed,omitempty"`
	Message       string    `json:"message,omitempty"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// IsTerminal reports whether this is the final update for the transaction
func (u TipStatusUpdate) IsTerminal() bool {
	return u.Status.IsTerminal()
}

// StatusObserver receives incremental and final status of a tip
type StatusObserver func(update TipStatusUpdate)

// DirectTipRequest is the signal handed to the same-chain tipping collaborator
type DirectTipRequest struct {
	TransactionID    uuid.UUID       `json:"transactionId"`
	ChainID          ChainID         `json:"chainId"`
	RecipientAddress string          `json:"recipientAddress"`
	Amount           decimal.Decimal `json:"amount"`
	Message          string          `json:"message,omitempty"`
	EventID          string          `json:"eventId,omitempty"`
	SpeakerID        string          `json:"speakerId,omitempty"`
	RequestedAt      time.Time       `json:"requestedAt"`
}

// Tip progress checkpoints
const (
	TipProgressStart          = 0
	TipProgressBridgingStart  = 15
	TipProgressSubmitted      = 30
	TipProgressSameChain      = 50
	TipProgressConfirmingCap  = 99
	TipProgressComplete       = 100
	TipSameChainStatusMessage = "processing same-chain"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
