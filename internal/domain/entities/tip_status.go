package entities

import "fmt"

// TipStatus represents the lifecycle state of a tip transaction
type TipStatus string

const (
	TipStatusPending    TipStatus = "PENDING"
	TipStatusBridging   TipStatus = "BRIDGING"
	TipStatusConfirming TipStatus = "CONFIRMING"
	TipStatusCompleted  TipStatus = "COMPLETED"
	TipStatusFailed     TipStatus = "FAILED"
)

// ValidTipStatuses contains all valid tip statuses
var ValidTipStatuses = map[TipStatus]bool{
	TipStatusPending:    true,
	TipStatusBridging:   true,
	TipStatusConfirming: true,
	TipStatusCompleted:  true,
	TipStatusFailed:     true,
}

// ValidTipTransitions defines allowed forward status transitions
var ValidTipTransitions = map[TipStatus][]TipStatus{
	TipStatusPending:    {TipStatusBridging, TipStatusCompleted, TipStatusFailed},
	TipStatusBridging:   {TipStatusConfirming, TipStatusCompleted, TipStatusFailed},
	TipStatusConfirming: {TipStatusCompleted, TipStatusFailed},
	TipStatusCompleted:  {}, // Terminal state
	TipStatusFailed:     {}, // Terminal state
}

// tipStatusRank orders statuses along the happy path
var tipStatusRank = map[TipStatus]int{
	TipStatusPending:    0,
	TipStatusBridging:   1,
	TipStatusConfirming: 2,
	TipStatusCompleted:  3,
	TipStatusFailed:     3,
}

// IsValid checks if the status is a valid tip status
func (s TipStatus) IsValid() bool {
	return ValidTipStatuses[s]
}

// CanTransitionTo checks if transition to new status is allowed
func (s TipStatus) CanTransitionTo(newStatus TipStatus) bool {
	allowed, exists := ValidTipTransitions[s]
	if !exists {
		return false
	}
	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s TipStatus) IsTerminal() bool {
	return s == TipStatusCompleted || s == TipStatusFailed
}

// IsPending returns true while the tip still needs tracking
func (s TipStatus) IsPending() bool {
	return s == TipStatusPending || s == TipStatusBridging || s == TipStatusConfirming
}

// RequiresTxHash reports whether a record in this status must carry a source tx hash
func (s TipStatus) RequiresTxHash() bool {
	return tipStatusRank[s] >= tipStatusRank[TipStatusBridging] && s != TipStatusFailed
}

// ValidateTransition validates and returns error if transition is invalid.
// Staying in the same non-terminal status is allowed so progress can advance.
func (s TipStatus) ValidateTransition(newStatus TipStatus) error {
	if !newStatus.IsValid() {
		return fmt.Errorf("invalid tip status: %s", newStatus)
	}
	if s == newStatus && !s.IsTerminal() {
		return nil
	}
	if !s.CanTransitionTo(newStatus) {
		return fmt.Errorf("invalid status transition from %s to %s", s, newStatus)
	}
	return nil
}

// PendingTipStatuses lists the statuses returned by pending queries
func PendingTipStatuses() []TipStatus {
	return []TipStatus{TipStatusPending, TipStatusBridging, TipStatusConfirming}
}
