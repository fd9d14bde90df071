package errors

import (
	"errors"
	"fmt"
)

// Settlement-specific errors
var (
	// Quote errors
	ErrConfigMissing = errors.New("chain configuration missing")
	ErrNoRouteFound  = errors.New("no route found")

	// Send errors
	ErrSendFailed    = errors.New("tip send failed")
	ErrSigningFailed = errors.New("step execution failed")
	ErrLedgerWrite   = errors.New("ledger write failed")

	// Polling errors are transient and never authoritative
	ErrPollFailed = errors.New("status poll failed")

	// Retry errors
	ErrNotRetryable     = errors.New("transaction is not retryable")
	ErrRetryInProgress  = errors.New("retry already in progress")
	ErrTransactionFinal = errors.New("transaction is in a terminal state")
)

// ConfigMissingError is returned when a chain lacks the settlement token mapping
func ConfigMissingError(chainID int64) *DomainError {
	return &DomainError{
		Err:     ErrConfigMissing,
		Code:    "CONFIG_MISSING",
		Message: fmt.Sprintf("no settlement token configured for chain %d", chainID),
		Details: map[string]interface{}{
			"chain_id": chainID,
		},
	}
}

// NoRouteFoundError is returned when the routing service has no route
func NoRouteFoundError(sourceChain, destinationChain int64) *DomainError {
	return &DomainError{
		Err:     ErrNoRouteFound,
		Code:    "NO_ROUTE_FOUND",
		Message: fmt.Sprintf("no route found from chain %d to chain %d", sourceChain, destinationChain),
		Details: map[string]interface{}{
			"source_chain":      sourceChain,
			"destination_chain": destinationChain,
		},
	}
}

// SendError wraps the reason a tip could not be sent
func SendError(cause error) *DomainError {
	msg := "tip send failed"
	if cause != nil {
		msg = fmt.Sprintf("tip send failed: %v", cause)
	}
	return &DomainError{
		Err:     fmt.Errorf("%w: %w", ErrSendFailed, cause),
		Code:    "SEND_FAILED",
		Message: msg,
	}
}

// SigningError wraps a failure of the signing capability or step execution
func SigningError(err error) *DomainError {
	return &DomainError{
		Err:     fmt.Errorf("%w: %w", ErrSigningFailed, err),
		Code:    "SIGNING_FAILED",
		Message: fmt.Sprintf("route step execution failed: %v", err),
	}
}

// PollError wraps a transient failure talking to the routing service
func PollError(err error) *DomainError {
	return &DomainError{
		Err:       fmt.Errorf("%w: %w", ErrPollFailed, err),
		Code:      "POLL_FAILED",
		Message:   fmt.Sprintf("status poll failed: %v", err),
		Retryable: true,
	}
}

// NotRetryableError is returned by retry on a transaction that has not failed
func NotRetryableError(id, status string) *DomainError {
	return &DomainError{
		Err:     ErrNotRetryable,
		Code:    "NOT_RETRYABLE",
		Message: fmt.Sprintf("transaction %s is %s, only FAILED transactions can be retried", id, status),
		Details: map[string]interface{}{
			"transaction_id": id,
			"status":         status,
		},
	}
}

// RetryInProgressError is returned when an earlier retry of the same transaction is still live
func RetryInProgressError(id string) *DomainError {
	return &DomainError{
		Err:     fmt.Errorf("%w: %w", ErrConflict, ErrRetryInProgress),
		Code:    "RETRY_IN_PROGRESS",
		Message: fmt.Sprintf("transaction %s already has a retry in progress", id),
	}
}

// IsQuoteError reports whether err came from quote resolution
func IsQuoteError(err error) bool {
	return errors.Is(err, ErrConfigMissing) || errors.Is(err, ErrNoRouteFound)
}

// IsNotRetryable reports whether err is a retry precondition failure
func IsNotRetryable(err error) bool {
	return errors.Is(err, ErrNotRetryable)
}

// AlreadySettledError is returned when a later attempt of a failed tip already completed
func AlreadySettledError(id, settledBy string) *DomainError {
	return &DomainError{
		Err:     ErrNotRetryable,
		Code:    "ALREADY_SETTLED",
		Message: fmt.Sprintf("transaction %s was already settled by retry %s", id, settledBy),
		Details: map[string]interface{}{
			"transaction_id": id,
			"settled_by":     settledBy,
		},
	}
}
