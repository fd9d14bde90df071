package routing

import (
	"errors"
	"fmt"
)

// ErrorResponse represents a routing API error response
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("routing API error [%d]: %s (code: %d)", e.StatusCode, e.Message, e.Code)
}

func (e *ErrorResponse) IsNotFound() bool {
	return e.StatusCode == 404
}

func (e *ErrorResponse) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsServerError reports a failure worth trying again on a later poll
func (e *ErrorResponse) IsServerError() bool {
	return e.StatusCode >= 500
}

// ErrMalformedResponse indicates a response body that could not be normalized
var ErrMalformedResponse = errors.New("malformed routing response")

// ErrUnknownStepKind indicates a route step of a type the engine cannot execute
var ErrUnknownStepKind = errors.New("unknown route step kind")

// ErrInfiniteApproval indicates a caller asked for an unlimited approval
var ErrInfiniteApproval = errors.New("infinite approval is not allowed")

// ErrNoTransactionRequest indicates the routing service returned no calldata for a step
var ErrNoTransactionRequest = errors.New("no transaction request for step")
