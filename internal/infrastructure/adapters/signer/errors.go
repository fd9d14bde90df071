package signer

import (
	"errors"
	"fmt"
)

// ErrorResponse represents a signing service error response
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("signer API error [%d]: %s (code: %s)", e.StatusCode, e.Message, e.Code)
}

func (e *ErrorResponse) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// ErrUnlimitedApproval is returned for approvals of the maximum uint256 amount
var ErrUnlimitedApproval = errors.New("unlimited token approvals are not allowed")

// ErrInvalidAmount is returned for zero or negative approval amounts
var ErrInvalidAmount = errors.New("approval amount must be positive")
