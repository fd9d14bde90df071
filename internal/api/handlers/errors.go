package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/internal/domain/errors"
)

// Error codes used by handlers that do not come from a domain error
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidID          = "INVALID_ID"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

const (
	MsgInvalidRequest = "Invalid request payload"
	MsgInternalError  = "Internal server error"
)

// respondError sends a standardized error response
func respondError(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.JSON(status, entities.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// respondDomainError maps err onto an HTTP status using the domain error taxonomy
func respondDomainError(c *gin.Context, err error) {
	status := statusFor(err)

	var domainErr *errors.DomainError
	if !stderrors.As(err, &domainErr) {
		respondError(c, status, ErrCodeInternalError, MsgInternalError, nil)
		return
	}

	details := domainErr.Details
	if requestID := c.GetString("request_id"); requestID != "" {
		merged := make(map[string]interface{}, len(details)+1)
		for k, v := range details {
			merged[k] = v
		}
		merged["request_id"] = requestID
		details = merged
	}
	respondError(c, status, domainErr.Code, domainErr.Message, details)
}

func statusFor(err error) int {
	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsInvalidInput(err):
		return http.StatusBadRequest
	case errors.IsNotRetryable(err), errors.IsConflict(err):
		return http.StatusConflict
	case errors.IsQuoteError(err):
		return http.StatusUnprocessableEntity
	case stderrors.Is(err, errors.ErrSendFailed):
		return http.StatusBadGateway
	case stderrors.Is(err, errors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
