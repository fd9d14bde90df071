package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/pkg/security"
)

// TipService is the settlement surface the HTTP layer drives
type TipService interface {
	SendCrossChainTip(ctx context.Context, req *entities.TipRequest, observer entities.StatusObserver) (*entities.SendResult, error)
	Retry(ctx context.Context, id uuid.UUID, observer entities.StatusObserver) (*entities.SendResult, error)
	GetTransaction(id uuid.UUID) (*entities.TipTransaction, error)
	ListPending() []*entities.TipTransaction
	ListTransactions() []*entities.TipTransaction
	ClearLedger(ctx context.Context) error
}

// TipHandlers serves the tip endpoints
type TipHandlers struct {
	service TipService
	logger  *zap.Logger
}

// NewTipHandlers creates tip handlers
func NewTipHandlers(service TipService, logger *zap.Logger) *TipHandlers {
	return &TipHandlers{service: service, logger: logger}
}

// SendTipRequest is the body of POST /tips
type SendTipRequest struct {
	SourceChain      int64  `json:"sourceChain" binding:"required"`
	RecipientAddress string `json:"recipientAddress" binding:"required"`
	Amount           string `json:"amount" binding:"required"`
	Message          string `json:"message" binding:"max=280"`
	EventID          string `json:"eventId"`
	SpeakerID        string `json:"speakerId"`
}

// TipListResponse wraps a list of ledger records
type TipListResponse struct {
	Transactions []*entities.TipTransaction `json:"transactions"`
	Count        int                        `json:"count"`
}

// SendTip handles POST /api/v1/tips
// @Summary Send a tip
// @Description Validates and submits a tip. Cross-chain tips return once the source transaction is submitted.
// @Tags tips
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replays the stored response for a repeated request"
// @Param request body SendTipRequest true "Tip request"
// @Success 202 {object} entities.SendResult
// @Failure 400 {object} entities.ErrorResponse
// @Failure 422 {object} entities.ErrorResponse
// @Failure 502 {object} entities.ErrorResponse
// @Failure 503 {object} entities.ErrorResponse
// @Router /api/v1/tips [post]
func (h *TipHandlers) SendTip(c *gin.Context) {
	var req SendTipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, MsgInvalidRequest, map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	result, err := h.service.SendCrossChainTip(c.Request.Context(), &entities.TipRequest{
		SourceChain:      entities.ChainID(req.SourceChain),
		RecipientAddress: req.RecipientAddress,
		Amount:           req.Amount,
		Message:          req.Message,
		EventID:          req.EventID,
		SpeakerID:        req.SpeakerID,
	}, nil)
	if err != nil {
		h.logger.Warn("Tip rejected",
			zap.String("request_id", c.GetString("request_id")),
			zap.Int64("source_chain", req.SourceChain),
			zap.String("recipient", security.MaskWalletAddress(req.RecipientAddress)),
			zap.Error(err))
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, result)
}

// RetryTip handles POST /api/v1/tips/:id/retry
// @Summary Retry a failed tip
// @Description Re-runs a FAILED tip under a new transaction id linked through retryOf
// @Tags tips
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 202 {object} entities.SendResult
// @Failure 400 {object} entities.ErrorResponse
// @Failure 404 {object} entities.ErrorResponse
// @Failure 409 {object} entities.ErrorResponse
// @Router /api/v1/tips/{id}/retry [post]
func (h *TipHandlers) RetryTip(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	result, err := h.service.Retry(c.Request.Context(), id, nil)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, result)
}

// GetTip handles GET /api/v1/tips/:id
// @Summary Get a tip
// @Tags tips
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} entities.TipTransaction
// @Failure 400 {object} entities.ErrorResponse
// @Failure 404 {object} entities.ErrorResponse
// @Router /api/v1/tips/{id} [get]
func (h *TipHandlers) GetTip(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	tx, err := h.service.GetTransaction(id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, tx)
}

// ListTips handles GET /api/v1/tips
// @Summary List tip history
// @Tags tips
// @Produce json
// @Success 200 {object} TipListResponse
// @Router /api/v1/tips [get]
func (h *TipHandlers) ListTips(c *gin.Context) {
	c.JSON(http.StatusOK, listResponse(h.service.ListTransactions()))
}

// ListPendingTips handles GET /api/v1/tips/pending
// @Summary List tips still settling
// @Tags tips
// @Produce json
// @Success 200 {object} TipListResponse
// @Router /api/v1/tips/pending [get]
func (h *TipHandlers) ListPendingTips(c *gin.Context) {
	c.JSON(http.StatusOK, listResponse(h.service.ListPending()))
}

// ClearTips handles DELETE /api/v1/tips
// @Summary Clear the ledger
// @Description Stops every status monitor and deletes all records
// @Tags tips
// @Success 204
// @Failure 500 {object} entities.ErrorResponse
// @Router /api/v1/tips [delete]
func (h *TipHandlers) ClearTips(c *gin.Context) {
	if err := h.service.ClearLedger(c.Request.Context()); err != nil {
		h.logger.Error("Failed to clear ledger", zap.Error(err))
		respondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TipHandlers) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidID, "Invalid transaction ID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func listResponse(txs []*entities.TipTransaction) TipListResponse {
	if txs == nil {
		txs = []*entities.TipTransaction{}
	}
	return TipListResponse{Transactions: txs, Count: len(txs)}
}
