package handler

import (
	"context"

	"vehicle-auction-engine/internal/adapter/http/dto"
	"vehicle-auction-engine/internal/core/domain"
	"vehicle-auction-engine/internal/core/ports"
	"vehicle-auction-engine/pkg/apperror"
	"vehicle-auction-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FundingHandler receives money movements confirmed by the payment gateway.
type FundingHandler struct {
	ledger ports.WalletLedger
}

// NewFundingHandler creates a new FundingHandler.
func NewFundingHandler(ledger ports.WalletLedger) *FundingHandler {
	return &FundingHandler{ledger: ledger}
}

// Deposit handles POST /api/v1/funding/deposits.
func (h *FundingHandler) Deposit(c *gin.Context) {
	h.credit(c, h.ledger.Deposit)
}

// Refund handles POST /api/v1/funding/refunds.
func (h *FundingHandler) Refund(c *gin.Context) {
	h.credit(c, h.ledger.Refund)
}

type creditFunc func(ctx context.Context, userID uuid.UUID, amount int64, reference string) (*domain.WalletTransaction, error)

func (h *FundingHandler) credit(c *gin.Context, fn creditFunc) {
	var req dto.FundingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid user_id"))
		return
	}

	entry, err := fn(c.Request.Context(), userID, req.Amount, req.Reference)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, entry)
}
