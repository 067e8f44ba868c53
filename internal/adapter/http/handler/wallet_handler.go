package handler

import (
	"strconv"

	"vehicle-auction-engine/internal/adapter/http/dto"
	"vehicle-auction-engine/internal/adapter/http/middleware"
	"vehicle-auction-engine/internal/core/domain"
	"vehicle-auction-engine/internal/core/ports"
	"vehicle-auction-engine/pkg/apperror"
	"vehicle-auction-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler serves the bidder's own wallet.
type WalletHandler struct {
	ledger ports.WalletLedger
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledger ports.WalletLedger) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// GetWallet handles GET /api/v1/wallet.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	w, err := h.ledger.GetWallet(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWalletResponse(w))
}

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	entries, total, err := h.ledger.ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	if entries == nil {
		entries = []domain.WalletTransaction{}
	}

	meta := response.NewPageMeta(total, page, pageSize)
	response.OK(c, dto.TransactionListResponse{
		Items:      entries,
		Total:      meta.Total,
		Page:       meta.Page,
		PageSize:   meta.PageSize,
		TotalPages: meta.TotalPages,
	})
}

// RequiredDeposit handles GET /api/v1/wallet/required-deposit?target=.
func (h *WalletHandler) RequiredDeposit(c *gin.Context) {
	target, err := strconv.ParseInt(c.Query("target"), 10, 64)
	if err != nil || target <= 0 {
		response.Error(c, apperror.Validation("target must be a positive integer"))
		return
	}

	response.OK(c, dto.RequiredDepositResponse{
		TargetBuyingPower: target,
		RequiredDeposit:   domain.RequiredDeposit(target),
	})
}

// Withdraw handles POST /api/v1/wallet/withdraw.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	entry, err := h.ledger.Withdraw(c.Request.Context(), userID, req.Amount, req.Reference)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, entry)
}

func toWalletResponse(w *domain.Wallet) dto.WalletResponse {
	return dto.WalletResponse{
		UserID:       w.UserID.String(),
		Available:    w.Available,
		Reserved:     w.Reserved,
		BiddingPower: w.BiddingPower(),
	}
}
