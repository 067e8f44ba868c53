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

// OperatorHandler serves lot management for auction staff.
type OperatorHandler struct {
	lots   ports.LotService
	engine ports.BiddingEngine
}

// NewOperatorHandler creates a new OperatorHandler.
func NewOperatorHandler(lots ports.LotService, engine ports.BiddingEngine) *OperatorHandler {
	return &OperatorHandler{lots: lots, engine: engine}
}

// CreateLot handles POST /api/v1/lots.
func (h *OperatorHandler) CreateLot(c *gin.Context) {
	var req dto.CreateLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	lot, err := h.lots.CreateLot(c.Request.Context(), ports.CreateLotRequest{
		Title:           req.Title,
		StartingBid:     req.StartingBid,
		BidIncrement:    req.BidIncrement,
		BuyItNowPrice:   req.BuyItNowPrice,
		BuyItNowEnabled: req.BuyItNowEnabled,
		EndsAt:          req.EndsAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toLotResponse(lot))
}

// StartLot handles POST /api/v1/lots/:id/start.
func (h *OperatorHandler) StartLot(c *gin.Context) {
	h.lifecycle(c, h.lots.StartLot)
}

// PauseLot handles POST /api/v1/lots/:id/pause.
func (h *OperatorHandler) PauseLot(c *gin.Context) {
	h.lifecycle(c, h.lots.PauseLot)
}

// ResumeLot handles POST /api/v1/lots/:id/resume.
func (h *OperatorHandler) ResumeLot(c *gin.Context) {
	h.lifecycle(c, h.lots.ResumeLot)
}

// CancelLot handles POST /api/v1/lots/:id/cancel.
func (h *OperatorHandler) CancelLot(c *gin.Context) {
	h.lifecycle(c, h.engine.CancelLot)
}

// CloseLot handles POST /api/v1/lots/:id/close. Closing an already closed
// lot returns the existing result.
func (h *OperatorHandler) CloseLot(c *gin.Context) {
	lotID, ok := lotIDParam(c)
	if !ok {
		return
	}

	out, err := h.engine.CloseLot(c.Request.Context(), lotID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.CloseLotResponse{
		Lot:           toLotResponse(out.Lot),
		Order:         out.Order,
		AlreadyClosed: out.AlreadyClosed,
	})
}

// ChargeStorageFee handles POST /api/v1/lots/:id/storage-fee.
func (h *OperatorHandler) ChargeStorageFee(c *gin.Context) {
	lotID, ok := lotIDParam(c)
	if !ok {
		return
	}

	var req dto.StorageFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	order, err := h.engine.ChargeStorageFee(c.Request.Context(), lotID, req.DaysOverdue)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, order)
}

func (h *OperatorHandler) lifecycle(c *gin.Context, fn func(context.Context, uuid.UUID) (*domain.Lot, error)) {
	lotID, ok := lotIDParam(c)
	if !ok {
		return
	}

	lot, err := fn(c.Request.Context(), lotID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toLotResponse(lot))
}
