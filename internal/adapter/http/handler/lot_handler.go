package handler

import (
	"vehicle-auction-engine/internal/adapter/http/dto"
	"vehicle-auction-engine/internal/adapter/http/middleware"
	"vehicle-auction-engine/internal/core/domain"
	"vehicle-auction-engine/internal/core/ports"
	"vehicle-auction-engine/pkg/apperror"
	"vehicle-auction-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LotHandler serves lot reads and bidder actions.
type LotHandler struct {
	lots   ports.LotService
	engine ports.BiddingEngine
}

// NewLotHandler creates a new LotHandler.
func NewLotHandler(lots ports.LotService, engine ports.BiddingEngine) *LotHandler {
	return &LotHandler{lots: lots, engine: engine}
}

// GetLot handles GET /api/v1/lots/:id.
func (h *LotHandler) GetLot(c *gin.Context) {
	lotID, ok := lotIDParam(c)
	if !ok {
		return
	}

	lot, err := h.lots.GetLot(c.Request.Context(), lotID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toLotResponse(lot))
}

// ListBids handles GET /api/v1/lots/:id/bids.
func (h *LotHandler) ListBids(c *gin.Context) {
	lotID, ok := lotIDParam(c)
	if !ok {
		return
	}

	bids, err := h.lots.ListBids(c.Request.Context(), lotID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if bids == nil {
		bids = []domain.Bid{}
	}

	response.OK(c, bids)
}

// PlaceBid handles POST /api/v1/lots/:id/bids.
func (h *LotHandler) PlaceBid(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	lotID, ok := lotIDParam(c)
	if !ok {
		return
	}

	var req dto.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	out, err := h.engine.PlaceBid(c.Request.Context(), lotID, userID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toBidResponse(out))
}

// SetMaxBid handles PUT /api/v1/lots/:id/max-bid.
func (h *LotHandler) SetMaxBid(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	lotID, ok := lotIDParam(c)
	if !ok {
		return
	}

	var req dto.SetMaxBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	out, err := h.engine.SetMaxBid(c.Request.Context(), lotID, userID, req.MaxAmount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toBidResponse(out))
}

// BuyItNow handles POST /api/v1/lots/:id/buy-now.
func (h *LotHandler) BuyItNow(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	lotID, ok := lotIDParam(c)
	if !ok {
		return
	}

	order, err := h.engine.BuyItNow(c.Request.Context(), lotID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, order)
}

// lotIDParam parses the :id path segment, writing a 400 when it is malformed.
func lotIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid lot id"))
		return uuid.Nil, false
	}
	return id, true
}

func toLotResponse(lot *domain.Lot) dto.LotResponse {
	return dto.LotResponse{Lot: lot, QuickBid: lot.QuickBid()}
}

func toBidResponse(out *ports.BidOutcome) dto.BidResponse {
	return dto.BidResponse{
		Lot:     toLotResponse(out.Lot),
		Bid:     out.Bid,
		AutoBid: out.AutoBid,
		MaxBid:  out.MaxBid,
		Winning: out.Winning,
	}
}
