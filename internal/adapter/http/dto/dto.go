package dto

import (
	"time"

	"vehicle-auction-engine/internal/core/domain"
)

// PlaceBidRequest is the request body for a manual bid.
type PlaceBidRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0,lte=1000000000000000"`
}

// SetMaxBidRequest is the request body for registering a proxy ceiling.
type SetMaxBidRequest struct {
	MaxAmount int64 `json:"max_amount" binding:"required,gt=0,lte=1000000000000000"`
}

// WithdrawRequest is the request body for a bidder withdrawal.
type WithdrawRequest struct {
	Amount    int64  `json:"amount" binding:"required,gt=0,lte=1000000000000000"`
	Reference string `json:"reference" binding:"required,max=100,safe_id"`
}

// FundingRequest is sent by the payment gateway for deposits and refunds.
type FundingRequest struct {
	UserID    string `json:"user_id" binding:"required,uuid"`
	Amount    int64  `json:"amount" binding:"required,gt=0,lte=1000000000000000"`
	Reference string `json:"reference" binding:"required,max=100,safe_id"`
}

// CreateLotRequest is the operator request body for a new lot.
type CreateLotRequest struct {
	Title           string    `json:"title" binding:"required,min=1,max=200"`
	StartingBid     int64     `json:"starting_bid" binding:"gte=0,lte=1000000000000000"`
	BidIncrement    int64     `json:"bid_increment" binding:"gte=0,lte=1000000000000000"`
	BuyItNowPrice   int64     `json:"buy_it_now_price" binding:"gte=0,lte=1000000000000000"`
	BuyItNowEnabled bool      `json:"buy_it_now_enabled"`
	EndsAt          time.Time `json:"ends_at" binding:"required"`
}

// StorageFeeRequest is the operator request body for a storage charge.
type StorageFeeRequest struct {
	DaysOverdue int `json:"days_overdue" binding:"required,gt=0,lte=365"`
}

// WalletResponse is the bidder's balance view.
type WalletResponse struct {
	UserID       string `json:"user_id"`
	Available    int64  `json:"available"`
	Reserved     int64  `json:"reserved"`
	BiddingPower int64  `json:"bidding_power"`
}

// RequiredDepositResponse sizes the deposit for a target buying power.
type RequiredDepositResponse struct {
	TargetBuyingPower int64 `json:"target_buying_power"`
	RequiredDeposit   int64 `json:"required_deposit"`
}

// TransactionListResponse wraps a paginated ledger listing.
type TransactionListResponse struct {
	Items      []domain.WalletTransaction `json:"items"`
	Total      int64                      `json:"total"`
	Page       int                        `json:"page"`
	PageSize   int                        `json:"page_size"`
	TotalPages int                        `json:"total_pages"`
}

// LotResponse is a lot snapshot plus the amount a quick bid would place.
type LotResponse struct {
	*domain.Lot
	QuickBid int64 `json:"quick_bid"`
}

// BidResponse reports the result of a bid or max-bid request.
type BidResponse struct {
	Lot     LotResponse    `json:"lot"`
	Bid     *domain.Bid    `json:"bid,omitempty"`
	AutoBid *domain.Bid    `json:"auto_bid,omitempty"`
	MaxBid  *domain.MaxBid `json:"max_bid,omitempty"`
	Winning bool           `json:"winning"`
}

// CloseLotResponse reports the result of closing a lot.
type CloseLotResponse struct {
	Lot           LotResponse   `json:"lot"`
	Order         *domain.Order `json:"order,omitempty"`
	AlreadyClosed bool          `json:"already_closed"`
}
