package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderSource records how the lot was won.
type OrderSource string

const (
	OrderSourceAuction  OrderSource = "auction"
	OrderSourceBuyItNow OrderSource = "buy_it_now"
)

// OrderStatus is the settlement state owned by the order subsystem.
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
)

// HandoffStatus tracks delivery of the order to the settlement subsystem.
type HandoffStatus string

const (
	HandoffStatusPending   HandoffStatus = "pending"
	HandoffStatusDelivered HandoffStatus = "delivered"
	HandoffStatusFailed    HandoffStatus = "failed"
)

// Order is the settlement target created when a lot is won.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	LotID           uuid.UUID       `json:"lot_id"`
	BuyerID         uuid.UUID       `json:"buyer_id"`
	WinningBidID    uuid.UUID       `json:"winning_bid_id"`
	WinningAmount   int64           `json:"winning_amount"`
	ServiceFee      decimal.Decimal `json:"service_fee"`
	BuyerPremium    decimal.Decimal `json:"buyer_premium"`
	TotalDue        decimal.Decimal `json:"total_due"` // amount + fees - deposit captured
	DepositCaptured int64           `json:"deposit_captured"`
	StorageFees     int64           `json:"storage_fees"`
	Source          OrderSource     `json:"source"`
	Status          OrderStatus     `json:"status"`
	HandoffStatus   HandoffStatus   `json:"handoff_status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
