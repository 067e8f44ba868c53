package domain

import (
	"time"

	"github.com/google/uuid"
)

// BidType is how a bid entered the lot.
type BidType string

const (
	BidTypeManual   BidType = "manual"
	BidTypeProxy    BidType = "proxy"
	BidTypeBuyItNow BidType = "buy_it_now"
)

// BidStatus is a bid's standing within its lot.
type BidStatus string

const (
	BidStatusActive    BidStatus = "active"
	BidStatusWinning   BidStatus = "winning"
	BidStatusOutbid    BidStatus = "outbid"
	BidStatusWon       BidStatus = "won"
	BidStatusCancelled BidStatus = "cancelled"
)

// Bid is one recorded bid. At most one bid per lot is winning.
type Bid struct {
	ID            uuid.UUID  `json:"id"`
	LotID         uuid.UUID  `json:"lot_id"`
	BidderID      uuid.UUID  `json:"bidder_id"`
	Amount        int64      `json:"amount"`
	Type          BidType    `json:"type"`
	Status        BidStatus  `json:"status"`
	ReservationID *uuid.UUID `json:"reservation_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// MaxBid is a bidder's standing proxy ceiling on a lot. Only one is active
// per (lot, bidder); setting a new ceiling deactivates the previous one.
type MaxBid struct {
	ID        uuid.UUID `json:"id"`
	LotID     uuid.UUID `json:"lot_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	MaxAmount int64     `json:"max_amount"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
