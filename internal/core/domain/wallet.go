package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	// CollateralPercent of a bid is reserved while it stands, so a balance
	// supports bids up to ten times its size.
	CollateralPercent = 10

	// MinimumDeposit is the flat floor of the onboarding deposit.
	MinimumDeposit int64 = 100_000

	// MaxAmount bounds any single money amount accepted from a client.
	MaxAmount int64 = 1_000_000_000_000_000
)

// Wallet is a bidder's balance pair. Reserved is the sum of active
// reservations; Available never goes negative.
type Wallet struct {
	UserID    uuid.UUID `json:"user_id"`
	Available int64     `json:"available"` // smallest currency unit
	Reserved  int64     `json:"reserved"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BiddingPower is the maximum bid the wallet supports without more funding.
func (w *Wallet) BiddingPower() int64 {
	return MaxBidFor(w.Available)
}

// CanCover reports whether amount can be moved from available to reserved.
func (w *Wallet) CanCover(amount int64) bool {
	return amount >= 0 && w.Available >= amount
}

// CollateralFor returns the reservation required to hold a bid of amount,
// rounded up to the next whole unit.
func CollateralFor(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	return amount/100*CollateralPercent + (amount%100*CollateralPercent+99)/100
}

// MaxBidFor is the largest bid a given credit can collateralise. It
// saturates at math.MaxInt64.
func MaxBidFor(credit int64) int64 {
	if credit <= 0 {
		return 0
	}
	whole := credit / CollateralPercent
	if whole > (math.MaxInt64-100)/100 {
		return math.MaxInt64
	}
	return whole*100 + credit%CollateralPercent*100/CollateralPercent
}

// RequiredDeposit sizes the onboarding deposit for a target buying power:
// max(MinimumDeposit, 10% of target).
func RequiredDeposit(targetBuyingPower int64) int64 {
	d := CollateralFor(targetBuyingPower)
	if d < MinimumDeposit {
		return MinimumDeposit
	}
	return d
}

// TransactionType is the kind of ledger entry.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeBidReserve TransactionType = "bid_reserve"
	TransactionTypeBidRelease TransactionType = "bid_release"
	TransactionTypeFee        TransactionType = "fee"
	TransactionTypePayment    TransactionType = "payment"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

// WalletTransaction is an immutable ledger entry. Rows are only ever inserted.
type WalletTransaction struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Type          TransactionType `json:"type"`
	Amount        int64           `json:"amount"`
	Description   string          `json:"description"`
	Reference     string          `json:"reference,omitempty"` // bid, order or gateway reference
	ReservationID *uuid.UUID      `json:"reservation_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ReservationStatus tracks whether collateral is still held.
type ReservationStatus string

const (
	ReservationStatusActive   ReservationStatus = "active"
	ReservationStatusReleased ReservationStatus = "released"
	ReservationStatusCaptured ReservationStatus = "captured"
)

// Reservation is the mutable projection of a bid_reserve entry. It is closed
// exactly once, by a release or a capture.
type Reservation struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	Amount    int64             `json:"amount"`
	Status    ReservationStatus `json:"status"`
	Reference string            `json:"reference,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	ClosedAt  *time.Time        `json:"closed_at,omitempty"`
}

// IsActive reports whether the reservation still holds funds.
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationStatusActive
}
