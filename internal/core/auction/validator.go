// Package auction contains the pure bidding rules: request validation and
// analytic proxy resolution. Nothing here touches storage.
package auction

import (
	"time"

	"vehicle-auction-engine/internal/core/domain"
	"vehicle-auction-engine/pkg/apperror"
)

// ValidateLotOpen checks that the lot is live and its timer has not run out.
func ValidateLotOpen(lot *domain.Lot, now time.Time) error {
	if !lot.AcceptsBids() {
		return apperror.ErrLotNotOpen()
	}
	if lot.HasElapsed(now) {
		return apperror.ErrLotAlreadyClosed()
	}
	return nil
}

// ValidateBid checks a manual bid against the lot's quick-bid floor.
func ValidateBid(lot *domain.Lot, amount int64, now time.Time) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if err := ValidateLotOpen(lot, now); err != nil {
		return err
	}
	if amount < lot.QuickBid() {
		return apperror.ErrBidTooLow(lot.QuickBid())
	}
	return nil
}

// ValidateMaxBid applies the manual-bid floor to a proxy ceiling at the time
// it is set.
func ValidateMaxBid(lot *domain.Lot, maxAmount int64, now time.Time) error {
	return ValidateBid(lot, maxAmount, now)
}

// ValidateCollateral rejects a bid whose reservation would exceed credit,
// the funds the bidder can commit to this lot.
func ValidateCollateral(amount, credit int64) error {
	if domain.CollateralFor(amount) > credit {
		return apperror.ErrInsufficientFunds()
	}
	return nil
}

// ValidateBuyItNow checks that a fixed-price purchase is still possible:
// enabled, not yet contested, and before the end time. The full price must
// be covered by available funds.
func ValidateBuyItNow(lot *domain.Lot, available int64, now time.Time) error {
	if lot.IsTerminal() {
		return apperror.ErrLotAlreadyClosed()
	}
	if !lot.BuyItNowEnabled || lot.BuyItNowPrice <= 0 {
		return apperror.ErrBuyItNowUnavailable()
	}
	if lot.Status != domain.LotStatusScheduled && lot.Status != domain.LotStatusLive {
		return apperror.ErrLotNotOpen()
	}
	if lot.BidCount > 0 {
		return apperror.ErrBuyItNowUnavailable()
	}
	if lot.HasElapsed(now) {
		return apperror.ErrLotAlreadyClosed()
	}
	if available < lot.BuyItNowPrice {
		return apperror.ErrInsufficientFunds()
	}
	return nil
}
