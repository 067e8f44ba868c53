// Package fees holds the pure fee schedule applied to winning amounts.
package fees

import (
	"github.com/shopspring/decimal"
)

const (
	// StorageFeePerDay is charged for each day an order stays unpaid past its deadline.
	StorageFeePerDay int64 = 10_000

	flatServiceFee int64 = 75_000
)

type serviceTier struct {
	upTo int64 // inclusive upper bound; 0 means unbounded
	rate decimal.Decimal
}

var (
	buyerPremiumRate = decimal.RequireFromString("0.05")

	serviceTiers = []serviceTier{
		{upTo: 5_000_000, rate: decimal.RequireFromString("0.07")},
		{upTo: 15_000_000, rate: decimal.RequireFromString("0.06")},
		{upTo: 0, rate: decimal.RequireFromString("0.05")},
	}
)

// ServiceFee returns the platform fee for a winning amount. Amounts up to
// 1,000,000 pay a flat fee; above that the tier containing the amount sets
// a percentage of the whole amount. Each tier's upper bound is inclusive.
func ServiceFee(amount int64) decimal.Decimal {
	if amount <= 1_000_000 {
		return decimal.NewFromInt(flatServiceFee)
	}
	a := decimal.NewFromInt(amount)
	for _, tier := range serviceTiers {
		if tier.upTo == 0 || amount <= tier.upTo {
			return a.Mul(tier.rate)
		}
	}
	return a.Mul(serviceTiers[len(serviceTiers)-1].rate)
}

// BuyerPremium is a flat 5% of the winning amount.
func BuyerPremium(amount int64) decimal.Decimal {
	if amount <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(amount).Mul(buyerPremiumRate)
}

// StorageFee accrues per whole day overdue; non-positive input is free.
func StorageFee(daysOverdue int) int64 {
	if daysOverdue <= 0 {
		return 0
	}
	return int64(daysOverdue) * StorageFeePerDay
}

// Breakdown is the fee summary attached to an order.
type Breakdown struct {
	WinningAmount int64           `json:"winning_amount"`
	ServiceFee    decimal.Decimal `json:"service_fee"`
	BuyerPremium  decimal.Decimal `json:"buyer_premium"`
	Total         decimal.Decimal `json:"total"` // amount + service fee + buyer premium
}

// Compute returns the full fee breakdown for a winning amount.
func Compute(amount int64) Breakdown {
	sf := ServiceFee(amount)
	bp := BuyerPremium(amount)
	return Breakdown{
		WinningAmount: amount,
		ServiceFee:    sf,
		BuyerPremium:  bp,
		Total:         decimal.NewFromInt(amount).Add(sf).Add(bp),
	}
}

// AmountDue subtracts an already-captured deposit from the breakdown total.
func (b Breakdown) AmountDue(depositCaptured int64) decimal.Decimal {
	due := b.Total.Sub(decimal.NewFromInt(depositCaptured))
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}
