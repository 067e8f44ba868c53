package fees

import (
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestServiceFee_Boundaries(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		expected string
	}{
		{"small amount pays flat fee", 10_000, "75000"},
		{"flat tier upper bound", 1_000_000, "75000"},
		{"first percentage tier", 1_000_001, "70000.07"},
		{"7% tier upper bound", 5_000_000, "350000"},
		{"6% tier lower bound", 5_000_001, "300000.06"},
		{"6% tier upper bound", 15_000_000, "900000"},
		{"5% tier", 15_000_001, "750000.05"},
		{"large amount", 40_000_000, "2000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ServiceFee(tt.amount)
			check.True(t, got.Equal(decimal.RequireFromString(tt.expected)))
		})
	}
}

func TestServiceFee_MatchesPercentTiers(t *testing.T) {
	check.Equal(t, "70000.07", ServiceFee(1_000_001).StringFixed(2))
	check.Equal(t, "750000.05", ServiceFee(15_000_001).StringFixed(2))
}

func TestBuyerPremium(t *testing.T) {
	check.True(t, BuyerPremium(1_000_000).Equal(decimal.NewFromInt(50_000)))
	check.True(t, BuyerPremium(333).Equal(decimal.RequireFromString("16.65")))
	check.True(t, BuyerPremium(0).IsZero())
	check.True(t, BuyerPremium(-10).IsZero())
}

func TestStorageFee(t *testing.T) {
	check.Equal(t, int64(0), StorageFee(0))
	check.Equal(t, int64(0), StorageFee(-3))
	check.Equal(t, int64(40_000), StorageFee(4))
	check.Equal(t, int64(10_000), StorageFee(1))
}

func TestCompute(t *testing.T) {
	b := Compute(2_000_000)

	check.Equal(t, int64(2_000_000), b.WinningAmount)
	check.True(t, b.ServiceFee.Equal(decimal.NewFromInt(140_000)))
	check.True(t, b.BuyerPremium.Equal(decimal.NewFromInt(100_000)))
	check.True(t, b.Total.Equal(decimal.NewFromInt(2_240_000)))
	check.True(t, b.AmountDue(200_000).Equal(decimal.NewFromInt(2_040_000)))
	check.True(t, b.AmountDue(5_000_000).IsZero())
}
