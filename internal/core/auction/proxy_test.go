package auction

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/check"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func TestResolve_ManualBeatenByStrongestProxy(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	proxies := []Proxy{
		{BidderID: a, Ceiling: 1_000_000, RegisteredAt: t0},
		{BidderID: b, Ceiling: 900_000, RegisteredAt: t0.Add(time.Minute)},
	}

	res := Resolve(
		Standing{CurrentBid: 0, Increment: 50_000},
		proxies,
		Incoming{Kind: IncomingManual, BidderID: c, Amount: 100_000, At: t0.Add(2 * time.Minute)},
	)

	check.True(t, res.Changed)
	check.Equal(t, int64(950_000), res.Price)
	check.Equal(t, a, res.WinnerID)
	check.False(t, res.IncomingWins)
	check.Equal(t, int64(100_000), res.IncomingCeiling)
}

func TestResolve_TieGoesToEarliestProxy(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	// A registers first and takes the lot at the opening quick bid.
	first := Resolve(
		Standing{CurrentBid: 0, Increment: 50_000},
		nil,
		Incoming{Kind: IncomingProxy, BidderID: a, Amount: 1_000_000, At: t0},
	)
	check.Equal(t, a, first.WinnerID)
	check.Equal(t, int64(50_000), first.Price)

	// B matches A's ceiling later; A keeps the lot at the full ceiling.
	second := Resolve(
		Standing{CurrentBid: first.Price, Increment: 50_000, HighBidderID: &a},
		[]Proxy{{BidderID: a, Ceiling: 1_000_000, RegisteredAt: t0}},
		Incoming{Kind: IncomingProxy, BidderID: b, Amount: 1_000_000, At: t0.Add(time.Minute)},
	)
	check.Equal(t, a, second.WinnerID)
	check.Equal(t, int64(1_000_000), second.Price)
	check.False(t, second.IncomingWins)
	check.False(t, second.HighBidderChange)
}

func TestResolve_TieBetweenProxiesWithoutHighBidder(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	proxies := []Proxy{
		{BidderID: b, Ceiling: 1_000_000, RegisteredAt: t0.Add(time.Second)},
		{BidderID: a, Ceiling: 1_000_000, RegisteredAt: t0},
	}

	res := Resolve(
		Standing{CurrentBid: 0, Increment: 50_000},
		proxies,
		Incoming{Kind: IncomingManual, BidderID: c, Amount: 200_000, At: t0.Add(time.Hour)},
	)

	check.Equal(t, a, res.WinnerID)
	check.Equal(t, int64(1_000_000), res.Price)
}

func TestResolve_ManualAboveAllProxies(t *testing.T) {
	v, u := uuid.New(), uuid.New()

	res := Resolve(
		Standing{CurrentBid: 400_000, Increment: 50_000, HighBidderID: &v},
		[]Proxy{{BidderID: v, Ceiling: 500_000, RegisteredAt: t0}},
		Incoming{Kind: IncomingManual, BidderID: u, Amount: 700_000, At: t0.Add(time.Minute)},
	)

	check.Equal(t, u, res.WinnerID)
	check.Equal(t, int64(700_000), res.Price)
	check.True(t, res.IncomingWins)
	check.True(t, res.HighBidderChange)
	check.Equal(t, v, *res.PreviousHighID)
}

func TestResolve_ManualEqualToProxyCeiling(t *testing.T) {
	v, u := uuid.New(), uuid.New()

	res := Resolve(
		Standing{CurrentBid: 100_000, Increment: 50_000, HighBidderID: &v},
		[]Proxy{{BidderID: v, Ceiling: 500_000, RegisteredAt: t0}},
		Incoming{Kind: IncomingManual, BidderID: u, Amount: 500_000, At: t0.Add(time.Minute)},
	)

	check.Equal(t, v, res.WinnerID)
	check.Equal(t, int64(500_000), res.Price)
}

func TestResolve_ProxyCounterBidsOneIncrement(t *testing.T) {
	v, u := uuid.New(), uuid.New()

	res := Resolve(
		Standing{CurrentBid: 100_000, Increment: 50_000, HighBidderID: &v},
		[]Proxy{{BidderID: v, Ceiling: 1_000_000, RegisteredAt: t0}},
		Incoming{Kind: IncomingManual, BidderID: u, Amount: 300_000, At: t0.Add(time.Minute)},
	)

	check.Equal(t, v, res.WinnerID)
	check.Equal(t, int64(350_000), res.Price)
	check.True(t, res.Changed)
	check.False(t, res.HighBidderChange)
}

func TestResolve_FirstManualBid(t *testing.T) {
	u := uuid.New()

	res := Resolve(
		Standing{CurrentBid: 200_000, Increment: 50_000},
		nil,
		Incoming{Kind: IncomingManual, BidderID: u, Amount: 250_000, At: t0},
	)

	check.Equal(t, u, res.WinnerID)
	check.Equal(t, int64(250_000), res.Price)
	check.True(t, res.IncomingWins)
	check.True(t, res.HighBidderChange)
	check.Nil(t, res.PreviousHighID)
}

func TestResolve_NewProxyStartsBiddingWar(t *testing.T) {
	h, u := uuid.New(), uuid.New()

	// h holds the lot manually at 300k; u registers 800k and wins one step above.
	res := Resolve(
		Standing{CurrentBid: 300_000, Increment: 50_000, HighBidderID: &h},
		nil,
		Incoming{Kind: IncomingProxy, BidderID: u, Amount: 800_000, At: t0},
	)

	check.Equal(t, u, res.WinnerID)
	check.Equal(t, int64(350_000), res.Price)
	check.True(t, res.IncomingWins)
	check.Equal(t, int64(800_000), res.IncomingCeiling)
}

func TestResolve_NewProxyAgainstStrongerProxy(t *testing.T) {
	h, u := uuid.New(), uuid.New()

	res := Resolve(
		Standing{CurrentBid: 300_000, Increment: 50_000, HighBidderID: &h},
		[]Proxy{{BidderID: h, Ceiling: 2_000_000, RegisteredAt: t0}},
		Incoming{Kind: IncomingProxy, BidderID: u, Amount: 1_200_000, At: t0.Add(time.Minute)},
	)

	check.Equal(t, h, res.WinnerID)
	check.Equal(t, int64(1_250_000), res.Price)
	check.False(t, res.IncomingWins)
}

func TestResolve_RaisingOwnCeilingIsNoop(t *testing.T) {
	h, other := uuid.New(), uuid.New()

	res := Resolve(
		Standing{CurrentBid: 1_000_000, Increment: 50_000, HighBidderID: &h},
		[]Proxy{
			{BidderID: h, Ceiling: 1_000_000, RegisteredAt: t0},
			{BidderID: other, Ceiling: 1_000_000, RegisteredAt: t0.Add(time.Second)},
		},
		Incoming{Kind: IncomingProxy, BidderID: h, Amount: 3_000_000, At: t0.Add(time.Hour)},
	)

	check.False(t, res.Changed)
	check.Equal(t, int64(1_000_000), res.Price)
	check.Equal(t, h, res.WinnerID)
	check.True(t, res.IncomingWins)
}

func TestResolve_HighBidderRaisesManually(t *testing.T) {
	h := uuid.New()

	res := Resolve(
		Standing{CurrentBid: 500_000, Increment: 50_000, HighBidderID: &h},
		nil,
		Incoming{Kind: IncomingManual, BidderID: h, Amount: 600_000, At: t0},
	)

	check.True(t, res.Changed)
	check.Equal(t, h, res.WinnerID)
	check.Equal(t, int64(600_000), res.Price)
	check.False(t, res.HighBidderChange)
}

func TestResolve_ReplacedCeilingIgnoresOldEntry(t *testing.T) {
	h, u := uuid.New(), uuid.New()

	// u previously had 400k (stale); the new ceiling of 900k replaces it.
	res := Resolve(
		Standing{CurrentBid: 600_000, Increment: 50_000, HighBidderID: &h},
		[]Proxy{
			{BidderID: h, Ceiling: 700_000, RegisteredAt: t0},
			{BidderID: u, Ceiling: 400_000, RegisteredAt: t0.Add(-time.Hour)},
		},
		Incoming{Kind: IncomingProxy, BidderID: u, Amount: 900_000, At: t0.Add(time.Hour)},
	)

	check.Equal(t, u, res.WinnerID)
	check.Equal(t, int64(750_000), res.Price)
}
