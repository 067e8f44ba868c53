package auction

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Standing is the lot's price snapshot before a request is applied.
type Standing struct {
	CurrentBid   int64
	Increment    int64
	HighBidderID *uuid.UUID
}

// Proxy is an active max-bid directive. Ceiling is the effective maximum,
// already capped by what the holder can fund.
type Proxy struct {
	BidderID     uuid.UUID
	Ceiling      int64
	RegisteredAt time.Time
}

// IncomingKind distinguishes a manual bid from a new proxy ceiling.
type IncomingKind int

const (
	IncomingManual IncomingKind = iota
	IncomingProxy
)

// Incoming is the request being resolved. For IncomingProxy, Amount is the
// new ceiling and replaces any entry for BidderID in the proxy set.
type Incoming struct {
	Kind     IncomingKind
	BidderID uuid.UUID
	Amount   int64
	At       time.Time
}

// Resolution is the outcome of one request against a lot.
type Resolution struct {
	Changed          bool
	Price            int64
	WinnerID         uuid.UUID
	PreviousHighID   *uuid.UUID
	HighBidderChange bool
	// IncomingWins is true when the requester holds the lot afterwards.
	IncomingWins bool
	// IncomingCeiling is the most the requester was willing to pay.
	IncomingCeiling int64
}

const (
	tierHigh = iota // current high bidder keeps ties
	tierProxy
	tierManual
)

type contender struct {
	id      uuid.UUID
	ceiling int64
	floor   int64
	tier    int
	at      time.Time
}

// Resolve computes the new price and high bidder analytically, the way a
// bidding war between ceilings would end if simulated increment by
// increment. The winner is the highest ceiling; ties go to the standing high
// bidder, then the earliest-registered proxy, then the incoming manual bid.
// The price is the runner-up's ceiling plus one increment, capped at the
// winner's ceiling and never below the winner's own committed amount.
func Resolve(st Standing, proxies []Proxy, in Incoming) Resolution {
	res := Resolution{
		Price:          st.CurrentBid,
		PreviousHighID: st.HighBidderID,
	}
	if st.HighBidderID != nil {
		res.WinnerID = *st.HighBidderID
	}

	// Raising one's own ceiling while already on top moves nothing.
	if in.Kind == IncomingProxy && st.HighBidderID != nil && *st.HighBidderID == in.BidderID {
		res.IncomingWins = true
		res.IncomingCeiling = in.Amount
		return res
	}

	byID := make(map[uuid.UUID]*contender, len(proxies)+2)
	for _, p := range proxies {
		if in.Kind == IncomingProxy && p.BidderID == in.BidderID {
			continue
		}
		byID[p.BidderID] = &contender{id: p.BidderID, ceiling: p.Ceiling, tier: tierProxy, at: p.RegisteredAt}
	}

	if in.Kind == IncomingProxy {
		byID[in.BidderID] = &contender{id: in.BidderID, ceiling: in.Amount, tier: tierProxy, at: in.At}
	}

	if st.HighBidderID != nil {
		h := *st.HighBidderID
		c, ok := byID[h]
		if !ok {
			c = &contender{id: h}
			byID[h] = c
		}
		c.ceiling = max(c.ceiling, st.CurrentBid)
		c.floor = st.CurrentBid
		c.tier = tierHigh
	}

	if in.Kind == IncomingManual {
		c, ok := byID[in.BidderID]
		if !ok {
			c = &contender{id: in.BidderID, tier: tierManual, at: in.At}
			byID[in.BidderID] = c
		}
		c.ceiling = max(c.ceiling, in.Amount)
		c.floor = max(c.floor, in.Amount)
	}

	ranked := make([]*contender, 0, len(byID))
	for _, c := range byID {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.ceiling != b.ceiling {
			return a.ceiling > b.ceiling
		}
		if a.tier != b.tier {
			return a.tier < b.tier
		}
		if !a.at.Equal(b.at) {
			return a.at.Before(b.at)
		}
		return a.id.String() < b.id.String()
	})

	winner := ranked[0]
	var second int64
	if st.HighBidderID == nil {
		second = st.CurrentBid
	}
	if len(ranked) > 1 {
		second = max(second, ranked[1].ceiling)
	}

	price := min(winner.ceiling, second+st.Increment)
	price = max(price, winner.floor)

	res.Price = price
	res.WinnerID = winner.id
	res.IncomingWins = winner.id == in.BidderID
	res.IncomingCeiling = byID[in.BidderID].ceiling
	res.HighBidderChange = st.HighBidderID == nil || *st.HighBidderID != winner.id
	res.Changed = res.HighBidderChange || price != st.CurrentBid
	return res
}
