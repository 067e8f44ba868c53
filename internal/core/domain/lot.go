package domain

import (
	"time"

	"github.com/google/uuid"
)

// LotStatus is a lot's lifecycle state.
type LotStatus string

const (
	LotStatusScheduled LotStatus = "scheduled"
	LotStatusLive      LotStatus = "live"
	LotStatusPaused    LotStatus = "paused"
	LotStatusEnded     LotStatus = "ended"
	LotStatusCancelled LotStatus = "cancelled"
)

var lotTransitions = map[LotStatus][]LotStatus{
	LotStatusScheduled: {LotStatusLive, LotStatusEnded, LotStatusCancelled},
	LotStatusLive:      {LotStatusPaused, LotStatusEnded, LotStatusCancelled},
	LotStatusPaused:    {LotStatusLive, LotStatusEnded, LotStatusCancelled},
}

// CanTransition reports whether a lot may move from one status to another.
func CanTransition(from, to LotStatus) bool {
	for _, s := range lotTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Lot is one vehicle's auction unit together with its price snapshot.
type Lot struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Status          LotStatus  `json:"status"`
	CurrentBid      int64      `json:"current_bid"`
	BidIncrement    int64      `json:"bid_increment"`
	HighBidderID    *uuid.UUID `json:"high_bidder_id,omitempty"`
	WinningBidID    *uuid.UUID `json:"winning_bid_id,omitempty"`
	BuyItNowPrice   int64      `json:"buy_it_now_price,omitempty"`
	BuyItNowEnabled bool       `json:"buy_it_now_enabled"`
	EndsAt          time.Time  `json:"ends_at"`
	PausedAt        *time.Time `json:"paused_at,omitempty"`
	BidCount        int        `json:"bid_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsTerminal returns true once the lot is ended or cancelled.
func (l *Lot) IsTerminal() bool {
	return l.Status == LotStatusEnded || l.Status == LotStatusCancelled
}

// AcceptsBids is true only while live.
func (l *Lot) AcceptsBids() bool {
	return l.Status == LotStatusLive
}

// QuickBid is the minimum valid next bid.
func (l *Lot) QuickBid() int64 {
	return l.CurrentBid + l.BidIncrement
}

// HasElapsed reports whether the end time has been reached at now.
func (l *Lot) HasElapsed(now time.Time) bool {
	return !now.Before(l.EndsAt)
}

// IsHighBidder reports whether userID currently holds the lot.
func (l *Lot) IsHighBidder(userID uuid.UUID) bool {
	return l.HighBidderID != nil && *l.HighBidderID == userID
}

// Transition moves the lot to status to. Pausing freezes the timer and
// resuming pushes EndsAt out by the time spent paused. It returns false and
// leaves the lot untouched when the move is not allowed.
func (l *Lot) Transition(to LotStatus, now time.Time) bool {
	if !CanTransition(l.Status, to) {
		return false
	}
	switch {
	case to == LotStatusPaused:
		paused := now
		l.PausedAt = &paused
	case l.Status == LotStatusPaused && to == LotStatusLive:
		if l.PausedAt != nil && now.After(*l.PausedAt) {
			l.EndsAt = l.EndsAt.Add(now.Sub(*l.PausedAt))
		}
		l.PausedAt = nil
	case to == LotStatusEnded || to == LotStatusCancelled:
		l.PausedAt = nil
	}
	l.Status = to
	l.UpdatedAt = now
	return true
}

// ExtendForSoftClose pushes EndsAt so at least window remains after now.
// A zero window is a hard close.
func (l *Lot) ExtendForSoftClose(now time.Time, window time.Duration) bool {
	if window <= 0 {
		return false
	}
	if l.EndsAt.Sub(now) >= window {
		return false
	}
	l.EndsAt = now.Add(window)
	return true
}
