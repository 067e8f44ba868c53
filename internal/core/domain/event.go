package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a lot notification.
type EventType string

const (
	EventLotUpdated       EventType = "lot_updated"
	EventOutbid           EventType = "outbid"
	EventLotStatusChanged EventType = "lot_status_changed"
	EventLotClosed        EventType = "lot_closed"
)

// LotEvent is published after a lot change commits.
type LotEvent struct {
	Type         EventType  `json:"type"`
	LotID        uuid.UUID  `json:"lot_id"`
	Status       LotStatus  `json:"status"`
	CurrentBid   int64      `json:"current_bid"`
	HighBidderID *uuid.UUID `json:"high_bidder_id,omitempty"`
	BidCount     int        `json:"bid_count"`
	EndsAt       time.Time  `json:"ends_at"`
	UserID       *uuid.UUID `json:"user_id,omitempty"` // recipient of an outbid notice
	OrderID      *uuid.UUID `json:"order_id,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// NewLotEvent snapshots lot into an event of the given type.
func NewLotEvent(t EventType, lot *Lot, now time.Time) LotEvent {
	return LotEvent{
		Type:         t,
		LotID:        lot.ID,
		Status:       lot.Status,
		CurrentBid:   lot.CurrentBid,
		HighBidderID: lot.HighBidderID,
		BidCount:     lot.BidCount,
		EndsAt:       lot.EndsAt,
		OccurredAt:   now,
	}
}

// OutbidEvent notifies userID that they no longer hold lot.
func OutbidEvent(lot *Lot, userID uuid.UUID, now time.Time) LotEvent {
	ev := NewLotEvent(EventOutbid, lot, now)
	u := userID
	ev.UserID = &u
	return ev
}
