package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionDeposit    AuditAction = "DEPOSIT"
	AuditActionRefund     AuditAction = "REFUND"
	AuditActionWithdraw   AuditAction = "WITHDRAW"
	AuditActionPlaceBid   AuditAction = "PLACE_BID"
	AuditActionSetMaxBid  AuditAction = "SET_MAX_BID"
	AuditActionBuyItNow   AuditAction = "BUY_IT_NOW"
	AuditActionCreateLot  AuditAction = "CREATE_LOT"
	AuditActionStartLot   AuditAction = "START_LOT"
	AuditActionPauseLot   AuditAction = "PAUSE_LOT"
	AuditActionResumeLot  AuditAction = "RESUME_LOT"
	AuditActionCloseLot   AuditAction = "CLOSE_LOT"
	AuditActionCancelLot  AuditAction = "CANCEL_LOT"
	AuditActionStorageFee AuditAction = "STORAGE_FEE"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"` // nil for operator and gateway calls
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
