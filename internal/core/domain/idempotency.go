package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog caches the outcome of a funding call keyed by gateway reference.
type IdempotencyLog struct {
	Key           string    `json:"key"` // Format: "deposit:<reference>" or "refund:<reference>"
	TransactionID uuid.UUID `json:"transaction_id"`
	ResponseJSON  []byte    `json:"response_json"`
	CreatedAt     time.Time `json:"created_at"`
}

// BuildDepositKey constructs the idempotency key of a deposit confirmation.
func BuildDepositKey(reference string) string {
	return string(TransactionTypeDeposit) + ":" + reference
}

// BuildRefundKey constructs the idempotency key of a gateway refund.
func BuildRefundKey(reference string) string {
	return string(TransactionTypeRefund) + ":" + reference
}

// ParseCreditKey splits a key built by BuildDepositKey or BuildRefundKey.
// ok is false for any other shape, including an empty reference.
func ParseCreditKey(key string) (kind TransactionType, reference string, ok bool) {
	prefix, ref, found := strings.Cut(key, ":")
	if !found || ref == "" {
		return "", "", false
	}
	switch TransactionType(prefix) {
	case TransactionTypeDeposit, TransactionTypeRefund:
		return TransactionType(prefix), ref, true
	}
	return "", "", false
}
