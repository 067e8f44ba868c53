package ports

import (
	"context"
	"time"

	"vehicle-auction-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SignatureService handles HMAC-SHA256 signing of funding gateway calls.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// HashService handles Argon2id hashing of the operator key.
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// TokenService handles bidder JWT operations.
type TokenService interface {
	Generate(userID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// EventPublisher delivers committed lot changes to real-time observers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.LotEvent) error
}

// OrderHandoff passes a settled order to the order/settlement subsystem.
type OrderHandoff interface {
	Handoff(ctx context.Context, order *domain.Order) error
}

// --- Service Ports (Business Logic) ---

// WalletLedger is the single writer of wallet balances. Methods taking a
// pgx.Tx join the caller's transaction; the others run their own.
type WalletLedger interface {
	// Lock loads and row-locks the wallets of userIDs in ascending id order.
	// Missing wallets are absent from the result.
	Lock(ctx context.Context, tx pgx.Tx, userIDs ...uuid.UUID) (map[uuid.UUID]*domain.Wallet, error)
	Reserve(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, reference string) (*domain.Reservation, error)
	Release(ctx context.Context, tx pgx.Tx, reservationID uuid.UUID) error
	Capture(ctx context.Context, tx pgx.Tx, reservationID uuid.UUID, amount int64, reference string) error
	GetReservation(ctx context.Context, tx pgx.Tx, reservationID uuid.UUID) (*domain.Reservation, error)
	ChargeFee(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, reference, description string) (*domain.WalletTransaction, error)

	Deposit(ctx context.Context, userID uuid.UUID, amount int64, reference string) (*domain.WalletTransaction, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amount int64, reference string) (*domain.WalletTransaction, error)
	Refund(ctx context.Context, userID uuid.UUID, amount int64, reference string) (*domain.WalletTransaction, error)

	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error)
	// Reconcile checks that the wallet's reserved balance equals the sum of
	// its active reservations.
	Reconcile(ctx context.Context, userID uuid.UUID) error
}

// BidOutcome is the result of a bid or max-bid request.
type BidOutcome struct {
	Lot *domain.Lot
	// Bid is the requester's own bid record; nil when nothing changed.
	Bid *domain.Bid
	// AutoBid is the counter-bid placed for a proxy holder, if any.
	AutoBid *domain.Bid
	MaxBid  *domain.MaxBid
	Winning bool
}

// CloseOutcome is the result of closing a lot.
type CloseOutcome struct {
	Lot   *domain.Lot
	Order *domain.Order // nil when the lot closed without a winner
	// AlreadyClosed is set when the lot was terminal before the call.
	AlreadyClosed bool
}

// BiddingEngine serializes every bid-state change of a lot.
type BiddingEngine interface {
	PlaceBid(ctx context.Context, lotID, bidderID uuid.UUID, amount int64) (*BidOutcome, error)
	SetMaxBid(ctx context.Context, lotID, bidderID uuid.UUID, maxAmount int64) (*BidOutcome, error)
	BuyItNow(ctx context.Context, lotID, buyerID uuid.UUID) (*domain.Order, error)
	CloseLot(ctx context.Context, lotID uuid.UUID) (*CloseOutcome, error)
	CancelLot(ctx context.Context, lotID uuid.UUID) (*domain.Lot, error)
	ChargeStorageFee(ctx context.Context, lotID uuid.UUID, daysOverdue int) (*domain.Order, error)
}

// CreateLotRequest holds validated input for a new lot.
type CreateLotRequest struct {
	Title           string
	StartingBid     int64
	BidIncrement    int64 // 0 = configured default
	BuyItNowPrice   int64
	BuyItNowEnabled bool
	EndsAt          time.Time
}

// LotService owns operator lifecycle changes and lot reads.
type LotService interface {
	CreateLot(ctx context.Context, req CreateLotRequest) (*domain.Lot, error)
	GetLot(ctx context.Context, id uuid.UUID) (*domain.Lot, error)
	ListBids(ctx context.Context, lotID uuid.UUID) ([]domain.Bid, error)
	StartLot(ctx context.Context, id uuid.UUID) (*domain.Lot, error)
	PauseLot(ctx context.Context, id uuid.UUID) (*domain.Lot, error)
	ResumeLot(ctx context.Context, id uuid.UUID) (*domain.Lot, error)
}

// AuditService defines audit logging operations.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
