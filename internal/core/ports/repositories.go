package ports

import (
	"context"
	"time"

	"vehicle-auction-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error)
	UpdateBalances(ctx context.Context, tx pgx.Tx, userID uuid.UUID, available, reserved int64) error
}

// LedgerRepository persists the append-only wallet transaction log.
type LedgerRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.WalletTransaction) error
	ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error)
}

// ReservationRepository persists the open/closed state of bid collateral.
type ReservationRepository interface {
	Create(ctx context.Context, tx pgx.Tx, r *domain.Reservation) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Reservation, error)
	Close(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.ReservationStatus, closedAt time.Time) error
	SumActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// LotRepository persists lots and their price snapshot.
type LotRepository interface {
	Create(ctx context.Context, tx pgx.Tx, lot *domain.Lot) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Lot, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Lot, error)
	Update(ctx context.Context, tx pgx.Tx, lot *domain.Lot) error
	// ListDue returns live lots whose end time is at or before now.
	ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// BidRepository persists bid records.
type BidRepository interface {
	Create(ctx context.Context, tx pgx.Tx, bid *domain.Bid) error
	Get(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Bid, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.BidStatus) error
	ListByLot(ctx context.Context, lotID uuid.UUID) ([]domain.Bid, error)
}

// MaxBidRepository persists proxy directives.
type MaxBidRepository interface {
	// Replace deactivates the bidder's current directive on the lot, if any,
	// and stores m as the active one.
	Replace(ctx context.Context, tx pgx.Tx, m *domain.MaxBid) error
	GetActive(ctx context.Context, tx pgx.Tx, lotID, bidderID uuid.UUID) (*domain.MaxBid, error)
	// ListActive returns the lot's active directives, oldest first.
	ListActive(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) ([]domain.MaxBid, error)
	DeactivateAll(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) error
}

// OrderRepository persists orders created at settlement.
type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByLotID(ctx context.Context, lotID uuid.UUID) (*domain.Order, error)
	GetByLotIDForUpdate(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (*domain.Order, error)
	AddStorageFee(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) error
	UpdateHandoffStatus(ctx context.Context, id uuid.UUID, status domain.HandoffStatus) error
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
