package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vehicle-auction-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumnList = `id, lot_id, buyer_id, winning_bid_id, winning_amount, service_fee, buyer_premium,
	total_due, deposit_captured, storage_fees, source, status, handoff_status, created_at, updated_at`

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// Create inserts an order. lot_id is unique, so a lot settles at most once.
func (r *OrderRepo) Create(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	query := `INSERT INTO orders (` + orderColumnList + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := tx.Exec(ctx, query,
		o.ID, o.LotID, o.BuyerID, o.WinningBidID, o.WinningAmount, o.ServiceFee, o.BuyerPremium,
		o.TotalDue, o.DepositCaptured, o.StorageFees, o.Source, o.Status, o.HandoffStatus, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByLotID fetches a lot's order without locking.
func (r *OrderRepo) GetByLotID(ctx context.Context, lotID uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumnList + ` FROM orders WHERE lot_id = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, lotID))
}

// GetByLotIDForUpdate fetches a lot's order with a row lock.
func (r *OrderRepo) GetByLotIDForUpdate(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumnList + ` FROM orders WHERE lot_id = $1 FOR UPDATE`
	return scanOrder(tx.QueryRow(ctx, query, lotID))
}

// AddStorageFee accumulates a charged storage fee on the order.
func (r *OrderRepo) AddStorageFee(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) error {
	query := `UPDATE orders SET storage_fees = storage_fees + $1, updated_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, amount, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("add storage fee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order not found: %s", id)
	}
	return nil
}

// UpdateHandoffStatus records the outcome of delivering the order to the
// settlement subsystem.
func (r *OrderRepo) UpdateHandoffStatus(ctx context.Context, id uuid.UUID, status domain.HandoffStatus) error {
	query := `UPDATE orders SET handoff_status = $1, updated_at = $2 WHERE id = $3`

	_, err := r.pool.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update handoff status: %w", err)
	}
	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.ID, &o.LotID, &o.BuyerID, &o.WinningBidID, &o.WinningAmount, &o.ServiceFee, &o.BuyerPremium,
		&o.TotalDue, &o.DepositCaptured, &o.StorageFees, &o.Source, &o.Status, &o.HandoffStatus,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}
