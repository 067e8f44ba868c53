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

const bidColumnList = `id, lot_id, bidder_id, amount, type, status, reservation_id, created_at, updated_at`

// BidRepo implements ports.BidRepository.
type BidRepo struct {
	pool Pool
}

// NewBidRepo creates a new BidRepo.
func NewBidRepo(pool Pool) *BidRepo {
	return &BidRepo{pool: pool}
}

// Create inserts a bid record.
func (r *BidRepo) Create(ctx context.Context, tx pgx.Tx, bid *domain.Bid) error {
	query := `INSERT INTO bids (` + bidColumnList + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		bid.ID, bid.LotID, bid.BidderID, bid.Amount, bid.Type, bid.Status,
		bid.ReservationID, bid.CreatedAt, bid.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}
	return nil
}

// Get fetches a bid inside tx.
func (r *BidRepo) Get(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Bid, error) {
	query := `SELECT ` + bidColumnList + ` FROM bids WHERE id = $1`

	b := &domain.Bid{}
	err := scanBid(tx.QueryRow(ctx, query, id), b)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get bid: %w", err)
	}
	return b, nil
}

// UpdateStatus changes a bid's standing.
func (r *BidRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.BidStatus) error {
	query := `UPDATE bids SET status = $1, updated_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update bid status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bid not found: %s", id)
	}
	return nil
}

// ListByLot returns the lot's bid history in the order bids were placed.
func (r *BidRepo) ListByLot(ctx context.Context, lotID uuid.UUID) ([]domain.Bid, error) {
	query := `SELECT ` + bidColumnList + ` FROM bids WHERE lot_id = $1 ORDER BY created_at, amount`

	rows, err := r.pool.Query(ctx, query, lotID)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()

	bids := []domain.Bid{}
	for rows.Next() {
		b := domain.Bid{}
		if err := scanBid(rows, &b); err != nil {
			return nil, fmt.Errorf("scan bid row: %w", err)
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bid rows: %w", err)
	}
	return bids, nil
}

func scanBid(row pgx.Row, b *domain.Bid) error {
	return row.Scan(
		&b.ID, &b.LotID, &b.BidderID, &b.Amount, &b.Type, &b.Status,
		&b.ReservationID, &b.CreatedAt, &b.UpdatedAt,
	)
}
