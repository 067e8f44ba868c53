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

const maxBidColumnList = `id, lot_id, bidder_id, max_amount, active, created_at, updated_at`

// MaxBidRepo implements ports.MaxBidRepository.
type MaxBidRepo struct {
	pool Pool
}

// NewMaxBidRepo creates a new MaxBidRepo.
func NewMaxBidRepo(pool Pool) *MaxBidRepo {
	return &MaxBidRepo{pool: pool}
}

// Replace deactivates the bidder's active directive on the lot and inserts
// maxBid as the new active one.
func (r *MaxBidRepo) Replace(ctx context.Context, tx pgx.Tx, maxBid *domain.MaxBid) error {
	_, err := tx.Exec(ctx,
		`UPDATE max_bids SET active = FALSE, updated_at = $1 WHERE lot_id = $2 AND bidder_id = $3 AND active`,
		maxBid.UpdatedAt, maxBid.LotID, maxBid.BidderID,
	)
	if err != nil {
		return fmt.Errorf("deactivate max bid: %w", err)
	}

	query := `INSERT INTO max_bids (` + maxBidColumnList + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = tx.Exec(ctx, query,
		maxBid.ID, maxBid.LotID, maxBid.BidderID, maxBid.MaxAmount, true, maxBid.CreatedAt, maxBid.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert max bid: %w", err)
	}
	return nil
}

// GetActive returns the bidder's active directive on the lot, or nil.
func (r *MaxBidRepo) GetActive(ctx context.Context, tx pgx.Tx, lotID, bidderID uuid.UUID) (*domain.MaxBid, error) {
	query := `SELECT ` + maxBidColumnList + ` FROM max_bids WHERE lot_id = $1 AND bidder_id = $2 AND active`

	m := &domain.MaxBid{}
	err := tx.QueryRow(ctx, query, lotID, bidderID).Scan(
		&m.ID, &m.LotID, &m.BidderID, &m.MaxAmount, &m.Active, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active max bid: %w", err)
	}
	return m, nil
}

// ListActive returns the lot's active directives, oldest first.
func (r *MaxBidRepo) ListActive(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) ([]domain.MaxBid, error) {
	query := `SELECT ` + maxBidColumnList + ` FROM max_bids WHERE lot_id = $1 AND active ORDER BY created_at, id`

	rows, err := tx.Query(ctx, query, lotID)
	if err != nil {
		return nil, fmt.Errorf("list max bids: %w", err)
	}
	defer rows.Close()

	var out []domain.MaxBid
	for rows.Next() {
		m := domain.MaxBid{}
		if err := rows.Scan(&m.ID, &m.LotID, &m.BidderID, &m.MaxAmount, &m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan max bid row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate max bid rows: %w", err)
	}
	return out, nil
}

// DeactivateAll retires every directive on the lot.
func (r *MaxBidRepo) DeactivateAll(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE max_bids SET active = FALSE, updated_at = $1 WHERE lot_id = $2 AND active`,
		time.Now().UTC(), lotID)
	if err != nil {
		return fmt.Errorf("deactivate max bids: %w", err)
	}
	return nil
}
