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

const lotColumnList = `id, title, status, current_bid, bid_increment, high_bidder_id, winning_bid_id,
	buy_it_now_price, buy_it_now_enabled, ends_at, paused_at, bid_count, created_at, updated_at`

// LotRepo implements ports.LotRepository.
type LotRepo struct {
	pool Pool
}

// NewLotRepo creates a new LotRepo.
func NewLotRepo(pool Pool) *LotRepo {
	return &LotRepo{pool: pool}
}

// Create inserts a new lot.
func (r *LotRepo) Create(ctx context.Context, tx pgx.Tx, lot *domain.Lot) error {
	query := `INSERT INTO lots (` + lotColumnList + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := tx.Exec(ctx, query,
		lot.ID, lot.Title, lot.Status, lot.CurrentBid, lot.BidIncrement, lot.HighBidderID, lot.WinningBidID,
		lot.BuyItNowPrice, lot.BuyItNowEnabled, lot.EndsAt, lot.PausedAt, lot.BidCount, lot.CreatedAt, lot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lot: %w", err)
	}
	return nil
}

// GetByID fetches a lot without locking.
func (r *LotRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lot, error) {
	query := `SELECT ` + lotColumnList + ` FROM lots WHERE id = $1`
	return scanLot(r.pool.QueryRow(ctx, query, id))
}

// GetForUpdate fetches a lot with a row lock. This MUST be called within a
// transaction.
func (r *LotRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Lot, error) {
	query := `SELECT ` + lotColumnList + ` FROM lots WHERE id = $1 FOR UPDATE`
	return scanLot(tx.QueryRow(ctx, query, id))
}

// Update writes the lot's mutable state.
func (r *LotRepo) Update(ctx context.Context, tx pgx.Tx, lot *domain.Lot) error {
	query := `UPDATE lots SET status = $1, current_bid = $2, high_bidder_id = $3, winning_bid_id = $4,
		ends_at = $5, paused_at = $6, bid_count = $7, updated_at = $8
		WHERE id = $9`

	tag, err := tx.Exec(ctx, query,
		lot.Status, lot.CurrentBid, lot.HighBidderID, lot.WinningBidID,
		lot.EndsAt, lot.PausedAt, lot.BidCount, lot.UpdatedAt, lot.ID,
	)
	if err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lot not found: %s", lot.ID)
	}
	return nil
}

// ListDue returns live lots whose end time is at or before now, earliest
// first.
func (r *LotRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `SELECT id FROM lots WHERE status = 'live' AND ends_at <= $1 ORDER BY ends_at LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due lots: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan due lot: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due lots: %w", err)
	}
	return ids, nil
}

func scanLot(row pgx.Row) (*domain.Lot, error) {
	l := &domain.Lot{}
	err := row.Scan(
		&l.ID, &l.Title, &l.Status, &l.CurrentBid, &l.BidIncrement, &l.HighBidderID, &l.WinningBidID,
		&l.BuyItNowPrice, &l.BuyItNowEnabled, &l.EndsAt, &l.PausedAt, &l.BidCount, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan lot: %w", err)
	}
	return l, nil
}
