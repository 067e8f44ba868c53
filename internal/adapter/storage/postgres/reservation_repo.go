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

// ReservationRepo implements ports.ReservationRepository.
type ReservationRepo struct {
	pool Pool
}

// NewReservationRepo creates a new ReservationRepo.
func NewReservationRepo(pool Pool) *ReservationRepo {
	return &ReservationRepo{pool: pool}
}

// Create opens a reservation.
func (r *ReservationRepo) Create(ctx context.Context, tx pgx.Tx, res *domain.Reservation) error {
	query := `INSERT INTO reservations (id, user_id, amount, status, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query, res.ID, res.UserID, res.Amount, res.Status, res.Reference, res.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// GetForUpdate fetches a reservation with a row lock.
func (r *ReservationRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Reservation, error) {
	query := `SELECT id, user_id, amount, status, reference, created_at, closed_at
		FROM reservations WHERE id = $1 FOR UPDATE`

	res := &domain.Reservation{}
	err := tx.QueryRow(ctx, query, id).Scan(
		&res.ID, &res.UserID, &res.Amount, &res.Status, &res.Reference, &res.CreatedAt, &res.ClosedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// Close moves an active reservation to a terminal status. Closing a
// reservation that is no longer active affects no rows and fails.
func (r *ReservationRepo) Close(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.ReservationStatus, closedAt time.Time) error {
	query := `UPDATE reservations SET status = $1, closed_at = $2 WHERE id = $3 AND status = 'active'`

	tag, err := tx.Exec(ctx, query, status, closedAt, id)
	if err != nil {
		return fmt.Errorf("close reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reservation %s is not active", id)
	}
	return nil
}

// SumActiveByUser totals the user's open reservations.
func (r *ReservationRepo) SumActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM reservations WHERE user_id = $1 AND status = 'active'`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum active reservations: %w", err)
	}
	return sum, nil
}
