package postgres

import (
	"context"
	"errors"
	"fmt"

	"vehicle-auction-engine/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// ErrCreditSettled is returned when a deposit or refund reference already
// has a replay row, typically written by a concurrent retry.
var ErrCreditSettled = errors.New("credit already settled")

// CreditReplayRepo implements ports.IdempotencyRepository. It remembers
// which ledger entry each gateway reference settled into, per credit kind.
type CreditReplayRepo struct {
	pool Pool
}

func NewCreditReplayRepo(pool Pool) *CreditReplayRepo {
	return &CreditReplayRepo{pool: pool}
}

// Create records the settled entry inside the crediting transaction. A
// conflicting row does not abort the transaction; it surfaces as
// ErrCreditSettled so the caller can replay the winner.
func (r *CreditReplayRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	kind, reference, ok := domain.ParseCreditKey(log.Key)
	if !ok {
		return fmt.Errorf("credit replay: malformed key %q", log.Key)
	}

	query := `INSERT INTO credit_replays (kind, reference, transaction_id, response_json, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, reference) DO NOTHING`

	tag, err := tx.Exec(ctx, query, string(kind), reference, log.TransactionID, log.ResponseJSON, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert credit replay: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", kind, reference, ErrCreditSettled)
	}
	return nil
}

// Get fetches the settled entry for a credit key, or nil if none exists.
func (r *CreditReplayRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	kind, reference, ok := domain.ParseCreditKey(key)
	if !ok {
		return nil, fmt.Errorf("credit replay: malformed key %q", key)
	}

	query := `SELECT transaction_id, response_json, created_at FROM credit_replays
		WHERE kind = $1 AND reference = $2`

	log := &domain.IdempotencyLog{Key: key}
	err := r.pool.QueryRow(ctx, query, string(kind), reference).Scan(&log.TransactionID, &log.ResponseJSON, &log.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get credit replay: %w", err)
	}
	return log, nil
}
