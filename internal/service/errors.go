package service

import (
	"context"
	"errors"
	"fmt"

	"vehicle-auction-engine/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgLockNotAvailable is raised when a row lock wait exceeds lock_timeout.
const pgLockNotAvailable = "55P03"

// wrapErr passes typed application errors through untouched and maps an
// expired wait on a row or lot lock to a lock timeout. Everything else is
// wrapped as an internal error.
func wrapErr(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return apperror.ErrLockTimeout(fmt.Errorf("%s: %w", op, err))
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperror.ErrLockTimeout(fmt.Errorf("%s: %w", op, err))
	}
	return apperror.InternalError(fmt.Errorf("%s: %w", op, err))
}
