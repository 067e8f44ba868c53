package postgres

import (
	"context"
	"testing"
	"time"

	"vehicle-auction-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditReplayRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCreditReplayRepo(mock)
	log := &domain.IdempotencyLog{
		Key:           domain.BuildDepositKey("GW-REF-001"),
		TransactionID: uuid.New(),
		ResponseJSON:  []byte(`{"user_id":"u-1","amount":100000}`),
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO credit_replays .+ ON CONFLICT").
		WithArgs("deposit", "GW-REF-001", log.TransactionID, log.ResponseJSON, log.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, log))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditReplayRepo_Create_AlreadySettled(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCreditReplayRepo(mock)
	log := &domain.IdempotencyLog{
		Key:           domain.BuildRefundKey("GW-REF-002"),
		TransactionID: uuid.New(),
		ResponseJSON:  []byte(`{}`),
		CreatedAt:     time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO credit_replays").
		WithArgs("refund", "GW-REF-002", log.TransactionID, log.ResponseJSON, log.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, log)
	assert.ErrorIs(t, err, ErrCreditSettled)
	assert.ErrorContains(t, err, "refund GW-REF-002")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditReplayRepo_Create_MalformedKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCreditReplayRepo(mock)
	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, &domain.IdempotencyLog{Key: "withdrawal:w-1"})
	assert.ErrorContains(t, err, "malformed key")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditReplayRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCreditReplayRepo(mock)
	txID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT .+ FROM credit_replays WHERE kind = \\$1 AND reference = \\$2").
		WithArgs("deposit", "GW-REF-001").
		WillReturnRows(pgxmock.NewRows([]string{"transaction_id", "response_json", "created_at"}).
			AddRow(txID, []byte(`{"user_id":"u-1","amount":100000}`), now))

	result, err := repo.Get(context.Background(), domain.BuildDepositKey("GW-REF-001"))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "deposit:GW-REF-001", result.Key)
	assert.Equal(t, txID, result.TransactionID)
	assert.Equal(t, []byte(`{"user_id":"u-1","amount":100000}`), result.ResponseJSON)
	assert.Equal(t, now, result.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditReplayRepo_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCreditReplayRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM credit_replays").
		WithArgs("refund", "nonexistent").
		WillReturnRows(pgxmock.NewRows([]string{"transaction_id", "response_json", "created_at"}))

	result, err := repo.Get(context.Background(), domain.BuildRefundKey("nonexistent"))
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}
