package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"vehicle-auction-engine/internal/core/domain"
	"vehicle-auction-engine/internal/core/ports"
	"vehicle-auction-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// WalletLedgerImpl implements ports.WalletLedger. It is the only writer of
// wallet balances; every balance change appends a ledger entry in the same
// database transaction.
type WalletLedgerImpl struct {
	walletRepo      ports.WalletRepository
	ledgerRepo      ports.LedgerRepository
	reservationRepo ports.ReservationRepository
	idempRepo       ports.IdempotencyRepository
	idempCache      ports.IdempotencyCache
	transactor      ports.DBTransactor
	log             zerolog.Logger
	now             func() time.Time
}

// NewWalletLedger creates a new WalletLedgerImpl.
func NewWalletLedger(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	reservationRepo ports.ReservationRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WalletLedgerImpl {
	return &WalletLedgerImpl{
		walletRepo:      walletRepo,
		ledgerRepo:      ledgerRepo,
		reservationRepo: reservationRepo,
		idempRepo:       idempRepo,
		idempCache:      idempCache,
		transactor:      transactor,
		log:             log,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Lock row-locks the given wallets in ascending user id order so that two
// transactions touching overlapping wallets cannot deadlock.
func (s *WalletLedgerImpl) Lock(ctx context.Context, tx pgx.Tx, userIDs ...uuid.UUID) (map[uuid.UUID]*domain.Wallet, error) {
	ids := make([]uuid.UUID, 0, len(userIDs))
	seen := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	out := make(map[uuid.UUID]*domain.Wallet, len(ids))
	for _, id := range ids {
		w, err := s.walletRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return nil, wrapErr("lock wallet", err)
		}
		if w != nil {
			out[id] = w
		}
	}
	return out, nil
}

// Reserve moves amount from available to reserved and opens a reservation.
func (s *WalletLedgerImpl) Reserve(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, reference string) (*domain.Reservation, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	w, err := s.walletRepo.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, wrapErr("lock wallet", err)
	}
	if w == nil || !w.CanCover(amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	now := s.now()
	res := &domain.Reservation{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		Status:    domain.ReservationStatusActive,
		Reference: reference,
		CreatedAt: now,
	}
	if err := s.writeBalances(ctx, tx, w, w.Available-amount, w.Reserved+amount); err != nil {
		return nil, err
	}
	if err := s.reservationRepo.Create(ctx, tx, res); err != nil {
		return nil, wrapErr("create reservation", err)
	}
	if err := s.record(ctx, tx, userID, domain.TransactionTypeBidReserve, amount, reference, &res.ID,
		fmt.Sprintf("Collateral reserved for %s", reference)); err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("user_id", userID.String()).
		Str("reservation_id", res.ID.String()).
		Int64("amount", amount).
		Msg("collateral reserved")
	return res, nil
}

// Release returns a reservation's full amount to available. A reservation
// can be closed only once.
func (s *WalletLedgerImpl) Release(ctx context.Context, tx pgx.Tx, reservationID uuid.UUID) error {
	res, w, err := s.openReservation(ctx, tx, reservationID)
	if err != nil {
		return err
	}
	if err := s.writeBalances(ctx, tx, w, w.Available+res.Amount, w.Reserved-res.Amount); err != nil {
		return err
	}
	if err := s.reservationRepo.Close(ctx, tx, res.ID, domain.ReservationStatusReleased, s.now()); err != nil {
		return wrapErr("close reservation", err)
	}
	if err := s.record(ctx, tx, res.UserID, domain.TransactionTypeBidRelease, res.Amount, res.Reference, &res.ID,
		fmt.Sprintf("Collateral released for %s", res.Reference)); err != nil {
		return err
	}

	s.log.Debug().
		Str("user_id", res.UserID.String()).
		Str("reservation_id", res.ID.String()).
		Int64("amount", res.Amount).
		Msg("collateral released")
	return nil
}

// Capture realizes amount of a reservation as a payment and releases the
// remainder back to available.
func (s *WalletLedgerImpl) Capture(ctx context.Context, tx pgx.Tx, reservationID uuid.UUID, amount int64, reference string) error {
	res, w, err := s.openReservation(ctx, tx, reservationID)
	if err != nil {
		return err
	}
	if amount < 0 || amount > res.Amount {
		return apperror.ErrInvalidAmount()
	}
	remainder := res.Amount - amount

	if err := s.writeBalances(ctx, tx, w, w.Available+remainder, w.Reserved-res.Amount); err != nil {
		return err
	}
	if err := s.reservationRepo.Close(ctx, tx, res.ID, domain.ReservationStatusCaptured, s.now()); err != nil {
		return wrapErr("close reservation", err)
	}
	if amount > 0 {
		if err := s.record(ctx, tx, res.UserID, domain.TransactionTypePayment, amount, reference, &res.ID,
			fmt.Sprintf("Payment captured for %s", reference)); err != nil {
			return err
		}
	}
	if remainder > 0 {
		if err := s.record(ctx, tx, res.UserID, domain.TransactionTypeBidRelease, remainder, res.Reference, &res.ID,
			fmt.Sprintf("Uncaptured collateral released for %s", res.Reference)); err != nil {
			return err
		}
	}

	s.log.Info().
		Str("user_id", res.UserID.String()).
		Str("reservation_id", res.ID.String()).
		Int64("captured", amount).
		Int64("released", remainder).
		Msg("reservation captured")
	return nil
}

// GetReservation loads a reservation inside tx.
func (s *WalletLedgerImpl) GetReservation(ctx context.Context, tx pgx.Tx, reservationID uuid.UUID) (*domain.Reservation, error) {
	res, err := s.reservationRepo.GetForUpdate(ctx, tx, reservationID)
	if err != nil {
		return nil, wrapErr("get reservation", err)
	}
	if res == nil {
		return nil, apperror.ErrUnknownReservation()
	}
	return res, nil
}

// ChargeFee debits a fee from available inside the caller's transaction.
func (s *WalletLedgerImpl) ChargeFee(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, reference, description string) (*domain.WalletTransaction, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	w, err := s.walletRepo.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, wrapErr("lock wallet", err)
	}
	if w == nil || !w.CanCover(amount) {
		return nil, apperror.ErrInsufficientFunds()
	}
	if err := s.writeBalances(ctx, tx, w, w.Available-amount, w.Reserved); err != nil {
		return nil, err
	}
	return s.appendEntry(ctx, tx, userID, domain.TransactionTypeFee, amount, reference, nil, description)
}

// Deposit credits a confirmed external funding. Repeating a reference
// returns the original entry; reusing it for a different deposit fails.
func (s *WalletLedgerImpl) Deposit(ctx context.Context, userID uuid.UUID, amount int64, reference string) (*domain.WalletTransaction, error) {
	return s.credit(ctx, domain.TransactionTypeDeposit, domain.BuildDepositKey(reference), userID, amount, reference,
		"Deposit confirmed by funding gateway")
}

// Refund credits money returned by the platform through the gateway.
func (s *WalletLedgerImpl) Refund(ctx context.Context, userID uuid.UUID, amount int64, reference string) (*domain.WalletTransaction, error) {
	return s.credit(ctx, domain.TransactionTypeRefund, domain.BuildRefundKey(reference), userID, amount, reference,
		"Refund credited")
}

// Withdraw debits available funds paid out to the user.
func (s *WalletLedgerImpl) Withdraw(ctx context.Context, userID uuid.UUID, amount int64, reference string) (*domain.WalletTransaction, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w, err := s.walletRepo.GetForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, wrapErr("lock wallet", err)
	}
	if w == nil || !w.CanCover(amount) {
		return nil, apperror.ErrInsufficientFunds()
	}
	if err := s.writeBalances(ctx, dbTx, w, w.Available-amount, w.Reserved); err != nil {
		return nil, err
	}
	entry, err := s.appendEntry(ctx, dbTx, userID, domain.TransactionTypeWithdrawal, amount, reference, nil, "Withdrawal")
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Msg("withdrawal processed")
	return entry, nil
}

// GetWallet returns the user's current balances.
func (s *WalletLedgerImpl) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	w, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return w, nil
}

// ListTransactions returns a page of the user's ledger, newest first.
func (s *WalletLedgerImpl) ListTransactions(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	entries, total, err := s.ledgerRepo.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return entries, total, nil
}

// Reconcile compares the cached reserved balance with the open reservations.
func (s *WalletLedgerImpl) Reconcile(ctx context.Context, userID uuid.UUID) error {
	w, err := s.GetWallet(ctx, userID)
	if err != nil {
		return err
	}
	sum, err := s.reservationRepo.SumActiveByUser(ctx, userID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("sum reservations: %w", err))
	}
	if sum != w.Reserved {
		err := fmt.Errorf("wallet %s reserved %d but active reservations sum to %d", userID, w.Reserved, sum)
		s.log.Error().Err(err).Str("user_id", userID.String()).Msg("reservation drift detected")
		return apperror.ErrInvariantViolation(err)
	}
	return nil
}

func (s *WalletLedgerImpl) credit(
	ctx context.Context,
	txType domain.TransactionType,
	idempKey string,
	userID uuid.UUID,
	amount int64,
	reference string,
	description string,
) (*domain.WalletTransaction, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if reference == "" {
		return nil, apperror.Validation("reference is required")
	}

	// Layer 1: Redis idempotency check
	cached, err := s.idempCache.Get(ctx, idempKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		return replay(cached, userID, amount)
	}

	// Layer 2: DB idempotency check
	idempLog, err := s.idempRepo.Get(ctx, idempKey)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if idempLog != nil {
		return replay(idempLog.ResponseJSON, userID, amount)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w, err := s.walletRepo.GetForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, wrapErr("lock wallet", err)
	}
	if w == nil {
		now := s.now()
		if err := s.walletRepo.Create(ctx, dbTx, &domain.Wallet{UserID: userID, CreatedAt: now, UpdatedAt: now}); err != nil {
			return nil, wrapErr("create wallet", err)
		}
		if w, err = s.walletRepo.GetForUpdate(ctx, dbTx, userID); err != nil {
			return nil, wrapErr("lock wallet", err)
		}
		if w == nil {
			return nil, apperror.InternalError(fmt.Errorf("wallet %s missing after create", userID))
		}
	}

	if err := s.writeBalances(ctx, dbTx, w, w.Available+amount, w.Reserved); err != nil {
		return nil, err
	}
	entry, err := s.appendEntry(ctx, dbTx, userID, txType, amount, reference, nil, description)
	if err != nil {
		return nil, err
	}

	respJSON, err := json.Marshal(entry)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
	}
	if err := s.idempRepo.Create(ctx, dbTx, &domain.IdempotencyLog{
		Key:           idempKey,
		TransactionID: entry.ID,
		ResponseJSON:  respJSON,
		CreatedAt:     entry.CreatedAt,
	}); err != nil {
		// A concurrent retry with the same reference committed first.
		_ = dbTx.Rollback(ctx)
		if existing, getErr := s.idempRepo.Get(ctx, idempKey); getErr == nil && existing != nil {
			return replay(existing.ResponseJSON, userID, amount)
		}
		return nil, apperror.InternalError(fmt.Errorf("save idempotency log: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	// Post-process: cache in Redis (best-effort)
	if err := s.idempCache.Set(ctx, idempKey, respJSON, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("type", string(txType)).
		Str("reference", reference).
		Int64("amount", amount).
		Msg("wallet credited")
	return entry, nil
}

// replay returns the stored entry when the retry matches it.
func replay(raw []byte, userID uuid.UUID, amount int64) (*domain.WalletTransaction, error) {
	var entry domain.WalletTransaction
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached entry: %w", err))
	}
	if entry.UserID != userID || entry.Amount != amount {
		return nil, apperror.ErrDuplicateDeposit()
	}
	return &entry, nil
}

func (s *WalletLedgerImpl) openReservation(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Reservation, *domain.Wallet, error) {
	res, err := s.reservationRepo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, nil, wrapErr("get reservation", err)
	}
	if res == nil || !res.IsActive() {
		return nil, nil, apperror.ErrUnknownReservation()
	}
	w, err := s.walletRepo.GetForUpdate(ctx, tx, res.UserID)
	if err != nil {
		return nil, nil, wrapErr("lock wallet", err)
	}
	if w == nil {
		err := fmt.Errorf("reservation %s belongs to missing wallet %s", id, res.UserID)
		s.log.Error().Err(err).Msg("ledger invariant violated")
		return nil, nil, apperror.ErrInvariantViolation(err)
	}
	return res, w, nil
}

// writeBalances persists new balances, refusing any negative value.
func (s *WalletLedgerImpl) writeBalances(ctx context.Context, tx pgx.Tx, w *domain.Wallet, available, reserved int64) error {
	if available < 0 || reserved < 0 {
		err := fmt.Errorf("wallet %s would hold available=%d reserved=%d", w.UserID, available, reserved)
		s.log.Error().Err(err).Str("user_id", w.UserID.String()).Msg("ledger invariant violated")
		return apperror.ErrInvariantViolation(err)
	}
	if err := s.walletRepo.UpdateBalances(ctx, tx, w.UserID, available, reserved); err != nil {
		return wrapErr("update balances", err)
	}
	w.Available = available
	w.Reserved = reserved
	return nil
}

func (s *WalletLedgerImpl) record(ctx context.Context, tx pgx.Tx, userID uuid.UUID, txType domain.TransactionType, amount int64, reference string, reservationID *uuid.UUID, description string) error {
	_, err := s.appendEntry(ctx, tx, userID, txType, amount, reference, reservationID, description)
	return err
}

func (s *WalletLedgerImpl) appendEntry(ctx context.Context, tx pgx.Tx, userID uuid.UUID, txType domain.TransactionType, amount int64, reference string, reservationID *uuid.UUID, description string) (*domain.WalletTransaction, error) {
	entry := &domain.WalletTransaction{
		ID:            uuid.New(),
		UserID:        userID,
		Type:          txType,
		Amount:        amount,
		Description:   description,
		Reference:     reference,
		ReservationID: reservationID,
		CreatedAt:     s.now(),
	}
	if err := s.ledgerRepo.Append(ctx, tx, entry); err != nil {
		return nil, wrapErr("append ledger entry", err)
	}
	return entry, nil
}
