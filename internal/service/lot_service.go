package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vehicle-auction-engine/internal/core/domain"
	"vehicle-auction-engine/internal/core/ports"
	"vehicle-auction-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// LotServiceImpl implements ports.LotService.
type LotServiceImpl struct {
	guard            *lotGuard
	lotRepo          ports.LotRepository
	bidRepo          ports.BidRepository
	transactor       ports.DBTransactor
	events           ports.EventPublisher
	defaultIncrement int64
	log              zerolog.Logger
	now              func() time.Time
}

// NewLotService creates a new LotServiceImpl sharing the engine's lot locks.
func NewLotService(
	locks *LotLocks,
	lotRepo ports.LotRepository,
	bidRepo ports.BidRepository,
	transactor ports.DBTransactor,
	events ports.EventPublisher,
	defaultIncrement int64,
	log zerolog.Logger,
) *LotServiceImpl {
	return &LotServiceImpl{
		guard:            &lotGuard{locks: locks, transactor: transactor, lotRepo: lotRepo},
		lotRepo:          lotRepo,
		bidRepo:          bidRepo,
		transactor:       transactor,
		events:           events,
		defaultIncrement: defaultIncrement,
		log:              log,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// CreateLot registers a scheduled lot. The starting bid becomes the current
// bid, so the first valid bid is starting bid plus one increment.
func (s *LotServiceImpl) CreateLot(ctx context.Context, req ports.CreateLotRequest) (*domain.Lot, error) {
	now := s.now()
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperror.Validation("title is required")
	}
	if req.StartingBid < 0 || req.BidIncrement < 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.EndsAt.After(now) {
		return nil, apperror.Validation("ends_at must be in the future")
	}
	increment := req.BidIncrement
	if increment == 0 {
		increment = s.defaultIncrement
	}
	if req.BuyItNowEnabled && req.BuyItNowPrice <= req.StartingBid {
		return nil, apperror.Validation("buy_it_now_price must exceed the starting bid")
	}

	lot := &domain.Lot{
		ID:              uuid.New(),
		Title:           title,
		Status:          domain.LotStatusScheduled,
		CurrentBid:      req.StartingBid,
		BidIncrement:    increment,
		BuyItNowPrice:   req.BuyItNowPrice,
		BuyItNowEnabled: req.BuyItNowEnabled,
		EndsAt:          req.EndsAt.UTC(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.lotRepo.Create(ctx, dbTx, lot); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create lot: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("lot_id", lot.ID.String()).
		Int64("starting_bid", lot.CurrentBid).
		Int64("increment", lot.BidIncrement).
		Time("ends_at", lot.EndsAt).
		Msg("lot created")
	return lot, nil
}

// GetLot returns the lot's committed snapshot.
func (s *LotServiceImpl) GetLot(ctx context.Context, id uuid.UUID) (*domain.Lot, error) {
	lot, err := s.lotRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get lot: %w", err))
	}
	if lot == nil {
		return nil, apperror.ErrNotFound("lot")
	}
	return lot, nil
}

// ListBids returns the lot's bid history.
func (s *LotServiceImpl) ListBids(ctx context.Context, lotID uuid.UUID) ([]domain.Bid, error) {
	if _, err := s.GetLot(ctx, lotID); err != nil {
		return nil, err
	}
	bids, err := s.bidRepo.ListByLot(ctx, lotID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list bids: %w", err))
	}
	return bids, nil
}

// StartLot opens a scheduled lot for bidding.
func (s *LotServiceImpl) StartLot(ctx context.Context, id uuid.UUID) (*domain.Lot, error) {
	return s.transition(ctx, id, domain.LotStatusLive, domain.LotStatusScheduled)
}

// PauseLot freezes bidding and the lot's timer.
func (s *LotServiceImpl) PauseLot(ctx context.Context, id uuid.UUID) (*domain.Lot, error) {
	return s.transition(ctx, id, domain.LotStatusPaused, domain.LotStatusLive)
}

// ResumeLot reopens a paused lot; its end time moves by the paused duration.
func (s *LotServiceImpl) ResumeLot(ctx context.Context, id uuid.UUID) (*domain.Lot, error) {
	return s.transition(ctx, id, domain.LotStatusLive, domain.LotStatusPaused)
}

func (s *LotServiceImpl) transition(ctx context.Context, id uuid.UUID, to, from domain.LotStatus) (*domain.Lot, error) {
	var (
		updated *domain.Lot
		event   domain.LotEvent
	)
	err := s.guard.run(ctx, id, func(tx pgx.Tx, lot *domain.Lot) error {
		now := s.now()
		if lot.Status != from {
			return apperror.ErrInvalidTransition(string(lot.Status), string(to))
		}
		if from == domain.LotStatusScheduled && lot.HasElapsed(now) {
			return apperror.ErrLotAlreadyClosed()
		}
		if !lot.Transition(to, now) {
			return apperror.ErrInvalidTransition(string(lot.Status), string(to))
		}
		if err := s.lotRepo.Update(ctx, tx, lot); err != nil {
			return wrapErr("update lot", err)
		}
		updated = lot
		event = domain.NewLotEvent(domain.EventLotStatusChanged, lot, now)
		return nil
	}, func() {
		if s.events == nil {
			return
		}
		if err := s.events.Publish(ctx, event); err != nil {
			s.log.Warn().Err(err).Str("lot_id", id.String()).Msg("failed to publish lot event")
		}
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("lot_id", id.String()).
		Str("status", string(updated.Status)).
		Time("ends_at", updated.EndsAt).
		Msg("lot status changed")
	return updated, nil
}
