package service

import (
	"context"
	"fmt"
	"time"

	"vehicle-auction-engine/internal/core/auction"
	"vehicle-auction-engine/internal/core/domain"
	"vehicle-auction-engine/internal/core/fees"
	"vehicle-auction-engine/internal/core/ports"
	"vehicle-auction-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// BiddingEngineImpl implements ports.BiddingEngine. Every change to a lot's
// bid state runs under that lot's lock inside one database transaction;
// events and order handoff happen only after commit.
type BiddingEngineImpl struct {
	guard      *lotGuard
	lotRepo    ports.LotRepository
	bidRepo    ports.BidRepository
	maxBidRepo ports.MaxBidRepository
	orderRepo  ports.OrderRepository
	ledger     ports.WalletLedger
	transactor ports.DBTransactor
	events     ports.EventPublisher
	handoff    ports.OrderHandoff
	softClose  time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

// NewBiddingEngine creates a new BiddingEngineImpl. A zero softClose keeps
// end times fixed.
func NewBiddingEngine(
	locks *LotLocks,
	lotRepo ports.LotRepository,
	bidRepo ports.BidRepository,
	maxBidRepo ports.MaxBidRepository,
	orderRepo ports.OrderRepository,
	ledger ports.WalletLedger,
	transactor ports.DBTransactor,
	events ports.EventPublisher,
	handoff ports.OrderHandoff,
	softClose time.Duration,
	log zerolog.Logger,
) *BiddingEngineImpl {
	return &BiddingEngineImpl{
		guard:      &lotGuard{locks: locks, transactor: transactor, lotRepo: lotRepo},
		lotRepo:    lotRepo,
		bidRepo:    bidRepo,
		maxBidRepo: maxBidRepo,
		orderRepo:  orderRepo,
		ledger:     ledger,
		transactor: transactor,
		events:     events,
		handoff:    handoff,
		softClose:  softClose,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// bidContext is everything a resolution needs, loaded under the lot lock.
type bidContext struct {
	lot     *domain.Lot
	wallets map[uuid.UUID]*domain.Wallet
	proxies []domain.MaxBid
	winning *domain.Bid
	held    int64 // collateral behind the winning bid
}

// credit is what userID could commit to this lot: available funds plus the
// collateral already held for it when they are the high bidder.
func (bc *bidContext) credit(userID uuid.UUID) int64 {
	var c int64
	if w := bc.wallets[userID]; w != nil {
		c = w.Available
	}
	if bc.lot.IsHighBidder(userID) {
		c += bc.held
	}
	return c
}

func (bc *bidContext) effectiveProxies() []auction.Proxy {
	out := make([]auction.Proxy, 0, len(bc.proxies))
	for _, m := range bc.proxies {
		out = append(out, auction.Proxy{
			BidderID:     m.BidderID,
			Ceiling:      min(m.MaxAmount, domain.MaxBidFor(bc.credit(m.BidderID))),
			RegisteredAt: m.CreatedAt,
		})
	}
	return out
}

func (bc *bidContext) standing() auction.Standing {
	return auction.Standing{
		CurrentBid:   bc.lot.CurrentBid,
		Increment:    bc.lot.BidIncrement,
		HighBidderID: bc.lot.HighBidderID,
	}
}

// PlaceBid records a manual bid and lets every active proxy answer it.
func (s *BiddingEngineImpl) PlaceBid(ctx context.Context, lotID, bidderID uuid.UUID, amount int64) (*ports.BidOutcome, error) {
	var (
		out    *ports.BidOutcome
		events []domain.LotEvent
	)
	err := s.guard.run(ctx, lotID, func(tx pgx.Tx, lot *domain.Lot) error {
		now := s.now()
		if err := auction.ValidateBid(lot, amount, now); err != nil {
			return err
		}
		bc, err := s.load(ctx, tx, lot, bidderID)
		if err != nil {
			return err
		}
		if err := auction.ValidateCollateral(amount, bc.credit(bidderID)); err != nil {
			return err
		}

		in := auction.Incoming{Kind: auction.IncomingManual, BidderID: bidderID, Amount: amount, At: now}
		res := auction.Resolve(bc.standing(), bc.effectiveProxies(), in)
		out, events, err = s.apply(ctx, tx, bc, in, res, now)
		return err
	}, func() { s.publish(ctx, events) })
	if err != nil {
		s.logRejected(lotID, bidderID, amount, "bid", err)
		return nil, err
	}

	return out, nil
}

// SetMaxBid stores a proxy ceiling and immediately bids on its behalf as far
// as needed to take or keep the lot.
func (s *BiddingEngineImpl) SetMaxBid(ctx context.Context, lotID, bidderID uuid.UUID, maxAmount int64) (*ports.BidOutcome, error) {
	var (
		out    *ports.BidOutcome
		events []domain.LotEvent
	)
	err := s.guard.run(ctx, lotID, func(tx pgx.Tx, lot *domain.Lot) error {
		now := s.now()
		if err := auction.ValidateMaxBid(lot, maxAmount, now); err != nil {
			return err
		}
		bc, err := s.load(ctx, tx, lot, bidderID)
		if err != nil {
			return err
		}
		// A challenger must fund at least the next bid; the holder already does.
		if !lot.IsHighBidder(bidderID) {
			if err := auction.ValidateCollateral(lot.QuickBid(), bc.credit(bidderID)); err != nil {
				return err
			}
		}

		directive := &domain.MaxBid{
			ID:        uuid.New(),
			LotID:     lot.ID,
			BidderID:  bidderID,
			MaxAmount: maxAmount,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.maxBidRepo.Replace(ctx, tx, directive); err != nil {
			return wrapErr("save max bid", err)
		}

		ceiling := min(maxAmount, domain.MaxBidFor(bc.credit(bidderID)))
		in := auction.Incoming{Kind: auction.IncomingProxy, BidderID: bidderID, Amount: ceiling, At: now}
		res := auction.Resolve(bc.standing(), bc.effectiveProxies(), in)
		if !res.Changed {
			out = &ports.BidOutcome{Lot: lot, MaxBid: directive, Winning: lot.IsHighBidder(bidderID)}
			return nil
		}
		out, events, err = s.apply(ctx, tx, bc, in, res, now)
		if err != nil {
			return err
		}
		out.MaxBid = directive
		return nil
	}, func() { s.publish(ctx, events) })
	if err != nil {
		s.logRejected(lotID, bidderID, maxAmount, "max bid", err)
		return nil, err
	}

	return out, nil
}

// load locks every wallet the resolution may touch, in one sorted pass, and
// reads the proxies and the current winning bid.
func (s *BiddingEngineImpl) load(ctx context.Context, tx pgx.Tx, lot *domain.Lot, requester uuid.UUID) (*bidContext, error) {
	proxies, err := s.maxBidRepo.ListActive(ctx, tx, lot.ID)
	if err != nil {
		return nil, wrapErr("list max bids", err)
	}

	ids := []uuid.UUID{requester}
	if lot.HighBidderID != nil {
		ids = append(ids, *lot.HighBidderID)
	}
	for _, m := range proxies {
		ids = append(ids, m.BidderID)
	}
	wallets, err := s.ledger.Lock(ctx, tx, ids...)
	if err != nil {
		return nil, err
	}

	bc := &bidContext{lot: lot, wallets: wallets, proxies: proxies}
	if lot.WinningBidID == nil {
		return bc, nil
	}
	bc.winning, err = s.bidRepo.Get(ctx, tx, *lot.WinningBidID)
	if err != nil {
		return nil, wrapErr("get winning bid", err)
	}
	if bc.winning == nil {
		return nil, apperror.ErrInvariantViolation(fmt.Errorf("lot %s points at missing bid %s", lot.ID, *lot.WinningBidID))
	}
	if bc.winning.ReservationID != nil {
		held, err := s.ledger.GetReservation(ctx, tx, *bc.winning.ReservationID)
		if err != nil {
			return nil, err
		}
		if held.IsActive() {
			bc.held = held.Amount
		}
	}
	return bc, nil
}

// apply writes a changed resolution: the superseded winning bid is released
// before the new winner's collateral is reserved.
func (s *BiddingEngineImpl) apply(
	ctx context.Context,
	tx pgx.Tx,
	bc *bidContext,
	in auction.Incoming,
	res auction.Resolution,
	now time.Time,
) (*ports.BidOutcome, []domain.LotEvent, error) {
	lot := bc.lot
	incomingType := domain.BidTypeManual
	if in.Kind == auction.IncomingProxy {
		incomingType = domain.BidTypeProxy
	}

	var lost *domain.Bid
	winner := &domain.Bid{
		ID:        uuid.New(),
		LotID:     lot.ID,
		BidderID:  res.WinnerID,
		Amount:    res.Price,
		Type:      domain.BidTypeProxy,
		Status:    domain.BidStatusWinning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if res.IncomingWins {
		winner.Type = incomingType
	} else {
		lostAmount := in.Amount
		if in.Kind == auction.IncomingProxy {
			lostAmount = res.IncomingCeiling
		}
		lost = &domain.Bid{
			ID:        uuid.New(),
			LotID:     lot.ID,
			BidderID:  in.BidderID,
			Amount:    lostAmount,
			Type:      incomingType,
			Status:    domain.BidStatusOutbid,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	if bc.winning != nil {
		if bc.winning.ReservationID != nil && bc.held > 0 {
			if err := s.ledger.Release(ctx, tx, *bc.winning.ReservationID); err != nil {
				return nil, nil, err
			}
		}
		if err := s.bidRepo.UpdateStatus(ctx, tx, bc.winning.ID, domain.BidStatusOutbid); err != nil {
			return nil, nil, wrapErr("mark bid outbid", err)
		}
	}

	reservation, err := s.ledger.Reserve(ctx, tx, res.WinnerID, domain.CollateralFor(res.Price), "bid:"+winner.ID.String())
	if err != nil {
		return nil, nil, err
	}
	winner.ReservationID = &reservation.ID

	created := 0
	if lost != nil {
		if err := s.bidRepo.Create(ctx, tx, lost); err != nil {
			return nil, nil, wrapErr("create bid", err)
		}
		created++
	}
	if err := s.bidRepo.Create(ctx, tx, winner); err != nil {
		return nil, nil, wrapErr("create bid", err)
	}
	created++

	winnerID := res.WinnerID
	lot.CurrentBid = res.Price
	lot.HighBidderID = &winnerID
	lot.WinningBidID = &winner.ID
	lot.BidCount += created
	lot.UpdatedAt = now
	extended := lot.ExtendForSoftClose(now, s.softClose)
	if err := s.lotRepo.Update(ctx, tx, lot); err != nil {
		return nil, nil, wrapErr("update lot", err)
	}

	events := []domain.LotEvent{domain.NewLotEvent(domain.EventLotUpdated, lot, now)}
	if res.HighBidderChange && res.PreviousHighID != nil && *res.PreviousHighID != res.WinnerID {
		events = append(events, domain.OutbidEvent(lot, *res.PreviousHighID, now))
	}
	if lost != nil && (res.PreviousHighID == nil || *res.PreviousHighID != in.BidderID) {
		events = append(events, domain.OutbidEvent(lot, in.BidderID, now))
	}

	s.log.Info().
		Str("lot_id", lot.ID.String()).
		Str("high_bidder_id", winnerID.String()).
		Int64("current_bid", lot.CurrentBid).
		Int("bid_count", lot.BidCount).
		Bool("extended", extended).
		Msg("lot price updated")

	out := &ports.BidOutcome{Lot: lot, Winning: res.IncomingWins}
	if res.IncomingWins {
		out.Bid = winner
	} else {
		out.Bid = lost
		out.AutoBid = winner
	}
	return out, events, nil
}

// BuyItNow sells the lot at its fixed price, ending it at once.
func (s *BiddingEngineImpl) BuyItNow(ctx context.Context, lotID, buyerID uuid.UUID) (*domain.Order, error) {
	var (
		order  *domain.Order
		events []domain.LotEvent
	)
	err := s.guard.run(ctx, lotID, func(tx pgx.Tx, lot *domain.Lot) error {
		now := s.now()
		wallets, err := s.ledger.Lock(ctx, tx, buyerID)
		if err != nil {
			return err
		}
		var available int64
		if w := wallets[buyerID]; w != nil {
			available = w.Available
		}
		if err := auction.ValidateBuyItNow(lot, available, now); err != nil {
			return err
		}

		price := lot.BuyItNowPrice
		bid := &domain.Bid{
			ID:        uuid.New(),
			LotID:     lot.ID,
			BidderID:  buyerID,
			Amount:    price,
			Type:      domain.BidTypeBuyItNow,
			Status:    domain.BidStatusWon,
			CreatedAt: now,
			UpdatedAt: now,
		}
		reservation, err := s.ledger.Reserve(ctx, tx, buyerID, price, "bid:"+bid.ID.String())
		if err != nil {
			return err
		}
		bid.ReservationID = &reservation.ID
		if err := s.bidRepo.Create(ctx, tx, bid); err != nil {
			return wrapErr("create bid", err)
		}
		if err := s.ledger.Capture(ctx, tx, reservation.ID, price, "lot:"+lot.ID.String()); err != nil {
			return err
		}
		if err := s.maxBidRepo.DeactivateAll(ctx, tx, lot.ID); err != nil {
			return wrapErr("deactivate max bids", err)
		}

		lot.CurrentBid = price
		lot.HighBidderID = &bid.BidderID
		lot.WinningBidID = &bid.ID
		lot.BidCount++
		lot.Transition(domain.LotStatusEnded, now)
		if err := s.lotRepo.Update(ctx, tx, lot); err != nil {
			return wrapErr("update lot", err)
		}

		order = newOrder(lot, bid, domain.OrderSourceBuyItNow, price, now)
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return wrapErr("create order", err)
		}

		ev := domain.NewLotEvent(domain.EventLotClosed, lot, now)
		ev.OrderID = &order.ID
		events = append(events, ev)
		return nil
	}, func() { s.publish(ctx, events) })
	if err != nil {
		s.logRejected(lotID, buyerID, 0, "buy it now", err)
		return nil, err
	}

	s.log.Info().
		Str("lot_id", lotID.String()).
		Str("buyer_id", buyerID.String()).
		Str("order_id", order.ID.String()).
		Int64("amount", order.WinningAmount).
		Msg("lot bought outright")

	s.handOff(ctx, order)
	return order, nil
}

// CloseLot ends a lot. A winning bid becomes won, its collateral is captured
// as the deposit, and an order is created. Closing a lot that is already
// terminal changes nothing.
func (s *BiddingEngineImpl) CloseLot(ctx context.Context, lotID uuid.UUID) (*ports.CloseOutcome, error) {
	var (
		out    *ports.CloseOutcome
		events []domain.LotEvent
	)
	err := s.guard.run(ctx, lotID, func(tx pgx.Tx, lot *domain.Lot) error {
		if lot.IsTerminal() {
			out = &ports.CloseOutcome{Lot: lot, AlreadyClosed: true}
			if lot.Status == domain.LotStatusEnded {
				order, err := s.orderRepo.GetByLotIDForUpdate(ctx, tx, lot.ID)
				if err != nil {
					return wrapErr("get order", err)
				}
				out.Order = order
			}
			return nil
		}

		now := s.now()
		lot.Transition(domain.LotStatusEnded, now)
		out = &ports.CloseOutcome{Lot: lot}

		if lot.WinningBidID != nil {
			order, err := s.settle(ctx, tx, lot, now)
			if err != nil {
				return err
			}
			out.Order = order
		}

		if err := s.maxBidRepo.DeactivateAll(ctx, tx, lot.ID); err != nil {
			return wrapErr("deactivate max bids", err)
		}
		if err := s.lotRepo.Update(ctx, tx, lot); err != nil {
			return wrapErr("update lot", err)
		}

		ev := domain.NewLotEvent(domain.EventLotClosed, lot, now)
		if out.Order != nil {
			ev.OrderID = &out.Order.ID
		}
		events = append(events, ev)
		return nil
	}, func() { s.publish(ctx, events) })
	if err != nil {
		s.log.Error().Err(err).Str("lot_id", lotID.String()).Msg("failed to close lot")
		return nil, err
	}
	if out.AlreadyClosed {
		return out, nil
	}

	logEvt := s.log.Info().Str("lot_id", lotID.String()).Int64("final_bid", out.Lot.CurrentBid)
	if out.Order != nil {
		logEvt = logEvt.Str("order_id", out.Order.ID.String()).Str("buyer_id", out.Order.BuyerID.String())
	}
	logEvt.Msg("lot closed")

	if out.Order != nil {
		s.handOff(ctx, out.Order)
	}
	return out, nil
}

func (s *BiddingEngineImpl) settle(ctx context.Context, tx pgx.Tx, lot *domain.Lot, now time.Time) (*domain.Order, error) {
	bid, err := s.bidRepo.Get(ctx, tx, *lot.WinningBidID)
	if err != nil {
		return nil, wrapErr("get winning bid", err)
	}
	if bid == nil {
		return nil, apperror.ErrInvariantViolation(fmt.Errorf("lot %s points at missing bid %s", lot.ID, *lot.WinningBidID))
	}

	var deposit int64
	if bid.ReservationID != nil {
		reservation, err := s.ledger.GetReservation(ctx, tx, *bid.ReservationID)
		if err != nil {
			return nil, err
		}
		deposit = reservation.Amount
		if err := s.ledger.Capture(ctx, tx, reservation.ID, deposit, "lot:"+lot.ID.String()); err != nil {
			return nil, err
		}
	}
	if err := s.bidRepo.UpdateStatus(ctx, tx, bid.ID, domain.BidStatusWon); err != nil {
		return nil, wrapErr("mark bid won", err)
	}
	bid.Status = domain.BidStatusWon

	order := newOrder(lot, bid, domain.OrderSourceAuction, deposit, now)
	if err := s.orderRepo.Create(ctx, tx, order); err != nil {
		return nil, wrapErr("create order", err)
	}
	return order, nil
}

// CancelLot withdraws a lot that has not ended. The standing winner's
// collateral goes back to available.
func (s *BiddingEngineImpl) CancelLot(ctx context.Context, lotID uuid.UUID) (*domain.Lot, error) {
	var events []domain.LotEvent
	var cancelled *domain.Lot
	err := s.guard.run(ctx, lotID, func(tx pgx.Tx, lot *domain.Lot) error {
		cancelled = lot
		if lot.Status == domain.LotStatusCancelled {
			return nil
		}
		if lot.Status == domain.LotStatusEnded {
			return apperror.ErrLotAlreadyClosed()
		}

		now := s.now()
		if lot.WinningBidID != nil {
			bid, err := s.bidRepo.Get(ctx, tx, *lot.WinningBidID)
			if err != nil {
				return wrapErr("get winning bid", err)
			}
			if bid != nil {
				if bid.ReservationID != nil {
					if _, err := s.ledger.Lock(ctx, tx, bid.BidderID); err != nil {
						return err
					}
					if err := s.ledger.Release(ctx, tx, *bid.ReservationID); err != nil {
						return err
					}
				}
				if err := s.bidRepo.UpdateStatus(ctx, tx, bid.ID, domain.BidStatusCancelled); err != nil {
					return wrapErr("cancel bid", err)
				}
			}
		}
		if err := s.maxBidRepo.DeactivateAll(ctx, tx, lot.ID); err != nil {
			return wrapErr("deactivate max bids", err)
		}

		lot.Transition(domain.LotStatusCancelled, now)
		if err := s.lotRepo.Update(ctx, tx, lot); err != nil {
			return wrapErr("update lot", err)
		}
		events = append(events, domain.NewLotEvent(domain.EventLotStatusChanged, lot, now))
		return nil
	}, func() { s.publish(ctx, events) })
	if err != nil {
		return nil, err
	}

	if len(events) > 0 {
		s.log.Info().Str("lot_id", lotID.String()).Msg("lot cancelled")
	}
	return cancelled, nil
}

// ChargeStorageFee debits the buyer for days the order has gone unpaid past
// its deadline and adds the fee to the order.
func (s *BiddingEngineImpl) ChargeStorageFee(ctx context.Context, lotID uuid.UUID, daysOverdue int) (*domain.Order, error) {
	if daysOverdue <= 0 {
		return nil, apperror.Validation("days overdue must be positive")
	}
	amount := fees.StorageFee(daysOverdue)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	order, err := s.orderRepo.GetByLotIDForUpdate(ctx, dbTx, lotID)
	if err != nil {
		return nil, wrapErr("get order", err)
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}

	if _, err := s.ledger.ChargeFee(ctx, dbTx, order.BuyerID, amount, "order:"+order.ID.String(),
		fmt.Sprintf("Storage fee for %d days overdue", daysOverdue)); err != nil {
		return nil, err
	}
	if err := s.orderRepo.AddStorageFee(ctx, dbTx, order.ID, amount); err != nil {
		return nil, wrapErr("add storage fee", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	order.StorageFees += amount
	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("buyer_id", order.BuyerID.String()).
		Int("days_overdue", daysOverdue).
		Int64("amount", amount).
		Msg("storage fee charged")
	return order, nil
}

func newOrder(lot *domain.Lot, bid *domain.Bid, source domain.OrderSource, deposit int64, now time.Time) *domain.Order {
	b := fees.Compute(bid.Amount)
	return &domain.Order{
		ID:              uuid.New(),
		LotID:           lot.ID,
		BuyerID:         bid.BidderID,
		WinningBidID:    bid.ID,
		WinningAmount:   bid.Amount,
		ServiceFee:      b.ServiceFee,
		BuyerPremium:    b.BuyerPremium,
		TotalDue:        b.AmountDue(deposit),
		DepositCaptured: deposit,
		Source:          source,
		Status:          domain.OrderStatusPendingPayment,
		HandoffStatus:   domain.HandoffStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (s *BiddingEngineImpl) publish(ctx context.Context, events []domain.LotEvent) {
	if s.events == nil {
		return
	}
	for _, ev := range events {
		if err := s.events.Publish(ctx, ev); err != nil {
			s.log.Warn().Err(err).
				Str("lot_id", ev.LotID.String()).
				Str("event", string(ev.Type)).
				Msg("failed to publish lot event")
		}
	}
}

func (s *BiddingEngineImpl) handOff(ctx context.Context, order *domain.Order) {
	if s.handoff == nil {
		return
	}
	if err := s.handoff.Handoff(ctx, order); err != nil {
		s.log.Error().Err(err).Str("order_id", order.ID.String()).Msg("order handoff failed")
	}
}

func (s *BiddingEngineImpl) logRejected(lotID, userID uuid.UUID, amount int64, kind string, err error) {
	evt := s.log.Warn()
	if apperror.HasCode(err, apperror.CodeInternal) || apperror.HasCode(err, apperror.CodeInvariantViolation) {
		evt = s.log.Error()
	}
	evt.Err(err).
		Str("lot_id", lotID.String()).
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Msgf("%s rejected", kind)
}
