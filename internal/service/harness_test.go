package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"vehicle-auction-engine/internal/adapter/storage/memory"
	redisStorage "vehicle-auction-engine/internal/adapter/storage/redis"
	"vehicle-auction-engine/internal/core/domain"
	"vehicle-auction-engine/internal/core/ports"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.LotEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.LotEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) ofType(t domain.EventType) []domain.LotEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.LotEvent
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type recordingHandoff struct {
	mu     sync.Mutex
	orders []*domain.Order
}

func (h *recordingHandoff) Handoff(_ context.Context, o *domain.Order) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.orders = append(h.orders, o)
	return nil
}

func (h *recordingHandoff) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.orders)
}

// harness wires the real services over the memory store and a miniredis
// idempotency cache.
type harness struct {
	store        *memory.Store
	clock        *testClock
	wallets      *memory.WalletRepo
	ledgerRepo   *memory.LedgerRepo
	reservations *memory.ReservationRepo
	lotRepo      *memory.LotRepo
	bidRepo      *memory.BidRepo
	maxBids      *memory.MaxBidRepo
	orders       *memory.OrderRepo
	ledger       *WalletLedgerImpl
	engine       *BiddingEngineImpl
	lots         *LotServiceImpl
	events       *recordingPublisher
	handoff      *recordingHandoff
	redis        *miniredis.Miniredis
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	h := &harness{
		store:   memory.NewStore(),
		clock:   newTestClock(),
		events:  &recordingPublisher{},
		handoff: &recordingHandoff{},
		redis:   mr,
	}
	h.wallets = memory.NewWalletRepo(h.store)
	h.ledgerRepo = memory.NewLedgerRepo(h.store)
	h.reservations = memory.NewReservationRepo(h.store)
	h.lotRepo = memory.NewLotRepo(h.store)
	h.bidRepo = memory.NewBidRepo(h.store)
	h.maxBids = memory.NewMaxBidRepo(h.store)
	h.orders = memory.NewOrderRepo(h.store)

	log := zerolog.Nop()
	h.ledger = NewWalletLedger(h.wallets, h.ledgerRepo, h.reservations, memory.NewCreditReplayRepo(h.store),
		redisStorage.NewCreditReplayCache(rdb), h.store, log)
	h.ledger.now = h.clock.Now

	locks := NewLotLocks(2 * time.Second)
	h.engine = NewBiddingEngine(locks, h.lotRepo, h.bidRepo, h.maxBids, h.orders, h.ledger, h.store,
		h.events, h.handoff, 0, log)
	h.engine.now = h.clock.Now

	h.lots = NewLotService(locks, h.lotRepo, h.bidRepo, h.store, h.events, 50_000, log)
	h.lots.now = h.clock.Now
	return h
}

func (h *harness) fund(t *testing.T, userID uuid.UUID, amount int64) {
	t.Helper()
	_, err := h.ledger.Deposit(context.Background(), userID, amount, "dep-"+uuid.NewString())
	require.NoError(t, err)
}

func (h *harness) newBidder(t *testing.T, amount int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	h.fund(t, id, amount)
	return id
}

func (h *harness) liveLot(t *testing.T, startingBid, increment int64) *domain.Lot {
	t.Helper()
	return h.liveLotWith(t, ports.CreateLotRequest{
		Title:        "2019 Toyota Corolla",
		StartingBid:  startingBid,
		BidIncrement: increment,
		EndsAt:       h.clock.Now().Add(time.Hour),
	})
}

func (h *harness) liveLotWith(t *testing.T, req ports.CreateLotRequest) *domain.Lot {
	t.Helper()
	ctx := context.Background()
	lot, err := h.lots.CreateLot(ctx, req)
	require.NoError(t, err)
	lot, err = h.lots.StartLot(ctx, lot.ID)
	require.NoError(t, err)
	return lot
}

func (h *harness) wallet(t *testing.T, userID uuid.UUID) *domain.Wallet {
	t.Helper()
	w, err := h.ledger.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	return w
}

func (h *harness) lot(t *testing.T, id uuid.UUID) *domain.Lot {
	t.Helper()
	lot, err := h.lots.GetLot(context.Background(), id)
	require.NoError(t, err)
	return lot
}

func (h *harness) winningBids(t *testing.T, lotID uuid.UUID) []domain.Bid {
	t.Helper()
	bids, err := h.bidRepo.ListByLot(context.Background(), lotID)
	require.NoError(t, err)
	var out []domain.Bid
	for _, b := range bids {
		if b.Status == domain.BidStatusWinning {
			out = append(out, b)
		}
	}
	return out
}
