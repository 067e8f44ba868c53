package postgres

import (
	"context"
	"testing"
	"time"

	"vehicle-auction-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLot() *domain.Lot {
	now := time.Now().UTC().Truncate(time.Microsecond)
	bidder, bid := uuid.New(), uuid.New()
	return &domain.Lot{
		ID:           uuid.New(),
		Title:        "2019 Toyota Corolla",
		Status:       domain.LotStatusLive,
		CurrentBid:   250_000,
		BidIncrement: 50_000,
		HighBidderID: &bidder,
		WinningBidID: &bid,
		EndsAt:       now.Add(time.Hour),
		BidCount:     3,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func lotColumns() []string {
	return []string{
		"id", "title", "status", "current_bid", "bid_increment", "high_bidder_id", "winning_bid_id",
		"buy_it_now_price", "buy_it_now_enabled", "ends_at", "paused_at", "bid_count", "created_at", "updated_at",
	}
}

func lotRow(l *domain.Lot) *pgxmock.Rows {
	return pgxmock.NewRows(lotColumns()).AddRow(
		l.ID, l.Title, l.Status, l.CurrentBid, l.BidIncrement, l.HighBidderID, l.WinningBidID,
		l.BuyItNowPrice, l.BuyItNowEnabled, l.EndsAt, l.PausedAt, l.BidCount, l.CreatedAt, l.UpdatedAt,
	)
}

func TestLotRepo_CreateAndLock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLotRepo(mock)
	lot := newTestLot()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO lots").
		WithArgs(lot.ID, lot.Title, lot.Status, lot.CurrentBid, lot.BidIncrement, lot.HighBidderID, lot.WinningBidID,
			lot.BuyItNowPrice, lot.BuyItNowEnabled, lot.EndsAt, lot.PausedAt, lot.BidCount, lot.CreatedAt, lot.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT .+ FROM lots WHERE id = \\$1 FOR UPDATE").
		WithArgs(lot.ID).
		WillReturnRows(lotRow(lot))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), tx, lot))

	got, err := repo.GetForUpdate(context.Background(), tx, lot.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.LotStatusLive, got.Status)
	assert.Equal(t, *lot.HighBidderID, *got.HighBidderID)
	assert.Equal(t, int64(300_000), got.QuickBid())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLotRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLotRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM lots WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(lotColumns()))

	got, err := repo.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestLotRepo_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLotRepo(mock)
	lot := newTestLot()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE lots SET status").
		WithArgs(lot.Status, lot.CurrentBid, lot.HighBidderID, lot.WinningBidID,
			lot.EndsAt, lot.PausedAt, lot.BidCount, lot.UpdatedAt, lot.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Update(context.Background(), tx, lot)
	assert.ErrorContains(t, err, "lot not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLotRepo_ListDue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLotRepo(mock)
	now := time.Now().UTC()
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT id FROM lots WHERE status = 'live' AND ends_at <= \\$1 ORDER BY ends_at LIMIT \\$2").
		WithArgs(now, 100).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(a).AddRow(b))

	ids, err := repo.ListDue(context.Background(), now, 100)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBidRepo_CreateGetAndList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBidRepo(mock)
	resID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)
	bid := &domain.Bid{
		ID:            uuid.New(),
		LotID:         uuid.New(),
		BidderID:      uuid.New(),
		Amount:        250_000,
		Type:          domain.BidTypeManual,
		Status:        domain.BidStatusWinning,
		ReservationID: &resID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	cols := []string{"id", "lot_id", "bidder_id", "amount", "type", "status", "reservation_id", "created_at", "updated_at"}
	row := func() *pgxmock.Rows {
		return pgxmock.NewRows(cols).AddRow(bid.ID, bid.LotID, bid.BidderID, bid.Amount, bid.Type, bid.Status,
			bid.ReservationID, bid.CreatedAt, bid.UpdatedAt)
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bids").
		WithArgs(bid.ID, bid.LotID, bid.BidderID, bid.Amount, bid.Type, bid.Status, bid.ReservationID, bid.CreatedAt, bid.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT .+ FROM bids WHERE id").WithArgs(bid.ID).WillReturnRows(row())
	mock.ExpectExec("UPDATE bids SET status").
		WithArgs(domain.BidStatusOutbid, pgxmock.AnyArg(), bid.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("SELECT .+ FROM bids WHERE lot_id = \\$1 ORDER BY created_at").WithArgs(bid.LotID).WillReturnRows(row())

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, tx, bid))
	got, err := repo.Get(ctx, tx, bid.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BidStatusWinning, got.Status)
	require.NoError(t, repo.UpdateStatus(ctx, tx, bid.ID, domain.BidStatusOutbid))

	bids, err := repo.ListByLot(ctx, bid.LotID)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, resID, *bids[0].ReservationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaxBidRepo_ReplaceDeactivatesPrevious(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMaxBidRepo(mock)
	now := time.Now().UTC().Truncate(time.Microsecond)
	m := &domain.MaxBid{
		ID:        uuid.New(),
		LotID:     uuid.New(),
		BidderID:  uuid.New(),
		MaxAmount: 1_000_000,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE max_bids SET active = FALSE .+ AND bidder_id = \\$3 AND active").
		WithArgs(m.UpdatedAt, m.LotID, m.BidderID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO max_bids").
		WithArgs(m.ID, m.LotID, m.BidderID, m.MaxAmount, true, m.CreatedAt, m.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT .+ FROM max_bids WHERE lot_id = \\$1 AND active ORDER BY created_at").
		WithArgs(m.LotID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "lot_id", "bidder_id", "max_amount", "active", "created_at", "updated_at"}).
			AddRow(m.ID, m.LotID, m.BidderID, m.MaxAmount, m.Active, m.CreatedAt, m.UpdatedAt))
	mock.ExpectExec("UPDATE max_bids SET active = FALSE .+ WHERE lot_id = \\$2 AND active").
		WithArgs(pgxmock.AnyArg(), m.LotID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Replace(ctx, tx, m))
	active, err := repo.ListActive(ctx, tx, m.LotID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(1_000_000), active[0].MaxAmount)
	require.NoError(t, repo.DeactivateAll(ctx, tx, m.LotID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_CreateAndLoad(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	now := time.Now().UTC().Truncate(time.Microsecond)
	o := &domain.Order{
		ID:              uuid.New(),
		LotID:           uuid.New(),
		BuyerID:         uuid.New(),
		WinningBidID:    uuid.New(),
		WinningAmount:   250_000,
		ServiceFee:      decimal.NewFromInt(75_000),
		BuyerPremium:    decimal.NewFromInt(12_500),
		TotalDue:        decimal.NewFromInt(312_500),
		DepositCaptured: 25_000,
		Source:          domain.OrderSourceAuction,
		Status:          domain.OrderStatusPendingPayment,
		HandoffStatus:   domain.HandoffStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	cols := orderColumns()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(o.ID, o.LotID, o.BuyerID, o.WinningBidID, o.WinningAmount, o.ServiceFee, o.BuyerPremium,
			o.TotalDue, o.DepositCaptured, o.StorageFees, o.Source, o.Status, o.HandoffStatus, o.CreatedAt, o.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT .+ FROM orders WHERE lot_id = \\$1 FOR UPDATE").
		WithArgs(o.LotID).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			o.ID, o.LotID, o.BuyerID, o.WinningBidID, o.WinningAmount, o.ServiceFee, o.BuyerPremium,
			o.TotalDue, o.DepositCaptured, o.StorageFees, o.Source, o.Status, o.HandoffStatus, o.CreatedAt, o.UpdatedAt))
	mock.ExpectExec("UPDATE orders SET storage_fees = storage_fees \\+ \\$1").
		WithArgs(int64(30_000), pgxmock.AnyArg(), o.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE orders SET handoff_status").
		WithArgs(domain.HandoffStatusDelivered, pgxmock.AnyArg(), o.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, tx, o))
	got, err := repo.GetByLotIDForUpdate(ctx, tx, o.LotID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.TotalDue.Equal(decimal.NewFromInt(312_500)))
	require.NoError(t, repo.AddStorageFee(ctx, tx, o.ID, 30_000))
	require.NoError(t, repo.UpdateHandoffStatus(ctx, o.ID, domain.HandoffStatusDelivered))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_GetByLotID_None(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	lotID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM orders WHERE lot_id").
		WithArgs(lotID).
		WillReturnRows(pgxmock.NewRows(orderColumns()))

	got, err := repo.GetByLotID(context.Background(), lotID)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func orderColumns() []string {
	return []string{
		"id", "lot_id", "buyer_id", "winning_bid_id", "winning_amount", "service_fee", "buyer_premium",
		"total_due", "deposit_captured", "storage_fees", "source", "status", "handoff_status", "created_at", "updated_at",
	}
}
