package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vehicle-auction-engine/internal/adapter/http/middleware"
	"vehicle-auction-engine/internal/core/domain"
	"vehicle-auction-engine/internal/core/ports"
	"vehicle-auction-engine/internal/core/ports/mocks"
	"vehicle-auction-engine/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newContext builds a test context; userID, when set, plays the JWT middleware.
func newContext(method, target string, body interface{}, userID *uuid.UUID, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params
	if userID != nil {
		c.Set(middleware.CtxUserID, *userID)
	}
	return c, w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func idParam(id uuid.UUID) gin.Param {
	return gin.Param{Key: "id", Value: id.String()}
}

func testLot(id uuid.UUID) *domain.Lot {
	return &domain.Lot{
		ID:           id,
		Title:        "2018 Ford Ranger",
		Status:       domain.LotStatusLive,
		CurrentBid:   200_000,
		BidIncrement: 50_000,
		EndsAt:       time.Now().Add(time.Hour),
	}
}

// --- Wallet Handler Tests ---

func TestGetWallet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockWalletLedger(ctrl)
	h := NewWalletHandler(ledger)

	userID := uuid.New()
	ledger.EXPECT().GetWallet(gomock.Any(), userID).Return(&domain.Wallet{
		UserID:    userID,
		Available: 80_000,
		Reserved:  20_000,
	}, nil)

	c, w := newContext(http.MethodGet, "/api/v1/wallet", nil, &userID)
	h.GetWallet(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, userID.String(), data["user_id"])
	assert.Equal(t, float64(80_000), data["available"])
	assert.Equal(t, float64(20_000), data["reserved"])
	assert.Equal(t, float64(800_000), data["bidding_power"])
}

func TestGetWallet_Unauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWalletHandler(mocks.NewMockWalletLedger(ctrl))

	c, w := newContext(http.MethodGet, "/api/v1/wallet", nil, nil)
	h.GetWallet(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetWallet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockWalletLedger(ctrl)
	h := NewWalletHandler(ledger)

	userID := uuid.New()
	ledger.EXPECT().GetWallet(gomock.Any(), userID).Return(nil, apperror.ErrNotFound("wallet"))

	c, w := newContext(http.MethodGet, "/api/v1/wallet", nil, &userID)
	h.GetWallet(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "LOT_002", decodeErrorCode(t, w))
}

func TestListTransactions_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockWalletLedger(ctrl)
	h := NewWalletHandler(ledger)

	userID := uuid.New()
	ledger.EXPECT().ListTransactions(gomock.Any(), userID, 2, 10).Return([]domain.WalletTransaction{
		{ID: uuid.New(), UserID: userID, Type: domain.TransactionTypeDeposit, Amount: 500_000, CreatedAt: time.Now()},
	}, int64(11), nil)

	c, w := newContext(http.MethodGet, "/api/v1/wallet/transactions?page=2&page_size=10", nil, &userID)
	h.ListTransactions(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Len(t, data["items"].([]interface{}), 1)
	assert.Equal(t, float64(11), data["total"])
	assert.Equal(t, float64(2), data["total_pages"])
}

func TestListTransactions_ClampsPaging(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockWalletLedger(ctrl)
	h := NewWalletHandler(ledger)

	userID := uuid.New()
	ledger.EXPECT().ListTransactions(gomock.Any(), userID, 1, 20).Return(nil, int64(0), nil)

	c, w := newContext(http.MethodGet, "/api/v1/wallet/transactions?page=-3&page_size=1000", nil, &userID)
	h.ListTransactions(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Empty(t, data["items"].([]interface{}))
}

func TestListTransactions_ServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockWalletLedger(ctrl)
	h := NewWalletHandler(ledger)

	userID := uuid.New()
	ledger.EXPECT().ListTransactions(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, int64(0), errors.New("db down"))

	c, w := newContext(http.MethodGet, "/api/v1/wallet/transactions", nil, &userID)
	h.ListTransactions(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequiredDeposit(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		want       float64
	}{
		{"ten percent of target", "target=5000000", http.StatusOK, 500_000},
		{"minimum deposit floor", "target=200000", http.StatusOK, 100_000},
		{"missing target", "", http.StatusBadRequest, 0},
		{"negative target", "target=-5", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewWalletHandler(nil)
			userID := uuid.New()

			c, w := newContext(http.MethodGet, "/api/v1/wallet/required-deposit?"+tt.query, nil, &userID)
			h.RequiredDeposit(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.want, decodeData(t, w)["required_deposit"])
			}
		})
	}
}

func TestWithdraw_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockWalletLedger(ctrl)
	h := NewWalletHandler(ledger)

	userID := uuid.New()
	ledger.EXPECT().Withdraw(gomock.Any(), userID, int64(30_000), "WD-001").Return(&domain.WalletTransaction{
		ID:     uuid.New(),
		UserID: userID,
		Type:   domain.TransactionTypeWithdrawal,
		Amount: 30_000,
	}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/wallet/withdraw", gin.H{"amount": 30_000, "reference": " WD-001 "}, &userID)
	h.Withdraw(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "withdrawal", decodeData(t, w)["type"])
}

func TestWithdraw_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWalletHandler(mocks.NewMockWalletLedger(ctrl))
	userID := uuid.New()

	c, w := newContext(http.MethodPost, "/api/v1/wallet/withdraw", gin.H{"amount": 0}, &userID)
	h.Withdraw(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockWalletLedger(ctrl)
	h := NewWalletHandler(ledger)

	userID := uuid.New()
	ledger.EXPECT().Withdraw(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInsufficientFunds())

	c, w := newContext(http.MethodPost, "/api/v1/wallet/withdraw", gin.H{"amount": 1_000_000, "reference": "WD-002"}, &userID)
	h.Withdraw(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "WAL_001", decodeErrorCode(t, w))
}

// --- Funding Handler Tests ---

func TestDeposit_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockWalletLedger(ctrl)
	h := NewFundingHandler(ledger)

	userID := uuid.New()
	ledger.EXPECT().Deposit(gomock.Any(), userID, int64(500_000), "GW-REF-001").Return(&domain.WalletTransaction{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      domain.TransactionTypeDeposit,
		Amount:    500_000,
		Reference: "GW-REF-001",
	}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/funding/deposits", gin.H{
		"user_id":   userID.String(),
		"amount":    500_000,
		"reference": "GW-REF-001",
	}, nil)
	h.Deposit(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "deposit", data["type"])
	assert.Equal(t, "GW-REF-001", data["reference"])
}

func TestDeposit_InvalidUserID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewFundingHandler(mocks.NewMockWalletLedger(ctrl))

	c, w := newContext(http.MethodPost, "/api/v1/funding/deposits", gin.H{
		"user_id":   "bidder-7",
		"amount":    500_000,
		"reference": "GW-REF-001",
	}, nil)
	h.Deposit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeposit_Duplicate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockWalletLedger(ctrl)
	h := NewFundingHandler(ledger)

	ledger.EXPECT().Deposit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, apperror.ErrDuplicateDeposit())

	c, w := newContext(http.MethodPost, "/api/v1/funding/deposits", gin.H{
		"user_id":   uuid.NewString(),
		"amount":    250_000,
		"reference": "GW-REF-001",
	}, nil)
	h.Deposit(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "WAL_004", decodeErrorCode(t, w))
}

func TestRefund_UsesRefundEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockWalletLedger(ctrl)
	h := NewFundingHandler(ledger)

	userID := uuid.New()
	ledger.EXPECT().Refund(gomock.Any(), userID, int64(75_000), "GW-RF-9").Return(&domain.WalletTransaction{
		ID:     uuid.New(),
		UserID: userID,
		Type:   domain.TransactionTypeRefund,
		Amount: 75_000,
	}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/funding/refunds", gin.H{
		"user_id":   userID.String(),
		"amount":    75_000,
		"reference": "GW-RF-9",
	}, nil)
	h.Refund(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "refund", decodeData(t, w)["type"])
}

// --- Lot Handler Tests ---

func TestGetLot_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	lots := mocks.NewMockLotService(ctrl)
	h := NewLotHandler(lots, mocks.NewMockBiddingEngine(ctrl))

	lotID := uuid.New()
	lots.EXPECT().GetLot(gomock.Any(), lotID).Return(testLot(lotID), nil)

	userID := uuid.New()
	c, w := newContext(http.MethodGet, "/api/v1/lots/"+lotID.String(), nil, &userID, idParam(lotID))
	h.GetLot(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, lotID.String(), data["id"])
	assert.Equal(t, "live", data["status"])
	assert.Equal(t, float64(250_000), data["quick_bid"])
}

func TestGetLot_InvalidID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewLotHandler(mocks.NewMockLotService(ctrl), mocks.NewMockBiddingEngine(ctrl))

	c, w := newContext(http.MethodGet, "/api/v1/lots/abc", nil, nil, gin.Param{Key: "id", Value: "abc"})
	h.GetLot(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "REQ_001", decodeErrorCode(t, w))
}

func TestListBids_EmptyIsArray(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	lots := mocks.NewMockLotService(ctrl)
	h := NewLotHandler(lots, mocks.NewMockBiddingEngine(ctrl))

	lotID := uuid.New()
	lots.EXPECT().ListBids(gomock.Any(), lotID).Return(nil, nil)

	c, w := newContext(http.MethodGet, "/", nil, nil, idParam(lotID))
	h.ListBids(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestPlaceBid_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := mocks.NewMockBiddingEngine(ctrl)
	h := NewLotHandler(mocks.NewMockLotService(ctrl), engine)

	lotID, userID := uuid.New(), uuid.New()
	lot := testLot(lotID)
	lot.CurrentBid = 250_000
	lot.HighBidderID = &userID
	bid := &domain.Bid{ID: uuid.New(), LotID: lotID, BidderID: userID, Amount: 250_000, Type: domain.BidTypeManual, Status: domain.BidStatusWinning}

	engine.EXPECT().PlaceBid(gomock.Any(), lotID, userID, int64(250_000)).Return(&ports.BidOutcome{
		Lot:     lot,
		Bid:     bid,
		Winning: true,
	}, nil)

	c, w := newContext(http.MethodPost, "/", gin.H{"amount": 250_000}, &userID, idParam(lotID))
	h.PlaceBid(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, true, data["winning"])
	assert.Equal(t, float64(300_000), data["lot"].(map[string]interface{})["quick_bid"])
	assert.Equal(t, bid.ID.String(), data["bid"].(map[string]interface{})["id"])
	assert.NotContains(t, data, "auto_bid")
}

func TestPlaceBid_TooLow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := mocks.NewMockBiddingEngine(ctrl)
	h := NewLotHandler(mocks.NewMockLotService(ctrl), engine)

	lotID, userID := uuid.New(), uuid.New()
	engine.EXPECT().PlaceBid(gomock.Any(), lotID, userID, int64(210_000)).Return(nil, apperror.ErrBidTooLow(250_000))

	c, w := newContext(http.MethodPost, "/", gin.H{"amount": 210_000}, &userID, idParam(lotID))
	h.PlaceBid(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "BID_001", decodeErrorCode(t, w))
}

func TestPlaceBid_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewLotHandler(mocks.NewMockLotService(ctrl), mocks.NewMockBiddingEngine(ctrl))
	userID := uuid.New()

	c, w := newContext(http.MethodPost, "/", gin.H{"amount": -1}, &userID, idParam(uuid.New()))
	h.PlaceBid(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetMaxBid_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := mocks.NewMockBiddingEngine(ctrl)
	h := NewLotHandler(mocks.NewMockLotService(ctrl), engine)

	lotID, userID := uuid.New(), uuid.New()
	maxBid := &domain.MaxBid{ID: uuid.New(), LotID: lotID, BidderID: userID, MaxAmount: 1_000_000, Active: true}
	engine.EXPECT().SetMaxBid(gomock.Any(), lotID, userID, int64(1_000_000)).Return(&ports.BidOutcome{
		Lot:     testLot(lotID),
		MaxBid:  maxBid,
		Winning: true,
	}, nil)

	c, w := newContext(http.MethodPut, "/", gin.H{"max_amount": 1_000_000}, &userID, idParam(lotID))
	h.SetMaxBid(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(1_000_000), data["max_bid"].(map[string]interface{})["max_amount"])
	assert.NotContains(t, data, "bid")
}

func TestBuyItNow_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := mocks.NewMockBiddingEngine(ctrl)
	h := NewLotHandler(mocks.NewMockLotService(ctrl), engine)

	lotID, userID := uuid.New(), uuid.New()
	engine.EXPECT().BuyItNow(gomock.Any(), lotID, userID).Return(&domain.Order{
		ID:            uuid.New(),
		LotID:         lotID,
		BuyerID:       userID,
		WinningAmount: 2_100_000,
		ServiceFee:    decimal.NewFromInt(147_000),
		BuyerPremium:  decimal.NewFromInt(105_000),
		TotalDue:      decimal.NewFromInt(2_142_000),
		Source:        domain.OrderSourceBuyItNow,
		Status:        domain.OrderStatusPendingPayment,
	}, nil)

	c, w := newContext(http.MethodPost, "/", nil, &userID, idParam(lotID))
	h.BuyItNow(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "buy_it_now", data["source"])
	assert.Equal(t, "2142000", data["total_due"])
}

func TestBuyItNow_Unavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := mocks.NewMockBiddingEngine(ctrl)
	h := NewLotHandler(mocks.NewMockLotService(ctrl), engine)

	userID := uuid.New()
	engine.EXPECT().BuyItNow(gomock.Any(), gomock.Any(), userID).Return(nil, apperror.ErrBuyItNowUnavailable())

	c, w := newContext(http.MethodPost, "/", nil, &userID, idParam(uuid.New()))
	h.BuyItNow(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "BID_004", decodeErrorCode(t, w))
}

// --- Operator Handler Tests ---

func TestCreateLot_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	lots := mocks.NewMockLotService(ctrl)
	h := NewOperatorHandler(lots, mocks.NewMockBiddingEngine(ctrl))

	endsAt := time.Date(2030, 1, 2, 15, 0, 0, 0, time.UTC)
	lotID := uuid.New()
	lots.EXPECT().CreateLot(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.CreateLotRequest) (*domain.Lot, error) {
			assert.Equal(t, "2016 Isuzu D-Max", req.Title)
			assert.Equal(t, int64(100_000), req.StartingBid)
			assert.True(t, req.EndsAt.Equal(endsAt))
			lot := testLot(lotID)
			lot.Status = domain.LotStatusScheduled
			return lot, nil
		},
	)

	c, w := newContext(http.MethodPost, "/api/v1/lots", gin.H{
		"title":        " 2016 Isuzu D-Max ",
		"starting_bid": 100_000,
		"ends_at":      endsAt.Format(time.RFC3339),
	}, nil)
	h.CreateLot(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "scheduled", decodeData(t, w)["status"])
}

func TestCreateLot_MissingTitle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewOperatorHandler(mocks.NewMockLotService(ctrl), mocks.NewMockBiddingEngine(ctrl))

	c, w := newContext(http.MethodPost, "/api/v1/lots", gin.H{"ends_at": time.Now().Add(time.Hour).Format(time.RFC3339)}, nil)
	h.CreateLot(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLifecycle_InvalidTransition(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	lots := mocks.NewMockLotService(ctrl)
	h := NewOperatorHandler(lots, mocks.NewMockBiddingEngine(ctrl))

	lotID := uuid.New()
	lots.EXPECT().PauseLot(gomock.Any(), lotID).Return(nil, apperror.ErrInvalidTransition("scheduled", "paused"))

	c, w := newContext(http.MethodPost, "/", nil, nil, idParam(lotID))
	h.PauseLot(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "LOT_001", decodeErrorCode(t, w))
}

func TestLifecycle_StartResumeCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	lots := mocks.NewMockLotService(ctrl)
	engine := mocks.NewMockBiddingEngine(ctrl)
	h := NewOperatorHandler(lots, engine)

	lotID := uuid.New()
	lots.EXPECT().StartLot(gomock.Any(), lotID).Return(testLot(lotID), nil)
	lots.EXPECT().ResumeLot(gomock.Any(), lotID).Return(testLot(lotID), nil)
	cancelled := testLot(lotID)
	cancelled.Status = domain.LotStatusCancelled
	engine.EXPECT().CancelLot(gomock.Any(), lotID).Return(cancelled, nil)

	for _, fn := range []gin.HandlerFunc{h.StartLot, h.ResumeLot} {
		c, w := newContext(http.MethodPost, "/", nil, nil, idParam(lotID))
		fn(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "live", decodeData(t, w)["status"])
	}

	c, w := newContext(http.MethodPost, "/", nil, nil, idParam(lotID))
	h.CancelLot(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", decodeData(t, w)["status"])
}

func TestCloseLot_ReportsExistingResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := mocks.NewMockBiddingEngine(ctrl)
	h := NewOperatorHandler(mocks.NewMockLotService(ctrl), engine)

	lotID := uuid.New()
	lot := testLot(lotID)
	lot.Status = domain.LotStatusEnded
	order := &domain.Order{ID: uuid.New(), LotID: lotID, WinningAmount: 250_000, TotalDue: decimal.NewFromInt(312_500)}
	engine.EXPECT().CloseLot(gomock.Any(), lotID).Return(&ports.CloseOutcome{Lot: lot, Order: order, AlreadyClosed: true}, nil)

	c, w := newContext(http.MethodPost, "/", nil, nil, idParam(lotID))
	h.CloseLot(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, true, data["already_closed"])
	assert.Equal(t, order.ID.String(), data["order"].(map[string]interface{})["id"])
}

func TestChargeStorageFee(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := mocks.NewMockBiddingEngine(ctrl)
	h := NewOperatorHandler(mocks.NewMockLotService(ctrl), engine)

	lotID := uuid.New()
	engine.EXPECT().ChargeStorageFee(gomock.Any(), lotID, 3).Return(&domain.Order{ID: uuid.New(), LotID: lotID, StorageFees: 30_000}, nil)

	c, w := newContext(http.MethodPost, "/", gin.H{"days_overdue": 3}, nil, idParam(lotID))
	h.ChargeStorageFee(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(30_000), decodeData(t, w)["storage_fees"])

	c, w = newContext(http.MethodPost, "/", gin.H{"days_overdue": 0}, nil, idParam(lotID))
	h.ChargeStorageFee(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Health Check Tests ---

type fakeChecker struct {
	name string
	err  error
}

func (f fakeChecker) Ping(context.Context) error { return f.err }
func (f fakeChecker) Name() string               { return f.name }

func TestHealthCheck(t *testing.T) {
	c, w := newContext(http.MethodGet, "/health", nil, nil)
	HealthCheck(fakeChecker{name: "postgresql"}, fakeChecker{name: "redis"})(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	c, w := newContext(http.MethodGet, "/health", nil, nil)
	HealthCheck(fakeChecker{name: "postgresql"}, fakeChecker{name: "redis", err: errors.New("connection refused")})(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
	deps := resp["dependencies"].(map[string]interface{})
	assert.Equal(t, "unhealthy", deps["redis"].(map[string]interface{})["status"])
}

func TestSwaggerUI(t *testing.T) {
	c, w := newContext(http.MethodGet, "/swagger", nil, nil)

	SwaggerUI(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "swagger-ui")
	assert.Contains(t, w.Body.String(), "/swagger/spec")
}

func TestSwaggerSpec_Loaded(t *testing.T) {
	SetSwaggerSpec([]byte("openapi: '3.0.0'\ninfo:\n  title: Test"))
	defer SetSwaggerSpec(nil)

	c, w := newContext(http.MethodGet, "/swagger/spec", nil, nil)
	SwaggerSpec(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi")
}

func TestSwaggerSpec_NotLoaded(t *testing.T) {
	SetSwaggerSpec(nil)

	c, w := newContext(http.MethodGet, "/swagger/spec", nil, nil)
	SwaggerSpec(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
