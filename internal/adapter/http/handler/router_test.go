package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vehicle-auction-engine/internal/adapter/http/middleware"
	"vehicle-auction-engine/internal/adapter/realtime"
	"vehicle-auction-engine/internal/core/domain"
	"vehicle-auction-engine/internal/core/ports"
	"vehicle-auction-engine/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type routerMocks struct {
	ledger *mocks.MockWalletLedger
	engine *mocks.MockBiddingEngine
	lots   *mocks.MockLotService
	tokens *mocks.MockTokenService
	hashes *mocks.MockHashService
	audit  *mocks.MockAuditService
	hub    *realtime.Hub
}

func newTestRouter(t *testing.T) (*gin.Engine, routerMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := routerMocks{
		ledger: mocks.NewMockWalletLedger(ctrl),
		engine: mocks.NewMockBiddingEngine(ctrl),
		lots:   mocks.NewMockLotService(ctrl),
		tokens: mocks.NewMockTokenService(ctrl),
		hashes: mocks.NewMockHashService(ctrl),
		audit:  mocks.NewMockAuditService(ctrl),
		hub:    realtime.NewHub(zerolog.Nop()),
	}
	r := SetupRouter(RouterDeps{
		Ledger:          m.ledger,
		Engine:          m.engine,
		Lots:            m.lots,
		SigSvc:          mocks.NewMockSignatureService(ctrl),
		HashSvc:         m.hashes,
		TokenSvc:        m.tokens,
		NonceStore:      mocks.NewMockNonceStore(ctrl),
		Funding:         middleware.FundingCredentials{AccessKey: "gw", Secret: "secret"},
		OperatorKeyHash: "$argon2id$stub",
		Hub:             m.hub,
		AuditSvc:        m.audit,
		Logger:          zerolog.Nop(),
	})
	return r, m
}

func TestRouter_Health(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}

func TestRouter_AuthGroups(t *testing.T) {
	r, _ := newTestRouter(t)
	lotPath := "/api/v1/lots/" + uuid.NewString()

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/wallet"},
		{http.MethodPost, lotPath + "/bids"},
		{http.MethodPut, lotPath + "/max-bid"},
		{http.MethodPost, "/api/v1/lots"},
		{http.MethodPost, lotPath + "/close"},
		{http.MethodPost, "/api/v1/funding/deposits"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRouter_BidderPlacesBid(t *testing.T) {
	r, m := newTestRouter(t)

	userID, lotID := uuid.New(), uuid.New()
	m.tokens.EXPECT().Validate("tok").Return(&ports.TokenClaims{UserID: userID}, nil)
	m.engine.EXPECT().PlaceBid(gomock.Any(), lotID, userID, int64(250_000)).Return(&ports.BidOutcome{
		Lot:     testLot(lotID),
		Bid:     &domain.Bid{ID: uuid.New(), LotID: lotID, BidderID: userID, Amount: 250_000},
		Winning: true,
	}, nil)
	m.audit.EXPECT().Log(gomock.Any(), gomock.Any()).Times(1)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/lots/"+lotID.String()+"/bids", bytes.NewBufferString(`{"amount":250000}`))
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRouter_OperatorClosesLot(t *testing.T) {
	r, m := newTestRouter(t)

	lotID := uuid.New()
	m.hashes.EXPECT().Verify("op-key", "$argon2id$stub").Return(true, nil)
	lot := testLot(lotID)
	lot.Status = domain.LotStatusEnded
	m.engine.EXPECT().CloseLot(gomock.Any(), lotID).Return(&ports.CloseOutcome{Lot: lot}, nil)
	m.audit.EXPECT().Log(gomock.Any(), gomock.Any()).Times(1)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/lots/"+lotID.String()+"/close", nil)
	req.Header.Set(middleware.HeaderOperatorKey, "op-key")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_WebsocketRequiresLotID(t *testing.T) {
	r, m := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	m.tokens.EXPECT().Validate("bad").Return(nil, assert.AnError)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?lot_id="+uuid.NewString()+"&token=bad", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_WebsocketStreamsLotEvents(t *testing.T) {
	r, m := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	lotID, userID := uuid.New(), uuid.New()
	m.tokens.EXPECT().Validate("tok").Return(&ports.TokenClaims{UserID: userID}, nil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?lot_id=" + lotID.String() + "&token=tok"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return m.hub.Count(lotID) == 1 }, time.Second, 5*time.Millisecond)
	m.hub.Dispatch(domain.LotEvent{Type: domain.EventOutbid, LotID: lotID, UserID: &userID})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev domain.LotEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, domain.EventOutbid, ev.Type)
}
