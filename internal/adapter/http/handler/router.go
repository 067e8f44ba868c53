package handler

import (
	"vehicle-auction-engine/internal/adapter/http/middleware"
	"vehicle-auction-engine/internal/adapter/realtime"
	redisStore "vehicle-auction-engine/internal/adapter/storage/redis"
	"vehicle-auction-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Ledger          ports.WalletLedger
	Engine          ports.BiddingEngine
	Lots            ports.LotService
	SigSvc          ports.SignatureService
	HashSvc         ports.HashService
	TokenSvc        ports.TokenService
	NonceStore      ports.NonceStore
	Funding         middleware.FundingCredentials
	OperatorKeyHash string
	Hub             *realtime.Hub              // nil = websocket feed disabled
	RateLimitStore  *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers  []ports.HealthChecker
	AuditSvc        ports.AuditService // nil = audit logging disabled
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	if deps.Hub != nil {
		r.GET("/ws", rl("ws"), LotStream(deps.Hub, deps.TokenSvc))
	}

	v1 := r.Group("/api/v1")

	// --- Funding gateway (HMAC) ---
	fundingAuth := middleware.FundingAuth(deps.Funding, deps.SigSvc, deps.NonceStore, deps.Logger)
	fundingHandler := NewFundingHandler(deps.Ledger)
	funding := v1.Group("/funding", fundingAuth, rl("funding"))
	{
		funding.POST("/deposits", fundingHandler.Deposit)
		funding.POST("/refunds", fundingHandler.Refund)
	}

	// --- Bidder routes (JWT) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.Ledger)
	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("", rl("wallet"), walletHandler.GetWallet)
		wallet.GET("/transactions", rl("wallet"), walletHandler.ListTransactions)
		wallet.GET("/required-deposit", rl("wallet"), walletHandler.RequiredDeposit)
		wallet.POST("/withdraw", rl("withdraw"), walletHandler.Withdraw)
	}

	lotHandler := NewLotHandler(deps.Lots, deps.Engine)
	lots := v1.Group("/lots")
	{
		lots.GET("/:id", jwtAuth, rl("lots"), lotHandler.GetLot)
		lots.GET("/:id/bids", jwtAuth, rl("lots"), lotHandler.ListBids)
		lots.POST("/:id/bids", jwtAuth, rl("bids"), lotHandler.PlaceBid)
		lots.PUT("/:id/max-bid", jwtAuth, rl("bids"), lotHandler.SetMaxBid)
		lots.POST("/:id/buy-now", jwtAuth, rl("buy_now"), lotHandler.BuyItNow)
	}

	// --- Operator routes (X-Operator-Key) ---
	operatorAuth := middleware.OperatorAuth(deps.HashSvc, deps.OperatorKeyHash, deps.Logger)
	operatorHandler := NewOperatorHandler(deps.Lots, deps.Engine)
	{
		lots.POST("", operatorAuth, rl("operator"), operatorHandler.CreateLot)
		lots.POST("/:id/start", operatorAuth, rl("operator"), operatorHandler.StartLot)
		lots.POST("/:id/pause", operatorAuth, rl("operator"), operatorHandler.PauseLot)
		lots.POST("/:id/resume", operatorAuth, rl("operator"), operatorHandler.ResumeLot)
		lots.POST("/:id/close", operatorAuth, rl("operator"), operatorHandler.CloseLot)
		lots.POST("/:id/cancel", operatorAuth, rl("operator"), operatorHandler.CancelLot)
		lots.POST("/:id/storage-fee", operatorAuth, rl("operator"), operatorHandler.ChargeStorageFee)
	}

	return r
}
