package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vehicle-auction-engine/config"
	httpHandler "vehicle-auction-engine/internal/adapter/http/handler"
	"vehicle-auction-engine/internal/adapter/http/middleware"
	"vehicle-auction-engine/internal/adapter/realtime"
	redisStorage "vehicle-auction-engine/internal/adapter/storage/redis"
	"vehicle-auction-engine/internal/core/ports"
	"vehicle-auction-engine/internal/service"
	"vehicle-auction-engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("VAE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Vehicle Auction Engine")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize persistence
	repos, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer repos.close()

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize Redis stores
	creditCache := redisStorage.NewCreditReplayCache(rdb)
	nonceStore := redisStorage.NewNonceStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)
	eventPublisher := redisStorage.NewEventPublisher(rdb, log)

	// Initialize core services
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize business services
	ledger := service.NewWalletLedger(
		repos.wallets,
		repos.ledger,
		repos.reservations,
		repos.idempotency,
		creditCache,
		repos.transactor,
		log,
	)
	handoff := service.NewOrderHandoffService(
		repos.orders,
		sigSvc,
		cfg.Settlement.WebhookURL,
		cfg.Settlement.Secret,
		&http.Client{Timeout: cfg.Settlement.Timeout},
		log,
	)
	locks := service.NewLotLocks(cfg.Auction.LockTimeout)
	engine := service.NewBiddingEngine(
		locks,
		repos.lots,
		repos.bids,
		repos.maxBids,
		repos.orders,
		ledger,
		repos.transactor,
		eventPublisher,
		handoff,
		cfg.Auction.SoftCloseWindow,
		log,
	)
	lotSvc := service.NewLotService(
		locks,
		repos.lots,
		repos.bids,
		repos.transactor,
		eventPublisher,
		cfg.Auction.DefaultIncrement,
		log,
	)
	auditSvc := service.NewAuditService(repos.audit, log)

	// Close lots whose timer ran out
	sweeper := service.NewCloseSweeper(repos.lots, engine, cfg.Auction.CloseSweepInterval, log)
	go sweeper.Run(ctx)

	// Fan committed lot events out to websocket viewers on this instance
	hub := realtime.NewHub(log)
	sub, err := eventPublisher.Subscribe(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe to lot events")
	}
	defer sub.Close()
	go hub.Run(ctx, sub.Events())

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Ledger:     ledger,
		Engine:     engine,
		Lots:       lotSvc,
		SigSvc:     sigSvc,
		HashSvc:    hashSvc,
		TokenSvc:   tokenSvc,
		NonceStore: nonceStore,
		Funding: middleware.FundingCredentials{
			AccessKey: cfg.Funding.AccessKey,
			Secret:    cfg.Funding.Secret,
		},
		OperatorKeyHash: cfg.Operator.KeyHash,
		Hub:             hub,
		RateLimitStore:  rateLimitStore,
		HealthCheckers:  []ports.HealthChecker{repos.health, redisStorage.NewHealthCheck(rdb)},
		AuditSvc:        auditSvc,
		Logger:          log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := handoff.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Order handoffs still in flight at shutdown")
	}

	log.Info().Msg("Server exited")
}
