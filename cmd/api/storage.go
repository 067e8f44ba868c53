package main

import (
	"context"
	"fmt"

	"vehicle-auction-engine/config"
	"vehicle-auction-engine/internal/adapter/storage/memory"
	pgStorage "vehicle-auction-engine/internal/adapter/storage/postgres"
	"vehicle-auction-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

// repositories is the persistence adapter selected by storage.driver.
type repositories struct {
	wallets      ports.WalletRepository
	ledger       ports.LedgerRepository
	reservations ports.ReservationRepository
	lots         ports.LotRepository
	bids         ports.BidRepository
	maxBids      ports.MaxBidRepository
	orders       ports.OrderRepository
	idempotency  ports.IdempotencyRepository
	audit        ports.AuditRepository
	transactor   ports.DBTransactor
	health       ports.HealthChecker
	close        func()
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	switch cfg.Storage.Driver {
	case "memory":
		store := memory.NewStore()
		log.Warn().Msg("Using in-memory storage; state is lost on restart")
		return &repositories{
			wallets:      memory.NewWalletRepo(store),
			ledger:       memory.NewLedgerRepo(store),
			reservations: memory.NewReservationRepo(store),
			lots:         memory.NewLotRepo(store),
			bids:         memory.NewBidRepo(store),
			maxBids:      memory.NewMaxBidRepo(store),
			orders:       memory.NewOrderRepo(store),
			idempotency:  memory.NewCreditReplayRepo(store),
			audit:        memory.NewAuditRepo(store),
			transactor:   store,
			health:       store,
			close:        func() {},
		}, nil

	case "postgres":
		if cfg.Database.AutoMigrate {
			if err := pgStorage.Migrate(cfg.Database.MigrateURL(), log); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		return &repositories{
			wallets:      pgStorage.NewWalletRepo(pool),
			ledger:       pgStorage.NewLedgerRepo(pool),
			reservations: pgStorage.NewReservationRepo(pool),
			lots:         pgStorage.NewLotRepo(pool),
			bids:         pgStorage.NewBidRepo(pool),
			maxBids:      pgStorage.NewMaxBidRepo(pool),
			orders:       pgStorage.NewOrderRepo(pool),
			idempotency:  pgStorage.NewCreditReplayRepo(pool),
			audit:        pgStorage.NewAuditRepo(pool),
			transactor:   pgStorage.NewTransactor(pool, cfg.Auction.LockTimeout),
			health:       pgStorage.NewHealthCheck(pool),
			close:        pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
}
