package service

import (
	"context"
	"time"

	"vehicle-auction-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

const sweepBatchSize = 100

// CloseSweeper periodically closes live lots whose end time has passed.
// It stands in for an external scheduler; CloseLot is idempotent, so both
// may run at once.
type CloseSweeper struct {
	lotRepo  ports.LotRepository
	engine   ports.BiddingEngine
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewCloseSweeper creates a sweeper that wakes every interval.
func NewCloseSweeper(lotRepo ports.LotRepository, engine ports.BiddingEngine, interval time.Duration, log zerolog.Logger) *CloseSweeper {
	return &CloseSweeper{
		lotRepo:  lotRepo,
		engine:   engine,
		interval: interval,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps until ctx is cancelled.
func (s *CloseSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("close sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("close sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep closes one batch of due lots and returns how many it closed.
func (s *CloseSweeper) Sweep(ctx context.Context) int {
	ids, err := s.lotRepo.ListDue(ctx, s.now(), sweepBatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("close sweeper: failed to list due lots")
		return 0
	}

	closed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		out, err := s.engine.CloseLot(ctx, id)
		if err != nil {
			s.log.Error().Err(err).Str("lot_id", id.String()).Msg("close sweeper: close failed")
			continue
		}
		if !out.AlreadyClosed {
			closed++
		}
	}
	if closed > 0 {
		s.log.Debug().Int("closed", closed).Msg("close sweeper: batch done")
	}
	return closed
}
