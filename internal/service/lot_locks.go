package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vehicle-auction-engine/internal/core/domain"
	"vehicle-auction-engine/internal/core/ports"
	"vehicle-auction-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LotLocks is an arena of per-lot mutexes. Entries exist only while some
// request holds or waits for them; different lots never contend.
type LotLocks struct {
	mu      sync.Mutex
	locks   map[uuid.UUID]*lotLock
	timeout time.Duration
}

type lotLock struct {
	sem  chan struct{}
	refs int
}

// NewLotLocks creates an arena. A positive timeout bounds each acquisition.
func NewLotLocks(timeout time.Duration) *LotLocks {
	return &LotLocks{locks: make(map[uuid.UUID]*lotLock), timeout: timeout}
}

// Acquire blocks until the lot is free or ctx ends. The returned release
// must be called exactly once.
func (l *LotLocks) Acquire(ctx context.Context, lotID uuid.UUID) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[lotID]
	if !ok {
		lk = &lotLock{sem: make(chan struct{}, 1)}
		l.locks[lotID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	select {
	case lk.sem <- struct{}{}:
	case <-ctx.Done():
		l.drop(lotID, lk)
		return nil, apperror.ErrLockTimeout(fmt.Errorf("lot %s: %w", lotID, ctx.Err()))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.sem
			l.drop(lotID, lk)
		})
	}, nil
}

// Len reports how many lots currently have holders or waiters.
func (l *LotLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *LotLocks) drop(lotID uuid.UUID, lk *lotLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, lotID)
	}
}

// lotGuard runs one lot-scoped unit of work: the in-process lot lock, a
// database transaction, and the lot row locked FOR UPDATE. The committed
// hooks run after a successful commit while the lot lock is still held, so
// observers see a lot's events in commit order.
type lotGuard struct {
	locks      *LotLocks
	transactor ports.DBTransactor
	lotRepo    ports.LotRepository
}

func (g *lotGuard) run(ctx context.Context, lotID uuid.UUID, fn func(tx pgx.Tx, lot *domain.Lot) error, committed ...func()) error {
	release, err := g.locks.Acquire(ctx, lotID)
	if err != nil {
		return err
	}
	defer release()

	dbTx, err := g.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	lot, err := g.lotRepo.GetForUpdate(ctx, dbTx, lotID)
	if err != nil {
		return wrapErr("lock lot", err)
	}
	if lot == nil {
		return apperror.ErrNotFound("lot")
	}

	if err := fn(dbTx, lot); err != nil {
		return err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	for _, hook := range committed {
		hook()
	}
	return nil
}
