// Package memory is a transactional in-process implementation of the
// storage ports. Writes are staged per transaction and published on commit;
// row locks taken through the ForUpdate reads are held until the
// transaction ends, mirroring SELECT ... FOR UPDATE.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	tableWallets      = "wallets"
	tableLedger       = "wallet_transactions"
	tableReservations = "reservations"
	tableLots         = "lots"
	tableBids         = "bids"
	tableMaxBids      = "max_bids"
	tableOrders       = "orders"
	tableAudit        = "audit_logs"
	tableCreditReplay = "credit_replays"
)

// ErrNotTransaction is returned when a repository receives a pgx.Tx that
// was not started by this store.
var ErrNotTransaction = errors.New("memory: transaction was not started by this store")

// ErrDuplicateKey is returned when a unique key is inserted twice.
var ErrDuplicateKey = errors.New("memory: duplicate key")

// ErrSQLUnsupported is returned by the raw SQL methods of Tx.
var ErrSQLUnsupported = errors.New("memory: raw SQL is not supported")

// Store holds committed rows for every table.
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[uuid.UUID]any
	seq    map[uuid.UUID]uint64
	next   uint64

	lockMu sync.Mutex
	locks  map[string]chan struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		tables: make(map[string]map[uuid.UUID]any),
		seq:    make(map[uuid.UUID]uint64),
		locks:  make(map[string]chan struct{}),
	}
}

// Begin starts a new transaction. It satisfies ports.DBTransactor.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{
		store:   s,
		writes:  make(map[string]map[uuid.UUID]any),
		heldSet: make(map[string]bool),
	}, nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

// Ping implements ports.HealthChecker.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) lockChan(key string) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	return ch
}

func (s *Store) sequence(id uuid.UUID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.seq[id]
	if !ok {
		s.next++
		n = s.next
		s.seq[id] = n
	}
	return n
}

// putCommitted writes outside any transaction.
func (s *Store) putCommitted(table string, id uuid.UUID, v any) {
	s.sequence(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tables[table]
	if !ok {
		rows = make(map[uuid.UUID]any)
		s.tables[table] = rows
	}
	rows[id] = v
}

// Tx is a store transaction. It implements pgx.Tx so the same service code
// runs against Postgres and memory; the SQL methods are not supported.
type Tx struct {
	store   *Store
	writes  map[string]map[uuid.UUID]any
	held    []string
	heldSet map[string]bool
	done    bool
}

func asTx(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, ErrNotTransaction
	}
	if t.done {
		return nil, pgx.ErrTxClosed
	}
	return t, nil
}

// lock takes the row lock for key. Locks are re-entrant within the
// transaction and wait for ctx otherwise.
func (t *Tx) lock(ctx context.Context, key string) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	if t.heldSet[key] {
		return nil
	}
	ch := t.store.lockChan(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("lock %s: %w", key, ctx.Err())
	}
	t.heldSet[key] = true
	t.held = append(t.held, key)
	return nil
}

func (t *Tx) finish() {
	t.done = true
	for i := len(t.held) - 1; i >= 0; i-- {
		<-t.store.lockChan(t.held[i])
	}
	t.held = nil
	t.heldSet = nil
	t.writes = nil
}

// Commit publishes staged writes and releases row locks.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	s := t.store
	s.mu.Lock()
	for table, rows := range t.writes {
		dst, ok := s.tables[table]
		if !ok {
			dst = make(map[uuid.UUID]any)
			s.tables[table] = dst
		}
		for id, v := range rows {
			dst[id] = v
		}
	}
	s.mu.Unlock()
	t.finish()
	return nil
}

// Rollback discards staged writes and releases row locks.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.finish()
	return nil
}

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("memory: nested transactions are not supported")
}

func (t *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, ErrSQLUnsupported
}

func (t *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *Tx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }

func (t *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, ErrSQLUnsupported
}

func (t *Tx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), ErrSQLUnsupported
}

func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, ErrSQLUnsupported
}

func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{}
}

func (t *Tx) Conn() *pgx.Conn { return nil }

type errRow struct{}

func (errRow) Scan(dest ...any) error { return ErrSQLUnsupported }

// get reads a row as seen by tx (staged first), or committed when tx is nil.
func get[T any](s *Store, tx *Tx, table string, id uuid.UUID) (T, bool) {
	if tx != nil {
		if v, ok := tx.writes[table][id]; ok {
			return v.(T), true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.tables[table][id]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// put stages a row in tx.
func put[T any](tx *Tx, table string, id uuid.UUID, v T) {
	tx.store.sequence(id)
	rows, ok := tx.writes[table]
	if !ok {
		rows = make(map[uuid.UUID]any)
		tx.writes[table] = rows
	}
	rows[id] = v
}

// scan returns the rows matching keep in insertion order, as seen by tx.
func scan[T any](s *Store, tx *Tx, table string, keep func(T) bool) []T {
	merged := make(map[uuid.UUID]T)
	s.mu.RLock()
	for id, v := range s.tables[table] {
		merged[id] = v.(T)
	}
	s.mu.RUnlock()
	if tx != nil {
		for id, v := range tx.writes[table] {
			merged[id] = v.(T)
		}
	}

	ids := make([]uuid.UUID, 0, len(merged))
	for id, v := range merged {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	s.mu.RLock()
	sort.Slice(ids, func(i, j int) bool { return s.seq[ids[i]] < s.seq[ids[j]] })
	s.mu.RUnlock()

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, merged[id])
	}
	return out
}
