package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"vehicle-auction-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func walletKey(userID uuid.UUID) string { return "wallet:" + userID.String() }
func lotKey(id uuid.UUID) string        { return "lot:" + id.String() }
func reservationKey(id uuid.UUID) string {
	return "reservation:" + id.String()
}
func orderKey(lotID uuid.UUID) string { return "order:" + lotID.String() }

// Wallets are keyed by user id; one wallet per user.

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct{ s *Store }

func NewWalletRepo(s *Store) *WalletRepo { return &WalletRepo{s: s} }

// Create inserts the wallet unless one already exists for the user.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := t.lock(ctx, walletKey(w.UserID)); err != nil {
		return err
	}
	if _, ok := get[domain.Wallet](r.s, t, tableWallets, w.UserID); ok {
		return nil
	}
	put(t, tableWallets, w.UserID, *w)
	return nil
}

func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	w, ok := get[domain.Wallet](r.s, nil, tableWallets, userID)
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// GetForUpdate locks the user's wallet key, even when no wallet exists yet,
// so concurrent first deposits serialize.
func (r *WalletRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := t.lock(ctx, walletKey(userID)); err != nil {
		return nil, err
	}
	w, ok := get[domain.Wallet](r.s, t, tableWallets, userID)
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WalletRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, userID uuid.UUID, available, reserved int64) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := t.lock(ctx, walletKey(userID)); err != nil {
		return err
	}
	w, ok := get[domain.Wallet](r.s, t, tableWallets, userID)
	if !ok {
		return fmt.Errorf("wallet not found: %s", userID)
	}
	w.Available = available
	w.Reserved = reserved
	w.UpdatedAt = time.Now()
	put(t, tableWallets, userID, w)
	return nil
}

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct{ s *Store }

func NewLedgerRepo(s *Store) *LedgerRepo { return &LedgerRepo{s: s} }

func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.WalletTransaction) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if _, ok := get[domain.WalletTransaction](r.s, t, tableLedger, e.ID); ok {
		return fmt.Errorf("wallet transaction %s already exists", e.ID)
	}
	put(t, tableLedger, e.ID, *e)
	return nil
}

// ListByUser returns the user's entries newest first.
func (r *LedgerRepo) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error) {
	all := scan(r.s, nil, tableLedger, func(e domain.WalletTransaction) bool { return e.UserID == userID })
	total := int64(len(all))
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	start := (page - 1) * pageSize
	if page < 1 || pageSize < 1 || start >= len(all) {
		return []domain.WalletTransaction{}, total, nil
	}
	end := min(start+pageSize, len(all))
	return all[start:end], total, nil
}

// CreditReplayRepo implements ports.IdempotencyRepository. Rows are keyed by
// a name-based UUID of the credit key.
type CreditReplayRepo struct{ s *Store }

func NewCreditReplayRepo(s *Store) *CreditReplayRepo { return &CreditReplayRepo{s: s} }

func creditReplayID(key string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key))
}

func (r *CreditReplayRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	if _, _, ok := domain.ParseCreditKey(log.Key); !ok {
		return fmt.Errorf("credit replay: malformed key %q", log.Key)
	}
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := t.lock(ctx, "credit:"+log.Key); err != nil {
		return err
	}
	id := creditReplayID(log.Key)
	if _, ok := get[domain.IdempotencyLog](r.s, t, tableCreditReplay, id); ok {
		return fmt.Errorf("credit %q: %w", log.Key, ErrDuplicateKey)
	}
	put(t, tableCreditReplay, id, *log)
	return nil
}

func (r *CreditReplayRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	l, ok := get[domain.IdempotencyLog](r.s, nil, tableCreditReplay, creditReplayID(key))
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// ReservationRepo implements ports.ReservationRepository.
type ReservationRepo struct{ s *Store }

func NewReservationRepo(s *Store) *ReservationRepo { return &ReservationRepo{s: s} }

func (r *ReservationRepo) Create(ctx context.Context, tx pgx.Tx, res *domain.Reservation) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	put(t, tableReservations, res.ID, *res)
	return nil
}

func (r *ReservationRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Reservation, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := t.lock(ctx, reservationKey(id)); err != nil {
		return nil, err
	}
	res, ok := get[domain.Reservation](r.s, t, tableReservations, id)
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (r *ReservationRepo) Close(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.ReservationStatus, closedAt time.Time) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := t.lock(ctx, reservationKey(id)); err != nil {
		return err
	}
	res, ok := get[domain.Reservation](r.s, t, tableReservations, id)
	if !ok || res.Status != domain.ReservationStatusActive {
		return fmt.Errorf("active reservation not found: %s", id)
	}
	res.Status = status
	closed := closedAt
	res.ClosedAt = &closed
	put(t, tableReservations, id, res)
	return nil
}

func (r *ReservationRepo) SumActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	for _, res := range scan(r.s, nil, tableReservations, func(res domain.Reservation) bool {
		return res.UserID == userID && res.Status == domain.ReservationStatusActive
	}) {
		sum += res.Amount
	}
	return sum, nil
}

// LotRepo implements ports.LotRepository.
type LotRepo struct{ s *Store }

func NewLotRepo(s *Store) *LotRepo { return &LotRepo{s: s} }

func (r *LotRepo) Create(ctx context.Context, tx pgx.Tx, lot *domain.Lot) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	put(t, tableLots, lot.ID, *lot)
	return nil
}

func (r *LotRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lot, error) {
	lot, ok := get[domain.Lot](r.s, nil, tableLots, id)
	if !ok {
		return nil, nil
	}
	return &lot, nil
}

func (r *LotRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Lot, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := t.lock(ctx, lotKey(id)); err != nil {
		return nil, err
	}
	lot, ok := get[domain.Lot](r.s, t, tableLots, id)
	if !ok {
		return nil, nil
	}
	return &lot, nil
}

func (r *LotRepo) Update(ctx context.Context, tx pgx.Tx, lot *domain.Lot) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := t.lock(ctx, lotKey(lot.ID)); err != nil {
		return err
	}
	if _, ok := get[domain.Lot](r.s, t, tableLots, lot.ID); !ok {
		return fmt.Errorf("lot not found: %s", lot.ID)
	}
	put(t, tableLots, lot.ID, *lot)
	return nil
}

func (r *LotRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	due := scan(r.s, nil, tableLots, func(l domain.Lot) bool {
		return l.Status == domain.LotStatusLive && !l.EndsAt.After(now)
	})
	sort.SliceStable(due, func(i, j int) bool { return due[i].EndsAt.Before(due[j].EndsAt) })
	ids := make([]uuid.UUID, 0, len(due))
	for _, l := range due {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, l.ID)
	}
	return ids, nil
}

// BidRepo implements ports.BidRepository.
type BidRepo struct{ s *Store }

func NewBidRepo(s *Store) *BidRepo { return &BidRepo{s: s} }

func (r *BidRepo) Create(ctx context.Context, tx pgx.Tx, bid *domain.Bid) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	put(t, tableBids, bid.ID, *bid)
	return nil
}

func (r *BidRepo) Get(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Bid, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	bid, ok := get[domain.Bid](r.s, t, tableBids, id)
	if !ok {
		return nil, nil
	}
	return &bid, nil
}

func (r *BidRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.BidStatus) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	bid, ok := get[domain.Bid](r.s, t, tableBids, id)
	if !ok {
		return fmt.Errorf("bid not found: %s", id)
	}
	bid.Status = status
	bid.UpdatedAt = time.Now()
	put(t, tableBids, id, bid)
	return nil
}

// ListByLot returns the lot's bids oldest first.
func (r *BidRepo) ListByLot(ctx context.Context, lotID uuid.UUID) ([]domain.Bid, error) {
	return scan(r.s, nil, tableBids, func(b domain.Bid) bool { return b.LotID == lotID }), nil
}

// MaxBidRepo implements ports.MaxBidRepository.
type MaxBidRepo struct{ s *Store }

func NewMaxBidRepo(s *Store) *MaxBidRepo { return &MaxBidRepo{s: s} }

func (r *MaxBidRepo) Replace(ctx context.Context, tx pgx.Tx, m *domain.MaxBid) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, old := range r.active(t, m.LotID, func(o domain.MaxBid) bool { return o.BidderID == m.BidderID }) {
		old.Active = false
		old.UpdatedAt = now
		put(t, tableMaxBids, old.ID, old)
	}
	put(t, tableMaxBids, m.ID, *m)
	return nil
}

func (r *MaxBidRepo) GetActive(ctx context.Context, tx pgx.Tx, lotID, bidderID uuid.UUID) (*domain.MaxBid, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	found := r.active(t, lotID, func(o domain.MaxBid) bool { return o.BidderID == bidderID })
	if len(found) == 0 {
		return nil, nil
	}
	m := found[len(found)-1]
	return &m, nil
}

func (r *MaxBidRepo) ListActive(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) ([]domain.MaxBid, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	list := r.active(t, lotID, nil)
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (r *MaxBidRepo) DeactivateAll(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, m := range r.active(t, lotID, nil) {
		m.Active = false
		m.UpdatedAt = now
		put(t, tableMaxBids, m.ID, m)
	}
	return nil
}

func (r *MaxBidRepo) active(t *Tx, lotID uuid.UUID, extra func(domain.MaxBid) bool) []domain.MaxBid {
	return scan(r.s, t, tableMaxBids, func(m domain.MaxBid) bool {
		return m.LotID == lotID && m.Active && (extra == nil || extra(m))
	})
}

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct{ s *Store }

func NewOrderRepo(s *Store) *OrderRepo { return &OrderRepo{s: s} }

// Create inserts the order; a lot has at most one.
func (r *OrderRepo) Create(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := t.lock(ctx, orderKey(o.LotID)); err != nil {
		return err
	}
	if existing := scan(r.s, t, tableOrders, func(x domain.Order) bool { return x.LotID == o.LotID }); len(existing) > 0 {
		return fmt.Errorf("order for lot %s already exists", o.LotID)
	}
	put(t, tableOrders, o.ID, *o)
	return nil
}

func (r *OrderRepo) GetByLotID(ctx context.Context, lotID uuid.UUID) (*domain.Order, error) {
	found := scan(r.s, nil, tableOrders, func(x domain.Order) bool { return x.LotID == lotID })
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (r *OrderRepo) GetByLotIDForUpdate(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (*domain.Order, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := t.lock(ctx, orderKey(lotID)); err != nil {
		return nil, err
	}
	found := scan(r.s, t, tableOrders, func(x domain.Order) bool { return x.LotID == lotID })
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (r *OrderRepo) AddStorageFee(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	o, ok := get[domain.Order](r.s, t, tableOrders, id)
	if !ok {
		return fmt.Errorf("order not found: %s", id)
	}
	o.StorageFees += amount
	o.UpdatedAt = time.Now()
	put(t, tableOrders, id, o)
	return nil
}

func (r *OrderRepo) UpdateHandoffStatus(ctx context.Context, id uuid.UUID, status domain.HandoffStatus) error {
	r.s.mu.Lock()
	v, ok := r.s.tables[tableOrders][id]
	if !ok {
		r.s.mu.Unlock()
		return fmt.Errorf("order not found: %s", id)
	}
	o := v.(domain.Order)
	o.HandoffStatus = status
	o.UpdatedAt = time.Now()
	r.s.tables[tableOrders][id] = o
	r.s.mu.Unlock()
	return nil
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct{ s *Store }

func NewAuditRepo(s *Store) *AuditRepo { return &AuditRepo{s: s} }

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.s.putCommitted(tableAudit, log.ID, *log)
	return nil
}

// List returns every audit entry, oldest first.
func (r *AuditRepo) List() []domain.AuditLog {
	return scan[domain.AuditLog](r.s, nil, tableAudit, nil)
}
