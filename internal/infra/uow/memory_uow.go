package uow

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"pixelgrid/internal/domain/order"
	"pixelgrid/internal/infra"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/shared"

	"github.com/google/uuid"
)

// MemoryUoW keeps orders and manual refunds in process memory. It backs the memory store
// driver and tests; it has no sale ledger.
type MemoryUoW struct {
	txMu sync.Mutex // serialises Within
	mu   sync.RWMutex

	orders  map[uuid.UUID]order.Snapshot
	refunds map[uuid.UUID]order.ManualRefund
}

func NewMemoryUoW() *MemoryUoW {
	return &MemoryUoW{
		orders:  make(map[uuid.UUID]order.Snapshot),
		refunds: make(map[uuid.UUID]order.ManualRefund),
	}
}

func (u *MemoryUoW) Within(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	u.txMu.Lock()
	defer u.txMu.Unlock()

	tx := &memTx{uow: u}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (u *MemoryUoW) Orders() shared.OrderRepository {
	return &memOrders{uow: u}
}

func (u *MemoryUoW) Sales() shared.SaleLedger {
	return nil
}

// ManualRefunds is exposed for inspection outside a transaction.
func (u *MemoryUoW) ManualRefunds() shared.ManualRefundRepository {
	return &memRefunds{uow: u}
}

// OrderReads serves the query side from the same maps.
func (u *MemoryUoW) OrderReads() *MemoryOrderReads {
	return &MemoryOrderReads{uow: u}
}

type memTx struct {
	uow  *MemoryUoW
	undo []func()
}

func (t *memTx) Orders() shared.OrderRepository {
	return &memOrders{uow: t.uow, tx: t}
}

func (t *memTx) ManualRefunds() shared.ManualRefundRepository {
	return &memRefunds{uow: t.uow, tx: t}
}

func (t *memTx) Sales() shared.SaleLedger {
	return nil
}

func (t *memTx) rollback() {
	t.uow.mu.Lock()
	defer t.uow.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
}

// record must be called with uow.mu held.
func (t *memTx) record(f func()) {
	if t != nil {
		t.undo = append(t.undo, f)
	}
}

type memOrders struct {
	uow *MemoryUoW
	tx  *memTx
}

func (r *memOrders) Create(_ context.Context, o *order.Order) error {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()
	if _, ok := r.uow.orders[o.ID()]; ok {
		return infra.WrapRepoErr("order already exists", nil, infra.KindDuplicateKey)
	}
	for _, s := range r.uow.orders {
		if o.PaymentRef() != "" && s.PaymentRef == o.PaymentRef() {
			return infra.WrapRepoErr("payment reference already used", nil, infra.KindDuplicateKey)
		}
	}
	id := o.ID()
	r.uow.orders[id] = o.Snapshot()
	r.tx.record(func() { delete(r.uow.orders, id) })
	return nil
}

func (r *memOrders) FindByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	r.uow.mu.RLock()
	defer r.uow.mu.RUnlock()
	s, ok := r.uow.orders[id]
	if !ok {
		return nil, errs.Mark(infra.WrapRepoErr("order not found", nil, infra.KindNotFound), shared.ErrOrderNotFound)
	}
	return order.Reconstruct(s), nil
}

func (r *memOrders) Transition(_ context.Context, next, prev *order.Order) error {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()
	stored, ok := r.uow.orders[prev.ID()]
	if !ok || stored.Status != prev.Status() || !stored.UpdatedAt.Equal(prev.UpdatedAt()) {
		return errs.Wrapf(shared.ErrOrderStatusConflict, "order %s no longer %s", prev.ID(), prev.Status())
	}
	id := prev.ID()
	r.uow.orders[id] = next.Snapshot()
	r.tx.record(func() { r.uow.orders[id] = stored })
	return nil
}

func (r *memOrders) ListStuck(_ context.Context, cutoff time.Time, limit int) ([]*order.Order, error) {
	r.uow.mu.RLock()
	defer r.uow.mu.RUnlock()
	var snaps []order.Snapshot
	for _, s := range r.uow.orders {
		if (s.Status == order.StatusFinalizing || s.Status == order.StatusRefundPending) && s.UpdatedAt.Before(cutoff) {
			snaps = append(snaps, s)
		}
	}
	slices.SortFunc(snaps, func(a, b order.Snapshot) int { return a.UpdatedAt.Compare(b.UpdatedAt) })
	return reconstructAll(snaps, limit), nil
}

type memRefunds struct {
	uow *MemoryUoW
	tx  *memTx
}

func (r *memRefunds) Create(_ context.Context, m order.ManualRefund) error {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()
	if _, ok := r.uow.refunds[m.OrderID]; ok {
		return nil
	}
	r.uow.refunds[m.OrderID] = m
	r.tx.record(func() { delete(r.uow.refunds, m.OrderID) })
	return nil
}

func (r *memRefunds) ListOpen(_ context.Context, limit int) ([]order.ManualRefund, error) {
	r.uow.mu.RLock()
	defer r.uow.mu.RUnlock()
	out := make([]order.ManualRefund, 0, len(r.uow.refunds))
	for _, m := range r.uow.refunds {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b order.ManualRefund) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemoryOrderReads implements the order read store over MemoryUoW.
type MemoryOrderReads struct {
	uow *MemoryUoW
}

func (r *MemoryOrderReads) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return (&memOrders{uow: r.uow}).FindByID(ctx, id)
}

func (r *MemoryOrderReads) ListByOwnerFirstPage(_ context.Context, owner string, limit int32) ([]*order.Order, error) {
	return r.list(owner, nil, uuid.Nil, limit), nil
}

func (r *MemoryOrderReads) ListByOwnerKeyset(_ context.Context, owner string, lastCreatedAt time.Time, lastID uuid.UUID, limit int32) ([]*order.Order, error) {
	return r.list(owner, &lastCreatedAt, lastID, limit), nil
}

func (r *MemoryOrderReads) list(owner string, after *time.Time, afterID uuid.UUID, limit int32) []*order.Order {
	r.uow.mu.RLock()
	defer r.uow.mu.RUnlock()
	var snaps []order.Snapshot
	for _, s := range r.uow.orders {
		if s.Owner != owner {
			continue
		}
		if after != nil && newerOrEqual(s, *after, afterID) {
			continue
		}
		snaps = append(snaps, s)
	}
	// newest first, id descending as tie-break
	slices.SortFunc(snaps, func(a, b order.Snapshot) int {
		if c := b.CreatedAt.Truncate(time.Microsecond).Compare(a.CreatedAt.Truncate(time.Microsecond)); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.String(), a.ID.String())
	})
	return reconstructAll(snaps, int(limit))
}

func newerOrEqual(s order.Snapshot, t time.Time, id uuid.UUID) bool {
	createdAt := s.CreatedAt.Truncate(time.Microsecond)
	if c := createdAt.Compare(t); c != 0 {
		return c > 0
	}
	return s.ID.String() >= id.String()
}

func reconstructAll(snaps []order.Snapshot, limit int) []*order.Order {
	if limit > 0 && len(snaps) > limit {
		snaps = snaps[:limit]
	}
	out := make([]*order.Order, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, order.Reconstruct(s))
	}
	return out
}
