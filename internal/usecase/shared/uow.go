package shared

import (
	"context"
	"time"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/domain/order"
	"pixelgrid/internal/pkg/errs"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound       = errs.New("order not found")
	ErrOrderStatusConflict = errs.New("order status changed concurrently")
	ErrLedgerDivergence    = errs.New("sale ledger disagrees with grid document")
)

type UnitOfWork interface {
	// Within: Full transaction for write operations with retry logic
	Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Orders: Single statement access outside a transaction
	Orders() OrderRepository
	// Sales: nil when no relational ledger is configured
	Sales() SaleLedger
}

type Tx interface {
	Orders() OrderRepository
	ManualRefunds() ManualRefundRepository
	Sales() SaleLedger
}

type OrderRepository interface {
	Create(ctx context.Context, o *order.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
	// Transition persists next only if the stored row still carries prev's status and
	// updated_at; otherwise it returns ErrOrderStatusConflict and writes nothing.
	Transition(ctx context.Context, next, prev *order.Order) error
	// ListStuck returns finalizing and refund_pending orders last updated before cutoff,
	// oldest first.
	ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]*order.Order, error)
}

type ManualRefundRepository interface {
	Create(ctx context.Context, r order.ManualRefund) error
	ListOpen(ctx context.Context, limit int) ([]order.ManualRefund, error)
}

// SaleLedger mirrors committed sales into the relational store, one row per cell.
type SaleLedger interface {
	// SoldAmong returns cell -> region id for the sold subset of cells.
	SoldAmong(ctx context.Context, cells []int) (map[int]string, error)
	// Record is idempotent for cells already recorded under the same region and returns
	// ErrLedgerDivergence when a cell is recorded under another region.
	Record(ctx context.Context, rec SaleRecord) error
}

type SaleRecord struct {
	Owner   string
	Cells   []int
	Sale    grid.Sale
	OrderID *uuid.UUID
}
