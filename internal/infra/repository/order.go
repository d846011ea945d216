package repository

import (
	"context"
	"time"

	"pixelgrid/internal/domain/order"
	"pixelgrid/internal/infra"
	"pixelgrid/internal/infra/db"
	"pixelgrid/internal/infra/repository/converter"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/pkg/pgconv"
	"pixelgrid/internal/usecase/shared"

	"github.com/google/uuid"
)

const (
	insertOrderSQL = `INSERT INTO orders (` + converter.OrderColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	selectOrderSQL = `SELECT ` + converter.OrderColumns + ` FROM orders WHERE id = $1`

	// The guard on status and updated_at makes the update a compare-and-swap on the row.
	transitionOrderSQL = `UPDATE orders
	SET status = $2, payment_ref = $3, capture_ref = $4, needs_manual_refund = $5,
	    failure_reason = $6, updated_at = $7
	WHERE id = $1 AND status = $8 AND updated_at = $9`

	listStuckOrdersSQL = `SELECT ` + converter.OrderColumns + ` FROM orders
	WHERE status IN ('finalizing', 'refund_pending') AND updated_at < $1
	ORDER BY updated_at LIMIT $2`
)

type OrderRepository struct {
	db db.DBTX
}

func NewOrderRepository(dbtx db.DBTX) *OrderRepository {
	return &OrderRepository{db: dbtx}
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	row := converter.OrderToRow(o)
	if _, err := r.db.Exec(ctx, insertOrderSQL, row.Args()...); err != nil {
		if pgconv.IsUniqueViolation(err) {
			return infra.WrapRepoErr("order already exists", err, infra.KindDuplicateKey)
		}
		return errs.Mark(infra.WrapRepoErr("failed to create order", err), errs.ErrDatabaseOperationFailed)
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return findOrder(ctx, r.db, id)
}

func (r *OrderRepository) Transition(ctx context.Context, next, prev *order.Order) error {
	row := converter.OrderToRow(next)
	tag, err := r.db.Exec(ctx, transitionOrderSQL,
		row.ID, row.Status, row.PaymentRef, row.CaptureRef, row.NeedsManualRefund,
		row.FailureReason, row.UpdatedAt,
		prev.Status().String(), converter.DBTime(prev.UpdatedAt()))
	if err != nil {
		return errs.Mark(infra.WrapRepoErr("failed to transition order", err), errs.ErrDatabaseOperationFailed)
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrapf(shared.ErrOrderStatusConflict, "order %s no longer %s", prev.ID(), prev.Status())
	}
	return nil
}

func (r *OrderRepository) ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]*order.Order, error) {
	rows, err := r.db.Query(ctx, listStuckOrdersSQL, converter.DBTime(cutoff), limit)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list stuck orders", err)
	}
	out, err := converter.CollectOrders(rows)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to read stuck orders", err)
	}
	return out, nil
}

func findOrder(ctx context.Context, dbtx db.DBTX, id uuid.UUID) (*order.Order, error) {
	var row converter.OrderRow
	if err := dbtx.QueryRow(ctx, selectOrderSQL, id).Scan(row.ScanTargets()...); err != nil {
		if pgconv.IsNoRows(err) {
			return nil, errs.Mark(infra.WrapRepoErr("order not found", err, infra.KindNotFound), shared.ErrOrderNotFound)
		}
		return nil, errs.Mark(infra.WrapRepoErr("failed to find order", err), errs.ErrDatabaseOperationFailed)
	}
	o, err := converter.RowToOrder(row)
	if err != nil {
		return nil, infra.WrapRepoErr("corrupt order row", err, infra.KindCorruptDocument)
	}
	return o, nil
}
