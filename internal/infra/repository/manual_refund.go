package repository

import (
	"context"

	"pixelgrid/internal/domain/order"
	"pixelgrid/internal/infra"
	"pixelgrid/internal/infra/db"
	"pixelgrid/internal/infra/repository/converter"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/pkg/pgconv"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	// One record per order; a repeated compensation attempt keeps the first reason.
	insertManualRefundSQL = `INSERT INTO manual_refunds
	(order_id, owner, region_id, capture_ref, amount, currency, reason, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (order_id) DO NOTHING`

	listOpenManualRefundsSQL = `SELECT order_id, owner, region_id, capture_ref, amount, currency, reason, created_at
	FROM manual_refunds WHERE resolved_at IS NULL ORDER BY created_at LIMIT $1`
)

type ManualRefundRepository struct {
	db db.DBTX
}

func NewManualRefundRepository(dbtx db.DBTX) *ManualRefundRepository {
	return &ManualRefundRepository{db: dbtx}
}

func (r *ManualRefundRepository) Create(ctx context.Context, m order.ManualRefund) error {
	_, err := r.db.Exec(ctx, insertManualRefundSQL,
		m.OrderID, m.Owner, m.RegionID, m.CaptureRef,
		pgconv.DecimalToPgtype(m.Amount), m.Currency, m.Reason, converter.DBTime(m.CreatedAt))
	if err != nil {
		return errs.Mark(infra.WrapRepoErr("failed to record manual refund", err), errs.ErrDatabaseOperationFailed)
	}
	return nil
}

func (r *ManualRefundRepository) ListOpen(ctx context.Context, limit int) ([]order.ManualRefund, error) {
	rows, err := r.db.Query(ctx, listOpenManualRefundsSQL, limit)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list manual refunds", err)
	}
	defer rows.Close()

	var out []order.ManualRefund
	for rows.Next() {
		var m order.ManualRefund
		var amount pgtype.Numeric
		if err := rows.Scan(&m.OrderID, &m.Owner, &m.RegionID, &m.CaptureRef, &amount, &m.Currency, &m.Reason, &m.CreatedAt); err != nil {
			return nil, infra.WrapRepoErr("failed to scan manual refund", err)
		}
		if m.Amount, err = pgconv.DecimalFromPgtype(amount); err != nil {
			return nil, infra.WrapRepoErr("corrupt manual refund amount", err, infra.KindCorruptDocument)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate manual refunds", err)
	}
	return out, nil
}
