package repository

import (
	"context"

	"pixelgrid/internal/infra"
	"pixelgrid/internal/infra/db"
	"pixelgrid/internal/infra/repository/converter"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/pkg/pgconv"
	"pixelgrid/internal/usecase/shared"
)

const (
	selectSoldAmongSQL = `SELECT cell_index, region_id FROM cell_sales WHERE cell_index = ANY($1)`

	insertCellSalesSQL = `INSERT INTO cell_sales (cell_index, region_id, owner, name, link_url, order_id, sold_at)
	SELECT c, $2, $3, $4, $5, $6, $7 FROM unnest($1::integer[]) AS c
	ON CONFLICT (cell_index) DO NOTHING`

	selectDivergentSQL = `SELECT cell_index FROM cell_sales WHERE cell_index = ANY($1) AND region_id <> $2`
)

type SaleLedgerRepository struct {
	db db.DBTX
}

func NewSaleLedgerRepository(dbtx db.DBTX) *SaleLedgerRepository {
	return &SaleLedgerRepository{db: dbtx}
}

func (r *SaleLedgerRepository) SoldAmong(ctx context.Context, cells []int) (map[int]string, error) {
	rows, err := r.db.Query(ctx, selectSoldAmongSQL, pgconv.IntsToInt32s(cells))
	if err != nil {
		return nil, errs.Mark(infra.WrapRepoErr("failed to query sale ledger", err), errs.ErrDatabaseOperationFailed)
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var cell int32
		var regionID string
		if err := rows.Scan(&cell, &regionID); err != nil {
			return nil, infra.WrapRepoErr("failed to scan sale ledger", err)
		}
		out[int(cell)] = regionID
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate sale ledger", err)
	}
	return out, nil
}

// Record must run inside a transaction: on divergence the caller rolls back the inserts.
func (r *SaleLedgerRepository) Record(ctx context.Context, rec shared.SaleRecord) error {
	cells := pgconv.IntsToInt32s(rec.Cells)
	_, err := r.db.Exec(ctx, insertCellSalesSQL,
		cells, rec.Sale.RegionID, rec.Owner, rec.Sale.Name, rec.Sale.LinkURL, rec.OrderID, converter.DBTime(rec.Sale.SoldAt))
	if err != nil {
		return errs.Mark(infra.WrapRepoErr("failed to record cell sales", err), errs.ErrDatabaseOperationFailed)
	}

	rows, err := r.db.Query(ctx, selectDivergentSQL, cells, rec.Sale.RegionID)
	if err != nil {
		return infra.WrapRepoErr("failed to verify cell sales", err)
	}
	defer rows.Close()
	var divergent []int
	for rows.Next() {
		var cell int32
		if err := rows.Scan(&cell); err != nil {
			return infra.WrapRepoErr("failed to scan cell sales", err)
		}
		divergent = append(divergent, int(cell))
	}
	if err := rows.Err(); err != nil {
		return infra.WrapRepoErr("failed to iterate cell sales", err)
	}
	if len(divergent) > 0 {
		return errs.Wrapf(shared.ErrLedgerDivergence, "region %s cells %v", rec.Sale.RegionID, divergent)
	}
	return nil
}
