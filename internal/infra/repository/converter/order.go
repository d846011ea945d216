package converter

import (
	"time"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/domain/order"
	"pixelgrid/internal/pkg/pgconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderColumns is the select list matching OrderRow.ScanTargets.
const OrderColumns = `id, owner, cell_indices, region_id, name, link_url, image_url, replace_metadata,
	unit_price_at_quote, total_at_quote, currency, status, payment_ref, capture_ref,
	needs_manual_refund, failure_reason, created_at, updated_at`

type OrderRow struct {
	ID                uuid.UUID
	Owner             string
	CellIndices       []int32
	RegionID          string
	Name              string
	LinkURL           string
	ImageURL          string
	ReplaceMetadata   bool
	UnitPriceAtQuote  pgtype.Numeric
	TotalAtQuote      pgtype.Numeric
	Currency          string
	Status            string
	PaymentRef        pgtype.Text
	CaptureRef        pgtype.Text
	NeedsManualRefund bool
	FailureReason     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (r *OrderRow) ScanTargets() []any {
	return []any{
		&r.ID, &r.Owner, &r.CellIndices, &r.RegionID, &r.Name, &r.LinkURL, &r.ImageURL, &r.ReplaceMetadata,
		&r.UnitPriceAtQuote, &r.TotalAtQuote, &r.Currency, &r.Status, &r.PaymentRef, &r.CaptureRef,
		&r.NeedsManualRefund, &r.FailureReason, &r.CreatedAt, &r.UpdatedAt,
	}
}

// Args returns the values in OrderColumns order.
func (r OrderRow) Args() []any {
	return []any{
		r.ID, r.Owner, r.CellIndices, r.RegionID, r.Name, r.LinkURL, r.ImageURL, r.ReplaceMetadata,
		r.UnitPriceAtQuote, r.TotalAtQuote, r.Currency, r.Status, r.PaymentRef, r.CaptureRef,
		r.NeedsManualRefund, r.FailureReason, r.CreatedAt, r.UpdatedAt,
	}
}

func OrderToRow(o *order.Order) OrderRow {
	md := o.Metadata()
	return OrderRow{
		ID:                o.ID(),
		Owner:             o.Owner(),
		CellIndices:       pgconv.IntsToInt32s(o.CellIndices()),
		RegionID:          o.RegionID(),
		Name:              md.Name,
		LinkURL:           md.LinkURL,
		ImageURL:          md.ImageURL,
		ReplaceMetadata:   md.Replace,
		UnitPriceAtQuote:  pgconv.DecimalToPgtype(o.UnitPriceAtQuote()),
		TotalAtQuote:      pgconv.DecimalToPgtype(o.TotalAtQuote()),
		Currency:          o.Currency(),
		Status:            o.Status().String(),
		PaymentRef:        pgconv.TextToPgtype(o.PaymentRef()),
		CaptureRef:        pgconv.TextToPgtype(o.CaptureRef()),
		NeedsManualRefund: o.NeedsManualRefund(),
		FailureReason:     o.FailureReason(),
		CreatedAt:         DBTime(o.CreatedAt()),
		UpdatedAt:         DBTime(o.UpdatedAt()),
	}
}

func RowToOrder(r OrderRow) (*order.Order, error) {
	unit, err := pgconv.DecimalFromPgtype(r.UnitPriceAtQuote)
	if err != nil {
		return nil, err
	}
	total, err := pgconv.DecimalFromPgtype(r.TotalAtQuote)
	if err != nil {
		return nil, err
	}
	return order.Reconstruct(order.Snapshot{
		ID:          r.ID,
		Owner:       r.Owner,
		CellIndices: pgconv.Int32sToInts(r.CellIndices),
		RegionID:    r.RegionID,
		Metadata: grid.SaleMetadata{
			Name:     r.Name,
			LinkURL:  r.LinkURL,
			ImageURL: r.ImageURL,
			Replace:  r.ReplaceMetadata,
		},
		UnitPriceAtQuote:  unit,
		TotalAtQuote:      total,
		Currency:          r.Currency,
		Status:            order.Status(r.Status),
		PaymentRef:        pgconv.StringFromPgtype(r.PaymentRef),
		CaptureRef:        pgconv.StringFromPgtype(r.CaptureRef),
		NeedsManualRefund: r.NeedsManualRefund,
		FailureReason:     r.FailureReason,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}), nil
}

// CollectOrders scans every row and closes rows.
func CollectOrders(rows pgx.Rows) ([]*order.Order, error) {
	defer rows.Close()
	var out []*order.Order
	for rows.Next() {
		var row OrderRow
		if err := rows.Scan(row.ScanTargets()...); err != nil {
			return nil, err
		}
		o, err := RowToOrder(row)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// DBTime truncates to the microsecond precision timestamptz stores, so values read back
// compare equal to the ones written.
func DBTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
