package queries

import (
	"context"
	"time"

	"pixelgrid/internal/domain/order"
	"pixelgrid/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderView struct {
	ID                uuid.UUID       `json:"id"`
	Owner             string          `json:"owner"`
	CellIndices       []int           `json:"cellIndices"`
	RegionID          string          `json:"regionId"`
	Name              string          `json:"name,omitempty"`
	LinkURL           string          `json:"linkUrl,omitempty"`
	ImageURL          string          `json:"imageUrl,omitempty"`
	UnitPriceAtQuote  decimal.Decimal `json:"unitPriceAtQuote"`
	TotalAtQuote      decimal.Decimal `json:"totalAtQuote"`
	Currency          string          `json:"currency"`
	Status            string          `json:"status"`
	PaymentRef        string          `json:"paymentRef,omitempty"`
	CaptureRef        string          `json:"captureRef,omitempty"`
	NeedsManualRefund bool            `json:"needsManualRefund"`
	FailureReason     string          `json:"failureReason,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func NewOrderView(o *order.Order) *OrderView {
	md := o.Metadata()
	return &OrderView{
		ID:                o.ID(),
		Owner:             o.Owner(),
		CellIndices:       o.CellIndices(),
		RegionID:          o.RegionID(),
		Name:              md.Name,
		LinkURL:           md.LinkURL,
		ImageURL:          md.ImageURL,
		UnitPriceAtQuote:  o.UnitPriceAtQuote(),
		TotalAtQuote:      o.TotalAtQuote(),
		Currency:          o.Currency(),
		Status:            o.Status().String(),
		PaymentRef:        o.PaymentRef(),
		CaptureRef:        o.CaptureRef(),
		NeedsManualRefund: o.NeedsManualRefund(),
		FailureReason:     o.FailureReason(),
		CreatedAt:         o.CreatedAt(),
		UpdatedAt:         o.UpdatedAt(),
	}
}

// OrderReadStore lists orders newest first. Keyset pages continue strictly after
// (lastCreatedAt, lastID).
type OrderReadStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
	ListByOwnerFirstPage(ctx context.Context, owner string, limit int32) ([]*order.Order, error)
	ListByOwnerKeyset(ctx context.Context, owner string, lastCreatedAt time.Time, lastID uuid.UUID, limit int32) ([]*order.Order, error)
}

type OrderQueries interface {
	GetByID(ctx context.Context, owner string, id uuid.UUID) (*OrderView, error)
	ListByOwner(ctx context.Context, owner string, cursor *Cursor, limit int) ([]*OrderView, *Cursor, error)
}

type orderQueriesImpl struct {
	store OrderReadStore
}

func NewOrderQueries(store OrderReadStore) OrderQueries {
	return &orderQueriesImpl{store: store}
}

// GetByID hides orders of other owners behind ErrOrderNotFound.
func (q *orderQueriesImpl) GetByID(ctx context.Context, owner string, id uuid.UUID) (*OrderView, error) {
	o, err := q.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Owner() != owner {
		return nil, shared.ErrOrderNotFound
	}
	return NewOrderView(o), nil
}

func (q *orderQueriesImpl) ListByOwner(ctx context.Context, owner string, cursor *Cursor, limit int) ([]*OrderView, *Cursor, error) {
	limit = ValidateLimit(limit)
	var rows []*order.Order
	var err error
	if cursor == nil || cursor.After == "" {
		rows, err = q.store.ListByOwnerFirstPage(ctx, owner, int32(limit+1))
	} else {
		lastCreatedAt, lastID, derr := DecodeAfterCursor(cursor.After)
		if derr != nil {
			return nil, nil, derr
		}
		rows, err = q.store.ListByOwnerKeyset(ctx, owner, lastCreatedAt, lastID, int32(limit+1))
	}
	if err != nil {
		return nil, nil, err
	}

	var next *Cursor
	if len(rows) > limit {
		last := rows[limit-1]
		next = &Cursor{After: EncodeAfterCursor(last.CreatedAt(), last.ID())}
		rows = rows[:limit]
	}
	views := make([]*OrderView, 0, len(rows))
	for _, o := range rows {
		views = append(views, NewOrderView(o))
	}
	return views, next, nil
}
