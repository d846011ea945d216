package order

import (
	"slices"
	"time"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTransition = errs.New("invalid order status transition")
	ErrInvalidOrder      = errs.New("invalid order")
)

type Order struct {
	id                uuid.UUID
	owner             string
	cellIndices       []int
	regionID          string
	metadata          grid.SaleMetadata
	unitPriceAtQuote  decimal.Decimal
	totalAtQuote      decimal.Decimal
	currency          string
	status            Status
	paymentRef        string
	captureRef        string
	needsManualRefund bool
	failureReason     string
	createdAt         time.Time
	updatedAt         time.Time
}

type NewOrderParams struct {
	Owner       string
	CellIndices []int
	RegionID    string
	Metadata    grid.SaleMetadata
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
	Currency    string
}

func NewOrder(p NewOrderParams, now time.Time) (*Order, error) {
	if p.Owner == "" || p.RegionID == "" || len(p.CellIndices) == 0 || p.Currency == "" {
		return nil, ErrInvalidOrder
	}
	if !p.Total.IsPositive() {
		return nil, errs.Wrap(ErrInvalidOrder, "total must be positive")
	}
	return &Order{
		id:               uuid.New(),
		owner:            p.Owner,
		cellIndices:      slices.Clone(p.CellIndices),
		regionID:         p.RegionID,
		metadata:         p.Metadata,
		unitPriceAtQuote: p.UnitPrice,
		totalAtQuote:     p.Total,
		currency:         p.Currency,
		status:           StatusPending,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

type Snapshot struct {
	ID                uuid.UUID
	Owner             string
	CellIndices       []int
	RegionID          string
	Metadata          grid.SaleMetadata
	UnitPriceAtQuote  decimal.Decimal
	TotalAtQuote      decimal.Decimal
	Currency          string
	Status            Status
	PaymentRef        string
	CaptureRef        string
	NeedsManualRefund bool
	FailureReason     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func Reconstruct(s Snapshot) *Order {
	return &Order{
		id:                s.ID,
		owner:             s.Owner,
		cellIndices:       slices.Clone(s.CellIndices),
		regionID:          s.RegionID,
		metadata:          s.Metadata,
		unitPriceAtQuote:  s.UnitPriceAtQuote,
		totalAtQuote:      s.TotalAtQuote,
		currency:          s.Currency,
		status:            s.Status,
		paymentRef:        s.PaymentRef,
		captureRef:        s.CaptureRef,
		needsManualRefund: s.NeedsManualRefund,
		failureReason:     s.FailureReason,
		createdAt:         s.CreatedAt,
		updatedAt:         s.UpdatedAt,
	}
}

func (o *Order) Snapshot() Snapshot {
	return Snapshot{
		ID:                o.id,
		Owner:             o.owner,
		CellIndices:       slices.Clone(o.cellIndices),
		RegionID:          o.regionID,
		Metadata:          o.metadata,
		UnitPriceAtQuote:  o.unitPriceAtQuote,
		TotalAtQuote:      o.totalAtQuote,
		Currency:          o.currency,
		Status:            o.status,
		PaymentRef:        o.paymentRef,
		CaptureRef:        o.captureRef,
		NeedsManualRefund: o.needsManualRefund,
		FailureReason:     o.failureReason,
		CreatedAt:         o.createdAt,
		UpdatedAt:         o.updatedAt,
	}
}

// Clone is used to prepare a conditional update without touching the loaded copy.
func (o *Order) Clone() *Order {
	return Reconstruct(o.Snapshot())
}

func (o *Order) TransitionTo(next Status, now time.Time) error {
	if !o.status.CanTransitionTo(next) {
		return errs.Wrapf(ErrInvalidTransition, "%s -> %s", o.status, next)
	}
	o.status = next
	o.updatedAt = now
	return nil
}

func (o *Order) AttachPayment(ref string) {
	o.paymentRef = ref
}

func (o *Order) RecordCapture(ref string) {
	o.captureRef = ref
}

func (o *Order) Fail(reason string) {
	o.failureReason = reason
}

func (o *Order) FlagManualRefund(reason string) {
	o.needsManualRefund = true
	o.failureReason = reason
}

func (o *Order) ID() uuid.UUID                     { return o.id }
func (o *Order) Owner() string                     { return o.owner }
func (o *Order) CellIndices() []int                { return slices.Clone(o.cellIndices) }
func (o *Order) RegionID() string                  { return o.regionID }
func (o *Order) Metadata() grid.SaleMetadata       { return o.metadata }
func (o *Order) UnitPriceAtQuote() decimal.Decimal { return o.unitPriceAtQuote }
func (o *Order) TotalAtQuote() decimal.Decimal     { return o.totalAtQuote }
func (o *Order) Currency() string                  { return o.currency }
func (o *Order) Status() Status                    { return o.status }
func (o *Order) PaymentRef() string                { return o.paymentRef }
func (o *Order) CaptureRef() string                { return o.captureRef }
func (o *Order) NeedsManualRefund() bool           { return o.needsManualRefund }
func (o *Order) FailureReason() string             { return o.failureReason }
func (o *Order) CreatedAt() time.Time              { return o.createdAt }
func (o *Order) UpdatedAt() time.Time              { return o.updatedAt }
