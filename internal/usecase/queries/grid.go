package queries

import (
	"context"
	"time"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/domain/pricing"
	"pixelgrid/internal/pkg/clock"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/shared"

	"github.com/shopspring/decimal"
)

// GridStatus is the public view of the document. Locks holds only leases still in force.
type GridStatus struct {
	Sold      map[int]grid.Sale
	Locks     map[int]grid.Lock
	Regions   map[string]grid.Region
	SoldCount int
	Version   shared.Version
	ReadAt    time.Time
}

type PriceView struct {
	UnitPrice     decimal.Decimal
	Currency      string
	SoldCellCount int
	TierSize      int
}

type GridQueries interface {
	Status(ctx context.Context) (*GridStatus, error)
	Price(ctx context.Context) (*PriceView, error)
	Quote(ctx context.Context, cells []int) (*pricing.Quote, error)
}

type gridQueriesImpl struct {
	store shared.DocumentStore
	calc  pricing.Calculator
	clock clock.Clock
}

func NewGridQueries(store shared.DocumentStore, calc pricing.Calculator, clock clock.Clock) GridQueries {
	return &gridQueriesImpl{store: store, calc: calc, clock: clock}
}

func (q *gridQueriesImpl) Status(ctx context.Context) (*GridStatus, error) {
	doc, version, err := q.read(ctx)
	if err != nil {
		return nil, err
	}
	now := q.clock.Now()
	regions := make(map[string]grid.Region, len(doc.Regions))
	for id, r := range doc.Regions {
		if r.Sold() || r.ReservedUntil.After(now) {
			regions[id] = r
		}
	}
	return &GridStatus{
		Sold:      doc.Sold,
		Locks:     doc.EffectiveLocks(now),
		Regions:   regions,
		SoldCount: doc.SoldCount(),
		Version:   version,
		ReadAt:    now,
	}, nil
}

func (q *gridQueriesImpl) Price(ctx context.Context) (*PriceView, error) {
	doc, _, err := q.read(ctx)
	if err != nil {
		return nil, err
	}
	sold := doc.SoldCount()
	return &PriceView{
		UnitPrice:     q.calc.UnitPrice(sold),
		Currency:      q.calc.Currency(),
		SoldCellCount: sold,
		TierSize:      q.calc.TierSize(),
	}, nil
}

// Quote prices a selection against the current sold count. It is advisory: finalization
// re-prices inside its own read.
func (q *gridQueriesImpl) Quote(ctx context.Context, cells []int) (*pricing.Quote, error) {
	selection, err := grid.NormalizeCells(cells)
	if err != nil {
		return nil, err
	}
	doc, _, err := q.read(ctx)
	if err != nil {
		return nil, err
	}
	quote := q.calc.Quote(doc.SoldCount(), len(selection))
	return &quote, nil
}

func (q *gridQueriesImpl) read(ctx context.Context) (*grid.Document, shared.Version, error) {
	doc, version, err := q.store.Read(ctx)
	if err != nil {
		return nil, shared.NoVersion, errs.Wrap(err, "read grid document")
	}
	return doc, version, nil
}
