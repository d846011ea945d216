package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/domain/pricing"
	"pixelgrid/internal/pkg/clock"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrRegionMismatch = errs.Mark(errs.New("region id does not match owner and cells"), errs.ErrInvalidSelection)

type FinalizeInput struct {
	Owner         string
	Cells         []int
	RegionID      string
	Metadata      grid.SaleMetadata
	ExpectedTotal decimal.Decimal
	// OrderID links the sale to a paid order; nil for direct finalization.
	OrderID *uuid.UUID
}

type FinalizeResult struct {
	RegionID  string
	Cells     []int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
	Currency  string
	SoldAt    time.Time
	Region    grid.Region
	// Replayed is true when the cells were already sold under this region.
	Replayed bool
}

type FinalizeCommands interface {
	// Finalize returns a *grid.Rejection for ALREADY_SOLD, LOCK_EXPIRED_OR_MISSING and
	// PRICE_MISMATCH; nothing is written in that case.
	Finalize(ctx context.Context, in FinalizeInput) (*FinalizeResult, error)
}

type finalizeCommandsImpl struct {
	cas       *shared.CAS
	uow       shared.UnitOfWork
	calc      pricing.Calculator
	clock     clock.Clock
	lease     LeaseSettings
	publisher shared.EventPublisher
	recorder  shared.Recorder
}

func NewFinalizeCommands(
	cas *shared.CAS,
	uow shared.UnitOfWork,
	calc pricing.Calculator,
	clock clock.Clock,
	lease LeaseSettings,
	publisher shared.EventPublisher,
	recorder shared.Recorder,
) FinalizeCommands {
	return &finalizeCommandsImpl{
		cas:       cas,
		uow:       uow,
		calc:      calc,
		clock:     clock,
		lease:     lease,
		publisher: publisher,
		recorder:  recorder,
	}
}

func (f *finalizeCommandsImpl) Finalize(ctx context.Context, in FinalizeInput) (*FinalizeResult, error) {
	cells, err := validateSelection(in.Owner, in.Cells)
	if err != nil {
		return nil, err
	}
	if in.RegionID != grid.RegionID(in.Owner, cells) {
		return nil, ErrRegionMismatch
	}

	if err := f.checkLedger(ctx, in.RegionID, cells); err != nil {
		f.recordOutcome(err)
		return nil, err
	}

	settlement := grid.Settlement{
		Owner:    in.Owner,
		Cells:    cells,
		RegionID: in.RegionID,
		Metadata: in.Metadata,
		Grace:    f.lease.FinalizeGrace,
	}

	res, err := shared.WithCASRetry(ctx, f.cas, "finalize", func(doc *grid.Document) (*FinalizeResult, bool, error) {
		now := f.clock.Now()

		if doc.AlreadySettled(in.RegionID, cells) {
			return &FinalizeResult{
				RegionID: in.RegionID,
				Cells:    cells,
				Currency: f.calc.Currency(),
				SoldAt:   doc.Sold[cells[0]].SoldAt,
				Region:   doc.Regions[in.RegionID],
				Replayed: true,
			}, false, nil
		}

		if rej := doc.CheckSettlement(settlement, now); rej != nil {
			return nil, false, rej
		}

		quote := f.calc.Quote(doc.SoldCount(), len(cells))
		if !pricing.SameAmount(quote.Total, in.ExpectedTotal) {
			return nil, false, priceMismatch(in.ExpectedTotal, quote)
		}

		region := doc.ApplySettlement(settlement, now)
		doc.CollectGarbage(now)

		return &FinalizeResult{
			RegionID:  in.RegionID,
			Cells:     cells,
			UnitPrice: quote.UnitPrice,
			Total:     quote.Total,
			Currency:  quote.Currency,
			SoldAt:    now,
			Region:    region,
		}, true, nil
	})
	if err != nil {
		f.recordOutcome(err)
		return nil, err
	}

	if res.Replayed {
		f.recorder.Settlement("replayed")
		return res, nil
	}

	f.recorder.Settlement("completed")
	f.mirrorSale(ctx, in, res)
	f.publishSale(ctx, in, res)
	return res, nil
}

// checkLedger rejects cells the relational ledger already records under another region.
func (f *finalizeCommandsImpl) checkLedger(ctx context.Context, regionID string, cells []int) error {
	ledger := f.uow.Sales()
	if ledger == nil {
		return nil
	}
	sold, err := ledger.SoldAmong(ctx, cells)
	if err != nil {
		return errs.Wrap(err, "check sale ledger")
	}
	var taken []int
	for _, c := range cells {
		if r, ok := sold[c]; ok && r != regionID {
			taken = append(taken, c)
		}
	}
	if len(taken) > 0 {
		return grid.Reject(grid.ReasonAlreadySold, taken, "recorded in sale ledger")
	}
	return nil
}

// mirrorSale copies a committed sale into the ledger. The document stays authoritative,
// so a failure here is logged and not returned.
func (f *finalizeCommandsImpl) mirrorSale(ctx context.Context, in FinalizeInput, res *FinalizeResult) {
	if f.uow.Sales() == nil {
		return
	}
	rec := shared.SaleRecord{
		Owner: in.Owner,
		Cells: res.Cells,
		Sale: grid.Sale{
			Name:     in.Metadata.Name,
			LinkURL:  in.Metadata.LinkURL,
			SoldAt:   res.SoldAt,
			RegionID: res.RegionID,
		},
		OrderID: in.OrderID,
	}
	err := f.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		return tx.Sales().Record(ctx, rec)
	})
	if err != nil {
		slog.Error("failed to mirror sale into ledger",
			"region_id", res.RegionID,
			"cells", len(res.Cells),
			"error", err.Error())
	}
}

func (f *finalizeCommandsImpl) publishSale(ctx context.Context, in FinalizeInput, res *FinalizeResult) {
	payload := map[string]any{
		"regionId":  res.RegionID,
		"owner":     in.Owner,
		"cells":     res.Cells,
		"rect":      res.Region.Rect,
		"unitPrice": res.UnitPrice.StringFixed(2),
		"total":     res.Total.StringFixed(2),
		"currency":  res.Currency,
		"soldAt":    res.SoldAt,
	}
	if in.OrderID != nil {
		payload["orderId"] = in.OrderID.String()
	}
	event := shared.Event{
		Type:       shared.EventSaleCompleted,
		Key:        res.RegionID,
		OccurredAt: res.SoldAt,
		Payload:    payload,
	}
	if err := f.publisher.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish sale event", "region_id", res.RegionID, "error", err.Error())
	}
}

func priceMismatch(expected decimal.Decimal, quote pricing.Quote) *grid.Rejection {
	rej := grid.Reject(grid.ReasonPriceMismatch, nil,
		fmt.Sprintf("expected %s, authoritative %s %s", expected.StringFixed(2), quote.Total.StringFixed(2), quote.Currency))
	rej.AuthoritativeTotal = quote.Total.StringFixed(2)
	return rej
}

func (f *finalizeCommandsImpl) recordOutcome(err error) {
	var rej *grid.Rejection
	if errs.As(err, &rej) {
		f.recorder.Settlement(string(rej.Reason))
		return
	}
	f.recorder.Settlement("error")
}
