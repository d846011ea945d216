package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/domain/order"
	"pixelgrid/internal/domain/pricing"
	"pixelgrid/internal/pkg/clock"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPaymentRefMismatch = errs.New("payment reference does not belong to order")
	ErrOrderNotPayable    = errs.New("order has no payment attached")
)

// staleClaimAfter is how long a finalizing or refund_pending claim may sit untouched before reconcile
// treats its holder as gone.
const staleClaimAfter = 2 * time.Minute

type CreateOrderInput struct {
	Owner         string
	Cells         []int
	RegionID      string
	Metadata      grid.SaleMetadata
	ExpectedTotal decimal.Decimal
}

// CaptureOutcome is the order as left by the call. Reason explains a non-completed outcome.
type CaptureOutcome struct {
	Order    *order.Order
	Finalize *FinalizeResult
	Reason   string
}

type CheckoutCommands interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*order.Order, error)
	CaptureAndFinalize(ctx context.Context, owner string, orderID uuid.UUID, paymentRef string) (*CaptureOutcome, error)
	Reconcile(ctx context.Context, owner string, orderID uuid.UUID) (*CaptureOutcome, error)
	HandleWebhook(ctx context.Context, header http.Header, body []byte) error
}

type checkoutCommandsImpl struct {
	cas       *shared.CAS
	uow       shared.UnitOfWork
	gateway   shared.PaymentGateway
	locks     LockCommands
	finalizer FinalizeCommands
	calc      pricing.Calculator
	clock     clock.Clock
	lease     LeaseSettings
	publisher shared.EventPublisher
	recorder  shared.Recorder
}

func NewCheckoutCommands(
	cas *shared.CAS,
	uow shared.UnitOfWork,
	gateway shared.PaymentGateway,
	locks LockCommands,
	finalizer FinalizeCommands,
	calc pricing.Calculator,
	clock clock.Clock,
	lease LeaseSettings,
	publisher shared.EventPublisher,
	recorder shared.Recorder,
) CheckoutCommands {
	return &checkoutCommandsImpl{
		cas:       cas,
		uow:       uow,
		gateway:   gateway,
		locks:     locks,
		finalizer: finalizer,
		calc:      calc,
		clock:     clock,
		lease:     lease,
		publisher: publisher,
		recorder:  recorder,
	}
}

// CreateOrder quotes the held selection from the authoritative sold count, opens a payment
// at the provider and persists a pending order.
func (c *checkoutCommandsImpl) CreateOrder(ctx context.Context, in CreateOrderInput) (*order.Order, error) {
	cells, err := validateSelection(in.Owner, in.Cells)
	if err != nil {
		return nil, err
	}
	if in.RegionID != grid.RegionID(in.Owner, cells) {
		return nil, ErrRegionMismatch
	}

	doc, _, err := c.cas.Read(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "read grid document")
	}
	now := c.clock.Now()
	if sold := doc.SoldCells(cells); len(sold) > 0 {
		return nil, grid.Reject(grid.ReasonAlreadySold, sold, "")
	}
	if missing := doc.NotHeld(in.Owner, cells, c.lease.HeldGrace, now); len(missing) > 0 {
		return nil, grid.Reject(grid.ReasonLockExpiredMissing, missing, "")
	}
	quote := c.calc.Quote(doc.SoldCount(), len(cells))
	if !pricing.SameAmount(quote.Total, in.ExpectedTotal) {
		return nil, priceMismatch(in.ExpectedTotal, quote)
	}

	o, err := order.NewOrder(order.NewOrderParams{
		Owner:       in.Owner,
		CellIndices: cells,
		RegionID:    in.RegionID,
		Metadata:    in.Metadata,
		UnitPrice:   quote.UnitPrice,
		Total:       quote.Total,
		Currency:    quote.Currency,
	}, now)
	if err != nil {
		return nil, err
	}

	ref, err := c.gateway.CreatePayment(ctx, shared.PaymentRequest{
		OrderID:     o.ID(),
		Amount:      quote.Total,
		Currency:    quote.Currency,
		Description: fmt.Sprintf("%d cells, region %s", len(cells), in.RegionID),
	})
	if err != nil {
		return nil, errs.Wrap(err, "create provider payment")
	}
	o.AttachPayment(ref)

	if err := c.uow.Orders().Create(ctx, o); err != nil {
		return nil, errs.Wrap(err, "persist order")
	}

	slog.Info("order created",
		"order_id", o.ID().String(),
		"region_id", o.RegionID(),
		"cells", len(cells),
		"total", quote.Total.StringFixed(2))
	return o, nil
}

func (c *checkoutCommandsImpl) CaptureAndFinalize(ctx context.Context, owner string, orderID uuid.UUID, paymentRef string) (*CaptureOutcome, error) {
	o, err := c.loadOwned(ctx, owner, orderID)
	if err != nil {
		return nil, err
	}
	if paymentRef != "" && o.PaymentRef() != "" && paymentRef != o.PaymentRef() {
		return nil, ErrPaymentRefMismatch
	}
	if o.Status() != order.StatusPending {
		return &CaptureOutcome{Order: o, Reason: o.FailureReason()}, nil
	}
	if o.PaymentRef() == "" {
		if paymentRef == "" {
			return nil, ErrOrderNotPayable
		}
		o.AttachPayment(paymentRef)
	}
	return c.capture(ctx, o)
}

// Reconcile drives an order whose previous attempt ended without a terminal status:
// unknown capture outcomes, abandoned claims and unfinished refunds.
func (c *checkoutCommandsImpl) Reconcile(ctx context.Context, owner string, orderID uuid.UUID) (*CaptureOutcome, error) {
	o, err := c.loadOwned(ctx, owner, orderID)
	if err != nil {
		return nil, err
	}
	return c.reconcile(ctx, o)
}

func (c *checkoutCommandsImpl) reconcile(ctx context.Context, o *order.Order) (*CaptureOutcome, error) {
	switch o.Status() {
	case order.StatusPending:
		if o.PaymentRef() == "" {
			return &CaptureOutcome{Order: o}, nil
		}
		return c.capture(ctx, o)

	case order.StatusFinalizing:
		if c.clock.Now().Sub(o.UpdatedAt()) < staleClaimAfter {
			return &CaptureOutcome{Order: o}, nil
		}
		return c.resumeStaleClaim(ctx, o)

	case order.StatusRefundPending:
		// A fresh refund claim belongs to the caller still refunding it.
		if c.clock.Now().Sub(o.UpdatedAt()) < staleClaimAfter {
			return &CaptureOutcome{Order: o, Reason: o.FailureReason()}, nil
		}
		details, err := c.gateway.LookupPayment(ctx, o.PaymentRef())
		if err != nil {
			return nil, errs.Wrap(err, "lookup payment for refund")
		}
		return c.refund(ctx, o, details.Amount)

	default:
		return &CaptureOutcome{Order: o, Reason: o.FailureReason()}, nil
	}
}

func (c *checkoutCommandsImpl) HandleWebhook(ctx context.Context, header http.Header, body []byte) error {
	event, err := c.gateway.VerifyWebhook(ctx, header, body)
	if err != nil {
		return errs.Mark(err, shared.ErrInvalidWebhookSignature)
	}

	switch event.Type {
	case shared.WebhookOrderApproved, shared.WebhookCaptureComplete, shared.WebhookCaptureDenied:
	default:
		slog.Info("ignoring payment webhook", "event_id", event.ID, "type", string(event.Type))
		return nil
	}

	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		slog.Warn("payment webhook without order id", "event_id", event.ID, "type", string(event.Type))
		return nil
	}
	o, err := c.uow.Orders().FindByID(ctx, orderID)
	if err != nil {
		if errs.Is(err, shared.ErrOrderNotFound) {
			slog.Warn("payment webhook for unknown order", "event_id", event.ID, "order_id", event.OrderID)
			return nil
		}
		return err
	}
	if event.PaymentRef != "" && o.PaymentRef() != "" && event.PaymentRef != o.PaymentRef() {
		slog.Warn("payment webhook reference mismatch", "event_id", event.ID, "order_id", event.OrderID)
		return nil
	}

	outcome, err := c.reconcile(ctx, o)
	if err != nil {
		if isTransient(err) {
			return err
		}
		slog.Warn("payment webhook left order unresolved",
			"event_id", event.ID,
			"order_id", event.OrderID,
			"error", err.Error())
		return nil
	}
	slog.Info("payment webhook processed",
		"event_id", event.ID,
		"order_id", event.OrderID,
		"status", outcome.Order.Status().String())
	return nil
}

// capture runs the whole settlement for a pending order under a finalizing claim.
func (c *checkoutCommandsImpl) capture(ctx context.Context, o *order.Order) (*CaptureOutcome, error) {
	claimed, current, err := c.transition(ctx, o, order.StatusFinalizing, nil)
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		return &CaptureOutcome{Order: current, Reason: current.FailureReason()}, nil
	}
	o = claimed

	details, err := c.gateway.LookupPayment(ctx, o.PaymentRef())
	if err != nil {
		return c.releaseClaim(ctx, o, errs.Wrap(err, "lookup payment"))
	}

	switch details.State {
	case shared.PaymentApproved, shared.PaymentCompleted:
	case shared.PaymentDeclined, shared.PaymentVoided:
		return c.finish(ctx, o, order.StatusDeclined, "payment "+string(details.State))
	case shared.PaymentPending:
		return c.releaseClaim(ctx, o, errs.Wrap(shared.ErrPaymentOutcomeUnknown, "capture pending at provider"))
	default:
		return c.releaseClaim(ctx, o, shared.ErrPaymentNotApproved)
	}
	alreadyCaptured := details.State == shared.PaymentCompleted

	doc, _, err := c.cas.Read(ctx)
	if err != nil {
		if alreadyCaptured {
			return c.settle(ctx, o, details.CaptureRef, details.Amount)
		}
		return c.releaseClaim(ctx, o, errs.Wrap(err, "read grid document"))
	}
	quote := c.calc.Quote(doc.SoldCount(), len(o.CellIndices()))
	if details.Currency != quote.Currency || !pricing.SameAmount(details.Amount, quote.Total) {
		reason := fmt.Sprintf("%s: payment %s %s, authoritative %s %s", grid.ReasonPriceMismatch,
			details.Amount.StringFixed(2), details.Currency, quote.Total.StringFixed(2), quote.Currency)
		if alreadyCaptured {
			return c.compensate(ctx, o, details.CaptureRef, details.Amount, reason)
		}
		return c.finish(ctx, o, order.StatusFailed, reason)
	}

	if !alreadyCaptured {
		renewed, err := c.locks.Renew(ctx, o.Owner(), o.CellIndices(), c.lease.Policy.Default)
		if err != nil {
			return c.releaseClaim(ctx, o, errs.Wrap(err, "renew lease before capture"))
		}
		if len(renewed.Lost) > 0 {
			return c.finish(ctx, o, order.StatusExpired, fmt.Sprintf("%s: cells %v", grid.ReasonLockExpiredMissing, renewed.Lost))
		}
	}

	captureRef, amount := details.CaptureRef, details.Amount
	if !alreadyCaptured {
		result, err := c.gateway.Capture(ctx, o.PaymentRef(), o.ID().String())
		switch {
		case err == nil:
			captureRef, amount = result.CaptureRef, result.Amount
		case errs.Is(err, shared.ErrPaymentDeclined):
			return c.finish(ctx, o, order.StatusDeclined, err.Error())
		default:
			// Outcome unknown or provider down: no money is known to have moved, so the
			// order goes back to pending and reconcile polls the provider later.
			return c.releaseClaim(ctx, o, err)
		}
	}

	return c.settle(ctx, o, captureRef, amount)
}

// settle records the capture and finalizes; any failure from here on has money captured.
func (c *checkoutCommandsImpl) settle(ctx context.Context, o *order.Order, captureRef string, amount decimal.Decimal) (*CaptureOutcome, error) {
	saved, current, err := c.transition(ctx, o, order.StatusFinalizing, func(next *order.Order) {
		next.RecordCapture(captureRef)
	})
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return &CaptureOutcome{Order: current, Reason: current.FailureReason()}, nil
	}
	o = saved

	orderID := o.ID()
	in := FinalizeInput{
		Owner:         o.Owner(),
		Cells:         o.CellIndices(),
		RegionID:      o.RegionID(),
		Metadata:      o.Metadata(),
		ExpectedTotal: amount,
		OrderID:       &orderID,
	}
	res, err := c.finalizer.Finalize(ctx, in)
	if err != nil && isTransient(err) {
		// A store failure can arrive after the write committed. Finalize replays an
		// existing sale, so a second run tells a lost reply from a lost write.
		slog.Warn("finalize outcome unclear after capture, replaying",
			"order_id", orderID.String(),
			"error", err.Error())
		res, err = c.finalizer.Finalize(ctx, in)
	}
	if err != nil && isTransient(err) {
		// The claim stays finalizing; reconcile resumes it once it goes stale.
		slog.Error("finalize unresolved after capture, deferring to reconcile",
			"order_id", orderID.String(),
			"capture_ref", captureRef,
			"error", err.Error())
		return &CaptureOutcome{Order: o, Reason: err.Error()},
			errs.Mark(errs.Wrap(err, "finalize after capture"), shared.ErrPaymentOutcomeUnknown)
	}
	if err != nil {
		slog.Warn("finalize failed after capture, compensating",
			"order_id", orderID.String(),
			"capture_ref", captureRef,
			"error", err.Error())
		return c.compensate(ctx, o, captureRef, amount, settlementReason(err))
	}

	out, err := c.finish(ctx, o, order.StatusCompleted, "")
	if err != nil {
		return nil, err
	}
	out.Finalize = res
	return out, nil
}

// compensate claims the refund through the finalizing -> refund_pending transition so that
// only one caller ever refunds.
func (c *checkoutCommandsImpl) compensate(ctx context.Context, o *order.Order, captureRef string, amount decimal.Decimal, reason string) (*CaptureOutcome, error) {
	claimed, current, err := c.transition(ctx, o, order.StatusRefundPending, func(next *order.Order) {
		if captureRef != "" {
			next.RecordCapture(captureRef)
		}
		next.Fail(reason)
	})
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		return &CaptureOutcome{Order: current, Reason: current.FailureReason()}, nil
	}
	c.recorder.Compensation("claimed")
	return c.refund(ctx, claimed, amount)
}

func (c *checkoutCommandsImpl) refund(ctx context.Context, o *order.Order, amount decimal.Decimal) (*CaptureOutcome, error) {
	reason := o.FailureReason()
	var refundErr error
	if o.CaptureRef() == "" {
		refundErr = errs.New("no capture reference to refund")
	} else {
		_, refundErr = c.gateway.Refund(ctx, o.CaptureRef(), amount, o.Currency(), "refund-"+o.ID().String())
	}

	if refundErr != nil && (errs.Is(refundErr, shared.ErrProviderUnavailable) || errs.Is(refundErr, shared.ErrPaymentOutcomeUnknown)) {
		// The refund may have landed. The order stays refund_pending so reconcile retries
		// under the same idempotency key.
		c.recorder.Compensation("deferred")
		slog.Warn("refund outcome unknown, order left refund_pending",
			"order_id", o.ID().String(),
			"amount", amount.StringFixed(2),
			"error", refundErr.Error())
		return &CaptureOutcome{Order: o, Reason: reason},
			errs.Mark(errs.Wrap(refundErr, "refund"), shared.ErrPaymentOutcomeUnknown)
	}

	if refundErr == nil {
		done, current, err := c.transition(ctx, o, order.StatusRefunded, nil)
		if err != nil {
			return nil, err
		}
		if done == nil {
			return &CaptureOutcome{Order: current, Reason: current.FailureReason()}, nil
		}
		c.recorder.Compensation("refunded")
		c.publish(ctx, shared.EventRefundCompleted, done, map[string]any{
			"amount": amount.StringFixed(2),
			"reason": reason,
		})
		return &CaptureOutcome{Order: done, Reason: reason}, nil
	}

	manualReason := fmt.Sprintf("%s; refund failed: %s", reason, refundErr.Error())
	next := o.Clone()
	if err := next.TransitionTo(order.StatusRefundFailed, c.clock.Now()); err != nil {
		return nil, err
	}
	next.FlagManualRefund(manualReason)
	record := order.NewManualRefund(next, amount, manualReason, c.clock.Now())

	err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		if err := tx.Orders().Transition(ctx, next, o); err != nil {
			return err
		}
		return tx.ManualRefunds().Create(ctx, record)
	})
	if err != nil {
		if errs.Is(err, shared.ErrOrderStatusConflict) {
			current, findErr := c.uow.Orders().FindByID(ctx, o.ID())
			if findErr != nil {
				return nil, findErr
			}
			return &CaptureOutcome{Order: current, Reason: current.FailureReason()}, nil
		}
		// The order stays refund_pending, which reconcile picks up again.
		slog.Error("manual refund record could not be persisted",
			"order_id", o.ID().String(),
			"owner", o.Owner(),
			"region_id", o.RegionID(),
			"amount", amount.StringFixed(2),
			"currency", o.Currency(),
			"reason", manualReason,
			"error", err.Error())
		return nil, errs.Wrap(err, "persist manual refund")
	}

	c.recorder.Compensation("manual")
	slog.Error("automated refund failed, manual refund required",
		"order_id", o.ID().String(),
		"amount", amount.StringFixed(2),
		"currency", o.Currency(),
		"reason", manualReason)
	c.publish(ctx, shared.EventManualRefundRequired, next, map[string]any{
		"amount":     amount.StringFixed(2),
		"captureRef": next.CaptureRef(),
		"reason":     manualReason,
	})
	return &CaptureOutcome{Order: next, Reason: manualReason}, nil
}

// resumeStaleClaim takes over a finalizing claim whose holder disappeared.
func (c *checkoutCommandsImpl) resumeStaleClaim(ctx context.Context, o *order.Order) (*CaptureOutcome, error) {
	details, err := c.gateway.LookupPayment(ctx, o.PaymentRef())
	if err != nil {
		return nil, errs.Wrap(err, "lookup payment")
	}
	if details.State == shared.PaymentCompleted {
		return c.settle(ctx, o, details.CaptureRef, details.Amount)
	}
	back, current, err := c.transition(ctx, o, order.StatusPending, nil)
	if err != nil {
		return nil, err
	}
	if back == nil {
		return &CaptureOutcome{Order: current}, nil
	}
	return c.capture(ctx, back)
}

// releaseClaim hands a finalizing order back to pending and returns cause.
func (c *checkoutCommandsImpl) releaseClaim(ctx context.Context, o *order.Order, cause error) (*CaptureOutcome, error) {
	back, current, err := c.transition(ctx, o, order.StatusPending, nil)
	if err != nil {
		slog.Error("failed to release capture claim", "order_id", o.ID().String(), "error", err.Error())
		return nil, cause
	}
	if back == nil {
		back = current
	}
	return &CaptureOutcome{Order: back, Reason: cause.Error()}, cause
}

func (c *checkoutCommandsImpl) finish(ctx context.Context, o *order.Order, status order.Status, reason string) (*CaptureOutcome, error) {
	done, current, err := c.transition(ctx, o, status, func(next *order.Order) {
		if reason != "" {
			next.Fail(reason)
		}
	})
	if err != nil {
		return nil, err
	}
	if done == nil {
		return &CaptureOutcome{Order: current, Reason: current.FailureReason()}, nil
	}
	if status == order.StatusCompleted {
		c.recorder.Settlement("order_completed")
	}
	slog.Info("order settled", "order_id", done.ID().String(), "status", status.String(), "reason", reason)
	return &CaptureOutcome{Order: done, Reason: reason}, nil
}

// transition applies a conditional status update from o's current status. When another
// caller moved the order first it returns (nil, freshly read order, nil).
func (c *checkoutCommandsImpl) transition(ctx context.Context, o *order.Order, to order.Status, mutate func(*order.Order)) (*order.Order, *order.Order, error) {
	next := o.Clone()
	if err := next.TransitionTo(to, c.clock.Now()); err != nil {
		return nil, nil, err
	}
	if mutate != nil {
		mutate(next)
	}
	err := c.uow.Orders().Transition(ctx, next, o)
	if err == nil {
		return next, nil, nil
	}
	if !errs.Is(err, shared.ErrOrderStatusConflict) {
		return nil, nil, errs.Wrapf(err, "order %s -> %s", o.Status(), to)
	}
	current, findErr := c.uow.Orders().FindByID(ctx, o.ID())
	if findErr != nil {
		return nil, nil, findErr
	}
	slog.Info("order moved concurrently", "order_id", o.ID().String(), "wanted", to.String(), "current", current.Status().String())
	return nil, current, nil
}

func (c *checkoutCommandsImpl) loadOwned(ctx context.Context, owner string, id uuid.UUID) (*order.Order, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	o, err := c.uow.Orders().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Owner() != owner {
		return nil, shared.ErrOrderNotFound
	}
	return o, nil
}

func (c *checkoutCommandsImpl) publish(ctx context.Context, typ shared.EventType, o *order.Order, extra map[string]any) {
	payload := map[string]any{
		"orderId":  o.ID().String(),
		"owner":    o.Owner(),
		"regionId": o.RegionID(),
		"currency": o.Currency(),
		"status":   o.Status().String(),
	}
	for k, v := range extra {
		payload[k] = v
	}
	event := shared.Event{Type: typ, Key: o.ID().String(), OccurredAt: c.clock.Now(), Payload: payload}
	if err := c.publisher.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish order event", "order_id", o.ID().String(), "type", string(typ), "error", err.Error())
	}
}

func settlementReason(err error) string {
	var rej *grid.Rejection
	if errs.As(err, &rej) {
		return rej.Error()
	}
	if errs.Is(err, shared.ErrStoreContention) {
		return "STORE_CONTENTION"
	}
	return "SETTLEMENT_ERROR: " + err.Error()
}

func isTransient(err error) bool {
	return errs.Is(err, shared.ErrStoreContention) ||
		errs.Is(err, shared.ErrProviderUnavailable) ||
		errs.Is(err, shared.ErrPaymentOutcomeUnknown) ||
		errs.Is(err, errs.ErrStoreUnavailable)
}
