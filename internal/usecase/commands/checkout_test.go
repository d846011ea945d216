//go:build unit

package commands_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/domain/order"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/commands"
	"pixelgrid/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type CheckoutCommandsTestSuite struct {
	suite.Suite
	env *env
	ctx context.Context
}

func TestCheckoutCommandsTestSuite(t *testing.T) {
	suite.Run(t, new(CheckoutCommandsTestSuite))
}

func (s *CheckoutCommandsTestSuite) SetupTest() {
	s.env = newEnv()
	s.ctx = context.Background()
}

// openOrder reserves cells for owner and creates an order priced at one dollar per pixel.
func (s *CheckoutCommandsTestSuite) openOrder(owner string, lease time.Duration, total string, cells ...int) *order.Order {
	r, err := s.env.locks.Acquire(s.ctx, owner, cells, lease)
	s.Require().NoError(err)
	s.Require().Len(r.Granted, len(cells))

	o, err := s.env.checkout.CreateOrder(s.ctx, commands.CreateOrderInput{
		Owner:         owner,
		Cells:         cells,
		RegionID:      r.RegionID,
		Metadata:      grid.SaleMetadata{Name: owner, LinkURL: "https://" + owner + ".example"},
		ExpectedTotal: money(total),
	})
	s.Require().NoError(err)
	return o
}

func (s *CheckoutCommandsTestSuite) reload(id uuid.UUID) *order.Order {
	o, err := s.env.uow.Orders().FindByID(s.ctx, id)
	s.Require().NoError(err)
	return o
}

func (s *CheckoutCommandsTestSuite) TestCreateOrder() {
	o := s.openOrder("alice", 0, "200.00", 1, 2)

	s.Equal(order.StatusPending, o.Status())
	s.Equal("PAY-1", o.PaymentRef())
	s.Equal("1.00", o.UnitPriceAtQuote().StringFixed(2))
	s.Equal("200.00", o.TotalAtQuote().StringFixed(2))
	s.Equal(order.StatusPending, s.reload(o.ID()).Status())
}

func (s *CheckoutCommandsTestSuite) TestCreateOrderRejections() {
	s.Run("price mismatch", func() {
		r, err := s.env.locks.Acquire(s.ctx, "alice", []int{1}, 0)
		s.Require().NoError(err)

		_, err = s.env.checkout.CreateOrder(s.ctx, commands.CreateOrderInput{
			Owner: "alice", Cells: []int{1}, RegionID: r.RegionID, ExpectedTotal: money("99.99"),
		})

		var rej *grid.Rejection
		s.Require().True(errs.As(err, &rej))
		s.Equal(grid.ReasonPriceMismatch, rej.Reason)
		s.Equal("100.00", rej.AuthoritativeTotal)
	})

	s.Run("cells not held", func() {
		_, err := s.env.checkout.CreateOrder(s.ctx, commands.CreateOrderInput{
			Owner: "bob", Cells: []int{50}, RegionID: grid.RegionID("bob", []int{50}), ExpectedTotal: money("100.00"),
		})

		var rej *grid.Rejection
		s.Require().True(errs.As(err, &rej))
		s.Equal(grid.ReasonLockExpiredMissing, rej.Reason)
	})

	s.Run("lease about to lapse", func() {
		r, err := s.env.locks.Acquire(s.ctx, "carol", []int{60}, 15*time.Second)
		s.Require().NoError(err)
		s.env.clock.Add(12 * time.Second)

		_, err = s.env.checkout.CreateOrder(s.ctx, commands.CreateOrderInput{
			Owner: "carol", Cells: []int{60}, RegionID: r.RegionID, ExpectedTotal: money("100.00"),
		})

		var rej *grid.Rejection
		s.Require().True(errs.As(err, &rej))
		s.Equal(grid.ReasonLockExpiredMissing, rej.Reason)
	})
}

func (s *CheckoutCommandsTestSuite) TestCaptureAndFinalizeCompletes() {
	o := s.openOrder("alice", 0, "200.00", 1, 2)
	s.env.gateway.approve(o.PaymentRef())

	out, err := s.env.checkout.CaptureAndFinalize(s.ctx, "alice", o.ID(), o.PaymentRef())

	s.Require().NoError(err)
	s.Equal(order.StatusCompleted, out.Order.Status())
	s.Equal("CAP-PAY-1", out.Order.CaptureRef())
	s.Require().NotNil(out.Finalize)
	s.Equal([]int{1, 2}, out.Finalize.Cells)
	s.Equal([]string{o.ID().String()}, s.env.gateway.captureKeys, "capture is keyed by the order id")

	doc := s.env.document()
	s.Equal(o.RegionID(), doc.Sold[1].RegionID)
	s.Equal("https://alice.example", doc.Regions[o.RegionID()].LinkURL)
	s.Equal(order.StatusCompleted, s.reload(o.ID()).Status())
	s.Contains(s.env.publisher.types(), shared.EventSaleCompleted)
}

func (s *CheckoutCommandsTestSuite) TestCaptureIsIdempotent() {
	o := s.openOrder("alice", 0, "100.00", 1)
	s.env.gateway.approve(o.PaymentRef())
	_, err := s.env.checkout.CaptureAndFinalize(s.ctx, "alice", o.ID(), "")
	s.Require().NoError(err)

	out, err := s.env.checkout.CaptureAndFinalize(s.ctx, "alice", o.ID(), o.PaymentRef())

	s.Require().NoError(err)
	s.Equal(order.StatusCompleted, out.Order.Status())
	s.Len(s.env.gateway.captureKeys, 1)
}

func (s *CheckoutCommandsTestSuite) TestCaptureGuards() {
	o := s.openOrder("alice", 0, "100.00", 1)

	s.Run("other owner sees not found", func() {
		_, err := s.env.checkout.CaptureAndFinalize(s.ctx, "mallory", o.ID(), "")
		s.True(errs.Is(err, shared.ErrOrderNotFound))
	})

	s.Run("foreign payment reference", func() {
		_, err := s.env.checkout.CaptureAndFinalize(s.ctx, "alice", o.ID(), "PAY-999")
		s.True(errs.Is(err, commands.ErrPaymentRefMismatch))
	})

	s.Run("unapproved payment leaves the order pending", func() {
		out, err := s.env.checkout.CaptureAndFinalize(s.ctx, "alice", o.ID(), "")
		s.True(errs.Is(err, shared.ErrPaymentNotApproved))
		s.Require().NotNil(out)
		s.Equal(order.StatusPending, out.Order.Status())
		s.Empty(s.env.gateway.captureKeys)
	})
}

func (s *CheckoutCommandsTestSuite) TestDeclinedPayment() {
	o := s.openOrder("alice", 0, "100.00", 1)
	s.env.gateway.approve(o.PaymentRef())
	s.env.gateway.captureErr = errs.Wrap(shared.ErrPaymentDeclined, "card declined")

	out, err := s.env.checkout.CaptureAndFinalize(s.ctx, "alice", o.ID(), "")

	s.Require().NoError(err)
	s.Equal(order.StatusDeclined, out.Order.Status())
	s.Zero(s.env.document().SoldCount())
}

func (s *CheckoutCommandsTestSuite) TestUnknownOutcomeStaysPendingUntilReconciled() {
	o := s.openOrder("alice", 0, "100.00", 1)
	s.env.gateway.approve(o.PaymentRef())
	s.env.gateway.captureErr = errs.Wrap(shared.ErrPaymentOutcomeUnknown, "timeout")
	s.env.gateway.captureLands = true

	out, err := s.env.checkout.CaptureAndFinalize(s.ctx, "alice", o.ID(), "")

	s.True(errs.Is(err, shared.ErrPaymentOutcomeUnknown))
	s.Require().NotNil(out)
	s.Equal(order.StatusPending, out.Order.Status())
	s.Zero(s.env.document().SoldCount())

	s.env.gateway.captureErr = nil
	out, err = s.env.checkout.Reconcile(s.ctx, "alice", o.ID())

	s.Require().NoError(err)
	s.Equal(order.StatusCompleted, out.Order.Status())
	s.Len(s.env.gateway.captureKeys, 1, "a landed capture is never repeated")
	s.Equal(1, s.env.document().SoldCount())
}

func (s *CheckoutCommandsTestSuite) TestLockLostAfterCaptureIsRefunded() {
	o := s.openOrder("alice", 0, "100.00", 1)
	s.env.gateway.approve(o.PaymentRef())
	s.env.gateway.onCapture = func() { s.env.clock.Add(4 * time.Minute) }

	out, err := s.env.checkout.CaptureAndFinalize(s.ctx, "alice", o.ID(), "")

	s.Require().NoError(err)
	s.Equal(order.StatusRefunded, out.Order.Status())
	s.Contains(out.Reason, string(grid.ReasonLockExpiredMissing))
	s.Equal([]string{"refund-" + o.ID().String()}, s.env.gateway.refundKeys)
	s.Zero(s.env.document().SoldCount())
	s.Contains(s.env.publisher.types(), shared.EventRefundCompleted)
}

func (s *CheckoutCommandsTestSuite) TestFailedRefundNeedsManualAction() {
	o := s.openOrder("alice", 0, "100.00", 1)
	s.env.gateway.approve(o.PaymentRef())
	s.env.gateway.onCapture = func() { s.env.clock.Add(4 * time.Minute) }
	s.env.gateway.refundErr = errs.Mark(errs.New("provider rejected refund"), shared.ErrRefundFailed)

	out, err := s.env.checkout.CaptureAndFinalize(s.ctx, "alice", o.ID(), "")

	s.Require().NoError(err)
	s.Equal(order.StatusRefundFailed, out.Order.Status())
	s.True(out.Order.NeedsManualRefund())

	open, err := s.env.uow.ManualRefunds().ListOpen(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(open, 1)
	s.Equal(o.ID(), open[0].OrderID)
	s.Equal("CAP-"+o.PaymentRef(), open[0].CaptureRef)
	s.Equal("100.00", open[0].Amount.StringFixed(2))
	s.Contains(s.env.publisher.types(), shared.EventManualRefundRequired)
}

func (s *CheckoutCommandsTestSuite) TestPriceMovedBeforeCapture() {
	o := s.openOrder("alice", 0, "200.00", 0, 1)

	bobCells := []int{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}
	r, err := s.env.locks.Acquire(s.ctx, "bob", bobCells, 0)
	s.Require().NoError(err)
	_, err = s.env.finalizer.Finalize(s.ctx, commands.FinalizeInput{
		Owner: "bob", Cells: bobCells, RegionID: r.RegionID, ExpectedTotal: money("1000.00"),
	})
	s.Require().NoError(err)
	s.env.gateway.approve(o.PaymentRef())

	out, err := s.env.checkout.CaptureAndFinalize(s.ctx, "alice", o.ID(), "")

	s.Require().NoError(err)
	s.Equal(order.StatusFailed, out.Order.Status())
	s.Contains(out.Reason, string(grid.ReasonPriceMismatch))
	s.Empty(s.env.gateway.captureKeys, "nothing is captured at a stale price")
}

func (s *CheckoutCommandsTestSuite) TestReconcileResumesStaleClaim() {
	o := s.openOrder("alice", 10*time.Minute, "100.00", 1)
	claimed := o.Clone()
	s.Require().NoError(claimed.TransitionTo(order.StatusFinalizing, s.env.clock.Now()))
	s.Require().NoError(s.env.uow.Orders().Transition(s.ctx, claimed, o))
	s.env.gateway.settleAtProvider(o.PaymentRef())

	s.env.clock.Add(time.Minute)
	out, err := s.env.checkout.Reconcile(s.ctx, "alice", o.ID())
	s.Require().NoError(err)
	s.Equal(order.StatusFinalizing, out.Order.Status(), "a fresh claim is left to its holder")

	s.env.clock.Add(2 * time.Minute)
	out, err = s.env.checkout.Reconcile(s.ctx, "alice", o.ID())
	s.Require().NoError(err)
	s.Equal(order.StatusCompleted, out.Order.Status())
	s.Equal("CAP-"+o.PaymentRef(), out.Order.CaptureRef())
	s.Empty(s.env.gateway.captureKeys)
}

func (s *CheckoutCommandsTestSuite) TestHandleWebhook() {
	o := s.openOrder("alice", 0, "100.00", 1)
	s.env.gateway.approve(o.PaymentRef())

	s.Run("invalid signature", func() {
		err := s.env.checkout.HandleWebhook(s.ctx, http.Header{}, []byte(`{}`))
		s.True(errs.Is(err, shared.ErrInvalidWebhookSignature))
	})

	s.Run("irrelevant event types are acknowledged", func() {
		s.env.gateway.webhook = &shared.WebhookEvent{ID: "EV-0", Type: shared.WebhookCaptureRefunded, OrderID: o.ID().String()}
		s.NoError(s.env.checkout.HandleWebhook(s.ctx, http.Header{}, nil))
		s.Equal(order.StatusPending, s.reload(o.ID()).Status())
	})

	s.Run("unknown order is acknowledged", func() {
		s.env.gateway.webhook = &shared.WebhookEvent{ID: "EV-1", Type: shared.WebhookOrderApproved, OrderID: uuid.NewString()}
		s.NoError(s.env.checkout.HandleWebhook(s.ctx, http.Header{}, nil))
	})

	s.Run("approval drives the capture", func() {
		s.env.gateway.webhook = &shared.WebhookEvent{
			ID: "EV-2", Type: shared.WebhookOrderApproved, OrderID: o.ID().String(), PaymentRef: o.PaymentRef(),
		}
		s.NoError(s.env.checkout.HandleWebhook(s.ctx, http.Header{}, nil))
		s.Equal(order.StatusCompleted, s.reload(o.ID()).Status())
	})

	s.Run("redelivery is harmless", func() {
		s.NoError(s.env.checkout.HandleWebhook(s.ctx, http.Header{}, nil))
		s.Len(s.env.gateway.captureKeys, 1)
	})
}

func (s *CheckoutCommandsTestSuite) TestStoreErrorAfterCommitSettlesTheSale() {
	o := s.openOrder("alice", 0, "100.00", 1)
	s.env.gateway.approve(o.PaymentRef())
	s.env.gateway.onCapture = func() { s.env.faults.loseReplies(1) }

	out, err := s.env.checkout.CaptureAndFinalize(s.ctx, "alice", o.ID(), "")

	s.Require().NoError(err)
	s.Equal(order.StatusCompleted, out.Order.Status())
	s.Empty(s.env.gateway.refundKeys, "a committed sale is never refunded")
	s.True(s.env.document().AlreadySettled(o.RegionID(), o.CellIndices()))
	s.Equal(order.StatusCompleted, s.reload(o.ID()).Status())
}

func (s *CheckoutCommandsTestSuite) TestStoreOutageAfterCaptureDefersToReconcile() {
	o := s.openOrder("alice", 0, "100.00", 1)
	s.env.gateway.approve(o.PaymentRef())
	s.env.gateway.onCapture = func() { s.env.faults.setDown(true) }

	out, err := s.env.checkout.CaptureAndFinalize(s.ctx, "alice", o.ID(), "")

	s.True(errs.Is(err, shared.ErrPaymentOutcomeUnknown), "got %v", err)
	s.Require().NotNil(out)
	s.Equal(order.StatusFinalizing, out.Order.Status())
	s.Equal(order.StatusFinalizing, s.reload(o.ID()).Status())
	s.Empty(s.env.gateway.refundKeys)

	s.env.faults.setDown(false)
	s.env.clock.Add(2*time.Minute + time.Second)
	out, err = s.env.checkout.Reconcile(s.ctx, "alice", o.ID())

	s.Require().NoError(err)
	s.Equal(order.StatusCompleted, out.Order.Status())
	s.Len(s.env.gateway.captureKeys, 1)
	s.Empty(s.env.gateway.refundKeys)
	s.Equal(1, s.env.document().SoldCount())
}

func (s *CheckoutCommandsTestSuite) TestUnknownRefundOutcomeIsRetried() {
	o := s.openOrder("alice", 0, "100.00", 1)
	s.env.gateway.approve(o.PaymentRef())
	s.env.gateway.onCapture = func() { s.env.clock.Add(4 * time.Minute) }
	s.env.gateway.refundErr = errs.Mark(errs.New("refund request timed out"), shared.ErrProviderUnavailable)

	out, err := s.env.checkout.CaptureAndFinalize(s.ctx, "alice", o.ID(), "")

	s.True(errs.Is(err, shared.ErrPaymentOutcomeUnknown), "got %v", err)
	s.Require().NotNil(out)
	s.Equal(order.StatusRefundPending, out.Order.Status())
	s.False(out.Order.NeedsManualRefund())
	open, err := s.env.uow.ManualRefunds().ListOpen(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(open)

	s.Run("a fresh refund claim is left alone", func() {
		out, err := s.env.checkout.Reconcile(s.ctx, "alice", o.ID())
		s.Require().NoError(err)
		s.Equal(order.StatusRefundPending, out.Order.Status())
		s.Len(s.env.gateway.refundKeys, 1)
	})

	s.env.gateway.refundErr = nil
	s.env.clock.Add(2*time.Minute + time.Second)
	out, err = s.env.checkout.Reconcile(s.ctx, "alice", o.ID())

	s.Require().NoError(err)
	s.Equal(order.StatusRefunded, out.Order.Status())
	key := "refund-" + o.ID().String()
	s.Equal([]string{key, key}, s.env.gateway.refundKeys, "the retry reuses the idempotency key")
}

// race fans n callers out over capture, reconcile and webhook delivery for one order.
func (s *CheckoutCommandsTestSuite) race(o *order.Order, n int) []error {
	s.env.gateway.webhook = &shared.WebhookEvent{
		ID: "EV-RACE", Type: shared.WebhookOrderApproved, OrderID: o.ID().String(), PaymentRef: o.PaymentRef(),
	}
	start := make(chan struct{})
	errsOut := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			switch i % 3 {
			case 0:
				_, errsOut[i] = s.env.checkout.CaptureAndFinalize(s.ctx, "alice", o.ID(), o.PaymentRef())
			case 1:
				_, errsOut[i] = s.env.checkout.Reconcile(s.ctx, "alice", o.ID())
			default:
				errsOut[i] = s.env.checkout.HandleWebhook(s.ctx, http.Header{}, nil)
			}
		}()
	}
	close(start)
	wg.Wait()
	return errsOut
}

func (s *CheckoutCommandsTestSuite) TestConcurrentCallersCaptureOnce() {
	o := s.openOrder("alice", 0, "200.00", 1, 2)
	s.env.gateway.approve(o.PaymentRef())

	for _, err := range s.race(o, 16) {
		s.NoError(err)
	}

	s.Equal([]string{o.ID().String()}, s.env.gateway.captureKeys)
	s.Empty(s.env.gateway.refundKeys)
	s.Equal(order.StatusCompleted, s.reload(o.ID()).Status())
	s.Equal(2, s.env.document().SoldCount())
}

func (s *CheckoutCommandsTestSuite) TestConcurrentCallersRefundOnce() {
	o := s.openOrder("alice", 0, "100.00", 1)
	s.env.gateway.approve(o.PaymentRef())
	s.env.gateway.onCapture = func() { s.env.clock.Add(4 * time.Minute) }

	for _, err := range s.race(o, 16) {
		s.NoError(err)
	}

	s.Equal([]string{o.ID().String()}, s.env.gateway.captureKeys)
	s.Equal([]string{"refund-" + o.ID().String()}, s.env.gateway.refundKeys)
	s.Equal(order.StatusRefunded, s.reload(o.ID()).Status())
	s.Zero(s.env.document().SoldCount())
}
