package commands

import (
	"context"
	"log/slog"
	"time"

	"pixelgrid/internal/pkg/clock"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/shared"
)

const sweepBatch = 50

// Sweeper periodically reconciles orders left behind by crashed or timed-out requests
// and reports how many manual refunds are open.
type Sweeper struct {
	checkout CheckoutCommands
	orders   shared.OrderRepository
	refunds  shared.ManualRefundRepository
	clock    clock.Clock
	recorder shared.Recorder
}

func NewSweeper(checkout CheckoutCommands, orders shared.OrderRepository, refunds shared.ManualRefundRepository, clock clock.Clock, recorder shared.Recorder) *Sweeper {
	return &Sweeper{checkout: checkout, orders: orders, refunds: refunds, clock: clock, recorder: recorder}
}

// Sweep returns the number of orders it reconciled.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	stuck, err := s.orders.ListStuck(ctx, s.clock.Now().Add(-staleClaimAfter), sweepBatch)
	if err != nil {
		return 0, errs.Wrap(err, "list stuck orders")
	}

	done := 0
	for _, o := range stuck {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		outcome, err := s.checkout.Reconcile(ctx, o.Owner(), o.ID())
		if err != nil {
			slog.Warn("sweep could not reconcile order", "order_id", o.ID().String(), "status", o.Status().String(), "error", err.Error())
			continue
		}
		done++
		slog.Info("sweep reconciled order", "order_id", o.ID().String(), "from", o.Status().String(), "to", outcome.Order.Status().String())
	}

	if s.refunds != nil {
		open, err := s.refunds.ListOpen(ctx, 1000)
		if err != nil {
			return done, errs.Wrap(err, "list open manual refunds")
		}
		s.recorder.ManualRefundsOpen(len(open))
	}
	return done, nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				slog.Error("order sweep failed", "error", err.Error())
			}
		}
	}
}
