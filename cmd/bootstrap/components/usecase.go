package components

import (
	"context"
	"log/slog"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/domain/pricing"
	"pixelgrid/internal/pkg/clock"
	"pixelgrid/internal/pkg/config"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase"
	"pixelgrid/internal/usecase/commands"
	"pixelgrid/internal/usecase/queries"
	"pixelgrid/internal/usecase/shared"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	usecaseBaseOption,
	usecaseQueriesModule,
	usecaseValidatorsModule,
	usecaseCommandsModule,
)

var usecaseBaseOption = fx.Provide(
	clock.NewRealClock,
	NewCalculator,
	NewLeaseSettings,
	NewCAS,
)

var usecaseCommandsModule = fx.Module("usecase/commands",
	fx.Provide(
		commands.NewLockCommands,
		commands.NewFinalizeCommands,
		commands.NewCheckoutCommands,
		NewSweeper,
	),
	fx.Invoke(startSweeper),
)

var usecaseQueriesModule = fx.Module("usecase/queries",
	fx.Provide(
		queries.NewGridQueries,
		queries.NewOrderQueries,
	),
)

var usecaseValidatorsModule = fx.Module("usecase/validators",
	fx.Provide(
		usecase.NewTokenValidator,
	),
)

func NewCalculator(cfg config.Config) (pricing.Calculator, error) {
	base, err := decimal.NewFromString(cfg.Pricing.Base)
	if err != nil {
		return nil, errs.Wrap(err, "invalid PRICING_BASE")
	}
	step, err := decimal.NewFromString(cfg.Pricing.TierIncrement)
	if err != nil {
		return nil, errs.Wrap(err, "invalid PRICING_TIER_INCREMENT")
	}
	return pricing.NewTieredCalculator(pricing.Params{
		Base:          base,
		TierIncrement: step,
		TierSizeCells: cfg.Pricing.TierSizeCells,
		PixelsPerCell: grid.PixelsPerCell,
		Currency:      cfg.Pricing.Currency,
	})
}

func NewLeaseSettings(cfg config.Config) commands.LeaseSettings {
	return commands.LeaseSettings{
		Policy: grid.LeasePolicy{
			Default:     cfg.Lease.Default,
			Min:         cfg.Lease.Min,
			MaxDuration: cfg.Lease.MaxDuration,
		},
		HeldGrace:     cfg.Lease.HeldGrace,
		FinalizeGrace: cfg.Lease.FinalizeGrace,
	}
}

func NewCAS(cfg config.Config, store shared.DocumentStore, recorder shared.Recorder) *shared.CAS {
	return shared.NewCAS(store, shared.RetryPolicy{
		MaxAttempts: cfg.Store.CASMaxAttempts,
		BaseBackoff: cfg.Store.CASBaseBackoff,
		MaxBackoff:  cfg.Store.CASMaxBackoff,
	}, recorder)
}

func NewSweeper(checkout commands.CheckoutCommands, uow shared.UnitOfWork, refunds shared.ManualRefundRepository, clk clock.Clock, recorder shared.Recorder) *commands.Sweeper {
	return commands.NewSweeper(checkout, uow.Orders(), refunds, clk, recorder)
}

func startSweeper(lc fx.Lifecycle, cfg config.Config, sweeper *commands.Sweeper) {
	if cfg.Payment.SweepInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			slog.Info("order sweeper started", "interval", cfg.Payment.SweepInterval.String())
			go func() {
				defer close(done)
				sweeper.Run(ctx, cfg.Payment.SweepInterval)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
