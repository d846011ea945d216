package bootstrap

import (
	"log/slog"

	"pixelgrid/internal/infra/payment"
	"pixelgrid/internal/pkg/config"
	"pixelgrid/internal/usecase/shared"

	"go.uber.org/fx"
)

var PaymentModule = fx.Module("payment",
	fx.Provide(
		NewPaymentGateway,
	),
)

func NewPaymentGateway(cfg config.Config) shared.PaymentGateway {
	if !cfg.Payment.Configured() {
		slog.Warn("payment provider credentials missing, checkout is disabled")
		return payment.Disabled{}
	}
	return payment.NewPayPalGateway(cfg.Payment)
}
