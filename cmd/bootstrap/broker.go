package bootstrap

import (
	"context"
	"log/slog"

	"pixelgrid/internal/infra/broker"
	"pixelgrid/internal/pkg/config"
	"pixelgrid/internal/usecase/shared"

	"go.uber.org/fx"
)

var BrokerModule = fx.Module("broker",
	fx.Provide(
		NewEventPublisher,
	),
)

func NewEventPublisher(lc fx.Lifecycle, cfg config.Config) shared.EventPublisher {
	if cfg.Broker.URL == "" {
		slog.Info("AMQP_URL not set, domain events are dropped")
		return shared.NopPublisher{}
	}
	pub := broker.NewAMQPPublisher(cfg.Broker)
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return pub.Close()
		},
	})
	return pub
}
