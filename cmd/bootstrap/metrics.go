package bootstrap

import (
	"pixelgrid/internal/handler"
	"pixelgrid/internal/infra/metrics"
	"pixelgrid/internal/usecase/shared"

	"go.uber.org/fx"
)

var MetricsModule = fx.Module("metrics",
	fx.Provide(
		metrics.NewCollector,
		func(c *metrics.Collector) shared.Recorder { return c },
		func(c *metrics.Collector) handler.MetricsExporter { return c },
	),
)
