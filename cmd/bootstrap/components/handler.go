package components

import (
	"pixelgrid/internal/handler"
	"pixelgrid/internal/handler/api"
	"pixelgrid/internal/handler/middleware"
	"pixelgrid/internal/infra/ratelimit"
	"pixelgrid/internal/pkg/config"
	"pixelgrid/internal/usecase/shared"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var HandlerModule = fx.Module("handler",
	fx.Provide(
		api.NewGridHandler,
		api.NewOrderHandler,
		api.NewWebhookHandler,
		middleware.NewAuthMiddleware,
		NewRateLimiter,
	),
	fx.Invoke(registerRoutes),
)

// NewRateLimiter returns a nil limiter when throttling is disabled.
func NewRateLimiter(cfg config.Config, rdb redis.UniversalClient) shared.RateLimiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.NewLimiter(rdb, cfg.Redis.KeyPrefix, cfg.RateLimit)
}

type routerParams struct {
	fx.In

	Engine         *gin.Engine
	Config         config.Config
	Logger         *middleware.Logger
	Grid           *api.GridHandler
	Orders         *api.OrderHandler
	Webhooks       *api.WebhookHandler
	AuthMiddleware *middleware.AuthMiddleware
	Limiter        shared.RateLimiter
	Metrics        handler.MetricsExporter
	Health         handler.HealthChecker
}

func registerRoutes(p routerParams) {
	handler.NewRouter(p.Engine, handler.RouterDeps{
		Config:         p.Config,
		Logger:         p.Logger,
		Grid:           p.Grid,
		Orders:         p.Orders,
		Webhooks:       p.Webhooks,
		AuthMiddleware: p.AuthMiddleware,
		Limiter:        p.Limiter,
		Metrics:        p.Metrics,
		Health:         p.Health,
	})
}
