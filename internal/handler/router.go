package handler

import (
	"context"
	"net/http"
	"time"

	"pixelgrid/internal/handler/api"
	"pixelgrid/internal/handler/middleware"
	"pixelgrid/internal/pkg/config"
	"pixelgrid/internal/usecase/shared"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
	Mw      []gin.HandlerFunc
}

// HealthChecker reports whether a backing dependency answers.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type MetricsExporter interface {
	middleware.HTTPObserver
	Handler() http.Handler
}

type RouterDeps struct {
	Config         config.Config
	Logger         *middleware.Logger
	Grid           *api.GridHandler
	Orders         *api.OrderHandler
	Webhooks       *api.WebhookHandler
	AuthMiddleware *middleware.AuthMiddleware
	// Limiter may be nil when rate limiting is disabled.
	Limiter shared.RateLimiter
	Metrics MetricsExporter
	Health  HealthChecker
}

func NewRouter(engine *gin.Engine, deps RouterDeps) {
	setupMiddleware(engine, deps)
	setupRoutes(engine, deps)
}

func setupMiddleware(engine *gin.Engine, deps RouterDeps) {
	// Recovery must be first (outermost) to catch panics from all other middleware
	engine.Use(middleware.CustomRecovery())
	engine.Use(middleware.NewCORSMiddleware(deps.Config.CORS))
	engine.Use(deps.Logger.LoggingMiddleware())
	if deps.Metrics != nil {
		engine.Use(middleware.Metrics(deps.Metrics))
	}
	engine.Use(middleware.ErrorHandler())
}

func setupRoutes(engine *gin.Engine, deps RouterDeps) {
	engine.GET("/health", healthCheck(deps.Health))
	if deps.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	if gin.Mode() == gin.DebugMode {
		engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	limiter := deps.Limiter
	if !deps.Config.RateLimit.Enabled {
		limiter = nil
	}

	apiGroup := engine.Group("/api")
	{
		grid := apiGroup.Group("/grid")
		{
			addRoutes(grid, []route{
				{Method: http.MethodGet, Path: "/status", Handler: deps.Grid.Status},
				{Method: http.MethodGet, Path: "/price", Handler: deps.Grid.Price},
				{Method: http.MethodGet, Path: "/quote", Handler: deps.Grid.Quote, Mw: []gin.HandlerFunc{
					deps.AuthMiddleware.OptionalAuth(),
					middleware.RateLimit(limiter, "quote"),
				}},
			})

			authRequired := grid.Group("")
			authRequired.Use(deps.AuthMiddleware.RequireAuth())
			addRoutes(authRequired, []route{
				{Method: http.MethodPost, Path: "/reserve", Handler: deps.Grid.Reserve, Mw: []gin.HandlerFunc{middleware.RateLimit(limiter, "reserve")}},
				{Method: http.MethodPost, Path: "/heartbeat", Handler: deps.Grid.Heartbeat, Mw: []gin.HandlerFunc{middleware.RateLimit(limiter, "heartbeat")}},
				{Method: http.MethodPost, Path: "/unlock", Handler: deps.Grid.Unlock},
				{Method: http.MethodPost, Path: "/finalize", Handler: deps.Grid.Finalize},
			})
		}

		orders := apiGroup.Group("/orders")
		orders.Use(deps.AuthMiddleware.RequireAuth())
		{
			addRoutes(orders, []route{
				{Method: http.MethodPost, Path: "", Handler: deps.Orders.Create},
				{Method: http.MethodGet, Path: "", Handler: deps.Orders.List},
				{Method: http.MethodPost, Path: "/capture", Handler: deps.Orders.Capture},
				{Method: http.MethodGet, Path: "/:id", Handler: deps.Orders.Get},
				{Method: http.MethodPost, Path: "/:id/reconcile", Handler: deps.Orders.Reconcile},
			})
		}

		webhooks := apiGroup.Group("/webhooks")
		{
			addRoutes(webhooks, []route{
				{Method: http.MethodPost, Path: "/payment", Handler: deps.Webhooks.Payment},
			})
		}
	}
}

// @Summary Health check
// @Description Check if the service and its document store are reachable
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func healthCheck(checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := checker.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "degraded",
					"message": err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Service is healthy",
		})
	}
}

func addRoutes(g *gin.RouterGroup, rs []route) {
	for _, r := range rs {
		h := r.Handler
		if len(r.Mw) > 0 {
			h = chainHandlers(append(r.Mw, r.Handler)...)
		}
		switch r.Method {
		case http.MethodGet:
			g.GET(r.Path, h)
		case http.MethodPost:
			g.POST(r.Path, h)
		case http.MethodPut:
			g.PUT(r.Path, h)
		case http.MethodPatch:
			g.PATCH(r.Path, h)
		case http.MethodDelete:
			g.DELETE(r.Path, h)
		default:
			g.Any(r.Path, h)
		}
	}
}

func chainHandlers(hs ...gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range hs {
			h(c)
			if c.IsAborted() {
				return
			}
		}
	}
}
