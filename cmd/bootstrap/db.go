package bootstrap

import (
	"context"

	"pixelgrid/internal/infra/db"
	"pixelgrid/internal/pkg/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

var DBModule = fx.Module("db",
	fx.Provide(
		NewDB,
	),
)

// NewDB returns a nil pool for the memory driver, which keeps everything in process.
func NewDB(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		return nil, nil
	}
	pool, cleanup, err := db.Connect(context.Background(), cfg.DB)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			if cleanup != nil {
				cleanup()
			}
			return nil
		},
	})

	return pool, nil
}
