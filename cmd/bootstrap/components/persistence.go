package components

import (
	"context"

	"pixelgrid/internal/handler"
	"pixelgrid/internal/infra/docstore"
	"pixelgrid/internal/infra/readstore"
	"pixelgrid/internal/infra/repository"
	"pixelgrid/internal/infra/uow"
	"pixelgrid/internal/pkg/config"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/queries"
	"pixelgrid/internal/usecase/shared"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var PersistenceModule = fx.Module("persistence",
	fx.Provide(
		docstore.NewCodec,
		NewPersistence,
	),
)

// Persistence is the set of stores selected by STORE_DRIVER. The postgres and redis
// drivers keep orders in postgres; only the grid document moves.
type Persistence struct {
	fx.Out

	Store      shared.DocumentStore
	UoW        shared.UnitOfWork
	OrderReads queries.OrderReadStore
	Refunds    shared.ManualRefundRepository
	Health     handler.HealthChecker
}

func NewPersistence(cfg config.Config, codec *docstore.Codec, pool *pgxpool.Pool, rdb redis.UniversalClient) (Persistence, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		mem := uow.NewMemoryUoW()
		store := docstore.NewMemoryStore(codec)
		return Persistence{
			Store:      store,
			UoW:        mem,
			OrderReads: mem.OrderReads(),
			Refunds:    mem.ManualRefunds(),
			Health:     storeHealth{store: store},
		}, nil

	case config.StoreDriverPostgres, config.StoreDriverRedis:
		if pool == nil {
			return Persistence{}, errs.Newf("store driver %q needs a database pool", cfg.Store.Driver)
		}
		var store shared.DocumentStore = docstore.NewPostgresStore(pool, cfg.Store.DocumentID, codec)
		if cfg.Store.Driver == config.StoreDriverRedis {
			store = docstore.NewRedisStore(rdb, cfg.Redis.KeyPrefix, cfg.Store.DocumentID, codec)
		}
		return Persistence{
			Store:      store,
			UoW:        uow.NewPostgresUoW(pool),
			OrderReads: readstore.NewOrderReadStore(pool),
			Refunds:    repository.NewManualRefundRepository(pool),
			Health:     storeHealth{store: store},
		}, nil

	default:
		return Persistence{}, errs.Newf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}
}

// storeHealth reports the document store healthy when the document can be read.
type storeHealth struct {
	store shared.DocumentStore
}

func (h storeHealth) Ping(ctx context.Context) error {
	_, _, err := h.store.Read(ctx)
	return err
}
