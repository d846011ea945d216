package readstore

import (
	"context"
	"time"

	"pixelgrid/internal/domain/order"
	"pixelgrid/internal/infra"
	"pixelgrid/internal/infra/db"
	"pixelgrid/internal/infra/repository"
	"pixelgrid/internal/infra/repository/converter"

	"github.com/google/uuid"
)

const (
	ordersByOwnerFirstPageSQL = `SELECT ` + converter.OrderColumns + ` FROM orders
	WHERE owner = $1
	ORDER BY created_at DESC, id DESC
	LIMIT $2`

	ordersByOwnerKeysetSQL = `SELECT ` + converter.OrderColumns + ` FROM orders
	WHERE owner = $1 AND (created_at, id) < ($2, $3)
	ORDER BY created_at DESC, id DESC
	LIMIT $4`
)

type OrderReadStore struct {
	db     db.DBTX
	orders *repository.OrderRepository
}

func NewOrderReadStore(dbtx db.DBTX) *OrderReadStore {
	return &OrderReadStore{db: dbtx, orders: repository.NewOrderRepository(dbtx)}
}

func (s *OrderReadStore) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return s.orders.FindByID(ctx, id)
}

func (s *OrderReadStore) ListByOwnerFirstPage(ctx context.Context, owner string, limit int32) ([]*order.Order, error) {
	rows, err := s.db.Query(ctx, ordersByOwnerFirstPageSQL, owner, limit)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list orders by owner", err)
	}
	out, err := converter.CollectOrders(rows)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to read orders by owner", err)
	}
	return out, nil
}

func (s *OrderReadStore) ListByOwnerKeyset(ctx context.Context, owner string, lastCreatedAt time.Time, lastID uuid.UUID, limit int32) ([]*order.Order, error) {
	rows, err := s.db.Query(ctx, ordersByOwnerKeysetSQL, owner, converter.DBTime(lastCreatedAt), lastID, limit)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list orders by owner", err)
	}
	out, err := converter.CollectOrders(rows)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to read orders by owner", err)
	}
	return out, nil
}
