//go:build unit || e2e

package builder

import (
	"time"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/domain/order"
	reqdto "pixelgrid/internal/handler/dto/request"
	"pixelgrid/internal/usecase/queries"

	"github.com/shopspring/decimal"
)

type OrderBuilder struct {
	Owner      string
	Cells      []int
	Name       string
	LinkURL    string
	UnitPrice  decimal.Decimal
	Total      decimal.Decimal
	Currency   string
	PaymentRef string
	Status     order.Status
	CreatedAt  time.Time
}

func NewOrderBuilder() *OrderBuilder {
	return &OrderBuilder{
		Owner:      "alice",
		Cells:      []int{0, 1, 100, 101},
		Name:       "Alice",
		LinkURL:    "https://alice.example",
		UnitPrice:  decimal.RequireFromString("1.00"),
		Total:      decimal.RequireFromString("400.00"),
		Currency:   "USD",
		PaymentRef: "PAY-1",
		Status:     order.StatusPending,
		CreatedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (b *OrderBuilder) With(mutate func(*OrderBuilder)) *OrderBuilder {
	mutate(b)
	return b
}

func (b *OrderBuilder) RegionID() string {
	return grid.RegionID(b.Owner, b.Cells)
}

func (b *OrderBuilder) Metadata() reqdto.SaleMetadataRequest {
	return reqdto.SaleMetadataRequest{Name: b.Name, LinkURL: b.LinkURL}
}

// BuildDomain reconstructs the order directly in Status, bypassing the transition table.
func (b *OrderBuilder) BuildDomain() *order.Order {
	o, err := order.NewOrder(order.NewOrderParams{
		Owner:       b.Owner,
		CellIndices: b.Cells,
		RegionID:    b.RegionID(),
		Metadata:    b.Metadata().ToDomain(),
		UnitPrice:   b.UnitPrice,
		Total:       b.Total,
		Currency:    b.Currency,
	}, b.CreatedAt)
	if err != nil {
		panic(err)
	}
	s := o.Snapshot()
	s.PaymentRef = b.PaymentRef
	s.Status = b.Status
	return order.Reconstruct(s)
}

func (b *OrderBuilder) BuildView() *queries.OrderView {
	return queries.NewOrderView(b.BuildDomain())
}

func (b *OrderBuilder) BuildCreateRequestDTO() reqdto.CreateOrderRequest {
	total := b.Total
	return reqdto.CreateOrderRequest{
		CellIndices:   b.Cells,
		RegionID:      b.RegionID(),
		SaleMetadata:  b.Metadata(),
		ExpectedTotal: &total,
	}
}

func (b *OrderBuilder) BuildFinalizeRequestDTO() reqdto.FinalizeRequest {
	total := b.Total
	return reqdto.FinalizeRequest{
		CellIndices:   b.Cells,
		RegionID:      b.RegionID(),
		SaleMetadata:  b.Metadata(),
		ExpectedTotal: &total,
	}
}
