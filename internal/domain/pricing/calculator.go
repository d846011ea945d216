package pricing

import (
	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/pkg/errs"

	"github.com/shopspring/decimal"
)

var ErrInvalidParams = errs.New("invalid pricing parameters")

// Calculator prices cells from the authoritative count of sold cells.
type Calculator interface {
	UnitPrice(soldCells int) decimal.Decimal
	Total(cellCount int, unitPrice decimal.Decimal) decimal.Decimal
	Quote(soldCells, cellCount int) Quote
	Currency() string
	TierSize() int
}

type Params struct {
	Base          decimal.Decimal
	TierIncrement decimal.Decimal
	// TierSizeCells is the number of sold cells per price step (10 cells = 1,000 px).
	TierSizeCells int
	PixelsPerCell int
	Currency      string
}

type Quote struct {
	SoldCells int
	CellCount int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
	Currency  string
}

type TieredCalculator struct {
	params Params
}

func DefaultParams() Params {
	return Params{
		Base:          decimal.RequireFromString("1.00"),
		TierIncrement: decimal.RequireFromString("0.01"),
		TierSizeCells: 10,
		PixelsPerCell: grid.PixelsPerCell,
		Currency:      "USD",
	}
}

func NewDefaultCalculator() *TieredCalculator {
	return &TieredCalculator{params: DefaultParams()}
}

func NewTieredCalculator(p Params) (*TieredCalculator, error) {
	if p.TierSizeCells < 1 || p.PixelsPerCell < 1 || p.Base.IsNegative() || p.TierIncrement.IsNegative() || p.Currency == "" {
		return nil, errs.Wrapf(ErrInvalidParams, "%+v", p)
	}
	return &TieredCalculator{params: p}, nil
}

// ParseParams builds Params from their configuration strings.
func ParseParams(base, increment string, tierSize int, currency string) (Params, error) {
	b, err := decimal.NewFromString(base)
	if err != nil {
		return Params{}, errs.Mark(errs.Wrap(err, "parse base price"), ErrInvalidParams)
	}
	inc, err := decimal.NewFromString(increment)
	if err != nil {
		return Params{}, errs.Mark(errs.Wrap(err, "parse tier increment"), ErrInvalidParams)
	}
	return Params{
		Base:          b,
		TierIncrement: inc,
		TierSizeCells: tierSize,
		PixelsPerCell: grid.PixelsPerCell,
		Currency:      currency,
	}, nil
}

// UnitPrice is the per-pixel price: round2(base + increment * floor(sold / tierSize)).
func (c *TieredCalculator) UnitPrice(soldCells int) decimal.Decimal {
	soldCells = max(soldCells, 0)
	tiers := decimal.NewFromInt(int64(soldCells / c.params.TierSizeCells))
	return Round2(c.params.Base.Add(c.params.TierIncrement.Mul(tiers)))
}

func (c *TieredCalculator) Total(cellCount int, unitPrice decimal.Decimal) decimal.Decimal {
	pixels := decimal.NewFromInt(int64(cellCount) * int64(c.params.PixelsPerCell))
	return Round2(unitPrice.Mul(pixels))
}

func (c *TieredCalculator) Quote(soldCells, cellCount int) Quote {
	unit := c.UnitPrice(soldCells)
	return Quote{
		SoldCells: soldCells,
		CellCount: cellCount,
		UnitPrice: unit,
		Total:     c.Total(cellCount, unit),
		Currency:  c.params.Currency,
	}
}

func (c *TieredCalculator) Currency() string {
	return c.params.Currency
}

func (c *TieredCalculator) TierSize() int {
	return c.params.TierSizeCells
}

func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// SameAmount compares two amounts at currency precision.
func SameAmount(a, b decimal.Decimal) bool {
	return Round2(a).Equal(Round2(b))
}
