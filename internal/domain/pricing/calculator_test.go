//go:build unit

package pricing_test

import (
	"testing"

	"pixelgrid/internal/domain/pricing"
	"pixelgrid/internal/pkg/errs"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestUnitPrice(t *testing.T) {
	calc := pricing.NewDefaultCalculator()

	tests := []struct {
		sold int
		want string
	}{
		{sold: 0, want: "1.00"},
		{sold: 9, want: "1.00"},
		{sold: 10, want: "1.01"},
		{sold: 25, want: "1.02"},
		{sold: 1000, want: "2.00"},
		{sold: 9999, want: "10.99"},
		{sold: -5, want: "1.00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, calc.UnitPrice(tt.sold).StringFixed(2))
		})
	}
}

func TestQuote(t *testing.T) {
	calc := pricing.NewDefaultCalculator()

	q := calc.Quote(25, 4)
	assert.Equal(t, "1.02", q.UnitPrice.StringFixed(2))
	assert.Equal(t, "408.00", q.Total.StringFixed(2), "4 cells are 400 px")
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, 25, q.SoldCells)
	assert.Equal(t, 4, q.CellCount)
	assert.Equal(t, 10, calc.TierSize())
}

func TestNewTieredCalculator(t *testing.T) {
	valid := pricing.DefaultParams()

	tests := []struct {
		name   string
		mutate func(*pricing.Params)
	}{
		{name: "zero tier size", mutate: func(p *pricing.Params) { p.TierSizeCells = 0 }},
		{name: "negative base", mutate: func(p *pricing.Params) { p.Base = dec("-1") }},
		{name: "negative increment", mutate: func(p *pricing.Params) { p.TierIncrement = dec("-0.01") }},
		{name: "no currency", mutate: func(p *pricing.Params) { p.Currency = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			_, err := pricing.NewTieredCalculator(p)
			assert.True(t, errs.Is(err, pricing.ErrInvalidParams))
		})
	}

	calc, err := pricing.NewTieredCalculator(valid)
	require.NoError(t, err)
	assert.Equal(t, "USD", calc.Currency())
}

func TestParseParams(t *testing.T) {
	p, err := pricing.ParseParams("2.50", "0.05", 20, "EUR")
	require.NoError(t, err)
	calc, err := pricing.NewTieredCalculator(p)
	require.NoError(t, err)
	assert.Equal(t, "2.55", calc.UnitPrice(20).StringFixed(2))

	_, err = pricing.ParseParams("abc", "0.01", 10, "USD")
	assert.True(t, errs.Is(err, pricing.ErrInvalidParams))
	_, err = pricing.ParseParams("1", "x", 10, "USD")
	assert.True(t, errs.Is(err, pricing.ErrInvalidParams))
}

func TestSameAmount(t *testing.T) {
	assert.True(t, pricing.SameAmount(dec("100"), dec("100.00")))
	assert.True(t, pricing.SameAmount(dec("100.001"), dec("100.00")))
	assert.False(t, pricing.SameAmount(dec("100.01"), dec("100.00")))
}

func TestProperty_PriceIsMonotonic(t *testing.T) {
	calc := pricing.NewDefaultCalculator()
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.IntRange(0, 9999).Draw(t, "a")
		b := rapid.IntRange(a, 9999).Draw(t, "b")
		if calc.UnitPrice(b).LessThan(calc.UnitPrice(a)) {
			t.Fatalf("price dropped from %d to %d sold cells", a, b)
		}
		n := rapid.IntRange(1, 100).Draw(t, "cells")
		q := calc.Quote(a, n)
		if !q.Total.Equal(q.Total.Round(2)) {
			t.Fatalf("total %s has more than two decimals", q.Total)
		}
	})
}
