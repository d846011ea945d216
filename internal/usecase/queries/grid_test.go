//go:build unit

package queries_test

import (
	"context"
	"testing"
	"time"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/domain/pricing"
	"pixelgrid/internal/infra/docstore"
	"pixelgrid/internal/pkg/clock"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/queries"
	"pixelgrid/internal/usecase/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func carolCells() []int {
	cells := make([]int, 0, 12)
	for c := 100; c < 112; c++ {
		cells = append(cells, c)
	}
	return cells
}

func seededStore(t *testing.T) *docstore.MemoryStore {
	t.Helper()
	store := docstore.NewMemoryStore(docstore.MustCodec())
	doc := grid.NewDocument()
	doc.Acquire("alice", []int{1, 2}, 3*time.Minute, 10*time.Minute, t0)
	doc.Acquire("bob", []int{5}, time.Minute, 10*time.Minute, t0)
	cells := carolCells()
	doc.Acquire("carol", cells, 3*time.Minute, 10*time.Minute, t0)
	doc.ApplySettlement(grid.Settlement{Owner: "carol", Cells: cells, RegionID: grid.RegionID("carol", cells)}, t0)
	_, err := store.Write(context.Background(), doc, shared.NoVersion)
	require.NoError(t, err)
	return store
}

func TestGridStatus(t *testing.T) {
	store := seededStore(t)
	clk := clock.NewMockClock(t0.Add(2 * time.Minute))
	q := queries.NewGridQueries(store, pricing.NewDefaultCalculator(), clk)

	status, err := q.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, status.SoldCount)
	assert.Len(t, status.Sold, 12)
	assert.Contains(t, status.Locks, 1)
	assert.NotContains(t, status.Locks, 5, "bob's lease lapsed")
	assert.Contains(t, status.Regions, grid.RegionID("alice", []int{1, 2}))
	assert.NotContains(t, status.Regions, grid.RegionID("bob", []int{5}))
	assert.True(t, status.Regions[grid.RegionID("carol", carolCells())].Sold())
	assert.NotEqual(t, shared.NoVersion, status.Version)
	assert.Equal(t, clk.Now(), status.ReadAt)
}

func TestGridPriceAndQuote(t *testing.T) {
	q := queries.NewGridQueries(seededStore(t), pricing.NewDefaultCalculator(), clock.NewMockClock(t0))

	price, err := q.Price(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.01", price.UnitPrice.StringFixed(2))
	assert.Equal(t, 12, price.SoldCellCount)
	assert.Equal(t, 10, price.TierSize)
	assert.Equal(t, "USD", price.Currency)

	quote, err := q.Quote(context.Background(), []int{7, 8, 8})
	require.NoError(t, err)
	assert.Equal(t, 2, quote.CellCount)
	assert.Equal(t, "202.00", quote.Total.StringFixed(2))

	_, err = q.Quote(context.Background(), nil)
	assert.True(t, errs.Is(err, errs.ErrInvalidSelection))
}

func TestGridStatusEmptyStore(t *testing.T) {
	q := queries.NewGridQueries(docstore.NewMemoryStore(docstore.MustCodec()), pricing.NewDefaultCalculator(), clock.NewMockClock(t0))

	status, err := q.Status(context.Background())
	require.NoError(t, err)
	assert.Zero(t, status.SoldCount)
	assert.Empty(t, status.Locks)
	assert.Equal(t, shared.NoVersion, status.Version)
}
