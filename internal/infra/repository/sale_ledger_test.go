//go:build unit

package repository

import (
	"context"
	"testing"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/shared"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSoldAmong(t *testing.T) {
	mockDB := new(MockDBTX)
	rows := &fakeRows{rows: [][]any{{int32(3), "r-1"}, {int32(4), "r-2"}}}
	mockDB.On("Query", mock.Anything, selectSoldAmongSQL, []any{[]int32{3, 4, 5}}).Return(rows, nil)

	got, err := NewSaleLedgerRepository(mockDB).SoldAmong(context.Background(), []int{3, 4, 5})

	require.NoError(t, err)
	assert.Equal(t, map[int]string{3: "r-1", 4: "r-2"}, got)
	assert.True(t, rows.closed)
}

func TestRecord(t *testing.T) {
	rec := shared.SaleRecord{
		Owner: "alice",
		Cells: []int{1, 2},
		Sale:  grid.Sale{RegionID: "r-1", SoldAt: t0},
	}

	t.Run("consistent", func(t *testing.T) {
		mockDB := new(MockDBTX)
		mockDB.On("Exec", mock.Anything, insertCellSalesSQL, mock.Anything).Return(pgconn.NewCommandTag("INSERT 0 2"), nil)
		mockDB.On("Query", mock.Anything, selectDivergentSQL, []any{[]int32{1, 2}, "r-1"}).Return(&fakeRows{}, nil)

		assert.NoError(t, NewSaleLedgerRepository(mockDB).Record(context.Background(), rec))
		mockDB.AssertExpectations(t)
	})

	t.Run("divergent", func(t *testing.T) {
		mockDB := new(MockDBTX)
		mockDB.On("Exec", mock.Anything, insertCellSalesSQL, mock.Anything).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)
		mockDB.On("Query", mock.Anything, selectDivergentSQL, mock.Anything).Return(&fakeRows{rows: [][]any{{int32(2)}}}, nil)

		err := NewSaleLedgerRepository(mockDB).Record(context.Background(), rec)
		assert.True(t, errs.Is(err, shared.ErrLedgerDivergence))
	})

	t.Run("insert fails", func(t *testing.T) {
		mockDB := new(MockDBTX)
		mockDB.On("Exec", mock.Anything, insertCellSalesSQL, mock.Anything).Return(pgconn.CommandTag{}, assert.AnError)

		err := NewSaleLedgerRepository(mockDB).Record(context.Background(), rec)
		assert.True(t, errs.Is(err, errs.ErrDatabaseOperationFailed))
	})
}
