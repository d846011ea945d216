//go:build unit

package repository

import (
	"context"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

type MockDBTX struct {
	mock.Mock
}

func (m *MockDBTX) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	mockArgs := m.Called(ctx, query, args)
	return mockArgs.Get(0).(pgconn.CommandTag), mockArgs.Error(1)
}

func (m *MockDBTX) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	mockArgs := m.Called(ctx, query, args)
	rows, _ := mockArgs.Get(0).(pgx.Rows)
	return rows, mockArgs.Error(1)
}

func (m *MockDBTX) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	mockArgs := m.Called(ctx, query, args)
	return mockArgs.Get(0).(pgx.Row)
}

// fakeRow scans values positionally into the destinations, or returns err.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

type fakeRows struct {
	rows   [][]any
	pos    int
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.pos-1], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return fakeRow{values: r.rows[r.pos-1]}.Scan(dest...)
}
