package inventory

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRows serves canned rows. Each row holds one value per scan target;
// nil leaves the target at its zero value.
type fakeRows struct {
	data    [][]any
	pos     int
	err     error
	scanErr error
	closed  bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.data[r.pos-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.pos-1]
	if len(row) != len(dest) {
		return fmt.Errorf("fake: %d values for %d targets", len(row), len(dest))
	}
	for i, v := range row {
		if v == nil {
			continue
		}
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

type fakeQuerier struct {
	rows     *fakeRows
	queryErr error
	pingErr  error
	sql      string
	args     []any
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.sql, q.args = sql, args
	if q.queryErr != nil {
		return nil, q.queryErr
	}
	return q.rows, nil
}

func (q *fakeQuerier) Ping(context.Context) error { return q.pingErr }

type fakePool struct {
	q     *fakeQuerier
	err   error
	calls int
}

func (p *fakePool) Get(context.Context) (querier, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.q, nil
}

func ptr[T any](v T) *T { return &v }

// carRow builds scan values in Columns order.
func carRow(id, brand, model string, price float64) []any {
	return []any{
		id, ptr(brand), ptr(model), ptr(int64(2018)), ptr(price), nil,
		ptr("Petrol"), ptr("Manual"), nil, nil, nil, nil, ptr(5.0), ptr("clean"),
	}
}
