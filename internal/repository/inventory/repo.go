// Package inventory hydrates vehicle records from the relational store.
package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/autorag/internal/domain"
	inv "github.com/kailas-cloud/autorag/internal/domain/inventory"
)

// casts pins every column to the Go type it is scanned into.
var casts = map[string]string{
	"Car_ID":            "text",
	"Year":              "bigint",
	"Price":             "float8",
	"Kilometers_Driven": "bigint",
	"Seats":             "float8",
}

// poolSource hands out the shared querier (LazyPool in production).
type poolSource interface {
	Get(ctx context.Context) (querier, error)
}

// Repo implements usecase/rag.RecordStore over Postgres.
type Repo struct {
	pool      poolSource
	table     string
	imageBase string
	selectSQL string
}

// New creates a repository reading from table (inventory.Table when empty).
// imageBase is used to attach image URLs to hydrated records.
func New(pool poolSource, table, imageBase string) *Repo {
	if table == "" {
		table = inv.Table
	}
	return &Repo{
		pool:      pool,
		table:     table,
		imageBase: imageBase,
		selectSQL: buildSelect(table),
	}
}

func buildSelect(table string) string {
	cols := make([]string, len(inv.Columns))
	for i, c := range inv.Columns {
		cast := casts[c]
		if cast == "" {
			cast = "text"
		}
		cols[i] = pgx.Identifier{c}.Sanitize() + "::" + cast
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + pgx.Identifier{table}.Sanitize()
}

// FetchByIDs returns the rows whose Car_ID matches any of ids. Row order is not defined.
// An empty id set returns no rows without touching the store.
func (r *Repo) FetchByIDs(ctx context.Context, ids []inv.ID) ([]inv.Record, error) {
	if len(ids) == 0 {
		return []inv.Record{}, nil
	}

	q, err := r.pool.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreFailed, err)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	sql := r.selectSQL + ` WHERE "Car_ID"::text = ANY($1)`
	rows, err := q.Query(ctx, sql, keys)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w: %w", r.table, domain.ErrStoreFailed, err)
	}

	records := make([]inv.Record, 0, len(ids))
	err = scanRows(rows, func(row inv.Row) error {
		records = append(records, inv.NewRecord(row, r.imageBase))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w: %w", r.table, domain.ErrStoreFailed, err)
	}
	return records, nil
}

// ForEachBatch streams every row ordered by Car_ID, calling fn with up to size rows at a time.
func (r *Repo) ForEachBatch(ctx context.Context, size int, fn func([]inv.Row) error) error {
	if size <= 0 {
		size = 100
	}
	q, err := r.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreFailed, err)
	}

	rows, err := q.Query(ctx, r.selectSQL+` ORDER BY "Car_ID"`)
	if err != nil {
		return fmt.Errorf("query %s: %w: %w", r.table, domain.ErrStoreFailed, err)
	}

	batch := make([]inv.Row, 0, size)
	err = scanRows(rows, func(row inv.Row) error {
		batch = append(batch, row)
		if len(batch) < size {
			return nil
		}
		err := fn(batch)
		batch = make([]inv.Row, 0, size)
		return err
	})
	if err != nil {
		return err
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

// Ping checks the store; used by the health report.
func (r *Repo) Ping(ctx context.Context) error {
	q, err := r.pool.Get(ctx)
	if err != nil {
		return err
	}
	if err := q.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// scanRows drains rows into fn, closing them on every path.
func scanRows(rows pgx.Rows, fn func(inv.Row) error) error {
	defer rows.Close()

	for rows.Next() {
		var (
			id                                                        string
			brand, model, fuel, transmission, owner, mileage, engine *string
			power, description                                        *string
			row                                                       inv.Row
		)
		err := rows.Scan(
			&id, &brand, &model, &row.Year, &row.Price, &row.KilometersDriven,
			&fuel, &transmission, &owner, &mileage, &engine, &power, &row.Seats, &description,
		)
		if err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		row.ID = inv.StringID(id)
		row.Brand = deref(brand)
		row.Model = deref(model)
		row.FuelType = deref(fuel)
		row.Transmission = deref(transmission)
		row.OwnerType = deref(owner)
		row.Mileage = deref(mileage)
		row.Engine = deref(engine)
		row.Power = deref(power)
		row.Description = deref(description)

		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
