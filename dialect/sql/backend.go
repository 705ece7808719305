package sql

import (
	"context"
	"fmt"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect"
	"github.com/syssam/veloq/plan"
)

// Backend compiles query plans into SQL statements executed through a
// dialect.Driver. One statement is built per plan; per-execution work
// is bind resolution and row scanning only.
type Backend struct {
	drv     dialect.Driver
	builder *Builder
}

// NewBackend returns a backend executing against drv.
func NewBackend(drv dialect.Driver) *Backend {
	return &Backend{drv: drv, builder: NewBuilder(drv.Dialect())}
}

// shape describes how result rows map to items.
type shape uint8

const (
	shapeRow shape = iota
	shapeScalar
	shapeCount
)

func resultShape(q *plan.Query) shape {
	switch {
	case q.Count:
		return shapeCount
	case len(q.Projection) == 1:
		return shapeScalar
	default:
		return shapeRow
	}
}

// CompileQuery implements veloq.Backend.
func (b *Backend) CompileQuery(q *plan.Query) (veloq.Query, error) {
	stmt, err := b.builder.Build(q)
	if err != nil {
		return nil, err
	}
	sh := resultShape(q)
	return func(ctx context.Context, qc *veloq.QueryContext) ([]any, error) {
		rows, err := b.query(ctx, stmt, qc)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var out []any
		for rows.Next() {
			v, err := scan(rows, sh)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return out, nil
	}, nil
}

// CompileStream implements veloq.Backend.
func (b *Backend) CompileStream(q *plan.Query) (veloq.StreamQuery, error) {
	stmt, err := b.builder.Build(q)
	if err != nil {
		return nil, err
	}
	sh := resultShape(q)
	return func(ctx context.Context, qc *veloq.QueryContext) (veloq.Cursor, error) {
		rows, err := b.query(ctx, stmt, qc)
		if err != nil {
			return nil, err
		}
		return &cursor{rows: rows, shape: sh}, nil
	}, nil
}

func (b *Backend) query(ctx context.Context, stmt *Statement, qc *veloq.QueryContext) (*Rows, error) {
	args, err := stmt.Args(qc)
	if err != nil {
		return nil, err
	}
	rows := &Rows{}
	if err := b.drv.Query(ctx, stmt.Query, args, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// scan reads the current row into the item form the plan implies: a
// column map, a single value, or a count.
func scan(rows *Rows, sh shape) (any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	for i, v := range values {
		values[i] = normalize(v)
	}
	switch sh {
	case shapeCount:
		if len(values) != 1 {
			return nil, fmt.Errorf("dialect/sql: count returned %d columns", len(values))
		}
		n, ok := values[0].(int64)
		if !ok {
			return nil, fmt.Errorf("dialect/sql: count returned %T, want int64", values[0])
		}
		return n, nil
	case shapeScalar:
		if len(values) != 1 {
			return nil, fmt.Errorf("dialect/sql: scalar projection returned %d columns", len(values))
		}
		return values[0], nil
	default:
		row := make(map[string]any, len(columns))
		for i, c := range columns {
			row[c] = values[i]
		}
		return row, nil
	}
}

// normalize converts driver byte slices to strings so results compare
// like their in-memory counterparts.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// cursor adapts sql rows to the veloq.Cursor interface.
type cursor struct {
	rows  *Rows
	shape shape
	cur   any
}

// Next implements veloq.Cursor. The context is checked before each
// advance; database/sql itself stops the query when ctx is canceled.
func (c *cursor) Next(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return false, err
		}
		return false, nil
	}
	v, err := scan(c.rows, c.shape)
	if err != nil {
		return false, err
	}
	c.cur = v
	return true, nil
}

// Value implements veloq.Cursor.
func (c *cursor) Value() any { return c.cur }

// Close implements veloq.Cursor.
func (c *cursor) Close() error { return c.rows.Close() }
