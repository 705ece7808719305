// Package memory provides an in-memory execution backend. It evaluates
// query plans directly over row maps and is the reference backend for
// pipeline behavior: filtering, projection, collation-aware ordering,
// bounds, counting, and per-execution evaluation of volatile functions.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/plan"
	"github.com/syssam/veloq/querylanguage"
)

// Row is a single stored record.
type Row = map[string]any

// Backend stores rows per source and compiles plans against them. It
// is safe for concurrent use.
type Backend struct {
	mu       sync.RWMutex
	tables   map[string][]Row
	funcs    map[string]func(...any) (any, error)
	collator *collate.Collator
}

// Option configures a Backend.
type Option func(*Backend)

// WithCollation sets the language used to order string values.
func WithCollation(tag language.Tag) Option {
	return func(b *Backend) { b.collator = collate.New(tag) }
}

// New returns an empty backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		tables:   make(map[string][]Row),
		funcs:    make(map[string]func(...any) (any, error)),
		collator: collate.New(language.Und),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Insert appends rows to the named source.
func (b *Backend) Insert(source string, rows ...Row) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tables[source] = append(b.tables[source], rows...)
}

// RegisterFunc binds a domain function name to its in-memory
// implementation. Registration must precede compilation of any plan
// referencing the function.
func (b *Backend) RegisterFunc(name string, fn func(...any) (any, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.funcs[name] = fn
}

// CompileQuery implements veloq.Backend.
func (b *Backend) CompileQuery(q *plan.Query) (veloq.Query, error) {
	run, err := b.compile(q)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, qc *veloq.QueryContext) ([]any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return run(qc)
	}, nil
}

// CompileStream implements veloq.Backend.
func (b *Backend) CompileStream(q *plan.Query) (veloq.StreamQuery, error) {
	run, err := b.compile(q)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, qc *veloq.QueryContext) (veloq.Cursor, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := run(qc)
		if err != nil {
			return nil, err
		}
		return &cursor{rows: out}, nil
	}, nil
}

// compile validates the plan once and returns the per-execution run
// function.
func (b *Backend) compile(q *plan.Query) (func(*veloq.QueryContext) ([]any, error), error) {
	if q.Source == "" {
		return nil, fmt.Errorf("memory: plan has no source")
	}
	for _, p := range q.Predicates {
		if err := b.check(p); err != nil {
			return nil, err
		}
	}
	for _, p := range q.Projection {
		if err := b.check(p); err != nil {
			return nil, err
		}
	}
	for _, o := range q.Orderings {
		if err := b.check(o.X); err != nil {
			return nil, err
		}
	}
	return func(qc *veloq.QueryContext) ([]any, error) {
		return b.run(q, qc)
	}, nil
}

// check walks an expression and rejects function nodes with no
// registered implementation, so authoring mistakes surface at
// compilation rather than mid-iteration.
func (b *Backend) check(e querylanguage.Expr) error {
	var err error
	querylanguage.Walk(e, func(e querylanguage.Expr) bool {
		f, ok := e.(*querylanguage.Func)
		if !ok {
			return true
		}
		if builtin(f.Desc.Name) {
			return true
		}
		b.mu.RLock()
		_, ok = b.funcs[f.Desc.Name]
		b.mu.RUnlock()
		if !ok {
			err = fmt.Errorf("memory: no implementation for function %q", f.Desc.Name)
			return false
		}
		return true
	})
	return err
}

func (b *Backend) run(q *plan.Query, qc *veloq.QueryContext) ([]any, error) {
	b.mu.RLock()
	stored := b.tables[q.Source]
	rows := make([]Row, len(stored))
	copy(rows, stored)
	b.mu.RUnlock()

	var err error
	matched := rows[:0:0]
	for _, row := range rows {
		var ok bool
		if ok, err = b.match(q.Predicates, row, qc); err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, row)
		}
	}
	if len(q.GroupBy) > 0 {
		matched, err = b.group(q.GroupBy, matched, qc)
		if err != nil {
			return nil, err
		}
	}
	if len(q.Orderings) > 0 {
		if err := b.order(q.Orderings, matched, qc); err != nil {
			return nil, err
		}
	}
	if matched, err = bound(matched, q, qc); err != nil {
		return nil, err
	}
	if q.Count {
		return []any{int64(len(matched))}, nil
	}
	out := make([]any, 0, len(matched))
	for _, row := range matched {
		v, err := b.project(q.Projection, row, qc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (b *Backend) match(preds []querylanguage.Expr, row Row, qc *veloq.QueryContext) (bool, error) {
	for _, p := range preds {
		v, err := b.eval(p, row, qc)
		if err != nil {
			return false, err
		}
		ok, isBool := v.(bool)
		if !isBool {
			return false, fmt.Errorf("memory: predicate evaluated to %T, want bool", v)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (b *Backend) order(ords []plan.Ordering, rows []Row, qc *veloq.QueryContext) error {
	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		for _, o := range ords {
			vi, err := b.eval(o.X, rows[i], qc)
			if err != nil {
				sortErr = err
				return false
			}
			vj, err := b.eval(o.X, rows[j], qc)
			if err != nil {
				sortErr = err
				return false
			}
			c := b.compare(vi, vj)
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return sortErr
}

// compare orders two values, delegating string comparison to the
// configured collator.
func (b *Backend) compare(x, y any) int {
	if sx, ok := x.(string); ok {
		if sy, ok := y.(string); ok {
			return b.collator.CompareString(sx, sy)
		}
	}
	return querylanguage.Compare(x, y)
}

func bound(rows []Row, q *plan.Query, qc *veloq.QueryContext) ([]Row, error) {
	offset, err := intClause(q.Offset, qc)
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		if offset >= len(rows) {
			return nil, nil
		}
		rows = rows[offset:]
	}
	limit, err := intClause(q.Limit, qc)
	if err != nil {
		return nil, err
	}
	if q.Limit != nil && limit < len(rows) {
		if limit < 0 {
			limit = 0
		}
		rows = rows[:limit]
	}
	return rows, nil
}

// intClause resolves a limit or offset expression against the query
// context.
func intClause(e querylanguage.Expr, qc *veloq.QueryContext) (int, error) {
	if e == nil {
		return 0, nil
	}
	var v any
	switch e := e.(type) {
	case *querylanguage.Value:
		v = e.V
	case *querylanguage.Param:
		pv, ok := qc.Param(e.Name)
		if !ok {
			return 0, fmt.Errorf("memory: unbound parameter $%s", e.Name)
		}
		v = pv
	default:
		return 0, fmt.Errorf("memory: unsupported bound expression %T", e)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("memory: bound value %T is not an integer", v)
	}
}

func (b *Backend) project(proj []querylanguage.Expr, row Row, qc *veloq.QueryContext) (any, error) {
	if len(proj) == 0 {
		return row, nil
	}
	if len(proj) == 1 {
		return b.eval(proj[0], row, qc)
	}
	out := make(Row, len(proj))
	for i, p := range proj {
		v, err := b.eval(p, row, qc)
		if err != nil {
			return nil, err
		}
		out[columnName(p, i)] = v
	}
	return out, nil
}

func columnName(e querylanguage.Expr, i int) string {
	switch e := e.(type) {
	case *querylanguage.Field:
		return e.Name
	case *querylanguage.Func:
		return e.Desc.Qualified()
	default:
		return fmt.Sprintf("column%d", i)
	}
}

type cursor struct {
	rows []any
	i    int
	cur  any
}

// Next implements veloq.Cursor. It checks the context on every advance
// so a canceled consumer stops mid-sequence.
func (c *cursor) Next(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if c.i >= len(c.rows) {
		return false, nil
	}
	c.cur = c.rows[c.i]
	c.i++
	return true, nil
}

// Value implements veloq.Cursor.
func (c *cursor) Value() any { return c.cur }

// Close implements veloq.Cursor.
func (c *cursor) Close() error {
	c.rows = nil
	return nil
}
