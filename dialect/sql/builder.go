package sql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-openapi/inflect"
	"github.com/google/uuid"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect"
	"github.com/syssam/veloq/plan"
	"github.com/syssam/veloq/querylanguage"
)

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores, dots for schema.name)
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// isValidIdentifier checks if the string is a valid SQL identifier.
func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// Builder compiles query plans into SQL statements for a dialect. The
// statement text is produced once per plan; parameter values are
// resolved per execution through Statement.Args.
type Builder struct {
	dialect string
}

// NewBuilder returns a builder for the given dialect.
func NewBuilder(dialect string) *Builder {
	return &Builder{dialect: dialect}
}

// Statement is a compiled SQL statement: the query text and the bind
// list in placeholder order.
type Statement struct {
	Query string
	binds []bind
}

type bindKind uint8

const (
	bindValue bindKind = iota
	bindParam
	bindUUID
)

// bind is a deferred placeholder value: a literal fixed at build time,
// a named parameter resolved from the query context, or a generator
// producing a fresh value per execution.
type bind struct {
	kind  bindKind
	name  string
	value any
}

// Args resolves the bind list against the per-execution context.
func (s *Statement) Args(qc *veloq.QueryContext) ([]any, error) {
	args := make([]any, len(s.binds))
	for i, b := range s.binds {
		switch b.kind {
		case bindValue:
			args[i] = b.value
		case bindParam:
			v, ok := qc.Param(b.name)
			if !ok {
				return nil, fmt.Errorf("dialect/sql: unbound parameter $%s", b.name)
			}
			args[i] = v
		case bindUUID:
			args[i] = uuid.NewString()
		}
	}
	return args, nil
}

// Build compiles q into a SQL statement.
func (b *Builder) Build(q *plan.Query) (*Statement, error) {
	w := &writer{dialect: b.dialect}
	// A bounded count must count the bounded set. LIMIT on the
	// aggregate select would constrain the single COUNT(*) row instead,
	// so the bounded select runs as a derived table.
	if q.Count && (q.Limit != nil || q.Offset != nil) {
		w.WriteString("SELECT COUNT(*) FROM (")
		if err := b.selectInto(w, q, false); err != nil {
			return nil, err
		}
		w.WriteString(") AS bounded")
		return &Statement{Query: w.String(), binds: w.binds}, nil
	}
	if err := b.selectInto(w, q, q.Count); err != nil {
		return nil, err
	}
	return &Statement{Query: w.String(), binds: w.binds}, nil
}

// selectInto writes the select for q, counting when count is set.
func (b *Builder) selectInto(w *writer, q *plan.Query, count bool) error {
	table := inflect.Tableize(q.Source)
	if !isValidIdentifier(table) {
		return fmt.Errorf("dialect/sql: invalid source name %q", q.Source)
	}
	w.WriteString("SELECT ")
	switch {
	case count:
		w.WriteString("COUNT(*)")
	case len(q.Projection) == 0:
		w.WriteString("*")
	default:
		for i, p := range q.Projection {
			if i > 0 {
				w.WriteString(", ")
			}
			if err := w.expr(p); err != nil {
				return err
			}
		}
	}
	w.WriteString(" FROM ")
	w.ident(table)
	if len(q.Predicates) > 0 {
		w.WriteString(" WHERE ")
		for i, p := range q.Predicates {
			if i > 0 {
				w.WriteString(" AND ")
			}
			wrap := len(q.Predicates) > 1
			if wrap {
				w.WriteString("(")
			}
			if err := w.expr(p); err != nil {
				return err
			}
			if wrap {
				w.WriteString(")")
			}
		}
	}
	if len(q.GroupBy) > 0 {
		w.WriteString(" GROUP BY ")
		for i, g := range q.GroupBy {
			if i > 0 {
				w.WriteString(", ")
			}
			if err := w.expr(g); err != nil {
				return err
			}
		}
	}
	if len(q.Orderings) > 0 {
		w.WriteString(" ORDER BY ")
		for i, o := range q.Orderings {
			if i > 0 {
				w.WriteString(", ")
			}
			if err := w.expr(o.X); err != nil {
				return err
			}
			if o.Desc {
				w.WriteString(" DESC")
			} else {
				w.WriteString(" ASC")
			}
		}
	}
	if q.Limit != nil {
		w.WriteString(" LIMIT ")
		if err := w.expr(q.Limit); err != nil {
			return err
		}
	}
	if q.Offset != nil {
		w.WriteString(" OFFSET ")
		if err := w.expr(q.Offset); err != nil {
			return err
		}
	}
	return nil
}

// writer accumulates statement text and binds during a single build.
type writer struct {
	strings.Builder
	dialect string
	binds   []bind
	n       int
}

// placeholder writes the next positional placeholder.
func (w *writer) placeholder() {
	w.n++
	if w.dialect == dialect.Postgres {
		fmt.Fprintf(w, "$%d", w.n)
		return
	}
	w.WriteString("?")
}

func (w *writer) bindValue(v any) {
	w.placeholder()
	w.binds = append(w.binds, bind{kind: bindValue, value: v})
}

func (w *writer) bindParam(name string) {
	w.placeholder()
	w.binds = append(w.binds, bind{kind: bindParam, name: name})
}

// ident writes a quoted identifier.
func (w *writer) ident(name string) {
	q := `"`
	if w.dialect == dialect.MySQL {
		q = "`"
	}
	w.WriteString(q + name + q)
}

func (w *writer) expr(e querylanguage.Expr) error {
	switch e := e.(type) {
	case *querylanguage.Field:
		if !isValidIdentifier(e.Name) {
			return fmt.Errorf("dialect/sql: invalid column name %q", e.Name)
		}
		w.ident(e.Name)
		return nil
	case *querylanguage.Value:
		w.bindValue(e.V)
		return nil
	case *querylanguage.Param:
		w.bindParam(e.Name)
		return nil
	case *querylanguage.Binary:
		return w.binary(e)
	case *querylanguage.Unary:
		if e.Op != querylanguage.OpNot {
			return fmt.Errorf("dialect/sql: unsupported unary operator %s", e.Op)
		}
		w.WriteString("NOT (")
		if err := w.expr(e.X); err != nil {
			return err
		}
		w.WriteString(")")
		return nil
	case *querylanguage.Nary:
		sep := " AND "
		if e.Op == querylanguage.OpOr {
			sep = " OR "
		}
		w.WriteString("(")
		for i, x := range e.Xs {
			if i > 0 {
				w.WriteString(sep)
			}
			if err := w.expr(x); err != nil {
				return err
			}
		}
		w.WriteString(")")
		return nil
	case *querylanguage.Func:
		return w.fn(e)
	default:
		return fmt.Errorf("dialect/sql: cannot translate expression %T", e)
	}
}

func (w *writer) binary(e *querylanguage.Binary) error {
	switch e.Op {
	case querylanguage.OpEQ, querylanguage.OpNEQ, querylanguage.OpGT,
		querylanguage.OpGTE, querylanguage.OpLT, querylanguage.OpLTE:
		ops := map[querylanguage.Op]string{
			querylanguage.OpEQ:  "=",
			querylanguage.OpNEQ: "<>",
			querylanguage.OpGT:  ">",
			querylanguage.OpGTE: ">=",
			querylanguage.OpLT:  "<",
			querylanguage.OpLTE: "<=",
		}
		if err := w.expr(e.X); err != nil {
			return err
		}
		w.WriteString(" " + ops[e.Op] + " ")
		return w.expr(e.Y)
	case querylanguage.OpIn, querylanguage.OpNotIn:
		return w.in(e)
	case querylanguage.OpContains, querylanguage.OpHasPrefix, querylanguage.OpHasSuffix:
		if err := w.expr(e.X); err != nil {
			return err
		}
		w.WriteString(" LIKE ")
		return w.pattern(e.Op, e.Y, false)
	case querylanguage.OpContainsFold:
		w.WriteString("LOWER(")
		if err := w.expr(e.X); err != nil {
			return err
		}
		w.WriteString(") LIKE ")
		return w.pattern(querylanguage.OpContains, e.Y, true)
	case querylanguage.OpEqualFold:
		w.WriteString("LOWER(")
		if err := w.expr(e.X); err != nil {
			return err
		}
		w.WriteString(") = LOWER(")
		if err := w.expr(e.Y); err != nil {
			return err
		}
		w.WriteString(")")
		return nil
	default:
		return fmt.Errorf("dialect/sql: unsupported binary operator %s", e.Op)
	}
}

// in expands a membership test. The list must be known at build time;
// parameterized lists cannot be expanded into a fixed placeholder
// count.
// TODO: expand parameterized IN lists per execution once Statement
// supports variadic binds.
func (w *writer) in(e *querylanguage.Binary) error {
	v, ok := e.Y.(*querylanguage.Value)
	if !ok {
		return fmt.Errorf("dialect/sql: %s requires a literal list, got %T", e.Op, e.Y)
	}
	vs, ok := v.V.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: %s requires a list value, got %T", e.Op, v.V)
	}
	if len(vs) == 0 {
		// Empty list: no row matches (or every row, for the negation).
		if e.Op == querylanguage.OpNotIn {
			w.WriteString("1 = 1")
		} else {
			w.WriteString("1 = 0")
		}
		return nil
	}
	if err := w.expr(e.X); err != nil {
		return err
	}
	if e.Op == querylanguage.OpNotIn {
		w.WriteString(" NOT IN (")
	} else {
		w.WriteString(" IN (")
	}
	for i, x := range vs {
		if i > 0 {
			w.WriteString(", ")
		}
		w.bindValue(x)
	}
	w.WriteString(")")
	return nil
}

// pattern writes a LIKE operand wrapping the bound value with the
// wildcards the operator implies.
func (w *writer) pattern(op querylanguage.Op, y querylanguage.Expr, lower bool) error {
	operand := func() error {
		if !lower {
			return w.expr(y)
		}
		w.WriteString("LOWER(")
		if err := w.expr(y); err != nil {
			return err
		}
		w.WriteString(")")
		return nil
	}
	concat := func(parts ...func() error) error {
		if w.dialect == dialect.MySQL {
			w.WriteString("CONCAT(")
			for i, p := range parts {
				if i > 0 {
					w.WriteString(", ")
				}
				if err := p(); err != nil {
					return err
				}
			}
			w.WriteString(")")
			return nil
		}
		for i, p := range parts {
			if i > 0 {
				w.WriteString(" || ")
			}
			if err := p(); err != nil {
				return err
			}
		}
		return nil
	}
	pct := func() error { w.WriteString("'%'"); return nil }
	switch op {
	case querylanguage.OpContains:
		return concat(pct, operand, pct)
	case querylanguage.OpHasPrefix:
		return concat(operand, pct)
	case querylanguage.OpHasSuffix:
		return concat(pct, operand)
	default:
		return fmt.Errorf("dialect/sql: unsupported pattern operator %s", op)
	}
}

// fn writes a resolved function node: built-ins map to their native SQL
// forms, domain functions to their qualified names.
func (w *writer) fn(e *querylanguage.Func) error {
	switch e.Desc.Name {
	case querylanguage.FuncNow:
		w.WriteString("CURRENT_TIMESTAMP")
		return nil
	case querylanguage.FuncRand:
		if w.dialect == dialect.MySQL {
			w.WriteString("RAND()")
		} else {
			w.WriteString("RANDOM()")
		}
		return nil
	case querylanguage.FuncUUID:
		// Generated client side so every dialect gets the same shape.
		w.placeholder()
		w.binds = append(w.binds, bind{kind: bindUUID})
		return nil
	}
	name := e.Desc.Qualified()
	if !isValidIdentifier(name) {
		return fmt.Errorf("dialect/sql: invalid function name %q", name)
	}
	w.WriteString(name + "(")
	for i, a := range e.Args {
		if i > 0 {
			w.WriteString(", ")
		}
		if err := w.expr(a); err != nil {
			return err
		}
	}
	w.WriteString(")")
	return nil
}
