// Package plan holds the backend-agnostic query model: the parsed
// clauses of a query (source, filters, projections, ordering, grouping,
// bounds) and the parser that produces it from an expression chain. A
// Query is ephemeral: it is built per compilation and consumed
// immediately by the execution backend; only the compiled delegate is
// cached.
package plan

import (
	"reflect"

	"github.com/syssam/veloq/querylanguage"
)

// Ordering is a single ordering clause.
type Ordering struct {
	X    querylanguage.Expr
	Desc bool
}

// Query is the parsed, backend-agnostic representation of a query.
type Query struct {
	// Source is the entity or collection name the query runs against.
	Source string

	// Elem is the declared output item type: int64 for counting
	// queries, the function result type for single function
	// projections, a column value for other single projections, and a
	// row map otherwise.
	Elem reflect.Type

	// Predicates are the filter clauses, implicitly conjoined.
	Predicates []querylanguage.Expr

	// Projection lists the projected expressions. Empty means the whole
	// row.
	Projection []querylanguage.Expr

	// GroupBy lists the grouping expressions.
	GroupBy []querylanguage.Expr

	// Orderings lists the ordering clauses in application order.
	Orderings []Ordering

	// Limit and Offset bound the result set; nil when absent. They are
	// expressions (usually parameter references) resolved per
	// execution.
	Limit, Offset querylanguage.Expr

	// Count reports whether the query returns the number of matching
	// rows instead of the rows themselves.
	Count bool
}

var (
	// RowType is the default item type of unprojected queries.
	RowType = reflect.TypeOf(map[string]any{})
	// CountType is the item type of counting queries.
	CountType = reflect.TypeOf(int64(0))
	// AnyType is the item type of single-column projections.
	AnyType = reflect.TypeOf((*any)(nil)).Elem()
)
