// Package querylanguage provides an expression-tree representation of
// queries: an immutable, typed tree of constants, parameters, field
// accesses, calls, lambdas and predicates, together with a rewriting
// visitor, compile-time evaluation and a structural fingerprint used as
// the compilation cache key.
package querylanguage

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Kind identifies the variant of an expression node.
type Kind int

// Expression node kinds. The node set is closed; every tree walk in this
// package switches over all of them.
const (
	KindValue Kind = iota
	KindParam
	KindField
	KindMember
	KindCall
	KindLambda
	KindBinary
	KindUnary
	KindNary
	KindFunc
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindParam:
		return "param"
	case KindField:
		return "field"
	case KindMember:
		return "member"
	case KindCall:
		return "call"
	case KindLambda:
		return "lambda"
	case KindBinary:
		return "binary"
	case KindUnary:
		return "unary"
	case KindNary:
		return "nary"
	case KindFunc:
		return "func"
	default:
		return "unknown"
	}
}

// Op represents a predicate operator.
type Op int

// Predicate operators.
const (
	OpEQ Op = iota
	OpNEQ
	OpGT
	OpGTE
	OpLT
	OpLTE
	OpIn
	OpNotIn
	OpContains
	OpContainsFold
	OpHasPrefix
	OpHasSuffix
	OpEqualFold
	OpNot
	OpAnd
	OpOr
)

func (o Op) String() string {
	switch o {
	case OpEQ:
		return "=="
	case OpNEQ:
		return "!="
	case OpGT:
		return ">"
	case OpGTE:
		return ">="
	case OpLT:
		return "<"
	case OpLTE:
		return "<="
	case OpIn:
		return "in"
	case OpNotIn:
		return "not in"
	case OpContains:
		return "contains"
	case OpContainsFold:
		return "contains_fold"
	case OpHasPrefix:
		return "has_prefix"
	case OpHasSuffix:
		return "has_suffix"
	case OpEqualFold:
		return "equal_fold"
	case OpNot:
		return "!"
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	default:
		return "unknown"
	}
}

// Expr is the interface implemented by all expression nodes.
type Expr interface {
	Kind() Kind
	String() string
}

// P is a predicate expression.
type P interface {
	Expr
	Negate() P
}

// Value is a constant expression holding a literal Go value.
type Value struct {
	V any
}

// Kind returns KindValue.
func (*Value) Kind() Kind { return KindValue }

// String returns the literal representation of the value.
func (v *Value) String() string {
	switch x := v.V.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// Param is a reference to a runtime parameter bound in the query context.
type Param struct {
	Name string
}

// Kind returns KindParam.
func (*Param) Kind() Kind { return KindParam }

// String returns the parameter placeholder.
func (p *Param) String() string { return "$" + p.Name }

// Field is an access to a field of the queried entity.
type Field struct {
	Name string
}

// Kind returns KindField.
func (*Field) Kind() Kind { return KindField }

// String returns the field name.
func (f *Field) String() string { return f.Name }

// Member is an access to a member of an operand (a captured struct field,
// or a package-level property such as the process clock when X is nil).
// Access computes the member value at evaluation time.
type Member struct {
	X      Expr
	Name   string
	Access func(x any) (any, error)
}

// Kind returns KindMember.
func (*Member) Kind() Kind { return KindMember }

// String returns the member access in dotted form.
func (m *Member) String() string {
	if m.X == nil {
		return m.Name
	}
	return m.X.String() + "." + m.Name
}

// Call is a function or method-chain call. Chain calls (where, select,
// order, limit, ...) link stages through X and carry no invoker. Calls
// with a bound Invoke func are candidates for compile-time evaluation,
// unless they are non-deterministic or match a registered domain
// function, in which case they stay symbolic for the backend.
type Call struct {
	Fn     string
	X      Expr
	Args   []Expr
	Invoke func(args ...any) (any, error)
}

// Kind returns KindCall.
func (*Call) Kind() Kind { return KindCall }

// String returns the call in method-chain form.
func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i := range c.Args {
		args[i] = c.Args[i].String()
	}
	s := c.Fn + "(" + strings.Join(args, ", ") + ")"
	if c.X != nil {
		s = c.X.String() + "." + s
	}
	return s
}

// Lambda wraps a predicate or projection body whose field references are
// resolved against the enclosing source.
type Lambda struct {
	Body Expr
}

// Kind returns KindLambda.
func (*Lambda) Kind() Kind { return KindLambda }

// String returns the lambda in arrow form.
func (l *Lambda) String() string { return "() => " + l.Body.String() }

// Binary is a binary predicate expression.
type Binary struct {
	Op   Op
	X, Y Expr
}

// Kind returns KindBinary.
func (*Binary) Kind() Kind { return KindBinary }

// String returns the predicate in infix or call form.
func (b *Binary) String() string {
	switch b.Op {
	case OpContains, OpContainsFold, OpHasPrefix, OpHasSuffix, OpEqualFold:
		return fmt.Sprintf("%s(%s, %s)", b.Op, b.X, b.Y)
	default:
		return fmt.Sprintf("%s %s %s", b.X, b.Op, b.Y)
	}
}

// Negate returns the negation of the predicate.
func (b *Binary) Negate() P { return Not(b) }

// Unary is a unary predicate expression.
type Unary struct {
	Op Op
	X  Expr
}

// Kind returns KindUnary.
func (*Unary) Kind() Kind { return KindUnary }

// String returns the predicate in prefix form.
func (u *Unary) String() string { return fmt.Sprintf("%s(%s)", u.Op, u.X) }

// Negate returns the negation of the predicate.
func (u *Unary) Negate() P { return Not(u) }

// Nary is an n-ary predicate expression (conjunction or disjunction).
type Nary struct {
	Op Op
	Xs []Expr
}

// Kind returns KindNary.
func (*Nary) Kind() Kind { return KindNary }

// String returns the predicate in infix form.
func (n *Nary) String() string {
	parts := make([]string, len(n.Xs))
	for i := range n.Xs {
		parts[i] = n.Xs[i].String()
	}
	s := strings.Join(parts, " "+n.Op.String()+" ")
	if len(n.Xs) > 2 {
		s = "(" + s + ")"
	}
	return s
}

// Negate returns the negation of the predicate.
func (n *Nary) Negate() P { return Not(n) }

// Func is the provider extension node: a domain function call resolved
// against the model, carried through parsing for the backend to
// translate. Desc identity and Elem are preserved across argument
// rewrites.
type Func struct {
	Desc *FuncDescriptor
	Args []Expr
	// Elem is the result item type: the element type when the function
	// returns a queryable sequence, the return type wrapped as a
	// sequence otherwise.
	Elem reflect.Type
}

// Kind returns KindFunc.
func (*Func) Kind() Kind { return KindFunc }

// String returns the function call with its backend-native name.
func (f *Func) String() string {
	args := make([]string, len(f.Args))
	for i := range f.Args {
		args[i] = f.Args[i].String()
	}
	return f.Desc.Qualified() + "(" + strings.Join(args, ", ") + ")"
}

// Negate returns the negation of the function predicate.
func (f *Func) Negate() P { return Not(f) }

// WithArgs returns a function node with the given arguments, preserving
// descriptor identity and result type. The receiver is returned as-is
// when no argument changed.
func (f *Func) WithArgs(args []Expr) *Func {
	if len(args) == len(f.Args) {
		same := true
		for i := range args {
			if args[i] != f.Args[i] {
				same = false
				break
			}
		}
		if same {
			return f
		}
	}
	return &Func{Desc: f.Desc, Args: args, Elem: f.Elem}
}

// EQ returns an equality predicate between two expressions.
func EQ(x, y Expr) P { return &Binary{Op: OpEQ, X: x, Y: y} }

// NEQ returns an inequality predicate between two expressions.
func NEQ(x, y Expr) P { return &Binary{Op: OpNEQ, X: x, Y: y} }

// GT returns a greater-than predicate between two expressions.
func GT(x, y Expr) P { return &Binary{Op: OpGT, X: x, Y: y} }

// GTE returns a greater-than-or-equal predicate between two expressions.
func GTE(x, y Expr) P { return &Binary{Op: OpGTE, X: x, Y: y} }

// LT returns a less-than predicate between two expressions.
func LT(x, y Expr) P { return &Binary{Op: OpLT, X: x, Y: y} }

// LTE returns a less-than-or-equal predicate between two expressions.
func LTE(x, y Expr) P { return &Binary{Op: OpLTE, X: x, Y: y} }

// Not returns the negation of the given predicate.
func Not(x Expr) P { return &Unary{Op: OpNot, X: x} }

// And returns the conjunction of the given predicates.
func And(x, y Expr, zs ...Expr) P {
	return &Nary{Op: OpAnd, Xs: append([]Expr{x, y}, zs...)}
}

// Or returns the disjunction of the given predicates.
func Or(x, y Expr, zs ...Expr) P {
	return &Nary{Op: OpOr, Xs: append([]Expr{x, y}, zs...)}
}

// F returns a field access expression.
func F(name string) *Field { return &Field{Name: name} }

// V returns a constant expression.
func V(v any) *Value { return &Value{V: v} }

// Arg returns a named runtime-parameter reference for precompiled
// queries whose values are bound explicitly through the query context.
func Arg(name string) *Param { return &Param{Name: name} }

// FieldEQ returns a predicate comparing the field with the given value.
func FieldEQ(name string, v any) P { return EQ(F(name), V(v)) }

// FieldNEQ returns a predicate comparing the field with the given value.
func FieldNEQ(name string, v any) P { return NEQ(F(name), V(v)) }

// FieldGT returns a predicate comparing the field with the given value.
func FieldGT(name string, v any) P { return GT(F(name), V(v)) }

// FieldGTE returns a predicate comparing the field with the given value.
func FieldGTE(name string, v any) P { return GTE(F(name), V(v)) }

// FieldLT returns a predicate comparing the field with the given value.
func FieldLT(name string, v any) P { return LT(F(name), V(v)) }

// FieldLTE returns a predicate comparing the field with the given value.
func FieldLTE(name string, v any) P { return LTE(F(name), V(v)) }

// FieldContains returns a predicate checking substring containment.
func FieldContains(name, substr string) P {
	return &Binary{Op: OpContains, X: F(name), Y: V(substr)}
}

// FieldContainsFold returns a case-insensitive containment predicate.
func FieldContainsFold(name, substr string) P {
	return &Binary{Op: OpContainsFold, X: F(name), Y: V(substr)}
}

// FieldHasPrefix returns a prefix predicate on the field.
func FieldHasPrefix(name, prefix string) P {
	return &Binary{Op: OpHasPrefix, X: F(name), Y: V(prefix)}
}

// FieldHasSuffix returns a suffix predicate on the field.
func FieldHasSuffix(name, suffix string) P {
	return &Binary{Op: OpHasSuffix, X: F(name), Y: V(suffix)}
}

// FieldEqualFold returns a case-insensitive equality predicate.
func FieldEqualFold(name, v string) P {
	return &Binary{Op: OpEqualFold, X: F(name), Y: V(v)}
}

// FieldIn returns a membership predicate on the field.
func FieldIn(name string, vs ...any) P {
	return &Binary{Op: OpIn, X: F(name), Y: V(vs)}
}

// FieldNotIn returns a negated membership predicate on the field.
func FieldNotIn(name string, vs ...any) P {
	return &Binary{Op: OpNotIn, X: F(name), Y: V(vs)}
}

// Chain method names recognized by the query parser.
const (
	FnSource  = "source"
	FnWhere   = "where"
	FnSelect  = "select"
	FnOrder   = "order"
	FnGroup   = "group"
	FnLimit   = "limit"
	FnOffset  = "offset"
	FnCount   = "count"
	OrderDesc = "desc"
	OrderAsc  = "asc"
)

// Source returns the root of a query chain over the named entity.
func Source(name string) *Call {
	return &Call{Fn: FnSource, Args: []Expr{V(name)}}
}

// Where appends a filter stage to the chain.
func (c *Call) Where(p Expr) *Call {
	return &Call{Fn: FnWhere, X: c, Args: []Expr{p}}
}

// Select appends a projection stage to the chain.
func (c *Call) Select(cols ...Expr) *Call {
	return &Call{Fn: FnSelect, X: c, Args: cols}
}

// Order appends an ascending ordering stage to the chain.
func (c *Call) Order(x Expr) *Call {
	return &Call{Fn: FnOrder, X: c, Args: []Expr{x, V(OrderAsc)}}
}

// OrderDesc appends a descending ordering stage to the chain.
func (c *Call) OrderDesc(x Expr) *Call {
	return &Call{Fn: FnOrder, X: c, Args: []Expr{x, V(OrderDesc)}}
}

// Group appends a grouping stage to the chain.
func (c *Call) Group(cols ...Expr) *Call {
	return &Call{Fn: FnGroup, X: c, Args: cols}
}

// Limit appends a limit stage to the chain.
func (c *Call) Limit(n Expr) *Call {
	return &Call{Fn: FnLimit, X: c, Args: []Expr{n}}
}

// Offset appends an offset stage to the chain.
func (c *Call) Offset(n Expr) *Call {
	return &Call{Fn: FnOffset, X: c, Args: []Expr{n}}
}

// Count appends a counting stage to the chain.
func (c *Call) Count() *Call {
	return &Call{Fn: FnCount, X: c}
}

// IsChain reports whether the call is a query-chain stage rather than a
// function invocation.
func (c *Call) IsChain() bool {
	switch c.Fn {
	case FnSource, FnWhere, FnSelect, FnOrder, FnGroup, FnLimit, FnOffset, FnCount:
		return true
	default:
		return false
	}
}
