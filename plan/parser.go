package plan

import (
	"fmt"
	"reflect"

	"github.com/syssam/veloq/querylanguage"
)

// Parser turns an expression chain into a Query. The configured passes
// run over the whole tree first, outside in, so that by the time the
// structural walk happens every node is already in its final form.
type Parser struct {
	passes []querylanguage.Rewriter
}

// NewParser creates a parser running the given rewrite passes before
// the structural walk.
func NewParser(passes ...querylanguage.Rewriter) *Parser {
	return &Parser{passes: passes}
}

// Parse applies the parser's passes to e and walks the resulting chain
// into a Query. The chain must be rooted at a source call; stages may
// appear in any order and repeat, except source.
func (p *Parser) Parse(e querylanguage.Expr) (*Query, error) {
	var err error
	for _, pass := range p.passes {
		if e, err = querylanguage.Rewrite(e, pass.Rewrite); err != nil {
			return nil, err
		}
	}
	chain, err := unroll(e)
	if err != nil {
		return nil, err
	}
	q := &Query{Elem: RowType}
	// The unrolled chain is outermost first; clauses apply from the
	// source outward.
	for i := len(chain) - 1; i >= 0; i-- {
		if err := q.apply(chain[i]); err != nil {
			return nil, err
		}
	}
	if q.Source == "" {
		return nil, fmt.Errorf("plan: query has no source")
	}
	return q, nil
}

// unroll flattens the call chain from the outermost stage down to the
// source call.
func unroll(e querylanguage.Expr) ([]*querylanguage.Call, error) {
	var chain []*querylanguage.Call
	for {
		c, ok := e.(*querylanguage.Call)
		if !ok || !c.IsChain() {
			return nil, fmt.Errorf("plan: expected a query stage, got %T", e)
		}
		chain = append(chain, c)
		if c.Fn == querylanguage.FnSource {
			return chain, nil
		}
		if c.X == nil {
			return nil, fmt.Errorf("plan: stage %s has no receiver", c.Fn)
		}
		e = c.X
	}
}

func (q *Query) apply(c *querylanguage.Call) error {
	switch c.Fn {
	case querylanguage.FnSource:
		if q.Source != "" {
			return fmt.Errorf("plan: duplicate source")
		}
		name, err := stringArg(c, 0)
		if err != nil {
			return err
		}
		q.Source = name
	case querylanguage.FnWhere:
		if len(c.Args) != 1 {
			return arityErr(c, 1)
		}
		pred := c.Args[0]
		if l, ok := pred.(*querylanguage.Lambda); ok {
			pred = l.Body
		}
		q.Predicates = append(q.Predicates, pred)
	case querylanguage.FnSelect:
		if len(c.Args) == 0 {
			return fmt.Errorf("plan: select needs at least one expression")
		}
		q.Projection = append([]querylanguage.Expr(nil), c.Args...)
		if !q.Count {
			q.Elem = projectionType(q.Projection)
		}
	case querylanguage.FnOrder:
		if len(c.Args) != 2 {
			return arityErr(c, 2)
		}
		dir, err := stringArg(c, 1)
		if err != nil {
			return err
		}
		switch dir {
		case querylanguage.OrderAsc, querylanguage.OrderDesc:
		default:
			return fmt.Errorf("plan: unknown order direction %q", dir)
		}
		q.Orderings = append(q.Orderings, Ordering{
			X:    c.Args[0],
			Desc: dir == querylanguage.OrderDesc,
		})
	case querylanguage.FnGroup:
		if len(c.Args) == 0 {
			return fmt.Errorf("plan: group needs at least one expression")
		}
		q.GroupBy = append(q.GroupBy, c.Args...)
	case querylanguage.FnLimit:
		if len(c.Args) != 1 {
			return arityErr(c, 1)
		}
		q.Limit = c.Args[0]
	case querylanguage.FnOffset:
		if len(c.Args) != 1 {
			return arityErr(c, 1)
		}
		q.Offset = c.Args[0]
	case querylanguage.FnCount:
		if len(c.Args) != 0 {
			return arityErr(c, 0)
		}
		q.Count = true
		q.Elem = CountType
	default:
		return fmt.Errorf("plan: unknown stage %q", c.Fn)
	}
	return nil
}

// projectionType picks the item type implied by a projection: the
// declared result type of a single function projection, a bare value
// for any other single expression, and a row map for multi-column
// projections.
func projectionType(proj []querylanguage.Expr) (t reflect.Type) {
	if len(proj) != 1 {
		return RowType
	}
	if f, ok := proj[0].(*querylanguage.Func); ok && f.Elem != nil {
		return f.Elem
	}
	return AnyType
}

func stringArg(c *querylanguage.Call, i int) (string, error) {
	if len(c.Args) <= i {
		return "", fmt.Errorf("plan: stage %s is missing argument %d", c.Fn, i)
	}
	v, ok := c.Args[i].(*querylanguage.Value)
	if !ok {
		return "", fmt.Errorf("plan: stage %s argument %d must be a literal, got %T", c.Fn, i, c.Args[i])
	}
	s, ok := v.V.(string)
	if !ok {
		return "", fmt.Errorf("plan: stage %s argument %d must be a string, got %T", c.Fn, i, v.V)
	}
	return s, nil
}

func arityErr(c *querylanguage.Call, n int) error {
	return fmt.Errorf("plan: stage %s expects %d argument(s), got %d", c.Fn, n, len(c.Args))
}
