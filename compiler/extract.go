package compiler

import (
	"fmt"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/querylanguage"
)

// Extractor replaces the maximal evaluatable subtrees of an expression
// with parameter references, binding their values into a query context.
// Two expressions differing only in such subtrees therefore share a
// shape, a fingerprint, and a cache entry.
type Extractor struct {
	filter *Filter
}

// NewExtractor returns an extractor over the given filter.
func NewExtractor(f *Filter) *Extractor {
	return &Extractor{filter: f}
}

// Extract returns e with every maximal evaluatable subtree replaced.
// With parameterize set, each subtree becomes a parameter reference
// named by traversal position and its value is bound into qc; otherwise
// the subtree is folded into its literal value in place. Structural
// chain arguments (the source name, ordering directions) are never
// replaced.
func (x *Extractor) Extract(e querylanguage.Expr, qc *veloq.QueryContext, parameterize bool) (querylanguage.Expr, error) {
	w := &walker{filter: x.filter, qc: qc, parameterize: parameterize}
	out, eval, err := w.walk(e)
	if err != nil {
		return nil, err
	}
	if eval {
		return w.bind(e)
	}
	return out, nil
}

type walker struct {
	filter       *Filter
	qc           *veloq.QueryContext
	parameterize bool
	n            int
}

// walk returns the rewritten node and whether the whole subtree rooted
// at e is evaluatable. An evaluatable subtree is returned unchanged so
// the parent can replace it at the maximal point.
func (w *walker) walk(e querylanguage.Expr) (querylanguage.Expr, bool, error) {
	local := w.filter.Evaluatable(e)
	switch e := e.(type) {
	case *querylanguage.Value:
		return e, true, nil
	case *querylanguage.Param, *querylanguage.Field:
		return e, false, nil
	case *querylanguage.Member:
		if e.X == nil {
			return e, local, nil
		}
		nx, xeval, err := w.walk(e.X)
		if err != nil {
			return nil, false, err
		}
		if local && xeval {
			return e, true, nil
		}
		if xeval {
			if nx, err = w.bind(e.X); err != nil {
				return nil, false, err
			}
		}
		if nx == e.X {
			return e, false, nil
		}
		return &querylanguage.Member{X: nx, Name: e.Name, Access: e.Access}, false, nil
	case *querylanguage.Call:
		return w.walkCall(e, local)
	case *querylanguage.Lambda:
		body, beval, err := w.walk(e.Body)
		if err != nil {
			return nil, false, err
		}
		if beval {
			if body, err = w.bind(e.Body); err != nil {
				return nil, false, err
			}
		}
		if body == e.Body {
			return e, false, nil
		}
		return &querylanguage.Lambda{Body: body}, false, nil
	case *querylanguage.Binary:
		if e.Op == querylanguage.OpIn || e.Op == querylanguage.OpNotIn {
			return w.walkIn(e)
		}
		nx, xeval, err := w.walk(e.X)
		if err != nil {
			return nil, false, err
		}
		ny, yeval, err := w.walk(e.Y)
		if err != nil {
			return nil, false, err
		}
		if xeval && yeval {
			return e, true, nil
		}
		if xeval {
			if nx, err = w.bind(e.X); err != nil {
				return nil, false, err
			}
		}
		if yeval {
			if ny, err = w.bind(e.Y); err != nil {
				return nil, false, err
			}
		}
		if nx == e.X && ny == e.Y {
			return e, false, nil
		}
		return &querylanguage.Binary{Op: e.Op, X: nx, Y: ny}, false, nil
	case *querylanguage.Unary:
		nx, xeval, err := w.walk(e.X)
		if err != nil {
			return nil, false, err
		}
		if xeval {
			return e, true, nil
		}
		if nx == e.X {
			return e, false, nil
		}
		return &querylanguage.Unary{Op: e.Op, X: nx}, false, nil
	case *querylanguage.Nary:
		nxs, evals, alleval, err := w.walkAll(e.Xs)
		if err != nil {
			return nil, false, err
		}
		if alleval {
			return e, true, nil
		}
		changed, err := w.bindEval(e.Xs, nxs, evals)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return e, false, nil
		}
		return &querylanguage.Nary{Op: e.Op, Xs: nxs}, false, nil
	case *querylanguage.Func:
		// Function nodes are opaque to evaluation regardless of their
		// arguments; evaluatable arguments are bound individually.
		nargs, evals, _, err := w.walkAll(e.Args)
		if err != nil {
			return nil, false, err
		}
		changed, err := w.bindEval(e.Args, nargs, evals)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return e, false, nil
		}
		return e.WithArgs(nargs), false, nil
	default:
		return nil, false, fmt.Errorf("compiler: unknown expression type %T", e)
	}
}

// walkIn handles membership predicates. The list operand is inlined as
// a literal rather than extracted: a parameter cannot expand into a
// variable number of placeholders, so the list stays part of the query
// shape and each distinct list compiles separately.
func (w *walker) walkIn(e *querylanguage.Binary) (querylanguage.Expr, bool, error) {
	nx, xeval, err := w.walk(e.X)
	if err != nil {
		return nil, false, err
	}
	if xeval {
		if nx, err = w.bind(e.X); err != nil {
			return nil, false, err
		}
	}
	ny, yeval, err := w.walk(e.Y)
	if err != nil {
		return nil, false, err
	}
	if yeval {
		if _, ok := ny.(*querylanguage.Value); !ok {
			v, err := querylanguage.Eval(e.Y)
			if err != nil {
				return nil, false, err
			}
			ny = querylanguage.V(v)
		}
	}
	if nx == e.X && ny == e.Y {
		return e, false, nil
	}
	return &querylanguage.Binary{Op: e.Op, X: nx, Y: ny}, false, nil
}

func (w *walker) walkCall(c *querylanguage.Call, local bool) (querylanguage.Expr, bool, error) {
	if c.IsChain() {
		return w.walkChain(c)
	}
	var nx querylanguage.Expr
	xeval := true
	if c.X != nil {
		var err error
		if nx, xeval, err = w.walk(c.X); err != nil {
			return nil, false, err
		}
	}
	nargs, evals, alleval, err := w.walkAll(c.Args)
	if err != nil {
		return nil, false, err
	}
	if local && xeval && alleval {
		return c, true, nil
	}
	if c.X != nil && xeval {
		if nx, err = w.bind(c.X); err != nil {
			return nil, false, err
		}
	}
	changed, err := w.bindEval(c.Args, nargs, evals)
	if err != nil {
		return nil, false, err
	}
	if nx == c.X && !changed {
		return c, false, nil
	}
	return &querylanguage.Call{Fn: c.Fn, X: nx, Args: nargs, Invoke: c.Invoke}, false, nil
}

// walkChain handles query-chain stages. The source name and ordering
// direction are part of the query shape and must survive extraction
// verbatim; everything else is treated like ordinary arguments.
func (w *walker) walkChain(c *querylanguage.Call) (querylanguage.Expr, bool, error) {
	var nx querylanguage.Expr
	if c.X != nil {
		var err error
		if nx, _, err = w.walk(c.X); err != nil {
			return nil, false, err
		}
	}
	nargs := c.Args
	switch c.Fn {
	case querylanguage.FnSource:
		// Structural: the name is never a parameter.
	case querylanguage.FnOrder:
		if len(c.Args) == 2 {
			na, err := w.walkArg(c.Args[0])
			if err != nil {
				return nil, false, err
			}
			if na != c.Args[0] {
				nargs = []querylanguage.Expr{na, c.Args[1]}
			}
		}
	default:
		changed := false
		out := make([]querylanguage.Expr, len(c.Args))
		for i, a := range c.Args {
			na, err := w.walkArg(a)
			if err != nil {
				return nil, false, err
			}
			out[i] = na
			changed = changed || na != a
		}
		if changed {
			nargs = out
		}
	}
	if nx == c.X && sameExprs(nargs, c.Args) {
		return c, false, nil
	}
	return &querylanguage.Call{Fn: c.Fn, X: nx, Args: nargs, Invoke: c.Invoke}, false, nil
}

// walkArg walks a single argument and replaces it when its whole
// subtree is evaluatable.
func (w *walker) walkArg(a querylanguage.Expr) (querylanguage.Expr, error) {
	na, eval, err := w.walk(a)
	if err != nil {
		return nil, err
	}
	if eval {
		return w.bind(a)
	}
	return na, nil
}

// walkAll walks a slice of children without binding any of them,
// reporting per-element and overall evaluatability. Callers decide
// whether to replace the whole slice or bind elements via bindEval.
func (w *walker) walkAll(xs []querylanguage.Expr) ([]querylanguage.Expr, []bool, bool, error) {
	out := make([]querylanguage.Expr, len(xs))
	evals := make([]bool, len(xs))
	alleval := true
	for i, x := range xs {
		nx, eval, err := w.walk(x)
		if err != nil {
			return nil, nil, false, err
		}
		out[i], evals[i] = nx, eval
		alleval = alleval && eval
	}
	return out, evals, alleval, nil
}

// bindEval binds the evaluatable elements of a walked slice in place
// and reports whether out now differs from orig.
func (w *walker) bindEval(orig, out []querylanguage.Expr, evals []bool) (bool, error) {
	changed := false
	for i := range orig {
		if evals[i] {
			b, err := w.bind(orig[i])
			if err != nil {
				return false, err
			}
			out[i] = b
		}
		if out[i] != orig[i] {
			changed = true
		}
	}
	return changed, nil
}

// bind evaluates e and replaces it with a parameter reference named by
// traversal position, or with its literal value when parameterization
// is off.
func (w *walker) bind(e querylanguage.Expr) (querylanguage.Expr, error) {
	v, err := querylanguage.Eval(e)
	if err != nil {
		return nil, err
	}
	if !w.parameterize {
		return querylanguage.V(v), nil
	}
	name := fmt.Sprintf("v%d", w.n)
	w.n++
	w.qc.SetParam(name, v)
	return querylanguage.Arg(name), nil
}

func sameExprs(a, b []querylanguage.Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
