package querylanguage

import "fmt"

// Rewriter rewrites an expression tree into a new tree.
type Rewriter interface {
	Rewrite(Expr) (Expr, error)
}

// RewriteFunc adapts a function to the Rewriter interface.
type RewriteFunc func(Expr) (Expr, error)

// Rewrite calls f.
func (f RewriteFunc) Rewrite(e Expr) (Expr, error) { return f(e) }

// Rewrite applies f to every node of the tree, bottom-up. A node is
// rebuilt only when one of its children changed; otherwise the original
// node is passed to f, so an f that returns its input unchanged yields
// the identical tree instance.
func Rewrite(e Expr, f func(Expr) (Expr, error)) (Expr, error) {
	if e == nil {
		return nil, nil
	}
	switch x := e.(type) {
	case *Value, *Param, *Field:
	case *Member:
		if x.X != nil {
			nx, err := Rewrite(x.X, f)
			if err != nil {
				return nil, err
			}
			if nx != x.X {
				e = &Member{X: nx, Name: x.Name, Access: x.Access}
			}
		}
	case *Call:
		recv, err := Rewrite(x.X, f)
		if err != nil {
			return nil, err
		}
		args, changed, err := rewriteAll(x.Args, f)
		if err != nil {
			return nil, err
		}
		if recv != x.X || changed {
			e = &Call{Fn: x.Fn, X: recv, Args: args, Invoke: x.Invoke}
		}
	case *Lambda:
		body, err := Rewrite(x.Body, f)
		if err != nil {
			return nil, err
		}
		if body != x.Body {
			e = &Lambda{Body: body}
		}
	case *Binary:
		nx, err := Rewrite(x.X, f)
		if err != nil {
			return nil, err
		}
		ny, err := Rewrite(x.Y, f)
		if err != nil {
			return nil, err
		}
		if nx != x.X || ny != x.Y {
			e = &Binary{Op: x.Op, X: nx, Y: ny}
		}
	case *Unary:
		nx, err := Rewrite(x.X, f)
		if err != nil {
			return nil, err
		}
		if nx != x.X {
			e = &Unary{Op: x.Op, X: nx}
		}
	case *Nary:
		xs, changed, err := rewriteAll(x.Xs, f)
		if err != nil {
			return nil, err
		}
		if changed {
			e = &Nary{Op: x.Op, Xs: xs}
		}
	case *Func:
		args, changed, err := rewriteAll(x.Args, f)
		if err != nil {
			return nil, err
		}
		if changed {
			e = x.WithArgs(args)
		}
	default:
		return nil, fmt.Errorf("querylanguage: unknown expression type %T", e)
	}
	return f(e)
}

// rewriteAll rewrites a slice of expressions, reporting whether any
// element changed. The original slice is returned unchanged if none did.
func rewriteAll(es []Expr, f func(Expr) (Expr, error)) ([]Expr, bool, error) {
	var out []Expr
	for i, e := range es {
		ne, err := Rewrite(e, f)
		if err != nil {
			return nil, false, err
		}
		if out == nil && ne != e {
			out = make([]Expr, i, len(es))
			copy(out, es[:i])
		}
		if out != nil {
			out = append(out, ne)
		}
	}
	if out == nil {
		return es, false, nil
	}
	return out, true, nil
}

// Walk traverses the tree top-down, calling f for every node. Traversal
// of a subtree stops when f returns false for its root.
func Walk(e Expr, f func(Expr) bool) {
	if e == nil || !f(e) {
		return
	}
	switch x := e.(type) {
	case *Value, *Param, *Field:
	case *Member:
		Walk(x.X, f)
	case *Call:
		Walk(x.X, f)
		for _, a := range x.Args {
			Walk(a, f)
		}
	case *Lambda:
		Walk(x.Body, f)
	case *Binary:
		Walk(x.X, f)
		Walk(x.Y, f)
	case *Unary:
		Walk(x.X, f)
	case *Nary:
		for _, a := range x.Xs {
			Walk(a, f)
		}
	case *Func:
		for _, a := range x.Args {
			Walk(a, f)
		}
	}
}
