package compiler

import (
	"reflect"
	"time"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/querylanguage"
)

// Transformer rewrites a single expression node during the transform
// pass. Returning the node unchanged is the identity transform.
type Transformer interface {
	Transform(e querylanguage.Expr) (querylanguage.Expr, error)
}

// TransformerFunc adapts a function to the Transformer interface.
type TransformerFunc func(e querylanguage.Expr) (querylanguage.Expr, error)

// Transform implements Transformer.
func (f TransformerFunc) Transform(e querylanguage.Expr) (querylanguage.Expr, error) {
	return f(e)
}

// Transforms dispatches transformers by node kind. Transformers for a
// kind run in registration order over the node; the pass visits the
// tree bottom-up and an expression free of matching nodes passes
// through structurally unchanged.
type Transforms struct {
	byKind map[querylanguage.Kind][]Transformer
}

// NewTransforms returns an empty registry.
func NewTransforms() *Transforms {
	return &Transforms{byKind: make(map[querylanguage.Kind][]Transformer)}
}

// Register appends a transformer for the given node kind.
func (t *Transforms) Register(k querylanguage.Kind, tr Transformer) {
	t.byKind[k] = append(t.byKind[k], tr)
}

// Rewriter returns the registry as a rewrite pass. The concrete func
// type satisfies querylanguage.Rewriter and can be passed directly to
// querylanguage.Rewrite.
func (t *Transforms) Rewriter() querylanguage.RewriteFunc {
	return querylanguage.RewriteFunc(func(e querylanguage.Expr) (querylanguage.Expr, error) {
		for _, tr := range t.byKind[e.Kind()] {
			ne, err := tr.Transform(e)
			if err != nil {
				return nil, err
			}
			e = ne
		}
		return e, nil
	})
}

// Built-in descriptors for the volatile and non-deterministic
// functions. They stay symbolic through compilation so every execution
// produces a fresh value.
var builtinFuncs = map[string]*querylanguage.FuncDescriptor{
	querylanguage.FuncNow:  {Name: querylanguage.FuncNow, Elem: reflect.TypeOf(time.Time{})},
	querylanguage.FuncUUID: {Name: querylanguage.FuncUUID, Elem: reflect.TypeOf("")},
	querylanguage.FuncRand: {Name: querylanguage.FuncRand, Elem: reflect.TypeOf(int64(0))},
}

// funcResolver rewrites surviving call and member nodes into resolved
// function nodes. Anything that reaches it is either a registered
// domain function, a built-in, or an authoring mistake.
type funcResolver struct {
	funcs map[string]*querylanguage.FuncDescriptor
}

func newFuncResolver(funcs []*querylanguage.FuncDescriptor) (*funcResolver, error) {
	r := &funcResolver{funcs: make(map[string]*querylanguage.FuncDescriptor, len(funcs))}
	for _, f := range funcs {
		if f.Name == "" {
			return nil, veloq.NewConfigError("", "function descriptor has no name", nil)
		}
		if _, ok := r.funcs[f.Name]; ok {
			return nil, veloq.NewConfigError(f.Name, "duplicate function descriptor", nil)
		}
		r.funcs[f.Name] = f
	}
	return r, nil
}

// Transform implements Transformer for call and member nodes.
func (r *funcResolver) Transform(e querylanguage.Expr) (querylanguage.Expr, error) {
	switch e := e.(type) {
	case *querylanguage.Call:
		if e.IsChain() {
			return e, nil
		}
		// A resolved Func node has no receiver slot; a call that still
		// carries one cannot be mapped without losing it.
		if e.X != nil {
			return nil, veloq.NewConfigError(e.Fn, "function call with a receiver", nil)
		}
		return r.resolve(e.Fn, e.Args)
	case *querylanguage.Member:
		if e.Name != querylanguage.FuncNow {
			return e, nil
		}
		return r.resolve(e.Name, nil)
	default:
		return e, nil
	}
}

func (r *funcResolver) resolve(name string, args []querylanguage.Expr) (querylanguage.Expr, error) {
	desc, ok := r.funcs[name]
	if !ok {
		if desc, ok = builtinFuncs[name]; !ok {
			return nil, veloq.NewConfigError(name, "unknown function", nil)
		}
	}
	if desc.NArgs != len(args) {
		return nil, veloq.NewConfigError(name, "wrong number of arguments", nil)
	}
	return &querylanguage.Func{Desc: desc, Args: args, Elem: desc.Elem}, nil
}
