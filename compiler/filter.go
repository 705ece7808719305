// Package compiler turns query expressions into cached executable
// delegates. The pipeline is fixed: parameter extraction over the
// evaluatability filter, shape fingerprinting, cache lookup, and on a
// miss a transform pass followed by parsing and backend compilation.
package compiler

import (
	"github.com/syssam/veloq/querylanguage"
)

// Filter decides whether a single expression node may be evaluated at
// compile time. A subtree is evaluatable only if every node in it is;
// that closure is computed by the extractor, the filter judges nodes in
// isolation.
type Filter struct {
	domain map[string]bool
}

// NewFilter returns a filter excluding the given domain functions from
// compile-time evaluation, on top of the built-in exclusions for
// parameters, fields, the process clock and the non-deterministic
// generators.
func NewFilter(funcs []*querylanguage.FuncDescriptor) *Filter {
	domain := make(map[string]bool, len(funcs))
	for _, f := range funcs {
		domain[f.Name] = true
	}
	return &Filter{domain: domain}
}

// Evaluatable reports whether e itself may be evaluated at compile
// time, assuming its children are.
func (f *Filter) Evaluatable(e querylanguage.Expr) bool {
	switch e := e.(type) {
	case *querylanguage.Value, *querylanguage.Binary, *querylanguage.Unary, *querylanguage.Nary:
		return true
	case *querylanguage.Member:
		// The clock is volatile: evaluating it would bake a stale
		// timestamp into the cached plan.
		return e.Access != nil && e.Name != querylanguage.FuncNow
	case *querylanguage.Call:
		if e.IsChain() {
			return false
		}
		return e.Invoke != nil && !f.nondeterministic(e.Fn) && !f.domain[e.Fn]
	default:
		// Parameters, fields, lambdas and resolved function nodes are
		// never compile-time evaluatable.
		return false
	}
}

// Domain reports whether name is a registered domain function.
func (f *Filter) Domain(name string) bool { return f.domain[name] }

func (f *Filter) nondeterministic(name string) bool {
	switch name {
	case querylanguage.FuncUUID, querylanguage.FuncRand:
		return true
	default:
		return false
	}
}
