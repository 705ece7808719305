package memory

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/querylanguage"
)

var fold = cases.Fold()

// eval evaluates an expression against a row and the per-execution
// parameter context.
func (b *Backend) eval(e querylanguage.Expr, row Row, qc *veloq.QueryContext) (any, error) {
	switch e := e.(type) {
	case *querylanguage.Value:
		return e.V, nil
	case *querylanguage.Param:
		v, ok := qc.Param(e.Name)
		if !ok {
			return nil, fmt.Errorf("memory: unbound parameter $%s", e.Name)
		}
		return v, nil
	case *querylanguage.Field:
		v, ok := row[e.Name]
		if !ok {
			return nil, fmt.Errorf("memory: row has no field %q", e.Name)
		}
		return v, nil
	case *querylanguage.Member:
		if e.Access == nil {
			return nil, fmt.Errorf("memory: member %q has no accessor", e.Name)
		}
		var recv any
		if e.X != nil {
			var err error
			if recv, err = b.eval(e.X, row, qc); err != nil {
				return nil, err
			}
		}
		return e.Access(recv)
	case *querylanguage.Call:
		if e.Invoke == nil {
			return nil, fmt.Errorf("memory: call %q has no invoker", e.Fn)
		}
		args, err := b.evalAll(e.Args, row, qc)
		if err != nil {
			return nil, err
		}
		return e.Invoke(args...)
	case *querylanguage.Lambda:
		return b.eval(e.Body, row, qc)
	case *querylanguage.Binary:
		return b.evalBinary(e, row, qc)
	case *querylanguage.Unary:
		if e.Op != querylanguage.OpNot {
			return nil, fmt.Errorf("memory: unsupported unary operator %s", e.Op)
		}
		v, err := b.eval(e.X, row, qc)
		if err != nil {
			return nil, err
		}
		bv, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("memory: negating %T, want bool", v)
		}
		return !bv, nil
	case *querylanguage.Nary:
		return b.evalNary(e, row, qc)
	case *querylanguage.Func:
		return b.evalFunc(e, row, qc)
	default:
		return nil, fmt.Errorf("memory: unsupported expression %T", e)
	}
}

func (b *Backend) evalAll(xs []querylanguage.Expr, row Row, qc *veloq.QueryContext) ([]any, error) {
	out := make([]any, len(xs))
	for i, x := range xs {
		v, err := b.eval(x, row, qc)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (b *Backend) evalBinary(e *querylanguage.Binary, row Row, qc *veloq.QueryContext) (any, error) {
	x, err := b.eval(e.X, row, qc)
	if err != nil {
		return nil, err
	}
	y, err := b.eval(e.Y, row, qc)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case querylanguage.OpEQ:
		return querylanguage.Compare(x, y) == 0, nil
	case querylanguage.OpNEQ:
		return querylanguage.Compare(x, y) != 0, nil
	case querylanguage.OpGT:
		return b.compare(x, y) > 0, nil
	case querylanguage.OpGTE:
		return b.compare(x, y) >= 0, nil
	case querylanguage.OpLT:
		return b.compare(x, y) < 0, nil
	case querylanguage.OpLTE:
		return b.compare(x, y) <= 0, nil
	case querylanguage.OpIn, querylanguage.OpNotIn:
		return evalIn(e.Op, x, y)
	case querylanguage.OpContains, querylanguage.OpContainsFold,
		querylanguage.OpHasPrefix, querylanguage.OpHasSuffix,
		querylanguage.OpEqualFold:
		return evalStringOp(e.Op, x, y)
	default:
		return nil, fmt.Errorf("memory: unsupported binary operator %s", e.Op)
	}
}

func evalIn(op querylanguage.Op, x, y any) (any, error) {
	ys, ok := y.([]any)
	if !ok {
		return nil, fmt.Errorf("memory: right side of %s is %T, want a list", op, y)
	}
	found := false
	for _, v := range ys {
		if querylanguage.Compare(x, v) == 0 {
			found = true
			break
		}
	}
	if op == querylanguage.OpNotIn {
		return !found, nil
	}
	return found, nil
}

// evalStringOp applies the string predicates; the fold variants use
// Unicode case folding rather than ASCII lowering.
func evalStringOp(op querylanguage.Op, x, y any) (any, error) {
	sx, ok := x.(string)
	if !ok {
		return nil, fmt.Errorf("memory: left side of %s is %T, want string", op, x)
	}
	sy, ok := y.(string)
	if !ok {
		return nil, fmt.Errorf("memory: right side of %s is %T, want string", op, y)
	}
	switch op {
	case querylanguage.OpContains:
		return strings.Contains(sx, sy), nil
	case querylanguage.OpContainsFold:
		return strings.Contains(fold.String(sx), fold.String(sy)), nil
	case querylanguage.OpHasPrefix:
		return strings.HasPrefix(sx, sy), nil
	case querylanguage.OpHasSuffix:
		return strings.HasSuffix(sx, sy), nil
	case querylanguage.OpEqualFold:
		return fold.String(sx) == fold.String(sy), nil
	default:
		return nil, fmt.Errorf("memory: unsupported string operator %s", op)
	}
}

func (b *Backend) evalNary(e *querylanguage.Nary, row Row, qc *veloq.QueryContext) (any, error) {
	for _, x := range e.Xs {
		v, err := b.eval(x, row, qc)
		if err != nil {
			return nil, err
		}
		bv, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("memory: %s operand evaluated to %T, want bool", e.Op, v)
		}
		// Short circuit.
		if e.Op == querylanguage.OpAnd && !bv {
			return false, nil
		}
		if e.Op == querylanguage.OpOr && bv {
			return true, nil
		}
	}
	return e.Op == querylanguage.OpAnd, nil
}

// evalFunc invokes a resolved function node: built-ins run their
// generators fresh per call, domain functions dispatch to the
// registered implementation.
func (b *Backend) evalFunc(e *querylanguage.Func, row Row, qc *veloq.QueryContext) (any, error) {
	switch e.Desc.Name {
	case querylanguage.FuncNow:
		return time.Now(), nil
	case querylanguage.FuncUUID:
		return uuid.NewString(), nil
	case querylanguage.FuncRand:
		return rand.Int64(), nil
	}
	b.mu.RLock()
	fn, ok := b.funcs[e.Desc.Name]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("memory: no implementation for function %q", e.Desc.Name)
	}
	args, err := b.evalAll(e.Args, row, qc)
	if err != nil {
		return nil, err
	}
	return fn(args...)
}

func builtin(name string) bool {
	switch name {
	case querylanguage.FuncNow, querylanguage.FuncUUID, querylanguage.FuncRand:
		return true
	default:
		return false
	}
}

// group collapses rows to one representative per distinct grouping key,
// preserving first-seen order.
func (b *Backend) group(exprs []querylanguage.Expr, rows []Row, qc *veloq.QueryContext) ([]Row, error) {
	seen := make(map[string]bool, len(rows))
	out := rows[:0:0]
	for _, row := range rows {
		var key strings.Builder
		for _, e := range exprs {
			v, err := b.eval(e, row, qc)
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(&key, "%v\x00", v)
		}
		if k := key.String(); !seen[k] {
			seen[k] = true
			out = append(out, row)
		}
	}
	return out, nil
}
