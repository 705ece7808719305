package querylanguage

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrNotEvaluatable is returned when evaluation reaches a node that has
// no compile-time value (parameters, fields, chain stages, symbolic
// functions). Callers are expected to consult an evaluatability filter
// before evaluating; this error indicates a programming mistake, not a
// failed user evaluation.
var ErrNotEvaluatable = errors.New("querylanguage: expression is not evaluatable")

// Eval computes the compile-time value of the expression. Failures of
// bound accessors and invokers propagate to the caller unchanged.
func Eval(e Expr) (any, error) {
	switch x := e.(type) {
	case *Value:
		return x.V, nil
	case *Member:
		var recv any
		if x.X != nil {
			v, err := Eval(x.X)
			if err != nil {
				return nil, err
			}
			recv = v
		}
		if x.Access == nil {
			return nil, fmt.Errorf("%w: member %s has no accessor", ErrNotEvaluatable, x.Name)
		}
		return x.Access(recv)
	case *Call:
		if x.Invoke == nil {
			return nil, fmt.Errorf("%w: call %s has no invoker", ErrNotEvaluatable, x.Fn)
		}
		args := make([]any, len(x.Args))
		for i, a := range x.Args {
			v, err := Eval(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return x.Invoke(args...)
	case *Binary:
		return evalBinary(x)
	case *Unary:
		if x.Op != OpNot {
			return nil, fmt.Errorf("%w: unary %s", ErrNotEvaluatable, x.Op)
		}
		v, err := evalBool(x.X)
		if err != nil {
			return nil, err
		}
		return !v, nil
	case *Nary:
		for _, sub := range x.Xs {
			v, err := evalBool(sub)
			if err != nil {
				return nil, err
			}
			if x.Op == OpAnd && !v {
				return false, nil
			}
			if x.Op == OpOr && v {
				return true, nil
			}
		}
		return x.Op == OpAnd, nil
	default:
		return nil, fmt.Errorf("%w: %s node", ErrNotEvaluatable, e.Kind())
	}
}

func evalBool(e Expr) (bool, error) {
	v, err := Eval(e)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("querylanguage: expected bool, got %T", v)
	}
	return b, nil
}

func evalBinary(b *Binary) (any, error) {
	x, err := Eval(b.X)
	if err != nil {
		return nil, err
	}
	y, err := Eval(b.Y)
	if err != nil {
		return nil, err
	}
	switch b.Op {
	case OpEQ:
		return Compare(x, y) == 0, nil
	case OpNEQ:
		return Compare(x, y) != 0, nil
	case OpGT:
		return Compare(x, y) > 0, nil
	case OpGTE:
		return Compare(x, y) >= 0, nil
	case OpLT:
		return Compare(x, y) < 0, nil
	case OpLTE:
		return Compare(x, y) <= 0, nil
	case OpContains:
		xs, ys, err := stringPair(x, y)
		if err != nil {
			return nil, err
		}
		return strings.Contains(xs, ys), nil
	case OpHasPrefix:
		xs, ys, err := stringPair(x, y)
		if err != nil {
			return nil, err
		}
		return strings.HasPrefix(xs, ys), nil
	case OpHasSuffix:
		xs, ys, err := stringPair(x, y)
		if err != nil {
			return nil, err
		}
		return strings.HasSuffix(xs, ys), nil
	case OpEqualFold:
		xs, ys, err := stringPair(x, y)
		if err != nil {
			return nil, err
		}
		return strings.EqualFold(xs, ys), nil
	case OpContainsFold:
		xs, ys, err := stringPair(x, y)
		if err != nil {
			return nil, err
		}
		return strings.Contains(strings.ToLower(xs), strings.ToLower(ys)), nil
	default:
		return nil, fmt.Errorf("%w: binary %s", ErrNotEvaluatable, b.Op)
	}
}

func stringPair(x, y any) (string, string, error) {
	xs, ok := x.(string)
	if !ok {
		return "", "", fmt.Errorf("querylanguage: expected string, got %T", x)
	}
	ys, ok := y.(string)
	if !ok {
		return "", "", fmt.Errorf("querylanguage: expected string, got %T", y)
	}
	return xs, ys, nil
}

// Compare orders two runtime values: numbers numerically, strings and
// booleans by their natural order, everything else by formatted
// representation. Nil sorts first.
func Compare(x, y any) int {
	switch {
	case x == nil && y == nil:
		return 0
	case x == nil:
		return -1
	case y == nil:
		return 1
	}
	if xf, ok := toFloat(x); ok {
		if yf, ok := toFloat(y); ok {
			switch {
			case xf < yf:
				return -1
			case xf > yf:
				return 1
			default:
				return 0
			}
		}
	}
	if xs, ok := x.(string); ok {
		if ys, ok := y.(string); ok {
			return strings.Compare(xs, ys)
		}
	}
	if xb, ok := x.(bool); ok {
		if yb, ok := y.(bool); ok {
			switch {
			case xb == yb:
				return 0
			case !xb:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprint(x), fmt.Sprint(y))
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}
