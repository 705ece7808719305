package querylanguage_test

import (
	"errors"
	"strconv"
	"testing"

	"github.com/syssam/veloq/querylanguage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPString(t *testing.T) {
	tests := []struct {
		P querylanguage.P
		S string
	}{
		{
			P: querylanguage.And(
				querylanguage.FieldEQ("name", "a8m"),
				querylanguage.FieldGT("age", 30),
			),
			S: `name == "a8m" && age > 30`,
		},
		{
			P: querylanguage.Or(
				querylanguage.Not(querylanguage.FieldEQ("name", "mashraki")),
				querylanguage.FieldContains("workplace", "fb"),
			),
			S: `!(name == "mashraki") || contains(workplace, "fb")`,
		},
		{
			P: querylanguage.Not(querylanguage.FieldLT("score", 32.23)),
			S: `!(score < 32.23)`,
		},
		{
			P: querylanguage.EQ(querylanguage.F("current"), querylanguage.F("total")).Negate(),
			S: `!(current == total)`,
		},
		{
			P: querylanguage.FieldHasSuffix("name", "admin"),
			S: `has_suffix(name, "admin")`,
		},
		{
			P: querylanguage.FieldEqualFold("email", "TEST@EXAMPLE.COM"),
			S: `equal_fold(email, "TEST@EXAMPLE.COM")`,
		},
		{
			P: querylanguage.EQ(querylanguage.F("id"), querylanguage.Arg("uid")),
			S: `id == $uid`,
		},
	}
	for i := range tests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			assert.Equal(t, tests[i].S, tests[i].P.String())
		})
	}
}

func TestNaryExpressions(t *testing.T) {
	p := querylanguage.And(
		querylanguage.FieldEQ("a", 1),
		querylanguage.FieldEQ("b", 2),
		querylanguage.FieldEQ("c", 3),
	)
	assert.Equal(t, `(a == 1 && b == 2 && c == 3)`, p.String())

	p = querylanguage.Or(
		querylanguage.FieldEQ("x", 1),
		querylanguage.FieldEQ("y", 2),
	)
	assert.Equal(t, `x == 1 || y == 2`, p.String())
}

func TestChainString(t *testing.T) {
	q := querylanguage.Source("users").
		Where(querylanguage.FieldGT("age", 30)).
		OrderDesc(querylanguage.F("age")).
		Limit(querylanguage.V(10))
	assert.Equal(t, `source("users").where(age > 30).order(age, "desc").limit(10)`, q.String())
}

func TestRewriteIdentity(t *testing.T) {
	q := querylanguage.Source("users").
		Where(querylanguage.And(
			querylanguage.FieldEQ("name", "a8m"),
			querylanguage.FieldGT("age", 30),
		))
	out, err := querylanguage.Rewrite(q, func(e querylanguage.Expr) (querylanguage.Expr, error) {
		return e, nil
	})
	require.NoError(t, err)
	// An identity rewrite must not reallocate any node.
	assert.Same(t, querylanguage.Expr(q), out)
}

func TestRewriteReplace(t *testing.T) {
	q := querylanguage.Source("users").Where(querylanguage.FieldEQ("age", 30))
	out, err := querylanguage.Rewrite(q, func(e querylanguage.Expr) (querylanguage.Expr, error) {
		if v, ok := e.(*querylanguage.Value); ok {
			if n, ok := v.V.(int); ok {
				return querylanguage.V(n + 1), nil
			}
		}
		return e, nil
	})
	require.NoError(t, err)
	assert.NotSame(t, querylanguage.Expr(q), out)
	assert.Equal(t, `source("users").where(age == 31)`, out.String())
	// The original tree is unchanged.
	assert.Equal(t, `source("users").where(age == 30)`, q.String())
}

func TestRewritePropagatesError(t *testing.T) {
	errBoom := errors.New("boom")
	q := querylanguage.Source("users").Where(querylanguage.FieldEQ("age", 30))
	_, err := querylanguage.Rewrite(q, func(e querylanguage.Expr) (querylanguage.Expr, error) {
		if e.Kind() == querylanguage.KindValue {
			return nil, errBoom
		}
		return e, nil
	})
	assert.ErrorIs(t, err, errBoom)
}

func TestWalk(t *testing.T) {
	q := querylanguage.Source("users").
		Where(querylanguage.FieldEQ("name", "a8m")).
		Limit(querylanguage.V(1))
	var kinds []querylanguage.Kind
	querylanguage.Walk(q, func(e querylanguage.Expr) bool {
		kinds = append(kinds, e.Kind())
		return true
	})
	assert.Contains(t, kinds, querylanguage.KindCall)
	assert.Contains(t, kinds, querylanguage.KindBinary)
	assert.Contains(t, kinds, querylanguage.KindField)
	assert.Contains(t, kinds, querylanguage.KindValue)
}

func TestEval(t *testing.T) {
	tests := []struct {
		name string
		e    querylanguage.Expr
		want any
	}{
		{"constant", querylanguage.V(42), 42},
		{"eq", querylanguage.EQ(querylanguage.V(1), querylanguage.V(1)), true},
		{"neq", querylanguage.NEQ(querylanguage.V(1), querylanguage.V(2)), true},
		{"gt mixed numeric", querylanguage.GT(querylanguage.V(int64(3)), querylanguage.V(2.5)), true},
		{"not", querylanguage.Not(querylanguage.EQ(querylanguage.V("a"), querylanguage.V("b"))), true},
		{
			"and short-circuit",
			querylanguage.And(
				querylanguage.EQ(querylanguage.V(1), querylanguage.V(2)),
				querylanguage.EQ(querylanguage.V(1), querylanguage.V(1)),
			),
			false,
		},
		{
			"contains",
			&querylanguage.Binary{Op: querylanguage.OpContains, X: querylanguage.V("gopher"), Y: querylanguage.V("phe")},
			true,
		},
		{
			"call with invoker",
			&querylanguage.Call{
				Fn:   "add",
				Args: []querylanguage.Expr{querylanguage.V(1), querylanguage.V(2)},
				Invoke: func(args ...any) (any, error) {
					return args[0].(int) + args[1].(int), nil
				},
			},
			3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := querylanguage.Eval(tt.e)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalNotEvaluatable(t *testing.T) {
	for _, e := range []querylanguage.Expr{
		querylanguage.F("name"),
		querylanguage.Arg("v0"),
		querylanguage.Source("users"),
	} {
		_, err := querylanguage.Eval(e)
		assert.ErrorIs(t, err, querylanguage.ErrNotEvaluatable)
	}
}

func TestEvalFailurePropagates(t *testing.T) {
	errAccessor := errors.New("accessor faulted")
	m := &querylanguage.Member{
		Name: "captured",
		Access: func(any) (any, error) {
			return nil, errAccessor
		},
	}
	_, err := querylanguage.Eval(querylanguage.EQ(m, querylanguage.V(1)))
	assert.ErrorIs(t, err, errAccessor)
}

func TestFuncWithArgs(t *testing.T) {
	desc := &querylanguage.FuncDescriptor{Name: "soundex", Schema: "dbo", NArgs: 1}
	f := &querylanguage.Func{Desc: desc, Args: []querylanguage.Expr{querylanguage.F("name")}}

	// Unchanged arguments must return the identical instance.
	same := f.WithArgs([]querylanguage.Expr{f.Args[0]})
	assert.Same(t, f, same)

	// Changed arguments produce a new node preserving descriptor and type.
	repl := f.WithArgs([]querylanguage.Expr{querylanguage.Arg("v0")})
	require.NotSame(t, f, repl)
	assert.Same(t, desc, repl.Desc)
	assert.Equal(t, `dbo.soundex($v0)`, repl.String())
}
