package compiler_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/compiler"
	ql "github.com/syssam/veloq/querylanguage"
)

func extractor(funcs ...*ql.FuncDescriptor) *compiler.Extractor {
	return compiler.NewExtractor(compiler.NewFilter(funcs))
}

func TestExtractLiteral(t *testing.T) {
	t.Parallel()
	qc := veloq.NewQueryContext()
	e := ql.Source("users").Where(ql.FieldGT("age", 30))
	out, err := extractor().Extract(e, qc, true)
	require.NoError(t, err)
	assert.Equal(t, `source("users").where(age > $v0)`, out.String())
	v, ok := qc.Param("v0")
	require.True(t, ok)
	assert.Equal(t, 30, v)
}

func TestExtractMaximalSubtree(t *testing.T) {
	t.Parallel()
	qc := veloq.NewQueryContext()
	lower := &ql.Call{
		Fn:   "strings.ToLower",
		Args: []ql.Expr{ql.V("A8M")},
		Invoke: func(args ...any) (any, error) {
			return strings.ToLower(args[0].(string)), nil
		},
	}
	e := ql.Source("users").Where(ql.EQ(ql.F("name"), lower))
	out, err := extractor().Extract(e, qc, true)
	require.NoError(t, err)
	// The whole call collapses into one parameter: the replacement
	// happens at the maximal evaluatable point, not per literal.
	assert.Equal(t, `source("users").where(name == $v0)`, out.String())
	assert.Equal(t, 1, qc.ParamCount())
	v, _ := qc.Param("v0")
	assert.Equal(t, "a8m", v)
}

func TestExtractStableNames(t *testing.T) {
	t.Parallel()
	shape := func(age, limit int) string {
		qc := veloq.NewQueryContext()
		e := ql.Source("users").Where(ql.FieldGT("age", age)).Limit(ql.V(limit))
		out, err := extractor().Extract(e, qc, true)
		require.NoError(t, err)
		return string(ql.Hash(out))
	}
	// Same shape, different literals: identical fingerprints.
	assert.Equal(t, shape(30, 10), shape(55, 1))
}

func TestExtractTraversalOrder(t *testing.T) {
	t.Parallel()
	qc := veloq.NewQueryContext()
	e := ql.Source("users").
		Where(ql.FieldGT("age", 21)).
		Where(ql.FieldEQ("city", "TLV")).
		Limit(ql.V(5))
	out, err := extractor().Extract(e, qc, true)
	require.NoError(t, err)
	assert.Equal(t, 3, qc.ParamCount())
	// The walk descends to the source before binding, so parameters are
	// numbered from the innermost stage out.
	v0, _ := qc.Param("v0")
	v1, _ := qc.Param("v1")
	v2, _ := qc.Param("v2")
	assert.Equal(t, 21, v0)
	assert.Equal(t, "TLV", v1)
	assert.Equal(t, 5, v2)
	assert.Contains(t, out.String(), "limit($v2)")
}

func TestExtractSourceNameKept(t *testing.T) {
	t.Parallel()
	qc := veloq.NewQueryContext()
	out, err := extractor().Extract(ql.Source("users"), qc, true)
	require.NoError(t, err)
	assert.Equal(t, `source("users")`, out.String())
	assert.Zero(t, qc.ParamCount())
	// Distinct sources keep distinct shapes.
	other, err := extractor().Extract(ql.Source("pets"), veloq.NewQueryContext(), true)
	require.NoError(t, err)
	assert.NotEqual(t, ql.Hash(out), ql.Hash(other))
}

func TestExtractOrderDirectionKept(t *testing.T) {
	t.Parallel()
	qc := veloq.NewQueryContext()
	e := ql.Source("users").OrderDesc(ql.F("age"))
	out, err := extractor().Extract(e, qc, true)
	require.NoError(t, err)
	assert.Zero(t, qc.ParamCount())
	assert.Contains(t, out.String(), `"desc"`)
}

func TestExtractVolatileStaySymbolic(t *testing.T) {
	t.Parallel()
	for _, tt := range []struct {
		name string
		e    ql.Expr
	}{
		{name: "clock", e: ql.Now()},
		{name: "uuid", e: ql.NewUUID()},
		{name: "rand", e: ql.Rand()},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			qc := veloq.NewQueryContext()
			e := ql.Source("users").Where(ql.EQ(ql.F("stamp"), tt.e))
			out, err := extractor().Extract(e, qc, true)
			require.NoError(t, err)
			assert.Zero(t, qc.ParamCount())
			assert.NotContains(t, out.String(), "$v0")
		})
	}
}

func TestExtractDomainFuncArgsBound(t *testing.T) {
	t.Parallel()
	qc := veloq.NewQueryContext()
	soundex := &ql.Call{Fn: "soundex", Args: []ql.Expr{ql.V("smith")}}
	e := ql.Source("users").Where(ql.EQ(ql.F("phonetic"), soundex))
	out, err := extractor(&ql.FuncDescriptor{Name: "soundex", NArgs: 1}).Extract(e, qc, true)
	require.NoError(t, err)
	// The call stays, its literal argument becomes a parameter.
	assert.Contains(t, out.String(), "soundex($v0)")
	v, _ := qc.Param("v0")
	assert.Equal(t, "smith", v)
}

func TestExtractWithoutParameterization(t *testing.T) {
	t.Parallel()
	qc := veloq.NewQueryContext()
	lower := &ql.Call{
		Fn:   "strings.ToLower",
		Args: []ql.Expr{ql.V("A8M")},
		Invoke: func(args ...any) (any, error) {
			return strings.ToLower(args[0].(string)), nil
		},
	}
	e := ql.Source("users").Where(ql.EQ(ql.F("name"), lower))
	out, err := extractor().Extract(e, qc, false)
	require.NoError(t, err)
	assert.Equal(t, `source("users").where(name == "a8m")`, out.String())
	assert.Zero(t, qc.ParamCount())
}

func TestExtractInListInlined(t *testing.T) {
	t.Parallel()
	qc := veloq.NewQueryContext()
	e := ql.Source("users").Where(ql.FieldIn("name", "a8m", "nati"))
	out, err := extractor().Extract(e, qc, true)
	require.NoError(t, err)
	// The list is part of the shape; no parameter is extracted for it.
	assert.Zero(t, qc.ParamCount())
	other, err := extractor().Extract(ql.Source("users").Where(ql.FieldIn("name", "alex")), veloq.NewQueryContext(), true)
	require.NoError(t, err)
	assert.NotEqual(t, ql.Hash(out), ql.Hash(other))
}

func TestExtractEvalErrorPropagates(t *testing.T) {
	t.Parallel()
	boom := &ql.Call{
		Fn:   "explode",
		Args: nil,
		Invoke: func(...any) (any, error) {
			return nil, assert.AnError
		},
	}
	e := ql.Source("users").Where(ql.EQ(ql.F("x"), boom))
	_, err := extractor().Extract(e, veloq.NewQueryContext(), true)
	assert.ErrorIs(t, err, assert.AnError)
}
