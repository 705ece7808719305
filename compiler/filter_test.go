package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/veloq/compiler"
	ql "github.com/syssam/veloq/querylanguage"
)

func TestFilterEvaluatable(t *testing.T) {
	t.Parallel()
	f := compiler.NewFilter([]*ql.FuncDescriptor{{Name: "soundex", NArgs: 1}})
	tests := []struct {
		name  string
		input ql.Expr
		want  bool
	}{
		{name: "literal", input: ql.V(1), want: true},
		{name: "binary", input: ql.EQ(ql.V(1), ql.V(1)), want: true},
		{name: "parameter", input: ql.Arg("v0"), want: false},
		{name: "field", input: ql.F("age"), want: false},
		{name: "clock", input: ql.Now(), want: false},
		{
			name: "plain member",
			input: &ql.Member{Name: "Len", Access: func(any) (any, error) {
				return 3, nil
			}},
			want: true,
		},
		{name: "uuid generator", input: ql.NewUUID(), want: false},
		{name: "rand generator", input: ql.Rand(), want: false},
		{name: "chain stage", input: ql.Source("users"), want: false},
		{
			// Excluded even with a client-side implementation at hand.
			name: "domain function",
			input: &ql.Call{Fn: "soundex", Args: []ql.Expr{ql.V("x")}, Invoke: func(...any) (any, error) {
				return "X000", nil
			}},
			want: false,
		},
		{
			name: "invocable call",
			input: &ql.Call{Fn: "strings.ToLower", Invoke: func(...any) (any, error) {
				return "x", nil
			}},
			want: true,
		},
		{name: "call without invoker", input: &ql.Call{Fn: "mystery"}, want: false},
		{name: "resolved function node", input: &ql.Func{Desc: &ql.FuncDescriptor{Name: "soundex"}}, want: false},
		{name: "lambda", input: &ql.Lambda{Body: ql.V(true)}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, f.Evaluatable(tt.input))
		})
	}
}
