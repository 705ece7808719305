package veloq

import (
	"context"

	"github.com/syssam/veloq/plan"
	"github.com/syssam/veloq/querylanguage"
)

// Model exposes the metadata the compiler needs from the owning entity
// context: its identity and the registered domain function descriptors.
// Model construction and conventions are external to this module.
type Model interface {
	// Context returns the identity of the owning entity context. It is
	// part of every compilation cache key and of structured failure
	// events.
	Context() string

	// Funcs returns the registered domain function descriptors. The
	// compiler resolves them once at construction; the returned slice
	// must not change afterwards.
	Funcs() []*querylanguage.FuncDescriptor
}

// StaticModel is a Model described by plain values.
type StaticModel struct {
	Name      string
	Functions []*querylanguage.FuncDescriptor
}

// Context implements Model.
func (m *StaticModel) Context() string { return m.Name }

// Funcs implements Model.
func (m *StaticModel) Funcs() []*querylanguage.FuncDescriptor { return m.Functions }

// QueryContext is the per-execution record of extracted parameter
// values. A fresh context is created for every call and is never shared
// across concurrent executions.
type QueryContext struct {
	params map[string]any
}

// NewQueryContext returns a fresh, empty query context.
func NewQueryContext() *QueryContext {
	return &QueryContext{params: make(map[string]any)}
}

// SetParam binds a parameter value under the given name.
func (qc *QueryContext) SetParam(name string, v any) {
	qc.params[name] = v
}

// Param returns the value bound under the given name.
func (qc *QueryContext) Param(name string) (any, bool) {
	v, ok := qc.params[name]
	return v, ok
}

// ParamCount returns the number of bound parameters.
func (qc *QueryContext) ParamCount() int { return len(qc.params) }

// ContextFactory produces a fresh query context per execution.
type ContextFactory func() *QueryContext

// Query is a compiled synchronous query delegate. It materializes the
// full result set in one step; there is no suspension point and no
// cancellation once it starts running.
type Query func(ctx context.Context, qc *QueryContext) ([]any, error)

// StreamQuery is a compiled lazy query delegate. The returned cursor
// honors ctx at every advance.
type StreamQuery func(ctx context.Context, qc *QueryContext) (Cursor, error)

// Cursor iterates the results of a compiled stream query.
type Cursor interface {
	// Next advances to the next result, honoring ctx cancellation. It
	// returns false when the sequence is exhausted or an error occurred.
	Next(ctx context.Context) (bool, error)

	// Value returns the current result.
	Value() any

	// Close releases the cursor. It must be called on all exit paths.
	Close() error
}

// Backend compiles abstract query models into executable delegates and
// runs them against storage. Implementations must be safe for
// concurrent use; compiled delegates are cached process-wide and
// invoked from many goroutines.
type Backend interface {
	// CompileQuery compiles q into a synchronous delegate.
	CompileQuery(q *plan.Query) (Query, error)

	// CompileStream compiles q into a lazy, cursor-producing delegate.
	CompileStream(q *plan.Query) (StreamQuery, error)
}
