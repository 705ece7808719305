package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/plan"
	"github.com/syssam/veloq/querylanguage"
)

// Compiler orchestrates the query pipeline: a fresh context per
// execution, parameter extraction, cache lookup by shape, and on a miss
// the transform pass, parsing, and backend compilation. A Compiler is
// safe for concurrent use.
type Compiler struct {
	model        veloq.Model
	backend      veloq.Backend
	filter       *Filter
	extractor    *Extractor
	transforms   *Transforms
	parser       *plan.Parser
	cache        *Cache
	log          *slog.Logger
	slow         time.Duration
	parameterize bool
	newContext   veloq.ContextFactory
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger for failure and slow-query events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) { c.log = l }
}

// WithSlowThreshold sets the duration above which a completed execution
// is reported as slow. Zero disables the report.
func WithSlowThreshold(d time.Duration) Option {
	return func(c *Compiler) { c.slow = d }
}

// WithCache shares a delegate cache between compilers.
func WithCache(cache *Cache) Option {
	return func(c *Compiler) { c.cache = cache }
}

// WithTransformer appends a transformer for the given node kind. It
// runs after the built-in function resolution.
func WithTransformer(k querylanguage.Kind, t Transformer) Option {
	return func(c *Compiler) { c.transforms.Register(k, t) }
}

// WithoutParameterization embeds evaluated subtrees as literals instead
// of extracting them as parameters. Queries then cache per literal
// combination rather than per shape.
func WithoutParameterization() Option {
	return func(c *Compiler) { c.parameterize = false }
}

// WithContextFactory overrides how per-execution query contexts are
// created.
func WithContextFactory(f veloq.ContextFactory) Option {
	return func(c *Compiler) { c.newContext = f }
}

// WithConfig applies logger and slow-query settings from a loaded
// configuration.
func WithConfig(cfg *veloq.Config) Option {
	return func(c *Compiler) {
		c.log = cfg.NewLogger()
		c.slow = cfg.SlowQueryThreshold
	}
}

// New creates a compiler for the given model and backend. The model's
// function descriptors are resolved once here; invalid registrations
// surface as configuration errors.
func New(model veloq.Model, backend veloq.Backend, opts ...Option) (*Compiler, error) {
	funcs := model.Funcs()
	resolver, err := newFuncResolver(funcs)
	if err != nil {
		return nil, err
	}
	c := &Compiler{
		model:        model,
		backend:      backend,
		filter:       NewFilter(funcs),
		transforms:   NewTransforms(),
		cache:        NewCache(),
		log:          slog.Default(),
		parameterize: true,
		newContext:   veloq.NewQueryContext,
	}
	c.transforms.Register(querylanguage.KindCall, resolver)
	c.transforms.Register(querylanguage.KindMember, resolver)
	for _, opt := range opts {
		opt(c)
	}
	c.extractor = NewExtractor(c.filter)
	c.parser = plan.NewParser(c.transforms.Rewriter())
	return c, nil
}

// Cache returns the compiler's delegate cache.
func (c *Compiler) Cache() *Cache { return c.cache }

// compiled is a cache entry: the delegate in one execution form plus
// the query facts the orchestrator needs at invocation time.
type compiled struct {
	source string
	elem   reflect.Type
	query  veloq.Query
	stream veloq.StreamQuery
}

func (c *Compiler) compile(e querylanguage.Expr, async, parameterize bool) (*compiled, *veloq.QueryContext, error) {
	qc := c.newContext()
	shaped, err := c.extractor.Extract(e, qc, parameterize)
	if err != nil {
		return nil, nil, err
	}
	key := QueryKey{
		Shape:   querylanguage.Hash(shaped),
		Context: c.model.Context(),
		Async:   async,
	}
	v, err := c.cache.GetOrAdd(key, func() (any, error) {
		q, err := c.parser.Parse(shaped)
		if err != nil {
			return nil, err
		}
		cd := &compiled{source: q.Source, elem: q.Elem}
		if async {
			cd.stream, err = c.backend.CompileStream(q)
		} else {
			cd.query, err = c.backend.CompileQuery(q)
		}
		if err != nil {
			return nil, err
		}
		return cd, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return v.(*compiled), qc, nil
}

// fail emits the single structured failure event for a database error.
// Cancellation is the caller's signal, not a database failure, and is
// never logged here.
func (c *Compiler) fail(ctx context.Context, err error, source, op string) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	c.log.LogAttrs(ctx, slog.LevelError, "database_error",
		slog.String("context", c.model.Context()),
		slog.String("source", source),
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}

func (c *Compiler) observe(ctx context.Context, source, op string, start time.Time) {
	if c.slow <= 0 {
		return
	}
	if d := time.Since(start); d > c.slow {
		c.log.LogAttrs(ctx, slog.LevelWarn, "slow_query",
			slog.String("context", c.model.Context()),
			slog.String("source", source),
			slog.String("op", op),
			slog.Duration("duration", d),
		)
	}
}

// Execute compiles and runs e synchronously, returning its single
// result. The whole result set is materialized before the first value
// is seen; there is no suspension point. An empty result reports the
// missing source.
func Execute[T any](c *Compiler, e querylanguage.Expr) (T, error) {
	var zero T
	cd, qc, err := c.compile(e, false, c.parameterize)
	if err != nil {
		return zero, err
	}
	rows, err := c.runQuery(context.Background(), cd, qc)
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, veloq.NewNotFoundError(cd.source)
	}
	return as[T](rows[0])
}

// ExecuteContext compiles and runs e lazily, returning its single
// result and honoring ctx up to the first row. The underlying cursor is
// released on every path.
func ExecuteContext[T any](c *Compiler, ctx context.Context, e querylanguage.Expr) (T, error) {
	var zero T
	cd, qc, err := c.compile(e, true, c.parameterize)
	if err != nil {
		return zero, err
	}
	start := time.Now()
	cur, err := cd.stream(ctx, qc)
	if err != nil {
		c.fail(ctx, err, cd.source, "stream")
		return zero, err
	}
	defer cur.Close()
	ok, err := cur.Next(ctx)
	if err != nil {
		c.fail(ctx, err, cd.source, "stream")
		return zero, err
	}
	c.observe(ctx, cd.source, "stream", start)
	if !ok {
		return zero, veloq.NewNotFoundError(cd.source)
	}
	return as[T](cur.Value())
}

// ExecuteStream compiles e into its lazy form and returns a typed
// stream over the results. Compilation errors are deferred to the
// stream so callers have a single consumption path.
func ExecuteStream[T any](c *Compiler, e querylanguage.Expr) *Stream[T] {
	cd, qc, err := c.compile(e, true, c.parameterize)
	if err != nil {
		return &Stream[T]{err: err}
	}
	return &Stream[T]{c: c, cd: cd, qc: qc}
}

// Precompile compiles e once with literal embedding and returns a
// reusable delegate over it. Parameters authored explicitly in e are
// resolved from the context passed at call time.
func Precompile[T any](c *Compiler, e querylanguage.Expr) (func(context.Context, *veloq.QueryContext) (T, error), error) {
	cd, _, err := c.compile(e, false, false)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, qc *veloq.QueryContext) (T, error) {
		var zero T
		if qc == nil {
			qc = c.newContext()
		}
		rows, err := c.runQuery(ctx, cd, qc)
		if err != nil {
			return zero, err
		}
		if len(rows) == 0 {
			return zero, veloq.NewNotFoundError(cd.source)
		}
		return as[T](rows[0])
	}, nil
}

func (c *Compiler) runQuery(ctx context.Context, cd *compiled, qc *veloq.QueryContext) ([]any, error) {
	start := time.Now()
	rows, err := cd.query(ctx, qc)
	if err != nil {
		c.fail(ctx, err, cd.source, "query")
		return nil, err
	}
	c.observe(ctx, cd.source, "query", start)
	return rows, nil
}

// as converts a backend result to the caller's declared type: identity
// when the dynamic type matches, reflective conversion otherwise.
func as[T any](v any) (T, error) {
	if t, ok := v.(T); ok {
		return t, nil
	}
	var zero T
	rt := reflect.TypeOf(&zero).Elem()
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		// Untyped nil converts to any nilable result type.
		if canBeNil(rt) {
			return zero, nil
		}
		return zero, fmt.Errorf("compiler: cannot convert nil result to %s", rt)
	}
	if rv.Type().ConvertibleTo(rt) {
		return rv.Convert(rt).Interface().(T), nil
	}
	return zero, fmt.Errorf("compiler: cannot convert result of type %T to %s", v, rt)
}

func canBeNil(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return true
	default:
		return false
	}
}
