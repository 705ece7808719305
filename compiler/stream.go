package compiler

import (
	"context"

	"github.com/syssam/veloq"
)

// Stream is a typed view over a lazy query execution. It pulls one
// element per Next call straight from the backend cursor; nothing is
// buffered, so the producer advances only as fast as the consumer.
//
//	s := compiler.ExecuteStream[User](c, expr)
//	defer s.Close()
//	for s.Next(ctx) {
//	    use(s.Value())
//	}
//	if err := s.Err(); err != nil { ... }
type Stream[T any] struct {
	c    *Compiler
	cd   *compiled
	qc   *veloq.QueryContext
	cur  veloq.Cursor
	v    T
	err  error
	done bool
}

// Next advances the stream, honoring ctx at every step. The cursor is
// opened on the first call so the caller's context governs the entire
// execution. It returns false on exhaustion or error; consult Err
// afterwards.
func (s *Stream[T]) Next(ctx context.Context) bool {
	if s.done || s.err != nil {
		return false
	}
	if s.cur == nil {
		cur, err := s.cd.stream(ctx, s.qc)
		if err != nil {
			s.c.fail(ctx, err, s.cd.source, "stream")
			s.err = err
			s.done = true
			return false
		}
		s.cur = cur
	}
	ok, err := s.cur.Next(ctx)
	if err != nil {
		s.c.fail(ctx, err, s.cd.source, "stream")
		s.err = err
		s.done = true
		return false
	}
	if !ok {
		s.done = true
		return false
	}
	v, err := as[T](s.cur.Value())
	if err != nil {
		s.err = err
		s.done = true
		return false
	}
	s.v = v
	return true
}

// Value returns the element produced by the last successful Next.
func (s *Stream[T]) Value() T { return s.v }

// Err returns the error that terminated the stream, if any.
// Cancellation surfaces here as the context's own error.
func (s *Stream[T]) Err() error { return s.err }

// Close releases the underlying cursor. It is safe to call at any
// point and more than once.
func (s *Stream[T]) Close() error {
	if s.cur == nil {
		return nil
	}
	cur := s.cur
	s.cur = nil
	s.done = true
	return cur.Close()
}
