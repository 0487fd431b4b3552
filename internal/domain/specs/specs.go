package specs

import (
	"context"
)

// Specification is a composable predicate over T. Composition via And/Or/Not
// short-circuits and treats a cancelled ctx as unsatisfied.
type Specification[T any] interface {
	IsSatisfiedBy(ctx context.Context, v T) bool
	And(other Specification[T]) Specification[T]
	Or(other Specification[T]) Specification[T]
	Not() Specification[T]
}

type specFunc[T any] func(ctx context.Context, v T) bool

func (f specFunc[T]) IsSatisfiedBy(ctx context.Context, v T) bool {
	if ctx.Err() != nil {
		return false
	}
	return f(ctx, v)
}

func (f specFunc[T]) And(other Specification[T]) Specification[T] {
	return specFunc[T](func(ctx context.Context, v T) bool {
		return f.IsSatisfiedBy(ctx, v) && other.IsSatisfiedBy(ctx, v)
	})
}

func (f specFunc[T]) Or(other Specification[T]) Specification[T] {
	return specFunc[T](func(ctx context.Context, v T) bool {
		return f.IsSatisfiedBy(ctx, v) || other.IsSatisfiedBy(ctx, v)
	})
}

func (f specFunc[T]) Not() Specification[T] {
	return specFunc[T](func(ctx context.Context, v T) bool {
		if ctx.Err() != nil {
			return false
		}
		return !f(ctx, v)
	})
}

// New constructs a Specification from a predicate.
func New[T any](fn func(ctx context.Context, v T) bool) Specification[T] { return specFunc[T](fn) }

// All is satisfied when every spec is. An empty list is always satisfied.
func All[T any](ss ...Specification[T]) Specification[T] {
	return New(func(ctx context.Context, v T) bool {
		for _, s := range ss {
			if !s.IsSatisfiedBy(ctx, v) {
				return false
			}
		}
		return true
	})
}

// Any is satisfied when at least one spec is. An empty list is never satisfied.
func Any[T any](ss ...Specification[T]) Specification[T] {
	return New(func(ctx context.Context, v T) bool {
		for _, s := range ss {
			if s.IsSatisfiedBy(ctx, v) {
				return true
			}
		}
		return false
	})
}

// None is satisfied when no spec is.
func None[T any](ss ...Specification[T]) Specification[T] {
	return Any(ss...).Not()
}

// Evaluate evaluates a spec with the provided context.
func Evaluate[T any](ctx context.Context, s Specification[T], v T) bool {
	return s.IsSatisfiedBy(ctx, v)
}
