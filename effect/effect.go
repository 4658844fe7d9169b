/*
Package effect represents a delta's computation as inert data.

A delta may need two things from its environment: fresh guids for the
sub-entities it creates, and the moment it is executed under. Both are
expressed as effect values that do no work until interpreted. That is
what lets the same delta run once optimistically on the client and once
authoritatively on the server and still be the same computation - only
the answers the interpreter supplies differ.
*/
package effect

import "github.com/trepidacious/treesync/ids"

// Effect is a sealed computation over a model of type R. It is either
// a Pure result, or one of the two primitive requests followed by the
// rest of the computation. The marker method carries R so the model
// type is inferable from any Effect value.
type Effect[R any] interface {
	isEffect(R)
}

// Pure terminates a computation with a plain value.
type Pure[R any] struct {
	Value R
}

// FreshId requests a new guid and continues with it.
type FreshId[R any] struct {
	Then func(ids.Guid) Effect[R]
}

// WithContext requests the IOContext the computation runs under and
// continues with it.
type WithContext[R any] struct {
	Then func(IOContext) Effect[R]
}

func (Pure[R]) isEffect(R)        {}
func (FreshId[R]) isEffect(R)     {}
func (WithContext[R]) isEffect(R) {}

// Ret lifts a plain value into an effect.
func Ret[R any](v R) Effect[R] {
	return Pure[R]{Value: v}
}

// NewGuid sequences a fresh-id request before the rest of the
// computation.
func NewGuid[R any](then func(ids.Guid) Effect[R]) Effect[R] {
	return FreshId[R]{Then: then}
}

// Context sequences a context request before the rest of the
// computation.
func Context[R any](then func(IOContext) Effect[R]) Effect[R] {
	return WithContext[R]{Then: then}
}

// Map rewrites every terminating value of an effect, preserving the
// request structure. Used to embed a sub-entity's effect into its
// parent.
func Map[R any](e Effect[R], f func(R) R) Effect[R] {
	switch v := e.(type) {
	case Pure[R]:
		return Ret(f(v.Value))
	case FreshId[R]:
		return NewGuid(func(g ids.Guid) Effect[R] {
			return Map(v.Then(g), f)
		})
	case WithContext[R]:
		return Context(func(ctx IOContext) Effect[R] {
			return Map(v.Then(ctx), f)
		})
	default:
		panic("treesync: effect variant outside the sealed set")
	}
}

// Interpret executes an effect left to right. The context request is
// answered with ctx unchanged; the n-th fresh-id request (n = 0, 1, ...)
// is answered with deltaId.Fresh(n). Interpretation is a pure function
// of (effect, ctx, deltaId): same inputs always produce the same result
// and the same allocation sequence, which is what makes offline guid
// allocation collision-free.
func Interpret[R any](e Effect[R], ctx IOContext, deltaId ids.DeltaId) R {
	var within ids.WithinDeltaId
	for {
		switch v := e.(type) {
		case Pure[R]:
			return v.Value
		case FreshId[R]:
			e = v.Then(deltaId.Fresh(within))
			within++
		case WithContext[R]:
			e = v.Then(ctx)
		default:
			panic("treesync: effect variant outside the sealed set")
		}
	}
}
