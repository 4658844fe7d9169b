package effect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trepidacious/treesync/ids"
)

// gather requests two guids and the context and records everything
type trace struct {
	guids []ids.Guid
	io    IOContext
	value int
}

func gather(base int) Effect[trace] {
	return NewGuid(func(a ids.Guid) Effect[trace] {
		return Context(func(io IOContext) Effect[trace] {
			return NewGuid(func(b ids.Guid) Effect[trace] {
				return Ret(trace{
					guids: []ids.Guid{a, b},
					io:    io,
					value: base + int(io.UnixMilli),
				})
			})
		})
	})
}

func TestInterpretAllocationOrder(t *testing.T) {
	did := ids.MakeDeltaId(0xc, 7)
	out := Interpret(gather(100), IOContext{UnixMilli: 11}, did)
	assert.Equal(t, []ids.Guid{did.Fresh(0), did.Fresh(1)}, out.guids)
	assert.Equal(t, IOContext{UnixMilli: 11}, out.io)
	assert.Equal(t, 111, out.value)
}

func TestInterpretIsDeterministic(t *testing.T) {
	did := ids.MakeDeltaId(3, 42)
	ctx := IOContext{UnixMilli: 999}
	first := Interpret(gather(1), ctx, did)
	second := Interpret(gather(1), ctx, did)
	assert.Equal(t, first, second)
}

func TestInterpretPure(t *testing.T) {
	got := Interpret(Ret(5), IOContext{}, ids.MakeDeltaId(0, 0))
	assert.Equal(t, 5, got)
}

func TestGuidsDifferAcrossDeltas(t *testing.T) {
	ctx := IOContext{UnixMilli: 1}
	a := Interpret(gather(0), ctx, ids.MakeDeltaId(1, 0))
	b := Interpret(gather(0), ctx, ids.MakeDeltaId(1, 1))
	c := Interpret(gather(0), ctx, ids.MakeDeltaId(2, 0))
	assert.NotEqual(t, a.guids, b.guids)
	assert.NotEqual(t, a.guids, c.guids)
	assert.NotEqual(t, b.guids, c.guids)
}

func TestMapPreservesRequests(t *testing.T) {
	did := ids.MakeDeltaId(0xa, 0)
	mapped := Map(gather(0), func(tr trace) trace {
		tr.value *= 10
		return tr
	})
	out := Interpret(mapped, IOContext{UnixMilli: 3}, did)
	// same allocations as the unmapped effect, rewritten result
	assert.Equal(t, []ids.Guid{did.Fresh(0), did.Fresh(1)}, out.guids)
	assert.Equal(t, 30, out.value)
}
