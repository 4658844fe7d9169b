package effect

import "time"

// IOContext is the moment a delta is executed under. The client stamps
// a provisional context on optimistic apply; the server stamps the
// authoritative one for the same delta. Milliseconds keep the value
// exact across the wire.
type IOContext struct {
	UnixMilli int64
}

func (c IOContext) Time() time.Time {
	return time.UnixMilli(c.UnixMilli)
}

// Clock supplies execution contexts.
type Clock interface {
	Now() IOContext
}

// SystemClock stamps wall-clock time.
type SystemClock struct{}

func (SystemClock) Now() IOContext {
	return IOContext{UnixMilli: time.Now().UnixMilli()}
}

// LogicalClock stamps a monotonic counter. Handy in tests and for
// replicas with untrusted wall clocks.
type LogicalClock struct {
	last int64
}

func (lc *LogicalClock) Now() IOContext {
	lc.last++
	return IOContext{UnixMilli: lc.last}
}
