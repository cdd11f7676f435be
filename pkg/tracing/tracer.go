package tracing

import (
	"github.com/warpdrive/fstrace/pkg/clock"
	"github.com/warpdrive/fstrace/pkg/iotrace"
)

// Option configures a wrapper.
type Option func(*tracer)

// WithClock sets the time source. Defaults to clock.System().
func WithClock(c clock.Clock) Option {
	return func(t *tracer) {
		if c != nil {
			t.clock = c
		}
	}
}

// tracer is the state every wrapper shares: where records go and how
// time is read. Both are shared references, never mutated after
// construction.
type tracer struct {
	sink  iotrace.Sink
	clock clock.Clock
}

func newTracer(sink iotrace.Sink, opts []Option) tracer {
	if sink == nil {
		sink = iotrace.Nop
	}
	t := tracer{sink: sink, clock: clock.System()}
	for _, o := range opts {
		o(&t)
	}
	return t
}

func (t *tracer) now() uint64 {
	return t.clock.NowMicros()
}

// emit stamps rec with its completion time and latency and hands it to the
// sink. Delivery failures are dropped.
func (t *tracer) emit(start, end uint64, rec iotrace.Record) {
	rec.Timestamp = end
	rec.Latency = latency(start, end)
	_ = t.sink.WriteIOOp(rec)
}

func latency(start, end uint64) uint64 {
	if end < start {
		return 0
	}
	return end - start
}
