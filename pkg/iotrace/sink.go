package iotrace

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Sink accepts trace records. Implementations must be safe for concurrent
// use. Callers treat delivery as best-effort and ignore the returned error.
type Sink interface {
	WriteIOOp(rec Record) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(rec Record) error

func (f SinkFunc) WriteIOOp(rec Record) error { return f(rec) }

// Nop discards every record.
var Nop Sink = SinkFunc(func(Record) error { return nil })

type multiSink []Sink

// Multi fans each record out to every sink in order. A failing sink does
// not stop delivery to the rest; their errors are joined.
func Multi(sinks ...Sink) Sink {
	flat := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if m, ok := s.(multiSink); ok {
			flat = append(flat, m...)
			continue
		}
		flat = append(flat, s)
	}
	return flat
}

func (m multiSink) WriteIOOp(rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteIOOp(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Tracer is a Sink that can be switched on and off at runtime. While
// stopped, records are dropped without reaching any sink.
type Tracer struct {
	sink atomic.Pointer[sinkHolder]
}

type sinkHolder struct{ Sink }

// NewTracer returns a stopped tracer.
func NewTracer() *Tracer {
	return &Tracer{}
}

// Start begins delivering records to s, replacing any previous sink.
func (t *Tracer) Start(s Sink) {
	t.sink.Store(&sinkHolder{s})
}

// Stop ends delivery. Records written afterwards are dropped.
func (t *Tracer) Stop() {
	t.sink.Store(nil)
}

// Enabled reports whether the tracer is currently delivering records.
func (t *Tracer) Enabled() bool {
	return t.sink.Load() != nil
}

func (t *Tracer) WriteIOOp(rec Record) error {
	h := t.sink.Load()
	if h == nil {
		return nil
	}
	return h.WriteIOOp(rec)
}

// Recorder keeps every record in memory, in arrival order.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) WriteIOOp(rec Record) error {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	return nil
}

// Records returns a copy of all recorded records.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the number of recorded records.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Reset drops all recorded records.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.records = nil
	r.mu.Unlock()
}
