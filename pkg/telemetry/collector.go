package telemetry

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warpdrive/fstrace/pkg/config"
	"github.com/warpdrive/fstrace/pkg/iotrace"
	"github.com/warpdrive/fstrace/pkg/metrics"
)

// ErrClosed is returned by WriteIOOp after Close.
var ErrClosed = errors.New("telemetry: collector closed")

// Collector batches trace records and hands them to an Emitter from a
// background goroutine. It implements iotrace.Sink; WriteIOOp never
// blocks on the emitter.
type Collector struct {
	cfg     config.TelemetryConfig
	emitter Emitter

	batch []iotrace.Record
	mu    sync.Mutex
	// emitMu keeps batches reaching the emitter in order.
	emitMu sync.Mutex

	closed  atomic.Bool
	dropped atomic.Uint64

	// Async flush
	flushCh chan struct{}
	closeCh chan struct{}
	wg      sync.WaitGroup
}

var _ iotrace.Sink = (*Collector)(nil)

// NewCollector builds the emitter named by cfg.Sink and starts collecting.
func NewCollector(cfg config.TelemetryConfig) (*Collector, error) {
	emitter, err := NewEmitter(cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry.NewCollector: %w", err)
	}
	return NewCollectorWithEmitter(cfg, emitter), nil
}

// NewCollectorWithEmitter starts a collector in front of emitter. The
// collector owns emitter and closes it on Close.
func NewCollectorWithEmitter(cfg config.TelemetryConfig, emitter Emitter) *Collector {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100 * cfg.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 1.0
	}
	if cfg.Sink == "" {
		cfg.Sink = config.SinkNop
	}

	c := &Collector{
		cfg:     cfg,
		emitter: emitter,
		batch:   make([]iotrace.Record, 0, cfg.BatchSize),
		flushCh: make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}

	c.wg.Add(1)
	go c.flushLoop()
	return c
}

// WriteIOOp adds a record to the current batch. Non-blocking.
func (c *Collector) WriteIOOp(rec iotrace.Record) error {
	if c.closed.Load() {
		return ErrClosed
	}

	// Sampling for metadata ops
	if isMetadata(rec) && !shouldSample(c.cfg.SampleRate) {
		c.drop(1)
		return nil
	}

	c.mu.Lock()
	if len(c.batch) >= c.cfg.BufferSize {
		c.mu.Unlock()
		c.drop(1)
		return nil
	}
	c.batch = append(c.batch, rec)
	shouldFlush := len(c.batch) >= c.cfg.BatchSize
	c.mu.Unlock()

	if shouldFlush {
		select {
		case c.flushCh <- struct{}{}:
		default:
		}
	}
	return nil
}

// Flush forces a flush of the current batch.
func (c *Collector) Flush() {
	c.flush()
}

// Dropped returns how many records were discarded by sampling, a full
// buffer or a failed flush.
func (c *Collector) Dropped() uint64 {
	return c.dropped.Load()
}

// Pending returns the records batched but not yet emitted (for testing).
func (c *Collector) Pending() []iotrace.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]iotrace.Record, len(c.batch))
	copy(out, c.batch)
	return out
}

// Close flushes remaining records and closes the emitter.
func (c *Collector) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.closeCh)
	c.wg.Wait()
	return c.emitter.Close()
}

func (c *Collector) flushLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeCh:
			c.flush() // Final flush
			return
		case <-c.flushCh:
			c.flush()
		case <-ticker.C:
			c.flush()
		}
	}
}

func (c *Collector) flush() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if len(c.batch) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.batch
	c.batch = make([]iotrace.Record, 0, c.cfg.BatchSize)
	c.mu.Unlock()

	// Send to emitter (drop on error)
	start := time.Now()
	err := c.emitter.Emit(batch)
	metrics.TraceFlushDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.drop(len(batch))
		slog.Warn("telemetry flush failed", "component", "telemetry", "sink", c.cfg.Sink, "count", len(batch), "error", err)
		return
	}
	metrics.TraceRecordsEmitted.WithLabelValues(c.cfg.Sink).Add(float64(len(batch)))
}

func (c *Collector) drop(n int) {
	c.dropped.Add(uint64(n))
	metrics.TraceRecordsDropped.Add(float64(n))
}

// isMetadata reports whether rec describes a path-level operation rather
// than data movement.
func isMetadata(rec iotrace.Record) bool {
	return rec.Type == iotrace.TypeFileName || rec.Type == iotrace.TypeFileNameAndFileSize
}

func shouldSample(rate float64) bool {
	if rate >= 1.0 {
		return true
	}
	if rate <= 0 {
		return false
	}
	return rand.Float64() < rate
}
