package metrics

import (
	"github.com/warpdrive/fstrace/pkg/iotrace"
)

// Sink turns trace records into Prometheus observations. It never fails
// and is safe for concurrent use.
type Sink struct{}

// NewSink returns a Sink that records into the package-level collectors.
func NewSink() *Sink { return &Sink{} }

var _ iotrace.Sink = (*Sink)(nil)

func (s *Sink) WriteIOOp(rec iotrace.Record) error {
	status := "ok"
	if !rec.OK() {
		status = "error"
		IOErrors.WithLabelValues(rec.Operation).Inc()
	}
	IOOperations.WithLabelValues(rec.Operation, status).Inc()
	IOLatency.WithLabelValues(rec.Operation).Observe(float64(rec.Latency) / 1e6)

	switch rec.Type {
	case iotrace.TypeLen, iotrace.TypeLenAndOffset:
		IOBytes.WithLabelValues(rec.Operation).Add(float64(rec.Len))
	}
	return nil
}
