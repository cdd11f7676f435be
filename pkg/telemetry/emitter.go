package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/warpdrive/fstrace/pkg/config"
	"github.com/warpdrive/fstrace/pkg/iotrace"
)

// Emitter sends batches of trace records to a destination.
type Emitter interface {
	Emit(records []iotrace.Record) error
	Close() error
}

// NewEmitter builds the emitter named by cfg.Sink.
func NewEmitter(cfg config.TelemetryConfig) (Emitter, error) {
	switch cfg.Sink {
	case config.SinkStdout:
		return NewStdoutEmitter(), nil
	case config.SinkFile:
		return NewFileEmitter(cfg.FilePath)
	case config.SinkHTTP:
		return NewHTTPEmitter(cfg.IngestAddr), nil
	case config.SinkBadger:
		if cfg.InMemory {
			return OpenBadgerEmitter("")
		}
		return OpenBadgerEmitter(cfg.StorePath)
	case config.SinkMemory:
		return NewMemoryEmitter(), nil
	case config.SinkNop, "":
		return NewNopEmitter(), nil
	}
	return nil, fmt.Errorf("telemetry.NewEmitter: unknown sink %q", cfg.Sink)
}

// StdoutEmitter writes JSON lines to stdout (for K8s log aggregation).
type StdoutEmitter struct {
	*jsonlEmitter
}

// NewStdoutEmitter creates a stdout emitter.
func NewStdoutEmitter() *StdoutEmitter {
	return &StdoutEmitter{newJSONLEmitter("StdoutEmitter", os.Stdout)}
}

// Close is a no-op for stdout.
func (e *StdoutEmitter) Close() error {
	return nil
}

// FileEmitter writes JSON lines to a file.
type FileEmitter struct {
	*jsonlEmitter
	file *os.File
}

// NewFileEmitter creates a file emitter that writes JSONL to the given path.
func NewFileEmitter(path string) (*FileEmitter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry.NewFileEmitter: %w", err)
	}
	return &FileEmitter{
		jsonlEmitter: newJSONLEmitter("FileEmitter", f),
		file:         f,
	}, nil
}

// Close closes the file.
func (e *FileEmitter) Close() error {
	return e.file.Close()
}

// jsonlEmitter encodes one record per line.
type jsonlEmitter struct {
	name    string
	encoder *json.Encoder
	mu      sync.Mutex
}

func newJSONLEmitter(name string, w io.Writer) *jsonlEmitter {
	return &jsonlEmitter{name: name, encoder: json.NewEncoder(w)}
}

// Emit writes records as JSON lines.
func (e *jsonlEmitter) Emit(records []iotrace.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rec := range records {
		if err := e.encoder.Encode(rec); err != nil {
			return fmt.Errorf("telemetry.%s: %w", e.name, err)
		}
	}
	return nil
}

// IngestPath is the endpoint HTTPEmitter posts record batches to.
const IngestPath = "/api/v1/iotrace"

// HTTPEmitter sends records to a collector service via HTTP POST.
type HTTPEmitter struct {
	addr   string
	client *http.Client
}

// NewHTTPEmitter creates an emitter that POSTs records to addr + IngestPath.
func NewHTTPEmitter(addr string) *HTTPEmitter {
	return &HTTPEmitter{
		addr: addr,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Emit sends records as one JSON array.
func (e *HTTPEmitter) Emit(records []iotrace.Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("telemetry.HTTPEmitter: marshal: %w", err)
	}

	resp, err := e.client.Post(e.addr+IngestPath, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("telemetry.HTTPEmitter: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("telemetry.HTTPEmitter: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Close is a no-op for HTTP emitter.
func (e *HTTPEmitter) Close() error {
	return nil
}

// NopEmitter discards all records.
type NopEmitter struct{}

// NewNopEmitter creates a no-op emitter.
func NewNopEmitter() *NopEmitter {
	return &NopEmitter{}
}

// Emit discards records.
func (e *NopEmitter) Emit([]iotrace.Record) error {
	return nil
}

// Close is a no-op.
func (e *NopEmitter) Close() error {
	return nil
}

// MemoryEmitter stores records in memory (for testing).
type MemoryEmitter struct {
	mu      sync.Mutex
	records []iotrace.Record
}

// NewMemoryEmitter creates a memory-backed emitter.
func NewMemoryEmitter() *MemoryEmitter {
	return &MemoryEmitter{}
}

// Emit stores records.
func (e *MemoryEmitter) Emit(records []iotrace.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, records...)
	return nil
}

// Close is a no-op.
func (e *MemoryEmitter) Close() error {
	return nil
}

// Records returns all stored records.
func (e *MemoryEmitter) Records() []iotrace.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]iotrace.Record, len(e.records))
	copy(out, e.records)
	return out
}

// Len returns the number of stored records.
func (e *MemoryEmitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}
