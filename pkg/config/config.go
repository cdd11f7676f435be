package config

import (
	"fmt"
	"time"
)

// Config is the top-level fstrace configuration.
type Config struct {
	FileSystem FileSystemConfig `yaml:"filesystem"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Workload   WorkloadConfig   `yaml:"workload"`
}

// FileSystemConfig describes the file system being traced.
type FileSystemConfig struct {
	Name string `yaml:"name"`
	// Type is "local", "memory" or any rclone backend type ("s3", "azureblob", ...).
	Type string `yaml:"type"`
	// Root is the local directory or the rclone remote path (bucket/prefix).
	Root   string            `yaml:"root"`
	Config map[string]string `yaml:"config"` // rclone config keys
}

// TracingConfig controls the tracing layer.
type TracingConfig struct {
	Enabled *bool `yaml:"enabled"` // default true
}

// TracingEnabled returns whether I/O records should be produced.
func (t TracingConfig) TracingEnabled() bool {
	if t.Enabled == nil {
		return true
	}
	return *t.Enabled
}

// MetricsConfig configures the Prometheus metrics and health endpoint.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"` // pointer to distinguish unset from false; default true
	Addr    string `yaml:"addr"`    // listen address; default ":9090"
}

// MetricsEnabled returns whether the metrics server should run.
func (m MetricsConfig) MetricsEnabled() bool {
	if m.Enabled == nil {
		return true // default: enabled
	}
	return *m.Enabled
}

// Telemetry sinks.
const (
	SinkStdout = "stdout"
	SinkFile   = "file"
	SinkHTTP   = "http"
	SinkBadger = "badger"
	SinkMemory = "memory"
	SinkNop    = "nop"
)

// TelemetryConfig configures where trace records are delivered.
type TelemetryConfig struct {
	Sink          string        `yaml:"sink"`
	FilePath      string        `yaml:"file_path"`
	IngestAddr    string        `yaml:"ingest_addr"`
	StorePath     string        `yaml:"store_path"`
	InMemory      bool          `yaml:"in_memory"` // badger without a directory
	SampleRate    float64       `yaml:"sample_rate"`
	BatchSize     int           `yaml:"batch_size"`
	BufferSize    int           `yaml:"buffer_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// WorkloadConfig drives cmd/fstrace-bench.
type WorkloadConfig struct {
	Dir            string `yaml:"dir"`
	Files          int    `yaml:"files"`
	FileSizeRaw    string `yaml:"file_size"`
	BlockSizeRaw   string `yaml:"block_size"`
	FileSize       int64  `yaml:"-"`
	BlockSize      int64  `yaml:"-"`
	Readers        int    `yaml:"readers"`
	ReadsPerReader int    `yaml:"reads_per_reader"`
	BatchSize      int    `yaml:"batch_size"`
	Seed           int64  `yaml:"seed"`
}

// Validate checks the configuration for logical errors.
func (c *Config) Validate() error {
	if c.FileSystem.Name == "" {
		return fmt.Errorf("config: filesystem name cannot be empty")
	}
	if c.FileSystem.Type == "" {
		return fmt.Errorf("config: filesystem %q has empty type", c.FileSystem.Name)
	}
	if c.FileSystem.Type == "local" && c.FileSystem.Root == "" {
		return fmt.Errorf("config: filesystem %q: local requires root", c.FileSystem.Name)
	}
	if err := c.Telemetry.validate(); err != nil {
		return err
	}

	w := c.Workload
	if w.Files < 0 || w.Readers < 0 || w.ReadsPerReader < 0 || w.BatchSize < 0 {
		return fmt.Errorf("config: workload counts must not be negative")
	}
	if w.FileSize < 0 {
		return fmt.Errorf("config: workload file_size must be positive, got %d", w.FileSize)
	}
	if w.BlockSize <= 0 {
		return fmt.Errorf("config: workload block_size must be positive, got %d", w.BlockSize)
	}
	if w.FileSize > 0 && w.BlockSize > w.FileSize {
		return fmt.Errorf("config: workload block_size (%d) exceeds file_size (%d)", w.BlockSize, w.FileSize)
	}
	return nil
}

func (t TelemetryConfig) validate() error {
	switch t.Sink {
	case SinkStdout, SinkMemory, SinkNop:
	case SinkFile:
		if t.FilePath == "" {
			return fmt.Errorf("config: telemetry sink %q requires file_path", t.Sink)
		}
	case SinkHTTP:
		if t.IngestAddr == "" {
			return fmt.Errorf("config: telemetry sink %q requires ingest_addr", t.Sink)
		}
	case SinkBadger:
		if t.StorePath == "" && !t.InMemory {
			return fmt.Errorf("config: telemetry sink %q requires store_path or in_memory", t.Sink)
		}
	default:
		return fmt.Errorf("config: unknown telemetry sink %q", t.Sink)
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		return fmt.Errorf("config: telemetry sample_rate must be within [0, 1], got %.2f", t.SampleRate)
	}
	if t.BatchSize < 0 || t.BufferSize < 0 {
		return fmt.Errorf("config: telemetry batch_size and buffer_size must not be negative")
	}
	return nil
}
