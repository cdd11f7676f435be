package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads and parses an fstrace configuration file.
// Supports environment variable expansion in string values via ${VAR} syntax.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.parseSizes(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.FileSystem.Name == "" {
		c.FileSystem.Name = "default"
	}
	if c.FileSystem.Type == "" {
		c.FileSystem.Type = "local"
	}
	if c.FileSystem.Type == "local" && c.FileSystem.Root == "" {
		c.FileSystem.Root = "/var/lib/fstrace"
	}
	if c.Telemetry.Sink == "" {
		c.Telemetry.Sink = SinkNop
	}
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 1.0
	}
	if c.Telemetry.BatchSize == 0 {
		c.Telemetry.BatchSize = 100
	}
	if c.Telemetry.BufferSize == 0 {
		c.Telemetry.BufferSize = 10000
	}
	if c.Telemetry.FlushInterval == 0 {
		c.Telemetry.FlushInterval = time.Second
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.Workload.Dir == "" {
		c.Workload.Dir = "bench"
	}
	if c.Workload.Files == 0 {
		c.Workload.Files = 4
	}
	if c.Workload.FileSizeRaw == "" {
		c.Workload.FileSizeRaw = "4MB"
	}
	if c.Workload.BlockSizeRaw == "" {
		c.Workload.BlockSizeRaw = "64KB"
	}
	// Parse human-readable sizes to int64.
	// Errors are surfaced by parseSizes(), called separately.
	if c.Workload.Readers == 0 {
		c.Workload.Readers = 4
	}
	if c.Workload.ReadsPerReader == 0 {
		c.Workload.ReadsPerReader = 256
	}
	if c.Workload.BatchSize == 0 {
		c.Workload.BatchSize = 8
	}
}

// parseSizes converts human-readable size strings to int64 bytes.
// Returns an error if any user-provided size string is invalid.
func (c *Config) parseSizes() error {
	v, err := ParseSize(c.Workload.FileSizeRaw)
	if err != nil {
		return fmt.Errorf("config: invalid workload.file_size %q: %w", c.Workload.FileSizeRaw, err)
	}
	c.Workload.FileSize = v

	v, err = ParseSize(c.Workload.BlockSizeRaw)
	if err != nil {
		return fmt.Errorf("config: invalid workload.block_size %q: %w", c.Workload.BlockSizeRaw, err)
	}
	c.Workload.BlockSize = v
	return nil
}

// Default returns a configuration with every default applied, as Load
// would produce for an empty file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	// Defaults are well-formed sizes.
	_ = cfg.parseSizes()
	return &cfg
}

// ParseSize converts a human-readable size like "2TB", "500GB", "4MB" to bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" {
		return 0, nil
	}

	multipliers := []struct {
		suffix string
		mult   int64
	}{
		{"PB", 1024 * 1024 * 1024 * 1024 * 1024},
		{"TB", 1024 * 1024 * 1024 * 1024},
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}

	for _, m := range multipliers {
		if strings.HasSuffix(s, m.suffix) {
			numStr := strings.TrimSuffix(s, m.suffix)
			num, err := strconv.ParseFloat(numStr, 64)
			if err != nil {
				return 0, fmt.Errorf("config.ParseSize: invalid size %q: %w", s, err)
			}
			return int64(num * float64(m.mult)), nil
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config.ParseSize: invalid size %q: %w", s, err)
	}
	return n, nil
}
