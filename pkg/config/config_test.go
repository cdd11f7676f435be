package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestLoad(t *testing.T) {
	content := `
filesystem:
  name: training
  type: s3
  root: training-sets/rocksdb
  config:
    provider: AWS
    region: us-east-1
tracing:
  enabled: true
telemetry:
  sink: badger
  store_path: /var/lib/fstrace/traces
  batch_size: 500
  flush_interval: 250ms
workload:
  files: 8
  file_size: 16MB
  block_size: 4KB
  readers: 16
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.FileSystem.Name != "training" || cfg.FileSystem.Type != "s3" {
		t.Errorf("FileSystem = %+v", cfg.FileSystem)
	}
	if cfg.FileSystem.Config["region"] != "us-east-1" {
		t.Errorf("FileSystem.Config = %v", cfg.FileSystem.Config)
	}
	if !cfg.Tracing.TracingEnabled() {
		t.Error("tracing should be enabled")
	}
	if cfg.Telemetry.Sink != SinkBadger || cfg.Telemetry.StorePath != "/var/lib/fstrace/traces" {
		t.Errorf("Telemetry = %+v", cfg.Telemetry)
	}
	if cfg.Telemetry.BatchSize != 500 {
		t.Errorf("BatchSize = %d, want 500", cfg.Telemetry.BatchSize)
	}
	if cfg.Telemetry.FlushInterval != 250*time.Millisecond {
		t.Errorf("FlushInterval = %v, want 250ms", cfg.Telemetry.FlushInterval)
	}
	if cfg.Workload.FileSize != 16*1024*1024 {
		t.Errorf("Workload.FileSize = %d, want 16MB", cfg.Workload.FileSize)
	}
	if cfg.Workload.BlockSize != 4*1024 {
		t.Errorf("Workload.BlockSize = %d, want 4KB", cfg.Workload.BlockSize)
	}
	if cfg.Workload.Readers != 16 || cfg.Workload.Files != 8 {
		t.Errorf("Workload = %+v", cfg.Workload)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.FileSystem.Name != "default" || cfg.FileSystem.Type != "local" {
		t.Errorf("FileSystem defaults = %+v", cfg.FileSystem)
	}
	if cfg.FileSystem.Root == "" {
		t.Error("local filesystem should get a default root")
	}
	if !cfg.Tracing.TracingEnabled() {
		t.Error("tracing should default to enabled")
	}
	if cfg.Telemetry.Sink != SinkNop {
		t.Errorf("Telemetry.Sink = %q, want nop", cfg.Telemetry.Sink)
	}
	if cfg.Telemetry.SampleRate != 1.0 {
		t.Errorf("SampleRate = %v, want 1.0", cfg.Telemetry.SampleRate)
	}
	if cfg.Telemetry.FlushInterval != time.Second {
		t.Errorf("FlushInterval = %v, want 1s", cfg.Telemetry.FlushInterval)
	}
	if cfg.Workload.FileSize != 4*1024*1024 || cfg.Workload.BlockSize != 64*1024 {
		t.Errorf("Workload sizes = %d/%d", cfg.Workload.FileSize, cfg.Workload.BlockSize)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("FSTRACE_TEST_ROOT", "/mnt/fast")
	cfg, err := Load(writeConfig(t, "filesystem:\n  root: ${FSTRACE_TEST_ROOT}/db\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.FileSystem.Root != "/mnt/fast/db" {
		t.Errorf("Root = %q, want /mnt/fast/db", cfg.FileSystem.Root)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config.Load") {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "filesystem: [unclosed\n")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
	if cfg.Workload.BlockSize == 0 {
		t.Error("Default() should parse sizes")
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"0", 0},
		{"1024", 1024},
		{"4MB", 4 * 1024 * 1024},
		{"2TB", 2 * 1024 * 1024 * 1024 * 1024},
		{"500GB", 500 * 1024 * 1024 * 1024},
		{"1KB", 1024},
		{"64kb", 64 * 1024},
	}

	for _, tt := range tests {
		got, err := ParseSize(tt.input)
		if err != nil {
			t.Errorf("ParseSize(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestParseSize_Invalid(t *testing.T) {
	_, err := ParseSize("invalid")
	if err == nil {
		t.Error("ParseSize(\"invalid\") should return error")
	}
}

func TestLoad_InvalidFileSize(t *testing.T) {
	_, err := Load(writeConfig(t, "workload:\n  file_size: \"notasize\"\n"))
	if err == nil {
		t.Fatal("expected error for invalid file_size, got nil")
	}
	if !strings.Contains(err.Error(), "invalid workload.file_size") {
		t.Errorf("error should mention invalid workload.file_size, got: %v", err)
	}
}

func TestLoad_InvalidBlockSize(t *testing.T) {
	_, err := Load(writeConfig(t, "workload:\n  block_size: \"xyz\"\n"))
	if err == nil {
		t.Fatal("expected error for invalid block_size, got nil")
	}
	if !strings.Contains(err.Error(), "invalid workload.block_size") {
		t.Errorf("error should mention invalid workload.block_size, got: %v", err)
	}
}

func TestLoad_MetricsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Metrics.MetricsEnabled() {
		t.Error("Metrics should be enabled by default")
	}
	if cfg.Metrics.Addr != ":9090" {
		t.Errorf("Metrics.Addr = %q, want :9090", cfg.Metrics.Addr)
	}
}

func TestLoad_MetricsAndTracingDisabled(t *testing.T) {
	content := `
metrics:
  enabled: false
  addr: ":8080"
tracing:
  enabled: false
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Metrics.MetricsEnabled() {
		t.Error("Metrics should be disabled when set to false")
	}
	if cfg.Metrics.Addr != ":8080" {
		t.Errorf("Metrics.Addr = %q, want :8080", cfg.Metrics.Addr)
	}
	if cfg.Tracing.TracingEnabled() {
		t.Error("Tracing should be disabled when set to false")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"ok", func(c *Config) {}, ""},
		{"memory without root", func(c *Config) { c.FileSystem.Type = "memory"; c.FileSystem.Root = "" }, ""},
		{"empty name", func(c *Config) { c.FileSystem.Name = "" }, "name cannot be empty"},
		{"empty type", func(c *Config) { c.FileSystem.Type = "" }, "empty type"},
		{"local without root", func(c *Config) { c.FileSystem.Root = "" }, "local requires root"},
		{"unknown sink", func(c *Config) { c.Telemetry.Sink = "kafka" }, "unknown telemetry sink"},
		{"file sink without path", func(c *Config) { c.Telemetry.Sink = SinkFile }, "requires file_path"},
		{"http sink without addr", func(c *Config) { c.Telemetry.Sink = SinkHTTP }, "requires ingest_addr"},
		{"badger without store", func(c *Config) { c.Telemetry.Sink = SinkBadger }, "requires store_path"},
		{"badger in memory", func(c *Config) { c.Telemetry.Sink = SinkBadger; c.Telemetry.InMemory = true }, ""},
		{"sample rate above one", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, "sample_rate"},
		{"negative batch", func(c *Config) { c.Telemetry.BatchSize = -1 }, "must not be negative"},
		{"negative readers", func(c *Config) { c.Workload.Readers = -2 }, "must not be negative"},
		{"zero block size", func(c *Config) { c.Workload.BlockSize = 0 }, "block_size must be positive"},
		{"block exceeds file", func(c *Config) { c.Workload.BlockSize = c.Workload.FileSize * 2 }, "exceeds file_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.FileSystem.Root = "/tmp/fstrace"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
