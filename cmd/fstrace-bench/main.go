package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/warpdrive/fstrace/pkg/backend"
	"github.com/warpdrive/fstrace/pkg/config"
	"github.com/warpdrive/fstrace/pkg/iotrace"
	"github.com/warpdrive/fstrace/pkg/metrics"
	"github.com/warpdrive/fstrace/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (defaults are used when empty)")
	fsType := flag.String("type", "", "File system type (overrides config)")
	root := flag.String("root", "", "File system root (overrides config)")
	readers := flag.Int("readers", 0, "Concurrent random readers (overrides config)")
	files := flag.Int("files", 0, "Number of files to write (overrides config)")
	seed := flag.Int64("seed", 0, "Random seed (overrides config)")
	sink := flag.String("sink", "", "Telemetry sink: stdout, file, http, badger, memory, nop (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if *fsType != "" {
		cfg.FileSystem.Type = *fsType
	}
	if *root != "" {
		cfg.FileSystem.Root = *root
	}
	if *readers > 0 {
		cfg.Workload.Readers = *readers
	}
	if *files > 0 {
		cfg.Workload.Files = *files
	}
	if *seed != 0 {
		cfg.Workload.Seed = *seed
	}
	if *sink != "" {
		cfg.Telemetry.Sink = *sink
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	metricsStop := make(chan struct{})
	if cfg.Metrics.MetricsEnabled() {
		go func() {
			if err := metrics.MetricsServer(cfg.Metrics.Addr, metricsStop); err != nil {
				slog.Error("metrics server error", "error", err)
			}
		}()
		slog.Info("metrics server started", "addr", cfg.Metrics.Addr)
	} else {
		slog.Info("metrics server disabled")
	}
	defer close(metricsStop)

	if err := run(ctx, cfg, os.Stdout); err != nil {
		slog.Error("benchmark failed", "error", err)
		os.Exit(1)
	}
}

// run builds the traced file system described by cfg, drives the workload
// through it and writes the report to out.
func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	target, err := backend.New(cfg.FileSystem)
	if err != nil {
		return fmt.Errorf("create file system: %w", err)
	}
	reg := backend.NewRegistry()
	if err := reg.Register(target); err != nil {
		target.Close()
		return err
	}
	defer reg.Close()
	slog.Info("registered file system", "name", target.Name(), "type", target.Type(), "root", cfg.FileSystem.Root)

	if cfg.FileSystem.Type == "local" {
		metrics.RegisterHealthCheck("filesystem_root", metrics.PathHealthCheck(cfg.FileSystem.Root))
	}

	collector, err := telemetry.NewCollector(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("create telemetry collector: %w", err)
	}
	defer collector.Close()

	recorder := iotrace.NewRecorder()
	tracer := iotrace.NewTracer()
	if cfg.Tracing.TracingEnabled() {
		tracer.Start(iotrace.Multi(collector, metrics.NewSink(), recorder))
		slog.Info("tracing enabled", "sink", cfg.Telemetry.Sink, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		slog.Info("tracing disabled")
	}
	defer tracer.Stop()

	w := cfg.Workload
	fmt.Fprintf(out, "fstrace Benchmark\n")
	fmt.Fprintf(out, "-----------------------------------\n")
	fmt.Fprintf(out, "File System: %s (%s)\n", target.Name(), target.Type())
	fmt.Fprintf(out, "Directory:   %s\n", w.Dir)
	fmt.Fprintf(out, "Files:       %d x %s\n", w.Files, humanBytes(w.FileSize))
	fmt.Fprintf(out, "Block Size:  %s\n", humanBytes(w.BlockSize))
	fmt.Fprintf(out, "Readers:     %d x %d reads\n", w.Readers, w.ReadsPerReader)
	fmt.Fprintf(out, "Batch Size:  %d\n", w.BatchSize)
	fmt.Fprintf(out, "-----------------------------------\n\n")

	b := newBench(target, tracer, w)
	phases, runErr := b.run(ctx)
	collector.Flush()

	printPhases(out, phases)
	if cfg.Tracing.TracingEnabled() {
		printOps(out, summarize(recorder.Records()))
		if dropped := collector.Dropped(); dropped > 0 {
			fmt.Fprintf(out, "Dropped trace records: %d\n", dropped)
		}
	}
	return runErr
}
