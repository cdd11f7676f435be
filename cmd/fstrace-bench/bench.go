package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warpdrive/fstrace/pkg/config"
	"github.com/warpdrive/fstrace/pkg/iotrace"
	"github.com/warpdrive/fstrace/pkg/tracing"
	"github.com/warpdrive/fstrace/pkg/vfs"
)

// phaseResult is the wall-clock view of one workload phase.
type phaseResult struct {
	Name    string
	Elapsed time.Duration
	Bytes   int64
	Ops     int64
	Errors  int64
}

// bench drives a workload through a traced file system. File handles are
// wrapped with the same sink as the file system.
type bench struct {
	fsys *tracing.FileSystem
	sink iotrace.Sink
	cfg  config.WorkloadConfig
	opts []tracing.Option
}

func newBench(target vfs.FileSystem, sink iotrace.Sink, cfg config.WorkloadConfig, opts ...tracing.Option) *bench {
	return &bench{
		fsys: tracing.NewFileSystem(target, sink, opts...),
		sink: sink,
		cfg:  cfg,
		opts: opts,
	}
}

func (b *bench) fileName(i int) string {
	return path.Join(b.cfg.Dir, fmt.Sprintf("%06d.sst", i+1))
}

// run executes every phase in order and cleans up after itself.
func (b *bench) run(ctx context.Context) ([]phaseResult, error) {
	phases := []struct {
		name string
		fn   func(context.Context, *phaseResult) error
	}{
		{"write", b.write},
		{"sequential-read", b.sequentialRead},
		{"random-read", b.randomRead},
		{"batched-read", b.batchedRead},
		{"metadata", b.metadata},
	}

	var results []phaseResult
	for _, p := range phases {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := phaseResult{Name: p.name}
		start := time.Now()
		err := p.fn(ctx, &res)
		res.Elapsed = time.Since(start)
		results = append(results, res)
		if err != nil {
			return results, fmt.Errorf("bench: %s: %w", p.name, err)
		}
		slog.Info("phase complete", "component", "bench", "phase", p.name,
			"elapsed", res.Elapsed, "ops", res.Ops, "bytes", res.Bytes, "errors", res.Errors)
	}
	return results, nil
}

func (b *bench) write(ctx context.Context, res *phaseResult) error {
	if err := b.fsys.CreateDirIfMissing(ctx, b.cfg.Dir, vfs.IOOptions{}); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(b.cfg.Seed))
	block := make([]byte, b.cfg.BlockSize)
	rng.Read(block)

	for i := 0; i < b.cfg.Files; i++ {
		f, err := b.fsys.NewWritableFile(ctx, b.fileName(i), vfs.FileOptions{})
		if err != nil {
			return err
		}
		w := tracing.NewWritableFile(f, b.sink, b.opts...)
		for written := int64(0); written < b.cfg.FileSize; written += int64(len(block)) {
			chunk := block
			if rest := b.cfg.FileSize - written; rest < int64(len(chunk)) {
				chunk = chunk[:rest]
			}
			if err := w.Append(ctx, chunk, vfs.IOOptions{}); err != nil {
				return err
			}
			res.Ops++
			res.Bytes += int64(len(chunk))
		}
		if err := w.Flush(ctx, vfs.IOOptions{}); err != nil {
			return err
		}
		if err := w.Sync(ctx, vfs.IOOptions{}); err != nil {
			return err
		}
		w.GetFileSize(ctx, vfs.IOOptions{})
		if err := w.Close(ctx, vfs.IOOptions{}); err != nil {
			return err
		}
	}
	return nil
}

func (b *bench) sequentialRead(ctx context.Context, res *phaseResult) error {
	scratch := make([]byte, b.cfg.BlockSize)
	for i := 0; i < b.cfg.Files; i++ {
		f, err := b.fsys.NewSequentialFile(ctx, b.fileName(i), vfs.FileOptions{})
		if err != nil {
			return err
		}
		r := tracing.NewSequentialFile(f, b.sink, b.opts...)
		for {
			out, err := r.Read(ctx, len(scratch), vfs.IOOptions{}, scratch)
			if err != nil {
				res.Errors++
				break
			}
			res.Ops++
			res.Bytes += int64(len(out))
			if len(out) < len(scratch) {
				break
			}
		}
		closeHandle(f)
	}
	return nil
}

// randomRead runs cfg.Readers goroutines issuing block-sized reads at
// random offsets.
func (b *bench) randomRead(ctx context.Context, res *phaseResult) error {
	files, err := b.openRandom(ctx)
	if err != nil {
		return err
	}
	defer closeAll(files)

	var ops, bytes, errs atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < b.cfg.Readers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(b.cfg.Seed + int64(workerID) + 1))
			scratch := make([]byte, b.cfg.BlockSize)
			for i := 0; i < b.cfg.ReadsPerReader && ctx.Err() == nil; i++ {
				f := files[rng.Intn(len(files))]
				off := b.randomOffset(rng)
				out, err := f.traced.Read(ctx, off, len(scratch), vfs.IOOptions{}, scratch)
				if err != nil {
					errs.Add(1)
					continue
				}
				ops.Add(1)
				bytes.Add(int64(len(out)))
			}
		}(w)
	}
	wg.Wait()

	res.Ops, res.Bytes, res.Errors = ops.Load(), bytes.Load(), errs.Load()
	return ctx.Err()
}

// batchedRead issues MultiRead batches of cfg.BatchSize requests, plus a
// prefetch hint per batch.
func (b *bench) batchedRead(ctx context.Context, res *phaseResult) error {
	files, err := b.openRandom(ctx)
	if err != nil {
		return err
	}
	defer closeAll(files)

	rng := rand.New(rand.NewSource(b.cfg.Seed))
	batches := b.cfg.ReadsPerReader / max(b.cfg.BatchSize, 1)
	if batches == 0 {
		batches = 1
	}
	reqs := make([]vfs.ReadRequest, b.cfg.BatchSize)
	for i := 0; i < batches; i++ {
		f := files[i%len(files)]
		for j := range reqs {
			reqs[j] = vfs.ReadRequest{Offset: b.randomOffset(rng), Len: int(b.cfg.BlockSize)}
		}
		// Prefetch support varies by backend; its outcome is only traced.
		_ = f.traced.Prefetch(ctx, reqs[0].Offset, reqs[0].Len, vfs.IOOptions{})
		if err := f.traced.MultiRead(ctx, reqs, vfs.IOOptions{}); err != nil {
			return err
		}
		for _, r := range reqs {
			if r.Status != nil {
				res.Errors++
				continue
			}
			res.Ops++
			res.Bytes += int64(len(r.Result))
		}
	}
	return nil
}

// metadata lists, sizes, renames and finally deletes the workload files.
func (b *bench) metadata(ctx context.Context, res *phaseResult) error {
	names, err := b.fsys.GetChildren(ctx, b.cfg.Dir, vfs.IOOptions{})
	if err != nil {
		return err
	}
	res.Ops++
	for _, name := range names {
		full := path.Join(b.cfg.Dir, name)
		if err := b.fsys.FileExists(ctx, full, vfs.IOOptions{}); err != nil {
			res.Errors++
		}
		if _, err := b.fsys.GetFileSize(ctx, full, vfs.IOOptions{}); err != nil {
			res.Errors++
		}
		archived := full + ".old"
		if err := b.fsys.RenameFile(ctx, full, archived, vfs.IOOptions{}); err != nil {
			return err
		}
		if err := b.fsys.DeleteFile(ctx, archived, vfs.IOOptions{}); err != nil {
			return err
		}
		res.Ops += 4
	}
	if d, err := b.fsys.NewDirectory(ctx, b.cfg.Dir, vfs.IOOptions{}); err == nil {
		d.Fsync(ctx, vfs.IOOptions{})
		d.Close(ctx, vfs.IOOptions{})
	}
	if err := b.fsys.DeleteDir(ctx, b.cfg.Dir, vfs.IOOptions{}); err != nil {
		return err
	}
	res.Ops++
	return nil
}

type randomFile struct {
	raw    vfs.RandomAccessFile
	traced *tracing.RandomAccessFile
}

func (b *bench) openRandom(ctx context.Context) ([]randomFile, error) {
	files := make([]randomFile, 0, b.cfg.Files)
	for i := 0; i < b.cfg.Files; i++ {
		f, err := b.fsys.NewRandomAccessFile(ctx, b.fileName(i), vfs.FileOptions{})
		if err != nil {
			closeAll(files)
			return nil, err
		}
		files = append(files, randomFile{raw: f, traced: tracing.NewRandomAccessFile(f, b.sink, b.opts...)})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to read")
	}
	return files, nil
}

func (b *bench) randomOffset(rng *rand.Rand) uint64 {
	blocks := b.cfg.FileSize / b.cfg.BlockSize
	if blocks <= 0 {
		return 0
	}
	return uint64(rng.Int63n(blocks) * b.cfg.BlockSize)
}

func closeAll(files []randomFile) {
	for _, f := range files {
		closeHandle(f.raw)
	}
}

func closeHandle(v any) {
	if c, ok := v.(io.Closer); ok {
		c.Close()
	}
}
