package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/warpdrive/fstrace/pkg/vfs"
)

// BillyBackend serves vfs.FileSystem from a go-billy filesystem: osfs for
// local directories and memfs for in-memory trees.
type BillyBackend struct {
	name     string
	backType string
	bfs      billy.Filesystem
}

// NewLocal creates a backend rooted at root on the local disk. The
// directory is created if missing.
func NewLocal(name, root string) (*BillyBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("backend.NewLocal: create root %s: %w", root, err)
	}
	slog.Info("Backend created",
		"component", "backend", "name", name,
		"type", "local", "path", root,
	)
	return &BillyBackend{name: name, backType: "local", bfs: osfs.New(root, osfs.WithBoundOS())}, nil
}

// NewMemory creates an empty in-memory backend.
func NewMemory(name string) *BillyBackend {
	return &BillyBackend{name: name, backType: "memory", bfs: memfs.New()}
}

// Unwrap returns the underlying billy.Filesystem.
func (b *BillyBackend) Unwrap() billy.Filesystem { return b.bfs }

func (b *BillyBackend) Name() string { return b.name }
func (b *BillyBackend) Type() string { return b.backType }

func (b *BillyBackend) Close() error {
	slog.Info("Backend closed", "component", "backend", "name", b.name)
	return nil
}

// normalize converts paths to use forward slashes consistently.
func normalize(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// fail maps billy/os errors onto the vfs sentinels and adds context.
func (b *BillyBackend) fail(op, path string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("backend %s: %s %q: %w", b.name, op, path, vfs.ErrNotFound)
	case errors.Is(err, os.ErrExist):
		return fmt.Errorf("backend %s: %s %q: %w", b.name, op, path, vfs.ErrExist)
	}
	return fmt.Errorf("backend %s: %s %q: %w", b.name, op, path, err)
}

func (b *BillyBackend) NewSequentialFile(_ context.Context, name string, _ vfs.FileOptions) (vfs.SequentialFile, error) {
	f, err := b.bfs.Open(normalize(name))
	if err != nil {
		return nil, b.fail("NewSequentialFile", name, err)
	}
	return &billySequential{b: b, f: f}, nil
}

func (b *BillyBackend) NewRandomAccessFile(_ context.Context, name string, _ vfs.FileOptions) (vfs.RandomAccessFile, error) {
	f, err := b.bfs.Open(normalize(name))
	if err != nil {
		return nil, b.fail("NewRandomAccessFile", name, err)
	}
	return &billyRandomAccess{b: b, f: f}, nil
}

func (b *BillyBackend) NewWritableFile(_ context.Context, name string, _ vfs.FileOptions) (vfs.WritableFile, error) {
	f, err := b.bfs.OpenFile(normalize(name), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, b.fail("NewWritableFile", name, err)
	}
	return &billyWritable{b: b, rw: billyRW{f: f}}, nil
}

func (b *BillyBackend) NewRandomRWFile(_ context.Context, name string, _ vfs.FileOptions) (vfs.RandomRWFile, error) {
	f, err := b.bfs.OpenFile(normalize(name), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, b.fail("NewRandomRWFile", name, err)
	}
	return &billyRandomRW{b: b, rw: billyRW{f: f}}, nil
}

func (b *BillyBackend) NewDirectory(_ context.Context, name string, _ vfs.IOOptions) (vfs.Directory, error) {
	name = normalize(name)
	fi, err := b.bfs.Stat(name)
	if err != nil {
		return nil, b.fail("NewDirectory", name, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("backend %s: NewDirectory %q: not a directory", b.name, name)
	}
	return &billyDirectory{b: b, path: name}, nil
}

func (b *BillyBackend) GetChildren(_ context.Context, dir string, _ vfs.IOOptions) ([]string, error) {
	infos, err := b.bfs.ReadDir(normalize(dir))
	if err != nil {
		return nil, b.fail("GetChildren", dir, err)
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names, nil
}

func (b *BillyBackend) DeleteFile(_ context.Context, name string, _ vfs.IOOptions) error {
	name = normalize(name)
	fi, err := b.bfs.Stat(name)
	if err != nil {
		return b.fail("DeleteFile", name, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("backend %s: DeleteFile %q: is a directory", b.name, name)
	}
	return b.fail("DeleteFile", name, b.bfs.Remove(name))
}

func (b *BillyBackend) CreateDir(_ context.Context, dirname string, _ vfs.IOOptions) error {
	dirname = normalize(dirname)
	if _, err := b.bfs.Stat(dirname); err == nil {
		return b.fail("CreateDir", dirname, os.ErrExist)
	}
	// Unlike CreateDirIfMissing, the parent must already exist.
	if parent := filepath.Dir(dirname); parent != "." && parent != "/" {
		if _, err := b.bfs.Stat(parent); err != nil {
			return b.fail("CreateDir", parent, err)
		}
	}
	return b.fail("CreateDir", dirname, b.bfs.MkdirAll(dirname, 0o755))
}

func (b *BillyBackend) CreateDirIfMissing(_ context.Context, dirname string, _ vfs.IOOptions) error {
	return b.fail("CreateDirIfMissing", dirname, b.bfs.MkdirAll(normalize(dirname), 0o755))
}

func (b *BillyBackend) DeleteDir(_ context.Context, dirname string, _ vfs.IOOptions) error {
	dirname = normalize(dirname)
	fi, err := b.bfs.Stat(dirname)
	if err != nil {
		return b.fail("DeleteDir", dirname, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("backend %s: DeleteDir %q: not a directory", b.name, dirname)
	}
	return b.fail("DeleteDir", dirname, b.bfs.Remove(dirname))
}

func (b *BillyBackend) GetFileSize(_ context.Context, name string, _ vfs.IOOptions) (uint64, error) {
	fi, err := b.bfs.Stat(normalize(name))
	if err != nil {
		return 0, b.fail("GetFileSize", name, err)
	}
	return uint64(fi.Size()), nil
}

func (b *BillyBackend) FileExists(_ context.Context, name string, _ vfs.IOOptions) error {
	_, err := b.bfs.Stat(normalize(name))
	return b.fail("FileExists", name, err)
}

func (b *BillyBackend) RenameFile(_ context.Context, src, target string, _ vfs.IOOptions) error {
	return b.fail("RenameFile", src, b.bfs.Rename(normalize(src), normalize(target)))
}

// readFull reads up to n bytes from r into scratch. Hitting end of file is
// reported as a short result, not an error.
func readFull(r io.Reader, n int, scratch []byte) ([]byte, error) {
	buf := vfs.Scratch(scratch, n)
	got, err := io.ReadFull(r, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	return buf[:got], err
}

// readAt is readFull for io.ReaderAt.
func readAt(r io.ReaderAt, off uint64, n int, scratch []byte) ([]byte, error) {
	buf := vfs.Scratch(scratch, n)
	got, err := r.ReadAt(buf, int64(off))
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return buf[:got], err
}

type billySequential struct {
	b *BillyBackend
	f billy.File
}

func (s *billySequential) Read(_ context.Context, n int, _ vfs.IOOptions, scratch []byte) ([]byte, error) {
	out, err := readFull(s.f, n, scratch)
	return out, s.b.fail("Read", s.f.Name(), err)
}

func (s *billySequential) PositionedRead(_ context.Context, offset uint64, n int, _ vfs.IOOptions, scratch []byte) ([]byte, error) {
	out, err := readAt(s.f, offset, n, scratch)
	return out, s.b.fail("PositionedRead", s.f.Name(), err)
}

func (s *billySequential) Skip(n uint64) error {
	_, err := s.f.Seek(int64(n), io.SeekCurrent)
	return s.b.fail("Skip", s.f.Name(), err)
}

func (s *billySequential) InvalidateCache(_, _ uint64) error { return nil }

// Close releases the open file.
func (s *billySequential) Close() error { return s.f.Close() }

type billyRandomAccess struct {
	b *BillyBackend
	f billy.File
}

func (r *billyRandomAccess) Read(_ context.Context, offset uint64, n int, _ vfs.IOOptions, scratch []byte) ([]byte, error) {
	out, err := readAt(r.f, offset, n, scratch)
	return out, r.b.fail("Read", r.f.Name(), err)
}

func (r *billyRandomAccess) MultiRead(ctx context.Context, reqs []vfs.ReadRequest, opts vfs.IOOptions) error {
	for i := range reqs {
		if err := ctx.Err(); err != nil {
			return err
		}
		reqs[i].Result, reqs[i].Status = r.Read(ctx, reqs[i].Offset, reqs[i].Len, opts, reqs[i].Scratch)
	}
	return nil
}

// Prefetch is not supported: billy exposes no readahead hint.
func (r *billyRandomAccess) Prefetch(context.Context, uint64, int, vfs.IOOptions) error {
	return vfs.ErrNotSupported
}

func (r *billyRandomAccess) InvalidateCache(_, _ uint64) error { return nil }

// Close releases the open file.
func (r *billyRandomAccess) Close() error { return r.f.Close() }

type syncer interface{ Sync() error }

// billyRW writes at explicit offsets. billy.File does not promise
// io.WriterAt, so writes fall back to Seek+Write under a lock.
type billyRW struct {
	mu sync.Mutex
	f  billy.File
}

func (w *billyRW) writeAt(data []byte, off uint64) error {
	if wa, ok := w.f.(io.WriterAt); ok {
		_, err := wa.WriteAt(data, int64(off))
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.f.Seek(int64(off), io.SeekStart); err != nil {
		return err
	}
	_, err := w.f.Write(data)
	return err
}

func (w *billyRW) sync() error {
	if s, ok := w.f.(syncer); ok {
		return s.Sync()
	}
	return nil
}

type billyWritable struct {
	b  *BillyBackend
	rw billyRW

	mu   sync.Mutex
	size uint64
}

func (w *billyWritable) Append(_ context.Context, data []byte, _ vfs.IOOptions) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rw.writeAt(data, w.size); err != nil {
		return w.b.fail("Append", w.rw.f.Name(), err)
	}
	w.size += uint64(len(data))
	return nil
}

func (w *billyWritable) PositionedAppend(_ context.Context, data []byte, offset uint64, _ vfs.IOOptions) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rw.writeAt(data, offset); err != nil {
		return w.b.fail("PositionedAppend", w.rw.f.Name(), err)
	}
	w.size = offset + uint64(len(data))
	return nil
}

func (w *billyWritable) Truncate(_ context.Context, size uint64, _ vfs.IOOptions) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rw.f.Truncate(int64(size)); err != nil {
		return w.b.fail("Truncate", w.rw.f.Name(), err)
	}
	w.size = size
	return nil
}

func (w *billyWritable) Flush(context.Context, vfs.IOOptions) error { return nil }

func (w *billyWritable) Sync(context.Context, vfs.IOOptions) error {
	return w.b.fail("Sync", w.rw.f.Name(), w.rw.sync())
}

func (w *billyWritable) Close(context.Context, vfs.IOOptions) error {
	return w.b.fail("Close", w.rw.f.Name(), w.rw.f.Close())
}

func (w *billyWritable) GetFileSize(context.Context, vfs.IOOptions) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

func (w *billyWritable) InvalidateCache(_, _ uint64) error { return nil }

type billyRandomRW struct {
	b  *BillyBackend
	rw billyRW
}

func (f *billyRandomRW) Write(_ context.Context, offset uint64, data []byte, _ vfs.IOOptions) error {
	return f.b.fail("Write", f.rw.f.Name(), f.rw.writeAt(data, offset))
}

func (f *billyRandomRW) Read(_ context.Context, offset uint64, n int, _ vfs.IOOptions, scratch []byte) ([]byte, error) {
	out, err := readAt(f.rw.f, offset, n, scratch)
	return out, f.b.fail("Read", f.rw.f.Name(), err)
}

func (f *billyRandomRW) Flush(context.Context, vfs.IOOptions) error { return nil }

func (f *billyRandomRW) Sync(context.Context, vfs.IOOptions) error {
	return f.b.fail("Sync", f.rw.f.Name(), f.rw.sync())
}

func (f *billyRandomRW) Close(context.Context, vfs.IOOptions) error {
	return f.b.fail("Close", f.rw.f.Name(), f.rw.f.Close())
}

type billyDirectory struct {
	b    *BillyBackend
	path string
}

// Fsync syncs the directory when the filesystem hands out directory
// handles (osfs does, memfs does not).
func (d *billyDirectory) Fsync(context.Context, vfs.IOOptions) error {
	f, err := d.b.bfs.Open(d.path)
	if err != nil {
		_, statErr := d.b.bfs.Stat(d.path)
		return d.b.fail("Fsync", d.path, statErr)
	}
	defer f.Close()
	if s, ok := f.(syncer); ok {
		return d.b.fail("Fsync", d.path, s.Sync())
	}
	return nil
}

func (d *billyDirectory) Close(context.Context, vfs.IOOptions) error { return nil }

var (
	_ Backend              = (*BillyBackend)(nil)
	_ vfs.SequentialFile   = (*billySequential)(nil)
	_ vfs.RandomAccessFile = (*billyRandomAccess)(nil)
	_ vfs.WritableFile     = (*billyWritable)(nil)
	_ vfs.RandomRWFile     = (*billyRandomRW)(nil)
	_ vfs.Directory        = (*billyDirectory)(nil)
)
