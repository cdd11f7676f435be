package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/warpdrive/fstrace/pkg/metrics"
	"github.com/warpdrive/fstrace/pkg/vfs"

	// Register rclone backends via blank imports.
	_ "github.com/rclone/rclone/backend/azureblob"
	_ "github.com/rclone/rclone/backend/googlecloudstorage"
	_ "github.com/rclone/rclone/backend/local"
	_ "github.com/rclone/rclone/backend/s3"
	_ "github.com/rclone/rclone/backend/sftp"

	"github.com/rclone/rclone/fs"
	"github.com/rclone/rclone/fs/config/configmap"
	"github.com/rclone/rclone/fs/object"
)

// RcloneBackend serves vfs.FileSystem from an rclone fs.Fs. Objects are
// immutable remotely, so writable files are buffered and uploaded on Sync
// and Close, and random read-write files are not supported.
type RcloneBackend struct {
	name     string
	backType string
	rfs      fs.Fs
}

// NewRcloneBackend creates a backend from config.
// backendType is the rclone backend name (e.g. "azureblob", "s3", "local").
// remotePath is the bucket/container + optional prefix.
// params maps rclone config keys to values.
func NewRcloneBackend(name, backendType, remotePath string, params map[string]string) (*RcloneBackend, error) {
	m := configmap.Simple(params)

	regInfo, err := fs.Find(backendType)
	if err != nil {
		return nil, fmt.Errorf("backend.NewRcloneBackend: unknown type %q: %w", backendType, err)
	}

	rfs, err := regInfo.NewFs(context.Background(), name, remotePath, m)
	if err != nil {
		return nil, fmt.Errorf("backend.NewRcloneBackend: create %q (%s): %w", name, backendType, err)
	}

	slog.Info("Backend created",
		"component", "backend", "name", name,
		"type", backendType, "path", remotePath,
	)

	return &RcloneBackend{name: name, backType: backendType, rfs: rfs}, nil
}

func (b *RcloneBackend) Name() string { return b.name }
func (b *RcloneBackend) Type() string { return b.backType }

// Close releases resources.
func (b *RcloneBackend) Close() error {
	slog.Info("Backend closed", "component", "backend", "name", b.name)
	return nil
}

// observe records request duration and, on failure, an error count.
func (b *RcloneBackend) observe(op string, start time.Time, err error) {
	metrics.BackendRequestDuration.WithLabelValues(b.name, op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendErrors.WithLabelValues(b.name, op).Inc()
	}
}

func (b *RcloneBackend) fail(op, p string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrorObjectNotFound), errors.Is(err, fs.ErrorDirNotFound):
		return fmt.Errorf("backend %s: %s %q: %w", b.name, op, p, vfs.ErrNotFound)
	}
	return fmt.Errorf("backend %s: %s %q: %w", b.name, op, p, err)
}

func (b *RcloneBackend) object(ctx context.Context, op, p string) (fs.Object, error) {
	start := time.Now()
	obj, err := b.rfs.NewObject(ctx, p)
	b.observe("stat", start, err)
	if err != nil {
		return nil, b.fail(op, p, err)
	}
	return obj, nil
}

// readRange reads up to len(p) bytes of obj starting at off. Reading past
// the end yields a short count and no error.
func (b *RcloneBackend) readRange(ctx context.Context, obj fs.Object, p []byte, off int64) (int, error) {
	start := time.Now()
	size := obj.Size()
	if off >= size || len(p) == 0 {
		return 0, nil
	}

	end := off + int64(len(p)) - 1
	if end >= size {
		end = size - 1
	}

	rc, err := obj.Open(ctx, &fs.RangeOption{Start: off, End: end})
	if err != nil {
		b.observe("read", start, err)
		return 0, fmt.Errorf("backend %s: read %q open: %w", b.name, obj.Remote(), err)
	}
	defer rc.Close()

	want := int(end - off + 1)
	n, err := io.ReadFull(rc, p[:want])
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	b.observe("read", start, err)
	metrics.BackendBytesRead.WithLabelValues(b.name).Add(float64(n))
	if err != nil {
		return n, fmt.Errorf("backend %s: read %q: %w", b.name, obj.Remote(), err)
	}
	return n, nil
}

func (b *RcloneBackend) put(ctx context.Context, p string, data []byte) error {
	start := time.Now()
	info := object.NewStaticObjectInfo(p, time.Now(), int64(len(data)), true, nil, nil)
	_, err := b.rfs.Put(ctx, bytes.NewReader(data), info)
	b.observe("write", start, err)
	if err != nil {
		return fmt.Errorf("backend %s: write %q: %w", b.name, p, err)
	}
	metrics.BackendBytesWritten.WithLabelValues(b.name).Add(float64(len(data)))
	return nil
}

func (b *RcloneBackend) list(ctx context.Context, op, dir string) (fs.DirEntries, error) {
	start := time.Now()
	entries, err := b.rfs.List(ctx, dir)
	b.observe("list", start, err)
	return entries, b.fail(op, dir, err)
}

func (b *RcloneBackend) NewSequentialFile(ctx context.Context, name string, opts vfs.FileOptions) (vfs.SequentialFile, error) {
	ctx, cancel := vfs.WithTimeout(ctx, opts.IOOptions)
	defer cancel()
	obj, err := b.object(ctx, "NewSequentialFile", name)
	if err != nil {
		return nil, err
	}
	return &rcloneSequential{b: b, obj: obj}, nil
}

func (b *RcloneBackend) NewRandomAccessFile(ctx context.Context, name string, opts vfs.FileOptions) (vfs.RandomAccessFile, error) {
	ctx, cancel := vfs.WithTimeout(ctx, opts.IOOptions)
	defer cancel()
	obj, err := b.object(ctx, "NewRandomAccessFile", name)
	if err != nil {
		return nil, err
	}
	return &rcloneRandomAccess{b: b, obj: obj}, nil
}

// NewWritableFile uploads an empty object right away so the file exists
// before its first Sync.
func (b *RcloneBackend) NewWritableFile(ctx context.Context, name string, opts vfs.FileOptions) (vfs.WritableFile, error) {
	ctx, cancel := vfs.WithTimeout(ctx, opts.IOOptions)
	defer cancel()
	if err := b.put(ctx, name, nil); err != nil {
		return nil, err
	}
	return &rcloneWritable{b: b, path: name}, nil
}

func (b *RcloneBackend) NewRandomRWFile(_ context.Context, name string, _ vfs.FileOptions) (vfs.RandomRWFile, error) {
	return nil, fmt.Errorf("backend %s: NewRandomRWFile %q: %w", b.name, name, vfs.ErrNotSupported)
}

func (b *RcloneBackend) NewDirectory(ctx context.Context, name string, opts vfs.IOOptions) (vfs.Directory, error) {
	ctx, cancel := vfs.WithTimeout(ctx, opts)
	defer cancel()
	if _, err := b.list(ctx, "NewDirectory", name); err != nil {
		return nil, err
	}
	return rcloneDirectory{}, nil
}

func (b *RcloneBackend) GetChildren(ctx context.Context, dir string, opts vfs.IOOptions) ([]string, error) {
	ctx, cancel := vfs.WithTimeout(ctx, opts)
	defer cancel()
	entries, err := b.list(ctx, "GetChildren", dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, path.Base(entry.Remote()))
	}
	return names, nil
}

func (b *RcloneBackend) DeleteFile(ctx context.Context, name string, opts vfs.IOOptions) error {
	ctx, cancel := vfs.WithTimeout(ctx, opts)
	defer cancel()
	obj, err := b.object(ctx, "DeleteFile", name)
	if err != nil {
		return err
	}
	start := time.Now()
	err = obj.Remove(ctx)
	b.observe("delete", start, err)
	return b.fail("DeleteFile", name, err)
}

func (b *RcloneBackend) CreateDir(ctx context.Context, dirname string, opts vfs.IOOptions) error {
	ctx, cancel := vfs.WithTimeout(ctx, opts)
	defer cancel()
	if _, err := b.rfs.List(ctx, dirname); err == nil {
		return fmt.Errorf("backend %s: CreateDir %q: %w", b.name, dirname, vfs.ErrExist)
	}
	return b.mkdir(ctx, "CreateDir", dirname)
}

func (b *RcloneBackend) CreateDirIfMissing(ctx context.Context, dirname string, opts vfs.IOOptions) error {
	ctx, cancel := vfs.WithTimeout(ctx, opts)
	defer cancel()
	return b.mkdir(ctx, "CreateDirIfMissing", dirname)
}

func (b *RcloneBackend) mkdir(ctx context.Context, op, dirname string) error {
	start := time.Now()
	err := b.rfs.Mkdir(ctx, dirname)
	b.observe("mkdir", start, err)
	return b.fail(op, dirname, err)
}

func (b *RcloneBackend) DeleteDir(ctx context.Context, dirname string, opts vfs.IOOptions) error {
	ctx, cancel := vfs.WithTimeout(ctx, opts)
	defer cancel()
	start := time.Now()
	err := b.rfs.Rmdir(ctx, dirname)
	b.observe("rmdir", start, err)
	return b.fail("DeleteDir", dirname, err)
}

func (b *RcloneBackend) GetFileSize(ctx context.Context, name string, opts vfs.IOOptions) (uint64, error) {
	ctx, cancel := vfs.WithTimeout(ctx, opts)
	defer cancel()
	obj, err := b.object(ctx, "GetFileSize", name)
	if err != nil {
		return 0, err
	}
	return uint64(obj.Size()), nil
}

// FileExists accepts directories as well as objects.
func (b *RcloneBackend) FileExists(ctx context.Context, name string, opts vfs.IOOptions) error {
	ctx, cancel := vfs.WithTimeout(ctx, opts)
	defer cancel()
	start := time.Now()
	_, err := b.rfs.NewObject(ctx, name)
	b.observe("stat", start, err)
	switch {
	case err == nil, errors.Is(err, fs.ErrorIsDir), errors.Is(err, fs.ErrorNotAFile):
		return nil
	case errors.Is(err, fs.ErrorObjectNotFound):
		// Might be a directory; check by listing children.
		entries, listErr := b.rfs.List(ctx, name)
		if listErr == nil && len(entries) > 0 {
			return nil
		}
	}
	return b.fail("FileExists", name, err)
}

// RenameFile uses server-side move when the remote offers it, then
// server-side copy plus delete.
func (b *RcloneBackend) RenameFile(ctx context.Context, src, target string, opts vfs.IOOptions) error {
	ctx, cancel := vfs.WithTimeout(ctx, opts)
	defer cancel()
	obj, err := b.object(ctx, "RenameFile", src)
	if err != nil {
		return err
	}

	start := time.Now()
	features := b.rfs.Features()
	switch {
	case features.Move != nil:
		_, err = features.Move(ctx, obj, target)
	case features.Copy != nil:
		if _, err = features.Copy(ctx, obj, target); err == nil {
			err = obj.Remove(ctx)
		}
	default:
		err = vfs.ErrNotSupported
	}
	b.observe("rename", start, err)
	return b.fail("RenameFile", src, err)
}

// rcloneSequential issues one ranged read per call from its cursor, so it
// holds no open stream.
type rcloneSequential struct {
	b   *RcloneBackend
	obj fs.Object

	mu  sync.Mutex
	pos uint64
}

func (s *rcloneSequential) Read(ctx context.Context, n int, opts vfs.IOOptions, scratch []byte) ([]byte, error) {
	ctx, cancel := vfs.WithTimeout(ctx, opts)
	defer cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := vfs.Scratch(scratch, n)
	got, err := s.b.readRange(ctx, s.obj, buf, int64(s.pos))
	s.pos += uint64(got)
	return buf[:got], err
}

func (s *rcloneSequential) PositionedRead(ctx context.Context, offset uint64, n int, opts vfs.IOOptions, scratch []byte) ([]byte, error) {
	ctx, cancel := vfs.WithTimeout(ctx, opts)
	defer cancel()
	buf := vfs.Scratch(scratch, n)
	got, err := s.b.readRange(ctx, s.obj, buf, int64(offset))
	return buf[:got], err
}

func (s *rcloneSequential) Skip(n uint64) error {
	s.mu.Lock()
	s.pos += n
	s.mu.Unlock()
	return nil
}

func (s *rcloneSequential) InvalidateCache(_, _ uint64) error { return nil }

type rcloneRandomAccess struct {
	b   *RcloneBackend
	obj fs.Object
}

func (r *rcloneRandomAccess) Read(ctx context.Context, offset uint64, n int, opts vfs.IOOptions, scratch []byte) ([]byte, error) {
	ctx, cancel := vfs.WithTimeout(ctx, opts)
	defer cancel()
	buf := vfs.Scratch(scratch, n)
	got, err := r.b.readRange(ctx, r.obj, buf, int64(offset))
	return buf[:got], err
}

func (r *rcloneRandomAccess) MultiRead(ctx context.Context, reqs []vfs.ReadRequest, opts vfs.IOOptions) error {
	for i := range reqs {
		if err := ctx.Err(); err != nil {
			return err
		}
		reqs[i].Result, reqs[i].Status = r.Read(ctx, reqs[i].Offset, reqs[i].Len, opts, reqs[i].Scratch)
	}
	return nil
}

func (r *rcloneRandomAccess) Prefetch(context.Context, uint64, int, vfs.IOOptions) error {
	return vfs.ErrNotSupported
}

func (r *rcloneRandomAccess) InvalidateCache(_, _ uint64) error { return nil }

// rcloneWritable buffers the whole file and uploads it on Sync and Close.
type rcloneWritable struct {
	b    *RcloneBackend
	path string

	mu     sync.Mutex
	buf    []byte
	dirty  bool
	closed bool
}

func (w *rcloneWritable) Append(_ context.Context, data []byte, _ vfs.IOOptions) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("backend %s: Append %q: file closed", w.b.name, w.path)
	}
	w.buf = append(w.buf, data...)
	w.dirty = true
	return nil
}

func (w *rcloneWritable) PositionedAppend(_ context.Context, data []byte, offset uint64, _ vfs.IOOptions) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("backend %s: PositionedAppend %q: file closed", w.b.name, w.path)
	}
	if offset > uint64(len(w.buf)) {
		w.buf = append(w.buf, make([]byte, offset-uint64(len(w.buf)))...)
	}
	w.buf = append(w.buf[:offset], data...)
	w.dirty = true
	return nil
}

func (w *rcloneWritable) Truncate(_ context.Context, size uint64, _ vfs.IOOptions) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if size <= uint64(len(w.buf)) {
		w.buf = w.buf[:size]
	} else {
		w.buf = append(w.buf, make([]byte, size-uint64(len(w.buf)))...)
	}
	w.dirty = true
	return nil
}

func (w *rcloneWritable) Flush(context.Context, vfs.IOOptions) error { return nil }

func (w *rcloneWritable) Sync(ctx context.Context, opts vfs.IOOptions) error {
	ctx, cancel := vfs.WithTimeout(ctx, opts)
	defer cancel()
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.upload(ctx)
}

func (w *rcloneWritable) Close(ctx context.Context, opts vfs.IOOptions) error {
	ctx, cancel := vfs.WithTimeout(ctx, opts)
	defer cancel()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.upload(ctx)
}

// upload must be called with mu held.
func (w *rcloneWritable) upload(ctx context.Context) error {
	if !w.dirty {
		return nil
	}
	if err := w.b.put(ctx, w.path, w.buf); err != nil {
		return err
	}
	w.dirty = false
	return nil
}

func (w *rcloneWritable) GetFileSize(context.Context, vfs.IOOptions) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return uint64(len(w.buf))
}

func (w *rcloneWritable) InvalidateCache(_, _ uint64) error { return nil }

type rcloneDirectory struct{}

func (rcloneDirectory) Fsync(context.Context, vfs.IOOptions) error { return nil }
func (rcloneDirectory) Close(context.Context, vfs.IOOptions) error { return nil }

var (
	_ Backend              = (*RcloneBackend)(nil)
	_ vfs.SequentialFile   = (*rcloneSequential)(nil)
	_ vfs.RandomAccessFile = (*rcloneRandomAccess)(nil)
	_ vfs.WritableFile     = (*rcloneWritable)(nil)
	_ vfs.Directory        = rcloneDirectory{}
)
