package tracing

import (
	"context"

	"github.com/warpdrive/fstrace/pkg/iotrace"
	"github.com/warpdrive/fstrace/pkg/vfs"
)

// FileSystem traces the path-level operations of a vfs.FileSystem.
// Handles returned by the New* methods are the target's own; wrap them with
// NewSequentialFile and friends to trace their I/O.
type FileSystem struct {
	target vfs.FileSystem
	tracer
}

var _ vfs.FileSystem = (*FileSystem)(nil)

// NewFileSystem wraps target, reporting to sink. A nil sink discards records.
func NewFileSystem(target vfs.FileSystem, sink iotrace.Sink, opts ...Option) *FileSystem {
	return &FileSystem{target: target, tracer: newTracer(sink, opts)}
}

// Target returns the wrapped file system.
func (fsys *FileSystem) Target() vfs.FileSystem { return fsys.target }

func (fsys *FileSystem) named(start, end uint64, op, name string, err error) {
	fsys.emit(start, end, iotrace.Record{
		Type:      iotrace.TypeFileName,
		Operation: op,
		IOStatus:  iotrace.Status(err),
		FileName:  name,
	})
}

func (fsys *FileSystem) NewSequentialFile(ctx context.Context, name string, opts vfs.FileOptions) (vfs.SequentialFile, error) {
	start := fsys.now()
	f, err := fsys.target.NewSequentialFile(ctx, name, opts)
	end := fsys.now()
	fsys.named(start, end, iotrace.OpNewSequentialFile, name, err)
	return f, err
}

func (fsys *FileSystem) NewRandomAccessFile(ctx context.Context, name string, opts vfs.FileOptions) (vfs.RandomAccessFile, error) {
	start := fsys.now()
	f, err := fsys.target.NewRandomAccessFile(ctx, name, opts)
	end := fsys.now()
	fsys.named(start, end, iotrace.OpNewRandomAccessFile, name, err)
	return f, err
}

func (fsys *FileSystem) NewWritableFile(ctx context.Context, name string, opts vfs.FileOptions) (vfs.WritableFile, error) {
	start := fsys.now()
	f, err := fsys.target.NewWritableFile(ctx, name, opts)
	end := fsys.now()
	fsys.named(start, end, iotrace.OpNewWritableFile, name, err)
	return f, err
}

func (fsys *FileSystem) NewRandomRWFile(ctx context.Context, name string, opts vfs.FileOptions) (vfs.RandomRWFile, error) {
	start := fsys.now()
	f, err := fsys.target.NewRandomRWFile(ctx, name, opts)
	end := fsys.now()
	fsys.named(start, end, iotrace.OpNewRandomRWFile, name, err)
	return f, err
}

func (fsys *FileSystem) NewDirectory(ctx context.Context, name string, opts vfs.IOOptions) (vfs.Directory, error) {
	start := fsys.now()
	d, err := fsys.target.NewDirectory(ctx, name, opts)
	end := fsys.now()
	fsys.named(start, end, iotrace.OpNewDirectory, name, err)
	return d, err
}

func (fsys *FileSystem) GetChildren(ctx context.Context, dir string, opts vfs.IOOptions) ([]string, error) {
	start := fsys.now()
	children, err := fsys.target.GetChildren(ctx, dir, opts)
	end := fsys.now()
	fsys.named(start, end, iotrace.OpGetChildren, dir, err)
	return children, err
}

func (fsys *FileSystem) DeleteFile(ctx context.Context, name string, opts vfs.IOOptions) error {
	start := fsys.now()
	err := fsys.target.DeleteFile(ctx, name, opts)
	end := fsys.now()
	fsys.named(start, end, iotrace.OpDeleteFile, name, err)
	return err
}

func (fsys *FileSystem) CreateDir(ctx context.Context, dirname string, opts vfs.IOOptions) error {
	start := fsys.now()
	err := fsys.target.CreateDir(ctx, dirname, opts)
	end := fsys.now()
	fsys.named(start, end, iotrace.OpCreateDir, dirname, err)
	return err
}

func (fsys *FileSystem) CreateDirIfMissing(ctx context.Context, dirname string, opts vfs.IOOptions) error {
	start := fsys.now()
	err := fsys.target.CreateDirIfMissing(ctx, dirname, opts)
	end := fsys.now()
	fsys.named(start, end, iotrace.OpCreateDirIfMissing, dirname, err)
	return err
}

func (fsys *FileSystem) DeleteDir(ctx context.Context, dirname string, opts vfs.IOOptions) error {
	start := fsys.now()
	err := fsys.target.DeleteDir(ctx, dirname, opts)
	end := fsys.now()
	fsys.named(start, end, iotrace.OpDeleteDir, dirname, err)
	return err
}

// GetFileSize records the size the target returned, even on failure.
func (fsys *FileSystem) GetFileSize(ctx context.Context, name string, opts vfs.IOOptions) (uint64, error) {
	start := fsys.now()
	size, err := fsys.target.GetFileSize(ctx, name, opts)
	end := fsys.now()
	fsys.emit(start, end, iotrace.Record{
		Type:      iotrace.TypeFileNameAndFileSize,
		Operation: iotrace.OpGetFileSize,
		IOStatus:  iotrace.Status(err),
		FileName:  name,
		FileSize:  size,
	})
	return size, err
}

func (fsys *FileSystem) FileExists(ctx context.Context, name string, opts vfs.IOOptions) error {
	start := fsys.now()
	err := fsys.target.FileExists(ctx, name, opts)
	end := fsys.now()
	fsys.named(start, end, iotrace.OpFileExists, name, err)
	return err
}

// RenameFile records the source path.
func (fsys *FileSystem) RenameFile(ctx context.Context, src, target string, opts vfs.IOOptions) error {
	start := fsys.now()
	err := fsys.target.RenameFile(ctx, src, target, opts)
	end := fsys.now()
	fsys.named(start, end, iotrace.OpRenameFile, src, err)
	return err
}
