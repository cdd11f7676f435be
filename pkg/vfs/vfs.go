// Package vfs defines the file system abstraction the storage engine
// performs all of its I/O through.
//
// Status is reported as a Go error; nil means OK. Reads fill the prefix of
// the caller's scratch buffer and return it. A result shorter than the
// requested length with a nil error means end of file was reached.
//
// Read-only handles have no Close method of their own; implementations that
// hold resources for them also implement io.Closer.
package vfs

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a file or directory does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExist is returned when creating something that already exists.
	ErrExist = errors.New("already exists")

	// ErrNotSupported is returned by implementations that cannot perform
	// an operation, e.g. random writes on object storage.
	ErrNotSupported = errors.New("operation not supported")
)

// IOPriority hints how urgently an I/O should be served.
type IOPriority int

const (
	IOPriorityNormal IOPriority = iota
	IOPriorityLow
	IOPriorityHigh
)

// IOOptions carries per-call I/O settings.
type IOOptions struct {
	// Timeout bounds the call when non-zero.
	Timeout  time.Duration
	Priority IOPriority
}

// FileOptions carries settings used when opening a file.
type FileOptions struct {
	IOOptions
	// UseDirectReads/UseDirectWrites are hints; implementations may ignore them.
	UseDirectReads  bool
	UseDirectWrites bool
}

// FileSystem is the path-level interface of the storage engine's I/O.
type FileSystem interface {
	NewSequentialFile(ctx context.Context, name string, opts FileOptions) (SequentialFile, error)
	NewRandomAccessFile(ctx context.Context, name string, opts FileOptions) (RandomAccessFile, error)
	// NewWritableFile creates name, truncating it if it exists.
	NewWritableFile(ctx context.Context, name string, opts FileOptions) (WritableFile, error)
	// NewRandomRWFile opens name for reads and writes at arbitrary offsets,
	// creating it if missing.
	NewRandomRWFile(ctx context.Context, name string, opts FileOptions) (RandomRWFile, error)
	// NewDirectory opens an existing directory for fsync.
	NewDirectory(ctx context.Context, name string, opts IOOptions) (Directory, error)

	// GetChildren returns the names of the entries directly under dir.
	GetChildren(ctx context.Context, dir string, opts IOOptions) ([]string, error)
	DeleteFile(ctx context.Context, name string, opts IOOptions) error
	// CreateDir fails with ErrExist if dirname already exists.
	CreateDir(ctx context.Context, dirname string, opts IOOptions) error
	CreateDirIfMissing(ctx context.Context, dirname string, opts IOOptions) error
	DeleteDir(ctx context.Context, dirname string, opts IOOptions) error
	GetFileSize(ctx context.Context, name string, opts IOOptions) (uint64, error)
	// FileExists returns nil if name exists and ErrNotFound if it does not.
	FileExists(ctx context.Context, name string, opts IOOptions) error
	RenameFile(ctx context.Context, src, target string, opts IOOptions) error
}

// SequentialFile is read front to back through an implicit cursor.
type SequentialFile interface {
	// Read reads up to n bytes into scratch and advances the cursor.
	Read(ctx context.Context, n int, opts IOOptions, scratch []byte) ([]byte, error)
	// PositionedRead reads up to n bytes at offset without moving the cursor.
	PositionedRead(ctx context.Context, offset uint64, n int, opts IOOptions, scratch []byte) ([]byte, error)
	// Skip advances the cursor by n bytes.
	Skip(n uint64) error
	// InvalidateCache drops cached data for [offset, offset+length).
	InvalidateCache(offset, length uint64) error
}

// ReadRequest is one request of a batched read. The implementation fills
// Result and Status in place.
type ReadRequest struct {
	Offset  uint64
	Len     int
	Scratch []byte

	Result []byte
	Status error
}

// RandomAccessFile is read at explicit offsets.
type RandomAccessFile interface {
	Read(ctx context.Context, offset uint64, n int, opts IOOptions, scratch []byte) ([]byte, error)
	// MultiRead serves every request in reqs. Per-request outcomes are
	// reported through reqs[i].Status; the returned error describes the
	// batch as a whole.
	MultiRead(ctx context.Context, reqs []ReadRequest, opts IOOptions) error
	// Prefetch hints that [offset, offset+n) will be read soon.
	Prefetch(ctx context.Context, offset uint64, n int, opts IOOptions) error
	InvalidateCache(offset, length uint64) error
}

// WritableFile is written by appending.
type WritableFile interface {
	Append(ctx context.Context, data []byte, opts IOOptions) error
	PositionedAppend(ctx context.Context, data []byte, offset uint64, opts IOOptions) error
	Truncate(ctx context.Context, size uint64, opts IOOptions) error
	Flush(ctx context.Context, opts IOOptions) error
	Sync(ctx context.Context, opts IOOptions) error
	Close(ctx context.Context, opts IOOptions) error
	// GetFileSize returns the number of bytes written so far.
	GetFileSize(ctx context.Context, opts IOOptions) uint64
	InvalidateCache(offset, length uint64) error
}

// RandomRWFile is read and written at explicit offsets.
type RandomRWFile interface {
	Write(ctx context.Context, offset uint64, data []byte, opts IOOptions) error
	Read(ctx context.Context, offset uint64, n int, opts IOOptions, scratch []byte) ([]byte, error)
	Flush(ctx context.Context, opts IOOptions) error
	Sync(ctx context.Context, opts IOOptions) error
	Close(ctx context.Context, opts IOOptions) error
}

// Directory is an open directory handle.
type Directory interface {
	Fsync(ctx context.Context, opts IOOptions) error
	Close(ctx context.Context, opts IOOptions) error
}

// WithTimeout derives a context bounded by opts.Timeout, if set.
func WithTimeout(ctx context.Context, opts IOOptions) (context.Context, context.CancelFunc) {
	if opts.Timeout > 0 {
		return context.WithTimeout(ctx, opts.Timeout)
	}
	return ctx, func() {}
}

// Scratch returns buf if it can hold n bytes, otherwise a new buffer.
func Scratch(buf []byte, n int) []byte {
	if cap(buf) >= n {
		return buf[:n]
	}
	return make([]byte, n)
}
