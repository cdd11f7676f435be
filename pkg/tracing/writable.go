package tracing

import (
	"context"

	"github.com/warpdrive/fstrace/pkg/iotrace"
	"github.com/warpdrive/fstrace/pkg/vfs"
)

// WritableFile traces a vfs.WritableFile. Appends record the number of
// bytes submitted.
type WritableFile struct {
	target vfs.WritableFile
	tracer
}

var _ vfs.WritableFile = (*WritableFile)(nil)

func NewWritableFile(target vfs.WritableFile, sink iotrace.Sink, opts ...Option) *WritableFile {
	return &WritableFile{target: target, tracer: newTracer(sink, opts)}
}

func (f *WritableFile) Append(ctx context.Context, data []byte, opts vfs.IOOptions) error {
	start := f.now()
	err := f.target.Append(ctx, data, opts)
	end := f.now()
	f.emit(start, end, iotrace.Record{
		Type:      iotrace.TypeLen,
		Operation: iotrace.OpAppend,
		IOStatus:  iotrace.Status(err),
		Len:       uint64(len(data)),
	})
	return err
}

func (f *WritableFile) PositionedAppend(ctx context.Context, data []byte, offset uint64, opts vfs.IOOptions) error {
	start := f.now()
	err := f.target.PositionedAppend(ctx, data, offset, opts)
	end := f.now()
	f.emit(start, end, iotrace.Record{
		Type:      iotrace.TypeLenAndOffset,
		Operation: iotrace.OpPositionedAppend,
		IOStatus:  iotrace.Status(err),
		Len:       uint64(len(data)),
		Offset:    offset,
	})
	return err
}

func (f *WritableFile) Truncate(ctx context.Context, size uint64, opts vfs.IOOptions) error {
	start := f.now()
	err := f.target.Truncate(ctx, size, opts)
	end := f.now()
	f.emit(start, end, iotrace.Record{
		Type:      iotrace.TypeLen,
		Operation: iotrace.OpTruncate,
		IOStatus:  iotrace.Status(err),
		Len:       size,
	})
	return err
}

func (f *WritableFile) Flush(ctx context.Context, opts vfs.IOOptions) error {
	start := f.now()
	err := f.target.Flush(ctx, opts)
	end := f.now()
	f.emit(start, end, generalRecord(iotrace.OpFlush, err))
	return err
}

func (f *WritableFile) Sync(ctx context.Context, opts vfs.IOOptions) error {
	start := f.now()
	err := f.target.Sync(ctx, opts)
	end := f.now()
	f.emit(start, end, generalRecord(iotrace.OpSync, err))
	return err
}

func (f *WritableFile) Close(ctx context.Context, opts vfs.IOOptions) error {
	start := f.now()
	err := f.target.Close(ctx, opts)
	end := f.now()
	f.emit(start, end, generalRecord(iotrace.OpClose, err))
	return err
}

// GetFileSize reports no status, so the record's IOStatus stays empty and
// its file name is blank.
func (f *WritableFile) GetFileSize(ctx context.Context, opts vfs.IOOptions) uint64 {
	start := f.now()
	size := f.target.GetFileSize(ctx, opts)
	end := f.now()
	f.emit(start, end, iotrace.Record{
		Type:      iotrace.TypeFileNameAndFileSize,
		Operation: iotrace.OpGetFileSize,
		FileSize:  size,
	})
	return size
}

func (f *WritableFile) InvalidateCache(offset, length uint64) error {
	start := f.now()
	err := f.target.InvalidateCache(offset, length)
	end := f.now()
	f.emit(start, end, invalidateRecord(offset, length, err))
	return err
}

func generalRecord(op string, err error) iotrace.Record {
	return iotrace.Record{
		Type:      iotrace.TypeGeneral,
		Operation: op,
		IOStatus:  iotrace.Status(err),
	}
}
