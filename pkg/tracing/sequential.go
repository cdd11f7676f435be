package tracing

import (
	"context"

	"github.com/warpdrive/fstrace/pkg/iotrace"
	"github.com/warpdrive/fstrace/pkg/vfs"
)

// SequentialFile traces a vfs.SequentialFile. Reads record the number of
// bytes actually returned, not the number requested.
type SequentialFile struct {
	target vfs.SequentialFile
	tracer
}

var _ vfs.SequentialFile = (*SequentialFile)(nil)

func NewSequentialFile(target vfs.SequentialFile, sink iotrace.Sink, opts ...Option) *SequentialFile {
	return &SequentialFile{target: target, tracer: newTracer(sink, opts)}
}

func (f *SequentialFile) Read(ctx context.Context, n int, opts vfs.IOOptions, scratch []byte) ([]byte, error) {
	start := f.now()
	result, err := f.target.Read(ctx, n, opts, scratch)
	end := f.now()
	f.emit(start, end, iotrace.Record{
		Type:      iotrace.TypeLen,
		Operation: iotrace.OpRead,
		IOStatus:  iotrace.Status(err),
		Len:       uint64(len(result)),
	})
	return result, err
}

func (f *SequentialFile) PositionedRead(ctx context.Context, offset uint64, n int, opts vfs.IOOptions, scratch []byte) ([]byte, error) {
	start := f.now()
	result, err := f.target.PositionedRead(ctx, offset, n, opts, scratch)
	end := f.now()
	f.emit(start, end, iotrace.Record{
		Type:      iotrace.TypeLenAndOffset,
		Operation: iotrace.OpPositionedRead,
		IOStatus:  iotrace.Status(err),
		Len:       uint64(len(result)),
		Offset:    offset,
	})
	return result, err
}

func (f *SequentialFile) Skip(n uint64) error {
	start := f.now()
	err := f.target.Skip(n)
	end := f.now()
	f.emit(start, end, iotrace.Record{
		Type:      iotrace.TypeLen,
		Operation: iotrace.OpSkip,
		IOStatus:  iotrace.Status(err),
		Len:       n,
	})
	return err
}

func (f *SequentialFile) InvalidateCache(offset, length uint64) error {
	start := f.now()
	err := f.target.InvalidateCache(offset, length)
	end := f.now()
	f.emit(start, end, invalidateRecord(offset, length, err))
	return err
}

func invalidateRecord(offset, length uint64, err error) iotrace.Record {
	return iotrace.Record{
		Type:      iotrace.TypeLenAndOffset,
		Operation: iotrace.OpInvalidateCache,
		IOStatus:  iotrace.Status(err),
		Len:       length,
		Offset:    offset,
	}
}
