package tracing

import (
	"context"

	"github.com/warpdrive/fstrace/pkg/iotrace"
	"github.com/warpdrive/fstrace/pkg/vfs"
)

// RandomRWFile traces a vfs.RandomRWFile.
type RandomRWFile struct {
	target vfs.RandomRWFile
	tracer
}

var _ vfs.RandomRWFile = (*RandomRWFile)(nil)

func NewRandomRWFile(target vfs.RandomRWFile, sink iotrace.Sink, opts ...Option) *RandomRWFile {
	return &RandomRWFile{target: target, tracer: newTracer(sink, opts)}
}

func (f *RandomRWFile) Write(ctx context.Context, offset uint64, data []byte, opts vfs.IOOptions) error {
	start := f.now()
	err := f.target.Write(ctx, offset, data, opts)
	end := f.now()
	f.emit(start, end, iotrace.Record{
		Type:      iotrace.TypeLenAndOffset,
		Operation: iotrace.OpWrite,
		IOStatus:  iotrace.Status(err),
		Len:       uint64(len(data)),
		Offset:    offset,
	})
	return err
}

func (f *RandomRWFile) Read(ctx context.Context, offset uint64, n int, opts vfs.IOOptions, scratch []byte) ([]byte, error) {
	start := f.now()
	result, err := f.target.Read(ctx, offset, n, opts, scratch)
	end := f.now()
	f.emit(start, end, iotrace.Record{
		Type:      iotrace.TypeLenAndOffset,
		Operation: iotrace.OpRead,
		IOStatus:  iotrace.Status(err),
		Len:       uint64(n),
		Offset:    offset,
	})
	return result, err
}

func (f *RandomRWFile) Flush(ctx context.Context, opts vfs.IOOptions) error {
	start := f.now()
	err := f.target.Flush(ctx, opts)
	end := f.now()
	f.emit(start, end, generalRecord(iotrace.OpFlush, err))
	return err
}

func (f *RandomRWFile) Sync(ctx context.Context, opts vfs.IOOptions) error {
	start := f.now()
	err := f.target.Sync(ctx, opts)
	end := f.now()
	f.emit(start, end, generalRecord(iotrace.OpSync, err))
	return err
}

func (f *RandomRWFile) Close(ctx context.Context, opts vfs.IOOptions) error {
	start := f.now()
	err := f.target.Close(ctx, opts)
	end := f.now()
	f.emit(start, end, generalRecord(iotrace.OpClose, err))
	return err
}
