package tracing

import (
	"context"

	"github.com/warpdrive/fstrace/pkg/iotrace"
	"github.com/warpdrive/fstrace/pkg/vfs"
)

// RandomAccessFile traces a vfs.RandomAccessFile. Unlike SequentialFile,
// reads record the requested length regardless of how much was returned.
type RandomAccessFile struct {
	target vfs.RandomAccessFile
	tracer
}

var _ vfs.RandomAccessFile = (*RandomAccessFile)(nil)

func NewRandomAccessFile(target vfs.RandomAccessFile, sink iotrace.Sink, opts ...Option) *RandomAccessFile {
	return &RandomAccessFile{target: target, tracer: newTracer(sink, opts)}
}

func (f *RandomAccessFile) Read(ctx context.Context, offset uint64, n int, opts vfs.IOOptions, scratch []byte) ([]byte, error) {
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

// MultiRead times the batch once and emits one record per request, in
// request order, each carrying that request's own status.
func (f *RandomAccessFile) MultiRead(ctx context.Context, reqs []vfs.ReadRequest, opts vfs.IOOptions) error {
	start := f.now()
	err := f.target.MultiRead(ctx, reqs, opts)
	end := f.now()
	for i := range reqs {
		f.emit(start, end, iotrace.Record{
			Type:      iotrace.TypeLenAndOffset,
			Operation: iotrace.OpMultiRead,
			IOStatus:  iotrace.Status(reqs[i].Status),
			Len:       uint64(reqs[i].Len),
			Offset:    reqs[i].Offset,
		})
	}
	return err
}

func (f *RandomAccessFile) Prefetch(ctx context.Context, offset uint64, n int, opts vfs.IOOptions) error {
	start := f.now()
	err := f.target.Prefetch(ctx, offset, n, opts)
	end := f.now()
	f.emit(start, end, iotrace.Record{
		Type:      iotrace.TypeLenAndOffset,
		Operation: iotrace.OpPrefetch,
		IOStatus:  iotrace.Status(err),
		Len:       uint64(n),
		Offset:    offset,
	})
	return err
}

func (f *RandomAccessFile) InvalidateCache(offset, length uint64) error {
	start := f.now()
	err := f.target.InvalidateCache(offset, length)
	end := f.now()
	f.emit(start, end, invalidateRecord(offset, length, err))
	return err
}
