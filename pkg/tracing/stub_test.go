package tracing

import (
	"context"

	"github.com/warpdrive/fstrace/pkg/vfs"
)

// Stub targets return whatever their fields say and count calls, so tests
// can compare wrapper results against the target's.

type stubFS struct {
	err      error
	size     uint64
	children []string
	seq      vfs.SequentialFile
	ra       vfs.RandomAccessFile
	wf       vfs.WritableFile
	rw       vfs.RandomRWFile
	dir      vfs.Directory
	calls    int
	lastName string
}

func (s *stubFS) NewSequentialFile(_ context.Context, name string, _ vfs.FileOptions) (vfs.SequentialFile, error) {
	s.calls++
	s.lastName = name
	return s.seq, s.err
}

func (s *stubFS) NewRandomAccessFile(_ context.Context, name string, _ vfs.FileOptions) (vfs.RandomAccessFile, error) {
	s.calls++
	s.lastName = name
	return s.ra, s.err
}

func (s *stubFS) NewWritableFile(_ context.Context, name string, _ vfs.FileOptions) (vfs.WritableFile, error) {
	s.calls++
	s.lastName = name
	return s.wf, s.err
}

func (s *stubFS) NewRandomRWFile(_ context.Context, name string, _ vfs.FileOptions) (vfs.RandomRWFile, error) {
	s.calls++
	s.lastName = name
	return s.rw, s.err
}

func (s *stubFS) NewDirectory(_ context.Context, name string, _ vfs.IOOptions) (vfs.Directory, error) {
	s.calls++
	s.lastName = name
	return s.dir, s.err
}

func (s *stubFS) GetChildren(_ context.Context, dir string, _ vfs.IOOptions) ([]string, error) {
	s.calls++
	s.lastName = dir
	return s.children, s.err
}

func (s *stubFS) DeleteFile(_ context.Context, name string, _ vfs.IOOptions) error {
	s.calls++
	s.lastName = name
	return s.err
}

func (s *stubFS) CreateDir(_ context.Context, dirname string, _ vfs.IOOptions) error {
	s.calls++
	s.lastName = dirname
	return s.err
}

func (s *stubFS) CreateDirIfMissing(_ context.Context, dirname string, _ vfs.IOOptions) error {
	s.calls++
	s.lastName = dirname
	return s.err
}

func (s *stubFS) DeleteDir(_ context.Context, dirname string, _ vfs.IOOptions) error {
	s.calls++
	s.lastName = dirname
	return s.err
}

func (s *stubFS) GetFileSize(_ context.Context, name string, _ vfs.IOOptions) (uint64, error) {
	s.calls++
	s.lastName = name
	return s.size, s.err
}

func (s *stubFS) FileExists(_ context.Context, name string, _ vfs.IOOptions) error {
	s.calls++
	s.lastName = name
	return s.err
}

func (s *stubFS) RenameFile(_ context.Context, src, _ string, _ vfs.IOOptions) error {
	s.calls++
	s.lastName = src
	return s.err
}

// stubReader serves reads from data and fails with err when set.
type stubReader struct {
	data  []byte
	pos   int
	err   error
	calls int
}

func (s *stubReader) readAt(off uint64, n int, scratch []byte) []byte {
	if off >= uint64(len(s.data)) {
		return scratch[:0]
	}
	end := int(off) + n
	if end > len(s.data) {
		end = len(s.data)
	}
	scratch = vfs.Scratch(scratch, end-int(off))
	copy(scratch, s.data[off:end])
	return scratch
}

func (s *stubReader) Read(_ context.Context, n int, _ vfs.IOOptions, scratch []byte) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return scratch[:0], s.err
	}
	out := s.readAt(uint64(s.pos), n, scratch)
	s.pos += len(out)
	return out, nil
}

func (s *stubReader) PositionedRead(_ context.Context, offset uint64, n int, _ vfs.IOOptions, scratch []byte) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return scratch[:0], s.err
	}
	return s.readAt(offset, n, scratch), nil
}

func (s *stubReader) Skip(n uint64) error {
	s.calls++
	s.pos += int(n)
	return s.err
}

func (s *stubReader) InvalidateCache(_, _ uint64) error {
	s.calls++
	return s.err
}

// stubRandomAccess fails reads whose offset is in failAt.
type stubRandomAccess struct {
	stubReader
	failAt   map[uint64]error
	batchErr error
	prefetch error
}

func (s *stubRandomAccess) Read(_ context.Context, offset uint64, n int, _ vfs.IOOptions, scratch []byte) ([]byte, error) {
	s.calls++
	if err := s.failAt[offset]; err != nil {
		return scratch[:0], err
	}
	return s.readAt(offset, n, scratch), nil
}

func (s *stubRandomAccess) MultiRead(_ context.Context, reqs []vfs.ReadRequest, _ vfs.IOOptions) error {
	s.calls++
	for i := range reqs {
		if err := s.failAt[reqs[i].Offset]; err != nil {
			reqs[i].Result = nil
			reqs[i].Status = err
			continue
		}
		reqs[i].Result = s.readAt(reqs[i].Offset, reqs[i].Len, reqs[i].Scratch)
		reqs[i].Status = nil
	}
	return s.batchErr
}

func (s *stubRandomAccess) Prefetch(_ context.Context, _ uint64, _ int, _ vfs.IOOptions) error {
	s.calls++
	return s.prefetch
}

type stubWritable struct {
	buf   []byte
	err   error
	size  uint64
	calls int
}

func (s *stubWritable) Append(_ context.Context, data []byte, _ vfs.IOOptions) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.buf = append(s.buf, data...)
	return nil
}

func (s *stubWritable) PositionedAppend(_ context.Context, data []byte, offset uint64, _ vfs.IOOptions) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.buf = append(s.buf[:offset], data...)
	return nil
}

func (s *stubWritable) Truncate(_ context.Context, size uint64, _ vfs.IOOptions) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.buf = s.buf[:size]
	return nil
}

func (s *stubWritable) Flush(context.Context, vfs.IOOptions) error { s.calls++; return s.err }
func (s *stubWritable) Sync(context.Context, vfs.IOOptions) error  { s.calls++; return s.err }
func (s *stubWritable) Close(context.Context, vfs.IOOptions) error { s.calls++; return s.err }

func (s *stubWritable) GetFileSize(context.Context, vfs.IOOptions) uint64 {
	s.calls++
	if s.size != 0 {
		return s.size
	}
	return uint64(len(s.buf))
}

func (s *stubWritable) InvalidateCache(_, _ uint64) error { s.calls++; return s.err }

type stubRW struct {
	stubReader
	written map[uint64][]byte
}

func (s *stubRW) Write(_ context.Context, offset uint64, data []byte, _ vfs.IOOptions) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	if s.written == nil {
		s.written = make(map[uint64][]byte)
	}
	s.written[offset] = append([]byte(nil), data...)
	return nil
}

func (s *stubRW) Read(_ context.Context, offset uint64, n int, _ vfs.IOOptions, scratch []byte) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return scratch[:0], s.err
	}
	return s.readAt(offset, n, scratch), nil
}

func (s *stubRW) Flush(context.Context, vfs.IOOptions) error { s.calls++; return s.err }
func (s *stubRW) Sync(context.Context, vfs.IOOptions) error  { s.calls++; return s.err }
func (s *stubRW) Close(context.Context, vfs.IOOptions) error { s.calls++; return s.err }

type stubDir struct{}

func (stubDir) Fsync(context.Context, vfs.IOOptions) error { return nil }
func (stubDir) Close(context.Context, vfs.IOOptions) error { return nil }
