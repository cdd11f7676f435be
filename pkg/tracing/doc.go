// Package tracing wraps vfs file systems and file handles so that every
// call is timed and reported to an iotrace.Sink.
//
// A wrapper forwards each call to its target unchanged and returns the
// target's results unchanged, including error values. Around the call it
// reads the clock twice and emits one record; a batched read emits one
// record per request. Sink errors are ignored. Wrappers add no locking and
// are exactly as safe for concurrent use as their targets.
//
//	fsys := tracing.NewFileSystem(target, tracer)
//	f, err := fsys.NewRandomAccessFile(ctx, "000042.sst", vfs.FileOptions{})
//	if err != nil {
//	    return err
//	}
//	rf := tracing.NewRandomAccessFile(f, tracer)
package tracing
