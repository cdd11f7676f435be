// Package iotrace defines the trace record emitted for every traced file
// system call and the sink interface records are delivered to.
package iotrace

import "fmt"

// TraceType selects which payload fields of a Record are meaningful.
type TraceType int

const (
	TypeGeneral             TraceType = iota // outcome only
	TypeFileName                             // FileName
	TypeLen                                  // Len
	TypeLenAndOffset                         // Len, Offset
	TypeFileNameAndFileSize                  // FileName, FileSize
)

func (t TraceType) String() string {
	switch t {
	case TypeGeneral:
		return "general"
	case TypeFileName:
		return "named-resource"
	case TypeLen:
		return "length"
	case TypeLenAndOffset:
		return "length-and-offset"
	case TypeFileNameAndFileSize:
		return "named-resource-and-size"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// MarshalText encodes the type by name so stored traces stay readable.
func (t TraceType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a name produced by MarshalText.
func (t *TraceType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "general":
		*t = TypeGeneral
	case "named-resource":
		*t = TypeFileName
	case "length":
		*t = TypeLen
	case "length-and-offset":
		*t = TypeLenAndOffset
	case "named-resource-and-size":
		*t = TypeFileNameAndFileSize
	default:
		return fmt.Errorf("iotrace: unknown trace type %q", b)
	}
	return nil
}

// Operation names carried in Record.Operation.
const (
	OpNewSequentialFile   = "new-sequential-file"
	OpNewRandomAccessFile = "new-random-access-file"
	OpNewWritableFile     = "new-writable-file"
	OpNewRandomRWFile     = "new-random-rw-file"
	OpNewDirectory        = "new-directory"
	OpGetChildren         = "get-children"
	OpDeleteFile          = "delete-file"
	OpCreateDir           = "create-dir"
	OpCreateDirIfMissing  = "create-dir-if-missing"
	OpDeleteDir           = "delete-dir"
	OpGetFileSize         = "get-file-size"
	OpFileExists          = "file-exists"
	OpRenameFile          = "rename-file"

	OpRead             = "read"
	OpPositionedRead   = "positioned-read"
	OpSkip             = "skip"
	OpInvalidateCache  = "invalidate-cache"
	OpMultiRead        = "multi-read"
	OpPrefetch         = "prefetch"
	OpAppend           = "append"
	OpPositionedAppend = "positioned-append"
	OpTruncate         = "truncate"
	OpFlush            = "flush"
	OpSync             = "sync"
	OpClose            = "close"
	OpWrite            = "write"
)

// StatusOK is the IOStatus of a call that returned a nil error.
const StatusOK = "OK"

// Record describes one completed file system operation, or one request of
// a batched read. Timestamp and Latency are in microseconds; Timestamp is
// the completion time.
type Record struct {
	Timestamp uint64    `json:"ts"`
	Type      TraceType `json:"type"`
	Operation string    `json:"op"`
	Latency   uint64    `json:"latency_us"`
	IOStatus  string    `json:"status"`
	FileName  string    `json:"file,omitempty"`
	Len       uint64    `json:"len,omitempty"`
	Offset    uint64    `json:"offset,omitempty"`
	FileSize  uint64    `json:"file_size,omitempty"`
}

// Status renders a call's error the way it is stored in Record.IOStatus.
func Status(err error) string {
	if err == nil {
		return StatusOK
	}
	return err.Error()
}

// OK reports whether the record describes a successful call. Records that
// carry no status (writable-file size queries) count as successful.
func (r Record) OK() bool {
	return r.IOStatus == StatusOK || r.IOStatus == ""
}
