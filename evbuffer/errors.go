package evbuffer

import (
	"errors"
	"fmt"
)

// Error kinds reported by this package (spec §7). Each is a distinct
// sentinel so callers can errors.Is against the kind they care about;
// IoError additionally wraps the syscall-level cause.
var (
	// ErrOutOfMemory names the out-of-memory error kind. Go's allocator
	// does not hand back a recoverable failure the way C's malloc does
	// (true OOM panics the process), and the package has no configurable
	// capacity bound, so no operation currently returns it.
	ErrOutOfMemory = errors.New("evbuffer: out of memory")

	// ErrFrozen is returned when a mutation is rejected by the front or
	// back freeze gate.
	ErrFrozen = errors.New("evbuffer: buffer frozen")

	// ErrBadArgument is returned for invalid arguments: negative
	// lengths, a CommitSpace larger than the outstanding reservation, a
	// PtrSet past the end of the buffer, and similar.
	ErrBadArgument = errors.New("evbuffer: bad argument")

	// ErrIoError is returned when an I/O syscall fails outright (not a
	// short read/write, which is not an error). Use errors.Is or
	// errors.As against the underlying syscall.Errno for details.
	ErrIoError = errors.New("evbuffer: io error")

	// ErrUnsupportedOnSegmentKind is returned when Pullup or Remove
	// would need to copy through a FILESEGMENT, which is opaque to
	// copy-based readers, and when Pullup would need to merge a
	// MEMORY_PINNED segment.
	ErrUnsupportedOnSegmentKind = errors.New("evbuffer: unsupported on segment kind")
)

func ioError(cause error) error {
	return fmt.Errorf("%w: %w", ErrIoError, cause)
}
