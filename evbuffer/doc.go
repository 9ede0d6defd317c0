// Package evbuffer implements a chained, segmented byte buffer for
// zero-copy staging of data between application code and OS I/O.
//
// A Buffer is a FIFO byte queue backed by a singly linked chain of
// segments. Producers Add bytes (copied, referenced, transferred from
// another Buffer, or read from a file descriptor) to the tail; consumers
// Remove/Drain bytes from the head, or Write them straight out to a file
// descriptor. Buffers never move live bytes to satisfy an Add — only
// Pullup copies data to make it contiguous, and only when asked.
//
// Buffer is safe for concurrent use only after EnableLocking has been
// called; by default it is single-threaded from the caller's perspective.
package evbuffer
