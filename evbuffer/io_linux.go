//go:build linux
// +build linux

package evbuffer

import "golang.org/x/sys/unix"

// platformSendFile emits up to max bytes of a file segment to fd via
// sendfile(2), the kernel-level zero-copy path for file-to-socket
// transfer (spec §6).
func platformSendFile(fd int, seg *segment, max int) (int, error) {
	length := max
	if length > seg.off {
		length = seg.off
	}
	if length <= 0 {
		return 0, nil
	}
	offset := seg.fileOff
	n, err := unix.Sendfile(fd, seg.fd, &offset, length)
	return n, err
}
