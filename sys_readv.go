package znet

import (
	"syscall"
	"unsafe"
)

// barriercap bounds how many discontiguous segments a single readv/
// sendmsg call will gather in one barrier, matching common IOV_MAX
// conventions.
const barriercap = 16

// barrier holds the byte-slice/iovec scratch space a poller reuses
// across readv/sendmsg calls for one fd, avoiding a fresh allocation per
// event.
type barrier struct {
	bs  [][]byte
	ivs []syscall.Iovec
}

// iovecs fills ivs from the non-empty slices in bs and returns how many
// entries were written, the same bookkeeping sendmsg does in
// sys_sendmsg.go.
func iovecs(bs [][]byte, ivs []syscall.Iovec) (iovLen int) {
	for i := range bs {
		l := len(bs[i])
		if l == 0 {
			continue
		}
		ivs[iovLen].SetLen(l)
		ivs[iovLen].Base = &bs[i][0]
		iovLen++
	}
	return iovLen
}

// resetIovecs drops the slice/pointer references iovecs set, so neither
// bs nor ivs pins buffers past the syscall that used them.
func resetIovecs(bs [][]byte, ivs []syscall.Iovec) {
	for i := range bs {
		bs[i] = nil
	}
	for i := range ivs {
		ivs[i].Base = nil
	}
}

// readv reads from fd into bs via readv(2), the input-side counterpart
// to sys_sendmsg.go's sendmsg.
func readv(fd int, bs [][]byte, ivs []syscall.Iovec) (n int, err error) {
	iovLen := iovecs(bs, ivs)
	if iovLen == 0 {
		return 0, nil
	}
	r, _, e := syscall.RawSyscall(syscall.SYS_READV, uintptr(fd), uintptr(unsafe.Pointer(&ivs[0])), uintptr(iovLen))
	resetIovecs(bs, ivs[:iovLen])
	if e != 0 {
		return int(r), syscall.Errno(e)
	}
	return int(r), nil
}
