package obexfs

import "syscall"

// responseErrno maps an OBEX response code (high bit set, low 7 bits
// is the actual status) to a POSIX errno, mirroring set_errno in the
// original transport.c companion. Anything below 0x30 isn't a valid
// final response and maps to EPROTO; anything not in the table maps
// to a generic EIO.
var responseErrno = map[byte]syscall.Errno{
	0x40: syscall.EINVAL,
	0x41: syscall.EACCES,
	0x43: syscall.EACCES,
	0x44: syscall.ENOENT,
	0x45: syscall.EINVAL,
	0x46: syscall.EPERM,
	0x48: syscall.ETIMEDOUT,
	0x49: syscall.EINVAL,
	0x4d: syscall.EFBIG,
	0x4f: syscall.EIO,
	0x50: syscall.EIO,
	0x51: syscall.ENOSYS,
	0x53: syscall.ENODEV,
	0x60: syscall.ENOSPC,
	0x61: syscall.EBUSY,
}

// errnoForResponse converts a raw OBEX response byte into the errno a
// caller should see. Success codes (0x90 continue, 0xa0 OK, 0xa4 end
// of list) are not errors; callers check those before consulting this.
func errnoForResponse(resp byte) syscall.Errno {
	r := resp & 0x7f
	if r < 0x30 {
		return syscall.EPROTO
	}
	if errno, ok := responseErrno[r]; ok {
		return errno
	}
	return syscall.EIO
}

const (
	respContinue = 0x90
	respOK       = 0xa0
	respEndOfBody = 0xa4
)

func isSuccess(resp byte) bool {
	return resp == respContinue || resp == respOK
}
