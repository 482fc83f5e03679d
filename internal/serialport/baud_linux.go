package serialport

import "golang.org/x/sys/unix"

// termiosSetOp mirrors TCSETS: apply immediately, matching siefs'
// comm.c which never needs TCSADRAIN/TCSAFLUSH semantics.
const termiosSetOp = unix.TCSETS

// baudConstant maps a numeric baud rate to the termios CBAUD
// constant for it. Two rates in the BFB rate-change table (230000,
// 460000) are not standard POSIX bauds — unix.B230400/unix.B460800
// are the closest kernel constants, but they name different numeric
// rates, so 230000/460000 intentionally have no entry here and are
// rejected as invalid rather than silently remapped (spec.md §9 open
// question).
func baudConstant(baud int) (uint32, bool) {
	switch baud {
	case 0:
		return unix.B0, true
	case 1200:
		return unix.B1200, true
	case 2400:
		return unix.B2400, true
	case 4800:
		return unix.B4800, true
	case 9600:
		return unix.B9600, true
	case 19200:
		return unix.B19200, true
	case 38400:
		return unix.B38400, true
	case 57600:
		return unix.B57600, true
	case 115200:
		return unix.B115200, true
	case 230400:
		return unix.B230400, true
	case 460800:
		return unix.B460800, true
	default:
		return 0, false
	}
}
