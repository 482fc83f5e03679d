// Package serialport opens and drives the raw serial device that
// carries the phone link. It knows nothing about BFB, QWE3 or OBEX;
// it only offers blocking, timeout-bounded byte I/O plus the AT
// dialog helpers the transport layer uses during link discovery.
package serialport

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

var log = logrus.WithField("component", "serial")

// Port wraps a raw serial device in raw, 8N1, odd-parity mode with an
// inter-byte read timeout expressed in deciseconds (VTIME units). The
// file descriptor is driven with direct syscall.Read/Write, not
// os.File, because the kernel's VMIN=0/VTIME timeout only behaves as
// a short-read on a descriptor the Go runtime isn't multiplexing
// through its network poller.
//
// Invariant: fd is open and valid for the whole lifetime of a live
// Port; Speed and Timeout mirror what was last pushed to the kernel
// via Restore.
type Port struct {
	path    string
	fd      int
	speed   int
	timeout int // deciseconds
	lineBuf []byte
}

// Open opens device at the given initial baud and inter-byte timeout
// (deciseconds) and puts it in raw mode.
func Open(device string, speed int, timeoutDeciseconds int) (*Port, error) {
	fd, err := syscall.Open(device, syscall.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", device, err)
	}
	p := &Port{path: device, fd: fd, speed: speed, timeout: timeoutDeciseconds}
	if err := p.Restore(); err != nil {
		_ = syscall.Close(fd)
		return nil, err
	}
	return p, nil
}

// Restore fully re-initialises the port: parity-odd, 8N1, no modem
// control, local, receiver enabled, raw mode, VMIN=0 VTIME=Timeout,
// at the stored Speed. Used after a device hiccup (e.g. an unplugged
// phone) to bring the line back to a known state without losing the
// caller's configuration.
func (p *Port) Restore() error {
	cflag, ok := baudConstant(p.speed)
	if !ok {
		return fmt.Errorf("serialport: invalid baud %d: %w", p.speed, syscall.EINVAL)
	}
	t := unix.Termios{
		Cflag: cflag | unix.CS8 | unix.CREAD | unix.CLOCAL | unix.PARENB | unix.PARODD,
	}
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = uint8(clampDeciseconds(p.timeout))
	if err := unix.IoctlSetTermios(p.fd, termiosSetOp, &t); err != nil {
		return fmt.Errorf("serialport: set termios: %w", err)
	}
	log.WithFields(logrus.Fields{"device": p.path, "speed": p.speed, "timeout_ds": p.timeout}).Debug("restored port")
	return nil
}

func clampDeciseconds(d int) int {
	if d < 0 {
		return 0
	}
	if d > 255 {
		return 255
	}
	return d
}

// SetSpeed changes the stored baud and reapplies it via Restore.
func (p *Port) SetSpeed(speed int) error {
	if _, ok := baudConstant(speed); !ok {
		return fmt.Errorf("serialport: unsupported baud %d: %w", speed, syscall.EINVAL)
	}
	prev := p.speed
	p.speed = speed
	if err := p.Restore(); err != nil {
		p.speed = prev
		return err
	}
	return nil
}

// SetTimeout changes the inter-byte timeout (deciseconds) and reapplies it.
func (p *Port) SetTimeout(deciseconds int) error {
	prev := p.timeout
	p.timeout = deciseconds
	if err := p.Restore(); err != nil {
		p.timeout = prev
		return err
	}
	return nil
}

// Speed returns the currently configured baud rate.
func (p *Port) Speed() int { return p.speed }

// Timeout returns the currently configured inter-byte timeout in deciseconds.
func (p *Port) Timeout() int { return p.timeout }

// Rx reads up to len(buf) bytes, blocking for at most the configured
// inter-byte timeout. A timeout yields a short read, possibly of zero
// bytes, and a nil error.
func (p *Port) Rx(buf []byte) (int, error) {
	n, err := syscall.Read(p.fd, buf)
	if n < 0 {
		n = 0
	}
	if err != nil {
		return n, fmt.Errorf("serialport: read: %w", err)
	}
	return n, nil
}

// Tx writes len(buf) bytes, retrying short writes until the buffer is
// drained or an error occurs.
func (p *Port) Tx(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := syscall.Write(p.fd, buf[total:])
		if n > 0 {
			total += n
		}
		if err != nil {
			return total, fmt.Errorf("serialport: write: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// Printf sends an AT command terminated with CR, the AT dialog helper
// the transport layer uses during link discovery.
func (p *Port) Printf(format string, args ...any) error {
	line := fmt.Sprintf(format, args...) + "\r"
	_, err := p.Tx([]byte(line))
	return err
}

// Getline reads a single LF-terminated line with the configured
// timeout, used to read AT replies ("OK", "ERROR", echoed commands).
// Returns the line with trailing CR/LF stripped. If the timeout
// elapses before an LF arrives, it returns what was read so far (an
// empty string if nothing arrived) and no error.
func (p *Port) Getline() (string, error) {
	var buf [1]byte
	for i := 0; i < 4096; i++ {
		n, err := p.Rx(buf[:])
		if err != nil {
			return "", err
		}
		if n == 0 {
			break // timed out mid-line
		}
		if buf[0] == '\n' {
			line := strings.TrimRight(string(p.lineBuf), "\r\n")
			p.lineBuf = p.lineBuf[:0]
			return line, nil
		}
		p.lineBuf = append(p.lineBuf, buf[0])
	}
	line := strings.TrimRight(string(p.lineBuf), "\r\n")
	p.lineBuf = p.lineBuf[:0]
	return line, nil
}

// Close drains a break and releases the handle.
func (p *Port) Close() error {
	_ = unix.IoctlSetPointerInt(p.fd, unix.TCFLSH, unix.TCIOFLUSH)
	return syscall.Close(p.fd)
}
