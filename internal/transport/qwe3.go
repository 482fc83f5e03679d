package transport

import (
	"fmt"
	"time"
)

// sendQWE3 writes buf verbatim: QWE3 is raw OBEX passthrough with no
// framing of its own, so the payload the caller hands us is already a
// complete OBEX packet.
func (c *Conn) sendQWE3(buf []byte) error {
	_, err := c.port.Tx(buf)
	if err != nil {
		return fmt.Errorf("transport: qwe3 send: %w", err)
	}
	return nil
}

// recvQWE3 reads a 3-byte OBEX header (opcode, length hi, length lo)
// and then exactly length-3 body bytes.
func (c *Conn) recvQWE3(maxlen int) ([]byte, error) {
	var hdr [3]byte
	if n := readExactly(c.port, hdr[:], 3); n < 3 {
		return nil, fmt.Errorf("transport: qwe3 recv: %w", ErrNoAnswer)
	}
	length := int(hdr[1])<<8 | int(hdr[2])
	if length < 3 {
		return nil, fmt.Errorf("transport: qwe3 recv: bad length %d", length)
	}
	if length > maxlen {
		return nil, fmt.Errorf("transport: qwe3 recv: packet too large for buffer")
	}
	buf := make([]byte, length)
	copy(buf, hdr[:])
	if length > 3 {
		n := readExactly(c.port, buf[3:], length-3)
		if n < length-3 {
			return nil, fmt.Errorf("transport: qwe3 recv: %w", ErrNoAnswer)
		}
	}
	return buf, nil
}

// closeQWE3 sends an OBEX Disconnect (opcode 0x81, 3-byte header, no
// body), waits for the phone to settle, then drops back to AT command
// mode with the classic "+++" escape.
func (c *Conn) closeQWE3() {
	_, _ = c.port.Tx([]byte{0x81, 0x00, 0x03})
	time.Sleep(1 * time.Second)
	_, _ = c.port.Tx([]byte("+++"))
}
