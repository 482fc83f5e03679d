package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/tapwag/siefs/internal/pacer"
)

// ackFrame is the fixed 5-byte BFB acknowledgement.
var ackFrame = []byte{0x16, 0x02, 0x14, 0x01, 0xfe}

// ErrCRC is returned when a BFB frame's checksum doesn't match after
// the retry budget is exhausted.
var ErrCRC = errors.New("transport: crc mismatch")

// sendBFB wraps buf as a sequenced, CRC-protected BFB frame, chops it
// into 32-byte control-prefixed chunks, and waits for the fixed ACK
// sequence. Up to three attempts, paced by c.backoff; a failed attempt
// flushes and re-sends the ACK first, to unstick a peer that is itself
// waiting on one.
func (c *Conn) sendBFB(payload []byte) error {
	start := byte(0x03)
	if c.outSeq == 0 {
		start = 0x02
	}
	frame := make([]byte, 0, len(payload)+7)
	frame = append(frame, start, ^start, c.outSeq, byte(len(payload)>>8), byte(len(payload)))
	frame = append(frame, payload...)
	csum := crc16(frame[2:])
	frame = append(frame, byte(csum), byte(csum>>8))

	var lastErr error
	// Calculate on an empty State yields the calculator's floor.
	state := pacer.State{SleepTime: c.backoff.Calculate(pacer.State{})}
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			state.ConsecutiveRetries++
			state.SleepTime = c.backoff.Calculate(state)
			time.Sleep(state.SleepTime)
			c.flush()
			_, _ = c.port.Tx(ackFrame)
		}
		if err := c.sendFrameChunks(frame); err != nil {
			lastErr = err
			continue
		}
		if c.waitAck() {
			c.outSeq++
			return nil
		}
		lastErr = fmt.Errorf("transport: bfb send: %w", ErrNoAnswer)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("transport: bfb send failed after retries")
	}
	return lastErr
}

// sendFrameChunks writes frame as a sequence of 0x16-prefixed chunks
// of at most 32 bytes each.
func (c *Conn) sendFrameChunks(frame []byte) error {
	for len(frame) > 0 {
		n := len(frame)
		if n > 0x20 {
			n = 0x20
		}
		header := [3]byte{0x16, byte(n), 0x16 ^ byte(n)}
		if _, err := c.port.Tx(header[:]); err != nil {
			return err
		}
		if _, err := c.port.Tx(frame[:n]); err != nil {
			return err
		}
		frame = frame[n:]
	}
	return nil
}

func (c *Conn) waitAck() bool {
	buf := make([]byte, len(ackFrame))
	n := readExactly(c.port, buf, len(ackFrame))
	return n == len(ackFrame) && string(buf) == string(ackFrame)
}

// getBlock reads one control-prefixed chunk: [0x16, len, 0x16^len, payload[len]].
func (c *Conn) getBlock() ([]byte, error) {
	var hdr [3]byte
	if n := readExactly(c.port, hdr[:], 3); n < 3 {
		return nil, fmt.Errorf("transport: short control header")
	}
	if hdr[0] != 0x16 {
		return nil, fmt.Errorf("transport: bad control header")
	}
	l := int(hdr[1])
	if l < 1 || l > 0x20 {
		return nil, fmt.Errorf("transport: bad chunk length %d", l)
	}
	if (hdr[0] ^ hdr[1]) != hdr[2] {
		return nil, fmt.Errorf("transport: control header checksum mismatch")
	}
	buf := make([]byte, l)
	n := readExactly(c.port, buf, l)
	return buf[:n], nil
}

// recvBFB reassembles a datagram from control-prefixed chunks. A
// frame whose sequence equals the last delivered sequence is a
// retransmission: it is re-ACKed but not delivered, and the retry
// counter (and backoff state) resets, since it isn't a failure worth
// paced retrying.
func (c *Conn) recvBFB(maxlen int) ([]byte, error) {
	state := pacer.State{SleepTime: c.backoff.Calculate(pacer.State{})}
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			state.ConsecutiveRetries++
			state.SleepTime = c.backoff.Calculate(state)
			time.Sleep(state.SleepTime)
			c.flush()
		}
		data, ok, err := c.recvOneFrame(maxlen)
		if err != nil {
			continue
		}
		if !ok {
			// duplicate sequence: already re-ACKed inside recvOneFrame
			attempt = -1
			state = pacer.State{SleepTime: c.backoff.Calculate(pacer.State{})}
			continue
		}
		return data, nil
	}
	return nil, fmt.Errorf("transport: bfb recv: %w", ErrCRC)
}

// recvOneFrame assembles exactly one reassembled frame and reports
// whether it was new data (ok=true) or a re-ACKed duplicate (ok=false).
func (c *Conn) recvOneFrame(maxlen int) (data []byte, ok bool, err error) {
	first, err := c.getBlock()
	if err != nil {
		return nil, false, err
	}
	if len(first) < 5 {
		return nil, false, fmt.Errorf("transport: short frame header")
	}
	if (first[0] | 1) != 0x03 {
		return nil, false, fmt.Errorf("transport: bad start byte")
	}
	if (first[0] ^ first[1]) != 0xff {
		return nil, false, fmt.Errorf("transport: start byte checksum mismatch")
	}
	seq := first[2]
	length := int(first[3])<<8 | int(first[4])
	if length > maxlen {
		return nil, false, fmt.Errorf("transport: frame too large for buffer")
	}

	if seq == c.inSeq {
		c.flush()
		_, _ = c.port.Tx(ackFrame)
		return nil, false, nil
	}

	want := length + 2 // + checksum bytes
	assembled := append([]byte(nil), first...)
	for len(assembled)-5 < want {
		chunk, err := c.getBlock()
		if err != nil {
			return nil, false, err
		}
		assembled = append(assembled, chunk...)
	}

	body := assembled[5 : 5+length]
	csumBytes := assembled[5+length : 5+length+2]
	got := uint16(csumBytes[0]) | uint16(csumBytes[1])<<8
	want16 := crc16(assembled[2 : 5+length])
	if got != want16 {
		return nil, false, ErrCRC
	}

	c.inSeq = seq
	_, _ = c.port.Tx(ackFrame)
	return body, true, nil
}

// closeBFB sends the BFB reset command: a length-prefixed "at^sbfb=0" command.
func (c *Conn) closeBFB() {
	cmd := append([]byte{0x06, 0x0a, 0x0c}, []byte("at^sbfb=0")...)
	cmd = append(cmd, 0x0d)
	_, _ = c.port.Tx(cmd)
	c.flush()
}
