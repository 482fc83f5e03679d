package transport

import (
	"time"
)

// atSpeeds is the fixed AT baud sweep used by Initiate. 115200 is
// listed twice on purpose: in practice the duplicate works as a quick
// re-try at the first speed before falling through to the rest of the
// table (spec.md §9 open question; original_source/transport.c
// tra_initiate carries the same duplicate).
var atSpeeds = []int{115200, 115200, 19200, 57600, 230400}

// bfbSpeeds is the fixed speed sweep tra_initiate uses once BFB mode
// has been requested via AT^SBFB=1.
var bfbSpeeds = []int{57600, 57600, 115200, 230400}

// pingSpeeds is the speed-cycling table tra_ping falls back to after
// three silent rounds.
var pingSpeeds = []int{57600, 115200, 230400, 38400, 19200}

// rateChangeFrame is one entry of the fixed BFB speed-change table:
// a literal frame to transmit, and the reply length expected back
// with an 0xCC acknowledgement byte at offset 3.
type rateChangeFrame struct {
	speed    int
	frame    []byte
	replyLen int
}

// rateChangeTable mirrors transport.c's `rates[]`: a BFB-mode command
// that asks the phone to switch its side of the link to a given baud.
// 230000 and 460000 are carried verbatim from the original device
// protocol even though they are not standard termios bauds; see
// baudConstant and spec.md §9.
var rateChangeTable = []rateChangeFrame{
	{19200, []byte("\x01\x09\x08\xc0" + "19200" + "\xce\x4d\xcf"), 12},
	{38400, []byte("\x01\x09\x08\xc0" + "38400" + "\xcc\x4b\xcf"), 12},
	{57600, []byte("\x01\x09\x08\xc0" + "57600" + "\xca\x89\xcf"), 12},
	{115200, []byte("\x01\x0a\x0b\xc0" + "115200" + "\x0d\xd2\x2b"), 13},
	{230000, []byte("\x01\x0a\x0b\xc0" + "230000" + "\x0f\x90\x2b"), 13},
	{460000, []byte("\x01\x0a\x0b\xc0" + "460000" + "\x4a\x90\x2b"), 13},
}

func findRateChangeFrame(speed int) (rateChangeFrame, bool) {
	for _, r := range rateChangeTable {
		if r.speed == speed {
			return r, true
		}
	}
	return rateChangeFrame{}, false
}

// atExec sends an AT command and waits for a line equal to "OK".
func (c *Conn) atExec(cmd string) error {
	if err := c.port.Printf("%s", cmd); err != nil {
		return err
	}
	for {
		line, err := c.port.Getline()
		if err != nil {
			return err
		}
		if line == "" {
			return ErrNoAnswer
		}
		if line == "OK" {
			return nil
		}
		if line == "ERROR" {
			return ErrNoAnswer
		}
	}
}

// Initiate performs link discovery: restore the port, sweep the AT
// baud table, negotiate QWE3 or BFB, sweep the BFB speed table if
// needed, then switch to the caller's requested speed if it differs
// from what discovery landed on.
func (c *Conn) Initiate() error {
	log.Debug("initiating link")
	if err := c.port.Restore(); err != nil {
		return err
	}
	if err := c.port.SetTimeout(40); err != nil {
		return err
	}

	speeds := append([]int(nil), atSpeeds...)
	if c.requestedSpeed != 0 {
		speeds[0] = c.requestedSpeed
	}

	atSpeed := 0
	for _, speed := range speeds {
		if err := c.port.SetSpeed(speed); err != nil {
			continue
		}
		if c.atExec("at") == nil {
			atSpeed = speed
			break
		}
		if c.atExec("at") == nil {
			atSpeed = speed
			break
		}
	}
	if atSpeed == 0 {
		return ErrNoAnswer
	}

	_ = c.atExec("at^sqwe=0")
	time.Sleep(200 * time.Millisecond)
	if c.atExec("at^sqwe=3") == nil {
		c.linkType = LinkQWE3
	} else if c.atExec("at^sbfb=1") == nil {
		c.linkType = LinkBFB
	} else {
		return ErrNoAnswer
	}

	negotiated := atSpeed
	if c.linkType == LinkBFB {
		time.Sleep(200 * time.Millisecond)
		found := false
		for _, speed := range bfbSpeeds {
			if err := c.port.SetSpeed(speed); err != nil {
				continue
			}
			if c.Ping(2) == nil {
				negotiated = speed
				found = true
				break
			}
		}
		if !found {
			return ErrNoAnswer
		}
	} else {
		time.Sleep(200 * time.Millisecond)
	}

	want := negotiated
	if c.requestedSpeed != 0 {
		want = c.requestedSpeed
	}

	if c.linkType == LinkBFB && want != negotiated {
		if frame, ok := findRateChangeFrame(want); ok {
			reply := make([]byte, 64)
			if _, err := c.port.Tx(frame.frame); err == nil {
				n := readExactly(c.port, reply, frame.replyLen)
				if n == frame.replyLen && reply[3] == 0xcc {
					time.Sleep(100 * time.Millisecond)
					if err := c.port.SetSpeed(want); err == nil {
						negotiated = want
					}
				}
			}
		}
	}

	c.negotiated = negotiated
	c.startup = false
	c.outSeq = 0
	c.inSeq = 0xFF
	return c.port.SetTimeout(c.timeoutDs)
}

// readExactly reads up to n bytes into buf, stopping early on a short
// read (the caller's reply length check will then simply fail).
func readExactly(port RawPort, buf []byte, n int) int {
	if n > len(buf) {
		n = len(buf)
	}
	total := 0
	for total < n {
		read, err := port.Rx(buf[total:n])
		if err != nil || read == 0 {
			break
		}
		total += read
	}
	return total
}

// Ping performs up to rounds liveness rounds. If the link is unknown
// or BFB it probes with the BFB liveness frame; if unknown or QWE3 it
// probes with a minimal OBEX request. After three silent rounds it
// cycles through pingSpeeds and retries.
func (c *Conn) Ping(rounds int) error {
	savedTimeout := c.port.Timeout()
	_ = c.port.SetTimeout(3)
	defer func() { _ = c.port.SetTimeout(savedTimeout) }()
	err := c.pingRounds(rounds)
	return err
}

func (c *Conn) pingRounds(rounds int) error {
	for i := 0; i < rounds; i++ {
		if i == 0 {
			_ = c.port.Restore()
		}
		if c.linkType == LinkUnknown || c.linkType == LinkBFB {
			if _, err := c.port.Tx([]byte{0x02, 0x01, 0x03, 0x14}); err == nil {
				buf := make([]byte, 5)
				n := readExactly(c.port, buf, 5)
				if n == 5 && string(buf) == "\x02\x02\x00\x14\xaa" {
					c.linkType = LinkBFB
					return nil
				}
			}
		}
		if c.linkType == LinkUnknown || c.linkType == LinkQWE3 {
			if _, err := c.port.Tx([]byte{0xff, 0x00, 0x03}); err == nil {
				buf := make([]byte, 3)
				n := readExactly(c.port, buf, 3)
				if n == 3 && buf[0] == 0xa0 {
					remaining := int(buf[1])<<8 + int(buf[2]) - 3
					if remaining > 0 {
						drain := make([]byte, remaining)
						readExactly(c.port, drain, remaining)
					}
					c.linkType = LinkQWE3
					return nil
				}
				// Drain whatever garbage showed up; a 0x16-led control
				// block means the peer is waiting on an ACK from us.
				var g [1]byte
				last := byte(0)
				for {
					read, err := c.port.Rx(g[:])
					if err != nil || read == 0 {
						break
					}
					last = g[0]
				}
				if last == 0x16 {
					_, _ = c.port.Tx([]byte{0x16, 0x02, 0x14, 0x01, 0xfe})
				}
			}
		}
		if i >= 3 {
			speed := pingSpeeds[(i-3)%len(pingSpeeds)]
			_ = c.port.SetSpeed(speed)
		}
	}
	return ErrNoAnswer
}
