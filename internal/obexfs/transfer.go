package obexfs

import (
	"fmt"
	"strings"
)

func lastItem(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Get starts a GET transfer of name from offset, returning the file's
// total size as reported by the peer (0 if unknown).
func (s *Session) Get(name string, offset int64) (int64, error) {
	s.filename = name
	s.offset = offset
	return s.beginGet()
}

func (s *Session) beginGet() (int64, error) {
	if err := s.handshake(); err != nil {
		return 0, err
	}
	if err := s.cdto(s.filename, true, false); err != nil {
		return 0, err
	}

	s.pd.Init(0x83)
	s.pd.AppendUnicode(0x01, lastItem(s.filename))

	shift := s.offset % BlockSize
	pos := s.offset - shift
	if pos != 0 {
		tbuf := make([]byte, 6)
		tbuf[0] = 0x37
		tbuf[1] = 0x04
		p := pos
		for i := 5; i > 1; i-- {
			tbuf[i] = byte(p)
			p >>= 8
		}
		s.pd.AppendData(0x4c, tbuf)
	}

	if err := s.sendPacket(&s.pd); err != nil {
		return 0, err
	}
	op, err := s.recvPacket(&s.pd)
	if err != nil {
		return 0, err
	}
	if !isSuccess(op) {
		return 0, errnoForResponse(op)
	}

	var total int64
	if lenHeader := s.pd.FindHeader(0xc3); len(lenHeader) == 4 {
		for _, b := range lenHeader {
			total = total<<8 + int64(b)
		}
	}

	s.mode = ModeGet
	s.handleData(op)
	if shift > int64(s.len) {
		shift = int64(s.len)
	}
	s.pos += int(shift)
	s.len -= int(shift)

	return total, nil
}

// handleData refreshes pos/len/eof from the just-received packet's
// body header (0x48 continuation, 0x49 end-of-body).
func (s *Session) handleData(op byte) {
	s.eof = op != respContinue
	s.pos = 0
	s.len = 0

	body := s.pd.FindHeader(0x48)
	if body == nil {
		body = s.pd.FindHeader(0x49)
	}
	if body != nil {
		s.len = len(body)
		s.pos = 0
		s.bodyBuf = body
	}
}

// Read copies up to len(buf) bytes of the current GET's data window
// into buf, issuing GET continuations from the peer as the window is
// exhausted, and returns the number of bytes actually delivered (less
// than len(buf) only once eof is reached).
func (s *Session) Read(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n := len(buf) - total
		if n > s.len {
			n = s.len
		}
		if n > 0 {
			copy(buf[total:total+n], s.bodyBuf[s.pos:s.pos+n])
		}
		total += n
		s.pos += n
		s.len -= n
		s.offset += int64(n)

		if s.len == 0 {
			if s.eof {
				break
			}
			s.pd.Init(0x83)
			if err := s.sendPacket(&s.pd); err != nil {
				return total, err
			}
			op, err := s.recvPacket(&s.pd)
			if err != nil {
				return total, err
			}
			if !isSuccess(op) {
				return total, errnoForResponse(op)
			}
			s.handleData(op)
		}
	}
	return total, nil
}

// Put starts a PUT transfer of name starting at offset zero (the
// protocol only supports sequential writes).
func (s *Session) Put(name string) error {
	s.filename = name
	s.offset = 0
	return s.beginPut()
}

func (s *Session) beginPut() error {
	if err := s.handshake(); err != nil {
		return err
	}
	if err := s.cdto(s.filename, true, false); err != nil {
		return err
	}

	s.pd.Init(0x02)
	s.pd.AppendUnicode(0x01, lastItem(s.filename))
	if err := s.sendPacket(&s.pd); err != nil {
		return err
	}
	op, err := s.recvPacket(&s.pd)
	if err != nil {
		return err
	}
	if op != respContinue {
		return errnoForResponse(op)
	}

	s.mode = ModePut
	s.putPending = s.putPending[:0]
	return nil
}

// putCapacity is the payload bytes a single PUT-continue packet can
// carry: maxsize minus the opcode/length/body-header overhead.
func (s *Session) putCapacity() int {
	return s.maxsize - 6
}

// Write accumulates buf into the pending PUT body, flushing a full
// continuation packet to the peer whenever the accumulated buffer
// reaches capacity.
func (s *Session) Write(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		room := s.putCapacity() - len(s.putPending)
		n := len(buf) - total
		if n > room {
			n = room
		}
		s.putPending = append(s.putPending, buf[total:total+n]...)
		total += n
		s.offset += int64(n)

		if len(s.putPending) == s.putCapacity() {
			if err := s.flushPut(0x02, 0x48); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

func (s *Session) flushPut(op, bodyHeader byte) error {
	s.pd.Init(op)
	s.pd.AppendData(bodyHeader, s.putPending)
	if err := s.sendPacket(&s.pd); err != nil {
		return err
	}
	respOp, err := s.recvPacket(&s.pd)
	if err != nil {
		return err
	}
	want := byte(respContinue)
	if op == 0x82 {
		want = respOK
	}
	if respOp != want {
		return errnoForResponse(respOp)
	}
	s.putPending = s.putPending[:0]
	return nil
}

// Close completes the in-flight transfer: for GET, aborts if the
// transfer wasn't read to completion; for PUT, flushes the final
// end-of-body packet. Idle is a no-op.
func (s *Session) Close() error {
	var err error
	switch s.mode {
	case ModeGet:
		if !s.eof {
			_ = s.abortExchange()
		}
	case ModePut:
		err = s.flushPut(0x82, 0x49)
	}
	s.filename = ""
	s.mode = ModeIdle
	return err
}

// Suspend aborts the in-flight exchange so a metadata operation can
// run on the same link.
func (s *Session) Suspend() error {
	return s.abortExchange()
}

// Resume re-issues the in-flight GET or PUT at the saved filename and
// offset, transparently continuing past a Suspend interjection.
func (s *Session) Resume() error {
	switch s.mode {
	case ModeGet:
		_, err := s.beginGet()
		return err
	case ModePut:
		return s.beginPut()
	default:
		return fmt.Errorf("obexfs: resume: no transfer in progress")
	}
}
