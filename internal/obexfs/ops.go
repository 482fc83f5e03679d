package obexfs

// Mkdir creates name (and any missing intermediate components) by
// walking the working-directory cursor down to it with
// createIfMissing set.
func (s *Session) Mkdir(name string) error {
	if err := s.handshake(); err != nil {
		return err
	}
	return s.cdto(name, false, true)
}

// Delete removes the file or directory at name. The peer refuses to
// delete a non-empty directory.
func (s *Session) Delete(name string) error {
	if err := s.handshake(); err != nil {
		return err
	}
	if err := s.cdto(name, true, false); err != nil {
		return err
	}

	s.pc.Init(0x82)
	s.pc.AppendUnicode(0x01, lastItem(name))
	if err := s.sendPacket(&s.pc); err != nil {
		return err
	}
	op, err := s.recvPacket(&s.pc)
	if err != nil {
		return err
	}
	if op != respOK {
		return errnoForResponse(op)
	}
	return nil
}

// Move renames/moves src to dest, both absolute paths, via an
// App-Params request carrying the ASCII tag "move" and two
// UTF-16BE-encoded filename sub-parameters.
func (s *Session) Move(src, dest string) error {
	if err := s.handshake(); err != nil {
		return err
	}

	buf := make([]byte, 0, 64)
	buf = append(buf, 0x34, 0x04)
	buf = append(buf, "move"...)

	srcUni := str2uni(src)
	buf = append(buf, 0x35, byte(len(srcUni)))
	buf = append(buf, srcUni...)

	destUni := str2uni(dest)
	buf = append(buf, 0x36, byte(len(destUni)))
	buf = append(buf, destUni...)

	s.pc.Init(0x82)
	s.pc.AppendData(0x4c, buf)
	if err := s.sendPacket(&s.pc); err != nil {
		return err
	}
	op, err := s.recvPacket(&s.pc)
	if err != nil {
		return err
	}
	if op != respOK {
		return errnoForResponse(op)
	}
	return nil
}

var userPermStrings = [4]string{"D", "WD", "RD", "RWD"}
var groupPermStrings = [4]string{"", "W", "R", "RW"}

// Chmod changes name's permission bits. Only the 4 meaningful bits of
// a Unix mode survive the round trip: owner read/write and group
// read/write (the other bits are dropped), expressed to the peer as two quoted
// permission strings ("RWD"/"RW").
func (s *Session) Chmod(name string, mode uint32) error {
	if err := s.handshake(); err != nil {
		return err
	}
	if err := s.cdto(name, true, false); err != nil {
		return err
	}

	s.pc.Init(0x82)
	s.pc.AppendUnicode(0x01, lastItem(name))

	permStr := `"` + userPermStrings[(mode>>7)&0x03] + `"` + `"` + groupPermStrings[(mode>>4)&0x03] + `"`
	buf := make([]byte, 0, len(permStr)+2)
	buf = append(buf, 0x38, byte(len(permStr)))
	buf = append(buf, permStr...)
	s.pc.AppendData(0x4c, buf)

	if err := s.sendPacket(&s.pc); err != nil {
		return err
	}
	op, err := s.recvPacket(&s.pc)
	if err != nil {
		return err
	}
	if op != respOK {
		return errnoForResponse(op)
	}
	return nil
}

// getInfo runs the App-Params capacity/available query (request tag
// 0x01 or 0x02) and decodes the big-endian variable-width integer the
// peer returns under App-Params tag 0x32. Any failure — including no
// connection at all — yields 0, the documented "unknown" sentinel.
func (s *Session) getInfo(req byte) int64 {
	if err := s.handshake(); err != nil {
		return 0
	}

	s.pc.Init(0x83)
	s.pc.AppendData(0x4c, []byte{0x32, 0x01, req})
	if err := s.sendPacket(&s.pc); err != nil {
		return 0
	}

	op, err := s.recvPacket(&s.pc)
	if err != nil || op != respOK {
		return 0
	}

	params := s.pc.FindHeader(0x4c)
	if len(params) < 2 || params[0] != 0x32 {
		return 0
	}
	l := int(params[1])
	var n int64
	for i := 0; i < l && 2+i < len(params); i++ {
		n = n<<8 + int64(params[2+i])
	}
	return n
}

// Capacity returns the phone's total storage in bytes, or 0 if unknown.
func (s *Session) Capacity() int64 { return s.getInfo(0x01) }

// Available returns the phone's free storage in bytes, or 0 if unknown.
func (s *Session) Available() int64 { return s.getInfo(0x02) }
