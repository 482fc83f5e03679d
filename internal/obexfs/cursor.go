package obexfs

import "strings"

// cdtop issues SetPath-to-root: flags 0x02 0x00, then the fixed
// constants 0x01 0x00 0x03 the phone expects after them.
func (s *Session) cdtop() error {
	s.pc.Init(0x85)
	s.pc.AppendByte(0x02)
	s.pc.AppendByte(0x00)
	s.pc.AppendByte(0x01)
	s.pc.AppendByte(0x00)
	s.pc.AppendByte(0x03)
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

// cdup issues SetPath-to-parent: flags 0x03 0x00.
func (s *Session) cdup() error {
	s.pc.Init(0x85)
	s.pc.AppendByte(0x03)
	s.pc.AppendByte(0x00)
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

// cddown issues SetPath-into-child name: flags 0x00 0x00 if the child
// should be created when missing, 0x02 0x00 otherwise.
func (s *Session) cddown(name string, createIfMissing bool) error {
	s.pc.Init(0x85)
	if createIfMissing {
		s.pc.AppendByte(0x00)
	} else {
		s.pc.AppendByte(0x02)
	}
	s.pc.AppendByte(0x00)
	s.pc.AppendUnicode(0x01, name)
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

// splitPath breaks name on '/' or '\' into non-empty components,
// dropping a leading separator and optionally the final component
// (strip_last, used when the caller wants the parent directory of a
// file path).
func splitPath(name string, stripLast bool) []string {
	name = strings.TrimLeft(name, "/\\")
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' })
	if stripLast && len(parts) > 0 {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// cdto moves the working-directory cursor to name's directory (or to
// name itself if stripLast is false), minimising the number of
// SetPath round trips: it walks up via cdtop+cddown from root if the
// common prefix with the current cursor is at most half the current
// depth, otherwise it walks up via cdup and back down.
//
// On any failure it attempts cdtop to leave the session at a known
// root state, then returns the original error.
func (s *Session) cdto(name string, stripLast, createIfMissing bool) error {
	target := splitPath(name, stripLast)

	eqd := 0
	for eqd < len(target) && eqd < s.depth && strings.EqualFold(s.dir[eqd], target[eqd]) {
		eqd++
	}

	depth := s.depth
	if eqd < s.depth {
		if eqd <= s.depth/2 {
			if err := s.cdtop(); err != nil {
				return s.recoverCdto(err)
			}
			depth = 0
		} else {
			for depth > eqd {
				if err := s.cdup(); err != nil {
					return s.recoverCdto(err)
				}
				depth--
			}
		}
	}

	for depth < len(target) {
		if err := s.cddown(target[depth], createIfMissing); err != nil {
			return s.recoverCdto(err)
		}
		depth++
	}

	s.dir = target
	s.depth = len(target)
	return nil
}

func (s *Session) recoverCdto(cause error) error {
	s.dir = nil
	s.depth = 0
	_ = s.cdtop()
	return cause
}
