package obexfs

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tapwag/siefs/internal/pacer"
	"github.com/tapwag/siefs/internal/transport"
)

var log = logrus.WithField("component", "obex")

// Link is the subset of transport.Conn a Session drives. Tests supply
// an in-memory fake satisfying this interface instead of a real link.
type Link interface {
	Test(rounds int) error
	Initiate() error
	Send(buf []byte) error
	Recv(maxlen int) ([]byte, error)
	Close() error
}

// Mode tracks what a Session is in the middle of.
type Mode int

const (
	ModeIdle Mode = iota
	ModeGet
	ModePut
)

// sigFlex is the Connect request's Target header: a fixed signature
// identifying the "flex" OBEX profile the phone firmware expects.
var sigFlex = []byte{
	0x6b, 0x01, 0xcb, 0x31, 0x41, 0x06, 0x11, 0xd4,
	0x9a, 0x77, 0x00, 0x50, 0xda, 0x3f, 0x47, 0x1f,
}

// Session drives one OBEX conversation over a transport.Conn: it owns
// the control/data packet pair, the working-directory cursor, and the
// in-flight transfer state.
//
// Invariant: depth equals the number of components recorded in dir;
// when mode is ModeIdle, filename is empty and no transfer bytes are
// pending.
type Session struct {
	conn      Link
	connected bool
	maxsize   int

	pc Packet
	pd Packet

	mode Mode

	dir   []string
	depth int

	dirlist []byte
	dirpos  int

	filename string
	offset   int64

	pos     int
	len     int
	eof     bool
	bodyBuf []byte

	putPending []byte

	// backoff paces the fallback retry in handshake after a failed
	// renegotiation, modeled on rclone's lib/pacer.
	backoff *pacer.Default
}

// New wraps an already-constructed transport.Conn (or any other Link)
// in a Session. No communication happens here; the first operation
// that needs the link will run the handshake.
func New(conn Link) *Session {
	return &Session{
		conn:    conn,
		maxsize: MaxPacketSize,
		backoff: pacer.NewDefault(pacer.MinSleep(50*time.Millisecond), pacer.MaxSleep(500*time.Millisecond)),
	}
}

func (s *Session) sendPacket(p *Packet) error {
	if err := s.conn.Send(p.Bytes()); err != nil {
		_ = s.abortExchange()
		return fmt.Errorf("obexfs: send: %w", err)
	}
	return nil
}

// recvPacket reads one response packet and returns its opcode. Any
// transport failure aborts the exchange and surfaces as an error.
func (s *Session) recvPacket(p *Packet) (byte, error) {
	buf, err := s.conn.Recv(s.maxsize + 16)
	if err != nil || len(buf) == 0 {
		_ = s.abortExchange()
		return 0, fmt.Errorf("obexfs: recv: %w", err)
	}
	p.SetRaw(buf)
	return p.Opcode(), nil
}

// abortExchange sends the OBEX Abort opcode and waits for its
// acknowledgement, used both for explicit Suspend and for internal
// error recovery.
func (s *Session) abortExchange() error {
	buf := []byte{0xff, 0x00, 0x03}
	if err := s.conn.Send(buf); err != nil {
		return err
	}
	reply, err := s.conn.Recv(256)
	if err != nil || len(reply) == 0 {
		return fmt.Errorf("obexfs: abort: %w", transport.ErrNoAnswer)
	}
	if reply[0] != respOK {
		return errnoForResponse(reply[0])
	}
	return nil
}

// handshake mirrors the original's handshake(): if the link already
// answers a quick liveness test, reuse it; otherwise renegotiate with
// Initiate and send an OBEX Connect carrying the flex signature.
func (s *Session) handshake() error {
	s.connected = false

	if s.conn.Test(3) == nil {
		s.connected = true
		return nil
	}

	if err := s.conn.Initiate(); err != nil {
		time.Sleep(s.backoff.Calculate(pacer.State{}))
		if s.conn.Test(20) == nil {
			s.connected = true
			return nil
		}
		return err
	}
	log.Debug("renegotiated link, sending Connect")

	s.pc.Init(0x80)
	s.pc.AppendByte(0x10)
	s.pc.AppendByte(0x00)
	s.pc.AppendByte(byte(s.maxsize >> 8))
	s.pc.AppendByte(byte(s.maxsize))
	s.pc.AppendData(0x46, sigFlex)
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

	raw := s.pc.Bytes()
	if len(raw) >= 7 {
		negotiated := int(raw[5])<<8 | int(raw[6])
		if negotiated > 0 && negotiated < s.maxsize {
			s.maxsize = negotiated
		}
	}

	s.dirlist = nil
	s.dir = nil
	s.depth = 0
	s.connected = true
	return nil
}

// Shutdown sends an OBEX Disconnect (if connected) and closes the
// underlying transport connection.
func (s *Session) Shutdown() error {
	if s.connected {
		s.pc.Init(0x81)
		s.pc.AppendByte(0xcb)
		s.pc.AppendByte(0x00)
		s.pc.AppendByte(0x00)
		s.pc.AppendByte(0x00)
		s.pc.AppendByte(0x01)
		if s.sendPacket(&s.pc) == nil {
			_, _ = s.recvPacket(&s.pc)
		}
	}
	return s.conn.Close()
}
