package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func newBFBPair() (*Conn, *Conn) {
	pa, pb := newFakePortPair()
	a := Open(pa, 0, 10)
	b := Open(pb, 0, 10)
	a.linkType = LinkBFB
	b.linkType = LinkBFB
	// The fake pair is not concurrent: queue the peer's ACK for a's
	// first frame so sendBFB can complete before b reads the frame.
	pa.rxFrom.write(ackFrame)
	return a, b
}

func TestBFBRoundTripVariousLengths(t *testing.T) {
	for _, n := range []int{0, 1, 31, 32, 33, 1024, 2048} {
		a, b := newBFBPair()
		payload := bytes.Repeat([]byte{0xAB}, n)
		require.NoErrorf(t, a.sendBFB(payload), "len=%d: sendBFB", n)
		got, err := b.recvBFB(4096)
		require.NoErrorf(t, err, "len=%d: recvBFB", n)
		require.Equalf(t, payload, got, "len=%d", n)
	}
}

func TestBFBDuplicateSequenceReacksWithoutDelivery(t *testing.T) {
	a, b := newBFBPair()
	payload := []byte("hello")

	require.NoError(t, a.sendBFB(payload), "first send")
	got, err := b.recvBFB(64)
	require.NoError(t, err, "first recv")
	require.Equal(t, payload, got, "first recv mismatch")

	// Manually resend the exact same frame bytes a sent (simulating the
	// sender retransmitting after a lost ACK): rewind a's outSeq and
	// resend the identical payload so the wire sees the same sequence
	// number b already delivered.
	a.outSeq--
	require.NoError(t, a.sendBFB(payload), "retransmit send")
	_, err = b.recvBFB(64)
	require.Error(t, err, "expected recvBFB to treat retransmission as a non-delivering duplicate and eventually time out")
}

func TestBFBRetryCapOnCorruption(t *testing.T) {
	pa, pb := newFakePortPair()
	a := Open(pa, 0, 10)
	a.linkType = LinkBFB
	b := Open(pb, 0, 10)
	b.linkType = LinkBFB
	pa.rxFrom.write(ackFrame)

	require.NoError(t, a.sendBFB([]byte("payload")))
	// Corrupt a byte inside the framed payload region on the wire
	// before b reads it, forcing a CRC mismatch. Byte 8 is the first
	// payload byte: 3 control-header bytes, then 5 frame-header bytes.
	if len(pb.rxFrom.buf) > 8 {
		pb.rxFrom.buf[8] ^= 0xFF
	}
	_, err := b.recvBFB(64)
	require.Error(t, err, "expected recvBFB to fail on corrupted frame")
}
