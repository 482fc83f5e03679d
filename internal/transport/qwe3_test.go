package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func newQWE3Pair() (*Conn, *Conn) {
	pa, pb := newFakePortPair()
	a := Open(pa, 0, 10)
	b := Open(pb, 0, 10)
	a.linkType = LinkQWE3
	b.linkType = LinkQWE3
	return a, b
}

func TestQWE3RoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 128, 2048} {
		a, b := newQWE3Pair()
		body := bytes.Repeat([]byte{0xCD}, n)
		packet := append([]byte{0x83, byte((n + 3) >> 8), byte(n + 3)}, body...)
		require.NoErrorf(t, a.sendQWE3(packet), "len=%d: sendQWE3", n)
		got, err := b.recvQWE3(4096)
		require.NoErrorf(t, err, "len=%d: recvQWE3", n)
		require.Equalf(t, packet, got, "len=%d: round trip mismatch", n)
	}
}

func TestQWE3RecvRejectsOversizePacket(t *testing.T) {
	a, b := newQWE3Pair()
	packet := []byte{0x83, 0x00, 0x10, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}
	require.NoError(t, a.sendQWE3(packet))
	_, err := b.recvQWE3(4)
	require.Error(t, err, "expected recvQWE3 to reject a packet larger than maxlen")
}
