package obexfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStr2UniEncodesBasicAndMultibyte(t *testing.T) {
	got := str2uni("Aé中?")
	want := []byte{0x00, 'A', 0x00, 0xe9, 0x4e, 0x2d, 0x00, '?'}
	require.Equal(t, want, got)
}

func TestStr2UniSubstitutesMalformedBytes(t *testing.T) {
	got := str2uni(string([]byte{0xff}))
	want := []byte{0x00, '?'}
	require.Equal(t, want, got)
}

func TestPacketAppendAndFindHeaderRoundTrip(t *testing.T) {
	var p Packet
	p.Init(0x83)
	p.AppendString(0x42, "x-obex/folder-listing")
	p.AppendData(0x48, []byte("hello"))

	require.Equal(t, "hello", string(p.FindHeader(0x48)))
	require.Equal(t, "x-obex/folder-listing\x00", string(p.FindHeader(0x42)))
	require.Nil(t, p.FindHeader(0x99), "FindHeader of absent id should be nil")
}

func TestPacketBytesLengthField(t *testing.T) {
	var p Packet
	p.Init(0x02)
	p.AppendData(0x48, []byte("abc"))
	out := p.Bytes()
	got := int(out[1])<<8 | int(out[2])
	require.Equal(t, len(out), got, "length field")
}
