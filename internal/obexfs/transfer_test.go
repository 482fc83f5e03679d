package obexfs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildGetResponse assembles a 0x90/0xa0 response carrying a Length
// header (0xc3) and a body header (0x48) with the given payload.
func buildGetResponse(op byte, total int64, body []byte) []byte {
	var p Packet
	p.Init(op)
	lenBuf := []byte{
		byte(total >> 24), byte(total >> 16), byte(total >> 8), byte(total),
	}
	p.data = append(p.data, 0xc3)
	p.data = append(p.data, lenBuf...)
	p.AppendData(0x48, body)
	return p.Bytes()
}

func TestGetWithOffsetEmitsAppParamsHeader(t *testing.T) {
	link := connectedLink()
	link.responses = [][]byte{
		okResponse(respOK), // cdto's single cddown into "a"
		buildGetResponse(0x90, 10000, bytes.Repeat([]byte{0x01}, 64)),
	}
	s := New(link)

	_, err := s.Get("/a/file.bin", 2050)
	require.NoError(t, err)
	require.NotEmpty(t, link.sent, "expected a GET request to be sent")

	var req Packet
	req.SetRaw(link.sent[len(link.sent)-1])
	appParams := req.FindHeader(0x4c)
	want := []byte{0x37, 0x04, 0x00, 0x00, 0x08, 0x00}
	require.Equal(t, want, appParams)
}

func TestGetDiscardsLeadingShiftBytes(t *testing.T) {
	link := connectedLink()
	body := make([]byte, 64)
	for i := range body {
		body[i] = byte(i)
	}
	link.responses = [][]byte{
		okResponse(respOK), // cdto's single cddown into "a"
		buildGetResponse(0x90, 0, body),
	}
	s := New(link)

	_, err := s.Get("/a/file.bin", 2050)
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := s.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	// offset 2050, BlockSize 2048 -> shift of 2, so the first two bytes
	// of the 64-byte window (0x00, 0x01) are discarded before delivery.
	want := []byte{0x02, 0x03, 0x04, 0x05}
	require.Equal(t, want, buf)
}

func TestNoOffsetOmitsAppParamsHeader(t *testing.T) {
	link := connectedLink()
	link.responses = [][]byte{
		okResponse(respOK), // cdto's single cddown into "a"
		buildGetResponse(0xa0, 5, []byte{1, 2, 3, 4, 5}),
	}
	s := New(link)

	_, err := s.Get("/a/file.bin", 0)
	require.NoError(t, err)

	var req Packet
	req.SetRaw(link.sent[len(link.sent)-1])
	require.Nil(t, req.FindHeader(0x4c), "expected no App-Params header when offset is zero")
}
