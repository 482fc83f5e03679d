package obexfs

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrnoForResponseKnownCodes(t *testing.T) {
	cases := []struct {
		resp byte
		want syscall.Errno
	}{
		{0xc4, syscall.ENOENT}, // 0x44 Not Found
		{0xc1, syscall.EACCES}, // 0x41 Unauthorized
		{0xc8, syscall.ETIMEDOUT},
		{0xe0, syscall.ENOSPC}, // 0x60 Database Full
		{0xe1, syscall.EBUSY},  // 0x61 Database Locked
	}
	for _, c := range cases {
		require.Equalf(t, c.want, errnoForResponse(c.resp), "errnoForResponse(%#02x)", c.resp)
	}
}

func TestErrnoForResponseUnknownCode(t *testing.T) {
	require.Equal(t, syscall.EIO, errnoForResponse(0xde), "unknown high code")
	require.Equal(t, syscall.EPROTO, errnoForResponse(0x10), "below 0x30")
}
