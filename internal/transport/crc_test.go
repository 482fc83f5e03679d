package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC16KnownAnswer(t *testing.T) {
	require.Equal(t, uint16(0x906E), crc16([]byte("123456789")))
}
