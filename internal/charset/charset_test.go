package charset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUTF8IsIdentity(t *testing.T) {
	c, err := New("utf8")
	require.NoError(t, err)

	s, err := c.ToLocal("café.txt")
	require.NoError(t, err)
	assert.Equal(t, "café.txt", s)
}

func TestNewUnknownCharsetErrors(t *testing.T) {
	_, err := New("klingon")
	assert.Error(t, err)
}

func TestISO8859_1RoundTrip(t *testing.T) {
	c, err := New("iso8859-1")
	require.NoError(t, err)

	local, err := c.ToLocal("café.txt")
	require.NoError(t, err)

	back, err := c.ToUTF8(local)
	require.NoError(t, err)
	assert.Equal(t, "café.txt", back)
}
