package serialport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaudConstantKnownRates(t *testing.T) {
	for _, baud := range []int{1200, 9600, 19200, 38400, 57600, 115200, 230400, 460800} {
		_, ok := baudConstant(baud)
		assert.Truef(t, ok, "baudConstant(%d) should be supported", baud)
	}
}

func TestBaudConstantRejectsNonStandardRates(t *testing.T) {
	// spec.md §9: 230000 and 460000 appear in the BFB rate table but
	// are not real termios constants and must be rejected, not remapped.
	for _, baud := range []int{230000, 460000, 12345} {
		_, ok := baudConstant(baud)
		assert.Falsef(t, ok, "baudConstant(%d) should be rejected", baud)
	}
}

func TestClampDeciseconds(t *testing.T) {
	cases := map[int]int{-5: 0, 0: 0, 10: 10, 255: 255, 300: 255}
	for in, want := range cases {
		assert.Equalf(t, want, clampDeciseconds(in), "clampDeciseconds(%d)", in)
	}
}
