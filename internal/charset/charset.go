// Package charset converts between UTF-8 (what the FUSE layer deals
// in) and the 8-bit charset a phone's filenames are actually encoded
// in, selectable by name. The original leaves this as a pure-function
// declaration with no table; we back it with a real encoding from
// golang.org/x/text/encoding/charmap rather than leave it a no-op.
package charset

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// byName lists the 8-bit charsets a Siemens phone of this era plausibly
// used for filenames. "utf8"/"" is the identity case.
var byName = map[string]encoding.Encoding{
	"iso8859-1":  charmap.ISO8859_1,
	"iso8859-15": charmap.ISO8859_15,
	"cp1252":     charmap.Windows1252,
}

// Codec converts filenames between UTF-8 and one fixed 8-bit charset.
type Codec struct {
	enc encoding.Encoding
}

// New resolves name (one of byName's keys, "utf8", or "") to a Codec.
func New(name string) (*Codec, error) {
	if name == "" || name == "utf8" {
		return &Codec{}, nil
	}
	enc, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("charset: unknown charset %q", name)
	}
	return &Codec{enc: enc}, nil
}

// ToLocal encodes a UTF-8 filename into the local 8-bit charset, for
// names going out to the phone.
func (c *Codec) ToLocal(name string) (string, error) {
	if c.enc == nil {
		return name, nil
	}
	out, err := c.enc.NewEncoder().String(name)
	if err != nil {
		return "", fmt.Errorf("charset: encode %q: %w", name, err)
	}
	return out, nil
}

// ToUTF8 decodes a filename the phone returned in the local 8-bit
// charset back into UTF-8.
func (c *Codec) ToUTF8(name string) (string, error) {
	if c.enc == nil {
		return name, nil
	}
	out, err := c.enc.NewDecoder().String(name)
	if err != nil {
		return "", fmt.Errorf("charset: decode %q: %w", name, err)
	}
	return out, nil
}
