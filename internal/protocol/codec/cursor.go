package codec

import (
	"fmt"

	"github.com/danmuck/jdwpctl/internal/protocol"
)

// Cursor walks one reply body, advancing by the bytes each Next consumes.
// Repeat counts stay with the caller.
type Cursor struct {
	dec    *Decoder
	buf    []byte
	offset int
}

func (d *Decoder) Cursor(buf []byte) *Cursor {
	return &Cursor{dec: d, buf: buf}
}

// Next decodes format at the current offset and advances past it.
func (c *Cursor) Next(format ...Kind) ([]Value, error) {
	values, n, err := c.dec.Unpack(c.buf, format, c.offset)
	if err != nil {
		return nil, err
	}
	c.offset += n
	return values, nil
}

// Count reads a JDWP int element count, rejecting negative values.
func (c *Cursor) Count() (int, error) {
	values, err := c.Next(KindInt32)
	if err != nil {
		return 0, err
	}
	n, _ := values[0].Int()
	if n < 0 {
		return 0, fmt.Errorf("%w: negative count %d", protocol.ErrMalformedPacket, n)
	}
	return int(n), nil
}

func (c *Cursor) Offset() int { return c.offset }

func (c *Cursor) Remaining() int { return len(c.buf) - c.offset }
