package vm

import (
	"fmt"

	"github.com/danmuck/jdwpctl/internal/protocol"
	"github.com/danmuck/jdwpctl/internal/protocol/codec"
)

// reader decodes a reply body field by field. The first error sticks and
// later reads return zero values.
type reader struct {
	command string
	cur     *codec.Cursor
	err     error
}

func newReader(command string, dec *codec.Decoder, body []byte) *reader {
	return &reader{command: command, cur: dec.Cursor(body)}
}

func (r *reader) next(k codec.Kind) codec.Value {
	if r.err != nil {
		return codec.Value{}
	}
	values, err := r.cur.Next(k)
	if err != nil {
		r.err = err
		return codec.Value{}
	}
	return values[0]
}

func (r *reader) u8() uint8 {
	v, _ := r.next(codec.KindUint8).Uint()
	return uint8(v)
}

func (r *reader) flag() bool {
	v, _ := r.next(codec.KindBool).Bool()
	return v
}

func (r *reader) i32() int32 {
	v, _ := r.next(codec.KindInt32).Int()
	return int32(v)
}

func (r *reader) str() string {
	v, _ := r.next(codec.KindString).Text()
	return v
}

func (r *reader) id(k codec.Kind) uint64 {
	v, _ := r.next(k).ID()
	return v
}

// count reads an element count and bounds the slice capacity callers
// allocate with it.
func (r *reader) count(minRecord int) (n int, capHint int) {
	if r.err != nil {
		return 0, 0
	}
	n, err := r.cur.Count()
	if err != nil {
		r.err = err
		return 0, 0
	}
	capHint = n
	if limit := r.cur.Remaining() / max(minRecord, 1); capHint > limit {
		capHint = limit
	}
	return n, capHint
}

// done reports the first decode error, or trailing bytes the reply should
// not have carried.
func (r *reader) done() error {
	if r.err != nil {
		return fmt.Errorf("vm: %s reply: %w", r.command, r.err)
	}
	if rest := r.cur.Remaining(); rest != 0 {
		return fmt.Errorf("%w: %s reply: %d trailing bytes at offset %d",
			protocol.ErrMalformedPacket, r.command, rest, r.cur.Offset())
	}
	return nil
}

func (r *reader) strings() []string {
	n, capHint := r.count(4)
	out := make([]string, 0, capHint)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, r.str())
	}
	return out
}
