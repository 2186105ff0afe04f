package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/danmuck/jdwpctl/internal/protocol"
	"github.com/danmuck/jdwpctl/internal/protocol/idsizes"
)

// SizeSource resolves identifier widths. Both *idsizes.Registry and
// idsizes.Sizes satisfy it.
type SizeSource interface {
	Width(idsizes.Category) (int, error)
}

// Decoder decodes format descriptors against one session's widths.
// The zero value decodes fixed and string kinds and rejects identifiers.
type Decoder struct {
	sizes SizeSource
}

func NewDecoder(sizes SizeSource) *Decoder {
	return &Decoder{sizes: sizes}
}

// Unpack decodes format from buf starting at offset. It returns the values
// and the number of bytes consumed from offset.
func (d *Decoder) Unpack(buf []byte, format Format, offset int) ([]Value, int, error) {
	if offset < 0 || offset > len(buf) {
		return nil, 0, fmt.Errorf("%w: offset %d outside buffer of %d bytes", protocol.ErrMalformedPacket, offset, len(buf))
	}
	values := make([]Value, 0, len(format))
	pos := offset
	for i, k := range format {
		v, n, err := d.unpackOne(buf, k, pos)
		if err != nil {
			return nil, 0, fmt.Errorf("codec: field[%d] %s: %w", i, k, err)
		}
		values = append(values, v)
		pos += n
	}
	return values, pos - offset, nil
}

func (d *Decoder) unpackOne(buf []byte, k Kind, pos int) (Value, int, error) {
	remaining := len(buf) - pos

	if w, ok := k.FixedWidth(); ok {
		if remaining < w {
			return Value{}, 0, truncated(pos, w, remaining)
		}
		b := buf[pos : pos+w]
		switch k {
		case KindUint8:
			return NewUint8(b[0]), w, nil
		case KindBool:
			return NewBool(b[0] != 0), w, nil
		case KindInt16:
			return NewInt16(int16(binary.BigEndian.Uint16(b))), w, nil
		case KindUint16:
			return NewUint16(binary.BigEndian.Uint16(b)), w, nil
		case KindInt32:
			return NewInt32(int32(binary.BigEndian.Uint32(b))), w, nil
		case KindUint32:
			return NewUint32(binary.BigEndian.Uint32(b)), w, nil
		case KindInt64:
			return NewInt64(int64(binary.BigEndian.Uint64(b))), w, nil
		default:
			return NewUint64(binary.BigEndian.Uint64(b)), w, nil
		}
	}

	if k == KindString {
		if remaining < stringCountLen {
			return Value{}, 0, truncated(pos, stringCountLen, remaining)
		}
		count := binary.BigEndian.Uint32(buf[pos : pos+stringCountLen])
		if uint64(count) > uint64(remaining-stringCountLen) {
			return Value{}, 0, fmt.Errorf("%w: string count %d exceeds %d remaining bytes at offset %d",
				protocol.ErrMalformedPacket, count, remaining-stringCountLen, pos)
		}
		start := pos + stringCountLen
		end := start + int(count)
		// Bytes are kept as sent; JVM strings are modified UTF-8.
		return NewString(string(buf[start:end])), stringCountLen + int(count), nil
	}

	if category, ok := k.Category(); ok {
		if d == nil || d.sizes == nil {
			return Value{}, 0, fmt.Errorf("%w: no size source for %s", protocol.ErrCodecState, category)
		}
		w, err := d.sizes.Width(category)
		if err != nil {
			return Value{}, 0, err
		}
		if remaining < w {
			return Value{}, 0, truncated(pos, w, remaining)
		}
		var id uint64
		for _, b := range buf[pos : pos+w] {
			id = id<<8 | uint64(b)
		}
		return NewID(k, id), w, nil
	}

	return Value{}, 0, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
}

func truncated(pos, want, have int) error {
	return fmt.Errorf("%w: need %d bytes at offset %d, have %d", protocol.ErrMalformedPacket, want, pos, have)
}
