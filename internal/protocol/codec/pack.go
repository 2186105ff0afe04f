package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const stringCountLen = 4

var (
	ErrUnsupportedKind = errors.New("codec: kind cannot be packed")
	ErrStringTooLong   = errors.New("codec: string too long")
)

// Pack encodes v big-endian. Only integers, booleans and strings are packed;
// identifier widths belong to the peer and are never encoded here.
func Pack(v Value) ([]byte, error) {
	return AppendPack(nil, v)
}

// AppendPack appends the encoding of v to dst.
func AppendPack(dst []byte, v Value) ([]byte, error) {
	switch v.kind {
	case KindUint8, KindBool:
		return append(dst, byte(v.bits)), nil
	case KindInt16, KindUint16:
		return binary.BigEndian.AppendUint16(dst, uint16(v.bits)), nil
	case KindInt32, KindUint32:
		return binary.BigEndian.AppendUint32(dst, uint32(v.bits)), nil
	case KindInt64, KindUint64:
		return binary.BigEndian.AppendUint64(dst, v.bits), nil
	case KindString:
		return appendString(dst, v.str)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, v.kind)
	}
}

// PackInt32 encodes a JDWP int.
func PackInt32(v int32) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(v))
}

// PackString encodes a JDWP string: u32 byte count then the raw bytes.
func PackString(s string) ([]byte, error) {
	return appendString(make([]byte, 0, stringCountLen+len(s)), s)
}

func appendString(dst []byte, s string) ([]byte, error) {
	if !fitsCount(uint64(len(s))) {
		return nil, fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(s))
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(s)))
	return append(dst, s...), nil
}

func fitsCount(n uint64) bool {
	return n <= uint64(^uint32(0))
}
