package codec

import (
	"errors"
	"strconv"
)

var ErrKindMismatch = errors.New("codec: value kind mismatch")

// Value is one decoded or to-be-encoded field. Signed kinds keep their
// sign-extended bits; identifiers are held zero-extended.
type Value struct {
	kind Kind
	bits uint64
	str  string
}

// NewUint8 creates a byte value.
func NewUint8(v uint8) Value { return Value{kind: KindUint8, bits: uint64(v)} }

// NewBool creates a boolean value.
func NewBool(v bool) Value {
	if v {
		return Value{kind: KindBool, bits: 1}
	}
	return Value{kind: KindBool}
}

func NewInt16(v int16) Value   { return Value{kind: KindInt16, bits: uint64(int64(v))} }
func NewUint16(v uint16) Value { return Value{kind: KindUint16, bits: uint64(v)} }
func NewInt32(v int32) Value   { return Value{kind: KindInt32, bits: uint64(int64(v))} }
func NewUint32(v uint32) Value { return Value{kind: KindUint32, bits: uint64(v)} }
func NewInt64(v int64) Value   { return Value{kind: KindInt64, bits: uint64(v)} }
func NewUint64(v uint64) Value { return Value{kind: KindUint64, bits: v} }

// NewString creates a string value.
func NewString(v string) Value { return Value{kind: KindString, str: v} }

// NewID creates an identifier value of kind k.
func NewID(k Kind, id uint64) Value { return Value{kind: k, bits: id} }

func (v Value) Kind() Kind { return v.kind }

// Int returns signed integer kinds.
func (v Value) Int() (int64, error) {
	if !v.kind.signed() {
		return 0, ErrKindMismatch
	}
	return int64(v.bits), nil
}

// Uint returns unsigned integer kinds.
func (v Value) Uint() (uint64, error) {
	if !v.kind.unsigned() {
		return 0, ErrKindMismatch
	}
	return v.bits, nil
}

func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, ErrKindMismatch
	}
	return v.bits != 0, nil
}

// Text returns the string payload of a string value.
func (v Value) Text() (string, error) {
	if v.kind != KindString {
		return "", ErrKindMismatch
	}
	return v.str, nil
}

// ID returns identifier kinds.
func (v Value) ID() (uint64, error) {
	if !v.kind.IsID() {
		return 0, ErrKindMismatch
	}
	return v.bits, nil
}

func (v Value) String() string {
	switch {
	case v.kind == KindString:
		return strconv.Quote(v.str)
	case v.kind == KindBool:
		return strconv.FormatBool(v.bits != 0)
	case v.kind.signed():
		return strconv.FormatInt(int64(v.bits), 10)
	case v.kind.IsID():
		return "0x" + strconv.FormatUint(v.bits, 16)
	default:
		return strconv.FormatUint(v.bits, 10)
	}
}
