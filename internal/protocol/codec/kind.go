package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/jdwpctl/internal/protocol/idsizes"
)

var ErrUnknownKind = errors.New("codec: unknown kind")

// Kind is one field type code of a format descriptor.
type Kind uint8

const (
	KindUint8 Kind = iota + 1
	KindBool
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindString

	// Identifier kinds take their width from the session's IDSizes.
	KindObjectID
	KindThreadID
	KindThreadGroupID
	KindStringID
	KindClassLoaderID
	KindClassObjectID
	KindArrayID
	KindReferenceTypeID
	KindClassID
	KindInterfaceID
	KindArrayTypeID
	KindMethodID
	KindFieldID
	KindFrameID

	kindEnd
)

var kindNames = map[Kind]string{
	KindUint8:           "byte",
	KindBool:            "boolean",
	KindInt16:           "int16",
	KindUint16:          "uint16",
	KindInt32:           "int32",
	KindUint32:          "uint32",
	KindInt64:           "int64",
	KindUint64:          "uint64",
	KindString:          "string",
	KindObjectID:        "objectID",
	KindThreadID:        "threadID",
	KindThreadGroupID:   "threadGroupID",
	KindStringID:        "stringID",
	KindClassLoaderID:   "classLoaderID",
	KindClassObjectID:   "classObjectID",
	KindArrayID:         "arrayID",
	KindReferenceTypeID: "referenceTypeID",
	KindClassID:         "classID",
	KindInterfaceID:     "interfaceID",
	KindArrayTypeID:     "arrayTypeID",
	KindMethodID:        "methodID",
	KindFieldID:         "fieldID",
	KindFrameID:         "frameID",
}

// Aliases accepted by ParseFormat in addition to the canonical names.
var kindAliases = map[string]Kind{
	"u8":    KindUint8,
	"uint8": KindUint8,
	"bool":  KindBool,
	"short": KindInt16,
	"i16":   KindInt16,
	"char":  KindUint16,
	"u16":   KindUint16,
	"int":   KindInt32,
	"i32":   KindInt32,
	"u32":   KindUint32,
	"long":  KindInt64,
	"i64":   KindInt64,
	"u64":   KindUint64,
	"str":   KindString,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is a defined kind.
func (k Kind) Valid() bool {
	return k >= KindUint8 && k < kindEnd
}

// IsID reports whether k is an identifier kind.
func (k Kind) IsID() bool {
	_, ok := k.Category()
	return ok
}

// Category maps identifier kinds to the IDSizes category that sizes them.
func (k Kind) Category() (idsizes.Category, bool) {
	switch k {
	case KindObjectID, KindThreadID, KindThreadGroupID, KindStringID,
		KindClassLoaderID, KindClassObjectID, KindArrayID:
		return idsizes.ObjectID, true
	case KindReferenceTypeID, KindClassID, KindInterfaceID, KindArrayTypeID:
		return idsizes.ReferenceTypeID, true
	case KindMethodID:
		return idsizes.MethodID, true
	case KindFieldID:
		return idsizes.FieldID, true
	case KindFrameID:
		return idsizes.FrameID, true
	default:
		return 0, false
	}
}

// FixedWidth returns the encoded width of fixed-size kinds.
func (k Kind) FixedWidth() (int, bool) {
	switch k {
	case KindUint8, KindBool:
		return 1, true
	case KindInt16, KindUint16:
		return 2, true
	case KindInt32, KindUint32:
		return 4, true
	case KindInt64, KindUint64:
		return 8, true
	default:
		return 0, false
	}
}

func (k Kind) signed() bool {
	return k == KindInt16 || k == KindInt32 || k == KindInt64
}

func (k Kind) unsigned() bool {
	return k == KindUint8 || k == KindUint16 || k == KindUint32 || k == KindUint64
}

// Format is an ordered format descriptor.
type Format []Kind

func (f Format) String() string {
	parts := make([]string, len(f))
	for i, k := range f {
		parts[i] = k.String()
	}
	return strings.Join(parts, ",")
}

// ParseFormat builds a Format from comma separated kind names,
// e.g. "int32,string,objectID".
func ParseFormat(raw string) (Format, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Format{}, nil
	}
	parts := strings.Split(raw, ",")
	out := make(Format, 0, len(parts))
	for _, part := range parts {
		k, err := parseKind(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

func parseKind(name string) (Kind, error) {
	for k, canonical := range kindNames {
		if strings.EqualFold(name, canonical) {
			return k, nil
		}
	}
	if k, ok := kindAliases[strings.ToLower(name)]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}
