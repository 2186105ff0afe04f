package vm

import (
	"fmt"
	"strings"
)

type VersionInfo struct {
	Description string
	JDWPMajor   int32
	JDWPMinor   int32
	VMVersion   string
	VMName      string
}

// TypeTag is the kind of a reference type.
type TypeTag uint8

const (
	TypeTagClass     TypeTag = 1
	TypeTagInterface TypeTag = 2
	TypeTagArray     TypeTag = 3
)

func (t TypeTag) String() string {
	switch t {
	case TypeTagClass:
		return "class"
	case TypeTagInterface:
		return "interface"
	case TypeTagArray:
		return "array"
	default:
		return fmt.Sprintf("typetag(%d)", uint8(t))
	}
}

// ClassStatus is the bit set reported for each loaded class.
type ClassStatus int32

const (
	ClassStatusVerified    ClassStatus = 1
	ClassStatusPrepared    ClassStatus = 2
	ClassStatusInitialized ClassStatus = 4
	ClassStatusError       ClassStatus = 8
)

func (s ClassStatus) String() string {
	if s == 0 {
		return "none"
	}
	var parts []string
	for _, f := range []struct {
		bit  ClassStatus
		name string
	}{
		{ClassStatusVerified, "verified"},
		{ClassStatusPrepared, "prepared"},
		{ClassStatusInitialized, "initialized"},
		{ClassStatusError, "error"},
	} {
		if s&f.bit != 0 {
			parts = append(parts, f.name)
		}
	}
	if rest := s &^ (ClassStatusVerified | ClassStatusPrepared | ClassStatusInitialized | ClassStatusError); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", int32(rest)))
	}
	return strings.Join(parts, "|")
}

// ClassInfo is one loaded reference type. GenericSignature is empty unless
// the VM reported one through AllClassesWithGeneric.
type ClassInfo struct {
	RefTypeTag       TypeTag
	TypeID           uint64
	Signature        string
	GenericSignature string
	Status           ClassStatus
}

type ClassPathInfo struct {
	BaseDir        string
	ClassPaths     []string
	BootClassPaths []string
}
