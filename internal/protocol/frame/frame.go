package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/jdwpctl/internal/protocol"
)

const (
	HeaderLen = 11

	// FlagReply marks a reply packet; its last two header bytes carry an
	// error code instead of command set and command.
	FlagReply uint8 = 0x80
)

var (
	ErrShortHeader    = fmt.Errorf("%w: short packet header", protocol.ErrTransport)
	ErrShortBody      = fmt.Errorf("%w: short packet body", protocol.ErrTransport)
	ErrLengthTooSmall = fmt.Errorf("%w: length smaller than header", protocol.ErrMalformedPacket)
	ErrPacketTooLarge = fmt.Errorf("%w: packet too large", protocol.ErrMalformedPacket)

	// ErrBodyTooLarge is raised on the encode side before anything is written.
	ErrBodyTooLarge = errors.New("frame: body too large")
)

// Header is the fixed 11-byte JDWP packet header.
type Header struct {
	Length     uint32
	ID         uint32
	Flags      uint8
	CommandSet uint8
	Command    uint8
}

// IsReply reports whether the reply flag is set.
func (h Header) IsReply() bool {
	return h.Flags&FlagReply != 0
}

// ErrorCode returns the reply error code. It is only meaningful for replies.
func (h Header) ErrorCode() protocol.ErrorCode {
	return protocol.ErrorCode(uint16(h.CommandSet)<<8 | uint16(h.Command))
}

// Packet is one complete wire message.
type Packet struct {
	Header Header
	Body   []byte
}

// NewCommand builds a command packet; Length is filled by WritePacket.
func NewCommand(id uint32, set, command uint8, body []byte) Packet {
	return Packet{
		Header: Header{ID: id, CommandSet: set, Command: command},
		Body:   body,
	}
}

// NewReply builds a reply packet carrying code in place of set/command.
func NewReply(id uint32, code protocol.ErrorCode, body []byte) Packet {
	return Packet{
		Header: Header{
			ID:         id,
			Flags:      FlagReply,
			CommandSet: uint8(uint16(code) >> 8),
			Command:    uint8(code),
		},
		Body: body,
	}
}

// Limits constrains packet decode/encode memory use.
type Limits struct {
	MaxPacketBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPacketBytes: 64 * 1024 * 1024,
	}
}

// ReadPacket reads exactly one packet. Partial reads from r are accumulated
// until the declared length is satisfied.
func ReadPacket(r io.Reader, limits Limits) (Packet, error) {
	var fixed [HeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Packet{}, ErrShortHeader
		}
		return Packet{}, fmt.Errorf("%w: read header: %w", protocol.ErrTransport, err)
	}

	h := DecodeHeader(fixed)
	if h.Length < HeaderLen {
		return Packet{}, fmt.Errorf("%w: length=%d", ErrLengthTooSmall, h.Length)
	}
	if limits.MaxPacketBytes > 0 && h.Length > limits.MaxPacketBytes {
		return Packet{}, fmt.Errorf("%w: length=%d max=%d", ErrPacketTooLarge, h.Length, limits.MaxPacketBytes)
	}

	body := make([]byte, h.Length-HeaderLen)
	if len(body) > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return Packet{}, fmt.Errorf("%w: want=%d", ErrShortBody, len(body))
			}
			return Packet{}, fmt.Errorf("%w: read body: %w", protocol.ErrTransport, err)
		}
	}

	return Packet{Header: h, Body: body}, nil
}

// WritePacket writes header and body as a single buffer.
func WritePacket(w io.Writer, p Packet, limits Limits) error {
	b, err := EncodePacket(p, limits)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("%w: write packet: %w", protocol.ErrTransport, err)
	}
	return nil
}

// EncodePacket returns the wire bytes of p with Length set from the body.
func EncodePacket(p Packet, limits Limits) ([]byte, error) {
	total := uint64(HeaderLen) + uint64(len(p.Body))
	if total > uint64(^uint32(0)) || (limits.MaxPacketBytes > 0 && total > uint64(limits.MaxPacketBytes)) {
		return nil, fmt.Errorf("%w: length=%d", ErrBodyTooLarge, total)
	}
	h := p.Header
	h.Length = uint32(total)

	buf := make([]byte, 0, total)
	buf = append(buf, EncodeHeader(h)...)
	buf = append(buf, p.Body...)
	return buf, nil
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.Length)
	binary.BigEndian.PutUint32(buf[4:8], h.ID)
	buf[8] = h.Flags
	buf[9] = h.CommandSet
	buf[10] = h.Command
	return buf
}

func DecodeHeader(b [HeaderLen]byte) Header {
	return Header{
		Length:     binary.BigEndian.Uint32(b[0:4]),
		ID:         binary.BigEndian.Uint32(b[4:8]),
		Flags:      b[8],
		CommandSet: b[9],
		Command:    b[10],
	}
}
