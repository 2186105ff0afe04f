package session

import (
	"bytes"
	"fmt"
	"io"

	"github.com/danmuck/jdwpctl/internal/protocol"
)

// Magic is the token both sides exchange before any packet is valid.
const Magic = "JDWP-Handshake"

// Handshake writes Magic and requires the peer to echo it byte for byte.
func Handshake(rw io.ReadWriter) error {
	if _, err := rw.Write([]byte(Magic)); err != nil {
		return fmt.Errorf("%w: write token: %w", protocol.ErrHandshake, err)
	}
	echo := make([]byte, len(Magic))
	n, err := io.ReadFull(rw, echo)
	if err != nil {
		return fmt.Errorf("%w: read token (%d of %d bytes): %w", protocol.ErrHandshake, n, len(Magic), err)
	}
	if !bytes.Equal(echo, []byte(Magic)) {
		return fmt.Errorf("%w: peer echoed %q", protocol.ErrHandshake, echo)
	}
	return nil
}

// AcceptHandshake is the debuggee side: read Magic, then echo it.
func AcceptHandshake(rw io.ReadWriter) error {
	token := make([]byte, len(Magic))
	if _, err := io.ReadFull(rw, token); err != nil {
		return fmt.Errorf("%w: read token: %w", protocol.ErrHandshake, err)
	}
	if !bytes.Equal(token, []byte(Magic)) {
		return fmt.Errorf("%w: client sent %q", protocol.ErrHandshake, token)
	}
	if _, err := rw.Write(token); err != nil {
		return fmt.Errorf("%w: write token: %w", protocol.ErrHandshake, err)
	}
	return nil
}
