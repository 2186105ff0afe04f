package protocol

import "errors"

var (
	ErrHandshake       = errors.New("protocol: handshake failed")
	ErrTransport       = errors.New("protocol: transport failure")
	ErrUnknownCommand  = errors.New("protocol: unknown command")
	ErrMalformedPacket = errors.New("protocol: malformed packet")
	ErrCodecState      = errors.New("protocol: id sizes not populated")
)

// IsFatal reports whether err leaves the session unusable.
// Handshake, transport and framing failures all require a new connection.
func IsFatal(err error) bool {
	return errors.Is(err, ErrHandshake) ||
		errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrMalformedPacket)
}

// IsCallerError reports whether err was raised locally before anything
// reached the wire.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrUnknownCommand) ||
		errors.Is(err, ErrCodecState)
}
