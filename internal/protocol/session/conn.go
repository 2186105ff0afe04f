package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/jdwpctl/internal/protocol"
	"github.com/danmuck/jdwpctl/internal/protocol/commands"
	"github.com/danmuck/jdwpctl/internal/protocol/frame"
)

var (
	ErrNotConnected = fmt.Errorf("%w: session not connected", protocol.ErrTransport)
	ErrInvalidState = errors.New("session: invalid state for connect")
	ErrReplyID      = fmt.Errorf("%w: reply id does not match request", protocol.ErrMalformedPacket)
)

// State is the connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateHandshaking
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Conn is one JDWP session. It is single use: once Closed it cannot be
// reconnected, callers build a new Conn.
type Conn struct {
	cfg Config

	// reqMu keeps one request in flight at a time.
	reqMu  sync.Mutex
	nextID uint32

	mu    sync.Mutex
	state State
	conn  net.Conn
}

func New(cfg Config) *Conn {
	return &Conn{cfg: cfg.WithDefaults()}
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) Address() string {
	return c.cfg.Address
}

// Connect dials the configured address and performs the handshake.
func (c *Conn) Connect(ctx context.Context) error {
	if err := c.checkDisconnected(); err != nil {
		return err
	}
	nc, err := c.dial(ctx)
	if err != nil {
		c.setState(StateClosed)
		return fmt.Errorf("%w: dial %s: %w", protocol.ErrTransport, c.cfg.Address, err)
	}
	return c.Attach(ctx, nc)
}

func (c *Conn) dial(ctx context.Context) (net.Conn, error) {
	if c.cfg.Dial == nil {
		dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
		return dialer.DialContext(ctx, "tcp", c.cfg.Address)
	}
	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}
	return c.cfg.Dial(ctx, "tcp", c.cfg.Address)
}

// Attach performs the handshake over an already open stream and takes
// ownership of it. On failure the stream is closed.
func (c *Conn) Attach(ctx context.Context, nc net.Conn) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		state := c.state
		c.mu.Unlock()
		_ = nc.Close()
		return fmt.Errorf("%w: %s", ErrInvalidState, state)
	}
	c.state = StateHandshaking
	c.conn = nc
	c.mu.Unlock()

	stop := watchContext(ctx, nc)
	defer stop()

	_ = nc.SetDeadline(deadlineFor(ctx, c.cfg.HandshakeTimeout))
	if err := Handshake(nc); err != nil {
		c.fail()
		log.Warn().Str("addr", c.cfg.Address).Err(err).Msg("jdwp handshake failed")
		return err
	}
	_ = nc.SetDeadline(time.Time{})

	c.setState(StateConnected)
	log.Debug().Str("addr", c.cfg.Address).Msg("jdwp handshake complete")
	return nil
}

// SendCommand round-trips one command and returns the reply body. Unknown
// names fail before anything is written. A reply carrying an error code is
// returned with a *protocol.ReplyError; the session stays usable. Transport
// and framing failures close the session.
func (c *Conn) SendCommand(ctx context.Context, name string, payload []byte) ([]byte, error) {
	cmd, err := commands.Lookup(name)
	if err != nil {
		return nil, err
	}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	nc, err := c.active()
	if err != nil {
		return nil, err
	}

	c.nextID++
	id := c.nextID
	wire, err := frame.EncodePacket(frame.NewCommand(id, cmd.Set, cmd.Command, payload), c.cfg.Limits)
	if err != nil {
		return nil, fmt.Errorf("session: %s: %w", name, err)
	}

	stop := watchContext(ctx, nc)
	defer stop()

	_ = nc.SetWriteDeadline(deadlineFor(ctx, c.cfg.WriteTimeout))
	if _, err := nc.Write(wire); err != nil {
		c.fail()
		return nil, fmt.Errorf("%w: %s: write: %w", protocol.ErrTransport, name, contextCause(ctx, err))
	}

	_ = nc.SetReadDeadline(deadlineFor(ctx, c.cfg.ReadTimeout))
	reply, err := c.readReply(nc)
	if err != nil {
		c.fail()
		return nil, fmt.Errorf("session: %s: %w", name, contextCause(ctx, err))
	}
	_ = nc.SetDeadline(time.Time{})

	if reply.Header.ID != id {
		c.fail()
		return nil, fmt.Errorf("%w: %s: sent=%d got=%d", ErrReplyID, name, id, reply.Header.ID)
	}

	log.Debug().
		Str("command", name).
		Uint32("id", id).
		Int("bytes", len(reply.Body)).
		Msg("jdwp reply")

	if code := reply.Header.ErrorCode(); code != protocol.ErrorNone {
		return reply.Body, &protocol.ReplyError{Command: name, Code: code}
	}
	return reply.Body, nil
}

// readReply skips command packets the VM sends on its own (events) and
// returns the next reply.
func (c *Conn) readReply(nc net.Conn) (frame.Packet, error) {
	for {
		p, err := frame.ReadPacket(nc, c.cfg.Limits)
		if err != nil {
			return frame.Packet{}, err
		}
		if p.Header.IsReply() {
			return p, nil
		}
		log.Debug().
			Uint8("set", p.Header.CommandSet).
			Uint8("command", p.Header.Command).
			Uint32("id", p.Header.ID).
			Msg("jdwp dropped unsolicited command packet")
	}
}

// Close releases the socket. It is safe on any state and more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateClosed
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Conn) checkDisconnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDisconnected {
		return fmt.Errorf("%w: %s", ErrInvalidState, c.state)
	}
	return nil
}

func (c *Conn) active() (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.conn == nil {
		return nil, fmt.Errorf("%w: state=%s", ErrNotConnected, c.state)
	}
	return c.conn, nil
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Conn) fail() {
	if err := c.Close(); err != nil {
		log.Debug().Err(err).Str("addr", c.cfg.Address).Msg("jdwp close after failure")
	}
}

// deadlineFor returns now+d, or the ctx deadline when earlier. Zero d with
// no ctx deadline means no deadline. A ctx that is already done yields a past
// deadline, so cancellation that lands before the caller sets its deadline is
// not overwritten.
func deadlineFor(ctx context.Context, d time.Duration) time.Time {
	if ctx.Err() != nil {
		return pastDeadline
	}
	var deadline time.Time
	if d > 0 {
		deadline = time.Now().Add(d)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (deadline.IsZero() || ctxDeadline.Before(deadline)) {
		deadline = ctxDeadline
	}
	return deadline
}

// pastDeadline fails pending and future I/O immediately.
var pastDeadline = time.Unix(1, 0)

// watchContext unblocks pending I/O on nc when ctx is cancelled.
func watchContext(ctx context.Context, nc net.Conn) func() bool {
	return context.AfterFunc(ctx, func() {
		_ = nc.SetDeadline(pastDeadline)
	})
}

func contextCause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w (%w)", err, ctxErr)
	}
	return err
}
