// Package vm is a typed client for the JDWP VirtualMachine command set.
//
// A Client owns one session and its identifier widths. Attach connects,
// completes the handshake and loads IDSizes before returning, so every
// typed call can decode identifiers.
package vm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/jdwpctl/internal/observability"
	"github.com/danmuck/jdwpctl/internal/protocol"
	"github.com/danmuck/jdwpctl/internal/protocol/codec"
	"github.com/danmuck/jdwpctl/internal/protocol/commands"
	"github.com/danmuck/jdwpctl/internal/protocol/idsizes"
	"github.com/danmuck/jdwpctl/internal/protocol/session"
)

// Config is what Attach needs. MaxConnectAttempts below 1 means one attempt.
type Config struct {
	Session            session.Config
	MaxConnectAttempts int
}

type Client struct {
	conn  *session.Conn
	sizes idsizes.Registry
	dec   *codec.Decoder
}

// Attach dials cfg.Session.Address, retrying failed dials with backoff, and
// loads IDSizes. A handshake failure is not retried.
func Attach(ctx context.Context, cfg Config) (*Client, error) {
	attempts := cfg.MaxConnectAttempts
	if attempts < 1 {
		attempts = 1
	}
	scfg := cfg.Session.WithDefaults()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn := session.New(scfg)
		err := conn.Connect(ctx)
		observability.RecordHandshake(err)
		if err == nil {
			return Open(ctx, conn)
		}
		lastErr = err
		if errors.Is(err, protocol.ErrHandshake) || ctx.Err() != nil || attempt == attempts {
			break
		}
		log.Warn().
			Str("addr", scfg.Address).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Err(err).
			Msg("jdwp connect failed, retrying")
		if err := session.SleepBackoff(ctx, scfg.Backoff, attempt, rng); err != nil {
			return nil, fmt.Errorf("vm: attach %s: %w", scfg.Address, err)
		}
	}
	return nil, fmt.Errorf("vm: attach %s: %w", scfg.Address, lastErr)
}

// Open wraps an already connected session and loads its IDSizes. The
// session is closed if that fails.
func Open(ctx context.Context, conn *session.Conn) (*Client, error) {
	c := &Client{conn: conn}
	c.dec = codec.NewDecoder(&c.sizes)

	sizes, err := c.IDSizes(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := c.sizes.Set(sizes); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("vm: id sizes: %w", err)
	}
	log.Debug().
		Str("addr", conn.Address()).
		Int("object", sizes.ObjectID).
		Int("reftype", sizes.ReferenceTypeID).
		Int("method", sizes.MethodID).
		Int("field", sizes.FieldID).
		Int("frame", sizes.FrameID).
		Msg("jdwp id sizes")
	return c, nil
}

// Sizes returns the identifier widths loaded at attach time.
func (c *Client) Sizes() (idsizes.Sizes, error) {
	return c.sizes.Ready()
}

func (c *Client) Address() string {
	return c.conn.Address()
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Send round-trips a raw command and records it in the command metrics.
func (c *Client) Send(ctx context.Context, name string, payload []byte) ([]byte, error) {
	start := time.Now()
	body, err := c.conn.SendCommand(ctx, name, payload)
	observability.RecordCommand(name, err, time.Since(start), len(body))
	return body, err
}

// Decode unpacks body against format using this session's widths. It
// returns the values and the number of bytes they used.
func (c *Client) Decode(body []byte, format codec.Format) ([]codec.Value, int, error) {
	return c.dec.Unpack(body, format, 0)
}

// call is Send for typed operations: reply errors are returned as errors
// and the body is handed to a reader.
func (c *Client) call(ctx context.Context, name string, payload []byte) (*reader, error) {
	body, err := c.Send(ctx, name, payload)
	if err != nil {
		return nil, err
	}
	return newReader(name, c.dec, body), nil
}

// IDSizes asks the VM for its identifier widths. It does not touch the
// registry.
func (c *Client) IDSizes(ctx context.Context) (idsizes.Sizes, error) {
	r, err := c.call(ctx, commands.IDSizes, nil)
	if err != nil {
		return idsizes.Sizes{}, err
	}
	sizes := idsizes.Sizes{
		FieldID:         int(r.i32()),
		MethodID:        int(r.i32()),
		ObjectID:        int(r.i32()),
		ReferenceTypeID: int(r.i32()),
		FrameID:         int(r.i32()),
	}
	if err := r.done(); err != nil {
		return idsizes.Sizes{}, err
	}
	if err := sizes.Validate(); err != nil {
		return idsizes.Sizes{}, fmt.Errorf("%w: %s reply: %w", protocol.ErrMalformedPacket, commands.IDSizes, err)
	}
	return sizes, nil
}
