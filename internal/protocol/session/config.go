package session

import (
	"context"
	"net"
	"time"

	"github.com/danmuck/jdwpctl/internal/protocol/frame"
)

// BackoffConfig defines connect retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines transport defaults. A zero timeout disables that deadline
// and leaves the call blocking until the peer answers or ctx is done.
type Config struct {
	Address          string
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	Limits           frame.Limits
	Backoff          BackoffConfig

	// Dial replaces the plain TCP dial, e.g. with an SSH tunnel. ConnectTimeout
	// still bounds it.
	Dial func(ctx context.Context, network, address string) (net.Conn, error)
}

func DefaultConfig() Config {
	return Config{
		Address:          "localhost:8000",
		ConnectTimeout:   5 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     15 * time.Second,
		Limits:           frame.DefaultLimits(),
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills fields that have no meaningful zero value. A zero
// Backoff is kept and means retry without waiting.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Address == "" {
		c.Address = def.Address
	}
	if c.Limits.MaxPacketBytes == 0 {
		c.Limits = def.Limits
	}
	return c
}
