package tunnel

import (
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// deadlineConn gives an SSH channel the deadline behaviour of a socket. SSH
// channels reject SetDeadline, so an expired deadline closes the channel and
// the blocked call reports os.ErrDeadlineExceeded. The channel is unusable
// afterwards, which matches a session that treats every timeout as fatal.
type deadlineConn struct {
	net.Conn

	mu      sync.Mutex
	read    *time.Timer
	write   *time.Timer
	expired atomic.Bool
}

func newDeadlineConn(nc net.Conn) *deadlineConn {
	return &deadlineConn{Conn: nc}
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if err != nil && c.expired.Load() {
		return n, os.ErrDeadlineExceeded
	}
	return n, err
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.expired.Load() {
		return 0, os.ErrDeadlineExceeded
	}
	n, err := c.Conn.Write(p)
	if err != nil && c.expired.Load() {
		return n, os.ErrDeadlineExceeded
	}
	return n, err
}

func (c *deadlineConn) SetDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arm(&c.read, t)
	c.arm(&c.write, t)
	return nil
}

func (c *deadlineConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arm(&c.read, t)
	return nil
}

func (c *deadlineConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arm(&c.write, t)
	return nil
}

func (c *deadlineConn) Close() error {
	c.mu.Lock()
	c.arm(&c.read, time.Time{})
	c.arm(&c.write, time.Time{})
	c.mu.Unlock()
	err := c.Conn.Close()
	if c.expired.Load() {
		return nil
	}
	return err
}

// arm replaces the timer in slot. Zero t clears it. Caller holds c.mu.
func (c *deadlineConn) arm(slot **time.Timer, t time.Time) {
	if *slot != nil {
		(*slot).Stop()
		*slot = nil
	}
	if t.IsZero() {
		return
	}
	d := time.Until(t)
	if d <= 0 {
		c.expire()
		return
	}
	*slot = time.AfterFunc(d, c.expire)
}

func (c *deadlineConn) expire() {
	c.expired.Store(true)
	_ = c.Conn.Close()
}
