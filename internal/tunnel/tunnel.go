// Package tunnel reaches a debuggee through an SSH bastion. Each JDWP session
// rides its own direct-tcpip channel, so a VM bound to the remote loopback
// stays reachable without exposing the agent port.
package tunnel

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/danmuck/jdwpctl/internal/protocol"
)

type Config struct {
	Host                        string
	Port                        string
	User                        string
	KeyPath                     string
	Passphrase                  []byte
	KnownHostsPath              string
	InsecureSkipHostKeyChecking bool
	Timeout                     time.Duration
}

// Enabled reports whether a bastion host is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

// Dialer opens channels over one SSH client connection.
type Dialer struct {
	client *ssh.Client
	addr   string
}

// Open connects and authenticates to the bastion.
func Open(ctx context.Context, cfg Config) (*Dialer, error) {
	address, err := cfg.address()
	if err != nil {
		return nil, err
	}
	config, err := cfg.clientConfig()
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: ssh dial %s: %w", protocol.ErrTransport, address, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()
	if cfg.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(cfg.Timeout))
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: ssh handshake %s: %w", protocol.ErrTransport, address, err)
	}
	if !stop() {
		clientConn.Close()
		return nil, fmt.Errorf("%w: ssh handshake %s: %w", protocol.ErrTransport, address, ctx.Err())
	}
	_ = conn.SetDeadline(time.Time{})

	log.Debug().Str("bastion", address).Str("user", cfg.User).Msg("ssh tunnel up")
	return &Dialer{client: ssh.NewClient(clientConn, chans, reqs), addr: address}, nil
}

// DialContext opens a channel from the bastion to addr. Its signature fits
// session.Config.Dial.
func (d *Dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	nc, err := d.client.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("via %s: %w", d.addr, err)
	}
	return newDeadlineConn(nc), nil
}

func (d *Dialer) Close() error {
	return d.client.Close()
}

func (c Config) address() (string, error) {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		return "", fmt.Errorf("ssh host is required")
	}

	if c.Port != "" {
		return net.JoinHostPort(host, c.Port), nil
	}

	if _, _, err := net.SplitHostPort(host); err == nil {
		return host, nil
	}

	return net.JoinHostPort(host, "22"), nil
}

func (c Config) clientConfig() (*ssh.ClientConfig, error) {
	if c.User == "" {
		return nil, fmt.Errorf("ssh user is required")
	}

	signer, err := c.signer()
	if err != nil {
		return nil, err
	}

	var hostKeyCallback ssh.HostKeyCallback
	if c.InsecureSkipHostKeyChecking {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	} else {
		callback, err := c.knownHostsCallback()
		if err != nil {
			return nil, err
		}
		hostKeyCallback = callback
	}

	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.Timeout,
	}, nil
}

func (c Config) signer() (ssh.Signer, error) {
	if c.KeyPath == "" {
		return nil, fmt.Errorf("ssh key path is required")
	}

	privateKey, err := os.ReadFile(c.KeyPath)
	if err != nil {
		return nil, err
	}

	if len(c.Passphrase) > 0 {
		return ssh.ParsePrivateKeyWithPassphrase(privateKey, c.Passphrase)
	}

	return ssh.ParsePrivateKey(privateKey)
}

func (c Config) knownHostsCallback() (ssh.HostKeyCallback, error) {
	path := strings.TrimSpace(c.KnownHostsPath)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("known hosts path not set and home dir unavailable")
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}

	return knownhosts.New(path)
}
