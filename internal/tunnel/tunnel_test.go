package tunnel

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/danmuck/jdwpctl/internal/protocol"
	"github.com/danmuck/jdwpctl/internal/protocol/commands"
	"github.com/danmuck/jdwpctl/internal/protocol/frame"
	"github.com/danmuck/jdwpctl/internal/protocol/session"
	"github.com/danmuck/jdwpctl/internal/testutil/jdwptest"
	"github.com/danmuck/jdwpctl/internal/testutil/testlog"
	"github.com/danmuck/jdwpctl/internal/vm"
)

// bastion is an in-process SSH server that forwards every direct-tcpip
// channel to target and records the destination the client asked for.
type bastion struct {
	addr    string
	hostKey ssh.Signer

	mu    sync.Mutex
	dests []string
}

func newSigner(t *testing.T) (ssh.Signer, ed25519.PrivateKey) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return signer, priv
}

func startBastion(t *testing.T, user string, clientKey ssh.PublicKey, target string) *bastion {
	t.Helper()
	hostKey, _ := newSigner(t)
	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if meta.User() == user && bytes.Equal(key.Marshal(), clientKey.Marshal()) {
				return nil, nil
			}
			return nil, fmt.Errorf("unknown key for %s", meta.User())
		},
	}
	cfg.AddHostKey(hostKey)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	b := &bastion{addr: ln.Addr().String(), hostKey: hostKey}

	var wg sync.WaitGroup
	var connsMu sync.Mutex
	var conns []net.Conn
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			connsMu.Lock()
			conns = append(conns, nc)
			connsMu.Unlock()
			go b.serve(nc, cfg, target)
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		connsMu.Lock()
		for _, nc := range conns {
			_ = nc.Close()
		}
		connsMu.Unlock()
		wg.Wait()
	})
	return b
}

func (b *bastion) serve(nc net.Conn, cfg *ssh.ServerConfig, target string) {
	sconn, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	for nch := range chans {
		if nch.ChannelType() != "direct-tcpip" {
			_ = nch.Reject(ssh.UnknownChannelType, nch.ChannelType())
			continue
		}
		var dest struct {
			Host     string
			Port     uint32
			OrigHost string
			OrigPort uint32
		}
		if err := ssh.Unmarshal(nch.ExtraData(), &dest); err != nil {
			_ = nch.Reject(ssh.ConnectionFailed, err.Error())
			continue
		}
		b.mu.Lock()
		b.dests = append(b.dests, net.JoinHostPort(dest.Host, fmt.Sprint(dest.Port)))
		b.mu.Unlock()

		upstream, err := net.Dial("tcp", target)
		if err != nil {
			_ = nch.Reject(ssh.ConnectionFailed, err.Error())
			continue
		}
		ch, chReqs, err := nch.Accept()
		if err != nil {
			_ = upstream.Close()
			continue
		}
		go ssh.DiscardRequests(chReqs)
		go func() {
			_, _ = io.Copy(ch, upstream)
			_ = ch.Close()
		}()
		go func() {
			_, _ = io.Copy(upstream, ch)
			_ = upstream.Close()
		}()
	}
}

func (b *bastion) destinations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.dests...)
}

// writeClientFiles stores the client key and a known_hosts line for hostKey.
func writeClientFiles(t *testing.T, priv ed25519.PrivateKey, addr string, hostKey ssh.PublicKey) (keyPath, knownHostsPath string) {
	t.Helper()
	dir := t.TempDir()

	block, err := ssh.MarshalPrivateKey(priv, "jdwpctl-test")
	require.NoError(t, err)
	keyPath = filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600))

	line := knownhosts.Line([]string{knownhosts.Normalize(addr)}, hostKey)
	knownHostsPath = filepath.Join(dir, "known_hosts")
	require.NoError(t, os.WriteFile(knownHostsPath, []byte(line+"\n"), 0o600))
	return keyPath, knownHostsPath
}

func tunnelConfig(t *testing.T, srv *jdwptest.Server) (Config, *bastion) {
	t.Helper()
	clientSigner, clientPriv := newSigner(t)
	b := startBastion(t, "jdwp", clientSigner.PublicKey(), srv.Addr())
	keyPath, knownHosts := writeClientFiles(t, clientPriv, b.addr, b.hostKey.PublicKey())
	return Config{
		Host:           b.addr,
		User:           "jdwp",
		KeyPath:        keyPath,
		KnownHostsPath: knownHosts,
		Timeout:        2 * time.Second,
	}, b
}

func sessionConfig(d *Dialer) session.Config {
	scfg := session.DefaultConfig()
	scfg.Address = "debuggee.internal:8000"
	scfg.ConnectTimeout = 2 * time.Second
	scfg.HandshakeTimeout = 2 * time.Second
	scfg.ReadTimeout = 2 * time.Second
	scfg.WriteTimeout = 2 * time.Second
	scfg.Dial = d.DialContext
	return scfg
}

func TestAttachThroughTunnel(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t)
	cfg, b := tunnelConfig(t, srv)

	d, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer d.Close()

	client, err := vm.Attach(context.Background(), vm.Config{Session: sessionConfig(d), MaxConnectAttempts: 1})
	require.NoError(t, err)
	defer client.Close()

	sizes, err := client.Sizes()
	require.NoError(t, err)
	require.Equal(t, jdwptest.DefaultSizes, sizes)
	require.Equal(t, []string{"debuggee.internal:8000"}, b.destinations())
}

func TestReadTimeoutThroughTunnel(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t)
	srv.HandleRaw(commands.Suspend, func(io.Writer, frame.Packet) error { return nil })
	cfg, _ := tunnelConfig(t, srv)

	d, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer d.Close()

	scfg := sessionConfig(d)
	scfg.ReadTimeout = 50 * time.Millisecond
	c := session.New(scfg)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	_, err = c.SendCommand(context.Background(), commands.Suspend, nil)
	require.ErrorIs(t, err, protocol.ErrTransport)
	var netErr net.Error
	require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "expected timeout, got %v", err)
	require.Equal(t, session.StateClosed, c.State())
}

func TestOpenRejectsUnknownHostKey(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t)
	cfg, b := tunnelConfig(t, srv)

	impostor, _ := newSigner(t)
	_, clientPriv := newSigner(t)
	_, cfg.KnownHostsPath = writeClientFiles(t, clientPriv, b.addr, impostor.PublicKey())

	_, err := Open(context.Background(), cfg)
	require.ErrorIs(t, err, protocol.ErrTransport)
	require.ErrorContains(t, err, "key mismatch")
	require.Empty(t, b.destinations())
}

func TestOpenRejectsUnauthorizedUser(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t)
	cfg, _ := tunnelConfig(t, srv)
	cfg.User = "someone-else"

	_, err := Open(context.Background(), cfg)
	require.ErrorIs(t, err, protocol.ErrTransport)
}

func TestConfigValidation(t *testing.T) {
	testlog.Start(t)
	c := Config{}
	require.False(t, c.Enabled())
	_, err := c.address()
	require.Error(t, err)

	c.Host = "bastion-a"
	require.True(t, c.Enabled())
	addr, err := c.address()
	require.NoError(t, err)
	require.Equal(t, "bastion-a:22", addr)

	c.Port = "2222"
	addr, err = c.address()
	require.NoError(t, err)
	require.Equal(t, "bastion-a:2222", addr)

	_, err = c.clientConfig()
	require.ErrorContains(t, err, "ssh user is required")

	c.User = "jdwp"
	_, err = c.clientConfig()
	require.ErrorContains(t, err, "ssh key path is required")
}

func TestDeadlineConnExpires(t *testing.T) {
	testlog.Start(t)
	client, peer := net.Pipe()
	defer peer.Close()
	dc := newDeadlineConn(client)
	defer dc.Close()

	require.NoError(t, dc.SetReadDeadline(time.Now().Add(30*time.Millisecond)))
	_, err := dc.Read(make([]byte, 1))
	require.ErrorIs(t, err, os.ErrDeadlineExceeded)

	_, err = dc.Write([]byte{1})
	require.ErrorIs(t, err, os.ErrDeadlineExceeded)
	require.NoError(t, dc.Close())
}

func TestDeadlineConnClearedDeadlineNeverFires(t *testing.T) {
	testlog.Start(t)
	client, peer := net.Pipe()
	defer peer.Close()
	dc := newDeadlineConn(client)
	defer dc.Close()

	require.NoError(t, dc.SetDeadline(time.Now().Add(20*time.Millisecond)))
	require.NoError(t, dc.SetDeadline(time.Time{}))
	time.Sleep(50 * time.Millisecond)

	go func() { _, _ = peer.Write([]byte{7}) }()
	buf := make([]byte, 1)
	n, err := dc.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, byte(7), buf[0])
}
