// Package jdwptest runs an in-process fake debuggee on a loopback listener.
package jdwptest

import (
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/danmuck/jdwpctl/internal/protocol"
	"github.com/danmuck/jdwpctl/internal/protocol/codec"
	"github.com/danmuck/jdwpctl/internal/protocol/commands"
	"github.com/danmuck/jdwpctl/internal/protocol/frame"
	"github.com/danmuck/jdwpctl/internal/protocol/idsizes"
	"github.com/danmuck/jdwpctl/internal/protocol/session"
)

// Reply is what a handler answers with. ID zero means "echo the request id".
type Reply struct {
	Code protocol.ErrorCode
	Body []byte
	ID   uint32
}

// HandlerFunc answers one command.
type HandlerFunc func(req frame.Packet) Reply

// RawHandlerFunc writes whatever it likes to the client.
type RawHandlerFunc func(w io.Writer, req frame.Packet) error

type Option func(*Server)

// WithHandshakeEcho makes the server answer the handshake with echo instead
// of the token, then hang up.
func WithHandshakeEcho(echo []byte) Option {
	return func(s *Server) { s.echo = echo }
}

// WithOneByteWrites splits every reply into single-byte writes.
func WithOneByteWrites() Option {
	return func(s *Server) { s.oneByte = true }
}

// WithSizes sets the IDSizes reply.
func WithSizes(sizes idsizes.Sizes) Option {
	return func(s *Server) { s.sizes = sizes }
}

// Server is a scripted JDWP peer. It serves one client at a time.
type Server struct {
	ln      net.Listener
	echo    []byte
	oneByte bool
	sizes   idsizes.Sizes

	mu       sync.Mutex
	handlers map[commands.ID]HandlerFunc
	raw      map[commands.ID]RawHandlerFunc
	requests []frame.Packet
	errs     []error
	active   net.Conn

	wg sync.WaitGroup
}

// DefaultSizes matches a 64-bit HotSpot VM.
var DefaultSizes = idsizes.Sizes{FieldID: 8, MethodID: 8, ObjectID: 8, ReferenceTypeID: 8, FrameID: 8}

func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("jdwptest: listen: %v", err)
	}
	s := &Server{
		ln:       ln,
		sizes:    DefaultSizes,
		handlers: make(map[commands.ID]HandlerFunc),
		raw:      make(map[commands.ID]RawHandlerFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Handle(commands.IDSizes, func(frame.Packet) Reply {
		return Reply{Body: SizesBody(s.sizes)}
	})

	s.wg.Add(1)
	go s.serve()
	t.Cleanup(func() {
		_ = s.ln.Close()
		s.mu.Lock()
		if s.active != nil {
			_ = s.active.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
		for _, err := range s.Errors() {
			t.Errorf("jdwptest: %v", err)
		}
	})
	return s
}

func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Handle registers a reply for the named command.
func (s *Server) Handle(name string, h HandlerFunc) {
	id := mustLookup(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[id] = h
	delete(s.raw, id)
}

// HandleRaw registers a handler that writes the reply bytes itself.
func (s *Server) HandleRaw(name string, h RawHandlerFunc) {
	id := mustLookup(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[id] = h
	delete(s.handlers, id)
}

// Requests returns every command packet received so far.
func (s *Server) Requests() []frame.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]frame.Packet, len(s.requests))
	copy(out, s.requests)
	return out
}

// Errors returns protocol violations seen from the client, such as a bad
// handshake token.
func (s *Server) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]error, len(s.errs))
	copy(out, s.errs)
	return out
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.serveConn(nc)
	}
}

func (s *Server) serveConn(nc net.Conn) {
	s.mu.Lock()
	s.active = nc
	s.mu.Unlock()
	defer nc.Close()

	if s.echo != nil {
		token := make([]byte, len(session.Magic))
		if _, err := io.ReadFull(nc, token); err == nil {
			_, _ = nc.Write(s.echo)
		}
		return
	}
	if err := session.AcceptHandshake(nc); err != nil {
		if !hungUp(err) {
			s.recordErr(err)
		}
		return
	}

	for {
		req, err := frame.ReadPacket(nc, frame.DefaultLimits())
		if err != nil {
			return
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		id := commands.ID{Set: req.Header.CommandSet, Command: req.Header.Command}
		h, ok := s.handlers[id]
		raw, rawOK := s.raw[id]
		s.mu.Unlock()

		var w io.Writer = nc
		if s.oneByte {
			w = oneByteWriter{nc}
		}
		if rawOK {
			if err := raw(w, req); err != nil {
				return
			}
			continue
		}

		reply := Reply{Code: protocol.ErrorNotImplemented}
		if ok {
			reply = h(req)
		}
		if reply.ID == 0 {
			reply.ID = req.Header.ID
		}
		if err := frame.WritePacket(w, frame.NewReply(reply.ID, reply.Code, reply.Body), frame.DefaultLimits()); err != nil {
			return
		}
	}
}

// hungUp reports a client that went away mid-handshake rather than one that
// sent the wrong token.
func hungUp(err error) bool {
	var opErr *net.OpError
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) || errors.As(err, &opErr)
}

func (s *Server) recordErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func mustLookup(name string) commands.ID {
	id, err := commands.Lookup(name)
	if err != nil {
		panic(err)
	}
	return id
}

type oneByteWriter struct {
	w io.Writer
}

func (o oneByteWriter) Write(p []byte) (int, error) {
	for i := range p {
		if _, err := o.w.Write(p[i : i+1]); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// SizesBody encodes an IDSizes reply.
func SizesBody(s idsizes.Sizes) []byte {
	body := make([]byte, 0, 20)
	for _, w := range []int{s.FieldID, s.MethodID, s.ObjectID, s.ReferenceTypeID, s.FrameID} {
		body = append(body, codec.PackInt32(int32(w))...)
	}
	return body
}

// String encodes s as a JDWP string. It panics if s cannot be counted in a u32.
func String(s string) []byte {
	b, err := codec.PackString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// ID encodes id big-endian in width bytes, the way a VM writes identifiers.
func ID(id uint64, width int) []byte {
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(id)
		id >>= 8
	}
	return out
}
