package vm

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danmuck/jdwpctl/internal/protocol"
	"github.com/danmuck/jdwpctl/internal/protocol/codec"
	"github.com/danmuck/jdwpctl/internal/protocol/commands"
	"github.com/danmuck/jdwpctl/internal/protocol/frame"
	"github.com/danmuck/jdwpctl/internal/protocol/idsizes"
	"github.com/danmuck/jdwpctl/internal/protocol/session"
	"github.com/danmuck/jdwpctl/internal/testutil/jdwptest"
	"github.com/danmuck/jdwpctl/internal/testutil/testlog"
)

var compactSizes = idsizes.Sizes{FieldID: 4, MethodID: 4, ObjectID: 4, ReferenceTypeID: 4, FrameID: 4}

func testConfig(addr string) Config {
	scfg := session.DefaultConfig()
	scfg.Address = addr
	scfg.ConnectTimeout = time.Second
	scfg.HandshakeTimeout = time.Second
	scfg.ReadTimeout = 2 * time.Second
	scfg.WriteTimeout = time.Second
	scfg.Backoff = session.BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1}
	return Config{Session: scfg, MaxConnectAttempts: 1}
}

func attach(t *testing.T, srv *jdwptest.Server) *Client {
	t.Helper()
	c, err := Attach(context.Background(), testConfig(srv.Addr()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func body(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func reply(b []byte) jdwptest.HandlerFunc {
	return func(frame.Packet) jdwptest.Reply { return jdwptest.Reply{Body: b} }
}

func TestAttachLoadsSizes(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t, jdwptest.WithSizes(compactSizes))
	c := attach(t, srv)

	sizes, err := c.Sizes()
	require.NoError(t, err)
	require.Equal(t, compactSizes, sizes)
	require.Len(t, srv.Requests(), 1)
}

func TestAttachRejectsInvalidSizes(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t, jdwptest.WithSizes(idsizes.Sizes{}))
	_, err := Attach(context.Background(), testConfig(srv.Addr()))
	require.ErrorIs(t, err, protocol.ErrMalformedPacket)
}

func TestAttachDoesNotRetryHandshake(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t, jdwptest.WithHandshakeEcho([]byte("nope")))
	cfg := testConfig(srv.Addr())
	cfg.MaxConnectAttempts = 3

	_, err := Attach(context.Background(), cfg)
	require.ErrorIs(t, err, protocol.ErrHandshake)
}

func TestAttachRetriesDial(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := testConfig(addr)
	cfg.MaxConnectAttempts = 3
	start := time.Now()
	_, err = Attach(context.Background(), cfg)
	require.ErrorIs(t, err, protocol.ErrTransport)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestAttachStopsOnCancelledContext(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := testConfig("127.0.0.1:1")
	cfg.MaxConnectAttempts = 5
	_, err := Attach(ctx, cfg)
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t)
	srv.Handle(commands.Version, reply(body(
		jdwptest.String("Java Debug Wire Protocol (Reference Implementation) version 17.0"),
		codec.PackInt32(17),
		codec.PackInt32(0),
		jdwptest.String("17.0.9"),
		jdwptest.String("OpenJDK 64-Bit Server VM"),
	)))
	c := attach(t, srv)

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(17), v.JDWPMajor)
	require.Equal(t, int32(0), v.JDWPMinor)
	require.Equal(t, "17.0.9", v.VMVersion)
	require.Equal(t, "OpenJDK 64-Bit Server VM", v.VMName)
}

func classRecord(width int, tag TypeTag, id uint64, sig string, status ClassStatus) []byte {
	return body([]byte{byte(tag)}, jdwptest.ID(id, width), jdwptest.String(sig), codec.PackInt32(int32(status)))
}

func TestAllClassesFollowsReferenceWidth(t *testing.T) {
	testlog.Start(t)
	for _, width := range []int{4, 8} {
		sizes := jdwptest.DefaultSizes
		sizes.ReferenceTypeID = width
		srv := jdwptest.NewServer(t, jdwptest.WithSizes(sizes))
		srv.Handle(commands.AllClasses, reply(body(
			codec.PackInt32(2),
			classRecord(width, TypeTagClass, 0x1234, "Ljava/lang/String;", ClassStatusVerified|ClassStatusPrepared|ClassStatusInitialized),
			classRecord(width, TypeTagArray, 0x99, "[I", ClassStatusInitialized),
		)))
		c := attach(t, srv)

		classes, err := c.AllClasses(context.Background())
		require.NoError(t, err)
		require.Equal(t, []ClassInfo{
			{RefTypeTag: TypeTagClass, TypeID: 0x1234, Signature: "Ljava/lang/String;", Status: 7},
			{RefTypeTag: TypeTagArray, TypeID: 0x99, Signature: "[I", Status: 4},
		}, classes)
	}
}

func TestAllClassesWithGeneric(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t)
	srv.Handle(commands.AllClassesWithGeneric, reply(body(
		codec.PackInt32(1),
		[]byte{byte(TypeTagInterface)},
		jdwptest.ID(7, 8),
		jdwptest.String("Ljava/util/List;"),
		jdwptest.String("<E:Ljava/lang/Object;>Ljava/lang/Object;Ljava/util/Collection<TE;>;"),
		codec.PackInt32(int32(ClassStatusVerified)),
	)))
	c := attach(t, srv)

	classes, err := c.AllClassesWithGeneric(context.Background())
	require.NoError(t, err)
	require.Len(t, classes, 1)
	require.Equal(t, TypeTagInterface, classes[0].RefTypeTag)
	require.Equal(t, "Ljava/util/List;", classes[0].Signature)
	require.Contains(t, classes[0].GenericSignature, "Collection")
}

func TestClassesBySignature(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t)
	srv.Handle(commands.ClassesBySignature, reply(body(
		codec.PackInt32(1),
		[]byte{byte(TypeTagClass)},
		jdwptest.ID(42, 8),
		codec.PackInt32(int32(ClassStatusInitialized)),
	)))
	c := attach(t, srv)

	classes, err := c.ClassesBySignature(context.Background(), "Ljava/lang/String;")
	require.NoError(t, err)
	require.Equal(t, []ClassInfo{{RefTypeTag: TypeTagClass, TypeID: 42, Signature: "Ljava/lang/String;", Status: ClassStatusInitialized}}, classes)

	reqs := srv.Requests()
	require.Equal(t, jdwptest.String("Ljava/lang/String;"), reqs[len(reqs)-1].Body)
}

func TestLoadedClassNames(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t)
	srv.Handle(commands.AllClasses, reply(body(
		codec.PackInt32(5),
		classRecord(8, TypeTagClass, 1, "Lcom/acme/Outer;", 7),
		classRecord(8, TypeTagClass, 2, "Lcom/acme/Outer$Inner;", 7),
		classRecord(8, TypeTagArray, 3, "[Lcom/acme/Outer;", 7),
		classRecord(8, TypeTagClass, 4, "Ljava/lang/Object;", 7),
		classRecord(8, TypeTagClass, 5, "bogus", 7),
	)))
	c := attach(t, srv)

	names, err := c.LoadedClassNames(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"com.acme.Outer", "java.lang.Object"}, names)
}

func TestThreadsAndGroups(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t, jdwptest.WithSizes(compactSizes))
	srv.Handle(commands.AllThreads, reply(body(codec.PackInt32(3), jdwptest.ID(1, 4), jdwptest.ID(2, 4), jdwptest.ID(0xdeadbeef, 4))))
	srv.Handle(commands.TopLevelThreadGroups, reply(body(codec.PackInt32(1), jdwptest.ID(9, 4))))
	c := attach(t, srv)

	threads, err := c.AllThreads(context.Background())
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 0xdeadbeef}, threads)

	groups, err := c.TopLevelThreadGroups(context.Background())
	require.NoError(t, err)
	require.Equal(t, []uint64{9}, groups)
}

func TestEmptyReplyCommands(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t)
	for _, name := range []string{commands.Suspend, commands.Resume, commands.HoldEvents, commands.ReleaseEvents, commands.SetDefaultStratum} {
		srv.Handle(name, reply(nil))
	}
	c := attach(t, srv)
	ctx := context.Background()

	require.NoError(t, c.Suspend(ctx))
	require.NoError(t, c.Resume(ctx))
	require.NoError(t, c.HoldEvents(ctx))
	require.NoError(t, c.ReleaseEvents(ctx))
	require.NoError(t, c.SetDefaultStratum(ctx, "Kotlin"))

	reqs := srv.Requests()
	require.Equal(t, jdwptest.String("Kotlin"), reqs[len(reqs)-1].Body)
}

func TestExitSendsCodeAndCloses(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t)
	srv.Handle(commands.Exit, reply(nil))
	c := attach(t, srv)

	require.NoError(t, c.Exit(context.Background(), 3))
	reqs := srv.Requests()
	require.Equal(t, []byte{0, 0, 0, 3}, reqs[len(reqs)-1].Body)

	_, err := c.Send(context.Background(), commands.Version, nil)
	require.ErrorIs(t, err, session.ErrNotConnected)
}

func TestDisposeCloses(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t)
	srv.Handle(commands.Dispose, reply(nil))
	c := attach(t, srv)

	require.NoError(t, c.Dispose(context.Background()))
	require.ErrorIs(t, c.Suspend(context.Background()), protocol.ErrTransport)
}

func TestCreateString(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t)
	srv.Handle(commands.CreateString, reply(jdwptest.ID(0xabc, 8)))
	c := attach(t, srv)

	id, err := c.CreateString(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, uint64(0xabc), id)
	reqs := srv.Requests()
	require.Equal(t, jdwptest.String("hello"), reqs[len(reqs)-1].Body)
}

func TestCapabilities(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t)
	srv.Handle(commands.Capabilities, reply([]byte{1, 0, 1, 0, 0, 0, 1}))
	flags := make([]byte, 32)
	flags[7] = 1  // canRedefineClasses
	flags[20] = 1 // canForceEarlyReturn
	flags[31] = 1
	srv.Handle(commands.CapabilitiesNew, reply(flags))
	c := attach(t, srv)

	caps, err := c.Capabilities(context.Background())
	require.NoError(t, err)
	require.Len(t, caps, 7)
	require.Equal(t, []string{CanWatchFieldModification, CanGetBytecodes, CanGetMonitorInfo}, caps.Enabled())

	all, err := c.CapabilitiesNew(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 32)
	require.True(t, all.Has(CanRedefineClasses))
	require.True(t, all.Has(CanForceEarlyReturn))
	require.False(t, all.Has(CanPopFrames))
	require.Equal(t, "reserved22", all[21].Name)
	require.True(t, all.Has("reserved32"))
}

func TestClassPaths(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t)
	srv.Handle(commands.ClassPaths, reply(body(
		jdwptest.String("/srv/app"),
		codec.PackInt32(2),
		jdwptest.String("lib/a.jar"),
		jdwptest.String("lib/b.jar"),
		codec.PackInt32(0),
	)))
	c := attach(t, srv)

	info, err := c.ClassPaths(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/srv/app", info.BaseDir)
	require.Equal(t, []string{"lib/a.jar", "lib/b.jar"}, info.ClassPaths)
	require.Empty(t, info.BootClassPaths)
}

func TestReplyErrorSurfaces(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t)
	srv.Handle(commands.Suspend, func(frame.Packet) jdwptest.Reply {
		return jdwptest.Reply{Code: protocol.ErrorVMDead}
	})
	c := attach(t, srv)

	err := c.Suspend(context.Background())
	var replyErr *protocol.ReplyError
	require.True(t, errors.As(err, &replyErr))
	require.Equal(t, protocol.ErrorVMDead, replyErr.Code)
}

func TestMalformedReplies(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t)
	srv.Handle(commands.AllThreads, reply(body(codec.PackInt32(2), jdwptest.ID(1, 8))))
	srv.Handle(commands.TopLevelThreadGroups, reply(body(codec.PackInt32(-1))))
	srv.Handle(commands.Resume, reply([]byte{0}))
	c := attach(t, srv)
	ctx := context.Background()

	_, err := c.AllThreads(ctx)
	require.ErrorIs(t, err, protocol.ErrMalformedPacket)
	_, err = c.TopLevelThreadGroups(ctx)
	require.ErrorIs(t, err, protocol.ErrMalformedPacket)
	require.ErrorIs(t, c.Resume(ctx), protocol.ErrMalformedPacket)
}

func TestTrailingBytesReportOffset(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t)
	srv.Handle(commands.CreateString, reply(body(jdwptest.ID(0x2a, 8), []byte{0xAA, 0xBB})))
	c := attach(t, srv)

	_, err := c.CreateString(context.Background(), "x")
	require.ErrorIs(t, err, protocol.ErrMalformedPacket)
	require.ErrorContains(t, err, "2 trailing bytes at offset 8")
}

func TestSendAndDecodeRaw(t *testing.T) {
	testlog.Start(t)
	srv := jdwptest.NewServer(t, jdwptest.WithSizes(compactSizes))
	c := attach(t, srv)

	raw, err := c.Send(context.Background(), commands.IDSizes, nil)
	require.NoError(t, err)
	format, err := codec.ParseFormat("int32,int32,int32,int32,int32")
	require.NoError(t, err)
	values, n, err := c.Decode(raw, format)
	require.NoError(t, err)
	require.Equal(t, 20, n)
	require.Len(t, values, 5)

	_, err = c.Send(context.Background(), "NotACommand", nil)
	require.ErrorIs(t, err, protocol.ErrUnknownCommand)
}
