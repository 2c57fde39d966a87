package engine

import (
	"bytes"
	"encoding/binary"
	"net/netip"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"dominicbreuker/goudt/mocks"
	"dominicbreuker/goudt/pkg/config"
	"dominicbreuker/goudt/pkg/native"
	"dominicbreuker/goudt/pkg/sockaddr"
)

type harness struct {
	t *testing.T
	e *Engine
}

// newHarness starts an engine and pins the test goroutine to its thread so
// last-error reads see the test's own calls.
func newHarness(t *testing.T, deps *config.Dependencies) *harness {
	t.Helper()
	runtime.LockOSThread()
	e := New(deps)
	if e.Startup() != native.Success {
		t.Fatal("Startup() failed")
	}
	t.Cleanup(func() {
		e.Cleanup()
		runtime.UnlockOSThread()
	})
	return &harness{t: t, e: e}
}

func (h *harness) must(ret int32, call string) {
	h.t.Helper()
	if ret == native.Error {
		h.t.Fatalf("%s failed: %d %s", call, h.e.GetLastErrorCode(), h.e.GetLastErrorDesc())
	}
}

func (h *harness) wantCode(ret int32, code int32, call string) {
	h.t.Helper()
	if ret != native.Error {
		h.t.Fatalf("%s = %d, want failure", call, ret)
	}
	if got := h.e.GetLastErrorCode(); got != code {
		h.t.Fatalf("%s error code = %d (%s), want %d", call, got, h.e.GetLastErrorDesc(), code)
	}
}

func (h *harness) socket(f sockaddr.Family, typ int32) native.Handle {
	h.t.Helper()
	u := h.e.Socket(f.AF(), typ, 0)
	if u == native.InvalidHandle {
		h.t.Fatalf("Socket() failed: %s", h.e.GetLastErrorDesc())
	}
	return u
}

func (h *harness) bind(u native.Handle, ep string) {
	h.t.Helper()
	raw, n, err := sockaddr.Encode(netip.MustParseAddrPort(ep))
	if err != nil {
		h.t.Fatal(err)
	}
	h.must(h.e.Bind(u, raw[:], n), "Bind")
}

func (h *harness) connect(u native.Handle, ep netip.AddrPort) int32 {
	h.t.Helper()
	raw, n, err := sockaddr.Encode(ep)
	if err != nil {
		h.t.Fatal(err)
	}
	return h.e.Connect(u, raw[:], n)
}

func (h *harness) sockName(u native.Handle) netip.AddrPort {
	h.t.Helper()
	var raw sockaddr.Raw
	n := int32(len(raw))
	h.must(h.e.GetSockName(u, raw[:], &n), "GetSockName")
	ep, err := sockaddr.DecodeRaw(&raw, n)
	if err != nil {
		h.t.Fatal(err)
	}
	return ep
}

func (h *harness) setInt(u native.Handle, opt native.Option, v int32) {
	h.t.Helper()
	b := make([]byte, 4)
	binary.NativeEndian.PutUint32(b, uint32(v))
	h.must(h.e.SetSockOpt(u, 0, opt, b, 4), "SetSockOpt("+opt.String()+")")
}

func (h *harness) setBool(u native.Handle, opt native.Option, v bool) {
	h.t.Helper()
	b := []byte{0}
	if v {
		b[0] = 1
	}
	h.must(h.e.SetSockOpt(u, 0, opt, b, 1), "SetSockOpt("+opt.String()+")")
}

// pair returns a listener and a connected client/server pair on loopback.
func (h *harness) pair(typ int32) (listener, client, server native.Handle) {
	h.t.Helper()
	listener = h.socket(sockaddr.IPv4, typ)
	h.bind(listener, "127.0.0.1:0")
	h.must(h.e.Listen(listener, 8), "Listen")

	client = h.socket(sockaddr.IPv4, typ)
	h.must(h.connect(client, h.sockName(listener)), "Connect")

	var raw sockaddr.Raw
	n := int32(len(raw))
	server = h.e.Accept(listener, raw[:], &n)
	if server == native.InvalidHandle {
		h.t.Fatalf("Accept() failed: %s", h.e.GetLastErrorDesc())
	}
	if n != sockaddr.SizeIPv4 {
		h.t.Fatalf("Accept() address length = %d, want %d", n, sockaddr.SizeIPv4)
	}
	return listener, client, server
}

func (h *harness) recvFull(u native.Handle, size int) []byte {
	h.t.Helper()
	out := make([]byte, 0, size)
	buf := make([]byte, size)
	for len(out) < size {
		n := h.e.Recv(u, buf, int32(size-len(out)), 0)
		h.must(n, "Recv")
		out = append(out, buf[:n]...)
	}
	return out
}

func TestSocket_InvalidArguments(t *testing.T) {
	h := newHarness(t, nil)

	if u := h.e.Socket(12345, native.SockStream, 0); u != native.InvalidHandle {
		t.Errorf("Socket(bad family) = %d", u)
	}
	if got := h.e.GetLastErrorCode(); got != native.ErrInvParam {
		t.Errorf("error code = %d, want %d", got, native.ErrInvParam)
	}
	if u := h.e.Socket(sockaddr.IPv4.AF(), 3, 0); u != native.InvalidHandle {
		t.Errorf("Socket(bad type) = %d", u)
	}
}

func TestSocket_BeforeStartup(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e := New(nil)
	if u := e.Socket(sockaddr.IPv4.AF(), native.SockStream, 0); u != native.InvalidHandle {
		t.Fatalf("Socket() before Startup = %d", u)
	}
	if got := e.GetLastErrorCode(); got != native.ErrInvOp {
		t.Errorf("error code = %d, want %d", got, native.ErrInvOp)
	}
}

func TestHandles_NeverReused(t *testing.T) {
	h := newHarness(t, nil)

	a := h.socket(sockaddr.IPv4, native.SockStream)
	h.must(h.e.Close(a), "Close")
	b := h.socket(sockaddr.IPv4, native.SockStream)
	if b == a {
		t.Fatalf("handle %d reused", a)
	}
	if st := h.e.GetSockState(a); st != native.StateNonExist {
		t.Errorf("state of closed handle = %s, want NONEXIST", st)
	}
	h.wantCode(h.e.Close(a), native.ErrInvSock, "Close(closed)")
}

func TestBind_WrongLength(t *testing.T) {
	h := newHarness(t, nil)
	u := h.socket(sockaddr.IPv4, native.SockStream)

	raw, _, err := sockaddr.Encode(netip.MustParseAddrPort("127.0.0.1:0"))
	if err != nil {
		t.Fatal(err)
	}
	h.wantCode(h.e.Bind(u, raw[:], sockaddr.SizeIPv6), native.ErrInvParam, "Bind(IPv4 record, 28)")
	if desc := h.e.GetLastErrorDesc(); !strings.HasPrefix(desc, "Operation not supported: Bad parameters.") {
		t.Errorf("error desc = %q", desc)
	}
	if st := h.e.GetSockState(u); st != native.StateInit {
		t.Errorf("state after failed bind = %s, want INIT", st)
	}
}

func TestLifecycle_States(t *testing.T) {
	h := newHarness(t, nil)
	u := h.socket(sockaddr.IPv4, native.SockStream)

	steps := []struct {
		name string
		do   func()
		want native.State
	}{
		{"created", func() {}, native.StateInit},
		{"bound", func() { h.bind(u, "127.0.0.1:0") }, native.StateOpened},
		{"listening", func() { h.must(h.e.Listen(u, 1), "Listen") }, native.StateListening},
		{"listen again", func() { h.must(h.e.Listen(u, 1), "Listen") }, native.StateListening},
		{"closed", func() { h.must(h.e.Close(u), "Close") }, native.StateNonExist},
	}
	for _, s := range steps {
		s.do()
		if got := h.e.GetSockState(u); got != s.want {
			t.Fatalf("%s: state = %s, want %s", s.name, got, s.want)
		}
	}
}

func TestStateErrors(t *testing.T) {
	h := newHarness(t, nil)

	unbound := h.socket(sockaddr.IPv4, native.SockStream)
	h.wantCode(h.e.Listen(unbound, 1), native.ErrUnbound, "Listen(unbound)")
	h.wantCode(h.e.Send(unbound, []byte("x"), 1, 0), native.ErrNoConn, "Send(unconnected)")

	bound := h.socket(sockaddr.IPv4, native.SockStream)
	h.bind(bound, "127.0.0.1:0")
	h.wantCode(h.e.Listen(bound, 0), native.ErrInvParam, "Listen(backlog 0)")
	var raw sockaddr.Raw
	n := int32(len(raw))
	if got := h.e.Accept(bound, raw[:], &n); got != native.InvalidHandle {
		t.Fatalf("Accept(not listening) = %d", got)
	}
	if code := h.e.GetLastErrorCode(); code != native.ErrNoListen {
		t.Errorf("Accept(not listening) code = %d, want %d", code, native.ErrNoListen)
	}
	b := []byte{1, 0, 0, 0}
	h.wantCode(h.e.SetSockOpt(bound, 0, native.OptMSS, b, 4), native.ErrBoundSock, "SetSockOpt(MSS) after bind")

	h.wantCode(h.e.Send(12, []byte("x"), 1, 0), native.ErrInvSock, "Send(unknown handle)")

	rdv := h.socket(sockaddr.IPv4, native.SockDgram)
	h.setBool(rdv, native.OptRendezvous, true)
	h.bind(rdv, "127.0.0.1:0")
	h.wantCode(h.e.Listen(rdv, 1), native.ErrRdvNoServ, "Listen(rendezvous)")
}

func TestStream_Loopback(t *testing.T) {
	h := newHarness(t, nil)
	_, client, server := h.pair(native.SockStream)

	msg := []byte("Hello UDT!")
	h.must(h.e.Send(client, msg, int32(len(msg)), 0), "Send")
	if got := h.recvFull(server, len(msg)); !bytes.Equal(got, msg) {
		t.Errorf("Recv() = %q, want %q", got, msg)
	}

	if st := h.e.GetSockState(client); st != native.StateConnected {
		t.Errorf("client state = %s, want CONNECTED", st)
	}

	var raw sockaddr.Raw
	n := int32(len(raw))
	h.must(h.e.GetPeerName(server, raw[:], &n), "GetPeerName")
	peer, err := sockaddr.DecodeRaw(&raw, n)
	if err != nil {
		t.Fatal(err)
	}
	if local := h.sockName(client); peer.Port() != local.Port() {
		t.Errorf("server peer = %s, client local = %s", peer, local)
	}

	h.wantCode(h.e.SendMsg(client, msg, int32(len(msg)), -1, true), native.ErrStreamIll, "SendMsg(stream)")
}

func TestStream_PartialSend(t *testing.T) {
	h := newHarness(t, nil)

	listener := h.socket(sockaddr.IPv4, native.SockStream)
	h.setInt(listener, native.OptMSS, 500)
	h.bind(listener, "127.0.0.1:0")
	h.must(h.e.Listen(listener, 1), "Listen")

	client := h.socket(sockaddr.IPv4, native.SockStream)
	h.setInt(client, native.OptMSS, 500)
	h.setInt(client, native.OptSndBuf, 1024)
	h.must(h.connect(client, h.sockName(listener)), "Connect")
	var raw sockaddr.Raw
	n := int32(len(raw))
	server := h.e.Accept(listener, raw[:], &n)
	if server == native.InvalidHandle {
		t.Fatal("Accept() failed")
	}

	data := bytes.Repeat([]byte("0123456789"), 1000)
	sent := 0
	for sent < len(data) {
		n := h.e.Send(client, data[sent:], int32(len(data)-sent), 0)
		h.must(n, "Send")
		if n > 1024 {
			t.Fatalf("Send() = %d, more than the send buffer", n)
		}
		sent += int(n)
	}

	if got := h.recvFull(server, len(data)); !bytes.Equal(got, data) {
		t.Errorf("received %d bytes that differ from what was sent", len(got))
	}
}

func TestMessage_OverMockNetwork(t *testing.T) {
	network := mocks.NewMockUDPNetwork()
	network.DropEvery = 7
	h := newHarness(t, &config.Dependencies{PacketListener: network.ListenPacket})
	_, client, server := h.pair(native.SockDgram)

	for _, m := range []string{"A", "B"} {
		h.must(h.e.SendMsg(client, []byte(m), 1, -1, true), "SendMsg("+m+")")
	}

	buf := make([]byte, 64)
	for _, want := range []string{"A", "B"} {
		n := h.e.RecvMsg(server, buf, int32(len(buf)))
		h.must(n, "RecvMsg")
		if got := string(buf[:n]); got != want {
			t.Errorf("RecvMsg() = %q, want %q", got, want)
		}
	}

	h.wantCode(h.e.Send(client, buf, 1, 0), native.ErrDgramIll, "Send(dgram)")
	if network.Dropped() == 0 {
		t.Log("no datagram was dropped")
	}
}

func TestMessage_TruncatedAndTooLarge(t *testing.T) {
	h := newHarness(t, nil)
	_, client, server := h.pair(native.SockDgram)

	msg := []byte("0123456789")
	h.must(h.e.SendMsg(client, msg, int32(len(msg)), -1, true), "SendMsg")
	buf := make([]byte, 4)
	n := h.e.RecvMsg(server, buf, 4)
	h.must(n, "RecvMsg")
	if n != int32(len(msg)) {
		t.Errorf("RecvMsg() = %d, want the full length %d", n, len(msg))
	}
	if string(buf) != "0123" {
		t.Errorf("RecvMsg() stored %q, want %q", buf, "0123")
	}

	h.setInt(client, native.OptMaxMsg, 4)
	h.wantCode(h.e.SendMsg(client, msg, int32(len(msg)), -1, true), native.ErrLargeMsg, "SendMsg(too large)")
}

func TestRecv_TimeoutAndNonBlocking(t *testing.T) {
	h := newHarness(t, nil)
	_, client, server := h.pair(native.SockStream)

	buf := make([]byte, 8)

	h.setInt(server, native.OptRcvTimeo, 50)
	start := time.Now()
	h.wantCode(h.e.Recv(server, buf, 8, 0), native.ErrTimeout, "Recv(timeout)")
	if time.Since(start) < 40*time.Millisecond {
		t.Errorf("Recv() returned after %v, before the timeout", time.Since(start))
	}

	h.setBool(client, native.OptRcvSyn, false)
	h.wantCode(h.e.Recv(client, buf, 8, 0), native.ErrAsyncRcv, "Recv(non-blocking)")
}

func TestPeerClose_DrainsThenConnLost(t *testing.T) {
	h := newHarness(t, nil)
	_, client, server := h.pair(native.SockStream)

	h.must(h.e.Send(client, []byte("bye"), 3, 0), "Send")
	h.must(h.e.Close(client), "Close")

	if got := h.recvFull(server, 3); string(got) != "bye" {
		t.Fatalf("Recv() = %q, want %q", got, "bye")
	}
	buf := make([]byte, 8)
	h.wantCode(h.e.Recv(server, buf, 8, 0), native.ErrConnLost, "Recv(after peer close)")
	if st := h.e.GetSockState(server); st != native.StateBroken {
		t.Errorf("server state = %s, want BROKEN", st)
	}
	h.wantCode(h.e.Send(server, buf, 1, 0), native.ErrConnLost, "Send(after peer close)")
}

func TestListenerClose_KeepsAccepted(t *testing.T) {
	h := newHarness(t, nil)
	listener, client, server := h.pair(native.SockStream)

	h.must(h.e.Close(listener), "Close(listener)")

	h.must(h.e.Send(client, []byte("still here"), 10, 0), "Send")
	if got := h.recvFull(server, 10); string(got) != "still here" {
		t.Errorf("Recv() = %q", got)
	}
	h.must(h.e.Send(server, []byte("ok"), 2, 0), "Send")
	if got := h.recvFull(client, 2); string(got) != "ok" {
		t.Errorf("Recv() = %q", got)
	}
}

func TestConnect_KindMismatchRejected(t *testing.T) {
	h := newHarness(t, nil)

	listener := h.socket(sockaddr.IPv4, native.SockStream)
	h.bind(listener, "127.0.0.1:0")
	h.must(h.e.Listen(listener, 1), "Listen")

	client := h.socket(sockaddr.IPv4, native.SockDgram)
	h.wantCode(h.connect(client, h.sockName(listener)), native.ErrConnRej, "Connect(dgram to stream)")
	if st := h.e.GetSockState(client); st != native.StateOpened {
		t.Errorf("state after failed connect = %s, want OPENED", st)
	}
}

func TestConnect_NoServer(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the connect timeout")
	}
	h := newHarness(t, nil)

	silent := h.socket(sockaddr.IPv4, native.SockStream)
	h.bind(silent, "127.0.0.1:0")

	client := h.socket(sockaddr.IPv4, native.SockStream)
	h.wantCode(h.connect(client, h.sockName(silent)), native.ErrNoServer, "Connect(no listener)")
}

func TestOptions_Dynamic(t *testing.T) {
	h := newHarness(t, nil)
	_, client, server := h.pair(native.SockStream)

	h.must(h.e.Send(client, []byte("abc"), 3, 0), "Send")

	get := func(u native.Handle, opt native.Option) int32 {
		b := make([]byte, 4)
		n := int32(4)
		h.must(h.e.GetSockOpt(u, 0, opt, b, &n), "GetSockOpt("+opt.String()+")")
		return int32(binary.NativeEndian.Uint32(b))
	}

	deadline := time.Now().Add(2 * time.Second)
	for get(server, native.OptRcvData) < 3 {
		if time.Now().After(deadline) {
			t.Fatal("data never arrived")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if ev := get(server, native.OptEvent); ev&native.EventIn == 0 || ev&native.EventOut == 0 {
		t.Errorf("events = %#x, want IN|OUT", ev)
	}
	if st := native.State(get(server, native.OptState)); st != native.StateConnected {
		t.Errorf("OptState = %s", st)
	}
	h.wantCode(h.e.SetSockOpt(server, 0, native.OptState, make([]byte, 4), 4), native.ErrInvOp, "SetSockOpt(State)")
}

func TestFile_SendRecv(t *testing.T) {
	h := newHarness(t, nil)
	_, client, server := h.pair(native.SockStream)

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	data := bytes.Repeat([]byte("udt file "), 5000)
	if err := os.WriteFile(src, data, 0o600); err != nil {
		t.Fatal(err)
	}

	done := make(chan int64, 1)
	go func() {
		var off int64
		done <- h.e.RecvFile(server, dst, &off, int64(len(data)), 4096)
	}()

	var off int64
	if n := h.e.SendFile(client, src, &off, int64(len(data)), 4096); n != int64(len(data)) {
		t.Fatalf("SendFile() = %d, want %d", n, len(data))
	}
	if off != int64(len(data)) {
		t.Errorf("offset after SendFile = %d", off)
	}

	select {
	case n := <-done:
		if n != int64(len(data)) {
			t.Fatalf("RecvFile() = %d, want %d", n, len(data))
		}
	case <-time.After(10 * time.Second):
		t.Fatal("RecvFile() did not finish")
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("received file differs")
	}

	var zero int64
	if n := h.e.SendFile(client, filepath.Join(dir, "missing"), &zero, 1, 0); n != int64(native.Error) {
		t.Errorf("SendFile(missing) = %d", n)
	}
	if code := h.e.GetLastErrorCode(); code != native.ErrFile {
		t.Errorf("SendFile(missing) code = %d, want %d", code, native.ErrFile)
	}
}

func TestCleanup_ClosesSockets(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e := New(nil)
	e.Startup()
	e.Startup()
	u := e.Socket(sockaddr.IPv4.AF(), native.SockDgram, 0)

	e.Cleanup()
	if st := e.GetSockState(u); st != native.StateInit {
		t.Fatalf("state after first cleanup = %s, want INIT", st)
	}
	e.Cleanup()
	if st := e.GetSockState(u); st != native.StateNonExist {
		t.Errorf("state after last cleanup = %s, want NONEXIST", st)
	}
}
