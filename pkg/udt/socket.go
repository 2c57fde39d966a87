// Package udt wraps a UDT engine in socket handles.
//
// A Socket owns exactly one engine handle from New (or Accept) until
// Close. It checks address families before any engine call, marshals
// endpoints through pkg/sockaddr and turns every failing engine call into
// an *Error carrying the engine's code and description.
//
// Sockets come in three disciplines. Stream sockets move bytes with
// Send/Receive (and the looping SendAll, ReceiveFull, Read, Write).
// Datagram and Message sockets use the engine's message kind: whole
// datagrams with SendDatagram/ReceiveDatagram, or text messages with
// SendMessage/ReceiveMessage.
package udt

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"dominicbreuker/goudt/pkg/native"
	"dominicbreuker/goudt/pkg/sockaddr"
)

// Address families a socket can be created with.
const (
	IPv4 = sockaddr.IPv4
	IPv6 = sockaddr.IPv6
)

// Discipline selects the transfer operations of a socket.
type Discipline int

const (
	Stream Discipline = iota + 1
	Datagram
	Message
)

func (d Discipline) String() string {
	switch d {
	case Stream:
		return "stream"
	case Datagram:
		return "datagram"
	case Message:
		return "message"
	default:
		return fmt.Sprintf("Discipline(%d)", int(d))
	}
}

// kind is the engine socket type backing the discipline.
func (d Discipline) kind() int32 {
	if d == Stream {
		return native.SockStream
	}
	return native.SockDgram
}

func (d Discipline) valid() bool {
	return d >= Stream && d <= Message
}

const (
	defaultTTL        = -1
	defaultMessageBuf = 65536
)

// Socket is one engine socket.
type Socket struct {
	api    native.API
	tr     *translator
	family sockaddr.Family
	disc   Discipline
	handle native.Handle

	mu     sync.Mutex
	closed atomic.Bool

	ttl        atomic.Int32
	inOrder    atomic.Bool
	msgBuf     atomic.Int32
	sndNoBlock atomic.Bool
	rcvNoBlock atomic.Bool
}

func newSocket(tr *translator, family sockaddr.Family, disc Discipline, h native.Handle) *Socket {
	s := &Socket{
		api:    tr.api,
		tr:     tr,
		family: family,
		disc:   disc,
		handle: h,
	}
	s.ttl.Store(defaultTTL)
	s.inOrder.Store(true)
	s.msgBuf.Store(defaultMessageBuf)
	return s
}

// Family returns the address family fixed at creation.
func (s *Socket) Family() sockaddr.Family { return s.family }

// Discipline returns the discipline fixed at creation.
func (s *Socket) Discipline() Discipline { return s.disc }

// Handle returns the engine handle. It stays valid until Close.
func (s *Socket) Handle() native.Handle { return s.handle }

func (s *Socket) String() string {
	return fmt.Sprintf("udt %s/%s socket %d", s.family, s.disc, s.handle)
}

func (s *Socket) check(op string) error {
	if s.closed.Load() {
		return localError(KindSocketClosed, op+": socket is closed")
	}
	return nil
}

// guard rejects endpoints whose family differs from the socket's.
func (s *Socket) guard(op string, ep netip.AddrPort) error {
	if err := s.check(op); err != nil {
		return err
	}
	f := sockaddr.FamilyOf(ep.Addr())
	if f == sockaddr.FamilyUnspec {
		return localError(KindUnsupportedFamily, fmt.Sprintf("%s: endpoint %s has no IPv4 or IPv6 address", op, ep))
	}
	if f != s.family {
		return localError(KindFamilyMismatch, fmt.Sprintf("%s: %s endpoint %s on %s socket", op, f, ep, s.family))
	}
	return nil
}

func (s *Socket) encodeError(op string, ep netip.AddrPort, err error) error {
	return &Error{
		Kind:   KindUnsupportedFamily,
		Source: SourceLocal,
		Code:   LocalCode,
		Desc:   fmt.Sprintf("%s: can not encode %s endpoint %s on %s socket", op, sockaddr.FamilyOf(ep.Addr()), ep, s.family),
		Cause:  err,
	}
}

func (s *Socket) requireStream(op string) error {
	if err := s.check(op); err != nil {
		return err
	}
	if s.disc != Stream {
		return localError(KindDisciplineMismatch, fmt.Sprintf("%s: needs a stream socket, have %s", op, s.disc))
	}
	return nil
}

func (s *Socket) requireMessages(op string) error {
	if err := s.check(op); err != nil {
		return err
	}
	if s.disc == Stream {
		return localError(KindDisciplineMismatch, fmt.Sprintf("%s: needs a datagram or message socket, have %s", op, s.disc))
	}
	return nil
}

// Bind attaches the socket to a local endpoint.
func (s *Socket) Bind(ep netip.AddrPort) error {
	if err := s.guard("bind", ep); err != nil {
		return err
	}
	raw, n, err := sockaddr.Encode(ep)
	if err != nil {
		return s.encodeError("bind", ep, err)
	}

	_, err = s.tr.call(KindBindFailed, false, func() int32 {
		return s.api.Bind(s.handle, raw[:], n)
	})
	return err
}

// Listen marks a bound socket as accepting connections.
func (s *Socket) Listen(backlog int) error {
	if err := s.check("listen"); err != nil {
		return err
	}
	if backlog < 0 || backlog > math.MaxInt32 {
		return localError(KindInvalidArgument, fmt.Sprintf("listen: backlog %d out of range", backlog))
	}

	_, err := s.tr.call(KindListenFailed, false, func() int32 {
		return s.api.Listen(s.handle, int32(backlog))
	})
	return err
}

// Accept waits for the next connection. The returned socket owns its own
// handle and is independent of the listener.
func (s *Socket) Accept() (*Socket, netip.AddrPort, error) {
	if err := s.check("accept"); err != nil {
		return nil, netip.AddrPort{}, err
	}

	var raw sockaddr.Raw
	n := int32(len(raw))
	h, err := s.tr.handle(KindAcceptFailed, !s.rcvNoBlock.Load(), func() native.Handle {
		return s.api.Accept(s.handle, raw[:], &n)
	})
	if err != nil {
		return nil, netip.AddrPort{}, err
	}

	child := newSocket(s.tr, s.family, s.disc, h)
	child.ttl.Store(s.ttl.Load())
	child.inOrder.Store(s.inOrder.Load())
	child.msgBuf.Store(s.msgBuf.Load())
	// The engine copies its options to the child; keep the blocking mode in step.
	child.sndNoBlock.Store(s.sndNoBlock.Load())
	child.rcvNoBlock.Store(s.rcvNoBlock.Load())

	ep, err := sockaddr.DecodeRaw(&raw, n)
	if err != nil {
		err = &Error{Kind: KindUnsupportedFamily, Source: SourceLocal, Code: LocalCode, Desc: "accept: peer address", Cause: err}
		return nil, netip.AddrPort{}, errors.Join(err, child.Close())
	}
	if f := sockaddr.FamilyOf(ep.Addr()); f != s.family {
		err := localError(KindFamilyMismatch, fmt.Sprintf("accept: %s peer %s on %s socket", f, ep, s.family))
		return nil, netip.AddrPort{}, errors.Join(err, child.Close())
	}

	Logger().Debug("accepted", zap.Int32("listener", int32(s.handle)), zap.Int32("socket", int32(h)), zap.Stringer("remote", ep))
	return child, ep, nil
}

// Connect opens a connection to a listening peer. It blocks until the
// engine's handshake completed or failed.
func (s *Socket) Connect(ep netip.AddrPort) error {
	if err := s.guard("connect", ep); err != nil {
		return err
	}
	raw, n, err := sockaddr.Encode(ep)
	if err != nil {
		return s.encodeError("connect", ep, err)
	}

	_, err = s.tr.call(KindConnectFailed, true, func() int32 {
		return s.api.Connect(s.handle, raw[:], n)
	})
	return err
}

func clampLen(p []byte) int32 {
	return int32(min(len(p), math.MaxInt32))
}

// Send writes some of p to the stream and returns how much was taken.
func (s *Socket) Send(p []byte) (int, error) {
	if err := s.requireStream("send"); err != nil {
		return 0, err
	}
	n, err := s.tr.call(KindSendFailed, !s.sndNoBlock.Load(), func() int32 {
		return s.api.Send(s.handle, p, clampLen(p), 0)
	})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Receive reads at most len(p) bytes from the stream. It may return fewer
// bytes than are still in flight.
func (s *Socket) Receive(p []byte) (int, error) {
	if err := s.requireStream("receive"); err != nil {
		return 0, err
	}
	n, err := s.tr.call(KindReceiveFailed, !s.rcvNoBlock.Load(), func() int32 {
		return s.api.Recv(s.handle, p, clampLen(p), 0)
	})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// SendAll loops Send until p has been written completely.
func (s *Socket) SendAll(p []byte) (int, error) {
	sent := 0
	for sent < len(p) {
		n, err := s.Send(p[sent:])
		if err != nil {
			return sent, err
		}
		if n == 0 {
			return sent, localError(KindIncompleteTransfer, fmt.Sprintf("send: engine took 0 bytes after %d of %d", sent, len(p)))
		}
		sent += n
	}
	return sent, nil
}

// ReceiveFull loops Receive until p is full.
func (s *Socket) ReceiveFull(p []byte) (int, error) {
	got := 0
	for got < len(p) {
		n, err := s.Receive(p[got:])
		if err != nil {
			return got, err
		}
		if n == 0 {
			return got, localError(KindIncompleteTransfer, fmt.Sprintf("receive: engine returned 0 bytes after %d of %d", got, len(p)))
		}
		got += n
	}
	return got, nil
}

// Read implements io.Reader. A connection the peer has closed reads as
// io.EOF.
func (s *Socket) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := s.Receive(p)
	var uerr *Error
	if errors.As(err, &uerr) && uerr.Native() && uerr.Code == native.ErrConnLost {
		return n, io.EOF
	}
	return n, err
}

// Write implements io.Writer.
func (s *Socket) Write(p []byte) (int, error) {
	return s.SendAll(p)
}

// SendDatagram sends p as one datagram.
func (s *Socket) SendDatagram(p []byte) (int, error) {
	if err := s.requireMessages("send datagram"); err != nil {
		return 0, err
	}
	n, err := s.sendMsg(p, s.ttl.Load(), s.inOrder.Load())
	return int(n), err
}

// ReceiveDatagram reads one datagram into p. A datagram longer than p
// fills p and fails with KindIncompleteTransfer. ok is false with a nil
// error when a non-blocking socket has nothing to read yet.
func (s *Socket) ReceiveDatagram(p []byte) (n int, ok bool, err error) {
	if err := s.requireMessages("receive datagram"); err != nil {
		return 0, false, err
	}
	got, err := s.tr.call(KindReceiveFailed, !s.rcvNoBlock.Load(), func() int32 {
		return s.api.RecvMsg(s.handle, p, clampLen(p))
	})
	if err != nil {
		var uerr *Error
		if errors.As(err, &uerr) && uerr.Code == native.ErrAsyncRcv {
			return 0, false, nil
		}
		return 0, false, err
	}
	if int(got) > len(p) {
		return len(p), true, truncated("receive datagram", int(got), len(p))
	}
	return int(got), true, nil
}

// SendMessage sends text with the socket's TTL and ordering.
func (s *Socket) SendMessage(text string) error {
	return s.SendMessageWith(text, int(s.ttl.Load()), s.inOrder.Load())
}

// SendMessageWith sends text as one message. A negative ttl retransmits
// until delivered; otherwise the message is dropped after ttl milliseconds.
func (s *Socket) SendMessageWith(text string, ttl int, inOrder bool) error {
	if err := s.requireMessages("send message"); err != nil {
		return err
	}
	if ttl > math.MaxInt32 {
		return localError(KindInvalidArgument, fmt.Sprintf("send message: ttl %d out of range", ttl))
	}
	ttl = max(ttl, -1)

	_, err := s.sendMsg([]byte(text), int32(ttl), inOrder)
	return err
}

func (s *Socket) sendMsg(p []byte, ttl int32, inOrder bool) (int32, error) {
	n, err := s.tr.call(KindSendFailed, !s.sndNoBlock.Load(), func() int32 {
		return s.api.SendMsg(s.handle, p, clampLen(p), ttl, inOrder)
	})
	if err != nil {
		return 0, err
	}
	if int(n) != len(p) {
		return n, localError(KindIncompleteTransfer, fmt.Sprintf("send message: engine took %d of %d bytes", n, len(p)))
	}
	return n, nil
}

// ReceiveMessage blocks for one message and decodes it as UTF-8. Invalid
// byte sequences become U+FFFD. A message longer than MessageBufferSize is
// discarded and fails with KindIncompleteTransfer.
func (s *Socket) ReceiveMessage() (string, error) {
	if err := s.requireMessages("receive message"); err != nil {
		return "", err
	}
	buf := make([]byte, s.msgBuf.Load())
	n, err := s.tr.call(KindReceiveFailed, !s.rcvNoBlock.Load(), func() int32 {
		return s.api.RecvMsg(s.handle, buf, int32(len(buf)))
	})
	if err != nil {
		return "", err
	}
	if int(n) > len(buf) {
		return "", truncated("receive message", int(n), len(buf))
	}
	return strings.ToValidUTF8(string(buf[:n]), "�"), nil
}

func truncated(op string, size, buf int) error {
	return localError(KindIncompleteTransfer, fmt.Sprintf("%s: message of %d bytes cut to the %d-byte buffer", op, size, buf))
}

// Close releases the engine handle. Only the first call reaches the
// engine; later calls fail with KindSocketClosed. A call blocked on this
// socket in another goroutine fails once the engine drops the handle.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return localError(KindSocketClosed, "close: socket is already closed")
	}
	s.closed.Store(true)

	_, err := s.tr.call(KindCloseFailed, true, func() int32 {
		return s.api.Close(s.handle)
	})
	Logger().Debug("closed", zap.Int32("socket", int32(s.handle)), zap.Error(err))
	return err
}

// Closed reports whether Close has been called.
func (s *Socket) Closed() bool {
	return s.closed.Load()
}

// State returns the engine's view of the socket. A closed socket reports
// StateClosed without asking the engine.
func (s *Socket) State() native.State {
	if s.closed.Load() {
		return native.StateClosed
	}
	return s.api.GetSockState(s.handle)
}

// TTL returns the message time-to-live in milliseconds, -1 for unlimited.
func (s *Socket) TTL() int { return int(s.ttl.Load()) }

// SetTTL sets the time-to-live SendMessage and SendDatagram use.
func (s *Socket) SetTTL(ms int) {
	s.ttl.Store(int32(min(max(ms, -1), math.MaxInt32)))
}

// InOrder reports whether messages are sent with in-order delivery.
func (s *Socket) InOrder() bool { return s.inOrder.Load() }

// SetInOrder sets the ordering flag SendMessage and SendDatagram use.
func (s *Socket) SetInOrder(v bool) { s.inOrder.Store(v) }

// MessageBufferSize is the buffer ReceiveMessage reads into. Longer
// messages are truncated.
func (s *Socket) MessageBufferSize() int { return int(s.msgBuf.Load()) }

// SetMessageBufferSize changes the ReceiveMessage buffer.
func (s *Socket) SetMessageBufferSize(n int) error {
	if n < 1 || n > math.MaxInt32 {
		return localError(KindInvalidArgument, fmt.Sprintf("message buffer size %d out of range", n))
	}
	s.msgBuf.Store(int32(n))
	return nil
}
