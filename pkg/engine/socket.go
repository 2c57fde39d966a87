package engine

import (
	"io"
	"net"
	"net/netip"
	"sync"
	"time"

	kcp "github.com/xtaci/kcp-go/v5"
	"go.uber.org/zap"

	"dominicbreuker/goudt/pkg/native"
	"dominicbreuker/goudt/pkg/sockaddr"
)

// socket is one engine handle.
type socket struct {
	id  native.Handle
	eng *Engine
	af  sockaddr.Family
	typ int32

	mu      sync.Mutex
	state   native.State
	opts    options
	port    *port
	link    *link
	local   netip.AddrPort
	backlog chan *link
	queued  int
	closed  chan struct{}
}

func newSocket(eng *Engine, af sockaddr.Family, typ int32) *socket {
	return &socket{
		eng:    eng,
		af:     af,
		typ:    typ,
		state:  native.StateInit,
		opts:   defaultOptions(),
		closed: make(chan struct{}),
	}
}

// endpoint decodes a caller address record. The record length must be
// exactly the size of the socket's family.
func (s *socket) endpoint(name []byte, namelen int32) (netip.AddrPort, error) {
	if namelen != s.af.Size() || len(name) < int(namelen) {
		return netip.AddrPort{}, failf(native.ErrInvParam, "(address length %d for %s)", namelen, s.af)
	}
	ep, err := sockaddr.Decode(name, namelen)
	if err != nil {
		return netip.AddrPort{}, failf(native.ErrInvParam, "(%s)", err)
	}
	if sockaddr.FamilyOf(ep.Addr()) != s.af {
		return netip.AddrPort{}, failf(native.ErrInvParam, "(%s address on %s socket)", sockaddr.FamilyOf(ep.Addr()), s.af)
	}
	return ep, nil
}

func (s *socket) bind(name []byte, namelen int32) error {
	ep, err := s.endpoint(name, namelen)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != native.StateInit {
		return failf(native.ErrInvOp, "(bind in state %s)", s.state)
	}
	return s.open(ep)
}

// open binds the socket to ep. Callers hold s.mu.
func (s *socket) open(ep netip.AddrPort) error {
	conn, err := s.eng.listenPacket(s.af, ep, &s.opts)
	if err != nil {
		return failf(native.ErrSockFail, "(%s)", err)
	}
	s.port = newPort(conn)
	s.local = endpointOf(conn.LocalAddr(), s.af)
	s.state = native.StateOpened
	Logger().Debug("socket bound", zap.Int32("socket", int32(s.id)), zap.Stringer("local", s.local))
	return nil
}

func (s *socket) wildcard() netip.AddrPort {
	if s.af == sockaddr.IPv6 {
		return netip.AddrPortFrom(netip.IPv6Unspecified(), 0)
	}
	return netip.AddrPortFrom(netip.IPv4Unspecified(), 0)
}

func (s *socket) listen(backlog int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case native.StateListening:
		return nil
	case native.StateInit:
		return fail(native.ErrUnbound)
	case native.StateOpened:
	default:
		return failf(native.ErrConnSock, "(listen in state %s)", s.state)
	}
	if s.opts.rendezvous {
		return fail(native.ErrRdvNoServ)
	}
	if backlog <= 0 {
		return failf(native.ErrInvParam, "(backlog %d)", backlog)
	}

	ln, err := kcp.ServeConn(nil, 0, 0, s.port.conn)
	if err != nil {
		return failf(native.ErrSockFail, "(%s)", err)
	}
	s.port.ln = ln
	s.backlog = make(chan *link, backlog)
	s.state = native.StateListening

	go s.acceptLoop(s.port, ln)
	return nil
}

func (s *socket) acceptLoop(p *port, ln *kcp.Listener) {
	for {
		sess, err := ln.AcceptKCP()
		if err != nil {
			Logger().Debug("accept loop stopped", zap.Int32("socket", int32(s.id)), zap.Error(err))
			return
		}
		go s.admit(p, sess)
	}
}

// admit runs the listening side of the handshake and queues the
// connection if the backlog has room.
func (s *socket) admit(p *port, sess *kcp.UDPSession) {
	s.mu.Lock()
	opts := s.opts
	s.mu.Unlock()

	tune(sess, &opts)
	remote := endpointOf(sess.RemoteAddr(), s.af)

	buf := make([]byte, handshakeSize)
	_ = sess.SetReadDeadline(time.Now().Add(connectTimeout))
	if _, err := io.ReadFull(sess, buf); err != nil {
		Logger().Debug("handshake read", zap.Stringer("remote", remote), zap.Error(err))
		_ = sess.Close()
		return
	}
	hello, err := parseHandshake(buf)
	if err != nil {
		Logger().Debug("handshake parse", zap.Stringer("remote", remote), zap.Error(err))
		_ = sess.Close()
		return
	}
	_ = sess.SetReadDeadline(time.Time{})

	status := hsAccepted
	s.mu.Lock()
	switch {
	case s.state != native.StateListening:
		status = hsRejectClosed
	case int32(hello.kind) != s.typ:
		status = hsRejectKind
	case s.queued >= cap(s.backlog):
		status = hsRejectBacklog
	default:
		s.queued++
	}
	s.mu.Unlock()

	reply := handshake{kind: byte(s.typ), status: status}.marshal()
	if _, err := sess.Write(reply); err != nil || status != hsAccepted {
		if status == hsAccepted {
			s.mu.Lock()
			s.queued--
			s.mu.Unlock()
		}
		Logger().Debug("connection rejected", zap.Stringer("remote", remote), zap.Uint8("status", status), zap.Error(err))
		// give kcp time to deliver the reply
		time.AfterFunc(connectTimeout, func() { _ = sess.Close() })
		return
	}

	p.acquire()
	l := newLink(sess, s.typ, s.local, remote, &opts, p.release)

	s.mu.Lock()
	if s.state != native.StateListening {
		s.queued--
		s.mu.Unlock()
		l.close()
		return
	}
	s.backlog <- l
	s.mu.Unlock()
	Logger().Debug("connection queued", zap.Int32("socket", int32(s.id)), zap.Stringer("remote", remote))
}

// accept waits for a queued connection and returns it as a new socket.
func (s *socket) accept() (*socket, error) {
	s.mu.Lock()
	if s.state != native.StateListening {
		s.mu.Unlock()
		return nil, fail(native.ErrNoListen)
	}
	backlog := s.backlog
	deadline, nonblock := s.opts.recvDeadline()
	s.mu.Unlock()

	var l *link
	select {
	case l = <-backlog:
	default:
		if nonblock {
			return nil, fail(native.ErrAsyncRcv)
		}
		var expired <-chan time.Time
		if !deadline.IsZero() {
			t := time.NewTimer(time.Until(deadline))
			defer t.Stop()
			expired = t.C
		}
		select {
		case l = <-backlog:
		case <-s.closed:
			return nil, fail(native.ErrNoListen)
		case <-expired:
			return nil, fail(native.ErrTimeout)
		}
	}

	s.mu.Lock()
	s.queued--
	child := newSocket(s.eng, s.af, s.typ)
	child.opts = s.opts
	s.mu.Unlock()

	child.state = native.StateConnected
	child.link = l
	child.local = l.local
	return child, nil
}

func (s *socket) connect(name []byte, namelen int32) error {
	ep, err := s.endpoint(name, namelen)
	if err != nil {
		return err
	}

	s.mu.Lock()
	switch s.state {
	case native.StateInit:
		if err := s.open(s.wildcard()); err != nil {
			s.mu.Unlock()
			return err
		}
	case native.StateOpened:
	case native.StateListening:
		s.mu.Unlock()
		return failf(native.ErrInvOp, "(connect on listening socket)")
	default:
		s.mu.Unlock()
		return failf(native.ErrConnSock, "(connect in state %s)", s.state)
	}
	s.state = native.StateConnecting
	conn := s.port.conn
	opts := s.opts
	s.mu.Unlock()

	l, err := s.dial(conn, ep, &opts)
	if err != nil {
		s.reopen()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != native.StateConnecting {
		l.close()
		return fail(native.ErrConnFail)
	}
	s.link = l
	s.state = native.StateConnected
	Logger().Debug("socket connected", zap.Int32("socket", int32(s.id)), zap.Stringer("remote", ep))
	return nil
}

// dial opens a kcp session to ep over conn and runs the connecting
// side of the handshake.
func (s *socket) dial(conn net.PacketConn, ep netip.AddrPort, opts *options) (*link, error) {
	sess, err := kcp.NewConn(ep.String(), nil, 0, 0, conn)
	if err != nil {
		return nil, failf(native.ErrConnSetup, "(%s)", err)
	}
	tune(sess, opts)

	if _, err := sess.Write(handshake{kind: byte(s.typ)}.marshal()); err != nil {
		_ = sess.Close()
		return nil, failf(native.ErrConnFail, "(%s)", err)
	}

	buf := make([]byte, handshakeSize)
	_ = sess.SetReadDeadline(time.Now().Add(connectTimeout))
	if _, err := io.ReadFull(sess, buf); err != nil {
		_ = sess.Close()
		if isTimeout(err) {
			return nil, fail(native.ErrNoServer)
		}
		return nil, failf(native.ErrConnFail, "(%s)", err)
	}
	_ = sess.SetReadDeadline(time.Time{})

	reply, err := parseHandshake(buf)
	if err != nil {
		_ = sess.Close()
		return nil, failf(native.ErrConnSetup, "(%s)", err)
	}
	if reply.status != hsAccepted {
		_ = sess.Close()
		return nil, failf(native.ErrConnRej, "(status %d)", reply.status)
	}

	return newLink(sess, s.typ, s.local, ep, opts, nil), nil
}

// reopen puts a socket back to Opened after a failed connect. The UDP
// socket is replaced so no reader of the failed session is left on it.
func (s *socket) reopen() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != native.StateConnecting {
		return
	}
	s.port.release()
	s.port = nil
	s.state = native.StateInit
	if err := s.open(s.local); err != nil {
		Logger().Debug("rebinding after failed connect", zap.Stringer("local", s.local), zap.Error(err))
	}
}

// connected returns the link of a connected socket.
func (s *socket) connected() (*link, options, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case native.StateConnected:
		return s.link, s.opts, nil
	case native.StateBroken:
		return nil, options{}, fail(native.ErrConnLost)
	default:
		return nil, options{}, fail(native.ErrNoConn)
	}
}

func (s *socket) send(buf []byte) (int32, error) {
	if s.typ != native.SockStream {
		return 0, fail(native.ErrDgramIll)
	}
	l, opts, err := s.connected()
	if err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, nil
	}

	n := min(len(buf), int(opts.sndBuf))
	deadline, nonblock := opts.sendDeadline()
	if err := l.send(frameData, 0, buf[:n], deadline, nonblock); err != nil {
		return 0, err
	}
	return int32(n), nil
}

func (s *socket) recv(buf []byte) (int32, error) {
	if s.typ != native.SockStream {
		return 0, fail(native.ErrDgramIll)
	}
	l, opts, err := s.connected()
	if err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, nil
	}

	deadline, nonblock := opts.recvDeadline()
	n, err := l.recv(buf, deadline, nonblock)
	return int32(n), err
}

func (s *socket) sendMsg(buf []byte, ttl int32, inOrder bool) (int32, error) {
	if s.typ != native.SockDgram {
		return 0, fail(native.ErrStreamIll)
	}
	l, opts, err := s.connected()
	if err != nil {
		return 0, err
	}
	if len(buf) > int(opts.maxMsg) {
		return 0, failf(native.ErrLargeMsg, "(%d > %d)", len(buf), opts.maxMsg)
	}
	if len(buf) == 0 {
		return 0, nil
	}

	if ttl < 0 {
		ttl = opts.msgTTL
	}
	deadline, nonblock := opts.sendDeadline()
	expires := false
	if ttl >= 0 {
		d := time.Now().Add(time.Duration(ttl) * time.Millisecond)
		if deadline.IsZero() || d.Before(deadline) {
			deadline, expires = d, true
		}
	}

	var flags byte
	if inOrder {
		flags |= flagInOrder
	}
	if err := l.send(frameMsg, flags, buf, deadline, nonblock); err != nil {
		if expires && codeOf(err) == native.ErrTimeout {
			Logger().Debug("message expired", zap.Int32("socket", int32(s.id)), zap.Int("size", len(buf)), zap.Int32("ttl", ttl))
			return int32(len(buf)), nil
		}
		return 0, err
	}
	return int32(len(buf)), nil
}

func (s *socket) recvMsg(buf []byte) (int32, error) {
	if s.typ != native.SockDgram {
		return 0, fail(native.ErrStreamIll)
	}
	l, opts, err := s.connected()
	if err != nil {
		return 0, err
	}

	deadline, nonblock := opts.recvDeadline()
	n, err := l.recvMsg(buf, deadline, nonblock)
	return int32(n), err
}

func (s *socket) sockName() (netip.AddrPort, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == native.StateInit {
		return netip.AddrPort{}, fail(native.ErrNoConn)
	}
	return s.local, nil
}

func (s *socket) peerName() (netip.AddrPort, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != native.StateConnected || s.link == nil {
		return netip.AddrPort{}, fail(native.ErrNoConn)
	}
	return s.link.remote, nil
}

// currentState reports Broken for a connection whose peer has gone.
func (s *socket) currentState() native.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == native.StateConnected && s.link.broken() {
		return native.StateBroken
	}
	return s.state
}

func (s *socket) events() int32 {
	st := s.currentState()

	s.mu.Lock()
	l, backlog := s.link, s.backlog
	s.mu.Unlock()

	var ev int32
	switch st {
	case native.StateListening:
		if len(backlog) > 0 {
			ev |= native.EventIn
		}
	case native.StateConnected:
		ev |= native.EventOut
		if l.readable() {
			ev |= native.EventIn
		}
	case native.StateBroken:
		ev |= native.EventErr
		if l.readable() {
			ev |= native.EventIn
		}
	}
	return ev
}

func (s *socket) getOpt(opt native.Option, optval []byte) (int32, error) {
	switch opt {
	case native.OptState:
		return putInt32(optval, int32(s.currentState()))
	case native.OptEvent:
		return putInt32(optval, s.events())
	case native.OptSndData:
		// kcp does not expose its send queue
		return putInt32(optval, 0)
	case native.OptRcvData:
		s.mu.Lock()
		l := s.link
		s.mu.Unlock()
		var n int64
		if l != nil {
			n = l.rcvData.Load()
		}
		return putInt32(optval, int32(min(n, 1<<31-1)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.get(opt, optval)
}

func (s *socket) setOpt(opt native.Option, optval []byte, optlen int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if preBind(opt) && s.state != native.StateInit {
		if s.state == native.StateOpened {
			return failf(native.ErrBoundSock, "(set %s)", opt)
		}
		return failf(native.ErrConnSock, "(set %s)", opt)
	}
	return s.opts.set(opt, optval, optlen)
}

// close releases everything the socket holds. A connected socket lingers
// until the peer acknowledged the shutdown or the linger time is over.
func (s *socket) close() {
	s.mu.Lock()
	if s.state == native.StateClosing || s.state == native.StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = native.StateClosing
	close(s.closed)

	l, p := s.link, s.port
	linger := s.opts.lingerTime()

	var queued []*link
	if s.backlog != nil {
	drain:
		for {
			select {
			case ql := <-s.backlog:
				queued = append(queued, ql)
			default:
				break drain
			}
		}
		s.queued = 0
	}
	s.mu.Unlock()

	for _, ql := range queued {
		ql.shutdown(0)
	}
	if l != nil {
		l.shutdown(linger)
	}
	if p != nil {
		p.release()
	}

	s.mu.Lock()
	s.state = native.StateClosed
	s.mu.Unlock()
	Logger().Debug("socket closed", zap.Int32("socket", int32(s.id)))
}
