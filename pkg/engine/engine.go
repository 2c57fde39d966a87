// Package engine is a pure-Go UDT engine. It implements native.API on top
// of kcp-go sessions over UDP, so the socket layer runs without libudt.
//
// Each engine socket owns a UDP port. A listening socket serves kcp
// sessions on its port and admits them after a short handshake; stream
// and message payloads travel as length-prefixed frames over one kcp
// session per connection. Failing calls return the usual -1 sentinels and
// leave a code in a last-error slot kept per OS thread.
package engine

import (
	"errors"
	"net/netip"
	"sync"

	"go.uber.org/zap"

	"dominicbreuker/goudt/pkg/config"
	"dominicbreuker/goudt/pkg/native"
	"dominicbreuker/goudt/pkg/sockaddr"
)

// Engine implements native.API.
type Engine struct {
	deps *config.Dependencies
	reg  *registry
	errs *errorSlot

	mu      sync.Mutex
	started int
}

var _ native.API = (*Engine)(nil)

// New creates an engine. The deps parameter is optional and can be nil to
// use default implementations.
func New(deps *config.Dependencies) *Engine {
	return &Engine{
		deps: deps,
		reg:  newRegistry(),
		errs: newErrorSlot(),
	}
}

// Startup may be called several times; every call needs a matching Cleanup.
func (e *Engine) Startup() int32 {
	e.mu.Lock()
	e.started++
	e.mu.Unlock()
	return native.Success
}

// Cleanup closes all sockets once the last Startup has been undone.
func (e *Engine) Cleanup() int32 {
	e.mu.Lock()
	if e.started == 0 {
		e.mu.Unlock()
		return native.Success
	}
	e.started--
	last := e.started == 0
	e.mu.Unlock()

	if !last {
		return native.Success
	}

	var wg sync.WaitGroup
	for _, s := range e.reg.all() {
		e.reg.remove(s.id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.close()
		}()
	}
	wg.Wait()
	return native.Success
}

func (e *Engine) running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started > 0
}

func (e *Engine) lookup(u native.Handle) (*socket, error) {
	if !e.running() {
		return nil, failf(native.ErrInvOp, "(engine not started)")
	}
	s, ok := e.reg.get(u)
	if !ok {
		return nil, fail(native.ErrInvSock)
	}
	return s, nil
}

func (e *Engine) record(err error) {
	var ce *codeError
	if errors.As(err, &ce) {
		e.errs.set(ce.code, ce.detail)
	} else {
		e.errs.set(native.ErrUnknown, err.Error())
	}
	Logger().Debug("call failed", zap.Error(err))
}

func (e *Engine) status(err error) int32 {
	if err != nil {
		e.record(err)
		return native.Error
	}
	return native.Success
}

func (e *Engine) count(n int32, err error) int32 {
	if err != nil {
		e.record(err)
		return native.Error
	}
	return n
}

func (e *Engine) Socket(af, typ, protocol int32) native.Handle {
	if !e.running() {
		e.record(failf(native.ErrInvOp, "(engine not started)"))
		return native.InvalidHandle
	}
	family := sockaddr.FamilyFromAF(af)
	if family == sockaddr.FamilyUnspec {
		e.record(failf(native.ErrInvParam, "(address family %d)", af))
		return native.InvalidHandle
	}
	if typ != native.SockStream && typ != native.SockDgram {
		e.record(failf(native.ErrInvParam, "(socket type %d)", typ))
		return native.InvalidHandle
	}

	h := e.reg.add(newSocket(e, family, typ))
	Logger().Debug("socket created", zap.Int32("socket", int32(h)), zap.Stringer("family", family), zap.Int32("type", typ))
	return h
}

func (e *Engine) Bind(u native.Handle, name []byte, namelen int32) int32 {
	s, err := e.lookup(u)
	if err != nil {
		return e.status(err)
	}
	return e.status(s.bind(name, namelen))
}

func (e *Engine) Listen(u native.Handle, backlog int32) int32 {
	s, err := e.lookup(u)
	if err != nil {
		return e.status(err)
	}
	return e.status(s.listen(backlog))
}

func (e *Engine) Accept(u native.Handle, name []byte, namelen *int32) native.Handle {
	s, err := e.lookup(u)
	if err == nil && namelen != nil && (*namelen < s.af.Size() || len(name) < int(s.af.Size())) {
		err = failf(native.ErrInvParam, "(address buffer of %d bytes)", *namelen)
	}
	var child *socket
	if err == nil {
		child, err = s.accept()
	}
	if err != nil {
		e.record(err)
		return native.InvalidHandle
	}

	h := e.reg.add(child)
	if namelen != nil {
		writeAddr(child.link.remote, name, namelen)
	}
	Logger().Debug("connection accepted", zap.Int32("socket", int32(h)), zap.Stringer("remote", child.link.remote))
	return h
}

func (e *Engine) Connect(u native.Handle, name []byte, namelen int32) int32 {
	s, err := e.lookup(u)
	if err != nil {
		return e.status(err)
	}
	return e.status(s.connect(name, namelen))
}

// Close retires the handle at once and then shuts the socket down.
func (e *Engine) Close(u native.Handle) int32 {
	s, err := e.lookup(u)
	if err != nil {
		return e.status(err)
	}
	e.reg.remove(u)
	s.close()
	return native.Success
}

func (e *Engine) GetPeerName(u native.Handle, name []byte, namelen *int32) int32 {
	s, err := e.lookup(u)
	if err != nil {
		return e.status(err)
	}
	ep, err := s.peerName()
	if err != nil {
		return e.status(err)
	}
	return e.status(checkedWriteAddr(ep, name, namelen))
}

func (e *Engine) GetSockName(u native.Handle, name []byte, namelen *int32) int32 {
	s, err := e.lookup(u)
	if err != nil {
		return e.status(err)
	}
	ep, err := s.sockName()
	if err != nil {
		return e.status(err)
	}
	return e.status(checkedWriteAddr(ep, name, namelen))
}

func (e *Engine) GetSockOpt(u native.Handle, level int32, opt native.Option, optval []byte, optlen *int32) int32 {
	s, err := e.lookup(u)
	if err != nil {
		return e.status(err)
	}
	if optlen == nil || *optlen < 0 || int(*optlen) > len(optval) {
		return e.status(fail(native.ErrInvParam))
	}
	n, err := s.getOpt(opt, optval[:*optlen])
	if err != nil {
		return e.status(err)
	}
	*optlen = n
	return native.Success
}

func (e *Engine) SetSockOpt(u native.Handle, level int32, opt native.Option, optval []byte, optlen int32) int32 {
	s, err := e.lookup(u)
	if err != nil {
		return e.status(err)
	}
	return e.status(s.setOpt(opt, optval, optlen))
}

func (e *Engine) Send(u native.Handle, buf []byte, length, flags int32) int32 {
	s, err := e.lookup(u)
	if err == nil {
		err = checkLength(buf, length)
	}
	if err != nil {
		return e.status(err)
	}
	return e.count(s.send(buf[:max(length, 0)]))
}

func (e *Engine) Recv(u native.Handle, buf []byte, length, flags int32) int32 {
	s, err := e.lookup(u)
	if err == nil {
		err = checkLength(buf, length)
	}
	if err != nil {
		return e.status(err)
	}
	return e.count(s.recv(buf[:max(length, 0)]))
}

func (e *Engine) SendMsg(u native.Handle, buf []byte, length, ttl int32, inOrder bool) int32 {
	s, err := e.lookup(u)
	if err == nil {
		err = checkLength(buf, length)
	}
	if err != nil {
		return e.status(err)
	}
	return e.count(s.sendMsg(buf[:max(length, 0)], ttl, inOrder))
}

func (e *Engine) RecvMsg(u native.Handle, buf []byte, length int32) int32 {
	s, err := e.lookup(u)
	if err == nil {
		err = checkLength(buf, length)
	}
	if err != nil {
		return e.status(err)
	}
	return e.count(s.recvMsg(buf[:max(length, 0)]))
}

func (e *Engine) SendFile(u native.Handle, path string, offset *int64, size int64, block int32) int64 {
	s, err := e.lookup(u)
	if err != nil {
		e.record(err)
		return int64(native.Error)
	}
	n, err := s.sendFile(path, offset, size, block)
	if err != nil {
		e.record(err)
		return int64(native.Error)
	}
	return n
}

func (e *Engine) RecvFile(u native.Handle, path string, offset *int64, size int64, block int32) int64 {
	s, err := e.lookup(u)
	if err != nil {
		e.record(err)
		return int64(native.Error)
	}
	n, err := s.recvFile(path, offset, size, block)
	if err != nil {
		e.record(err)
		return int64(native.Error)
	}
	return n
}

// GetSockState reports NonExist for handles that were never issued or
// have been closed.
func (e *Engine) GetSockState(u native.Handle) native.State {
	s, ok := e.reg.get(u)
	if !ok {
		return native.StateNonExist
	}
	return s.currentState()
}

func (e *Engine) GetLastErrorCode() int32 {
	return e.errs.get().code
}

func (e *Engine) GetLastErrorDesc() string {
	return e.errs.get().desc
}

func (e *Engine) ErrorScope() native.ErrorScope {
	return errorScope
}

func checkLength(buf []byte, length int32) error {
	if int(length) > len(buf) {
		return failf(native.ErrInvParam, "(length %d exceeds buffer of %d bytes)", length, len(buf))
	}
	return nil
}

func checkedWriteAddr(ep netip.AddrPort, name []byte, namelen *int32) error {
	if namelen == nil {
		return fail(native.ErrInvParam)
	}
	n := sockaddr.FamilyOf(ep.Addr()).Size()
	if *namelen < n || len(name) < int(n) {
		return failf(native.ErrInvParam, "(address buffer of %d bytes)", *namelen)
	}
	writeAddr(ep, name, namelen)
	return nil
}

// writeAddr stores ep as a wire record. The caller checked the buffer size.
func writeAddr(ep netip.AddrPort, name []byte, namelen *int32) {
	raw, n, err := sockaddr.Encode(ep)
	if err != nil {
		Logger().Debug("encoding endpoint", zap.Stringer("endpoint", ep), zap.Error(err))
		*namelen = 0
		return
	}
	copy(name, raw[:n])
	*namelen = n
}
