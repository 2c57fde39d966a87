package udt

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"time"

	"dominicbreuker/goudt/pkg/native"
	"dominicbreuker/goudt/pkg/sockaddr"
)

// Option configures a socket right after New created it.
type Option func(*Socket) error

// WithTTL sets the message time-to-live in milliseconds.
func WithTTL(ms int) Option {
	return func(s *Socket) error {
		s.SetTTL(ms)
		return nil
	}
}

// WithInOrder sets the message ordering flag.
func WithInOrder(v bool) Option {
	return func(s *Socket) error {
		s.SetInOrder(v)
		return nil
	}
}

// WithMessageBuffer sets the ReceiveMessage buffer size.
func WithMessageBuffer(n int) Option {
	return func(s *Socket) error {
		return s.SetMessageBufferSize(n)
	}
}

// WithSendTimeout bounds blocking sends. Zero or less waits forever.
func WithSendTimeout(d time.Duration) Option {
	return func(s *Socket) error {
		return s.SetIntOption(native.OptSndTimeo, timeoutMillis(d))
	}
}

// WithRecvTimeout bounds blocking receives and accepts. Zero or less waits
// forever.
func WithRecvTimeout(d time.Duration) Option {
	return func(s *Socket) error {
		return s.SetIntOption(native.OptRcvTimeo, timeoutMillis(d))
	}
}

// WithNonBlocking turns both directions non-blocking.
func WithNonBlocking() Option {
	return func(s *Socket) error {
		if err := s.SetBoolOption(native.OptSndSyn, false); err != nil {
			return err
		}
		return s.SetBoolOption(native.OptRcvSyn, false)
	}
}

// WithMSS sets the maximum segment size. Only valid before Bind.
func WithMSS(n int) Option {
	return func(s *Socket) error {
		return s.SetIntOption(native.OptMSS, n)
	}
}

// WithSendBuffer sets the engine send buffer in bytes.
func WithSendBuffer(n int) Option {
	return func(s *Socket) error {
		return s.SetIntOption(native.OptSndBuf, n)
	}
}

// WithReuseAddr allows binding a port another socket already uses.
func WithReuseAddr(v bool) Option {
	return func(s *Socket) error {
		return s.SetBoolOption(native.OptReuseAddr, v)
	}
}

// WithLinger sets how long Close waits for queued data.
func WithLinger(on bool, d time.Duration) Option {
	return func(s *Socket) error {
		return s.SetLinger(on, d)
	}
}

func timeoutMillis(d time.Duration) int {
	if d <= 0 {
		return -1
	}
	return int(max(d.Milliseconds(), 1))
}

func (s *Socket) setOpt(opt native.Option, val []byte) error {
	if err := s.check("set " + opt.String()); err != nil {
		return err
	}
	_, err := s.tr.call(KindOptionFailed, false, func() int32 {
		return s.api.SetSockOpt(s.handle, 0, opt, val, int32(len(val)))
	})
	return err
}

func (s *Socket) getOpt(opt native.Option, size int) ([]byte, error) {
	if err := s.check("get " + opt.String()); err != nil {
		return nil, err
	}
	val := make([]byte, size)
	n := int32(size)
	_, err := s.tr.call(KindOptionFailed, false, func() int32 {
		return s.api.GetSockOpt(s.handle, 0, opt, val, &n)
	})
	if err != nil {
		return nil, err
	}
	if n < 0 || int(n) > size {
		return nil, localError(KindOptionFailed, fmt.Sprintf("get %s: engine reported length %d", opt, n))
	}
	return val[:n], nil
}

// SetBoolOption sets a boolean engine option.
func (s *Socket) SetBoolOption(opt native.Option, v bool) error {
	var b byte
	if v {
		b = 1
	}
	if err := s.setOpt(opt, []byte{b}); err != nil {
		return err
	}
	switch opt {
	case native.OptSndSyn:
		s.sndNoBlock.Store(!v)
	case native.OptRcvSyn:
		s.rcvNoBlock.Store(!v)
	}
	return nil
}

// SetIntOption sets a 32-bit engine option.
func (s *Socket) SetIntOption(opt native.Option, v int) error {
	if v < -1<<31 || v > 1<<31-1 {
		return localError(KindInvalidArgument, fmt.Sprintf("set %s: value %d out of range", opt, v))
	}
	b := make([]byte, 4)
	binary.NativeEndian.PutUint32(b, uint32(int32(v)))
	return s.setOpt(opt, b)
}

// SetInt64Option sets a 64-bit engine option such as OptMaxBW.
func (s *Socket) SetInt64Option(opt native.Option, v int64) error {
	b := make([]byte, 8)
	binary.NativeEndian.PutUint64(b, uint64(v))
	return s.setOpt(opt, b)
}

// SetLinger sets the linger option. d is rounded down to whole seconds.
func (s *Socket) SetLinger(on bool, d time.Duration) error {
	if d < 0 {
		return localError(KindInvalidArgument, fmt.Sprintf("set linger: negative duration %s", d))
	}
	b := make([]byte, 8)
	if on {
		binary.NativeEndian.PutUint32(b[0:4], 1)
	}
	binary.NativeEndian.PutUint32(b[4:8], uint32(int32(min(d/time.Second, 1<<31-1))))
	return s.setOpt(native.OptLinger, b)
}

// BoolOption reads a boolean engine option.
func (s *Socket) BoolOption(opt native.Option) (bool, error) {
	b, err := s.getOpt(opt, 4)
	if err != nil {
		return false, err
	}
	for _, c := range b {
		if c != 0 {
			return true, nil
		}
	}
	return false, nil
}

// IntOption reads a 32-bit engine option.
func (s *Socket) IntOption(opt native.Option) (int, error) {
	b, err := s.getOpt(opt, 4)
	if err != nil {
		return 0, err
	}
	if len(b) != 4 {
		return 0, localError(KindOptionFailed, fmt.Sprintf("get %s: want 4 bytes, got %d", opt, len(b)))
	}
	return int(int32(binary.NativeEndian.Uint32(b))), nil
}

// Int64Option reads a 64-bit engine option.
func (s *Socket) Int64Option(opt native.Option) (int64, error) {
	b, err := s.getOpt(opt, 8)
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, localError(KindOptionFailed, fmt.Sprintf("get %s: want 8 bytes, got %d", opt, len(b)))
	}
	return int64(binary.NativeEndian.Uint64(b)), nil
}

// Linger reads the linger option.
func (s *Socket) Linger() (bool, time.Duration, error) {
	b, err := s.getOpt(native.OptLinger, 8)
	if err != nil {
		return false, 0, err
	}
	if len(b) != 8 {
		return false, 0, localError(KindOptionFailed, fmt.Sprintf("get linger: want 8 bytes, got %d", len(b)))
	}
	on := binary.NativeEndian.Uint32(b[0:4]) != 0
	secs := int32(binary.NativeEndian.Uint32(b[4:8]))
	return on, time.Duration(secs) * time.Second, nil
}

type nameFunc func(u native.Handle, name []byte, namelen *int32) int32

func (s *Socket) name(op string, fn nameFunc) (netip.AddrPort, error) {
	if err := s.check(op); err != nil {
		return netip.AddrPort{}, err
	}
	var raw sockaddr.Raw
	n := int32(len(raw))
	_, err := s.tr.call(KindNameFailed, false, func() int32 {
		return fn(s.handle, raw[:], &n)
	})
	if err != nil {
		return netip.AddrPort{}, err
	}
	ep, err := sockaddr.DecodeRaw(&raw, n)
	if err != nil {
		return netip.AddrPort{}, &Error{Kind: KindNameFailed, Source: SourceLocal, Code: LocalCode, Desc: op, Cause: err}
	}
	return ep, nil
}

// LocalEndpoint returns the endpoint the socket is bound to.
func (s *Socket) LocalEndpoint() (netip.AddrPort, error) {
	return s.name("local endpoint", s.api.GetSockName)
}

// RemoteEndpoint returns the connected peer's endpoint.
func (s *Socket) RemoteEndpoint() (netip.AddrPort, error) {
	return s.name("remote endpoint", s.api.GetPeerName)
}

// SendFile streams size bytes of the file at path, starting at offset.
// It returns the number of bytes sent and the offset after the last one.
func (s *Socket) SendFile(path string, offset, size int64) (int64, int64, error) {
	if err := s.requireStream("send file"); err != nil {
		return 0, offset, err
	}
	if offset < 0 || size < 0 {
		return 0, offset, localError(KindInvalidArgument, fmt.Sprintf("send file: offset %d size %d", offset, size))
	}
	off := offset
	n, err := s.tr.call64(KindSendFailed, true, func() int64 {
		return s.api.SendFile(s.handle, path, &off, size, 0)
	})
	if err != nil {
		return 0, off, err
	}
	return n, off, nil
}

// ReceiveFile writes size bytes from the stream into the file at path,
// starting at offset. The file is created or truncated.
func (s *Socket) ReceiveFile(path string, offset, size int64) (int64, int64, error) {
	if err := s.requireStream("receive file"); err != nil {
		return 0, offset, err
	}
	if offset < 0 || size < 0 {
		return 0, offset, localError(KindInvalidArgument, fmt.Sprintf("receive file: offset %d size %d", offset, size))
	}
	off := offset
	n, err := s.tr.call64(KindReceiveFailed, true, func() int64 {
		return s.api.RecvFile(s.handle, path, &off, size, 0)
	})
	if err != nil {
		return 0, off, err
	}
	return n, off, nil
}
