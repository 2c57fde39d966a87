package engine

import (
	"io"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	kcp "github.com/xtaci/kcp-go/v5"
	"go.uber.org/zap"

	"dominicbreuker/goudt/pkg/native"
)

const (
	minInbox = 16
	maxInbox = 4096
	ackWait  = time.Second
)

// link is one established connection: a kcp session in stream mode
// carrying frames. A single reader goroutine splits the stream into
// frames and queues payloads in the inbox.
type link struct {
	sess   *kcp.UDPSession
	kind   int32
	local  netip.AddrPort
	remote netip.AddrPort

	wmu sync.Mutex

	rmu     sync.Mutex
	pending []byte
	inbox   chan []byte
	rcvData atomic.Int64

	closing    atomic.Bool
	peerClosed chan struct{}
	peerOnce   sync.Once
	done       chan struct{}
	doneOnce   sync.Once
	release    func()
}

// tune applies the session settings every link uses.
func tune(sess *kcp.UDPSession, o *options) {
	sess.SetStreamMode(true)
	sess.SetNoDelay(1, 10, 2, 1)
	w := o.window()
	sess.SetWindowSize(w, w)
	sess.SetMtu(o.mtu())
}

func newLink(sess *kcp.UDPSession, kind int32, local, remote netip.AddrPort, o *options, release func()) *link {
	size := min(max(int(o.rcvBuf/o.mss), minInbox), maxInbox)
	l := &link{
		sess:       sess,
		kind:       kind,
		local:      local,
		remote:     remote,
		inbox:      make(chan []byte, size),
		peerClosed: make(chan struct{}),
		done:       make(chan struct{}),
		release:    release,
	}
	go l.readLoop()
	return l
}

func (l *link) readLoop() {
	defer l.markPeerClosed()

	hdr := make([]byte, frameHeaderSize)
	for {
		if _, err := io.ReadFull(l.sess, hdr); err != nil {
			l.debug("read loop stopped", err)
			return
		}
		h, err := parseFrameHeader(hdr)
		if err != nil {
			l.debug("dropping connection", err)
			return
		}
		payload := make([]byte, h.length)
		if _, err := io.ReadFull(l.sess, payload); err != nil {
			l.debug("read loop stopped", err)
			return
		}

		switch h.kind {
		case frameData, frameMsg:
			select {
			case l.inbox <- payload:
				l.rcvData.Add(int64(len(payload)))
			case <-l.done:
				return
			}
		case frameShutdown:
			if err := l.writeFrame(frameShutdownAck, 0, nil, time.Now().Add(ackWait)); err != nil {
				l.debug("sending shutdown ack", err)
			}
			return
		case frameShutdownAck:
			return
		}
	}
}

func (l *link) markPeerClosed() {
	l.peerOnce.Do(func() { close(l.peerClosed) })
}

func (l *link) broken() bool {
	select {
	case <-l.peerClosed:
		return true
	default:
		return false
	}
}

// writeFrame enqueues one frame on the session. A zero deadline blocks
// until the kcp send window has room.
func (l *link) writeFrame(kind, flags byte, p []byte, deadline time.Time) error {
	hdr := frameHeader{kind: kind, flags: flags, length: uint32(len(p))}.marshal()

	l.wmu.Lock()
	defer l.wmu.Unlock()

	if err := l.sess.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err := l.sess.WriteBuffers([][]byte{hdr, p})
	return err
}

// send writes p as one frame of the given kind.
func (l *link) send(kind, flags byte, p []byte, deadline time.Time, nonblock bool) error {
	select {
	case <-l.done:
		return fail(native.ErrInvSock)
	default:
	}
	if l.broken() {
		return fail(native.ErrConnLost)
	}
	return mapIOError(l.writeFrame(kind, flags, p, deadline), nonblock, native.ErrAsyncSnd)
}

// next returns the next queued payload. Queued payloads are still
// delivered after the peer went away.
func (l *link) next(deadline time.Time, nonblock bool) ([]byte, error) {
	select {
	case c := <-l.inbox:
		return c, nil
	default:
	}
	if l.broken() {
		return nil, fail(native.ErrConnLost)
	}
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
	case c := <-l.inbox:
		return c, nil
	case <-l.peerClosed:
		select {
		case c := <-l.inbox:
			return c, nil
		default:
			return nil, fail(native.ErrConnLost)
		}
	case <-l.done:
		return nil, fail(native.ErrInvSock)
	case <-expired:
		return nil, fail(native.ErrTimeout)
	}
}

// recv copies stream bytes into buf. It returns as soon as some bytes are
// available, so a read may end at any byte boundary.
func (l *link) recv(buf []byte, deadline time.Time, nonblock bool) (int, error) {
	l.rmu.Lock()
	defer l.rmu.Unlock()

	if len(l.pending) == 0 {
		c, err := l.next(deadline, nonblock)
		if err != nil {
			return 0, err
		}
		l.pending = c
	}
	n := copy(buf, l.pending)
	l.pending = l.pending[n:]
	l.rcvData.Add(-int64(n))
	return n, nil
}

// recvMsg copies one message into buf and returns its full length, which
// exceeds len(buf) when the tail was cut off.
func (l *link) recvMsg(buf []byte, deadline time.Time, nonblock bool) (int, error) {
	l.rmu.Lock()
	defer l.rmu.Unlock()

	c, err := l.next(deadline, nonblock)
	if err != nil {
		return 0, err
	}
	l.rcvData.Add(-int64(len(c)))
	copy(buf, c)
	return len(c), nil
}

func (l *link) readable() bool {
	l.rmu.Lock()
	defer l.rmu.Unlock()
	return len(l.pending) > 0 || len(l.inbox) > 0
}

// shutdown tells the peer that no more frames follow and waits up to
// linger for its acknowledgement before closing the session.
func (l *link) shutdown(linger time.Duration) {
	l.closing.Store(true)

	if !l.broken() {
		if err := l.writeFrame(frameShutdown, 0, nil, time.Now().Add(max(linger, ackWait))); err != nil {
			l.debug("sending shutdown", err)
		} else if linger > 0 {
			t := time.NewTimer(linger)
			select {
			case <-l.peerClosed:
			case <-t.C:
				Logger().Debug("linger expired", zap.Stringer("remote", l.remote))
			}
			t.Stop()
		}
	}
	l.close()
}

func (l *link) close() {
	l.doneOnce.Do(func() {
		close(l.done)
		_ = l.sess.Close()
		if l.release != nil {
			l.release()
		}
	})
}

func (l *link) debug(msg string, err error) {
	if l.closing.Load() {
		return
	}
	Logger().Debug(msg, zap.Stringer("remote", l.remote), zap.Error(err))
}
