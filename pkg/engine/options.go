package engine

import (
	"encoding/binary"
	"time"

	"dominicbreuker/goudt/pkg/native"
)

const (
	defaultMSS     = 1500
	defaultFC      = 25600
	defaultBuf     = 8192 * (defaultMSS - 28)
	defaultUDPBuf  = 65536
	defaultLinger  = 3
	minMSS         = 76
	udpHeaderSize  = 28
	minMTU         = 64
	maxKCPWindow   = 1024
	minKCPWindow   = 32
	connectTimeout = 3 * time.Second
)

// options holds the per-socket settings. Accepted sockets start with a
// copy of their listener's options.
type options struct {
	mss        int32
	sndSyn     bool
	rcvSyn     bool
	fc         int32
	sndBuf     int32
	rcvBuf     int32
	lingerOn   int32
	linger     int32
	udpSndBuf  int32
	udpRcvBuf  int32
	maxMsg     int32
	msgTTL     int32
	rendezvous bool
	sndTimeo   int32
	rcvTimeo   int32
	reuseAddr  bool
	maxBW      int64
}

func defaultOptions() options {
	return options{
		mss:       defaultMSS,
		sndSyn:    true,
		rcvSyn:    true,
		fc:        defaultFC,
		sndBuf:    defaultBuf,
		rcvBuf:    defaultBuf,
		lingerOn:  1,
		linger:    defaultLinger,
		udpSndBuf: defaultUDPBuf,
		udpRcvBuf: defaultUDPBuf,
		maxMsg:    defaultBuf,
		msgTTL:    -1,
		sndTimeo:  -1,
		rcvTimeo:  -1,
		reuseAddr: true,
		maxBW:     -1,
	}
}

// mtu is the kcp MTU derived from the UDT MSS, which counts the IP and
// UDP headers.
func (o *options) mtu() int {
	return max(int(o.mss)-udpHeaderSize, minMTU)
}

func (o *options) window() int {
	return min(max(int(o.fc), minKCPWindow), maxKCPWindow)
}

func (o *options) lingerTime() time.Duration {
	if o.lingerOn == 0 {
		return 0
	}
	return time.Duration(o.linger) * time.Second
}

func (o *options) recvDeadline() (deadline time.Time, nonblock bool) {
	if !o.rcvSyn {
		return time.Now(), true
	}
	if o.rcvTimeo >= 0 {
		return time.Now().Add(time.Duration(o.rcvTimeo) * time.Millisecond), false
	}
	return time.Time{}, false
}

func (o *options) sendDeadline() (deadline time.Time, nonblock bool) {
	if !o.sndSyn {
		return time.Now(), true
	}
	if o.sndTimeo >= 0 {
		return time.Now().Add(time.Duration(o.sndTimeo) * time.Millisecond), false
	}
	return time.Time{}, false
}

// preBind reports whether opt can only be changed before the socket is
// bound or connected.
func preBind(opt native.Option) bool {
	switch opt {
	case native.OptMSS, native.OptFC, native.OptSndBuf, native.OptRcvBuf,
		native.OptUDPSndBuf, native.OptUDPRcvBuf, native.OptRendezvous, native.OptReuseAddr:
		return true
	}
	return false
}

// set decodes optval into the option. The caller checks the socket state.
func (o *options) set(opt native.Option, optval []byte, optlen int32) error {
	if optlen < 0 || int(optlen) > len(optval) {
		return failf(native.ErrInvParam, "(option length %d)", optlen)
	}
	b := optval[:optlen]

	switch opt {
	case native.OptSndSyn, native.OptRcvSyn, native.OptRendezvous, native.OptReuseAddr:
		v, err := getBool(b)
		if err != nil {
			return err
		}
		switch opt {
		case native.OptSndSyn:
			o.sndSyn = v
		case native.OptRcvSyn:
			o.rcvSyn = v
		case native.OptRendezvous:
			o.rendezvous = v
		default:
			o.reuseAddr = v
		}
		return nil

	case native.OptMSS, native.OptFC, native.OptSndBuf, native.OptRcvBuf,
		native.OptUDPSndBuf, native.OptUDPRcvBuf, native.OptMaxMsg:
		v, err := getInt32(b)
		if err != nil {
			return err
		}
		if v <= 0 || (opt == native.OptMSS && v < minMSS) {
			return failf(native.ErrInvParam, "(%s=%d)", opt, v)
		}
		// One send or message travels as a single frame.
		if (opt == native.OptSndBuf || opt == native.OptMaxMsg) && v > maxFrameSize {
			return failf(native.ErrInvParam, "(%s=%d exceeds frame limit %d)", opt, v, maxFrameSize)
		}
		switch opt {
		case native.OptMSS:
			o.mss = v
		case native.OptFC:
			o.fc = v
		case native.OptSndBuf:
			o.sndBuf = v
		case native.OptRcvBuf:
			o.rcvBuf = v
		case native.OptUDPSndBuf:
			o.udpSndBuf = v
		case native.OptUDPRcvBuf:
			o.udpRcvBuf = v
		default:
			o.maxMsg = v
		}
		return nil

	case native.OptMsgTTL, native.OptSndTimeo, native.OptRcvTimeo:
		v, err := getInt32(b)
		if err != nil {
			return err
		}
		switch opt {
		case native.OptMsgTTL:
			o.msgTTL = v
		case native.OptSndTimeo:
			o.sndTimeo = v
		default:
			o.rcvTimeo = v
		}
		return nil

	case native.OptLinger:
		if len(b) < 8 {
			return failf(native.ErrInvParam, "(linger needs 8 bytes, got %d)", len(b))
		}
		o.lingerOn = int32(binary.NativeEndian.Uint32(b[0:4]))
		o.linger = int32(binary.NativeEndian.Uint32(b[4:8]))
		return nil

	case native.OptMaxBW:
		if len(b) < 8 {
			return failf(native.ErrInvParam, "(%s needs 8 bytes, got %d)", opt, len(b))
		}
		o.maxBW = int64(binary.NativeEndian.Uint64(b))
		return nil

	default:
		// read-only or unsupported
		return failf(native.ErrInvOp, "(set %s)", opt)
	}
}

// get encodes a stored option into optval. Dynamic options are handled by
// the socket.
func (o *options) get(opt native.Option, optval []byte) (int32, error) {
	switch opt {
	case native.OptSndSyn:
		return putBool(optval, o.sndSyn)
	case native.OptRcvSyn:
		return putBool(optval, o.rcvSyn)
	case native.OptRendezvous:
		return putBool(optval, o.rendezvous)
	case native.OptReuseAddr:
		return putBool(optval, o.reuseAddr)
	case native.OptMSS:
		return putInt32(optval, o.mss)
	case native.OptFC:
		return putInt32(optval, o.fc)
	case native.OptSndBuf:
		return putInt32(optval, o.sndBuf)
	case native.OptRcvBuf:
		return putInt32(optval, o.rcvBuf)
	case native.OptUDPSndBuf:
		return putInt32(optval, o.udpSndBuf)
	case native.OptUDPRcvBuf:
		return putInt32(optval, o.udpRcvBuf)
	case native.OptMaxMsg:
		return putInt32(optval, o.maxMsg)
	case native.OptMsgTTL:
		return putInt32(optval, o.msgTTL)
	case native.OptSndTimeo:
		return putInt32(optval, o.sndTimeo)
	case native.OptRcvTimeo:
		return putInt32(optval, o.rcvTimeo)
	case native.OptLinger:
		if len(optval) < 8 {
			return 0, failf(native.ErrInvParam, "(linger needs 8 bytes, got %d)", len(optval))
		}
		binary.NativeEndian.PutUint32(optval[0:4], uint32(o.lingerOn))
		binary.NativeEndian.PutUint32(optval[4:8], uint32(o.linger))
		return 8, nil
	case native.OptMaxBW:
		if len(optval) < 8 {
			return 0, failf(native.ErrInvParam, "(%s needs 8 bytes, got %d)", opt, len(optval))
		}
		binary.NativeEndian.PutUint64(optval, uint64(o.maxBW))
		return 8, nil
	default:
		return 0, failf(native.ErrInvOp, "(get %s)", opt)
	}
}

func getBool(b []byte) (bool, error) {
	if len(b) < 1 {
		return false, failf(native.ErrInvParam, "(empty bool option)")
	}
	return b[0] != 0, nil
}

func getInt32(b []byte) (int32, error) {
	if len(b) < 4 {
		return 0, failf(native.ErrInvParam, "(int option needs 4 bytes, got %d)", len(b))
	}
	return int32(binary.NativeEndian.Uint32(b)), nil
}

func putBool(b []byte, v bool) (int32, error) {
	if len(b) < 1 {
		return 0, failf(native.ErrInvParam, "(empty bool option buffer)")
	}
	b[0] = 0
	if v {
		b[0] = 1
	}
	return 1, nil
}

func putInt32(b []byte, v int32) (int32, error) {
	if len(b) < 4 {
		return 0, failf(native.ErrInvParam, "(int option buffer of %d bytes)", len(b))
	}
	binary.NativeEndian.PutUint32(b, uint32(v))
	return 4, nil
}
