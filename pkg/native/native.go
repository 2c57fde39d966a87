// Package native defines the call interface of a UDT engine.
//
// API mirrors the C entry points of libudt one-to-one: integer status and
// count returns, an invalid-handle sentinel, caller-provided sockaddr
// buffers and a last-error slot that has to be read right after a failing
// call. Two implementations exist: the pure-Go engine in pkg/engine and the
// cgo binding in pkg/native/libudt (build tag libudt).
package native

import "strconv"

// Handle identifies one engine socket.
type Handle int32

// InvalidHandle is returned by Socket and Accept on failure.
const InvalidHandle Handle = -1

// Error is the status and count value that signals a failed call.
const Error int32 = -1

// Socket kinds understood by Socket.
const (
	SockStream int32 = 1
	SockDgram  int32 = 2
)

// State is the engine-reported state of a socket.
type State int32

const (
	StateInit State = iota + 1
	StateOpened
	StateListening
	StateConnecting
	StateConnected
	StateBroken
	StateClosing
	StateClosed
	StateNonExist
)

var stateNames = map[State]string{
	StateInit:       "INIT",
	StateOpened:     "OPENED",
	StateListening:  "LISTENING",
	StateConnecting: "CONNECTING",
	StateConnected:  "CONNECTED",
	StateBroken:     "BROKEN",
	StateClosing:    "CLOSING",
	StateClosed:     "CLOSED",
	StateNonExist:   "NONEXIST",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// Option names a socket option for GetSockOpt and SetSockOpt.
type Option int32

const (
	OptMSS        Option = iota // maximum segment size, int
	OptSndSyn                   // blocking send, bool
	OptRcvSyn                   // blocking receive, bool
	OptCC                       // custom congestion control, unsupported
	OptFC                       // flight flag size (window), int
	OptSndBuf                   // send buffer size in bytes, int
	OptRcvBuf                   // receive buffer size in bytes, int
	OptLinger                   // linger on close, struct linger
	OptUDPSndBuf                // UDP send buffer size, int
	OptUDPRcvBuf                // UDP receive buffer size, int
	OptMaxMsg                   // maximum message size, int
	OptMsgTTL                   // message time-to-live in ms, int
	OptRendezvous               // rendezvous connection mode, bool
	OptSndTimeo                 // send timeout in ms, int
	OptRcvTimeo                 // receive timeout in ms, int
	OptReuseAddr                // reuse an existing port, bool
	OptMaxBW                    // maximum bandwidth in bytes per second, int64
	OptState                    // current socket state, int32, read only
	OptEvent                    // pending epoll events, int32, read only
	OptSndData                  // bytes in the send buffer, int32, read only
	OptRcvData                  // bytes available for recv, int32, read only
)

var optionNames = [...]string{
	"UDT_MSS", "UDT_SNDSYN", "UDT_RCVSYN", "UDT_CC", "UDT_FC", "UDT_SNDBUF",
	"UDT_RCVBUF", "UDT_LINGER", "UDP_SNDBUF", "UDP_RCVBUF", "UDT_MAXMSG",
	"UDT_MSGTTL", "UDT_RENDEZVOUS", "UDT_SNDTIMEO", "UDT_RCVTIMEO",
	"UDT_REUSEADDR", "UDT_MAXBW", "UDT_STATE", "UDT_EVENT", "UDT_SNDDATA",
	"UDT_RCVDATA",
}

func (o Option) String() string {
	if o >= 0 && int(o) < len(optionNames) {
		return optionNames[o]
	}
	return "Option(" + strconv.Itoa(int(o)) + ")"
}

// Epoll event bits reported by OptEvent.
const (
	EventIn  int32 = 0x1
	EventOut int32 = 0x4
	EventErr int32 = 0x8
)

// ErrorScope tells how far the last-error slot is shared.
type ErrorScope int

const (
	// ScopeThread means each OS thread sees only its own last error.
	ScopeThread ErrorScope = iota
	// ScopeProcess means one slot is shared by all threads.
	ScopeProcess
)

// API is the engine call interface.
//
// Address parameters are wire records as produced by pkg/sockaddr. name
// must hold at least namelen bytes; for Accept, GetPeerName and
// GetSockName *namelen is the buffer size on input and the record length
// on output.
//
// RecvMsg returns the length of the whole message. A result above length
// means the message did not fit and only its first length bytes were
// stored; the rest is discarded. Engines that can not tell truncation
// apart return at most length.
type API interface {
	Startup() int32
	Cleanup() int32

	Socket(af, typ, protocol int32) Handle
	Bind(u Handle, name []byte, namelen int32) int32
	Listen(u Handle, backlog int32) int32
	Accept(u Handle, name []byte, namelen *int32) Handle
	Connect(u Handle, name []byte, namelen int32) int32
	Close(u Handle) int32

	GetPeerName(u Handle, name []byte, namelen *int32) int32
	GetSockName(u Handle, name []byte, namelen *int32) int32
	GetSockOpt(u Handle, level int32, opt Option, optval []byte, optlen *int32) int32
	SetSockOpt(u Handle, level int32, opt Option, optval []byte, optlen int32) int32

	Send(u Handle, buf []byte, length, flags int32) int32
	Recv(u Handle, buf []byte, length, flags int32) int32
	SendMsg(u Handle, buf []byte, length, ttl int32, inOrder bool) int32
	RecvMsg(u Handle, buf []byte, length int32) int32
	SendFile(u Handle, path string, offset *int64, size int64, block int32) int64
	RecvFile(u Handle, path string, offset *int64, size int64, block int32) int64

	GetSockState(u Handle) State

	GetLastErrorCode() int32
	GetLastErrorDesc() string
	ErrorScope() ErrorScope
}
