package native

// Error codes stored in the last-error slot. The thousands digit is the
// major class, the rest the minor reason.
const (
	Success       int32 = 0
	ErrConnSetup  int32 = 1000
	ErrNoServer   int32 = 1001
	ErrConnRej    int32 = 1002
	ErrSockFail   int32 = 1003
	ErrSecFail    int32 = 1004
	ErrConnFail   int32 = 2000
	ErrConnLost   int32 = 2001
	ErrNoConn     int32 = 2002
	ErrResource   int32 = 3000
	ErrThread     int32 = 3001
	ErrNoBuf      int32 = 3002
	ErrFile       int32 = 4000
	ErrInvRdOff   int32 = 4001
	ErrRdPerm     int32 = 4002
	ErrInvWrOff   int32 = 4003
	ErrWrPerm     int32 = 4004
	ErrInvOp      int32 = 5000
	ErrBoundSock  int32 = 5001
	ErrConnSock   int32 = 5002
	ErrInvParam   int32 = 5003
	ErrInvSock    int32 = 5004
	ErrUnbound    int32 = 5005
	ErrNoListen   int32 = 5006
	ErrRdvNoServ  int32 = 5007
	ErrRdvUnbound int32 = 5008
	ErrStreamIll  int32 = 5009
	ErrDgramIll   int32 = 5010
	ErrDupListen  int32 = 5011
	ErrLargeMsg   int32 = 5012
	ErrInvPollID  int32 = 5013
	ErrAsyncFail  int32 = 6000
	ErrAsyncSnd   int32 = 6001
	ErrAsyncRcv   int32 = 6002
	ErrTimeout    int32 = 6003
	ErrPeerErr    int32 = 7000
	ErrUnknown    int32 = -1
)

var majors = map[int32]string{
	0: "Success",
	1: "Connection setup failure",
	2: "Connection was broken",
	3: "System resource failure",
	4: "File system failure",
	5: "Operation not supported",
	6: "Non-blocking call failure",
	7: "The peer side has signalled an error",
}

var minors = map[int32]string{
	ErrNoServer:   "connection time out",
	ErrConnRej:    "connection rejected",
	ErrSockFail:   "unable to create/configure UDP socket",
	ErrSecFail:    "abort for security reasons",
	ErrConnLost:   "connection was broken",
	ErrNoConn:     "connection does not exist",
	ErrThread:     "unable to create new threads",
	ErrNoBuf:      "unable to allocate buffers",
	ErrInvRdOff:   "cannot seek read position",
	ErrRdPerm:     "failure in read",
	ErrInvWrOff:   "cannot seek write position",
	ErrWrPerm:     "failure in write",
	ErrBoundSock:  "Cannot do this operation on a BOUND socket",
	ErrConnSock:   "Cannot do this operation on a CONNECTED socket",
	ErrInvParam:   "Bad parameters",
	ErrInvSock:    "Invalid socket ID",
	ErrUnbound:    "Cannot do this operation on an UNBOUND socket",
	ErrNoListen:   "Socket is not in listening state",
	ErrRdvNoServ:  "Listen/accept is not supported in rendezous connection setup",
	ErrRdvUnbound: "Cannot call connect on UNBOUND socket in rendezvous connection setup",
	ErrStreamIll:  "This operation is not supported in SOCK_STREAM mode",
	ErrDgramIll:   "This operation is not supported in SOCK_DGRAM mode",
	ErrDupListen:  "Another socket is already listening on the same port",
	ErrLargeMsg:   "Message is too large to send (it must be less than the UDT send buffer size)",
	ErrInvPollID:  "Invalid epoll ID",
	ErrAsyncSnd:   "no buffer available for sending",
	ErrAsyncRcv:   "no data available for reading",
	ErrTimeout:    "timeout",
}

// Describe returns the engine's description for an error code.
func Describe(code int32) string {
	if code < 0 {
		return "Unknown error."
	}
	major, ok := majors[code/1000]
	if !ok {
		return "Unknown error."
	}
	if minor, ok := minors[code]; ok {
		return major + ": " + minor + "."
	}
	return major + "."
}
