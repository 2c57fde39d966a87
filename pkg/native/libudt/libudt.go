//go:build libudt && cgo

// Package libudt binds native.API to the C interface of libudt.
//
// Build with -tags libudt and make libudt plus its C wrapper visible to the
// linker. UDT keeps its last error in thread-local storage, so the binding
// reports native.ScopeThread; callers still need to pin the goroutine to its
// OS thread between a failing call and the error read.
package libudt

/*
#cgo LDFLAGS: -ludt -lstdc++ -lpthread -lm
#include <stdint.h>
#include <stdlib.h>

typedef int UDTSOCKET;
struct sockaddr;

extern int udt_startup(void);
extern int udt_cleanup(void);
extern UDTSOCKET udt_socket(int af, int type, int protocol);
extern int udt_bind(UDTSOCKET u, const struct sockaddr* name, int namelen);
extern int udt_listen(UDTSOCKET u, int backlog);
extern UDTSOCKET udt_accept(UDTSOCKET u, struct sockaddr* addr, int* addrlen);
extern int udt_connect(UDTSOCKET u, const struct sockaddr* name, int namelen);
extern int udt_close(UDTSOCKET u);
extern int udt_getpeername(UDTSOCKET u, struct sockaddr* name, int* namelen);
extern int udt_getsockname(UDTSOCKET u, struct sockaddr* name, int* namelen);
extern int udt_getsockopt(UDTSOCKET u, int level, int optname, void* optval, int* optlen);
extern int udt_setsockopt(UDTSOCKET u, int level, int optname, const void* optval, int optlen);
extern int udt_send(UDTSOCKET u, const char* buf, int len, int flags);
extern int udt_recv(UDTSOCKET u, char* buf, int len, int flags);
extern int udt_sendmsg(UDTSOCKET u, const char* buf, int len, int ttl, int inorder);
extern int udt_recvmsg(UDTSOCKET u, char* buf, int len);
extern int64_t udt_sendfile2(UDTSOCKET u, const char* path, int64_t* offset, int64_t size, int block);
extern int64_t udt_recvfile2(UDTSOCKET u, const char* path, int64_t* offset, int64_t size, int block);
extern int udt_getlasterror_code(void);
extern const char* udt_getlasterror_desc(void);
extern int udt_getsockstate(UDTSOCKET u);
*/
import "C"

import (
	"unsafe"

	"dominicbreuker/goudt/pkg/native"
)

// API calls straight into libudt.
type API struct{}

var _ native.API = API{}

// New returns the libudt binding.
func New() API {
	return API{}
}

func (API) Startup() int32 { return int32(C.udt_startup()) }
func (API) Cleanup() int32 { return int32(C.udt_cleanup()) }

func (API) Socket(af, typ, protocol int32) native.Handle {
	return native.Handle(C.udt_socket(C.int(af), C.int(typ), C.int(protocol)))
}

func (API) Bind(u native.Handle, name []byte, namelen int32) int32 {
	return int32(C.udt_bind(C.UDTSOCKET(u), sockaddrPtr(name), C.int(namelen)))
}

func (API) Listen(u native.Handle, backlog int32) int32 {
	return int32(C.udt_listen(C.UDTSOCKET(u), C.int(backlog)))
}

func (API) Accept(u native.Handle, name []byte, namelen *int32) native.Handle {
	n := C.int(*namelen)
	h := native.Handle(C.udt_accept(C.UDTSOCKET(u), sockaddrPtr(name), &n))
	*namelen = int32(n)
	return h
}

func (API) Connect(u native.Handle, name []byte, namelen int32) int32 {
	return int32(C.udt_connect(C.UDTSOCKET(u), sockaddrPtr(name), C.int(namelen)))
}

func (API) Close(u native.Handle) int32 {
	return int32(C.udt_close(C.UDTSOCKET(u)))
}

func (API) GetPeerName(u native.Handle, name []byte, namelen *int32) int32 {
	n := C.int(*namelen)
	ret := int32(C.udt_getpeername(C.UDTSOCKET(u), sockaddrPtr(name), &n))
	*namelen = int32(n)
	return ret
}

func (API) GetSockName(u native.Handle, name []byte, namelen *int32) int32 {
	n := C.int(*namelen)
	ret := int32(C.udt_getsockname(C.UDTSOCKET(u), sockaddrPtr(name), &n))
	*namelen = int32(n)
	return ret
}

func (API) GetSockOpt(u native.Handle, level int32, opt native.Option, optval []byte, optlen *int32) int32 {
	n := C.int(*optlen)
	ret := int32(C.udt_getsockopt(C.UDTSOCKET(u), C.int(level), C.int(opt), bytesPtr(optval), &n))
	*optlen = int32(n)
	return ret
}

func (API) SetSockOpt(u native.Handle, level int32, opt native.Option, optval []byte, optlen int32) int32 {
	return int32(C.udt_setsockopt(C.UDTSOCKET(u), C.int(level), C.int(opt), bytesPtr(optval), C.int(optlen)))
}

func (API) Send(u native.Handle, buf []byte, length, flags int32) int32 {
	return int32(C.udt_send(C.UDTSOCKET(u), (*C.char)(bytesPtr(buf)), C.int(length), C.int(flags)))
}

func (API) Recv(u native.Handle, buf []byte, length, flags int32) int32 {
	return int32(C.udt_recv(C.UDTSOCKET(u), (*C.char)(bytesPtr(buf)), C.int(length), C.int(flags)))
}

func (API) SendMsg(u native.Handle, buf []byte, length, ttl int32, inOrder bool) int32 {
	order := C.int(0)
	if inOrder {
		order = 1
	}
	return int32(C.udt_sendmsg(C.UDTSOCKET(u), (*C.char)(bytesPtr(buf)), C.int(length), C.int(ttl), order))
}

func (API) RecvMsg(u native.Handle, buf []byte, length int32) int32 {
	return int32(C.udt_recvmsg(C.UDTSOCKET(u), (*C.char)(bytesPtr(buf)), C.int(length)))
}

func (API) SendFile(u native.Handle, path string, offset *int64, size int64, block int32) int64 {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	off := C.int64_t(*offset)
	ret := int64(C.udt_sendfile2(C.UDTSOCKET(u), cpath, &off, C.int64_t(size), C.int(block)))
	*offset = int64(off)
	return ret
}

func (API) RecvFile(u native.Handle, path string, offset *int64, size int64, block int32) int64 {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	off := C.int64_t(*offset)
	ret := int64(C.udt_recvfile2(C.UDTSOCKET(u), cpath, &off, C.int64_t(size), C.int(block)))
	*offset = int64(off)
	return ret
}

func (API) GetSockState(u native.Handle) native.State {
	return native.State(C.udt_getsockstate(C.UDTSOCKET(u)))
}

func (API) GetLastErrorCode() int32 {
	return int32(C.udt_getlasterror_code())
}

func (API) GetLastErrorDesc() string {
	return C.GoString(C.udt_getlasterror_desc())
}

func (API) ErrorScope() native.ErrorScope {
	return native.ScopeThread
}

func sockaddrPtr(b []byte) *C.struct_sockaddr {
	return (*C.struct_sockaddr)(bytesPtr(b))
}

func bytesPtr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}
