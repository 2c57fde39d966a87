package mocks

import (
	"sync"

	"dominicbreuker/goudt/pkg/native"
)

// MockAPI is a scriptable native.API. Each method calls its hook when set;
// without a hook it succeeds with a neutral result (lengths are returned
// in full, reads return 0). Every call is counted by method name.
type MockAPI struct {
	StartupFn      func() int32
	CleanupFn      func() int32
	SocketFn       func(af, typ, protocol int32) native.Handle
	BindFn         func(u native.Handle, name []byte, namelen int32) int32
	ListenFn       func(u native.Handle, backlog int32) int32
	AcceptFn       func(u native.Handle, name []byte, namelen *int32) native.Handle
	ConnectFn      func(u native.Handle, name []byte, namelen int32) int32
	CloseFn        func(u native.Handle) int32
	GetPeerNameFn  func(u native.Handle, name []byte, namelen *int32) int32
	GetSockNameFn  func(u native.Handle, name []byte, namelen *int32) int32
	GetSockOptFn   func(u native.Handle, level int32, opt native.Option, optval []byte, optlen *int32) int32
	SetSockOptFn   func(u native.Handle, level int32, opt native.Option, optval []byte, optlen int32) int32
	SendFn         func(u native.Handle, buf []byte, length, flags int32) int32
	RecvFn         func(u native.Handle, buf []byte, length, flags int32) int32
	SendMsgFn      func(u native.Handle, buf []byte, length, ttl int32, inOrder bool) int32
	RecvMsgFn      func(u native.Handle, buf []byte, length int32) int32
	SendFileFn     func(u native.Handle, path string, offset *int64, size int64, block int32) int64
	RecvFileFn     func(u native.Handle, path string, offset *int64, size int64, block int32) int64
	GetSockStateFn func(u native.Handle) native.State

	// Scope is reported by ErrorScope.
	Scope native.ErrorScope

	mu         sync.Mutex
	calls      map[string]int
	code       int32
	desc       string
	nextHandle native.Handle
}

// NewMockAPI creates a mock whose sockets start at handle 100.
func NewMockAPI() *MockAPI {
	return &MockAPI{
		calls:      make(map[string]int),
		nextHandle: 100,
	}
}

var _ native.API = (*MockAPI)(nil)

func (m *MockAPI) count(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

// Calls returns how often the named method was called.
func (m *MockAPI) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// TotalCalls returns the number of calls across all methods.
func (m *MockAPI) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// SetLastError sets what GetLastErrorCode and GetLastErrorDesc report.
func (m *MockAPI) SetLastError(code int32, desc string) {
	m.mu.Lock()
	m.code, m.desc = code, desc
	m.mu.Unlock()
}

// Fail records code with its standard description and returns the error
// sentinel, for use inside hooks.
func (m *MockAPI) Fail(code int32) int32 {
	m.SetLastError(code, native.Describe(code))
	return native.Error
}

func (m *MockAPI) Startup() int32 {
	m.count("Startup")
	if m.StartupFn != nil {
		return m.StartupFn()
	}
	return native.Success
}

func (m *MockAPI) Cleanup() int32 {
	m.count("Cleanup")
	if m.CleanupFn != nil {
		return m.CleanupFn()
	}
	return native.Success
}

func (m *MockAPI) Socket(af, typ, protocol int32) native.Handle {
	m.count("Socket")
	if m.SocketFn != nil {
		return m.SocketFn(af, typ, protocol)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nextHandle == 0 {
		m.nextHandle = 100
	}
	h := m.nextHandle
	m.nextHandle++
	return h
}

func (m *MockAPI) Bind(u native.Handle, name []byte, namelen int32) int32 {
	m.count("Bind")
	if m.BindFn != nil {
		return m.BindFn(u, name, namelen)
	}
	return native.Success
}

func (m *MockAPI) Listen(u native.Handle, backlog int32) int32 {
	m.count("Listen")
	if m.ListenFn != nil {
		return m.ListenFn(u, backlog)
	}
	return native.Success
}

func (m *MockAPI) Accept(u native.Handle, name []byte, namelen *int32) native.Handle {
	m.count("Accept")
	if m.AcceptFn != nil {
		return m.AcceptFn(u, name, namelen)
	}
	return m.Socket(0, 0, 0)
}

func (m *MockAPI) Connect(u native.Handle, name []byte, namelen int32) int32 {
	m.count("Connect")
	if m.ConnectFn != nil {
		return m.ConnectFn(u, name, namelen)
	}
	return native.Success
}

func (m *MockAPI) Close(u native.Handle) int32 {
	m.count("Close")
	if m.CloseFn != nil {
		return m.CloseFn(u)
	}
	return native.Success
}

func (m *MockAPI) GetPeerName(u native.Handle, name []byte, namelen *int32) int32 {
	m.count("GetPeerName")
	if m.GetPeerNameFn != nil {
		return m.GetPeerNameFn(u, name, namelen)
	}
	return native.Success
}

func (m *MockAPI) GetSockName(u native.Handle, name []byte, namelen *int32) int32 {
	m.count("GetSockName")
	if m.GetSockNameFn != nil {
		return m.GetSockNameFn(u, name, namelen)
	}
	return native.Success
}

func (m *MockAPI) GetSockOpt(u native.Handle, level int32, opt native.Option, optval []byte, optlen *int32) int32 {
	m.count("GetSockOpt")
	if m.GetSockOptFn != nil {
		return m.GetSockOptFn(u, level, opt, optval, optlen)
	}
	return native.Success
}

func (m *MockAPI) SetSockOpt(u native.Handle, level int32, opt native.Option, optval []byte, optlen int32) int32 {
	m.count("SetSockOpt")
	if m.SetSockOptFn != nil {
		return m.SetSockOptFn(u, level, opt, optval, optlen)
	}
	return native.Success
}

func (m *MockAPI) Send(u native.Handle, buf []byte, length, flags int32) int32 {
	m.count("Send")
	if m.SendFn != nil {
		return m.SendFn(u, buf, length, flags)
	}
	return length
}

func (m *MockAPI) Recv(u native.Handle, buf []byte, length, flags int32) int32 {
	m.count("Recv")
	if m.RecvFn != nil {
		return m.RecvFn(u, buf, length, flags)
	}
	return 0
}

func (m *MockAPI) SendMsg(u native.Handle, buf []byte, length, ttl int32, inOrder bool) int32 {
	m.count("SendMsg")
	if m.SendMsgFn != nil {
		return m.SendMsgFn(u, buf, length, ttl, inOrder)
	}
	return length
}

func (m *MockAPI) RecvMsg(u native.Handle, buf []byte, length int32) int32 {
	m.count("RecvMsg")
	if m.RecvMsgFn != nil {
		return m.RecvMsgFn(u, buf, length)
	}
	return 0
}

func (m *MockAPI) SendFile(u native.Handle, path string, offset *int64, size int64, block int32) int64 {
	m.count("SendFile")
	if m.SendFileFn != nil {
		return m.SendFileFn(u, path, offset, size, block)
	}
	*offset += size
	return size
}

func (m *MockAPI) RecvFile(u native.Handle, path string, offset *int64, size int64, block int32) int64 {
	m.count("RecvFile")
	if m.RecvFileFn != nil {
		return m.RecvFileFn(u, path, offset, size, block)
	}
	*offset += size
	return size
}

func (m *MockAPI) GetSockState(u native.Handle) native.State {
	m.count("GetSockState")
	if m.GetSockStateFn != nil {
		return m.GetSockStateFn(u)
	}
	return native.StateInit
}

func (m *MockAPI) GetLastErrorCode() int32 {
	m.count("GetLastErrorCode")
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code
}

func (m *MockAPI) GetLastErrorDesc() string {
	m.count("GetLastErrorDesc")
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.desc
}

func (m *MockAPI) ErrorScope() native.ErrorScope {
	return m.Scope
}
