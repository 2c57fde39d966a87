// Package mocks provides mock implementations for testing.
package mocks

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const firstEphemeralPort = 40000

// MockUDPNetwork simulates a UDP network for testing without real network connections.
// Packet conns created through ListenPacket exchange datagrams through in-memory
// channels. Port 0 is replaced by a free ephemeral port, like the kernel does.
type MockUDPNetwork struct {
	listeners    map[string]*mockUDPConn
	mu           sync.Mutex
	listenerCond *sync.Cond // Condition variable to signal listener changes
	nextPort     int

	// DropEvery drops every n-th delivered datagram when set to n > 0.
	DropEvery int64
	sent      atomic.Int64
	dropped   atomic.Int64
}

// NewMockUDPNetwork creates a new mock UDP network.
func NewMockUDPNetwork() *MockUDPNetwork {
	m := &MockUDPNetwork{
		listeners: make(map[string]*mockUDPConn),
		nextPort:  firstEphemeralPort,
	}
	m.listenerCond = sync.NewCond(&m.mu)
	return m
}

// ListenPacket creates a mock UDP socket bound to address. It matches
// config.PacketListenerFunc.
func (m *MockUDPNetwork) ListenPacket(network, address string) (net.PacketConn, error) {
	if !strings.HasPrefix(network, "udp") {
		return nil, fmt.Errorf("unsupported network type: %s", network)
	}

	laddr, err := net.ResolveUDPAddr(network, address)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if laddr.Port == 0 {
		for {
			laddr.Port = m.nextPort
			m.nextPort++
			if _, exists := m.listeners[laddr.String()]; !exists {
				break
			}
		}
	}

	addr := laddr.String()
	if _, exists := m.listeners[addr]; exists {
		return nil, fmt.Errorf("address already in use: %s", addr)
	}

	conn := &mockUDPConn{
		addr:    laddr,
		packets: make(chan *mockUDPPacket, 1024),
		closeCh: make(chan struct{}),
		network: m,
	}
	m.listeners[addr] = conn
	m.listenerCond.Broadcast() // Signal that a new listener is available

	return conn, nil
}

// Dropped returns the number of datagrams dropped so far.
func (m *MockUDPNetwork) Dropped() int64 {
	return m.dropped.Load()
}

// WaitForListener waits for a listener to be created on the specified address within the given timeout.
// It returns nil if the listener is found, or an error if the timeout expires.
// The timeout is specified in milliseconds.
func (m *MockUDPNetwork) WaitForListener(addr string, timeoutMs int) error {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if _, exists := m.listeners[addr]; exists {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for UDP listener on %s", addr)
		}

		go func() {
			time.Sleep(50 * time.Millisecond)
			m.listenerCond.Broadcast()
		}()
		m.listenerCond.Wait()
	}
}

// deliver queues a datagram for dst. Datagrams to unknown addresses and
// datagrams the network decides to drop vanish silently, as in real UDP.
func (m *MockUDPNetwork) deliver(data []byte, src, dst *net.UDPAddr) {
	if n := m.DropEvery; n > 0 && m.sent.Add(1)%n == 0 {
		m.dropped.Add(1)
		return
	}

	m.mu.Lock()
	dest, exists := m.listeners[dst.String()]
	m.mu.Unlock()
	if !exists {
		return
	}

	packet := &mockUDPPacket{
		data: make([]byte, len(data)),
		addr: src,
	}
	copy(packet.data, data)

	select {
	case dest.packets <- packet:
	case <-dest.closeCh:
	case <-time.After(100 * time.Millisecond):
	}
}

// mockUDPPacket represents a UDP packet in the mock network.
type mockUDPPacket struct {
	data []byte
	addr *net.UDPAddr
}

// mockUDPConn is a mock implementation of net.PacketConn for UDP.
type mockUDPConn struct {
	addr    *net.UDPAddr
	packets chan *mockUDPPacket
	closeCh chan struct{}
	closed  bool
	mu      sync.Mutex
	network *MockUDPNetwork

	readDeadline atomic.Pointer[time.Time]
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// ReadFrom reads a packet from the connection.
func (c *mockUDPConn) ReadFrom(p []byte) (n int, addr net.Addr, err error) {
	var expired <-chan time.Time
	if d := c.readDeadline.Load(); d != nil && !d.IsZero() {
		t := time.NewTimer(time.Until(*d))
		defer t.Stop()
		expired = t.C
	}

	select {
	case packet := <-c.packets:
		n = copy(p, packet.data)
		return n, packet.addr, nil
	case <-c.closeCh:
		return 0, nil, net.ErrClosed
	case <-expired:
		return 0, nil, timeoutError{}
	}
}

// WriteTo writes a packet to the specified address.
func (c *mockUDPConn) WriteTo(p []byte, addr net.Addr) (n int, err error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, net.ErrClosed
	}

	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return 0, fmt.Errorf("address must be *net.UDPAddr")
	}

	c.network.deliver(p, c.addr, udpAddr)
	return len(p), nil
}

// Close closes the connection.
func (c *mockUDPConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeCh)

	c.network.mu.Lock()
	delete(c.network.listeners, c.addr.String())
	c.network.mu.Unlock()

	return nil
}

// LocalAddr returns the local network address.
func (c *mockUDPConn) LocalAddr() net.Addr {
	return c.addr
}

// SetDeadline sets the read deadline; writes never block.
func (c *mockUDPConn) SetDeadline(t time.Time) error {
	return c.SetReadDeadline(t)
}

// SetReadDeadline sets the read deadline.
func (c *mockUDPConn) SetReadDeadline(t time.Time) error {
	c.readDeadline.Store(&t)
	return nil
}

// SetWriteDeadline is a no-op, mock writes never block.
func (c *mockUDPConn) SetWriteDeadline(t time.Time) error {
	return nil
}

var _ net.PacketConn = (*mockUDPConn)(nil)
