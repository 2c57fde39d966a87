package engine

import (
	"context"
	"net"
	"net/netip"
	"sync"

	kcp "github.com/xtaci/kcp-go/v5"
	"go.uber.org/zap"

	"dominicbreuker/goudt/pkg/config"
	"dominicbreuker/goudt/pkg/sockaddr"
)

// port is a bound UDP socket. A listening socket shares its port with all
// connections it accepted; the UDP socket is closed with the last user.
type port struct {
	conn net.PacketConn
	ln   *kcp.Listener

	mu   sync.Mutex
	refs int
}

func newPort(conn net.PacketConn) *port {
	return &port{conn: conn, refs: 1}
}

func (p *port) acquire() {
	p.mu.Lock()
	p.refs++
	p.mu.Unlock()
}

func (p *port) release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refs--
	if p.refs > 0 {
		return
	}
	if p.ln != nil {
		_ = p.ln.Close()
	}
	if err := p.conn.Close(); err != nil {
		Logger().Debug("closing udp socket", zap.Error(err))
	}
}

func network(af sockaddr.Family) string {
	if af == sockaddr.IPv6 {
		return "udp6"
	}
	return "udp4"
}

// listenPacket opens the UDP socket for a bind. Injected listeners take
// precedence over the system one.
func (e *Engine) listenPacket(af sockaddr.Family, ep netip.AddrPort, o *options) (net.PacketConn, error) {
	if listen := config.GetPacketListenerFunc(e.deps); listen != nil {
		return listen(network(af), ep.String())
	}

	lc := net.ListenConfig{}
	if o.reuseAddr {
		lc.Control = reuseAddrControl
	}
	conn, err := lc.ListenPacket(context.Background(), network(af), ep.String())
	if err != nil {
		return nil, err
	}

	if uc, ok := conn.(*net.UDPConn); ok {
		if err := uc.SetReadBuffer(int(o.udpRcvBuf)); err != nil {
			Logger().Debug("setting udp receive buffer", zap.Error(err))
		}
		if err := uc.SetWriteBuffer(int(o.udpSndBuf)); err != nil {
			Logger().Debug("setting udp send buffer", zap.Error(err))
		}
	}
	return conn, nil
}

// endpointOf converts a socket address to the endpoint form of family af.
func endpointOf(a net.Addr, af sockaddr.Family) netip.AddrPort {
	var ep netip.AddrPort
	if ua, ok := a.(*net.UDPAddr); ok {
		ep = ua.AddrPort()
	} else if a != nil {
		ep, _ = netip.ParseAddrPort(a.String())
	}
	if af == sockaddr.IPv4 && ep.Addr().Is4In6() {
		ep = netip.AddrPortFrom(ep.Addr().Unmap(), ep.Port())
	}
	return ep
}
