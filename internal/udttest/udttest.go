// Package udttest provides connected socket pairs on a private engine for
// tests of code built on pkg/udt.
package udttest

import (
	"net/netip"
	"testing"

	"dominicbreuker/goudt/pkg/engine"
	"dominicbreuker/goudt/pkg/sockaddr"
	"dominicbreuker/goudt/pkg/udt"
)

// Pair returns a connected client and the server socket accepted for it.
// Both sockets and the engine are released when the test ends.
func Pair(t *testing.T, disc udt.Discipline, opts ...udt.Option) (client, server *udt.Socket) {
	t.Helper()

	f := udt.NewFactory(engine.New(nil))
	t.Cleanup(func() { f.Cleanup() })

	ln, err := f.New(sockaddr.IPv4, disc)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer ln.Close()
	if err := ln.Bind(netip.MustParseAddrPort("127.0.0.1:0")); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if err := ln.Listen(1); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr, err := ln.LocalEndpoint()
	if err != nil {
		t.Fatalf("LocalEndpoint() error = %v", err)
	}

	client, err = f.New(sockaddr.IPv4, disc, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { closeQuietly(client) })
	if err := client.Connect(addr); err != nil {
		t.Fatalf("Connect(%s) error = %v", addr, err)
	}

	server, _, err = ln.Accept()
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	t.Cleanup(func() { closeQuietly(server) })
	return client, server
}

func closeQuietly(s *udt.Socket) {
	if !s.Closed() {
		s.Close()
	}
}
