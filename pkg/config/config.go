// Package config holds the validated settings of the udtcat commands and
// the injectable dependencies of the engine.
package config

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"
)

// Shared holds the settings every command uses.
type Shared struct {
	Host    string
	Port    int
	IPv6    bool
	Verbose bool
	Timeout time.Duration

	// MaxConns is how many connections a server handles at once. Zero
	// means one.
	MaxConns int
}

// Validate checks the endpoint flags.
func (c *Shared) Validate() []error {
	var errors []error

	if err := validatePort(c.Port); err != nil {
		errors = append(errors, fmt.Errorf("'--port': %s", err))
	}

	errors = appendErr(errors, nonNegative("timeout", int64(c.Timeout)))
	errors = appendErr(errors, nonNegative("max-conns", c.MaxConns))

	if addr, err := netip.ParseAddr(c.Host); err == nil {
		if addr.Is4() && c.IPv6 {
			errors = append(errors, fmt.Errorf("'--ipv6' cannot be used with IPv4 address %s", c.Host))
		}
		if !addr.Is4() && !c.IPv6 {
			errors = append(errors, fmt.Errorf("IPv6 address %s requires '--ipv6'", c.Host))
		}
	} else if c.Host == "" {
		errors = append(errors, fmt.Errorf("host must not be empty"))
	}

	return errors
}

// Endpoint resolves Host in the configured family and attaches Port.
func (c *Shared) Endpoint(ctx context.Context) (netip.AddrPort, error) {
	if addr, err := netip.ParseAddr(c.Host); err == nil {
		return netip.AddrPortFrom(addr, uint16(c.Port)), nil
	}

	network := "ip4"
	if c.IPv6 {
		network = "ip6"
	}
	addrs, err := net.DefaultResolver.LookupNetIP(ctx, network, c.Host)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("LookupNetIP(%s, %s): %w", network, c.Host, err)
	}
	if len(addrs) == 0 {
		return netip.AddrPort{}, fmt.Errorf("no %s address for %s", network, c.Host)
	}

	addr := addrs[0]
	if !c.IPv6 {
		addr = addr.Unmap()
	}
	return netip.AddrPortFrom(addr, uint16(c.Port)), nil
}
