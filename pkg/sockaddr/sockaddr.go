// Package sockaddr converts endpoints to and from the fixed-layout socket
// address records exchanged with the UDT engine.
//
// Two layouts are supported:
//
//	sockaddr_in  (16 bytes)           sockaddr_in6 (28 bytes)
//	+--------+------+--------+-----+  +--------+------+----------+--------+----------+
//	| family | port |  addr  | pad |  | family | port | flowinfo |  addr  | scope id |
//	+--------+------+--------+-----+  +--------+------+----------+--------+----------+
//	|   2    |  2   |   4    |  8  |  |   2    |  2   |    4     |   16   |    4     |
//	+--------+------+--------+-----+  +--------+------+----------+--------+----------+
//
// Family and scope id are in host byte order, port and flowinfo in network
// byte order. Encode always hands out a zeroed record of MaxSize bytes so
// the engine never reads uninitialised padding.
package sockaddr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// Sizes of the two wire layouts.
const (
	SizeIPv4 = 16
	SizeIPv6 = 28
	MaxSize  = SizeIPv6
)

var (
	// ErrUnsupportedFamily is returned for endpoints or records that are neither IPv4 nor IPv6.
	ErrUnsupportedFamily = errors.New("unsupported address family")
	// ErrShortAddr is returned when a record is shorter than its family's layout.
	ErrShortAddr = errors.New("address record too short")
)

// Family is the address family of a socket or endpoint.
type Family int

const (
	FamilyUnspec Family = iota
	IPv4
	IPv6
)

func (f Family) String() string {
	switch f {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return "Unspecified(" + strconv.Itoa(int(f)) + ")"
	}
}

// Size returns the declared length of the family's wire layout, or 0.
func (f Family) Size() int32 {
	switch f {
	case IPv4:
		return SizeIPv4
	case IPv6:
		return SizeIPv6
	default:
		return 0
	}
}

// AF returns the platform address family tag, or 0 for unsupported families.
func (f Family) AF() int32 {
	switch f {
	case IPv4:
		return afInet
	case IPv6:
		return afInet6
	default:
		return 0
	}
}

// FamilyFromAF maps a platform address family tag back to a Family.
func FamilyFromAF(af int32) Family {
	switch af {
	case afInet:
		return IPv4
	case afInet6:
		return IPv6
	default:
		return FamilyUnspec
	}
}

// FamilyOf returns the family an address belongs to. IPv4-mapped IPv6
// addresses are IPv6.
func FamilyOf(addr netip.Addr) Family {
	switch {
	case addr.Is4():
		return IPv4
	case addr.Is6():
		return IPv6
	default:
		return FamilyUnspec
	}
}

// Raw is a zero-padded wire record large enough for either family.
type Raw [MaxSize]byte

// Family reads the family tag of the record.
func (r *Raw) Family() Family {
	return FamilyFromAF(int32(binary.NativeEndian.Uint16(r[0:2])))
}

// Encode writes ep into a fresh record and returns it with its declared length.
func Encode(ep netip.AddrPort) (Raw, int32, error) {
	var raw Raw

	addr := ep.Addr()
	switch FamilyOf(addr) {
	case IPv4:
		binary.NativeEndian.PutUint16(raw[0:2], uint16(afInet))
		binary.BigEndian.PutUint16(raw[2:4], ep.Port())
		a := addr.As4()
		copy(raw[4:8], a[:])
		return raw, SizeIPv4, nil
	case IPv6:
		scope, err := scopeID(addr.Zone())
		if err != nil {
			return Raw{}, 0, err
		}
		binary.NativeEndian.PutUint16(raw[0:2], uint16(afInet6))
		binary.BigEndian.PutUint16(raw[2:4], ep.Port())
		// flowinfo stays zero
		a := addr.As16()
		copy(raw[8:24], a[:])
		binary.NativeEndian.PutUint32(raw[24:28], scope)
		return raw, SizeIPv6, nil
	default:
		return Raw{}, 0, fmt.Errorf("encoding %s: %w", ep, ErrUnsupportedFamily)
	}
}

// Decode parses the first n bytes of b as a wire record.
func Decode(b []byte, n int32) (netip.AddrPort, error) {
	if n < 2 || int(n) > len(b) {
		return netip.AddrPort{}, fmt.Errorf("decoding %d of %d bytes: %w", n, len(b), ErrShortAddr)
	}

	family := FamilyFromAF(int32(binary.NativeEndian.Uint16(b[0:2])))
	switch family {
	case IPv4:
		if n < SizeIPv4 {
			return netip.AddrPort{}, fmt.Errorf("decoding IPv4 record of %d bytes: %w", n, ErrShortAddr)
		}
		port := binary.BigEndian.Uint16(b[2:4])
		addr := netip.AddrFrom4([4]byte(b[4:8]))
		return netip.AddrPortFrom(addr, port), nil
	case IPv6:
		if n < SizeIPv6 {
			return netip.AddrPort{}, fmt.Errorf("decoding IPv6 record of %d bytes: %w", n, ErrShortAddr)
		}
		port := binary.BigEndian.Uint16(b[2:4])
		addr := netip.AddrFrom16([16]byte(b[8:24]))
		if scope := binary.NativeEndian.Uint32(b[24:28]); scope != 0 {
			addr = addr.WithZone(strconv.FormatUint(uint64(scope), 10))
		}
		return netip.AddrPortFrom(addr, port), nil
	default:
		return netip.AddrPort{}, fmt.Errorf("decoding family tag %d: %w", binary.NativeEndian.Uint16(b[0:2]), ErrUnsupportedFamily)
	}
}

// DecodeRaw is Decode for a Raw record.
func DecodeRaw(r *Raw, n int32) (netip.AddrPort, error) {
	return Decode(r[:], n)
}

// scopeID resolves an IPv6 zone to the numeric scope id. Numeric zones are
// taken as-is, anything else is looked up as an interface name.
func scopeID(zone string) (uint32, error) {
	if zone == "" {
		return 0, nil
	}
	if id, err := strconv.ParseUint(zone, 10, 32); err == nil {
		return uint32(id), nil
	}
	ifi, err := net.InterfaceByName(zone)
	if err != nil {
		return 0, fmt.Errorf("net.InterfaceByName(%s): %w", zone, err)
	}
	return uint32(ifi.Index), nil
}
