package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ################### Handshake ######################### //
//
//	+-------+---------+------+--------+-----+
//	| MAGIC | VERSION | KIND | STATUS | RSV |
//	+-------+---------+------+--------+-----+
//	|   4   |    1    |  1   |   1    |  1  |
//	+-------+---------+------+--------+-----+
//
// The connecting side sends a handshake with STATUS 0 as the first bytes
// of a new kcp session, the listening side answers with the same layout.

const (
	handshakeSize    = 8
	handshakeVersion = 4
)

var handshakeMagic = [4]byte{'U', 'D', 'T', 0}

const (
	hsAccepted byte = iota
	hsRejectKind
	hsRejectBacklog
	hsRejectClosed
)

var errBadHandshake = errors.New("bad handshake")

type handshake struct {
	kind   byte
	status byte
}

func (h handshake) marshal() []byte {
	b := make([]byte, handshakeSize)
	copy(b[0:4], handshakeMagic[:])
	b[4] = handshakeVersion
	b[5] = h.kind
	b[6] = h.status
	return b
}

func parseHandshake(b []byte) (handshake, error) {
	if len(b) != handshakeSize || [4]byte(b[0:4]) != handshakeMagic {
		return handshake{}, fmt.Errorf("magic %x: %w", b, errBadHandshake)
	}
	if b[4] != handshakeVersion {
		return handshake{}, fmt.Errorf("version %d: %w", b[4], errBadHandshake)
	}
	return handshake{kind: b[5], status: b[6]}, nil
}

// ################### Frame ######################### //
//
//	+------+-------+--------+---------+
//	| KIND | FLAGS | LENGTH | PAYLOAD |
//	+------+-------+--------+---------+
//	|  1   |   1   |   4    | LENGTH  |
//	+------+-------+--------+---------+
//
// LENGTH is big endian. Every frame is queued on the kcp session with a
// single write so frames never interleave.

const (
	frameHeaderSize = 6
	maxFrameSize    = 64 << 20
)

const (
	frameData byte = iota + 1
	frameMsg
	frameShutdown
	frameShutdownAck
)

const flagInOrder byte = 0x1

var errBadFrame = errors.New("bad frame")

type frameHeader struct {
	kind   byte
	flags  byte
	length uint32
}

func (h frameHeader) marshal() []byte {
	b := make([]byte, frameHeaderSize)
	b[0] = h.kind
	b[1] = h.flags
	binary.BigEndian.PutUint32(b[2:6], h.length)
	return b
}

func parseFrameHeader(b []byte) (frameHeader, error) {
	h := frameHeader{
		kind:   b[0],
		flags:  b[1],
		length: binary.BigEndian.Uint32(b[2:6]),
	}
	if h.kind < frameData || h.kind > frameShutdownAck {
		return frameHeader{}, fmt.Errorf("kind %d: %w", h.kind, errBadFrame)
	}
	if h.length > maxFrameSize {
		return frameHeader{}, fmt.Errorf("length %d: %w", h.length, errBadFrame)
	}
	return h, nil
}
