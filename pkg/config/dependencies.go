package config

import (
	"io"
	"net"
	"os"
)

// Dependencies replaces the process resources the engine and the CLI
// touch. A nil *Dependencies, or a nil field, selects the real resource.
type Dependencies struct {
	// PacketListener opens the UDP port an engine socket multiplexes its
	// connections over.
	PacketListener PacketListenerFunc
	Stdin          StdinFunc
	Stdout         StdoutFunc
}

// PacketListenerFunc has the signature of net.ListenPacket.
type PacketListenerFunc func(network, address string) (net.PacketConn, error)

// StdinFunc returns the stream commands read input lines from.
type StdinFunc func() io.Reader

// StdoutFunc returns the stream received data is printed to.
type StdoutFunc func() io.Writer

// GetStdinFunc returns deps.Stdin or one returning os.Stdin.
func GetStdinFunc(deps *Dependencies) StdinFunc {
	if deps != nil && deps.Stdin != nil {
		return deps.Stdin
	}
	return func() io.Reader { return os.Stdin }
}

// GetStdoutFunc returns deps.Stdout or one returning os.Stdout.
func GetStdoutFunc(deps *Dependencies) StdoutFunc {
	if deps != nil && deps.Stdout != nil {
		return deps.Stdout
	}
	return func() io.Writer { return os.Stdout }
}

// GetPacketListenerFunc returns deps.PacketListener. Nil means the engine
// opens a real UDP port itself.
func GetPacketListenerFunc(deps *Dependencies) PacketListenerFunc {
	if deps != nil && deps.PacketListener != nil {
		return deps.PacketListener
	}
	return nil
}
