// Package framing sends strings over byte streams as a 4-byte
// little-endian length followed by the UTF-8 bytes.
//
// Stream sockets may move fewer bytes per call than asked, so both
// directions loop until the whole frame is through. io.ReadFull does that
// for any io.Reader; writers are expected to write everything or fail, as
// io.Writer requires.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxLength bounds the payload ReadString accepts.
const MaxLength = 16 << 20

const headerSize = 4

// ErrTooLong is returned for frames longer than MaxLength.
var ErrTooLong = errors.New("frame too long")

// WriteString writes s as one frame.
func WriteString(w io.Writer, s string) error {
	if len(s) > MaxLength {
		return fmt.Errorf("writing %d bytes: %w", len(s), ErrTooLong)
	}

	buf := make([]byte, headerSize+len(s))
	binary.LittleEndian.PutUint32(buf, uint32(len(s)))
	copy(buf[headerSize:], s)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("w.Write(frame of %d bytes): %w", len(s), err)
	}
	return nil
}

// ReadString reads one frame. A stream that ends between frames returns
// io.EOF; one that ends inside a frame returns io.ErrUnexpectedEOF.
// Invalid UTF-8 sequences are replaced with U+FFFD.
func ReadString(r io.Reader) (string, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", fmt.Errorf("reading length: %w", err)
	}

	n := binary.LittleEndian.Uint32(hdr[:])
	if n > MaxLength {
		return "", fmt.Errorf("reading %d bytes: %w", n, ErrTooLong)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", fmt.Errorf("reading %d byte payload: %w", n, err)
	}
	return strings.ToValidUTF8(string(payload), "�"), nil
}
