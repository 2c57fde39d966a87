package engine

import (
	"errors"
	"io"
	"os"
	"time"

	"dominicbreuker/goudt/pkg/native"
)

const defaultFileBlock = 364000

// sendFile streams size bytes of path, starting at *offset. *offset
// advances with every block that was handed to the connection.
func (s *socket) sendFile(path string, offset *int64, size int64, block int32) (int64, error) {
	if s.typ != native.SockStream {
		return 0, fail(native.ErrDgramIll)
	}
	l, opts, err := s.connected()
	if err != nil {
		return 0, err
	}
	if offset == nil || *offset < 0 || size < 0 {
		return 0, fail(native.ErrInvParam)
	}
	if block <= 0 {
		block = defaultFileBlock
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, failf(native.ErrFile, "(%s)", err)
	}
	defer f.Close()

	if _, err := f.Seek(*offset, io.SeekStart); err != nil {
		return 0, failf(native.ErrInvRdOff, "(%s)", err)
	}

	buf := make([]byte, min(int(block), int(opts.sndBuf)))
	var sent int64
	for sent < size {
		n, rerr := f.Read(buf[:min(int64(len(buf)), size-sent)])
		if n > 0 {
			if err := l.send(frameData, 0, buf[:n], time.Time{}, false); err != nil {
				return sent, err
			}
			sent += int64(n)
			*offset += int64(n)
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) && sent == size {
				break
			}
			return sent, failf(native.ErrRdPerm, "(%s)", rerr)
		}
	}
	return sent, nil
}

// recvFile writes size bytes from the connection into path at *offset.
func (s *socket) recvFile(path string, offset *int64, size int64, block int32) (int64, error) {
	if s.typ != native.SockStream {
		return 0, fail(native.ErrDgramIll)
	}
	l, _, err := s.connected()
	if err != nil {
		return 0, err
	}
	if offset == nil || *offset < 0 || size < 0 {
		return 0, fail(native.ErrInvParam)
	}
	if block <= 0 {
		block = defaultFileBlock
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, failf(native.ErrFile, "(%s)", err)
	}
	defer f.Close()

	if _, err := f.Seek(*offset, io.SeekStart); err != nil {
		return 0, failf(native.ErrInvWrOff, "(%s)", err)
	}

	buf := make([]byte, block)
	var got int64
	for got < size {
		n, err := l.recv(buf[:min(int64(len(buf)), size-got)], time.Time{}, false)
		if err != nil {
			return got, err
		}
		if _, err := f.Write(buf[:n]); err != nil {
			return got, failf(native.ErrWrPerm, "(%s)", err)
		}
		got += int64(n)
		*offset += int64(n)
	}
	return got, nil
}
