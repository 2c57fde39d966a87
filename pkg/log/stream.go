package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// loggedStream copies every byte read from and written to a stream into a
// file.
type loggedStream struct {
	rw      io.ReadWriteCloser
	mu      sync.Mutex
	logFile *os.File
}

func (ls *loggedStream) record(b []byte) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	_, err := ls.logFile.Write(b)
	return err
}

func (ls *loggedStream) Read(b []byte) (int, error) {
	n, err := ls.rw.Read(b)
	if n > 0 {
		if lerr := ls.record(b[:n]); lerr != nil {
			return 0, fmt.Errorf("reading: %w", lerr)
		}
	}
	return n, err
}

func (ls *loggedStream) Write(b []byte) (int, error) {
	n, err := ls.rw.Write(b)
	if n > 0 {
		if lerr := ls.record(b[:n]); lerr != nil {
			return 0, fmt.Errorf("writing: %w", lerr)
		}
	}
	return n, err
}

// Close closes the stream and the log file.
func (ls *loggedStream) Close() error {
	return errors.Join(ls.rw.Close(), ls.logFile.Close())
}

// NewLoggedStream wraps a stream to log all data read from and written to it.
// The log file is created or appended to at the specified path.
func NewLoggedStream(rw io.ReadWriteCloser, logFilePath string) (io.ReadWriteCloser, error) {
	logFile, err := os.OpenFile(logFilePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("os.OpenFile(%s): %w", logFilePath, err)
	}

	return &loggedStream{rw: rw, logFile: logFile}, nil
}
