package engine

import (
	"errors"
	"fmt"
	"io"
	"net"

	"dominicbreuker/goudt/pkg/native"
)

// codeError carries an engine error code through the Go call chain until
// it is stored in the last-error slot.
type codeError struct {
	code   int32
	detail string
}

func (e *codeError) Error() string {
	if e.detail == "" {
		return native.Describe(e.code)
	}
	return native.Describe(e.code) + " " + e.detail
}

func fail(code int32) error {
	return &codeError{code: code}
}

func failf(code int32, format string, args ...any) error {
	return &codeError{code: code, detail: fmt.Sprintf(format, args...)}
}

// codeOf extracts the engine code of err.
func codeOf(err error) int32 {
	var ce *codeError
	if errors.As(err, &ce) {
		return ce.code
	}
	return native.ErrUnknown
}

// mapIOError translates an error from a kcp session into an engine code.
// nonblock selects the code for an immediate timeout.
func mapIOError(err error, nonblock bool, asyncCode int32) error {
	if err == nil {
		return nil
	}
	if isTimeout(err) {
		if nonblock {
			return fail(asyncCode)
		}
		return fail(native.ErrTimeout)
	}
	if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return fail(native.ErrConnLost)
	}
	return failf(native.ErrConnLost, "(%s)", err)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
