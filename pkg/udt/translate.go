package udt

import (
	"runtime"
	"sync"

	"go.uber.org/zap"

	"dominicbreuker/goudt/pkg/native"
)

// translator runs engine calls and turns failures into *Error values.
//
// The goroutine stays on one OS thread from the call until the last error
// has been read, so a thread-local error slot always belongs to the call
// that failed. Engines with a process-wide slot additionally serialise
// non-blocking calls; blocking calls can not hold that lock without
// stalling every other socket, so their error text may be overwritten by a
// concurrent failure on such engines.
type translator struct {
	api   native.API
	scope native.ErrorScope
	mu    sync.Mutex
}

func newTranslator(api native.API) *translator {
	return &translator{api: api, scope: api.ErrorScope()}
}

func (t *translator) enter(blocking bool) func() {
	runtime.LockOSThread()
	if t.scope == native.ScopeProcess && !blocking {
		t.mu.Lock()
		return func() {
			t.mu.Unlock()
			runtime.UnlockOSThread()
		}
	}
	return runtime.UnlockOSThread
}

// capture reads the last error. Callers are inside enter.
func (t *translator) capture(kind Kind) *Error {
	code := t.api.GetLastErrorCode()
	desc := t.api.GetLastErrorDesc()
	Logger().Debug("native call failed", zap.String("kind", string(kind)), zap.Int32("code", code), zap.String("desc", desc))
	return nativeError(kind, code, desc)
}

// call runs a status or count returning engine call.
func (t *translator) call(kind Kind, blocking bool, fn func() int32) (int32, error) {
	defer t.enter(blocking)()

	ret := fn()
	if ret < 0 {
		return ret, t.capture(kind)
	}
	return ret, nil
}

// call64 is call for the 64-bit file transfer counts.
func (t *translator) call64(kind Kind, blocking bool, fn func() int64) (int64, error) {
	defer t.enter(blocking)()

	ret := fn()
	if ret < 0 {
		return ret, t.capture(kind)
	}
	return ret, nil
}

// handle runs an engine call that returns a new handle.
func (t *translator) handle(kind Kind, blocking bool, fn func() native.Handle) (native.Handle, error) {
	defer t.enter(blocking)()

	h := fn()
	if h == native.InvalidHandle {
		return h, t.capture(kind)
	}
	return h, nil
}
