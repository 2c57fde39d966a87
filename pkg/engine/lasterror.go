package engine

import (
	"sync"

	"dominicbreuker/goudt/pkg/native"
)

// errorSlot keeps the last error per OS thread. Callers that want to read
// back the error of their own call must stay on one thread for the call
// and the read (runtime.LockOSThread).
type errorSlot struct {
	mu    sync.Mutex
	slots map[int]lastError
}

type lastError struct {
	code int32
	desc string
}

func newErrorSlot() *errorSlot {
	return &errorSlot{slots: make(map[int]lastError)}
}

func (s *errorSlot) set(code int32, detail string) {
	desc := native.Describe(code)
	if detail != "" {
		desc += " " + detail
	}

	tid := threadID()
	s.mu.Lock()
	s.slots[tid] = lastError{code: code, desc: desc}
	s.mu.Unlock()
}

func (s *errorSlot) get() lastError {
	tid := threadID()
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.slots[tid]; ok {
		return e
	}
	return lastError{code: native.Success, desc: native.Describe(native.Success)}
}
