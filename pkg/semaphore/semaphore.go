// Package semaphore bounds how many accepted connections a server handles
// at once.
package semaphore

import (
	"context"
	"fmt"
	"time"
)

// Slots is a counting semaphore of connection slots. A nil *Slots never
// blocks.
type Slots struct {
	sem     chan struct{}
	timeout time.Duration
}

// New creates n slots. Acquire gives up after timeout; zero waits until
// the context is done.
func New(n int, timeout time.Duration) *Slots {
	return &Slots{sem: make(chan struct{}, max(n, 1)), timeout: timeout}
}

// Acquire takes a slot.
func (s *Slots) Acquire(ctx context.Context) error {
	if s == nil {
		return nil
	}

	if s.timeout > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		select {
		case s.sem <- struct{}{}:
			return nil
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("timeout acquiring connection slot after %v", s.timeout)
		}
	}

	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot taken with Acquire.
func (s *Slots) Release() {
	if s == nil {
		return
	}
	<-s.sem
}

// InUse returns the number of taken slots.
func (s *Slots) InUse() int {
	if s == nil {
		return 0
	}
	return len(s.sem)
}
