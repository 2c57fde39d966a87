package shared

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"dominicbreuker/goudt/pkg/log"
)

// ShutdownGrace is how long sockets get to close after the first signal.
const ShutdownGrace = 5 * time.Second

var (
	notify = signal.Notify
	exit   = os.Exit
)

// WithSignals returns a context that is cancelled by the first interrupt,
// which makes Serve and the senders close their sockets. A second signal
// exits at once with 128+signo. If the process is still running after
// grace, it exits with status 1. Call stop once the command returned.
func WithSignals(parent context.Context, grace time.Duration) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	sigCh := make(chan os.Signal, 2)
	sigs := []os.Signal{os.Interrupt}
	if runtime.GOOS != "windows" {
		sigs = append(sigs, syscall.SIGTERM, syscall.SIGHUP)
		signal.Ignore(syscall.SIGPIPE)
	}
	notify(sigCh, sigs...)

	go func() {
		var s os.Signal
		select {
		case s = <-sigCh:
		case <-done:
			return
		}
		log.InfoMsg("Received %s, closing sockets\n", s)
		cancel()

		select {
		case again := <-sigCh:
			exit(exitCode(again))
		case <-time.After(grace):
			log.ErrorMsg("Sockets did not close within %s\n", grace)
			exit(1)
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		close(done)
		cancel()
	}
}

func exitCode(s os.Signal) int {
	if ss, ok := s.(syscall.Signal); ok {
		return 128 + int(ss)
	}
	return 1
}
