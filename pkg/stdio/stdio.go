// Package stdio gives the CLI an interruptible view of standard input and
// output.
package stdio

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"

	"github.com/muesli/cancelreader"
	"golang.org/x/term"

	"dominicbreuker/goudt/pkg/config"
)

// Stdio reads stdin and writes stdout. When stdin is a file that supports
// it, pending reads can be interrupted with Close.
type Stdio struct {
	stdin            io.Reader
	cancellableStdin cancelreader.CancelReader

	stdout io.Writer
}

// NewStdio creates a Stdio on the streams in deps, or on the process's own
// streams.
func NewStdio(deps *config.Dependencies) *Stdio {
	out := Stdio{
		stdin:  config.GetStdinFunc(deps)(),
		stdout: config.GetStdoutFunc(deps)(),
	}

	f, ok := out.stdin.(*os.File)
	if !ok {
		return &out
	}
	cancellableStdin, err := cancelreader.NewReader(f)
	if err != nil {
		return &out
	}

	out.cancellableStdin = cancellableStdin
	return &out
}

// Read reads from stdin, using the cancelable reader if available.
func (s *Stdio) Read(p []byte) (n int, err error) {
	if s.cancellableStdin != nil {
		return s.cancellableStdin.Read(p)
	}

	return s.stdin.Read(p)
}

// Write writes to stdout.
func (s *Stdio) Write(p []byte) (n int, err error) {
	return s.stdout.Write(p)
}

// Close cancels any pending reads from stdin if using a cancelable reader.
func (s *Stdio) Close() error {
	if s.cancellableStdin != nil {
		s.cancellableStdin.Cancel()
	}
	return nil
}

// Interactive reports whether stdin is a terminal, in which case the CLI
// prints prompts.
func (s *Stdio) Interactive() bool {
	f, ok := s.stdin.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// EachLine calls fn for every line read from stdin until EOF, a failing fn
// or ctx is done. Line endings are stripped. Cancelling ctx interrupts a
// pending read when stdin supports it.
func (s *Stdio) EachLine(ctx context.Context, fn func(line string) error) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	scanner := bufio.NewScanner(s)
	for scanner.Scan() {
		if err := fn(scanner.Text()); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	err := scanner.Err()
	if errors.Is(err, cancelreader.ErrCanceled) {
		return ctx.Err()
	}
	return err
}
