package stdio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/muesli/cancelreader"

	"dominicbreuker/goudt/mocks"
	"dominicbreuker/goudt/pkg/config"
)

func TestNewStdio(t *testing.T) {
	t.Parallel()

	stdio := NewStdio(nil)

	if stdio == nil {
		t.Fatal("NewStdio() returned nil")
	}
	if stdio.stdin == nil {
		t.Error("NewStdio() stdin is nil")
	}
	if stdio.stdout == nil {
		t.Error("NewStdio() stdout is nil")
	}
}

func TestNewStdio_Injected(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("input")
	var out bytes.Buffer
	stdio := NewStdio(&config.Dependencies{
		Stdin:  func() io.Reader { return in },
		Stdout: func() io.Writer { return &out },
	})

	if stdio.cancellableStdin != nil {
		t.Error("cancelreader used for a non-file stdin")
	}
	if stdio.Interactive() {
		t.Error("Interactive() = true for a string reader")
	}
	if _, err := stdio.Write([]byte("output")); err != nil {
		t.Fatal(err)
	}
	if out.String() != "output" {
		t.Errorf("stdout = %q, want %q", out.String(), "output")
	}
}

func TestStdio_EachLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"unix endings", "a\nb\n", []string{"a", "b"}},
		{"windows endings", "a\r\nb\r\n", []string{"a", "b"}},
		{"no trailing newline", "one\ntwo", []string{"one", "two"}},
		{"empty", "", nil},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			stdio := &Stdio{stdin: strings.NewReader(tc.input), stdout: io.Discard}
			var got []string
			err := stdio.EachLine(context.Background(), func(line string) error {
				got = append(got, line)
				return nil
			})
			if err != nil {
				t.Fatalf("EachLine() error = %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tc.want, "|") {
				t.Errorf("lines = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestStdio_EachLineStopsOnError(t *testing.T) {
	t.Parallel()

	stdio := &Stdio{stdin: strings.NewReader("a\nb\nc\n"), stdout: io.Discard}
	boom := errors.New("boom")
	calls := 0
	err := stdio.EachLine(context.Background(), func(string) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("EachLine() error = %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestStdio_EachLineCancelled(t *testing.T) {
	t.Parallel()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	defer r.Close()
	defer w.Close()

	cr, err := cancelreader.NewReader(r)
	if err != nil {
		t.Skipf("Cannot create cancelreader on this platform: %v", err)
	}
	stdio := &Stdio{stdin: r, cancellableStdin: cr, stdout: io.Discard}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		w.Write([]byte("first\n"))
	}()

	err = stdio.EachLine(ctx, func(line string) error {
		if line == "first" {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("EachLine() error = %v, want context.Canceled", err)
	}
}

func TestStdio_Console(t *testing.T) {
	t.Parallel()

	console := mocks.NewMockConsole()
	defer console.Close()

	stdio := NewStdio(console.Deps())

	go func() {
		console.Type("hello", "udt")
		console.EndInput()
	}()

	err := stdio.EachLine(context.Background(), func(line string) error {
		_, err := stdio.Write([]byte(strings.ToUpper(line) + "\n"))
		return err
	})
	if err != nil {
		t.Fatalf("EachLine() error = %v", err)
	}
	if err := console.WaitForLine("UDT", time.Second); err != nil {
		t.Fatal(err)
	}
	if got := console.Lines(); len(got) != 2 || got[0] != "HELLO" {
		t.Errorf("output lines = %q, want [HELLO UDT]", got)
	}
}

func TestStdio_CloseWithCancellable(t *testing.T) {
	t.Parallel()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	defer r.Close()
	defer w.Close()

	cr, err := cancelreader.NewReader(r)
	if err != nil {
		t.Skipf("Cannot create cancelreader on this platform: %v", err)
	}

	stdio := &Stdio{
		stdin:            r,
		cancellableStdin: cr,
		stdout:           os.Stdout,
	}

	if err := stdio.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	buf := make([]byte, 10)
	if _, err := stdio.Read(buf); err == nil {
		t.Error("Expected error after Close(), got nil")
	}
}
