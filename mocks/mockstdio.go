package mocks

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"dominicbreuker/goudt/pkg/config"
)

// MockConsole stands in for the terminal of a udtcat command. Lines typed
// with Type arrive on the command's stdin; everything the command prints
// is collected and can be awaited with WaitForLine.
type MockConsole struct {
	inR *io.PipeReader
	inW *io.PipeWriter

	mu      sync.Mutex
	out     bytes.Buffer
	changed chan struct{}
}

// NewMockConsole creates a console with an open stdin.
func NewMockConsole() *MockConsole {
	r, w := io.Pipe()
	return &MockConsole{inR: r, inW: w, changed: make(chan struct{})}
}

// Deps returns dependencies that wire a command's stdin and stdout to the
// console.
func (c *MockConsole) Deps() *config.Dependencies {
	return &config.Dependencies{
		Stdin:  func() io.Reader { return c.inR },
		Stdout: func() io.Writer { return consoleOut{c} },
	}
}

// Type writes each line followed by a newline to stdin. It blocks until
// the command has read them.
func (c *MockConsole) Type(lines ...string) error {
	for _, l := range lines {
		if _, err := io.WriteString(c.inW, l+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// EndInput makes stdin report EOF.
func (c *MockConsole) EndInput() error {
	return c.inW.Close()
}

// Output returns everything printed so far.
func (c *MockConsole) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}

// Lines returns the printed output split into lines, without a trailing
// empty line.
func (c *MockConsole) Lines() []string {
	s := strings.TrimSuffix(c.Output(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// WaitForLine waits until line was printed as a complete line.
func (c *MockConsole) WaitForLine(line string, timeout time.Duration) error {
	deadline := time.After(timeout)
	for {
		c.mu.Lock()
		found := strings.Contains("\n"+c.out.String(), "\n"+line+"\n")
		changed := c.changed
		c.mu.Unlock()

		if found {
			return nil
		}
		select {
		case <-changed:
		case <-deadline:
			return fmt.Errorf("timeout waiting for line %q, got: %q", line, c.Output())
		}
	}
}

// Close ends stdin. Output stays readable.
func (c *MockConsole) Close() error {
	return c.inW.Close()
}

type consoleOut struct{ c *MockConsole }

func (o consoleOut) Write(p []byte) (int, error) {
	o.c.mu.Lock()
	defer o.c.mu.Unlock()
	n, _ := o.c.out.Write(p)
	close(o.c.changed)
	o.c.changed = make(chan struct{})
	return n, nil
}
