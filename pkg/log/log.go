// Package log provides colored console output for the CLI, a bridge to
// the libraries' structured loggers and stream logging to a file.
package log

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var red = color.New(color.FgRed).FprintfFunc()
var blue = color.New(color.FgBlue).FprintfFunc()
var yellow = color.New(color.FgYellow).FprintfFunc()

var output atomic.Pointer[io.Writer]

func out() io.Writer {
	if w := output.Load(); w != nil {
		return *w
	}
	return os.Stderr
}

// SetOutput redirects console messages. nil restores stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		output.Store(nil)
		return
	}
	output.Store(&w)
}

// ErrorMsg prints an error message to stderr in red color.
func ErrorMsg(format string, a ...interface{}) {
	red(out(), "[!] Error: "+format, a...)
}

// InfoMsg prints an informational message to stderr in blue color.
func InfoMsg(format string, a ...interface{}) {
	blue(out(), "[+] "+format, a...)
}

// Logger prints verbose messages only when enabled.
type Logger struct {
	Verbose bool
}

// VerboseMsg prints a debug message in yellow when verbose output is on.
func (l *Logger) VerboseMsg(format string, a ...interface{}) {
	if l == nil || !l.Verbose {
		return
	}
	yellow(out(), "[v] "+format, a...)
}

// NewZap returns the structured logger handed to the engine and socket
// packages. Without verbose output it discards everything.
func NewZap(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}

	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(enc, zapcore.AddSync(writerFunc(func(p []byte) (int, error) {
		return out().Write(p)
	})), zapcore.DebugLevel)
	return zap.New(core)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
