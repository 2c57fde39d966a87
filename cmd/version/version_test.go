package version

import (
	"bytes"
	"context"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"
)

func TestGetCommand(t *testing.T) {
	t.Parallel()

	cmd := GetCommand()

	if cmd.Name != "version" {
		t.Errorf("command name = %q; want %q", cmd.Name, "version")
	}
	if cmd.Action == nil {
		t.Fatal("command action should not be nil")
	}
}

func TestAction_WritesToRoot(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	root := &cli.Command{Name: "udtcat", Writer: &out, Commands: []*cli.Command{GetCommand()}}

	if err := root.Run(context.Background(), []string{"udtcat", "version"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "udtcat ") {
		t.Errorf("output = %q, want udtcat prefix", out.String())
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	info := func(v string, ok bool) func() (*debug.BuildInfo, bool) {
		return func() (*debug.BuildInfo, bool) {
			bi := &debug.BuildInfo{}
			bi.Main.Version = v
			return bi, ok
		}
	}

	tests := []struct {
		name      string
		version   string
		buildInfo func() (*debug.BuildInfo, bool)
		want      string
	}{
		{"ldflags win", "v1.2.3", info("v0.9.0", true), "v1.2.3"},
		{"module version", "unknown", info("v0.9.0", true), "v0.9.0"},
		{"devel build", "unknown", info("(devel)", true), "unknown"},
		{"no build info", "", info("", false), "unknown"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := resolve(tc.version, tc.buildInfo); got != tc.want {
				t.Errorf("resolve(%q) = %q, want %q", tc.version, got, tc.want)
			}
		})
	}
}
