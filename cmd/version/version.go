// Package version prints the udtcat build version.
package version

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/urfave/cli/v3"
)

// Version is set at build time with -ldflags "-X ...version.Version=v1.2.3".
// Without it the module version from the build info is used.
var Version = "unknown"

// GetCommand returns the version command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the udtcat version and the Go runtime it was built with",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, err := fmt.Fprintf(writer(cmd), "%s (%s, %s/%s)\n", String(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return err
		},
	}
}

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// String returns the program name with its version.
func String() string {
	return "udtcat " + resolve(Version, debug.ReadBuildInfo)
}

func resolve(v string, buildInfo func() (*debug.BuildInfo, bool)) string {
	if v != "unknown" && v != "" {
		return v
	}
	if bi, ok := buildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return "unknown"
}
