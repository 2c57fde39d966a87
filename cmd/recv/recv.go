// Package recv implements the stream server: it reads length-prefixed
// strings from each connection and prints them.
package recv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"

	"github.com/urfave/cli/v3"

	"dominicbreuker/goudt/cmd/shared"
	"dominicbreuker/goudt/pkg/framing"
	"dominicbreuker/goudt/pkg/log"
	"dominicbreuker/goudt/pkg/stdio"
	"dominicbreuker/goudt/pkg/udt"
)

// GetCommand returns the recv command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "recv",
		Usage:       "Receive framed strings on a stream socket and print them",
		Description: shared.GetBaseDescription(),
		ArgsUsage:   shared.GetArgsUsage(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := shared.SharedConfig(cmd)
			if err != nil {
				return err
			}
			if err := shared.Validate(cfg); err != nil {
				return err
			}
			logger := shared.Setup(cfg)

			out := stdio.NewStdio(nil)
			defer out.Close()

			return shared.Serve(ctx, cfg, udt.Stream, Handler(out, cmd.String(shared.LogFileFlag), logger), shared.Options(cfg)...)
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  shared.LogFileFlag,
			Usage: "Append every received byte to this file",
		},
	}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetServerFlags()...)

	return flags
}

// Handler prints every frame of one connection until the peer closes it.
// With logFile set, the raw stream is copied into that file.
func Handler(out io.Writer, logFile string, logger *log.Logger) shared.Handler {
	return func(ctx context.Context, conn *udt.Socket, peer netip.AddrPort) error {
		var stream io.ReadWriteCloser = conn
		if logFile != "" {
			logged, err := log.NewLoggedStream(conn, logFile)
			if err != nil {
				return fmt.Errorf("log.NewLoggedStream(): %w", err)
			}
			stream = logged
			defer logged.Close()
		}

		for {
			s, err := framing.ReadString(stream)
			if err != nil {
				if errors.Is(err, io.EOF) || shared.Closed(err) || ctx.Err() != nil {
					logger.VerboseMsg("stream from %s ended: %s\n", peer, err)
					return nil
				}
				return fmt.Errorf("framing.ReadString(): %w", err)
			}

			if _, err := fmt.Fprintf(out, "%s\n", s); err != nil {
				return fmt.Errorf("writing string: %w", err)
			}
		}
	}
}
