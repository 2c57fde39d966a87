// Package recvfile implements the file server. It accepts one connection,
// reads the announced size and writes that many bytes to a file.
package recvfile

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"dominicbreuker/goudt/cmd/shared"
	"dominicbreuker/goudt/pkg/config"
	"dominicbreuker/goudt/pkg/format"
	"dominicbreuker/goudt/pkg/framing"
	"dominicbreuker/goudt/pkg/log"
	"dominicbreuker/goudt/pkg/udt"
)

// GetCommand returns the recvfile command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "recvfile",
		Usage:       "Receive one file from sendfile and write it to disk",
		Description: shared.GetBaseDescription(),
		ArgsUsage:   shared.GetArgsUsage("file"),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := shared.SharedConfig(cmd)
			if err != nil {
				return err
			}
			tCfg := shared.TransferConfig(cmd, cmd.Args().Get(1))
			if err := shared.Validate(cfg, tCfg); err != nil {
				return err
			}
			logger := shared.Setup(cfg)

			return shared.Serve(ctx, cfg, udt.Stream, Handler(tCfg, logger), shared.Options(cfg)...)
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetServerFlags()...)
	flags = append(flags, &cli.IntFlag{
		Name:  shared.OffsetFlag,
		Usage: "Byte offset in the file to start writing at",
	})

	return flags
}

// Handler receives one file and stops the server.
func Handler(tCfg *config.Transfer, logger *log.Logger) shared.Handler {
	return func(ctx context.Context, conn *udt.Socket, peer netip.AddrPort) error {
		announced, err := framing.ReadString(conn)
		if err != nil {
			return fmt.Errorf("reading size: %w", err)
		}
		size, err := strconv.ParseInt(announced, 10, 64)
		if err != nil || size < 0 {
			return fmt.Errorf("bad size %q from %s", announced, peer)
		}
		logger.VerboseMsg("%s announced %d bytes\n", peer, size)

		start := time.Now()
		n, _, err := conn.ReceiveFile(tCfg.Path, tCfg.Offset, size)
		if err != nil {
			return fmt.Errorf("ReceiveFile(%s): %w", tCfg.Path, err)
		}
		log.InfoMsg("Received %s into %s (%s)\n", format.Size(n), tCfg.Path, format.Rate(n, time.Since(start)))
		return shared.ErrStop
	}
}
