// Package sendfile implements the file client. It announces the size as a
// framed string and then streams the file.
package sendfile

import (
	"context"
	"errors"
	"fmt"
	"os"
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

// GetCommand returns the sendfile command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "sendfile",
		Usage:       "Send a file to a recvfile server",
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

			conn, err := shared.Dial(ctx, cfg, udt.Stream, shared.Options(cfg)...)
			if err != nil {
				return err
			}
			defer conn.Close()

			return Send(conn, tCfg, logger)
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetTransferFlags()...)

	return flags
}

// Send streams the configured range of the file. A zero size means up to
// the end of the file.
func Send(conn *udt.Socket, tCfg *config.Transfer, logger *log.Logger) error {
	size, err := rangeSize(tCfg)
	if err != nil {
		return err
	}

	if err := framing.WriteString(conn, strconv.FormatInt(size, 10)); err != nil {
		return fmt.Errorf("announcing size: %w", err)
	}

	start := time.Now()
	n, next, err := conn.SendFile(tCfg.Path, tCfg.Offset, size)
	if err != nil {
		return fmt.Errorf("SendFile(%s): %w", tCfg.Path, err)
	}
	logger.VerboseMsg("file offset now %d\n", next)
	log.InfoMsg("Sent %s in %s (%s)\n", format.Size(n), time.Since(start).Round(time.Millisecond), format.Rate(n, time.Since(start)))
	return nil
}

func rangeSize(tCfg *config.Transfer) (int64, error) {
	info, err := os.Stat(tCfg.Path)
	if err != nil {
		return 0, fmt.Errorf("os.Stat(%s): %w", tCfg.Path, err)
	}
	if tCfg.Offset > info.Size() {
		return 0, fmt.Errorf("offset %d beyond end of %s (%d bytes)", tCfg.Offset, tCfg.Path, info.Size())
	}

	rest := info.Size() - tCfg.Offset
	if tCfg.Size == 0 {
		return rest, nil
	}
	if tCfg.Size > rest {
		return 0, errors.New("size reaches beyond the end of the file")
	}
	return tCfg.Size, nil
}
