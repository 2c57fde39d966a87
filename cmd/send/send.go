// Package send implements the stream client: it sends its arguments or
// stdin lines as length-prefixed strings.
package send

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"dominicbreuker/goudt/cmd/shared"
	"dominicbreuker/goudt/pkg/framing"
	"dominicbreuker/goudt/pkg/log"
	"dominicbreuker/goudt/pkg/stdio"
	"dominicbreuker/goudt/pkg/udt"
)

// GetCommand returns the send command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "send",
		Usage:       "Send framed strings to a recv server",
		Description: shared.GetBaseDescription() + "\nWithout text, every stdin line is sent.",
		ArgsUsage:   shared.GetArgsUsage("[text...]"),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := shared.SharedConfig(cmd)
			if err != nil {
				return err
			}
			if err := shared.Validate(cfg); err != nil {
				return err
			}
			logger := shared.Setup(cfg)

			conn, err := shared.Dial(ctx, cfg, udt.Stream, shared.Options(cfg)...)
			if err != nil {
				return err
			}
			defer conn.Close()

			if cmd.Args().Len() > 1 {
				return SendStrings(conn, cmd.Args().Slice()[1:], logger)
			}

			src := stdio.NewStdio(nil)
			defer src.Close()
			if src.Interactive() {
				log.InfoMsg("Type lines to send, end with Ctrl-D\n")
			}
			err = src.EachLine(ctx, func(line string) error {
				return SendStrings(conn, []string{line}, logger)
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
		Flags: shared.GetCommonFlags(),
	}
}

// SendStrings writes each string as one frame.
func SendStrings(conn *udt.Socket, strs []string, logger *log.Logger) error {
	for _, s := range strs {
		if err := framing.WriteString(conn, s); err != nil {
			return fmt.Errorf("framing.WriteString(): %w", err)
		}
		logger.VerboseMsg("sent %d bytes\n", len(s))
	}
	return nil
}
