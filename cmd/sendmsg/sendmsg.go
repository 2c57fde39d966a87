// Package sendmsg implements the message client.
package sendmsg

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"dominicbreuker/goudt/cmd/shared"
	"dominicbreuker/goudt/pkg/config"
	"dominicbreuker/goudt/pkg/log"
	"dominicbreuker/goudt/pkg/stdio"
	"dominicbreuker/goudt/pkg/udt"
)

const stdinFlag = "stdin"

// GetCommand returns the sendmsg command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "sendmsg",
		Usage: "Send messages to a recvmsg server",
		Description: strings.Join([]string{
			shared.GetBaseDescription(),
			"Without text and without --stdin, sends \"Hello UDT! <time>\".",
		}, "\n"),
		ArgsUsage: shared.GetArgsUsage("[text...]"),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := shared.SharedConfig(cmd)
			if err != nil {
				return err
			}
			mCfg := shared.MessageConfig(cmd)
			if err := shared.Validate(cfg, mCfg); err != nil {
				return err
			}
			logger := shared.Setup(cfg)

			conn, err := shared.Dial(ctx, cfg, udt.Message, shared.Options(cfg,
				udt.WithTTL(mCfg.TTL),
				udt.WithInOrder(mCfg.InOrder),
			)...)
			if err != nil {
				return err
			}
			defer conn.Close()

			var text []string
			if cmd.Args().Len() > 1 {
				text = cmd.Args().Slice()[1:]
			}

			src := stdio.NewStdio(nil)
			defer src.Close()

			if cmd.Bool(stdinFlag) {
				return SendLines(ctx, conn, src, logger)
			}
			return Send(conn, Text(text, time.Now()), mCfg, logger)
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:  stdinFlag,
			Usage: "Send every line read from stdin as a message",
		},
	}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetMessageFlags()...)

	return flags
}

// Text returns the message to send: the joined arguments or the greeting.
func Text(args []string, now time.Time) string {
	if len(args) > 0 {
		return strings.Join(args, " ")
	}
	return "Hello UDT! " + now.Format(time.RFC3339)
}

// Send sends text Count times, at least once.
func Send(conn *udt.Socket, text string, mCfg *config.Message, logger *log.Logger) error {
	n := max(mCfg.Count, 1)
	for i := range n {
		if err := conn.SendMessage(text); err != nil {
			return fmt.Errorf("SendMessage(%d of %d): %w", i+1, n, err)
		}
		logger.VerboseMsg("sent %q\n", text)
	}
	log.InfoMsg("Sent %d message(s)\n", n)
	return nil
}

// SendLines sends each stdin line as one message until EOF or ctx is done.
func SendLines(ctx context.Context, conn *udt.Socket, src *stdio.Stdio, logger *log.Logger) error {
	if src.Interactive() {
		log.InfoMsg("Type messages, one per line, end with Ctrl-D\n")
	}

	sent := 0
	err := src.EachLine(ctx, func(line string) error {
		if err := conn.SendMessage(line); err != nil {
			return fmt.Errorf("SendMessage(): %w", err)
		}
		sent++
		logger.VerboseMsg("sent %q\n", line)
		return nil
	})
	log.InfoMsg("Sent %d message(s)\n", sent)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
