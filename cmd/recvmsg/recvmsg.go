// Package recvmsg implements the message server: it accepts connections
// and prints every message it receives.
package recvmsg

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/urfave/cli/v3"

	"dominicbreuker/goudt/cmd/shared"
	"dominicbreuker/goudt/pkg/config"
	"dominicbreuker/goudt/pkg/log"
	"dominicbreuker/goudt/pkg/stdio"
	"dominicbreuker/goudt/pkg/udt"
)

// GetCommand returns the recvmsg command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "recvmsg",
		Usage:       "Receive messages on a message socket and print them",
		Description: shared.GetBaseDescription(),
		ArgsUsage:   shared.GetArgsUsage(),
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

			out := stdio.NewStdio(nil)
			defer out.Close()

			opts := shared.Options(cfg, udt.WithMessageBuffer(mCfg.BufSize))
			return shared.Serve(ctx, cfg, udt.Message, Handler(out, mCfg, logger), opts...)
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetServerFlags()...)
	flags = append(flags, shared.GetMessageFlags()...)

	return flags
}

// Handler prints the messages of one connection until the peer closes it.
// With a message count set, the server stops after that many messages,
// counted over all connections.
func Handler(out io.Writer, mCfg *config.Message, logger *log.Logger) shared.Handler {
	var received atomic.Int64
	var outMu sync.Mutex
	return func(ctx context.Context, conn *udt.Socket, peer netip.AddrPort) error {
		if err := conn.SetMessageBufferSize(mCfg.BufSize); err != nil {
			return err
		}

		for {
			msg, err := conn.ReceiveMessage()
			if err != nil {
				if shared.Closed(err) || ctx.Err() != nil {
					logger.VerboseMsg("receive from %s ended: %s\n", peer, err)
					return nil
				}
				return fmt.Errorf("ReceiveMessage(): %w", err)
			}

			outMu.Lock()
			_, err = fmt.Fprintf(out, "%s\n", msg)
			outMu.Unlock()
			if err != nil {
				return fmt.Errorf("writing message: %w", err)
			}

			if n := received.Add(1); mCfg.Count > 0 && n >= int64(mCfg.Count) {
				return shared.ErrStop
			}
		}
	}
}
