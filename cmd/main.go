// Command udtcat sends and receives messages, strings and files over UDT.
package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"dominicbreuker/goudt/cmd/recv"
	"dominicbreuker/goudt/cmd/recvfile"
	"dominicbreuker/goudt/cmd/recvmsg"
	"dominicbreuker/goudt/cmd/send"
	"dominicbreuker/goudt/cmd/sendfile"
	"dominicbreuker/goudt/cmd/sendmsg"
	"dominicbreuker/goudt/cmd/shared"
	"dominicbreuker/goudt/cmd/version"
	"dominicbreuker/goudt/pkg/log"
	"dominicbreuker/goudt/pkg/udt"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "udtcat",
		Usage: "netcat-like tool for UDT sockets",
		Commands: []*cli.Command{
			recvmsg.GetCommand(),
			sendmsg.GetCommand(),
			recv.GetCommand(),
			send.GetCommand(),
			recvfile.GetCommand(),
			sendfile.GetCommand(),
			version.GetCommand(),
		},
	}
}

func main() {
	ctx, stop := shared.WithSignals(context.Background(), shared.ShutdownGrace)

	err := newApp().Run(ctx, os.Args)
	stop()
	if cerr := udt.Cleanup(); cerr != nil {
		log.ErrorMsg("%s\n", cerr)
	}
	if err != nil {
		log.ErrorMsg("%s\n", err)
		os.Exit(1)
	}
}
