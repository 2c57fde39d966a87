// Package shared provides the flag definitions and socket plumbing used
// across the udtcat commands.
package shared

import (
	"strings"

	"github.com/urfave/cli/v3"

	"dominicbreuker/goudt/pkg/config"
)

const (
	categoryCommon   = "common"
	categoryServer   = "server"
	categoryMessage  = "message"
	categoryTransfer = "transfer"
)

// Flag names.
const (
	HostFlag     = "host"
	PortFlag     = "port"
	IPv6Flag     = "ipv6"
	VerboseFlag  = "verbose"
	TimeoutFlag  = "timeout"
	MaxConnsFlag = "max-conns"

	TTLFlag     = "ttl"
	InOrderFlag = "inorder"
	BufSizeFlag = "bufsize"
	CountFlag   = "count"
	LogFileFlag = "log"

	OffsetFlag = "offset"
	SizeFlag   = "size"
)

// Defaults of the sample programs.
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8888
)

// GetBaseDescription returns the endpoint help shared by all commands.
func GetBaseDescription() string {
	return strings.Join([]string{
		"The endpoint defaults to 127.0.0.1:8888 and can be given as host:port.",
		"Use '*' as host to listen on all interfaces, '--ipv6' for IPv6 sockets.",
	}, "\n")
}

// GetArgsUsage returns the positional argument usage.
func GetArgsUsage(extra ...string) string {
	return strings.Join(append([]string{"[host:port]"}, extra...), " ")
}

// GetCommonFlags returns the flags every command understands.
func GetCommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     HostFlag,
			Usage:    "Host to listen on or connect to",
			Category: categoryCommon,
			Value:    DefaultHost,
		},
		&cli.IntFlag{
			Name:     PortFlag,
			Aliases:  []string{"p"},
			Usage:    "UDT port",
			Category: categoryCommon,
			Value:    DefaultPort,
		},
		&cli.BoolFlag{
			Name:     IPv6Flag,
			Aliases:  []string{"6"},
			Usage:    "Use an IPv6 socket",
			Category: categoryCommon,
		},
		&cli.BoolFlag{
			Name:     VerboseFlag,
			Aliases:  []string{"v"},
			Usage:    "Verbose logging, including engine traces",
			Category: categoryCommon,
		},
		&cli.IntFlag{
			Name:     TimeoutFlag,
			Aliases:  []string{"t"},
			Usage:    "Send and receive timeout in milliseconds, 0 waits forever",
			Category: categoryCommon,
			Value:    0,
		},
	}
}

// GetServerFlags returns the flags of the receiving commands.
func GetServerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:     MaxConnsFlag,
			Usage:    "Connections handled at once, 0 handles one at a time",
			Category: categoryServer,
		},
	}
}

// GetMessageFlags returns the flags of the message commands.
func GetMessageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:     TTLFlag,
			Usage:    "Message time-to-live in milliseconds, -1 retransmits forever",
			Category: categoryMessage,
			Value:    -1,
		},
		&cli.BoolFlag{
			Name:     InOrderFlag,
			Usage:    "Deliver messages in order",
			Category: categoryMessage,
			Value:    true,
		},
		&cli.IntFlag{
			Name:     BufSizeFlag,
			Usage:    "Receive buffer per message in bytes, longer messages are truncated",
			Category: categoryMessage,
			Value:    65536,
		},
		&cli.IntFlag{
			Name:     CountFlag,
			Aliases:  []string{"n"},
			Usage:    "Number of messages, 0 for no limit",
			Category: categoryMessage,
			Value:    0,
		},
	}
}

// GetTransferFlags returns the flags of the file commands.
func GetTransferFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:     OffsetFlag,
			Usage:    "Byte offset in the file to start at",
			Category: categoryTransfer,
		},
		&cli.IntFlag{
			Name:     SizeFlag,
			Usage:    "Number of bytes to send, 0 sends up to the end of the file",
			Category: categoryTransfer,
		},
	}
}

// SharedConfig reads the common and server flags. A host:port argument
// overrides --host and --port.
func SharedConfig(cmd *cli.Command) (*config.Shared, error) {
	cfg := &config.Shared{
		Host:    cmd.String(HostFlag),
		Port:    int(cmd.Int(PortFlag)),
		IPv6:    cmd.Bool(IPv6Flag),
		Verbose: cmd.Bool(VerboseFlag),
		Timeout: millis(cmd.Int(TimeoutFlag)),

		MaxConns: int(cmd.Int(MaxConnsFlag)),
	}

	if arg := cmd.Args().First(); arg != "" {
		host, port, err := ParseEndpoint(arg)
		if err != nil {
			return nil, err
		}
		cfg.Host, cfg.Port = host, port
	}
	if cfg.Host == "" {
		cfg.Host = wildcard(cfg.IPv6)
	}
	return cfg, nil
}

// MessageConfig reads the message flags.
func MessageConfig(cmd *cli.Command) *config.Message {
	return &config.Message{
		TTL:     int(cmd.Int(TTLFlag)),
		InOrder: cmd.Bool(InOrderFlag),
		BufSize: int(cmd.Int(BufSizeFlag)),
		Count:   int(cmd.Int(CountFlag)),
	}
}

// TransferConfig reads the transfer flags for the file at path.
func TransferConfig(cmd *cli.Command, path string) *config.Transfer {
	return &config.Transfer{
		Path:   path,
		Offset: cmd.Int(OffsetFlag),
		Size:   cmd.Int(SizeFlag),
	}
}

func wildcard(ipv6 bool) string {
	if ipv6 {
		return "::"
	}
	return "0.0.0.0"
}
