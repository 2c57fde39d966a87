package shared

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"dominicbreuker/goudt/pkg/config"
	"dominicbreuker/goudt/pkg/engine"
	"dominicbreuker/goudt/pkg/log"
	"dominicbreuker/goudt/pkg/native"
	"dominicbreuker/goudt/pkg/semaphore"
	"dominicbreuker/goudt/pkg/sockaddr"
	"dominicbreuker/goudt/pkg/udt"
)

// Backlog is the listen queue of the server commands.
const Backlog = 10

func millis(ms int64) time.Duration {
	return time.Duration(max(ms, 0)) * time.Millisecond
}

// Validate checks all configs and prints every problem.
func Validate(cfgs ...config.Validator) error {
	if errors := config.Validate(cfgs...); len(errors) > 0 {
		log.ErrorMsg("Argument validation errors:\n")
		for _, err := range errors {
			log.ErrorMsg(" - %s\n", err)
		}
		return fmt.Errorf("exiting")
	}
	return nil
}

// Setup wires verbose logging into the engine and socket packages.
func Setup(cfg *config.Shared) *log.Logger {
	z := log.NewZap(cfg.Verbose)
	engine.SetLogger(z.Named("engine"))
	udt.SetLogger(z.Named("udt"))
	return &log.Logger{Verbose: cfg.Verbose}
}

// Family returns the socket family the flags ask for.
func Family(cfg *config.Shared) sockaddr.Family {
	if cfg.IPv6 {
		return sockaddr.IPv6
	}
	return sockaddr.IPv4
}

// Options returns the socket options the common flags ask for.
func Options(cfg *config.Shared, extra ...udt.Option) []udt.Option {
	opts := []udt.Option{
		udt.WithSendTimeout(cfg.Timeout),
		udt.WithRecvTimeout(cfg.Timeout),
	}
	return append(opts, extra...)
}

// Handler serves one accepted connection.
type Handler func(ctx context.Context, conn *udt.Socket, peer netip.AddrPort) error

// Serve listens on the configured endpoint and hands accepted connections
// to handle, at most cfg.MaxConns at a time. It returns when ctx is done,
// which closes the listening socket, or when a handler asks to stop with
// ErrStop. Connections still being served are closed before it returns.
func Serve(ctx context.Context, cfg *config.Shared, disc udt.Discipline, handle Handler, opts ...udt.Option) error {
	ep, err := cfg.Endpoint(ctx)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", cfg.Host, err)
	}

	ln, err := udt.New(Family(cfg), disc, opts...)
	if err != nil {
		return fmt.Errorf("udt.New(%s): %w", disc, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer func() {
		if stop() {
			ln.Close()
		}
	}()

	if err := ln.Bind(ep); err != nil {
		return fmt.Errorf("Bind(%s): %w", ep, err)
	}
	if err := ln.Listen(Backlog); err != nil {
		return fmt.Errorf("Listen(%d): %w", Backlog, err)
	}
	if bound, err := ln.LocalEndpoint(); err == nil {
		ep = bound
	}
	log.InfoMsg("Listening on %s (%s)\n", ep, disc)
	onListen(ep)

	slots := semaphore.New(cfg.MaxConns, 0)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		if err := slots.Acquire(ctx); err != nil {
			return nil
		}

		conn, peer, err := ln.Accept()
		if err != nil {
			slots.Release()
			if ctx.Err() != nil {
				return nil
			}
			// The receive timeout also bounds Accept on the listener.
			if TimedOut(err) {
				continue
			}
			return fmt.Errorf("Accept(): %w", err)
		}

		log.InfoMsg("New connection from %s\n", peer)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer slots.Release()

			err := serveOne(ctx, conn, peer, handle)
			if errors.Is(err, ErrStop) {
				cancel()
				return
			}
			if err != nil {
				log.ErrorMsg("Handling connection from %s: %s\n", peer, err)
			}
		}()
	}
}

// onListen is replaced in tests to learn ephemeral ports.
var onListen = func(netip.AddrPort) {}

// ErrStop is returned by a Handler to end Serve after the connection.
var ErrStop = errors.New("stop serving")

func serveOne(ctx context.Context, conn *udt.Socket, peer netip.AddrPort, handle Handler) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		if stop() {
			conn.Close()
		}
		log.InfoMsg("Connection to %s closed\n", peer)
	}()

	return handle(ctx, conn, peer)
}

// Dial connects a new socket to the configured endpoint.
func Dial(ctx context.Context, cfg *config.Shared, disc udt.Discipline, opts ...udt.Option) (*udt.Socket, error) {
	ep, err := cfg.Endpoint(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", cfg.Host, err)
	}

	conn, err := udt.New(Family(cfg), disc, opts...)
	if err != nil {
		return nil, fmt.Errorf("udt.New(%s): %w", disc, err)
	}

	log.InfoMsg("Connecting to %s\n", ep)
	if err := conn.Connect(ep); err != nil {
		return nil, errors.Join(fmt.Errorf("Connect(%s): %w", ep, err), conn.Close())
	}
	return conn, nil
}

// Closed reports whether err means the peer went away.
func Closed(err error) bool {
	var uerr *udt.Error
	if !errors.As(err, &uerr) || !uerr.Native() {
		return false
	}
	return uerr.Code == native.ErrConnLost || uerr.Code == native.ErrInvSock
}

// TimedOut reports whether err is the engine's receive or send timeout.
func TimedOut(err error) bool {
	var uerr *udt.Error
	return errors.As(err, &uerr) && uerr.Native() && uerr.Code == native.ErrTimeout
}
