package udt

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"dominicbreuker/goudt/pkg/native"
	"dominicbreuker/goudt/pkg/sockaddr"
)

// Factory creates sockets on one engine. The engine is started once,
// before the first socket; a failed startup is remembered and returned by
// every later call.
type Factory struct {
	api native.API
	tr  *translator

	once sync.Once
	err  error
}

// NewFactory wraps api. Nothing is called on api until Startup or New.
func NewFactory(api native.API) *Factory {
	return &Factory{api: api, tr: newTranslator(api)}
}

// Startup starts the engine unless that already happened.
func (f *Factory) Startup() error {
	f.once.Do(func() {
		_, err := f.tr.call(KindStartupFailed, false, f.api.Startup)
		if err != nil {
			f.err = err
			return
		}
		Logger().Debug("engine started", zap.String("engine", fmt.Sprintf("%T", f.api)))
	})
	return f.err
}

// Cleanup stops the engine. Sockets still open are closed by the engine.
// The factory can not be started again afterwards.
func (f *Factory) Cleanup() error {
	_, err := f.tr.call(KindCleanupFailed, false, f.api.Cleanup)
	return err
}

// New creates a socket. Options run in order after the handle exists; if
// one fails the handle is closed again.
func (f *Factory) New(family sockaddr.Family, disc Discipline, opts ...Option) (*Socket, error) {
	if family != sockaddr.IPv4 && family != sockaddr.IPv6 {
		return nil, localError(KindUnsupportedFamily, fmt.Sprintf("new socket: family %s", family))
	}
	if !disc.valid() {
		return nil, localError(KindInvalidArgument, fmt.Sprintf("new socket: discipline %s", disc))
	}
	if err := f.Startup(); err != nil {
		return nil, err
	}

	h, err := f.tr.handle(KindCreateFailed, false, func() native.Handle {
		return f.api.Socket(family.AF(), disc.kind(), 0)
	})
	if err != nil {
		return nil, err
	}

	s := newSocket(f.tr, family, disc, h)
	for _, opt := range opts {
		if err := opt(s); err != nil {
			if cerr := s.Close(); cerr != nil {
				return nil, errors.Join(err, cerr)
			}
			return nil, err
		}
	}
	return s, nil
}

// With creates a socket, passes it to fn and closes it. The close error is
// joined with fn's error.
func (f *Factory) With(family sockaddr.Family, disc Discipline, fn func(*Socket) error, opts ...Option) (err error) {
	s, err := f.New(family, disc, opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()
	return fn(s)
}

var defaultFactory = sync.OnceValue(func() *Factory {
	return NewFactory(defaultAPI())
})

// Startup starts the default engine.
func Startup() error {
	return defaultFactory().Startup()
}

// Cleanup stops the default engine.
func Cleanup() error {
	return defaultFactory().Cleanup()
}

// New creates a socket on the default engine.
func New(family sockaddr.Family, disc Discipline, opts ...Option) (*Socket, error) {
	return defaultFactory().New(family, disc, opts...)
}

// With runs fn with a socket on the default engine.
func With(family sockaddr.Family, disc Discipline, fn func(*Socket) error, opts ...Option) error {
	return defaultFactory().With(family, disc, fn, opts...)
}
