//go:build !libudt || !cgo

package udt

import (
	"dominicbreuker/goudt/pkg/engine"
	"dominicbreuker/goudt/pkg/native"
)

// defaultAPI is the pure-Go engine unless built with -tags libudt.
func defaultAPI() native.API {
	return engine.New(nil)
}
