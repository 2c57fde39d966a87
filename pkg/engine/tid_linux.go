//go:build linux

package engine

import (
	"golang.org/x/sys/unix"

	"dominicbreuker/goudt/pkg/native"
)

const errorScope = native.ScopeThread

func threadID() int {
	return unix.Gettid()
}
