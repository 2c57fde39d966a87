//go:build windows

package engine

import (
	"golang.org/x/sys/windows"

	"dominicbreuker/goudt/pkg/native"
)

const errorScope = native.ScopeThread

func threadID() int {
	return int(windows.GetCurrentThreadId())
}
