//go:build !linux && !windows

package engine

import "dominicbreuker/goudt/pkg/native"

// No portable thread id here, so all threads share one slot.
const errorScope = native.ScopeProcess

func threadID() int {
	return 0
}
