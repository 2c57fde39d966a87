//go:build windows

package sockaddr

import "golang.org/x/sys/windows"

const (
	afInet  = int32(windows.AF_INET)
	afInet6 = int32(windows.AF_INET6)
)
