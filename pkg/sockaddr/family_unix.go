//go:build unix

package sockaddr

import "golang.org/x/sys/unix"

const (
	afInet  = int32(unix.AF_INET)
	afInet6 = int32(unix.AF_INET6)
)
