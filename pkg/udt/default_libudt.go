//go:build libudt && cgo

package udt

import (
	"dominicbreuker/goudt/pkg/native"
	"dominicbreuker/goudt/pkg/native/libudt"
)

func defaultAPI() native.API {
	return libudt.New()
}
