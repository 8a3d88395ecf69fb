//go:build linux && amd64
// +build linux,amd64

package handlers

import (
	"github.com/Parunzel/dettrace/pkg/memio"
	"github.com/Parunzel/dettrace/pkg/tracee"
)

// memWriteRecord is a small generic-function bridge so each handler file
// can write a fixed-layout record into a tracee's memory without
// importing pkg/memio's Mem type directly everywhere.
func memWriteRecord[T any](t *tracee.Tracee, addr uintptr, v T) error {
	return memio.WriteRecord(t.Mem, addr, v)
}

func memReadRecord[T any](t *tracee.Tracee, addr uintptr) (T, error) {
	return memio.ReadRecord[T](t.Mem, addr)
}
