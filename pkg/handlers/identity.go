//go:build linux && amd64
// +build linux,amd64

package handlers

import (
	"github.com/Parunzel/dettrace/pkg/arch"
	"github.com/Parunzel/dettrace/pkg/scheduler"
	"github.com/Parunzel/dettrace/pkg/tracee"
	"golang.org/x/sys/unix"
)

func setUtsField(field *[65]byte, value string) {
	for i := range field {
		field[i] = 0
	}
	copy(field[:], value)
}

// canonicalUtsname returns the fixed kernel identity this container
// always reports, per spec.md §6.
func canonicalUtsname() unix.Utsname {
	var u unix.Utsname
	setUtsField(&u.Sysname, "Linux")
	setUtsField(&u.Release, "4.0")
	setUtsField(&u.Version, "#1")
	setUtsField(&u.Machine, "x86_64")
	return u
}

// Uname implements the "canonical identity" policy for uname(2).
var Uname = Descriptor{
	Name: "uname",
	Post: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
		if regs.Return() != 0 {
			return nil
		}
		return memWriteRecord(t, uintptr(regs.Arg(0)), canonicalUtsname())
	},
}
