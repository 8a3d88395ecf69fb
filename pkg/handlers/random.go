//go:build linux && amd64
// +build linux,amd64

package handlers

import (
	"github.com/Parunzel/dettrace/pkg/arch"
	"github.com/Parunzel/dettrace/pkg/scheduler"
	"github.com/Parunzel/dettrace/pkg/tracee"
)

// Getrandom implements the "deterministic randomness" policy: the output
// buffer is overwritten with the fixed sequence i mod 256 for
// i = 0..n-1, per spec.md §4.5/§6.
var Getrandom = Descriptor{
	Name: "getrandom",
	Post: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
		n := regs.Return()
		if n <= 0 {
			return nil
		}
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = byte(i % 256)
		}
		return t.Mem.WriteBytes(uintptr(regs.Arg(0)), buf)
	},
}
