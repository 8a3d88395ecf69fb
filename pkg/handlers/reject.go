//go:build linux && amd64
// +build linux,amd64

package handlers

import (
	"github.com/Parunzel/dettrace/pkg/arch"
	"github.com/Parunzel/dettrace/pkg/dterror"
	"github.com/Parunzel/dettrace/pkg/scheduler"
	"github.com/Parunzel/dettrace/pkg/tracee"
	"golang.org/x/sys/unix"
)

// Getpeername implements the "reject" policy: a tracee under dettrace
// has no peer to name (there is no network namespace plumbed in), so
// any successful getpeername(2) return is a sign the sandbox's network
// assumptions have been violated and the run cannot be made
// deterministic. A failing call (no socket, not connected) is allowed
// through untouched since its result is already deterministic.
var Getpeername = Descriptor{
	Name: "getpeername",
	Post: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
		if regs.Return() == 0 {
			return &dterror.FatalError{Kind: dterror.KindUnsupportedSyscall, PID: t.PID, Syscall: "getpeername"}
		}
		return nil
	},
}

const ioctlRequestArg = 1

// ioctlAllowlist holds the request codes dettrace can answer
// deterministically without touching the host device. Everything else
// risks leaking host-specific terminal or device state into the trace.
var ioctlAllowlist = map[uint64]bool{
	uint64(unix.TCGETS):     true,
	uint64(unix.TIOCGWINSZ): true,
	uint64(unix.TIOCGPGRP):  true,
}

// AllowIoctl extends the ioctl allowlist with an additional request
// code, letting a run's configuration (internal/config) admit ioctls a
// particular workload needs without weakening the reject policy's
// default.
func AllowIoctl(req uint64) {
	ioctlAllowlist[req] = true
}

// Ioctl implements the "reject" policy for ioctl(2): allowlisted
// requests never reach the kernel (the pre-hook substitutes the
// harmless, always-succeeding getpid(2) so the tracee's single
// syscall-entry/exit cycle isn't disturbed) and the post-hook overwrites
// the result with -ENOTTY, as a process with no controlling terminal
// would see. Anything off the allowlist is fatal.
var Ioctl = Descriptor{
	Name: "ioctl",
	Pre: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) (bool, error) {
		req := regs.Arg(ioctlRequestArg)
		if !ioctlAllowlist[req] {
			return false, &dterror.FatalError{Kind: dterror.KindUnsupportedSyscall, PID: t.PID, Syscall: "ioctl"}
		}
		regs.SetSyscallNo(uint64(unix.SYS_GETPID))
		return true, nil
	},
	Post: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
		regs.SetReturn(-int64(unix.ENOTTY))
		return nil
	},
}
