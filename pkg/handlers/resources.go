//go:build linux && amd64
// +build linux,amd64

package handlers

import (
	"math"

	"github.com/Parunzel/dettrace/pkg/arch"
	"github.com/Parunzel/dettrace/pkg/dterror"
	"github.com/Parunzel/dettrace/pkg/scheduler"
	"github.com/Parunzel/dettrace/pkg/tracee"
	"golang.org/x/sys/unix"
)

// canonicalSysinfo is the fixed sentinel sysinfo(2) result from spec.md
// §6: every long-typed field at LONG_MAX, procs at SHRT_MAX.
func canonicalSysinfo() unix.Sysinfo_t {
	const longMax = math.MaxInt64
	return unix.Sysinfo_t{
		Uptime:    longMax,
		Loads:     [3]uint64{longMax, longMax, longMax},
		Totalram:  longMax,
		Freeram:   longMax,
		Sharedram: longMax,
		Bufferram: longMax,
		Totalswap: longMax,
		Freeswap:  longMax,
		Procs:     math.MaxInt16,
		Totalhigh: longMax,
		Freehigh:  longMax,
	}
}

// Sysinfo implements the "canonical resource stats" policy for
// sysinfo(2).
var Sysinfo = Descriptor{
	Name: "sysinfo",
	Post: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
		if regs.Return() != 0 {
			return nil
		}
		return memWriteRecord(t, uintptr(regs.Arg(0)), canonicalSysinfo())
	},
}

// canonicalRlimit reports no resource as constrained, so every tracee
// observes the identical, deterministic "unlimited" rlimit regardless of
// the host's actual ulimits.
func canonicalRlimit() unix.Rlimit {
	return unix.Rlimit{Cur: unix.RLIM_INFINITY, Max: unix.RLIM_INFINITY}
}

// Getrlimit implements the "canonical resource stats" policy for
// getrlimit(2).
var Getrlimit = Descriptor{
	Name: "getrlimit",
	Post: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
		if regs.Return() != 0 {
			return nil
		}
		return memWriteRecord(t, uintptr(regs.Arg(1)), canonicalRlimit())
	},
}

const (
	prlimitPidArg      = 0
	prlimitNewLimitArg = 2
	prlimitOldLimitArg = 3
	savedArgSlotPrlimit = 1
)

// Prlimit64 implements the "canonical resource stats" policy for
// prlimit64(2): reject cross-process targets, suppress any attempt to
// set new limits, and report the same canonical "unlimited" rlimit as
// Getrlimit for the old-limit output.
var Prlimit64 = Descriptor{
	Name: "prlimit64",
	Pre: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) (bool, error) {
		target := int32(regs.Arg(prlimitPidArg))
		if target != 0 && int(target) != t.PID {
			return false, &dterror.FatalError{
				Kind:    dterror.KindUnsupportedSyscall,
				PID:     t.PID,
				Syscall: "prlimit64",
			}
		}

		newLimit := regs.Arg(prlimitNewLimitArg)
		if newLimit != 0 {
			t.SaveArg(savedArgSlotPrlimit, newLimit)
			regs.SetArg(prlimitNewLimitArg, 0)
		}
		return true, nil
	},
	Post: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
		if orig, ok := t.SavedArg(savedArgSlotPrlimit); ok {
			regs.SetArg(prlimitNewLimitArg, orig)
		}
		t.ClearSavedArgs()
		if regs.Return() != 0 {
			return nil
		}
		if addr := regs.Arg(prlimitOldLimitArg); addr != 0 {
			return memWriteRecord(t, uintptr(addr), canonicalRlimit())
		}
		return nil
	},
}

// canonicalStatfs is the fixed sentinel statfs(2)/fstatfs(2) result from
// spec.md §6.
func canonicalStatfs() unix.Statfs_t {
	return unix.Statfs_t{
		Type:    0xEF53,
		Bsize:   100,
		Blocks:  1000,
		Bfree:   10000,
		Bavail:  5000,
		Files:   1000,
		Ffree:   1000,
		Fsid:    unix.Fsid{Val: [2]int32{0, 0}},
		Namelen: 200,
		Frsize:  20,
		Flags:   1,
	}
}

// Statfs implements the "canonical resource stats" policy for
// statfs(2)/fstatfs(2) (both syscalls share this descriptor; the
// filename-vs-fd distinction in arg0 never matters to the post-hook,
// which only rewrites the output buffer at arg1).
var Statfs = Descriptor{
	Name: "statfs",
	Post: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
		if regs.Return() != 0 {
			return nil
		}
		return memWriteRecord(t, uintptr(regs.Arg(1)), canonicalStatfs())
	},
}
