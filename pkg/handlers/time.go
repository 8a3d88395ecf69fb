//go:build linux && amd64
// +build linux,amd64

package handlers

import (
	"math"

	"github.com/Parunzel/dettrace/pkg/arch"
	"github.com/Parunzel/dettrace/pkg/scheduler"
	"github.com/Parunzel/dettrace/pkg/tracee"
	"golang.org/x/sys/unix"
)

// redZoneScratchOffset is where utimensat's pre-hook stashes its two
// synthetic timespec records, per spec.md §4.5: "a scratch area in the
// tracee's stack red zone (offset 128 bytes below SP)". The x86-64 ABI
// guarantees 128 bytes below rsp are safe to clobber between syscalls.
const redZoneScratchOffset = 128

// utimensatTimesArg is the argument index of utimensat's `struct
// timespec times[2]` parameter.
const utimensatTimesArg = 2

// savedArgSlotUtimensat is which tracee.SaveArg slot holds utimensat's
// original (null) times pointer across the pre/post-hook pair.
const savedArgSlotUtimensat = 0

func writeVirtualTimespec(t *tracee.Tracee, addr uintptr) error {
	ts := unix.Timespec{Sec: int64(t.Clock.Get()), Nsec: 0}
	return writeTimespec(t, addr, ts)
}

func writeTimespec(t *tracee.Tracee, addr uintptr, ts unix.Timespec) error {
	return memWriteRecord(t, addr, ts)
}

// ClockGettime implements the "virtual time" policy for clock_gettime(2).
var ClockGettime = Descriptor{
	Name: "clock_gettime",
	Post: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
		if regs.Return() != 0 {
			return nil
		}
		if err := writeVirtualTimespec(t, uintptr(regs.Arg(1))); err != nil {
			return err
		}
		t.Clock.Tick()
		return nil
	},
}

// Gettimeofday implements the "virtual time" policy for
// gettimeofday(2).
var Gettimeofday = Descriptor{
	Name: "gettimeofday",
	Post: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
		if regs.Return() != 0 {
			return nil
		}
		addr := regs.Arg(0)
		if addr == 0 {
			return nil
		}
		tv := unix.Timeval{Sec: int64(t.Clock.Get()), Usec: 0}
		if err := memWriteRecord(t, uintptr(addr), tv); err != nil {
			return err
		}
		t.Clock.Tick()
		return nil
	},
}

// Time implements the "virtual time" policy for time(2). When tloc is
// non-null the kernel also wrote the real time there; overwrite it. On
// success the return value (a time_t) is overwritten whether or not tloc
// is null; an error return is left as the kernel reported it.
var Time = Descriptor{
	Name: "time",
	Post: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
		if regs.Return() < 0 {
			return nil
		}
		v := int64(t.Clock.Get())
		regs.SetReturn(v)
		if addr := regs.Arg(0); addr != 0 {
			if err := memWriteRecord(t, uintptr(addr), v); err != nil {
				return err
			}
		}
		t.Clock.Tick()
		return nil
	},
}

// Getrusage implements the "virtual time" + "canonical resource stats"
// policy for getrusage(2): ru_utime/ru_stime both carry the logical
// clock (seconds and microseconds alike, per spec.md §6), every other
// counter is sentinel LONG_MAX.
var Getrusage = Descriptor{
	Name: "getrusage",
	Post: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
		if regs.Return() != 0 {
			return nil
		}
		addr := regs.Arg(1)
		if addr == 0 {
			return nil
		}
		clk := int64(t.Clock.Get())
		ru := unix.Rusage{
			Utime:    unix.Timeval{Sec: clk, Usec: clk},
			Stime:    unix.Timeval{Sec: clk, Usec: clk},
			Maxrss:   math.MaxInt64,
			Ixrss:    math.MaxInt64,
			Idrss:    math.MaxInt64,
			Isrss:    math.MaxInt64,
			Minflt:   math.MaxInt64,
			Majflt:   math.MaxInt64,
			Nswap:    math.MaxInt64,
			Inblock:  math.MaxInt64,
			Oublock:  math.MaxInt64,
			Msgsnd:   math.MaxInt64,
			Msgrcv:   math.MaxInt64,
			Nsignals: math.MaxInt64,
			Nvcsw:    math.MaxInt64,
			Nivcsw:   math.MaxInt64,
		}
		if err := memWriteRecord(t, uintptr(addr), ru); err != nil {
			return err
		}
		t.Clock.Tick()
		return nil
	},
}

// Utimensat implements the "virtual time" policy's special case: when
// the caller passes a null `times` argument (meaning "set to now"), the
// pre-hook substitutes a synthetic pair of timespecs derived from the
// logical clock so "now" is deterministic, then the post-hook restores
// the original (null) argument register.
var Utimensat = Descriptor{
	Name: "utimensat",
	Pre: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) (bool, error) {
		orig := regs.Arg(utimensatTimesArg)
		if orig != 0 {
			// Caller supplied explicit times; nothing to virtualize.
			return false, nil
		}

		scratch := uintptr(regs.Rsp) - redZoneScratchOffset
		ts := unix.Timespec{Sec: int64(t.Clock.Get()), Nsec: 0}
		if err := memWriteRecord(t, scratch, [2]unix.Timespec{ts, ts}); err != nil {
			return false, err
		}

		t.SaveArg(savedArgSlotUtimensat, orig)
		regs.SetArg(utimensatTimesArg, uint64(scratch))
		return true, nil
	},
	Post: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
		if orig, ok := t.SavedArg(savedArgSlotUtimensat); ok {
			regs.SetArg(utimensatTimesArg, orig)
		}
		t.ClearSavedArgs()
		t.Clock.Tick()
		return nil
	},
}
