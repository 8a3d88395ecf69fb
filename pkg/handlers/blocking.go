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

// wouldHaveBlockedEAGAIN is the errno value read(2) (and any fd made
// non-blocking through our pipe->pipe2 conversion) reports in place of
// blocking, per spec.md §4.5.
const wouldHaveBlockedEAGAIN = -int64(unix.EAGAIN)

// replayOrComplete is the shared "would-have-blocked" contract from
// spec.md §4.5: if wouldBlock, preempt this tracee into the blocked
// partition and rewind its instruction pointer so the exact same
// syscall re-enters from the top next time the scheduler picks it;
// otherwise the call is really finished, so the logical clock is left
// untouched (time only advances on completion of a time-producing call,
// never on a replayed attempt) and any saved argument registers the
// pre-hook rewrote are restored so the completing call looks, to the
// tracee, like the original (possibly-blocking) request.
func replayOrComplete(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler, wouldBlock bool, restore func()) error {
	if !wouldBlock {
		if restore != nil {
			restore()
		}
		t.ClearSavedArgs()
		return nil
	}

	nr := regs.SyscallNo()
	rewound := regs.IP() - arch.SyscallInstrWidth

	name := ""
	if in := t.InFlight(); in != nil {
		name = in.Name
	}

	opcode, err := t.Mem.PeekInstruction(uintptr(rewound))
	if err != nil {
		return &dterror.FatalError{Kind: dterror.KindTraceFacility, PID: t.PID, Syscall: name, Cause: err}
	}
	if !arch.IsSyscallOpcode(opcode) {
		return &dterror.FatalError{Kind: dterror.KindIPInconsistency, PID: t.PID, Syscall: name}
	}

	regs.SetIP(rewound)
	regs.SetReturn(int64(nr))

	return sched.PreemptAndScheduleNext(scheduler.MarkAsBlocked)
}

const (
	pollTimeoutArg  = 2
	pollSavedSlot   = 2
	wait4OptionsArg = 2
	wait4SavedSlot  = 2
)

// Poll implements the "non-blocking conversion + replay" policy for
// poll(2): the pre-hook forces an instant poll (timeout=0); the
// post-hook treats a 0 return (nothing ready) as would-have-blocked.
var Poll = Descriptor{
	Name: "poll",
	Pre: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) (bool, error) {
		// A replayed attempt re-enters with the timeout already zeroed;
		// keep the original saved by the first attempt.
		if _, saved := t.SavedArg(pollSavedSlot); !saved {
			t.SaveArg(pollSavedSlot, regs.Arg(pollTimeoutArg))
		}
		regs.SetArg(pollTimeoutArg, 0)
		return true, nil
	},
	Post: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
		wouldBlock := regs.Return() == 0
		return replayOrComplete(t, regs, sched, wouldBlock, func() {
			if orig, ok := t.SavedArg(pollSavedSlot); ok {
				regs.SetArg(pollTimeoutArg, orig)
			}
		})
	},
}

// Wait4 implements the "non-blocking conversion + replay" policy for
// wait4(2): the pre-hook ORs in WNOHANG; the post-hook treats a 0
// return (no state change available) as would-have-blocked.
var Wait4 = Descriptor{
	Name: "wait4",
	Pre: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) (bool, error) {
		orig := regs.Arg(wait4OptionsArg)
		// A replayed attempt re-enters with WNOHANG already set; keep the
		// original saved by the first attempt.
		if _, saved := t.SavedArg(wait4SavedSlot); !saved {
			t.SaveArg(wait4SavedSlot, orig)
		}
		regs.SetArg(wait4OptionsArg, orig|unix.WNOHANG)
		return true, nil
	},
	Post: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
		wouldBlock := regs.Return() == 0
		return replayOrComplete(t, regs, sched, wouldBlock, func() {
			if orig, ok := t.SavedArg(wait4SavedSlot); ok {
				regs.SetArg(wait4OptionsArg, orig)
			}
		})
	},
}

// Read implements the "non-blocking conversion + replay" policy for
// read(2) on file descriptors that originated from our pipe->pipe2
// conversion (and are therefore already O_NONBLOCK): the post-hook
// treats -EAGAIN as would-have-blocked. No pre-hook rewrite is needed;
// the fd's non-blocking-ness was established when it was created.
var Read = Descriptor{
	Name: "read",
	Pre: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) (bool, error) {
		return true, nil
	},
	Post: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
		wouldBlock := regs.Return() == wouldHaveBlockedEAGAIN
		return replayOrComplete(t, regs, sched, wouldBlock, nil)
	},
}

const pipeFlagsArg = 1

// Pipe implements the "non-blocking conversion" policy for pipe(2): the
// pre-hook rewrites the call into pipe2(fds, O_NONBLOCK) so every fd
// this container hands out is already non-blocking for Read's benefit.
// pipe(2) itself never blocks, so there is no replay path here, only
// the number substitution.
var Pipe = Descriptor{
	Name: "pipe",
	Pre: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) (bool, error) {
		t.SetInFlight(&tracee.InFlightSyscall{Nr: uint64(unix.SYS_PIPE), Name: "pipe"})
		regs.SetSyscallNo(uint64(unix.SYS_PIPE2))
		regs.SetArg(pipeFlagsArg, unix.O_NONBLOCK)
		return true, nil
	},
	Post: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
		regs.SetSyscallNo(uint64(unix.SYS_PIPE))
		return nil
	},
}
