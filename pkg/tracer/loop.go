//go:build linux && amd64
// +build linux,amd64

// Package tracer implements component C7: the single-goroutine tracer
// loop that owns the ptrace relationship with every tracee in a
// container run and drives the deterministic scheduler between trace
// stops. The control-flow shape (LockOSThread, exec.Cmd with
// SysProcAttr.Ptrace, a wait4-driven loop dispatching on stop kind) is
// grounded on the teacher's pkg/sentry/platform/ptrace subprocess and on
// the riverlytech-art and DataDog ptracer examples in
// _examples/other_examples; unlike either of those, this loop never
// calls wait4(-1, ...): the scheduler (pkg/scheduler), not the kernel's
// wake order, decides which single PID is resumed next, so wait4 always
// targets that specific PID (spec.md §4.6/§4.7's determinism
// requirement that exactly one tracee ever runs at a time).
package tracer

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"github.com/Parunzel/dettrace/pkg/arch"
	"github.com/Parunzel/dettrace/pkg/clock"
	"github.com/Parunzel/dettrace/pkg/detlog"
	"github.com/Parunzel/dettrace/pkg/dterror"
	"github.com/Parunzel/dettrace/pkg/handlers"
	"github.com/Parunzel/dettrace/pkg/scheduler"
	"github.com/Parunzel/dettrace/pkg/syscalltable"
	"github.com/Parunzel/dettrace/pkg/tracee"
	"github.com/cenkalti/backoff"
	"golang.org/x/sys/unix"
)

// attachTimeout bounds how long Run waits for the newly-exec'd root
// command to reach its first ptrace stop before giving up. On a loaded
// host the very first PTRACE_SETOPTIONS call can race the tracee's own
// SIGSTOP delivery and transiently fail with ESRCH; retried with a
// constant backoff the same way the teacher's runsc/sandbox.waitForStopped
// polls a not-yet-converged process state instead of failing on the
// first observation.
const attachTimeout = 2 * time.Second

const ptraceOptions = unix.PTRACE_O_TRACESYSGOOD |
	unix.PTRACE_O_TRACEFORK |
	unix.PTRACE_O_TRACEVFORK |
	unix.PTRACE_O_TRACECLONE |
	unix.PTRACE_O_TRACEEXEC |
	unix.PTRACE_O_TRACEEXIT

// Tracer runs one container: a root command plus every descendant it
// forks, each stepped exactly one syscall at a time, in the order the
// scheduler hands out.
type Tracer struct {
	log   *detlog.Logger
	table *syscalltable.Table
	sched *scheduler.Scheduler

	inodes  *clock.InodeMap
	tracees map[int]*tracee.Tracee

	// awaitingExit tracks, per pid, whether the next syscall-stop for
	// that pid is the matching exit of a pre-hook that asked for one.
	awaitingExit map[int]bool

	// rootPID is the initial tracee exec'd by Run; the container's own
	// exit status mirrors this pid's, not any descendant's (spec.md §6).
	rootPID int
	// exitCode is set from the root tracee's terminal wait4 status and
	// surfaced via ExitCode once Run returns.
	exitCode int
}

// New builds a Tracer ready to run a single container.
func New() *Tracer {
	return &Tracer{
		log:          detlog.New(0),
		table:        syscalltable.New(),
		sched:        scheduler.New(),
		inodes:       clock.NewInodeMap(),
		tracees:      make(map[int]*tracee.Tracee),
		awaitingExit: make(map[int]bool),
	}
}

// Run execs argv under ptrace and traces it to completion, returning a
// non-nil error only on a fatal condition (spec.md §4.6/§7): an
// unsupported syscall, a scheduler deadlock, or a ptrace/wait facility
// failure. On any fatal error every live tracee is sent SIGKILL before
// Run returns.
func (tr *Tracer) Run(argv []string) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("tracer: start root command: %w", err)
	}
	pid := cmd.Process.Pid

	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return fmt.Errorf("tracer: initial wait4 on pid %d: %w", pid, err)
	}

	attach := func() error { return unix.PtraceSetOptions(pid, ptraceOptions) }
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(10*time.Millisecond), uint64(attachTimeout/(10*time.Millisecond)))
	if err := backoff.Retry(attach, b); err != nil {
		return fmt.Errorf("tracer: ptrace setoptions on pid %d: %w", pid, err)
	}

	tr.rootPID = pid
	tr.tracees[pid] = tracee.New(pid, tr.inodes)
	if err := tr.sched.AddAndScheduleNext(pid); err != nil {
		return tr.fatal(err)
	}

	return tr.loop()
}

// ExitCode returns the root tracee's exit status, valid once Run has
// returned nil. A root tracee killed by a signal reports 128+signal,
// matching the shell convention the teacher's runsc/cmd exit paths follow.
func (tr *Tracer) ExitCode() int { return tr.exitCode }

func (tr *Tracer) loop() error {
	for {
		pid, err := tr.sched.GetNext()
		if err != nil {
			if _, empty := err.(*scheduler.EmptyError); empty {
				return nil
			}
			if dl, isDeadlock := err.(*scheduler.DeadlockError); isDeadlock {
				return tr.fatal(&dterror.FatalError{Kind: dterror.KindDeadlock, Cause: dl})
			}
			return tr.fatal(err)
		}

		if err := unix.PtraceSyscall(pid, 0); err != nil {
			return tr.fatal(fmt.Errorf("tracer: ptrace syscall pid %d: %w", pid, err))
		}

		var ws unix.WaitStatus
		if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
			if err == unix.EINTR {
				continue
			}
			return tr.fatal(fmt.Errorf("tracer: wait4 pid %d: %w", pid, err))
		}

		if err := tr.handleStop(pid, ws); err != nil {
			return tr.fatal(err)
		}
	}
}

func (tr *Tracer) handleStop(pid int, ws unix.WaitStatus) error {
	if ws.Exited() || ws.Signaled() {
		return tr.onExit(pid, ws)
	}
	if !ws.Stopped() {
		return nil
	}

	sig := ws.StopSignal()

	if sig == unix.SIGTRAP|0x80 {
		return tr.onSyscallStop(pid)
	}

	if sig == unix.SIGTRAP {
		return tr.onPtraceEvent(pid, ws)
	}

	// Any other signal: forward it unchanged, per spec.md §4.7.
	return unix.PtraceSyscall(pid, int(sig))
}

func (tr *Tracer) onExit(pid int, ws unix.WaitStatus) error {
	if pid == tr.rootPID {
		if ws.Exited() {
			tr.exitCode = ws.ExitStatus()
		} else if ws.Signaled() {
			tr.exitCode = 128 + int(ws.Signal())
		}
	}

	delete(tr.tracees, pid)
	delete(tr.awaitingExit, pid)
	if _, err := tr.sched.RemoveAndScheduleNext(pid); err != nil {
		return err
	}
	return nil
}

func (tr *Tracer) onPtraceEvent(pid int, ws unix.WaitStatus) error {
	t, ok := tr.tracees[pid]
	if !ok {
		return &dterror.FatalError{Kind: dterror.KindTraceFacility, PID: pid, Syscall: "ptrace-event"}
	}

	switch ws.TrapCause() {
	case unix.PTRACE_EVENT_FORK, unix.PTRACE_EVENT_VFORK, unix.PTRACE_EVENT_CLONE:
		msg, err := unix.PtraceGetEventMsg(pid)
		if err != nil {
			return fmt.Errorf("tracer: get event msg for pid %d: %w", pid, err)
		}
		childPID := int(msg)
		tr.tracees[childPID] = t.Fork(childPID)
		if err := tr.sched.AddAndScheduleNext(childPID); err != nil {
			return err
		}
	case unix.PTRACE_EVENT_EXEC:
		// exec resets the in-flight marker but keeps the rest of this
		// tracee's state, per spec.md §4.7.
		t.ClearInFlight()
		delete(tr.awaitingExit, pid)
	case unix.PTRACE_EVENT_EXIT:
		// pid has reached syscall-level exit (the kernel is about to tear
		// it down) but is not yet reaped: per spec.md §4.6 it stays a
		// member of its partition — any live child, having a strictly
		// larger PID (spec.md §4.6), sorts above it and runs first. Only
		// once this resumes with nothing higher left does its real
		// WIFEXITED/WIFSIGNALED wait4 status arrive and onExit removes it.
		if err := tr.sched.MarkFinishedAndScheduleNext(); err != nil {
			return err
		}
	}

	return nil
}

func (tr *Tracer) onSyscallStop(pid int) error {
	t, ok := tr.tracees[pid]
	if !ok {
		return &dterror.FatalError{Kind: dterror.KindTraceFacility, PID: pid, Syscall: "syscall-stop"}
	}

	regs, err := t.Mem.GetRegs()
	if err != nil {
		return fmt.Errorf("tracer: getregs pid %d: %w", pid, err)
	}

	if tr.awaitingExit[pid] {
		return tr.runPost(t, regs)
	}
	return tr.runPre(t, regs)
}

func (tr *Tracer) runPre(t *tracee.Tracee, regs *arch.Registers) error {
	nr := regs.SyscallNo()
	desc := tr.table.Lookup(nr)

	wantPost, err := desc.RunPre(t, regs, tr.sched)
	if err != nil {
		return err
	}
	if err := t.Mem.SetRegs(regs); err != nil {
		return fmt.Errorf("tracer: setregs pid %d: %w", t.PID, err)
	}

	if wantPost {
		// The resolved descriptor, not just its syscall number, is kept
		// on the in-flight marker: a pre-hook may have rewritten
		// orig_rax for its own purposes (Pipe, Ioctl), so re-deriving
		// the descriptor from regs.SyscallNo() at exit-stop would pick
		// up the substitute syscall instead of the one actually
		// dispatched.
		t.SetInFlight(&tracee.InFlightSyscall{Nr: nr, Name: desc.Name, Handler: desc})
		tr.awaitingExit[t.PID] = true
	}
	return nil
}

func (tr *Tracer) runPost(t *tracee.Tracee, regs *arch.Registers) error {
	delete(tr.awaitingExit, t.PID)

	in := t.InFlight()
	if in == nil {
		return fmt.Errorf("tracer: exit stop for pid %d with no in-flight syscall", t.PID)
	}
	desc, ok := in.Handler.(handlers.Descriptor)
	if !ok {
		return fmt.Errorf("tracer: in-flight handler for pid %d is not a descriptor", t.PID)
	}

	if err := desc.RunPost(t, regs, tr.sched); err != nil {
		return err
	}
	t.ClearInFlight()

	return t.Mem.SetRegs(regs)
}

func (tr *Tracer) fatal(cause error) error {
	tr.log.Errorf("fatal: %v", cause)
	if err := tr.sched.KillAll(); err != nil {
		tr.log.Errorf("killall during teardown: %v", err)
	}
	return cause
}
