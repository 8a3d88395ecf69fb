// Package dterror defines the fatal-error taxonomy from spec.md §7. A
// FatalError always carries enough context (PID, syscall name, kind) to
// produce the single structured log record spec.md §7 requires before
// the tracer tears the container down.
package dterror

import "fmt"

// Kind classifies why the container is aborting, per spec.md §7.
type Kind string

const (
	// KindUnsupportedSyscall covers a disallowed ioctl request, a
	// getpeername on a network socket, or a prlimit64 targeting another
	// process.
	KindUnsupportedSyscall Kind = "unsupported-syscall"
	// KindTraceFacility covers a failed memory/register operation
	// against the tracee.
	KindTraceFacility Kind = "trace-facility-failure"
	// KindIPInconsistency covers a replay rewind whose IP-2 bytes are
	// not a recognized syscall opcode.
	KindIPInconsistency Kind = "ip-inconsistency"
	// KindDeadlock covers the scheduler finding no runnable candidate.
	KindDeadlock Kind = "scheduler-deadlock"
)

// FatalError is an unrecoverable container condition. The tracer loop
// logs it once with PID/syscall/kind, then calls scheduler.KillAll and
// exits non-zero (spec.md §7).
type FatalError struct {
	Kind    Kind
	PID     int
	Syscall string
	Cause   error
}

func (e *FatalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dettrace: fatal (%s) pid=%d syscall=%s: %v", e.Kind, e.PID, e.Syscall, e.Cause)
	}
	return fmt.Sprintf("dettrace: fatal (%s) pid=%d syscall=%s", e.Kind, e.PID, e.Syscall)
}

func (e *FatalError) Unwrap() error { return e.Cause }
