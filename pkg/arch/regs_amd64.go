//go:build linux && amd64
// +build linux,amd64

// Package arch provides the syscall register surface required by
// component C1 of the design: six integer arguments, the return value,
// the syscall number, and the instruction pointer, layered on top of
// golang.org/x/sys/unix.PtraceRegs. This mirrors the teacher's own
// pkg/sentry/arch split (an arch-specific register file plus a small,
// architecture-neutral accessor surface) without pulling in the
// teacher's much larger fpu/context-switching machinery, which this
// design has no use for (ptrace register read/write is all we ever do).
package arch

import "golang.org/x/sys/unix"

// Registers is the x86-64 ptrace register surface for one stopped
// tracee. The zero value is not meaningful; populate it via
// golang.org/x/sys/unix.PtraceGetRegs.
type Registers struct {
	unix.PtraceRegs
}

// numArgRegs is the number of integer syscall argument registers on this
// architecture, per the x86-64 System V syscall calling convention (rdi,
// rsi, rdx, r10, r8, r9).
const numArgRegs = 6

// SyscallNo returns the syscall number the tracee is entering or has
// just exited, read from the original-rax slot (the rax register is
// clobbered with the return value by syscall exit, so the kernel
// preserves the original number in orig_rax for ptrace's benefit).
func (r *Registers) SyscallNo() uint64 {
	return r.Orig_rax
}

// SetSyscallNo overwrites the syscall number (the orig_rax slot) about to
// be entered. Used to rewrite pipe->pipe2 (spec.md §4.5) and to
// substitute getpid for an allowlisted ioctl. Would-have-blocked replay
// puts the original number into the return register with SetReturn
// instead.
func (r *Registers) SetSyscallNo(nr uint64) {
	r.Orig_rax = nr
}

// Arg returns integer syscall argument i (0-indexed, 0 <= i < 6).
func (r *Registers) Arg(i int) uint64 {
	switch i {
	case 0:
		return r.Rdi
	case 1:
		return r.Rsi
	case 2:
		return r.Rdx
	case 3:
		return r.R10
	case 4:
		return r.R8
	case 5:
		return r.R9
	default:
		panic("arch: syscall argument index out of range")
	}
}

// SetArg overwrites integer syscall argument i.
func (r *Registers) SetArg(i int, v uint64) {
	switch i {
	case 0:
		r.Rdi = v
	case 1:
		r.Rsi = v
	case 2:
		r.Rdx = v
	case 3:
		r.R10 = v
	case 4:
		r.R8 = v
	case 5:
		r.R9 = v
	default:
		panic("arch: syscall argument index out of range")
	}
}

// Return returns the syscall's return value (post-hook only; meaningless
// at syscall entry).
func (r *Registers) Return() int64 {
	return int64(r.Rax)
}

// SetReturn overwrites the syscall's return value.
func (r *Registers) SetReturn(v int64) {
	r.Rax = uint64(v)
}

// IP returns the instruction pointer.
func (r *Registers) IP() uint64 {
	return r.Rip
}

// SetIP overwrites the instruction pointer. Used by the
// would-have-blocked replay path to rewind past the syscall instruction
// (spec.md §4.5).
func (r *Registers) SetIP(v uint64) {
	r.Rip = v
}

// NumArgRegs reports how many integer argument registers this
// architecture's syscall ABI provides.
func NumArgRegs() int { return numArgRegs }
