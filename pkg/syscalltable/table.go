//go:build linux && amd64
// +build linux,amd64

// Package syscalltable implements component C4: the syscall dispatch
// table mapping a syscall number to the determinism policy from
// pkg/handlers that governs it. The table is built once per container
// and never mutated afterwards (spec.md §4.4).
package syscalltable

import (
	"github.com/Parunzel/dettrace/pkg/arch"
	"github.com/Parunzel/dettrace/pkg/handlers"
	"github.com/Parunzel/dettrace/pkg/scheduler"
	"github.com/Parunzel/dettrace/pkg/tracee"
	"golang.org/x/sys/unix"
)

// passThrough is the default entry for any syscall number the table
// does not otherwise name: let it run, log it, ask for no post stop.
// This keeps an unlisted syscall from crashing the tracer outright,
// while still leaving a trace-log record that it happened.
var passThrough = handlers.Descriptor{
	Name: "passthrough",
	Pre: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) (bool, error) {
		t.Log.Debugf("passthrough: syscall %d", regs.SyscallNo())
		return false, nil
	},
}

// Table is the static syscall-number-keyed dispatch table.
type Table struct {
	entries map[uint64]handlers.Descriptor
}

// New builds the dispatch table described by spec.md §4.5's per-syscall
// policy assignments.
func New() *Table {
	t := &Table{entries: make(map[uint64]handlers.Descriptor, 48)}

	// Virtual time.
	t.add(unix.SYS_CLOCK_GETTIME, handlers.ClockGettime)
	t.add(unix.SYS_GETTIMEOFDAY, handlers.Gettimeofday)
	t.add(unix.SYS_TIME, handlers.Time)
	t.add(unix.SYS_GETRUSAGE, handlers.Getrusage)
	t.add(unix.SYS_UTIMENSAT, handlers.Utimensat)

	// Canonical identity and resource stats.
	t.add(unix.SYS_UNAME, handlers.Uname)
	t.add(unix.SYS_SYSINFO, handlers.Sysinfo)
	t.add(unix.SYS_GETRLIMIT, handlers.Getrlimit)
	t.add(unix.SYS_PRLIMIT64, handlers.Prlimit64)
	t.add(unix.SYS_STATFS, handlers.Statfs)
	t.add(unix.SYS_FSTATFS, handlers.Statfs)

	// Deterministic randomness.
	t.add(unix.SYS_GETRANDOM, handlers.Getrandom)

	// Inode virtualization.
	t.add(unix.SYS_STAT, handlers.Stat)
	t.add(unix.SYS_LSTAT, handlers.Lstat)
	t.add(unix.SYS_FSTAT, handlers.Fstat)
	t.add(unix.SYS_NEWFSTATAT, handlers.Newfstatat)

	// Non-blocking conversion + replay.
	t.add(unix.SYS_POLL, handlers.Poll)
	t.add(unix.SYS_WAIT4, handlers.Wait4)
	t.add(unix.SYS_READ, handlers.Read)
	t.add(unix.SYS_PIPE, handlers.Pipe)

	// Reject.
	t.add(unix.SYS_GETPEERNAME, handlers.Getpeername)
	t.add(unix.SYS_IOCTL, handlers.Ioctl)

	// Log-only.
	t.add(unix.SYS_ACCESS, handlers.Access)
	t.add(unix.SYS_CHDIR, handlers.Chdir)
	t.add(unix.SYS_CHMOD, handlers.Chmod)
	t.add(unix.SYS_OPEN, handlers.Open)
	t.add(unix.SYS_OPENAT, handlers.Openat)
	t.add(unix.SYS_MKDIR, handlers.Mkdir)
	t.add(unix.SYS_MKDIRAT, handlers.Mkdirat)
	t.add(unix.SYS_READLINK, handlers.Readlink)
	t.add(unix.SYS_RENAME, handlers.Rename)
	t.add(unix.SYS_UNLINK, handlers.Unlink)
	t.add(unix.SYS_UNLINKAT, handlers.Unlinkat)
	t.add(unix.SYS_EXECVE, handlers.Execve)
	t.add(unix.SYS_FACCESSAT, handlers.Faccessat)
	t.add(unix.SYS_FCHOWNAT, handlers.Fchownat)
	t.add(unix.SYS_TGKILL, handlers.Tgkill)
	t.add(unix.SYS_GETCWD, handlers.Getcwd)
	t.add(unix.SYS_NANOSLEEP, handlers.Nanosleep)
	t.add(unix.SYS_WRITE, handlers.Write)
	t.add(unix.SYS_WRITEV, handlers.Writev)

	return t
}

func (t *Table) add(nr int, d handlers.Descriptor) {
	t.entries[uint64(nr)] = d
}

// Lookup returns the descriptor for syscall number nr, falling back to
// the pass-through/log-only default for anything unregistered.
func (t *Table) Lookup(nr uint64) handlers.Descriptor {
	if d, ok := t.entries[nr]; ok {
		return d
	}
	return passThrough
}
