//go:build linux && amd64
// +build linux,amd64

// Package handlers implements component C5: the per-syscall determinism
// policies tabulated in spec.md §4.5. Each policy is grounded on the
// matching handler style in the teacher's pkg/sentry/syscalls/linux
// (one function per syscall, operating on a task-like context and its
// registers) and, for the memory-access details, on the DataDog ptracer
// and pendulm-fileflip examples in _examples/other_examples.
package handlers

import (
	"time"

	"github.com/Parunzel/dettrace/pkg/arch"
	"github.com/Parunzel/dettrace/pkg/scheduler"
	"github.com/Parunzel/dettrace/pkg/tracee"
	"golang.org/x/time/rate"
)

// logOnlyBurst and logOnlyInterval bound how often a single log-only
// syscall name writes its pathname fields to the trace log. A tracee
// busy-looping on access/open/stat (common in a polling retry) would
// otherwise flood the log at debug level without adding any information
// not already present in the first few lines; grounded on the DataDog
// ptracer's userCacheRefreshLimiter/groupCacheRefreshLimiter use of
// golang.org/x/time/rate to throttle its own noisy, repeated lookups.
const (
	logOnlyInterval = 100 * time.Millisecond
	logOnlyBurst    = 1
)

// logOnlyLimiters holds one rate.Limiter per log-only syscall name,
// shared across every tracee in the container (the table is built once
// and never mutated, so no locking is needed beyond rate.Limiter's own).
var logOnlyLimiters = map[string]*rate.Limiter{}

func limiterFor(name string) *rate.Limiter {
	l, ok := logOnlyLimiters[name]
	if !ok {
		l = rate.NewLimiter(rate.Every(logOnlyInterval), logOnlyBurst)
		logOnlyLimiters[name] = l
	}
	return l
}

// PreHook runs at syscall-entry stop. It may rewrite argument registers
// (saving originals via t.SaveArg so a PostHook can restore them) and
// reports whether a syscall-exit stop is wanted. Returning wantPost=false
// lets the dispatch table resume the tracee without waiting for a
// matching post stop, per spec.md §3's Syscall-handler descriptor
// contract.
type PreHook func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) (wantPost bool, err error)

// PostHook runs at syscall-exit stop (only if the PreHook asked for it).
type PostHook func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error

// Descriptor is the syscall-handler descriptor from spec.md §3: a name
// for logs plus pre/post operations, either of which may be nil (treated
// as a no-op).
type Descriptor struct {
	Name string
	Pre  PreHook
	Post PostHook
}

func noopPre(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) (bool, error) {
	return false, nil
}

func noopPost(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
	return nil
}

// RunPre invokes d.Pre, treating a nil Pre as a no-op that wants a post
// stop exactly when d.Post is set.
func (d *Descriptor) RunPre(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) (bool, error) {
	if d.Pre == nil {
		if _, err := noopPre(t, regs, sched); err != nil {
			return false, err
		}
		return d.Post != nil, nil
	}
	return d.Pre(t, regs, sched)
}

// RunPost invokes d.Post, treating a nil Post as a no-op.
func (d *Descriptor) RunPost(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
	if d.Post == nil {
		return noopPost(t, regs, sched)
	}
	return d.Post(t, regs, sched)
}

// logOnly builds a Descriptor whose pre-hook only logs the syscall's
// pathname-bearing arguments and requests no post stop, per spec.md
// §4.5's "Log-only" strategy row. pathArgs names which integer
// arguments (0-based) are addresses of nul-terminated path strings worth
// logging; pass nil to log only the raw integer arguments.
func logOnly(name string, pathArgs []int) Descriptor {
	limiter := limiterFor(name)
	return Descriptor{
		Name: name,
		Pre: func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) (bool, error) {
			if !limiter.Allow() {
				return false, nil
			}
			if len(pathArgs) == 0 {
				t.Log.Debugf("%s: %#x %#x %#x %#x %#x %#x", name,
					regs.Arg(0), regs.Arg(1), regs.Arg(2), regs.Arg(3), regs.Arg(4), regs.Arg(5))
				return false, nil
			}
			fields := make(map[string]string, len(pathArgs))
			for _, i := range pathArgs {
				addr := regs.Arg(i)
				if addr == 0 {
					continue
				}
				s, err := t.Mem.ReadString(uintptr(addr))
				if err != nil {
					continue
				}
				fields[argName(i)] = s
			}
			t.Log.Debugf("%s: %v", name, fields)
			return false, nil
		},
	}
}

func argName(i int) string {
	names := [...]string{"arg0", "arg1", "arg2", "arg3", "arg4", "arg5"}
	if i < 0 || i >= len(names) {
		return "argN"
	}
	return names[i]
}
