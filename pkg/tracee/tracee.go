// Package tracee implements component C3: the per-tracee state record
// described in spec.md §3. One Tracee exists per live traced process; it
// is created when the parent's fork/clone/vfork event is observed and
// destroyed only once the scheduler has removed it (see pkg/scheduler),
// matching the lifecycle note in spec.md §3.
package tracee

import (
	"github.com/Parunzel/dettrace/pkg/clock"
	"github.com/Parunzel/dettrace/pkg/detlog"
	"github.com/Parunzel/dettrace/pkg/memio"
)

// numSavedArgs is the number of integer-width argument slots saved across
// a pre-hook rewrite, per spec.md §3 ("three integer-width slots
// sufficient to restore rewritten arguments on post-hook").
const numSavedArgs = 3

// InFlightSyscall describes the syscall descriptor currently executing in
// a tracee, set on pre-hook and cleared on post-hook. The concrete
// descriptor type lives in pkg/handlers; tracee only needs to hold an
// opaque handle plus the syscall number, so this package has no import
// cycle with pkg/handlers.
type InFlightSyscall struct {
	Nr      uint64
	Name    string
	Handler interface{}
}

// Tracee is one traced process's state.
type Tracee struct {
	PID   int
	Clock *clock.LogicalClock
	// Inodes is shared by pointer across every Tracee in the same
	// container; it is never copied on fork (spec.md §3, §4.3).
	Inodes *clock.InodeMap
	Mem    *memio.Mem
	Log    *detlog.Logger

	savedArgs   [numSavedArgs]uint64
	savedArgSet [numSavedArgs]bool

	inFlight *InFlightSyscall
}

// New creates a record for a freshly observed tracee. inodes must be the
// container-shared InodeMap; passing a fresh one per tracee would violate
// the sharing invariant in spec.md §3.
func New(pid int, inodes *clock.InodeMap) *Tracee {
	return &Tracee{
		PID:    pid,
		Clock:  clock.NewLogicalClock(),
		Inodes: inodes,
		Mem:    memio.New(pid),
		Log:    detlog.New(pid),
	}
}

// SaveArg records the pre-rewrite value of argument slot i (0, 1, or 2)
// so a post-hook can restore it before the tracee observes post-call
// state. Slot indices are independent of the syscall's own argument
// index; callers choose which rewritten arguments are worth restoring.
func (t *Tracee) SaveArg(slot int, v uint64) {
	t.savedArgs[slot] = v
	t.savedArgSet[slot] = true
}

// SavedArg returns the value previously saved into slot, and whether
// anything was saved there since the last Clear.
func (t *Tracee) SavedArg(slot int) (uint64, bool) {
	return t.savedArgs[slot], t.savedArgSet[slot]
}

// ClearSavedArgs discards all saved-argument slots. Called once a
// post-hook has restored (or deliberately not restored) every slot it
// used, so a stale saved value from a previous syscall can never leak
// into the next one.
func (t *Tracee) ClearSavedArgs() {
	t.savedArgs = [numSavedArgs]uint64{}
	t.savedArgSet = [numSavedArgs]bool{}
}

// SetInFlight records the descriptor of the syscall this tracee is
// currently inside, from pre-hook to post-hook.
func (t *Tracee) SetInFlight(s *InFlightSyscall) {
	t.inFlight = s
}

// InFlight returns the currently in-flight syscall descriptor, or nil if
// none (the tracee is not between a pre- and post-hook).
func (t *Tracee) InFlight() *InFlightSyscall {
	return t.inFlight
}

// ClearInFlight clears the in-flight marker, called on post-hook
// completion and on exec (spec.md §4.7: "preserve per-tracee state
// except reset any in-flight marker").
func (t *Tracee) ClearInFlight() {
	t.inFlight = nil
}

// Fork returns a new Tracee for childPID, inheriting this container's
// shared inode map but starting its own logical clock at zero (spec.md
// §9 open question, resolved in SPEC_FULL.md §4.8: reset-to-zero).
func (t *Tracee) Fork(childPID int) *Tracee {
	return New(childPID, t.Inodes)
}
