// Package scheduler implements component C6: the deterministic
// cooperative scheduler that decides, after each trace stop, which
// traced process runs next.
//
// This is a direct Go translation of the discipline described in
// _examples/original_source/include/scheduler.hpp (the dettrace C++
// original's `scheduler` class): two max-priority partitions over PIDs,
// "runnable" and "blocked", highest-PID-first, with the runnable/blocked
// roles swapping once runnable drains. Where the original uses two
// std::priority_queue<pid_t>, this uses two github.com/google/btree
// trees (the teacher's own ordered-collection dependency, declared in
// its go.mod) ordered by PID descending, since a priority_queue doesn't
// by itself support the "remove a specific non-top PID" operation
// spec.md §4.6 requires (removeNotTop) — a balanced tree does, in
// O(log n) instead of the original's linear scan, while keeping the
// same max-first semantics for everything else.
package scheduler

import (
	"fmt"

	"github.com/google/btree"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sys/unix"
)

// degree is the btree branching factor. The partitions rarely hold more
// than a handful of live PIDs at once, so this is not performance
// sensitive; a small constant matches typical google/btree usage.
const degree = 8

// PreemptOption selects what happens to the currently running PID when
// it is preempted, mirroring preemptOptions in scheduler.hpp.
type PreemptOption int

const (
	// Runnable rotates the preempted PID back into the runnable
	// partition (it keeps its turn later, but yields now).
	Runnable PreemptOption = iota
	// MarkAsBlocked moves the preempted PID into the blocked partition
	// (it issued a would-have-blocked syscall; see spec.md §4.5).
	MarkAsBlocked
)

// pidItem orders PIDs by ascending value, so Max() on the tree yields the
// largest live PID, matching "highest PID first" (spec.md §4.6).
type pidItem int

func (p pidItem) Less(than btree.Item) bool {
	return int(p) < int(than.(pidItem))
}

// DeadlockError is returned by the *AndScheduleNext operations when no
// tracee can be made runnable, per spec.md §4.6/§7. GetNext never
// returns it.
type DeadlockError struct {
	CallsToScheduleNextProcess uint32
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("scheduler: deadlock detected after %d scheduling decisions: no process can be made runnable", e.CallsToScheduleNextProcess)
}

// EmptyError is returned by GetNext when both partitions are empty and no
// deadlock condition applies (the container has simply finished).
type EmptyError struct{}

func (e *EmptyError) Error() string { return "scheduler: no process scheduled" }

// Scheduler holds the runnable/blocked partitions and the "next PID to
// resume" slot described in spec.md §3.
type Scheduler struct {
	runnable *btree.BTree
	blocked  *btree.BTree

	next    int
	hasNext bool

	// CallsToScheduleNextProcess is a monotonically increasing
	// diagnostic counter, per spec.md §4.6.
	CallsToScheduleNextProcess uint32

	// Deadlock bookkeeping: progressed is set whenever a PID is newly
	// added or definitively removed (finished) since the last partition
	// swap. swaps counts completed swaps. If a swap occurs with
	// progressed still false and swaps > 0 (i.e. this isn't the very
	// first swap), nothing made forward progress during the prior
	// epoch and the scheduler is deadlocked.
	progressed bool
	swaps      int
}

// New returns an empty scheduler. The first PID (the initial tracee) must
// be added via AddAndScheduleNext before the first GetNext call.
func New() *Scheduler {
	return &Scheduler{
		runnable: btree.New(degree),
		blocked:  btree.New(degree),
	}
}

func (s *Scheduler) setNext(pid int) {
	s.next = pid
	s.hasNext = true
}

// GetNext is a read-only peek at the next PID to resume. It is
// idempotent until another state-mutating operation runs (spec.md
// §4.6 invariant).
func (s *Scheduler) GetNext() (int, error) {
	if !s.hasNext {
		return 0, &EmptyError{}
	}
	return s.next, nil
}

// scheduleNextProcess implements scheduler.hpp's private
// scheduleNextProcess(): pick the next PID based on whether runnable is
// empty, swapping partitions (and checking for deadlock) if so.
func (s *Scheduler) scheduleNextProcess() error {
	s.CallsToScheduleNextProcess++

	if s.runnable.Len() == 0 {
		if s.blocked.Len() == 0 {
			// Nothing left anywhere: not a deadlock, just done. The
			// tracer loop is expected to have already returned
			// done=true from RemoveAndScheduleNext in this case; this
			// branch only guards MarkFinishedAndScheduleNext being
			// called again afterward.
			s.hasNext = false
			return &EmptyError{}
		}

		if s.swaps > 0 && !s.progressed {
			return &DeadlockError{CallsToScheduleNextProcess: s.CallsToScheduleNextProcess}
		}

		s.runnable, s.blocked = s.blocked, s.runnable
		s.swaps++
		s.progressed = false

		if s.runnable.Len() == 0 {
			s.hasNext = false
			return &EmptyError{}
		}
	}

	top := s.runnable.Max().(pidItem)
	s.setNext(int(top))
	return nil
}

// AddAndScheduleNext inserts pid into the runnable partition and selects
// the highest runnable PID as the next process to resume (spec.md §4.6).
// That is pid itself when pid is the largest live PID, as a newly forked
// child is.
func (s *Scheduler) AddAndScheduleNext(pid int) error {
	s.runnable.ReplaceOrInsert(pidItem(pid))
	s.progressed = true
	return s.scheduleNextProcess()
}

// MarkFinishedAndScheduleNext is a no-op on the partitions themselves:
// per spec.md §4.6, a process that has reached syscall-level exit is not
// removed from the scheduler until its children finish and its own
// ptrace exit event arrives (RemoveAndScheduleNext). This method exists
// to mirror markFinishedAndScheduleNext in scheduler.hpp and to select a
// new next PID so the caller can resume someone else while this one
// waits on its children.
func (s *Scheduler) MarkFinishedAndScheduleNext() error {
	return s.scheduleNextProcess()
}

// PreemptAndScheduleNext removes the current top of the runnable
// partition and either rotates it back into runnable or moves it into
// blocked, then selects a new next PID (spec.md §4.6).
func (s *Scheduler) PreemptAndScheduleNext(option PreemptOption) error {
	top, ok := s.runnable.Max().(pidItem)
	if !ok {
		return fmt.Errorf("scheduler: preempt with empty runnable partition")
	}
	s.runnable.DeleteMax()

	switch option {
	case MarkAsBlocked:
		s.blocked.ReplaceOrInsert(top)
	default:
		s.runnable.ReplaceOrInsert(top)
	}

	return s.scheduleNextProcess()
}

// remove deletes pid from whichever partition holds it.
func (s *Scheduler) remove(pid int) bool {
	if s.runnable.Delete(pidItem(pid)) != nil {
		return true
	}
	if s.blocked.Delete(pidItem(pid)) != nil {
		return true
	}
	return false
}

// RemoveAndScheduleNext removes pid (expected at the top of runnable or
// blocked in the common path) and schedules the next process. It
// reports done=true once both partitions are empty, which ends the
// tracer loop (spec.md §4.6).
func (s *Scheduler) RemoveAndScheduleNext(pid int) (done bool, err error) {
	s.remove(pid)
	s.progressed = true

	if s.runnable.Len() == 0 && s.blocked.Len() == 0 {
		s.hasNext = false
		return true, nil
	}

	if err := s.scheduleNextProcess(); err != nil {
		return false, err
	}
	return false, nil
}

// RemoveNotTop removes a process that is not necessarily at the top of
// its partition (e.g. group-kill of a non-current tracee), per spec.md
// §4.6. It does not change the "next" selection.
func (s *Scheduler) RemoveNotTop(pid int) {
	if s.remove(pid) {
		s.progressed = true
	}
}

// KillAll sends SIGKILL to every PID held in either partition, used
// during teardown on a fatal error (spec.md §4.6, §7). Individual kill
// failures (the process may already be gone) are aggregated rather than
// aborting the sweep early, mirroring the teardown posture of
// multi-process kill paths like the teacher's subprocess pool teardown.
func (s *Scheduler) KillAll() error {
	var result error
	kill := func(i btree.Item) bool {
		pid := int(i.(pidItem))
		if err := unix.Kill(pid, unix.SIGKILL); err != nil {
			result = multierror.Append(result, fmt.Errorf("kill pid %d: %w", pid, err))
		}
		return true
	}
	s.runnable.Ascend(kill)
	s.blocked.Ascend(kill)
	s.runnable = btree.New(degree)
	s.blocked = btree.New(degree)
	s.hasNext = false
	return result
}

// RunnableLen and BlockedLen expose partition sizes for diagnostics and
// tests.
func (s *Scheduler) RunnableLen() int { return s.runnable.Len() }
func (s *Scheduler) BlockedLen() int  { return s.blocked.Len() }

// Contains reports which partition, if any, holds pid. Used by tests to
// check the partition-exclusivity invariant (spec.md §8 property 4).
func (s *Scheduler) Contains(pid int) (runnable, blocked bool) {
	return s.runnable.Has(pidItem(pid)), s.blocked.Has(pidItem(pid))
}
