package clock

// inodeBase is the first virtual inode number assigned in a container, per
// spec.md §3.
const inodeBase uint64 = 1

// InodeMap is an insertion-ordered, injective mapping from a tracee's real
// filesystem inode number to a stable, dense virtual inode number. It is
// owned by the container (shared by pointer across every tracee.Tracee in
// that container, never copied), so sibling processes that stat the same
// real file observe the same virtual inode.
type InodeMap struct {
	realToVirtual map[uint64]uint64
	next          uint64
}

// NewInodeMap returns an empty map ready to assign from inodeBase.
func NewInodeMap() *InodeMap {
	return &InodeMap{
		realToVirtual: make(map[uint64]uint64),
		next:          inodeBase,
	}
}

// LookupOrAssign returns the virtual inode for real, assigning the next
// free virtual id in first-sight order if real has not been seen before.
// Assignment order is deterministic given the deterministic scheduler
// that drives all callers (spec.md §4.2).
func (m *InodeMap) LookupOrAssign(real uint64) uint64 {
	if v, ok := m.realToVirtual[real]; ok {
		return v
	}
	v := m.next
	m.next++
	m.realToVirtual[real] = v
	return v
}

// Len reports how many distinct real inodes have been observed so far.
func (m *InodeMap) Len() int {
	return len(m.realToVirtual)
}
