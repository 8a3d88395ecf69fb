package clock

import "testing"

func TestInodeMapInjective(t *testing.T) {
	m := NewInodeMap()

	v1 := m.LookupOrAssign(1000)
	v2 := m.LookupOrAssign(2000)
	v1Again := m.LookupOrAssign(1000)

	if v1 != v1Again {
		t.Fatalf("lookup not stable: first=%d second=%d", v1, v1Again)
	}
	if v1 == v2 {
		t.Fatalf("distinct real inodes mapped to the same virtual inode: %d", v1)
	}
	if v1 != inodeBase {
		t.Fatalf("first assignment = %d, want base %d", v1, inodeBase)
	}
	if v2 != inodeBase+1 {
		t.Fatalf("second assignment = %d, want %d", v2, inodeBase+1)
	}
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
}

func TestInodeMapFirstSightOrder(t *testing.T) {
	m := NewInodeMap()
	reals := []uint64{50, 10, 99, 10, 50, 7}
	var assigned []uint64
	seen := make(map[uint64]uint64)

	for _, r := range reals {
		v := m.LookupOrAssign(r)
		if prior, ok := seen[r]; ok && prior != v {
			t.Fatalf("real inode %d reassigned: %d -> %d", r, prior, v)
		}
		seen[r] = v
		assigned = append(assigned, v)
	}

	// Distinct reals in first-sight order: 50, 10, 99, 7 -> bases 1..4.
	want := []uint64{1, 2, 3, 2, 1, 4}
	for i, w := range want {
		if assigned[i] != w {
			t.Fatalf("assignment[%d] = %d, want %d", i, assigned[i], w)
		}
	}
}
