//go:build linux && amd64
// +build linux,amd64

package arch

import "testing"

func TestArgRoundTrip(t *testing.T) {
	var r Registers
	vals := []uint64{11, 22, 33, 44, 55, 66}
	for i, v := range vals {
		r.SetArg(i, v)
	}
	for i, v := range vals {
		if got := r.Arg(i); got != v {
			t.Fatalf("Arg(%d) = %d, want %d", i, got, v)
		}
	}
}

func TestSyscallNoRoundTrip(t *testing.T) {
	var r Registers
	r.SetSyscallNo(57) // fork
	if got := r.SyscallNo(); got != 57 {
		t.Fatalf("SyscallNo() = %d, want 57", got)
	}
}

func TestReturnRoundTrip(t *testing.T) {
	var r Registers
	r.SetReturn(-11) // -EAGAIN
	if got := r.Return(); got != -11 {
		t.Fatalf("Return() = %d, want -11", got)
	}
}

func TestIPRoundTrip(t *testing.T) {
	var r Registers
	r.SetIP(0x400000)
	if got := r.IP(); got != 0x400000 {
		t.Fatalf("IP() = %#x, want %#x", got, 0x400000)
	}
}
