package arch

import "testing"

func TestIsSyscallOpcode(t *testing.T) {
	cases := []struct {
		name string
		b    [2]byte
		want bool
	}{
		{"int80", [2]byte{0xCD, 0x80}, true},
		{"sysenter", [2]byte{0x0F, 0x34}, true},
		{"syscall", [2]byte{0x0F, 0x05}, true},
		{"nop-nop", [2]byte{0x90, 0x90}, false},
		{"mov-eax", [2]byte{0xB8, 0x00}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IsSyscallOpcode(c.b); got != c.want {
				t.Fatalf("IsSyscallOpcode(%v) = %v, want %v", c.b, got, c.want)
			}
		})
	}
}
