package arch

// SyscallInstrWidth is the width, in bytes, of every x86-64 syscall-entry
// instruction this design recognizes. All three are two bytes wide,
// which is what makes the instruction-pointer rewind in spec.md §4.5
// exact: IP-2 is unambiguous regardless of which of the three forms the
// tracee used.
const SyscallInstrWidth = 2

// Recognized two-byte opcodes for entering the kernel on x86-64/x86-32,
// per spec.md §4.5's instruction-pointer rewind contract.
const (
	OpcodeInt80     = 0xCD80 // int $0x80 (32-bit legacy syscall gate)
	OpcodeSysenter  = 0x0F34 // sysenter
	OpcodeSyscall64 = 0x0F05 // syscall
)

// IsSyscallOpcode reports whether the two bytes read from IP-2 encode one
// of the recognized syscall-entry instructions. The byte order matches a
// direct memory read: b[0] is the byte at IP-2, b[1] is the byte at IP-1.
func IsSyscallOpcode(b [2]byte) bool {
	word := uint16(b[0])<<8 | uint16(b[1])
	switch word {
	case OpcodeInt80, OpcodeSysenter, OpcodeSyscall64:
		return true
	default:
		return false
	}
}
