//go:build linux && amd64
// +build linux,amd64

package memio

import (
	"fmt"

	"github.com/Parunzel/dettrace/pkg/arch"
	"golang.org/x/sys/unix"
)

// GetRegs reads the full register set for the tracee, completing
// component C1's register surface (read_arg/write_arg/set_return/
// read_ip/write_ip in spec.md §4.1).
func (m *Mem) GetRegs() (*arch.Registers, error) {
	var regs arch.Registers
	if err := unix.PtraceGetRegs(m.pid, &regs.PtraceRegs); err != nil {
		return nil, fmt.Errorf("memio: get regs for pid %d: %w", m.pid, err)
	}
	return &regs, nil
}

// SetRegs writes the full register set back to the tracee.
func (m *Mem) SetRegs(regs *arch.Registers) error {
	if err := unix.PtraceSetRegs(m.pid, &regs.PtraceRegs); err != nil {
		return fmt.Errorf("memio: set regs for pid %d: %w", m.pid, err)
	}
	return nil
}

// PeekInstruction reads arch.SyscallInstrWidth bytes starting at addr,
// used by the would-have-blocked replay path to validate the
// instruction at IP-2 before rewinding (spec.md §4.5).
func (m *Mem) PeekInstruction(addr uintptr) ([arch.SyscallInstrWidth]byte, error) {
	var out [arch.SyscallInstrWidth]byte
	data, err := m.ReadBytes(addr, arch.SyscallInstrWidth)
	if err != nil {
		return out, err
	}
	copy(out[:], data)
	return out, nil
}
