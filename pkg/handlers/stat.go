//go:build linux && amd64
// +build linux,amd64

package handlers

import (
	"github.com/Parunzel/dettrace/pkg/arch"
	"github.com/Parunzel/dettrace/pkg/scheduler"
	"github.com/Parunzel/dettrace/pkg/tracee"
	"golang.org/x/sys/unix"
)

// rewriteStat applies the "inode virtualization" policy from spec.md
// §4.5 to an already-filled struct stat at addr: zero the three
// timestamps, pin st_dev/st_rdev/st_nlink/st_blksize/st_blocks to fixed
// values, and remap st_ino through the container's shared InodeMap.
// st_mode and st_size are the only host-observed fields preserved
// as-is.
func rewriteStat(t *tracee.Tracee, addr uintptr) error {
	st, err := memReadRecord[unix.Stat_t](t, addr)
	if err != nil {
		return err
	}

	st.Ino = t.Inodes.LookupOrAssign(st.Ino)
	st.Dev = 1
	st.Rdev = 1
	st.Nlink = 1
	st.Blksize = 512
	st.Blocks = 1
	st.Atim = unix.Timespec{}
	st.Mtim = unix.Timespec{}
	st.Ctim = unix.Timespec{}

	return memWriteRecord(t, addr, st)
}

func statPost(statArg int) PostHook {
	return func(t *tracee.Tracee, regs *arch.Registers, sched *scheduler.Scheduler) error {
		if regs.Return() != 0 {
			return nil
		}
		return rewriteStat(t, uintptr(regs.Arg(statArg)))
	}
}

// Stat implements stat(2): path at arg0, struct stat* at arg1.
var Stat = Descriptor{Name: "stat", Post: statPost(1)}

// Lstat implements lstat(2): path at arg0, struct stat* at arg1.
var Lstat = Descriptor{Name: "lstat", Post: statPost(1)}

// Fstat implements fstat(2): fd at arg0, struct stat* at arg1.
var Fstat = Descriptor{Name: "fstat", Post: statPost(1)}

// Newfstatat implements newfstatat(2): dirfd, path, struct stat* at
// arg2, flags.
var Newfstatat = Descriptor{Name: "newfstatat", Post: statPost(2)}
