//go:build linux && amd64
// +build linux,amd64

package handlers

// The "log-only" policy from spec.md §4.5: let the syscall run
// unmodified, only logging it (and any pathname arguments) at debug
// level for the run's trace log. Each entry below names which argument
// indices are nul-terminated path strings worth resolving.
var (
	Access    = logOnly("access", []int{0})
	Chdir     = logOnly("chdir", []int{0})
	Chmod     = logOnly("chmod", []int{0})
	Open      = logOnly("open", []int{0})
	Openat    = logOnly("openat", []int{1})
	Mkdir     = logOnly("mkdir", []int{0})
	Mkdirat   = logOnly("mkdirat", []int{1})
	Readlink  = logOnly("readlink", []int{0})
	Rename    = logOnly("rename", []int{0, 1})
	Unlink    = logOnly("unlink", []int{0})
	Unlinkat  = logOnly("unlinkat", []int{1})
	Execve    = logOnly("execve", []int{0})
	Faccessat = logOnly("faccessat", []int{1})
	Fchownat  = logOnly("fchownat", []int{1})
	Tgkill    = logOnly("tgkill", nil)
	Getcwd    = logOnly("getcwd", nil)

	// Nanosleep and Write/Writev are resolved Open Questions (see
	// SPEC_FULL.md §4.8): rather than a canonical duration or a
	// short-write contract, they pass through untouched and are only
	// recorded in the trace log.
	Nanosleep = logOnly("nanosleep", nil)
	Write     = logOnly("write", nil)
	Writev    = logOnly("writev", nil)
)
