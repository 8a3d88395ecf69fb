//go:build linux && amd64
// +build linux,amd64

package tracer

import (
	"os"
	"os/exec"
	"testing"
)

// These tests exercise the full tracer loop against a real tracee and
// therefore need CAP_SYS_PTRACE and a live Linux kernel — not something a
// hermetic CI sandbox reliably grants. They are opt-in via
// DETTRACE_INTEGRATION=1, the same gate the teacher's own sandbox-dependent
// runsc tests use for anything that needs a real container runtime rather
// than a fake. Each documents the scenario from spec.md §8 it stands in
// for.

func skipUnlessIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("DETTRACE_INTEGRATION") == "" {
		t.Skip("set DETTRACE_INTEGRATION=1 to run ptrace-backed scenario tests")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("no shell available: %v", err)
	}
}

// TestScenarioSleepDeterminism stands in for S1 with a fixed-bound
// counter loop (no real-time alarm is installed): two traced runs must
// print the same counter value.
func TestScenarioSleepDeterminism(t *testing.T) {
	skipUnlessIntegration(t)

	run := func() string {
		tr := New()
		out, err := runCapturingStdout(t, tr, []string{"sh", "-c", "i=0; while [ $i -lt 200000 ]; do i=$((i+1)); done; echo $i"})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return out
	}

	first := run()
	second := run()
	if first != second {
		t.Fatalf("counter output not deterministic across runs: %q vs %q", first, second)
	}
}

// TestScenarioNestedForkOrdering is S2: two children forked in sequence
// must be scheduled child-first (highest PID), so stdout ordering across
// runs is identical.
func TestScenarioNestedForkOrdering(t *testing.T) {
	skipUnlessIntegration(t)

	script := `sh -c 'echo parent-start; (sh -c "echo child-a") & (sh -c "echo child-b") & wait; echo parent-end'`
	run := func() string {
		tr := New()
		out, err := runCapturingStdout(t, tr, []string{"sh", "-c", script})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return out
	}

	first := run()
	second := run()
	if first != second {
		t.Fatalf("fork interleaving not deterministic: %q vs %q", first, second)
	}
}

// TestScenarioStatRoundTrip stands in for S4: a traced run that stats the
// same file twice must complete without a fatal error. It does not
// compare the st_ino values the tracee observes.
func TestScenarioStatRoundTrip(t *testing.T) {
	skipUnlessIntegration(t)

	f, err := os.CreateTemp("", "dettrace-stat-*")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer os.Remove(f.Name())
	f.Close()

	tr := New()
	if err := tr.Run([]string{"sh", "-c", "stat " + f.Name() + " >/dev/null && stat " + f.Name() + " >/dev/null"}); err != nil {
		t.Fatalf("run: %v", err)
	}
}

// TestScenarioUnsupportedIoctlAborts is S6: an ioctl outside the allowed
// request set must abort the container with a non-zero exit rather than
// let the host-specific result leak into the trace.
func TestScenarioUnsupportedIoctlAborts(t *testing.T) {
	skipUnlessIntegration(t)

	tr := New()
	err := tr.Run([]string{"sh", "-c", "exec 3<>/dev/tty; echo unreachable"})
	if err == nil {
		t.Fatalf("expected a fatal error from an unsupported ioctl, got none")
	}
}

// TestScenarioExitCodePropagation checks spec.md §6: the container's own
// exit status must mirror the root tracee's, not just report success
// whenever the trace machinery itself didn't fail.
func TestScenarioExitCodePropagation(t *testing.T) {
	skipUnlessIntegration(t)

	tr := New()
	if err := tr.Run([]string{"sh", "-c", "exit 17"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := tr.ExitCode(); got != 17 {
		t.Fatalf("ExitCode() = %d, want 17", got)
	}
}

// runCapturingStdout runs argv under tr and returns its captured stdout.
// Run() itself wires stdout straight to os.Stdout (matching the teacher's
// exec.Cmd plumbing), so tests that need the output redirect through a
// pipe file instead of asserting on process exit alone.
func runCapturingStdout(t *testing.T, tr *Tracer, argv []string) (string, error) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}
	defer r.Close()

	old := os.Stdout
	os.Stdout = w
	runErr := tr.Run(argv)
	os.Stdout = old
	w.Close()

	buf := make([]byte, 4096)
	n, _ := r.Read(buf)
	return string(buf[:n]), runErr
}
