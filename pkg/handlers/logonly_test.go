//go:build linux && amd64
// +build linux,amd64

package handlers

import (
	"testing"

	"github.com/Parunzel/dettrace/pkg/arch"
	"github.com/Parunzel/dettrace/pkg/clock"
	"github.com/Parunzel/dettrace/pkg/tracee"
)

// TestLogOnlyRequestsNoPostStop checks the "log-only" policy contract
// from spec.md §4.5: the pre-hook never asks for a post stop, regardless
// of whether the rate limiter let this call through.
func TestLogOnlyRequestsNoPostStop(t *testing.T) {
	tr := tracee.New(1, clock.NewInodeMap())
	var regs arch.Registers

	wantPost, err := Getcwd.RunPre(tr, &regs, nil)
	if err != nil {
		t.Fatalf("RunPre: %v", err)
	}
	if wantPost {
		t.Fatalf("log-only handler requested a post stop")
	}
}

// TestLogOnlyRateLimited exercises the diagnostic rate limiter added
// around every log-only syscall name: a burst of back-to-back calls for
// the same name must not all pass the limiter, since logOnlyBurst is 1.
func TestLogOnlyRateLimited(t *testing.T) {
	tr := tracee.New(1, clock.NewInodeMap())
	var regs arch.Registers

	limiter := limiterFor("test-rate-limited-syscall")
	allowed := 0
	for i := 0; i < 10; i++ {
		if limiter.Allow() {
			allowed++
		}
	}
	if allowed >= 10 {
		t.Fatalf("expected the rate limiter to suppress some of 10 back-to-back calls, allowed=%d", allowed)
	}

	// The handler built on top of the same limiter must still run
	// without error regardless of whether it is throttled this tick.
	if _, err := Tgkill.RunPre(tr, &regs, nil); err != nil {
		t.Fatalf("RunPre: %v", err)
	}
}
