//go:build linux && amd64
// +build linux,amd64

package main

import (
	"context"
	"flag"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Parunzel/dettrace/internal/config"
	"github.com/Parunzel/dettrace/pkg/detlog"
	"github.com/Parunzel/dettrace/pkg/handlers"
	"github.com/Parunzel/dettrace/pkg/tracer"
	"github.com/google/subcommands"
)

// runCmd implements subcommands.Command for "run", the only command
// that actually traces a program, grounded on the teacher's runsc/cmd
// Run command shape (a flag for the config file instead of an OCI
// bundle path, since dettrace has no container runtime spec to load).
type runCmd struct {
	configPath string
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run a program under a deterministic trace" }
func (*runCmd) Usage() string {
	return "run [-config path] -- <program> [args...]\n"
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.configPath, "config", "", "path to a dettrace TOML config file")
}

func (r *runCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	argv := f.Args()
	if len(argv) == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	conf := config.Default()
	if r.configPath != "" {
		loaded, err := config.Load(r.configPath)
		if err != nil {
			detlog.New(0).Errorf("%v", err)
			return subcommands.ExitFailure
		}
		conf = loaded
	}

	if err := detlog.SetLevel(conf.LogLevel); err != nil {
		detlog.New(0).Errorf("%v", err)
		return subcommands.ExitFailure
	}
	if conf.LogFile != "" {
		lf, err := os.OpenFile(conf.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			detlog.New(0).Errorf("config: open log_file %q: %v", conf.LogFile, err)
			return subcommands.ExitFailure
		}
		detlog.SetOutput(io.MultiWriter(os.Stderr, lf))
	}
	for _, hex := range conf.AllowedIoctls {
		req, err := strconv.ParseUint(strings.TrimPrefix(hex, "0x"), 16, 64)
		if err != nil {
			detlog.New(0).Errorf("config: invalid allowed_ioctls entry %q: %v", hex, err)
			return subcommands.ExitFailure
		}
		handlers.AllowIoctl(req)
	}

	tr := tracer.New()
	if err := tr.Run(argv); err != nil {
		detlog.New(0).Errorf("run failed: %v", err)
		return subcommands.ExitFailure
	}

	// The container's own exit status must equal the root tracee's
	// (spec.md §6): subcommands.ExitStatus only carries three fixed
	// values, so bypass it and terminate with the real code directly,
	// the same way a shell's own exec replacement would.
	os.Exit(tr.ExitCode())
	return subcommands.ExitSuccess
}
