// Package detlog provides the structured logging facility shared by every
// package in this module. It wraps logrus the way runsc/cli wraps its own
// emitter: one process-wide level, one destination, PID-tagged fields on
// every fatal record.
package detlog

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is a thin, PID-scoped handle onto the shared logrus instance.
// Per-tracee state carries one of these so log lines are automatically
// tagged with the owning PID.
type Logger struct {
	pid int
}

var (
	mu   sync.Mutex
	base = newBase()
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel sets the process-wide log level. Valid names: "debug", "info",
// "warn", "error".
func SetLevel(level string) error {
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	base.SetLevel(lv)
	return nil
}

// SetOutput redirects the shared logger's destination, mirroring the
// teacher's --debug-log-fd handling in runsc/cli.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base.SetOutput(w)
}

// New returns a Logger scoped to pid. pid may be 0 before a tracee's PID
// is known (e.g. before the initial fork).
func New(pid int) *Logger {
	return &Logger{pid: pid}
}

func (l *Logger) entry() *logrus.Entry {
	return base.WithField("pid", l.pid)
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, args ...interface{}) { l.entry().Debugf(format, args...) }

// Infof logs at info level.
func (l *Logger) Infof(format string, args ...interface{}) { l.entry().Infof(format, args...) }

// Warningf logs at warning level.
func (l *Logger) Warningf(format string, args ...interface{}) { l.entry().Warnf(format, args...) }

// Errorf logs at error level.
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry().Errorf(format, args...) }

// Fatalf logs a structured fatal record. Unlike logrus.Fatalf, it does not
// call os.Exit: callers (pkg/tracer) own the shutdown sequence (kill_all,
// then exit), so they must be able to log the condition before tearing
// anything down.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.entry().Errorf("FATAL: "+format, args...)
}

// WithSyscall returns a derived entry carrying a syscall name field, used
// by fatal-error logging to match spec.md §7's "PID, syscall name,
// condition" record shape.
func (l *Logger) WithSyscall(name string) *logrus.Entry {
	return l.entry().WithField("syscall", name)
}
