// Package config loads the dettrace run configuration from a TOML file,
// the ambient-stack counterpart to the teacher's runsc/config package
// (which builds a Config from command-line flags instead). dettrace has
// no OCI runtime spec to draw from, so its Config is file-based: a
// single TOML document read once at startup via the teacher's declared
// github.com/BurntSushi/toml dependency.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config holds every knob dettrace's run command accepts beyond the
// command line itself.
type Config struct {
	// LogLevel is one of "debug", "info", "warning", "error".
	LogLevel string `toml:"log_level"`

	// LogFile, if non-empty, duplicates the trace log to this path in
	// addition to stderr.
	LogFile string `toml:"log_file"`

	// AllowedIoctls extends the default ioctl allowlist (spec.md §4.5's
	// "reject" policy) with additional request codes a particular
	// workload is known to need, expressed as hex strings (e.g.
	// "0x5413").
	AllowedIoctls []string `toml:"allowed_ioctls"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{LogLevel: "info"}
}

// Load reads and parses the TOML config file at path.
func Load(path string) (*Config, error) {
	conf := Default()
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return nil, fmt.Errorf("config: decode %q: %w", path, err)
	}
	return conf, nil
}
