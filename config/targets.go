package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	ncerr "tcpprobe/internal/errors"
	"tcpprobe/util"
)

// Target is one host/port pair to probe.
type Target struct {
	Name    string        `yaml:"name"`
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

// Addr returns "host:port".
func (t Target) Addr() string { return util.FormatAddr(t.Host, t.Port) }

// Label is the name used in output and metric labels.
func (t Target) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Addr()
}

// Validate applies the same rules as probe construction.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Host) == "" {
		return &ncerr.ConfigError{
			Field:   "targets.host",
			Value:   t.Name,
			Message: "hostname is required",
		}
	}
	if !ValidPort(t.Port) {
		return &ncerr.ConfigError{
			Field:   "targets.port",
			Value:   t.Port,
			Message: "out of range 1-65535",
			Hint:    fmt.Sprintf("check the entry for %s", t.Host),
		}
	}
	if t.Timeout < 0 {
		return ncerr.Invalid("targets.timeout", t.Timeout, "must not be negative")
	}
	return nil
}

// TargetsFile is the on-disk YAML layout read by -f.
type TargetsFile struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
	Targets  []Target      `yaml:"targets"`
}

// LoadTargets reads and validates a YAML targets file.  The file-level
// timeout is kept on the TargetsFile; Apply resolves it against the
// flags and environment.
func LoadTargets(path string) (TargetsFile, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return TargetsFile{}, &ncerr.ConfigError{
			Field:   "targets",
			Value:   path,
			Message: "file does not exist",
		}
	}
	if err != nil {
		return TargetsFile{}, fmt.Errorf("read targets: %w", err)
	}

	var tf TargetsFile
	if err := yaml.Unmarshal(content, &tf); err != nil {
		return TargetsFile{}, fmt.Errorf("parse targets %s: %w", path, err)
	}
	if len(tf.Targets) == 0 {
		return TargetsFile{}, &ncerr.ConfigError{
			Field:   "targets",
			Value:   path,
			Message: "no targets defined",
		}
	}

	for i := range tf.Targets {
		if err := tf.Targets[i].Validate(); err != nil {
			return TargetsFile{}, fmt.Errorf("targets[%d]: %w", i, err)
		}
	}
	return tf, nil
}

// Apply merges file-level settings into c where the CLI and environment
// left them unset.
func (tf TargetsFile) Apply(c *Config) {
	if c.Watch && c.Interval <= 0 {
		c.Interval = tf.Interval
		if c.Interval <= 0 {
			c.Interval = DefaultWatchInterval
		}
	}
	c.ResolveTargets(tf.Targets, tf.Timeout)
}
