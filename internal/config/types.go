package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config is the daemon's root configuration.
//
// Files may be JSON or YAML; YAML is coerced to JSON so both formats share
// the strict decoder (unknown fields are rejected).
type Config struct {
	Log      LogConfig      `json:"log"`
	Storage  StorageConfig  `json:"storage"`
	Watchdog WatchdogConfig `json:"watchdog"`
	Debug    DebugConfig    `json:"debug"`
	Jobs     JobsConfig     `json:"jobs"`
}

type LogConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled   bool   `json:"enabled"`
	Path      string `json:"path"`
	MaxPerSec int    `json:"max_per_sec"`
}

// StorageConfig selects the run-history backend.
// Driver: "none" (or empty), "file", or "sqlite".
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout"` // sqlite only
}

type WatchdogConfig struct {
	Enabled bool `json:"enabled"`
}

// DebugConfig controls the operator HTTP endpoint (status + pprof).
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr"`
	Token         string `json:"token"`
	AllowInsecure bool   `json:"allow_insecure"`
}

type JobsConfig struct {
	Enabled     bool        `json:"enabled"`
	Workers     int         `json:"workers"`
	QueueSize   int         `json:"queue_size"`
	Timeout     string      `json:"timeout"` // default per-job timeout
	HistorySize int         `json:"history_size"`
	Defs        []JobConfig `json:"defs"`
}

// JobConfig is one scheduled command.
//
// Schedule accepts cron expressions ("*/5 * * * *", "@hourly"), Go durations
// ("90s", "2h30m") and HH:MM intervals ("01:30").
type JobConfig struct {
	Name     string   `json:"name"`
	Schedule string   `json:"schedule"`
	Command  []string `json:"command"`
	Timeout  string   `json:"timeout"`
	Disabled bool     `json:"disabled"`
}

// Validate checks structural problems the decoder cannot catch. Schedule
// strings are validated by the jobs service at registration time.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if _, err := ParseDurationField("jobs.timeout", c.Jobs.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}

	seen := map[string]struct{}{}
	for i, j := range c.Jobs.Defs {
		name := strings.TrimSpace(j.Name)
		if name == "" {
			return fmt.Errorf("jobs.defs[%d]: name required", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("jobs.defs[%d]: duplicate name %q", i, name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(j.Schedule) == "" {
			return fmt.Errorf("jobs.defs[%d] (%s): schedule required", i, name)
		}
		if len(j.Command) == 0 || strings.TrimSpace(j.Command[0]) == "" {
			return fmt.Errorf("jobs.defs[%d] (%s): command required", i, name)
		}
		if _, err := ParseDurationField(fmt.Sprintf("jobs.defs[%d].timeout", i), j.Timeout); err != nil {
			return err
		}
	}
	return nil
}
