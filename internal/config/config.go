// Package config loads jprof's YAML configuration. Values come from built-in
// defaults, then the config file, then JPROF_* environment variables; command
// line flags are applied last by the commands themselves.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mabhi256/jprof/internal/logging"
	"github.com/mabhi256/jprof/internal/session"
)

const (
	DefaultDir  = ".jprof"
	ConfigFile  = "config.yaml"
	EnvConfig   = "JPROF_CONFIG"
	EnvLogLevel = "JPROF_LOG_LEVEL"
	EnvScheme   = "JPROF_INSTR_SCHEME"
	EnvWorkers  = "JPROF_INGEST_WORKERS"
)

type Config struct {
	Log     logging.Config `yaml:"log"`
	Session SessionConfig  `yaml:"session"`
	Ingest  IngestConfig   `yaml:"ingest"`
	Watch   WatchConfig    `yaml:"watch"`
}

// SessionConfig holds the scalars armed at session start.
type SessionConfig struct {
	InstrScheme    string `yaml:"instr_scheme"`
	AbsoluteTimer  bool   `yaml:"absolute_timer"`
	ThreadCPUTimer bool   `yaml:"thread_cpu_timer"`
}

// IngestConfig controls how agent event logs are replayed.
type IngestConfig struct {
	// Workers applying invocation and allocation updates concurrently.
	Workers int `yaml:"workers"`
	// Pause between events; zero replays as fast as possible.
	Pace time.Duration `yaml:"pace"`
}

type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
}

func Default() *Config {
	return &Config{
		Log: logging.DefaultConfig(),
		Session: SessionConfig{
			InstrScheme:   session.InstrSchemeLazy.String(),
			AbsoluteTimer: true,
		},
		Ingest: IngestConfig{
			Workers: 4,
		},
		Watch: WatchConfig{
			Interval: 500 * time.Millisecond,
		},
	}
}

// Path resolves the config file location: JPROF_CONFIG, then ~/.jprof/config.yaml.
func Path() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DefaultDir, ConfigFile)
}

// Load reads path on top of the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvScheme); v != "" {
		c.Session.InstrScheme = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", EnvWorkers, v, err)
		}
		c.Ingest.Workers = n
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := session.ParseInstrScheme(c.Session.InstrScheme); err != nil {
		return fmt.Errorf("session.instr_scheme: %w", err)
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest.workers must be at least 1, got %d", c.Ingest.Workers)
	}
	if c.Ingest.Pace < 0 {
		return fmt.Errorf("ingest.pace must not be negative")
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be positive")
	}
	return nil
}

// Scheme returns the validated instrumentation scheme.
func (c *Config) Scheme() session.InstrScheme {
	scheme, _ := session.ParseInstrScheme(c.Session.InstrScheme)
	return scheme
}

// ApplyTo arms a fresh session with the configured scalars.
func (c *Config) ApplyTo(s *session.Status) {
	s.SetInstrScheme(c.Scheme())
	s.SetTimerTypes(c.Session.AbsoluteTimer, c.Session.ThreadCPUTimer)
}
