// Package config defines the orchestrator's configuration schema and
// helpers for loading it from a YAML file, with field-level defaults
// applied when the file omits a section.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound names a missing config file. Load does not return
// it: a missing file yields the defaults.
var ErrConfigNotFound = errors.New("orchestrator config not found")

// Config is the top-level orchestrator configuration.
type Config struct {
	DataDir   string       `yaml:"data_dir"`
	LogLevel  string       `yaml:"log_level"`
	LogJSON   bool         `yaml:"log_json"`
	RedisAddr string       `yaml:"redis_addr"`
	Worker    WorkerConfig `yaml:"worker"`
	Raft      RaftConfig   `yaml:"raft"`
}

// WorkerConfig controls how the worker pool polls and dispatches tasks.
type WorkerConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxConcurrent int           `yaml:"max_concurrent"`
}

// RaftConfig enables and configures the replicated storage backend.
type RaftConfig struct {
	Enabled   bool   `yaml:"enabled"`
	NodeID    string `yaml:"node_id"`
	BindAddr  string `yaml:"bind_addr"`
	Bootstrap bool   `yaml:"bootstrap"`
}

const (
	defaultDataDir           = "./data"
	defaultLogLevel          = "info"
	defaultRedisAddr         = "localhost:6379"
	defaultPollInterval      = 2 * time.Second
	defaultMaxConcurrent     = 5
	defaultRaftBindAddr      = "127.0.0.1:7450"
)

// DefaultConfigPath returns the default config path for the current
// working directory.
func DefaultConfigPath() string {
	return "orchestrator.yml"
}

// Exists reports whether a config file exists at the given path. It
// returns (false, nil) if the file does not exist.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Load reads the config from path, applying defaults for any omitted
// field. It returns a fully-defaulted Config, never ErrConfigNotFound,
// when path does not exist — an orchestrator instance should run with
// sane defaults out of the box.
func Load(path string) (*Config, error) {
	cfg := Default()

	exists, err := Exists(path)
	if err != nil {
		return nil, fmt.Errorf("checking config existence: %w", err)
	}
	if !exists {
		return cfg, nil
	}

	// nolint:gosec // reading a config file from an operator-supplied path is expected
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config populated entirely with defaults.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = defaultRedisAddr
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = defaultPollInterval
	}
	if cfg.Worker.MaxConcurrent == 0 {
		cfg.Worker.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.Raft.Enabled && cfg.Raft.BindAddr == "" {
		cfg.Raft.BindAddr = defaultRaftBindAddr
	}
}

func validate(cfg *Config) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log_level must be one of debug/info/warn/error, got %q", cfg.LogLevel)
	}

	if cfg.Worker.MaxConcurrent < 1 {
		return errors.New("config: worker.max_concurrent must be at least 1")
	}

	if cfg.Raft.Enabled && cfg.Raft.NodeID == "" {
		return errors.New("config: raft.node_id is required when raft.enabled is true")
	}

	return nil
}
