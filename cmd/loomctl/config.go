package main

import (
	"fmt"
	"os"
	"time"

	"github.com/cuemby/loom/pkg/kernel"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors kernel.Config field-for-field but with yaml tags and
// durations as strings, since time.Duration has no native YAML scalar
// representation and the kernel core itself carries no parsing concerns.
type fileConfig struct {
	DataDir             string `yaml:"data_dir"`
	LockTimeout         string `yaml:"lock_timeout"`
	HeartbeatInterval   string `yaml:"heartbeat_interval"`
	AgentLivenessWindow string `yaml:"agent_liveness_window"`
	JanitorInterval     string `yaml:"janitor_interval"`
	MaxAttempts         uint32 `yaml:"max_attempts"`
	Retention           string `yaml:"retention"`
	MaxAgents           int    `yaml:"max_agents"`
	ActivePolicy        string `yaml:"active_policy"`
	PolicySelectRetries int    `yaml:"policy_select_retries"`
	BottleneckAge       string `yaml:"bottleneck_age"`
}

func loadConfig(path, dataDirOverride string) (kernel.Config, error) {
	cfg := kernel.DefaultConfig(dataDirOverride)
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return kernel.Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return kernel.Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if dataDirOverride != "" {
		cfg.DataDir = dataDirOverride
	}
	if err := parseDurationInto(&cfg.LockTimeout, fc.LockTimeout); err != nil {
		return kernel.Config{}, err
	}
	if err := parseDurationInto(&cfg.HeartbeatInterval, fc.HeartbeatInterval); err != nil {
		return kernel.Config{}, err
	}
	if err := parseDurationInto(&cfg.AgentLivenessWindow, fc.AgentLivenessWindow); err != nil {
		return kernel.Config{}, err
	}
	if err := parseDurationInto(&cfg.JanitorInterval, fc.JanitorInterval); err != nil {
		return kernel.Config{}, err
	}
	if err := parseDurationInto(&cfg.Retention, fc.Retention); err != nil {
		return kernel.Config{}, err
	}
	if err := parseDurationInto(&cfg.BottleneckAge, fc.BottleneckAge); err != nil {
		return kernel.Config{}, err
	}
	if fc.MaxAttempts > 0 {
		cfg.MaxAttempts = fc.MaxAttempts
	}
	if fc.MaxAgents > 0 {
		cfg.MaxAgents = fc.MaxAgents
	}
	if fc.ActivePolicy != "" {
		cfg.ActivePolicy = fc.ActivePolicy
	}
	if fc.PolicySelectRetries > 0 {
		cfg.PolicySelectRetries = fc.PolicySelectRetries
	}
	return cfg, nil
}

func parseDurationInto(dst *time.Duration, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*dst = d
	return nil
}
