// Package config loads the controller configuration from YAML.
// Load reads and decodes; Validate checks without mutating; Normalize
// fills defaults and must run only after Validate.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Controller ControllerConfig `yaml:"controller"`
}

type ControllerConfig struct {
	Transport string         `yaml:"transport"` // "serial" or "tcp"
	Serial    SerialConfig   `yaml:"serial"`
	TCP       TCPConfig      `yaml:"tcp"`
	UnitID    uint8          `yaml:"unit_id"`
	TimeoutMs int            `yaml:"timeout_ms"`
	Poll      PollConfig     `yaml:"poll"`
	Backoff   BackoffConfig  `yaml:"backoff"`
	Registers []RegisterFlag `yaml:"registers"`
}

// ---- TRANSPORT ----

type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
	Parity   string `yaml:"parity"` // E, N or O
	StopBits int    `yaml:"stop_bits"`
}

type TCPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ---- POLLING ----

type PollConfig struct {
	IntervalS         int    `yaml:"interval_s"`
	MaxBatchRegisters uint16 `yaml:"max_batch_registers"`
	BatchSlack        uint16 `yaml:"batch_slack"`
}

// ---- RECONNECT BACKOFF ----

type BackoffConfig struct {
	SeedMs int `yaml:"seed_ms"`
	CapMs  int `yaml:"cap_ms"`
}

// ---- REGISTER OVERRIDES ----

// RegisterFlag flips polling on or off for one catalog register.
// Registers without an override stay enabled.
type RegisterFlag struct {
	Key     string `yaml:"key"`
	Enabled bool   `yaml:"enabled"`
}

// Load reads and decodes a config file. It does not validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return &cfg, nil
}
