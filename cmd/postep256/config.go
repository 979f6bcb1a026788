// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/GermanBionicSystems/postep/postep256"
	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// SoakConfig drives the soak command.
type SoakConfig struct {
	Speed      uint16        `yaml:"speed" env:"POSTEP_SOAK_SPEED"`
	Interval   time.Duration `yaml:"interval" env:"POSTEP_SOAK_INTERVAL"`
	Poll       time.Duration `yaml:"poll" env:"POSTEP_SOAK_POLL"`
	Polls      int           `yaml:"polls" env:"POSTEP_SOAK_POLLS"`
	Iterations int           `yaml:"iterations" env:"POSTEP_SOAK_ITERATIONS"` // 0 = until interrupted
	LogFile    string        `yaml:"log_file" env:"POSTEP_SOAK_LOG"`
}

// Config is the configuration of the postep256 tool.
//
// Values come from the YAML file, then the environment, then the command line.
type Config struct {
	Bus      string        `yaml:"bus" env:"POSTEP_BUS"`
	Addr     uint16        `yaml:"addr" env:"POSTEP_ADDR"`
	Sim      bool          `yaml:"sim" env:"POSTEP_SIM"`
	NoColor  bool          `yaml:"no_color" env:"POSTEP_NO_COLOR"`
	Speed    uint16        `yaml:"speed" env:"POSTEP_SPEED"`
	Invert   bool          `yaml:"invert" env:"POSTEP_INVERT"`
	Duration time.Duration `yaml:"duration" env:"POSTEP_DURATION"`
	Soak     SoakConfig    `yaml:"soak"`
}

// defaultConfig matches the vendor examples.
func defaultConfig() Config {
	return Config{
		Addr:     postep256.I2CAddr,
		Speed:    1000,
		Duration: 2 * time.Second,
		Soak: SoakConfig{
			Speed:    15360,
			Interval: 2 * time.Second,
			Poll:     10 * time.Millisecond,
			Polls:    5,
		},
	}
}

// loadConfig reads path, if not empty, over the defaults and applies
// environment overrides.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr < 0x01 || c.Addr > 0x7F {
		return fmt.Errorf("addr must be between 0x01 and 0x7F, got 0x%02X", c.Addr)
	}
	if c.Speed > postep256.MaxSpeed {
		return fmt.Errorf("speed must be <= %d, got %d", postep256.MaxSpeed, c.Speed)
	}
	if c.Soak.Speed > postep256.MaxSpeed {
		return fmt.Errorf("soak.speed must be <= %d, got %d", postep256.MaxSpeed, c.Soak.Speed)
	}
	if c.Duration < 0 || c.Soak.Interval < 0 || c.Soak.Poll < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.Soak.Polls <= 0 {
		c.Soak.Polls = 5
	}
	return nil
}

// flagAddr checks an -addr value before narrowing it to an I²C address.
func flagAddr(v uint) (uint16, error) {
	if v < 0x01 || v > 0x7F {
		return 0, fmt.Errorf("addr must be between 0x01 and 0x7F, got 0x%X", v)
	}
	return uint16(v), nil
}

func flagSpeed(v uint) (uint16, error) {
	if v > uint(postep256.MaxSpeed) {
		return 0, fmt.Errorf("speed must be <= %d, got %d", postep256.MaxSpeed, v)
	}
	return uint16(v), nil
}
