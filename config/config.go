// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads process settings from the environment and the genesis
// document from TOML.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds process settings.
type Config struct {
	// RPCAddr is the JSON-RPC listen address
	RPCAddr string `env:"PLAI_RPC_ADDR" envDefault:":9652"`

	// DBPath is the SQLite database file; empty keeps state in memory
	DBPath string `env:"PLAI_DB_PATH"`

	// NATSURL enables event publishing when set
	NATSURL string `env:"PLAI_NATS_URL"`

	// GenesisPath is the TOML genesis document applied to a fresh database
	GenesisPath string `env:"PLAI_GENESIS"`

	// LogFile redirects logs to a file when set
	LogFile string `env:"PLAI_LOG_FILE"`
}

// Load reads Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the settings are usable.
func (c Config) Validate() error {
	if c.RPCAddr == "" {
		return fmt.Errorf("PLAI_RPC_ADDR must not be empty")
	}
	return nil
}
