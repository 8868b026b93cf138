// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tether/lib/config"
)

// CommonFlags are the flags every tether binary accepts.
type CommonFlags struct {
	ConfigPath  string
	LogLevel    string
	ShowVersion bool
}

// Register adds the common flags to flagSet.
func (f *CommonFlags) Register(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&f.ConfigPath, "config", "c", "", "configuration file (YAML, JSON or JSONC; default $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&f.LogLevel, "log-level", "", "log level: debug, info, warn or error (overrides the configuration)")
	flagSet.BoolVar(&f.ShowVersion, "version", false, "print version information and exit")
}

// Setup loads and validates the configuration, applies the log level
// override, and builds the logger.
func (f *CommonFlags) Setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, nil, err
	}
	return cfg, NewLogger(level), nil
}
