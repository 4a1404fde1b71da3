// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the benchdeploy tool settings.
//
// Settings are tool-level knobs (where profiles live, which profile is
// the default, log verbosity, output style) and are distinct from the
// profiles themselves, which the profile store owns. They live in
// settings.yaml in the config directory and every field can be
// overridden by a BENCHDEPLOY_* environment variable.
package config

import (
	"os"
	"path/filepath"
)

// DirName is the per-user configuration directory under $HOME.
const DirName = ".benchdeploy"

// FileName is the settings file inside the configuration directory.
const FileName = "settings.yaml"

type Settings struct {
	// DefaultProfile is used when --profile is not given.
	DefaultProfile string `yaml:"default_profile" env:"BENCHDEPLOY_PROFILE"`

	// Output selects the CLI output personality: full, standard,
	// minimal, or machine. Empty means auto-detect from the terminal.
	Output string `yaml:"output,omitempty" env:"BENCHDEPLOY_OUTPUT"`

	// Logging: verbosity and optional file logging
	Logging LogSettings `yaml:"logging"`
}

type LogSettings struct {
	Level string `yaml:"level" env:"BENCHDEPLOY_LOG_LEVEL"` // e.g. info
	Dir   string `yaml:"dir,omitempty"`                     // e.g. ~/.benchdeploy/logs
	File  bool   `yaml:"file"`                              // write a daily log file
}

// Dir resolves the configuration directory.
//
// BENCHDEPLOY_CONFIG_DIR wins when set; otherwise the directory is
// {home}/.benchdeploy. Resolved once by the root command and threaded
// through explicitly, never re-read deeper in the call tree.
func Dir() (string, error) {
	if dir := os.Getenv("BENCHDEPLOY_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DirName), nil
}

func DefaultSettings() Settings {
	return Settings{
		DefaultProfile: "default",
		Logging: LogSettings{
			Level: "info",
			File:  false,
		},
	}
}
