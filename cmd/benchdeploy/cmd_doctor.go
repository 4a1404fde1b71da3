// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/parcelbio/benchdeploy/cmd/benchdeploy/config"
	"github.com/parcelbio/benchdeploy/pkg/profile"
	"github.com/parcelbio/benchdeploy/pkg/ux"
)

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runDoctor checks the profile store for problems: the store root and
// settings file, every profile document (parseable, valid, resolvable),
// history sizes, and leftovers from the flat pre-2.0 layout.
//
// Doctor only reports; it never repairs or migrates anything.
func runDoctor(cmd *cobra.Command, args []string) error {
	ux.Title("benchdeploy doctor")
	problems := 0

	// Store root.
	if info, err := os.Stat(baseDir); err != nil {
		ux.Info(fmt.Sprintf("Store root %s does not exist yet (created on first write).", baseDir))
	} else if !info.IsDir() {
		ux.Error(fmt.Sprintf("Store root %s is not a directory.", baseDir))
		problems++
	} else {
		ux.Success(fmt.Sprintf("Store root: %s", baseDir))
	}

	// Settings file. Settings always live under the default config dir,
	// even when --config-dir points the store elsewhere.
	if settingsDir, err := config.Dir(); err == nil {
		settingsPath := filepath.Join(settingsDir, config.FileName)
		if _, err := os.Stat(settingsPath); err != nil {
			ux.Info(fmt.Sprintf("Settings file %s missing (defaults apply).", settingsPath))
		} else {
			ux.Success(fmt.Sprintf("Settings file: %s", settingsPath))
		}
	}

	// Profiles.
	names, err := store.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		ux.Info("No profiles. Run `benchdeploy setup` to create one.")
	} else {
		ux.Info(fmt.Sprintf("%d profile(s):", len(names)))
		problems += checkProfiles(names)
	}

	// Flat pre-2.0 layout leftovers.
	artifacts := profile.NewDirLegacyDetector(baseDir).Detect()
	for _, artifact := range artifacts {
		ux.Warning(fmt.Sprintf("Legacy %s at %s (left untouched; recreate with `benchdeploy setup`).",
			artifact.Kind, artifact.Path))
		problems++
	}

	fmt.Println()
	if problems == 0 {
		ux.Success("No problems found.")
	} else {
		ux.Warning(fmt.Sprintf("%d problem(s) found.", problems))
	}
	return nil
}

// checkProfiles reads, validates, and resolves every profile, reporting
// one line per profile. Returns the number of problems found.
func checkProfiles(names []string) int {
	val := profile.NewValidator()
	problems := 0

	for _, name := range names {
		cfg, err := store.Read(name)
		if err != nil {
			ux.Error(fmt.Sprintf("%s: unreadable: %v", name, err))
			problems++
			continue
		}

		// Documents are validated on every write, so a violation here
		// means the file was edited by hand.
		if err := val.ValidateConfig(cfg); err != nil {
			ux.Error(fmt.Sprintf("%s: invalid: %v", name, err))
			problems++
			continue
		}

		if _, err := store.ReadResolved(name); err != nil {
			ux.Error(fmt.Sprintf("%s: unresolvable: %v", name, err))
			problems++
			continue
		}

		detail := "standalone"
		if cfg.Inherits != "" {
			detail = fmt.Sprintf("inherits %s", cfg.Inherits)
		}
		histDetail := "no deployments"
		if hist, err := store.Deployments(name); err != nil {
			histDetail = "history unreadable"
			problems++
		} else if n := len(hist.History); n > 0 {
			histDetail = fmt.Sprintf("%d deployment(s), %d active stage(s)", n, len(hist.Active))
		}
		ux.Success(fmt.Sprintf("%s: %s, %s", name, detail, histDetail))
	}
	return problems
}
