// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parcelbio/benchdeploy/cmd/benchdeploy/config"
	"github.com/parcelbio/benchdeploy/pkg/logging"
	"github.com/parcelbio/benchdeploy/pkg/profile"
	"github.com/parcelbio/benchdeploy/pkg/profile/storage"
	"github.com/parcelbio/benchdeploy/pkg/ux"
)

// appVersion is overridden at release time via -ldflags.
var appVersion = "0.5.0-dev"

// Process exit codes.
const (
	exitSuccess = 0
	exitFailure = 1
)

// --- Global Command Variables ---
var (
	flagConfigDir string // --config-dir override for the profile root
	flagOutput    string // --output personality level
	flagVerbose   bool   // --verbose debug logging

	// Resolved once by the root PersistentPreRunE and threaded through.
	baseDir string
	logger  *logging.Logger
	store   *profile.Store

	rootCmd = &cobra.Command{
		Use:   "benchdeploy",
		Short: "Manage deployment profiles for the Benchling-Quilt packager",
		Long: `Benchdeploy manages named deployment profiles: which Quilt stack to
target, which Benchling tenant to integrate with, where packages land,
and how the deployment is parameterized. Profiles live as plain JSON
under ~/.benchdeploy and may inherit from each other.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initRuntime()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	// --- Profiles ---
	profilesCmd = &cobra.Command{
		Use:   "profiles",
		Short: "Inspect and manage deployment profiles",
	}
	profilesListCmd = &cobra.Command{
		Use:   "list",
		Short: "List all profiles",
		RunE:  runProfilesList, // Defined in cmd_profiles.go
	}
	profilesShowCmd = &cobra.Command{
		Use:   "show [name]",
		Short: "Show one profile document",
		Args:  cobra.ExactArgs(1),
		RunE:  runProfilesShow, // Defined in cmd_profiles.go
	}
	profilesDeleteCmd = &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a profile and its deployment history",
		Args:  cobra.ExactArgs(1),
		RunE:  runProfilesDelete, // Defined in cmd_profiles.go
	}
	profilesExportCmd = &cobra.Command{
		Use:   "export [name]",
		Short: "Export a profile document to a file or stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  runProfilesExport, // Defined in cmd_profiles.go
	}
	profilesImportCmd = &cobra.Command{
		Use:   "import [file]",
		Short: "Import a profile document from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runProfilesImport, // Defined in cmd_profiles.go
	}

	// --- Deployments ---
	deploymentsCmd = &cobra.Command{
		Use:   "deployments",
		Short: "Inspect and record per-profile deployments",
	}
	deploymentsListCmd = &cobra.Command{
		Use:   "list [profile]",
		Short: "Show active deployments and history for a profile",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDeploymentsList, // Defined in cmd_deployments.go
	}
	deploymentsRecordCmd = &cobra.Command{
		Use:   "record [profile]",
		Short: "Record a deployment for a profile",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDeploymentsRecord, // Defined in cmd_deployments.go
	}

	// --- Maintenance ---
	doctorCmd = &cobra.Command{
		Use:   "doctor",
		Short: "Check the profile store for problems",
		RunE:  runDoctor, // Defined in cmd_doctor.go
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the benchdeploy version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("benchdeploy %s\n", appVersion)
		},
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "",
		"Profile store root (default ~/.benchdeploy, env BENCHDEPLOY_CONFIG_DIR)")
	rootCmd.PersistentFlags().StringVar(&flagOutput, "output", "",
		"Output style: full, standard, minimal, or machine (scripting)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"Enable debug logging on stderr")

	rootCmd.AddCommand(setupCmd) // Defined in cmd_setup.go

	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesShowCmd)
	profilesCmd.AddCommand(profilesDeleteCmd)
	profilesCmd.AddCommand(profilesExportCmd)
	profilesCmd.AddCommand(profilesImportCmd)

	rootCmd.AddCommand(deploymentsCmd)
	deploymentsCmd.AddCommand(deploymentsListCmd)
	deploymentsCmd.AddCommand(deploymentsRecordCmd)

	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

// initRuntime loads settings, sets up output and logging, and opens the
// profile store. Runs once before every command.
func initRuntime() error {
	if err := config.Load(); err != nil {
		return err
	}

	// Personality: flag > settings/env > terminal auto-detection.
	switch {
	case flagOutput != "":
		ux.SetPersonalityLevel(ux.ParsePersonalityLevel(flagOutput))
	case config.Global.Output != "":
		ux.SetPersonalityLevel(ux.ParsePersonalityLevel(config.Global.Output))
	default:
		ux.InitPersonality()
	}

	// Base dir: flag > env > ~/.benchdeploy. Resolved once, here.
	if flagConfigDir != "" {
		baseDir = flagConfigDir
	} else {
		dir, err := config.Dir()
		if err != nil {
			return fmt.Errorf("could not resolve the config directory: %w", err)
		}
		baseDir = dir
	}

	// Logging: stderr stays quiet below Warn unless --verbose.
	level := logging.LevelWarn
	if config.Global.Logging.Level != "" {
		level = logging.ParseLevel(config.Global.Logging.Level)
	}
	if flagVerbose {
		level = logging.LevelDebug
	}
	logDir := ""
	if config.Global.Logging.File {
		logDir = config.Global.Logging.Dir
		if logDir == "" {
			logDir = filepath.Join(baseDir, "logs")
		}
	}
	logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  logDir,
		Service: "benchdeploy",
	})

	backend, err := storage.NewFilesystem(baseDir)
	if err != nil {
		return fmt.Errorf("could not open the profile store at %s: %w", baseDir, err)
	}
	store = profile.New(backend, profile.WithLogger(logger))
	return nil
}

// profileArg resolves the profile name for commands where it is
// optional: explicit argument first, then the configured default.
func profileArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return config.Global.DefaultProfile
}

// confirm asks a yes/no question on stdin before destructive actions.
func confirm(question string) bool {
	fmt.Printf("%s (yes/no): ", question)
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(input))
	return answer == "yes" || answer == "y"
}
