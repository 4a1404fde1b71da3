// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/parcelbio/benchdeploy/pkg/profile"
	"github.com/parcelbio/benchdeploy/pkg/ux"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	profilesListQuiet   bool   // Names only, one per line
	profilesShowResolve bool   // Apply inheritance before showing
	profilesShowFormat  string // json or yaml
	profilesDeleteForce bool   // Skip the confirmation prompt
	profilesExportOut   string // Output file, empty for stdout
	profilesExportYAML  bool   // Export as YAML instead of JSON
	profilesImportName  string // Override the profile name on import
)

func init() {
	profilesListCmd.Flags().BoolVarP(&profilesListQuiet, "quiet", "q", false,
		"Print profile names only, one per line")
	profilesShowCmd.Flags().BoolVar(&profilesShowResolve, "resolved", false,
		"Show the profile with its inheritance chain applied")
	profilesShowCmd.Flags().StringVar(&profilesShowFormat, "format", "json",
		"Output format: json or yaml")
	profilesDeleteCmd.Flags().BoolVar(&profilesDeleteForce, "force", false,
		"Delete without asking for confirmation")
	profilesExportCmd.Flags().StringVarP(&profilesExportOut, "output", "o", "",
		"Write to a file instead of stdout")
	profilesExportCmd.Flags().BoolVar(&profilesExportYAML, "yaml", false,
		"Export as YAML instead of JSON")
	profilesImportCmd.Flags().StringVar(&profilesImportName, "name", "",
		"Profile name to import as (default: the file name)")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runProfilesList prints all profiles, either as bare names or as a
// table with the catalog and tenant each profile resolves to.
func runProfilesList(cmd *cobra.Command, args []string) error {
	names, err := store.List()
	if err != nil {
		return err
	}

	if len(names) == 0 {
		ux.Info("No profiles yet. Run `benchdeploy setup` to create one.")
		return nil
	}

	if profilesListQuiet || ux.GetPersonality().Level == ux.PersonalityMachine {
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, profileRow(name))
	}

	ux.Title("Profiles")
	fmt.Print(ux.Table([]string{"name", "catalog", "tenant", "updated"}, rows))
	return nil
}

// profileRow builds one list row. Resolution failures (broken parent,
// cycle) must not kill the listing, so they degrade to a marker.
func profileRow(name string) []string {
	resolved, err := store.ReadResolved(name)
	if err != nil {
		return []string{name, "(unresolvable)", "", ""}
	}

	catalog, tenant := "-", "-"
	if resolved.Quilt != nil && resolved.Quilt.Catalog != "" {
		catalog = resolved.Quilt.Catalog
	}
	if resolved.Benchling != nil && resolved.Benchling.Tenant != "" {
		tenant = resolved.Benchling.Tenant
	}

	updated := "-"
	if resolved.Metadata != nil && !resolved.Metadata.UpdatedAt.IsZero() {
		updated = resolved.Metadata.UpdatedAt.Format("2006-01-02")
	}

	display := name
	if resolved.Inherits != "" {
		display = fmt.Sprintf("%s (inherits %s)", name, resolved.Inherits)
	}
	return []string{display, catalog, tenant, updated}
}

// runProfilesShow prints one profile document as JSON or YAML.
func runProfilesShow(cmd *cobra.Command, args []string) error {
	name := args[0]

	var (
		cfg *profile.Config
		err error
	)
	if profilesShowResolve {
		cfg, err = store.ReadResolved(name)
	} else {
		cfg, err = store.Read(name)
	}
	if err != nil {
		return err
	}

	data, err := encodeProfileDocument(cfg, profilesShowFormat == "yaml")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// runProfilesDelete removes a profile after confirmation. The delete
// cascades to the deployment history underneath.
func runProfilesDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	if !store.Exists(name) {
		ux.Warning(fmt.Sprintf("Profile %q does not exist; nothing to delete.", name))
		return nil
	}

	if !profilesDeleteForce {
		if !ux.IsInteractive() {
			return fmt.Errorf("refusing to delete %q without confirmation; re-run with --force", name)
		}
		if !confirm(fmt.Sprintf("Delete profile %q and its deployment history?", name)) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := store.Delete(name); err != nil {
		return err
	}
	ux.Success(fmt.Sprintf("Profile %q deleted.", name))
	return nil
}

// runProfilesExport writes the raw profile document to a file or stdout.
// The raw document (not the resolved view) is exported so a re-import
// round-trips exactly, inheritance included.
func runProfilesExport(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg, err := store.Read(name)
	if err != nil {
		return err
	}

	data, err := encodeProfileDocument(cfg, profilesExportYAML)
	if err != nil {
		return err
	}

	if profilesExportOut == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(profilesExportOut, append(data, '\n'), 0640); err != nil {
		return fmt.Errorf("write %s: %w", profilesExportOut, err)
	}
	ux.Success(fmt.Sprintf("Profile %q exported to %s.", name, profilesExportOut))
	return nil
}

// runProfilesImport reads a profile document (JSON or YAML) from a file
// or stdin, validates it, and writes it into the store.
//
// The document's metadata is normalized: source becomes "cli" and the
// update timestamp is bumped, so an imported profile is traceable to
// this surface.
func runProfilesImport(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
		name = profilesImportName
	)

	if len(args) == 1 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		if name == "" {
			base := filepath.Base(args[0])
			name = strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
		}
	} else {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		if name == "" {
			return fmt.Errorf("importing from stdin requires --name")
		}
	}

	cfg, err := decodeProfileDocument(data)
	if err != nil {
		return err
	}

	if cfg.Metadata == nil {
		cfg.Metadata = profile.NewMetadata(profile.SourceCLI)
	} else {
		cfg.Metadata.Source = profile.SourceCLI
		cfg.Metadata.Touch()
	}

	if err := store.Write(name, cfg); err != nil {
		return err
	}
	ux.Success(fmt.Sprintf("Profile %q imported.", name))
	return nil
}

// =============================================================================
// DOCUMENT ENCODING
// =============================================================================

// encodeProfileDocument renders a config as pretty JSON or YAML.
func encodeProfileDocument(cfg *profile.Config, asYAML bool) ([]byte, error) {
	if asYAML {
		return yaml.Marshal(cfg)
	}
	return json.MarshalIndent(cfg, "", "  ")
}

// decodeProfileDocument parses a JSON or YAML profile document, sniffing
// the format from the first non-blank byte.
func decodeProfileDocument(data []byte) (*profile.Config, error) {
	var cfg profile.Config

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse JSON profile document: %w", err)
		}
		return &cfg, nil
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML profile document: %w", err)
	}
	return &cfg, nil
}
