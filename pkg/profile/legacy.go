// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package profile

import (
	"os"
	"path/filepath"
)

// Artifact is one leftover from the pre-0.4.0 flat configuration layout.
type Artifact struct {
	// Path is the literal filesystem path, quoted verbatim in errors.
	Path string

	// Kind is a short human label for what the artifact used to be.
	Kind string
}

// LegacyDetector scans for artifacts of the old configuration layout.
// It is consulted only on the not-found path, to tell users who just
// upgraded why their profiles seem to have vanished.
type LegacyDetector interface {
	// Detect returns the legacy artifacts present, in a stable order.
	// Detection is by path existence alone; content is never read, so a
	// truncated or corrupt legacy file is still reported.
	Detect() []Artifact
}

// -----------------------------------------------------------------------------
// Implementations
// -----------------------------------------------------------------------------

// DirLegacyDetector checks a storage root for the three artifacts the
// flat layout used: default.json (the old single-environment profile),
// deploy.json (the old deployment log), and a profiles directory that
// predates the one-directory-per-profile scheme.
type DirLegacyDetector struct {
	baseDir string
}

// NewDirLegacyDetector returns a detector scanning baseDir.
func NewDirLegacyDetector(baseDir string) *DirLegacyDetector {
	return &DirLegacyDetector{baseDir: baseDir}
}

// Detect implements LegacyDetector.
func (d *DirLegacyDetector) Detect() []Artifact {
	var found []Artifact

	for _, probe := range []struct {
		name string
		kind string
		dir  bool
	}{
		{"default.json", "flat profile file", false},
		{"deploy.json", "flat deployment log", false},
		{"profiles", "flat profiles directory", true},
	} {
		path := filepath.Join(d.baseDir, probe.name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if probe.dir != info.IsDir() {
			continue
		}
		found = append(found, Artifact{Path: path, Kind: probe.kind})
	}
	return found
}

// NopLegacyDetector never finds anything. Used with backends that have
// no filesystem root to scan.
type NopLegacyDetector struct{}

// Detect implements LegacyDetector.
func (NopLegacyDetector) Detect() []Artifact {
	return nil
}

// MockLegacyDetector returns canned artifacts for tests.
type MockLegacyDetector struct {
	DetectFunc func() []Artifact
}

// Detect implements LegacyDetector.
func (m *MockLegacyDetector) Detect() []Artifact {
	if m.DetectFunc != nil {
		return m.DetectFunc()
	}
	return nil
}

// Compile-time interface checks.
var (
	_ LegacyDetector = (*DirLegacyDetector)(nil)
	_ LegacyDetector = NopLegacyDetector{}
	_ LegacyDetector = (*MockLegacyDetector)(nil)
)
