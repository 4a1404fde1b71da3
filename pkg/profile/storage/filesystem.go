// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Filesystem Backend
// -----------------------------------------------------------------------------

// Filesystem stores profile documents under one directory per profile.
//
// # Description
//
// The on-disk layout under the base directory is:
//
//	{base}/{profile}/config.json
//	{base}/{profile}/deployments.json
//
// Plain files at the base directory root (legacy artifacts, tool settings)
// are ignored by List. Writes go to a temporary file in the profile
// directory and are renamed over the target, so an interrupted process can
// never leave a half-written document.
//
// # Thread Safety
//
// Filesystem uses a mutex to protect concurrent operations. Multiple
// goroutines can safely Read, Write, Delete, and List concurrently.
type Filesystem struct {
	// baseDir is the directory holding one subdirectory per profile.
	baseDir string

	// mu protects concurrent access to storage operations.
	mu sync.RWMutex
}

// NewFilesystem creates a filesystem backend rooted at baseDir.
//
// # Description
//
// Creates the base directory if it does not exist. The base directory is
// a required argument; callers resolve their config root once at startup
// and pass it in explicitly so tests can redirect storage.
//
// # Inputs
//
//   - baseDir: Directory that holds one subdirectory per profile. Must be
//     non-empty.
//
// # Outputs
//
//   - *Filesystem: Ready-to-use backend
//   - error: Non-nil if baseDir is empty or directory creation fails
//
// # Examples
//
//	backend, err := storage.NewFilesystem(filepath.Join(configRoot))
//	if err != nil {
//	    return err
//	}
//
// # Limitations
//
//   - Requires write permission on the base directory
//   - No encryption at rest (rely on filesystem encryption)
func NewFilesystem(baseDir string) (*Filesystem, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("storage base directory is required")
	}

	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", baseDir, err)
	}

	return &Filesystem{baseDir: baseDir}, nil
}

// Read returns the raw bytes of one profile document.
//
// Fails with an error matching ErrNotExist when the profile directory or
// the document itself is absent.
func (f *Filesystem) Read(name string, doc Document) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	path, err := f.documentPath(name, doc)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s for profile %q: %w", doc, name, ErrNotExist)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return data, nil
}

// Write creates or overwrites one profile document.
//
// # Description
//
// Creates the profile directory on first write, then writes to a
// temporary file and renames it over the target. The rename is atomic on
// POSIX filesystems, so readers observe either the old document or the
// new one, never a partial write.
func (f *Filesystem) Write(name string, doc Document, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.documentPath(name, doc)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create profile directory for %q: %w", name, err)
	}

	// Write to temp file first for atomic operation
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0640); err != nil {
		return fmt.Errorf("failed to write %s: %w", tempPath, err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, path); err != nil {
		// Clean up temp file on failure
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}

	return nil
}

// Delete removes the profile directory and every document in it.
//
// Deleting a profile that does not exist is not an error.
func (f *Filesystem) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir, err := f.profileDir(name)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete profile directory %s: %w", dir, err)
	}

	return nil
}

// List returns the sorted names of profiles with a config document.
//
// # Description
//
// Scans the base directory for subdirectories containing a config
// document. Plain files (legacy artifacts, settings) and directories
// without a config document (such as a leftover legacy profiles/
// directory) are not profiles and are skipped.
func (f *Filesystem) List() ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list storage directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		configPath := filepath.Join(f.baseDir, entry.Name(), string(DocumentConfig))
		if _, err := os.Stat(configPath); err != nil {
			continue
		}
		names = append(names, entry.Name())
	}

	sort.Strings(names)
	return names, nil
}

// Exists reports whether one profile document is present on disk.
func (f *Filesystem) Exists(name string, doc Document) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	path, err := f.documentPath(name, doc)
	if err != nil {
		return false
	}

	_, err = os.Stat(path)
	return err == nil
}

// BaseDir returns the directory profiles are stored under.
func (f *Filesystem) BaseDir() string {
	return f.baseDir
}

// profileDir returns the directory for one profile, rejecting names that
// would escape the base directory.
func (f *Filesystem) profileDir(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	return filepath.Join(f.baseDir, name), nil
}

// documentPath returns the absolute path of one profile document.
func (f *Filesystem) documentPath(name string, doc Document) (string, error) {
	if !doc.Valid() {
		return "", fmt.Errorf("unknown document kind %q", doc)
	}
	dir, err := f.profileDir(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, string(doc)), nil
}

// checkName rejects profile names that are empty or contain path
// components. Prevents a crafted name from reading or deleting files
// outside the base directory.
func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("profile name is required")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("invalid profile name %q", name)
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("profile name %q must not contain path separators", name)
	}
	return nil
}

// Compile-time interface compliance check.
var _ Backend = (*Filesystem)(nil)
