// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package storage provides raw persistence for profile documents.

A profile owns exactly two documents: its configuration and its deployment
history. Backends store both keyed by profile name and know nothing about
the document contents; parsing, validation, and merging live one layer up
in pkg/profile.

Two implementations ship with benchdeploy:

  - Filesystem: one directory per profile under an explicit base directory,
    pretty-printed JSON files, atomic temp-file-plus-rename writes.
  - Memory: map-backed storage for tests, returning copies on read so
    callers can never mutate stored state in place.

The base directory is always passed in by the caller. Backends never
resolve home directories or environment variables themselves, so tests can
redirect storage anywhere.
*/
package storage

import "errors"

// ErrNotExist is returned when a requested document has never been written
// or has been deleted. Callers match it with errors.Is.
var ErrNotExist = errors.New("document does not exist")

// Document identifies one of the two files a profile owns. The value is
// the on-disk filename used by the filesystem backend.
type Document string

const (
	// DocumentConfig is the profile configuration document.
	DocumentConfig Document = "config.json"

	// DocumentDeployments is the deployment history document.
	DocumentDeployments Document = "deployments.json"
)

// Valid reports whether d is one of the known document kinds.
func (d Document) Valid() bool {
	return d == DocumentConfig || d == DocumentDeployments
}

// Backend is the persistence contract shared by all storage
// implementations.
//
// # Description
//
// Backends store raw bytes for the two per-profile documents. A profile
// "exists" at this layer when its config document exists; a deployment
// history may be written for a name that has no config document (the
// layer above decides whether that is meaningful).
//
// # Contract
//
//   - Read fails with an error matching ErrNotExist when the document is
//     absent.
//   - Write creates or overwrites; a failed write never leaves a
//     partially written document behind.
//   - Delete removes every document for the profile and is idempotent.
//   - List returns profile names in ascending lexical order; a profile is
//     listed when its config document exists.
//   - Exists never returns an error; unreadable state reads as absent.
//
// # Thread Safety
//
// Implementations guard their own state so incidental concurrent use from
// tests is safe. The store above makes no cross-operation atomicity
// promises beyond a single document write.
type Backend interface {
	// Read returns the raw bytes of one document.
	Read(name string, doc Document) ([]byte, error)

	// Write creates or overwrites one document.
	Write(name string, doc Document, data []byte) error

	// Delete removes all documents belonging to the profile.
	Delete(name string) error

	// List returns the sorted names of profiles with a config document.
	List() ([]string, error)

	// Exists reports whether one document is present.
	Exists(name string, doc Document) bool
}
