// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package profile

import (
	"encoding/json"
	"errors"

	"github.com/parcelbio/benchdeploy/pkg/logging"
	"github.com/parcelbio/benchdeploy/pkg/profile/storage"
)

// Store is the profile store facade the rest of the CLI talks to.
//
// It composes validation, inheritance resolution, deployment tracking,
// and legacy-layout detection over a storage.Backend. All methods are
// for single-process use; two CLI invocations racing on the same
// directory resolve last-writer-wins at the file level.
type Store struct {
	backend   storage.Backend
	validator *Validator
	tracker   *Tracker
	legacy    LegacyDetector
	log       *logging.Logger
}

// Option customizes a Store at construction time.
type Option func(*Store)

// WithLogger attaches a logger. The default discards everything.
func WithLogger(log *logging.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithLegacyDetector overrides the legacy-layout detector.
func WithLegacyDetector(d LegacyDetector) Option {
	return func(s *Store) { s.legacy = d }
}

// WithValidator overrides the write-time validator.
func WithValidator(v *Validator) Option {
	return func(s *Store) { s.validator = v }
}

// New returns a Store over the given backend.
//
// When the backend is a filesystem backend, legacy detection scans its
// base directory; other backends get a no-op detector unless one is
// supplied with WithLegacyDetector.
func New(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		validator: NewValidator(),
		tracker:   NewTracker(backend),
		log:       logging.Nop(),
	}

	if fs, ok := backend.(*storage.Filesystem); ok {
		s.legacy = NewDirLegacyDetector(fs.BaseDir())
	} else {
		s.legacy = NopLegacyDetector{}
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// -----------------------------------------------------------------------------
// Profile Operations
// -----------------------------------------------------------------------------

// Read loads a profile's raw persisted document, without resolving
// inheritance.
//
// A missing profile returns a NotFoundError carrying the profiles that
// do exist and any legacy-layout artifacts found in the storage root.
func (s *Store) Read(name string) (*Config, error) {
	data, err := s.backend.Read(name, storage.DocumentConfig)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, s.notFound(name)
		}
		return nil, &StorageError{Op: "read config", Profile: name, Err: err}
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &StorageError{Op: "parse config", Profile: name, Err: err}
	}
	return &cfg, nil
}

// Write validates and persists a profile document.
//
// Validation failures return a ValidationError listing every violation
// and persist nothing. The document is written atomically: an I/O
// failure leaves any previously stored version exactly as it was. The
// caller's config is not modified; callers bump Metadata.UpdatedAt
// themselves before rewriting an existing profile.
func (s *Store) Write(name string, cfg *Config) error {
	if err := s.validator.ValidateName(name); err != nil {
		return err
	}
	if err := s.validator.ValidateConfig(cfg); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return &StorageError{Op: "encode config", Profile: name, Err: err}
	}
	if err := s.backend.Write(name, storage.DocumentConfig, data); err != nil {
		return &StorageError{Op: "write config", Profile: name, Err: err}
	}

	s.log.Info("profile written", "profile", name, "inherits", cfg.Inherits)
	return nil
}

// List returns all profile names, alphabetically sorted. A store with no
// profiles yet returns an empty slice.
func (s *Store) List() ([]string, error) {
	names, err := s.backend.List()
	if err != nil {
		return nil, &StorageError{Op: "list profiles", Err: err}
	}
	return names, nil
}

// Exists reports whether a profile is present.
func (s *Store) Exists(name string) bool {
	return s.backend.Exists(name, storage.DocumentConfig)
}

// Delete removes a profile and its deployment history together.
// Deleting a profile that does not exist is not an error.
func (s *Store) Delete(name string) error {
	if err := s.backend.Delete(name); err != nil {
		return &StorageError{Op: "delete", Profile: name, Err: err}
	}
	s.log.Info("profile deleted", "profile", name)
	return nil
}

// ReadResolved loads a profile with its inheritance chain applied.
//
// Parents are resolved recursively and deep-merged under the child; the
// merged view is returned, never persisted. The view is not re-validated:
// validation is a write-time contract on raw documents, and a merged
// view assembled from valid documents is taken as-is.
func (s *Store) ReadResolved(name string) (*Config, error) {
	r := &resolver{load: s.loadRaw}
	merged, err := r.resolve(name, nil)
	if err != nil {
		return nil, err
	}

	// Round-trip the merged map through JSON into the typed config.
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, &StorageError{Op: "encode resolved config", Profile: name, Err: err}
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &StorageError{Op: "parse resolved config", Profile: name, Err: err}
	}
	return &cfg, nil
}

// loadRaw reads a profile document as a generic map for merging.
func (s *Store) loadRaw(name string) (map[string]any, error) {
	data, err := s.backend.Read(name, storage.DocumentConfig)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, s.notFound(name)
		}
		return nil, &StorageError{Op: "read config", Profile: name, Err: err}
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &StorageError{Op: "parse config", Profile: name, Err: err}
	}
	return doc, nil
}

// -----------------------------------------------------------------------------
// Deployment Operations
// -----------------------------------------------------------------------------

// Deployments returns a profile's deployment ledger. A profile that has
// never deployed gets an empty history, not an error, so callers can
// render "no deployments yet" without special-casing.
func (s *Store) Deployments(name string) (*History, error) {
	return s.tracker.History(name)
}

// RecordDeployment validates and appends a deployment record, returning
// the record as persisted (ID and timestamp filled in).
func (s *Store) RecordDeployment(name string, rec Record) (Record, error) {
	if err := s.validator.ValidateRecord(&rec); err != nil {
		return Record{}, err
	}

	stored, err := s.tracker.Record(name, rec)
	if err != nil {
		return Record{}, err
	}

	s.log.Info("deployment recorded",
		"profile", name,
		"stage", stored.Stage,
		"imageTag", stored.ImageTag,
	)
	return stored, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// notFound assembles the enriched not-found error: the profiles that do
// exist plus any legacy artifacts in the storage root.
func (s *Store) notFound(name string) *NotFoundError {
	existing, err := s.backend.List()
	if err != nil {
		existing = nil
	}
	return &NotFoundError{
		Name:     name,
		Existing: existing,
		Legacy:   s.legacy.Detect(),
	}
}
