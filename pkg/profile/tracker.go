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
	"time"

	"github.com/google/uuid"

	"github.com/parcelbio/benchdeploy/pkg/profile/storage"
)

// Tracker maintains the deployment ledger next to each profile.
//
// Records go through two containers in the same document: the active map
// (latest record per stage) and the append-only history log. Both are
// updated together in a single write, so a reader never sees a record in
// one container but not the other.
type Tracker struct {
	backend storage.Backend

	// now and newID are swapped out in tests for deterministic output.
	now   func() time.Time
	newID func() string
}

// NewTracker returns a tracker persisting through backend.
func NewTracker(backend storage.Backend) *Tracker {
	return &Tracker{
		backend: backend,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// History returns the deployment ledger for a profile.
//
// A profile with no deployments yet (missing deployments document) gets
// an empty, initialized History rather than an error. A document that
// exists but does not parse is a StorageError: the ledger is append-only
// and silently replacing a corrupt one would drop records.
func (t *Tracker) History(name string) (*History, error) {
	data, err := t.backend.Read(name, storage.DocumentDeployments)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return NewHistory(), nil
		}
		return nil, &StorageError{Op: "read deployments", Profile: name, Err: err}
	}

	var hist History
	if err := json.Unmarshal(data, &hist); err != nil {
		return nil, &StorageError{Op: "parse deployments", Profile: name, Err: err}
	}
	if hist.Active == nil {
		hist.Active = map[string]Record{}
	}
	if hist.History == nil {
		hist.History = []Record{}
	}
	return &hist, nil
}

// Record appends a deployment record to a profile's ledger and returns
// the record as persisted.
//
// Missing ID and Timestamp fields are filled in here; callers normally
// leave both zero. The record replaces the previous entry for its stage
// in the active map and is appended to the history log, then the whole
// document is written back in one operation.
func (t *Tracker) Record(name string, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = t.newID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = t.now()
	}

	hist, err := t.History(name)
	if err != nil {
		return Record{}, err
	}

	hist.Active[rec.Stage] = rec
	hist.History = append(hist.History, rec)

	data, err := json.MarshalIndent(hist, "", "  ")
	if err != nil {
		return Record{}, &StorageError{Op: "encode deployments", Profile: name, Err: err}
	}
	if err := t.backend.Write(name, storage.DocumentDeployments, data); err != nil {
		return Record{}, &StorageError{Op: "write deployments", Profile: name, Err: err}
	}
	return rec, nil
}
