// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"fmt"
	"sort"
	"sync"
)

// -----------------------------------------------------------------------------
// Memory Backend
// -----------------------------------------------------------------------------

// Memory stores profile documents in two in-process maps, one per
// document kind.
//
// # Description
//
// Test backend with the same contract as Filesystem but no disk I/O.
// Read returns a copy of the stored bytes so callers can never mutate
// stored state through a shared slice.
//
// # Thread Safety
//
// Memory uses a mutex and is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	docs map[Document]map[string][]byte
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		docs: map[Document]map[string][]byte{
			DocumentConfig:      {},
			DocumentDeployments: {},
		},
	}
}

// Read returns a copy of one stored document.
func (m *Memory) Read(name string, doc Document) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bucket, ok := m.docs[doc]
	if !ok {
		return nil, fmt.Errorf("unknown document kind %q", doc)
	}
	data, ok := bucket[name]
	if !ok {
		return nil, fmt.Errorf("%s for profile %q: %w", doc, name, ErrNotExist)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write stores a copy of one document.
func (m *Memory) Write(name string, doc Document, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.docs[doc]
	if !ok {
		return fmt.Errorf("unknown document kind %q", doc)
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	bucket[name] = stored
	return nil
}

// Delete removes both documents for the profile. Idempotent.
func (m *Memory) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, bucket := range m.docs {
		delete(bucket, name)
	}
	return nil
}

// List returns the sorted names of profiles with a config document.
func (m *Memory) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.docs[DocumentConfig]))
	for name := range m.docs[DocumentConfig] {
		names = append(names, name)
	}

	sort.Strings(names)
	return names, nil
}

// Exists reports whether one document is present.
func (m *Memory) Exists(name string, doc Document) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.docs[doc][name]
	return ok
}

// Compile-time interface compliance check.
var _ Backend = (*Memory)(nil)
