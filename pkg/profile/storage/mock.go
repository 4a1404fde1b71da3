// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

// Mock is a test double for Backend.
//
// # Description
//
// Provides configurable behavior per operation for tests that need to
// inject failures. Unset functions fall back to an inner Memory backend,
// so a Mock behaves like real storage except where a test overrides it.
//
// # Examples
//
//	mock := storage.NewMock()
//	mock.WriteFunc = func(name string, doc storage.Document, data []byte) error {
//	    return errors.New("disk full")
//	}
type Mock struct {
	// ReadFunc is called by Read when set.
	ReadFunc func(name string, doc Document) ([]byte, error)

	// WriteFunc is called by Write when set.
	WriteFunc func(name string, doc Document, data []byte) error

	// DeleteFunc is called by Delete when set.
	DeleteFunc func(name string) error

	// ListFunc is called by List when set.
	ListFunc func() ([]string, error)

	// ExistsFunc is called by Exists when set.
	ExistsFunc func(name string, doc Document) bool

	// Inner backs every operation without an override.
	Inner *Memory
}

// NewMock creates a mock backed by an empty Memory backend.
func NewMock() *Mock {
	return &Mock{Inner: NewMemory()}
}

// Read invokes ReadFunc or falls back to the inner backend.
func (m *Mock) Read(name string, doc Document) ([]byte, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(name, doc)
	}
	return m.Inner.Read(name, doc)
}

// Write invokes WriteFunc or falls back to the inner backend.
func (m *Mock) Write(name string, doc Document, data []byte) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(name, doc, data)
	}
	return m.Inner.Write(name, doc, data)
}

// Delete invokes DeleteFunc or falls back to the inner backend.
func (m *Mock) Delete(name string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(name)
	}
	return m.Inner.Delete(name)
}

// List invokes ListFunc or falls back to the inner backend.
func (m *Mock) List() ([]string, error) {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	return m.Inner.List()
}

// Exists invokes ExistsFunc or falls back to the inner backend.
func (m *Mock) Exists(name string, doc Document) bool {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(name, doc)
	}
	return m.Inner.Exists(name, doc)
}

// Compile-time interface compliance check.
var _ Backend = (*Mock)(nil)
