// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package profile

import (
	"errors"
	"fmt"
	"strings"
)

// LegacyFormatVersion is the release that replaced the flat configuration
// layout with one directory per profile. Referenced in not-found errors
// when artifacts of the old layout are present.
const LegacyFormatVersion = "0.4.0"

// setupHint is the remediation command quoted in user-facing errors.
const setupHint = "benchdeploy setup"

// -----------------------------------------------------------------------------
// Error Types
// -----------------------------------------------------------------------------

// NotFoundError is returned when a profile does not exist.
//
// The message lists the profiles that do exist and, when artifacts of the
// pre-0.4.0 layout are present in the storage root, explains the format
// change, names every artifact path, and points at the setup command.
type NotFoundError struct {
	// Name of the profile that was requested.
	Name string

	// Existing profiles found in the store, sorted.
	Existing []string

	// Legacy artifacts detected in the storage root, if any.
	Legacy []Artifact
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "profile %q not found", e.Name)

	if len(e.Legacy) > 0 {
		fmt.Fprintf(&b, "\n\nThe configuration format changed in version %s. Artifacts from the old layout are present:\n", LegacyFormatVersion)
		for _, a := range e.Legacy {
			fmt.Fprintf(&b, "  - %s (%s)\n", a.Path, a.Kind)
		}
		b.WriteString("These files are left untouched for manual reference.\n")
		fmt.Fprintf(&b, "Run `%s` to create a profile in the new format.", setupHint)
		return b.String()
	}

	if len(e.Existing) > 0 {
		fmt.Fprintf(&b, "\n\nExisting profiles: %s\n", strings.Join(e.Existing, ", "))
	} else {
		b.WriteString("\n\nNo profiles exist yet.\n")
	}
	fmt.Fprintf(&b, "Run `%s` to create one.", setupHint)
	return b.String()
}

// ValidationError reports every structural violation found in a profile
// document, together in one error. A write that produces a
// ValidationError has not persisted anything.
type ValidationError struct {
	// Violations are human-readable, one per violated field.
	Violations []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("profile configuration is invalid:\n")
	for _, v := range e.Violations {
		fmt.Fprintf(&b, "  - %s\n", v)
	}
	fmt.Fprintf(&b, "Fix the fields above, or run `%s` to rebuild the profile.", setupHint)
	return b.String()
}

// CycleError is returned when an _inherits chain revisits a profile.
type CycleError struct {
	// Chain is the resolution path, ending with the profile that closed
	// the cycle.
	Chain []string
}

// Closing returns the profile name that closed the cycle.
func (e *CycleError) Closing() string {
	if len(e.Chain) == 0 {
		return ""
	}
	return e.Chain[len(e.Chain)-1]
}

func (e *CycleError) Error() string {
	return fmt.Sprintf(
		"circular profile inheritance: %s\nBreak the loop by removing the _inherits entry from one of these profiles.",
		strings.Join(e.Chain, " -> "),
	)
}

// StorageError wraps an underlying persistence failure (permissions, disk
// full, unparseable document). The cause is available through Unwrap.
type StorageError struct {
	// Op is the operation that failed, e.g. "write config".
	Op string

	// Profile the operation was for.
	Profile string

	// Err is the underlying cause.
	Err error
}

func (e *StorageError) Error() string {
	if e.Profile == "" {
		return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage: %s for profile %q: %v", e.Op, e.Profile, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// IsNotFound reports whether err is a profile not-found error.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
