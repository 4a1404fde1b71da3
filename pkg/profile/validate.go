// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package profile

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// profileNamePattern: lowercase alphanumeric plus '-' and '_', starting
// with a letter or digit. Keeps profile directories shell- and
// filesystem-safe on every platform.
var profileNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// reservedNames cannot be used as profile names. "profiles" would collide
// with the legacy layout's {base}/profiles/ directory and make a fresh
// profile trip legacy detection for everyone else; "logs" is where the
// CLI writes its log files.
var reservedNames = map[string]bool{
	"profiles": true,
	"logs":     true,
}

// configValidate is the validator instance for profile documents.
// Initialized in init() with custom validations and JSON field naming.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()

	// Report violations under JSON field names, not Go field names.
	configValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = configValidate.RegisterValidation("profilename", validateProfileName)
}

// validateProfileName enforces the profile naming rule, including the
// reserved-name check.
func validateProfileName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if reservedNames[name] {
		return false
	}
	return profileNamePattern.MatchString(name)
}

// namedProfile adapts a bare profile name for struct validation.
type namedProfile struct {
	Name string `json:"name" validate:"required,profilename"`
}

// =============================================================================
// Validator
// =============================================================================

// Validator performs the structural checks every profile document must
// pass before it is persisted.
//
// # Description
//
// The contract is write-time and structural: required top-level sections
// are present (all four on a standalone profile; only _metadata on a
// profile that inherits), and fields that are present have the right
// shape (URLs parse, the account id is 12 digits, the metadata source is
// a known tag). Every violation is collected into a single
// *ValidationError rather than failing one field at a time.
//
// Cross-field business validation (whether a catalog is reachable,
// whether credentials work) belongs to the collaborators that gather the
// values, not here.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns a Validator backed by the shared instance.
func NewValidator() *Validator {
	return &Validator{v: configValidate}
}

// ValidateConfig checks one raw, unresolved profile document.
//
// Returns nil or a *ValidationError enumerating every violated field.
func (val *Validator) ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return &ValidationError{Violations: []string{"profile document is empty"}}
	}

	err := val.v.Struct(cfg)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// InvalidValidationError only fires for non-struct input.
		return &ValidationError{Violations: []string{err.Error()}}
	}

	violations := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		violations = append(violations, describeViolation(fe))
	}
	return &ValidationError{Violations: violations}
}

// ValidateName checks a profile name against the naming rule.
func (val *Validator) ValidateName(name string) error {
	if err := val.v.Struct(namedProfile{Name: name}); err != nil {
		if reservedNames[name] {
			return &ValidationError{Violations: []string{
				fmt.Sprintf("name: %q is reserved and cannot be used as a profile name", name),
			}}
		}
		return &ValidationError{Violations: []string{
			fmt.Sprintf("name: %q is not a valid profile name (lowercase letters, digits, '-' and '_', max 64 characters)", name),
		}}
	}
	return nil
}

// ValidateRecord checks a deployment record before it is tracked.
func (val *Validator) ValidateRecord(rec *Record) error {
	if rec == nil {
		return &ValidationError{Violations: []string{"deployment record is empty"}}
	}

	err := val.v.Struct(rec)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ValidationError{Violations: []string{err.Error()}}
	}

	violations := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		violations = append(violations, describeViolation(fe))
	}
	return &ValidationError{Violations: violations}
}

// describeViolation turns one field error into a human-readable line
// under its JSON path, e.g. "quilt.queueUrl: must be a valid URL".
func describeViolation(fe validator.FieldError) string {
	path := fieldPath(fe)

	switch fe.Tag() {
	case "required":
		if isSectionField(fe) {
			return fmt.Sprintf("%s: required section is missing", path)
		}
		return fmt.Sprintf("%s: required field is missing", path)
	case "required_without":
		return fmt.Sprintf("%s: required section is missing (only profiles with _inherits may omit it)", path)
	case "url":
		return fmt.Sprintf("%s: must be a valid URL", path)
	case "fqdn":
		return fmt.Sprintf("%s: must be a fully qualified domain name", path)
	case "startswith":
		return fmt.Sprintf("%s: must start with %q", path, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s: must be one of: %s", path, strings.Join(strings.Fields(fe.Param()), ", "))
	case "len":
		return fmt.Sprintf("%s: must be exactly %s characters", path, fe.Param())
	case "numeric":
		return fmt.Sprintf("%s: must contain only digits", path)
	case "gte":
		return fmt.Sprintf("%s: must be at least %s", path, fe.Param())
	case "lte":
		return fmt.Sprintf("%s: must be at most %s", path, fe.Param())
	case "profilename":
		return fmt.Sprintf("%s: not a valid profile name", path)
	default:
		return fmt.Sprintf("%s: failed the %q check", path, fe.Tag())
	}
}

// fieldPath strips the root struct name from the namespace, leaving the
// JSON path: "Config.quilt.queueUrl" -> "quilt.queueUrl".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// isSectionField reports whether the violation is on a top-level section
// of the config document rather than a leaf field.
func isSectionField(fe validator.FieldError) bool {
	path := fieldPath(fe)
	return !strings.Contains(path, ".")
}
