// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package profile implements the benchdeploy profile store.

A profile is a named, complete deployment environment: the Quilt stack it
targets, the Benchling tenant it integrates with, where packages land, and
how the deployment itself is parameterized. Profiles are persisted as
pretty-printed JSON documents through a storage.Backend, validated before
every write, and may inherit from a parent profile whose values act as
defaults.

The package also tracks deployment history per profile: a map of the most
recent deployment per stage plus an append-only log of every deployment
ever recorded.

Store is the public facade; everything else (Validator, the inheritance
resolver, Tracker, LegacyDetector) is composed behind it.
*/
package profile

import (
	"sort"
	"time"
)

// CurrentSchemaVersion is written into the metadata of every profile this
// version of the tool creates.
const CurrentSchemaVersion = "2.0"

// Metadata source tags. Every profile records which surface created it.
const (
	SourceWizard  = "wizard"
	SourceCLI     = "cli"
	SourceLibrary = "library"
)

// Config is one complete deployment environment.
//
// The four main sections are required on a standalone profile. A profile
// that inherits (Inherits non-empty) is a partial overlay: sections it
// omits come from the parent at resolution time, so only Metadata stays
// mandatory. Optional sections and fields use pointer types and omitempty
// tags so an untouched field never appears in the persisted document.
type Config struct {
	// Quilt identifies the target Quilt stack.
	Quilt *Quilt `json:"quilt,omitempty" yaml:"quilt,omitempty" validate:"required_without=Inherits"`

	// Benchling identifies the Benchling integration.
	Benchling *Benchling `json:"benchling,omitempty" yaml:"benchling,omitempty" validate:"required_without=Inherits"`

	// Packages says where built packages land.
	Packages *Packages `json:"packages,omitempty" yaml:"packages,omitempty" validate:"required_without=Inherits"`

	// Deployment parameterizes the deployment target.
	Deployment *Deployment `json:"deployment,omitempty" yaml:"deployment,omitempty" validate:"required_without=Inherits"`

	// Logging holds optional logging knobs.
	Logging *Logging `json:"logging,omitempty" yaml:"logging,omitempty"`

	// Security holds optional security knobs.
	Security *Security `json:"security,omitempty" yaml:"security,omitempty"`

	// Metadata describes the document itself. Always required.
	Metadata *Metadata `json:"_metadata" yaml:"_metadata" validate:"required"`

	// Inherits names a parent profile whose resolved values form the
	// base for this one. Empty for standalone profiles.
	Inherits string `json:"_inherits,omitempty" yaml:"_inherits,omitempty"`
}

// Quilt is the stack identity section.
type Quilt struct {
	// StackArn is the CloudFormation ARN of the Quilt stack.
	StackArn string `json:"stackArn,omitempty" yaml:"stackArn,omitempty" validate:"omitempty,startswith=arn:"`

	// Catalog is the catalog domain, e.g. "catalog.example.com".
	Catalog string `json:"catalog,omitempty" yaml:"catalog,omitempty" validate:"omitempty,fqdn"`

	// Database is the stack's metadata database name.
	Database string `json:"database,omitempty" yaml:"database,omitempty"`

	// QueueURL is the package-event queue.
	QueueURL string `json:"queueUrl,omitempty" yaml:"queueUrl,omitempty" validate:"omitempty,url"`

	// Region the stack runs in.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Discovered carries extra stack outputs picked up during setup.
	Discovered map[string]string `json:"discovered,omitempty" yaml:"discovered,omitempty"`
}

// Benchling is the integration identity section.
type Benchling struct {
	// Tenant is the Benchling tenant domain, e.g. "acme.benchling.com".
	Tenant string `json:"tenant,omitempty" yaml:"tenant,omitempty" validate:"omitempty,fqdn"`

	// ClientID of the Benchling app.
	ClientID string `json:"clientId,omitempty" yaml:"clientId,omitempty"`

	// SecretArn references the client secret; the secret itself is never
	// stored here.
	SecretArn string `json:"secretArn,omitempty" yaml:"secretArn,omitempty" validate:"omitempty,startswith=arn:"`

	// AppDefinitionID of the Benchling app definition.
	AppDefinitionID string `json:"appDefinitionId,omitempty" yaml:"appDefinitionId,omitempty"`
}

// Packages says where built packages are written.
type Packages struct {
	// Bucket is the destination S3 bucket name.
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`

	// Prefix is prepended to every package key.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// MetadataKey is the package metadata key to index on.
	MetadataKey string `json:"metadataKey,omitempty" yaml:"metadataKey,omitempty"`
}

// Deployment parameterizes the deployment target.
type Deployment struct {
	// Region to deploy into.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Account is the 12-digit target account id.
	Account string `json:"account,omitempty" yaml:"account,omitempty" validate:"omitempty,len=12,numeric"`

	// ImageTag overrides the default image tag.
	ImageTag string `json:"imageTag,omitempty" yaml:"imageTag,omitempty"`

	// StackName overrides the default deployment stack name.
	StackName string `json:"stackName,omitempty" yaml:"stackName,omitempty"`
}

// Logging holds optional logging behavior knobs.
type Logging struct {
	Level         string `json:"level,omitempty" yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	RetentionDays int    `json:"retentionDays,omitempty" yaml:"retentionDays,omitempty" validate:"omitempty,gte=1,lte=3653"`
}

// Security holds optional security behavior knobs.
type Security struct {
	KMSKeyArn             string `json:"kmsKeyArn,omitempty" yaml:"kmsKeyArn,omitempty" validate:"omitempty,startswith=arn:"`
	RestrictPublicBuckets bool   `json:"restrictPublicBuckets,omitempty" yaml:"restrictPublicBuckets,omitempty"`
}

// Metadata describes the profile document itself.
type Metadata struct {
	// SchemaVersion of the document layout.
	SchemaVersion string `json:"schemaVersion" yaml:"schemaVersion" validate:"required"`

	// CreatedAt is set once when the profile is first written.
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt" validate:"required"`

	// UpdatedAt is bumped by callers on every rewrite.
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt" validate:"required"`

	// Source records which surface created the profile: wizard, cli, or
	// library.
	Source string `json:"source" yaml:"source" validate:"required,oneof=wizard cli library"`
}

// NewMetadata returns a fresh metadata block for a profile created now.
//
// Timestamps are UTC so documents round-trip byte-identically through
// JSON.
func NewMetadata(source string) *Metadata {
	now := time.Now().UTC()
	return &Metadata{
		SchemaVersion: CurrentSchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
		Source:        source,
	}
}

// Touch bumps UpdatedAt. Callers invoke it before rewriting a profile.
func (m *Metadata) Touch() {
	m.UpdatedAt = time.Now().UTC()
}

// Record is one deployment event. Records are never mutated or deleted;
// a newer record for the same stage supersedes the older one in the
// active map while the history log keeps both.
type Record struct {
	// ID is assigned by the tracker when empty.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Stage the deployment targeted, e.g. "dev", "staging", "prod".
	Stage string `json:"stage" yaml:"stage" validate:"required"`

	// Timestamp of the deployment. Assigned by the tracker when zero.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// ImageTag that was deployed.
	ImageTag string `json:"imageTag,omitempty" yaml:"imageTag,omitempty"`

	// Endpoint is the deployed service URL.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" validate:"omitempty,url"`

	// StackName of the deployed stack.
	StackName string `json:"stackName,omitempty" yaml:"stackName,omitempty"`

	// Region the deployment went to.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Operator who ran the deployment, when known.
	Operator string `json:"operator,omitempty" yaml:"operator,omitempty"`

	// Commit the deployed build came from, when known.
	Commit string `json:"commit,omitempty" yaml:"commit,omitempty"`
}

// History is the per-profile deployment ledger.
//
// Active maps each stage to its most recent record; stages are only ever
// added or replaced here, never removed, so a stage torn down externally
// still shows its last deployment. History is the append-only log of
// every record ever written and has no retention bound.
type History struct {
	Active  map[string]Record `json:"active" yaml:"active"`
	History []Record          `json:"history" yaml:"history"`
}

// NewHistory returns an empty history with both containers initialized,
// so it marshals as {"active":{},"history":[]} rather than nulls.
func NewHistory() *History {
	return &History{
		Active:  map[string]Record{},
		History: []Record{},
	}
}

// Stages returns the stage names present in the active map, sorted.
func (h *History) Stages() []string {
	stages := make([]string, 0, len(h.Active))
	for stage := range h.Active {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	return stages
}
