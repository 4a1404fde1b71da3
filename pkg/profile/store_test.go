// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package profile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelbio/benchdeploy/pkg/profile/storage"
)

// =============================================================================
// Shared Fixtures
// =============================================================================

// testTime is fixed and UTC so documents round-trip deep-equal.
var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testMetadata() *Metadata {
	return &Metadata{
		SchemaVersion: CurrentSchemaVersion,
		CreatedAt:     testTime,
		UpdatedAt:     testTime,
		Source:        SourceWizard,
	}
}

// validConfig returns a fully populated standalone profile.
func validConfig() *Config {
	return &Config{
		Quilt: &Quilt{
			StackArn: "arn:aws:cloudformation:us-east-1:123456789012:stack/quilt-prod/abc123",
			Catalog:  "catalog.example.com",
			Database: "quilt_metadata",
			QueueURL: "https://sqs.us-east-1.amazonaws.com/123456789012/quilt-events",
			Region:   "us-east-1",
		},
		Benchling: &Benchling{
			Tenant:          "acme.benchling.com",
			ClientID:        "client-abc123",
			SecretArn:       "arn:aws:secretsmanager:us-east-1:123456789012:secret:benchling-xyz",
			AppDefinitionID: "appdef_parent",
		},
		Packages: &Packages{
			Bucket:      "acme-quilt-packages",
			Prefix:      "benchling/",
			MetadataKey: "experiment_id",
		},
		Deployment: &Deployment{
			Region:  "us-east-1",
			Account: "123456789012",
		},
		Metadata: testMetadata(),
	}
}

func newMemoryStore() *Store {
	return New(storage.NewMemory())
}

// =============================================================================
// Round-Trip
// =============================================================================

func TestStore_RoundTrip(t *testing.T) {
	store := newMemoryStore()
	cfg := validConfig()

	require.NoError(t, store.Write("prod", cfg))

	got, err := store.Read("prod")
	require.NoError(t, err)
	assert.Equal(t, cfg, got, "read must return a value deep-equal to what was written")
}

func TestStore_RoundTripFilesystem(t *testing.T) {
	base := t.TempDir()
	backend, err := storage.NewFilesystem(base)
	require.NoError(t, err)
	store := New(backend)

	cfg := validConfig()
	require.NoError(t, store.Write("prod", cfg))

	got, err := store.Read("prod")
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	// On-disk document is pretty-printed for hand inspection.
	raw, err := os.ReadFile(filepath.Join(base, "prod", "config.json"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "{\n  "), "document should be indented")
	assert.Contains(t, string(raw), `"_metadata"`)
}

func TestStore_WriteDoesNotMutateCaller(t *testing.T) {
	store := newMemoryStore()
	cfg := validConfig()
	before := *cfg.Metadata

	require.NoError(t, store.Write("prod", cfg))

	assert.Equal(t, before, *cfg.Metadata, "write must not touch the caller's metadata")
}

// =============================================================================
// Validation Is All-Or-Nothing
// =============================================================================

func TestStore_InvalidWritePersistsNothing(t *testing.T) {
	store := newMemoryStore()

	cfg := validConfig()
	cfg.Quilt = nil
	cfg.Benchling = nil

	err := store.Write("broken", cfg)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.GreaterOrEqual(t, len(verr.Violations), 2, "every violation reported together")

	joined := strings.Join(verr.Violations, "\n")
	assert.Contains(t, joined, "quilt")
	assert.Contains(t, joined, "benchling")

	assert.False(t, store.Exists("broken"))
	names, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStore_InvalidRewriteLeavesOldVersion(t *testing.T) {
	store := newMemoryStore()

	good := validConfig()
	require.NoError(t, store.Write("prod", good))

	bad := validConfig()
	bad.Metadata = nil
	require.Error(t, store.Write("prod", bad))

	got, err := store.Read("prod")
	require.NoError(t, err)
	assert.Equal(t, good, got, "failed write must leave the stored version untouched")
}

func TestStore_WriteRejectsBadNames(t *testing.T) {
	store := newMemoryStore()
	cfg := validConfig()

	for _, name := range []string{"", "Has Spaces", "UPPER", "-leading", "a/b", "profiles"} {
		t.Run(name, func(t *testing.T) {
			err := store.Write(name, cfg)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr, "name %q should be rejected", name)
			assert.False(t, store.Exists(name))
		})
	}
}

// =============================================================================
// Inheritance
// =============================================================================

func TestStore_InheritanceMerge(t *testing.T) {
	store := newMemoryStore()

	parent := validConfig()
	parent.Quilt.Catalog = "a.com"
	require.NoError(t, store.Write("parent", parent))

	child := &Config{
		Inherits:  "parent",
		Benchling: &Benchling{AppDefinitionID: "appdef_child"},
		Metadata:  testMetadata(),
	}
	require.NoError(t, store.Write("child", child))

	resolved, err := store.ReadResolved("child")
	require.NoError(t, err)

	assert.Equal(t, "a.com", resolved.Quilt.Catalog, "inherited section")
	assert.Equal(t, "appdef_child", resolved.Benchling.AppDefinitionID, "child override")
	assert.Equal(t, "acme.benchling.com", resolved.Benchling.Tenant,
		"sibling fields in an overridden section still come from the parent")
	assert.Equal(t, "parent", resolved.Inherits)
}

func TestStore_ReadResolvedStandalone(t *testing.T) {
	store := newMemoryStore()
	cfg := validConfig()
	require.NoError(t, store.Write("prod", cfg))

	resolved, err := store.ReadResolved("prod")
	require.NoError(t, err)
	assert.Equal(t, cfg, resolved, "no inheritance means the raw document is the resolved view")
}

func TestStore_ReadDoesNotResolve(t *testing.T) {
	store := newMemoryStore()

	parent := validConfig()
	require.NoError(t, store.Write("parent", parent))

	child := &Config{
		Inherits: "parent",
		Metadata: testMetadata(),
	}
	require.NoError(t, store.Write("child", child))

	raw, err := store.Read("child")
	require.NoError(t, err)
	assert.Nil(t, raw.Quilt, "raw read must not pull in parent sections")
}

func TestStore_CycleDetection(t *testing.T) {
	store := newMemoryStore()

	a := &Config{Inherits: "b", Metadata: testMetadata()}
	b := &Config{Inherits: "a", Metadata: testMetadata()}
	require.NoError(t, store.Write("a", a))
	require.NoError(t, store.Write("b", b))

	_, err := store.ReadResolved("a")
	require.Error(t, err)

	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "b", "a"}, cycle.Chain)
}

func TestStore_ReadResolvedMissingParent(t *testing.T) {
	store := newMemoryStore()

	child := &Config{Inherits: "ghost", Metadata: testMetadata()}
	require.NoError(t, store.Write("child", child))

	_, err := store.ReadResolved("child")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "ghost")
}

// =============================================================================
// Deployments
// =============================================================================

func TestStore_DeploymentIdempotenceWithGrowth(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.Write("prod", validConfig()))

	_, err := store.RecordDeployment("prod", Record{Stage: "dev", ImageTag: "v1"})
	require.NoError(t, err)
	_, err = store.RecordDeployment("prod", Record{Stage: "dev", ImageTag: "v2"})
	require.NoError(t, err)

	hist, err := store.Deployments("prod")
	require.NoError(t, err)
	assert.Len(t, hist.History, 2, "history grows on every record")
	assert.Equal(t, "v2", hist.Active["dev"].ImageTag, "active map keeps only the latest")
}

func TestStore_MultiStageIsolation(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.Write("prod", validConfig()))

	_, err := store.RecordDeployment("prod", Record{Stage: "dev", ImageTag: "dev-1"})
	require.NoError(t, err)
	_, err = store.RecordDeployment("prod", Record{Stage: "prod", ImageTag: "prod-1"})
	require.NoError(t, err)

	hist, err := store.Deployments("prod")
	require.NoError(t, err)

	assert.Equal(t, []string{"dev", "prod"}, hist.Stages(), "exactly these stages")
	assert.Equal(t, "dev-1", hist.Active["dev"].ImageTag)
	assert.Equal(t, "prod-1", hist.Active["prod"].ImageTag)
	assert.Len(t, hist.History, 2)
}

func TestStore_DeploymentsEmptyForNewProfile(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.Write("prod", validConfig()))

	hist, err := store.Deployments("prod")
	require.NoError(t, err)
	assert.NotNil(t, hist.Active)
	assert.NotNil(t, hist.History)
	assert.Empty(t, hist.Active)
	assert.Empty(t, hist.History)
}

func TestStore_RecordDeploymentFillsIDAndTimestamp(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.Write("prod", validConfig()))

	rec, err := store.RecordDeployment("prod", Record{Stage: "dev"})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.Timestamp.IsZero())
	assert.Equal(t, time.UTC, rec.Timestamp.Location())
}

func TestStore_RecordDeploymentValidates(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.Write("prod", validConfig()))

	_, err := store.RecordDeployment("prod", Record{ImageTag: "v1"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr, "record without a stage must be rejected")

	hist, err := store.Deployments("prod")
	require.NoError(t, err)
	assert.Empty(t, hist.History, "rejected record must not be persisted")
}

// =============================================================================
// Delete Cascade
// =============================================================================

func TestStore_DeleteCascade(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.Write("prod", validConfig()))
	_, err := store.RecordDeployment("prod", Record{Stage: "dev", ImageTag: "v1"})
	require.NoError(t, err)

	require.NoError(t, store.Delete("prod"))

	_, err = store.Read("prod")
	assert.True(t, IsNotFound(err))

	hist, err := store.Deployments("prod")
	require.NoError(t, err, "deployments after delete is an empty ledger, not an error")
	assert.Empty(t, hist.Active)
	assert.Empty(t, hist.History)

	assert.NoError(t, store.Delete("prod"), "delete is idempotent")
}

// =============================================================================
// Not-Found Enrichment
// =============================================================================

func TestStore_NotFoundListsExisting(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.Write("alpha", validConfig()))
	require.NoError(t, store.Write("beta", validConfig()))

	_, err := store.Read("gamma")
	require.Error(t, err)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "gamma", nf.Name)
	assert.Equal(t, []string{"alpha", "beta"}, nf.Existing)
	assert.Contains(t, err.Error(), "alpha, beta")
	assert.Contains(t, err.Error(), "benchdeploy setup")
}

func TestStore_NotFoundEmptyStore(t *testing.T) {
	store := newMemoryStore()

	_, err := store.Read("anything")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "No profiles exist yet")
}

func TestStore_LegacyDetectionScenario(t *testing.T) {
	base := t.TempDir()
	backend, err := storage.NewFilesystem(base)
	require.NoError(t, err)
	store := New(backend)

	// A flat default.json from the old layout, and no default/config.json.
	legacyPath := filepath.Join(base, "default.json")
	require.NoError(t, os.WriteFile(legacyPath, []byte(`{"old":"layout"}`), 0640))

	_, err = store.Read("default")
	require.Error(t, err)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Len(t, nf.Legacy, 1)
	assert.Equal(t, legacyPath, nf.Legacy[0].Path)

	msg := err.Error()
	assert.Contains(t, msg, legacyPath, "message quotes the literal artifact path")
	assert.Contains(t, msg, LegacyFormatVersion)
	assert.Contains(t, msg, "left untouched")
	assert.Contains(t, msg, "benchdeploy setup")
}

// =============================================================================
// Storage Failures
// =============================================================================

func TestStore_WriteFailureWrapped(t *testing.T) {
	mock := storage.NewMock()
	boom := errors.New("disk full")
	mock.WriteFunc = func(name string, doc storage.Document, data []byte) error {
		return boom
	}
	store := New(mock)

	err := store.Write("prod", validConfig())
	require.Error(t, err)

	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "write config", serr.Op)
	assert.ErrorIs(t, err, boom)
}

func TestStore_ReadFailureWrapped(t *testing.T) {
	mock := storage.NewMock()
	boom := errors.New("permission denied")
	mock.ReadFunc = func(name string, doc storage.Document) ([]byte, error) {
		return nil, boom
	}
	store := New(mock)

	_, err := store.Read("prod")
	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsNotFound(err), "an I/O failure is not a missing profile")
}

func TestStore_CorruptDocument(t *testing.T) {
	mock := storage.NewMock()
	require.NoError(t, mock.Inner.Write("prod", storage.DocumentConfig, []byte("{not json")))
	store := New(mock)

	_, err := store.Read("prod")
	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "parse config", serr.Op)
}

// =============================================================================
// Constructor Defaults
// =============================================================================

func TestNew_LegacyDetectorDefaults(t *testing.T) {
	fsBackend, err := storage.NewFilesystem(t.TempDir())
	require.NoError(t, err)

	fsStore := New(fsBackend)
	_, isDir := fsStore.legacy.(*DirLegacyDetector)
	assert.True(t, isDir, "filesystem backend gets directory scanning")

	memStore := New(storage.NewMemory())
	_, isNop := memStore.legacy.(NopLegacyDetector)
	assert.True(t, isNop, "memory backend gets the no-op detector")
}

func TestNew_WithLegacyDetectorOverride(t *testing.T) {
	detector := &MockLegacyDetector{
		DetectFunc: func() []Artifact {
			return []Artifact{{Path: "/tmp/default.json", Kind: "flat profile file"}}
		},
	}
	store := New(storage.NewMemory(), WithLegacyDetector(detector))

	_, err := store.Read("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/tmp/default.json")
}
