// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/parcelbio/benchdeploy/cmd/benchdeploy/config"
	"github.com/parcelbio/benchdeploy/pkg/profile"
	"github.com/parcelbio/benchdeploy/pkg/profile/storage"
)

// captureStdout redirects os.Stdout for the duration of fn.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = orig
	out, _ := io.ReadAll(r)
	return string(out)
}

// feedStdin replaces os.Stdin with a pipe carrying input for the
// duration of fn.
func feedStdin(t *testing.T, input string, fn func()) {
	t.Helper()
	orig := os.Stdin
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdin = r
	if _, err := w.WriteString(input); err != nil {
		t.Fatalf("write stdin: %v", err)
	}
	w.Close()

	fn()

	os.Stdin = orig
}

// =============================================================================
// ROOT HELPERS
// =============================================================================

func TestProfileArg(t *testing.T) {
	origGlobal := config.Global
	defer func() { config.Global = origGlobal }()
	config.Global.DefaultProfile = "default"

	if got := profileArg([]string{"staging"}); got != "staging" {
		t.Errorf("profileArg with arg = %q, want %q", got, "staging")
	}
	if got := profileArg(nil); got != "default" {
		t.Errorf("profileArg without arg = %q, want %q", got, "default")
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "yes\n", true},
		{"y", "y\n", true},
		{"uppercase yes", "YES\n", true},
		{"padded yes", "  yes  \n", true},
		{"no", "no\n", false},
		{"n", "n\n", false},
		{"empty line", "\n", false},
		{"eof", "", false},
		{"gibberish", "sure why not\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got bool
			captureStdout(t, func() {
				feedStdin(t, tt.input, func() {
					got = confirm("Proceed?")
				})
			})
			if got != tt.want {
				t.Errorf("confirm with input %q = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCommandTree(t *testing.T) {
	want := []string{"setup", "profiles", "deployments", "doctor", "version"}
	have := map[string]bool{}
	for _, sub := range rootCmd.Commands() {
		have[sub.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("root command is missing subcommand %q", name)
		}
	}

	profileSubs := map[string]bool{}
	for _, sub := range profilesCmd.Commands() {
		profileSubs[sub.Name()] = true
	}
	for _, name := range []string{"list", "show", "delete", "export", "import"} {
		if !profileSubs[name] {
			t.Errorf("profiles command is missing subcommand %q", name)
		}
	}

	deploySubs := map[string]bool{}
	for _, sub := range deploymentsCmd.Commands() {
		deploySubs[sub.Name()] = true
	}
	for _, name := range []string{"list", "record"} {
		if !deploySubs[name] {
			t.Errorf("deployments command is missing subcommand %q", name)
		}
	}
}

// =============================================================================
// DOCUMENT ENCODING
// =============================================================================

func TestDecodeProfileDocument_JSON(t *testing.T) {
	doc := `{"quilt": {"catalog": "catalog.example.com"}, "_inherits": "parent"}`
	cfg, err := decodeProfileDocument([]byte(doc))
	if err != nil {
		t.Fatalf("decodeProfileDocument: %v", err)
	}
	if cfg.Quilt == nil || cfg.Quilt.Catalog != "catalog.example.com" {
		t.Errorf("catalog not decoded: %+v", cfg.Quilt)
	}
	if cfg.Inherits != "parent" {
		t.Errorf("Inherits = %q, want %q", cfg.Inherits, "parent")
	}
}

func TestDecodeProfileDocument_YAML(t *testing.T) {
	doc := "quilt:\n  catalog: catalog.example.com\nbenchling:\n  tenant: acme.benchling.com\n"
	cfg, err := decodeProfileDocument([]byte(doc))
	if err != nil {
		t.Fatalf("decodeProfileDocument: %v", err)
	}
	if cfg.Quilt == nil || cfg.Quilt.Catalog != "catalog.example.com" {
		t.Errorf("catalog not decoded: %+v", cfg.Quilt)
	}
	if cfg.Benchling == nil || cfg.Benchling.Tenant != "acme.benchling.com" {
		t.Errorf("tenant not decoded: %+v", cfg.Benchling)
	}
}

func TestDecodeProfileDocument_LeadingWhitespaceJSON(t *testing.T) {
	doc := "\n\t {\"_inherits\": \"base\"}"
	cfg, err := decodeProfileDocument([]byte(doc))
	if err != nil {
		t.Fatalf("decodeProfileDocument: %v", err)
	}
	if cfg.Inherits != "base" {
		t.Errorf("Inherits = %q, want %q", cfg.Inherits, "base")
	}
}

func TestDecodeProfileDocument_MalformedJSON(t *testing.T) {
	if _, err := decodeProfileDocument([]byte("{broken")); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestEncodeProfileDocument_RoundTrip(t *testing.T) {
	in := &profile.Config{
		Quilt:    &profile.Quilt{Catalog: "catalog.example.com"},
		Inherits: "parent",
	}

	for _, asYAML := range []bool{false, true} {
		data, err := encodeProfileDocument(in, asYAML)
		if err != nil {
			t.Fatalf("encodeProfileDocument(yaml=%v): %v", asYAML, err)
		}
		out, err := decodeProfileDocument(data)
		if err != nil {
			t.Fatalf("decodeProfileDocument(yaml=%v): %v", asYAML, err)
		}
		if out.Quilt == nil || out.Quilt.Catalog != in.Quilt.Catalog {
			t.Errorf("yaml=%v: catalog did not survive the round trip", asYAML)
		}
		if out.Inherits != in.Inherits {
			t.Errorf("yaml=%v: Inherits = %q, want %q", asYAML, out.Inherits, in.Inherits)
		}
	}
}

func TestEncodeProfileDocument_JSONIsPretty(t *testing.T) {
	data, err := encodeProfileDocument(&profile.Config{Inherits: "p"}, false)
	if err != nil {
		t.Fatalf("encodeProfileDocument: %v", err)
	}
	if !strings.HasPrefix(string(data), "{\n  ") {
		t.Errorf("JSON output is not indented: %q", string(data)[:min(20, len(data))])
	}
}

// =============================================================================
// WIZARD ANSWERS
// =============================================================================

func TestWizardAnswers_Config_EmptySectionsStayNil(t *testing.T) {
	a := &wizardAnswers{name: "dev", inherit: "prod"}
	cfg := a.config()

	if cfg.Inherits != "prod" {
		t.Errorf("Inherits = %q, want %q", cfg.Inherits, "prod")
	}
	if cfg.Quilt != nil || cfg.Benchling != nil || cfg.Packages != nil ||
		cfg.Deployment != nil || cfg.Logging != nil || cfg.Security != nil {
		t.Errorf("untouched sections should stay nil: %+v", cfg)
	}
}

func TestWizardAnswers_Config_PartialSection(t *testing.T) {
	a := &wizardAnswers{inherit: "prod", catalog: "other.example.com"}
	cfg := a.config()

	if cfg.Quilt == nil || cfg.Quilt.Catalog != "other.example.com" {
		t.Fatalf("Quilt section not built: %+v", cfg.Quilt)
	}
	if cfg.Quilt.StackArn != "" {
		t.Errorf("StackArn should be empty, got %q", cfg.Quilt.StackArn)
	}
	if cfg.Benchling != nil {
		t.Errorf("Benchling should stay nil")
	}
}

func TestWizardAnswers_Config_Options(t *testing.T) {
	a := &wizardAnswers{logLevel: "debug", logRetention: "90", restrictPublic: true}
	cfg := a.config()

	if cfg.Logging == nil || cfg.Logging.Level != "debug" || cfg.Logging.RetentionDays != 90 {
		t.Errorf("Logging section wrong: %+v", cfg.Logging)
	}
	if cfg.Security == nil || !cfg.Security.RestrictPublicBuckets {
		t.Errorf("Security section wrong: %+v", cfg.Security)
	}
}

func TestWizardAnswers_RequiredWhenStandalone(t *testing.T) {
	standalone := &wizardAnswers{}
	if err := standalone.requiredWhenStandalone("catalog domain")(""); err == nil {
		t.Error("standalone profile should require the field")
	}
	if err := standalone.requiredWhenStandalone("catalog domain")("catalog.example.com"); err != nil {
		t.Errorf("filled field should pass: %v", err)
	}

	inheriting := &wizardAnswers{inherit: "prod"}
	if err := inheriting.requiredWhenStandalone("catalog domain")(""); err != nil {
		t.Errorf("inheriting profile may leave the field empty: %v", err)
	}
}

func TestValidateARN(t *testing.T) {
	if err := validateARN(""); err != nil {
		t.Errorf("empty ARN should pass: %v", err)
	}
	if err := validateARN("arn:aws:s3:::bucket"); err != nil {
		t.Errorf("valid ARN should pass: %v", err)
	}
	if err := validateARN("s3://bucket"); err == nil {
		t.Error("non-ARN should fail")
	}
}

func TestValidateAccount(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
	}{
		{"", true},
		{"123456789012", true},
		{"12345", false},
		{"1234567890123", false},
		{"12345678901a", false},
	}
	for _, tt := range tests {
		err := validateAccount(tt.input)
		if tt.ok && err != nil {
			t.Errorf("validateAccount(%q) = %v, want nil", tt.input, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("validateAccount(%q) = nil, want error", tt.input)
		}
	}
}

func TestValidateRetention(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
	}{
		{"", true},
		{"1", true},
		{"3653", true},
		{"0", false},
		{"3654", false},
		{"ninety", false},
	}
	for _, tt := range tests {
		err := validateRetention(tt.input)
		if tt.ok && err != nil {
			t.Errorf("validateRetention(%q) = %v, want nil", tt.input, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("validateRetention(%q) = nil, want error", tt.input)
		}
	}
}

// =============================================================================
// DEPLOYMENTS HELPERS
// =============================================================================

func TestFilterHistory(t *testing.T) {
	hist := profile.NewHistory()
	dev := profile.Record{ID: "1", Stage: "dev", ImageTag: "v1"}
	prod := profile.Record{ID: "2", Stage: "prod", ImageTag: "v1"}
	dev2 := profile.Record{ID: "3", Stage: "dev", ImageTag: "v2"}
	hist.Active["dev"] = dev2
	hist.Active["prod"] = prod
	hist.History = []profile.Record{dev, prod, dev2}

	filtered := filterHistory(hist, "dev")
	if len(filtered.Active) != 1 {
		t.Fatalf("filtered active = %d entries, want 1", len(filtered.Active))
	}
	if filtered.Active["dev"].ID != "3" {
		t.Errorf("active dev = %q, want id 3", filtered.Active["dev"].ID)
	}
	if len(filtered.History) != 2 {
		t.Errorf("filtered history = %d records, want 2", len(filtered.History))
	}

	empty := filterHistory(hist, "staging")
	if len(empty.Active) != 0 || len(empty.History) != 0 {
		t.Errorf("unknown stage should filter everything out: %+v", empty)
	}
}

func TestFormatWhen(t *testing.T) {
	rec := profile.Record{Timestamp: time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)}
	if got := formatWhen(rec); got != "2025-06-01 12:30" {
		t.Errorf("formatWhen = %q", got)
	}
	if got := formatWhen(profile.Record{}); got != "-" {
		t.Errorf("formatWhen on zero time = %q, want -", got)
	}
}

func TestShortCommit(t *testing.T) {
	if got := shortCommit("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortCommit = %q", got)
	}
	if got := shortCommit("abc"); got != "abc" {
		t.Errorf("short input should pass through, got %q", got)
	}
}

func TestOrDash(t *testing.T) {
	if got := orDash(""); got != "-" {
		t.Errorf("orDash(\"\") = %q", got)
	}
	if got := orDash("x"); got != "x" {
		t.Errorf("orDash(\"x\") = %q", got)
	}
}

// =============================================================================
// PROFILE LIST ROWS
// =============================================================================

func TestProfileRow(t *testing.T) {
	origStore := store
	defer func() { store = origStore }()
	store = profile.New(storage.NewMemory())

	parent := &profile.Config{
		Quilt:      &profile.Quilt{Catalog: "catalog.example.com"},
		Benchling:  &profile.Benchling{Tenant: "acme.benchling.com"},
		Packages:   &profile.Packages{Bucket: "pkg"},
		Deployment: &profile.Deployment{Region: "us-east-1"},
		Metadata: &profile.Metadata{
			SchemaVersion: profile.CurrentSchemaVersion,
			CreatedAt:     time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt:     time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC),
			Source:        profile.SourceCLI,
		},
	}
	if err := store.Write("parent", parent); err != nil {
		t.Fatalf("write parent: %v", err)
	}

	child := &profile.Config{
		Benchling: &profile.Benchling{Tenant: "beta.benchling.com"},
		Metadata: &profile.Metadata{
			SchemaVersion: profile.CurrentSchemaVersion,
			CreatedAt:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt:     time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
			Source:        profile.SourceCLI,
		},
		Inherits: "parent",
	}
	if err := store.Write("child", child); err != nil {
		t.Fatalf("write child: %v", err)
	}

	row := profileRow("child")
	if row[0] != "child (inherits parent)" {
		t.Errorf("name cell = %q", row[0])
	}
	if row[1] != "catalog.example.com" {
		t.Errorf("catalog cell = %q, want the inherited catalog", row[1])
	}
	if row[2] != "beta.benchling.com" {
		t.Errorf("tenant cell = %q, want the override", row[2])
	}
	if row[3] != "2025-06-02" {
		t.Errorf("updated cell = %q", row[3])
	}
}

func TestProfileRow_Unresolvable(t *testing.T) {
	origStore := store
	defer func() { store = origStore }()
	store = profile.New(storage.NewMemory())

	orphan := &profile.Config{
		Metadata: profile.NewMetadata(profile.SourceCLI),
		Inherits: "ghost",
	}
	if err := store.Write("orphan", orphan); err != nil {
		t.Fatalf("write orphan: %v", err)
	}

	row := profileRow("orphan")
	if row[1] != "(unresolvable)" {
		t.Errorf("catalog cell = %q, want (unresolvable)", row[1])
	}
}
