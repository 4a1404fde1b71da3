// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/parcelbio/benchdeploy/pkg/profile"
	"github.com/parcelbio/benchdeploy/pkg/ux"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	setupName    string // Profile name, skips the name prompt
	setupInherit string // Parent profile, skips the inherit prompt
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// setupCmd creates or updates a profile through an interactive form.
//
// # Description
//
// Walks through every profile section (Quilt stack, Benchling tenant,
// package destination, deployment target, options), previews the
// resulting document, and writes it to the store after confirmation.
// When the profile inherits from a parent, fields left empty are simply
// omitted from the document and come from the parent at resolution time.
//
// # Examples
//
//	benchdeploy setup                          # Fully interactive
//	benchdeploy setup --name staging           # Name decided up front
//	benchdeploy setup --name dev --inherit prod
//
// # Exit Codes
//
//	0 - Profile written, or wizard aborted by the user
//	1 - Wizard failed or the document did not validate
var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create a profile interactively",
	Args:  cobra.NoArgs,
	RunE:  runSetup,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	setupCmd.Flags().StringVar(&setupName, "name", "",
		"Name for the new profile (prompted when omitted)")
	setupCmd.Flags().StringVar(&setupInherit, "inherit", "",
		"Parent profile to inherit from (prompted when omitted)")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// wizardAnswers accumulates the raw form values. Everything is collected
// as strings; config() prunes untouched sections so an inheriting
// profile stays a minimal overlay.
type wizardAnswers struct {
	name    string
	inherit string

	stackArn    string
	catalog     string
	database    string
	queueURL    string
	quiltRegion string

	tenant          string
	clientID        string
	secretArn       string
	appDefinitionID string

	bucket      string
	prefix      string
	metadataKey string

	deployRegion string
	account      string
	imageTag     string
	stackName    string

	logLevel       string
	logRetention   string
	kmsKeyArn      string
	restrictPublic bool
}

func runSetup(cmd *cobra.Command, args []string) error {
	if !ux.IsInteractive() {
		return fmt.Errorf("setup needs an interactive terminal; " +
			"pipe a document into `benchdeploy profiles import` instead")
	}

	if setupName != "" {
		if err := profile.NewValidator().ValidateName(setupName); err != nil {
			return err
		}
	}

	existing, err := store.List()
	if err != nil {
		return err
	}
	if setupInherit != "" && !store.Exists(setupInherit) {
		return fmt.Errorf("parent profile %q does not exist", setupInherit)
	}

	answers := &wizardAnswers{name: setupName, inherit: setupInherit}

	if err := buildWizardForm(answers, existing).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("Aborted.")
			return nil
		}
		return err
	}

	cfg := answers.config()
	cfg.Metadata = profile.NewMetadata(profile.SourceWizard)

	// Rerunning setup over an existing profile is an update, not a new
	// creation, so its original creation time survives.
	if prior, err := store.Read(answers.name); err == nil && prior.Metadata != nil {
		cfg.Metadata.CreatedAt = prior.Metadata.CreatedAt
	}

	preview, err := encodeProfileDocument(cfg, false)
	if err != nil {
		return err
	}
	ux.Box(fmt.Sprintf("Profile %q", answers.name), string(preview))

	write := true
	confirmForm := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("Write profile %q?", answers.name)).
			Affirmative("Write").
			Negative("Discard").
			Value(&write),
	))
	if err := confirmForm.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("Aborted.")
			return nil
		}
		return err
	}
	if !write {
		fmt.Println("Aborted.")
		return nil
	}

	if err := store.Write(answers.name, cfg); err != nil {
		return err
	}
	ux.Success(fmt.Sprintf("Profile %q written.", answers.name))
	ux.Muted(fmt.Sprintf("Inspect it with: benchdeploy profiles show %s", answers.name))
	return nil
}

// buildWizardForm assembles the form groups. Fields already settled by
// flags are left out of the form entirely.
func buildWizardForm(a *wizardAnswers, existing []string) *huh.Form {
	val := profile.NewValidator()

	var identity []huh.Field
	if a.name == "" {
		identity = append(identity, huh.NewInput().
			Title("Profile name").
			Description("Lowercase letters, digits, '-' and '_'").
			Placeholder("staging").
			Value(&a.name).
			Validate(val.ValidateName))
	}
	if a.inherit == "" && len(existing) > 0 {
		options := []huh.Option[string]{huh.NewOption("(standalone)", "")}
		for _, name := range existing {
			options = append(options, huh.NewOption(name, name))
		}
		identity = append(identity, huh.NewSelect[string]().
			Title("Inherit from").
			Description("Fields left empty later will come from the parent").
			Options(options...).
			Value(&a.inherit))
	}

	groups := make([]*huh.Group, 0, 6)
	if len(identity) > 0 {
		groups = append(groups, huh.NewGroup(identity...).Title("Profile"))
	}

	groups = append(groups, huh.NewGroup(
		huh.NewInput().
			Title("Catalog domain").
			Placeholder("catalog.example.com").
			Value(&a.catalog).
			Validate(a.requiredWhenStandalone("catalog domain")),
		huh.NewInput().
			Title("Stack ARN").
			Placeholder("arn:aws:cloudformation:us-east-1:123456789012:stack/quilt/...").
			Value(&a.stackArn).
			Validate(validateARN),
		huh.NewInput().
			Title("Stack region").
			Placeholder("us-east-1").
			Value(&a.quiltRegion),
		huh.NewInput().
			Title("Metadata database").
			Value(&a.database),
		huh.NewInput().
			Title("Package event queue URL").
			Placeholder("https://sqs.us-east-1.amazonaws.com/123456789012/quilt-events").
			Value(&a.queueURL),
	).Title("Quilt stack"))

	groups = append(groups, huh.NewGroup(
		huh.NewInput().
			Title("Tenant domain").
			Placeholder("acme.benchling.com").
			Value(&a.tenant).
			Validate(a.requiredWhenStandalone("tenant domain")),
		huh.NewInput().
			Title("App client ID").
			Value(&a.clientID),
		huh.NewInput().
			Title("Client secret ARN").
			Description("Reference only; the secret itself is never stored").
			Placeholder("arn:aws:secretsmanager:...").
			Value(&a.secretArn).
			Validate(validateARN),
		huh.NewInput().
			Title("App definition ID").
			Value(&a.appDefinitionID),
	).Title("Benchling tenant"))

	groups = append(groups, huh.NewGroup(
		huh.NewInput().
			Title("Destination bucket").
			Placeholder("acme-quilt-packages").
			Value(&a.bucket).
			Validate(a.requiredWhenStandalone("destination bucket")),
		huh.NewInput().
			Title("Key prefix").
			Placeholder("benchling/").
			Value(&a.prefix),
		huh.NewInput().
			Title("Metadata key").
			Placeholder("experiment_id").
			Value(&a.metadataKey),
	).Title("Packages"))

	groups = append(groups, huh.NewGroup(
		huh.NewInput().
			Title("Deploy region").
			Placeholder("us-east-1").
			Value(&a.deployRegion).
			Validate(a.requiredWhenStandalone("deploy region")),
		huh.NewInput().
			Title("Account ID").
			Placeholder("123456789012").
			Value(&a.account).
			Validate(validateAccount),
		huh.NewInput().
			Title("Image tag override").
			Value(&a.imageTag),
		huh.NewInput().
			Title("Stack name override").
			Value(&a.stackName),
	).Title("Deployment target"))

	groups = append(groups, huh.NewGroup(
		huh.NewSelect[string]().
			Title("Log level").
			Options(
				huh.NewOption("(default)", ""),
				huh.NewOption("debug", "debug"),
				huh.NewOption("info", "info"),
				huh.NewOption("warn", "warn"),
				huh.NewOption("error", "error"),
			).
			Value(&a.logLevel),
		huh.NewInput().
			Title("Log retention days").
			Placeholder("90").
			Value(&a.logRetention).
			Validate(validateRetention),
		huh.NewInput().
			Title("KMS key ARN").
			Value(&a.kmsKeyArn).
			Validate(validateARN),
		huh.NewConfirm().
			Title("Restrict public buckets?").
			Value(&a.restrictPublic),
	).Title("Options"))

	return huh.NewForm(groups...)
}

// config turns the collected answers into a profile document. Sections
// where every field was left empty stay nil so they are omitted from the
// persisted JSON and, for inheriting profiles, filled by the parent.
func (a *wizardAnswers) config() *profile.Config {
	cfg := &profile.Config{Inherits: a.inherit}

	if a.stackArn != "" || a.catalog != "" || a.database != "" || a.queueURL != "" || a.quiltRegion != "" {
		cfg.Quilt = &profile.Quilt{
			StackArn: a.stackArn,
			Catalog:  a.catalog,
			Database: a.database,
			QueueURL: a.queueURL,
			Region:   a.quiltRegion,
		}
	}
	if a.tenant != "" || a.clientID != "" || a.secretArn != "" || a.appDefinitionID != "" {
		cfg.Benchling = &profile.Benchling{
			Tenant:          a.tenant,
			ClientID:        a.clientID,
			SecretArn:       a.secretArn,
			AppDefinitionID: a.appDefinitionID,
		}
	}
	if a.bucket != "" || a.prefix != "" || a.metadataKey != "" {
		cfg.Packages = &profile.Packages{
			Bucket:      a.bucket,
			Prefix:      a.prefix,
			MetadataKey: a.metadataKey,
		}
	}
	if a.deployRegion != "" || a.account != "" || a.imageTag != "" || a.stackName != "" {
		cfg.Deployment = &profile.Deployment{
			Region:    a.deployRegion,
			Account:   a.account,
			ImageTag:  a.imageTag,
			StackName: a.stackName,
		}
	}
	if a.logLevel != "" || a.logRetention != "" {
		retention, _ := strconv.Atoi(a.logRetention)
		cfg.Logging = &profile.Logging{
			Level:         a.logLevel,
			RetentionDays: retention,
		}
	}
	if a.kmsKeyArn != "" || a.restrictPublic {
		cfg.Security = &profile.Security{
			KMSKeyArn:             a.kmsKeyArn,
			RestrictPublicBuckets: a.restrictPublic,
		}
	}
	return cfg
}

// requiredWhenStandalone enforces the core field of each section for
// profiles that do not inherit. The inherit answer is read at validation
// time, after its group has already run.
func (a *wizardAnswers) requiredWhenStandalone(label string) func(string) error {
	return func(s string) error {
		if a.inherit == "" && strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required unless the profile inherits", label)
		}
		return nil
	}
}

func validateARN(s string) error {
	if s != "" && !strings.HasPrefix(s, "arn:") {
		return errors.New("must start with arn:")
	}
	return nil
}

func validateAccount(s string) error {
	if s == "" {
		return nil
	}
	if len(s) != 12 {
		return errors.New("must be a 12-digit account ID")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return errors.New("must be a 12-digit account ID")
		}
	}
	return nil
}

func validateRetention(s string) error {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 3653 {
		return errors.New("must be between 1 and 3653 days")
	}
	return nil
}
