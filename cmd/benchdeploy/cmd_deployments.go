// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parcelbio/benchdeploy/pkg/profile"
	"github.com/parcelbio/benchdeploy/pkg/ux"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	deploymentsStage string // Filter list output to one stage
	deploymentsJSON  bool   // Emit the raw history document

	recordStage     string
	recordImageTag  string
	recordEndpoint  string
	recordStackName string
	recordRegion    string
	recordOperator  string
	recordCommit    string
)

func init() {
	deploymentsListCmd.Flags().StringVar(&deploymentsStage, "stage", "",
		"Only show deployments for this stage")
	deploymentsListCmd.Flags().BoolVar(&deploymentsJSON, "json", false,
		"Print the raw history document as JSON")

	deploymentsRecordCmd.Flags().StringVar(&recordStage, "stage", "",
		"Stage the deployment targeted, e.g. dev or prod (required)")
	deploymentsRecordCmd.Flags().StringVar(&recordImageTag, "image-tag", "",
		"Image tag that was deployed")
	deploymentsRecordCmd.Flags().StringVar(&recordEndpoint, "endpoint", "",
		"URL of the deployed service")
	deploymentsRecordCmd.Flags().StringVar(&recordStackName, "stack-name", "",
		"Name of the deployed stack")
	deploymentsRecordCmd.Flags().StringVar(&recordRegion, "region", "",
		"Region the deployment went to")
	deploymentsRecordCmd.Flags().StringVar(&recordOperator, "operator", "",
		"Who ran the deployment")
	deploymentsRecordCmd.Flags().StringVar(&recordCommit, "commit", "",
		"Commit the deployed build came from")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runDeploymentsList shows what is currently deployed where for one
// profile, followed by the full deployment log.
func runDeploymentsList(cmd *cobra.Command, args []string) error {
	name := profileArg(args)

	// Read the profile first so a typo gets the rich not-found message
	// instead of a silently empty history.
	if _, err := store.Read(name); err != nil {
		return err
	}

	hist, err := store.Deployments(name)
	if err != nil {
		return err
	}
	if deploymentsStage != "" {
		hist = filterHistory(hist, deploymentsStage)
	}

	if deploymentsJSON || ux.GetPersonality().Level == ux.PersonalityMachine {
		data, err := json.MarshalIndent(hist, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(hist.History) == 0 {
		ux.Info(fmt.Sprintf("No deployments recorded for %q yet.", name))
		return nil
	}

	ux.Title(fmt.Sprintf("Active deployments: %s", name))
	activeRows := make([][]string, 0, len(hist.Active))
	for _, stage := range hist.Stages() {
		rec := hist.Active[stage]
		activeRows = append(activeRows, []string{
			stage,
			orDash(rec.ImageTag),
			orDash(rec.Endpoint),
			formatWhen(rec),
		})
	}
	fmt.Print(ux.Table([]string{"stage", "image", "endpoint", "deployed"}, activeRows))

	fmt.Println()
	ux.Title("History")
	histRows := make([][]string, 0, len(hist.History))
	for _, rec := range hist.History {
		histRows = append(histRows, []string{
			formatWhen(rec),
			rec.Stage,
			orDash(rec.ImageTag),
			orDash(shortCommit(rec.Commit)),
			orDash(rec.Operator),
		})
	}
	fmt.Print(ux.Table([]string{"when", "stage", "image", "commit", "operator"}, histRows))
	return nil
}

// runDeploymentsRecord appends one deployment record for a profile.
// Deploy engines call this after a successful deployment; the record
// becomes the stage's active deployment and joins the permanent log.
func runDeploymentsRecord(cmd *cobra.Command, args []string) error {
	if recordStage == "" {
		return fmt.Errorf("--stage is required")
	}
	name := profileArg(args)

	if _, err := store.Read(name); err != nil {
		return err
	}

	rec, err := store.RecordDeployment(name, profile.Record{
		Stage:     recordStage,
		ImageTag:  recordImageTag,
		Endpoint:  recordEndpoint,
		StackName: recordStackName,
		Region:    recordRegion,
		Operator:  recordOperator,
		Commit:    recordCommit,
	})
	if err != nil {
		return err
	}

	ux.Success(fmt.Sprintf("Deployment to %q recorded for profile %q.", rec.Stage, name))
	ux.KeyValue("id", rec.ID)
	ux.KeyValue("timestamp", rec.Timestamp.Format("2006-01-02 15:04:05 MST"))
	if rec.ImageTag != "" {
		ux.KeyValue("image", rec.ImageTag)
	}
	if rec.Endpoint != "" {
		ux.KeyValue("endpoint", rec.Endpoint)
	}
	return nil
}

// filterHistory narrows a history to a single stage.
func filterHistory(hist *profile.History, stage string) *profile.History {
	filtered := profile.NewHistory()
	if rec, ok := hist.Active[stage]; ok {
		filtered.Active[stage] = rec
	}
	for _, rec := range hist.History {
		if rec.Stage == stage {
			filtered.History = append(filtered.History, rec)
		}
	}
	return filtered
}

func formatWhen(rec profile.Record) string {
	if rec.Timestamp.IsZero() {
		return "-"
	}
	return rec.Timestamp.Format("2006-01-02 15:04")
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
