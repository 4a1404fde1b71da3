// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"

	"github.com/parcelbio/benchdeploy/pkg/ux"
)

func main() {
	// Execute the root command. Cobra handles parsing the arguments;
	// command errors carry complete, multi-line remediation messages.
	if err := rootCmd.Execute(); err != nil {
		ux.Error(err.Error())
		os.Exit(exitFailure)
	}
}
