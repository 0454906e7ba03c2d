// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/AleutianAI/RunnerForge/internal/proc"
	"github.com/AleutianAI/RunnerForge/pkg/ux"
	"github.com/spf13/cobra"
)

// runVersions prints the installed-versus-expected tool comparison.
//
// Drift is a warning, never a failure: this command exits 0 regardless
// of mismatches or missing optional tools, so it is safe to run from
// startup scripts and CI without gating anything.
func runVersions(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pm := proc.NewDefaultManager()
	report := CheckVersions(ctx, pm, runnerTools(), expectedVersionsFromEnv())

	if versionsJSONOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode version report: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ux.Titlef("Tool versions")
	for _, row := range report {
		switch row.Status {
		case "ok":
			if row.Expected != "" {
				ux.Successf("%-12s %s (expected %s)", row.Name, row.Installed, row.Expected)
			} else {
				ux.Successf("%-12s %s", row.Name, row.Installed)
			}
		case "mismatch":
			ux.Warnf("%-12s %s, expected %s", row.Name, row.Installed, row.Expected)
		case "missing":
			ux.Warnf("%-12s not installed", row.Name)
		}
	}
}

// expectedVersionsFromEnv reads RUNNER_EXPECTED_<TOOL> overrides, one
// per tool name upper-cased, such as RUNNER_EXPECTED_NODE=22.
func expectedVersionsFromEnv() map[string]string {
	expected := make(map[string]string)
	for _, tool := range runnerTools() {
		key := "RUNNER_EXPECTED_" + envKeyUpper(tool.Name)
		if v := os.Getenv(key); v != "" {
			expected[tool.Name] = v
		}
	}
	return expected
}

func envKeyUpper(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			c = '_'
		}
		out[i] = c
	}
	return string(out)
}
