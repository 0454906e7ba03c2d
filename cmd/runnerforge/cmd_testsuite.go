// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"

	"github.com/AleutianAI/RunnerForge/cmd/runnerforge/config"
	"github.com/AleutianAI/RunnerForge/pkg/ux"
	"github.com/spf13/cobra"
)

func runTestSuite(cmd *cobra.Command, args []string) {
	cfg := config.Global
	ctx := cmd.Context()

	exec := newExecutor()
	requireDaemon(ctx, exec)

	cases := securitySuite()
	if !testSecurity {
		cases = append(functionalSuite(), cases...)
	}

	ux.Titlef("Running %d assertions against %s", len(cases), cfg.Container)
	report := RunSuite(ctx, exec, cfg.Container, cases)

	for _, result := range report.Results {
		if result.Passed {
			ux.Successf("%s (%.2fs)", result.Name, result.Elapsed.Seconds())
		} else {
			ux.Errorf("%s: %s", result.Name, result.Reason)
		}
	}

	ux.Infof("")
	if report.Failed > 0 {
		ux.Errorf("Run %s: %d passed, %d failed", report.RunID, report.Passed, report.Failed)
		os.Exit(1)
	}
	ux.Successf("Run %s: all %d assertions passed", report.RunID, report.Passed)
}
