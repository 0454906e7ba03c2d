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

// runValidate checks everything `start` will depend on without touching
// docker: the config schema, the compose files, and the secrets file.
func runValidate(cmd *cobra.Command, args []string) {
	cfg := config.Global
	failed := false

	ux.Titlef("Configuration")
	if err := config.Validate(&cfg); err != nil {
		ux.Errorf("%v", err)
		failed = true
	} else {
		path, _ := config.Path()
		ux.Successf("%s is valid", path)
	}

	ux.Titlef("Compose files")
	if _, err := os.Stat(cfg.ComposeFile); err != nil {
		ux.Errorf("compose file %s not found", cfg.ComposeFile)
		failed = true
	} else {
		ux.Successf("%s", cfg.ComposeFile)
	}
	if cfg.OverrideFile != "" {
		if _, err := os.Stat(cfg.OverrideFile); err == nil {
			ux.Successf("%s (override, will be layered)", cfg.OverrideFile)
		} else {
			ux.Infof("No override file at %s (optional)", cfg.OverrideFile)
		}
	}

	ux.Titlef("Secrets")
	report, err := ValidateSecretsFile(cfg.SecretsFile)
	if err != nil {
		ux.Errorf("%v", err)
		failed = true
	} else if !report.OK() {
		for _, finding := range report.Findings {
			ux.Errorf("%s", finding)
		}
		failed = true
	} else {
		ux.Successf("%s is valid (%d entries)", cfg.SecretsFile, report.Entries)
	}

	ux.Titlef("Workspace")
	if info, err := os.Stat(cfg.Workspace); err != nil {
		ux.Warnf("workspace %s does not exist yet; it will be created on start", cfg.Workspace)
	} else if !info.IsDir() {
		ux.Errorf("workspace %s is not a directory", cfg.Workspace)
		failed = true
	} else {
		ux.Successf("%s", cfg.Workspace)
	}

	if failed {
		os.Exit(1)
	}
	ux.Successf("All checks passed")
}
