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
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/RunnerForge/cmd/runnerforge/config"
	"github.com/AleutianAI/RunnerForge/pkg/ux"
	"github.com/spf13/cobra"
)

// readinessSummary is the slice of the container probe's JSON report that
// status renders. Unknown fields are ignored on purpose; the probe's
// contract may grow.
type readinessSummary struct {
	Status string `json:"status"`
	Checks map[string]struct {
		Status string `json:"status"`
		Detail string `json:"detail,omitempty"`
	} `json:"checks"`
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := config.Global
	ctx := cmd.Context()

	exec := newExecutor()
	if !exec.DaemonReachable(ctx) {
		ux.Errorf("Docker daemon is unreachable. Is docker running?")
		return
	}

	ux.Titlef("Containers")
	ps, err := exec.PS(ctx, true)
	if err != nil {
		ux.Errorf("docker ps failed: %v", err)
	} else if strings.TrimSpace(ps.Stdout) == "" {
		ux.Infof("No %s containers found. Run: runnerforge start", cfg.Project)
		return
	} else {
		fmt.Print(ps.Stdout)
	}

	ux.Titlef("Resource usage")
	stats, err := exec.Stats(ctx)
	if err != nil {
		ux.Warnf("docker stats failed: %v", err)
	} else {
		fmt.Print(stats.Stdout)
	}

	ux.Titlef("Readiness")
	printReadiness(ctx, exec, cfg.Container)
}

// printReadiness probes the container and renders a per-check table.
func printReadiness(ctx context.Context, exec ComposeExecutor, container string) {
	res, err := exec.Exec(ctx, container, "runnerctl", "health", "ready")
	if errors.Is(err, ErrContainerNotRunning) {
		ux.Warnf("Runner container is not running")
		return
	}
	if err != nil {
		ux.Errorf("readiness probe failed: %v", err)
		return
	}

	var report readinessSummary
	if jsonErr := json.Unmarshal([]byte(res.Stdout), &report); jsonErr != nil {
		ux.Errorf("could not parse the readiness report: %v", jsonErr)
		return
	}

	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		check := report.Checks[name]
		line := fmt.Sprintf("%-16s %s", name, check.Detail)
		switch check.Status {
		case "healthy":
			ux.Successf("%s", line)
		case "unhealthy":
			ux.Errorf("%s", line)
		case "warning":
			ux.Warnf("%s", line)
		default:
			ux.Infof("  %s", line)
		}
	}

	if report.Status == "healthy" {
		ux.Successf("Overall: %s", report.Status)
	} else {
		ux.Errorf("Overall: %s", report.Status)
	}
}
