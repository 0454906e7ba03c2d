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
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// The health verbs speak to orchestrators, not humans: exactly one JSON
// document on stdout, verdict in the exit code. Exit 0 iff healthy.
// Anything human-readable goes to stderr so `docker exec ... | jq`
// always works.

// runHealthLive executes the liveness probe. Liveness can only pass:
// if runnerctl is executing, the container's PID 1 tree is alive.
func runHealthLive(cmd *cobra.Command, args []string) {
	checker := NewDefaultHealthChecker(proc.NewDefaultManager(), DefaultHealthCheckerConfig(runtimeEnv))
	writeHealthJSON(checker.Live())
}

// runHealthReady executes the full readiness check set and exits with
// the verdict.
func runHealthReady(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	checker := NewDefaultHealthChecker(proc.NewDefaultManager(), DefaultHealthCheckerConfig(runtimeEnv))
	report := checker.Ready(ctx)

	writeHealthJSON(report)
	if report.Status != CheckStatusHealthy {
		os.Exit(1)
	}
}

// writeHealthJSON marshals a report to stdout. A marshalling failure is
// unreachable for these types but still must not masquerade as healthy.
func writeHealthJSON(report any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode health report: %v\n", err)
		os.Exit(1)
	}
}
