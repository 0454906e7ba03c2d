// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"time"
)

// HealthContractVersion is the current version of the health report shape.
// Increment when check semantics change so consumers can detect drift.
const HealthContractVersion = "1.0.0"

// CheckStatus is the per-check verdict.
//
// # Description
//
// Four-valued status for a single readiness check. Only "unhealthy" on a
// hard check can flip the overall verdict; "warning" and "info" are
// advisory and never fail the probe.
//
// # Examples
//
//	result := CheckResult{Status: CheckStatusHealthy}
//	if result.Status == CheckStatusUnhealthy {
//	    // check failed
//	}
//
// # Assumptions
//
//   - A check produces exactly one status per evaluation
//   - Statuses are point-in-time snapshots
type CheckStatus string

const (
	// CheckStatusHealthy indicates the check passed.
	CheckStatusHealthy CheckStatus = "healthy"

	// CheckStatusUnhealthy indicates the check failed. On a hard check
	// this makes the whole report unhealthy.
	CheckStatusUnhealthy CheckStatus = "unhealthy"

	// CheckStatusWarning indicates a soft threshold was crossed.
	// Never affects the overall verdict.
	CheckStatusWarning CheckStatus = "warning"

	// CheckStatusInfo indicates an informational observation.
	// Never affects the overall verdict.
	CheckStatusInfo CheckStatus = "info"
)

// CheckResult is the outcome of a single readiness check.
type CheckResult struct {
	Status CheckStatus `json:"status"`

	// Detail is a short human-readable explanation, such as the resolved
	// binary path, free disk bytes, or the error that failed the check.
	Detail string `json:"detail,omitempty"`
}

// HealthReport is the JSON document printed by health verbs and served
// by the /readyz endpoint. Field order in the marshalled output is fixed
// by struct order; repeated invocations with unchanged environment
// differ only in Timestamp.
type HealthReport struct {
	Status    CheckStatus            `json:"status"`
	Version   string                 `json:"version"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// LivenessReport is the minimal document for the live verb. Liveness
// asserts only that the process can run; it carries no checks.
type LivenessReport struct {
	Status    CheckStatus `json:"status"`
	Timestamp string      `json:"timestamp"`
	UptimeSec float64     `json:"uptime_seconds"`
	PID       int         `json:"pid"`
}

// Check keys. Fixed set; consumers key off these strings.
const (
	CheckClaudeCLI     = "claude_cli"
	CheckNodeRuntime   = "node_runtime"
	CheckGoRuntime     = "go_runtime"
	CheckWorkspace     = "workspace"
	CheckDiskSpace     = "disk_space"
	CheckMemory        = "memory"
	CheckMCPConfig     = "mcp_config"
	CheckOTELCollector = "otel_collector"
)

// hardChecks are the checks whose failure makes the container not ready.
// Everything else is advisory.
var hardChecks = map[string]bool{
	CheckClaudeCLI:   true,
	CheckNodeRuntime: true,
	CheckGoRuntime:   true,
	CheckWorkspace:   true,
}

// newTimestamp formats the report timestamp. UTC RFC3339 so repeated
// runs are comparable across hosts.
func newTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
