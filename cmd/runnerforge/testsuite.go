// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Suite Types
// =============================================================================

// SuiteCase is one assertion executed inside the running container.
type SuiteCase struct {
	// Name identifies the assertion in output.
	Name string

	// Command is executed verbatim via docker exec.
	Command []string

	// WantExitCode is the expected exit code.
	WantExitCode int

	// WantStdoutContains, when non-empty, must appear in stdout.
	WantStdoutContains string

	// WantStdoutOmits, when non-empty, must NOT appear in stdout.
	// Used for negative assertions like "whoami is not root".
	WantStdoutOmits string
}

// CaseResult is the outcome of one executed assertion.
type CaseResult struct {
	Name    string
	Passed  bool
	Elapsed time.Duration
	Reason  string // set when Passed is false
}

// SuiteReport aggregates a suite run. RunID ties the report to log lines
// when suites run repeatedly against the same container.
type SuiteReport struct {
	RunID   string
	Results []CaseResult
	Passed  int
	Failed  int
}

// =============================================================================
// Built-in Suites
// =============================================================================

// functionalSuite asserts the runner's toolchain and health surface work.
func functionalSuite() []SuiteCase {
	return []SuiteCase{
		{
			Name:               "readiness probe reports healthy",
			Command:            []string{"runnerctl", "health", "ready"},
			WantStdoutContains: `"status": "healthy"`,
		},
		{
			Name:    "tool version inventory runs",
			Command: []string{"runnerctl", "versions"},
		},
		{
			Name:               "git is installed",
			Command:            []string{"git", "--version"},
			WantStdoutContains: "git version",
		},
		{
			Name:               "node runtime answers",
			Command:            []string{"node", "--version"},
			WantStdoutContains: "v",
		},
		{
			Name:               "go toolchain answers",
			Command:            []string{"go", "version"},
			WantStdoutContains: "go version",
		},
		{
			Name:    "assistant CLI answers",
			Command: []string{"claude", "--version"},
		},
		{
			Name:    "workspace is writable",
			Command: []string{"sh", "-c", "touch /workspace/.suite-probe && rm /workspace/.suite-probe"},
		},
	}
}

// securitySuite asserts the container's hardening posture. These must hold
// on every image build; a regression here means untrusted workflow code
// gains capabilities it must not have.
func securitySuite() []SuiteCase {
	return []SuiteCase{
		{
			Name:            "runner process is not root",
			Command:         []string{"whoami"},
			WantStdoutOmits: "root",
		},
		{
			Name:    "docker socket is not mounted",
			Command: []string{"sh", "-c", "! test -e /var/run/docker.sock"},
		},
		{
			Name:    "secrets mount is read-only",
			Command: []string{"sh", "-c", "! touch /run/secrets/.rw-probe 2>/dev/null"},
		},
		{
			Name:    "no sudo available",
			Command: []string{"sh", "-c", "! command -v sudo"},
		},
	}
}

// =============================================================================
// Runner
// =============================================================================

// RunSuite executes each case in order inside the named container. A case
// that cannot execute at all (daemon gone, container stopped) fails the
// case rather than aborting the run, so one report covers the whole suite.
func RunSuite(ctx context.Context, exec ComposeExecutor, container string, cases []SuiteCase) *SuiteReport {
	report := &SuiteReport{RunID: uuid.NewString()}

	for _, tc := range cases {
		start := time.Now()
		result := CaseResult{Name: tc.Name}

		res, err := exec.Exec(ctx, container, tc.Command...)
		switch {
		case errors.Is(err, ErrContainerNotRunning):
			result.Reason = "container is not running"
		case err != nil:
			result.Reason = fmt.Sprintf("exec failed: %v", err)
		case res.ExitCode != tc.WantExitCode:
			result.Reason = fmt.Sprintf("exit code %d, want %d: %s",
				res.ExitCode, tc.WantExitCode, strings.TrimSpace(res.Stderr))
		case tc.WantStdoutContains != "" && !strings.Contains(res.Stdout, tc.WantStdoutContains):
			result.Reason = fmt.Sprintf("stdout missing %q", tc.WantStdoutContains)
		case tc.WantStdoutOmits != "" && strings.Contains(res.Stdout, tc.WantStdoutOmits):
			result.Reason = fmt.Sprintf("stdout unexpectedly contains %q", tc.WantStdoutOmits)
		default:
			result.Passed = true
		}

		result.Elapsed = time.Since(start)
		report.Results = append(report.Results, result)
		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	return report
}
