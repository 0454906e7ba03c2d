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
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/AleutianAI/RunnerForge/internal/proc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// healthyMock returns a process manager where every tool resolves and
// every version probe succeeds.
func healthyMock() *proc.MockManager {
	return &proc.MockManager{
		LookFunc: func(name string) (string, error) {
			return "/usr/local/bin/" + name, nil
		},
		RunFunc: func(ctx context.Context, name string, args ...string) (proc.Result, error) {
			return proc.Result{Stdout: name + " version 1.0.0\n"}, nil
		},
		IsRunningFunc: func(ctx context.Context, pattern string) (bool, int, error) {
			return true, 4242, nil
		},
	}
}

// testChecker builds a checker against a writable temp workspace with
// generous thresholds and a statfs seam reporting plenty of space.
func testChecker(t *testing.T, pm proc.Manager) *DefaultHealthChecker {
	t.Helper()
	workspace := t.TempDir()

	checker := NewDefaultHealthChecker(pm, HealthCheckerConfig{
		Workspace:        workspace,
		MCPConfigPath:    filepath.Join(workspace, ".mcp.json"),
		MinDiskBytes:     1024 * 1024 * 1024,
		MaxMemoryPct:     80,
		CollectorPattern: "otelcol",
		CheckTimeout:     2 * time.Second,
		CgroupDir:        t.TempDir(), // no cgroup files: memory is info
	})
	checker.statfs = func(path string, st *syscall.Statfs_t) error {
		st.Bavail = 10 * 1024 * 1024 // 10M blocks
		st.Bsize = 4096
		return nil
	}
	return checker
}

func TestReady_AllHealthy(t *testing.T) {
	checker := testChecker(t, healthyMock())
	report := checker.Ready(context.Background())

	require.NotNil(t, report)
	assert.Equal(t, CheckStatusHealthy, report.Status)
	assert.Len(t, report.Checks, 8)

	for _, key := range []string{CheckClaudeCLI, CheckNodeRuntime, CheckGoRuntime, CheckWorkspace} {
		assert.Equal(t, CheckStatusHealthy, report.Checks[key].Status, key)
	}
	assert.Equal(t, CheckStatusInfo, report.Checks[CheckMemory].Status)
	assert.Equal(t, CheckStatusInfo, report.Checks[CheckMCPConfig].Status)
	assert.Equal(t, CheckStatusInfo, report.Checks[CheckOTELCollector].Status)
}

func TestReady_MissingClaudeCLIIsUnhealthy(t *testing.T) {
	pm := healthyMock()
	pm.LookFunc = func(name string) (string, error) {
		if name == "claude" {
			return "", errors.New("not found")
		}
		return "/usr/local/bin/" + name, nil
	}

	checker := testChecker(t, pm)
	report := checker.Ready(context.Background())

	assert.Equal(t, CheckStatusUnhealthy, report.Status)
	assert.Equal(t, CheckStatusUnhealthy, report.Checks[CheckClaudeCLI].Status)
	assert.Contains(t, report.Checks[CheckClaudeCLI].Detail, "claude")

	// The other hard checks still ran and still passed; failure does
	// not short-circuit the rest of the set.
	assert.Equal(t, CheckStatusHealthy, report.Checks[CheckNodeRuntime].Status)
	assert.Equal(t, CheckStatusHealthy, report.Checks[CheckGoRuntime].Status)
}

func TestReady_ToolVersionNonZeroExitIsUnhealthy(t *testing.T) {
	pm := healthyMock()
	pm.RunFunc = func(ctx context.Context, name string, args ...string) (proc.Result, error) {
		if name == "node" {
			return proc.Result{ExitCode: 127}, nil
		}
		return proc.Result{Stdout: "v1.0.0"}, nil
	}

	checker := testChecker(t, pm)
	report := checker.Ready(context.Background())

	assert.Equal(t, CheckStatusUnhealthy, report.Status)
	assert.Equal(t, CheckStatusUnhealthy, report.Checks[CheckNodeRuntime].Status)
}

func TestReady_SoftChecksNeverFlipVerdict(t *testing.T) {
	pm := healthyMock()
	pm.IsRunningFunc = func(ctx context.Context, pattern string) (bool, int, error) {
		return false, 0, nil // collector down: info only
	}

	checker := testChecker(t, pm)
	// Disk below the floor: warning only.
	checker.statfs = func(path string, st *syscall.Statfs_t) error {
		st.Bavail = 10
		st.Bsize = 4096
		return nil
	}

	report := checker.Ready(context.Background())

	assert.Equal(t, CheckStatusWarning, report.Checks[CheckDiskSpace].Status)
	assert.Equal(t, CheckStatusInfo, report.Checks[CheckOTELCollector].Status)
	assert.Equal(t, CheckStatusHealthy, report.Status,
		"warnings and info must not make the container unready")
}

func TestReady_MissingWorkspaceIsUnhealthy(t *testing.T) {
	checker := testChecker(t, healthyMock())
	checker.config.Workspace = filepath.Join(t.TempDir(), "does-not-exist")

	report := checker.Ready(context.Background())

	assert.Equal(t, CheckStatusUnhealthy, report.Status)
	assert.Equal(t, CheckStatusUnhealthy, report.Checks[CheckWorkspace].Status)
}

func TestCheckMemory_CgroupThreshold(t *testing.T) {
	cgroup := t.TempDir()
	writeFile := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(cgroup, name), []byte(content), 0644))
	}

	checker := testChecker(t, healthyMock())
	checker.config.CgroupDir = cgroup

	// 90% of a 1000 MB limit: warning.
	writeFile("memory.max", "1048576000\n")
	writeFile("memory.current", "943718400\n")
	result := checker.checkMemory()
	assert.Equal(t, CheckStatusWarning, result.Status)

	// 50%: healthy.
	writeFile("memory.current", "524288000\n")
	result = checker.checkMemory()
	assert.Equal(t, CheckStatusHealthy, result.Status)

	// Unlimited cgroup: info.
	writeFile("memory.max", "max\n")
	result = checker.checkMemory()
	assert.Equal(t, CheckStatusInfo, result.Status)
}

func TestCheckMCPConfig_States(t *testing.T) {
	checker := testChecker(t, healthyMock())

	// Absent: info.
	result := checker.checkMCPConfig()
	assert.Equal(t, CheckStatusInfo, result.Status)
	assert.Contains(t, result.Detail, "absent")

	// Present and valid: info with server count.
	valid := `{"mcpServers": {"github": {"command": "gh-mcp"}}}`
	require.NoError(t, os.WriteFile(checker.config.MCPConfigPath, []byte(valid), 0644))
	result = checker.checkMCPConfig()
	assert.Equal(t, CheckStatusInfo, result.Status)
	assert.Contains(t, result.Detail, "1 servers")

	// Present but malformed: warning.
	require.NoError(t, os.WriteFile(checker.config.MCPConfigPath, []byte("{nope"), 0644))
	result = checker.checkMCPConfig()
	assert.Equal(t, CheckStatusWarning, result.Status)
}

func TestReady_RepeatInvocationsStableExceptTimestamp(t *testing.T) {
	checker := testChecker(t, healthyMock())

	first := checker.Ready(context.Background())
	second := checker.Ready(context.Background())

	first.Timestamp = ""
	second.Timestamp = ""
	assert.Equal(t, first, second)
}

func TestReady_ReportMarshalsWithContractFields(t *testing.T) {
	checker := testChecker(t, healthyMock())
	report := checker.Ready(context.Background())

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "status")
	assert.Contains(t, decoded, "timestamp")
	assert.Contains(t, decoded, "checks")
	assert.Equal(t, HealthContractVersion, decoded["version"])

	checks := decoded["checks"].(map[string]any)
	assert.Len(t, checks, 8)
}

func TestLive_AlwaysHealthy(t *testing.T) {
	checker := testChecker(t, healthyMock())
	report := checker.Live()

	assert.Equal(t, CheckStatusHealthy, report.Status)
	assert.Equal(t, os.Getpid(), report.PID)
	assert.GreaterOrEqual(t, report.UptimeSec, 0.0)
}
