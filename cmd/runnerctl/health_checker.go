// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/AleutianAI/RunnerForge/internal/proc"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// HealthCheckerConfig controls readiness evaluation thresholds and paths.
type HealthCheckerConfig struct {
	// Workspace is the directory the runner executes jobs in.
	// Must exist and be writable for the container to be ready.
	Workspace string

	// MCPConfigPath is the assistant CLI's MCP server config file.
	MCPConfigPath string

	// MinDiskBytes is the free-space floor below which disk_space
	// reports a warning. Default 1 GiB.
	MinDiskBytes uint64

	// MaxMemoryPct is the cgroup usage percentage at or above which
	// the memory check reports a warning.
	MaxMemoryPct int

	// CollectorPattern is the pgrep -f pattern for the OTEL collector.
	CollectorPattern string

	// CheckTimeout bounds each individual tool probe.
	CheckTimeout time.Duration

	// CgroupDir is the cgroup v2 mount point. Overridable for tests.
	CgroupDir string
}

// DefaultHealthCheckerConfig derives checker settings from the runtime
// environment.
func DefaultHealthCheckerConfig(env RuntimeEnv) HealthCheckerConfig {
	return HealthCheckerConfig{
		Workspace:        env.Workspace,
		MCPConfigPath:    env.MCPConfigPath,
		MinDiskBytes:     uint64(env.MinDiskMB) * 1024 * 1024,
		MaxMemoryPct:     env.MaxMemoryPct,
		CollectorPattern: env.CollectorBinary,
		CheckTimeout:     5 * time.Second,
		CgroupDir:        "/sys/fs/cgroup",
	}
}

// =============================================================================
// CHECKER
// =============================================================================

// HealthChecker evaluates container liveness and readiness.
type HealthChecker interface {
	// Live reports process liveness. It cannot fail: if this code is
	// executing, the process is alive.
	Live() *LivenessReport

	// Ready evaluates the full readiness check set. All checks run
	// unconditionally, independently, and in a fixed order; no check
	// short-circuits another.
	Ready(ctx context.Context) *HealthReport
}

// DefaultHealthChecker is the production HealthChecker. It is a pure
// function of ambient container state: two invocations against an
// unchanged environment produce identical reports save the timestamp.
type DefaultHealthChecker struct {
	proc   proc.Manager
	config HealthCheckerConfig

	// statfs is a seam for tests; production uses syscall.Statfs.
	statfs func(path string, st *syscall.Statfs_t) error
	now    func() time.Time
}

var processStart = time.Now()

// NewDefaultHealthChecker creates a checker backed by real process
// execution and real filesystem probes.
func NewDefaultHealthChecker(pm proc.Manager, config HealthCheckerConfig) *DefaultHealthChecker {
	return &DefaultHealthChecker{
		proc:   pm,
		config: config,
		statfs: syscall.Statfs,
		now:    time.Now,
	}
}

// Live reports process liveness.
func (c *DefaultHealthChecker) Live() *LivenessReport {
	now := c.now()
	return &LivenessReport{
		Status:    CheckStatusHealthy,
		Timestamp: newTimestamp(now),
		UptimeSec: now.Sub(processStart).Seconds(),
		PID:       os.Getpid(),
	}
}

// Ready evaluates all readiness checks and computes the overall verdict.
// Overall status is unhealthy exactly when at least one hard check is
// unhealthy; warning and info statuses never affect the verdict.
func (c *DefaultHealthChecker) Ready(ctx context.Context) *HealthReport {
	checks := map[string]CheckResult{
		CheckClaudeCLI:     c.checkTool(ctx, "claude"),
		CheckNodeRuntime:   c.checkTool(ctx, "node"),
		CheckGoRuntime:     c.checkGoRuntime(ctx),
		CheckWorkspace:     c.checkWorkspace(),
		CheckDiskSpace:     c.checkDiskSpace(),
		CheckMemory:        c.checkMemory(),
		CheckMCPConfig:     c.checkMCPConfig(),
		CheckOTELCollector: c.checkCollector(ctx),
	}

	overall := CheckStatusHealthy
	for key, result := range checks {
		if hardChecks[key] && result.Status == CheckStatusUnhealthy {
			overall = CheckStatusUnhealthy
		}
	}

	return &HealthReport{
		Status:    overall,
		Version:   HealthContractVersion,
		Timestamp: newTimestamp(c.now()),
		Checks:    checks,
	}
}

// =============================================================================
// INDIVIDUAL CHECKS
// =============================================================================

// checkTool verifies a binary resolves on PATH and answers --version
// with exit code 0.
func (c *DefaultHealthChecker) checkTool(ctx context.Context, name string) CheckResult {
	path, err := c.proc.Look(name)
	if err != nil {
		return CheckResult{
			Status: CheckStatusUnhealthy,
			Detail: fmt.Sprintf("%s not found on PATH", name),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.CheckTimeout)
	defer cancel()

	res, err := c.proc.Run(ctx, name, "--version")
	if err != nil {
		return CheckResult{
			Status: CheckStatusUnhealthy,
			Detail: fmt.Sprintf("%s --version failed to run: %v", name, err),
		}
	}
	if res.ExitCode != 0 {
		return CheckResult{
			Status: CheckStatusUnhealthy,
			Detail: fmt.Sprintf("%s --version exited %d", name, res.ExitCode),
		}
	}

	version := strings.TrimSpace(firstLine(res.Stdout))
	return CheckResult{
		Status: CheckStatusHealthy,
		Detail: fmt.Sprintf("%s (%s)", path, version),
	}
}

// checkGoRuntime is checkTool for go, which spells its version flag
// differently.
func (c *DefaultHealthChecker) checkGoRuntime(ctx context.Context) CheckResult {
	path, err := c.proc.Look("go")
	if err != nil {
		return CheckResult{
			Status: CheckStatusUnhealthy,
			Detail: "go not found on PATH",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.CheckTimeout)
	defer cancel()

	res, err := c.proc.Run(ctx, "go", "version")
	if err != nil {
		return CheckResult{
			Status: CheckStatusUnhealthy,
			Detail: fmt.Sprintf("go version failed to run: %v", err),
		}
	}
	if res.ExitCode != 0 {
		return CheckResult{
			Status: CheckStatusUnhealthy,
			Detail: fmt.Sprintf("go version exited %d", res.ExitCode),
		}
	}

	return CheckResult{
		Status: CheckStatusHealthy,
		Detail: fmt.Sprintf("%s (%s)", path, strings.TrimSpace(firstLine(res.Stdout))),
	}
}

// checkWorkspace verifies the workspace directory exists and accepts a
// write. The probe file is removed immediately.
func (c *DefaultHealthChecker) checkWorkspace() CheckResult {
	info, err := os.Stat(c.config.Workspace)
	if err != nil {
		return CheckResult{
			Status: CheckStatusUnhealthy,
			Detail: fmt.Sprintf("workspace %s: %v", c.config.Workspace, err),
		}
	}
	if !info.IsDir() {
		return CheckResult{
			Status: CheckStatusUnhealthy,
			Detail: fmt.Sprintf("workspace %s is not a directory", c.config.Workspace),
		}
	}

	probe, err := os.CreateTemp(c.config.Workspace, ".readyz-probe-*")
	if err != nil {
		return CheckResult{
			Status: CheckStatusUnhealthy,
			Detail: fmt.Sprintf("workspace %s not writable: %v", c.config.Workspace, err),
		}
	}
	probe.Close()
	os.Remove(probe.Name())

	return CheckResult{
		Status: CheckStatusHealthy,
		Detail: c.config.Workspace,
	}
}

// checkDiskSpace reports free space on the workspace filesystem.
// Below the floor is a warning, never a readiness failure: a runner
// with a nearly full disk can still take jobs, it just needs attention.
func (c *DefaultHealthChecker) checkDiskSpace() CheckResult {
	var st syscall.Statfs_t
	if err := c.statfs(c.config.Workspace, &st); err != nil {
		return CheckResult{
			Status: CheckStatusWarning,
			Detail: fmt.Sprintf("statfs %s: %v", c.config.Workspace, err),
		}
	}

	free := st.Bavail * uint64(st.Bsize)
	detail := fmt.Sprintf("%d MB free", free/(1024*1024))
	if free < c.config.MinDiskBytes {
		return CheckResult{
			Status: CheckStatusWarning,
			Detail: detail + fmt.Sprintf(" (below %d MB floor)", c.config.MinDiskBytes/(1024*1024)),
		}
	}
	return CheckResult{Status: CheckStatusHealthy, Detail: detail}
}

// checkMemory reads cgroup v2 memory accounting. No cgroup files or an
// unlimited cgroup yields info; crossing the usage threshold yields a
// warning.
func (c *DefaultHealthChecker) checkMemory() CheckResult {
	limit, err := readCgroupValue(filepath.Join(c.config.CgroupDir, "memory.max"))
	if err != nil {
		return CheckResult{
			Status: CheckStatusInfo,
			Detail: "cgroup memory accounting unavailable",
		}
	}
	if limit == 0 {
		// memory.max contained "max": no limit configured.
		return CheckResult{
			Status: CheckStatusInfo,
			Detail: "no cgroup memory limit",
		}
	}

	current, err := readCgroupValue(filepath.Join(c.config.CgroupDir, "memory.current"))
	if err != nil {
		return CheckResult{
			Status: CheckStatusInfo,
			Detail: "cgroup memory accounting unavailable",
		}
	}

	pct := int(current * 100 / limit)
	detail := fmt.Sprintf("%d%% of %d MB limit", pct, limit/(1024*1024))
	if pct >= c.config.MaxMemoryPct {
		return CheckResult{Status: CheckStatusWarning, Detail: detail}
	}
	return CheckResult{Status: CheckStatusHealthy, Detail: detail}
}

// readCgroupValue parses a cgroup v2 single-value file. The literal
// "max" is returned as 0.
func readCgroupValue(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(data))
	if s == "max" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

// checkMCPConfig reports on the assistant CLI's MCP config file.
// Absence and valid presence are informational; a file that exists but
// does not parse as JSON is a warning since the assistant CLI will
// refuse to start with it.
func (c *DefaultHealthChecker) checkMCPConfig() CheckResult {
	data, err := os.ReadFile(c.config.MCPConfigPath)
	if os.IsNotExist(err) {
		return CheckResult{
			Status: CheckStatusInfo,
			Detail: fmt.Sprintf("%s absent", c.config.MCPConfigPath),
		}
	}
	if err != nil {
		return CheckResult{
			Status: CheckStatusWarning,
			Detail: fmt.Sprintf("read %s: %v", c.config.MCPConfigPath, err),
		}
	}

	servers, err := ParseMCPConfig(data)
	if err != nil {
		return CheckResult{
			Status: CheckStatusWarning,
			Detail: fmt.Sprintf("%s is not valid JSON: %v", c.config.MCPConfigPath, err),
		}
	}
	return CheckResult{
		Status: CheckStatusInfo,
		Detail: fmt.Sprintf("%s present, %d servers", c.config.MCPConfigPath, len(servers)),
	}
}

// checkCollector reports whether the OTEL collector process exists.
// Informational either way: metrics export is never a readiness gate.
func (c *DefaultHealthChecker) checkCollector(ctx context.Context) CheckResult {
	running, pid, err := c.proc.IsRunning(ctx, c.config.CollectorPattern)
	if err != nil {
		return CheckResult{
			Status: CheckStatusInfo,
			Detail: fmt.Sprintf("collector probe failed: %v", err),
		}
	}
	if running {
		return CheckResult{
			Status: CheckStatusInfo,
			Detail: fmt.Sprintf("running (PID %d)", pid),
		}
	}
	return CheckResult{Status: CheckStatusInfo, Detail: "not running"}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
