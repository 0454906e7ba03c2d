// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names read by runnerctl. All values are captured
// once at process start via LoadRuntimeEnv; nothing re-reads the
// environment mid-run.
const (
	EnvWorkspace       = "RUNNER_WORKSPACE"
	EnvMCPConfigPath   = "RUNNER_MCP_CONFIG"
	EnvOTELEnabled     = "RUNNER_OTEL_ENABLED"
	EnvOTELConfigPath  = "RUNNER_OTEL_CONFIG"
	EnvGitHubToken     = "GITHUB_TOKEN"
	EnvGitUserName     = "GIT_USER_NAME"
	EnvGitUserEmail    = "GIT_USER_EMAIL"
	EnvMinDiskMB       = "RUNNER_MIN_DISK_MB"
	EnvMaxMemoryPct    = "RUNNER_MAX_MEMORY_PCT"
	EnvProbePort       = "RUNNERCTL_PORT"
	EnvServiceName     = "RUNNER_SERVICE_NAME"
	EnvPreflightGofmt  = "RUNNER_PREFLIGHT_GOFMT"
	EnvPreflightLint   = "RUNNER_PREFLIGHT_ACTIONLINT"
	EnvCollectorBinary = "RUNNER_OTEL_BINARY"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultWorkspace       = "/workspace"
	DefaultOTELConfigPath  = "/etc/otelcol/config.yaml"
	DefaultMinDiskMB       = 1024
	DefaultMaxMemoryPct    = 80
	DefaultProbePort       = 9465
	DefaultServiceName     = "github-runner"
	DefaultCollectorBinary = "otelcol"
)

// RuntimeEnv is the container-side configuration, resolved from the
// environment exactly once.
type RuntimeEnv struct {
	Workspace       string
	MCPConfigPath   string
	OTELEnabled     bool
	OTELConfigPath  string
	GitHubToken     string
	GitUserName     string
	GitUserEmail    string
	MinDiskMB       int64
	MaxMemoryPct    int
	ProbePort       int
	ServiceName     string
	PreflightGofmt  bool
	PreflightLint   bool
	CollectorBinary string
}

// LoadRuntimeEnv resolves all runnerctl settings from the environment,
// applying defaults for anything unset. Malformed numeric values fall
// back to defaults rather than failing startup.
func LoadRuntimeEnv() RuntimeEnv {
	workspace := envOr(EnvWorkspace, DefaultWorkspace)

	return RuntimeEnv{
		Workspace:       workspace,
		MCPConfigPath:   envOr(EnvMCPConfigPath, workspace+"/.mcp.json"),
		OTELEnabled:     envBool(EnvOTELEnabled, false),
		OTELConfigPath:  envOr(EnvOTELConfigPath, DefaultOTELConfigPath),
		GitHubToken:     os.Getenv(EnvGitHubToken),
		GitUserName:     os.Getenv(EnvGitUserName),
		GitUserEmail:    os.Getenv(EnvGitUserEmail),
		MinDiskMB:       envInt64(EnvMinDiskMB, DefaultMinDiskMB),
		MaxMemoryPct:    envInt(EnvMaxMemoryPct, DefaultMaxMemoryPct),
		ProbePort:       envInt(EnvProbePort, DefaultProbePort),
		ServiceName:     envOr(EnvServiceName, DefaultServiceName),
		PreflightGofmt:  envBool(EnvPreflightGofmt, true),
		PreflightLint:   envBool(EnvPreflightLint, true),
		CollectorBinary: envOr(EnvCollectorBinary, DefaultCollectorBinary),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envBool parses boolean flags the way the shell scripts in this image
// historically did: 1, true, and yes (any case) are true, everything
// else is false. Unset returns the fallback.
func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return ParseBool(v)
}

// ParseBool accepts 1/true/yes case-insensitive as true.
func ParseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
