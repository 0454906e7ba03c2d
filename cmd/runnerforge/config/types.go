// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
)

// RunnerForgeConfig is the host-side configuration, persisted at
// ~/.runnerforge/runnerforge.yaml.
type RunnerForgeConfig struct {
	// Project is the docker compose project name.
	Project string `yaml:"project" validate:"required,alphanum|containsany=-_"`

	// ComposeFile is the path to the base compose file.
	ComposeFile string `yaml:"compose_file" validate:"required"`

	// OverrideFile is an optional user override compose file. Only used
	// when the file exists.
	OverrideFile string `yaml:"override_file,omitempty"`

	// Container is the runner service/container name used for exec,
	// shell, and readiness probes.
	Container string `yaml:"container" validate:"required"`

	// Image is the runner image reference used by rebuild.
	Image string `yaml:"image" validate:"required"`

	// Workspace is the host directory mounted as the job workspace.
	Workspace string `yaml:"workspace" validate:"required"`

	// SecretsFile is the env file holding runner credentials. Validated
	// by `runnerforge validate` before any start.
	SecretsFile string `yaml:"secrets_file" validate:"required"`

	// Health holds readiness thresholds forwarded into the container.
	Health HealthConfig `yaml:"health"`

	// Otel toggles the in-container collector.
	Otel OtelConfig `yaml:"otel"`

	// ExpectedVersions overrides the image's expected tool version table,
	// tool name to version substring.
	ExpectedVersions map[string]string `yaml:"expected_versions,omitempty"`

	// StartTimeoutSec bounds the post-start readiness wait.
	StartTimeoutSec int `yaml:"start_timeout_sec" validate:"gte=10,lte=3600"`
}

// HealthConfig mirrors the container-side readiness thresholds.
type HealthConfig struct {
	MinDiskMB    int `yaml:"min_disk_mb" validate:"gt=0"`
	MaxMemoryPct int `yaml:"max_memory_pct" validate:"gt=0,lte=100"`
}

// OtelConfig controls collector enablement inside the runner.
type OtelConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ConfigPath string `yaml:"config_path,omitempty"`
}

// DefaultConfig returns the config written on first run.
func DefaultConfig() RunnerForgeConfig {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".runnerforge")

	return RunnerForgeConfig{
		Project:         "runnerforge",
		ComposeFile:     filepath.Join(base, "docker-compose.yml"),
		OverrideFile:    filepath.Join(base, "docker-compose.override.yml"),
		Container:       "runnerforge-runner",
		Image:           "runnerforge/runner:latest",
		Workspace:       filepath.Join(base, "workspace"),
		SecretsFile:     filepath.Join(base, "secrets.env"),
		StartTimeoutSec: 180,
		Health: HealthConfig{
			MinDiskMB:    1024,
			MaxMemoryPct: 80,
		},
		Otel: OtelConfig{
			Enabled: false,
		},
	}
}
