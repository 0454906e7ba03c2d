// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/RunnerForge/cmd/runnerforge/config"
	"github.com/AleutianAI/RunnerForge/internal/proc"
	"github.com/AleutianAI/RunnerForge/pkg/ux"
	"github.com/spf13/cobra"
)

// =============================================================================
// Shared Helpers
// =============================================================================

// newExecutor builds the compose executor from the loaded config.
func newExecutor() ComposeExecutor {
	cfg := config.Global
	exec, err := NewDefaultComposeExecutor(ComposeExecConfig{
		ProjectName:  cfg.Project,
		BaseFile:     cfg.ComposeFile,
		OverrideFile: cfg.OverrideFile,
	}, proc.NewDefaultManager())
	if err != nil {
		ux.Errorf("Could not initialize compose executor: %v", err)
		os.Exit(1)
	}
	return exec
}

// acquireStackLock takes the single-instance lock for mutating operations.
// Two concurrent `start` invocations racing compose is worse than failing
// fast with a pointer at the other PID.
func acquireStackLock() *proc.Lock {
	lock := proc.NewLock(proc.DefaultLockConfig())
	if err := lock.Acquire(); err != nil {
		ux.Errorf("%v", err)
		os.Exit(1)
	}
	return lock
}

// requireDaemon exits with guidance when the docker daemon is unreachable.
func requireDaemon(ctx context.Context, exec ComposeExecutor) {
	if !exec.DaemonReachable(ctx) {
		ux.Errorf("Docker daemon is unreachable. Is docker running?")
		os.Exit(1)
	}
}

// runnerEnv builds the environment injected into compose: host paths for
// volume interpolation plus the RUNNER_* knobs the container entrypoint
// reads. GITHUB_TOKEN is forwarded only when set on the host.
func runnerEnv(cfg config.RunnerForgeConfig) map[string]string {
	env := map[string]string{
		"RUNNERFORGE_WORKSPACE":    cfg.Workspace,
		"RUNNERFORGE_SECRETS_FILE": cfg.SecretsFile,
		"RUNNER_MIN_DISK_MB":       strconv.Itoa(cfg.Health.MinDiskMB),
		"RUNNER_MAX_MEMORY_PCT":    strconv.Itoa(cfg.Health.MaxMemoryPct),
		"RUNNER_OTEL_ENABLED":      strconv.FormatBool(cfg.Otel.Enabled),
	}
	if cfg.Otel.ConfigPath != "" {
		env["RUNNER_OTEL_CONFIG"] = cfg.Otel.ConfigPath
	}
	for tool, version := range cfg.ExpectedVersions {
		key := "RUNNER_EXPECTED_" + strings.ToUpper(strings.ReplaceAll(tool, "-", "_"))
		env[key] = version
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		env["GITHUB_TOKEN"] = token
	}
	return env
}

// Readiness poll pacing. Variables so tests can shrink them.
var (
	readyPollBase = 2 * time.Second
	readyPollMax  = 15 * time.Second
)

// waitForReady polls the container's readiness probe until it reports
// healthy or the start timeout elapses. The poll interval backs off from
// 2s to 15s; early "container not running" results are expected while
// compose is still creating the service.
func waitForReady(ctx context.Context, exec ComposeExecutor, container string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	interval := readyPollBase

	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("runner did not become ready within %s", timeout)
		}

		res, err := exec.Exec(ctx, container, "runnerctl", "health", "ready")
		switch {
		case errors.Is(err, ErrContainerNotRunning):
			// Still starting.
		case err != nil:
			return fmt.Errorf("readiness probe failed: %w", err)
		case res.ExitCode == 0:
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		interval *= 2
		if interval > readyPollMax {
			interval = readyPollMax
		}
	}
}

// =============================================================================
// Lifecycle Commands
// =============================================================================

func runStart(cmd *cobra.Command, args []string) {
	cfg := config.Global
	ctx := cmd.Context()

	lock := acquireStackLock()
	defer func() { _ = lock.Release() }()

	exec := newExecutor()
	requireDaemon(ctx, exec)

	if startSkipSecret {
		ux.Warnf("Skipping secrets validation (--skip-secrets-check)")
	} else {
		report, err := ValidateSecretsFile(cfg.SecretsFile)
		if err != nil {
			ux.Errorf("Secrets validation failed: %v", err)
			os.Exit(1)
		}
		if !report.OK() {
			for _, finding := range report.Findings {
				ux.Errorf("%s", finding)
			}
			ux.Errorf("Refusing to start with invalid secrets. Fix %s or pass --skip-secrets-check.", cfg.SecretsFile)
			os.Exit(1)
		}
		ux.Successf("Secrets file validated (%d entries)", report.Entries)
	}

	ux.Titlef("Starting the RunnerForge stack...")
	result, err := exec.Up(ctx, UpOptions{
		ForceBuild: startBuild,
		Env:        runnerEnv(cfg),
	})
	if err != nil {
		ux.Errorf("compose up failed: %v", err)
		if result != nil && result.Stderr != "" {
			fmt.Fprintln(os.Stderr, strings.TrimSpace(result.Stderr))
		}
		os.Exit(1)
	}
	ux.Successf("Stack is up (%.1fs)", result.Duration.Seconds())

	timeout := time.Duration(cfg.StartTimeoutSec) * time.Second
	ux.Infof("Waiting up to %s for the runner to become ready...", timeout)
	if err := waitForReady(ctx, exec, cfg.Container, timeout); err != nil {
		ux.Errorf("%v", err)
		ux.Infof("Inspect with: runnerforge logs, or: runnerforge status")
		os.Exit(1)
	}
	ux.Successf("Runner is ready")
}

func runStop(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	lock := acquireStackLock()
	defer func() { _ = lock.Release() }()

	exec := newExecutor()
	if !exec.DaemonReachable(ctx) {
		ux.Warnf("Docker daemon is unreachable; nothing to stop.")
		return
	}

	ux.Titlef("Stopping the RunnerForge stack...")
	if _, err := exec.Down(ctx, DownOptions{}); err != nil {
		ux.Errorf("compose down failed: %v", err)
		os.Exit(1)
	}
	ux.Successf("Stack stopped")
}

func runClean(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	lock := acquireStackLock()
	defer func() { _ = lock.Release() }()

	exec := newExecutor()
	requireDaemon(ctx, exec)

	ux.Titlef("Removing the stack's containers...")
	if _, err := exec.Down(ctx, DownOptions{RemoveOrphans: true}); err != nil {
		ux.Errorf("compose down failed: %v", err)
		os.Exit(1)
	}
	ux.Successf("Containers removed. Volumes and images were kept; use purge to remove them.")
}

func runPurge(cmd *cobra.Command, args []string) {
	cfg := config.Global
	ctx := cmd.Context()

	if !purgeForce {
		fmt.Println("This will remove the runner's containers, named volumes, and the image")
		fmt.Printf("  %s\n", cfg.Image)
		fmt.Println("Job workspaces and caches inside volumes are lost permanently.")
		fmt.Print("Are you sure you want to continue? (yes/no): ")

		reader := bufio.NewReader(os.Stdin)
		input, _ := reader.ReadString('\n')
		input = strings.ToLower(strings.TrimSpace(input))
		if input != "yes" && input != "y" {
			fmt.Println("Aborted. No changes were made")
			return
		}
	}

	lock := acquireStackLock()
	defer func() { _ = lock.Release() }()

	exec := newExecutor()
	requireDaemon(ctx, exec)

	ux.Titlef("Purging the RunnerForge stack...")
	if _, err := exec.Down(ctx, DownOptions{RemoveVolumes: true, RemoveOrphans: true}); err != nil {
		ux.Errorf("compose down failed: %v", err)
		os.Exit(1)
	}
	ux.Successf("Containers and volumes removed")

	res, err := exec.RemoveImage(ctx, cfg.Image)
	if err != nil {
		ux.Errorf("image removal failed: %v", err)
		os.Exit(1)
	}
	if res.ExitCode != 0 {
		// Image may simply not exist locally; report and move on.
		ux.Warnf("Could not remove image %s: %s", cfg.Image, strings.TrimSpace(res.Stderr))
	} else {
		ux.Successf("Image %s removed", cfg.Image)
	}
}

func runRebuild(cmd *cobra.Command, args []string) {
	cfg := config.Global
	ctx := cmd.Context()

	lock := acquireStackLock()
	defer func() { _ = lock.Release() }()

	exec := newExecutor()
	requireDaemon(ctx, exec)

	ux.Titlef("Rebuilding the runner image (no cache)...")
	result, err := exec.Build(ctx, true)
	if err != nil {
		ux.Errorf("compose build failed: %v", err)
		if result != nil && result.Stderr != "" {
			fmt.Fprintln(os.Stderr, strings.TrimSpace(result.Stderr))
		}
		os.Exit(1)
	}
	ux.Successf("Image rebuilt (%.1fs)", result.Duration.Seconds())

	ux.Titlef("Restarting the stack...")
	if _, err := exec.Up(ctx, UpOptions{Env: runnerEnv(cfg)}); err != nil {
		ux.Errorf("compose up failed: %v", err)
		os.Exit(1)
	}

	timeout := time.Duration(cfg.StartTimeoutSec) * time.Second
	if err := waitForReady(ctx, exec, cfg.Container, timeout); err != nil {
		ux.Errorf("%v", err)
		os.Exit(1)
	}
	ux.Successf("Runner is ready")
}
