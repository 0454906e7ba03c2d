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
	"syscall"
	"time"

	"github.com/AleutianAI/RunnerForge/internal/proc"
	"github.com/AleutianAI/RunnerForge/pkg/logging"
	"github.com/spf13/cobra"
)

// =============================================================================
// ENTRYPOINT
// =============================================================================

// runInit is the container entrypoint. It prepares the environment in a
// fixed order and then replaces itself with the requested command, so
// the runner inherits PID and signals directly.
//
// Fatal conditions: a missing required tool, an unparseable MCP config.
// Everything else degrades with a warning; a runner that can take jobs
// should start even when the optional tooling around it is imperfect.
func runInit(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pm := proc.NewDefaultManager()
	emit := logging.NewEmitter(os.Stdout, runtimeEnv.ServiceName)

	emit.Emit(logging.LevelInfo, "Container initialization starting",
		fmt.Sprintf("workspace=%s", runtimeEnv.Workspace))

	// 1. Tool verification.
	missingOptional, err := VerifyRequiredTools(pm, runnerTools())
	if err != nil {
		fatal(emit, err.Error())
	}
	for _, name := range missingOptional {
		emit.Emit(logging.LevelWarn, "Optional tool not installed", "tool="+name)
	}
	emit.Emit(logging.LevelInfo, "Tool verification passed")

	// 2. Git identity and workspace trust.
	configureGit(ctx, pm, emit)

	// 3. MCP config must exist and parse before the assistant CLI runs.
	servers, created, err := EnsureMCPConfig(runtimeEnv.MCPConfigPath)
	if err != nil {
		fatal(emit, err.Error())
	}
	if created {
		emit.Emit(logging.LevelInfo, "Wrote default MCP config", "path="+runtimeEnv.MCPConfigPath)
	} else {
		emit.Emit(logging.LevelInfo, "MCP config valid",
			"path="+runtimeEnv.MCPConfigPath,
			fmt.Sprintf("servers=%d", len(servers)))
	}

	// 4. GitHub auth. Warn-only: outbound network may be restricted at
	// start time and the runner retries registration itself.
	if runtimeEnv.GitHubToken != "" {
		verifyGitHubAuth(ctx, pm, emit)
	}

	// 5. OTEL collector, one-shot start. The serve command owns
	// supervision; init only gets the process off the ground.
	if runtimeEnv.OTELEnabled {
		startCollectorOnce(ctx, pm, emit)
	}

	// 6. Preflight lint, advisory only.
	if runtimeEnv.PreflightGofmt || runtimeEnv.PreflightLint {
		RunPreflight(ctx, pm, emit, runtimeEnv)
	}

	// 7. Hand off.
	if len(args) == 0 {
		emit.Emit(logging.LevelInfo, "No command given, entering keepalive")
		select {} // Sleep forever; the probes keep reporting.
	}

	path, err := pm.Look(args[0])
	if err != nil {
		fatal(emit, fmt.Sprintf("command %q not found on PATH", args[0]))
	}
	emit.Emit(logging.LevelInfo, "Handing off to command", "command="+args[0])

	// Exec replaces this process; on success nothing below runs.
	if err := syscall.Exec(path, args, os.Environ()); err != nil {
		fatal(emit, fmt.Sprintf("exec %s: %v", path, err))
	}
}

// configureGit sets the runner's git identity from the environment when
// unset and marks the workspace as safe. Git failures here warn rather
// than block: jobs that never touch git should still run.
func configureGit(ctx context.Context, pm proc.Manager, emit *logging.Emitter) {
	setIfUnset := func(key, value string) {
		if value == "" {
			return
		}
		res, err := pm.Run(ctx, "git", "config", "--global", key)
		if err == nil && res.ExitCode == 0 {
			return // Already configured; leave it alone.
		}
		res, err = pm.Run(ctx, "git", "config", "--global", key, value)
		if err != nil || res.ExitCode != 0 {
			emit.Emit(logging.LevelWarn, "Failed to set git config", "key="+key)
		}
	}

	setIfUnset("user.name", runtimeEnv.GitUserName)
	setIfUnset("user.email", runtimeEnv.GitUserEmail)

	res, err := pm.Run(ctx, "git", "config", "--global", "--add",
		"safe.directory", runtimeEnv.Workspace)
	if err != nil || res.ExitCode != 0 {
		emit.Emit(logging.LevelWarn, "Failed to mark workspace safe.directory",
			"workspace="+runtimeEnv.Workspace)
	}
}

// verifyGitHubAuth probes `gh auth status`. A probe that could not run
// at all is distinguished from one that ran and reported unauthenticated;
// both warn, neither blocks.
func verifyGitHubAuth(ctx context.Context, pm proc.Manager, emit *logging.Emitter) {
	res, err := pm.Run(ctx, "gh", "auth", "status")
	switch {
	case err != nil:
		emit.Emit(logging.LevelWarn, "GitHub auth check could not run, continuing",
			fmt.Sprintf("error=%v", err))
	case res.ExitCode != 0:
		emit.Emit(logging.LevelWarn, "GitHub auth check failed, continuing",
			fmt.Sprintf("exit_code=%d", res.ExitCode))
	default:
		emit.Emit(logging.LevelInfo, "GitHub auth verified")
	}
}

// startCollectorOnce launches the OTEL collector in the background and
// confirms it came up. No restart logic here.
func startCollectorOnce(ctx context.Context, pm proc.Manager, emit *logging.Emitter) {
	pid, err := pm.Start(ctx, runtimeEnv.CollectorBinary,
		"--config", runtimeEnv.OTELConfigPath)
	if err != nil {
		emit.Emit(logging.LevelWarn, "Failed to start OTEL collector",
			fmt.Sprintf("error=%v", err))
		return
	}

	// Give the process a moment to fail fast on bad config before the
	// confirmation probe.
	time.Sleep(500 * time.Millisecond)

	running, _, err := pm.IsRunning(ctx, runtimeEnv.CollectorBinary)
	if err != nil || !running {
		emit.Emit(logging.LevelWarn, "OTEL collector did not stay up",
			fmt.Sprintf("pid=%d", pid))
		return
	}
	emit.Emit(logging.LevelInfo, "OTEL collector started", fmt.Sprintf("pid=%d", pid))
}

// fatal emits a FATAL line and exits non-zero. The line goes out before
// the exit so orchestrators always see why the container died.
func fatal(emit *logging.Emitter, message string) {
	_ = emit.Emit(logging.LevelFatal, message)
	os.Exit(1)
}
