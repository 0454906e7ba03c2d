// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"

	"github.com/AleutianAI/RunnerForge/cmd/runnerforge/config"
	"github.com/AleutianAI/RunnerForge/pkg/ux"
	"github.com/spf13/cobra"
)

func runShell(cmd *cobra.Command, args []string) {
	cfg := config.Global
	ctx := cmd.Context()

	exec := newExecutor()
	requireDaemon(ctx, exec)

	ux.Infof("Opening a shell in %s (exit to return)...", cfg.Container)
	code, err := exec.ExecInteractive(ctx, cfg.Container, "/bin/bash")
	if err != nil {
		ux.Errorf("shell failed: %v", err)
		os.Exit(1)
	}
	// Propagate the shell's own exit code so scripted use works.
	os.Exit(code)
}

func runLogs(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	exec := newExecutor()
	requireDaemon(ctx, exec)

	code, err := exec.Logs(ctx, LogsOptions{
		Follow:   !logsNoFollow,
		Tail:     logsTail,
		Services: args,
	})
	if err != nil {
		ux.Errorf("logs failed: %v", err)
		os.Exit(1)
	}
	// Ctrl-C on a streaming follow surfaces as a non-zero compose exit;
	// that is the normal way out, so the code passes through untouched.
	if code != 0 {
		os.Exit(code)
	}
}
