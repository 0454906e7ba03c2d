// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/AleutianAI/RunnerForge/cmd/runnerforge/config"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	startBuild      bool // start: rebuild images before starting
	startSkipSecret bool // start: skip the secrets validation gate
	logsTail        int  // logs: limit to last N lines
	logsNoFollow    bool // logs: one-shot instead of streaming
	testSecurity    bool // test: run only the security suite
	purgeForce      bool // purge: skip the confirmation prompt

	rootCmd = &cobra.Command{
		Use:   "runnerforge",
		Short: "A cli to manage the RunnerForge self-hosted GitHub Actions runner",
		Long: `RunnerForge operates a containerized GitHub Actions runner bundled
with an AI coding assistant and a DevOps toolchain. This CLI wraps
docker compose for the runner's lifecycle and health.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := config.Load(); err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(1)
			}
		},
	}

	// --- Lifecycle ---
	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the runner stack and wait until it is ready",
		Run:   runStart, // Defined in cmd_stack.go
	}
	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop the runner stack",
		Run:   runStop, // Defined in cmd_stack.go
	}
	cleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Stop the stack and remove its containers",
		Run:   runClean, // Defined in cmd_stack.go
	}
	purgeCmd = &cobra.Command{
		Use:   "purge",
		Short: "DANGER: Remove containers, volumes, and the runner image",
		Run:   runPurge, // Defined in cmd_stack.go
	}
	rebuildCmd = &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the runner image without cache and restart",
		Run:   runRebuild, // Defined in cmd_stack.go
	}

	// --- Interaction ---
	shellCmd = &cobra.Command{
		Use:   "shell",
		Short: "Open an interactive shell inside the runner container",
		Run:   runShell, // Defined in cmd_shell.go
	}
	logsCmd = &cobra.Command{
		Use:   "logs [service]",
		Short: "Stream logs from the runner stack",
		Run:   runLogs, // Defined in cmd_shell.go
	}

	// --- Diagnostics ---
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show container state, resource usage, and readiness",
		Run:   runStatus, // Defined in cmd_status.go
	}
	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Validate secrets, compose files, and configuration",
		Run:   runValidate, // Defined in cmd_validate.go
	}
	testCmd = &cobra.Command{
		Use:   "test",
		Short: "Run the in-container assertion suite against a running stack",
		Run:   runTestSuite, // Defined in cmd_testsuite.go
	}
)

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().BoolVar(&startBuild, "build", false, "Force rebuild of the runner image before starting")
	startCmd.Flags().BoolVar(&startSkipSecret, "skip-secrets-check", false, "Skip the secrets validation gate (not recommended)")

	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(cleanCmd)

	rootCmd.AddCommand(purgeCmd)
	purgeCmd.Flags().BoolVar(&purgeForce, "force", false, "Skip the confirmation prompt")

	rootCmd.AddCommand(rebuildCmd)

	rootCmd.AddCommand(shellCmd)

	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().IntVar(&logsTail, "tail", 0, "Limit output to the last N lines per container")
	logsCmd.Flags().BoolVar(&logsNoFollow, "no-follow", false, "Print logs and exit instead of streaming")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)

	rootCmd.AddCommand(testCmd)
	testCmd.Flags().BoolVar(&testSecurity, "security", false, "Run only the security assertions")
}
