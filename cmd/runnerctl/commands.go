// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	runtimeEnv RuntimeEnv

	versionsJSONOutput bool // versions: machine-readable output
	servePort          int  // serve: probe/metrics port override

	rootCmd = &cobra.Command{
		Use:   "runnerctl",
		Short: "Container-side utility for the RunnerForge GitHub Actions runner image",
		Long: `runnerctl is the in-container companion to runnerforge. It owns the
container entrypoint, health probes, tool version checks, and the
probe/metrics endpoint.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			runtimeEnv = LoadRuntimeEnv()
		},
	}

	// --- Entrypoint ---
	initCmd = &cobra.Command{
		Use:   "init [-- command args...]",
		Short: "Container entrypoint: verify tools, configure git, then exec the runner",
		Run:   runInit, // Defined in cmd_init.go
	}

	// --- Health Probes ---
	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Evaluate container health",
	}
	healthLiveCmd = &cobra.Command{
		Use:   "live",
		Short: "Liveness probe: is the process able to run",
		Run:   runHealthLive, // Defined in cmd_health.go
	}
	healthReadyCmd = &cobra.Command{
		Use:   "ready",
		Short: "Readiness probe: is the container able to take jobs",
		Run:   runHealthReady, // Defined in cmd_health.go
	}

	// --- Diagnostics ---
	versionsCmd = &cobra.Command{
		Use:   "versions",
		Short: "Compare installed tool versions against the image's expected set",
		Run:   runVersions, // Defined in cmd_versions.go
	}

	// --- Structured Logging ---
	logCmd = &cobra.Command{
		Use:   "log LEVEL MESSAGE [key=value...]",
		Short: "Emit one structured JSON log line to stdout",
		Args:  cobra.MinimumNArgs(2),
		Run:   runLog, // Defined in cmd_log.go
	}

	// --- Probe Server ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve /livez, /readyz, and /metrics; supervise the OTEL collector",
		Run:   runServe, // Defined in cmd_serve.go
	}
)

func init() {
	rootCmd.AddCommand(initCmd)

	rootCmd.AddCommand(healthCmd)
	healthCmd.AddCommand(healthLiveCmd)
	healthCmd.AddCommand(healthReadyCmd)

	rootCmd.AddCommand(versionsCmd)
	versionsCmd.Flags().BoolVar(&versionsJSONOutput, "json", false,
		"Output the comparison as JSON for scripting")

	rootCmd.AddCommand(logCmd)

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"Listen port (default RUNNERCTL_PORT or 9465)")
}
