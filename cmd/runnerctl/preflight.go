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
	"strings"

	"github.com/AleutianAI/RunnerForge/internal/proc"
	"github.com/AleutianAI/RunnerForge/pkg/logging"
)

// RunPreflight lints the workspace before jobs run. Findings are logged
// at WARN and never block startup: preflight exists to surface problems
// early, not to gate a runner whose jobs may not even touch the flagged
// files.
func RunPreflight(ctx context.Context, pm proc.Manager, emit *logging.Emitter, env RuntimeEnv) {
	if env.PreflightGofmt {
		preflightGofmt(ctx, pm, emit, env.Workspace)
	}
	if env.PreflightLint {
		preflightActionlint(ctx, pm, emit, env.Workspace)
	}
}

// preflightGofmt runs gofmt -l over the workspace and warns per
// unformatted file.
func preflightGofmt(ctx context.Context, pm proc.Manager, emit *logging.Emitter, workspace string) {
	if _, err := pm.Look("gofmt"); err != nil {
		return
	}
	if !workspaceHasGoFiles(workspace) {
		return
	}

	res, err := pm.Run(ctx, "gofmt", "-l", workspace)
	if err != nil {
		emit.Emit(logging.LevelWarn, "gofmt preflight failed to run",
			fmt.Sprintf("error=%v", err))
		return
	}

	for _, file := range splitNonEmptyLines(res.Stdout) {
		emit.Emit(logging.LevelWarn, "File is not gofmt-formatted", "file="+file)
	}
}

// preflightActionlint lints workflow files when any exist.
func preflightActionlint(ctx context.Context, pm proc.Manager, emit *logging.Emitter, workspace string) {
	if _, err := pm.Look("actionlint"); err != nil {
		return
	}

	workflows := filepath.Join(workspace, ".github", "workflows")
	files, _ := filepath.Glob(filepath.Join(workflows, "*.yml"))
	more, _ := filepath.Glob(filepath.Join(workflows, "*.yaml"))
	files = append(files, more...)
	if len(files) == 0 {
		return
	}

	args := append([]string{"-no-color"}, files...)
	res, err := pm.Run(ctx, "actionlint", args...)
	if err != nil {
		emit.Emit(logging.LevelWarn, "actionlint preflight failed to run",
			fmt.Sprintf("error=%v", err))
		return
	}
	if res.ExitCode == 0 {
		return
	}

	for _, finding := range splitNonEmptyLines(res.Stdout) {
		emit.Emit(logging.LevelWarn, "Workflow lint finding", "finding="+finding)
	}
}

// workspaceHasGoFiles does a shallow walk for .go files so gofmt is not
// invoked on workspaces that carry none.
func workspaceHasGoFiles(workspace string) bool {
	found := false
	filepath.WalkDir(workspace, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), ".") && path != workspace {
			return filepath.SkipDir
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".go") {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
