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
	"regexp"
	"strings"

	"github.com/AleutianAI/RunnerForge/internal/proc"
)

// =============================================================================
// TOOL INVENTORY
// =============================================================================

// Tool describes one binary the runner image is expected to carry.
type Tool struct {
	// Name is the binary name on PATH.
	Name string

	// Required marks tools the runner cannot operate without. A missing
	// required tool fails init; missing optional tools only warn.
	Required bool

	// VersionArgs invokes the tool's version output. Most tools take
	// --version; go spells it differently.
	VersionArgs []string

	// Expected is the version the image was built with, empty when any
	// version is acceptable. Compared by substring so "22" matches
	// "v22.14.0".
	Expected string
}

// runnerTools is the full inventory the image advertises. Order is the
// display order of the versions command.
func runnerTools() []Tool {
	return []Tool{
		{Name: "claude", Required: true, VersionArgs: []string{"--version"}},
		{Name: "node", Required: true, VersionArgs: []string{"--version"}},
		{Name: "go", Required: true, VersionArgs: []string{"version"}},
		{Name: "git", Required: true, VersionArgs: []string{"--version"}},
		{Name: "gh", Required: true, VersionArgs: []string{"--version"}},
		{Name: "python3", VersionArgs: []string{"--version"}},
		{Name: "terraform", VersionArgs: []string{"--version"}},
		{Name: "kubectl", VersionArgs: []string{"version", "--client", "--output=yaml"}},
		{Name: "helm", VersionArgs: []string{"version", "--short"}},
		{Name: "aws", VersionArgs: []string{"--version"}},
		{Name: "act", VersionArgs: []string{"--version"}},
		{Name: "actionlint", VersionArgs: []string{"--version"}},
	}
}

// =============================================================================
// VERSION COMPARISON
// =============================================================================

// ToolVersion is one row of the versions report.
type ToolVersion struct {
	Name      string `json:"name"`
	Installed string `json:"installed"`
	Expected  string `json:"expected,omitempty"`
	Status    string `json:"status"` // ok | mismatch | missing
}

// versionPattern extracts the first dotted version token from version
// output, with or without a leading v.
var versionPattern = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?)`)

// extractVersion pulls a bare version number out of arbitrary version
// output, or returns the trimmed first line when nothing matches.
func extractVersion(output string) string {
	line := strings.TrimSpace(firstLine(output))
	if m := versionPattern.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return line
}

// CheckVersions probes every tool in the inventory and compares against
// expectations. This is diagnostic only: the report never fails the
// caller, matching the contract that version drift warns and nothing
// more.
func CheckVersions(ctx context.Context, pm proc.Manager, tools []Tool, expected map[string]string) []ToolVersion {
	report := make([]ToolVersion, 0, len(tools))
	for _, tool := range tools {
		want := tool.Expected
		if override, ok := expected[tool.Name]; ok {
			want = override
		}

		row := ToolVersion{Name: tool.Name, Expected: want}

		if _, err := pm.Look(tool.Name); err != nil {
			row.Status = "missing"
			report = append(report, row)
			continue
		}

		res, err := pm.Run(ctx, tool.Name, tool.VersionArgs...)
		if err != nil || res.ExitCode != 0 {
			row.Status = "missing"
			row.Installed = strings.TrimSpace(firstLine(res.Stderr))
			report = append(report, row)
			continue
		}

		// Some tools (python3 among them) print the version on stderr.
		out := res.Stdout
		if strings.TrimSpace(out) == "" {
			out = res.Stderr
		}
		row.Installed = extractVersion(out)

		if want == "" || strings.Contains(row.Installed, want) {
			row.Status = "ok"
		} else {
			row.Status = "mismatch"
		}
		report = append(report, row)
	}
	return report
}

// VerifyRequiredTools resolves every required tool on PATH. Returns an
// error naming all missing required tools, and the list of missing
// optional tools for warn-level reporting.
func VerifyRequiredTools(pm proc.Manager, tools []Tool) (missingOptional []string, err error) {
	var missingRequired []string
	for _, tool := range tools {
		if _, lookErr := pm.Look(tool.Name); lookErr == nil {
			continue
		}
		if tool.Required {
			missingRequired = append(missingRequired, tool.Name)
		} else {
			missingOptional = append(missingOptional, tool.Name)
		}
	}
	if len(missingRequired) > 0 {
		return missingOptional, fmt.Errorf("required tools missing from PATH: %s",
			strings.Join(missingRequired, ", "))
	}
	return missingOptional, nil
}
