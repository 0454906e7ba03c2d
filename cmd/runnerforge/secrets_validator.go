// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/awnumar/memguard"
)

// placeholderValues are values that mean "the user never filled this in".
// Matching is case-insensitive against the whole value.
var placeholderValues = map[string]bool{
	"changeme":        true,
	"change-me":       true,
	"your-token-here": true,
	"your_token_here": true,
	"replace-me":      true,
	"todo":            true,
	"xxx":             true,
	"example":         true,
}

// SecretsReport is the outcome of validating a secrets env file. Findings
// name keys and structural problems only; secret values never appear in a
// finding, in logs, or in errors.
type SecretsReport struct {
	Entries  int
	Findings []string
}

// OK reports whether the file passed with no findings.
func (r *SecretsReport) OK() bool {
	return len(r.Findings) == 0
}

// ValidateSecretsFile checks the secrets env file before it is handed to
// compose: it must exist, must not be group/world readable, and every
// entry must be a well-formed KEY=VALUE with a non-placeholder value.
//
// # Assumptions
//
//   - File contents fit in memory; secrets files are small.
//   - The file uses dotenv syntax: one KEY=VALUE per line, # comments.
//
// The file's bytes are held in a memguard locked buffer while scanned so
// secret material is wiped from memory when validation finishes rather
// than lingering until the next GC cycle.
func ValidateSecretsFile(path string) (*SecretsReport, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("secrets file %s does not exist; create it from secrets.env.example", path)
		}
		return nil, fmt.Errorf("could not stat the secrets file: %w", err)
	}

	report := &SecretsReport{}

	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		report.Findings = append(report.Findings,
			fmt.Sprintf("%s has mode %04o; secrets must not be group or world accessible (chmod 600)", path, perm))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read the secrets file: %w", err)
	}
	if len(raw) == 0 {
		report.Findings = append(report.Findings, fmt.Sprintf("%s holds no entries", path))
		return report, nil
	}

	// NewBufferFromBytes wipes raw; buf is the only live copy from here.
	buf := memguard.NewBufferFromBytes(raw)
	defer buf.Destroy()

	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			report.Findings = append(report.Findings,
				fmt.Sprintf("line %d: not a KEY=VALUE entry", lineNo))
			continue
		}

		key = strings.TrimSpace(key)
		if !envVarKeyRegex.MatchString(key) {
			report.Findings = append(report.Findings,
				fmt.Sprintf("line %d: malformed key %q", lineNo, key))
			continue
		}

		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if value == "" {
			report.Findings = append(report.Findings,
				fmt.Sprintf("%s is empty", key))
			continue
		}
		if placeholderValues[strings.ToLower(value)] {
			report.Findings = append(report.Findings,
				fmt.Sprintf("%s still holds a placeholder value", key))
			continue
		}

		report.Entries++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not scan the secrets file: %w", err)
	}

	if report.Entries == 0 && len(report.Findings) == 0 {
		report.Findings = append(report.Findings, fmt.Sprintf("%s holds no entries", path))
	}

	return report, nil
}
