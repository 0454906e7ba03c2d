// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the RunnerForge CLIs.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// RunnerForge color palette
var (
	ColorSuccess = lipgloss.Color("#2CD7C7") // Bright teal for success
	ColorWarning = lipgloss.Color("#F4D03F") // Gold/amber for warnings
	ColorError   = lipgloss.Color("#E74C3C") // Red for errors
	ColorInfo    = lipgloss.Color("#20B9B4") // Primary teal for informational lines
	ColorMuted   = lipgloss.Color("#2C4A54") // Slate for muted text
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	StatusOK      lipgloss.Style
	StatusWarning lipgloss.Style
	StatusError   lipgloss.Style
	StatusPending lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorInfo),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorMuted),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),

	StatusOK:      lipgloss.NewStyle().SetString("✓").Foreground(ColorSuccess),
	StatusWarning: lipgloss.NewStyle().SetString("⚠").Foreground(ColorWarning),
	StatusError:   lipgloss.NewStyle().SetString("✗").Foreground(ColorError),
	StatusPending: lipgloss.NewStyle().SetString("○").Foreground(ColorMuted),
}

// colorEnabled reports whether styled output should be used. Colors are
// suppressed when stdout is not a terminal (pipes, CI logs) or when
// NO_COLOR is set.
func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// render applies the style only when color output is enabled.
func render(style lipgloss.Style, text string) string {
	if !colorEnabled() {
		return text
	}
	return style.Render(text)
}

// Successf prints a success line with a check glyph.
func Successf(format string, args ...any) {
	fmt.Printf("%s %s\n", render(Styles.StatusOK, "✓"), render(Styles.Success, fmt.Sprintf(format, args...)))
}

// Warnf prints a warning line with a warning glyph.
func Warnf(format string, args ...any) {
	fmt.Printf("%s %s\n", render(Styles.StatusWarning, "⚠"), render(Styles.Warning, fmt.Sprintf(format, args...)))
}

// Errorf prints an error line with a cross glyph.
func Errorf(format string, args ...any) {
	fmt.Printf("%s %s\n", render(Styles.StatusError, "✗"), render(Styles.Error, fmt.Sprintf(format, args...)))
}

// Infof prints a plain informational line.
func Infof(format string, args ...any) {
	fmt.Printf("%s\n", fmt.Sprintf(format, args...))
}

// Titlef prints a bold section title.
func Titlef(format string, args ...any) {
	fmt.Printf("%s\n", render(Styles.Title, fmt.Sprintf(format, args...)))
}
