// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/RunnerForge/internal/proc"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrComposeFileMissing is returned when the base compose file doesn't exist.
	ErrComposeFileMissing = errors.New("compose file not found")

	// ErrDaemonUnreachable is returned when the docker daemon does not answer.
	ErrDaemonUnreachable = errors.New("docker daemon unreachable")

	// ErrContainerNotRunning is returned for exec against a stopped container.
	ErrContainerNotRunning = errors.New("container not running")

	// ErrInvalidEnvVar is returned when an injected environment variable key
	// is malformed. Prevents config injection through crafted key names.
	ErrInvalidEnvVar = errors.New("invalid environment variable")
)

// envVarKeyRegex validates environment variable key names: start with a
// letter or underscore, alphanumerics and underscores only.
var envVarKeyRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// sensitiveEnvKey reports whether an env var value must be redacted in
// command logging.
func sensitiveEnvKey(key string) bool {
	upper := strings.ToUpper(key)
	return strings.Contains(upper, "TOKEN") ||
		strings.Contains(upper, "SECRET") ||
		strings.Contains(upper, "PASSWORD") ||
		strings.Contains(upper, "KEY")
}

// =============================================================================
// Interface Definition
// =============================================================================

// ComposeExecutor abstracts docker compose operations so commands can be
// tested without a docker daemon.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Mutating operations
// (Up, Down, Build) are serialized.
type ComposeExecutor interface {
	// Up starts the stack detached. Env values are injected into the
	// compose process environment after key validation.
	Up(ctx context.Context, opts UpOptions) (*ComposeResult, error)

	// Down stops and removes the stack's containers. RemoveVolumes also
	// deletes named volumes, which is irreversible.
	Down(ctx context.Context, opts DownOptions) (*ComposeResult, error)

	// Build rebuilds the stack's images, optionally without cache.
	Build(ctx context.Context, noCache bool) (*ComposeResult, error)

	// Logs streams compose logs to the caller's terminal until the
	// context is cancelled. Returns the compose exit code.
	Logs(ctx context.Context, opts LogsOptions) (int, error)

	// Exec runs a command inside the named container and returns its
	// typed result. The container must be running.
	Exec(ctx context.Context, container string, command ...string) (*proc.Result, error)

	// ExecInteractive runs a command inside the named container wired
	// to the caller's terminal. Used for shell.
	ExecInteractive(ctx context.Context, container string, command ...string) (int, error)

	// PS returns `docker ps` output for the project's containers.
	PS(ctx context.Context, all bool) (*proc.Result, error)

	// Stats returns one-shot `docker stats` output for the project.
	Stats(ctx context.Context) (*proc.Result, error)

	// RemoveImage removes the runner image. Used by purge.
	RemoveImage(ctx context.Context, image string) (*proc.Result, error)

	// DaemonReachable reports whether the docker daemon answers.
	DaemonReachable(ctx context.Context) bool

	// ComposeFiles returns the ordered compose file list in effect.
	ComposeFiles() []string
}

// =============================================================================
// Supporting Types
// =============================================================================

// ComposeExecConfig configures the executor.
type ComposeExecConfig struct {
	// ProjectName is the compose project name. Default: "runnerforge".
	ProjectName string

	// BaseFile is the primary compose file path. Required.
	BaseFile string

	// OverrideFile is layered after BaseFile when it exists.
	OverrideFile string

	// ContainerNamePrefix filters project containers in ps/stats.
	// Default: "runnerforge-".
	ContainerNamePrefix string

	// DefaultTimeout bounds non-streaming operations. Default: 5 minutes.
	DefaultTimeout time.Duration
}

// UpOptions configures Up.
type UpOptions struct {
	// ForceBuild rebuilds images before starting.
	ForceBuild bool

	// Env is injected into the compose environment. Keys are validated;
	// sensitive values are redacted in logs.
	Env map[string]string

	// Timeout overrides the default operation timeout.
	Timeout time.Duration
}

// DownOptions configures Down.
type DownOptions struct {
	// RemoveVolumes deletes named volumes. Irreversible.
	RemoveVolumes bool

	// RemoveOrphans removes containers for undefined services.
	RemoveOrphans bool
}

// LogsOptions configures Logs.
type LogsOptions struct {
	Follow   bool
	Tail     int
	Services []string
}

// ComposeResult is the typed outcome of a compose invocation.
type ComposeResult struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Command  string
}

// =============================================================================
// Default Implementation
// =============================================================================

// DefaultComposeExecutor implements ComposeExecutor with `docker compose`.
type DefaultComposeExecutor struct {
	config ComposeExecConfig
	proc   proc.Manager
	mu     sync.Mutex
}

// NewDefaultComposeExecutor creates an executor. BaseFile is required;
// the other fields default sensibly.
func NewDefaultComposeExecutor(cfg ComposeExecConfig, pm proc.Manager) (*DefaultComposeExecutor, error) {
	if cfg.BaseFile == "" {
		return nil, fmt.Errorf("%w: BaseFile is required", ErrComposeFileMissing)
	}
	if cfg.ProjectName == "" {
		cfg.ProjectName = "runnerforge"
	}
	if cfg.ContainerNamePrefix == "" {
		cfg.ContainerNamePrefix = "runnerforge-"
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 5 * time.Minute
	}

	return &DefaultComposeExecutor{config: cfg, proc: pm}, nil
}

// ComposeFiles returns the compose file layering: base, then override
// when present on disk.
func (e *DefaultComposeExecutor) ComposeFiles() []string {
	files := []string{e.config.BaseFile}
	if e.config.OverrideFile != "" {
		if _, err := os.Stat(e.config.OverrideFile); err == nil {
			files = append(files, e.config.OverrideFile)
		}
	}
	return files
}

// composeArgs builds the invariant prefix: compose -p project -f file...
func (e *DefaultComposeExecutor) composeArgs(rest ...string) []string {
	args := []string{"compose", "-p", e.config.ProjectName}
	for _, f := range e.ComposeFiles() {
		args = append(args, "-f", f)
	}
	return append(args, rest...)
}

// validateEnvVars rejects malformed injected keys before they reach the
// compose process environment.
func validateEnvVars(env map[string]string) error {
	for key := range env {
		if !envVarKeyRegex.MatchString(key) {
			return fmt.Errorf("%w: %q", ErrInvalidEnvVar, key)
		}
	}
	return nil
}

// redactedCommand formats a command line for logging with sensitive env
// values masked.
func redactedCommand(cmd string, env map[string]string) string {
	if len(env) == 0 {
		return cmd
	}
	pairs := make([]string, 0, len(env))
	for key := range env {
		if sensitiveEnvKey(key) {
			pairs = append(pairs, key+"=[REDACTED]")
		} else {
			pairs = append(pairs, key+"="+env[key])
		}
	}
	return strings.Join(pairs, " ") + " " + cmd
}

// Up starts the stack detached.
func (e *DefaultComposeExecutor) Up(ctx context.Context, opts UpOptions) (*ComposeResult, error) {
	if err := validateEnvVars(opts.Env); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rest := []string{"up", "-d"}
	if opts.ForceBuild {
		rest = append(rest, "--build")
	}
	args := e.composeArgs(rest...)

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = e.config.DefaultTimeout
	}

	return e.runDocker(ctx, args, opts.Env, timeout)
}

// Down stops and removes the stack.
func (e *DefaultComposeExecutor) Down(ctx context.Context, opts DownOptions) (*ComposeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rest := []string{"down"}
	if opts.RemoveOrphans {
		rest = append(rest, "--remove-orphans")
	}
	if opts.RemoveVolumes {
		rest = append(rest, "-v")
	}

	return e.runDocker(ctx, e.composeArgs(rest...), nil, e.config.DefaultTimeout)
}

// Build rebuilds the stack's images.
func (e *DefaultComposeExecutor) Build(ctx context.Context, noCache bool) (*ComposeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rest := []string{"build"}
	if noCache {
		rest = append(rest, "--no-cache")
	}

	// Builds routinely outlast the default timeout.
	return e.runDocker(ctx, e.composeArgs(rest...), nil, 30*time.Minute)
}

// Logs streams compose logs to the caller's terminal.
func (e *DefaultComposeExecutor) Logs(ctx context.Context, opts LogsOptions) (int, error) {
	rest := []string{"logs"}
	if opts.Follow {
		rest = append(rest, "-f")
	}
	if opts.Tail > 0 {
		rest = append(rest, "--tail", fmt.Sprintf("%d", opts.Tail))
	}
	rest = append(rest, opts.Services...)

	return e.proc.RunInteractive(ctx, "docker", e.composeArgs(rest...)...)
}

// Exec runs a command in the named container without a TTY.
func (e *DefaultComposeExecutor) Exec(ctx context.Context, container string, command ...string) (*proc.Result, error) {
	if len(command) == 0 {
		return nil, errors.New("exec requires a command")
	}

	args := append([]string{"exec", container}, command...)
	res, err := e.proc.Run(ctx, "docker", args...)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 && strings.Contains(res.Stderr, "is not running") {
		return &res, ErrContainerNotRunning
	}
	return &res, nil
}

// ExecInteractive runs a command in the named container with -it.
func (e *DefaultComposeExecutor) ExecInteractive(ctx context.Context, container string, command ...string) (int, error) {
	args := append([]string{"exec", "-it", container}, command...)
	return e.proc.RunInteractive(ctx, "docker", args...)
}

// PS lists the project's containers.
func (e *DefaultComposeExecutor) PS(ctx context.Context, all bool) (*proc.Result, error) {
	args := []string{"ps", "--filter", "name=" + e.config.ContainerNamePrefix,
		"--format", "table {{.Names}}\t{{.Status}}\t{{.Image}}"}
	if all {
		args = append(args, "-a")
	}
	res, err := e.proc.Run(ctx, "docker", args...)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Stats reports one-shot resource usage for the project's containers.
func (e *DefaultComposeExecutor) Stats(ctx context.Context) (*proc.Result, error) {
	res, err := e.proc.Run(ctx, "docker", "stats", "--no-stream",
		"--format", "table {{.Name}}\t{{.CPUPerc}}\t{{.MemUsage}}\t{{.NetIO}}")
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RemoveImage removes an image by reference.
func (e *DefaultComposeExecutor) RemoveImage(ctx context.Context, image string) (*proc.Result, error) {
	res, err := e.proc.Run(ctx, "docker", "rmi", image)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// DaemonReachable probes the docker daemon with `docker info`.
func (e *DefaultComposeExecutor) DaemonReachable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := e.proc.Run(probeCtx, "docker", "info", "--format", "{{.ServerVersion}}")
	return err == nil && res.ExitCode == 0
}

// runDocker executes a docker invocation with env injection and typed
// results. Non-zero exit is surfaced as an error alongside the result
// so callers can print stderr.
func (e *DefaultComposeExecutor) runDocker(ctx context.Context, args []string, env map[string]string, timeout time.Duration) (*ComposeResult, error) {
	start := time.Now()
	cmdStr := "docker " + strings.Join(args, " ")

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Env injection goes through the child's environment, not the
	// command line, so values never appear in ps output.
	res, err := e.proc.RunWithEnv(execCtx, env, "docker", args...)

	result := &ComposeResult{
		Success:  err == nil && res.ExitCode == 0,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		Duration: time.Since(start),
		Command:  redactedCommand(cmdStr, env),
	}

	if err != nil {
		return result, fmt.Errorf("compose command failed: %w", err)
	}
	if res.ExitCode != 0 {
		return result, fmt.Errorf("compose command exited with code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return result, nil
}

// =============================================================================
// Mock Implementation for Testing
// =============================================================================

// MockComposeExecutor is a test double with function fields; nil fields
// return zero values.
type MockComposeExecutor struct {
	UpFunc              func(ctx context.Context, opts UpOptions) (*ComposeResult, error)
	DownFunc            func(ctx context.Context, opts DownOptions) (*ComposeResult, error)
	BuildFunc           func(ctx context.Context, noCache bool) (*ComposeResult, error)
	LogsFunc            func(ctx context.Context, opts LogsOptions) (int, error)
	ExecFunc            func(ctx context.Context, container string, command ...string) (*proc.Result, error)
	ExecInteractiveFunc func(ctx context.Context, container string, command ...string) (int, error)
	PSFunc              func(ctx context.Context, all bool) (*proc.Result, error)
	StatsFunc           func(ctx context.Context) (*proc.Result, error)
	RemoveImageFunc     func(ctx context.Context, image string) (*proc.Result, error)
	DaemonReachableFunc func(ctx context.Context) bool
	ComposeFilesFunc    func() []string
}

func (m *MockComposeExecutor) Up(ctx context.Context, opts UpOptions) (*ComposeResult, error) {
	if m.UpFunc != nil {
		return m.UpFunc(ctx, opts)
	}
	return &ComposeResult{Success: true}, nil
}

func (m *MockComposeExecutor) Down(ctx context.Context, opts DownOptions) (*ComposeResult, error) {
	if m.DownFunc != nil {
		return m.DownFunc(ctx, opts)
	}
	return &ComposeResult{Success: true}, nil
}

func (m *MockComposeExecutor) Build(ctx context.Context, noCache bool) (*ComposeResult, error) {
	if m.BuildFunc != nil {
		return m.BuildFunc(ctx, noCache)
	}
	return &ComposeResult{Success: true}, nil
}

func (m *MockComposeExecutor) Logs(ctx context.Context, opts LogsOptions) (int, error) {
	if m.LogsFunc != nil {
		return m.LogsFunc(ctx, opts)
	}
	return 0, nil
}

func (m *MockComposeExecutor) Exec(ctx context.Context, container string, command ...string) (*proc.Result, error) {
	if m.ExecFunc != nil {
		return m.ExecFunc(ctx, container, command...)
	}
	return &proc.Result{}, nil
}

func (m *MockComposeExecutor) ExecInteractive(ctx context.Context, container string, command ...string) (int, error) {
	if m.ExecInteractiveFunc != nil {
		return m.ExecInteractiveFunc(ctx, container, command...)
	}
	return 0, nil
}

func (m *MockComposeExecutor) PS(ctx context.Context, all bool) (*proc.Result, error) {
	if m.PSFunc != nil {
		return m.PSFunc(ctx, all)
	}
	return &proc.Result{}, nil
}

func (m *MockComposeExecutor) Stats(ctx context.Context) (*proc.Result, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return &proc.Result{}, nil
}

func (m *MockComposeExecutor) RemoveImage(ctx context.Context, image string) (*proc.Result, error) {
	if m.RemoveImageFunc != nil {
		return m.RemoveImageFunc(ctx, image)
	}
	return &proc.Result{}, nil
}

func (m *MockComposeExecutor) DaemonReachable(ctx context.Context) bool {
	if m.DaemonReachableFunc != nil {
		return m.DaemonReachableFunc(ctx)
	}
	return true
}

func (m *MockComposeExecutor) ComposeFiles() []string {
	if m.ComposeFilesFunc != nil {
		return m.ComposeFilesFunc()
	}
	return []string{"docker-compose.yml"}
}

// Compile-time interface checks.
var (
	_ ComposeExecutor = (*DefaultComposeExecutor)(nil)
	_ ComposeExecutor = (*MockComposeExecutor)(nil)
)
