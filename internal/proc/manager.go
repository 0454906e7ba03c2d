// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package proc

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Result holds the typed outcome of a finished command. ExitCode is valid
// whenever the process ran to completion, including failures; callers must
// branch on it rather than substring-matching combined output.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Manager handles external process operations.
//
// All methods accept a context.Context for cancellation and timeout support.
// Implementations must be safe for concurrent use from multiple goroutines.
type Manager interface {
	// Run executes a command synchronously.
	//
	// The returned error is non-nil only when the command could not be
	// started or the context was cancelled. A process that runs and exits
	// non-zero returns a nil error with Result.ExitCode set, so callers
	// always see the typed result.
	Run(ctx context.Context, name string, args ...string) (Result, error)

	// RunWithInput executes a command with data piped to stdin.
	// Same error semantics as Run. Input is fully buffered in memory.
	RunWithInput(ctx context.Context, input []byte, name string, args ...string) (Result, error)

	// RunWithEnv executes a command with extra environment variables
	// layered over the current process environment. Values go through
	// the child's environment, never the command line.
	RunWithEnv(ctx context.Context, extraEnv map[string]string, name string, args ...string) (Result, error)

	// RunInteractive executes a command wired to the caller's terminal
	// (stdin/stdout/stderr inherited). Used for `shell` and `logs -f`,
	// where output must stream rather than buffer. Returns the exit code.
	RunInteractive(ctx context.Context, name string, args ...string) (int, error)

	// Start launches a background process and returns its PID immediately.
	// Output is discarded; context cancellation does not kill the child.
	Start(ctx context.Context, name string, args ...string) (int, error)

	// IsRunning checks whether a process matching the pattern exists,
	// using pgrep -f. Returns the first matching PID (0 when none).
	// "not found" is not an error.
	IsRunning(ctx context.Context, pattern string) (bool, int, error)

	// Look resolves an executable name against PATH.
	Look(name string) (string, error)
}

// DefaultManager implements Manager using os/exec. This is the production
// implementation; use MockManager in tests.
type DefaultManager struct{}

// NewDefaultManager creates a Manager that executes real processes.
func NewDefaultManager() *DefaultManager {
	return &DefaultManager{}
}

// Run executes a command synchronously and returns its typed result.
func (pm *DefaultManager) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}

// RunWithInput executes a command with data piped to stdin.
func (pm *DefaultManager) RunWithInput(ctx context.Context, input []byte, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}

// RunWithEnv executes a command with extra environment variables.
func (pm *DefaultManager) RunWithEnv(ctx context.Context, extraEnv map[string]string, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = os.Environ()
	for key, value := range extraEnv {
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}

// RunInteractive executes a command attached to the caller's terminal.
func (pm *DefaultManager) RunInteractive(ctx context.Context, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}
	return 0, nil
}

// Start launches a background process and returns immediately.
func (pm *DefaultManager) Start(ctx context.Context, name string, args ...string) (int, error) {
	cmd := exec.Command(name, args...)

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	// Reap the child when it exits so it does not linger as a zombie.
	go func() { _ = cmd.Wait() }()

	return cmd.Process.Pid, nil
}

// IsRunning checks whether a process matching the pattern exists.
func (pm *DefaultManager) IsRunning(ctx context.Context, pattern string) (bool, int, error) {
	res, err := pm.Run(ctx, "pgrep", "-f", pattern)
	if err != nil {
		return false, 0, err
	}
	// pgrep exits 1 when nothing matched; that is not an error.
	if res.ExitCode != 0 {
		return false, 0, nil
	}

	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	if len(lines) > 0 && lines[0] != "" {
		pid, convErr := strconv.Atoi(lines[0])
		if convErr != nil {
			return true, 0, nil // matched, but PID unparseable
		}
		return true, pid, nil
	}
	return false, 0, nil
}

// Look resolves an executable name against PATH.
func (pm *DefaultManager) Look(name string) (string, error) {
	return exec.LookPath(name)
}

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// Call records one invocation against a MockManager.
type Call struct {
	Method string
	Name   string
	Args   []string
	Input  []byte
}

// MockManager is a test double for Manager. Configure the function fields
// before use; a nil field means the method returns its zero values.
type MockManager struct {
	RunFunc            func(ctx context.Context, name string, args ...string) (Result, error)
	RunWithInputFunc   func(ctx context.Context, input []byte, name string, args ...string) (Result, error)
	RunWithEnvFunc     func(ctx context.Context, extraEnv map[string]string, name string, args ...string) (Result, error)
	RunInteractiveFunc func(ctx context.Context, name string, args ...string) (int, error)
	StartFunc          func(ctx context.Context, name string, args ...string) (int, error)
	IsRunningFunc      func(ctx context.Context, pattern string) (bool, int, error)
	LookFunc           func(name string) (string, error)

	mu    sync.Mutex
	calls []Call
}

func (m *MockManager) record(c Call) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()
}

// Calls returns a copy of all recorded invocations.
func (m *MockManager) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears recorded invocations.
func (m *MockManager) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

func (m *MockManager) Run(ctx context.Context, name string, args ...string) (Result, error) {
	m.record(Call{Method: "Run", Name: name, Args: args})
	if m.RunFunc != nil {
		return m.RunFunc(ctx, name, args...)
	}
	return Result{}, nil
}

func (m *MockManager) RunWithInput(ctx context.Context, input []byte, name string, args ...string) (Result, error) {
	m.record(Call{Method: "RunWithInput", Name: name, Args: args, Input: input})
	if m.RunWithInputFunc != nil {
		return m.RunWithInputFunc(ctx, input, name, args...)
	}
	return Result{}, nil
}

func (m *MockManager) RunWithEnv(ctx context.Context, extraEnv map[string]string, name string, args ...string) (Result, error) {
	m.record(Call{Method: "RunWithEnv", Name: name, Args: args})
	if m.RunWithEnvFunc != nil {
		return m.RunWithEnvFunc(ctx, extraEnv, name, args...)
	}
	return Result{}, nil
}

func (m *MockManager) RunInteractive(ctx context.Context, name string, args ...string) (int, error) {
	m.record(Call{Method: "RunInteractive", Name: name, Args: args})
	if m.RunInteractiveFunc != nil {
		return m.RunInteractiveFunc(ctx, name, args...)
	}
	return 0, nil
}

func (m *MockManager) Start(ctx context.Context, name string, args ...string) (int, error) {
	m.record(Call{Method: "Start", Name: name, Args: args})
	if m.StartFunc != nil {
		return m.StartFunc(ctx, name, args...)
	}
	return 1, nil
}

func (m *MockManager) IsRunning(ctx context.Context, pattern string) (bool, int, error) {
	m.record(Call{Method: "IsRunning", Name: pattern})
	if m.IsRunningFunc != nil {
		return m.IsRunningFunc(ctx, pattern)
	}
	return false, 0, nil
}

func (m *MockManager) Look(name string) (string, error) {
	m.record(Call{Method: "Look", Name: name})
	if m.LookFunc != nil {
		return m.LookFunc(name)
	}
	return "/usr/bin/" + name, nil
}

// Compile-time interface checks.
var (
	_ Manager = (*DefaultManager)(nil)
	_ Manager = (*MockManager)(nil)
)
