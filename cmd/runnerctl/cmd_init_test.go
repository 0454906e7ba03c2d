package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/RunnerForge/internal/proc"
	"github.com/AleutianAI/RunnerForge/pkg/logging"
)

func TestVerifyGitHubAuth_ProbeFailureLogsError(t *testing.T) {
	var out bytes.Buffer
	emit := logging.NewEmitter(&out, "runnerctl")

	mock := &proc.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) (proc.Result, error) {
			return proc.Result{}, errors.New("gh: executable file not found")
		},
	}

	verifyGitHubAuth(context.Background(), mock, emit)

	line := out.String()
	if !strings.Contains(line, "could not run") {
		t.Errorf("line = %q, want probe-failure message", line)
	}
	if !strings.Contains(line, "executable file not found") {
		t.Errorf("line = %q, want the underlying error", line)
	}
	if strings.Contains(line, "exit_code") {
		t.Errorf("line = %q, an exit code for a probe that never ran is misleading", line)
	}
}

func TestVerifyGitHubAuth_UnauthenticatedLogsExitCode(t *testing.T) {
	var out bytes.Buffer
	emit := logging.NewEmitter(&out, "runnerctl")

	mock := &proc.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) (proc.Result, error) {
			return proc.Result{ExitCode: 1, Stderr: "not logged in"}, nil
		},
	}

	verifyGitHubAuth(context.Background(), mock, emit)

	line := out.String()
	if !strings.Contains(line, "auth check failed") {
		t.Errorf("line = %q, want auth-failed warning", line)
	}
	if !strings.Contains(line, `"exit_code":1`) {
		t.Errorf("line = %q, want exit_code=1 context", line)
	}
}

func TestVerifyGitHubAuth_Verified(t *testing.T) {
	var out bytes.Buffer
	emit := logging.NewEmitter(&out, "runnerctl")

	verifyGitHubAuth(context.Background(), &proc.MockManager{}, emit)

	if !strings.Contains(out.String(), "GitHub auth verified") {
		t.Errorf("line = %q, want verified message", out.String())
	}
}
