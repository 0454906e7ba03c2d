package main

import (
	"context"
	"strings"
	"testing"

	"github.com/AleutianAI/RunnerForge/internal/proc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedExec returns a mock whose Exec answers depend on the first
// command token.
func scriptedExec(answers map[string]proc.Result) *MockComposeExecutor {
	return &MockComposeExecutor{
		ExecFunc: func(ctx context.Context, container string, command ...string) (*proc.Result, error) {
			key := strings.Join(command, " ")
			for prefix, res := range answers {
				if strings.HasPrefix(key, prefix) {
					out := res
					return &out, nil
				}
			}
			return &proc.Result{}, nil
		},
	}
}

func TestRunSuite_AllPass(t *testing.T) {
	exec := scriptedExec(map[string]proc.Result{
		"whoami": {Stdout: "runner\n"},
	})

	report := RunSuite(context.Background(), exec, "runnerforge-runner", securitySuite())
	require.Equal(t, len(securitySuite()), report.Passed)
	assert.Zero(t, report.Failed)
	assert.NotEmpty(t, report.RunID)
}

func TestRunSuite_ExitCodeMismatch(t *testing.T) {
	exec := scriptedExec(map[string]proc.Result{
		"whoami": {Stdout: "runner\n"},
		"sh -c ! test -e /var/run/docker.sock": {ExitCode: 1, Stderr: "socket present"},
	})

	report := RunSuite(context.Background(), exec, "runnerforge-runner", securitySuite())
	require.Equal(t, 1, report.Failed)

	var failed CaseResult
	for _, r := range report.Results {
		if !r.Passed {
			failed = r
		}
	}
	assert.Equal(t, "docker socket is not mounted", failed.Name)
	assert.Contains(t, failed.Reason, "exit code 1")
	assert.Contains(t, failed.Reason, "socket present")
}

func TestRunSuite_StdoutContains(t *testing.T) {
	cases := []SuiteCase{{
		Name:               "probe healthy",
		Command:            []string{"runnerctl", "health", "ready"},
		WantStdoutContains: `"status": "healthy"`,
	}}

	healthy := scriptedExec(map[string]proc.Result{
		"runnerctl": {Stdout: "{\n  \"status\": \"healthy\"\n}\n"},
	})
	report := RunSuite(context.Background(), healthy, "c", cases)
	assert.Equal(t, 1, report.Passed)

	degraded := scriptedExec(map[string]proc.Result{
		"runnerctl": {Stdout: "{\n  \"status\": \"unhealthy\"\n}\n"},
	})
	report = RunSuite(context.Background(), degraded, "c", cases)
	require.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Results[0].Reason, "stdout missing")
}

func TestRunSuite_StdoutOmits(t *testing.T) {
	exec := scriptedExec(map[string]proc.Result{
		"whoami": {Stdout: "root\n"},
	})

	cases := []SuiteCase{{
		Name:            "runner process is not root",
		Command:         []string{"whoami"},
		WantStdoutOmits: "root",
	}}
	report := RunSuite(context.Background(), exec, "c", cases)
	require.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Results[0].Reason, "unexpectedly contains")
}

func TestRunSuite_StoppedContainerFailsCasesNotRun(t *testing.T) {
	exec := &MockComposeExecutor{
		ExecFunc: func(ctx context.Context, container string, command ...string) (*proc.Result, error) {
			return nil, ErrContainerNotRunning
		},
	}

	report := RunSuite(context.Background(), exec, "c", securitySuite())
	assert.Equal(t, len(securitySuite()), report.Failed)
	for _, r := range report.Results {
		assert.Contains(t, r.Reason, "not running")
	}
}

func TestRunSuite_DistinctRunIDs(t *testing.T) {
	exec := scriptedExec(nil)
	a := RunSuite(context.Background(), exec, "c", nil)
	b := RunSuite(context.Background(), exec, "c", nil)
	assert.NotEqual(t, a.RunID, b.RunID)
}
