package main

import (
	"context"
	"testing"
	"time"

	"github.com/AleutianAI/RunnerForge/cmd/runnerforge/config"
	"github.com/AleutianAI/RunnerForge/internal/proc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolling(t *testing.T) {
	t.Helper()
	oldBase, oldMax := readyPollBase, readyPollMax
	readyPollBase = time.Millisecond
	readyPollMax = 5 * time.Millisecond
	t.Cleanup(func() {
		readyPollBase, readyPollMax = oldBase, oldMax
	})
}

func TestWaitForReady_SucceedsAfterStartupDelay(t *testing.T) {
	fastPolling(t)

	attempts := 0
	exec := &MockComposeExecutor{
		ExecFunc: func(ctx context.Context, container string, command ...string) (*proc.Result, error) {
			attempts++
			switch {
			case attempts == 1:
				return nil, ErrContainerNotRunning
			case attempts < 4:
				return &proc.Result{ExitCode: 1}, nil
			default:
				return &proc.Result{Stdout: `{"status": "healthy"}`}, nil
			}
		},
	}

	err := waitForReady(context.Background(), exec, "runnerforge-runner", time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, attempts, 4)
}

func TestWaitForReady_Timeout(t *testing.T) {
	fastPolling(t)

	exec := &MockComposeExecutor{
		ExecFunc: func(ctx context.Context, container string, command ...string) (*proc.Result, error) {
			return &proc.Result{ExitCode: 1}, nil
		},
	}

	err := waitForReady(context.Background(), exec, "runnerforge-runner", 20*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not become ready")
}

func TestWaitForReady_ContextCancel(t *testing.T) {
	fastPolling(t)

	ctx, cancel := context.WithCancel(context.Background())
	exec := &MockComposeExecutor{
		ExecFunc: func(ctx context.Context, container string, command ...string) (*proc.Result, error) {
			cancel()
			return &proc.Result{ExitCode: 1}, nil
		},
	}

	err := waitForReady(ctx, exec, "runnerforge-runner", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitForReady_ProbeErrorAborts(t *testing.T) {
	fastPolling(t)

	exec := &MockComposeExecutor{
		ExecFunc: func(ctx context.Context, container string, command ...string) (*proc.Result, error) {
			return nil, context.DeadlineExceeded
		},
	}

	err := waitForReady(context.Background(), exec, "runnerforge-runner", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "readiness probe failed")
}

func TestRunnerEnv(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")

	cfg := config.RunnerForgeConfig{
		Workspace:   "/srv/forge/workspace",
		SecretsFile: "/srv/forge/secrets.env",
		Health:      config.HealthConfig{MinDiskMB: 2048, MaxMemoryPct: 75},
		Otel:        config.OtelConfig{Enabled: true, ConfigPath: "/etc/otelcol/config.yaml"},
		ExpectedVersions: map[string]string{
			"node":       "22",
			"actionlint": "1.7",
		},
	}

	env := runnerEnv(cfg)
	assert.Equal(t, "/srv/forge/workspace", env["RUNNERFORGE_WORKSPACE"])
	assert.Equal(t, "/srv/forge/secrets.env", env["RUNNERFORGE_SECRETS_FILE"])
	assert.Equal(t, "2048", env["RUNNER_MIN_DISK_MB"])
	assert.Equal(t, "75", env["RUNNER_MAX_MEMORY_PCT"])
	assert.Equal(t, "true", env["RUNNER_OTEL_ENABLED"])
	assert.Equal(t, "/etc/otelcol/config.yaml", env["RUNNER_OTEL_CONFIG"])
	assert.Equal(t, "22", env["RUNNER_EXPECTED_NODE"])
	assert.Equal(t, "1.7", env["RUNNER_EXPECTED_ACTIONLINT"])
	assert.NotContains(t, env, "GITHUB_TOKEN", "token must not be forwarded when unset")

	t.Setenv("GITHUB_TOKEN", "ghp_host")
	env = runnerEnv(cfg)
	assert.Equal(t, "ghp_host", env["GITHUB_TOKEN"])
}
