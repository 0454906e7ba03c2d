package proc

import (
	"context"
	"strings"
	"testing"
)

func TestDefaultManager_Run(t *testing.T) {
	pm := NewDefaultManager()
	res, err := pm.Run(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Errorf("stdout = %q, want hello", res.Stdout)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
}

func TestDefaultManager_Run_NonZeroExitIsNotAnError(t *testing.T) {
	pm := NewDefaultManager()
	res, err := pm.Run(context.Background(), "sh", "-c", "echo oops >&2; exit 3")
	if err != nil {
		t.Fatalf("non-zero exit must not surface as error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "oops") {
		t.Errorf("stderr = %q, want to contain oops", res.Stderr)
	}
}

func TestDefaultManager_Run_MissingBinary(t *testing.T) {
	pm := NewDefaultManager()
	_, err := pm.Run(context.Background(), "definitely-not-a-real-binary-xyz")
	if err == nil {
		t.Fatal("expected start failure for missing binary")
	}
}

func TestDefaultManager_RunWithInput(t *testing.T) {
	pm := NewDefaultManager()
	res, err := pm.RunWithInput(context.Background(), []byte("piped data"), "cat")
	if err != nil {
		t.Fatalf("RunWithInput: %v", err)
	}
	if res.Stdout != "piped data" {
		t.Errorf("stdout = %q, want piped data", res.Stdout)
	}
}

func TestDefaultManager_RunWithEnv(t *testing.T) {
	pm := NewDefaultManager()
	res, err := pm.RunWithEnv(context.Background(),
		map[string]string{"PROC_TEST_VALUE": "injected"},
		"sh", "-c", "echo $PROC_TEST_VALUE")
	if err != nil {
		t.Fatalf("RunWithEnv: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "injected" {
		t.Errorf("stdout = %q, want injected", res.Stdout)
	}
}

func TestDefaultManager_Run_ContextCancel(t *testing.T) {
	pm := NewDefaultManager()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pm.Run(ctx, "sleep", "10")
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestDefaultManager_Look(t *testing.T) {
	pm := NewDefaultManager()
	path, err := pm.Look("sh")
	if err != nil {
		t.Fatalf("Look(sh): %v", err)
	}
	if path == "" {
		t.Error("Look returned empty path")
	}

	if _, err := pm.Look("definitely-not-a-real-binary-xyz"); err == nil {
		t.Error("expected error for missing binary")
	}
}

func TestMockManager_RecordsCalls(t *testing.T) {
	mock := &MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) (Result, error) {
			return Result{Stdout: "mocked"}, nil
		},
	}

	res, err := mock.Run(context.Background(), "docker", "compose", "ps")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stdout != "mocked" {
		t.Errorf("stdout = %q, want mocked", res.Stdout)
	}

	mock.Look("docker")

	calls := mock.Calls()
	if len(calls) != 2 {
		t.Fatalf("recorded %d calls, want 2", len(calls))
	}
	if calls[0].Method != "Run" || calls[0].Name != "docker" {
		t.Errorf("first call = %+v", calls[0])
	}
	if calls[0].Args[0] != "compose" {
		t.Errorf("args = %v", calls[0].Args)
	}
	if calls[1].Method != "Look" {
		t.Errorf("second call = %+v", calls[1])
	}

	mock.Reset()
	if len(mock.Calls()) != 0 {
		t.Error("Reset did not clear calls")
	}
}

func TestMockManager_ZeroValueDefaults(t *testing.T) {
	mock := &MockManager{}

	res, err := mock.Run(context.Background(), "anything")
	if err != nil || res.ExitCode != 0 {
		t.Errorf("zero-value Run = %+v, %v", res, err)
	}

	running, pid, err := mock.IsRunning(context.Background(), "otelcol")
	if running || pid != 0 || err != nil {
		t.Errorf("zero-value IsRunning = %v, %d, %v", running, pid, err)
	}
}
