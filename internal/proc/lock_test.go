package proc

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func testLockConfig(t *testing.T) LockConfig {
	t.Helper()
	return LockConfig{LockDir: t.TempDir(), LockName: "runnerforge-test"}
}

func TestLock_AcquireRelease(t *testing.T) {
	lock := NewLock(testLockConfig(t))

	if lock.IsHeld() {
		t.Error("new lock must not be held")
	}
	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !lock.IsHeld() {
		t.Error("lock should be held after Acquire")
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if lock.IsHeld() {
		t.Error("lock should not be held after Release")
	}
}

func TestLock_AcquireIdempotent(t *testing.T) {
	lock := NewLock(testLockConfig(t))
	defer lock.Release()

	if err := lock.Acquire(); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := lock.Acquire(); err != nil {
		t.Fatalf("re-Acquire of held lock: %v", err)
	}
}

func TestLock_ReleaseWithoutAcquire(t *testing.T) {
	lock := NewLock(testLockConfig(t))
	if err := lock.Release(); err != nil {
		t.Errorf("Release of unheld lock should be a no-op: %v", err)
	}
}

func TestLock_SecondInstanceBlocked(t *testing.T) {
	config := testLockConfig(t)

	first := NewLock(config)
	if err := first.Acquire(); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	defer first.Release()

	second := NewLock(config)
	err := second.Acquire()
	if err == nil {
		second.Release()
		t.Fatal("second instance should not acquire a held lock")
	}
	if !strings.Contains(err.Error(), "another runnerforge instance") {
		t.Errorf("error = %v, want instance-running message", err)
	}
	if !strings.Contains(err.Error(), strconv.Itoa(os.Getpid())) {
		t.Errorf("error should name the holder PID: %v", err)
	}
}

func TestLock_PIDFileLifecycle(t *testing.T) {
	config := testLockConfig(t)
	lock := NewLock(config)

	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	pidPath := filepath.Join(config.LockDir, config.LockName+".pid")
	if lock.HolderPID() != os.Getpid() {
		t.Errorf("HolderPID = %d, want %d", lock.HolderPID(), os.Getpid())
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Error("pid file should be removed on Release")
	}
	if lock.HolderPID() != 0 {
		t.Errorf("HolderPID after release = %d, want 0", lock.HolderPID())
	}
}

func TestLock_Defaults(t *testing.T) {
	lock := NewLock(LockConfig{})
	if lock.config.LockName != "runnerforge" {
		t.Errorf("default LockName = %q", lock.config.LockName)
	}
	if lock.config.LockDir != os.TempDir() {
		t.Errorf("default LockDir = %q", lock.config.LockDir)
	}
}
