// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package proc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Locker prevents concurrent stack-mutating CLI invocations.
type Locker interface {
	// Acquire attempts to get an exclusive lock.
	Acquire() error

	// Release releases the lock if held. Safe to call multiple times
	// or if the lock was never acquired.
	Release() error

	// IsHeld returns true if this instance currently holds the lock.
	IsHeld() bool

	// HolderPID returns the PID of the process holding the lock,
	// or 0 if unknown.
	HolderPID() int
}

// LockConfig configures lock file location.
type LockConfig struct {
	// LockDir is the directory for lock files. Default: system temp dir.
	LockDir string

	// LockName is the base name for lock files. Default: "runnerforge".
	LockName string
}

// DefaultLockConfig returns the standard lock location.
func DefaultLockConfig() LockConfig {
	return LockConfig{
		LockDir:  os.TempDir(),
		LockName: "runnerforge",
	}
}

// Lock is a flock(2)-based advisory lock with a companion PID file for
// diagnostics. Not safe for concurrent use from multiple goroutines.
type Lock struct {
	config   LockConfig
	lockPath string
	pidPath  string
	lockFile *os.File
	held     bool
}

// NewLock creates a lock instance (not yet acquired).
func NewLock(config LockConfig) *Lock {
	if config.LockDir == "" {
		config.LockDir = os.TempDir()
	}
	if config.LockName == "" {
		config.LockName = "runnerforge"
	}

	return &Lock{
		config:   config,
		lockPath: filepath.Join(config.LockDir, config.LockName+".lock"),
		pidPath:  filepath.Join(config.LockDir, config.LockName+".pid"),
	}
}

// Acquire attempts a non-blocking exclusive flock. If another process
// holds the lock, the error names the holder's PID when available.
func (p *Lock) Acquire() error {
	if p.held {
		return nil // Already held
	}

	f, err := os.OpenFile(p.lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file %s: %w", p.lockPath, err)
	}

	err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		f.Close()

		if err == syscall.EWOULDBLOCK {
			holderPID := p.readHolderPID()
			if holderPID > 0 {
				return fmt.Errorf("another runnerforge instance is running (PID %d). "+
					"If this is stale, remove %s", holderPID, p.pidPath)
			}
			return fmt.Errorf("another runnerforge instance is running. "+
				"Check: lsof %s", p.lockPath)
		}

		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	p.lockFile = f
	p.held = true

	// PID file is diagnostic only; failing to write it does not
	// invalidate the lock.
	_ = p.writePID()

	return nil
}

// Release removes the PID file and releases the flock.
func (p *Lock) Release() error {
	if !p.held || p.lockFile == nil {
		return nil
	}

	os.Remove(p.pidPath)

	err := syscall.Flock(int(p.lockFile.Fd()), syscall.LOCK_UN)

	// Closing the file also drops the lock if the explicit unlock failed.
	p.lockFile.Close()
	p.lockFile = nil
	p.held = false

	// The lock file itself is left behind for faster subsequent acquires.

	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// IsHeld checks local state only; it does not re-verify the flock.
func (p *Lock) IsHeld() bool {
	return p.held
}

// HolderPID reads the companion PID file. May be stale if the holder
// crashed without cleanup.
func (p *Lock) HolderPID() int {
	return p.readHolderPID()
}

func (p *Lock) writePID() error {
	pid := strconv.Itoa(os.Getpid())
	return os.WriteFile(p.pidPath, []byte(pid), 0644)
}

func (p *Lock) readHolderPID() int {
	data, err := os.ReadFile(p.pidPath)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

var _ Locker = (*Lock)(nil)
