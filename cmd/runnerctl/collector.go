// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"path/filepath"
	"syscall"
	"time"

	"github.com/AleutianAI/RunnerForge/internal/proc"
	"github.com/AleutianAI/RunnerForge/pkg/logging"
	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// COLLECTOR SUPERVISION
// =============================================================================

// CollectorSupervisor keeps the OTEL collector running while serve is
// up. It restarts the child with exponential backoff when it dies and
// restarts it immediately when the collector config file changes.
//
// The entrypoint may have started a collector before serve came up, so
// the supervisor adopts a collector it finds already running instead of
// racing it for the ports, and termination always targets the PID
// discovered at that moment rather than a remembered one.
type CollectorSupervisor struct {
	proc    proc.Manager
	log     *logging.Logger
	metrics *ProbeMetrics

	binary     string
	configPath string

	// pollInterval is how often the child's existence is re-verified.
	pollInterval time.Duration

	// backoff bounds for crash restarts.
	minBackoff time.Duration
	maxBackoff time.Duration

	// kill sends a signal to a PID. Swapped in tests.
	kill func(pid int, sig syscall.Signal) error
}

// NewCollectorSupervisor wires a supervisor for the given collector
// binary and config.
func NewCollectorSupervisor(pm proc.Manager, log *logging.Logger, metrics *ProbeMetrics, env RuntimeEnv) *CollectorSupervisor {
	return &CollectorSupervisor{
		proc:         pm,
		log:          log,
		metrics:      metrics,
		binary:       env.CollectorBinary,
		configPath:   env.OTELConfigPath,
		pollInterval: 5 * time.Second,
		minBackoff:   time.Second,
		maxBackoff:   30 * time.Second,
		kill:         syscall.Kill,
	}
}

// Run supervises until the context is cancelled. Blocking; callers run
// it in a goroutine.
func (s *CollectorSupervisor) Run(ctx context.Context) {
	configChanged := s.watchConfig(ctx)

	backoff := s.minBackoff
	lastStart := time.Time{}

	// ensureRunning adopts a collector that is already up (typically the
	// one the entrypoint started) and only launches a new child when none
	// exists. Launching blindly would just lose the port-bind race and
	// leave the supervisor tracking a corpse.
	ensureRunning := func() {
		if running, pid, err := s.proc.IsRunning(ctx, s.binary); err == nil && running {
			lastStart = time.Now()
			s.log.Info("collector already running, adopting", "pid", pid)
			return
		}
		pid, err := s.proc.Start(ctx, s.binary, "--config", s.configPath)
		if err != nil {
			s.log.Warn("collector start failed", "error", err)
			return
		}
		lastStart = time.Now()
		s.log.Info("collector started", "pid", pid)
	}

	ensureRunning()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.terminate()
			return

		case <-configChanged:
			s.log.Info("collector config changed, restarting", "config", s.configPath)
			s.terminate()
			s.recordRestart(ctx, "config_change")
			ensureRunning()
			backoff = s.minBackoff

		case <-ticker.C:
			running, _, err := s.proc.IsRunning(ctx, s.binary)
			if err != nil || running {
				// A child that stayed up past one backoff window earns
				// a reset, so a flapping collector does not keep the
				// penalty forever.
				if running && time.Since(lastStart) > s.maxBackoff {
					backoff = s.minBackoff
				}
				continue
			}

			s.log.Warn("collector died, restarting", "backoff", backoff.String())
			s.recordRestart(ctx, "crash")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
			if backoff > s.maxBackoff {
				backoff = s.maxBackoff
			}
			ensureRunning()
		}
	}
}

// terminate SIGTERMs whichever collector is running right now. The PID
// is discovered at termination time: a remembered PID may belong to a
// child that already died (and been recycled) while a collector started
// elsewhere is the one actually serving.
func (s *CollectorSupervisor) terminate() {
	running, pid, err := s.proc.IsRunning(context.Background(), s.binary)
	if err != nil || !running || pid <= 0 {
		return
	}
	if err := s.kill(pid, syscall.SIGTERM); err != nil {
		s.log.Debug("collector terminate", "pid", pid, "error", err)
	}
}

// recordRestart counts a restart when metrics are wired.
func (s *CollectorSupervisor) recordRestart(ctx context.Context, reason string) {
	if s.metrics != nil {
		s.metrics.RecordRestart(ctx, reason)
	}
}

// watchConfig starts an fsnotify watch on the collector config file and
// returns a channel that fires on writes. Editors and config mounts
// often replace the file, so the parent directory is watched and events
// filtered by name.
func (s *CollectorSupervisor) watchConfig(ctx context.Context) <-chan struct{} {
	changed := make(chan struct{}, 1)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.Warn("config watch unavailable", "error", err)
		return changed
	}

	dir := filepath.Dir(s.configPath)
	if err := watcher.Add(dir); err != nil {
		s.log.Warn("config watch unavailable", "dir", dir, "error", err)
		watcher.Close()
		return changed
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.configPath {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case changed <- struct{}{}:
				default: // A restart is already pending.
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn("config watch error", "error", err)
			}
		}
	}()

	return changed
}
