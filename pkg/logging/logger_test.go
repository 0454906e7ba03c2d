// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "test-svc",
		Quiet:   true,
	})

	logger.Info("hello", "answer", 42)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := filepath.Join(dir, "test-svc_"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("expected log file at %s: %v", want, err)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("file log must be JSON: %v", err)
	}
	if entry["msg"] != "hello" {
		t.Errorf("msg = %v, want hello", entry["msg"])
	}
	if entry["service"] != "test-svc" {
		t.Errorf("service = %v, want test-svc", entry["service"])
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "filter-test",
		Quiet:   true,
	})

	logger.Debug("dropped")
	logger.Info("also dropped")
	logger.Warn("kept")
	logger.Close()

	path := filepath.Join(dir, "filter-test_"+time.Now().Format("2006-01-02")+".log")
	data, _ := os.ReadFile(path)
	content := string(data)
	if strings.Contains(content, "dropped") {
		t.Errorf("sub-threshold messages should be filtered: %s", content)
	}
	if !strings.Contains(content, "kept") {
		t.Errorf("Warn message missing from %s", content)
	}
}

func TestLogger_WithAttrs(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Service: "with-test", Quiet: true})
	child := logger.With("run_id", "abc123")

	child.Info("scoped")
	logger.Close()

	path := filepath.Join(dir, "with-test_"+time.Now().Format("2006-01-02")+".log")
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "abc123") {
		t.Errorf("child attribute missing: %s", data)
	}
}

func TestMultiHandler_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&a, nil),
		slog.NewTextHandler(&b, nil),
	}}
	logger := slog.New(h)
	logger.Info("fan out")

	if !strings.Contains(a.String(), "fan out") {
		t.Errorf("first handler missed record: %q", a.String())
	}
	if !strings.Contains(b.String(), "fan out") {
		t.Errorf("second handler missed record: %q", b.String())
	}
}

func TestMultiHandler_Enabled(t *testing.T) {
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled when all handlers are error-level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir in test environment")
	}
	got := expandPath("~/logs")
	if got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if expandPath("/var/log") != "/var/log" {
		t.Error("absolute paths must pass through unchanged")
	}
}
