// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrFatalLevel is returned by Emit after a FATAL entry has been written.
// The entry IS on the wire at that point; the caller must exit non-zero.
var ErrFatalLevel = fmt.Errorf("fatal entry emitted")

// ErrMalformedPair is returned for context arguments without a '='.
var ErrMalformedPair = fmt.Errorf("malformed context pair")

// wireEntry is the fixed wire format: exactly these six fields, in this
// order. Context is always present, even when empty.
type wireEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context"`
	Service   string         `json:"service"`
	Host      string         `json:"host"`
}

// Emitter writes one-JSON-object-per-line log entries in the container
// wire format. Values that look numeric are emitted as JSON numbers;
// everything else is a string with embedded quotes escaped.
//
// Example:
//
//	em := logging.NewEmitter(os.Stdout, "runnerctl")
//	em.Emit(logging.LevelInfo, "Test message", "key1=value1")
//	// {"timestamp":"...","level":"INFO","message":"Test message",
//	//  "context":{"key1":"value1"},"service":"runnerctl","host":"..."}
type Emitter struct {
	w       io.Writer
	service string
	host    string
	now     func() time.Time
	mu      sync.Mutex
}

// NewEmitter creates an Emitter writing to w. The host field is taken from
// os.Hostname (empty string when unavailable, never omitted).
func NewEmitter(w io.Writer, service string) *Emitter {
	host, _ := os.Hostname()
	return &Emitter{
		w:       w,
		service: service,
		host:    host,
		now:     time.Now,
	}
}

// WithClock overrides the timestamp source. For tests.
func (e *Emitter) WithClock(now func() time.Time) *Emitter {
	e.now = now
	return e
}

// Emit writes a single wire entry. Context pairs are "key=value" strings;
// the value is split at the first '='. Returns ErrFatalLevel after writing
// a LevelFatal entry so the caller can exit non-zero, ErrMalformedPair for
// a pair without '=', or a write/encode error. Nothing is written when a
// pair is malformed.
func (e *Emitter) Emit(level Level, message string, pairs ...string) error {
	ctx := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return fmt.Errorf("%w: %q", ErrMalformedPair, pair)
		}
		ctx[key] = coerceValue(raw)
	}

	entry := wireEntry{
		Timestamp: e.now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   message,
		Context:   ctx,
		Service:   e.service,
		Host:      e.host,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode wire entry: %w", err)
	}

	e.mu.Lock()
	_, err = fmt.Fprintf(e.w, "%s\n", line)
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("write wire entry: %w", err)
	}

	if level == LevelFatal {
		return ErrFatalLevel
	}
	return nil
}

// EmitNamed parses the level name first (strict enum, see ParseLevel) and
// then behaves like Emit. Used by the `log` subcommand, where the level
// arrives as a string from the caller.
func (e *Emitter) EmitNamed(levelName, message string, pairs ...string) error {
	level, err := ParseLevel(levelName)
	if err != nil {
		return err
	}
	return e.Emit(level, message, pairs...)
}

// coerceValue converts numeric-looking strings to JSON numbers.
// Integers stay integral; everything else remains a string.
func coerceValue(raw string) any {
	if raw == "" {
		return raw
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
