// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/AleutianAI/RunnerForge/pkg/logging"
	"github.com/spf13/cobra"
)

// runLog emits one structured log line to stdout.
//
// Usage: runnerctl log LEVEL MESSAGE [key=value...]
//
// The level must be one of DEBUG, INFO, WARN, ERROR, FATAL; anything
// else is rejected with a non-zero exit rather than silently defaulted.
// FATAL emits the line and then exits non-zero, so scripts can use it
// as a log-and-die primitive.
func runLog(cmd *cobra.Command, args []string) {
	emitter := logging.NewEmitter(os.Stdout, runtimeEnv.ServiceName)

	err := emitter.EmitNamed(args[0], args[1], args[2:]...)
	if err == nil {
		return
	}
	if errors.Is(err, logging.ErrFatalLevel) {
		// The FATAL line was written; the contract is to die after.
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
