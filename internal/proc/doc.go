// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package proc provides abstractions for external process execution and
inter-process synchronization.

# Overview

This package contains two main components:

  - Manager: abstracts external process execution for testability
  - Lock: file-based locking to prevent concurrent CLI instances

# Manager

Every exec.Command call in RunnerForge goes through Manager so unit tests
can substitute MockManager. Results are typed: stdout, stderr and the exit
code come back separately, so callers parse deterministically instead of
grepping combined output.

	pm := proc.NewDefaultManager()
	res, err := pm.Run(ctx, "docker", "compose", "version")
	if err != nil {
	    return fmt.Errorf("failed to query compose: %w", err)
	}
	fmt.Println(res.Stdout)

For testing, use MockManager:

	mock := &proc.MockManager{
	    RunFunc: func(ctx context.Context, name string, args ...string) (proc.Result, error) {
	        return proc.Result{Stdout: "mock output"}, nil
	    },
	}

# Lock

Lock prevents multiple CLI instances from mutating the stack simultaneously.
Uses flock(2) advisory locking.

	lock := proc.NewLock(proc.DefaultLockConfig())
	if err := lock.Acquire(); err != nil {
	    fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	    os.Exit(1)
	}
	defer lock.Release()

# Thread Safety

  - Manager implementations are safe for concurrent use
  - Lock is NOT safe for concurrent use from multiple goroutines

# Limitations

  - Lock uses advisory locks; other processes can ignore them
  - Lock requires OS support for flock(2)
*/
package proc
