// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MCPServer is one entry in the assistant CLI's MCP config: how to
// reach a Model Context Protocol server.
type MCPServer struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	URL     string            `json:"url,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// mcpConfigFile is the on-disk shape of .mcp.json: a flat map of server
// name to connection parameters under a single top-level key.
type mcpConfigFile struct {
	MCPServers map[string]MCPServer `json:"mcpServers"`
}

// ParseMCPConfig validates raw .mcp.json bytes and returns the server
// map. The assistant CLI hard-fails on malformed config, so callers on
// the startup path must treat an error here as fatal.
func ParseMCPConfig(data []byte) (map[string]MCPServer, error) {
	var cfg mcpConfigFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("malformed MCP config: %w", err)
	}
	if cfg.MCPServers == nil {
		return map[string]MCPServer{}, nil
	}
	return cfg.MCPServers, nil
}

// EnsureMCPConfig guarantees a parseable .mcp.json at path. A missing
// file is replaced with an empty-but-valid default; an existing file is
// validated and returned as-is. An existing file that does not parse is
// an error, never silently overwritten.
func EnsureMCPConfig(path string) (map[string]MCPServer, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		def := mcpConfigFile{MCPServers: map[string]MCPServer{}}
		out, marshalErr := json.MarshalIndent(def, "", "  ")
		if marshalErr != nil {
			return nil, false, marshalErr
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, false, fmt.Errorf("create MCP config dir: %w", err)
		}
		if err := os.WriteFile(path, append(out, '\n'), 0644); err != nil {
			return nil, false, fmt.Errorf("write default MCP config: %w", err)
		}
		return map[string]MCPServer{}, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read MCP config %s: %w", path, err)
	}

	servers, err := ParseMCPConfig(data)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	return servers, false, nil
}
