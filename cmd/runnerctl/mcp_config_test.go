package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseMCPConfig_Valid(t *testing.T) {
	data := []byte(`{
		"mcpServers": {
			"github": {"command": "gh-mcp", "args": ["--stdio"]},
			"remote": {"url": "https://mcp.example.com"}
		}
	}`)

	servers, err := ParseMCPConfig(data)
	if err != nil {
		t.Fatalf("ParseMCPConfig: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("servers = %d, want 2", len(servers))
	}
	if servers["github"].Command != "gh-mcp" {
		t.Errorf("github command = %q", servers["github"].Command)
	}
	if servers["remote"].URL != "https://mcp.example.com" {
		t.Errorf("remote url = %q", servers["remote"].URL)
	}
}

func TestParseMCPConfig_EmptyObjectIsValid(t *testing.T) {
	servers, err := ParseMCPConfig([]byte(`{}`))
	if err != nil {
		t.Fatalf("empty object should parse: %v", err)
	}
	if len(servers) != 0 {
		t.Errorf("servers = %d, want 0", len(servers))
	}
}

func TestParseMCPConfig_Malformed(t *testing.T) {
	for _, bad := range []string{"{nope", "", "[]", `"string"`} {
		if _, err := ParseMCPConfig([]byte(bad)); err == nil {
			t.Errorf("ParseMCPConfig(%q) should fail", bad)
		}
	}
}

func TestEnsureMCPConfig_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".mcp.json")

	servers, created, err := EnsureMCPConfig(path)
	if err != nil {
		t.Fatalf("EnsureMCPConfig: %v", err)
	}
	if !created {
		t.Error("expected created=true for missing file")
	}
	if len(servers) != 0 {
		t.Errorf("default config should have no servers, got %d", len(servers))
	}

	// The written default must itself parse.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if _, err := ParseMCPConfig(data); err != nil {
		t.Errorf("written default does not parse: %v", err)
	}
}

func TestEnsureMCPConfig_KeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".mcp.json")
	original := `{"mcpServers": {"github": {"command": "gh-mcp"}}}`
	if err := os.WriteFile(path, []byte(original), 0644); err != nil {
		t.Fatal(err)
	}

	servers, created, err := EnsureMCPConfig(path)
	if err != nil {
		t.Fatalf("EnsureMCPConfig: %v", err)
	}
	if created {
		t.Error("existing file must not be rewritten")
	}
	if len(servers) != 1 {
		t.Errorf("servers = %d, want 1", len(servers))
	}

	data, _ := os.ReadFile(path)
	if string(data) != original {
		t.Error("existing file content changed")
	}
}

func TestEnsureMCPConfig_MalformedIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".mcp.json")
	if err := os.WriteFile(path, []byte("{bad json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := EnsureMCPConfig(path); err == nil {
		t.Fatal("malformed existing config must be an error, not overwritten")
	}

	// And it must still be there, untouched, for the operator to inspect.
	data, _ := os.ReadFile(path)
	if string(data) != "{bad json" {
		t.Error("malformed config was modified")
	}
}
