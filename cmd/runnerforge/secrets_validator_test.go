package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSecrets(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.env")
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("write secrets: %v", err)
	}
	return path
}

func TestValidateSecretsFile_Valid(t *testing.T) {
	path := writeSecrets(t, "# runner credentials\nGITHUB_TOKEN=ghp_realtoken123\nRUNNER_NAME=forge-01\n\n", 0o600)

	report, err := ValidateSecretsFile(path)
	if err != nil {
		t.Fatalf("ValidateSecretsFile: %v", err)
	}
	if !report.OK() {
		t.Fatalf("expected OK, findings: %v", report.Findings)
	}
	if report.Entries != 2 {
		t.Errorf("entries = %d, want 2", report.Entries)
	}
}

func TestValidateSecretsFile_MissingFile(t *testing.T) {
	_, err := ValidateSecretsFile(filepath.Join(t.TempDir(), "nope.env"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("error = %v, want guidance about creating the file", err)
	}
}

func TestValidateSecretsFile_OpenPermissions(t *testing.T) {
	path := writeSecrets(t, "GITHUB_TOKEN=ghp_realtoken123\n", 0o644)

	report, err := ValidateSecretsFile(path)
	if err != nil {
		t.Fatalf("ValidateSecretsFile: %v", err)
	}
	if report.OK() {
		t.Fatal("expected a permissions finding for 0644")
	}
	if !strings.Contains(strings.Join(report.Findings, " "), "chmod 600") {
		t.Errorf("findings = %v, want chmod guidance", report.Findings)
	}
}

func TestValidateSecretsFile_PlaceholderAndEmptyValues(t *testing.T) {
	path := writeSecrets(t, "GITHUB_TOKEN=changeme\nRUNNER_NAME=\n", 0o600)

	report, err := ValidateSecretsFile(path)
	if err != nil {
		t.Fatalf("ValidateSecretsFile: %v", err)
	}
	if len(report.Findings) != 2 {
		t.Fatalf("findings = %v, want 2", report.Findings)
	}
	joined := strings.Join(report.Findings, " ")
	if !strings.Contains(joined, "GITHUB_TOKEN") || !strings.Contains(joined, "placeholder") {
		t.Errorf("findings = %v, want placeholder finding naming GITHUB_TOKEN", report.Findings)
	}
	if !strings.Contains(joined, "RUNNER_NAME") {
		t.Errorf("findings = %v, want empty-value finding naming RUNNER_NAME", report.Findings)
	}
}

func TestValidateSecretsFile_MalformedLines(t *testing.T) {
	path := writeSecrets(t, "this is not an entry\n9BAD=value\n", 0o600)

	report, err := ValidateSecretsFile(path)
	if err != nil {
		t.Fatalf("ValidateSecretsFile: %v", err)
	}
	if len(report.Findings) != 2 {
		t.Fatalf("findings = %v, want 2", report.Findings)
	}
}

func TestValidateSecretsFile_EmptyFileIsAFinding(t *testing.T) {
	path := writeSecrets(t, "# nothing here yet\n", 0o600)

	report, err := ValidateSecretsFile(path)
	if err != nil {
		t.Fatalf("ValidateSecretsFile: %v", err)
	}
	if report.OK() {
		t.Fatal("a secrets file with no entries must not pass")
	}
}

func TestValidateSecretsFile_FindingsNeverLeakValues(t *testing.T) {
	const secret = "ghp_supersecretvalue"
	path := writeSecrets(t, "GITHUB_TOKEN="+secret+"\nBROKEN\n", 0o644)

	report, err := ValidateSecretsFile(path)
	if err != nil {
		t.Fatalf("ValidateSecretsFile: %v", err)
	}
	for _, finding := range report.Findings {
		if strings.Contains(finding, secret) {
			t.Fatalf("finding leaks secret value: %s", finding)
		}
	}
}
