package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
)

func TestGodotenvQuoting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `JIRA_TOKEN='token with "double quotes"'`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	env, err := godotenv.Read(path)
	if err != nil {
		t.Fatalf("Error reading env: %v", err)
	}

	expected := `token with "double quotes"`
	if env["JIRA_TOKEN"] != expected {
		t.Errorf("Expected %s, got %s", expected, env["JIRA_TOKEN"])
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	dataPath := t.TempDir()
	t.Setenv("DATA_PATH", dataPath)
	t.Setenv("JIRA_URL", "https://jira.example.com")
	t.Setenv("JIRA_USERNAME", "alice")
	t.Setenv("JIRA_PASSWORD", "secret")
	t.Setenv("JIRA_REQUEST_DELAY_SECONDS", "3")
	t.Setenv("ENABLE_MERMAID_CHARTS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Jira.BaseURL != "https://jira.example.com" || cfg.Jira.Username != "alice" {
		t.Errorf("Unexpected Jira config: %+v", cfg.Jira)
	}
	if cfg.Jira.RequestDelay != 3*time.Second {
		t.Errorf("Expected 3s delay, got %v", cfg.Jira.RequestDelay)
	}
	if cfg.EnableMermaidCharts {
		t.Error("Expected Mermaid charts disabled")
	}
	if !cfg.HasCredentials() {
		t.Error("Expected basic credentials to count")
	}
	if _, err := os.Stat(cfg.SnapshotDir); err != nil {
		t.Errorf("Expected snapshot dir to exist: %v", err)
	}
}

func TestHasCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  AppConfig
		want bool
	}{
		{"none", AppConfig{}, false},
		{"token", AppConfig{}, true},
		{"username only", AppConfig{}, false},
		{"session cookie", AppConfig{}, true},
	}
	tests[1].cfg.Jira.Token = "pat"
	tests[2].cfg.Jira.Username = "alice"
	tests[3].cfg.Jira.SessionID = "abc"

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.HasCredentials(); got != tt.want {
				t.Errorf("HasCredentials() = %v, want %v", got, tt.want)
			}
		})
	}
}
