package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.City != "Magdeburg" {
		t.Fatalf("unexpected default city: %q", cfg.City)
	}
	if cfg.CutoffDate != "2024-12-20" {
		t.Fatalf("unexpected default cutoff: %q", cfg.CutoffDate)
	}
	if got := cfg.Cutoff(); !got.Equal(time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected parsed cutoff: %v", got)
	}
}

func TestValidateRejectsBadCutoff(t *testing.T) {
	t.Setenv("MONITOR_CUTOFF_DATE", "20.12.2024")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed cutoff date")
	}
}

func TestRequireOpenAI(t *testing.T) {
	cfg := &Config{}
	if err := cfg.RequireOpenAI(); err == nil {
		t.Fatalf("expected error for missing key")
	}

	cfg.OpenAIAPIKey = "not-a-key"
	if err := cfg.RequireOpenAI(); err == nil {
		t.Fatalf("expected error for malformed key")
	}

	cfg.OpenAIAPIKey = "sk-test-123"
	if err := cfg.RequireOpenAI(); err != nil {
		t.Fatalf("expected valid key to pass: %v", err)
	}
}

func TestProposalConfigured(t *testing.T) {
	cfg := &Config{}
	if cfg.ProposalConfigured() {
		t.Fatalf("expected unconfigured proposal")
	}
	cfg.GitHubToken = "ghp_x"
	cfg.GitHubRepository = "owner/repo"
	if !cfg.ProposalConfigured() {
		t.Fatalf("expected configured proposal")
	}
}
