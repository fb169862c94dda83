package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"chronik.fyi/monitor/internal/incident"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	City       string `envconfig:"MONITOR_CITY" default:"Magdeburg"`
	CutoffDate string `envconfig:"MONITOR_CUTOFF_DATE" default:"2024-12-20"`

	LedgerPath  string `envconfig:"LEDGER_PATH" default:"data/incidents.json"`
	SourcesPath string `envconfig:"SOURCES_PATH" default:""`
	StateDBPath string `envconfig:"STATE_DB_PATH" default:""`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIModel  string `envconfig:"OPENAI_MODEL" default:"gpt-4-turbo-preview"`

	GitHubToken      string `envconfig:"GITHUB_TOKEN" default:""`
	GitHubRepository string `envconfig:"GITHUB_REPOSITORY" default:""`
	GitHubBaseBranch string `envconfig:"GITHUB_BASE_BRANCH" default:"main"`

	FetchTimeout       time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	FetchBodyByteLimit int64         `envconfig:"FETCH_BODY_BYTE_LIMIT" default:"2097152"`

	ServeHost string `envconfig:"SERVE_HOST" default:"0.0.0.0"`
	ServePort int    `envconfig:"SERVE_PORT" default:"8080"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.City) == "" {
		return fmt.Errorf("MONITOR_CITY is required")
	}
	if _, err := incident.ParseDate(c.CutoffDate); err != nil {
		return fmt.Errorf("MONITOR_CUTOFF_DATE must be YYYY-MM-DD: %w", err)
	}
	if strings.TrimSpace(c.LedgerPath) == "" {
		return fmt.Errorf("LEDGER_PATH is required")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be > 0")
	}
	if c.FetchBodyByteLimit <= 0 {
		return fmt.Errorf("FETCH_BODY_BYTE_LIMIT must be > 0")
	}
	if c.ServePort < 1 || c.ServePort > 65535 {
		return fmt.Errorf("SERVE_PORT must be in 1..65535")
	}
	return nil
}

// Cutoff returns the parsed cutoff date.
func (c *Config) Cutoff() time.Time {
	ts, _ := incident.ParseDate(c.CutoffDate)
	return ts
}

// RequireOpenAI verifies the model credentials are usable. Commands that
// invoke the language model call this before any processing begins.
func (c *Config) RequireOpenAI() error {
	key := strings.TrimSpace(c.OpenAIAPIKey)
	if key == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if !strings.HasPrefix(key, "sk-") {
		return fmt.Errorf("OPENAI_API_KEY has an invalid format")
	}
	return nil
}

// ProposalConfigured reports whether the change-proposal collaborator has
// credentials and a target repository.
func (c *Config) ProposalConfigured() bool {
	return strings.TrimSpace(c.GitHubToken) != "" && strings.TrimSpace(c.GitHubRepository) != ""
}
